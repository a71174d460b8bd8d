package rag

import (
	"context"
	"fmt"

	pb "github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// VectorStore is the sole owner of Qdrant operations for retrieved chunks.
type VectorStore struct {
	conn        *grpc.ClientConn
	points      pb.PointsClient
	collections pb.CollectionsClient
	collection  string
}

// NewVectorStore dials Qdrant at addr and scopes all operations to one
// collection.
func NewVectorStore(addr, collection string) (*VectorStore, error) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("rag: dial qdrant %s: %w", addr, err)
	}
	return &VectorStore{
		conn:        conn,
		points:      pb.NewPointsClient(conn),
		collections: pb.NewCollectionsClient(conn),
		collection:  collection,
	}, nil
}

func (v *VectorStore) Close() error { return v.conn.Close() }

// EnsureCollection creates the collection with cosine-distance vectors of
// the given dimensionality if it does not already exist.
func (v *VectorStore) EnsureCollection(ctx context.Context, dims int) error {
	list, err := v.collections.List(ctx, &pb.ListCollectionsRequest{})
	if err != nil {
		return fmt.Errorf("rag: list collections: %w", err)
	}
	for _, c := range list.GetCollections() {
		if c.GetName() == v.collection {
			return nil
		}
	}

	_, err = v.collections.Create(ctx, &pb.CreateCollection{
		CollectionName: v.collection,
		VectorsConfig: &pb.VectorsConfig{
			Config: &pb.VectorsConfig_Params{
				Params: &pb.VectorParams{
					Size:     uint64(dims),
					Distance: pb.Distance_Cosine,
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("rag: create collection %s: %w", v.collection, err)
	}
	return nil
}

// Upsert stores chunk embeddings, denormalizing user_id and doc_id into
// the payload so retrieval can filter by tenant in a single scan.
func (v *VectorStore) Upsert(ctx context.Context, chunks []Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	points := make([]*pb.PointStruct, len(chunks))
	for i, c := range chunks {
		points[i] = &pb.PointStruct{
			Id: &pb.PointId{PointIdOptions: &pb.PointId_Uuid{Uuid: c.ID}},
			Vectors: &pb.Vectors{
				VectorsOptions: &pb.Vectors_Vector{Vector: &pb.Vector{Data: c.Embedding}},
			},
			Payload: map[string]*pb.Value{
				"content":      {Kind: &pb.Value_StringValue{StringValue: c.Text}},
				"user_id":      {Kind: &pb.Value_StringValue{StringValue: c.UserID}},
				"doc_id":       {Kind: &pb.Value_StringValue{StringValue: c.DocumentID}},
				"chunk_index":  {Kind: &pb.Value_IntegerValue{IntegerValue: int64(c.Index)}},
			},
		}
	}

	wait := true
	_, err := v.points.Upsert(ctx, &pb.UpsertPoints{
		CollectionName: v.collection,
		Wait:           &wait,
		Points:         points,
	})
	if err != nil {
		return fmt.Errorf("rag: upsert %d points: %w", len(chunks), err)
	}
	return nil
}

// SearchResult is a single retrieval hit, trimmed to what callers need.
type SearchResult struct {
	Text  string
	Score float32
}

// SearchByUser performs k-NN search filtered to a single user's chunks.
func (v *VectorStore) SearchByUser(ctx context.Context, userID string, embedding []float32, limit int) ([]SearchResult, error) {
	resp, err := v.points.Search(ctx, &pb.SearchPoints{
		CollectionName: v.collection,
		Vector:         embedding,
		Limit:          uint64(limit),
		WithPayload:    &pb.WithPayloadSelector{SelectorOptions: &pb.WithPayloadSelector_Enable{Enable: true}},
		Filter: &pb.Filter{
			Must: []*pb.Condition{{
				ConditionOneOf: &pb.Condition_Field{
					Field: &pb.FieldCondition{
						Key:   "user_id",
						Match: &pb.Match{MatchValue: &pb.Match_Keyword{Keyword: userID}},
					},
				},
			}},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("rag: search: %w", err)
	}

	results := make([]SearchResult, 0, len(resp.GetResult()))
	for _, r := range resp.GetResult() {
		content := r.GetPayload()["content"].GetStringValue()
		results = append(results, SearchResult{Text: content, Score: r.GetScore()})
	}
	return results, nil
}
