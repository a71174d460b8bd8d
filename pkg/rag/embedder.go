package rag

import (
	"context"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/codeready-toolchain/genforge/pkg/apierrors"
)

// Embedder produces D-dimensional embeddings for a batch of texts, one
// vector per input, in order.
type Embedder interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

const embedMethod = "/genforge.rag.v1.EmbedService/EmbedBatch"

// GRPCEmbedder calls an embedding sidecar over gRPC, encoded as
// google.protobuf.Struct for the same reason pkg/llm.GRPCProvider is: no
// protoc-generated stub is required.
type GRPCEmbedder struct {
	conn *grpc.ClientConn
}

func NewGRPCEmbedder(addr string) (*GRPCEmbedder, error) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("rag: dial embedder %s: %w", addr, err)
	}
	return &GRPCEmbedder{conn: conn}, nil
}

func (e *GRPCEmbedder) Close() error { return e.conn.Close() }

func (e *GRPCEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	values := make([]any, len(texts))
	for i, t := range texts {
		values[i] = t
	}
	list, err := structpb.NewList(values)
	if err != nil {
		return nil, apierrors.Wrap(apierrors.KindTerminal, "failed to encode embed request", err)
	}
	req, err := structpb.NewStruct(map[string]any{"texts": list.AsSlice()})
	if err != nil {
		return nil, apierrors.Wrap(apierrors.KindTerminal, "failed to encode embed request", err)
	}

	resp := &structpb.Struct{}
	if err := e.conn.Invoke(ctx, embedMethod, req, resp); err != nil {
		return nil, apierrors.Wrap(apierrors.KindNetworkTransient, "embed call failed", err)
	}

	embeddingsField, ok := resp.Fields["embeddings"]
	if !ok {
		return nil, apierrors.New(apierrors.KindSchemaInvalid, "embed response missing embeddings field")
	}

	rows := embeddingsField.GetListValue().GetValues()
	out := make([][]float32, len(rows))
	for i, row := range rows {
		vec := row.GetListValue().GetValues()
		floats := make([]float32, len(vec))
		for j, v := range vec {
			floats[j] = float32(v.GetNumberValue())
		}
		out[i] = floats
	}
	return out, nil
}

// batchTexts splits texts into groups of at most batchSize, preserving
// order, for EmbedBatchSize-bounded provider calls.
func batchTexts(texts []string, batchSize int) [][]string {
	var batches [][]string
	for i := 0; i < len(texts); i += batchSize {
		end := i + batchSize
		if end > len(texts) {
			end = len(texts)
		}
		batches = append(batches, texts[i:end])
	}
	return batches
}
