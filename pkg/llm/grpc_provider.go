package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/codeready-toolchain/genforge/pkg/apierrors"
)

// generateMethod is the fully-qualified gRPC method path of the sidecar
// generation service. The sidecar (a Python process, out of scope for
// this module) is expected to implement it.
const generateMethod = "/genforge.llm.v1.LLMService/Generate"

// GRPCProvider calls an LLM sidecar over gRPC, the same shape the teacher
// uses for its Python LLM service (pkg/agent/llm_grpc.go) — plaintext
// transport, since the sidecar runs alongside this process. Requests and
// responses are encoded as google.protobuf.Struct so no protoc-generated
// stub is required: structpb.Struct already implements proto.Message.
type GRPCProvider struct {
	conn  *grpc.ClientConn
	model string
}

// NewGRPCProvider dials addr once; the connection is reused for every call.
func NewGRPCProvider(addr, model string) (*GRPCProvider, error) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("failed to create LLM client for %s: %w", addr, err)
	}
	return &GRPCProvider{conn: conn, model: model}, nil
}

func (p *GRPCProvider) Close() error { return p.conn.Close() }

// Generate sends a single-shot generation request and returns the raw
// response text (expected to be JSON when a schema is supplied — the
// caller is responsible for parsing it against that schema).
func (p *GRPCProvider) Generate(ctx context.Context, systemPrompt, userPrompt string, schema json.RawMessage, temperature float64, maxTokens int) (string, error) {
	req, err := structpb.NewStruct(map[string]any{
		"model":          p.model,
		"system_prompt":  systemPrompt,
		"user_prompt":    userPrompt,
		"schema":         string(schema),
		"temperature":    temperature,
		"max_tokens":     maxTokens,
		"json_mode":      len(schema) > 0,
	})
	if err != nil {
		return "", apierrors.Wrap(apierrors.KindTerminal, "failed to encode generate request", err)
	}

	resp := &structpb.Struct{}
	if err := p.conn.Invoke(ctx, generateMethod, req, resp); err != nil {
		return "", classifyGRPCError(err)
	}

	textField, ok := resp.Fields["text"]
	if !ok {
		return "", apierrors.New(apierrors.KindSchemaInvalid, "provider response missing text field")
	}
	return textField.GetStringValue(), nil
}

// classifyGRPCError normalizes a raw gRPC error into the shared taxonomy.
// Quota/resource-exhaustion signals are detected both via the gRPC status
// code and via substring matches the original platform relied on for its
// Python SDK errors ("429", "RESOURCE_EXHAUSTED").
func classifyGRPCError(err error) error {
	msg := err.Error()
	if strings.Contains(msg, "429") || strings.Contains(strings.ToUpper(msg), "RESOURCE_EXHAUSTED") {
		return apierrors.Wrap(apierrors.KindQuotaExhausted, "provider quota exhausted", err)
	}

	st, ok := status.FromError(err)
	if !ok {
		return apierrors.Wrap(apierrors.KindNetworkTransient, "provider call failed", err)
	}

	switch st.Code() {
	case codes.ResourceExhausted:
		return apierrors.Wrap(apierrors.KindQuotaExhausted, "provider quota exhausted", err)
	case codes.Unavailable, codes.DeadlineExceeded, codes.Aborted:
		return apierrors.Wrap(apierrors.KindNetworkTransient, "provider transiently unavailable", err)
	case codes.InvalidArgument, codes.FailedPrecondition:
		return apierrors.Wrap(apierrors.KindSchemaInvalid, "provider rejected request shape", err)
	case codes.Unauthenticated, codes.PermissionDenied:
		return apierrors.Wrap(apierrors.KindTerminal, "provider auth failure", err)
	default:
		return apierrors.Wrap(apierrors.KindNetworkTransient, "provider call failed", err)
	}
}
