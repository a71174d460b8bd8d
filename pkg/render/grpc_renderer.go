// Package render talks to the templating collaborator spec.md §6 names:
// a pure, deterministic spec → file-map conversion that is explicitly
// out of scope for this module. Like pkg/llm's model sidecar and
// pkg/rag's embedding sidecar, it is reached over plaintext gRPC using
// google.protobuf.Struct so no protoc-generated stub is required.
package render

import (
	"context"
	"encoding/json"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/codeready-toolchain/genforge/pkg/apierrors"
	"github.com/codeready-toolchain/genforge/pkg/spec"
)

const renderMethod = "/genforge.render.v1.RenderService/Render"

// GRPCRenderer implements pkg/pipeline's Renderer against the templating
// sidecar.
type GRPCRenderer struct {
	conn *grpc.ClientConn
}

// NewGRPCRenderer dials addr once; the connection is reused for every call.
func NewGRPCRenderer(addr string) (*GRPCRenderer, error) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("failed to create render client for %s: %w", addr, err)
	}
	return &GRPCRenderer{conn: conn}, nil
}

func (r *GRPCRenderer) Close() error { return r.conn.Close() }

// Render marshals s to JSON and asks the sidecar to turn it into a
// relative-path → file-content map. The sidecar owns every framework
// template; this client only carries bytes across the process boundary.
func (r *GRPCRenderer) Render(ctx context.Context, s spec.Spec) (map[string]string, error) {
	specJSON, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("encode spec for render request: %w", err)
	}

	req, err := structpb.NewStruct(map[string]any{"spec_json": string(specJSON)})
	if err != nil {
		return nil, apierrors.Wrap(apierrors.KindTerminal, "failed to encode render request", err)
	}

	resp := &structpb.Struct{}
	if err := r.conn.Invoke(ctx, renderMethod, req, resp); err != nil {
		return nil, apierrors.Wrap(apierrors.KindNetworkTransient, "render sidecar call failed", err)
	}

	filesField, ok := resp.Fields["files"]
	if !ok {
		return nil, apierrors.New(apierrors.KindRenderFailed, "render response missing files field")
	}

	files := make(map[string]string, len(filesField.GetStructValue().GetFields()))
	for path, content := range filesField.GetStructValue().GetFields() {
		files[path] = content.GetStringValue()
	}
	if len(files) == 0 {
		return nil, apierrors.New(apierrors.KindRenderFailed, "render sidecar returned no files")
	}
	return files, nil
}
