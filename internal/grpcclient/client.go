// Package grpcclient talks to a remote face engine over gRPC. Messages are
// google.protobuf.Struct values so no generated stubs are needed:
//
//	/facematch.v1.FaceEngine/Locate {image} -> {regions: [{x, y, width, height}]}
//	/facematch.v1.FaceEngine/Embed  {image, region} -> {embedding: [...]}
//
// image carries the base64 encoded JPEG of the preprocessed picture.
package grpcclient

import (
	"context"
	"encoding/base64"
	"fmt"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/example/student-portal/internal/facematch"
	"github.com/example/student-portal/internal/logging"
)

const (
	ServiceName  = "facematch.v1.FaceEngine"
	locateMethod = "/" + ServiceName + "/Locate"
	embedMethod  = "/" + ServiceName + "/Embed"
)

// DialFaceEngine returns a ready-to-use face engine client.
func DialFaceEngine(ctx context.Context, addr string, logger *zap.Logger) (*Client, *grpc.ClientConn, error) {
	dialCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	conn, err := grpc.DialContext(
		dialCtx,
		addr,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithBlock(),
	)
	if err != nil {
		wrapped := logging.NewOperationError("grpcclient.dial_face_engine", "", err)
		logger.Error("failed to dial face engine", zap.Error(wrapped), zap.String("addr", addr))
		return nil, nil, wrapped
	}
	return NewClient(conn, logger), conn, nil
}

// Client implements facematch.Locator and facematch.Embedder.
type Client struct {
	conn   grpc.ClientConnInterface
	logger *zap.Logger
}

// NewClient wraps an existing connection.
func NewClient(conn grpc.ClientConnInterface, logger *zap.Logger) *Client {
	return &Client{conn: conn, logger: logger.Named("grpcclient")}
}

// Locate asks the engine for face regions.
func (c *Client) Locate(ctx context.Context, img *facematch.Image) ([]facematch.Region, error) {
	req, err := structpb.NewStruct(map[string]any{
		"image": base64.StdEncoding.EncodeToString(img.JPEG()),
	})
	if err != nil {
		return nil, fmt.Errorf("build locate request: %w", err)
	}

	resp := &structpb.Struct{}
	if err := c.conn.Invoke(ctx, locateMethod, req, resp); err != nil {
		wrapped := logging.NewOperationError("grpcclient.locate", "", err)
		c.logger.Error("face engine locate failed", zap.Error(wrapped))
		return nil, wrapped
	}

	values := resp.GetFields()["regions"].GetListValue().GetValues()
	regions := make([]facematch.Region, 0, len(values))
	for _, v := range values {
		fields := v.GetStructValue().GetFields()
		region := facematch.Region{
			X:      int(fields["x"].GetNumberValue()),
			Y:      int(fields["y"].GetNumberValue()),
			Width:  int(fields["width"].GetNumberValue()),
			Height: int(fields["height"].GetNumberValue()),
		}
		if region.Empty() {
			continue
		}
		regions = append(regions, region)
	}
	return regions, nil
}

// Embed asks the engine for the embedding of one region. An empty embedding
// is reported as facematch.ErrNoEmbedding.
func (c *Client) Embed(ctx context.Context, img *facematch.Image, region facematch.Region) (facematch.Embedding, error) {
	req, err := structpb.NewStruct(map[string]any{
		"image": base64.StdEncoding.EncodeToString(img.JPEG()),
		"region": map[string]any{
			"x":      region.X,
			"y":      region.Y,
			"width":  region.Width,
			"height": region.Height,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("build embed request: %w", err)
	}

	resp := &structpb.Struct{}
	if err := c.conn.Invoke(ctx, embedMethod, req, resp); err != nil {
		wrapped := logging.NewOperationError("grpcclient.embed", "", err)
		c.logger.Error("face engine embed failed", zap.Error(wrapped))
		return nil, wrapped
	}

	values := resp.GetFields()["embedding"].GetListValue().GetValues()
	if len(values) == 0 {
		return nil, facematch.ErrNoEmbedding
	}
	embedding := make(facematch.Embedding, len(values))
	for i, v := range values {
		embedding[i] = v.GetNumberValue()
	}
	return embedding, nil
}

var (
	_ facematch.Locator  = (*Client)(nil)
	_ facematch.Embedder = (*Client)(nil)
)
