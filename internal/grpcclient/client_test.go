package grpcclient

import (
	"context"
	"encoding/base64"
	"image"
	"image/color"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/example/student-portal/internal/facematch"
	"github.com/example/student-portal/internal/logging"
)

type fakeEngine struct {
	regions    []any
	embedding  []any
	failLocate bool
	lastRegion map[string]any
	sawImage   bool
}

func (f *fakeEngine) serviceDesc() *grpc.ServiceDesc {
	return &grpc.ServiceDesc{
		ServiceName: ServiceName,
		HandlerType: (*any)(nil),
		Methods: []grpc.MethodDesc{
			{
				MethodName: "Locate",
				Handler: func(_ any, _ context.Context, dec func(any) error, _ grpc.UnaryServerInterceptor) (any, error) {
					req := &structpb.Struct{}
					if err := dec(req); err != nil {
						return nil, err
					}
					f.checkImage(req)
					if f.failLocate {
						return nil, status.Error(codes.Unavailable, "engine warming up")
					}
					return structpb.NewStruct(map[string]any{"regions": f.regions})
				},
			},
			{
				MethodName: "Embed",
				Handler: func(_ any, _ context.Context, dec func(any) error, _ grpc.UnaryServerInterceptor) (any, error) {
					req := &structpb.Struct{}
					if err := dec(req); err != nil {
						return nil, err
					}
					f.checkImage(req)
					f.lastRegion = req.GetFields()["region"].GetStructValue().AsMap()
					return structpb.NewStruct(map[string]any{"embedding": f.embedding})
				},
			},
		},
		Streams: []grpc.StreamDesc{},
	}
}

func (f *fakeEngine) checkImage(req *structpb.Struct) {
	raw, err := base64.StdEncoding.DecodeString(req.GetFields()["image"].GetStringValue())
	f.sawImage = err == nil && len(raw) > 0
}

func newTestClient(t *testing.T, engine *fakeEngine) *Client {
	t.Helper()
	lis := bufconn.Listen(1 << 20)
	srv := grpc.NewServer()
	srv.RegisterService(engine.serviceDesc(), engine)
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	return NewClient(conn, zap.NewNop())
}

func testImage(t *testing.T) *facematch.Image {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 32, 24))
	for y := 0; y < 24; y++ {
		for x := 0; x < 32; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 8), G: uint8(y * 10), B: 40, A: 255})
		}
	}
	out, err := facematch.NewImage(img)
	require.NoError(t, err)
	return out
}

func TestClient_Locate(t *testing.T) {
	engine := &fakeEngine{regions: []any{
		map[string]any{"x": 2, "y": 3, "width": 10, "height": 12},
		map[string]any{"x": 0, "y": 0, "width": 0, "height": 0},
	}}
	client := newTestClient(t, engine)

	regions, err := client.Locate(context.Background(), testImage(t))

	require.NoError(t, err)
	assert.Equal(t, []facematch.Region{{X: 2, Y: 3, Width: 10, Height: 12}}, regions)
	assert.True(t, engine.sawImage)
}

func TestClient_LocateError(t *testing.T) {
	client := newTestClient(t, &fakeEngine{failLocate: true})

	_, err := client.Locate(context.Background(), testImage(t))

	require.Error(t, err)
	op, ok := logging.OperationOf(err)
	require.True(t, ok)
	assert.Equal(t, "grpcclient.locate", op)
	assert.Equal(t, codes.Unavailable, status.Code(err))
}

func TestClient_Embed(t *testing.T) {
	engine := &fakeEngine{embedding: []any{0.25, -0.5, 1.0}}
	client := newTestClient(t, engine)

	embedding, err := client.Embed(context.Background(), testImage(t), facematch.Region{X: 1, Y: 2, Width: 3, Height: 4})

	require.NoError(t, err)
	assert.Equal(t, facematch.Embedding{0.25, -0.5, 1.0}, embedding)
	assert.Equal(t, map[string]any{"x": 1.0, "y": 2.0, "width": 3.0, "height": 4.0}, engine.lastRegion)
}

func TestClient_EmbedEmpty(t *testing.T) {
	client := newTestClient(t, &fakeEngine{})

	_, err := client.Embed(context.Background(), testImage(t), facematch.Region{X: 1, Y: 2, Width: 3, Height: 4})

	assert.ErrorIs(t, err, facematch.ErrNoEmbedding)
}
