package cmd

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/example/student-portal/internal/config"
	"github.com/example/student-portal/internal/facematch"
	"github.com/example/student-portal/internal/facematch/deepface"
	"github.com/example/student-portal/internal/grpcclient"
)

// faceEngine is a detection backend able to both locate and embed faces.
type faceEngine interface {
	facematch.Locator
	facematch.Embedder
}

// newFaceEngine builds the configured backend. The returned close function
// is never nil.
func newFaceEngine(ctx context.Context, cfg *config.FaceEngine, logger *zap.Logger) (faceEngine, func() error, error) {
	noop := func() error { return nil }

	switch cfg.Engine {
	case "deepface":
		return deepface.NewEngine(cfg.DeepFace(), logger), noop, nil
	case "grpc":
		client, conn, err := grpcclient.DialFaceEngine(ctx, cfg.FaceEngineGRPCAddr, logger)
		if err != nil {
			return nil, noop, fmt.Errorf("connect to face engine: %w", err)
		}
		return client, conn.Close, nil
	case "dlib":
		return newDlibEngine(cfg.DlibModelsDir)
	default:
		return nil, noop, fmt.Errorf("unknown face engine %q", cfg.Engine)
	}
}
