package deepface

import (
	"context"
	"encoding/json"
	"errors"
	"image"
	"image/color"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/example/student-portal/internal/facematch"
)

func testImage(t *testing.T) *facematch.Image {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 64, 48))
	for y := 0; y < 48; y++ {
		for x := 0; x < 64; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 4), G: uint8(y * 5), B: 90, A: 255})
		}
	}
	out, err := facematch.NewImage(img)
	require.NoError(t, err)
	return out
}

func testConfig(url string) Config {
	cfg := DefaultConfig()
	cfg.BaseURL = url
	cfg.Timeout = 2 * time.Second
	cfg.InitialBackoff = time.Millisecond
	cfg.MaxBackoff = 5 * time.Millisecond
	return cfg
}

func confidence(v float64) *float64 { return &v }

func serveRepresent(t *testing.T, results []representResult) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/represent", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)

		var req representRequest
		if !assert.NoError(t, json.NewDecoder(r.Body).Decode(&req)) {
			http.Error(w, "bad request body", http.StatusBadRequest)
			return
		}
		assert.Equal(t, "Dlib", req.ModelName)
		assert.Equal(t, "opencv", req.DetectorBackend)
		assert.False(t, req.EnforceDetection)
		assert.True(t, strings.HasPrefix(req.Img, "data:image/jpeg;base64,"))

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(representResponse{Results: results})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestEngine_Locate(t *testing.T) {
	tests := []struct {
		name    string
		results []representResult
		want    []facematch.Region
	}{
		{
			name: "single face",
			results: []representResult{
				{Embedding: []float64{0.1}, FacialArea: facialArea{X: 5, Y: 6, W: 20, H: 22}, FaceConfidence: confidence(0.97)},
			},
			want: []facematch.Region{{X: 5, Y: 6, Width: 20, Height: 22}},
		},
		{
			name: "whole frame fallback is not a face",
			results: []representResult{
				{Embedding: []float64{0.1}, FacialArea: facialArea{X: 0, Y: 0, W: 64, H: 48}, FaceConfidence: confidence(0)},
			},
			want: []facematch.Region{},
		},
		{
			name: "missing confidence is kept",
			results: []representResult{
				{Embedding: []float64{0.1}, FacialArea: facialArea{X: 1, Y: 2, W: 3, H: 4}},
			},
			want: []facematch.Region{{X: 1, Y: 2, Width: 3, Height: 4}},
		},
		{
			name: "two faces",
			results: []representResult{
				{Embedding: []float64{0.1}, FacialArea: facialArea{X: 0, Y: 0, W: 10, H: 10}, FaceConfidence: confidence(0.9)},
				{Embedding: []float64{0.2}, FacialArea: facialArea{X: 30, Y: 0, W: 10, H: 10}, FaceConfidence: confidence(0.8)},
			},
			want: []facematch.Region{{X: 0, Y: 0, Width: 10, Height: 10}, {X: 30, Y: 0, Width: 10, Height: 10}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := serveRepresent(t, tt.results)
			engine := NewEngine(testConfig(srv.URL), zap.NewNop())

			got, err := engine.Locate(context.Background(), testImage(t))

			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEngine_EmbedPicksOverlappingFace(t *testing.T) {
	srv := serveRepresent(t, []representResult{
		{Embedding: []float64{1, 1}, FacialArea: facialArea{X: 0, Y: 0, W: 10, H: 10}, FaceConfidence: confidence(0.9)},
		{Embedding: []float64{2, 2}, FacialArea: facialArea{X: 30, Y: 0, W: 10, H: 10}, FaceConfidence: confidence(0.9)},
	})
	engine := NewEngine(testConfig(srv.URL), zap.NewNop())

	got, err := engine.Embed(context.Background(), testImage(t), facematch.Region{X: 31, Y: 0, Width: 10, Height: 10})

	require.NoError(t, err)
	assert.Equal(t, facematch.Embedding{2, 2}, got)
}

func TestEngine_EmbedWithoutOverlap(t *testing.T) {
	srv := serveRepresent(t, []representResult{
		{Embedding: []float64{1, 1}, FacialArea: facialArea{X: 0, Y: 0, W: 10, H: 10}, FaceConfidence: confidence(0.9)},
	})
	engine := NewEngine(testConfig(srv.URL), zap.NewNop())

	_, err := engine.Embed(context.Background(), testImage(t), facematch.Region{X: 40, Y: 30, Width: 10, Height: 10})

	assert.ErrorIs(t, err, facematch.ErrNoEmbedding)
}

func TestClient_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			http.Error(w, "warming up", http.StatusServiceUnavailable)
			return
		}
		_ = json.NewEncoder(w).Encode(representResponse{Results: []representResult{
			{Embedding: []float64{0.5}, FacialArea: facialArea{X: 1, Y: 1, W: 5, H: 5}, FaceConfidence: confidence(0.9)},
		}})
	}))
	defer srv.Close()

	engine := NewEngine(testConfig(srv.URL), zap.NewNop())
	regions, err := engine.Locate(context.Background(), testImage(t))

	require.NoError(t, err)
	assert.Len(t, regions, 1)
	assert.Equal(t, int32(3), calls.Load())
}

func TestClient_GivesUpAfterRetries(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "down", http.StatusInternalServerError)
	}))
	defer srv.Close()

	cfg := testConfig(srv.URL)
	cfg.RetryCount = 2
	engine := NewEngine(cfg, zap.NewNop())

	_, err := engine.Locate(context.Background(), testImage(t))

	assert.ErrorIs(t, err, ErrUnavailable)
	assert.Equal(t, int32(3), calls.Load())
}

func TestClient_DoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "bad model", http.StatusBadRequest)
	}))
	defer srv.Close()

	engine := NewEngine(testConfig(srv.URL), zap.NewNop())
	_, err := engine.Locate(context.Background(), testImage(t))

	var statusErr *StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusBadRequest, statusErr.Code)
	assert.Equal(t, int32(1), calls.Load())
}

func TestClient_InvalidResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("not json"))
	}))
	defer srv.Close()

	engine := NewEngine(testConfig(srv.URL), zap.NewNop())
	_, err := engine.Locate(context.Background(), testImage(t))

	assert.ErrorIs(t, err, ErrInvalidResponse)
}

func TestEngine_DrivesEvaluator(t *testing.T) {
	srv := serveRepresent(t, []representResult{
		{Embedding: []float64{0.1, 0.2, 0.3}, FacialArea: facialArea{X: 10, Y: 8, W: 30, H: 30}, FaceConfidence: confidence(0.99)},
	})
	engine := NewEngine(testConfig(srv.URL), zap.NewNop())
	evaluator := facematch.NewEvaluator(facematch.DefaultConfig(), engine, engine)

	img := testImage(t)
	res := evaluator.VerifyBytes(context.Background(), img.JPEG(), img.JPEG())

	assert.True(t, res.IsMatch())
	d, ok := res.Distance()
	require.True(t, ok)
	assert.InDelta(t, 0, d, 1e-9)
}
