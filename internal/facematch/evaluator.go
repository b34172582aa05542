package facematch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"
)

// Evaluator compares the faces in two images. It holds no mutable state and
// may be shared between goroutines when its Locator and Embedder can be.
type Evaluator struct {
	cfg      Config
	locator  Locator
	embedder Embedder
	opener   ImageOpener
	logger   *zap.Logger
}

// Option customizes an Evaluator.
type Option func(*Evaluator)

// WithOpener sets how image references passed to Verify are resolved.
// The default is FileOpener{}.
func WithOpener(opener ImageOpener) Option {
	return func(e *Evaluator) { e.opener = opener }
}

// WithLogger attaches a logger for debug output.
func WithLogger(logger *zap.Logger) Option {
	return func(e *Evaluator) { e.logger = logger.Named("facematch") }
}

// NewEvaluator builds an evaluator around the given detection backends.
func NewEvaluator(cfg Config, locator Locator, embedder Embedder, opts ...Option) *Evaluator {
	e := &Evaluator{
		cfg:      cfg.normalized(),
		locator:  locator,
		embedder: embedder,
		opener:   FileOpener{},
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Config returns the configuration the evaluator was built with.
func (e *Evaluator) Config() Config { return e.cfg }

// Verify resolves both references and compares their faces. It never returns
// an error or panics; every failure is reported through the Result.
func (e *Evaluator) Verify(ctx context.Context, refA, refB string) (res Result) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			res = e.fail(InternalError, fmt.Sprintf("panic during verification: %v", r))
		}
		res = res.withElapsed(time.Since(start))
		e.trace(res)
	}()

	dataA, dataB, res, ok := e.load(ctx, refA, refB)
	if !ok {
		return res
	}
	return e.compare(ctx, dataA, dataB)
}

// VerifyBytes compares two in-memory images. Empty input counts as unreadable.
func (e *Evaluator) VerifyBytes(ctx context.Context, dataA, dataB []byte) (res Result) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			res = e.fail(InternalError, fmt.Sprintf("panic during verification: %v", r))
		}
		res = res.withElapsed(time.Since(start))
		e.trace(res)
	}()

	if len(dataA) == 0 || len(dataB) == 0 {
		return e.fail(FileNotFound, "image data is empty")
	}
	return e.compare(ctx, dataA, dataB)
}

// load opens both references before reading either, so a missing second
// image is reported without touching the first one's contents.
func (e *Evaluator) load(ctx context.Context, refA, refB string) ([]byte, []byte, Result, bool) {
	rcA, err := e.opener.Open(ctx, refA)
	if err != nil {
		return nil, nil, e.fail(FileNotFound, fmt.Sprintf("image not found: %s: %v", refA, err)), false
	}
	defer rcA.Close()

	rcB, err := e.opener.Open(ctx, refB)
	if err != nil {
		return nil, nil, e.fail(FileNotFound, fmt.Sprintf("image not found: %s: %v", refB, err)), false
	}
	defer rcB.Close()

	dataA, err := io.ReadAll(rcA)
	if err != nil {
		return nil, nil, e.fail(InternalError, fmt.Sprintf("read %s: %v", refA, err)), false
	}
	dataB, err := io.ReadAll(rcB)
	if err != nil {
		return nil, nil, e.fail(InternalError, fmt.Sprintf("read %s: %v", refB, err)), false
	}
	if len(dataA) == 0 || len(dataB) == 0 {
		return nil, nil, e.fail(FileNotFound, "image data is empty"), false
	}
	return dataA, dataB, Result{}, true
}

func (e *Evaluator) compare(ctx context.Context, dataA, dataB []byte) Result {
	imgA, err := Preprocess(dataA, e.cfg.MaxDimension)
	if err != nil {
		return e.fail(InternalError, fmt.Sprintf("first image: %v", err))
	}
	imgB, err := Preprocess(dataB, e.cfg.MaxDimension)
	if err != nil {
		return e.fail(InternalError, fmt.Sprintf("second image: %v", err))
	}

	regionsA, err := e.locator.Locate(ctx, imgA)
	if err != nil {
		return e.fail(InternalError, fmt.Sprintf("locate faces in first image: %v", err))
	}
	regionsB, err := e.locator.Locate(ctx, imgB)
	if err != nil {
		return e.fail(InternalError, fmt.Sprintf("locate faces in second image: %v", err)).
			withFaces(len(regionsA), 0)
	}
	countA, countB := len(regionsA), len(regionsB)

	if countA == 0 || countB == 0 {
		return e.fail(NoFaceDetected, "no faces detected").withFaces(countA, countB)
	}
	if e.cfg.RejectMultipleFaces && (countA > 1 || countB > 1) {
		return e.fail(MultipleFacesDetected, "more than one face detected").withFaces(countA, countB)
	}

	embeddingsA, err := e.embedAll(ctx, imgA, e.truncate(regionsA))
	if err != nil {
		return e.fail(InternalError, fmt.Sprintf("embed first image: %v", err)).withFaces(countA, countB)
	}
	embeddingsB, err := e.embedAll(ctx, imgB, e.truncate(regionsB))
	if err != nil {
		return e.fail(InternalError, fmt.Sprintf("embed second image: %v", err)).withFaces(countA, countB)
	}
	if len(embeddingsA) == 0 || len(embeddingsB) == 0 {
		return e.fail(EncodingFailed, "could not generate face encodings").withFaces(countA, countB)
	}

	distance, err := EuclideanDistance(embeddingsA[0], embeddingsB[0])
	if err != nil {
		return e.fail(InternalError, err.Error()).withFaces(countA, countB)
	}
	return Decide(distance, e.cfg.Threshold).withFaces(countA, countB)
}

func (e *Evaluator) truncate(regions []Region) []Region {
	if len(regions) > e.cfg.MaxFaces {
		return regions[:e.cfg.MaxFaces]
	}
	return regions
}

func (e *Evaluator) embedAll(ctx context.Context, img *Image, regions []Region) ([]Embedding, error) {
	out := make([]Embedding, 0, len(regions))
	for _, region := range regions {
		embedding, err := e.embedder.Embed(ctx, img, region)
		if errors.Is(err, ErrNoEmbedding) {
			continue
		}
		if err != nil {
			return nil, err
		}
		if len(embedding) == 0 {
			continue
		}
		out = append(out, embedding)
	}
	return out, nil
}

func (e *Evaluator) fail(kind ErrorKind, message string) Result {
	return failed(kind, message, e.cfg.Threshold)
}

func (e *Evaluator) trace(res Result) {
	fields := []zap.Field{
		zap.Stringer("outcome", res.Outcome()),
		zap.Duration("elapsed", res.ProcessingTime()),
	}
	if d, ok := res.Distance(); ok {
		fields = append(fields, zap.Float64("distance", d))
	}
	if res.ErrorKind() != NoError {
		fields = append(fields, zap.String("error_kind", string(res.ErrorKind())), zap.String("message", res.Message()))
	}
	e.logger.Debug("face verification finished", fields...)
}
