package usecase

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"
	"go.uber.org/zap"

	"github.com/example/student-portal/internal/facematch"
	"github.com/example/student-portal/internal/logging"
	"github.com/example/student-portal/internal/repository"
	"github.com/example/student-portal/internal/storage"
)

// UpdateInput is the data collected by the profile form.
type UpdateInput struct {
	Username string
	Details  repository.StudentDetails
	Picture  *Upload
}

// UpdateOutcome describes an accepted profile update. Verification is nil
// when no face check was needed.
type UpdateOutcome struct {
	User         *repository.User
	Verification *Verification
}

// Verification is the stored view of one face check.
type Verification struct {
	RequestID    string    `json:"request_id"`
	UserID       uint      `json:"user_id"`
	Outcome      string    `json:"outcome"`
	IsMatch      bool      `json:"is_match"`
	Distance     *float64  `json:"distance"`
	Threshold    float64   `json:"threshold"`
	ErrorKind    string    `json:"error_kind,omitempty"`
	Message      string    `json:"message"`
	ProcessingMs float64   `json:"processing_ms"`
	CreatedAt    time.Time `json:"created_at"`
}

func newVerification(requestID string, userID uint, res facematch.Result, at time.Time) *Verification {
	v := &Verification{
		RequestID:    requestID,
		UserID:       userID,
		Outcome:      res.Outcome().String(),
		IsMatch:      res.IsMatch(),
		Threshold:    res.Threshold(),
		ErrorKind:    string(res.ErrorKind()),
		Message:      UserMessage(res),
		ProcessingMs: float64(res.ProcessingTime()) / float64(time.Millisecond),
		CreatedAt:    at,
	}
	if d, ok := res.Distance(); ok {
		v.Distance = &d
	}
	return v
}

func verificationFromLog(log *repository.VerificationLog) *Verification {
	return &Verification{
		RequestID:    log.RequestID,
		UserID:       log.UserID,
		Outcome:      log.Outcome,
		IsMatch:      log.IsMatch,
		Distance:     log.Distance,
		Threshold:    log.Threshold,
		ErrorKind:    log.ErrorKind,
		Message:      log.Message,
		ProcessingMs: log.ProcessingMs,
		CreatedAt:    log.CreatedAt,
	}
}

func (v *Verification) toLog() *repository.VerificationLog {
	return &repository.VerificationLog{
		RequestID:    v.RequestID,
		UserID:       v.UserID,
		Outcome:      v.Outcome,
		IsMatch:      v.IsMatch,
		Distance:     v.Distance,
		Threshold:    v.Threshold,
		ErrorKind:    v.ErrorKind,
		Message:      v.Message,
		ProcessingMs: v.ProcessingMs,
		CreatedAt:    v.CreatedAt,
	}
}

// ProfileUseCase handles profile edits, including face checked picture changes.
type ProfileUseCase struct {
	users          UserRepository
	logs           VerificationRepository
	store          storage.Storage
	verifier       FaceVerifier
	cache          Cache
	logger         *zap.Logger
	retryAttempts  int
	initialBackoff time.Duration
	maxBackoff     time.Duration
}

// NewProfileUseCase constructs a new use case instance.
func NewProfileUseCase(users UserRepository, logs VerificationRepository, store storage.Storage, verifier FaceVerifier, cache Cache, logger *zap.Logger) *ProfileUseCase {
	return &ProfileUseCase{
		users:          users,
		logs:           logs,
		store:          store,
		verifier:       verifier,
		cache:          cache,
		logger:         logger.Named("profile_usecase"),
		retryAttempts:  3,
		initialBackoff: 50 * time.Millisecond,
		maxBackoff:     time.Second,
	}
}

// UpdateProfile saves the form. A new picture replaces the current one only
// if it shows the same person; otherwise nothing is saved and a
// *RejectionError is returned. A user without a picture gets the upload as
// their first picture.
func (uc *ProfileUseCase) UpdateProfile(ctx context.Context, userID uint, in UpdateInput) (*UpdateOutcome, error) {
	user, err := uc.users.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	username := strings.TrimSpace(in.Username)
	if username == "" {
		username = user.Username
	}

	if in.Picture == nil {
		if err := uc.users.UpdateProfile(ctx, userID, username, in.Details, nil); err != nil {
			return nil, err
		}
		return uc.reload(ctx, userID, nil)
	}

	candidate, err := uc.store.Save(ctx, in.Picture.Data, storage.CandidateName(userID, in.Picture.Filename))
	if err != nil {
		return nil, logging.NewOperationError("usecase.stage_picture", "", err)
	}

	if !user.HasPicture() {
		if err := uc.users.UpdateProfile(ctx, userID, username, in.Details, &repository.PictureSwap{To: candidate}); err != nil {
			uc.discard(ctx, candidate)
			return nil, err
		}
		return uc.reload(ctx, userID, nil)
	}

	requestID := uuid.NewString()
	opLogger := logging.WithOperation(uc.logger, "usecase.update_profile", requestID)
	current := *user.ProfilePicture

	result := uc.verifier.Verify(ctx, current, candidate)
	verification := newVerification(requestID, userID, result, time.Now().UTC())
	uc.record(ctx, verification)

	if !result.IsMatch() {
		countA, countB := result.FaceCounts()
		opLogger.Info("profile picture rejected",
			zap.Stringer("outcome", result.Outcome()),
			zap.String("error_kind", string(result.ErrorKind())),
			zap.String("message", result.Message()),
			zap.Int("faces_current", countA),
			zap.Int("faces_candidate", countB))
		uc.discard(ctx, candidate)
		return nil, &RejectionError{RequestID: requestID, Result: result}
	}

	swap := &repository.PictureSwap{From: &current, To: candidate}
	if err := uc.users.UpdateProfile(ctx, userID, username, in.Details, swap); err != nil {
		if errors.Is(err, ErrPictureChanged) {
			opLogger.Warn("profile picture changed during verification", zap.String("candidate", candidate))
		}
		uc.discard(ctx, candidate)
		return nil, err
	}
	if current != candidate {
		uc.discard(ctx, current)
	}
	return uc.reload(ctx, userID, verification)
}

func (uc *ProfileUseCase) reload(ctx context.Context, userID uint, verification *Verification) (*UpdateOutcome, error) {
	user, err := uc.users.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &UpdateOutcome{User: user, Verification: verification}, nil
}

// discard removes a stored picture, logging rather than failing.
func (uc *ProfileUseCase) discard(ctx context.Context, ref string) {
	if err := uc.store.Delete(ctx, ref); err != nil {
		uc.logger.Warn("failed to delete picture", zap.String("ref", ref), zap.Error(err))
	}
}

// record persists and caches a verification. The profile decision has
// already been made, so failures are only logged.
func (uc *ProfileUseCase) record(ctx context.Context, v *Verification) {
	opLogger := logging.WithOperation(uc.logger, "usecase.record_verification", v.RequestID)

	if err := uc.logs.SaveLog(ctx, v.toLog()); err != nil {
		opLogger.Error("failed to persist verification log", zap.Error(err))
	}

	if err := uc.cacheVerification(ctx, v); err != nil {
		opLogger.Error("failed to cache verification result", zap.Error(err))
	}
}

// GetVerification returns a verification owned by userID, from the cache
// when possible.
func (uc *ProfileUseCase) GetVerification(ctx context.Context, userID uint, requestID string) (*Verification, error) {
	opLogger := logging.WithOperation(uc.logger, "usecase.get_verification", requestID)

	cached, err := uc.cachedVerification(ctx, requestID)
	switch {
	case err == nil && cached.UserID != userID:
		return nil, ErrNotFound
	case err == nil:
		return cached, nil
	case !errors.Is(err, redis.Nil):
		opLogger.Warn("failed to read cached verification", zap.Error(err))
	}

	log, err := uc.logs.FindByRequestIDAndUser(ctx, requestID, userID)
	if err != nil {
		return nil, err
	}
	return verificationFromLog(log), nil
}

func (uc *ProfileUseCase) withRedisRetry(ctx context.Context, requestID, operation string, fn func() error) error {
	if uc.retryAttempts <= 1 {
		return logging.NewOperationError(operation, requestID, fn())
	}

	backoff := retry.NewExponential(uc.initialBackoff)
	backoff = retry.WithCappedDuration(uc.maxBackoff, backoff)
	backoff = retry.WithMaxRetries(uint64(uc.retryAttempts-1), backoff)

	opLogger := logging.WithOperation(uc.logger, operation, requestID)
	attempt := 0
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		err := fn()
		if err == nil {
			if attempt > 1 {
				opLogger.Info("redis operation succeeded after retry", zap.Int("attempt", attempt))
			}
			return nil
		}
		if !isTransientError(err) {
			return err
		}
		opLogger.Warn("transient redis error", zap.Error(err), zap.Int("attempt", attempt))
		return retry.RetryableError(err)
	})
	if err != nil && !errors.Is(err, redis.Nil) {
		opLogger.Error("redis operation failed", zap.Error(err), zap.Int("attempt", attempt))
	}
	return logging.NewOperationError(operation, requestID, err)
}

func (uc *ProfileUseCase) withRedisGet(ctx context.Context, requestID, operation, cacheKey string) (string, error) {
	var result string
	err := uc.withRedisRetry(ctx, requestID, operation, func() error {
		value, err := uc.cache.Get(ctx, cacheKey)
		if err != nil {
			return err
		}
		result = value
		return nil
	})
	if err != nil {
		return "", err
	}
	return result, nil
}

func isTransientError(err error) bool {
	if err == nil || errors.Is(err, redis.Nil) {
		return false
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var netErr interface{ Timeout() bool }
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	var temporary interface{ Temporary() bool }
	if errors.As(err, &temporary) && temporary.Temporary() {
		return true
	}

	return false
}
