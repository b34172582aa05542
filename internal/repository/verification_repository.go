package repository

import (
	"context"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/example/student-portal/internal/logging"
)

// VerificationRepository provides persistence APIs for verification logs.
type VerificationRepository struct {
	db             *gorm.DB
	logger         *zap.Logger
	retryAttempts  int
	initialBackoff time.Duration
	maxBackoff     time.Duration
}

// NewVerificationRepository creates a new repository instance.
func NewVerificationRepository(db *gorm.DB, logger *zap.Logger) *VerificationRepository {
	return &VerificationRepository{
		db:             db,
		logger:         logger.Named("verification_repository"),
		retryAttempts:  defaultRetryAttempts,
		initialBackoff: defaultInitialBackoff,
		maxBackoff:     defaultMaxBackoff,
	}
}

// SaveLog persists a verification log entry.
func (r *VerificationRepository) SaveLog(ctx context.Context, log *VerificationLog) error {
	err := r.db.WithContext(ctx).Create(log).Error
	return logging.NewOperationError("repository.save_log", log.RequestID, err)
}

// FindByRequestIDAndUser retrieves a verification log matching the request and owner.
func (r *VerificationRepository) FindByRequestIDAndUser(ctx context.Context, requestID string, userID uint) (*VerificationLog, error) {
	var log VerificationLog
	err := r.executeWithRetry(ctx, "repository.find_log", requestID, func() error {
		return translate(r.db.WithContext(ctx).First(&log, "request_id = ? AND user_id = ?", requestID, userID).Error)
	})
	if err != nil {
		return nil, err
	}
	return &log, nil
}

// AggregateMetrics rolls up every persisted log. The distance average only
// covers attempts that produced a distance.
func (r *VerificationRepository) AggregateMetrics(ctx context.Context) (*MetricsAggregation, error) {
	var agg MetricsAggregation
	err := r.executeWithRetry(ctx, "repository.aggregate_metrics", "", func() error {
		return r.db.WithContext(ctx).
			Model(&VerificationLog{}).
			Select(`COUNT(*) AS total_count,
				COALESCE(SUM(CASE WHEN is_match THEN 1 ELSE 0 END), 0) AS matched_count,
				COALESCE(AVG(distance), 0) AS average_distance,
				COALESCE(AVG(processing_ms), 0) AS average_processing_ms`).
			Scan(&agg).Error
	})
	if err != nil {
		return nil, err
	}
	return &agg, nil
}

func (r *VerificationRepository) executeWithRetry(ctx context.Context, operation, requestID string, fn func() error) error {
	return runWithRetry(ctx, r.logger, r.retryAttempts, r.initialBackoff, r.maxBackoff, operation, requestID, fn)
}
