package repository

import (
	"context"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/example/student-portal/internal/logging"
)

// UserRepository provides persistence APIs for student accounts.
type UserRepository struct {
	db             *gorm.DB
	logger         *zap.Logger
	retryAttempts  int
	initialBackoff time.Duration
	maxBackoff     time.Duration
}

// NewUserRepository creates a new repository instance.
func NewUserRepository(db *gorm.DB, logger *zap.Logger) *UserRepository {
	return &UserRepository{
		db:             db,
		logger:         logger.Named("user_repository"),
		retryAttempts:  defaultRetryAttempts,
		initialBackoff: defaultInitialBackoff,
		maxBackoff:     defaultMaxBackoff,
	}
}

// Create inserts user and fills in its id. Inserts are not retried.
func (r *UserRepository) Create(ctx context.Context, user *User) error {
	err := translate(r.db.WithContext(ctx).Create(user).Error)
	return logging.NewOperationError("repository.create_user", "", err)
}

// FindByEmail returns the user registered with email.
func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*User, error) {
	var user User
	err := r.executeWithRetry(ctx, "repository.find_user_by_email", "", func() error {
		return translate(r.db.WithContext(ctx).First(&user, "email = ?", email).Error)
	})
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// FindByID returns the user with the given id.
func (r *UserRepository) FindByID(ctx context.Context, id uint) (*User, error) {
	var user User
	err := r.executeWithRetry(ctx, "repository.find_user_by_id", "", func() error {
		return translate(r.db.WithContext(ctx).First(&user, "id = ?", id).Error)
	})
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// PictureSwap replaces the picture reference From with To. A nil From
// expects the user to have no picture yet.
type PictureSwap struct {
	From *string
	To   string
}

// UpdateProfile writes username and details. The picture column is only
// touched when swap is non-nil, and only if it still holds swap.From;
// otherwise nothing is written and ErrPictureChanged is returned.
func (r *UserRepository) UpdateProfile(ctx context.Context, id uint, username string, details StudentDetails, swap *PictureSwap) error {
	updates := details.columns()
	updates["username"] = username
	if swap != nil {
		updates["profile_picture"] = swap.To
	}

	return r.executeWithRetry(ctx, "repository.update_profile", "", func() error {
		query := r.db.WithContext(ctx).Model(&User{}).Where("id = ?", id)
		if swap == nil {
			return translate(query.Updates(updates).Error)
		}
		if swap.From == nil {
			query = query.Where("COALESCE(profile_picture, '') = ''")
		} else {
			query = query.Where("profile_picture = ?", *swap.From)
		}
		res := query.Updates(updates)
		if res.Error != nil {
			return translate(res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrPictureChanged
		}
		return nil
	})
}

// SetPicture replaces only the picture reference.
func (r *UserRepository) SetPicture(ctx context.Context, id uint, picture string) error {
	return r.executeWithRetry(ctx, "repository.set_picture", "", func() error {
		return translate(r.db.WithContext(ctx).Model(&User{}).Where("id = ?", id).Update("profile_picture", picture).Error)
	})
}

func (r *UserRepository) executeWithRetry(ctx context.Context, operation, requestID string, fn func() error) error {
	return runWithRetry(ctx, r.logger, r.retryAttempts, r.initialBackoff, r.maxBackoff, operation, requestID, fn)
}
