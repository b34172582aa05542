package usecase

import (
	"context"
	"errors"
	"io"

	"github.com/example/student-portal/internal/facematch"
	"github.com/example/student-portal/internal/repository"
)

var (
	ErrInvalidInput       = errors.New("invalid input")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrEmailTaken         = repository.ErrEmailTaken
	ErrNotFound           = repository.ErrNotFound
	ErrPictureChanged     = repository.ErrPictureChanged
)

// UserRepository defines the account persistence operations the use cases need.
type UserRepository interface {
	Create(ctx context.Context, user *repository.User) error
	FindByEmail(ctx context.Context, email string) (*repository.User, error)
	FindByID(ctx context.Context, id uint) (*repository.User, error)
	UpdateProfile(ctx context.Context, id uint, username string, details repository.StudentDetails, swap *repository.PictureSwap) error
	SetPicture(ctx context.Context, id uint, picture string) error
}

// VerificationRepository defines the verification log operations the use cases need.
type VerificationRepository interface {
	SaveLog(ctx context.Context, log *repository.VerificationLog) error
	FindByRequestIDAndUser(ctx context.Context, requestID string, userID uint) (*repository.VerificationLog, error)
	AggregateMetrics(ctx context.Context) (*repository.MetricsAggregation, error)
}

// FaceVerifier compares the faces behind two stored picture references.
type FaceVerifier interface {
	Verify(ctx context.Context, refA, refB string) facematch.Result
}

// Upload is a picture file received from a client.
type Upload struct {
	Filename string
	Data     io.Reader
}
