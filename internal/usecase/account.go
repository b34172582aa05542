package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/example/student-portal/internal/auth"
	"github.com/example/student-portal/internal/logging"
	"github.com/example/student-portal/internal/repository"
	"github.com/example/student-portal/internal/storage"
)

// RegisterInput is the data collected by the registration form.
type RegisterInput struct {
	Email    string
	Username string
	Password string
	Details  repository.StudentDetails
	Picture  *Upload
}

// AccountUseCase handles registration and login.
type AccountUseCase struct {
	users  UserRepository
	store  storage.Storage
	logger *zap.Logger
}

// NewAccountUseCase constructs a new use case instance.
func NewAccountUseCase(users UserRepository, store storage.Storage, logger *zap.Logger) *AccountUseCase {
	return &AccountUseCase{
		users:  users,
		store:  store,
		logger: logger.Named("account_usecase"),
	}
}

// Register creates the account. A registration picture is accepted without
// any face check; if storing it fails the account is still created.
func (uc *AccountUseCase) Register(ctx context.Context, in RegisterInput) (*repository.User, error) {
	in.Email = strings.TrimSpace(strings.ToLower(in.Email))
	in.Username = strings.TrimSpace(in.Username)
	switch {
	case in.Email == "":
		return nil, fmt.Errorf("%w: email is required", ErrInvalidInput)
	case in.Username == "":
		return nil, fmt.Errorf("%w: username is required", ErrInvalidInput)
	case in.Password == "":
		return nil, fmt.Errorf("%w: password is required", ErrInvalidInput)
	}

	if _, err := uc.users.FindByEmail(ctx, in.Email); err == nil {
		return nil, ErrEmailTaken
	} else if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return nil, logging.NewOperationError("usecase.hash_password", "", err)
	}

	user := &repository.User{
		Email:          in.Email,
		Username:       in.Username,
		PasswordHash:   hash,
		StudentDetails: in.Details,
	}
	if err := uc.users.Create(ctx, user); err != nil {
		return nil, err
	}

	if in.Picture != nil {
		uc.attachPicture(ctx, user, in.Picture)
	}
	return user, nil
}

func (uc *AccountUseCase) attachPicture(ctx context.Context, user *repository.User, picture *Upload) {
	opLogger := uc.logger.With(zap.Uint("user_id", user.ID))

	ref, err := uc.store.Save(ctx, picture.Data, storage.PictureName(user.ID, picture.Filename))
	if err != nil {
		opLogger.Error("failed to store registration picture", zap.Error(err))
		return
	}
	if err := uc.users.SetPicture(ctx, user.ID, ref); err != nil {
		opLogger.Error("failed to record registration picture", zap.Error(err))
		if delErr := uc.store.Delete(ctx, ref); delErr != nil {
			opLogger.Warn("failed to remove orphaned picture", zap.String("ref", ref), zap.Error(delErr))
		}
		return
	}
	user.ProfilePicture = &ref
}

// Authenticate returns the user when email and password match.
func (uc *AccountUseCase) Authenticate(ctx context.Context, email, password string) (*repository.User, error) {
	user, err := uc.users.FindByEmail(ctx, strings.TrimSpace(strings.ToLower(email)))
	if errors.Is(err, ErrNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}

	ok, err := auth.CheckPassword(user.PasswordHash, password)
	if err != nil {
		uc.logger.Error("stored password hash unreadable", zap.Uint("user_id", user.ID), zap.Error(err))
		return nil, ErrInvalidCredentials
	}
	if !ok {
		return nil, ErrInvalidCredentials
	}
	return user, nil
}

// Profile returns the user with the given id.
func (uc *AccountUseCase) Profile(ctx context.Context, userID uint) (*repository.User, error) {
	return uc.users.FindByID(ctx, userID)
}
