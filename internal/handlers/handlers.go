package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/example/student-portal/internal/auth"
	"github.com/example/student-portal/internal/logging"
	"github.com/example/student-portal/internal/repository"
	"github.com/example/student-portal/internal/usecase"
)

// AccountService is the account use case as seen by the handlers.
type AccountService interface {
	Register(ctx context.Context, in usecase.RegisterInput) (*repository.User, error)
	Authenticate(ctx context.Context, email, password string) (*repository.User, error)
	Profile(ctx context.Context, userID uint) (*repository.User, error)
}

// ProfileService is the profile use case as seen by the handlers.
type ProfileService interface {
	UpdateProfile(ctx context.Context, userID uint, in usecase.UpdateInput) (*usecase.UpdateOutcome, error)
	GetVerification(ctx context.Context, userID uint, requestID string) (*usecase.Verification, error)
	GetMetricsSummary(ctx context.Context) (*usecase.MetricsSummary, error)
}

// PictureURLs turns stored picture references into public URLs.
type PictureURLs interface {
	URL(ref string) string
}

// Deps holds everything the routes need.
type Deps struct {
	Accounts      AccountService
	Profiles      ProfileService
	Pictures      PictureURLs
	Tokens        *auth.Tokens
	Revoker       auth.Revoker
	Auth          gin.HandlerFunc
	Logger        *zap.Logger
	SecureCookies bool
	// StaticDir is served under /static/profile_pictures when set.
	StaticDir string
}

type api struct {
	Deps
}

// RegisterRoutes wires the HTTP handlers to the Gin router.
func RegisterRoutes(router *gin.Engine, deps Deps) {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	a := &api{Deps: deps}

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if deps.StaticDir != "" {
		router.Static("/static/profile_pictures", deps.StaticDir)
	}

	router.POST("/register", a.register)
	router.POST("/login", a.login)

	authed := router.Group("/", deps.Auth)
	authed.POST("/logout", a.logout)
	authed.GET("/dashboard", a.dashboard)
	authed.POST("/profile", a.updateProfile)
	authed.GET("/profile/verifications/:id", a.getVerification)
	authed.GET("/metrics/verifications", a.metrics)
}

func (a *api) register(c *gin.Context) {
	if err := parseForm(c); err != nil {
		writeUploadError(c, err)
		return
	}
	var form registerForm
	if err := decodeForm(&form, c.Request.PostForm); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	details, err := form.Details()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	picture, err := readPicture(c)
	if err != nil {
		writeUploadError(c, err)
		return
	}

	user, err := a.Accounts.Register(c.Request.Context(), usecase.RegisterInput{
		Email:    form.Email,
		Username: form.Username,
		Password: form.Password,
		Details:  details,
		Picture:  picture,
	})
	switch {
	case errors.Is(err, usecase.ErrInvalidInput):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	case errors.Is(err, usecase.ErrEmailTaken):
		c.JSON(http.StatusConflict, gin.H{"error": "email already registered"})
		return
	case err != nil:
		a.internalError(c, "register failed", err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"message": "registration successful", "user": a.userView(user)})
}

func (a *api) login(c *gin.Context) {
	if err := parseForm(c); err != nil {
		writeUploadError(c, err)
		return
	}
	var form loginForm
	if err := decodeForm(&form, c.Request.PostForm); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user, err := a.Accounts.Authenticate(c.Request.Context(), form.Email, form.Password)
	if errors.Is(err, usecase.ErrInvalidCredentials) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid email or password"})
		return
	}
	if err != nil {
		a.internalError(c, "login failed", err)
		return
	}

	token, session, err := a.Tokens.Issue(user.ID)
	if err != nil {
		a.internalError(c, "issue token failed", err)
		return
	}
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(auth.SessionCookie, token, int(a.Tokens.TTL().Seconds()), "/", "", a.SecureCookies, true)
	c.JSON(http.StatusOK, gin.H{
		"token":      token,
		"expires_at": session.ExpiresAt,
		"user":       a.userView(user),
	})
}

func (a *api) logout(c *gin.Context) {
	session, ok := auth.GetSession(c.Request.Context())
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "login required"})
		return
	}
	if a.Revoker != nil {
		if err := a.Revoker.Revoke(c.Request.Context(), session.TokenID, time.Until(session.ExpiresAt)); err != nil {
			a.internalError(c, "revoke session failed", err)
			return
		}
	}
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(auth.SessionCookie, "", -1, "/", "", a.SecureCookies, true)
	c.JSON(http.StatusOK, gin.H{"message": "logged out"})
}

func (a *api) dashboard(c *gin.Context) {
	userID, _ := auth.GetUserID(c.Request.Context())
	user, err := a.Accounts.Profile(c.Request.Context(), userID)
	if errors.Is(err, usecase.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
		return
	}
	if err != nil {
		a.internalError(c, "load profile failed", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": a.userView(user)})
}

func (a *api) updateProfile(c *gin.Context) {
	if err := parseForm(c); err != nil {
		writeUploadError(c, err)
		return
	}
	var form profileForm
	if err := decodeForm(&form, c.Request.PostForm); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	details, err := form.Details()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	picture, err := readPicture(c)
	if err != nil {
		writeUploadError(c, err)
		return
	}

	userID, _ := auth.GetUserID(c.Request.Context())
	out, err := a.Profiles.UpdateProfile(c.Request.Context(), userID, usecase.UpdateInput{
		Username: form.Username,
		Details:  details,
		Picture:  picture,
	})
	var rejection *usecase.RejectionError
	switch {
	case errors.As(err, &rejection):
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"error":      usecase.UserMessage(rejection.Result),
			"request_id": rejection.RequestID,
			"result":     rejection.Result,
		})
		return
	case errors.Is(err, usecase.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
		return
	case errors.Is(err, usecase.ErrPictureChanged):
		c.JSON(http.StatusConflict, gin.H{"error": "profile picture was changed by another request, please try again"})
		return
	case err != nil:
		a.internalError(c, "update profile failed", err)
		return
	}

	resp := gin.H{"message": "profile updated", "user": a.userView(out.User)}
	if out.Verification != nil {
		resp["verification"] = out.Verification
	}
	c.JSON(http.StatusOK, resp)
}

func (a *api) getVerification(c *gin.Context) {
	requestID := c.Param("id")
	if requestID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "id is required"})
		return
	}

	userID, _ := auth.GetUserID(c.Request.Context())
	v, err := a.Profiles.GetVerification(c.Request.Context(), userID, requestID)
	if errors.Is(err, usecase.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "verification not found"})
		return
	}
	if err != nil {
		a.internalError(c, "load verification failed", err)
		return
	}
	c.JSON(http.StatusOK, v)
}

func (a *api) metrics(c *gin.Context) {
	summary, err := a.Profiles.GetMetricsSummary(c.Request.Context())
	if err != nil {
		a.internalError(c, "load metrics failed", err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

func (a *api) internalError(c *gin.Context, msg string, err error) {
	_ = c.Error(err)
	fields := []zap.Field{zap.Error(err)}
	if op, ok := logging.OperationOf(err); ok {
		fields = append(fields, zap.String("operation", op))
	}
	a.Logger.Error(msg, fields...)
	c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
}

type userView struct {
	ID                uint   `json:"id"`
	Email             string `json:"email"`
	Username          string `json:"username"`
	ProfilePictureURL string `json:"profile_picture_url,omitempty"`
	repository.StudentDetails
}

func (a *api) userView(u *repository.User) userView {
	view := userView{
		ID:             u.ID,
		Email:          u.Email,
		Username:       u.Username,
		StudentDetails: u.StudentDetails,
	}
	if u.HasPicture() && a.Pictures != nil {
		view.ProfilePictureURL = a.Pictures.URL(*u.ProfilePicture)
	}
	return view
}
