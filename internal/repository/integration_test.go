//go:build integration

package repository

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func setupPostgres(t *testing.T) *gorm.DB {
	t.Helper()
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "postgres:16-alpine",
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_USER":     "test",
				"POSTGRES_PASSWORD": "test",
				"POSTGRES_DB":       "portal",
			},
			WaitingFor: wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		t.Skipf("docker not available, skipping integration test: %v", err)
	}
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "5432")
	require.NoError(t, err)

	dsn := fmt.Sprintf("host=%s port=%s user=test password=test dbname=portal sslmode=disable", host, port.Port())
	db, err := Open(ctx, DriverPostgres, dsn, false, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, Migrate(ctx, db, zap.NewNop()))
	return db
}

func TestPostgresRoundTrip(t *testing.T) {
	db := setupPostgres(t)
	ctx := context.Background()
	users := NewUserRepository(db, zap.NewNop())
	logs := NewVerificationRepository(db, zap.NewNop())

	pct := 88.4
	user := &User{
		Email:          "asha@example.com",
		Username:       "asha",
		PasswordHash:   "hash",
		StudentDetails: StudentDetails{StudentName: "Asha Rao", HighSchoolPercentage: &pct},
	}
	require.NoError(t, users.Create(ctx, user))
	require.NotZero(t, user.ID)

	err := users.Create(ctx, &User{Email: "asha@example.com", Username: "other", PasswordHash: "x"})
	assert.ErrorIs(t, err, ErrEmailTaken)

	picture := fmt.Sprintf("%d_me.png", user.ID)
	require.NoError(t, users.UpdateProfile(ctx, user.ID, "asha_r", StudentDetails{StudentName: "Asha R", Course: "MCA"}, &PictureSwap{To: picture}))
	stale := "stale.png"
	err = users.UpdateProfile(ctx, user.ID, "asha_r", StudentDetails{}, &PictureSwap{From: &stale, To: "other.png"})
	assert.ErrorIs(t, err, ErrPictureChanged)

	found, err := users.FindByEmail(ctx, "asha@example.com")
	require.NoError(t, err)
	assert.Equal(t, "asha_r", found.Username)
	assert.Equal(t, "MCA", found.Course)
	assert.Nil(t, found.HighSchoolPercentage)
	require.True(t, found.HasPicture())
	assert.Equal(t, picture, *found.ProfilePicture)

	_, err = users.FindByID(ctx, user.ID+1000)
	assert.ErrorIs(t, err, ErrNotFound)

	d1, d2 := 0.3, 0.9
	require.NoError(t, logs.SaveLog(ctx, &VerificationLog{RequestID: "r1", UserID: user.ID, Outcome: "matched", IsMatch: true, Distance: &d1, Threshold: 0.6, ProcessingMs: 100}))
	require.NoError(t, logs.SaveLog(ctx, &VerificationLog{RequestID: "r2", UserID: user.ID, Outcome: "not_matched", Distance: &d2, Threshold: 0.6, ProcessingMs: 200}))
	require.NoError(t, logs.SaveLog(ctx, &VerificationLog{RequestID: "r3", UserID: user.ID, Outcome: "failed", ErrorKind: "NoFaceDetected", Threshold: 0.6, ProcessingMs: 300}))

	agg, err := logs.AggregateMetrics(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), agg.TotalCount)
	assert.Equal(t, int64(1), agg.MatchedCount)
	assert.InDelta(t, 0.6, agg.AverageDistance, 1e-9)
	assert.InDelta(t, 200, agg.AverageProcessingMs, 1e-9)

	_, err = logs.FindByRequestIDAndUser(ctx, "r1", user.ID+1)
	assert.ErrorIs(t, err, ErrNotFound)
}
