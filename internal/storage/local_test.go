package storage

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"photo.jpg", "photo.jpg"},
		{"my photo.png", "my_photo.png"},
		{"../../etc/passwd", "etc_passwd"},
		{`C:\Users\me\face.gif`, "C_Users_me_face.gif"},
		{".hidden.jpeg", "hidden.jpeg"},
		{"résumé.jpg", "rsum.jpg"},
		{"...", ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, SanitizeFilename(tt.in))
		})
	}
}

func TestNames(t *testing.T) {
	assert.Equal(t, "7_face.png", PictureName(7, "face.png"))

	candidate := CandidateName(7, "face.png")
	parts := strings.SplitN(candidate, "_", 3)
	require.Len(t, parts, 3)
	assert.Equal(t, "7", parts[0])
	assert.Len(t, parts[1], 8)
	assert.Equal(t, "face.png", parts[2])
	assert.NotEqual(t, candidate, CandidateName(7, "face.png"))
}

func newLocal(t *testing.T) *LocalStorage {
	t.Helper()
	s, err := NewLocalStorage(filepath.Join(t.TempDir(), "pictures"), "/static/profile_pictures/")
	require.NoError(t, err)
	return s
}

func TestLocalStorage_SaveOpenDelete(t *testing.T) {
	s := newLocal(t)
	ctx := context.Background()

	ref, err := s.Save(ctx, strings.NewReader("image-bytes"), "1_me.png")
	require.NoError(t, err)
	assert.Equal(t, "1_me.png", ref)
	assert.Equal(t, "/static/profile_pictures/1_me.png", s.URL(ref))

	rc, err := s.Open(ctx, ref)
	require.NoError(t, err)
	data, err := io.ReadAll(rc)
	require.NoError(t, rc.Close())
	require.NoError(t, err)
	assert.Equal(t, "image-bytes", string(data))

	require.NoError(t, s.Delete(ctx, ref))
	_, err = os.Stat(filepath.Join(s.Root(), ref))
	assert.True(t, os.IsNotExist(err))

	assert.NoError(t, s.Delete(ctx, ref), "deleting a missing file is not an error")
}

func TestLocalStorage_SaveNeverOverwrites(t *testing.T) {
	s := newLocal(t)
	ctx := context.Background()

	_, err := s.Save(ctx, strings.NewReader("first"), "1_me.png")
	require.NoError(t, err)
	_, err = s.Save(ctx, strings.NewReader("second"), "1_me.png")
	require.Error(t, err)

	data, err := os.ReadFile(filepath.Join(s.Root(), "1_me.png"))
	require.NoError(t, err)
	assert.Equal(t, "first", string(data))
}

func TestLocalStorage_SaveSanitizes(t *testing.T) {
	s := newLocal(t)

	ref, err := s.Save(context.Background(), strings.NewReader("x"), "../escape.png")
	require.NoError(t, err)
	assert.Equal(t, "escape.png", ref)
	_, err = os.Stat(filepath.Join(s.Root(), "escape.png"))
	assert.NoError(t, err)

	_, err = s.Save(context.Background(), strings.NewReader("x"), "..")
	assert.ErrorIs(t, err, ErrInvalidName)
}

func TestLocalStorage_Open(t *testing.T) {
	s := newLocal(t)

	_, err := s.Open(context.Background(), "missing.png")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = s.Open(context.Background(), "../secret")
	assert.ErrorIs(t, err, ErrInvalidName)
}
