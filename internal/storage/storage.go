// Package storage keeps uploaded profile pictures.
package storage

import (
	"context"
	"errors"
	"io"
	"regexp"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

var (
	ErrNotFound    = errors.New("stored file not found")
	ErrInvalidName = errors.New("invalid file name")
)

// Storage saves and retrieves picture files by reference. A reference is
// whatever Save returned; callers treat it as opaque.
type Storage interface {
	Save(ctx context.Context, r io.Reader, name string) (string, error)
	Open(ctx context.Context, ref string) (io.ReadCloser, error)
	Delete(ctx context.Context, ref string) error
	URL(ref string) string
}

var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9_.-]`)

// SanitizeFilename reduces name to a flat, portable file name: separators
// become underscores, anything outside [A-Za-z0-9_.-] is dropped and leading
// or trailing dots and underscores are trimmed. The result may be empty.
func SanitizeFilename(name string) string {
	name = strings.NewReplacer("/", " ", "\\", " ").Replace(name)
	name = strings.Join(strings.Fields(name), "_")
	name = unsafeChars.ReplaceAllString(name, "")
	return strings.Trim(name, "._")
}

// PictureName is the name of a picture accepted at registration.
func PictureName(userID uint, filename string) string {
	return joinName(userID, "", filename)
}

// CandidateName is the name of a picture staged for verification. The random
// part keeps it from colliding with the current picture.
func CandidateName(userID uint, filename string) string {
	return joinName(userID, uuid.NewString()[:8], filename)
}

func joinName(userID uint, tag, filename string) string {
	parts := []string{strconv.FormatUint(uint64(userID), 10)}
	if tag != "" {
		parts = append(parts, tag)
	}
	parts = append(parts, SanitizeFilename(filename))
	return strings.Join(parts, "_")
}
