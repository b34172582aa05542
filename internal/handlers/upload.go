package handlers

import (
	"bytes"
	"errors"
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/example/student-portal/internal/usecase"
)

// MaxUploadSize is the largest accepted picture.
const MaxUploadSize = 10 << 20

// formOverhead is room for the non-file fields of a multipart form.
const formOverhead = 1 << 20

const pictureField = "profile_picture"

var allowedExtensions = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".gif":  true,
}

type uploadError struct {
	status  int
	message string
}

func (e *uploadError) Error() string { return e.message }

// parseForm reads a multipart or urlencoded body, capping its size.
func parseForm(c *gin.Context) error {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, MaxUploadSize+formOverhead)

	var err error
	if strings.HasPrefix(c.ContentType(), "multipart/") {
		err = c.Request.ParseMultipartForm(MaxUploadSize)
	} else {
		err = c.Request.ParseForm()
	}
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		return &uploadError{status: http.StatusRequestEntityTooLarge, message: "upload too large"}
	}
	if err != nil {
		return &uploadError{status: http.StatusBadRequest, message: "invalid form"}
	}
	return nil
}

// readPicture returns the uploaded picture, or nil when none was sent.
func readPicture(c *gin.Context) (*usecase.Upload, error) {
	if c.Request.MultipartForm == nil {
		return nil, nil
	}
	file, err := c.FormFile(pictureField)
	if errors.Is(err, http.ErrMissingFile) {
		return nil, nil
	}
	if err != nil {
		return nil, &uploadError{status: http.StatusBadRequest, message: "unable to read upload"}
	}
	if file.Size == 0 {
		return nil, nil
	}
	if file.Size > MaxUploadSize {
		return nil, &uploadError{status: http.StatusRequestEntityTooLarge, message: "upload too large"}
	}
	if !allowedExtensions[strings.ToLower(filepath.Ext(file.Filename))] {
		return nil, &uploadError{status: http.StatusUnsupportedMediaType, message: "allowed picture types are png, jpg, jpeg and gif"}
	}

	src, err := file.Open()
	if err != nil {
		return nil, &uploadError{status: http.StatusBadRequest, message: "unable to open upload"}
	}
	defer src.Close()

	data, err := io.ReadAll(io.LimitReader(src, MaxUploadSize+1))
	if err != nil {
		return nil, &uploadError{status: http.StatusInternalServerError, message: "failed to read upload"}
	}
	if !strings.HasPrefix(http.DetectContentType(data), "image/") {
		return nil, &uploadError{status: http.StatusUnsupportedMediaType, message: "upload is not an image"}
	}

	return &usecase.Upload{Filename: file.Filename, Data: bytes.NewReader(data)}, nil
}

func writeUploadError(c *gin.Context, err error) bool {
	var upErr *uploadError
	if errors.As(err, &upErr) {
		c.JSON(upErr.status, gin.H{"error": upErr.message})
		return true
	}
	return false
}
