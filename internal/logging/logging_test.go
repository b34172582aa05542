package logging

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLogger(t *testing.T) {
	logger, err := NewLogger("debug")
	require.NoError(t, err)
	assert.True(t, logger.Core().Enabled(-1))

	_, err = NewLogger("loud")
	require.Error(t, err)

	logger, err = NewLogger("")
	require.NoError(t, err)
	assert.False(t, logger.Core().Enabled(-1))
}

func TestOperationError(t *testing.T) {
	base := errors.New("boom")

	assert.Nil(t, NewOperationError("repo.save", "req-1", nil))

	err := NewOperationError("repo.save", "req-1", base)
	assert.Equal(t, "repo.save (request_id=req-1): boom", err.Error())
	assert.ErrorIs(t, err, base)

	err = NewOperationError("repo.save", "", base)
	assert.Equal(t, "repo.save: boom", err.Error())

	op, ok := OperationOf(fmt.Errorf("outer: %w", err))
	require.True(t, ok)
	assert.Equal(t, "repo.save", op)

	_, ok = OperationOf(base)
	assert.False(t, ok)
}
