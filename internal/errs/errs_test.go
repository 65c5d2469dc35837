package errs

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSentinelMatching(t *testing.T) {
	err := NotFound("repository.GetSession", "session missing")
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.False(t, errors.Is(err, ErrStorage))
	assert.True(t, IsNotFound(err))
}

func TestWrappedErrorsKeepKind(t *testing.T) {
	cause := errors.New("disk full")
	err := Storage("docstore.Store", cause)

	wrapped := fmt.Errorf("append failed: %w", err)
	assert.True(t, errors.Is(wrapped, ErrStorage))
	assert.True(t, errors.Is(wrapped, cause))
}

func TestErrorMessageIncludesOp(t *testing.T) {
	err := Validation("pipeline.Process", "message content must not be empty")
	assert.Contains(t, err.Error(), "pipeline.Process")
	assert.Contains(t, err.Error(), "must not be empty")

	err = Storage("docstore.Open", errors.New("permission denied"))
	assert.Contains(t, err.Error(), "permission denied")
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "validation", KindValidation.String())
	assert.Equal(t, "storage", KindStorage.String())
	assert.Equal(t, "provider", KindProvider.String())
	assert.Equal(t, "config", KindConfig.String())
	assert.Equal(t, "not_found", KindNotFound.String())
}
