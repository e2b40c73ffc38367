package errors

import (
	"fmt"
	"io"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFromErrorKeepsTypedErrors(t *testing.T) {
	wrapped := fmt.Errorf("loading: %w", Clone(ErrNotFound, "generation not found"))

	appErr := FromError(wrapped)
	assert.Equal(t, http.StatusNotFound, appErr.Status)
	assert.Equal(t, "generation not found", appErr.Message)
}

func TestFromErrorDefaultsToInternal(t *testing.T) {
	appErr := FromError(io.ErrUnexpectedEOF)
	assert.Equal(t, ErrInternal.Code, appErr.Code)
	assert.ErrorIs(t, appErr, io.ErrUnexpectedEOF)
	assert.Nil(t, FromError(nil))
}

func TestIsMatchesOnCode(t *testing.T) {
	err := WrapAs(ErrProposalExpired, io.EOF, "")
	assert.ErrorIs(t, err, ErrProposalExpired)
	assert.NotErrorIs(t, err, ErrNotFound)
	assert.Equal(t, ErrProposalExpired.Message, err.Message)
}
