package apperr

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOfAndStatus(t *testing.T) {
	tests := []struct {
		err    error
		kind   Kind
		status int
	}{
		{Request("no file"), KindRequest, http.StatusBadRequest},
		{Format("bad ext"), KindFormat, http.StatusBadRequest},
		{Parameter("bad width"), KindParameter, http.StatusBadRequest},
		{RateLimited("slow down"), KindRateLimited, http.StatusTooManyRequests},
		{Codec(io.ErrUnexpectedEOF, "decode"), KindCodec, http.StatusInternalServerError},
		{IO(io.ErrShortWrite, "write"), KindIO, http.StatusInternalServerError},
		{Unexpected(errors.New("panic")), KindUnexpected, http.StatusInternalServerError},
		{errors.New("untagged"), KindCodec, http.StatusInternalServerError},
		{fmt.Errorf("wrapped: %w", Format("x")), KindFormat, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			k := KindOf(tt.err)
			assert.Equal(t, tt.kind, k)
			assert.Equal(t, tt.status, k.HTTPStatus())
		})
	}
}

func TestErrorMessageAndUnwrap(t *testing.T) {
	err := Codec(io.ErrUnexpectedEOF, "failed to decode %s", "image")
	assert.Equal(t, "failed to decode image: unexpected EOF", err.Error())
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
	assert.Equal(t, "Width must be positive", Parameter("Width must be positive").Error())
}

func TestIsValidation(t *testing.T) {
	assert.True(t, IsValidation(Request("x")))
	assert.True(t, IsValidation(Parameter("x")))
	assert.False(t, IsValidation(IO(nil, "x")))
	assert.False(t, IsValidation(errors.New("x")))
	assert.Equal(t, "rate_limited", KindRateLimited.String())
	assert.Equal(t, "unexpected", KindUnexpected.String())
}
