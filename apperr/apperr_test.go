package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindsSurviveWrapping(t *testing.T) {
	err := fmt.Errorf("generate labels: %w", Exhausted("no unique code for %s", "ET01"))

	assert.True(t, errors.Is(err, ErrGenerationExhausted))
	assert.False(t, errors.Is(err, ErrValidation))
	assert.Equal(t, "no unique code for ET01", Message(err))
	assert.Equal(t, http.StatusConflict, HTTPStatus(err))
}

func TestWrapKeepsCause(t *testing.T) {
	cause := errors.New("bad magic")
	err := Wrap(ErrConfiguration, cause, "template %q cannot be decoded", "iec")

	assert.True(t, errors.Is(err, ErrConfiguration))
	assert.True(t, errors.Is(err, cause))
	assert.Equal(t, `template "iec" cannot be decoded: bad magic`, err.Error())
}

func TestHTTPStatus(t *testing.T) {
	cases := map[error]int{
		Validation("x"):          http.StatusBadRequest,
		NotFound("x"):            http.StatusNotFound,
		Configuration("x"):       http.StatusUnprocessableEntity,
		Unavailable("x"):         http.StatusServiceUnavailable,
		errors.New("db is gone"): http.StatusInternalServerError,
	}
	for err, want := range cases {
		assert.Equal(t, want, HTTPStatus(err), err.Error())
	}
}
