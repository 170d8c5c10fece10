package apperr

import (
	"net/http"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

func TestStatusOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{name: "bad request", err: BadRequest("nope"), want: http.StatusBadRequest},
		{name: "wrapped conflict", err: errors.Wrap(Conflict("dup"), "insert"), want: http.StatusConflict},
		{name: "plain error", err: errors.New("boom"), want: http.StatusInternalServerError},
		{name: "validation", err: Validation("bad", FieldError{Field: "name", Message: "required"}), want: http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, StatusOf(tt.err))
		})
	}
}

func TestNewFormatsMessage(t *testing.T) {
	err := NotFound("program %s not found", "p1")
	assert.Equal(t, "program p1 not found", err.Message)
	assert.Equal(t, "404: program p1 not found", err.Error())
}
