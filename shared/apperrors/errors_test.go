package apperrors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"
)

type status string

func (s status) String() string { return string(s) }

func TestErrorsIsMatchesKind(t *testing.T) {
	err := Conflict("lease already exists for application %s", "a1")

	assert.True(t, errors.Is(err, ErrConflict))
	assert.False(t, errors.Is(err, ErrNotFound))
	assert.Equal(t, "lease already exists for application a1", err.Message)
}

func TestWrappedErrorsKeepKind(t *testing.T) {
	wrapped := fmt.Errorf("submit: %w", NotFound("property not found"))

	assert.True(t, errors.Is(wrapped, ErrNotFound))
	assert.Equal(t, KindNotFound, KindOf(wrapped))
}

func TestInvalidTransitionCarriesStatuses(t *testing.T) {
	err := InvalidTransition("application", status("APPROVED"), status("WITHDRAWN"))

	assert.Equal(t, KindInvalidTransition, err.Kind)
	assert.Equal(t, "APPROVED", err.Details["current_status"])
	assert.Equal(t, "WITHDRAWN", err.Details["requested_status"])
	assert.Equal(t, http.StatusBadRequest, err.HTTPStatus())
}

func TestFromConvertsStoreErrors(t *testing.T) {
	assert.Equal(t, KindNotFound, From(gorm.ErrRecordNotFound).Kind)
	assert.Equal(t, KindConflict, From(gorm.ErrDuplicatedKey).Kind)

	internal := From(errors.New("connection reset"))
	assert.Equal(t, KindInternal, internal.Kind)
	assert.Equal(t, "unexpected error", internal.Message)
	assert.Nil(t, From(nil))
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		kind Kind
		want int
	}{
		{KindAuthRequired, http.StatusUnauthorized},
		{KindAccessDenied, http.StatusForbidden},
		{KindNotFound, http.StatusNotFound},
		{KindConflict, http.StatusConflict},
		{KindValidationFailed, http.StatusBadRequest},
		{KindRateLimited, http.StatusTooManyRequests},
		{KindInternal, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			assert.Equal(t, tt.want, StatusFor(tt.kind))
		})
	}
}
