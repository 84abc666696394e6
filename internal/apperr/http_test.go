package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
)

func TestKind_HTTPStatus(t *testing.T) {
	cases := map[Kind]int{
		KindUnauthorized: http.StatusUnauthorized,
		KindForbidden:    http.StatusForbidden,
		KindNotFound:     http.StatusNotFound,
		KindGone:         http.StatusGone,
		KindConflict:     http.StatusConflict,
		KindValidation:   http.StatusBadRequest,
		KindUnavailable:  http.StatusServiceUnavailable,
		KindInternal:     http.StatusInternalServerError,
		Kind("mystery"):  http.StatusInternalServerError,
	}
	for kind, want := range cases {
		assert.Equal(t, want, kind.HTTPStatus(), kind)
	}
}

func TestResponse(t *testing.T) {
	status, body := Response(fmt.Errorf("wrapped: %w", Gone(ReasonAlreadyAccepted, "already accepted")))
	assert.Equal(t, http.StatusGone, status)
	assert.Equal(t, Detail{Kind: KindGone, Reason: ReasonAlreadyAccepted, Message: "already accepted"}, body.Error)

	status, body = Response(&pgconn.PgError{Code: "40P01"})
	assert.Equal(t, http.StatusServiceUnavailable, status)
	assert.True(t, body.Error.Retryable)

	status, body = Response(errors.New("password=hunter2"))
	assert.Equal(t, http.StatusInternalServerError, status)
	assert.Equal(t, "internal error", body.Error.Message)
}
