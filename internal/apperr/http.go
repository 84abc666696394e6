package apperr

import "net/http"

// HTTPStatus maps a kind to its response status.
func (k Kind) HTTPStatus() int {
	switch k {
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindGone:
		return http.StatusGone
	case KindConflict:
		return http.StatusConflict
	case KindValidation:
		return http.StatusBadRequest
	case KindUnavailable:
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

type Detail struct {
	Kind      Kind   `json:"kind"`
	Reason    Reason `json:"reason,omitempty"`
	Message   string `json:"message"`
	Retryable bool   `json:"retryable"`
}

type Body struct {
	Error Detail `json:"error"`
}

// Response classifies err and returns the status and envelope to send.
// Internal causes are never exposed in the message.
func Response(err error) (int, Body) {
	e := As(err)
	if e == nil {
		e = Internal("internal error", nil)
	}
	return e.Kind.HTTPStatus(), Body{Error: Detail{
		Kind:      e.Kind,
		Reason:    e.Reason,
		Message:   e.Message,
		Retryable: e.Retryable,
	}}
}
