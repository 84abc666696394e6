package handlers

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/dimitrije/toolshare/internal/apperr"
	"github.com/dimitrije/toolshare/pkg/logger"
	"github.com/go-playground/validator/v10"
	"github.com/m1z23r/drift/pkg/drift"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// respondError writes the error envelope. Unclassified and storage failures are
// logged with their cause; the client only sees the kind and message.
func respondError(c *drift.Context, err error) {
	status, body := apperr.Response(err)
	switch body.Error.Kind {
	case apperr.KindInternal, apperr.KindUnavailable:
		logger.Error().Err(err).
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Msg("request failed")
	}
	_ = c.JSON(status, body)
}

// bind decodes the JSON body into req and validates it. It writes the error
// response itself and reports false on failure.
func bind(c *drift.Context, req any) bool {
	if err := c.BindJSON(req); err != nil {
		respondError(c, apperr.Validation("invalid request body"))
		return false
	}
	if err := validate.Struct(req); err != nil {
		respondError(c, validationError(err))
		return false
	}
	return true
}

func validationError(err error) *apperr.Error {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return apperr.Validation("invalid request body")
	}
	fe := fieldErrs[0]
	switch fe.Tag() {
	case "required":
		return apperr.Validation(fmt.Sprintf("%s is required", fe.Field()))
	case "oneof":
		return apperr.Validation(fmt.Sprintf("%s must be one of: %s", fe.Field(), fe.Param()))
	case "max":
		return apperr.Validation(fmt.Sprintf("%s must be at most %s characters", fe.Field(), fe.Param()))
	}
	return apperr.Validation(fmt.Sprintf("%s is invalid", fe.Field()))
}
