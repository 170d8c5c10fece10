// Package httpmiddleware holds the cross-cutting gin middleware: error
// rendering, recovery, rate limiting, metrics and security headers.
package httpmiddleware

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"programhub/internal/apperr"
	"programhub/internal/store"
)

// Reporter receives failures that are hidden from the client.
type Reporter interface {
	Error(msg string, err error, extras ...map[string]interface{})
}

// ErrorBody is the envelope for every failed request.
type ErrorBody struct {
	Success    bool                `json:"success"`
	StatusCode int                 `json:"statusCode"`
	Message    string              `json:"message"`
	Errors     []apperr.FieldError `json:"errors"`
}

// ErrorResponder renders the last error handlers attached with c.Error.
// Malformed ids rejected by Postgres render as 404. Anything else that is not
// an *apperr.Error or a validation failure becomes an opaque 500 and is sent
// to the reporter.
func ErrorResponder(rep Reporter) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		last := c.Errors.Last()
		if last == nil || c.Writer.Written() {
			return
		}
		status, body := render(last.Err)
		if status >= http.StatusInternalServerError {
			rep.Error("unhandled request error", last.Err, map[string]interface{}{
				"method": c.Request.Method,
				"path":   c.FullPath(),
			})
		}
		c.AbortWithStatusJSON(status, body)
	}
}

func render(err error) (int, ErrorBody) {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		fields := make([]apperr.FieldError, 0, len(verrs))
		for _, fe := range verrs {
			fields = append(fields, apperr.FieldError{Field: jsonName(fe), Message: describe(fe)})
		}
		return http.StatusBadRequest, ErrorBody{StatusCode: http.StatusBadRequest, Message: "Validation failed.", Errors: fields}
	}
	status := apperr.StatusOf(err)
	if status == http.StatusInternalServerError && store.IsInvalidText(err) {
		status = http.StatusNotFound
		return status, ErrorBody{StatusCode: status, Message: "Resource not found.", Errors: []apperr.FieldError{}}
	}
	body := ErrorBody{StatusCode: status, Message: "Something went wrong on our side.", Errors: []apperr.FieldError{}}
	if e, ok := apperr.As(err); ok {
		body.Message = e.Message
		if e.Errors != nil {
			body.Errors = e.Errors
		}
	}
	return status, body
}

func jsonName(fe validator.FieldError) string {
	name := fe.Field()
	if name == "" {
		return name
	}
	return strings.ToLower(name[:1]) + name[1:]
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "oneof":
		return "must be one of: " + fe.Param()
	case "min":
		return "must be at least " + fe.Param()
	case "max":
		return "must be at most " + fe.Param()
	case "uuid", "uuid4":
		return "must be a valid id"
	}
	return fmt.Sprintf("failed %s validation", fe.Tag())
}

// Recover turns panics into reported 500s.
func Recover(rep Reporter) gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered any) {
		rep.Error("panic recovered", errors.Errorf("%v", recovered), map[string]interface{}{
			"method": c.Request.Method,
			"path":   c.FullPath(),
		})
		_, body := render(nil)
		c.AbortWithStatusJSON(http.StatusInternalServerError, body)
	})
}
