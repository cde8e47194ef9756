package controllers

import (
	"errors"
	"net/http"
	"reflect"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"VoiceAssistant/pkg/apperr"
	"VoiceAssistant/pkg/logging"
)

// gin's validator reports json names ("user_id") instead of Go field names.
func init() {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return
	}
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		for _, tag := range []string{"json", "form"} {
			name := strings.SplitN(f.Tag.Get(tag), ",", 2)[0]
			if name != "" && name != "-" {
				return name
			}
		}
		return f.Name
	})
}

// respondError writes err as {"detail": ...}. Provider, persistence and
// unknown failures are logged and answered with a generic message.
func respondError(c *gin.Context, log logging.Logger, err error) {
	ctx := c.Request.Context()
	l := logging.FromContext(ctx, log)

	var appErr *apperr.Error
	if !errors.As(err, &appErr) {
		appErr = apperr.Internal("unexpected error", err)
	}
	kind := appErr.Kind
	status := kind.Status()

	if !kind.Exposed() {
		l.Error(ctx, "request failed", "kind", kind.String(), "error", err)
		c.AbortWithStatusJSON(status, gin.H{"detail": genericDetail(kind)})
		return
	}

	if kind == apperr.KindUnauthenticated {
		c.Header("WWW-Authenticate", "Bearer")
	}
	body := gin.H{"detail": appErr.Message}
	if appErr.Field != "" {
		body["field"] = appErr.Field
	}
	c.AbortWithStatusJSON(status, body)
}

func genericDetail(kind apperr.Kind) string {
	switch kind {
	case apperr.KindProvider:
		return "The voice provider could not complete the request"
	case apperr.KindPersistence:
		return "Could not access stored data"
	default:
		return "Internal server error"
	}
}

// bindError converts a gin binding failure into a validation error that
// names the first offending field.
func bindError(err error) error {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		return apperr.Validation(fe.Field(), validationMessage(fe))
	}
	return apperr.Validation("body", "request body is malformed")
}

func validationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fe.Field() + " is required"
	case "oneof":
		return fe.Field() + " must be one of: " + fe.Param()
	case "min":
		return fe.Field() + " must be at least " + fe.Param()
	case "max":
		return fe.Field() + " must be at most " + fe.Param()
	case "gte":
		return fe.Field() + " must be greater than or equal to " + fe.Param()
	default:
		return fe.Field() + " is invalid"
	}
}

// statusOK is the shared body for simple acknowledgements.
func statusOK(c *gin.Context, status string, extra gin.H) {
	body := gin.H{"status": status}
	for k, v := range extra {
		body[k] = v
	}
	c.JSON(http.StatusOK, body)
}
