package response

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/craftbridge/catalog-backend/internal/pkg/errors"
)

type APIError struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

type ErrorEnvelope struct {
	Error APIError `json:"error"`
}

// StatusForKind maps the error taxonomy onto HTTP statuses. Unknown
// kinds fall through to 500 via KindOf's default.
func StatusForKind(k errors.Kind) int {
	switch k {
	case errors.KindValidation:
		return http.StatusBadRequest
	case errors.KindNotFound:
		return http.StatusNotFound
	case errors.KindInvalidState, errors.KindIncompleteUpload:
		return http.StatusConflict
	case errors.KindTransientDependency:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func RespondError(c *gin.Context, err error) {
	kind := errors.KindOf(err)
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	c.JSON(StatusForKind(kind), ErrorEnvelope{
		Error: APIError{
			Message: msg,
			Code:    string(kind),
		},
	})
}

func RespondOK(c *gin.Context, payload any) {
	c.JSON(http.StatusOK, payload)
}

func RespondCreated(c *gin.Context, payload any) {
	c.JSON(http.StatusCreated, payload)
}
