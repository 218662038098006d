package httputil

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/clinicore/clinic-api/pkg/errors"
)

// Response wraps all API responses
type Response struct {
	Success bool        `json:"success"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
	Error   *Error      `json:"error,omitempty"`
}

// Error represents API error detail
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// ListResponse wraps list payloads with a count
type ListResponse struct {
	Count int         `json:"count"`
	Items interface{} `json:"items"`
}

// statusFor maps the closed error taxonomy to transport codes. This is the
// single place application errors become HTTP statuses.
func statusFor(code errors.ErrorCode) int {
	switch code {
	case errors.ErrValidation, errors.ErrInvalidTransition:
		return http.StatusBadRequest
	case errors.ErrUnauthorized:
		return http.StatusUnauthorized
	case errors.ErrForbidden:
		return http.StatusForbidden
	case errors.ErrNotFound:
		return http.StatusNotFound
	case errors.ErrSlotConflict, errors.ErrVersionConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// RespondWithSuccess sends a success response
func RespondWithSuccess(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    data,
	})
}

// RespondWithCreated sends a 201 response with the created record
func RespondWithCreated(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, Response{
		Success: true,
		Data:    data,
	})
}

// RespondWithList sends a success response carrying a counted list
func RespondWithList(c *gin.Context, items interface{}, count int) {
	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    ListResponse{Count: count, Items: items},
	})
}

// RespondWithError serializes err into the uniform error envelope. Internal
// failures are reported with a generic message; the wrapped cause stays in
// the logs only.
func RespondWithError(c *gin.Context, err error) {
	code := errors.Code(err)
	status := statusFor(code)

	message := err.Error()
	if status == http.StatusInternalServerError {
		message = "internal server error"
	}

	c.Error(err)
	c.JSON(status, Response{
		Success: false,
		Error: &Error{
			Code:    status,
			Message: message,
		},
	})
}

// RespondWithValidationError reports a binding/validation failure
func RespondWithValidationError(c *gin.Context, err error) {
	RespondWithError(c, errors.Validation(err.Error()))
}
