package responses

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"houzel-server/internal/interfaces/httpserver/middlewares"
	"houzel-server/internal/utils/platformerrors"
)

// ErrorResponse is the JSON body for failed requests.
type ErrorResponse struct {
	Error     string `json:"error"`
	Message   string `json:"message,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

// HandleError maps an error from the handler or domain layers onto an HTTP
// response, using the platform error category for the status code.
func HandleError(reqCtx *gin.Context, err error, message string) {
	var platformErr *platformerrors.PlatformError
	if errors.As(err, &platformErr) {
		errorMessage := platformErr.Message
		if errorMessage == "" {
			errorMessage = message
		}
		reqCtx.AbortWithStatusJSON(platformerrors.ErrorTypeToHTTPStatus(platformErr.Type), ErrorResponse{
			Error:     errorMessage,
			Message:   message,
			RequestID: middlewares.RequestIDFromContext(reqCtx),
		})
		return
	}
	reqCtx.AbortWithStatusJSON(http.StatusInternalServerError, ErrorResponse{
		Error:     message,
		Message:   message,
		RequestID: middlewares.RequestIDFromContext(reqCtx),
	})
}

// HandleNewError creates a typed error at the route layer and answers with it.
func HandleNewError(reqCtx *gin.Context, errorType platformerrors.ErrorType, message string) {
	err := platformerrors.NewError(reqCtx.Request.Context(),
		platformerrors.LayerRoute, errorType, message, nil)
	HandleError(reqCtx, err, message)
}
