package apperrors

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ErrorResponse is the JSON envelope for every error
type ErrorResponse struct {
	Error   *AppError `json:"error"`
	Message string    `json:"message"`
}

// HandleError renders err and aborts the request. Unknown errors become a
// generic 500 whose cause is only logged.
func HandleError(c *gin.Context, err error) {
	appErr, ok := AsAppError(err)
	if !ok {
		appErr = InternalError(err)
	}

	if appErr.HTTPCode >= 500 {
		zap.L().Error("request failed",
			zap.String("path", c.FullPath()),
			zap.String("code", string(appErr.Code)),
			zap.Error(err),
		)
		if appErr.Code == CodeInternalError {
			appErr = InternalError(nil)
		}
	}

	c.AbortWithStatusJSON(appErr.HTTPCode, ErrorResponse{Error: appErr, Message: appErr.Message})
}
