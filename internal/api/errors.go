package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type apiError struct {
	Code    int
	Message string
}

func (e apiError) Error() string { return e.Message }

func abort(c *gin.Context, err apiError) {
	c.AbortWithStatusJSON(err.Code, gin.H{"error": err.Message})
}

func newStatusTextError(status int) apiError {
	return apiError{Code: status, Message: http.StatusText(status)}
}

func newBadRequestError(message string) apiError {
	return apiError{Code: http.StatusBadRequest, Message: message}
}
