package utils

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Error codes are the HTTP status followed by a two digit reason.
const (
	CodeOK            = 0
	CodeBadRequest    = 40001
	CodeInvalidRating = 40002
	CodeUnauthorized  = 40100
	CodeNoSession     = 40106
	CodeNotFound      = 40400
	CodeConflict      = 40901
	CodeRateLimited   = 42901
	CodeInternal      = 50000
	CodeNotPersisted  = 50301
)

// JSONResponse defines the uniform structure for API responses.
type JSONResponse struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data"`
}

// Respond writes a JSON response with the given status code.
func Respond(ctx *gin.Context, status int, code int, message string, data interface{}) {
	ctx.JSON(status, JSONResponse{
		Code:    code,
		Message: message,
		Data:    data,
	})
}

// Success returns a standard success response. A nil data is sent as null.
func Success(ctx *gin.Context, data interface{}) {
	Respond(ctx, http.StatusOK, CodeOK, "success", data)
}

// Created answers 201 with data.
func Created(ctx *gin.Context, data interface{}) {
	Respond(ctx, http.StatusCreated, CodeOK, "created", data)
}

// Error returns a standard error response.
func Error(ctx *gin.Context, status int, code int, message string) {
	Respond(ctx, status, code, message, nil)
}
