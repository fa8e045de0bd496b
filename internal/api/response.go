package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"cvforge/internal/errcode"
)

// Response 是统一的响应信封。
type Response struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// OK 返回成功响应。
func OK(c *gin.Context, data any) {
	c.JSON(http.StatusOK, Response{Code: errcode.OK, Message: "ok", Data: data})
}

// Created 返回创建成功响应。
func Created(c *gin.Context, data any) {
	c.JSON(http.StatusCreated, Response{Code: errcode.OK, Message: "ok", Data: data})
}

// Fail 按业务错误码映射 HTTP 状态并返回错误信封。
func Fail(c *gin.Context, err error, message string) {
	code := errcode.CodeOf(err)
	if message == "" {
		message = err.Error()
	}
	c.JSON(httpStatusOf(code, err), Response{Code: code, Message: message})
}

// FailBadRequest 返回参数错误响应。
func FailBadRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, Response{Code: errcode.InvalidArgument, Message: message})
}

// Unauthorized 返回 401。
func Unauthorized(c *gin.Context) {
	c.JSON(http.StatusUnauthorized, Response{Code: errcode.InvalidArgument, Message: "unauthorized"})
}

// Conflict 返回 409。
func Conflict(c *gin.Context, message string) {
	c.JSON(http.StatusConflict, Response{Code: errcode.InvalidArgument, Message: message})
}

// Internal 返回 500。
func Internal(c *gin.Context, message string) {
	c.JSON(http.StatusInternalServerError, Response{Code: errcode.SystemError, Message: message})
}

func httpStatusOf(code int, err error) int {
	switch code {
	case errcode.ResourceMissing:
		return http.StatusNotFound
	case errcode.QuotaExceeded, errcode.RateLimited:
		return http.StatusTooManyRequests
	}
	if errors.Is(err, errcode.ErrDependencyFailure) {
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}
