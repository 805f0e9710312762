package xerr

import (
	"errors"
	"net/http"
)

// 业务错误码，与 HTTP 状态码保持一致
const (
	CodeBadRequest    = http.StatusBadRequest
	CodeNotFound      = http.StatusNotFound
	CodeInternal      = http.StatusInternalServerError
	CodeUnavailable   = http.StatusServiceUnavailable
	CodeUpstreamError = http.StatusBadGateway
)

// CodeError is an error that carries the status and message shown to callers.
type CodeError struct {
	Code int
	Msg  string
}

// CodeErrorResponse 错误响应体；不实现 error，httpx 才会按 JSON 输出
type CodeErrorResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *CodeError) Error() string {
	return e.Msg
}

func (e *CodeError) Data() *CodeErrorResponse {
	return &CodeErrorResponse{Code: e.Code, Message: e.Msg}
}

func New(code int, msg string) *CodeError {
	return &CodeError{Code: code, Msg: msg}
}

func BadRequest(msg string) *CodeError {
	return New(CodeBadRequest, msg)
}

func NotFound(msg string) *CodeError {
	return New(CodeNotFound, msg)
}

func Internal(msg string) *CodeError {
	return New(CodeInternal, msg)
}

// Status maps err to an HTTP status and response body. Errors that are not a
// CodeError become a generic 500 so internal details never reach the client.
func Status(err error) (int, *CodeErrorResponse) {
	var ce *CodeError
	if errors.As(err, &ce) {
		status := ce.Code
		if status < 400 || status > 599 {
			status = http.StatusInternalServerError
		}
		return status, ce.Data()
	}
	return http.StatusInternalServerError, Internal("服务器内部错误，请稍后重试").Data()
}
