package vision

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"

	"github.com/jmylchreest/ptsites/internal/llm"
)

var (
	// ErrNotConfigured is returned by every query when no API key or
	// endpoint was supplied.
	ErrNotConfigured = errors.New("vision model not configured")
	// ErrMissingUser is returned by Respond for an empty session id.
	ErrMissingUser = errors.New("用户信息错误")
	// ErrEmptyAnswer is returned when the model produced no text.
	ErrEmptyAnswer = errors.New("model returned an empty answer")
)

// Category classifies inference failures.
type Category int

const (
	CategoryOther Category = iota
	CategoryRateLimited
	CategoryConnection
	CategoryTimeout
	CategoryAuth
	CategoryBadRequest
)

// String returns the operator-facing prefix for the category.
func (c Category) String() string {
	switch c {
	case CategoryRateLimited:
		return "请求被限流"
	case CategoryConnection:
		return "API 网络连接失败"
	case CategoryTimeout:
		return "API 请求超时"
	case CategoryAuth:
		return "API 认证失败"
	case CategoryBadRequest:
		return "请求参数错误"
	default:
		return "请求出现错误"
	}
}

// InferenceError wraps a failed model call.
type InferenceError struct {
	Category Category
	Err      error
}

func (e *InferenceError) Error() string {
	return fmt.Sprintf("%s：%v", e.Category, e.Err)
}

func (e *InferenceError) Unwrap() error {
	return e.Err
}

// ParseError is returned by MediaName when the model output is not the
// expected JSON. Content holds the raw output for inspection.
type ParseError struct {
	Content string
	Err     error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("JSON 解析错误: %v", e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// classify wraps err in an InferenceError.
func classify(err error) *InferenceError {
	return &InferenceError{Category: categoryOf(err), Err: err}
}

func categoryOf(err error) Category {
	var statusErr *llm.StatusError
	if errors.As(err, &statusErr) {
		switch statusErr.StatusCode {
		case http.StatusTooManyRequests:
			return CategoryRateLimited
		case http.StatusUnauthorized, http.StatusForbidden:
			return CategoryAuth
		case http.StatusRequestTimeout, http.StatusGatewayTimeout:
			return CategoryTimeout
		case http.StatusBadRequest, http.StatusNotFound, http.StatusUnprocessableEntity:
			return CategoryBadRequest
		}
		return CategoryOther
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return CategoryTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return CategoryTimeout
		}
		return CategoryConnection
	}
	return CategoryOther
}
