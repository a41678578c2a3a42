package util

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/url"

	"golang.org/x/oauth2"

	"mailtriage/pkg/circuitbreaker"
)

// statusCoder 由携带 HTTP 状态码的 API 错误实现
type statusCoder interface {
	HTTPStatus() int
}

// ClassifyError 把错误归类为简短标签，用于日志字段和指标标签；err 为 nil 时返回 ""
func ClassifyError(err error) string {
	if err == nil {
		return ""
	}

	// context 取消优先判断，关闭时不应算作网络错误
	if errors.Is(err, context.Canceled) {
		return "canceled"
	}
	if errors.Is(err, circuitbreaker.ErrCircuitBreakerOpen) {
		return "circuit_open"
	}

	var retrieveErr *oauth2.RetrieveError
	if errors.As(err, &retrieveErr) {
		return "auth"
	}

	var sc statusCoder
	if errors.As(err, &sc) {
		switch status := sc.HTTPStatus(); {
		case status == http.StatusUnauthorized || status == http.StatusForbidden:
			return "auth"
		case status == http.StatusNotFound:
			return "not_found"
		case status == http.StatusTooManyRequests:
			return "throttled"
		case status >= 500:
			return "graph_server"
		}
		return "unknown"
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return "network_timeout"
	}

	// 网络错误
	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return "network_timeout"
		}
		return "network"
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return "network"
	}

	return "unknown"
}
