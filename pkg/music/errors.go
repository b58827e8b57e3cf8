package music

import "errors"

var (
	ErrNotFound        = errors.New("lyrics not found")
	ErrRateLimited     = errors.New("rate limited, please try again later")
	ErrNetwork         = errors.New("network error")
	ErrParse           = errors.New("parse error")
	ErrInvalidResponse = errors.New("invalid response from lyrics provider")
)

// ErrorKind 对外暴露的错误类型
type ErrorKind string

const (
	KindNone            ErrorKind = ""
	KindNotFound        ErrorKind = "not_found"
	KindRateLimited     ErrorKind = "rate_limited"
	KindNetwork         ErrorKind = "network_error"
	KindParse           ErrorKind = "parse_error"
	KindInvalidResponse ErrorKind = "invalid_response"
)

// KindOf 将错误映射为 ErrorKind，未知错误按 invalid_response 处理
func KindOf(err error) ErrorKind {
	switch {
	case err == nil:
		return KindNone
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrRateLimited):
		return KindRateLimited
	case errors.Is(err, ErrNetwork):
		return KindNetwork
	case errors.Is(err, ErrParse):
		return KindParse
	default:
		return KindInvalidResponse
	}
}
