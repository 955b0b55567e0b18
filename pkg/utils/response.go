package utils

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/bytedance/sonic"

	"github.com/zhouzirui/characterai-go/pkg/cai"
)

var codec = sonic.ConfigStd

// maxBodyBytes 限制请求体大小。
const maxBodyBytes = 1 << 20

// RespondJSON 发送JSON响应
func RespondJSON(w http.ResponseWriter, status int, payload any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return codec.NewEncoder(w).Encode(payload)
}

// RespondError 发送错误响应
func RespondError(w http.ResponseWriter, status int, message string) error {
	return RespondJSON(w, status, map[string]string{"error": message})
}

// DecodeJSON 解析请求体，拒绝空请求体。
func DecodeJSON(r *http.Request, v any) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		return fmt.Errorf("read body: %w", err)
	}
	if len(body) == 0 {
		return errors.New("empty body")
	}
	return codec.Unmarshal(body, v)
}

// ErrorStatus 将客户端错误映射为 HTTP 状态码。
func ErrorStatus(err error) int {
	var (
		authErr     *cai.AuthError
		labelErr    *cai.LabelError
		postTypeErr *cai.PostTypeError
		serverErr   *cai.ServerError
	)
	switch {
	case errors.As(err, &authErr):
		return http.StatusUnauthorized
	case errors.As(err, &labelErr), errors.As(err, &postTypeErr):
		return http.StatusBadRequest
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.As(err, &serverErr), errors.Is(err, cai.ErrClosed):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
