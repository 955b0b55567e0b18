package cai

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"go.uber.org/zap"
)

const maxErrorBody = 512

type request struct {
	method string
	path   string
	body   any

	// neo routes the call to the low-latency host.
	neo bool

	// split parses the last JSON line of a newline-delimited body.
	split bool

	noAuth bool
}

func (c *Client) url(req request) string {
	if req.neo {
		return c.cfg.NeoURL + req.path
	}
	return c.cfg.BaseURL + req.path
}

// do sends req and returns the decoded response object, converting known error
// shapes into typed errors.
func (c *Client) do(ctx context.Context, req request, opts []CallOption) (Payload, error) {
	link := c.url(req)
	c.log.Debug("making request", zap.String("method", req.method), zap.String("url", link))

	var body io.Reader
	if req.body != nil {
		data, err := marshal(req.body)
		if err != nil {
			return nil, fmt.Errorf("cai: encode %s body: %w", req.path, err)
		}
		body = bytes.NewReader(data)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.method, link, body)
	if err != nil {
		return nil, fmt.Errorf("cai: build request %s: %w", req.path, err)
	}
	if !req.noAuth {
		httpReq.Header.Set("Authorization", "Token "+c.resolveToken(opts))
	}
	if req.body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	httpReq.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("cai: %s %s: %w", req.method, req.path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("cai: read %s response: %w", req.path, err)
	}
	c.log.Debug("received response",
		zap.String("path", req.path),
		zap.Int("status", resp.StatusCode),
		zap.Int("bytes", len(raw)),
	)

	if req.split {
		raw = lastJSONLine(raw)
	}

	payload, err := decodeObject(raw)
	if err != nil {
		if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
			return nil, &AuthError{StatusCode: resp.StatusCode, Detail: http.StatusText(resp.StatusCode)}
		}
		return nil, &ServerError{
			Kind:    KindUnexpected,
			Message: fmt.Sprintf("status %d: %s", resp.StatusCode, truncate(string(raw), maxErrorBody)),
		}
	}

	if err := classify(payload); err != nil {
		if authErr, ok := err.(*AuthError); ok {
			authErr.StatusCode = resp.StatusCode
		}
		return nil, err
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return nil, statusError(resp.StatusCode, payload)
	}
	return payload, nil
}

// statusError covers failed responses whose body matched no known error shape.
func statusError(status int, payload Payload) error {
	if status == http.StatusUnauthorized || status == http.StatusForbidden {
		detail := payload.String("detail")
		if detail == "" {
			detail = http.StatusText(status)
		}
		return &AuthError{StatusCode: status, Detail: detail}
	}
	data, _ := marshal(payload)
	return &ServerError{
		Kind:    KindUnexpected,
		Message: fmt.Sprintf("status %d: %s", status, truncate(string(data), maxErrorBody)),
		Payload: payload,
	}
}

func decodeObject(raw []byte) (Payload, error) {
	var payload Payload
	if err := unmarshal(raw, &payload); err != nil {
		return nil, err
	}
	if payload == nil {
		return nil, fmt.Errorf("empty body")
	}
	return payload, nil
}

// lastJSONLine returns the last non-blank line of a newline-delimited body.
func lastJSONLine(raw []byte) []byte {
	lines := bytes.Split(raw, []byte("\n"))
	for i := len(lines) - 1; i >= 0; i-- {
		line := bytes.TrimSpace(lines[i])
		if len(line) > 0 {
			return line
		}
	}
	return nil
}

// classify maps a decoded response onto the known server error shapes. It
// returns nil for anything that is not an error.
func classify(p Payload) error {
	if cmd, _ := p["command"].(string); cmd == "neo_error" {
		return &ServerError{Kind: KindNeoError, Message: p.String("comment"), Payload: p}
	}

	if detail, ok := p["detail"].(string); ok && isAuthDetail(detail) {
		return &AuthError{Detail: detail}
	}

	if status, ok := p["status"].(string); ok && strings.HasPrefix(status, "Error") {
		return &ServerError{Kind: KindStatus, Message: status, Payload: p}
	}

	if msg, ok := errorValue(p["error"]); ok {
		return &ServerError{Kind: KindError, Message: msg, Payload: p}
	}

	return nil
}

func isAuthDetail(detail string) bool {
	if strings.HasPrefix(detail, "Auth") {
		return true
	}
	return strings.Contains(strings.ToLower(detail), "invalid token")
}

func errorValue(v any) (string, bool) {
	switch e := v.(type) {
	case nil:
		return "", false
	case string:
		return e, e != ""
	case bool:
		return "", false
	case map[string]any:
		if msg, ok := e["message"].(string); ok {
			return msg, true
		}
		data, _ := marshal(e)
		return string(data), true
	default:
		return fmt.Sprint(e), true
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
