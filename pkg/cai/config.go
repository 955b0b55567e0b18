package cai

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	DefaultBetaURL      = "https://beta.character.ai/"
	DefaultPlusURL      = "https://plus.character.ai/"
	DefaultNeoURL       = "https://neo.character.ai/"
	DefaultWebSocketURL = "wss://neo.character.ai/ws/"

	DefaultRequestTimeout = 30 * time.Second
	DefaultTurnTimeout    = 2 * time.Minute
)

// HTTPDoer sends one HTTP request. *http.Client satisfies it.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// WebSocketDialer opens the chat2 socket. *websocket.Dialer satisfies it.
type WebSocketDialer interface {
	DialContext(ctx context.Context, urlStr string, requestHeader http.Header) (*websocket.Conn, *http.Response, error)
}

// Config is the per-client session: credentials, service tier, endpoints and
// transport. It is copied into the Client and never mutated afterwards.
type Config struct {
	// Token is the default API token; CallOption WithToken overrides it per call.
	Token string

	// Plus selects the plus tier host instead of beta.
	Plus bool

	// BaseURL overrides the tier host. NeoURL and WebSocketURL override the
	// low-latency host and the chat2 socket endpoint.
	BaseURL      string
	NeoURL       string
	WebSocketURL string

	HTTPClient HTTPDoer
	Dialer     WebSocketDialer

	// RequestTimeout bounds REST calls made through the default HTTP client.
	RequestTimeout time.Duration

	// TurnTimeout bounds every chat2 exchange whose context carries no
	// deadline. Negative disables the bound.
	TurnTimeout time.Duration

	Logger *zap.Logger
}

func (c Config) withDefaults() Config {
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = DefaultRequestTimeout
	}
	if c.TurnTimeout == 0 {
		c.TurnTimeout = DefaultTurnTimeout
	}
	if c.BaseURL == "" {
		if c.Plus {
			c.BaseURL = DefaultPlusURL
		} else {
			c.BaseURL = DefaultBetaURL
		}
	}
	if c.NeoURL == "" {
		c.NeoURL = DefaultNeoURL
	}
	if c.WebSocketURL == "" {
		c.WebSocketURL = DefaultWebSocketURL
	}
	c.BaseURL = withTrailingSlash(c.BaseURL)
	c.NeoURL = withTrailingSlash(c.NeoURL)
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.RequestTimeout}
	}
	if c.Dialer == nil {
		c.Dialer = &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: c.RequestTimeout,
		}
	}
	if c.Logger == nil {
		c.Logger = zap.NewNop()
	}
	return c
}

func withTrailingSlash(u string) string {
	if strings.HasSuffix(u, "/") {
		return u
	}
	return u + "/"
}

// CallOption adjusts a single call.
type CallOption func(*callOptions)

type callOptions struct {
	token string
}

// WithToken overrides the session token for one call.
func WithToken(token string) CallOption {
	return func(o *callOptions) {
		o.token = token
	}
}

func (c *Client) resolveToken(opts []CallOption) string {
	var o callOptions
	for _, opt := range opts {
		opt(&o)
	}
	if o.token != "" {
		return o.token
	}
	return c.cfg.Token
}
