package cai

import (
	"context"
	"net/http"

	"go.uber.org/zap"
)

// Client is the entry point to the REST endpoint groups and the chat2 socket.
// It is safe for concurrent use; a Conn obtained from it is not.
type Client struct {
	cfg    Config
	http   HTTPDoer
	dialer WebSocketDialer
	log    *zap.Logger

	User      *UserService
	Post      *PostService
	Character *CharacterService
	Chat      *ChatService
	Chat2     *Chat2Service
}

// NewClient builds a client from cfg, filling unset fields with defaults.
func NewClient(cfg Config) *Client {
	cfg = cfg.withDefaults()

	c := &Client{
		cfg:    cfg,
		http:   cfg.HTTPClient,
		dialer: cfg.Dialer,
		log:    cfg.Logger,
	}
	c.User = &UserService{client: c}
	c.Post = &PostService{client: c}
	c.Character = &CharacterService{client: c}
	c.Chat = &ChatService{client: c}
	c.Chat2 = &Chat2Service{client: c}

	c.log.Debug("client initialized",
		zap.String("base_url", cfg.BaseURL),
		zap.String("neo_url", cfg.NeoURL),
		zap.Bool("plus", cfg.Plus),
	)
	return c
}

// Config returns a copy of the effective client configuration.
func (c *Client) Config() Config {
	return c.cfg
}

// Ping checks the neo host. It sends no credentials.
func (c *Client) Ping(ctx context.Context) (Payload, error) {
	return c.do(ctx, request{
		method: http.MethodGet,
		path:   "ping/",
		neo:    true,
		noAuth: true,
	}, nil)
}
