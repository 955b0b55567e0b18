package cai

import (
	"context"
	"net/http"
)

// UserService covers the account and profile endpoints.
type UserService struct {
	client *Client
}

// UserUpdate holds the editable profile fields. Empty optional fields are not sent.
type UserUpdate struct {
	Username      string `json:"username"`
	Name          string `json:"name,omitempty"`
	AvatarType    string `json:"avatar_type,omitempty"`
	AvatarRelPath string `json:"avatar_rel_path,omitempty"`
	Bio           string `json:"bio,omitempty"`
}

func (s *UserService) Info(ctx context.Context, opts ...CallOption) (Payload, error) {
	return s.client.do(ctx, request{method: http.MethodGet, path: "chat/user/"}, opts)
}

// Profile returns the public profile of username.
func (s *UserService) Profile(ctx context.Context, username string, opts ...CallOption) (Payload, error) {
	return s.client.do(ctx, request{
		method: http.MethodPost,
		path:   "chat/user/public/",
		body:   map[string]string{"username": username},
	}, opts)
}

func (s *UserService) Followers(ctx context.Context, opts ...CallOption) (Payload, error) {
	return s.client.do(ctx, request{method: http.MethodGet, path: "chat/user/followers/"}, opts)
}

func (s *UserService) Following(ctx context.Context, opts ...CallOption) (Payload, error) {
	return s.client.do(ctx, request{method: http.MethodGet, path: "chat/user/following/"}, opts)
}

// Recent lists characters the user chatted with recently.
func (s *UserService) Recent(ctx context.Context, opts ...CallOption) (Payload, error) {
	return s.client.do(ctx, request{method: http.MethodGet, path: "chat/characters/recent/"}, opts)
}

// Characters lists characters created by the user.
func (s *UserService) Characters(ctx context.Context, opts ...CallOption) (Payload, error) {
	return s.client.do(ctx, request{method: http.MethodGet, path: "chat/characters/?scope=user"}, opts)
}

func (s *UserService) Update(ctx context.Context, update UserUpdate, opts ...CallOption) (Payload, error) {
	return s.client.do(ctx, request{
		method: http.MethodPost,
		path:   "chat/user/update/",
		body:   update,
	}, opts)
}
