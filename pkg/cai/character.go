package cai

import (
	"context"
	"net/http"
	"net/url"
)

// CharacterService covers character metadata, discovery and authoring.
type CharacterService struct {
	client *Client
}

// CharacterSpec is the editable definition of a character. Categories is
// always sent, as an empty list when nil.
type CharacterSpec struct {
	Greeting      string   `json:"greeting"`
	Identifier    string   `json:"identifier"`
	Name          string   `json:"name"`
	Title         string   `json:"title"`
	Description   string   `json:"description"`
	Definition    string   `json:"definition"`
	Categories    []string `json:"categories"`
	Copyable      bool     `json:"copyable"`
	Visibility    string   `json:"visibility"`
	AvatarRelPath string   `json:"avatar_rel_path"`
	BaseImgPrompt string   `json:"base_img_prompt"`
	ImgGenEnabled bool     `json:"img_gen_enabled"`
}

// NewCharacterSpec returns a spec with the platform defaults: public,
// copyable, no categories.
func NewCharacterSpec(name, identifier, greeting string) CharacterSpec {
	return CharacterSpec{
		Greeting:   greeting,
		Identifier: identifier,
		Name:       name,
		Categories: []string{},
		Copyable:   true,
		Visibility: "PUBLIC",
	}
}

func (s CharacterSpec) normalized() CharacterSpec {
	if s.Categories == nil {
		s.Categories = []string{}
	}
	if s.Visibility == "" {
		s.Visibility = "PUBLIC"
	}
	return s
}

type updateCharacterBody struct {
	ExternalID string `json:"external_id"`
	CharacterSpec
}

func (s *CharacterService) Create(ctx context.Context, spec CharacterSpec, opts ...CallOption) (Payload, error) {
	return s.client.do(ctx, request{
		method: http.MethodPost,
		path:   "chat/character/create/",
		body:   spec.normalized(),
	}, opts)
}

func (s *CharacterService) Update(ctx context.Context, externalID string, spec CharacterSpec, opts ...CallOption) (Payload, error) {
	return s.client.do(ctx, request{
		method: http.MethodPost,
		path:   "chat/character/update/",
		body:   updateCharacterBody{ExternalID: externalID, CharacterSpec: spec.normalized()},
	}, opts)
}

func (s *CharacterService) Trending(ctx context.Context, opts ...CallOption) (Payload, error) {
	return s.client.do(ctx, request{method: http.MethodGet, path: "chat/characters/trending/"}, opts)
}

func (s *CharacterService) Recommended(ctx context.Context, opts ...CallOption) (Payload, error) {
	return s.client.do(ctx, request{method: http.MethodGet, path: "chat/characters/recommended/"}, opts)
}

func (s *CharacterService) Categories(ctx context.Context, opts ...CallOption) (Payload, error) {
	return s.client.do(ctx, request{method: http.MethodGet, path: "chat/character/categories/"}, opts)
}

// Info returns the character object for an external id.
func (s *CharacterService) Info(ctx context.Context, characterID string, opts ...CallOption) (Payload, error) {
	return s.client.do(ctx, request{
		method: http.MethodPost,
		path:   "chat/character/",
		body:   map[string]string{"external_id": characterID},
	}, opts)
}

func (s *CharacterService) Search(ctx context.Context, query string, opts ...CallOption) (Payload, error) {
	return s.client.do(ctx, request{
		method: http.MethodGet,
		path:   "chat/characters/search/?query=" + url.QueryEscape(query),
	}, opts)
}

func (s *CharacterService) Voices(ctx context.Context, opts ...CallOption) (Payload, error) {
	return s.client.do(ctx, request{method: http.MethodGet, path: "chat/character/voices/"}, opts)
}
