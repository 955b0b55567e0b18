package cai

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
)

// PostType selects which kind of post Create publishes.
type PostType string

const (
	PostTypePost PostType = "POST"
	PostTypeChat PostType = "CHAT"
)

// PostService covers community posts, comments and the topic feed.
type PostService struct {
	client *Client
}

// PostOptions carries the optional fields of PostService.Create. Text is used
// by POST posts, Visibility by CHAT posts (defaults to PUBLIC).
type PostOptions struct {
	Text       string
	Visibility string
}

type createPostBody struct {
	Title           string `json:"post_title"`
	TopicExternalID string `json:"topic_external_id"`
	Text            string `json:"post_text"`
}

type createChatPostBody struct {
	Title             string `json:"post_title"`
	SubjectExternalID string `json:"subject_external_id"`
	Visibility        string `json:"post_visibility"`
}

func (s *PostService) Get(ctx context.Context, postID string, opts ...CallOption) (Payload, error) {
	return s.client.do(ctx, request{
		method: http.MethodGet,
		path:   "chat/post/?post=" + url.QueryEscape(postID),
	}, opts)
}

// Mine lists the caller's own posts.
func (s *PostService) Mine(ctx context.Context, page, postsToLoad int, opts ...CallOption) (Payload, error) {
	return s.client.do(ctx, request{
		method: http.MethodGet,
		path:   fmt.Sprintf("chat/posts/user/?scope=user&page=%d&posts_to_load=%d", page, postsToLoad),
	}, opts)
}

// ByUser lists posts published by username.
func (s *PostService) ByUser(ctx context.Context, username string, page, postsToLoad int, opts ...CallOption) (Payload, error) {
	return s.client.do(ctx, request{
		method: http.MethodGet,
		path: fmt.Sprintf("chat/posts/user/?username=%s&page=%d&posts_to_load=%d",
			url.QueryEscape(username), page, postsToLoad),
	}, opts)
}

func (s *PostService) Upvote(ctx context.Context, postExternalID string, opts ...CallOption) (Payload, error) {
	return s.client.do(ctx, request{
		method: http.MethodPost,
		path:   "chat/post/upvote/",
		body:   map[string]string{"post_external_id": postExternalID},
	}, opts)
}

func (s *PostService) UndoUpvote(ctx context.Context, postExternalID string, opts ...CallOption) (Payload, error) {
	return s.client.do(ctx, request{
		method: http.MethodPost,
		path:   "chat/post/undo-upvote/",
		body:   map[string]string{"post_external_id": postExternalID},
	}, opts)
}

// Comment adds a comment to a post; parentUUID replies to an existing comment
// and may be empty.
func (s *PostService) Comment(ctx context.Context, postID, text, parentUUID string, opts ...CallOption) (Payload, error) {
	body := map[string]any{
		"post_external_id": postID,
		"text":             text,
		"parent_uuid":      nil,
	}
	if parentUUID != "" {
		body["parent_uuid"] = parentUUID
	}
	return s.client.do(ctx, request{
		method: http.MethodPost,
		path:   "chat/comment/create/",
		body:   body,
	}, opts)
}

func (s *PostService) DeleteComment(ctx context.Context, messageID int, postID string, opts ...CallOption) (Payload, error) {
	return s.client.do(ctx, request{
		method: http.MethodPost,
		path:   "chat/comment/delete/",
		body: map[string]any{
			"external_id":      messageID,
			"post_external_id": postID,
		},
	}, opts)
}

// Create publishes a post. POST posts reference a topic, CHAT posts share a
// chat history. Any other postType fails with *PostTypeError before a request
// is made.
func (s *PostService) Create(ctx context.Context, postType PostType, externalID, title string, po PostOptions, opts ...CallOption) (Payload, error) {
	var req request
	switch postType {
	case PostTypePost:
		req = request{
			method: http.MethodPost,
			path:   "chat/post/create/",
			body: createPostBody{
				Title:           title,
				TopicExternalID: externalID,
				Text:            po.Text,
			},
		}
	case PostTypeChat:
		visibility := po.Visibility
		if visibility == "" {
			visibility = "PUBLIC"
		}
		req = request{
			method: http.MethodPost,
			path:   "chat/chat-post/create/",
			body: createChatPostBody{
				Title:             title,
				SubjectExternalID: externalID,
				Visibility:        visibility,
			},
		}
	default:
		return nil, &PostTypeError{PostType: postType}
	}
	return s.client.do(ctx, req, opts)
}

func (s *PostService) Delete(ctx context.Context, postID string, opts ...CallOption) (Payload, error) {
	return s.client.do(ctx, request{
		method: http.MethodPost,
		path:   "chat/post/delete/",
		body:   map[string]string{"external_id": postID},
	}, opts)
}

func (s *PostService) Topics(ctx context.Context, opts ...CallOption) (Payload, error) {
	return s.client.do(ctx, request{method: http.MethodGet, path: "chat/topics/"}, opts)
}

// Feed pages through a topic. sort is "top" or "created".
func (s *PostService) Feed(ctx context.Context, topic string, page, postsToLoad int, sort string, opts ...CallOption) (Payload, error) {
	if sort == "" {
		sort = "top"
	}
	return s.client.do(ctx, request{
		method: http.MethodGet,
		path: fmt.Sprintf("chat/posts/?topic=%s&page=%d&posts_to_load=%d&sort=%s",
			url.QueryEscape(topic), page, postsToLoad, url.QueryEscape(sort)),
	}, opts)
}
