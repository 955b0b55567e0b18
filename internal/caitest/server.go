// Package caitest runs an in-process stand-in for the Character.AI REST hosts
// and the chat2 socket. Tests register canned REST replies and a responder
// that scripts the frames pushed back for every socket command.
package caitest

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/bytedance/sonic"
	"github.com/gorilla/websocket"
)

var codec = sonic.ConfigStd

// Request is one REST call recorded by the server.
type Request struct {
	Method string
	Path   string
	Query  string
	Header http.Header
	Body   map[string]any
}

// Command is one chat2 command received on the socket.
type Command struct {
	Command                string         `json:"command"`
	RequestID              string         `json:"request_id"`
	Payload                map[string]any `json:"payload"`
	UpdatePrimaryCandidate map[string]any `json:"update_primary_candidate"`

	Raw []byte `json:"-"`
}

// Responder returns the frames pushed back for a command, in order. Each frame
// is a string, a []byte or a value encoded as JSON.
type Responder func(cmd Command) []any

type reply struct {
	status int
	body   []byte
}

// Server fakes the tier host under /, the neo host under /neo/ and the chat2
// socket at /ws/.
type Server struct {
	*httptest.Server

	mu        sync.Mutex
	tokens    map[string]bool
	routes    map[string]reply
	requests  []Request
	commands  []Command
	responder Responder
	upgrader  websocket.Upgrader
}

// NewServer starts a server accepting the given tokens, or any token when
// none are given. It is closed with the test.
func NewServer(t testing.TB, tokens ...string) *Server {
	t.Helper()

	s := &Server{
		tokens: make(map[string]bool),
		routes: make(map[string]reply),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
	for _, tok := range tokens {
		s.tokens[tok] = true
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/ws/", s.serveSocket)
	mux.HandleFunc("/", s.serveREST)
	s.Server = httptest.NewServer(mux)
	t.Cleanup(s.Close)
	return s
}

func (s *Server) BaseURL() string { return s.URL + "/" }

func (s *Server) NeoURL() string { return s.URL + "/neo/" }

func (s *Server) WebSocketURL() string {
	return "ws" + strings.TrimPrefix(s.URL, "http") + "/ws/"
}

// Handle registers a JSON reply for method and path. Neo paths start with
// /neo/.
func (s *Server) Handle(method, path string, status int, body any) {
	data, err := encode(body)
	if err != nil {
		panic(err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.routes[method+" "+path] = reply{status: status, body: data}
}

// OnCommand installs the socket responder.
func (s *Server) OnCommand(r Responder) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.responder = r
}

// Requests returns the REST calls seen so far.
func (s *Server) Requests() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Request(nil), s.requests...)
}

// Commands returns the socket commands seen so far.
func (s *Server) Commands() []Command {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Command(nil), s.commands...)
}

func (s *Server) accepts(token string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tokens) == 0 || s.tokens[token]
}

func (s *Server) serveREST(w http.ResponseWriter, r *http.Request) {
	req := Request{
		Method: r.Method,
		Path:   r.URL.Path,
		Query:  r.URL.RawQuery,
		Header: r.Header.Clone(),
	}
	if raw, _ := io.ReadAll(r.Body); len(raw) > 0 {
		_ = codec.Unmarshal(raw, &req.Body)
	}

	s.mu.Lock()
	s.requests = append(s.requests, req)
	rep, ok := s.routes[r.Method+" "+r.URL.Path]
	s.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	if r.URL.Path != "/neo/ping/" {
		token := strings.TrimPrefix(r.Header.Get("Authorization"), "Token ")
		if !s.accepts(token) {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"detail":"Authentication credentials were not provided."}`))
			return
		}
	}
	if !ok {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":"not found"}`))
		return
	}
	w.WriteHeader(rep.status)
	_, _ = w.Write(rep.body)
}

func (s *Server) serveSocket(w http.ResponseWriter, r *http.Request) {
	token := cookieToken(r.Header.Get("Cookie"))
	if token == "" || !s.accepts(token) {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}

		var cmd Command
		if err := codec.Unmarshal(data, &cmd); err != nil {
			return
		}
		cmd.Raw = data

		s.mu.Lock()
		s.commands = append(s.commands, cmd)
		responder := s.responder
		s.mu.Unlock()

		if responder == nil {
			continue
		}
		for _, f := range responder(cmd) {
			out, err := encode(f)
			if err != nil {
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, out); err != nil {
				return
			}
		}
	}
}

// cookieToken extracts the token from HTTP_AUTHORIZATION="Token <key>".
func cookieToken(cookie string) string {
	const prefix = `HTTP_AUTHORIZATION="Token `
	i := strings.Index(cookie, prefix)
	if i < 0 {
		return ""
	}
	rest := cookie[i+len(prefix):]
	if j := strings.Index(rest, `"`); j >= 0 {
		return rest[:j]
	}
	return ""
}

func encode(v any) ([]byte, error) {
	switch b := v.(type) {
	case []byte:
		return b, nil
	case string:
		return []byte(b), nil
	default:
		return codec.Marshal(v)
	}
}
