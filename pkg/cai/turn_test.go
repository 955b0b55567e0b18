package cai

import "testing"

func TestAuthorHuman(t *testing.T) {
	tests := []struct {
		id   string
		want bool
	}{
		{"12345", true},
		{"0", true},
		{"", false},
		{"char_abc", false},
		{"123abc", false},
		{"YntB_ZeqRq2l_aVf2gWDCZl4oBttQzDvhj9cXafWcF8", false},
	}
	for _, tt := range tests {
		if got := (Author{AuthorID: tt.id}).Human(); got != tt.want {
			t.Fatalf("Human(%q) = %v, want %v", tt.id, got, tt.want)
		}
	}
}

func TestMessageFinal(t *testing.T) {
	yes, no := true, false
	bot := Author{AuthorID: "char1"}
	human := Author{AuthorID: "42"}

	tests := []struct {
		name string
		msg  *Message
		want bool
	}{
		{"nil message", nil, false},
		{"no turn", &Message{Comment: "oops"}, false},
		{"no candidates", &Message{Turn: &Turn{Author: bot}}, false},
		{"flag absent", &Message{Turn: &Turn{Author: bot, Candidates: []Candidate{{RawContent: "a"}}}}, false},
		{"partial", &Message{Turn: &Turn{Author: bot, Candidates: []Candidate{{IsFinal: &no}}}}, false},
		{"human final", &Message{Turn: &Turn{Author: human, Candidates: []Candidate{{IsFinal: &yes}}}}, false},
		{"bot final", &Message{Turn: &Turn{Author: bot, Candidates: []Candidate{{IsFinal: &yes}}}}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.msg.Final(); got != tt.want {
				t.Fatalf("Final() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDecodeMessageKeepsRawFrame(t *testing.T) {
	frame := []byte(`{"command":"update_turn","turn":{"turn_key":{"chat_id":"c","turn_id":"t"},"author":{"author_id":"char1"},"candidates":[{"raw_content":"hi","is_final":true,"extra":1}]},"unknown":[1,2]}`)
	msg, err := decodeMessage(frame)
	if err != nil {
		t.Fatalf("decodeMessage err: %v", err)
	}
	if string(msg.Raw) != string(frame) {
		t.Fatalf("raw frame altered: %s", msg.Raw)
	}
	if msg.Turn.TurnKey.TurnID != "t" || msg.Text() != "hi" || !msg.Final() {
		t.Fatalf("unexpected decode %+v", msg.Turn)
	}
}

func TestPayloadHelpers(t *testing.T) {
	p := Payload{"name": "Ann", "count": 2.0, "user": map[string]any{"username": "ann"}}
	if p.String("name") != "Ann" || p.String("count") != "" || p.String("missing") != "" {
		t.Fatalf("unexpected String results")
	}
	user, ok := p.Object("user")
	if !ok || user.String("username") != "ann" {
		t.Fatalf("expected nested user, got %v", user)
	}

	var out struct {
		Name  string `json:"name"`
		Count int    `json:"count"`
	}
	if err := p.Decode(&out); err != nil {
		t.Fatalf("Decode err: %v", err)
	}
	if out.Name != "Ann" || out.Count != 2 {
		t.Fatalf("unexpected decode %+v", out)
	}
}
