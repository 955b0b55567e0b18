package character

import (
	"fmt"

	"github.com/zhouzirui/characterai-go/pkg/cai"
)

// Character is the subset of a Character.AI character exposed to the frontend.
type Character struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Title        string `json:"title,omitempty"`
	Greeting     string `json:"greeting,omitempty"`
	Description  string `json:"description,omitempty"`
	Avatar       string `json:"avatar,omitempty"`
	Creator      string `json:"creator,omitempty"`
	Interactions int64  `json:"interactions,omitempty"`
}

// wireCharacter covers both the info and the search/trending shapes.
type wireCharacter struct {
	ExternalID      string `json:"external_id"`
	Name            string `json:"name"`
	ParticipantName string `json:"participant__name"`
	Title           string `json:"title"`
	Greeting        string `json:"greeting"`
	Description     string `json:"description"`
	AvatarFileName  string `json:"avatar_file_name"`
	Username        string `json:"user__username"`
	Interactions    int64  `json:"participant__num_interactions"`
}

func (w wireCharacter) character() Character {
	name := w.Name
	if name == "" {
		name = w.ParticipantName
	}
	return Character{
		ID:           w.ExternalID,
		Name:         name,
		Title:        w.Title,
		Greeting:     w.Greeting,
		Description:  w.Description,
		Avatar:       w.AvatarFileName,
		Creator:      w.Username,
		Interactions: w.Interactions,
	}
}

// FromPayload decodes a character info response, with or without the
// "character" envelope.
func FromPayload(p cai.Payload) (Character, error) {
	if inner, ok := p.Object("character"); ok {
		p = inner
	}

	var w wireCharacter
	if err := p.Decode(&w); err != nil {
		return Character{}, err
	}
	if w.ExternalID == "" {
		return Character{}, fmt.Errorf("character payload has no external_id")
	}
	return w.character(), nil
}

// ListFromPayload decodes the character list stored under key.
func ListFromPayload(p cai.Payload, key string) ([]Character, error) {
	var envelope map[string][]wireCharacter
	if err := (cai.Payload{key: p[key]}).Decode(&envelope); err != nil {
		return nil, err
	}

	items := envelope[key]
	out := make([]Character, 0, len(items))
	for _, w := range items {
		if w.ExternalID == "" {
			continue
		}
		out = append(out, w.character())
	}
	return out, nil
}
