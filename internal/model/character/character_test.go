package character

import (
	"testing"

	"github.com/zhouzirui/characterai-go/pkg/cai"
)

func TestFromPayloadInfoEnvelope(t *testing.T) {
	p := cai.Payload{
		"character": map[string]any{
			"external_id":      "char1",
			"name":             "Socrates",
			"title":            "Philosopher",
			"greeting":         "Know thyself.",
			"avatar_file_name": "uploaded/socrates.webp",
			"user__username":   "athens",
		},
		"status": "OK",
	}

	c, err := FromPayload(p)
	if err != nil {
		t.Fatalf("FromPayload err: %v", err)
	}
	if c.ID != "char1" || c.Name != "Socrates" || c.Greeting != "Know thyself." || c.Creator != "athens" {
		t.Fatalf("unexpected character %+v", c)
	}
}

func TestFromPayloadMissingID(t *testing.T) {
	if _, err := FromPayload(cai.Payload{"status": "OK"}); err == nil {
		t.Fatal("expected error for payload without external_id")
	}
}

func TestListFromPayloadUsesParticipantName(t *testing.T) {
	p := cai.Payload{
		"characters": []any{
			map[string]any{"external_id": "a", "participant__name": "Alpha", "participant__num_interactions": 42},
			map[string]any{"participant__name": "no id"},
			map[string]any{"external_id": "b", "participant__name": "Beta"},
		},
	}

	list, err := ListFromPayload(p, "characters")
	if err != nil {
		t.Fatalf("ListFromPayload err: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("expected 2 characters, got %d", len(list))
	}
	if list[0].Name != "Alpha" || list[0].Interactions != 42 || list[1].ID != "b" {
		t.Fatalf("unexpected list %+v", list)
	}
}

func TestMemoryStoreKeepsOrder(t *testing.T) {
	store := NewMemoryStore([]Character{{ID: "b", Name: "B"}, {ID: "a", Name: "A"}})
	store.Put(Character{ID: "b", Name: "B2"})
	store.Put(Character{Name: "ignored"})

	list := store.List()
	if len(list) != 2 || list[0].ID != "b" || list[0].Name != "B2" || list[1].ID != "a" {
		t.Fatalf("unexpected list %+v", list)
	}
	if _, ok := store.FindByID("missing"); ok {
		t.Fatal("expected missing character")
	}
}
