package service

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/syecodesoftware-del/mystic-brew-fortune/internal/models"
)

func TestLoadTellersDefaults(t *testing.T) {
	s, err := LoadTellers("")
	if err != nil {
		t.Fatal(err)
	}
	if len(s.List()) != len(defaultTellers) {
		t.Errorf("expected built-in catalog")
	}
	if _, err := s.Get("nobody"); !errors.Is(err, ErrUnknownTeller) {
		t.Errorf("expected ErrUnknownTeller, got %v", err)
	}
}

func TestLoadTellersFromYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tellers.yaml")
	doc := "tellers:\n  - id: gypsy\n    name: Old Gypsy\n    emoji: \"🃏\"\n    cost: 7\n"
	if err := os.WriteFile(path, []byte(doc), 0o600); err != nil {
		t.Fatal(err)
	}
	s, err := LoadTellers(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	got, err := s.Get("gypsy")
	if err != nil || got != (models.FortuneTeller{ID: "gypsy", Name: "Old Gypsy", Emoji: "🃏", Cost: 7}) {
		t.Errorf("unexpected teller %+v %v", got, err)
	}
}

func TestNewTellerServiceValidates(t *testing.T) {
	cases := map[string][]models.FortuneTeller{
		"empty":     nil,
		"no id":     {{Name: "x", Cost: 1}},
		"negative":  {{ID: "a", Name: "A", Cost: -1}},
		"duplicate": {{ID: "a", Name: "A"}, {ID: "a", Name: "B"}},
	}
	for name, tellers := range cases {
		if _, err := NewTellerService(tellers); err == nil {
			t.Errorf("%s: expected error", name)
		}
	}
}
