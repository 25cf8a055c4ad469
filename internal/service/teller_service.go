package service

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/syecodesoftware-del/mystic-brew-fortune/internal/models"
)

var ErrUnknownTeller = errors.New("unknown fortune teller")

var defaultTellers = []models.FortuneTeller{
	{ID: "apprentice", Name: "Apprentice Selin", Emoji: "🔮", Cost: 10},
	{ID: "madame", Name: "Madame Zeynep", Emoji: "☕", Cost: 25},
	{ID: "oracle", Name: "The Grand Oracle", Emoji: "🌙", Cost: 50},
}

// TellerService serves the static price tiers. The catalog is read once at
// startup and never written back.
type TellerService struct {
	tellers []models.FortuneTeller
	byID    map[string]models.FortuneTeller
}

// LoadTellers reads the catalog from a YAML file, or returns the built-in
// tiers when path is empty.
func LoadTellers(path string) (*TellerService, error) {
	if path == "" {
		return NewTellerService(defaultTellers)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read tellers file: %w", err)
	}
	var doc struct {
		Tellers []models.FortuneTeller `yaml:"tellers"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse tellers file: %w", err)
	}
	return NewTellerService(doc.Tellers)
}

func NewTellerService(tellers []models.FortuneTeller) (*TellerService, error) {
	if len(tellers) == 0 {
		return nil, errors.New("teller catalog is empty")
	}
	s := &TellerService{byID: make(map[string]models.FortuneTeller, len(tellers))}
	for _, t := range tellers {
		t.ID = strings.TrimSpace(t.ID)
		switch {
		case t.ID == "":
			return nil, errors.New("teller id is required")
		case t.Name == "":
			return nil, fmt.Errorf("teller %s: name is required", t.ID)
		case t.Cost < 0:
			return nil, fmt.Errorf("teller %s: cost must not be negative", t.ID)
		}
		if _, dup := s.byID[t.ID]; dup {
			return nil, fmt.Errorf("teller %s listed twice", t.ID)
		}
		s.byID[t.ID] = t
		s.tellers = append(s.tellers, t)
	}
	return s, nil
}

func (s *TellerService) List() []models.FortuneTeller {
	out := make([]models.FortuneTeller, len(s.tellers))
	copy(out, s.tellers)
	return out
}

func (s *TellerService) Get(id string) (models.FortuneTeller, error) {
	t, ok := s.byID[strings.TrimSpace(id)]
	if !ok {
		return models.FortuneTeller{}, fmt.Errorf("%w: %s", ErrUnknownTeller, id)
	}
	return t, nil
}
