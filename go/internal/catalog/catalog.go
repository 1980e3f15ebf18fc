// Package catalog holds the pool of problem cards that hands are dealt from.
package catalog

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/mcdev12/codebattle/go/internal/models"
	"gopkg.in/yaml.v3"
)

//go:embed problems.yaml
var defaultCatalog []byte

// ErrEmptyCatalog is returned when a catalog file defines no cards.
var ErrEmptyCatalog = errors.New("catalog has no cards")

// Template is a card blueprint: a problem plus its optional reward and challenge.
type Template struct {
	Problem   models.Problem    `yaml:"problem"`
	Reward    *models.Reward    `yaml:"reward,omitempty"`
	Challenge *models.Challenge `yaml:"challenge,omitempty"`
}

type file struct {
	Cards []Template `yaml:"cards"`
}

// Random is the subset of math/rand/v2 the catalog needs.
type Random interface {
	IntN(n int) int
}

// Catalog is an immutable set of card templates, safe for concurrent use.
type Catalog struct {
	templates []Template
}

// Default returns the built-in problem pool.
func Default() (*Catalog, error) {
	return Parse(defaultCatalog)
}

// LoadFile reads a catalog from a YAML file.
func LoadFile(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog file: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates catalog YAML.
func Parse(data []byte) (*Catalog, error) {
	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse catalog: %w", err)
	}
	if len(f.Cards) == 0 {
		return nil, ErrEmptyCatalog
	}

	seen := make(map[string]bool, len(f.Cards))
	for i, t := range f.Cards {
		if t.Problem.ID == "" {
			return nil, fmt.Errorf("card %d: problem id is required", i)
		}
		if seen[t.Problem.ID] {
			return nil, fmt.Errorf("card %d: duplicate problem id %q", i, t.Problem.ID)
		}
		seen[t.Problem.ID] = true
		if err := validateReward(t.Reward); err != nil {
			return nil, fmt.Errorf("card %q: %w", t.Problem.ID, err)
		}
	}

	return &Catalog{templates: f.Cards}, nil
}

func validateReward(r *models.Reward) error {
	if r == nil {
		return nil
	}
	if !models.ValidRewardKind(r.Kind) {
		return fmt.Errorf("unknown reward kind %q", r.Kind)
	}
	if r.Magnitude < 0 {
		return fmt.Errorf("negative reward magnitude %d", r.Magnitude)
	}
	switch r.Scope {
	case models.RewardScopeSelf:
	case models.RewardScopeOther:
		switch r.Targeting {
		case models.TargetingRandom, models.TargetingAll, models.TargetingChoose:
		case "":
			r.Targeting = models.TargetingRandom
		default:
			return fmt.Errorf("unknown targeting %q", r.Targeting)
		}
	default:
		return fmt.Errorf("unknown reward scope %q", r.Scope)
	}
	return nil
}

// Len returns the number of templates.
func (c *Catalog) Len() int {
	return len(c.templates)
}

// Templates returns a copy of the catalog contents.
func (c *Catalog) Templates() []Template {
	out := make([]Template, len(c.templates))
	copy(out, c.templates)
	return out
}

// Draw deals n fresh cards. Problems are not repeated within one draw and avoid
// the exclude set; repeats only happen once the pool is exhausted.
func (c *Catalog) Draw(rng Random, n int, exclude map[string]bool, now time.Time) []models.Card {
	cards := make([]models.Card, 0, n)
	drawn := make(map[string]bool, n)

	for len(cards) < n {
		pool := c.pool(func(id string) bool { return drawn[id] || exclude[id] })
		if len(pool) == 0 {
			pool = c.pool(func(id string) bool { return drawn[id] })
		}
		if len(pool) == 0 {
			pool = c.templates
		}

		t := pool[rng.IntN(len(pool))]
		drawn[t.Problem.ID] = true
		cards = append(cards, t.deal(now))
	}

	return cards
}

func (c *Catalog) pool(skip func(id string) bool) []Template {
	var out []Template
	for _, t := range c.templates {
		if !skip(t.Problem.ID) {
			out = append(out, t)
		}
	}
	return out
}

func (t Template) deal(now time.Time) models.Card {
	card := models.Card{
		ID:      uuid.New().String(),
		Problem: t.Problem,
		DealtAt: now,
	}
	if t.Reward != nil {
		r := *t.Reward
		card.Reward = &r
	}
	if t.Challenge != nil {
		ch := *t.Challenge
		card.Challenge = &ch
	}
	return card
}
