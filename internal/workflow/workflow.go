// Package workflow runs ordered prompt cards against a vision model. Each
// card carries one technique; later cards can receive context extracted from
// earlier responses.
package workflow

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/visionforge/visionforge/internal/technique"
)

// ContextMode selects what a card takes from the previous response.
type ContextMode string

const (
	ContextNone       ContextMode = ""
	ContextFull       ContextMode = "full"
	ContextSummary    ContextMode = "summary"
	ContextStructured ContextMode = "structured"
	ContextCustom     ContextMode = "custom"
)

// ParseContextMode accepts the known modes and "none".
func ParseContextMode(value string) (ContextMode, error) {
	switch mode := ContextMode(strings.ToLower(strings.TrimSpace(value))); mode {
	case ContextNone, ContextFull, ContextSummary, ContextStructured, ContextCustom:
		return mode, nil
	case "none":
		return ContextNone, nil
	default:
		return "", fmt.Errorf("unknown context mode %q", value)
	}
}

// CardContext configures context chaining for a card.
type CardContext struct {
	Mode   ContextMode `json:"mode,omitempty"`
	Custom string      `json:"custom,omitempty"`
}

// Card is one prompt in a workflow.
type Card struct {
	ID          string              `json:"id"`
	Title       string              `json:"title,omitempty"`
	Description string              `json:"description,omitempty"`
	Technique   technique.Technique `json:"technique"`
	// Images is used when the technique names no images of its own. A
	// few-shot card without a target id takes its target from here.
	Images  []string    `json:"images,omitempty"`
	Context CardContext `json:"context,omitzero"`
}

// ImageIDs returns the images sent with the card, in prompt order.
func (c Card) ImageIDs() []string {
	ids := technique.ImageIDs(c.Technique.Config)
	if fs, ok := c.Technique.Config.(technique.FewShotConfig); ok && strings.TrimSpace(fs.TargetImageID) == "" {
		return append(ids, c.Images...)
	}
	if len(ids) > 0 {
		return ids
	}
	return c.Images
}

// Label names the card for logs and reports.
func (c Card) Label(index int) string {
	if t := strings.TrimSpace(c.Title); t != "" {
		return t
	}
	return fmt.Sprintf("Card %d (%s)", index+1, c.Technique.Kind())
}

// Workflow is an ordered list of cards.
type Workflow struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Cards       []Card    `json:"cards"`
	CreatedAt   time.Time `json:"createdAt,omitzero"`
	UpdatedAt   time.Time `json:"updatedAt,omitzero"`
}

// New returns an empty workflow.
func New(name string) *Workflow {
	if strings.TrimSpace(name) == "" {
		name = "Untitled Workflow"
	}
	now := time.Now().UTC()
	return &Workflow{ID: uuid.NewString(), Name: name, Cards: []Card{}, CreatedAt: now, UpdatedAt: now}
}

// Normalize fills missing ids and names.
func (w *Workflow) Normalize() {
	if w.ID == "" {
		w.ID = uuid.NewString()
	}
	if strings.TrimSpace(w.Name) == "" {
		w.Name = "Untitled Workflow"
	}
	for i := range w.Cards {
		if w.Cards[i].ID == "" {
			w.Cards[i].ID = uuid.NewString()
		}
	}
}

// InsertCard places card at position, clamped to the card list.
func (w *Workflow) InsertCard(position int, card Card) Card {
	if card.ID == "" {
		card.ID = uuid.NewString()
	}
	position = min(max(position, 0), len(w.Cards))
	w.Cards = append(w.Cards, Card{})
	copy(w.Cards[position+1:], w.Cards[position:])
	w.Cards[position] = card
	w.touch()
	return card
}

// RemoveCard drops the card with id and reports whether it existed.
func (w *Workflow) RemoveCard(id string) bool {
	idx := w.IndexOf(id)
	if idx < 0 {
		return false
	}
	w.Cards = append(w.Cards[:idx], w.Cards[idx+1:]...)
	w.touch()
	return true
}

// MoveCard moves the card at from to position to.
func (w *Workflow) MoveCard(from, to int) error {
	if from < 0 || from >= len(w.Cards) || to < 0 || to >= len(w.Cards) {
		return fmt.Errorf("card index out of range")
	}
	card := w.Cards[from]
	w.Cards = append(w.Cards[:from], w.Cards[from+1:]...)
	w.Cards = append(w.Cards[:to], append([]Card{card}, w.Cards[to:]...)...)
	w.touch()
	return nil
}

// IndexOf returns the position of the card with id, or -1.
func (w *Workflow) IndexOf(id string) int {
	for i, c := range w.Cards {
		if c.ID == id {
			return i
		}
	}
	return -1
}

// Validate checks every card and returns results keyed by card id. The
// boolean is true when all cards are valid.
func (w *Workflow) Validate() (map[string]technique.ValidationResult, bool) {
	out := make(map[string]technique.ValidationResult, len(w.Cards))
	ok := true
	for _, c := range w.Cards {
		res := technique.Validate(c.Technique.Config)
		out[c.ID] = res
		ok = ok && res.Valid
	}
	return out, ok
}

func (w *Workflow) touch() {
	w.UpdatedAt = time.Now().UTC()
}
