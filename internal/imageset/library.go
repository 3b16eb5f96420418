package imageset

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/visionforge/visionforge/internal/ailink/encode"
	"github.com/visionforge/visionforge/internal/technique"
)

// Entry is an image held by a Library with the cards that use it.
type Entry struct {
	*Image
	UsedInCards []string  `json:"used_in_cards"`
	AddedAt     time.Time `json:"added_at"`
}

// Library maps image ids to prepared images. It is safe for concurrent use.
type Library struct {
	opts Options

	mu      sync.RWMutex
	entries map[string]*Entry
	order   []string
}

// NewLibrary returns an empty library that prepares images with opts.
func NewLibrary(opts Options) *Library {
	return &Library{opts: opts.withDefaults(), entries: map[string]*Entry{}}
}

// Add prepares data and stores it under a fresh id.
func (l *Library) Add(name string, data []byte) (*Image, error) {
	return l.AddWithID(uuid.NewString(), name, data)
}

// AddWithID prepares data and stores it under id, replacing any image
// already stored there.
func (l *Library) AddWithID(id, name string, data []byte) (*Image, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, fmt.Errorf("image id is required")
	}
	img, err := Prepare(name, data, l.opts)
	if err != nil {
		return nil, err
	}
	img.ID = id

	l.mu.Lock()
	defer l.mu.Unlock()
	if _, exists := l.entries[id]; !exists {
		l.order = append(l.order, id)
	}
	l.entries[id] = &Entry{Image: img, AddedAt: time.Now().UTC()}
	return img, nil
}

// AddFile loads path. The id defaults to the file name without extension.
func (l *Library) AddFile(id, path string) (*Image, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	name := filepath.Base(path)
	if strings.TrimSpace(id) == "" {
		id = strings.TrimSuffix(name, filepath.Ext(name))
	}
	return l.AddWithID(id, name, data)
}

// Get returns the image stored under id.
func (l *Library) Get(id string) (*Image, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	e, ok := l.entries[id]
	if !ok {
		return nil, false
	}
	return e.Image, true
}

// Remove drops id from the library.
func (l *Library) Remove(id string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.entries[id]; !ok {
		return
	}
	delete(l.entries, id)
	for i, v := range l.order {
		if v == id {
			l.order = append(l.order[:i], l.order[i+1:]...)
			break
		}
	}
}

// List returns entries in insertion order.
func (l *Library) List() []Entry {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]Entry, 0, len(l.order))
	for _, id := range l.order {
		e := l.entries[id]
		out = append(out, Entry{Image: e.Image, UsedInCards: append([]string(nil), e.UsedInCards...), AddedAt: e.AddedAt})
	}
	return out
}

// Len returns the number of images held.
func (l *Library) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}

// Resolve returns the data URLs for ids, in order. Every id must exist.
func (l *Library) Resolve(ids []string) ([]string, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	urls := make([]string, 0, len(ids))
	var missing []string
	for _, id := range ids {
		e, ok := l.entries[id]
		if !ok {
			missing = append(missing, id)
			continue
		}
		urls = append(urls, e.DataURL())
	}
	if len(missing) > 0 {
		return nil, &MissingError{IDs: missing}
	}
	return urls, nil
}

// MissingError lists image ids that are not in the library.
type MissingError struct {
	IDs []string
}

func (e *MissingError) Error() string {
	return "images not found: " + strings.Join(e.IDs, ", ")
}

// Link records that cardID uses imageID.
func (l *Library) Link(imageID, cardID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	e, ok := l.entries[imageID]
	if !ok {
		return fmt.Errorf("image %q not found", imageID)
	}
	for _, c := range e.UsedInCards {
		if c == cardID {
			return nil
		}
	}
	e.UsedInCards = append(e.UsedInCards, cardID)
	return nil
}

// Unassigned returns the ids of images no card uses, sorted.
func (l *Library) Unassigned() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	var ids []string
	for id, e := range l.entries {
		if len(e.UsedInCards) == 0 {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

// Annotated returns the data URL of id with markups drawn over it. PNG and
// GIF sources stay PNG; everything else is re-encoded as JPEG.
func (l *Library) Annotated(id string, markups []technique.Markup) (string, error) {
	img, ok := l.Get(id)
	if !ok {
		return "", &MissingError{IDs: []string{id}}
	}
	if len(markups) == 0 {
		return img.DataURL(), nil
	}

	src, err := Decode(img.Data)
	if err != nil {
		return "", fmt.Errorf("decode %s: %w", id, err)
	}
	marked, err := ApplyMarkup(src, markups)
	if err != nil {
		return "", err
	}

	format := "jpeg"
	if img.MIMEType == "image/png" || img.MIMEType == "image/gif" {
		format = "png"
	}
	var buf bytes.Buffer
	if err := Encode(&buf, marked, format, l.opts.JPEGQuality); err != nil {
		return "", err
	}
	return encode.DataURL("image/"+format, buf.Bytes()), nil
}
