package driver

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"
)

// TraceEntry is one request/response record.
type TraceEntry struct {
	Timestamp   time.Time       `json:"timestamp"`
	Driver      string          `json:"driver"`
	Endpoint    string          `json:"endpoint"`
	Method      string          `json:"method"`
	Model       string          `json:"model,omitempty"`
	Images      int             `json:"images,omitempty"`
	RequestBody json.RawMessage `json:"request_body,omitempty"`
	StatusCode  int             `json:"status_code,omitempty"`
	Response    json.RawMessage `json:"response,omitempty"`
	Error       string          `json:"error,omitempty"`
	DurationMs  int64           `json:"duration_ms"`
}

// Tracer appends trace entries to a file as NDJSON. A nil Tracer discards
// entries, so drivers can record unconditionally.
type Tracer struct {
	mu   sync.Mutex
	file *os.File
	// RedactImages replaces data URLs in request bodies with their length.
	RedactImages bool
}

// OpenTracer opens path for appending.
func OpenTracer(path string) (*Tracer, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
	if err != nil {
		return nil, fmt.Errorf("open trace file: %w", err)
	}
	return &Tracer{file: f, RedactImages: true}, nil
}

// Record writes entry if t is non-nil.
func (t *Tracer) Record(entry TraceEntry) {
	if t == nil {
		return
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now()
	}
	if t.RedactImages && len(entry.RequestBody) > 0 {
		entry.RequestBody = redactDataURLs(entry.RequestBody)
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.file == nil {
		return
	}
	_, _ = t.file.Write(append(data, '\n'))
}

// Close closes the trace file.
func (t *Tracer) Close() error {
	if t == nil {
		return nil
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.file == nil {
		return nil
	}
	err := t.file.Close()
	t.file = nil
	return err
}

func redactDataURLs(body json.RawMessage) json.RawMessage {
	var v any
	if err := json.Unmarshal(body, &v); err != nil {
		return body
	}
	out, err := json.Marshal(redactValue(v))
	if err != nil {
		return body
	}
	return out
}

func redactValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		for k, item := range val {
			val[k] = redactValue(item)
		}
		return val
	case []any:
		for i, item := range val {
			val[i] = redactValue(item)
		}
		return val
	case string:
		if len(val) > 5 && val[:5] == "data:" {
			return fmt.Sprintf("<data url, %d bytes>", len(val))
		}
		return val
	default:
		return v
	}
}
