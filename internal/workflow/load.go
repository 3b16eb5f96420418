package workflow

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/visionforge/visionforge/internal/technique"
)

// Load parses a workflow from YAML or JSON. A document holding a single card
// (a top-level "technique" key) becomes a one-card workflow.
func Load(source string, data []byte) (*Workflow, error) {
	raw, err := toJSON(data)
	if err != nil {
		return nil, fmt.Errorf("parse workflow %s: %w", source, err)
	}

	var probe map[string]json.RawMessage
	if err := json.Unmarshal(raw, &probe); err != nil {
		return nil, fmt.Errorf("parse workflow %s: expected a mapping", source)
	}

	var wf Workflow
	if _, single := probe["technique"]; single {
		var card Card
		if err := json.Unmarshal(raw, &card); err != nil {
			return nil, fmt.Errorf("parse card %s: %w", source, err)
		}
		wf.Name = strings.TrimSuffix(filepath.Base(source), filepath.Ext(source))
		wf.Cards = []Card{card}
	} else if err := json.Unmarshal(raw, &wf); err != nil {
		return nil, fmt.Errorf("parse workflow %s: %w", source, err)
	}
	wf.Normalize()
	return &wf, nil
}

// LoadFile reads a workflow or card file.
func LoadFile(path string) (*Workflow, error) {
	data, err := os.ReadFile(path) // #nosec G304 -- workflow path is user-provided
	if err != nil {
		return nil, fmt.Errorf("read workflow %s: %w", path, err)
	}
	return Load(path, data)
}

// LoadTechniques parses a list of techniques, either a bare sequence or a
// mapping with a "techniques" key.
func LoadTechniques(source string, data []byte) ([]technique.Technique, error) {
	raw, err := toJSON(data)
	if err != nil {
		return nil, fmt.Errorf("parse techniques %s: %w", source, err)
	}
	var list []technique.Technique
	if bytes.HasPrefix(bytes.TrimSpace(raw), []byte("[")) {
		err = json.Unmarshal(raw, &list)
	} else {
		var wrapped struct {
			Techniques []technique.Technique `json:"techniques"`
		}
		err = json.Unmarshal(raw, &wrapped)
		list = wrapped.Techniques
	}
	if err != nil {
		return nil, fmt.Errorf("parse techniques %s: %w", source, err)
	}
	return list, nil
}

// MarshalYAML renders v as YAML through its JSON form, so custom JSON
// encoders such as technique.Technique are honored.
func MarshalYAML(v any) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var doc any
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// toJSON converts a YAML (or JSON) document to JSON bytes.
func toJSON(data []byte) ([]byte, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, fmt.Errorf("empty document")
	}
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	return json.Marshal(normalizeYAML(doc))
}

// normalizeYAML rewrites map[any]any nodes, which encoding/json rejects.
func normalizeYAML(v any) any {
	switch t := v.(type) {
	case map[string]any:
		for k, val := range t {
			t[k] = normalizeYAML(val)
		}
		return t
	case map[any]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[fmt.Sprint(k)] = normalizeYAML(val)
		}
		return out
	case []any:
		for i, val := range t {
			t[i] = normalizeYAML(val)
		}
		return t
	default:
		return v
	}
}
