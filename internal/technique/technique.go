package technique

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Technique pairs a kind with its configuration. Config may be nil when only
// the kind matters, as in combination checks.
type Technique struct {
	Type   Kind
	Config Config
}

// New wraps cfg.
func New(cfg Config) Technique {
	return Technique{Type: cfg.Kind(), Config: cfg}
}

// Kind returns the technique's kind, preferring the explicit Type.
func (t Technique) Kind() Kind {
	if t.Type != "" {
		return t.Type
	}
	if t.Config != nil {
		return t.Config.Kind()
	}
	return ""
}

// KindsOf extracts the kind of each technique.
func KindsOf(techniques []Technique) []Kind {
	out := make([]Kind, len(techniques))
	for i, t := range techniques {
		out[i] = t.Kind()
	}
	return out
}

type techniqueJSON struct {
	Type   Kind            `json:"type"`
	Config json.RawMessage `json:"config,omitempty"`
}

// MarshalJSON encodes {"type": kind, "config": {...}}.
func (t Technique) MarshalJSON() ([]byte, error) {
	out := struct {
		Type   Kind   `json:"type"`
		Config Config `json:"config,omitempty"`
	}{Type: t.Kind(), Config: t.Config}
	return json.Marshal(out)
}

// UnmarshalJSON decodes the config into the concrete type named by "type".
func (t *Technique) UnmarshalJSON(data []byte) error {
	var raw techniqueJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	kind, err := ParseKind(string(raw.Type))
	if err != nil {
		return err
	}
	t.Type = kind
	t.Config = nil

	if len(raw.Config) == 0 || bytes.Equal(bytes.TrimSpace(raw.Config), []byte("null")) {
		return nil
	}
	cfg, err := DecodeConfig(kind, raw.Config)
	if err != nil {
		return err
	}
	t.Config = cfg
	return nil
}

// DecodeConfig decodes a JSON config body for kind.
func DecodeConfig(kind Kind, data []byte) (Config, error) {
	var (
		cfg Config
		err error
	)
	switch kind {
	case KindStandard:
		var c StandardConfig
		err = json.Unmarshal(data, &c)
		cfg = c
	case KindFewShot:
		var c FewShotConfig
		err = json.Unmarshal(data, &c)
		cfg = c
	case KindMultiStep:
		var c MultiStepConfig
		err = json.Unmarshal(data, &c)
		cfg = c
	case KindVisualPointing:
		var c VisualPointingConfig
		err = json.Unmarshal(data, &c)
		cfg = c
	case KindMultiImage:
		var c MultiImageConfig
		err = json.Unmarshal(data, &c)
		cfg = c
	default:
		return nil, fmt.Errorf("unknown technique %q", kind)
	}
	if err != nil {
		return nil, fmt.Errorf("decode %s config: %w", kind, err)
	}
	return cfg, nil
}

// Markups is an ordered list of markup variants with a tagged JSON encoding.
type Markups []Markup

// MarshalJSON writes each markup with its "type" discriminant.
func (m Markups) MarshalJSON() ([]byte, error) {
	out := make([]json.RawMessage, 0, len(m))
	for i, mk := range m {
		if mk == nil {
			return nil, fmt.Errorf("markup %d is empty", i+1)
		}
		body, err := json.Marshal(mk)
		if err != nil {
			return nil, err
		}
		var fields map[string]json.RawMessage
		if err := json.Unmarshal(body, &fields); err != nil {
			return nil, err
		}
		typ, err := json.Marshal(mk.Type())
		if err != nil {
			return nil, err
		}
		fields["type"] = typ
		encoded, err := json.Marshal(fields)
		if err != nil {
			return nil, err
		}
		out = append(out, encoded)
	}
	return json.Marshal(out)
}

// UnmarshalJSON decodes each element by its "type" field.
func (m *Markups) UnmarshalJSON(data []byte) error {
	var raws []json.RawMessage
	if err := json.Unmarshal(data, &raws); err != nil {
		return err
	}
	out := make(Markups, 0, len(raws))
	for i, raw := range raws {
		mk, err := decodeMarkup(raw)
		if err != nil {
			return fmt.Errorf("markup %d: %w", i+1, err)
		}
		out = append(out, mk)
	}
	*m = out
	return nil
}

func decodeMarkup(data []byte) (Markup, error) {
	var head struct {
		Type MarkupType `json:"type"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, err
	}
	switch head.Type {
	case MarkupCircle:
		var c Circle
		err := json.Unmarshal(data, &c)
		return c, err
	case MarkupRectangle:
		var r Rectangle
		err := json.Unmarshal(data, &r)
		return r, err
	case MarkupArrow:
		var a Arrow
		err := json.Unmarshal(data, &a)
		return a, err
	case MarkupText:
		var t TextLabel
		err := json.Unmarshal(data, &t)
		return t, err
	default:
		return nil, fmt.Errorf("unknown markup type %q", head.Type)
	}
}
