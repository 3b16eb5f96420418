package technique

import (
	"fmt"
	"strings"
)

// Kind identifies a prompting technique.
type Kind string

const (
	KindStandard       Kind = "standard"
	KindFewShot        Kind = "fewShot"
	KindMultiStep      Kind = "multiStep"
	KindVisualPointing Kind = "visualPointing"
	KindMultiImage     Kind = "multiImage"
)

// Kinds lists every technique kind in canonical application order.
var Kinds = []Kind{KindFewShot, KindMultiImage, KindVisualPointing, KindMultiStep, KindStandard}

// Valid reports whether k is a known technique kind.
func (k Kind) Valid() bool {
	_, ok := applicationPriority[k]
	return ok
}

func (k Kind) String() string {
	return string(k)
}

// ParseKind accepts the canonical camelCase name as well as the kebab-case
// and snake_case spellings used on the command line.
func ParseKind(value string) (Kind, error) {
	normalized := strings.ToLower(strings.TrimSpace(value))
	normalized = strings.NewReplacer("-", "", "_", "", " ", "").Replace(normalized)
	for _, k := range Kinds {
		if strings.ToLower(string(k)) == normalized {
			return k, nil
		}
	}
	return "", fmt.Errorf("unknown technique %q", value)
}
