package technique

import (
	"fmt"
	"sort"
	"strings"
)

const softTechniqueLimit = 3

// compatibility lists, per kind, the kinds it may be combined with. The table
// is kept symmetric.
var compatibility = map[Kind][]Kind{
	KindFewShot:        {KindMultiStep, KindStandard},
	KindMultiStep:      {KindFewShot, KindVisualPointing, KindMultiImage, KindStandard},
	KindVisualPointing: {KindMultiStep, KindStandard},
	KindMultiImage:     {KindMultiStep, KindStandard},
	KindStandard:       {KindFewShot, KindMultiStep, KindVisualPointing, KindMultiImage},
}

var applicationPriority = map[Kind]int{
	KindFewShot:        1,
	KindMultiImage:     2,
	KindVisualPointing: 3,
	KindMultiStep:      4,
	KindStandard:       5,
}

// Compatible reports whether a may be combined with b.
func Compatible(a, b Kind) bool {
	for _, k := range compatibility[a] {
		if k == b {
			return true
		}
	}
	return false
}

// CompatibleWith returns the kinds k may be combined with.
func CompatibleWith(k Kind) []Kind {
	return append([]Kind(nil), compatibility[k]...)
}

// CombinationResult reports whether techniques can be applied together.
// Conflicts block prompt generation; warnings do not.
type CombinationResult struct {
	Compatible bool     `json:"compatible"`
	Conflicts  []string `json:"conflicts"`
	Warnings   []string `json:"warnings"`
}

// CombinationError is returned when a combined prompt is requested for an
// incompatible technique list.
type CombinationError struct {
	Conflicts []string
}

func (e *CombinationError) Error() string {
	return "Incompatible technique combination: " + strings.Join(e.Conflicts, ", ")
}

// ValidateCombination checks duplicates and every unordered pair against the
// compatibility table.
func ValidateCombination(techniques []Technique) CombinationResult {
	conflicts := []string{}
	warnings := []string{}

	switch len(techniques) {
	case 0:
		return CombinationResult{Compatible: false, Conflicts: []string{"At least one technique is required"}, Warnings: warnings}
	case 1:
		return CombinationResult{Compatible: true, Conflicts: conflicts, Warnings: warnings}
	}

	if len(techniques) > softTechniqueLimit {
		warnings = append(warnings, "Combining more than 3 techniques may reduce effectiveness")
	}

	seen := make(map[Kind]bool, len(techniques))
	duplicate := false
	for _, t := range techniques {
		if seen[t.Kind()] {
			duplicate = true
		}
		seen[t.Kind()] = true
	}
	if duplicate {
		conflicts = append(conflicts, "Cannot use the same technique type multiple times")
	}

	for i := 0; i < len(techniques); i++ {
		for j := i + 1; j < len(techniques); j++ {
			a, b := techniques[i].Kind(), techniques[j].Kind()
			if !Compatible(a, b) {
				conflicts = append(conflicts, fmt.Sprintf("%s and %s are not compatible", a, b))
			}
		}
	}

	if seen[KindFewShot] && seen[KindVisualPointing] {
		warnings = append(warnings, "Combining few-shot with visual pointing may be complex; ensure examples also use markups")
	}

	return CombinationResult{Compatible: len(conflicts) == 0, Conflicts: conflicts, Warnings: warnings}
}

// ResolveConflicts drops every repeat of a kind after its first occurrence
// when the list is incompatible. Cross-kind incompatibilities are left in
// place; callers revalidate the result to see what remains.
func ResolveConflicts(techniques []Technique) []Technique {
	out := make([]Technique, 0, len(techniques))
	if ValidateCombination(techniques).Compatible {
		return append(out, techniques...)
	}
	seen := make(map[Kind]bool, len(techniques))
	for _, t := range techniques {
		if seen[t.Kind()] {
			continue
		}
		seen[t.Kind()] = true
		out = append(out, t)
	}
	return out
}

// OrderForApplication returns a copy sorted by application priority. Equal
// kinds keep their relative order.
func OrderForApplication(techniques []Technique) []Technique {
	out := append([]Technique(nil), techniques...)
	sort.SliceStable(out, func(i, j int) bool {
		return priority(out[i].Kind()) < priority(out[j].Kind())
	})
	return out
}

func priority(k Kind) int {
	if p, ok := applicationPriority[k]; ok {
		return p
	}
	return len(applicationPriority) + 1
}

// MergedConfig collects the configs of a technique list by kind. A later
// technique of the same kind replaces an earlier one.
type MergedConfig struct {
	Techniques []Kind         `json:"techniques"`
	Configs    map[Kind]Config `json:"configs"`
}

// MergeConfigs indexes techniques by kind.
func MergeConfigs(techniques []Technique) MergedConfig {
	merged := MergedConfig{
		Techniques: make([]Kind, 0, len(techniques)),
		Configs:    make(map[Kind]Config, len(techniques)),
	}
	for _, t := range techniques {
		merged.Techniques = append(merged.Techniques, t.Kind())
		merged.Configs[t.Kind()] = t.Config
	}
	return merged
}

// BuildCombinedPrompt validates the combination, then joins each technique's
// prompt in application order. Warnings are appended as a closing note.
func BuildCombinedPrompt(techniques []Technique) (string, error) {
	res := ValidateCombination(techniques)
	if !res.Compatible {
		return "", &CombinationError{Conflicts: res.Conflicts}
	}

	ordered := OrderForApplication(techniques)
	prompts := make([]string, 0, len(ordered))
	for _, t := range ordered {
		if t.Config == nil {
			return "", &ValidationError{Kind: t.Kind(), Violations: []string{fmt.Sprintf("%s technique has no configuration", t.Kind())}}
		}
		prompt, err := t.Config.BuildPrompt()
		if err != nil {
			return "", err
		}
		prompts = append(prompts, prompt)
	}

	out := strings.Join(prompts, "\n\n")
	if len(res.Warnings) > 0 {
		out += "\n\nNote: " + strings.Join(res.Warnings, " ")
	}
	return out, nil
}
