package output

import (
	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/visionforge/visionforge/internal/technique"
)

// Validation renders a technique validation result.
func Validation(format Format, kind technique.Kind, res technique.ValidationResult) (string, error) {
	return render(format, res, func() table.Writer {
		t := table.NewWriter()
		t.AppendHeader(table.Row{"Technique", "Valid", "Errors"})
		t.AppendRow(table.Row{string(kind), yesNo(res.Valid), len(res.Errors)})
		return t
	}, section{title: "Errors", lines: res.Errors})
}

// Combination renders a combination check.
func Combination(format Format, kinds []technique.Kind, res technique.CombinationResult) (string, error) {
	return render(format, res, func() table.Writer {
		t := table.NewWriter()
		t.AppendHeader(table.Row{"#", "Technique", "Compatible With"})
		for i, k := range kinds {
			t.AppendRow(table.Row{i + 1, string(k), joinKinds(technique.CompatibleWith(k))})
		}
		t.AppendFooter(table.Row{"", "compatible", yesNo(res.Compatible)})
		return t
	},
		section{title: "Conflicts", lines: res.Conflicts},
		section{title: "Warnings", lines: res.Warnings},
	)
}

func joinKinds(kinds []technique.Kind) string {
	out := ""
	for i, k := range kinds {
		if i > 0 {
			out += ", "
		}
		out += string(k)
	}
	return out
}

func yesNo(v bool) string {
	if v {
		return "yes"
	}
	return "no"
}
