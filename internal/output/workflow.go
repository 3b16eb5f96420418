package output

import (
	"fmt"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/visionforge/visionforge/internal/store"
	"github.com/visionforge/visionforge/internal/workflow"
)

// Run renders a workflow run, one row per card.
func Run(format Format, run *workflow.RunResult) (string, error) {
	if run == nil {
		return "", nil
	}
	var failures []string
	for _, res := range run.Results {
		if !res.OK {
			failures = append(failures, fmt.Sprintf("card %d: [%s] %s", res.Index+1, res.ErrorCode, res.Error))
		}
	}

	return render(format, run, func() table.Writer {
		t := table.NewWriter()
		t.SetTitle(fmt.Sprintf("%s (%s)", run.WorkflowName, run.Status))
		t.AppendHeader(table.Row{"#", "Card", "Technique", "Status", "Confidence", "Summary", "Duration"})
		for _, res := range run.Results {
			status := "ok"
			if !res.OK {
				status = "failed"
			}
			title := res.Title
			if title == "" {
				title = res.CardID
			}
			t.AppendRow(table.Row{
				res.Index + 1,
				truncate(title, 30),
				string(res.Technique),
				status,
				string(res.Response.Confidence),
				truncate(res.Response.Summary, 60),
				res.Duration.Round(time.Millisecond).String(),
			})
		}
		t.AppendFooter(table.Row{"", "", "", fmt.Sprintf("%d/%d ok", len(run.Results)-run.Failed(), len(run.Results)), "", "", ""})
		return t
	}, section{title: "Failures", lines: failures})
}

// Runs renders run history, newest first.
func Runs(format Format, runs []store.RunRecord) (string, error) {
	if runs == nil {
		runs = []store.RunRecord{}
	}
	return render(format, runs, func() table.Writer {
		t := table.NewWriter()
		t.AppendHeader(table.Row{"Run", "Workflow", "Status", "Cards", "Failed", "Started"})
		for _, r := range runs {
			t.AppendRow(table.Row{r.ID, r.WorkflowName, r.Status, r.CardCount, r.FailedCount, r.StartedAt.Format(time.RFC3339)})
		}
		return t
	})
}

// Templates renders the template catalog.
func Templates(format Format, templates []*workflow.Template) (string, error) {
	if templates == nil {
		templates = []*workflow.Template{}
	}
	return render(format, templates, func() table.Writer {
		t := table.NewWriter()
		t.AppendHeader(table.Row{"ID", "Category", "Cards", "Tags", "Description"})
		for _, tmpl := range templates {
			t.AppendRow(table.Row{tmpl.ID, tmpl.Category, len(tmpl.Cards), strings.Join(tmpl.Tags, ", "), truncate(tmpl.Description, 50)})
		}
		return t
	})
}

// Template renders one template with its cards.
func Template(format Format, tmpl *workflow.Template) (string, error) {
	return render(format, tmpl, func() table.Writer {
		t := table.NewWriter()
		t.SetTitle(fmt.Sprintf("%s: %s", tmpl.ID, tmpl.Name))
		t.AppendHeader(table.Row{"#", "Card", "Technique", "Context"})
		for i, c := range tmpl.Cards {
			t.AppendRow(table.Row{i + 1, c.Label(i), string(c.Technique.Kind()), contextLabel(c.Context.Mode)})
		}
		return t
	})
}

func contextLabel(mode workflow.ContextMode) string {
	if mode == workflow.ContextNone {
		return "none"
	}
	return string(mode)
}
