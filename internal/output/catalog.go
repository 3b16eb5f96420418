package output

import (
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/visionforge/visionforge/internal/ailink"
	"github.com/visionforge/visionforge/internal/imageset"
)

// Models renders the supported model catalog.
func Models(format Format, models []ailink.Model) (string, error) {
	return render(format, models, func() table.Writer {
		t := table.NewWriter()
		t.AppendHeader(table.Row{"ID", "Name", "Max Images", "Cost", "Description"})
		for _, m := range models {
			t.AppendRow(table.Row{m.ID, m.Name, m.MaxImages, m.Cost, m.Description})
		}
		return t
	})
}

// Images renders prepared images.
func Images(format Format, images []*imageset.Image) (string, error) {
	return render(format, images, func() table.Writer {
		t := table.NewWriter()
		t.AppendHeader(table.Row{"ID", "Name", "Type", "Size", "Original", "Resized"})
		for _, img := range images {
			t.AppendRow(table.Row{
				img.ID,
				img.Name,
				img.MIMEType,
				fmt.Sprintf("%dx%d", img.Width, img.Height),
				humanBytes(img.OriginalSize),
				yesNo(img.Resized),
			})
		}
		return t
	})
}

func humanBytes(n int) string {
	switch {
	case n >= 1<<20:
		return fmt.Sprintf("%.1f MB", float64(n)/(1<<20))
	case n >= 1<<10:
		return fmt.Sprintf("%.1f KB", float64(n)/(1<<10))
	default:
		return fmt.Sprintf("%d B", n)
	}
}
