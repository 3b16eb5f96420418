package cmd

import (
	"bytes"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/visionforge/visionforge/internal/imageset"
	"github.com/visionforge/visionforge/internal/output"
)

var imageCmd = &cobra.Command{
	Use:   "image",
	Short: "Image utilities",
}

var imagePrepCmd = &cobra.Command{
	Use:   "prep",
	Short: "Validate and downscale an image the way analysis uploads do",
	Long: `Check the image type and size, downscale it to fit images.max_dimension and
write the result. The output format follows the --out extension (.png, else
JPEG). Without --out only the report is printed.`,
	Example: "  visionforge image prep --in photo.png --out photo.jpg --max-dimension 1024",
	RunE:    runImagePrep,
}

func init() {
	rootCmd.AddCommand(imageCmd)
	imageCmd.AddCommand(imagePrepCmd)

	imagePrepCmd.Flags().String("in", "", "Input image (jpeg, png, gif or webp)")
	imagePrepCmd.Flags().String("out", "", "Output image path")
	imagePrepCmd.Flags().Int("max-dimension", 0, "Longest side in pixels (overrides images.max_dimension)")
	addOutputFlag(imagePrepCmd)
	_ = imagePrepCmd.MarkFlagRequired("in")
}

func runImagePrep(cmd *cobra.Command, args []string) error {
	format, err := outputFormat(cmd)
	if err != nil {
		return err
	}
	in, _ := cmd.Flags().GetString("in")
	out, _ := cmd.Flags().GetString("out")
	maxDim, _ := cmd.Flags().GetInt("max-dimension")

	cfg, err := currentConfig()
	if err != nil {
		return err
	}
	opts := cfg.Images
	if maxDim > 0 {
		opts.MaxDimension = maxDim
	}

	img, err := imageset.PrepareFile(in, opts)
	if err != nil {
		return err
	}
	img.ID = in

	if out != "" {
		data, err := encodeFor(img, imageset.FormatForPath(out), opts.JPEGQuality)
		if err != nil {
			return err
		}
		if err := os.WriteFile(out, data, 0o644); err != nil { // #nosec G306 -- output image is not sensitive
			return fmt.Errorf("write %s: %w", out, err)
		}
	}

	rendered, err := output.Images(format, []*imageset.Image{img})
	if err != nil {
		return err
	}
	printRendered(cmd, rendered)
	return nil
}

// encodeFor returns img's bytes in format, re-encoding only when the
// prepared type differs.
func encodeFor(img *imageset.Image, format string, quality int) ([]byte, error) {
	if img.MIMEType == "image/"+format {
		return img.Data, nil
	}
	decoded, err := imageset.Decode(img.Data)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := imageset.Encode(&buf, decoded, format, quality); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
