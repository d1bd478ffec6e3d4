package commands

import (
	"github.com/spf13/cobra"

	"github.com/toricodesthings/doc-conversion-service/internal/pipeline"
)

func newPDF2JPGCmd(root *rootOptions) *cobra.Command {
	var dpi, quality int

	cmd := &cobra.Command{
		Use:   "pdf2jpg <file.pdf>",
		Short: "Render every page of a PDF to JPEG",
		Long:  "Render every page of a PDF to JPEG. A single page is written as {name}_page1.jpg, several pages as {name}_pages.zip.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			src, err := readSource(args[0])
			if err != nil {
				return err
			}
			proc, err := newProcessor(ctx, root)
			if err != nil {
				return err
			}
			art, err := proc.PDFToJPEG(ctx, src, pipeline.PDFOptions{DPI: dpi, Quality: quality})
			if err != nil {
				return err
			}
			return writeArtifact(cmd, root.outDir, art)
		},
	}

	cmd.Flags().IntVar(&dpi, "dpi", 0, "render resolution (default DEFAULT_DPI)")
	cmd.Flags().IntVar(&quality, "quality", 0, "JPEG quality 1-100 (default DEFAULT_JPEG_QUALITY)")
	return cmd
}
