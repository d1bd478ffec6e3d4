package commands

import (
	"github.com/spf13/cobra"

	"github.com/toricodesthings/doc-conversion-service/internal/domain"
)

func newIMG2PDFCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "img2pdf <image>...",
		Short: "Merge JPEG/PNG images into one PDF, one page per image",
		Long:  "Merge JPEG/PNG images into images_merged.pdf in argument order. Other file types are skipped.",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			srcs := make([]domain.SourceDocument, 0, len(args))
			for _, path := range args {
				src, err := readSource(path)
				if err != nil {
					return err
				}
				srcs = append(srcs, *src)
			}
			proc, err := newProcessor(ctx, root)
			if err != nil {
				return err
			}
			art, err := proc.MergeImages(ctx, srcs)
			if err != nil {
				return err
			}
			return writeArtifact(cmd, root.outDir, art)
		},
	}
}
