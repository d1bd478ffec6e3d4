package commands

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/toricodesthings/doc-conversion-service/internal/domain"
)

func newOCRCmd(root *rootOptions) *cobra.Command {
	var (
		lang     string
		toStdout bool
	)

	cmd := &cobra.Command{
		Use:   "ocr <image>",
		Short: "Extract text from a JPEG/PNG image",
		Long:  "Extract text from a JPEG/PNG image with Tesseract and write it to {name}_ocr.txt.",
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
			res, err := proc.ImageToText(ctx, src, lang)
			if err != nil {
				return err
			}

			if toStdout {
				fmt.Fprint(cmd.OutOrStdout(), res.Text)
			} else if err := writeArtifact(cmd, root.outDir, domain.Artifact{
				Name:      res.ArtifactName,
				MediaType: domain.MediaTypeText,
				Data:      []byte(res.Text),
			}); err != nil {
				return err
			}

			q := res.Quality
			fmt.Fprintf(cmd.ErrOrStderr(), "%s: %d words, quality %.2f", filepath.Base(args[0]), q.WordCount, q.Quality)
			if len(q.Reasons) > 0 {
				fmt.Fprintf(cmd.ErrOrStderr(), " (%s)", strings.Join(q.Reasons, ", "))
			}
			fmt.Fprintln(cmd.ErrOrStderr())
			return nil
		},
	}

	cmd.Flags().StringVarP(&lang, "lang", "l", "", "Tesseract language, e.g. eng or eng+deu (default DEFAULT_OCR_LANG)")
	cmd.Flags().BoolVar(&toStdout, "stdout", false, "print the text instead of writing a file")
	return cmd
}
