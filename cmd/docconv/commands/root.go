package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/toricodesthings/doc-conversion-service/internal/app"
	"github.com/toricodesthings/doc-conversion-service/internal/config"
	"github.com/toricodesthings/doc-conversion-service/internal/domain"
	"github.com/toricodesthings/doc-conversion-service/internal/logging"
	"github.com/toricodesthings/doc-conversion-service/internal/pipeline"
	"github.com/toricodesthings/doc-conversion-service/internal/store"
)

type rootOptions struct {
	outDir  string
	verbose bool
}

// NewRootCmd builds the docconv command tree.
func NewRootCmd() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:   "docconv",
		Short: "Convert PDFs to JPEGs, images to PDF, and images to text",
		Long: `docconv runs the same conversions as the web service against local files:
rasterise PDF pages to JPEG, merge JPEG/PNG images into one PDF, and extract
text from an image with Tesseract OCR.`,
		SilenceUsage: true,
	}

	root.PersistentFlags().StringVarP(&opts.outDir, "out", "o", ".", "directory to write results to")
	root.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "enable debug logging")

	root.AddCommand(
		newPDF2JPGCmd(opts),
		newIMG2PDFCmd(opts),
		newOCRCmd(opts),
		newPagesCmd(),
	)
	return root
}

// Execute runs the root command until it finishes or the process is
// interrupted.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return NewRootCmd().ExecuteContext(ctx)
}

func newLogger(opts *rootOptions) zerolog.Logger {
	level := "warn"
	if opts.verbose {
		level = "debug"
	}
	return logging.New(logging.Config{Level: level, Format: "console", Output: os.Stderr})
}

// newProcessor builds a pipeline that keeps OCR results in memory; the
// commands write outputs themselves.
func newProcessor(ctx context.Context, opts *rootOptions) (*pipeline.Processor, error) {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg.UploadFolder = ""
	proc, _, err := app.Build(ctx, cfg, store.NewMemory(), newLogger(opts))
	return proc, err
}

func readSource(path string) (*domain.SourceDocument, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return &domain.SourceDocument{Filename: filepath.Base(path), Data: data}, nil
}

func writeArtifact(cmd *cobra.Command, dir string, art domain.Artifact) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}
	path := filepath.Join(dir, art.Name)
	if err := os.WriteFile(path, art.Data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), path)
	return nil
}
