// Package app wires configuration into a ready pipeline. It is shared by the
// HTTP server and the offline CLI.
package app

import (
	"context"
	"fmt"
	"os"

	"github.com/rs/zerolog"

	"github.com/toricodesthings/doc-conversion-service/internal/config"
	"github.com/toricodesthings/doc-conversion-service/internal/convert"
	"github.com/toricodesthings/doc-conversion-service/internal/ocr"
	"github.com/toricodesthings/doc-conversion-service/internal/ocr/tesseract"
	"github.com/toricodesthings/doc-conversion-service/internal/pipeline"
	"github.com/toricodesthings/doc-conversion-service/internal/store"
	"github.com/toricodesthings/doc-conversion-service/internal/validate"
)

// Engine picks the OCR engine: the tesseract executable when TESSERACT_CMD is
// set, the linked library otherwise.
func Engine(cfg config.Config) ocr.Engine {
	if cfg.TesseractCmd != "" {
		return ocr.NewCommandEngine(cfg.TesseractCmd, cfg.TessdataPrefix)
	}
	return tesseract.New(cfg.TessdataPrefix)
}

func StoreConfig(cfg config.Config) store.Config {
	return store.Config{
		Backend:       cfg.ResultsBackend,
		Dir:           cfg.ResultsFolder,
		Bucket:        cfg.ResultsBucket,
		Prefix:        cfg.ResultsPrefix,
		RedisAddr:     cfg.RedisAddr,
		RedisPassword: cfg.RedisPassword,
		RedisDB:       cfg.RedisDB,
		TTL:           cfg.ResultsTTL,
	}
}

func PipelineConfig(cfg config.Config) pipeline.Config {
	return pipeline.Config{
		DefaultDPI:      cfg.DefaultDPI,
		DefaultQuality:  cfg.DefaultJPEGQuality,
		DPIRange:        validate.DPIRange{Min: cfg.MinDPI, Max: cfg.MaxDPI},
		DefaultLanguage: cfg.DefaultOCRLang,
		PageWorkers:     cfg.MaxPageWorkers,
		MaxOCR:          cfg.MaxOCRConcurrent,
	}
}

// Build creates the working directories, opens the result store and returns
// a processor using it. The caller closes the store.
func Build(ctx context.Context, cfg config.Config, results store.Store, log zerolog.Logger) (*pipeline.Processor, store.Store, error) {
	if cfg.UploadFolder != "" {
		if err := os.MkdirAll(cfg.UploadFolder, 0o755); err != nil {
			return nil, nil, fmt.Errorf("create upload folder: %w", err)
		}
	}

	if results == nil {
		var err error
		results, err = store.Open(ctx, StoreConfig(cfg))
		if err != nil {
			return nil, nil, fmt.Errorf("open results store: %w", err)
		}
	}

	engine := Engine(cfg)
	proc := pipeline.New(PipelineConfig(cfg), convert.NewPDFRenderer(), convert.NewImageAssembler(), engine, results, log)

	log.Info().
		Str("engine", engine.Name()).
		Str("results", cfg.ResultsBackend).
		Int64("max_ocr", cfg.MaxOCRConcurrent).
		Int("page_workers", cfg.MaxPageWorkers).
		Msg("pipeline ready")
	return proc, results, nil
}
