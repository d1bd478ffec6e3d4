// Package pipeline runs the three conversions end to end: validate the upload,
// convert it, name and package the output, and persist OCR results.
package pipeline

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"

	"github.com/toricodesthings/doc-conversion-service/internal/bundle"
	"github.com/toricodesthings/doc-conversion-service/internal/convert"
	"github.com/toricodesthings/doc-conversion-service/internal/domain"
	"github.com/toricodesthings/doc-conversion-service/internal/format"
	"github.com/toricodesthings/doc-conversion-service/internal/image"
	"github.com/toricodesthings/doc-conversion-service/internal/ocr"
	"github.com/toricodesthings/doc-conversion-service/internal/quality"
	"github.com/toricodesthings/doc-conversion-service/internal/store"
	"github.com/toricodesthings/doc-conversion-service/internal/validate"
)

// User-facing validation messages.
const (
	MsgChoosePDF        = "Please choose a PDF file."
	MsgOnlyPDF          = "Only .pdf files are allowed."
	MsgNoPages          = "No pages found in PDF."
	MsgChooseImages     = "Please choose one or more image files."
	MsgNoValidImages    = convert.NoValidImagesMsg
	MsgChooseImage      = "Please choose an image file."
	MsgOnlyImagesForOCR = "Only JPG, JPEG, or PNG files are allowed for OCR."
	MsgFileNotFound     = "File not found."
)

type Renderer interface {
	Render(ctx context.Context, pdf []byte, opts convert.RenderOptions) ([][]byte, error)
}

type Assembler interface {
	Assemble(ctx context.Context, images [][]byte) ([]byte, error)
}

type Config struct {
	DefaultDPI      int
	DefaultQuality  int
	DPIRange        validate.DPIRange
	DefaultLanguage string
	PageWorkers     int
	MaxOCR          int64
}

type Processor struct {
	cfg       Config
	renderer  Renderer
	assembler Assembler
	engine    ocr.Engine
	results   store.Store
	log       zerolog.Logger
	ocrSem    *semaphore.Weighted
}

func New(cfg Config, renderer Renderer, assembler Assembler, engine ocr.Engine, results store.Store, log zerolog.Logger) *Processor {
	if cfg.DefaultDPI <= 0 {
		cfg.DefaultDPI = convert.DefaultDPI
	}
	if cfg.DefaultQuality <= 0 {
		cfg.DefaultQuality = convert.DefaultQuality
	}
	if cfg.DPIRange.Max <= 0 {
		cfg.DPIRange = validate.DPIRange{Min: 36, Max: 600}
	}
	if cfg.DefaultLanguage == "" {
		cfg.DefaultLanguage = ocr.DefaultLanguage
	}
	if cfg.MaxOCR <= 0 {
		cfg.MaxOCR = 3
	}
	return &Processor{
		cfg:       cfg,
		renderer:  renderer,
		assembler: assembler,
		engine:    engine,
		results:   results,
		log:       log.With().Str("component", "pipeline").Logger(),
		ocrSem:    semaphore.NewWeighted(cfg.MaxOCR),
	}
}

// PDFOptions are the caller's rendering choices. Zero means "use the default".
type PDFOptions struct {
	DPI     int
	Quality int
}

func (p *Processor) ApplyDefaults(o PDFOptions) PDFOptions {
	if o.DPI == 0 {
		o.DPI = p.cfg.DefaultDPI
	}
	if o.Quality == 0 {
		o.Quality = p.cfg.DefaultQuality
	}
	return o
}

// PDFToJPEG renders every page of src. One page comes back as a bare JPEG,
// several as a zip of {base}_page{i}.jpg entries.
func (p *Processor) PDFToJPEG(ctx context.Context, src *domain.SourceDocument, opts PDFOptions) (domain.Artifact, error) {
	if err := validate.Upload(src, validate.PDFExtensions, MsgChoosePDF, MsgOnlyPDF); err != nil {
		return domain.Artifact{}, err
	}
	opts = p.ApplyDefaults(opts)
	if err := validate.RenderParams(opts.DPI, opts.Quality, p.cfg.DPIRange); err != nil {
		return domain.Artifact{}, err
	}

	start := time.Now()
	pages, err := p.renderer.Render(ctx, src.Data, convert.RenderOptions{
		DPI:     opts.DPI,
		Quality: opts.Quality,
		Workers: p.cfg.PageWorkers,
	})
	if err != nil {
		return domain.Artifact{}, err
	}
	if len(pages) == 0 {
		return domain.Artifact{}, domain.NewError(domain.KindConversion, MsgNoPages, nil)
	}

	base := format.Base(src.Filename)
	items := make([]domain.Artifact, len(pages))
	for i, data := range pages {
		items[i] = domain.Artifact{
			Name:      format.PageImageName(base, i+1),
			MediaType: domain.MediaTypeJPEG,
			Data:      data,
		}
	}

	out, err := bundle.Package(items, format.ArchiveName(base))
	if err != nil {
		return domain.Artifact{}, domain.ConversionError("could not package pages", err)
	}

	p.log.Debug().
		Int("pages", len(pages)).
		Int("dpi", opts.DPI).
		Int("quality", opts.Quality).
		Dur("took", time.Since(start)).
		Msg("pdf rendered")
	return out, nil
}

// MergeImages builds one PDF page per image, in upload order. Files with a
// disallowed extension are skipped without complaint.
func (p *Processor) MergeImages(ctx context.Context, srcs []domain.SourceDocument) (domain.Artifact, error) {
	if !anyNamed(srcs) {
		return domain.Artifact{}, domain.ValidationError(MsgChooseImages)
	}

	images := make([][]byte, 0, len(srcs))
	for _, s := range srcs {
		if s.Filename != "" && validate.Allowed(s.Filename, validate.ImageExtensions) {
			images = append(images, s.Data)
		}
	}
	if len(images) == 0 {
		return domain.Artifact{}, domain.ValidationError(MsgNoValidImages)
	}

	pdf, err := p.assembler.Assemble(ctx, images)
	if err != nil {
		return domain.Artifact{}, err
	}

	p.log.Debug().Int("images", len(images)).Int("skipped", len(srcs)-len(images)).Msg("images merged")
	return domain.Artifact{Name: format.MergedPDFName, MediaType: domain.MediaTypePDF, Data: pdf}, nil
}

func anyNamed(srcs []domain.SourceDocument) bool {
	for _, s := range srcs {
		if s.Filename != "" {
			return true
		}
	}
	return false
}

// ImageToText recognises the text in src and saves it as {base}_ocr.txt.
func (p *Processor) ImageToText(ctx context.Context, src *domain.SourceDocument, lang string) (domain.ExtractedText, error) {
	if err := validate.Upload(src, validate.ImageExtensions, MsgChooseImage, MsgOnlyImagesForOCR); err != nil {
		return domain.ExtractedText{}, err
	}
	if lang == "" {
		lang = p.cfg.DefaultLanguage
	}

	if err := p.ocrSem.Acquire(ctx, 1); err != nil {
		return domain.ExtractedText{}, domain.OCRError("gave up waiting for an OCR slot", err)
	}
	start := time.Now()
	res, err := image.ProcessImageOCR(ctx, p.engine, src.Data, lang)
	p.ocrSem.Release(1)
	if err != nil {
		return domain.ExtractedText{}, err
	}

	name := format.OCRTextName(format.Base(src.Filename))
	if err := p.results.Put(ctx, name, []byte(res.Text)); err != nil {
		return domain.ExtractedText{}, domain.StorageError("could not save OCR result", err)
	}

	report := quality.Assess(res.Text, 0)
	p.log.Debug().
		Str("engine", p.engine.Name()).
		Str("lang", res.Language).
		Int("words", report.WordCount).
		Float64("quality", report.Quality).
		Dur("took", time.Since(start)).
		Msg("ocr finished")

	return domain.ExtractedText{
		Text:         res.Text,
		Language:     res.Language,
		ArtifactName: name,
		Quality:      report,
	}, nil
}

// ResultText fetches a previously saved OCR text file. The requested name is
// sanitised first, so it can never address anything outside the result store.
func (p *Processor) ResultText(ctx context.Context, filename string) (domain.Artifact, error) {
	name := format.SecureFilename(filename)
	if name == "" {
		return domain.Artifact{}, domain.NotFoundError(MsgFileNotFound)
	}

	data, err := p.results.Get(ctx, name)
	if errors.Is(err, store.ErrNotFound) {
		return domain.Artifact{}, domain.NotFoundError(MsgFileNotFound)
	}
	if err != nil {
		return domain.Artifact{}, domain.StorageError("could not read result", err)
	}
	return domain.Artifact{Name: name, MediaType: domain.MediaTypeText, Data: data}, nil
}
