package convert

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"sync"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"

	"github.com/toricodesthings/doc-conversion-service/internal/domain"
)

// NoValidImagesMsg is reported when a merge has nothing to work with.
const NoValidImagesMsg = "No valid images provided (jpg/jpeg/png)."

var disableConfigDir sync.Once

// pdfcpu mutates its configuration per command, so every call gets a fresh one.
func newConfiguration() *model.Configuration {
	disableConfigDir.Do(api.DisableConfigDir)
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	return conf
}

// ImageAssembler merges raster images into a PDF with pdfcpu.
type ImageAssembler struct{}

func NewImageAssembler() *ImageAssembler {
	return &ImageAssembler{}
}

// Assemble builds one page per image, in order, each page sized to its image.
// The batch is atomic: one undecodable image fails the whole merge.
func (a *ImageAssembler) Assemble(ctx context.Context, images [][]byte) ([]byte, error) {
	if len(images) == 0 {
		return nil, domain.ValidationError(NoValidImagesMsg)
	}

	readers := make([]io.Reader, 0, len(images))
	for i, data := range images {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
		if err != nil {
			return nil, domain.ConversionError(fmt.Sprintf("image %d is not a readable image", i+1), err)
		}
		if int64(cfg.Width)*int64(cfg.Height) > domain.MaxImagePixels {
			return nil, domain.ConversionError(fmt.Sprintf("image %d is too large (%dx%d)", i+1, cfg.Width, cfg.Height), nil)
		}
		readers = append(readers, bytes.NewReader(data))
	}

	imp := pdfcpu.DefaultImportConfig()
	imp.Pos = types.Full

	var buf bytes.Buffer
	if err := api.ImportImages(nil, &buf, readers, imp, newConfiguration()); err != nil {
		return nil, domain.ConversionError("could not assemble PDF", err)
	}
	return buf.Bytes(), nil
}

// PageCount reports the number of pages in pdf.
func PageCount(pdf []byte) (int, error) {
	n, err := api.PageCount(bytes.NewReader(pdf), newConfiguration())
	if err != nil {
		return 0, domain.DocumentParseError("could not read PDF", err)
	}
	return n, nil
}

// PageSizes reports each page's media box dimensions in points.
func PageSizes(pdf []byte) ([]types.Dim, error) {
	dims, err := api.PageDims(bytes.NewReader(pdf), newConfiguration())
	if err != nil {
		return nil, domain.DocumentParseError("could not read PDF", err)
	}
	return dims, nil
}
