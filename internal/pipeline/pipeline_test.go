package pipeline

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	stdimage "image"
	"image/png"
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/toricodesthings/doc-conversion-service/internal/convert"
	"github.com/toricodesthings/doc-conversion-service/internal/domain"
	"github.com/toricodesthings/doc-conversion-service/internal/ocr"
	"github.com/toricodesthings/doc-conversion-service/internal/store"
	"github.com/toricodesthings/doc-conversion-service/internal/validate"
)

type fakeRenderer struct {
	pages int
	err   error
	calls int
	got   convert.RenderOptions
}

func (f *fakeRenderer) Render(_ context.Context, _ []byte, opts convert.RenderOptions) ([][]byte, error) {
	f.calls++
	f.got = opts
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]byte, f.pages)
	for i := range out {
		out[i] = []byte{0xff, 0xd8, byte(i + 1)}
	}
	return out, nil
}

type fakeAssembler struct {
	got [][]byte
	err error
}

func (f *fakeAssembler) Assemble(_ context.Context, images [][]byte) ([]byte, error) {
	f.got = images
	if f.err != nil {
		return nil, f.err
	}
	return []byte("%PDF-1.7 merged"), nil
}

type fakeEngine struct {
	text    string
	err     error
	delay   time.Duration
	active  atomic.Int32
	maxSeen atomic.Int32
}

func (f *fakeEngine) Name() string { return "fake" }

func (f *fakeEngine) Recognize(_ context.Context, in ocr.Input) (ocr.Result, error) {
	n := f.active.Add(1)
	defer f.active.Add(-1)
	for {
		m := f.maxSeen.Load()
		if n <= m || f.maxSeen.CompareAndSwap(m, n) {
			break
		}
	}
	time.Sleep(f.delay)
	if f.err != nil {
		return ocr.Result{}, f.err
	}
	return ocr.Result{Text: f.text, Language: in.Language}, nil
}

func pngBytes(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, stdimage.NewGray(stdimage.Rect(0, 0, 4, 4))))
	return buf.Bytes()
}

func newProcessor(r Renderer, a Assembler, e ocr.Engine, s store.Store) *Processor {
	return New(Config{
		DPIRange:    validate.DPIRange{Min: 36, Max: 600},
		PageWorkers: 2,
		MaxOCR:      1,
	}, r, a, e, s, zerolog.Nop())
}

func TestPDFToJPEGMultiplePagesZipped(t *testing.T) {
	r := &fakeRenderer{pages: 3}
	p := newProcessor(r, &fakeAssembler{}, &fakeEngine{}, store.NewMemory())

	out, err := p.PDFToJPEG(context.Background(), &domain.SourceDocument{Filename: "document.pdf", Data: []byte("%PDF-")}, PDFOptions{})
	require.NoError(t, err)
	assert.Equal(t, "document_pages.zip", out.Name)
	assert.Equal(t, domain.MediaTypeZip, out.MediaType)

	zr, err := zip.NewReader(bytes.NewReader(out.Data), int64(len(out.Data)))
	require.NoError(t, err)
	require.Len(t, zr.File, 3)
	for i, f := range zr.File {
		assert.Equal(t, []string{"document_page1.jpg", "document_page2.jpg", "document_page3.jpg"}[i], f.Name)
		rc, err := f.Open()
		require.NoError(t, err)
		data, err := io.ReadAll(rc)
		require.NoError(t, err)
		_ = rc.Close()
		assert.Equal(t, byte(i+1), data[2], "page order")
	}

	assert.Equal(t, 200, r.got.DPI)
	assert.Equal(t, 90, r.got.Quality)
	assert.Equal(t, 2, r.got.Workers)
}

func TestPDFToJPEGSinglePage(t *testing.T) {
	p := newProcessor(&fakeRenderer{pages: 1}, &fakeAssembler{}, &fakeEngine{}, store.NewMemory())

	out, err := p.PDFToJPEG(context.Background(), &domain.SourceDocument{Filename: "My Report.PDF"}, PDFOptions{DPI: 72, Quality: 50})
	require.NoError(t, err)
	assert.Equal(t, "My_Report_page1.jpg", out.Name)
	assert.Equal(t, domain.MediaTypeJPEG, out.MediaType)
}

func TestPDFToJPEGFailures(t *testing.T) {
	tests := []struct {
		name     string
		src      *domain.SourceDocument
		opts     PDFOptions
		renderer *fakeRenderer
		kind     domain.Kind
		msg      string
		rendered bool
	}{
		{"no file", nil, PDFOptions{}, &fakeRenderer{pages: 1}, domain.KindValidation, MsgChoosePDF, false},
		{"empty filename", &domain.SourceDocument{}, PDFOptions{}, &fakeRenderer{pages: 1}, domain.KindValidation, MsgChoosePDF, false},
		{"wrong extension", &domain.SourceDocument{Filename: "doc.txt"}, PDFOptions{}, &fakeRenderer{pages: 1}, domain.KindValidation, MsgOnlyPDF, false},
		{"dpi too high", &domain.SourceDocument{Filename: "a.pdf"}, PDFOptions{DPI: 5000}, &fakeRenderer{pages: 1}, domain.KindValidation, "DPI must be between 36 and 600.", false},
		{"quality too high", &domain.SourceDocument{Filename: "a.pdf"}, PDFOptions{Quality: 101}, &fakeRenderer{pages: 1}, domain.KindValidation, "JPEG quality must be between 1 and 100.", false},
		{"zero pages", &domain.SourceDocument{Filename: "a.pdf"}, PDFOptions{}, &fakeRenderer{}, domain.KindConversion, MsgNoPages, true},
		{"parse failure", &domain.SourceDocument{Filename: "a.pdf"}, PDFOptions{}, &fakeRenderer{err: domain.DocumentParseError("not a PDF", errors.New("bad"))}, domain.KindDocumentParse, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newProcessor(tt.renderer, &fakeAssembler{}, &fakeEngine{}, store.NewMemory())
			_, err := p.PDFToJPEG(context.Background(), tt.src, tt.opts)
			require.Error(t, err)
			assert.Equal(t, tt.kind, domain.KindOf(err))
			if tt.msg != "" {
				assert.Equal(t, tt.msg, err.Error())
			}
			assert.Equal(t, tt.rendered, tt.renderer.calls > 0)
		})
	}
}

func TestMergeImagesSkipsDisallowedFiles(t *testing.T) {
	a := &fakeAssembler{}
	p := newProcessor(&fakeRenderer{}, a, &fakeEngine{}, store.NewMemory())

	out, err := p.MergeImages(context.Background(), []domain.SourceDocument{
		{Filename: "a.png", Data: []byte("A")},
		{Filename: "anim.gif", Data: []byte("G")},
		{Filename: "b.JPG", Data: []byte("B")},
		{Filename: "notes.txt", Data: []byte("T")},
	})
	require.NoError(t, err)
	assert.Equal(t, "images_merged.pdf", out.Name)
	assert.Equal(t, domain.MediaTypePDF, out.MediaType)
	assert.Equal(t, [][]byte{[]byte("A"), []byte("B")}, a.got)
}

func TestMergeImagesFailures(t *testing.T) {
	tests := []struct {
		name string
		srcs []domain.SourceDocument
		err  error
		kind domain.Kind
		msg  string
	}{
		{"nothing chosen", nil, nil, domain.KindValidation, MsgChooseImages},
		{"only empty filenames", []domain.SourceDocument{{}, {}}, nil, domain.KindValidation, MsgChooseImages},
		{"empty first filename", []domain.SourceDocument{{}, {Filename: "x.gif"}}, nil, domain.KindValidation, MsgNoValidImages},
		{"only disallowed", []domain.SourceDocument{{Filename: "x.gif"}, {Filename: "y.bmp"}}, nil, domain.KindValidation, MsgNoValidImages},
		{"corrupt image", []domain.SourceDocument{{Filename: "x.png"}}, domain.ConversionError("image 1 is not a readable image", errors.New("eof")), domain.KindConversion, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newProcessor(&fakeRenderer{}, &fakeAssembler{err: tt.err}, &fakeEngine{}, store.NewMemory())
			_, err := p.MergeImages(context.Background(), tt.srcs)
			require.Error(t, err)
			assert.Equal(t, tt.kind, domain.KindOf(err))
			if tt.msg != "" {
				assert.Equal(t, tt.msg, err.Error())
			}
		})
	}
}

func TestImageToTextPersistsResult(t *testing.T) {
	results := store.NewMemory()
	p := newProcessor(&fakeRenderer{}, &fakeAssembler{}, &fakeEngine{text: "HELLO\n"}, results)
	ctx := context.Background()

	got, err := p.ImageToText(ctx, &domain.SourceDocument{Filename: "image.png", Data: pngBytes(t)}, "")
	require.NoError(t, err)
	assert.Equal(t, "HELLO\n", got.Text)
	assert.Equal(t, "eng", got.Language)
	assert.Equal(t, "image_ocr.txt", got.ArtifactName)
	assert.Equal(t, 1, got.Quality.WordCount)

	art, err := p.ResultText(ctx, "image_ocr.txt")
	require.NoError(t, err)
	assert.Equal(t, "HELLO\n", string(art.Data))
	assert.Equal(t, domain.MediaTypeText, art.MediaType)
}

func TestImageToTextEmptyTextIsSuccess(t *testing.T) {
	p := newProcessor(&fakeRenderer{}, &fakeAssembler{}, &fakeEngine{}, store.NewMemory())

	got, err := p.ImageToText(context.Background(), &domain.SourceDocument{Filename: "blank.jpg", Data: pngBytes(t)}, "deu")
	require.NoError(t, err)
	assert.Empty(t, got.Text)
	assert.Equal(t, "deu", got.Language)
	assert.True(t, got.Quality.Empty)

	art, err := p.ResultText(context.Background(), "blank_ocr.txt")
	require.NoError(t, err)
	assert.Empty(t, art.Data)
}

func TestImageToTextFailures(t *testing.T) {
	tests := []struct {
		name   string
		src    *domain.SourceDocument
		engine *fakeEngine
		kind   domain.Kind
		msg    string
	}{
		{"no file", nil, &fakeEngine{}, domain.KindValidation, MsgChooseImage},
		{"gif", &domain.SourceDocument{Filename: "a.gif"}, &fakeEngine{}, domain.KindValidation, MsgOnlyImagesForOCR},
		{"engine failure", &domain.SourceDocument{Filename: "a.png"}, &fakeEngine{err: errors.New("boom")}, domain.KindOCR, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			results := store.NewMemory()
			p := newProcessor(&fakeRenderer{}, &fakeAssembler{}, tt.engine, results)
			if tt.src != nil {
				tt.src.Data = pngBytes(t)
			}
			_, err := p.ImageToText(context.Background(), tt.src, "eng")
			require.Error(t, err)
			assert.Equal(t, tt.kind, domain.KindOf(err))
			if tt.msg != "" {
				assert.Equal(t, tt.msg, err.Error())
			}
			_, err = results.Get(context.Background(), "a_ocr.txt")
			assert.ErrorIs(t, err, store.ErrNotFound)
		})
	}
}

func TestImageToTextBoundsConcurrentOCR(t *testing.T) {
	engine := &fakeEngine{text: "x", delay: 20 * time.Millisecond}
	p := newProcessor(&fakeRenderer{}, &fakeAssembler{}, engine, store.NewMemory())
	data := pngBytes(t)

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := p.ImageToText(context.Background(), &domain.SourceDocument{Filename: "a.png", Data: data}, "eng")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), engine.maxSeen.Load())
}

func TestResultTextNotFound(t *testing.T) {
	results := store.NewMemory()
	require.NoError(t, results.Put(context.Background(), "passwd", []byte("secret")))
	p := newProcessor(&fakeRenderer{}, &fakeAssembler{}, &fakeEngine{}, results)

	for _, name := range []string{"missing_ocr.txt", "", "../"} {
		_, err := p.ResultText(context.Background(), name)
		assert.Equal(t, domain.KindNotFound, domain.KindOf(err), name)
	}

	art, err := p.ResultText(context.Background(), "../../passwd")
	require.NoError(t, err)
	assert.Equal(t, "passwd", art.Name)
}

func TestApplyDefaults(t *testing.T) {
	p := New(Config{DefaultDPI: 150, DefaultQuality: 75}, nil, nil, nil, store.NewMemory(), zerolog.Nop())
	assert.Equal(t, PDFOptions{DPI: 150, Quality: 75}, p.ApplyDefaults(PDFOptions{}))
	assert.Equal(t, PDFOptions{DPI: 300, Quality: 75}, p.ApplyDefaults(PDFOptions{DPI: 300}))
}
