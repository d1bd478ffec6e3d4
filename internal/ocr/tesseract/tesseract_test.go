package tesseract

import (
	"bytes"
	"context"
	"image"
	"image/png"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/toricodesthings/doc-conversion-service/internal/ocr"
)

// textImage draws s with the 7x13 bitmap face and upscales it so Tesseract
// sees glyphs of a realistic size.
func textImage(t *testing.T, s string) []byte {
	t.Helper()
	const pad, scale = 10, 6

	face := basicfont.Face7x13
	w := font.MeasureString(face, s).Ceil() + 2*pad
	h := face.Height + 2*pad

	small := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(small, small.Bounds(), image.White, image.Point{}, draw.Src)
	d := &font.Drawer{
		Dst:  small,
		Src:  image.Black,
		Face: face,
		Dot:  fixed.P(pad, pad+face.Ascent),
	}
	d.DrawString(s)

	big := image.NewRGBA(image.Rect(0, 0, w*scale, h*scale))
	draw.NearestNeighbor.Scale(big, big.Bounds(), small, small.Bounds(), draw.Src, nil)

	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, big))
	return buf.Bytes()
}

func blankImage(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 200, 100))
	draw.Draw(img, img.Bounds(), image.White, image.Point{}, draw.Src)
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

// requireEnglishModel skips when libtesseract has no "eng" model installed.
func requireEnglishModel(t *testing.T, e *Engine) {
	t.Helper()
	if _, err := e.Recognize(context.Background(), ocr.Input{Image: blankImage(t), Language: "eng"}); err != nil {
		t.Skipf("tesseract eng model unavailable: %v", err)
	}
}

func TestRecognizeText(t *testing.T) {
	e := New("")
	requireEnglishModel(t, e)

	res, err := e.Recognize(context.Background(), ocr.Input{Image: textImage(t, "HELLO"), Language: "eng"})
	require.NoError(t, err)
	assert.Equal(t, "eng", res.Language)
	assert.Contains(t, strings.ToUpper(res.Text), "HELLO")
}

func TestRecognizeBlankImageIsEmptySuccess(t *testing.T) {
	e := New("")
	requireEnglishModel(t, e)

	res, err := e.Recognize(context.Background(), ocr.Input{Image: blankImage(t)})
	require.NoError(t, err)
	assert.Empty(t, strings.TrimSpace(res.Text))
}

func TestRecognizeUnknownLanguageFails(t *testing.T) {
	e := New("")
	requireEnglishModel(t, e)

	_, err := e.Recognize(context.Background(), ocr.Input{Image: blankImage(t), Language: "zzz_not_installed"})
	assert.Error(t, err)
}

func TestRecognizeRejectsMalformedLanguage(t *testing.T) {
	_, err := New("").Recognize(context.Background(), ocr.Input{Image: blankImage(t), Language: "eng; rm -rf /"})
	assert.Error(t, err)
}
