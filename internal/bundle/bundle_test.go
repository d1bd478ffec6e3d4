package bundle

import (
	"archive/zip"
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/toricodesthings/doc-conversion-service/internal/domain"
)

func jpegArtifact(name, body string) domain.Artifact {
	return domain.Artifact{Name: name, MediaType: domain.MediaTypeJPEG, Data: []byte(body)}
}

func TestPackageEmpty(t *testing.T) {
	_, err := Package(nil, "x.zip")
	assert.ErrorIs(t, err, ErrEmpty)
}

func TestPackageSingleIsPassedThrough(t *testing.T) {
	in := jpegArtifact("document_page1.jpg", "jpeg-bytes")

	out, err := Package([]domain.Artifact{in}, "document_pages.zip")
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestPackageManyBuildsOrderedZip(t *testing.T) {
	items := []domain.Artifact{
		jpegArtifact("document_page1.jpg", "one"),
		jpegArtifact("document_page2.jpg", "two"),
		jpegArtifact("document_page3.jpg", "three"),
	}

	out, err := Package(items, "document_pages.zip")
	require.NoError(t, err)
	assert.Equal(t, "document_pages.zip", out.Name)
	assert.Equal(t, domain.MediaTypeZip, out.MediaType)

	zr, err := zip.NewReader(bytes.NewReader(out.Data), int64(len(out.Data)))
	require.NoError(t, err)
	require.Len(t, zr.File, 3)

	for i, f := range zr.File {
		assert.Equal(t, items[i].Name, f.Name)
		assert.Equal(t, zip.Deflate, f.Method)

		rc, err := f.Open()
		require.NoError(t, err)
		body, err := io.ReadAll(rc)
		rc.Close()
		require.NoError(t, err)
		assert.Equal(t, items[i].Data, body)
	}
}

func TestZipRejectsDuplicateNames(t *testing.T) {
	_, err := Zip([]domain.Artifact{jpegArtifact("a.jpg", "1"), jpegArtifact("a.jpg", "2")})
	assert.Error(t, err)
}
