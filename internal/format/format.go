package format

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

// MergedPDFName is the download name of every image merge.
const MergedPDFName = "images_merged.pdf"

// fallbackBase is used when nothing survives sanitisation (e.g. "..pdf").
const fallbackBase = "upload"

var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9_.-]`)

// SecureFilename reduces name to a flat ASCII filename that is safe to use as a
// path component or download name. It never returns a path separator; it may
// return "" when nothing safe remains.
func SecureFilename(name string) string {
	name = norm.NFKD.String(name)

	var b strings.Builder
	b.Grow(len(name))
	for _, r := range name {
		if r < utf8.RuneSelf {
			b.WriteRune(r)
		}
	}
	name = b.String()

	name = strings.NewReplacer("/", " ", `\`, " ").Replace(name)
	name = strings.Join(strings.Fields(name), "_")
	name = unsafeChars.ReplaceAllString(name, "")
	return strings.Trim(name, "._")
}

// Base returns the sanitised stem of an uploaded filename.
func Base(filename string) string {
	safe := SecureFilename(filename)
	base := strings.TrimSuffix(safe, filepath.Ext(safe))
	if base == "" {
		return fallbackBase
	}
	return base
}

// PageImageName names the JPEG of 1-based page i.
func PageImageName(base string, i int) string {
	return fmt.Sprintf("%s_page%d.jpg", base, i)
}

func ArchiveName(base string) string {
	return base + "_pages.zip"
}

func OCRTextName(base string) string {
	return base + "_ocr.txt"
}
