package ocr

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"unicode/utf8"
)

// maxStderr bounds how much engine stderr is carried into errors.
const maxStderr = 300

// CommandEngine runs the tesseract executable, feeding the image on stdin and
// reading text from stdout. It is used when the engine location is overridden.
type CommandEngine struct {
	Path string
	// TessdataDir is passed as --tessdata-dir when set.
	TessdataDir string
}

func NewCommandEngine(path, tessdataDir string) *CommandEngine {
	if path == "" {
		path = "tesseract"
	}
	return &CommandEngine{Path: path, TessdataDir: tessdataDir}
}

func (e *CommandEngine) Name() string { return "tesseract-cli" }

func (e *CommandEngine) Recognize(ctx context.Context, in Input) (Result, error) {
	lang := in.Language
	if lang == "" {
		lang = DefaultLanguage
	}
	if err := ValidateLanguage(lang); err != nil {
		return Result{}, err
	}

	args := []string{"stdin", "stdout", "-l", lang}
	if e.TessdataDir != "" {
		args = append(args, "--tessdata-dir", e.TessdataDir)
	}

	cmd := exec.CommandContext(ctx, e.Path, args...)
	cmd.Stdin = bytes.NewReader(in.Image)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	out, err := cmd.Output()
	if err != nil {
		msg := strings.TrimSpace(stderr.String())
		if len(msg) > maxStderr {
			n := maxStderr
			for n > 0 && !utf8.RuneStart(msg[n]) {
				n--
			}
			msg = msg[:n] + "..."
		}
		if msg != "" {
			return Result{}, fmt.Errorf("%s: %w: %s", e.Path, err, msg)
		}
		return Result{}, fmt.Errorf("%s: %w", e.Path, err)
	}

	return Result{Text: string(out), Language: lang}, nil
}
