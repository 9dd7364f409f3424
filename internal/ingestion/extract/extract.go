// Package extract pulls searchable text out of uploaded files.
package extract

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/indexer/schema"
	apperrors "github.com/Adithya-Monish-Kumar-K/docsearch/pkg/errors"
)

// Func extracts plain text from raw file bytes.
type Func func(raw []byte) (string, error)

var extractors = map[string]Func{
	".txt":      plainText,
	".text":     plainText,
	".md":       markdownText,
	".markdown": markdownText,
	".pdf":      pdfText,
	".docx":     docxText,
	// Legacy .doc is attempted as OOXML; binary Word files fail extraction.
	".doc": docxText,
}

// Fields returns the schema fields of a file: its name and its text content.
// Unknown extensions give empty content and no error. When extraction fails
// the returned fields are still usable, with empty content, and the error
// wraps ErrExtractionFailed.
func Fields(raw []byte, filename string) (map[string]string, error) {
	fields := map[string]string{
		schema.FieldFilename: filename,
		schema.FieldContent:  "",
	}
	ext := strings.ToLower(filepath.Ext(filename))
	fn, ok := extractors[ext]
	if !ok {
		return fields, nil
	}
	text, err := run(fn, raw)
	if err != nil {
		return fields, fmt.Errorf("%w: %s: %w", apperrors.ErrExtractionFailed, filename, err)
	}
	fields[schema.FieldContent] = text
	return fields, nil
}

// Supported lists the extensions with a text extractor, without the dot.
func Supported() []string {
	out := make([]string, 0, len(extractors))
	for ext := range extractors {
		out = append(out, strings.TrimPrefix(ext, "."))
	}
	sort.Strings(out)
	return out
}

// run shields callers from parser panics on malformed input.
func run(fn Func, raw []byte) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("malformed file: %v", r)
		}
	}()
	return fn(raw)
}

func plainText(raw []byte) (string, error) {
	return strings.ToValidUTF8(string(raw), ""), nil
}
