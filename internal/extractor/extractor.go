// Package extractor converts uploaded documents into plain text.
package extractor

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/velocibid/velocibid/pkg/log"
	"go.uber.org/zap"
)

// ErrUnparsableDocument is returned when the byte stream does not parse as a
// well-formed document of the declared type.
var ErrUnparsableDocument = errors.New("unparsable_document")

const MimePDF = "application/pdf"

// Extractor turns uploaded file bytes into plain text. PDF extraction has no
// OCR: image-only PDFs yield empty text, which callers treat as a valid
// degenerate result.
type Extractor struct {
	tempDir string
}

func New() *Extractor {
	return &Extractor{tempDir: os.TempDir()}
}

// ExtractText converts data into plain text according to its declared MIME
// type. Anything not PDF is decoded as UTF-8 text.
func (e *Extractor) ExtractText(ctx context.Context, data []byte, mimeType string) (string, error) {
	if len(data) == 0 {
		return "", fmt.Errorf("%w: empty file", ErrUnparsableDocument)
	}

	if strings.EqualFold(strings.TrimSpace(mimeType), MimePDF) {
		return e.extractPDF(ctx, data)
	}

	if !utf8.Valid(data) {
		return "", fmt.Errorf("%w: not valid UTF-8 text", ErrUnparsableDocument)
	}
	return string(data), nil
}

// extractPDF parses the document with pdfcpu and concatenates the text runs
// of every page content stream in page order.
func (e *Extractor) extractPDF(ctx context.Context, data []byte) (string, error) {
	workDir, err := os.MkdirTemp(e.tempDir, "velocibid-pdf-*")
	if err != nil {
		return "", err
	}
	defer os.RemoveAll(workDir)

	tempFile := filepath.Join(workDir, "upload.pdf")
	if err := os.WriteFile(tempFile, data, 0o600); err != nil {
		return "", err
	}

	conf := model.NewDefaultConfiguration()
	pdfCtx, err := api.ReadContextFile(tempFile)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnparsableDocument, err)
	}

	outDir := filepath.Join(workDir, "content")
	if err := os.MkdirAll(outDir, 0o700); err != nil {
		return "", err
	}
	if err := api.ExtractContentFile(tempFile, outDir, nil, conf); err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnparsableDocument, err)
	}

	pageTexts := make(map[int]string, pdfCtx.PageCount)
	entries, err := os.ReadDir(outDir)
	if err != nil {
		return "", err
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		pageNum, ok := pageNumberFromName(entry.Name())
		if !ok {
			continue
		}
		raw, err := os.ReadFile(filepath.Join(outDir, entry.Name()))
		if err != nil {
			log.L(ctx).Warn("failed to read extracted page content",
				zap.String("file", entry.Name()), zap.Error(err))
			continue
		}
		pageTexts[pageNum] = decodeTextRuns(raw)
	}

	pages := make([]int, 0, len(pageTexts))
	for p := range pageTexts {
		pages = append(pages, p)
	}
	sort.Ints(pages)

	var builder strings.Builder
	for i, p := range pages {
		if i > 0 {
			builder.WriteString("\n\n")
		}
		builder.WriteString(pageTexts[p])
	}
	return builder.String(), nil
}

func pageNumberFromName(name string) (int, bool) {
	var pageNum int
	if _, err := fmt.Sscanf(name, "page_%d", &pageNum); err == nil {
		return pageNum, true
	}
	if _, err := fmt.Sscanf(name, "Content_page_%d", &pageNum); err == nil {
		return pageNum, true
	}
	return 0, false
}
