// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


// Package extract turns uploaded source files into plain text.
package extract

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"
	"github.com/poiesic/docqa/core"
)

// Text is the extracted, trimmed content of a document.
type Text struct {
	Content string
	// PageStarts holds the character offset in Content at which each page
	// begins. Empty for formats without pages.
	PageStarts []int
}

// PageAt returns the 1-based page containing the character at offset,
// or 0 when the document has no page information.
func (t *Text) PageAt(offset int) int {
	if len(t.PageStarts) == 0 {
		return 0
	}
	i := sort.Search(len(t.PageStarts), func(i int) bool { return t.PageStarts[i] > offset })
	if i == 0 {
		return 1
	}
	return i
}

// Extractor reads pdf and txt files. It never modifies its input.
type Extractor struct {
	logger *slog.Logger
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithLogger sets the logger. A nil logger selects slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(e *Extractor) {
		if logger == nil {
			logger = slog.Default()
		}
		e.logger = logger
	}
}

// New creates an Extractor.
func New(opts ...Option) *Extractor {
	e := &Extractor{logger: slog.Default()}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = e.logger.With("component", "extractor")
	return e
}

// Extract returns the trimmed text of the file at path. ext selects the
// parser and is matched case-insensitively, with or without a leading dot.
// An empty string with a nil error means the file holds no text.
func (e *Extractor) Extract(ctx context.Context, path, ext string) (string, error) {
	text, err := e.ExtractText(ctx, path, ext)
	if err != nil {
		return "", err
	}
	return text.Content, nil
}

// ExtractText is Extract with page boundaries preserved.
func (e *Extractor) ExtractText(ctx context.Context, path, ext string) (*Text, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	switch core.NormalizeExt(ext) {
	case core.FormatPDF:
		return e.extractPDF(ctx, path)
	case core.FormatTXT:
		return extractTXT(path)
	default:
		return nil, fmt.Errorf("%w: %q", core.ErrUnsupportedFormat, ext)
	}
}

func extractTXT(path string) (*Text, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", core.ErrExtraction, err)
	}
	content := string(data)
	if !utf8.ValidString(content) {
		content = strings.ToValidUTF8(content, string(utf8.RuneError))
	}
	return &Text{Content: strings.TrimSpace(content)}, nil
}

// pageSource abstracts a paged document so page assembly can be tested
// without real PDF files.
type pageSource interface {
	NumPage() int
	PageText(i int) (string, error)
}

type pdfPages struct {
	r *pdf.Reader
}

func (p pdfPages) NumPage() int {
	return p.r.NumPage()
}

func (p pdfPages) PageText(i int) (text string, err error) {
	// Malformed content streams can panic inside the parser.
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("page %d: %v", i, r)
		}
	}()
	page := p.r.Page(i)
	if page.V.IsNull() {
		return "", nil
	}
	return page.GetPlainText(nil)
}

func (e *Extractor) extractPDF(ctx context.Context, path string) (*Text, error) {
	f, r, err := openPDF(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", core.ErrExtraction, err)
	}
	defer f.Close()
	return e.assemble(ctx, pdfPages{r: r})
}

func openPDF(path string) (f *os.File, r *pdf.Reader, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			if f != nil {
				f.Close()
			}
			f, r, err = nil, nil, fmt.Errorf("malformed pdf: %v", rec)
		}
	}()
	return pdf.Open(path)
}

// assemble concatenates page texts in page order. Pages that fail or yield
// nothing contribute an empty string.
func (e *Extractor) assemble(ctx context.Context, src pageSource) (*Text, error) {
	var b strings.Builder
	n := src.NumPage()
	starts := make([]int, 0, n)
	offset := 0
	for i := 1; i <= n; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		starts = append(starts, offset)
		text, err := src.PageText(i)
		if err != nil {
			e.logger.Debug("skipping unreadable page", "page", i, "err", err)
			continue
		}
		b.WriteString(text)
		offset += utf8.RuneCountInString(text)
	}

	raw := b.String()
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return &Text{}, nil
	}
	lead := utf8.RuneCountInString(raw[:len(raw)-len(strings.TrimLeftFunc(raw, unicode.IsSpace))])
	for i := range starts {
		starts[i] = max(starts[i]-lead, 0)
	}
	return &Text{Content: trimmed, PageStarts: starts}, nil
}
