package extract

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/poiesic/docqa/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePages struct {
	pages []string
	fail  map[int]bool
}

func (f fakePages) NumPage() int { return len(f.pages) }

func (f fakePages) PageText(i int) (string, error) {
	if f.fail[i] {
		return "", errors.New("broken page")
	}
	return f.pages[i-1], nil
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestExtract_Text(t *testing.T) {
	path := writeFile(t, "notes.txt", "\n\n  Hello, world.\nSecond line.  \n")

	text, err := New().Extract(context.Background(), path, "txt")
	require.NoError(t, err)
	assert.Equal(t, "Hello, world.\nSecond line.", text)
}

func TestExtract_ExtensionCaseInsensitive(t *testing.T) {
	path := writeFile(t, "notes.TXT", "content")

	for _, ext := range []string{"TXT", ".txt", ".Txt"} {
		text, err := New().Extract(context.Background(), path, ext)
		require.NoError(t, err, ext)
		assert.Equal(t, "content", text)
	}
}

func TestExtract_WhitespaceOnlyIsEmpty(t *testing.T) {
	path := writeFile(t, "blank.txt", " \n\t \n")

	text, err := New().Extract(context.Background(), path, "txt")
	require.NoError(t, err)
	assert.Empty(t, text)
}

func TestExtract_InvalidUTF8(t *testing.T) {
	path := writeFile(t, "latin1.txt", "caf\xe9")

	text, err := New().Extract(context.Background(), path, "txt")
	require.NoError(t, err)
	assert.Equal(t, "caf�", text)
}

func TestExtract_UnsupportedFormat(t *testing.T) {
	path := writeFile(t, "report.docx", "whatever")

	_, err := New().Extract(context.Background(), path, "docx")
	require.ErrorIs(t, err, core.ErrUnsupportedFormat)
	assert.Equal(t, core.KindUnsupportedFormat, core.KindOf(err))
}

func TestExtract_MissingFile(t *testing.T) {
	_, err := New().Extract(context.Background(), filepath.Join(t.TempDir(), "nope.txt"), "txt")
	require.ErrorIs(t, err, core.ErrExtraction)
}

func TestExtract_CorruptPDF(t *testing.T) {
	path := writeFile(t, "broken.pdf", "this is not a pdf at all")

	_, err := New().Extract(context.Background(), path, "pdf")
	require.ErrorIs(t, err, core.ErrExtraction)
}

// buildPDF writes a minimal single-font PDF with one text line per page.
// An empty string produces a page with an empty content stream.
func buildPDF(pages []string) []byte {
	var objects []string
	font := 3 + 2*len(pages)
	kids := make([]string, len(pages))
	for i := range pages {
		kids[i] = fmt.Sprintf("%d 0 R", 3+2*i)
	}
	objects = append(objects,
		"<< /Type /Catalog /Pages 2 0 R >>",
		fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>", strings.Join(kids, " "), len(pages)))
	for i, text := range pages {
		stream := ""
		if text != "" {
			stream = fmt.Sprintf("BT /F1 18 Tf 72 700 Td (%s) Tj ET", text)
		}
		objects = append(objects,
			fmt.Sprintf("<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Contents %d 0 R "+
				"/Resources << /Font << /F1 %d 0 R >> >> >>", 4+2*i, font),
			fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(stream), stream))
	}
	objects = append(objects, "<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica /Encoding /WinAnsiEncoding >>")

	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(objects))
	for i, obj := range objects {
		offsets[i] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, obj)
	}
	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n0000000000 65535 f \n", len(objects)+1)
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objects)+1, xref)
	return buf.Bytes()
}

func TestExtract_PDF(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.pdf")
	require.NoError(t, os.WriteFile(path, buildPDF([]string{"Hello page one", "", "Third page"}), 0o644))

	text, err := New().ExtractText(context.Background(), path, ".PDF")
	require.NoError(t, err)

	first := strings.Index(text.Content, "Hello page one")
	third := strings.Index(text.Content, "Third page")
	require.GreaterOrEqual(t, first, 0, "content: %q", text.Content)
	require.Greater(t, third, first, "content: %q", text.Content)

	require.Len(t, text.PageStarts, 3)
	assert.Equal(t, 0, text.PageStarts[0])
	assert.Equal(t, text.PageStarts[1], text.PageStarts[2], "empty middle page adds no text")
	assert.Equal(t, 1, text.PageAt(first))
	assert.Equal(t, 3, text.PageAt(len([]rune(text.Content))-1))

	plain, err := New().Extract(context.Background(), path, "pdf")
	require.NoError(t, err)
	assert.Equal(t, text.Content, plain)
}

func TestExtract_CanceledContext(t *testing.T) {
	path := writeFile(t, "notes.txt", "content")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New().Extract(ctx, path, "txt")
	require.ErrorIs(t, err, context.Canceled)
}

func TestAssemble_ConcatenatesPagesInOrder(t *testing.T) {
	src := fakePages{pages: []string{"  First page. ", "Second page. ", "Third page."}}

	text, err := New().assemble(context.Background(), src)
	require.NoError(t, err)
	assert.Equal(t, "First page. Second page. Third page.", text.Content)
	assert.Equal(t, []int{0, 12, 25}, text.PageStarts)

	assert.Equal(t, 1, text.PageAt(0))
	assert.Equal(t, 1, text.PageAt(11))
	assert.Equal(t, 2, text.PageAt(12))
	assert.Equal(t, 3, text.PageAt(30))
}

func TestAssemble_SkipsFailingPages(t *testing.T) {
	src := fakePages{
		pages: []string{"alpha ", "unreadable", "gamma"},
		fail:  map[int]bool{2: true},
	}

	text, err := New().assemble(context.Background(), src)
	require.NoError(t, err)
	assert.Equal(t, "alpha gamma", text.Content)
	assert.Equal(t, 3, text.PageAt(6))
}

func TestAssemble_NoText(t *testing.T) {
	src := fakePages{pages: []string{"", "   ", "\n"}}

	text, err := New().assemble(context.Background(), src)
	require.NoError(t, err)
	assert.Empty(t, text.Content)
	assert.Equal(t, 0, text.PageAt(0))
}
