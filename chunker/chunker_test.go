package chunker

import (
	"strings"
	"testing"

	"github.com/poiesic/docqa/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_InvalidConfig(t *testing.T) {
	tests := []struct {
		name      string
		chunkSize int
		overlap   int
	}{
		{"size equals overlap", 100, 100},
		{"size below overlap", 50, 100},
		{"negative overlap", 100, -1},
		{"zero size", 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := New(tt.chunkSize, tt.overlap)
			require.ErrorIs(t, err, core.ErrInvalidChunkConfig)
			assert.Nil(t, s)

			chunks, err := Split("some text", tt.chunkSize, tt.overlap)
			require.ErrorIs(t, err, core.ErrInvalidChunkConfig)
			assert.Nil(t, chunks)
		})
	}
}

func TestSplit_EmptyText(t *testing.T) {
	chunks, err := Split("", DefaultChunkSize, DefaultOverlap)
	require.NoError(t, err)
	assert.Empty(t, chunks)
}

func TestSplit_DefaultScenario(t *testing.T) {
	// 1700 non-whitespace characters produce windows at 0, 700 and 1400.
	text := strings.Repeat("a", 1700)

	chunks, err := Split(text, 800, 100)
	require.NoError(t, err)
	require.Len(t, chunks, 3)
	assert.Len(t, chunks[0], 800)
	assert.Len(t, chunks[1], 800)
	assert.Len(t, chunks[2], 300)

	assert.Equal(t, []Window{{0, 800}, {700, 1500}, {1400, 1700}}, NewDefault().Windows(text))
}

func TestSplit_ShortText(t *testing.T) {
	chunks, err := Split("  hello world  ", 800, 100)
	require.NoError(t, err)
	assert.Equal(t, []string{"hello world"}, chunks)
}

func TestSplit_Deterministic(t *testing.T) {
	text := strings.Repeat("The quick brown fox jumps over the lazy dog. ", 60)
	s, err := New(120, 30)
	require.NoError(t, err)

	assert.Equal(t, s.Split(text), s.Split(text))
}

func TestSplit_Overlap(t *testing.T) {
	text := "abcdefghijklmnopqrstuvwxyz"
	chunks, err := Split(text, 10, 4)
	require.NoError(t, err)
	require.Equal(t, []string{"abcdefghij", "ghijklmnop", "mnopqrstuv", "stuvwxyz", "yz"}, chunks)

	// Consecutive chunks share exactly overlap characters.
	for i := 0; i < 3; i++ {
		assert.Equal(t, chunks[i][6:], chunks[i+1][:4])
	}
}

func TestSplit_DropsWhitespaceWindows(t *testing.T) {
	text := "abc" + strings.Repeat(" ", 17) + "xyz"
	chunks, err := Split(text, 5, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"abc", "xyz"}, chunks)
}

func TestPieces_KeepWindowOffsets(t *testing.T) {
	s, err := New(5, 0)
	require.NoError(t, err)

	pieces := s.Pieces("abc" + strings.Repeat(" ", 17) + "xyz")
	require.Len(t, pieces, 2)
	assert.Equal(t, Piece{Window: Window{0, 5}, Text: "abc"}, pieces[0])
	assert.Equal(t, Piece{Window: Window{20, 23}, Text: "xyz"}, pieces[1])
}

func TestSplit_CountsCharactersNotBytes(t *testing.T) {
	text := strings.Repeat("é", 10)
	chunks, err := Split(text, 4, 0)
	require.NoError(t, err)
	require.Len(t, chunks, 3)
	assert.Equal(t, "éééé", chunks[0])
	assert.Equal(t, "éé", chunks[2])
}

func TestWindows_Coverage(t *testing.T) {
	configs := []struct{ size, overlap int }{
		{800, 100}, {10, 0}, {10, 9}, {7, 3}, {1, 0},
	}
	lengths := []int{1, 9, 10, 11, 99, 1700, 2501}

	for _, cfg := range configs {
		s, err := New(cfg.size, cfg.overlap)
		require.NoError(t, err)
		for _, n := range lengths {
			text := strings.Repeat("x", n)
			windows := s.Windows(text)
			require.NotEmpty(t, windows)

			assert.Equal(t, 0, windows[0].Start)
			assert.Equal(t, n, windows[len(windows)-1].End)
			for i := 1; i < len(windows); i++ {
				// No gaps between consecutive windows.
				assert.LessOrEqual(t, windows[i].Start, windows[i-1].End)
				assert.Equal(t, cfg.size-cfg.overlap, windows[i].Start-windows[i-1].Start)
			}
			for _, w := range windows {
				assert.LessOrEqual(t, w.End-w.Start, cfg.size)
			}
		}
	}
}
