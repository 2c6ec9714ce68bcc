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


// Package chunker splits extracted document text into overlapping windows.
package chunker

import (
	"fmt"
	"strings"

	"github.com/poiesic/docqa/core"
)

const (
	// DefaultChunkSize is the window length in characters.
	DefaultChunkSize = 800
	// DefaultOverlap is the number of characters shared by consecutive windows.
	DefaultOverlap = 100
)

// Window is a half-open character range [Start, End) of the source text.
type Window struct {
	Start int
	End   int
}

// Splitter produces fixed-size overlapping chunks. A Splitter is immutable
// and safe for concurrent use.
type Splitter struct {
	chunkSize int
	overlap   int
}

// New returns a Splitter, or core.ErrInvalidChunkConfig unless
// chunkSize > overlap >= 0.
func New(chunkSize, overlap int) (*Splitter, error) {
	if err := validate(chunkSize, overlap); err != nil {
		return nil, err
	}
	return &Splitter{chunkSize: chunkSize, overlap: overlap}, nil
}

// NewDefault returns a Splitter using DefaultChunkSize and DefaultOverlap.
func NewDefault() *Splitter {
	return &Splitter{chunkSize: DefaultChunkSize, overlap: DefaultOverlap}
}

func validate(chunkSize, overlap int) error {
	if overlap < 0 {
		return fmt.Errorf("%w: overlap %d is negative", core.ErrInvalidChunkConfig, overlap)
	}
	if chunkSize <= overlap {
		return fmt.Errorf("%w: chunk size %d must exceed overlap %d", core.ErrInvalidChunkConfig, chunkSize, overlap)
	}
	return nil
}

// ChunkSize returns the configured window length.
func (s *Splitter) ChunkSize() int { return s.chunkSize }

// Overlap returns the configured overlap.
func (s *Splitter) Overlap() int { return s.overlap }

// Windows returns the raw sliding-window ranges over text, measured in
// characters. Consecutive windows start chunkSize-overlap apart and the last
// window is clipped at the end of the text.
func (s *Splitter) Windows(text string) []Window {
	n := len([]rune(text))
	if n == 0 {
		return nil
	}
	step := s.chunkSize - s.overlap
	windows := make([]Window, 0, n/step+1)
	for start := 0; start < n; start += step {
		windows = append(windows, Window{Start: start, End: min(start+s.chunkSize, n)})
	}
	return windows
}

// Piece is a chunk together with the window it was cut from.
type Piece struct {
	Window
	Text string
}

// Pieces returns the trimmed text of every window, in order. Windows that
// are empty after trimming are dropped so every piece has content.
func (s *Splitter) Pieces(text string) []Piece {
	runes := []rune(text)
	windows := s.Windows(text)
	pieces := make([]Piece, 0, len(windows))
	for _, w := range windows {
		chunk := strings.TrimSpace(string(runes[w.Start:w.End]))
		if chunk == "" {
			continue
		}
		pieces = append(pieces, Piece{Window: w, Text: chunk})
	}
	return pieces
}

// Split is Pieces without window information.
func (s *Splitter) Split(text string) []string {
	pieces := s.Pieces(text)
	chunks := make([]string, len(pieces))
	for i, p := range pieces {
		chunks[i] = p.Text
	}
	return chunks
}

// Split validates the configuration and splits text in one call.
func Split(text string, chunkSize, overlap int) ([]string, error) {
	s, err := New(chunkSize, overlap)
	if err != nil {
		return nil, err
	}
	return s.Split(text), nil
}
