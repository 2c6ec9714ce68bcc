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


package vectorindex

import (
	"cmp"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"sync"

	"github.com/poiesic/docqa/core"
)

// Index is an exact squared-L2 nearest-neighbour index bound to a file.
// The zero value is not loaded; use OpenOrCreate.
type Index struct {
	mu     sync.RWMutex
	path   string
	dim    int
	data   []float32 // vectors flattened in insertion order
	loaded bool
}

// OpenOrCreate loads the index stored at path, or returns an empty index
// of dimension dim when nothing is stored there yet. An empty index is not
// written until the first Add or Save. A stored index of a different
// dimension fails with core.ErrDimensionMismatch.
func OpenOrCreate(path string, dim int) (*Index, error) {
	if dim <= 0 {
		return nil, fmt.Errorf("%w: dimension must be positive, got %d", core.ErrDimensionMismatch, dim)
	}
	buf, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return &Index{path: path, dim: dim, loaded: true}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", core.ErrIndexIO, err)
	}
	stored, data, err := decode(buf)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if stored != dim {
		return nil, fmt.Errorf("%w: index %s has dimension %d, expected %d",
			core.ErrDimensionMismatch, path, stored, dim)
	}
	return &Index{path: path, dim: dim, data: data, loaded: true}, nil
}

// Exists reports whether an index file is stored at path.
func Exists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

// Path returns the file the index persists to.
func (ix *Index) Path() string {
	return ix.path
}

// Dimension returns the length every vector in the index must have.
func (ix *Index) Dimension() int {
	return ix.dim
}

// Total returns the number of vectors in the index.
func (ix *Index) Total() int {
	if ix == nil {
		return 0
	}
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return ix.total()
}

func (ix *Index) total() int {
	if ix.dim == 0 {
		return 0
	}
	return len(ix.data) / ix.dim
}

// Add appends vectors and returns their handles, which are contiguous and
// start at the previous Total. The index is persisted before Add returns;
// if persisting fails the vectors are not kept in memory either.
func (ix *Index) Add(vectors [][]float32) ([]int, error) {
	if ix == nil || !ix.loaded {
		return nil, core.ErrIndexNotLoaded
	}
	if len(vectors) == 0 {
		return nil, fmt.Errorf("%w: no vectors to add", core.ErrEmptyInput)
	}
	for i, v := range vectors {
		if len(v) != ix.dim {
			return nil, fmt.Errorf("%w: vector %d has dimension %d, index has %d",
				core.ErrDimensionMismatch, i, len(v), ix.dim)
		}
	}

	ix.mu.Lock()
	defer ix.mu.Unlock()

	prev := ix.total()
	before := len(ix.data)
	for _, v := range vectors {
		ix.data = append(ix.data, v...)
	}
	if err := writeAtomic(ix.path, encode(ix.dim, ix.data)); err != nil {
		ix.data = ix.data[:before]
		return nil, err
	}

	handles := make([]int, len(vectors))
	for i := range handles {
		handles[i] = prev + i
	}
	return handles, nil
}

// Save persists the index to its path.
func (ix *Index) Save() error {
	if ix == nil || !ix.loaded {
		return core.ErrIndexNotLoaded
	}
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return writeAtomic(ix.path, encode(ix.dim, ix.data))
}

// Search returns up to k handles nearest to query with their squared
// Euclidean distances, nearest first. Equal distances are ordered by
// handle. An empty index or k <= 0 yields empty results.
func (ix *Index) Search(query []float32, k int) ([]int, []float32, error) {
	if ix == nil || !ix.loaded {
		return nil, nil, core.ErrIndexNotLoaded
	}
	if len(query) != ix.dim {
		return nil, nil, fmt.Errorf("%w: query has dimension %d, index has %d",
			core.ErrDimensionMismatch, len(query), ix.dim)
	}

	ix.mu.RLock()
	defer ix.mu.RUnlock()

	total := ix.total()
	if k <= 0 || total == 0 {
		return []int{}, []float32{}, nil
	}

	type hit struct {
		handle   int
		distance float32
	}
	hits := make([]hit, total)
	for h := 0; h < total; h++ {
		hits[h] = hit{handle: h, distance: squaredL2(query, ix.data[h*ix.dim:(h+1)*ix.dim])}
	}
	slices.SortStableFunc(hits, func(a, b hit) int {
		return cmp.Compare(a.distance, b.distance)
	})

	k = min(k, total)
	handles := make([]int, k)
	distances := make([]float32, k)
	for i := 0; i < k; i++ {
		handles[i] = hits[i].handle
		distances[i] = hits[i].distance
	}
	return handles, distances, nil
}

func squaredL2(a, b []float32) float32 {
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return float32(sum)
}

// CreateStandalone builds a new index from vectors and persists it to
// outputPath, replacing any file already there. It does not consult or
// modify any loaded Index. A dim of 0 takes the dimension from the first
// vector. It returns outputPath.
func CreateStandalone(vectors [][]float32, outputPath string, dim int) (string, error) {
	if len(vectors) == 0 {
		return "", fmt.Errorf("%w: no vectors to index", core.ErrEmptyInput)
	}
	if dim == 0 {
		dim = len(vectors[0])
	}
	if dim <= 0 {
		return "", fmt.Errorf("%w: dimension must be positive, got %d", core.ErrDimensionMismatch, dim)
	}
	data := make([]float32, 0, len(vectors)*dim)
	for i, v := range vectors {
		if len(v) != dim {
			return "", fmt.Errorf("%w: vector %d has dimension %d, expected %d",
				core.ErrDimensionMismatch, i, len(v), dim)
		}
		data = append(data, v...)
	}
	if err := writeAtomic(outputPath, encode(dim, data)); err != nil {
		return "", err
	}
	return outputPath, nil
}

// Remove deletes the index file at path. A missing index is not an error.
// Callers should hold the path lock. The lock file is left in place: other
// writers may already be waiting on it.
func Remove(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: %w", core.ErrIndexIO, err)
	}
	return nil
}

// writeAtomic replaces path with data via a synced temporary file and rename.
func writeAtomic(path string, data []byte) (err error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("%w: %w", core.ErrIndexIO, err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("%w: %w", core.ErrIndexIO, err)
	}
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmp.Name())
		}
	}()

	if _, err = tmp.Write(data); err != nil {
		return fmt.Errorf("%w: %w", core.ErrIndexIO, err)
	}
	if err = tmp.Sync(); err != nil {
		return fmt.Errorf("%w: %w", core.ErrIndexIO, err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("%w: %w", core.ErrIndexIO, err)
	}
	if err = os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("%w: %w", core.ErrIndexIO, err)
	}
	return nil
}
