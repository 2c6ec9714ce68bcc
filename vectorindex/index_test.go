package vectorindex

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/poiesic/docqa/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func indexPath(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "indexes", "doc.dqix")
}

func TestOpenOrCreate_Empty(t *testing.T) {
	path := indexPath(t)

	idx, err := OpenOrCreate(path, 4)
	require.NoError(t, err)
	assert.Equal(t, 0, idx.Total())
	assert.Equal(t, 4, idx.Dimension())
	assert.Equal(t, path, idx.Path())
	assert.False(t, Exists(path), "empty index should not be written until added to")
}

func TestOpenOrCreate_InvalidDimension(t *testing.T) {
	_, err := OpenOrCreate(indexPath(t), 0)
	require.ErrorIs(t, err, core.ErrDimensionMismatch)
}

func TestAdd_HandlesAreContiguous(t *testing.T) {
	path := indexPath(t)
	idx, err := OpenOrCreate(path, 2)
	require.NoError(t, err)

	handles, err := idx.Add([][]float32{{0, 0}, {1, 1}, {2, 2}})
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1, 2}, handles)

	handles, err = idx.Add([][]float32{{3, 3}, {4, 4}})
	require.NoError(t, err)
	assert.Equal(t, []int{3, 4}, handles)
	assert.Equal(t, 5, idx.Total())
}

func TestAdd_WritesThrough(t *testing.T) {
	path := indexPath(t)
	idx, err := OpenOrCreate(path, 2)
	require.NoError(t, err)

	_, err = idx.Add([][]float32{{1, 2}})
	require.NoError(t, err)
	require.True(t, Exists(path))

	reopened, err := OpenOrCreate(path, 2)
	require.NoError(t, err)
	assert.Equal(t, 1, reopened.Total())

	// Handles continue from the persisted total.
	handles, err := reopened.Add([][]float32{{3, 4}})
	require.NoError(t, err)
	assert.Equal(t, []int{1}, handles)
}

func TestAdd_RejectsBadInput(t *testing.T) {
	idx, err := OpenOrCreate(indexPath(t), 3)
	require.NoError(t, err)

	_, err = idx.Add(nil)
	require.ErrorIs(t, err, core.ErrEmptyInput)

	_, err = idx.Add([][]float32{{1, 2, 3}, {1, 2}})
	require.ErrorIs(t, err, core.ErrDimensionMismatch)
	assert.Equal(t, 0, idx.Total(), "nothing is appended when any vector is invalid")
}

func TestAdd_RollsBackWhenPersistFails(t *testing.T) {
	blocker := filepath.Join(t.TempDir(), "blocker")
	idx, err := OpenOrCreate(filepath.Join(blocker, "doc.dqix"), 2)
	require.NoError(t, err)

	// The parent of the index path is now a regular file, so writes fail.
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o644))

	_, err = idx.Add([][]float32{{1, 1}})
	require.ErrorIs(t, err, core.ErrIndexIO)
	assert.Equal(t, 0, idx.Total())
}

func TestOpenOrCreate_DimensionMismatch(t *testing.T) {
	path := indexPath(t)
	idx, err := OpenOrCreate(path, 3)
	require.NoError(t, err)
	_, err = idx.Add([][]float32{{1, 2, 3}})
	require.NoError(t, err)

	_, err = OpenOrCreate(path, 4)
	require.ErrorIs(t, err, core.ErrDimensionMismatch)
}

func TestSearch_RankedByDistance(t *testing.T) {
	idx, err := OpenOrCreate(indexPath(t), 2)
	require.NoError(t, err)
	_, err = idx.Add([][]float32{{10, 10}, {1, 0}, {0, 3}, {0, 0}})
	require.NoError(t, err)

	handles, distances, err := idx.Search([]float32{0, 0}, 3)
	require.NoError(t, err)
	assert.Equal(t, []int{3, 1, 2}, handles)
	assert.Equal(t, []float32{0, 1, 9}, distances)
}

func TestSearch_TiesKeepInsertionOrder(t *testing.T) {
	idx, err := OpenOrCreate(indexPath(t), 2)
	require.NoError(t, err)
	_, err = idx.Add([][]float32{{0, 1}, {5, 5}, {1, 0}, {0, -1}, {-1, 0}})
	require.NoError(t, err)

	handles, distances, err := idx.Search([]float32{0, 0}, 5)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 2, 3, 4, 1}, handles)
	assert.Equal(t, []float32{1, 1, 1, 1, 50}, distances)
}

func TestSearch_FewerThanK(t *testing.T) {
	idx, err := OpenOrCreate(indexPath(t), 1)
	require.NoError(t, err)
	_, err = idx.Add([][]float32{{1}, {2}})
	require.NoError(t, err)

	handles, distances, err := idx.Search([]float32{0}, 10)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1}, handles)
	assert.Len(t, distances, 2)
}

func TestSearch_EmptyIndex(t *testing.T) {
	idx, err := OpenOrCreate(indexPath(t), 2)
	require.NoError(t, err)

	handles, distances, err := idx.Search([]float32{1, 1}, 5)
	require.NoError(t, err)
	assert.Empty(t, handles)
	assert.Empty(t, distances)
}

func TestSearch_NonPositiveK(t *testing.T) {
	idx, err := OpenOrCreate(indexPath(t), 1)
	require.NoError(t, err)
	_, err = idx.Add([][]float32{{1}})
	require.NoError(t, err)

	handles, _, err := idx.Search([]float32{1}, 0)
	require.NoError(t, err)
	assert.Empty(t, handles)
}

func TestSearch_NotLoaded(t *testing.T) {
	var nilIndex *Index
	_, _, err := nilIndex.Search([]float32{1}, 1)
	require.ErrorIs(t, err, core.ErrIndexNotLoaded)

	_, _, err = (&Index{}).Search([]float32{1}, 1)
	require.ErrorIs(t, err, core.ErrIndexNotLoaded)

	_, err = (&Index{}).Add([][]float32{{1}})
	require.ErrorIs(t, err, core.ErrIndexNotLoaded)

	require.ErrorIs(t, (&Index{}).Save(), core.ErrIndexNotLoaded)
}

func TestSearch_QueryDimensionMismatch(t *testing.T) {
	idx, err := OpenOrCreate(indexPath(t), 3)
	require.NoError(t, err)

	_, _, err = idx.Search([]float32{1, 2}, 1)
	require.ErrorIs(t, err, core.ErrDimensionMismatch)
}

func TestRoundTrip_SearchResultsSurviveReload(t *testing.T) {
	path := indexPath(t)
	vectors := [][]float32{
		{0.12, -0.5, 0.33},
		{0.9, 0.1, -0.2},
		{-0.4, 0.4, 0.8},
		{0.05, 0.05, 0.05},
	}
	queries := [][]float32{{0, 0, 0}, {1, 0, 0}, {-0.4, 0.4, 0.79}}

	idx, err := OpenOrCreate(path, 3)
	require.NoError(t, err)
	_, err = idx.Add(vectors)
	require.NoError(t, err)

	reloaded, err := OpenOrCreate(path, 3)
	require.NoError(t, err)
	require.Equal(t, idx.Total(), reloaded.Total())

	for _, q := range queries {
		wantH, wantD, err := idx.Search(q, 3)
		require.NoError(t, err)
		gotH, gotD, err := reloaded.Search(q, 3)
		require.NoError(t, err)
		assert.Equal(t, wantH, gotH)
		assert.Equal(t, wantD, gotD)
	}

	// Every stored vector is its own nearest neighbour at distance zero.
	for i, v := range vectors {
		handles, distances, err := reloaded.Search(v, 1)
		require.NoError(t, err)
		assert.Equal(t, []int{i}, handles)
		assert.Equal(t, []float32{0}, distances)
	}
}

func TestSave_Explicit(t *testing.T) {
	path := indexPath(t)
	idx, err := OpenOrCreate(path, 2)
	require.NoError(t, err)

	require.NoError(t, idx.Save())
	reopened, err := OpenOrCreate(path, 2)
	require.NoError(t, err)
	assert.Equal(t, 0, reopened.Total())
}

func TestCreateStandalone(t *testing.T) {
	path := indexPath(t)

	out, err := CreateStandalone([][]float32{{1, 0}, {0, 1}}, path, 0)
	require.NoError(t, err)
	assert.Equal(t, path, out)

	idx, err := OpenOrCreate(path, 2)
	require.NoError(t, err)
	assert.Equal(t, 2, idx.Total())

	// Overwrites an existing index atomically.
	_, err = CreateStandalone([][]float32{{5, 5}}, path, 2)
	require.NoError(t, err)
	idx, err = OpenOrCreate(path, 2)
	require.NoError(t, err)
	assert.Equal(t, 1, idx.Total())
}

func TestCreateStandalone_Errors(t *testing.T) {
	_, err := CreateStandalone(nil, indexPath(t), 2)
	require.ErrorIs(t, err, core.ErrEmptyInput)

	_, err = CreateStandalone([][]float32{{1, 2}, {3}}, indexPath(t), 0)
	require.ErrorIs(t, err, core.ErrDimensionMismatch)

	_, err = CreateStandalone([][]float32{{1, 2}}, indexPath(t), 3)
	require.ErrorIs(t, err, core.ErrDimensionMismatch)
}

func TestOpenOrCreate_CorruptFile(t *testing.T) {
	path := indexPath(t)
	_, err := CreateStandalone([][]float32{{1, 2}, {3, 4}}, path, 2)
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	data[len(data)/2] ^= 0xff
	require.NoError(t, os.WriteFile(path, data, 0o644))

	_, err = OpenOrCreate(path, 2)
	require.ErrorIs(t, err, core.ErrIndexIO)
}

func TestOpenOrCreate_TruncatedFile(t *testing.T) {
	path := indexPath(t)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("DQ"), 0o644))

	_, err := OpenOrCreate(path, 2)
	require.ErrorIs(t, err, core.ErrIndexIO)
}

func TestWriteAtomic_LeavesNoTempFiles(t *testing.T) {
	path := indexPath(t)
	_, err := CreateStandalone([][]float32{{1}}, path, 1)
	require.NoError(t, err)

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "doc.dqix", entries[0].Name())
}

func TestRemove(t *testing.T) {
	path := indexPath(t)
	_, err := CreateStandalone([][]float32{{1}}, path, 1)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(lockPath(path), nil, 0o644))

	require.NoError(t, Remove(path))
	assert.False(t, Exists(path))
	_, err = os.Stat(lockPath(path))
	assert.NoError(t, err, "lock file outlives the index")

	// Removing again is not an error.
	require.NoError(t, Remove(path))
}
