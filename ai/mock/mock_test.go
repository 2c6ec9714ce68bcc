package mock

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/poiesic/docqa/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMockEmbedder_Deterministic(t *testing.T) {
	ctx := context.Background()
	m := NewMockEmbedderWithDimension(8)

	a, err := m.EmbedText(ctx, "hello")
	require.NoError(t, err)
	b, err := m.EmbedText(ctx, "hello")
	require.NoError(t, err)
	c, err := m.EmbedText(ctx, "world")
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Len(t, a, 8)

	var sum float64
	for _, v := range a {
		sum += float64(v) * float64(v)
	}
	assert.InDelta(t, 1.0, math.Sqrt(sum), 1e-5)
	assert.Equal(t, 3, m.CallCount())
}

func TestMockEmbedder_EmbedTexts(t *testing.T) {
	m := NewMockEmbedder()

	vectors, err := m.EmbedTexts(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	require.Len(t, vectors, 2)
	assert.Len(t, vectors[0], DefaultDimension)

	_, err = m.EmbedTexts(context.Background(), nil)
	require.ErrorIs(t, err, core.ErrEmptyInput)
}

func TestMockEmbedder_CustomFuncAndReset(t *testing.T) {
	m := NewMockEmbedder()
	m.EmbedTextsFunc = func(ctx context.Context, texts []string) ([][]float32, error) {
		return nil, errors.New("boom")
	}

	_, err := m.EmbedTexts(context.Background(), []string{"x"})
	require.Error(t, err)
	assert.Equal(t, 1, m.CallCount())

	m.Reset()
	assert.Zero(t, m.CallCount())
	_, err = m.EmbedTexts(context.Background(), []string{"x"})
	require.NoError(t, err)
}

func TestMockGenerator(t *testing.T) {
	g := NewMockGenerator()
	reply, err := g.Generate(context.Background(), "prompt one")
	require.NoError(t, err)
	assert.Equal(t, "mock answer", reply)
	assert.Equal(t, "prompt one", g.LastPrompt())

	g.GenerateFunc = func(ctx context.Context, prompt string) (string, error) {
		return "", core.ErrAnswerGeneration
	}
	_, err = g.Generate(context.Background(), "prompt two")
	require.ErrorIs(t, err, core.ErrAnswerGeneration)
	assert.Equal(t, 2, g.CallCount())

	g.Reset()
	assert.Zero(t, g.CallCount())
	assert.Empty(t, g.LastPrompt())
}

func TestMockProvider(t *testing.T) {
	p := NewMockProvider()
	mp := p.(*MockProvider)

	assert.Same(t, mp.GetMockEmbedder(), p.Embedder())
	assert.Same(t, mp.GetMockGenerator(), p.Generator())
	require.NoError(t, p.Close())
}
