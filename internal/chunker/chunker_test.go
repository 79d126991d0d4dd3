package chunker

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChunkerPartitionsText(t *testing.T) {
	text := strings.Repeat("interview transcript content ", 100) // ~2900 chars
	c := New(text, 500)

	chunks := c.All()
	require.NotEmpty(t, chunks)

	prevEnd := 0
	for i, chunk := range chunks {
		assert.Equal(t, i, chunk.Index)
		assert.GreaterOrEqual(t, chunk.Start, prevEnd, "chunks must not overlap")
		assert.Equal(t, chunk.Text, text[chunk.Start:chunk.End])
		assert.Greater(t, len(strings.TrimSpace(chunk.Text)), DefaultMinContent)
		prevEnd = chunk.End
	}
}

func TestChunkerDropsShortTail(t *testing.T) {
	// 500-char body plus a 50-char tail; the tail is under the floor.
	text := strings.Repeat("a", 500) + strings.Repeat("b", 50)
	c := New(text, 500)

	chunks := c.All()
	require.Len(t, chunks, 1)
	assert.Equal(t, 0, chunks[0].Start)
	assert.Equal(t, 500, chunks[0].End)
}

func TestChunkerDropsWhitespaceOnlySegments(t *testing.T) {
	text := strings.Repeat("x", 200) + strings.Repeat(" ", 200) + strings.Repeat("y", 200)
	c := New(text, 200)

	chunks := c.All()
	require.Len(t, chunks, 2)
	assert.Equal(t, 0, chunks[0].Index)
	assert.Equal(t, 1, chunks[1].Index)
	assert.Equal(t, 400, chunks[1].Start)
}

func TestChunkerReset(t *testing.T) {
	text := strings.Repeat("z", 1000)
	c := New(text, 400)

	first, ok := c.Next()
	require.True(t, ok)

	c.Reset()
	again, ok := c.Next()
	require.True(t, ok)
	assert.Equal(t, first, again)
}

func TestChunkerEmptyText(t *testing.T) {
	c := New("", 500)
	_, ok := c.Next()
	assert.False(t, ok)
	assert.Empty(t, c.All())
}

func TestChunkerTextBelowFloor(t *testing.T) {
	c := New("too short to analyze", 500)
	assert.Empty(t, c.All())
}
