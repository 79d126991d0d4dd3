package chunker

import "strings"

// DefaultMinContent is the trimmed-length floor below which a candidate
// segment is dropped instead of emitted.
const DefaultMinContent = 100

type Chunk struct {
	Index int
	Start int
	End   int
	Text  string
}

// Chunker slices document text into fixed-offset, non-overlapping segments.
// Segments may split mid-word; predictable sizing is preferred over boundary
// awareness.
type Chunker struct {
	text       string
	size       int
	minContent int
	offset     int
	index      int
}

func New(text string, size int) *Chunker {
	if size <= 0 {
		size = 2000
	}
	return &Chunker{
		text:       text,
		size:       size,
		minContent: DefaultMinContent,
	}
}

func NewWithFloor(text string, size, minContent int) *Chunker {
	c := New(text, size)
	c.minContent = minContent
	return c
}

// Next returns the next segment whose trimmed length exceeds the content
// floor. Shorter candidates (typically the tail) are silently skipped.
func (c *Chunker) Next() (Chunk, bool) {
	for c.offset < len(c.text) {
		end := c.offset + c.size
		if end > len(c.text) {
			end = len(c.text)
		}

		start := c.offset
		segment := c.text[start:end]
		c.offset = end

		if len(strings.TrimSpace(segment)) <= c.minContent {
			continue
		}

		chunk := Chunk{
			Index: c.index,
			Start: start,
			End:   end,
			Text:  segment,
		}
		c.index++
		return chunk, true
	}

	return Chunk{}, false
}

func (c *Chunker) Reset() {
	c.offset = 0
	c.index = 0
}

func (c *Chunker) All() []Chunk {
	c.Reset()
	var chunks []Chunk
	for {
		chunk, ok := c.Next()
		if !ok {
			break
		}
		chunks = append(chunks, chunk)
	}
	return chunks
}
