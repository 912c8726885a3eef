package dataprocessing

import "strings"

// Line is one non-blank line of input with its 1-based line number.
type Line struct {
	No   int
	Text string
}

// LineBatcher pulls non-blank lines out of in-memory content in fixed-size
// batches without splitting the whole input up front.
type LineBatcher struct {
	content   string
	pos       int
	lineNo    int
	batchSize int
}

// NewLineBatcher creates a batcher. batchSize <= 0 means one batch holding
// every remaining line.
func NewLineBatcher(content string, batchSize int) *LineBatcher {
	return &LineBatcher{
		content:   strings.TrimPrefix(content, "\ufeff"),
		batchSize: batchSize,
	}
}

// NextLine returns the next non-blank line.
func (b *LineBatcher) NextLine() (Line, bool) {
	for b.pos < len(b.content) {
		end := strings.IndexByte(b.content[b.pos:], '\n')
		var raw string
		if end < 0 {
			raw = b.content[b.pos:]
			b.pos = len(b.content)
		} else {
			raw = b.content[b.pos : b.pos+end]
			b.pos += end + 1
		}
		b.lineNo++
		raw = strings.TrimSuffix(raw, "\r")
		if strings.TrimSpace(raw) == "" {
			continue
		}
		return Line{No: b.lineNo, Text: raw}, true
	}
	return Line{}, false
}

// Next returns the next batch of non-blank lines; ok is false once the
// input is exhausted.
func (b *LineBatcher) Next() ([]Line, bool) {
	var batch []Line
	if b.batchSize > 0 {
		batch = make([]Line, 0, b.batchSize)
	}
	for b.batchSize <= 0 || len(batch) < b.batchSize {
		line, ok := b.NextLine()
		if !ok {
			break
		}
		batch = append(batch, line)
	}
	return batch, len(batch) > 0
}

// usableLines returns every non-blank line of content.
func usableLines(content string) []Line {
	lines, _ := NewLineBatcher(content, 0).Next()
	return lines
}
