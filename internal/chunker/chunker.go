// Package chunker splits extracted document text into bounded segments
// suitable for embedding.
package chunker

import "strings"

const (
	// newlineLookahead is how far past the raw cut point a newline may sit
	// and still be preferred as the boundary.
	newlineLookahead = 100
)

// Options control the sliding window.
type Options struct {
	// ChunkSize is the target window length in characters.
	ChunkSize int
	// Overlap is how many characters consecutive windows share.
	Overlap int
	// MinLength drops trimmed segments at or below this length as noise.
	MinLength int
	// MaxChunks caps output; excess input is reported as truncated.
	MaxChunks int
}

// Result carries the produced chunks and whether the cap cut off input.
type Result struct {
	Chunks    []string
	Truncated bool
}

// Chunk walks text with a window of ChunkSize characters advancing by
// ChunkSize-Overlap. A raw cut mid-sentence is snapped to the nearest
// following newline when one falls within newlineLookahead characters, else
// retracted to the last period past the window midpoint, else cut hard.
func Chunk(text string, opts Options) Result {
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = 1000
	}
	if opts.Overlap < 0 || opts.Overlap >= opts.ChunkSize {
		opts.Overlap = opts.ChunkSize / 5
	}
	if opts.MinLength <= 0 {
		opts.MinLength = 50
	}

	var result Result
	start := 0

	for start < len(text) {
		if opts.MaxChunks > 0 && len(result.Chunks) >= opts.MaxChunks {
			result.Truncated = true
			break
		}

		end := start + opts.ChunkSize
		if end < len(text) {
			end = snapBoundary(text, start, end)
		} else {
			end = len(text)
		}

		segment := strings.TrimSpace(text[start:end])
		if len(segment) > opts.MinLength {
			result.Chunks = append(result.Chunks, segment)
		}

		start += opts.ChunkSize - opts.Overlap
	}

	return result
}

func snapBoundary(text string, start, end int) int {
	if nextNewline := strings.IndexByte(text[end:], '\n'); nextNewline >= 0 && nextNewline < newlineLookahead {
		return end + nextNewline + 1
	}
	if lastPeriod := strings.LastIndexByte(text[start:end], '.'); lastPeriod >= 0 {
		abs := start + lastPeriod
		if abs > start+(end-start)/2 {
			return abs + 1
		}
	}
	return end
}
