// Package chunk splits spoken text into the bounded-length pieces the
// synthesis engine accepts per request. The one hard invariant: joining the
// chunk texts in index order reproduces the input exactly, no characters
// dropped and none duplicated.
package chunk

// DefaultMaxLen is the per-request length bound in runes. VOICEVOX-style
// engines degrade past a few hundred characters per query.
const DefaultMaxLen = 200

// boundaryRunes end a segment; the boundary stays attached to the text before
// it so pauses survive synthesis.
var boundaryRunes = map[rune]struct{}{
	'。': {},
	'．': {},
	'！': {},
	'？': {},
	'\n': {},
	'、': {},
	'，': {},
	',': {},
}

// Chunk is one synthesis unit. Indices are 0-based and contiguous.
type Chunk struct {
	Index uint32
	Text  string
}

// Split cuts spoken text on sentence boundaries into chunks of at most maxLen
// runes. A single boundary-delimited segment longer than maxLen is
// force-split into maxLen-sized slices; content preservation is the only
// invariant inside a force-split. maxLen values below 1 use DefaultMaxLen.
func Split(spokenText string, maxLen int) []Chunk {
	if spokenText == "" {
		return nil
	}

	if maxLen < 1 {
		maxLen = DefaultMaxLen
	}

	var (
		chunks []Chunk
		buffer []rune
	)

	flush := func() {
		if len(buffer) == 0 {
			return
		}

		chunks = append(chunks, Chunk{
			Index: uint32(len(chunks)),
			Text:  string(buffer),
		})
		buffer = nil
	}

	for _, segment := range splitSegments(spokenText) {
		if len(segment) > maxLen {
			flush()

			for _, slice := range forceSplit(segment, maxLen) {
				buffer = slice
				flush()
			}

			continue
		}

		if len(buffer)+len(segment) > maxLen {
			flush()
		}

		buffer = append(buffer, segment...)
	}

	flush()

	return chunks
}

// Join reassembles chunk texts in order. Split and Join are inverse by
// construction; tests hold them to it.
func Join(chunks []Chunk) string {
	var total int
	for _, c := range chunks {
		total += len(c.Text)
	}

	joined := make([]byte, 0, total)
	for _, c := range chunks {
		joined = append(joined, c.Text...)
	}

	return string(joined)
}

// splitSegments cuts the text after every boundary rune, keeping the boundary
// attached to the preceding segment.
func splitSegments(text string) [][]rune {
	var (
		segments [][]rune
		current  []rune
	)

	for _, r := range text {
		current = append(current, r)

		if _, isBoundary := boundaryRunes[r]; isBoundary {
			segments = append(segments, current)
			current = nil
		}
	}

	if len(current) > 0 {
		segments = append(segments, current)
	}

	return segments
}

// forceSplit slices an oversized segment into fixed-size pieces.
func forceSplit(segment []rune, maxLen int) [][]rune {
	var pieces [][]rune

	for start := 0; start < len(segment); start += maxLen {
		end := start + maxLen
		if end > len(segment) {
			end = len(segment)
		}

		pieces = append(pieces, segment[start:end])
	}

	return pieces
}
