package render

import (
	"strings"

	"github.com/go-ego/gse"
)

// Tokenizer produces a fallback token stream for text that arrives without an
// upstream morphological analysis, so chunk-map entries can still go through
// the full replacement pipeline. Segmentation quality only affects which
// override tables can match; content is never lost because the renderer
// re-emits every surface.
type Tokenizer struct {
	segmenter *gse.Segmenter
}

// NewTokenizer creates a tokenizer backed by a gse segmenter. If the
// segmenter fails to initialize, the tokenizer degrades to per-rune tokens,
// mirroring how lemon's subtitle splitter degrades.
func NewTokenizer() *Tokenizer {
	segmenter, err := gse.New()
	if err != nil {
		return &Tokenizer{segmenter: nil}
	}

	return &Tokenizer{segmenter: &segmenter}
}

// Tokenize splits text into tokens with sequential indices and contiguous
// rune ranges. Concatenating the surfaces in order reproduces the text.
func (t *Tokenizer) Tokenize(text string) []Token {
	if text == "" {
		return nil
	}

	var words []string
	if t.segmenter != nil {
		words = t.segmenter.Cut(text, false)
	}

	// The segmenter must account for every rune; anything else falls back
	// to per-rune tokens so no content can be lost.
	if strings.Join(words, "") != text {
		words = words[:0]
		for _, r := range text {
			words = append(words, string(r))
		}
	}

	tokens := make([]Token, 0, len(words))
	cursor := 0

	for wordIndex, word := range words {
		length := len([]rune(word))

		tokens = append(tokens, Token{
			Index:     wordIndex,
			CharStart: cursor,
			CharEnd:   cursor + length,
			Surface:   word,
			POS:       "",
			SubPOS:    "",
		})

		cursor += length
	}

	return tokens
}
