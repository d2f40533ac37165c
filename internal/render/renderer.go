package render

import (
	"sort"
	"strings"
)

// Renderer turns source text plus token annotations into speakable b-text.
// Construct it once with the replacement tables; Render is safe for
// concurrent use because the renderer holds no per-call state.
type Renderer struct {
	tables Tables
}

// NewRenderer creates a renderer over the given replacement tables.
func NewRenderer(tables Tables) *Renderer {
	return &Renderer{tables: tables}
}

// Render produces the spoken text for the source and the replacement log,
// one entry per non-skipped token in token order. Unknown or malformed
// annotations render the surface as written; this function has no error path.
func (r *Renderer) Render(
	source string,
	tokens []Token,
	annotations []Annotation,
	ruby map[int]string,
) (string, []LogEntry) {
	sourceRunes := []rune(source)

	ordered := make([]Token, len(tokens))
	copy(ordered, tokens)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].CharStart < ordered[j].CharStart
	})

	annotationByIndex := make(map[int]Annotation, len(annotations))
	for _, annotation := range annotations {
		annotationByIndex[annotation.Index] = annotation
	}

	var (
		builder     strings.Builder
		log         []LogEntry
		cursor      int
		prevEmitted string
	)

	for _, token := range ordered {
		start := clamp(token.CharStart, 0, len(sourceRunes))
		end := clamp(token.CharEnd, start, len(sourceRunes))

		// Whitespace and punctuation untouched by tokenization pass
		// through verbatim.
		if start > cursor {
			builder.WriteString(string(sourceRunes[cursor:start]))
		}

		if end > cursor {
			cursor = end
		}

		if r.isSkipped(token) {
			continue
		}

		mode, rendered := r.resolve(token, annotationByIndex, ruby, prevEmitted)

		builder.WriteString(rendered)

		log = append(log, LogEntry{
			Index:    token.Index,
			Original: token.Surface,
			Replaced: rendered,
			Mode:     mode,
		})

		prevEmitted = token.Surface
	}

	if cursor < len(sourceRunes) {
		builder.WriteString(string(sourceRunes[cursor:]))
	}

	return r.applyFixups(builder.String()), log
}

// isSkipped applies the skip rule: pause markers, bracket-delimited stage
// directions, and the fixed marker set emit nothing.
func (r *Renderer) isSkipped(token Token) bool {
	if token.POS == r.tables.SilencePOS {
		return true
	}

	if len(token.Surface) >= 2 &&
		strings.HasPrefix(token.Surface, "[") &&
		strings.HasSuffix(token.Surface, "]") {
		return true
	}

	_, skipped := r.tables.SkipSurfaces[token.Surface]

	return skipped
}

// resolve picks the write mode and rendered text for one token. Rule order
// follows the annotation pipeline exactly: forced original, ruby hint, fixed
// lexicon, risk terms, then the annotation with the default-policy revert.
func (r *Renderer) resolve(
	token Token,
	annotationByIndex map[int]Annotation,
	ruby map[int]string,
	prevEmitted string,
) (WriteMode, string) {
	if r.isForcedOriginal(token.Surface, prevEmitted) {
		return WriteModeOriginal, token.Surface
	}

	if reading, ok := ruby[token.Index]; ok && reading != "" {
		return WriteModeKatakana, reading
	}

	if reading, ok := r.tables.Lexicon[normalizeSurface(token.Surface)]; ok {
		return WriteModeKatakana, reading
	}

	if reading, ok := r.tables.RiskTerms[token.Surface]; ok {
		return WriteModeKatakana, reading
	}

	annotation, ok := annotationByIndex[token.Index]
	if !ok {
		return WriteModeOriginal, token.Surface
	}

	mode := ParseWriteMode(annotation.Mode)
	if mode == WriteModeOriginal {
		return WriteModeOriginal, token.Surface
	}

	if annotation.Reading == "" {
		// Malformed annotation; fall back to the surface rather than fail.
		return WriteModeOriginal, token.Surface
	}

	if r.revertedByDefaultPolicy(token, annotation, prevEmitted) {
		return WriteModeOriginal, token.Surface
	}

	if mode == WriteModeHiragana {
		return WriteModeHiragana, KatakanaToHiragana(annotation.Reading)
	}

	return WriteModeKatakana, annotation.Reading
}

func (r *Renderer) isForcedOriginal(surface, prevEmitted string) bool {
	if _, forced := r.tables.ForcedOriginal[surface]; forced {
		return true
	}

	for _, rule := range r.tables.ForcedBigrams {
		if rule.Prev == prevEmitted && rule.Current == surface {
			return true
		}
	}

	return false
}

// revertedByDefaultPolicy reverts an inherited non-Original mode back to the
// surface when the model's reading confidence was never explicitly asserted.
// Keeps kanji rendered literally instead of over-converting to kana.
func (r *Renderer) revertedByDefaultPolicy(
	token Token,
	annotation Annotation,
	prevEmitted string,
) bool {
	const lowRiskCeiling = 1

	if annotation.Explicit {
		return false
	}

	if annotation.RiskLevel > lowRiskCeiling {
		return false
	}

	if hasASCIIAlnum(token.Surface) || isBareDigit(token.Surface) {
		return false
	}

	if r.isCounterAfterDigit(token.Surface, prevEmitted) {
		return false
	}

	return true
}

func (r *Renderer) isCounterAfterDigit(surface, prevEmitted string) bool {
	_, isCounter := r.tables.Counters[surface]

	return isCounter && endsWithDigit(prevEmitted)
}

// applyFixups runs the ordered literal substitution list over the rendered
// text. One pass per entry, never recursive.
func (r *Renderer) applyFixups(text string) string {
	for _, fixup := range r.tables.Fixups {
		text = strings.ReplaceAll(text, fixup.From, fixup.To)
	}

	return text
}

func clamp(value, low, high int) int {
	if value < low {
		return low
	}

	if value > high {
		return high
	}

	return value
}
