// Package render_test tests spoken-text rendering against the replacement
// tables and annotation semantics.
package render_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"afreco/internal/render"
)

// makeTokens builds contiguous tokens from surfaces, tracking rune offsets
// the way the upstream analyzer does.
func makeTokens(surfaces ...string) []render.Token {
	tokens := make([]render.Token, 0, len(surfaces))
	cursor := 0

	for i, surface := range surfaces {
		length := len([]rune(surface))
		tokens = append(tokens, render.Token{
			Index:     i,
			CharStart: cursor,
			CharEnd:   cursor + length,
			Surface:   surface,
		})
		cursor += length
	}

	return tokens
}

func joinSurfaces(tokens []render.Token) string {
	var out string
	for _, token := range tokens {
		out += token.Surface
	}

	return out
}

func TestRenderWithoutAnnotationsIsIdentity(t *testing.T) {
	t.Parallel()

	renderer := render.NewRenderer(render.DefaultTables())
	tokens := makeTokens("今日", "は", "晴れ", "です", "。")
	source := joinSurfaces(tokens)

	spoken, log := renderer.Render(source, tokens, nil, nil)

	assert.Equal(t, source, spoken)
	require.Len(t, log, len(tokens))

	for _, entry := range log {
		assert.Equal(t, render.WriteModeOriginal, entry.Mode)
		assert.Equal(t, entry.Original, entry.Replaced)
	}
}

func TestRenderExplicitKatakanaAnnotation(t *testing.T) {
	t.Parallel()

	renderer := render.NewRenderer(render.DefaultTables())
	tokens := makeTokens("生成", "する")
	annotations := []render.Annotation{
		{Index: 0, Mode: "katakana", Reading: "セイセイ", RiskLevel: 3, Explicit: true},
	}

	spoken, log := renderer.Render("生成する", tokens, annotations, nil)

	assert.Equal(t, "セイセイする", spoken)
	require.Len(t, log, 2)
	assert.Equal(t, render.WriteModeKatakana, log[0].Mode)
	assert.Equal(t, "生成", log[0].Original)
	assert.Equal(t, "セイセイ", log[0].Replaced)
}

func TestRenderHiraganaModeConvertsReading(t *testing.T) {
	t.Parallel()

	renderer := render.NewRenderer(render.DefaultTables())
	tokens := makeTokens("読む")
	annotations := []render.Annotation{
		{Index: 0, Mode: "hiragana", Reading: "ヨム", RiskLevel: 2, Explicit: true},
	}

	spoken, log := renderer.Render("読む", tokens, annotations, nil)

	assert.Equal(t, "よむ", spoken)
	require.Len(t, log, 1)
	assert.Equal(t, render.WriteModeHiragana, log[0].Mode)
}

func TestRenderDefaultPolicyRevertsInheritedKanaMode(t *testing.T) {
	t.Parallel()

	renderer := render.NewRenderer(render.DefaultTables())
	tokens := makeTokens("漢字")

	// Inherited mode, low risk, plain kanji surface: render as written.
	annotations := []render.Annotation{
		{Index: 0, Mode: "katakana", Reading: "カンジ", RiskLevel: 1, Explicit: false},
	}

	spoken, log := renderer.Render("漢字", tokens, annotations, nil)

	assert.Equal(t, "漢字", spoken)
	require.Len(t, log, 1)
	assert.Equal(t, render.WriteModeOriginal, log[0].Mode)
}

func TestRenderDefaultPolicyKeepsHighRiskReading(t *testing.T) {
	t.Parallel()

	renderer := render.NewRenderer(render.DefaultTables())
	tokens := makeTokens("凡例")
	annotations := []render.Annotation{
		{Index: 0, Mode: "katakana", Reading: "ハンレイ", RiskLevel: 3, Explicit: false},
	}

	spoken, _ := renderer.Render("凡例", tokens, annotations, nil)

	assert.Equal(t, "ハンレイ", spoken)
}

func TestRenderCounterAfterDigitKeepsReading(t *testing.T) {
	t.Parallel()

	renderer := render.NewRenderer(render.DefaultTables())
	tokens := makeTokens("3", "個")
	annotations := []render.Annotation{
		{Index: 1, Mode: "katakana", Reading: "コ", RiskLevel: 0, Explicit: false},
	}

	spoken, _ := renderer.Render("3個", tokens, annotations, nil)

	assert.Equal(t, "3コ", spoken)
}

func TestRenderForcedOriginalParticleBeatsAnnotation(t *testing.T) {
	t.Parallel()

	renderer := render.NewRenderer(render.DefaultTables())
	tokens := makeTokens("今日", "は")
	annotations := []render.Annotation{
		{Index: 1, Mode: "hiragana", Reading: "ワ", RiskLevel: 5, Explicit: true},
	}

	spoken, log := renderer.Render("今日は", tokens, annotations, nil)

	assert.Equal(t, "今日は", spoken)
	assert.Equal(t, render.WriteModeOriginal, log[1].Mode)
}

func TestRenderForcedBigramSeesPreviousEmittedSurface(t *testing.T) {
	t.Parallel()

	tables := render.DefaultTables()
	// A standalone は would be forced anyway; clear ForcedOriginal so only
	// the bigram rule can explain the result.
	tables.ForcedOriginal = map[string]struct{}{}
	renderer := render.NewRenderer(tables)

	tokens := makeTokens("で", "■", "は")
	tokens[1].POS = "symbol"
	annotations := []render.Annotation{
		{Index: 2, Mode: "katakana", Reading: "ワ", RiskLevel: 5, Explicit: true},
	}

	spoken, _ := renderer.Render("で■は", tokens, annotations, nil)

	// ■ is skipped, so the bigram still matches across it.
	assert.Equal(t, "では", spoken)
}

func TestRenderRubyBeatsAnnotationButNotForcedOriginal(t *testing.T) {
	t.Parallel()

	renderer := render.NewRenderer(render.DefaultTables())
	tokens := makeTokens("主人公", "は")
	annotations := []render.Annotation{
		{Index: 0, Mode: "katakana", Reading: "シュジンコウ", RiskLevel: 4, Explicit: true},
	}
	ruby := map[int]string{0: "ヒーロー", 1: "ワ"}

	spoken, log := renderer.Render("主人公は", tokens, annotations, ruby)

	assert.Equal(t, "ヒーローは", spoken)
	assert.Equal(t, "ヒーロー", log[0].Replaced)
	assert.Equal(t, "は", log[1].Replaced)
}

func TestRenderLexiconNormalizesWidthAndCase(t *testing.T) {
	t.Parallel()

	renderer := render.NewRenderer(render.DefaultTables())

	for _, surface := range []string{"GPU", "gpu", "ＧＰＵ"} {
		tokens := makeTokens(surface)

		spoken, _ := renderer.Render(surface, tokens, nil, nil)

		assert.Equal(t, "ジーピーユー", spoken, "surface %q", surface)
	}
}

func TestRenderRiskTermWithoutAnnotation(t *testing.T) {
	t.Parallel()

	renderer := render.NewRenderer(render.DefaultTables())
	tokens := makeTokens("重複", "を", "排除")

	spoken, _ := renderer.Render("重複を排除", tokens, nil, nil)

	assert.Equal(t, "チョウフクを排除", spoken)
}

func TestRenderSkipsMarkersAndStageDirections(t *testing.T) {
	t.Parallel()

	renderer := render.NewRenderer(render.DefaultTables())
	tokens := makeTokens("■", "見出し", "[間]", "本文")
	tokens[2].POS = "silence_tag"

	spoken, log := renderer.Render("■見出し[間]本文", tokens, nil, nil)

	assert.Equal(t, "見出し本文", spoken)
	// Skipped tokens produce no log entries.
	require.Len(t, log, 2)
	assert.Equal(t, "見出し", log[0].Original)
	assert.Equal(t, "本文", log[1].Original)
}

func TestRenderPreservesUntokenizedGaps(t *testing.T) {
	t.Parallel()

	renderer := render.NewRenderer(render.DefaultTables())

	// Tokens cover "AI" and "時代" but not the punctuation between/around.
	tokens := []render.Token{
		{Index: 0, CharStart: 1, CharEnd: 3, Surface: "AI"},
		{Index: 1, CharStart: 4, CharEnd: 6, Surface: "時代"},
	}

	spoken, _ := renderer.Render("「AI・時代」", tokens, nil, nil)

	assert.Equal(t, "「エーアイ・時代」", spoken)
}

func TestRenderAppliesFixupsAfterRendering(t *testing.T) {
	t.Parallel()

	renderer := render.NewRenderer(render.DefaultTables())
	tokens := makeTokens("GPT", "-4")

	spoken, _ := renderer.Render("GPT-4", tokens, nil, nil)

	assert.Equal(t, "ジーピーティーフォー", spoken)
}

func TestRenderEmptyReadingFallsBackToSurface(t *testing.T) {
	t.Parallel()

	renderer := render.NewRenderer(render.DefaultTables())
	tokens := makeTokens("曖昧")
	annotations := []render.Annotation{
		{Index: 0, Mode: "katakana", Reading: "", RiskLevel: 5, Explicit: true},
	}

	spoken, log := renderer.Render("曖昧", tokens, annotations, nil)

	assert.Equal(t, "曖昧", spoken)
	assert.Equal(t, render.WriteModeOriginal, log[0].Mode)
}

func TestRenderUnknownModeRendersSurface(t *testing.T) {
	t.Parallel()

	renderer := render.NewRenderer(render.DefaultTables())
	tokens := makeTokens("曖昧")
	annotations := []render.Annotation{
		{Index: 0, Mode: "romaji", Reading: "アイマイ", RiskLevel: 5, Explicit: true},
	}

	spoken, _ := renderer.Render("曖昧", tokens, annotations, nil)

	assert.Equal(t, "曖昧", spoken)
}
