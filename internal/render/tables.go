package render

// BigramRule forces a token pair to the original surface. Prev is matched
// against the previously *emitted* surface, not the raw previous token, so
// skipped tokens in between do not defeat the rule.
type BigramRule struct {
	Prev    string
	Current string
}

// Fixup is one literal post-normalization substitution. Fixups are applied
// to the fully rendered text, in order, exactly once each.
type Fixup struct {
	From string
	To   string
}

// Tables holds every replacement table the renderer consults. The tables are
// immutable after construction and injected, so tests can substitute their
// own without touching package state.
type Tables struct {
	// SkipSurfaces are section and label markers that are consumed without
	// emitting spoken text.
	SkipSurfaces map[string]struct{}

	// SilencePOS is the part-of-speech tag the upstream analyzer puts on
	// pause markers; such tokens are skipped like SkipSurfaces entries.
	SilencePOS string

	// ForcedOriginal lists surfaces whose reading is always ambiguous and
	// therefore always rendered as written, regardless of annotation.
	ForcedOriginal map[string]struct{}

	// ForcedBigrams are particle pairs forced to the original surface.
	ForcedBigrams []BigramRule

	// Lexicon maps uppercase-folded surfaces of acronyms and model names
	// directly to a katakana reading, bypassing annotation.
	Lexicon map[string]string

	// RiskTerms maps surfaces with a known high mis-reading risk to a
	// katakana reading, applied before falling back to annotation.
	RiskTerms map[string]string

	// Counters lists counter words that keep their annotated reading when
	// they immediately follow a digit.
	Counters map[string]struct{}

	// Fixups corrects known unnatural multi-token artifacts in the final
	// rendered text.
	Fixups []Fixup
}

// DefaultTables returns the production replacement tables.
func DefaultTables() Tables {
	return Tables{
		SkipSurfaces: map[string]struct{}{
			"■":   {},
			"●":   {},
			"▼":   {},
			"---": {},
			"＊":   {},
		},
		SilencePOS: "silence_tag",
		ForcedOriginal: map[string]struct{}{
			"は": {},
			"へ": {},
			"を": {},
		},
		ForcedBigrams: []BigramRule{
			{Prev: "で", Current: "は"},
			{Prev: "に", Current: "は"},
		},
		Lexicon: map[string]string{
			"AI":  "エーアイ",
			"API": "エーピーアイ",
			"CPU": "シーピーユー",
			"GPU": "ジーピーユー",
			"LLM": "エルエルエム",
			"GPT": "ジーピーティー",
			"URL": "ユーアールエル",
			"OS":  "オーエス",
		},
		RiskTerms: map[string]string{
			"重複": "チョウフク",
			"代替": "ダイタイ",
			"早急": "サッキュウ",
			"出生": "シュッショウ",
			"施行": "シコウ",
		},
		Counters: map[string]struct{}{
			"個": {},
			"本": {},
			"枚": {},
			"台": {},
			"回": {},
			"人": {},
			"年": {},
			"月": {},
			"日": {},
			"円": {},
		},
		Fixups: []Fixup{
			// Dash-joined acronym+numeral sequences read the dash aloud.
			{From: "ジーピーティー-4", To: "ジーピーティーフォー"},
			{From: "ジーピーティー-5", To: "ジーピーティーファイブ"},
			{From: "エーアイ-", To: "エーアイ"},
			// Doubled long-vowel marks left by acronym joins.
			{From: "ーー", To: "ー"},
		},
	}
}
