// Package render converts an annotated script into speakable text.
//
// The renderer walks the token stream in source order, resolves a write mode
// for every token from the annotation and the override tables, and emits the
// "b-text" the synthesis engine receives, together with an audit log of every
// replacement it made. It is a pure function of its inputs: malformed or
// missing annotations fall back to rendering the surface as written, never to
// an error.
package render

// WriteMode selects how a token is spoken.
type WriteMode int

// Write modes, in annotation order.
const (
	// WriteModeOriginal renders the surface form as written.
	WriteModeOriginal WriteMode = iota
	// WriteModeKatakana renders the annotated katakana reading.
	WriteModeKatakana
	// WriteModeHiragana renders the reading shifted to hiragana.
	WriteModeHiragana
)

// String returns the annotation-file name of the mode.
func (m WriteMode) String() string {
	switch m {
	case WriteModeKatakana:
		return "katakana"
	case WriteModeHiragana:
		return "hiragana"
	case WriteModeOriginal:
		return "original"
	default:
		return "original"
	}
}

// ParseWriteMode maps an annotation-file mode name onto a WriteMode.
// Unknown names fall back to the original surface, matching the renderer's
// no-failure contract.
func ParseWriteMode(name string) WriteMode {
	switch name {
	case "katakana":
		return WriteModeKatakana
	case "hiragana":
		return WriteModeHiragana
	default:
		return WriteModeOriginal
	}
}

// Token is one unit of the upstream morphological analysis. CharStart and
// CharEnd are a half-open rune range into the source text; Index is the
// stable identity annotations and patches refer to.
type Token struct {
	Index     int    `json:"index"`
	CharStart int    `json:"char_start"`
	CharEnd   int    `json:"char_end"`
	Surface   string `json:"surface"`
	POS       string `json:"pos"`
	SubPOS    string `json:"subpos"`
}

// Annotation carries the reading metadata for one token, keyed by Token.Index.
// Explicit records whether the write mode was asserted by the annotator, as
// opposed to inherited from a default; the default policy only reverts
// inherited modes.
type Annotation struct {
	Index     int    `json:"index"`
	Mode      string `json:"write_mode"`
	Reading   string `json:"reading_kana"`
	RiskLevel uint8  `json:"risk_level"`
	Explicit  bool   `json:"explicit"`
}

// LogEntry records one rendered token. Entries appear in token order, one per
// non-skipped token, so downstream audits can reconstruct every substitution.
type LogEntry struct {
	Index    int
	Original string
	Replaced string
	Mode     WriteMode
}
