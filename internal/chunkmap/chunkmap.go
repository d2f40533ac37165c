// Package chunkmap models the timed-entries file: the ordered list of
// subtitle lines whose pre-committed timings the rendered audio must match.
// The engine never discovers these files itself; callers hand over a path or
// raw JSON.
package chunkmap

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"time"
)

// Static errors.
var (
	// ErrEmpty indicates a chunk map with no entries.
	ErrEmpty = errors.New("chunk map has no entries")
	// ErrEntrySpan indicates an entry whose start is not before its end.
	ErrEntrySpan = errors.New("entry start must be before entry end")
	// ErrDuplicateIndex indicates two entries sharing an index.
	ErrDuplicateIndex = errors.New("duplicate entry index")
	// ErrRangeInvalid indicates a patch range matching no entries.
	ErrRangeInvalid = errors.New("no entries in requested index range")
	// ErrTimestamp indicates an unparseable SRT-style timestamp.
	ErrTimestamp = errors.New("malformed timestamp")
)

// Entry is one timed subtitle line. Index is 1-based and matches the source
// subtitle numbering; indices are unique but need not be contiguous.
type Entry struct {
	Index uint32
	Start time.Duration
	End   time.Duration
	Text  string
}

// Span returns the entry's target duration.
func (e Entry) Span() time.Duration {
	return e.End - e.Start
}

// entryJSON is the at-rest form with SRT-style timestamps.
type entryJSON struct {
	Index uint32 `json:"index"`
	Start string `json:"start"`
	End   string `json:"end"`
	Text  string `json:"text"`
}

// Load reads and validates a chunk-map file.
func Load(path string) ([]Entry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read chunk map: %w", err)
	}

	return Parse(data)
}

// Parse decodes chunk-map JSON and validates the entry invariants: positive
// spans, ascending start times, unique indices.
func Parse(data []byte) ([]Entry, error) {
	var raw []entryJSON

	err := json.Unmarshal(data, &raw)
	if err != nil {
		return nil, fmt.Errorf("failed to parse chunk map JSON: %w", err)
	}

	if len(raw) == 0 {
		return nil, ErrEmpty
	}

	entries := make([]Entry, 0, len(raw))

	for _, rawEntry := range raw {
		start, startErr := ParseTimestamp(rawEntry.Start)
		if startErr != nil {
			return nil, fmt.Errorf("entry %d start: %w", rawEntry.Index, startErr)
		}

		end, endErr := ParseTimestamp(rawEntry.End)
		if endErr != nil {
			return nil, fmt.Errorf("entry %d end: %w", rawEntry.Index, endErr)
		}

		entries = append(entries, Entry{
			Index: rawEntry.Index,
			Start: start,
			End:   end,
			Text:  rawEntry.Text,
		})
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Start < entries[j].Start
	})

	seen := make(map[uint32]struct{}, len(entries))

	for _, entry := range entries {
		if entry.Start >= entry.End {
			return nil, fmt.Errorf("%w: entry %d (%v >= %v)",
				ErrEntrySpan, entry.Index, entry.Start, entry.End)
		}

		if _, duplicate := seen[entry.Index]; duplicate {
			return nil, fmt.Errorf("%w: %d", ErrDuplicateIndex, entry.Index)
		}

		seen[entry.Index] = struct{}{}
	}

	return entries, nil
}

// SelectRange returns the entries with startIndex <= Index <= endIndex,
// preserving order. An empty selection is ErrRangeInvalid: the caller named a
// range that does not exist.
func SelectRange(entries []Entry, startIndex, endIndex uint32) ([]Entry, error) {
	var selected []Entry

	for _, entry := range entries {
		if entry.Index >= startIndex && entry.Index <= endIndex {
			selected = append(selected, entry)
		}
	}

	if len(selected) == 0 {
		return nil, fmt.Errorf("%w: [%d, %d]", ErrRangeInvalid, startIndex, endIndex)
	}

	return selected, nil
}

// Span returns the aggregate target duration of an ordered entry list, from
// the first start to the last end.
func Span(entries []Entry) time.Duration {
	if len(entries) == 0 {
		return 0
	}

	return entries[len(entries)-1].End - entries[0].Start
}

// ParseTimestamp parses the SRT-style "HH:MM:SS,mmm" form. Field widths are
// fixed: two-digit hours, minutes and seconds, three-digit milliseconds.
// Anything looser would silently misread truncated millisecond fields.
func ParseTimestamp(value string) (time.Duration, error) {
	const timestampLen = len("00:00:00,000")

	if len(value) != timestampLen ||
		value[2] != ':' || value[5] != ':' || value[8] != ',' {
		return 0, fmt.Errorf("%w: %q", ErrTimestamp, value)
	}

	hours, hoursOK := parseTimeField(value[0:2])
	minutes, minutesOK := parseTimeField(value[3:5])
	seconds, secondsOK := parseTimeField(value[6:8])
	millis, millisOK := parseTimeField(value[9:12])

	if !hoursOK || !minutesOK || !secondsOK || !millisOK ||
		minutes > 59 || seconds > 59 {
		return 0, fmt.Errorf("%w: %q", ErrTimestamp, value)
	}

	total := time.Duration(hours)*time.Hour +
		time.Duration(minutes)*time.Minute +
		time.Duration(seconds)*time.Second +
		time.Duration(millis)*time.Millisecond

	return total, nil
}

// parseTimeField decodes an all-digit decimal field.
func parseTimeField(field string) (int, bool) {
	value := 0

	for _, r := range field {
		if r < '0' || r > '9' {
			return 0, false
		}

		value = value*10 + int(r-'0')
	}

	return value, true
}

// FormatTimestamp renders a duration in the SRT-style "HH:MM:SS,mmm" form.
func FormatTimestamp(d time.Duration) string {
	if d < 0 {
		d = 0
	}

	hours := d / time.Hour
	d -= hours * time.Hour
	minutes := d / time.Minute
	d -= minutes * time.Minute
	seconds := d / time.Second
	d -= seconds * time.Second
	millis := d / time.Millisecond

	return fmt.Sprintf("%02d:%02d:%02d,%03d", hours, minutes, seconds, millis)
}
