// Package patch rebuilds a contiguous index range of timed entries and
// splices the result into the existing live artifact. The splice is
// all-or-nothing: every validation runs against an in-memory copy, and the
// live file changes only through the atomic commit at the very end.
package patch

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/book-expert/logger"

	"afreco/internal/align"
	"afreco/internal/audio"
	"afreco/internal/chunkmap"
	"afreco/internal/pipeline"
	"afreco/internal/sequence"
)

// ErrArtifactShort indicates the live artifact ends before the patch range
// does, so there is nothing to splice into.
var ErrArtifactShort = errors.New("live artifact shorter than patch range")

// Patcher splices rebuilt ranges into a live artifact.
type Patcher struct {
	pipe           *pipeline.Pipeline
	aligner        *align.Aligner
	log            *logger.Logger
	driftTolerance time.Duration
}

// New creates a patcher sharing the rebuild pipeline's collaborators. The
// aligner runs the aggregate re-alignment pass over each rebuilt segment.
func New(
	pipe *pipeline.Pipeline,
	aligner *align.Aligner,
	log *logger.Logger,
	driftTolerance time.Duration,
) *Patcher {
	if driftTolerance <= 0 {
		driftTolerance = sequence.DefaultDriftTolerance
	}

	return &Patcher{
		pipe:           pipe,
		aligner:        aligner,
		log:            log,
		driftTolerance: driftTolerance,
	}
}

// Apply rebuilds entries with startIndex <= Index <= endIndex, verifies the
// rebuilt segment against the range's timed span, splices it between the
// untouched before/after slices of the live artifact, and commits the result
// atomically. On any error the live artifact is left byte-for-byte unchanged.
func (p *Patcher) Apply(
	ctx context.Context,
	entries []chunkmap.Entry,
	scripts map[uint32]pipeline.EntryScript,
	startIndex, endIndex uint32,
	livePath string,
) error {
	selected, selectErr := chunkmap.SelectRange(entries, startIndex, endIndex)
	if selectErr != nil {
		return selectErr
	}

	segment, buildErr := p.buildSegment(ctx, selected, scripts)
	if buildErr != nil {
		return buildErr
	}

	patched, spliceErr := p.splice(livePath, entries[0].Start, selected, segment)
	if spliceErr != nil {
		return spliceErr
	}

	verifyErr := p.verifyTotal(patched, chunkmap.Span(entries))
	if verifyErr != nil {
		return verifyErr
	}

	commitErr := sequence.Commit(patched, livePath)
	if commitErr != nil {
		return commitErr
	}

	p.log.Info("patched entries [%d, %d]: segment %v", startIndex, endIndex, segment.Duration)

	return nil
}

// buildSegment renders the selected range, joins the entry clips, and
// re-aligns the joined segment as a whole to the range's aggregate span.
// Per-entry alignment leaves sub-epsilon residuals that accumulate across
// entries; the aggregate pass absorbs them instead of failing the patch.
func (p *Patcher) buildSegment(
	ctx context.Context,
	selected []chunkmap.Entry,
	scripts map[uint32]pipeline.EntryScript,
) (audio.Clip, error) {
	clips, _, buildErr := p.pipe.BuildEntries(ctx, selected, scripts)
	if buildErr != nil {
		return audio.Clip{}, buildErr
	}

	ordered := make([][]byte, 0, len(clips))
	for _, clip := range clips {
		ordered = append(ordered, clip.Data)
	}

	joined, concatErr := audio.Concat(ordered...)
	if concatErr != nil {
		return audio.Clip{}, fmt.Errorf("failed to join rebuilt range: %w", concatErr)
	}

	segment, alignErr := p.aligner.Align(ctx, joined, chunkmap.Span(selected))
	if alignErr != nil {
		return audio.Clip{}, fmt.Errorf("rebuilt range rejected: %w", alignErr)
	}

	return segment, nil
}

// splice cuts the live artifact at the range boundaries and joins
// before + rebuilt segment + after. Both cuts are timestamp-driven, so audio
// outside the range is carried over from the original bytes, not re-rendered.
// origin is the chunk map's first start time; the artifact's zero maps to it.
func (p *Patcher) splice(
	livePath string,
	origin time.Duration,
	selected []chunkmap.Entry,
	segment audio.Clip,
) ([]byte, error) {
	live, readErr := os.ReadFile(livePath)
	if readErr != nil {
		return nil, fmt.Errorf("failed to read live artifact: %w", readErr)
	}

	liveDuration, probeErr := audio.Probe(live)
	if probeErr != nil {
		return nil, fmt.Errorf("failed to probe live artifact: %w", probeErr)
	}

	rangeStart := selected[0].Start - origin
	rangeEnd := selected[len(selected)-1].End - origin

	if liveDuration < rangeEnd {
		return nil, fmt.Errorf("%w: artifact %v, range ends %v",
			ErrArtifactShort, liveDuration, rangeEnd)
	}

	before, beforeErr := audio.Slice(live, 0, rangeStart)
	if beforeErr != nil {
		return nil, fmt.Errorf("failed to cut leading audio: %w", beforeErr)
	}

	after, afterErr := audio.Slice(live, rangeEnd, liveDuration)
	if afterErr != nil {
		return nil, fmt.Errorf("failed to cut trailing audio: %w", afterErr)
	}

	patched, concatErr := audio.Concat(before, segment.Data, after)
	if concatErr != nil {
		return nil, fmt.Errorf("failed to splice patched artifact: %w", concatErr)
	}

	return patched, nil
}

// verifyTotal gates the final spliced track against the full chunk map span,
// the same check a full rebuild passes before commit.
func (p *Patcher) verifyTotal(patched []byte, expectedTotal time.Duration) error {
	actual, probeErr := audio.Probe(patched)
	if probeErr != nil {
		return fmt.Errorf("failed to probe patched artifact: %w", probeErr)
	}

	drift := actual - expectedTotal
	if drift < 0 {
		drift = -drift
	}

	if drift > p.driftTolerance {
		return fmt.Errorf("%w: actual %v, expected %v, drift %v (tolerance %v)",
			sequence.ErrDriftExceeded, actual, expectedTotal, drift, p.driftTolerance)
	}

	return nil
}
