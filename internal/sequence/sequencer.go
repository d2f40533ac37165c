// Package sequence assembles aligned clips into the final continuous track,
// gates the result on total drift, and owns the atomic-commit persistence
// boundary. Nothing in this package ever writes the live artifact path
// directly; replacement is rename-only.
package sequence

import (
	"errors"
	"fmt"
	"time"

	"afreco/internal/audio"
)

// ErrDriftExceeded indicates the assembled track's duration strayed further
// from the expected total than the tolerance allows. The built track must be
// discarded, never persisted.
var ErrDriftExceeded = errors.New("assembled duration drift exceeds tolerance")

// DefaultDriftTolerance gates full rebuilds and patches when the config
// supplies nothing.
const DefaultDriftTolerance = 50 * time.Millisecond

// Assemble concatenates clips strictly in the order given (callers restore
// chunk-index order before calling), probes the result, and compares it
// against the expected total. On drift the built track is discarded and the
// error reports the measured values so operators can judge the tolerance.
func Assemble(
	clips []audio.Clip,
	expectedTotal time.Duration,
	driftTolerance time.Duration,
) (audio.Clip, error) {
	if driftTolerance <= 0 {
		driftTolerance = DefaultDriftTolerance
	}

	ordered := make([][]byte, 0, len(clips))
	for _, clip := range clips {
		ordered = append(ordered, clip.Data)
	}

	joined, concatErr := audio.Concat(ordered...)
	if concatErr != nil {
		return audio.Clip{}, fmt.Errorf("failed to concatenate clips: %w", concatErr)
	}

	// Probe the joined track rather than summing clip durations; the track
	// is what gets persisted, so its measurement is authoritative.
	actualTotal, probeErr := audio.Probe(joined)
	if probeErr != nil {
		return audio.Clip{}, fmt.Errorf("failed to probe assembled track: %w", probeErr)
	}

	drift := actualTotal - expectedTotal
	if drift < 0 {
		drift = -drift
	}

	if drift > driftTolerance {
		return audio.Clip{}, fmt.Errorf(
			"%w: actual %v, expected %v, drift %v (tolerance %v)",
			ErrDriftExceeded, actualTotal, expectedTotal, drift, driftTolerance)
	}

	return audio.Clip{Data: joined, Duration: actualTotal}, nil
}
