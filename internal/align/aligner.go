// Package align forces a synthesized clip to match a pre-committed subtitle
// timing. The policy is deterministic and three-tier: pad short clips with
// tail silence, time-compress long ones, leave the rest alone — and only ever
// hard-trim as a finishing guard, because trimming loses spoken content.
package align

import (
	"context"
	"errors"
	"fmt"
	"time"

	"afreco/internal/audio"
	"afreco/internal/core"
)

// Defaults used when the config supplies no tolerances.
const (
	// DefaultEpsilon is the residual the aligner accepts as "exact".
	DefaultEpsilon = 10 * time.Millisecond

	// DefaultCompressTolerance is the overshoot a clip may carry before the
	// aligner reaches for time compression. Distinct from epsilon: small
	// overshoots are cheaper to trim than to re-encode.
	DefaultCompressTolerance = 120 * time.Millisecond
)

// Static errors.
var (
	// ErrInvalidTarget indicates a non-positive target duration. Fatal, not
	// retried.
	ErrInvalidTarget = errors.New("target duration must be positive")

	// ErrCodecContract indicates the codec collaborator returned audio
	// outside the agreed tolerance of the target.
	ErrCodecContract = errors.New("codec returned audio outside alignment tolerance")
)

// Aligner applies the duration-fitting policy. The tempo-preserving
// compression step is delegated to the injected core.Compressor; everything
// else is pure WAV manipulation.
type Aligner struct {
	compressor        core.Compressor
	epsilon           time.Duration
	compressTolerance time.Duration
}

// New creates an aligner. Non-positive tolerances fall back to the defaults.
func New(compressor core.Compressor, epsilon, compressTolerance time.Duration) *Aligner {
	if epsilon <= 0 {
		epsilon = DefaultEpsilon
	}

	if compressTolerance <= 0 {
		compressTolerance = DefaultCompressTolerance
	}

	return &Aligner{
		compressor:        compressor,
		epsilon:           epsilon,
		compressTolerance: compressTolerance,
	}
}

// Epsilon returns the aligner's exactness tolerance.
func (a *Aligner) Epsilon() time.Duration {
	return a.epsilon
}

// Align fits a raw clip to the target duration and returns the aligned clip
// with its measured duration, guaranteed within epsilon of the target.
func (a *Aligner) Align(
	ctx context.Context,
	rawClip []byte,
	target time.Duration,
) (audio.Clip, error) {
	if target <= 0 {
		return audio.Clip{}, fmt.Errorf("%w: got %v", ErrInvalidTarget, target)
	}

	actual, probeErr := audio.Probe(rawClip)
	if probeErr != nil {
		return audio.Clip{}, fmt.Errorf("failed to probe raw clip: %w", probeErr)
	}

	fitted, fitErr := a.fit(ctx, rawClip, actual, target)
	if fitErr != nil {
		return audio.Clip{}, fitErr
	}

	fitted, result, guardErr := a.finishingGuard(fitted, target)
	if guardErr != nil {
		return audio.Clip{}, guardErr
	}

	if absDuration(result-target) > a.epsilon {
		return audio.Clip{}, fmt.Errorf("%w: got %v, want %v (epsilon %v)",
			ErrCodecContract, result, target, a.epsilon)
	}

	return audio.Clip{Data: fitted, Duration: result}, nil
}

// fit applies the pad/compress/leave tiers.
func (a *Aligner) fit(
	ctx context.Context,
	rawClip []byte,
	actual, target time.Duration,
) ([]byte, error) {
	switch {
	case actual < target-a.epsilon:
		padded, err := audio.PadSilence(rawClip, target-actual)
		if err != nil {
			return nil, fmt.Errorf("failed to pad clip: %w", err)
		}

		return padded, nil
	case actual > target+a.compressTolerance:
		ratio := float64(target) / float64(actual)

		compressed, err := a.compressor.TimeCompress(ctx, rawClip, ratio)
		if err != nil {
			return nil, fmt.Errorf("time compression failed (ratio %.4f): %w", ratio, err)
		}

		return compressed, nil
	default:
		return rawClip, nil
	}
}

// finishingGuard hard-trims residual overshoot left by rounding in either
// branch. Always the last resort, never the first choice.
func (a *Aligner) finishingGuard(
	fitted []byte,
	target time.Duration,
) ([]byte, time.Duration, error) {
	result, probeErr := audio.Probe(fitted)
	if probeErr != nil {
		return nil, 0, fmt.Errorf("failed to probe fitted clip: %w", probeErr)
	}

	if result <= target+a.epsilon {
		return fitted, result, nil
	}

	trimmed, trimErr := audio.Trim(fitted, target)
	if trimErr != nil {
		return nil, 0, fmt.Errorf("failed to trim fitted clip: %w", trimErr)
	}

	result, probeErr = audio.Probe(trimmed)
	if probeErr != nil {
		return nil, 0, fmt.Errorf("failed to probe trimmed clip: %w", probeErr)
	}

	return trimmed, result, nil
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}

	return d
}
