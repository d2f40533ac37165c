// Package align_test tests the duration-fitting policy with a deterministic
// in-process compressor standing in for the external codec.
package align_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"afreco/internal/align"
	"afreco/internal/audio"
)

var testFormat = audio.Format{
	SampleRate:    24000,
	Channels:      1,
	BitsPerSample: 16,
}

var errBrokenCodec = errors.New("broken codec")

// fakeCompressor trims PCM to exactly ratio*actual, simulating an ideal
// tempo-preserving codec.
type fakeCompressor struct {
	calls int
}

func (f *fakeCompressor) TimeCompress(
	_ context.Context,
	wavData []byte,
	ratio float64,
) ([]byte, error) {
	f.calls++

	actual, err := audio.Probe(wavData)
	if err != nil {
		return nil, err
	}

	target := time.Duration(float64(actual) * ratio)

	return audio.Trim(wavData, target)
}

// sloppyCompressor overshoots the target by a fixed amount, as real codecs do
// when tempo filters round frame counts.
type sloppyCompressor struct {
	overshoot time.Duration
}

func (s *sloppyCompressor) TimeCompress(
	_ context.Context,
	wavData []byte,
	ratio float64,
) ([]byte, error) {
	actual, err := audio.Probe(wavData)
	if err != nil {
		return nil, err
	}

	target := time.Duration(float64(actual)*ratio) + s.overshoot

	return audio.Trim(wavData, target)
}

// failingCompressor always errors.
type failingCompressor struct{}

func (failingCompressor) TimeCompress(
	_ context.Context, _ []byte, _ float64,
) ([]byte, error) {
	return nil, errBrokenCodec
}

func TestAlignPadsShortClip(t *testing.T) {
	t.Parallel()

	compressor := &fakeCompressor{}
	aligner := align.New(compressor, 0, 0)

	clip := audio.Silence(1800*time.Millisecond, testFormat)

	aligned, err := aligner.Align(context.Background(), clip, 2*time.Second)
	require.NoError(t, err)

	assert.InDelta(t, float64(2*time.Second), float64(aligned.Duration),
		float64(align.DefaultEpsilon))
	assert.Zero(t, compressor.calls, "padding must not touch the codec")
}

func TestAlignCompressesLongClip(t *testing.T) {
	t.Parallel()

	compressor := &fakeCompressor{}
	aligner := align.New(compressor, 0, 0)

	clip := audio.Silence(3*time.Second, testFormat)

	aligned, err := aligner.Align(context.Background(), clip, 2*time.Second)
	require.NoError(t, err)

	assert.InDelta(t, float64(2*time.Second), float64(aligned.Duration),
		float64(align.DefaultEpsilon))
	assert.Equal(t, 1, compressor.calls)
}

func TestAlignLeavesSmallOvershootToTrim(t *testing.T) {
	t.Parallel()

	compressor := &fakeCompressor{}
	aligner := align.New(compressor, 0, 0)

	// 60ms over target: inside the compress tolerance, so the finishing
	// guard trims instead of re-encoding.
	clip := audio.Silence(2060*time.Millisecond, testFormat)

	aligned, err := aligner.Align(context.Background(), clip, 2*time.Second)
	require.NoError(t, err)

	assert.InDelta(t, float64(2*time.Second), float64(aligned.Duration),
		float64(align.DefaultEpsilon))
	assert.Zero(t, compressor.calls)
}

func TestAlignExactClipUntouched(t *testing.T) {
	t.Parallel()

	aligner := align.New(&fakeCompressor{}, 0, 0)

	clip := audio.Silence(2*time.Second, testFormat)

	aligned, err := aligner.Align(context.Background(), clip, 2*time.Second)
	require.NoError(t, err)

	assert.Equal(t, clip, aligned.Data)
}

func TestAlignTrimsCodecOvershoot(t *testing.T) {
	t.Parallel()

	aligner := align.New(&sloppyCompressor{overshoot: 40 * time.Millisecond}, 0, 0)

	clip := audio.Silence(3*time.Second, testFormat)

	aligned, err := aligner.Align(context.Background(), clip, 2*time.Second)
	require.NoError(t, err)

	assert.InDelta(t, float64(2*time.Second), float64(aligned.Duration),
		float64(align.DefaultEpsilon))
}

func TestAlignRejectsNonPositiveTarget(t *testing.T) {
	t.Parallel()

	aligner := align.New(&fakeCompressor{}, 0, 0)

	_, err := aligner.Align(context.Background(),
		audio.Silence(time.Second, testFormat), 0)
	require.ErrorIs(t, err, align.ErrInvalidTarget)
}

func TestAlignPropagatesCodecFailure(t *testing.T) {
	t.Parallel()

	aligner := align.New(failingCompressor{}, 0, 0)

	clip := audio.Silence(3*time.Second, testFormat)

	_, err := aligner.Align(context.Background(), clip, 2*time.Second)
	require.ErrorIs(t, err, errBrokenCodec)
}
