// Package sequence_test tests drift-gated assembly and atomic persistence.
package sequence_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"afreco/internal/audio"
	"afreco/internal/sequence"
)

var testFormat = audio.Format{
	SampleRate:    24000,
	Channels:      1,
	BitsPerSample: 16,
}

func silenceClip(t *testing.T, duration time.Duration) audio.Clip {
	t.Helper()

	data := audio.Silence(duration, testFormat)

	probed, err := audio.Probe(data)
	require.NoError(t, err)

	return audio.Clip{Data: data, Duration: probed}
}

func TestAssembleWithinTolerance(t *testing.T) {
	t.Parallel()

	clips := []audio.Clip{
		silenceClip(t, 2*time.Second),
		silenceClip(t, 3*time.Second),
	}

	track, err := sequence.Assemble(clips, 5*time.Second, 50*time.Millisecond)
	require.NoError(t, err)

	assert.InDelta(t, float64(5*time.Second), float64(track.Duration),
		float64(50*time.Millisecond))
}

func TestAssembleRejectsDrift(t *testing.T) {
	t.Parallel()

	clips := []audio.Clip{
		silenceClip(t, 2*time.Second),
		silenceClip(t, 3*time.Second),
	}

	_, err := sequence.Assemble(clips, 6*time.Second, 50*time.Millisecond)
	require.ErrorIs(t, err, sequence.ErrDriftExceeded)
}

func TestCommitReplacesAtomically(t *testing.T) {
	t.Parallel()

	livePath := filepath.Join(t.TempDir(), "artifacts", "track.wav")

	err := sequence.Commit([]byte("first version"), livePath)
	require.NoError(t, err)

	err = sequence.Commit([]byte("second version"), livePath)
	require.NoError(t, err)

	data, err := os.ReadFile(livePath)
	require.NoError(t, err)
	assert.Equal(t, []byte("second version"), data)

	// No temp files left behind.
	dirEntries, err := os.ReadDir(filepath.Dir(livePath))
	require.NoError(t, err)
	require.Len(t, dirEntries, 1)
	assert.Equal(t, "track.wav", dirEntries[0].Name())
}
