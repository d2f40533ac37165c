// Package voicevox_test tests the speech-engine HTTP client against a stub
// engine.
package voicevox_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"afreco/internal/core"
	"afreco/internal/voicevox"
)

func newStubEngine(t *testing.T, synthesisStatus int, audioData []byte) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()

	mux.HandleFunc("/audio_query", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.NotEmpty(t, r.URL.Query().Get("text"))
		assert.Equal(t, "3", r.URL.Query().Get("speaker"))

		w.Header().Set("Content-Type", "application/json")

		err := json.NewEncoder(w).Encode(map[string]any{"speedScale": 1.0})
		require.NoError(t, err)
	})

	mux.HandleFunc("/synthesis", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "3", r.URL.Query().Get("speaker"))

		if synthesisStatus != http.StatusOK {
			http.Error(w, "engine error", synthesisStatus)

			return
		}

		w.Header().Set("Content-Type", "audio/wav")

		_, err := w.Write(audioData)
		require.NoError(t, err)
	})

	mux.HandleFunc("/version", func(w http.ResponseWriter, _ *http.Request) {
		_, err := w.Write([]byte(`"0.20.0"`))
		require.NoError(t, err)
	})

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	return server
}

func TestSynthesizeSuccess(t *testing.T) {
	t.Parallel()

	wantAudio := []byte("RIFF-ish audio payload")
	server := newStubEngine(t, http.StatusOK, wantAudio)

	client := voicevox.NewClient(server.URL, 5*time.Second)

	audioData, err := client.Synthesize(
		context.Background(),
		"こんにちは。",
		core.VoiceParams{SpeakerID: 3},
	)
	require.NoError(t, err)
	assert.Equal(t, wantAudio, audioData)
}

func TestSynthesizeAppliesVoiceScalesToQuery(t *testing.T) {
	t.Parallel()

	var synthesisQuery map[string]any

	mux := http.NewServeMux()

	mux.HandleFunc("/audio_query", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")

		err := json.NewEncoder(w).Encode(map[string]any{
			"speedScale":      1.0,
			"pitchScale":      0.0,
			"intonationScale": 1.0,
			"volumeScale":     1.0,
		})
		require.NoError(t, err)
	})

	mux.HandleFunc("/synthesis", func(w http.ResponseWriter, r *http.Request) {
		err := json.NewDecoder(r.Body).Decode(&synthesisQuery)
		require.NoError(t, err)

		_, err = w.Write([]byte("audio"))
		require.NoError(t, err)
	})

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	client := voicevox.NewClient(server.URL, 5*time.Second)

	_, err := client.Synthesize(
		context.Background(),
		"こんにちは。",
		core.VoiceParams{SpeakerID: 3, SpeedScale: 1.2, IntonationScale: 0.8},
	)
	require.NoError(t, err)

	require.NotNil(t, synthesisQuery)
	assert.InEpsilon(t, 1.2, synthesisQuery["speedScale"], 0.0001)
	assert.InEpsilon(t, 0.8, synthesisQuery["intonationScale"], 0.0001)
	// Unset scales keep the engine's query values.
	assert.InDelta(t, 0.0, synthesisQuery["pitchScale"], 0.0001)
	assert.InEpsilon(t, 1.0, synthesisQuery["volumeScale"], 0.0001)
}

func TestSynthesizeRejectsEmptyText(t *testing.T) {
	t.Parallel()

	client := voicevox.NewClient("http://localhost:1", time.Second)

	_, err := client.Synthesize(context.Background(), "", core.VoiceParams{})
	require.ErrorIs(t, err, voicevox.ErrTextEmpty)
}

func TestSynthesizeEngineErrorIsRetryable(t *testing.T) {
	t.Parallel()

	server := newStubEngine(t, http.StatusInternalServerError, nil)

	client := voicevox.NewClient(server.URL, 5*time.Second)

	_, err := client.Synthesize(
		context.Background(),
		"こんにちは。",
		core.VoiceParams{SpeakerID: 3},
	)
	require.ErrorIs(t, err, voicevox.ErrSynthesisFailed)
}

func TestSynthesizeRejectsEmptyAudio(t *testing.T) {
	t.Parallel()

	server := newStubEngine(t, http.StatusOK, nil)

	client := voicevox.NewClient(server.URL, 5*time.Second)

	_, err := client.Synthesize(
		context.Background(),
		"こんにちは。",
		core.VoiceParams{SpeakerID: 3},
	)
	require.ErrorIs(t, err, voicevox.ErrEmptyAudio)
}

func TestHealthCheck(t *testing.T) {
	t.Parallel()

	server := newStubEngine(t, http.StatusOK, nil)

	client := voicevox.NewClient(server.URL, 5*time.Second)

	err := client.HealthCheck(context.Background())
	require.NoError(t, err)
}

func TestHealthCheckUnreachableEngine(t *testing.T) {
	t.Parallel()

	client := voicevox.NewClient("http://127.0.0.1:1", 500*time.Millisecond)

	err := client.HealthCheck(context.Background())
	require.Error(t, err)
}
