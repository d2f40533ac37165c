// Package voicevox provides the HTTP client for a VOICEVOX-compatible speech
// engine. Synthesis is the engine's two-step contract: POST /audio_query
// builds the prosody query for a text, POST /synthesis renders it to WAV.
// The engine itself is an external collaborator; this package only enforces
// the wire contract.
package voicevox

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"afreco/internal/core"
)

// API endpoints.
const (
	apiAudioQuery = "/audio_query"
	apiSynthesis  = "/synthesis"
	apiVersion    = "/version"
)

// HTTP headers.
const (
	headerContentType = "Content-Type"
	headerAccept      = "Accept"
	contentTypeJSON   = "application/json"
	contentTypeWAV    = "audio/wav"
)

// Static errors.
var (
	// ErrTextEmpty indicates an empty synthesis request.
	ErrTextEmpty = errors.New("text cannot be empty")
	// ErrEmptyAudio indicates the engine returned no audio bytes.
	ErrEmptyAudio = errors.New("received empty audio data")
	// ErrSynthesisFailed wraps transient engine and network failures. The
	// caller owns retry/backoff; this package only classifies.
	ErrSynthesisFailed = errors.New("synthesis failed")
)

// Client talks to one VOICEVOX engine instance. It implements
// core.SynthesisClient.
type Client struct {
	httpClient *http.Client
	baseURL    string
}

// NewClient creates a client for the engine at baseURL (protocol and port
// included, e.g. "http://localhost:50021"). The timeout applies per request.
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Synthesize renders one bounded chunk of spoken text to WAV bytes.
func (c *Client) Synthesize(
	ctx context.Context,
	text string,
	params core.VoiceParams,
) ([]byte, error) {
	if text == "" {
		return nil, ErrTextEmpty
	}

	queryBody, queryErr := c.runAudioQuery(ctx, text, params.SpeakerID)
	if queryErr != nil {
		return nil, queryErr
	}

	queryBody, scaleErr := applyVoiceScales(queryBody, params)
	if scaleErr != nil {
		return nil, scaleErr
	}

	audioData, synthErr := c.runSynthesis(ctx, queryBody, params.SpeakerID)
	if synthErr != nil {
		return nil, synthErr
	}

	return audioData, nil
}

// HealthCheck verifies the engine is up by asking for its version. Cheap
// enough to run before every large workload so failures surface early.
func (c *Client) HealthCheck(ctx context.Context) error {
	endpoint := c.baseURL + apiVersion

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, http.NoBody)
	if err != nil {
		return fmt.Errorf("failed to create health check request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("health check failed for engine at %s: %w", c.baseURL, err)
	}

	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check failed with status: %s", resp.Status)
	}

	return nil
}

// runAudioQuery performs step one: build the prosody query for the text.
func (c *Client) runAudioQuery(
	ctx context.Context,
	text string,
	speakerID int,
) ([]byte, error) {
	values := url.Values{}
	values.Set("text", text)
	values.Set("speaker", strconv.Itoa(speakerID))

	endpoint := c.baseURL + apiAudioQuery + "?" + values.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create audio_query request: %w", err)
	}

	req.Header.Set(headerAccept, contentTypeJSON)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: audio_query request to %s: %w",
			ErrSynthesisFailed, c.baseURL, err)
	}

	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, c.classifyErrorResponse("audio_query", resp)
	}

	queryBody, readErr := io.ReadAll(resp.Body)
	if readErr != nil {
		return nil, fmt.Errorf("failed to read audio_query response: %w", readErr)
	}

	return queryBody, nil
}

// runSynthesis performs step two: render the prosody query to WAV.
func (c *Client) runSynthesis(
	ctx context.Context,
	queryBody []byte,
	speakerID int,
) ([]byte, error) {
	values := url.Values{}
	values.Set("speaker", strconv.Itoa(speakerID))

	endpoint := c.baseURL + apiSynthesis + "?" + values.Encode()

	req, err := http.NewRequestWithContext(
		ctx,
		http.MethodPost,
		endpoint,
		bytes.NewReader(queryBody),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create synthesis request: %w", err)
	}

	req.Header.Set(headerContentType, contentTypeJSON)
	req.Header.Set(headerAccept, contentTypeWAV)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: synthesis request to %s: %w",
			ErrSynthesisFailed, c.baseURL, err)
	}

	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, c.classifyErrorResponse("synthesis", resp)
	}

	audioData, readErr := io.ReadAll(resp.Body)
	if readErr != nil {
		return nil, fmt.Errorf("failed to read audio data: %w", readErr)
	}

	if len(audioData) == 0 {
		return nil, ErrEmptyAudio
	}

	return audioData, nil
}

// applyVoiceScales patches the prosody query with the request's speed, pitch
// and intonation scales before it is posted back for synthesis. Zero-valued
// scales are left to the engine's own query defaults.
func applyVoiceScales(queryBody []byte, params core.VoiceParams) ([]byte, error) {
	if params.SpeedScale == 0 && params.PitchScale == 0 && params.IntonationScale == 0 {
		return queryBody, nil
	}

	var query map[string]any

	err := json.Unmarshal(queryBody, &query)
	if err != nil {
		return nil, fmt.Errorf("failed to parse audio query: %w", err)
	}

	if params.SpeedScale != 0 {
		query["speedScale"] = params.SpeedScale
	}

	if params.PitchScale != 0 {
		query["pitchScale"] = params.PitchScale
	}

	if params.IntonationScale != 0 {
		query["intonationScale"] = params.IntonationScale
	}

	patched, marshalErr := json.Marshal(query)
	if marshalErr != nil {
		return nil, fmt.Errorf("failed to encode audio query: %w", marshalErr)
	}

	return patched, nil
}

// classifyErrorResponse preserves the engine's diagnostics inside the
// retryable synthesis-failure class.
func (c *Client) classifyErrorResponse(step string, resp *http.Response) error {
	body, _ := io.ReadAll(resp.Body)

	return fmt.Errorf("%w: %s returned %s: %s",
		ErrSynthesisFailed, step, resp.Status, string(body))
}
