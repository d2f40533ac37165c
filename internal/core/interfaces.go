// Package core defines the collaborator interfaces the rendering engine
// depends on. The deterministic pipeline stays pure; everything that talks to
// the network, an external binary, or a blob store sits behind one of these.
package core

import "context"

// ObjectStore defines the interface for interacting with a key-value blob store.
type ObjectStore interface {
	Download(ctx context.Context, key string) ([]byte, error)
	Upload(ctx context.Context, key string, data []byte) error
}

// VoiceParams holds the per-request synthesis parameters forwarded to the
// speech engine. Zero values fall back to the engine defaults.
type VoiceParams struct {
	SpeakerID       int
	SpeedScale      float64
	PitchScale      float64
	IntonationScale float64
}

// SynthesisClient defines the contract with the external TTS engine: one
// bounded chunk of spoken text in, raw WAV bytes out.
type SynthesisClient interface {
	Synthesize(ctx context.Context, text string, params VoiceParams) ([]byte, error)
	HealthCheck(ctx context.Context) error
}

// Compressor defines the tempo-preserving time-compression collaborator.
// Ratio is target/actual duration, always in (0, 1); the returned audio must
// land within the aligner's tolerance of ratio*actual, or the caller fails
// the whole operation.
type Compressor interface {
	TimeCompress(ctx context.Context, wavData []byte, ratio float64) ([]byte, error)
}
