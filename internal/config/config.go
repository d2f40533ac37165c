// Package config provides the configuration structure for the afreco service.
package config

import (
	"fmt"

	"github.com/book-expert/configurator"
	"github.com/book-expert/logger"
)

// NATSConfig holds the configuration for NATS.
type NATSConfig struct {
	URL                      string `toml:"url"`
	RenderStreamName         string `toml:"render_stream_name"`
	RenderConsumerName       string `toml:"render_consumer_name"`
	TextProcessedSubject     string `toml:"text_processed_subject"`
	AudioChunkCreatedSubject string `toml:"audio_chunk_created_subject"`
	JobObjectStoreBucket     string `toml:"job_object_store_bucket"`
	AudioObjectStoreBucket   string `toml:"audio_object_store_bucket"`
}

// VoicevoxConfig holds the connection settings for the speech engine.
type VoicevoxConfig struct {
	BaseURL         string  `toml:"base_url"`
	SpeakerID       int     `toml:"speaker_id"`
	SpeedScale      float64 `toml:"speed_scale"`
	PitchScale      float64 `toml:"pitch_scale"`
	IntonationScale float64 `toml:"intonation_scale"`
	TimeoutSeconds  int     `toml:"timeout_seconds"`
}

// AlignConfig holds the duration-alignment tolerances, all in milliseconds.
type AlignConfig struct {
	EpsilonMillis           int `toml:"epsilon_millis"`
	CompressToleranceMillis int `toml:"compress_tolerance_millis"`
	DriftToleranceMillis    int `toml:"drift_tolerance_millis"`
}

// PipelineConfig tunes the rendering pipeline.
type PipelineConfig struct {
	Workers     int `toml:"workers"`
	MaxChunkLen int `toml:"max_chunk_len"`
}

// PathsConfig holds the configuration for file paths.
type PathsConfig struct {
	BaseLogsDir string `toml:"base_logs_dir"`
}

// Config is the root configuration structure.
type Config struct {
	NATS     NATSConfig     `toml:"nats"`
	Voicevox VoicevoxConfig `toml:"voicevox"`
	Align    AlignConfig    `toml:"align"`
	Pipeline PipelineConfig `toml:"pipeline"`
	Paths    PathsConfig    `toml:"paths"`
}

// Load loads the configuration for the afreco service.
func Load(log *logger.Logger) (*Config, error) {
	var cfg Config

	err := configurator.Load(&cfg, log)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration from configurator: %w", err)
	}

	return &cfg, nil
}
