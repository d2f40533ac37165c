// main package for the afreco render service.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/book-expert/logger"
	"github.com/nats-io/nats.go"

	"afreco/internal/align"
	"afreco/internal/audio"
	"afreco/internal/config"
	"afreco/internal/core"
	"afreco/internal/objectstore"
	"afreco/internal/pipeline"
	"afreco/internal/render"
	"afreco/internal/voicevox"
	"afreco/internal/worker"
)

const healthCheckTimeout = 10 * time.Second

func setupLogger(logPath, fileName string) (*logger.Logger, error) {
	log, err := logger.New(logPath, fileName)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	return log, nil
}

func run() error {
	bootstrapLog, err := setupLogger(os.TempDir(), "afreco-service-bootstrap.log")
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: Failed to create bootstrap logger: %v\n", err)

		return err
	}

	cfg, err := config.Load(bootstrapLog)
	if err != nil {
		bootstrapLog.Error("Failed to load configuration: %v", err)

		return fmt.Errorf("failed to load configuration: %w", err)
	}

	finalLog, err := setupLogger(cfg.Paths.BaseLogsDir, "afreco-service.log")
	if err != nil {
		bootstrapLog.Error("Failed to create final logger: %v", err)

		return fmt.Errorf("failed to create final logger: %w", err)
	}

	defer func() {
		closeErr := finalLog.Close()
		if closeErr != nil {
			fmt.Fprintf(os.Stderr, "error closing final logger: %v\n", closeErr)
		}
	}()

	return runService(cfg, finalLog)
}

// runService wires the collaborators and blocks in the worker loop until a
// shutdown signal arrives.
func runService(cfg *config.Config, log *logger.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	natsConnection, err := nats.Connect(cfg.NATS.URL)
	if err != nil {
		return fmt.Errorf("failed to connect to NATS at %s: %w", cfg.NATS.URL, err)
	}
	defer natsConnection.Close()

	jetstreamContext, err := natsConnection.JetStream()
	if err != nil {
		return fmt.Errorf("failed to create JetStream context: %w", err)
	}

	jobStore, err := objectstore.New(jetstreamContext, cfg.NATS.JobObjectStoreBucket)
	if err != nil {
		return fmt.Errorf("failed to initialize job store: %w", err)
	}

	audioStore, err := objectstore.New(jetstreamContext, cfg.NATS.AudioObjectStoreBucket)
	if err != nil {
		return fmt.Errorf("failed to initialize audio store: %w", err)
	}

	synthClient, err := newSynthesisClient(ctx, cfg)
	if err != nil {
		return err
	}

	pipe := newPipeline(cfg, synthClient, log)

	natsWorker := worker.NewNatsWorker(
		natsConnection,
		cfg.NATS.TextProcessedSubject,
		jobStore,
		audioStore,
		pipe,
		log,
	)

	log.System("Afreco render service initialized. Listening for jobs on subject: %s",
		cfg.NATS.TextProcessedSubject)

	err = natsWorker.Run(ctx)
	if err != nil {
		return fmt.Errorf("worker loop failed: %w", err)
	}

	return nil
}

// newSynthesisClient builds the engine client and verifies the engine is
// reachable before the worker starts accepting jobs.
func newSynthesisClient(ctx context.Context, cfg *config.Config) (core.SynthesisClient, error) {
	timeout := time.Duration(cfg.Voicevox.TimeoutSeconds) * time.Second
	client := voicevox.NewClient(cfg.Voicevox.BaseURL, timeout)

	healthCtx, cancel := context.WithTimeout(ctx, healthCheckTimeout)
	defer cancel()

	err := client.HealthCheck(healthCtx)
	if err != nil {
		return nil, fmt.Errorf("speech engine not reachable: %w", err)
	}

	return client, nil
}

func newPipeline(
	cfg *config.Config,
	synthClient core.SynthesisClient,
	log *logger.Logger,
) *pipeline.Pipeline {
	compressor := audio.NewFFmpegCompressor(log)
	aligner := align.New(
		compressor,
		time.Duration(cfg.Align.EpsilonMillis)*time.Millisecond,
		time.Duration(cfg.Align.CompressToleranceMillis)*time.Millisecond,
	)

	return pipeline.New(
		synthClient,
		aligner,
		render.NewRenderer(render.DefaultTables()),
		render.NewTokenizer(),
		log,
		pipeline.Options{
			Workers:          cfg.Pipeline.Workers,
			MaxChunkLen:      cfg.Pipeline.MaxChunkLen,
			SynthesisTimeout: time.Duration(cfg.Voicevox.TimeoutSeconds) * time.Second,
			DriftTolerance:   time.Duration(cfg.Align.DriftToleranceMillis) * time.Millisecond,
			Voice: core.VoiceParams{
				SpeakerID:       cfg.Voicevox.SpeakerID,
				SpeedScale:      cfg.Voicevox.SpeedScale,
				PitchScale:      cfg.Voicevox.PitchScale,
				IntonationScale: cfg.Voicevox.IntonationScale,
			},
		},
	)
}

func main() {
	err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Service exited with error: %v\n", err)
		os.Exit(1)
	}
}
