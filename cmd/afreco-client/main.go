// main package for the afreco command-line client. It drives the render
// pipeline locally against a chunk-map file, without NATS: full rebuilds
// write a fresh artifact, range patches splice into an existing one.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/book-expert/logger"

	"afreco/internal/align"
	"afreco/internal/audio"
	"afreco/internal/chunkmap"
	"afreco/internal/config"
	"afreco/internal/core"
	"afreco/internal/patch"
	"afreco/internal/pipeline"
	"afreco/internal/render"
	"afreco/internal/sequence"
	"afreco/internal/voicevox"
)

// Flag descriptions.
const (
	flagMapDesc     = "Path to the chunk-map JSON file"
	flagScriptsDesc = "Optional JSON file mapping entry index to annotation script"
	flagOutDesc     = "Artifact output path (.wav)"
	flagHealthDesc  = "Check speech engine health and exit"
	flagFromDesc    = "First entry index of the patch range (0 = full rebuild)"
	flagToDesc      = "Last entry index of the patch range (0 = full rebuild)"
)

const healthCheckTimeout = 10 * time.Second

var errNoArtifactPath = errors.New("--out must be provided")

// appFlags holds the parsed command-line flag values.
type appFlags struct {
	mapPath     string
	scriptsPath string
	outPath     string
	health      bool
	fromIndex   uint
	toIndex     uint
}

func main() {
	err := run()
	if err != nil {
		// The logger might not be initialized yet, so use the standard log package.
		log.Fatalf("Error: %v", err)
	}
}

func run() error {
	flags := parseFlags()

	bootstrapLog, err := logger.New(os.TempDir(), "afreco-client-bootstrap.log")
	if err != nil {
		return fmt.Errorf("failed to create bootstrap logger: %w", err)
	}

	cfg, err := config.Load(bootstrapLog)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	clientLog, err := logger.New(cfg.Paths.BaseLogsDir, "afreco-client.log")
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer clientLog.Close()

	timeout := time.Duration(cfg.Voicevox.TimeoutSeconds) * time.Second
	synthClient := voicevox.NewClient(cfg.Voicevox.BaseURL, timeout)

	if flags.health {
		return handleHealthCheck(synthClient)
	}

	return handleExecution(cfg, synthClient, clientLog, flags)
}

func parseFlags() appFlags {
	var flags appFlags
	flag.StringVar(&flags.mapPath, "map", "", flagMapDesc)
	flag.StringVar(&flags.scriptsPath, "scripts", "", flagScriptsDesc)
	flag.StringVar(&flags.outPath, "out", "", flagOutDesc)
	flag.BoolVar(&flags.health, "health", false, flagHealthDesc)
	flag.UintVar(&flags.fromIndex, "from", 0, flagFromDesc)
	flag.UintVar(&flags.toIndex, "to", 0, flagToDesc)
	flag.Parse()

	return flags
}

// handleHealthCheck performs an engine health check and prints the result.
func handleHealthCheck(synthClient core.SynthesisClient) error {
	ctx, cancel := context.WithTimeout(context.Background(), healthCheckTimeout)
	defer cancel()

	err := synthClient.HealthCheck(ctx)
	if err != nil {
		fmt.Printf("Speech engine is not healthy: %v\n", err)

		return err
	}

	fmt.Println("Speech engine is healthy")

	return nil
}

// handleExecution loads inputs and dispatches to rebuild or patch.
func handleExecution(
	cfg *config.Config,
	synthClient core.SynthesisClient,
	clientLog *logger.Logger,
	flags appFlags,
) error {
	if flags.outPath == "" {
		flag.Usage()

		return errNoArtifactPath
	}

	entries, err := chunkmap.Load(flags.mapPath)
	if err != nil {
		return err
	}

	scripts, err := loadScripts(flags.scriptsPath)
	if err != nil {
		return err
	}

	aligner := newAligner(cfg, clientLog)
	pipe := newPipeline(cfg, synthClient, aligner, clientLog)
	driftTolerance := time.Duration(cfg.Align.DriftToleranceMillis) * time.Millisecond

	if flags.fromIndex > 0 || flags.toIndex > 0 {
		patcher := patch.New(pipe, aligner, clientLog, driftTolerance)

		err = patcher.Apply(
			context.Background(),
			entries,
			scripts,
			uint32(flags.fromIndex),
			uint32(flags.toIndex),
			flags.outPath,
		)
		if err != nil {
			return fmt.Errorf("patch failed: %w", err)
		}

		fmt.Printf("Patched entries [%d, %d] in: %s\n",
			flags.fromIndex, flags.toIndex, flags.outPath)

		return nil
	}

	return rebuild(pipe, entries, scripts, flags.outPath)
}

// rebuild renders the full chunk map and commits the artifact with its
// render log sidecar.
func rebuild(
	pipe *pipeline.Pipeline,
	entries []chunkmap.Entry,
	scripts map[uint32]pipeline.EntryScript,
	outPath string,
) error {
	track, renderLog, err := pipe.Rebuild(context.Background(), entries, scripts)
	if err != nil {
		return fmt.Errorf("rebuild failed: %w", err)
	}

	err = sequence.Commit(track.Data, outPath)
	if err != nil {
		return err
	}

	logData, marshalErr := json.MarshalIndent(renderLog, "", "  ")
	if marshalErr != nil {
		return fmt.Errorf("failed to marshal render log: %w", marshalErr)
	}

	logPath := outPath + ".render-log.json"

	writeErr := os.WriteFile(logPath, logData, 0o600)
	if writeErr != nil {
		return fmt.Errorf("failed to write render log: %w", writeErr)
	}

	fmt.Printf("Generated: %s (%v)\n", outPath, track.Duration)

	return nil
}

// loadScripts reads the optional annotation-script sidecar.
func loadScripts(path string) (map[uint32]pipeline.EntryScript, error) {
	if path == "" {
		return nil, nil
	}

	data, readErr := os.ReadFile(path)
	if readErr != nil {
		return nil, fmt.Errorf("failed to read scripts file: %w", readErr)
	}

	var scripts map[uint32]pipeline.EntryScript

	err := json.Unmarshal(data, &scripts)
	if err != nil {
		return nil, fmt.Errorf("failed to parse scripts file: %w", err)
	}

	return scripts, nil
}

func newAligner(cfg *config.Config, clientLog *logger.Logger) *align.Aligner {
	compressor := audio.NewFFmpegCompressor(clientLog)

	return align.New(
		compressor,
		time.Duration(cfg.Align.EpsilonMillis)*time.Millisecond,
		time.Duration(cfg.Align.CompressToleranceMillis)*time.Millisecond,
	)
}

func newPipeline(
	cfg *config.Config,
	synthClient core.SynthesisClient,
	aligner *align.Aligner,
	clientLog *logger.Logger,
) *pipeline.Pipeline {
	return pipeline.New(
		synthClient,
		aligner,
		render.NewRenderer(render.DefaultTables()),
		render.NewTokenizer(),
		clientLog,
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
