package audio

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/book-expert/logger"
)

// ffmpeg accepts atempo factors in [0.5, 100.0] but quality degrades past a
// single octave, so stages are chained within [0.5, 2.0] like lemon's filter
// builder does.
const (
	atempoStageMax = 2.0

	compressFilePermissions = 0o600
)

// ErrCompressRatio indicates a time-compression ratio outside (0, 1).
var ErrCompressRatio = errors.New("compression ratio must be in (0, 1)")

// FFmpegCompressor implements core.Compressor by shelling out to ffmpeg with
// an atempo filter chain. The binary path defaults to "ffmpeg" and honors the
// FFMPEG_PATH environment variable.
type FFmpegCompressor struct {
	binaryPath string
	log        *logger.Logger
}

// NewFFmpegCompressor creates a compressor bound to the system ffmpeg binary.
func NewFFmpegCompressor(log *logger.Logger) *FFmpegCompressor {
	binaryPath := os.Getenv("FFMPEG_PATH")
	if binaryPath == "" {
		binaryPath = "ffmpeg"
	}

	return &FFmpegCompressor{
		binaryPath: binaryPath,
		log:        log,
	}
}

// TimeCompress speeds up the clip by 1/ratio while preserving pitch.
// Ratio is target/actual duration, so a clip twice as long as its target is
// compressed with ratio 0.5 (tempo 2.0).
func (c *FFmpegCompressor) TimeCompress(
	ctx context.Context,
	wavData []byte,
	ratio float64,
) ([]byte, error) {
	if ratio <= 0 || ratio >= 1 {
		return nil, fmt.Errorf("%w: got %.4f", ErrCompressRatio, ratio)
	}

	inputFile, err := os.CreateTemp("", "afreco-compress-in-*.wav")
	if err != nil {
		return nil, fmt.Errorf("failed to create compressor input file: %w", err)
	}

	defer c.removeTempFile(inputFile.Name())

	outputFile, err := os.CreateTemp("", "afreco-compress-out-*.wav")
	if err != nil {
		return nil, fmt.Errorf("failed to create compressor output file: %w", err)
	}

	defer c.removeTempFile(outputFile.Name())

	writeErr := os.WriteFile(inputFile.Name(), wavData, compressFilePermissions)
	if writeErr != nil {
		return nil, fmt.Errorf("failed to write compressor input: %w", writeErr)
	}

	args := []string{
		"-y",
		"-i", inputFile.Name(),
		"-filter:a", atempoChain(1 / ratio),
		"-acodec", "pcm_s16le",
		outputFile.Name(),
	}

	// #nosec G204 -- the only variable arguments are temp file paths we created
	cmd := exec.CommandContext(ctx, c.binaryPath, args...)

	output, runErr := cmd.CombinedOutput()
	if runErr != nil {
		return nil, fmt.Errorf("ffmpeg atempo failed: %w - output: %s", runErr, string(output))
	}

	compressed, readErr := os.ReadFile(outputFile.Name())
	if readErr != nil {
		return nil, fmt.Errorf("failed to read compressed audio: %w", readErr)
	}

	return compressed, nil
}

func (c *FFmpegCompressor) removeTempFile(path string) {
	removeErr := os.Remove(path)
	if removeErr != nil {
		c.log.Warn("Failed to remove temp file '%s': %v", path, removeErr)
	}
}

// atempoChain splits a tempo factor into comma-joined atempo stages, each
// within ffmpeg's per-stage sweet spot.
func atempoChain(tempo float64) string {
	var stages []string

	for tempo > atempoStageMax {
		stages = append(stages, fmt.Sprintf("atempo=%.6f", atempoStageMax))
		tempo /= atempoStageMax
	}

	stages = append(stages, fmt.Sprintf("atempo=%.6f", tempo))

	return strings.Join(stages, ",")
}
