// Package pipeline drives the full render path: annotated script text through
// spoken-text rendering, bounded chunking, synthesis, per-entry duration
// alignment, and final drift-gated assembly. The pipeline is deterministic
// given the same inputs; only the synthesis engine behind the client
// interface is external.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/book-expert/logger"

	"afreco/internal/align"
	"afreco/internal/audio"
	"afreco/internal/chunk"
	"afreco/internal/chunkmap"
	"afreco/internal/core"
	"afreco/internal/render"
	"afreco/internal/sequence"
)

// DefaultWorkers bounds concurrent synthesis requests when the config
// supplies nothing. VOICEVOX-style engines serialize internally, so a small
// pool keeps the queue warm without piling up timeouts.
const DefaultWorkers = 4

// DefaultSynthesisTimeout bounds one chunk's audio_query+synthesis round trip.
const DefaultSynthesisTimeout = 120 * time.Second

// ErrNoEntries indicates a rebuild request with an empty entry list.
var ErrNoEntries = errors.New("no entries to build")

// EntryScript carries the annotated script for one timed entry. Tokens and
// annotations come from the upstream analyzer; Ruby maps token index to a
// reading supplied by the script author. A zero EntryScript means "no
// annotations": the entry text is tokenized with the fallback segmenter and
// rendered under the default tables alone.
type EntryScript struct {
	Tokens      []render.Token      `json:"tokens,omitempty"`
	Annotations []render.Annotation `json:"annotations,omitempty"`
	Ruby        map[int]string      `json:"ruby,omitempty"`
}

// Options tunes the pipeline. Zero values fall back to package defaults.
type Options struct {
	Workers          int
	MaxChunkLen      int
	SynthesisTimeout time.Duration
	DriftTolerance   time.Duration
	Voice            core.VoiceParams
}

// Pipeline owns one rebuild or patch worth of rendering work. Safe for
// concurrent use; all mutable state lives on the stack of each call.
type Pipeline struct {
	synth     core.SynthesisClient
	aligner   *align.Aligner
	renderer  *render.Renderer
	tokenizer *render.Tokenizer
	log       *logger.Logger
	opts      Options
}

// New wires a pipeline from its collaborators.
func New(
	synth core.SynthesisClient,
	aligner *align.Aligner,
	renderer *render.Renderer,
	tokenizer *render.Tokenizer,
	log *logger.Logger,
	opts Options,
) *Pipeline {
	if opts.Workers < 1 {
		opts.Workers = DefaultWorkers
	}

	if opts.MaxChunkLen < 1 {
		opts.MaxChunkLen = chunk.DefaultMaxLen
	}

	if opts.SynthesisTimeout <= 0 {
		opts.SynthesisTimeout = DefaultSynthesisTimeout
	}

	if opts.DriftTolerance <= 0 {
		opts.DriftTolerance = sequence.DefaultDriftTolerance
	}

	return &Pipeline{
		synth:     synth,
		aligner:   aligner,
		renderer:  renderer,
		tokenizer: tokenizer,
		log:       log,
		opts:      opts,
	}
}

// Rebuild renders every entry, aligns each to its timed span, and assembles
// the drift-gated continuous track covering the whole entry list. The
// returned render log concatenates per-entry logs in entry order.
func (p *Pipeline) Rebuild(
	ctx context.Context,
	entries []chunkmap.Entry,
	scripts map[uint32]EntryScript,
) (audio.Clip, []render.LogEntry, error) {
	clips, renderLog, buildErr := p.BuildEntries(ctx, entries, scripts)
	if buildErr != nil {
		return audio.Clip{}, nil, buildErr
	}

	track, assembleErr := sequence.Assemble(
		clips,
		chunkmap.Span(entries),
		p.opts.DriftTolerance,
	)
	if assembleErr != nil {
		return audio.Clip{}, nil, assembleErr
	}

	p.log.Info("assembled track: %d entries, duration %v", len(entries), track.Duration)

	return track, renderLog, nil
}

// BuildEntries renders and aligns each entry concurrently, returning one clip
// per entry in entry order. Any entry failure fails the whole build; partial
// results are never returned.
func (p *Pipeline) BuildEntries(
	ctx context.Context,
	entries []chunkmap.Entry,
	scripts map[uint32]EntryScript,
) ([]audio.Clip, []render.LogEntry, error) {
	if len(entries) == 0 {
		return nil, nil, ErrNoEntries
	}

	var (
		waitGroup sync.WaitGroup
		mutex     sync.Mutex
		lastError error
	)

	clips := make([]audio.Clip, len(entries))
	logs := make([][]render.LogEntry, len(entries))

	// Worker pool to control concurrency against the synthesis engine.
	workerPool := make(chan struct{}, p.opts.Workers)

	for position, entry := range entries {
		waitGroup.Add(1)

		go func(position int, entry chunkmap.Entry) {
			defer waitGroup.Done()

			workerPool <- struct{}{}

			defer func() { <-workerPool }()

			clip, entryLog, err := p.BuildEntry(ctx, entry, scripts[entry.Index])
			if err != nil {
				mutex.Lock()

				lastError = fmt.Errorf("entry %d: %w", entry.Index, err)

				mutex.Unlock()
				p.log.Error("entry %d build failed: %v", entry.Index, err)

				return
			}

			clips[position] = clip
			logs[position] = entryLog
			p.log.Info("entry %d/%d built: %v", position+1, len(entries), clip.Duration)
		}(position, entry)
	}

	waitGroup.Wait()
	close(workerPool)

	if lastError != nil {
		return nil, nil, lastError
	}

	var renderLog []render.LogEntry
	for _, entryLog := range logs {
		renderLog = append(renderLog, entryLog...)
	}

	return clips, renderLog, nil
}

// BuildEntry produces one entry's aligned clip: render the spoken text, split
// it into bounded synthesis chunks, synthesize each, join the raw chunk audio,
// and fit the joined clip to the entry's timed span.
func (p *Pipeline) BuildEntry(
	ctx context.Context,
	entry chunkmap.Entry,
	script EntryScript,
) (audio.Clip, []render.LogEntry, error) {
	spoken, entryLog := p.renderEntry(entry, script)

	chunks := chunk.Split(spoken, p.opts.MaxChunkLen)
	if len(chunks) == 0 {
		// Entirely skipped text still owns its timed span: synthesize
		// nothing and let alignment pad pure silence below.
		chunks = []chunk.Chunk{{Index: 0, Text: " "}}
	}

	rawParts := make([][]byte, len(chunks))

	for _, piece := range chunks {
		rawWAV, synthErr := p.synthesizeChunk(ctx, piece.Text)
		if synthErr != nil {
			return audio.Clip{}, nil, fmt.Errorf("chunk %d: %w", piece.Index, synthErr)
		}

		rawParts[piece.Index] = rawWAV
	}

	joined, concatErr := audio.Concat(rawParts...)
	if concatErr != nil {
		return audio.Clip{}, nil, fmt.Errorf("failed to join chunk audio: %w", concatErr)
	}

	aligned, alignErr := p.aligner.Align(ctx, joined, entry.Span())
	if alignErr != nil {
		return audio.Clip{}, nil, alignErr
	}

	return aligned, entryLog, nil
}

// renderEntry produces the spoken text for one entry. Entries without
// pre-analyzed tokens fall back to the built-in segmenter, so plain chunk
// maps without script sidecars still render.
func (p *Pipeline) renderEntry(
	entry chunkmap.Entry,
	script EntryScript,
) (string, []render.LogEntry) {
	tokens := script.Tokens
	if len(tokens) == 0 {
		tokens = p.tokenizer.Tokenize(entry.Text)
	}

	return p.renderer.Render(entry.Text, tokens, script.Annotations, script.Ruby)
}

// synthesizeChunk runs one bounded synthesis request under its own timeout,
// so a wedged engine fails one chunk instead of stalling the whole build.
func (p *Pipeline) synthesizeChunk(ctx context.Context, text string) ([]byte, error) {
	callCtx, cancel := context.WithTimeout(ctx, p.opts.SynthesisTimeout)
	defer cancel()

	rawWAV, err := p.synth.Synthesize(callCtx, text, p.opts.Voice)
	if err != nil {
		return nil, err
	}

	return rawWAV, nil
}
