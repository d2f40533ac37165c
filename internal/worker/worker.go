// Package worker provides a NATS worker that processes render jobs: a job
// payload carrying a timed entry map plus optional annotation scripts comes in
// through the job bucket, and a drift-verified audio artifact goes out through
// the audio bucket.
package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/book-expert/events"
	"github.com/book-expert/logger"
	"github.com/google/uuid"
	"github.com/nats-io/nats.go"

	"afreco/internal/audio"
	"afreco/internal/chunkmap"
	"afreco/internal/core"
	"afreco/internal/pipeline"
	"afreco/internal/render"
)

// handleMessageTimeout bounds one full rebuild, synthesis included.
const handleMessageTimeout = 10 * time.Minute

var (
	// ErrTextKeyEmpty indicates an event without a job payload key.
	ErrTextKeyEmpty = errors.New("text key cannot be empty")
	// ErrJobEmpty indicates a job payload without entries.
	ErrJobEmpty = errors.New("render job carries no entries")
)

// ArtifactBuilder turns a timed entry map into one drift-verified track.
// *pipeline.Pipeline is the production implementation.
type ArtifactBuilder interface {
	Rebuild(
		ctx context.Context,
		entries []chunkmap.Entry,
		scripts map[uint32]pipeline.EntryScript,
	) (audio.Clip, []render.LogEntry, error)
}

// RenderJob is the payload stored under the event's TextKey: the chunk-map
// entries in their at-rest JSON form plus the per-entry annotation scripts.
type RenderJob struct {
	Entries json.RawMessage                 `json:"entries"`
	Scripts map[uint32]pipeline.EntryScript `json:"scripts,omitempty"`
}

// NatsWorker listens for render jobs on a NATS subject and processes them.
type NatsWorker struct {
	natsConnection *nats.Conn
	subject        string
	jobStore       core.ObjectStore
	audioStore     core.ObjectStore
	builder        ArtifactBuilder
	log            *logger.Logger
}

// NewNatsWorker creates a new instance of a NATS worker.
func NewNatsWorker(
	natsConnection *nats.Conn,
	subject string,
	jobStore core.ObjectStore,
	audioStore core.ObjectStore,
	builder ArtifactBuilder,
	log *logger.Logger,
) *NatsWorker {
	return &NatsWorker{
		natsConnection: natsConnection,
		subject:        subject,
		jobStore:       jobStore,
		audioStore:     audioStore,
		builder:        builder,
		log:            log,
	}
}

// Run starts the worker and begins listening for messages. It blocks until
// the context is cancelled, then drains the subscription.
func (w *NatsWorker) Run(ctx context.Context) error {
	sub, err := w.natsConnection.Subscribe(w.subject, w.handleMessage)
	if err != nil {
		return fmt.Errorf("failed to subscribe to subject %s: %w", w.subject, err)
	}

	<-ctx.Done()

	drainErr := sub.Drain()
	if drainErr != nil {
		return fmt.Errorf("failed to drain subscription: %w", drainErr)
	}

	return nil
}

func (w *NatsWorker) handleMessage(msg *nats.Msg) {
	ctx, cancel := context.WithTimeout(context.Background(), handleMessageTimeout)
	defer cancel()

	event, err := w.parseAndValidateEvent(msg)
	if err != nil {
		w.log.Error("Failed to parse and validate event: %v", err)

		return
	}

	audioKey, processErr := w.processRenderJob(ctx, event)
	if processErr != nil {
		w.log.Error("Failed to process render job for event %s: %v",
			event.Header.WorkflowID, processErr)

		return
	}

	replyEvent := &events.AudioChunkCreatedEvent{
		Header:     event.Header,
		AudioKey:   audioKey,
		PageNumber: event.PageNumber,
		TotalPages: event.TotalPages,
	}

	err = w.publishReplyEvent(msg, replyEvent)
	if err != nil {
		w.log.Error("Failed to publish reply event for workflow %s: %v",
			event.Header.WorkflowID, err)
	}
}

// processRenderJob downloads the job payload, rebuilds the track, and uploads
// the artifact plus its render log.
func (w *NatsWorker) processRenderJob(
	ctx context.Context,
	event *events.TextProcessedEvent,
) (string, error) {
	jobData, downloadErr := w.jobStore.Download(ctx, event.TextKey)
	if downloadErr != nil {
		return "", fmt.Errorf(
			"failed to download job payload for key '%s': %w", event.TextKey, downloadErr)
	}

	entries, scripts, parseErr := parseRenderJob(jobData)
	if parseErr != nil {
		return "", parseErr
	}

	track, renderLog, buildErr := w.builder.Rebuild(ctx, entries, scripts)
	if buildErr != nil {
		return "", fmt.Errorf("failed to rebuild track: %w", buildErr)
	}

	audioKey := uuid.NewString() + ".wav"

	uploadErr := w.audioStore.Upload(ctx, audioKey, track.Data)
	if uploadErr != nil {
		return "", fmt.Errorf(
			"failed to upload audio data for key '%s': %w", audioKey, uploadErr)
	}

	logErr := w.uploadRenderLog(ctx, audioKey, renderLog)
	if logErr != nil {
		return "", logErr
	}

	return audioKey, nil
}

// uploadRenderLog stores the per-token replacement log next to the artifact,
// keyed by the artifact name. Reviewers audit reading decisions from it.
func (w *NatsWorker) uploadRenderLog(
	ctx context.Context,
	audioKey string,
	renderLog []render.LogEntry,
) error {
	logData, marshalErr := json.Marshal(renderLog)
	if marshalErr != nil {
		return fmt.Errorf("failed to marshal render log: %w", marshalErr)
	}

	logKey := audioKey + ".render-log.json"

	uploadErr := w.audioStore.Upload(ctx, logKey, logData)
	if uploadErr != nil {
		return fmt.Errorf("failed to upload render log '%s': %w", logKey, uploadErr)
	}

	return nil
}

// publishReplyEvent marshals and responds with the AudioChunkCreatedEvent.
func (w *NatsWorker) publishReplyEvent(
	msg *nats.Msg,
	replyEvent *events.AudioChunkCreatedEvent,
) error {
	replyData, err := json.Marshal(replyEvent)
	if err != nil {
		return fmt.Errorf("failed to marshal reply event: %w", err)
	}

	err = msg.Respond(replyData)
	if err != nil {
		return fmt.Errorf("failed to publish reply event: %w", err)
	}

	return nil
}

func (w *NatsWorker) parseAndValidateEvent(msg *nats.Msg) (*events.TextProcessedEvent, error) {
	var event events.TextProcessedEvent

	err := json.Unmarshal(msg.Data, &event)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal event: %w", err)
	}

	if event.TextKey == "" {
		return nil, ErrTextKeyEmpty
	}

	return &event, nil
}

// parseRenderJob decodes the job payload and validates its entry map.
func parseRenderJob(
	jobData []byte,
) ([]chunkmap.Entry, map[uint32]pipeline.EntryScript, error) {
	var job RenderJob

	err := json.Unmarshal(jobData, &job)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to unmarshal render job: %w", err)
	}

	if len(job.Entries) == 0 {
		return nil, nil, ErrJobEmpty
	}

	entries, parseErr := chunkmap.Parse(job.Entries)
	if parseErr != nil {
		return nil, nil, fmt.Errorf("invalid entry map in render job: %w", parseErr)
	}

	return entries, job.Scripts, nil
}
