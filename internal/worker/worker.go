// Package worker provides a NATS worker that runs video generation jobs.
package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/book-expert/logger"
	"github.com/google/uuid"
	"github.com/nats-io/nats.go"

	"github.com/MatheusMDi/ia-video-generate/internal/core"
	"github.com/MatheusMDi/ia-video-generate/internal/events"
	"github.com/MatheusMDi/ia-video-generate/internal/pipeline"
)

// handleJobTimeout bounds one full pipeline run, rendering included.
const handleJobTimeout = 15 * time.Minute

var (
	// ErrChannelEmpty indicates a job event without a channel name.
	ErrChannelEmpty = errors.New("job channel cannot be empty")
	// ErrTopicEmpty indicates a job event without a topic.
	ErrTopicEmpty = errors.New("job topic cannot be empty")
)

// PipelineRunner is the run trigger the worker drives for each job.
type PipelineRunner interface {
	Run(ctx context.Context, channelName, topic string) pipeline.Result
}

// NatsWorker listens for video job events on a NATS subject, runs the
// pipeline, and publishes the rendered video plus a terminal reply event.
type NatsWorker struct {
	natsConnection *nats.Conn
	subject        string
	store          core.ObjectStore
	runner         PipelineRunner
	log            *logger.Logger
}

// NewNatsWorker creates a new instance of a NATS worker.
func NewNatsWorker(
	natsConnection *nats.Conn,
	subject string,
	store core.ObjectStore,
	runner PipelineRunner,
	log *logger.Logger,
) (*NatsWorker, error) {
	return &NatsWorker{
		natsConnection: natsConnection,
		subject:        subject,
		store:          store,
		runner:         runner,
		log:            log,
	}, nil
}

// Run starts the worker and begins listening for messages.
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
	ctx, cancel := context.WithTimeout(context.Background(), handleJobTimeout)
	defer cancel()

	event, err := parseAndValidateEvent(msg)
	if err != nil {
		w.log.Error("Failed to parse and validate job event: %v", err)

		return
	}

	replyEvent := w.processJob(ctx, event)

	publishErr := w.publishReplyEvent(msg, replyEvent)
	if publishErr != nil {
		w.log.Error(
			"Failed to publish reply event for workflow %s: %v",
			event.Header.WorkflowID, publishErr,
		)
	}
}

// processJob runs the pipeline for the job and, on success, uploads the
// rendered video to the object store under a fresh key.
func (w *NatsWorker) processJob(
	ctx context.Context,
	event *events.VideoJobRequestedEvent,
) *events.VideoJobCompletedEvent {
	result := w.runner.Run(ctx, event.Channel, event.Topic)

	replyEvent := &events.VideoJobCompletedEvent{
		Header:      events.NewHeader(event.Header.WorkflowID),
		Channel:     event.Channel,
		Topic:       event.Topic,
		Status:      string(result.Status),
		VideoKey:    "",
		FailedStage: "",
		ErrorKind:   "",
		Message:     "",
	}

	if !result.Succeeded() {
		replyEvent.FailedStage = string(result.Failure.Stage)
		replyEvent.ErrorKind = string(result.Failure.Kind)
		replyEvent.Message = result.Failure.Message

		return replyEvent
	}

	videoKey, uploadErr := w.uploadVideo(ctx, result.VideoPath)
	if uploadErr != nil {
		w.log.Error(
			"Failed to upload video for workflow %s: %v",
			event.Header.WorkflowID, uploadErr,
		)

		replyEvent.Status = string(pipeline.StatusFailure)
		replyEvent.Message = uploadErr.Error()

		return replyEvent
	}

	replyEvent.VideoKey = videoKey

	return replyEvent
}

func (w *NatsWorker) uploadVideo(ctx context.Context, videoPath string) (string, error) {
	videoData, err := os.ReadFile(videoPath)
	if err != nil {
		return "", fmt.Errorf("failed to read rendered video '%s': %w", videoPath, err)
	}

	videoKey := uuid.NewString() + ".mp4"

	err = w.store.Upload(ctx, videoKey, videoData)
	if err != nil {
		return "", fmt.Errorf("failed to upload video data for key '%s': %w", videoKey, err)
	}

	return videoKey, nil
}

func (w *NatsWorker) publishReplyEvent(msg *nats.Msg, replyEvent *events.VideoJobCompletedEvent) error {
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

func parseAndValidateEvent(msg *nats.Msg) (*events.VideoJobRequestedEvent, error) {
	var event events.VideoJobRequestedEvent

	err := json.Unmarshal(msg.Data, &event)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal event: %w", err)
	}

	if event.Channel == "" {
		return nil, ErrChannelEmpty
	}

	if event.Topic == "" {
		return nil, ErrTopicEmpty
	}

	return &event, nil
}
