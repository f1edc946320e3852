// Package worker contains the queue consumer running the post-submission
// pipeline: thumbnail generation and content moderation
package worker

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"strconv"
	"time"

	"github.com/UnendingLoop/FilmWeekly/internal/imageproc"
	"github.com/UnendingLoop/FilmWeekly/internal/model"
	"github.com/UnendingLoop/FilmWeekly/internal/moderation"
	"github.com/UnendingLoop/FilmWeekly/internal/storage/miniostorage"
	kafkago "github.com/segmentio/kafka-go"
	wbfkafka "github.com/wb-go/wbf/kafka"
)

// Thumbnails never change once written, so downstream caches may hold them forever
const thumbnailCacheControl = "public, max-age=31536000, immutable"

// PipelineRepo - the slice of the metadata store the pipeline writes to
type PipelineRepo interface {
	ListImages(ctx context.Context, submissionID int64) ([]model.SubmissionImage, error)
	UpdateImageDimensions(ctx context.Context, imageID int64, width, height *int) error
	InsertModerationResult(ctx context.Context, res *model.ModerationResult) error
	UpdateSubmissionModeration(ctx context.Context, id int64, status model.ModerationStatus, summary string) error
	AppendAudit(ctx context.Context, entry *model.AuditEntry) error
}

// ImageStorage - blob-store contract for originals and derived thumbnails
type ImageStorage interface {
	Get(ctx context.Context, key string) (io.ReadCloser, string, error)
	Put(ctx context.Context, key string, size int64, opts miniostorage.PutOptions, r io.Reader) error
}

// ModerationClient - contract of the external moderation endpoint
type ModerationClient interface {
	Check(ctx context.Context, data []byte, contentType, sourceKey string) (*moderation.Result, error)
}

type Worker struct {
	repo       PipelineRepo
	storage    ImageStorage
	moderator  ModerationClient
	queue      <-chan kafkago.Message
	consumer   *wbfkafka.Consumer
	policy     imageproc.Policy
	retryDelay time.Duration
}

func NewWorkerInstance(repo PipelineRepo, strg ImageStorage, mod ModerationClient, q <-chan kafkago.Message, cons *wbfkafka.Consumer, policy imageproc.Policy, retryDelay time.Duration) *Worker {
	return &Worker{
		repo:       repo,
		storage:    strg,
		moderator:  mod,
		queue:      q,
		consumer:   cons,
		policy:     policy,
		retryDelay: retryDelay,
	}
}

// StartWorker - delivery is at-least-once: a handled task (including
// per-image failures) is committed; a task-level failure is re-attempted in
// place with a bounded delay until it succeeds or shutdown interrupts it.
// Unrecognized messages are committed and dropped to avoid poison loops.
func (w *Worker) StartWorker(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-w.queue:
			if !ok {
				log.Println("Queue channel closed, stopping worker...")
				return
			}

			task, err := model.DecodeTask(msg.Value)
			if err != nil {
				log.Printf("Dropping unrecognized task message: %v", err)
				w.commit(ctx, msg)
				continue
			}

			if err := w.runWithRetry(ctx, task); err != nil {
				// shutdown mid-retry: the message stays uncommitted and the
				// group redelivers it on the next start
				return
			}
			w.commit(ctx, msg)
		}
	}
}

// runWithRetry keeps re-processing the same task until it succeeds. Offsets
// commit in order: once any later message commits, everything before it counts
// as consumed, so a failed task must not be skipped past - the only safe spot
// to wait is here, before reading on.
func (w *Worker) runWithRetry(ctx context.Context, task model.Task) error {
	for {
		err := w.process(ctx, task)
		if err == nil {
			return nil
		}
		log.Printf("Task %s for submission %d failed: %v\nNext attempt in %v...", task.Type, task.SubmissionID, err, w.retryDelay)
		w.waitRetry(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
}

func (w *Worker) process(ctx context.Context, task model.Task) error {
	switch task.Type {
	case model.TaskGenerateThumbnails:
		return w.generateThumbnails(ctx, task.SubmissionID)
	case model.TaskContentModeration:
		return w.moderateSubmission(ctx, task.SubmissionID)
	default:
		return fmt.Errorf("%w: %q", model.ErrUnknownTaskType, task.Type)
	}
}

func (w *Worker) generateThumbnails(ctx context.Context, submissionID int64) error {
	images, err := w.repo.ListImages(ctx, submissionID)
	if err != nil {
		return fmt.Errorf("worker failed to list images of submission %d: %w", submissionID, err)
	}

	for i := range images {
		if err := w.writeThumbnail(ctx, &images[i]); err != nil {
			return err
		}
	}

	return w.audit(ctx, "thumbnails-generated", "submission", submissionID, map[string]any{"imageCount": len(images)})
}

// writeThumbnail handles one image. A missing source or a decode failure is
// recorded as data and never fails the task; storage/db trouble does.
func (w *Worker) writeThumbnail(ctx context.Context, img *model.SubmissionImage) error {
	src, cType, err := w.storage.Get(ctx, img.SourceKey)
	if err != nil {
		if errors.Is(err, model.ErrObjectNotFound) {
			return w.audit(ctx, "thumbnail-source-missing", "submission-image", img.ID, map[string]any{"key": img.SourceKey})
		}
		return fmt.Errorf("worker failed to fetch source %q from storage: %w", img.SourceKey, err)
	}
	defer closeFileFlow(src)

	data, err := io.ReadAll(src)
	if err != nil {
		return fmt.Errorf("worker failed to read source %q: %w", img.SourceKey, err)
	}
	if cType == "" {
		cType = model.BinaryCType
	}

	// corrupt/unsupported source falls back to the original bytes so the
	// thumbnail key always resolves to something viewable
	out := data
	outCType := model.BinaryCType
	var width, height *int

	thumb, genErr := imageproc.Generate(data, cType, w.policy)
	if genErr != nil {
		if err := w.audit(ctx, "thumbnail-conversion-failed", "submission-image", img.ID, map[string]any{"message": genErr.Error()}); err != nil {
			return err
		}
	} else {
		out = thumb.Data
		outCType = thumb.ContentType
		width = &thumb.Width
		height = &thumb.Height
	}

	opts := miniostorage.PutOptions{ContentType: outCType, CacheControl: thumbnailCacheControl}
	if err := w.storage.Put(ctx, img.ThumbnailKey, int64(len(out)), opts, bytes.NewReader(out)); err != nil {
		return fmt.Errorf("worker failed to put thumbnail %q to storage: %w", img.ThumbnailKey, err)
	}

	if err := w.repo.UpdateImageDimensions(ctx, img.ID, width, height); err != nil {
		return fmt.Errorf("worker failed to save dimensions of image %d: %w", img.ID, err)
	}
	return nil
}

func (w *Worker) moderateSubmission(ctx context.Context, submissionID int64) error {
	images, err := w.repo.ListImages(ctx, submissionID)
	if err != nil {
		return fmt.Errorf("worker failed to list images of submission %d: %w", submissionID, err)
	}

	verdicts := make([]string, 0, len(images))
	var reasons []string

	for i := range images {
		verdict, imgReasons, err := w.moderateImage(ctx, submissionID, &images[i])
		if err != nil {
			return err
		}
		verdicts = append(verdicts, verdict)
		reasons = append(reasons, imgReasons...)
	}

	aggregate := moderation.Aggregate(verdicts)
	summary := moderation.Summary(aggregate, reasons)

	if err := w.repo.UpdateSubmissionModeration(ctx, submissionID, aggregate, summary); err != nil {
		return fmt.Errorf("worker failed to save moderation status of submission %d: %w", submissionID, err)
	}

	return w.audit(ctx, "submission-moderated", "submission", submissionID, map[string]any{"status": aggregate, "summary": summary})
}

// moderateImage returns the verdict and reasons for one image. Provider
// trouble becomes an `error` verdict recorded as data; only persistence
// failures bubble up and fail the task.
func (w *Worker) moderateImage(ctx context.Context, submissionID int64, img *model.SubmissionImage) (string, []string, error) {
	src, cType, err := w.storage.Get(ctx, img.SourceKey)
	if err != nil {
		if errors.Is(err, model.ErrObjectNotFound) {
			return w.recordModerationError(ctx, submissionID, img.ID, "missing-source", nil)
		}
		return "", nil, fmt.Errorf("worker failed to fetch source %q from storage: %w", img.SourceKey, err)
	}
	defer closeFileFlow(src)

	data, err := io.ReadAll(src)
	if err != nil {
		return "", nil, fmt.Errorf("worker failed to read source %q: %w", img.SourceKey, err)
	}
	if cType == "" {
		cType = model.BinaryCType
	}

	res, err := w.moderator.Check(ctx, data, cType, img.SourceKey)
	if err != nil {
		var statusErr *moderation.StatusError
		if errors.As(err, &statusErr) {
			return w.recordModerationError(ctx, submissionID, img.ID, statusErr.Reason(), nil)
		}
		raw, _ := json.Marshal(map[string]string{"message": err.Error()})
		return w.recordModerationError(ctx, submissionID, img.ID, "network-error", raw)
	}

	if err := w.repo.InsertModerationResult(ctx, &model.ModerationResult{
		SubmissionID: submissionID,
		ImageID:      &img.ID,
		Provider:     moderation.Provider,
		Verdict:      res.Verdict,
		Score:        res.Score,
		Reasons:      res.Reasons,
		RawResponse:  res.Raw,
	}); err != nil {
		return "", nil, fmt.Errorf("worker failed to save moderation result of image %d: %w", img.ID, err)
	}

	return res.Verdict, res.Reasons, nil
}

func (w *Worker) recordModerationError(ctx context.Context, submissionID, imageID int64, reason string, raw []byte) (string, []string, error) {
	if err := w.repo.InsertModerationResult(ctx, &model.ModerationResult{
		SubmissionID: submissionID,
		ImageID:      &imageID,
		Provider:     moderation.Provider,
		Verdict:      moderation.VerdictError,
		Reasons:      model.StringSlice{reason},
		RawResponse:  raw,
	}); err != nil {
		return "", nil, fmt.Errorf("worker failed to save moderation error of image %d: %w", imageID, err)
	}
	return moderation.VerdictError, []string{reason}, nil
}

func (w *Worker) audit(ctx context.Context, action, entity string, entityID int64, payload any) error {
	var raw []byte
	if payload != nil {
		var err error
		if raw, err = json.Marshal(payload); err != nil {
			return fmt.Errorf("worker failed to marshal audit payload: %w", err)
		}
	}

	idStr := strconv.FormatInt(entityID, 10)
	if err := w.repo.AppendAudit(ctx, &model.AuditEntry{
		Actor:    model.SystemActor,
		Action:   action,
		Entity:   entity,
		EntityID: &idStr,
		Payload:  raw,
	}); err != nil {
		return fmt.Errorf("worker failed to append audit entry %q: %w", action, err)
	}
	return nil
}

func (w *Worker) commit(ctx context.Context, msg kafkago.Message) {
	if w.consumer == nil {
		return
	}
	if err := w.consumer.Commit(ctx, msg); err != nil {
		log.Printf("Failed to commit queue-message: %v", err)
	}
}

func (w *Worker) waitRetry(ctx context.Context) {
	select {
	case <-ctx.Done():
	case <-time.After(w.retryDelay):
	}
}

func closeFileFlow(res io.ReadCloser) {
	if res == nil {
		return
	}

	if err := res.Close(); err != nil {
		log.Println("Worker failed to close fileflow:", err)
	}
}
