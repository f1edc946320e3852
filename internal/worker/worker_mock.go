package worker

import (
	"context"
	"io"

	"github.com/UnendingLoop/FilmWeekly/internal/model"
	"github.com/UnendingLoop/FilmWeekly/internal/moderation"
	"github.com/UnendingLoop/FilmWeekly/internal/storage/miniostorage"
)

type mockPipelineRepo struct {
	listImagesFn       func(ctx context.Context, submissionID int64) ([]model.SubmissionImage, error)
	updateDimensionsFn func(ctx context.Context, imageID int64, width, height *int) error
	insertResultFn     func(ctx context.Context, res *model.ModerationResult) error
	updateModerationFn func(ctx context.Context, id int64, status model.ModerationStatus, summary string) error
	appendAuditFn      func(ctx context.Context, entry *model.AuditEntry) error
}

func (m *mockPipelineRepo) ListImages(ctx context.Context, submissionID int64) ([]model.SubmissionImage, error) {
	return m.listImagesFn(ctx, submissionID)
}

func (m *mockPipelineRepo) UpdateImageDimensions(ctx context.Context, imageID int64, width, height *int) error {
	return m.updateDimensionsFn(ctx, imageID, width, height)
}

func (m *mockPipelineRepo) InsertModerationResult(ctx context.Context, res *model.ModerationResult) error {
	return m.insertResultFn(ctx, res)
}

func (m *mockPipelineRepo) UpdateSubmissionModeration(ctx context.Context, id int64, status model.ModerationStatus, summary string) error {
	return m.updateModerationFn(ctx, id, status, summary)
}

func (m *mockPipelineRepo) AppendAudit(ctx context.Context, entry *model.AuditEntry) error {
	return m.appendAuditFn(ctx, entry)
}

//----------------------------------

type mockStorage struct {
	getFn func(ctx context.Context, key string) (io.ReadCloser, string, error)
	putFn func(ctx context.Context, key string, size int64, opts miniostorage.PutOptions, r io.Reader) error
}

func (m *mockStorage) Get(ctx context.Context, key string) (io.ReadCloser, string, error) {
	return m.getFn(ctx, key)
}

func (m *mockStorage) Put(ctx context.Context, key string, size int64, opts miniostorage.PutOptions, r io.Reader) error {
	return m.putFn(ctx, key, size, opts, r)
}

//----------------------------------

type mockModerator struct {
	checkFn func(ctx context.Context, data []byte, contentType, sourceKey string) (*moderation.Result, error)
}

func (m *mockModerator) Check(ctx context.Context, data []byte, contentType, sourceKey string) (*moderation.Result, error) {
	return m.checkFn(ctx, data, contentType, sourceKey)
}
