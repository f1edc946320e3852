package service

import (
	"context"
	"io"

	"github.com/UnendingLoop/FilmWeekly/internal/model"
	"github.com/UnendingLoop/FilmWeekly/internal/storage/miniostorage"
	"github.com/wb-go/wbf/retry"
)

type mockRepo struct {
	CreateSubmissionFn           func(ctx context.Context, s *model.Submission, images []model.SubmissionImage) error
	GetSubmissionFn              func(ctx context.Context, id int64) (*model.Submission, error)
	ListSubmissionsFn            func(ctx context.Context, req *model.ListRequest) ([]model.Submission, error)
	UpdateSubmissionStatusFn     func(ctx context.Context, id int64, status model.Status) error
	UpdateSubmissionModerationFn func(ctx context.Context, id int64, status model.ModerationStatus, summary string) error
	FetchStalePendingFn          func(ctx context.Context, limit int) ([]int64, error)
	ListImagesFn                 func(ctx context.Context, submissionID int64) ([]model.SubmissionImage, error)
	UpdateImageDimensionsFn      func(ctx context.Context, imageID int64, width, height *int) error
	InsertModerationResultFn     func(ctx context.Context, res *model.ModerationResult) error
	ListModerationResultsFn      func(ctx context.Context, submissionID int64) ([]model.ModerationResult, error)
	LatestModerationResultsFn    func(ctx context.Context, submissionID int64) ([]model.ModerationResult, error)
	AppendAuditFn                func(ctx context.Context, entry *model.AuditEntry) error
	ListRecentAuditFn            func(ctx context.Context, limit int) ([]model.AuditEntry, error)
	CreateIssueFn                func(ctx context.Context, issue *model.Issue) error
	ListIssuesFn                 func(ctx context.Context) ([]model.Issue, error)
	GetIssueFn                   func(ctx context.Context, id int64) (*model.Issue, error)
	EnsurePortalFn               func(ctx context.Context, issueID int64, token string) (string, error)
	GetPortalIssueFn             func(ctx context.Context, token string) (*model.Issue, error)
	InsertVoteFn                 func(ctx context.Context, submissionID int64, voterIP string) error
	HasVotedFn                   func(ctx context.Context, submissionID int64, voterIP string) (bool, error)
	CountVotesFn                 func(ctx context.Context, submissionID int64) (int, error)
	CountIPVotesForIssueFn       func(ctx context.Context, issueID int64, voterIP string) (int, error)
}

func (m *mockRepo) CreateSubmission(ctx context.Context, s *model.Submission, images []model.SubmissionImage) error {
	return m.CreateSubmissionFn(ctx, s, images)
}

func (m *mockRepo) GetSubmission(ctx context.Context, id int64) (*model.Submission, error) {
	return m.GetSubmissionFn(ctx, id)
}

func (m *mockRepo) ListSubmissions(ctx context.Context, req *model.ListRequest) ([]model.Submission, error) {
	return m.ListSubmissionsFn(ctx, req)
}

func (m *mockRepo) UpdateSubmissionStatus(ctx context.Context, id int64, status model.Status) error {
	return m.UpdateSubmissionStatusFn(ctx, id, status)
}

func (m *mockRepo) UpdateSubmissionModeration(ctx context.Context, id int64, status model.ModerationStatus, summary string) error {
	return m.UpdateSubmissionModerationFn(ctx, id, status, summary)
}

func (m *mockRepo) FetchStalePending(ctx context.Context, limit int) ([]int64, error) {
	return m.FetchStalePendingFn(ctx, limit)
}

func (m *mockRepo) ListImages(ctx context.Context, submissionID int64) ([]model.SubmissionImage, error) {
	return m.ListImagesFn(ctx, submissionID)
}

func (m *mockRepo) UpdateImageDimensions(ctx context.Context, imageID int64, width, height *int) error {
	return m.UpdateImageDimensionsFn(ctx, imageID, width, height)
}

func (m *mockRepo) InsertModerationResult(ctx context.Context, res *model.ModerationResult) error {
	return m.InsertModerationResultFn(ctx, res)
}

func (m *mockRepo) ListModerationResults(ctx context.Context, submissionID int64) ([]model.ModerationResult, error) {
	return m.ListModerationResultsFn(ctx, submissionID)
}

func (m *mockRepo) LatestModerationResults(ctx context.Context, submissionID int64) ([]model.ModerationResult, error) {
	return m.LatestModerationResultsFn(ctx, submissionID)
}

func (m *mockRepo) AppendAudit(ctx context.Context, entry *model.AuditEntry) error {
	return m.AppendAuditFn(ctx, entry)
}

func (m *mockRepo) ListRecentAudit(ctx context.Context, limit int) ([]model.AuditEntry, error) {
	return m.ListRecentAuditFn(ctx, limit)
}

func (m *mockRepo) CreateIssue(ctx context.Context, issue *model.Issue) error {
	return m.CreateIssueFn(ctx, issue)
}

func (m *mockRepo) ListIssues(ctx context.Context) ([]model.Issue, error) {
	return m.ListIssuesFn(ctx)
}

func (m *mockRepo) GetIssue(ctx context.Context, id int64) (*model.Issue, error) {
	return m.GetIssueFn(ctx, id)
}

func (m *mockRepo) EnsurePortal(ctx context.Context, issueID int64, token string) (string, error) {
	return m.EnsurePortalFn(ctx, issueID, token)
}

func (m *mockRepo) GetPortalIssue(ctx context.Context, token string) (*model.Issue, error) {
	return m.GetPortalIssueFn(ctx, token)
}

func (m *mockRepo) InsertVote(ctx context.Context, submissionID int64, voterIP string) error {
	return m.InsertVoteFn(ctx, submissionID, voterIP)
}

func (m *mockRepo) HasVoted(ctx context.Context, submissionID int64, voterIP string) (bool, error) {
	return m.HasVotedFn(ctx, submissionID, voterIP)
}

func (m *mockRepo) CountVotes(ctx context.Context, submissionID int64) (int, error) {
	return m.CountVotesFn(ctx, submissionID)
}

func (m *mockRepo) CountIPVotesForIssue(ctx context.Context, issueID int64, voterIP string) (int, error) {
	return m.CountIPVotesForIssueFn(ctx, issueID, voterIP)
}

type mockPublisher struct {
	SendWithRetryFn func(ctx context.Context, strategy retry.Strategy, key []byte, v []byte) error
}

func (m *mockPublisher) SendWithRetry(ctx context.Context, strategy retry.Strategy, key []byte, v []byte) error {
	return m.SendWithRetryFn(ctx, strategy, key, v)
}

type mockStorage struct {
	PutFn func(ctx context.Context, key string, size int64, opts miniostorage.PutOptions, r io.Reader) error
}

func (m *mockStorage) Put(ctx context.Context, key string, size int64, opts miniostorage.PutOptions, r io.Reader) error {
	return m.PutFn(ctx, key, size, opts, r)
}
