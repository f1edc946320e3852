package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/UnendingLoop/FilmWeekly/internal/model"
	"github.com/UnendingLoop/FilmWeekly/internal/storage/miniostorage"
	"github.com/stretchr/testify/require"
	"github.com/wb-go/wbf/retry"
)

type fileStub struct {
	*bytes.Reader
}

func (fileStub) Close() error { return nil }

func testUpload(name string, payload []byte) model.ImageUpload {
	return model.ImageUpload{
		File:        fileStub{bytes.NewReader(payload)},
		Filename:    name,
		ContentType: model.JPEG,
		Size:        int64(len(payload)),
	}
}

func futureDeadline() *time.Time {
	t := time.Now().UTC().Add(24 * time.Hour)
	return &t
}

func pastDeadline() *time.Time {
	t := time.Now().UTC().Add(-24 * time.Hour)
	return &t
}

func testPolicy() Policy {
	return Policy{MaxImages: 5, VotesPerIssue: 5}
}

func TestCreateSubmission_OKViaPortal(t *testing.T) {
	var putKeys []string
	var published []model.Task
	var audits []model.AuditEntry

	repo := &mockRepo{
		GetPortalIssueFn: func(ctx context.Context, token string) (*model.Issue, error) {
			require.Equal(t, "portal-token", token)
			return &model.Issue{ID: 7, SubmissionDeadline: futureDeadline()}, nil
		},
		CreateSubmissionFn: func(ctx context.Context, s *model.Submission, images []model.SubmissionImage) error {
			require.Equal(t, int64(7), s.IssueID)
			require.Len(t, images, 2)
			s.ID = 42
			return nil
		},
		AppendAuditFn: func(ctx context.Context, entry *model.AuditEntry) error {
			audits = append(audits, *entry)
			return nil
		},
	}
	strg := &mockStorage{
		PutFn: func(ctx context.Context, key string, size int64, opts miniostorage.PutOptions, r io.Reader) error {
			require.Equal(t, model.JPEG, opts.ContentType)
			putKeys = append(putKeys, key)
			return nil
		},
	}
	pub := &mockPublisher{
		SendWithRetryFn: func(ctx context.Context, strategy retry.Strategy, key []byte, v []byte) error {
			require.Equal(t, "42", string(key))
			task, err := model.DecodeTask(v)
			require.NoError(t, err)
			published = append(published, task)
			return nil
		},
	}

	svc := NewSubmissionService(repo, pub, strg, testPolicy())
	author := "Ann Adams"
	sub, err := svc.CreateSubmission(context.Background(), &model.SubmissionCreateData{
		PortalToken: "portal-token",
		Title:       "Morning fog",
		AuthorName:  &author,
		Images: []model.ImageUpload{
			testUpload("one.jpg", []byte("img-one")),
			testUpload("two.jpg", []byte("img-two")),
		},
	}, false)

	require.NoError(t, err)
	require.Equal(t, int64(42), sub.ID)
	require.Len(t, sub.Images, 2)

	yearPrefix := fmt.Sprintf("%d/", time.Now().UTC().Year())
	require.Len(t, putKeys, 2)
	for i, key := range putKeys {
		require.True(t, strings.HasPrefix(key, yearPrefix))
		require.Equal(t, key, sub.Images[i].SourceKey)
		require.Equal(t, model.ThumbnailKey(key), sub.Images[i].ThumbnailKey)
	}
	require.True(t, strings.HasSuffix(putKeys[0], "-one.jpg"))

	require.Len(t, published, 2)
	require.Equal(t, model.TaskGenerateThumbnails, published[0].Type)
	require.Equal(t, model.TaskContentModeration, published[1].Type)
	require.Equal(t, int64(42), published[0].SubmissionID)

	require.Len(t, audits, 1)
	require.Equal(t, "submission-created", audits[0].Action)
	require.Equal(t, "Ann Adams", audits[0].Actor)
}

func TestCreateSubmission_DeadlinePassed(t *testing.T) {
	repo := &mockRepo{
		GetPortalIssueFn: func(ctx context.Context, token string) (*model.Issue, error) {
			return &model.Issue{ID: 7, SubmissionDeadline: pastDeadline()}, nil
		},
	}
	strg := &mockStorage{
		PutFn: func(ctx context.Context, key string, size int64, opts miniostorage.PutOptions, r io.Reader) error {
			t.Fatal("storage must not be touched after deadline check")
			return nil
		},
	}

	svc := NewSubmissionService(repo, &mockPublisher{}, strg, testPolicy())
	_, err := svc.CreateSubmission(context.Background(), &model.SubmissionCreateData{
		PortalToken: "portal-token",
		Title:       "Late one",
		Images:      []model.ImageUpload{testUpload("a.jpg", []byte("x"))},
	}, false)

	require.ErrorIs(t, err, model.ErrDeadlinePassed)
}

func TestCreateSubmission_PortalRequired(t *testing.T) {
	svc := NewSubmissionService(&mockRepo{}, &mockPublisher{}, &mockStorage{}, testPolicy())
	_, err := svc.CreateSubmission(context.Background(), &model.SubmissionCreateData{
		Title:  "No portal",
		Images: []model.ImageUpload{testUpload("a.jpg", []byte("x"))},
	}, false)

	require.ErrorIs(t, err, model.ErrPortalRequired)
}

func TestCreateSubmission_InputValidation(t *testing.T) {
	svc := NewSubmissionService(&mockRepo{}, &mockPublisher{}, &mockStorage{}, Policy{MaxImages: 2, VotesPerIssue: 5})

	cases := []struct {
		name string
		data model.SubmissionCreateData
		want error
	}{
		{"empty title", model.SubmissionCreateData{PortalToken: "p", Title: "  ", Images: []model.ImageUpload{testUpload("a.jpg", []byte("x"))}}, model.ErrEmptyTitle},
		{"no images", model.SubmissionCreateData{PortalToken: "p", Title: "T"}, model.ErrNoImages},
		{"too many images", model.SubmissionCreateData{PortalToken: "p", Title: "T", Images: []model.ImageUpload{
			testUpload("a.jpg", []byte("x")), testUpload("b.jpg", []byte("x")), testUpload("c.jpg", []byte("x")),
		}}, model.ErrTooManyImages},
		{"empty file", model.SubmissionCreateData{PortalToken: "p", Title: "T", Images: []model.ImageUpload{{Filename: "a.jpg"}}}, model.ErrEmptySource},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.CreateSubmission(context.Background(), &tc.data, false)
			require.ErrorIs(t, err, tc.want)
		})
	}
}

func TestCreateSubmission_AdminBypassesDeadline(t *testing.T) {
	repo := &mockRepo{
		GetIssueFn: func(ctx context.Context, id int64) (*model.Issue, error) {
			require.Equal(t, int64(9), id)
			return &model.Issue{ID: 9, SubmissionDeadline: pastDeadline()}, nil
		},
		CreateSubmissionFn: func(ctx context.Context, s *model.Submission, images []model.SubmissionImage) error {
			s.ID = 1
			return nil
		},
		AppendAuditFn: func(ctx context.Context, entry *model.AuditEntry) error { return nil },
	}
	strg := &mockStorage{
		PutFn: func(ctx context.Context, key string, size int64, opts miniostorage.PutOptions, r io.Reader) error {
			return nil
		},
	}
	pub := &mockPublisher{
		SendWithRetryFn: func(ctx context.Context, strategy retry.Strategy, key []byte, v []byte) error {
			return nil
		},
	}

	svc := NewSubmissionService(repo, pub, strg, testPolicy())
	sub, err := svc.CreateSubmission(context.Background(), &model.SubmissionCreateData{
		IssueID: 9,
		Title:   "Backfill",
		Images:  []model.ImageUpload{testUpload("a.jpg", []byte("x"))},
	}, true)

	require.NoError(t, err)
	require.Equal(t, int64(9), sub.IssueID)
}

func TestReview_OK(t *testing.T) {
	var savedStatus model.Status
	var audits []model.AuditEntry

	repo := &mockRepo{
		GetSubmissionFn: func(ctx context.Context, id int64) (*model.Submission, error) {
			return &model.Submission{ID: id, Status: savedStatus}, nil
		},
		UpdateSubmissionStatusFn: func(ctx context.Context, id int64, status model.Status) error {
			savedStatus = status
			return nil
		},
		ListImagesFn: func(ctx context.Context, submissionID int64) ([]model.SubmissionImage, error) {
			return nil, nil
		},
		ListModerationResultsFn: func(ctx context.Context, submissionID int64) ([]model.ModerationResult, error) {
			return nil, nil
		},
		AppendAuditFn: func(ctx context.Context, entry *model.AuditEntry) error {
			audits = append(audits, *entry)
			return nil
		},
	}

	svc := NewSubmissionService(repo, &mockPublisher{}, &mockStorage{}, testPolicy())
	sub, err := svc.Review(context.Background(), 5, "editor@example.com", &model.ReviewDecision{Status: model.StatusApproved})

	require.NoError(t, err)
	require.Equal(t, model.StatusApproved, sub.Status)
	require.Len(t, audits, 1)
	require.Equal(t, "submission-reviewed", audits[0].Action)
	require.Equal(t, "editor@example.com", audits[0].Actor)
}

func TestReview_RejectsBadStatus(t *testing.T) {
	svc := NewSubmissionService(&mockRepo{}, &mockPublisher{}, &mockStorage{}, testPolicy())

	for _, status := range []model.Status{model.StatusPending, "bogus"} {
		_, err := svc.Review(context.Background(), 5, "editor", &model.ReviewDecision{Status: status})
		require.ErrorIs(t, err, model.ErrIncorrectStatus)
	}
}

func voteRepo(subStatus model.Status, deadline *time.Time, hasVoted bool, usedVotes int) *mockRepo {
	return &mockRepo{
		GetSubmissionFn: func(ctx context.Context, id int64) (*model.Submission, error) {
			return &model.Submission{ID: id, IssueID: 3, Status: subStatus}, nil
		},
		GetIssueFn: func(ctx context.Context, id int64) (*model.Issue, error) {
			return &model.Issue{ID: 3, SubmissionDeadline: deadline}, nil
		},
		HasVotedFn: func(ctx context.Context, submissionID int64, voterIP string) (bool, error) {
			return hasVoted, nil
		},
		CountIPVotesForIssueFn: func(ctx context.Context, issueID int64, voterIP string) (int, error) {
			return usedVotes, nil
		},
		InsertVoteFn: func(ctx context.Context, submissionID int64, voterIP string) error {
			return nil
		},
		CountVotesFn: func(ctx context.Context, submissionID int64) (int, error) {
			return 7, nil
		},
	}
}

func TestVote_OK(t *testing.T) {
	repo := voteRepo(model.StatusApproved, pastDeadline(), false, 2)
	svc := NewSubmissionService(repo, &mockPublisher{}, &mockStorage{}, testPolicy())

	res, err := svc.Vote(context.Background(), 11, "203.0.113.9")
	require.NoError(t, err)
	require.Equal(t, int64(11), res.SubmissionID)
	require.Equal(t, 7, res.Votes)
	require.Equal(t, 2, res.RemainingVotes)
}

func TestVote_Failures(t *testing.T) {
	cases := []struct {
		name string
		repo *mockRepo
		ip   string
		want error
	}{
		{"no client ip", voteRepo(model.StatusApproved, pastDeadline(), false, 0), "", model.ErrNoClientIP},
		{"voting not open yet", voteRepo(model.StatusApproved, futureDeadline(), false, 0), "203.0.113.9", model.ErrVotingNotOpen},
		{"no deadline means no voting", voteRepo(model.StatusApproved, nil, false, 0), "203.0.113.9", model.ErrVotingUnsupported},
		{"pending submission", voteRepo(model.StatusPending, pastDeadline(), false, 0), "203.0.113.9", model.ErrNotEligibleForVote},
		{"already voted", voteRepo(model.StatusApproved, pastDeadline(), true, 0), "203.0.113.9", model.ErrAlreadyVoted},
		{"issue limit reached", voteRepo(model.StatusApproved, pastDeadline(), false, 5), "203.0.113.9", model.ErrVoteLimitReached},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc := NewSubmissionService(tc.repo, &mockPublisher{}, &mockStorage{}, testPolicy())
			_, err := svc.Vote(context.Background(), 11, tc.ip)
			require.ErrorIs(t, err, tc.want)
		})
	}
}

func TestRecomputeModeration_OK(t *testing.T) {
	var savedStatus model.ModerationStatus
	var savedSummary string

	repo := &mockRepo{
		GetSubmissionFn: func(ctx context.Context, id int64) (*model.Submission, error) {
			return &model.Submission{ID: id, ModerationStatus: savedStatus}, nil
		},
		LatestModerationResultsFn: func(ctx context.Context, submissionID int64) ([]model.ModerationResult, error) {
			return []model.ModerationResult{
				{Verdict: "approved"},
				{Verdict: "rejected", Reasons: model.StringSlice{"nudity"}},
			}, nil
		},
		UpdateSubmissionModerationFn: func(ctx context.Context, id int64, status model.ModerationStatus, summary string) error {
			savedStatus = status
			savedSummary = summary
			return nil
		},
		ListImagesFn: func(ctx context.Context, submissionID int64) ([]model.SubmissionImage, error) {
			return nil, nil
		},
		ListModerationResultsFn: func(ctx context.Context, submissionID int64) ([]model.ModerationResult, error) {
			return nil, nil
		},
		AppendAuditFn: func(ctx context.Context, entry *model.AuditEntry) error { return nil },
	}

	svc := NewSubmissionService(repo, &mockPublisher{}, &mockStorage{}, testPolicy())
	sub, err := svc.RecomputeModeration(context.Background(), 4, "editor")

	require.NoError(t, err)
	require.Equal(t, model.ModerationRejected, sub.ModerationStatus)
	require.Equal(t, "rejected • nudity", savedSummary)
}

func TestReviveStalePending(t *testing.T) {
	var published []model.Task
	repo := &mockRepo{
		FetchStalePendingFn: func(ctx context.Context, limit int) ([]int64, error) {
			return []int64{4, 9}, nil
		},
	}
	pub := &mockPublisher{
		SendWithRetryFn: func(ctx context.Context, strategy retry.Strategy, key []byte, v []byte) error {
			task, err := model.DecodeTask(v)
			require.NoError(t, err)
			published = append(published, task)
			return nil
		},
	}

	svc := NewSubmissionService(repo, pub, &mockStorage{}, testPolicy())
	svc.ReviveStalePending(context.Background(), 50)

	// both pipeline tasks per stale submission
	require.Len(t, published, 4)
	require.Equal(t, model.TaskGenerateThumbnails, published[0].Type)
	require.Equal(t, model.TaskContentModeration, published[1].Type)
	require.Equal(t, int64(4), published[0].SubmissionID)
	require.Equal(t, int64(4), published[1].SubmissionID)
	require.Equal(t, int64(9), published[2].SubmissionID)
	require.Equal(t, int64(9), published[3].SubmissionID)
}

func TestCreateIssue_OK(t *testing.T) {
	var audits []model.AuditEntry
	repo := &mockRepo{
		CreateIssueFn: func(ctx context.Context, issue *model.Issue) error {
			require.Equal(t, "april-2026", issue.Slug)
			require.Equal(t, model.IssueDraft, issue.Status)
			issue.ID = 12
			return nil
		},
		EnsurePortalFn: func(ctx context.Context, issueID int64, token string) (string, error) {
			require.Equal(t, int64(12), issueID)
			require.NotEmpty(t, token)
			return token, nil
		},
		AppendAuditFn: func(ctx context.Context, entry *model.AuditEntry) error {
			audits = append(audits, *entry)
			return nil
		},
	}

	svc := NewSubmissionService(repo, &mockPublisher{}, &mockStorage{}, testPolicy())
	issue, err := svc.CreateIssue(context.Background(), &model.IssueCreateData{
		Slug:     " April-2026 ",
		Title:    "April issue",
		Guidance: "Spring streets",
	}, "editor")

	require.NoError(t, err)
	require.Equal(t, int64(12), issue.ID)
	require.NotEmpty(t, issue.PortalToken)
	require.Len(t, audits, 1)
	require.Equal(t, "issue-created", audits[0].Action)
}

func TestCreateIssue_SlugTaken(t *testing.T) {
	repo := &mockRepo{
		CreateIssueFn: func(ctx context.Context, issue *model.Issue) error {
			return model.ErrSlugTaken
		},
	}

	svc := NewSubmissionService(repo, &mockPublisher{}, &mockStorage{}, testPolicy())
	_, err := svc.CreateIssue(context.Background(), &model.IssueCreateData{Slug: "april-2026", Title: "April", Guidance: "g"}, "editor")
	require.ErrorIs(t, err, model.ErrSlugTaken)
}

func TestListSubmissions_ParamDefaults(t *testing.T) {
	var gotReq *model.ListRequest
	repo := &mockRepo{
		ListSubmissionsFn: func(ctx context.Context, req *model.ListRequest) ([]model.Submission, error) {
			gotReq = req
			return []model.Submission{}, nil
		},
	}

	svc := NewSubmissionService(repo, &mockPublisher{}, &mockStorage{}, testPolicy())
	_, err := svc.ListSubmissions(context.Background(), &model.ListRequest{})
	require.NoError(t, err)
	require.Equal(t, 1, gotReq.Page)
	require.Equal(t, 20, gotReq.Limit)
}

func TestListSubmissions_BadParams(t *testing.T) {
	svc := NewSubmissionService(&mockRepo{}, &mockPublisher{}, &mockStorage{}, testPolicy())

	cases := []model.ListRequest{
		{Page: -1},
		{Limit: 500},
		{Status: "bogus"},
		{ModerationStatus: "bogus"},
	}
	for _, req := range cases {
		_, err := svc.ListSubmissions(context.Background(), &req)
		require.ErrorIs(t, err, model.ErrIncorrectQuery)
	}
}

func TestGetSubmission_NotFound(t *testing.T) {
	repo := &mockRepo{
		GetSubmissionFn: func(ctx context.Context, id int64) (*model.Submission, error) {
			return nil, model.ErrSubmissionNotFound
		},
	}

	svc := NewSubmissionService(repo, &mockPublisher{}, &mockStorage{}, testPolicy())
	_, err := svc.GetSubmission(context.Background(), 404)
	require.ErrorIs(t, err, model.ErrSubmissionNotFound)
}

func TestGetSubmission_InfraErrorMasked(t *testing.T) {
	repo := &mockRepo{
		GetSubmissionFn: func(ctx context.Context, id int64) (*model.Submission, error) {
			return nil, errors.New("connection reset")
		},
	}

	svc := NewSubmissionService(repo, &mockPublisher{}, &mockStorage{}, testPolicy())
	_, err := svc.GetSubmission(context.Background(), 1)
	require.ErrorIs(t, err, model.ErrCommon500)
}
