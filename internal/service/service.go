// Package service provides business-logic for the app
package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/UnendingLoop/FilmWeekly/internal/model"
	"github.com/UnendingLoop/FilmWeekly/internal/moderation"
	"github.com/UnendingLoop/FilmWeekly/internal/mwlogger"
	"github.com/UnendingLoop/FilmWeekly/internal/repository"
	"github.com/UnendingLoop/FilmWeekly/internal/storage/miniostorage"
	"github.com/google/uuid"
	"github.com/wb-go/wbf/retry"
)

// TaskPublisher - queue contract; enqueueing is fire-and-forget from the
// submitter's perspective
type TaskPublisher interface {
	SendWithRetry(ctx context.Context, strategy retry.Strategy, key []byte, v []byte) error
}

// ImageStorage - storage contract; the API only ever writes originals
type ImageStorage interface {
	Put(ctx context.Context, key string, size int64, opts miniostorage.PutOptions, r io.Reader) error
}

// Policy - product policy values from config
type Policy struct {
	MaxImages     int // images accepted per submission
	VotesPerIssue int // votes one IP may spend on one issue
}

type SubmissionService struct {
	repo      repository.SubmissionRepo
	publisher TaskPublisher
	storage   ImageStorage
	policy    Policy
}

func NewSubmissionService(repo repository.SubmissionRepo, pub TaskPublisher, strg ImageStorage, policy Policy) *SubmissionService {
	return &SubmissionService{
		repo:      repo,
		publisher: pub,
		storage:   strg,
		policy:    policy,
	}
}

// Queue-publish retry strategy
var retryStrategy = retry.Strategy{
	Attempts: 5,
	Delay:    3 * time.Second,
	Backoff:  1.5,
}

func (c SubmissionService) CreateSubmission(ctx context.Context, data *model.SubmissionCreateData, adminRequest bool) (*model.Submission, error) {
	logger := mwlogger.LoggerFromContext(ctx)

	if err := validateSubmissionInput(data, c.policy.MaxImages); err != nil {
		return nil, err
	}

	issue, err := c.resolveIssue(ctx, data, adminRequest)
	if err != nil {
		return nil, err
	}

	// originals land in storage before any DB row exists; an orphaned blob
	// is cheaper than a submission pointing at nothing
	images := make([]model.SubmissionImage, 0, len(data.Images))
	year := time.Now().UTC().Year()
	for i, up := range data.Images {
		key := fmt.Sprintf("%d/%s-%s", year, uuid.New(), up.Filename)

		opts := miniostorage.PutOptions{ContentType: up.ContentType}
		if err := c.storage.Put(ctx, key, up.Size, opts, up.File); err != nil {
			logger.Error().Err(err).Msg("Failed to save original image in Storage")
			return nil, model.ErrCommon500
		}

		images = append(images, model.SubmissionImage{
			Position:     i,
			SourceKey:    key,
			ThumbnailKey: model.ThumbnailKey(key),
			OriginalName: up.Filename,
			Size:         up.Size,
		})
	}

	newSub := &model.Submission{
		IssueID:       issue.ID,
		Title:         data.Title,
		AuthorName:    data.AuthorName,
		AuthorContact: data.AuthorContact,
		Location:      data.Location,
		ShotAt:        data.ShotAt,
		Equipment:     data.Equipment,
		Description:   data.Description,
	}

	if err := c.repo.CreateSubmission(ctx, newSub, images); err != nil {
		logger.Error().Err(err).Msg("Failed to create submission in DB")
		return nil, model.ErrCommon500
	}
	newSub.Images = images

	// both pipeline tasks go out right after commit
	for _, taskType := range []model.TaskType{model.TaskGenerateThumbnails, model.TaskContentModeration} {
		if err := c.publishTask(ctx, taskType, newSub.ID); err != nil {
			logger.Error().Err(err).Msg(fmt.Sprintf("Failed to publish %s task for submission %d", taskType, newSub.ID))
			return nil, model.ErrCommon500
		}
	}

	actor := "anonymous-submitter"
	if data.AuthorName != nil && *data.AuthorName != "" {
		actor = *data.AuthorName
	}
	c.auditQuiet(ctx, actor, "submission-created", "submission", newSub.ID, map[string]any{"issueId": issue.ID, "title": data.Title})

	return newSub, nil
}

func (c SubmissionService) resolveIssue(ctx context.Context, data *model.SubmissionCreateData, adminRequest bool) (*model.Issue, error) {
	logger := mwlogger.LoggerFromContext(ctx)

	if adminRequest && data.IssueID > 0 {
		issue, err := c.repo.GetIssue(ctx, data.IssueID)
		if err != nil {
			if errors.Is(err, model.ErrIssueNotFound) {
				return nil, err
			}
			logger.Error().Err(err).Msg("Failed to fetch issue from DB")
			return nil, model.ErrCommon500
		}
		return issue, nil
	}

	if data.PortalToken == "" {
		return nil, model.ErrPortalRequired
	}

	issue, err := c.repo.GetPortalIssue(ctx, data.PortalToken)
	if err != nil {
		if errors.Is(err, model.ErrPortalNotFound) {
			return nil, err
		}
		logger.Error().Err(err).Msg("Failed to fetch portal issue from DB")
		return nil, model.ErrCommon500
	}

	if data.IssueID > 0 && data.IssueID != issue.ID {
		return nil, model.ErrIssueMismatch
	}

	if issue.SubmissionDeadline != nil && issue.SubmissionDeadline.Before(time.Now().UTC()) {
		return nil, model.ErrDeadlinePassed
	}

	return issue, nil
}

func (c SubmissionService) GetSubmission(ctx context.Context, id int64) (*model.Submission, error) {
	logger := mwlogger.LoggerFromContext(ctx)

	sub, err := c.repo.GetSubmission(ctx, id)
	if err != nil {
		if errors.Is(err, model.ErrSubmissionNotFound) {
			return nil, err
		}
		logger.Error().Err(err).Msg(fmt.Sprintf("Failed to fetch submission %d from DB", id))
		return nil, model.ErrCommon500
	}

	if sub.Images, err = c.repo.ListImages(ctx, id); err != nil {
		logger.Error().Err(err).Msg(fmt.Sprintf("Failed to fetch images of submission %d from DB", id))
		return nil, model.ErrCommon500
	}

	if sub.Moderation, err = c.repo.ListModerationResults(ctx, id); err != nil {
		logger.Error().Err(err).Msg(fmt.Sprintf("Failed to fetch moderation history of submission %d from DB", id))
		return nil, model.ErrCommon500
	}

	return sub, nil
}

func (c SubmissionService) ListSubmissions(ctx context.Context, req *model.ListRequest) ([]model.Submission, error) {
	logger := mwlogger.LoggerFromContext(ctx)

	if err := validateQueryParams(req); err != nil {
		return nil, err
	}

	res, err := c.repo.ListSubmissions(ctx, req)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to fetch submissions list from DB")
		return nil, model.ErrCommon500
	}

	return res, nil
}

// Review owns the lifecycle status only; moderation status belongs to the pipeline
func (c SubmissionService) Review(ctx context.Context, id int64, reviewer string, decision *model.ReviewDecision) (*model.Submission, error) {
	logger := mwlogger.LoggerFromContext(ctx)

	if !model.StatusMap[decision.Status] || decision.Status == model.StatusPending {
		return nil, model.ErrIncorrectStatus
	}

	if _, err := c.repo.GetSubmission(ctx, id); err != nil {
		if errors.Is(err, model.ErrSubmissionNotFound) {
			return nil, err
		}
		logger.Error().Err(err).Msg(fmt.Sprintf("Failed to fetch submission %d from DB", id))
		return nil, model.ErrCommon500
	}

	if err := c.repo.UpdateSubmissionStatus(ctx, id, decision.Status); err != nil {
		logger.Error().Err(err).Msg(fmt.Sprintf("Failed to update status of submission %d", id))
		return nil, model.ErrCommon500
	}

	c.auditQuiet(ctx, reviewer, "submission-reviewed", "submission", id, map[string]any{"status": decision.Status, "notes": decision.Notes})

	return c.GetSubmission(ctx, id)
}

func (c SubmissionService) Vote(ctx context.Context, id int64, voterIP string) (*model.VoteResult, error) {
	logger := mwlogger.LoggerFromContext(ctx)

	if voterIP == "" {
		return nil, model.ErrNoClientIP
	}

	sub, err := c.repo.GetSubmission(ctx, id)
	if err != nil {
		if errors.Is(err, model.ErrSubmissionNotFound) {
			return nil, err
		}
		logger.Error().Err(err).Msg(fmt.Sprintf("Failed to fetch submission %d from DB", id))
		return nil, model.ErrCommon500
	}

	issue, err := c.repo.GetIssue(ctx, sub.IssueID)
	if err != nil {
		logger.Error().Err(err).Msg(fmt.Sprintf("Failed to fetch issue %d from DB", sub.IssueID))
		return nil, model.ErrCommon500
	}

	// voting opens once the submission window closes
	if issue.SubmissionDeadline == nil {
		return nil, model.ErrVotingUnsupported
	}
	if issue.SubmissionDeadline.After(time.Now().UTC()) {
		return nil, model.ErrVotingNotOpen
	}

	if sub.Status != model.StatusApproved && sub.Status != model.StatusPublished {
		return nil, model.ErrNotEligibleForVote
	}

	voted, err := c.repo.HasVoted(ctx, id, voterIP)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to check existing vote in DB")
		return nil, model.ErrCommon500
	}
	if voted {
		return nil, model.ErrAlreadyVoted
	}

	used, err := c.repo.CountIPVotesForIssue(ctx, issue.ID, voterIP)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to count issue votes in DB")
		return nil, model.ErrCommon500
	}
	if used >= c.policy.VotesPerIssue {
		return nil, model.ErrVoteLimitReached
	}

	if err := c.repo.InsertVote(ctx, id, voterIP); err != nil {
		if errors.Is(err, model.ErrAlreadyVoted) {
			return nil, err
		}
		logger.Error().Err(err).Msg("Failed to insert vote in DB")
		return nil, model.ErrCommon500
	}

	total, err := c.repo.CountVotes(ctx, id)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to count submission votes in DB")
		return nil, model.ErrCommon500
	}

	remaining := c.policy.VotesPerIssue - (used + 1)
	if remaining < 0 {
		remaining = 0
	}

	return &model.VoteResult{SubmissionID: id, Votes: total, RemainingVotes: remaining}, nil
}

// RecomputeModeration re-derives the cached aggregate from the latest stored
// result per image, without re-calling the provider
func (c SubmissionService) RecomputeModeration(ctx context.Context, id int64, actor string) (*model.Submission, error) {
	logger := mwlogger.LoggerFromContext(ctx)

	if _, err := c.repo.GetSubmission(ctx, id); err != nil {
		if errors.Is(err, model.ErrSubmissionNotFound) {
			return nil, err
		}
		logger.Error().Err(err).Msg(fmt.Sprintf("Failed to fetch submission %d from DB", id))
		return nil, model.ErrCommon500
	}

	latest, err := c.repo.LatestModerationResults(ctx, id)
	if err != nil {
		logger.Error().Err(err).Msg(fmt.Sprintf("Failed to fetch latest moderation results of submission %d", id))
		return nil, model.ErrCommon500
	}

	verdicts := make([]string, 0, len(latest))
	var reasons []string
	for _, r := range latest {
		verdicts = append(verdicts, r.Verdict)
		reasons = append(reasons, r.Reasons...)
	}

	aggregate := moderation.Aggregate(verdicts)
	summary := moderation.Summary(aggregate, reasons)

	if err := c.repo.UpdateSubmissionModeration(ctx, id, aggregate, summary); err != nil {
		logger.Error().Err(err).Msg(fmt.Sprintf("Failed to save recomputed moderation of submission %d", id))
		return nil, model.ErrCommon500
	}

	c.auditQuiet(ctx, actor, "submission-moderation-recomputed", "submission", id, map[string]any{"status": aggregate, "summary": summary})

	return c.GetSubmission(ctx, id)
}

func (c SubmissionService) ListRecentAudit(ctx context.Context, limit int) ([]model.AuditEntry, error) {
	logger := mwlogger.LoggerFromContext(ctx)

	if limit <= 0 || limit > 200 {
		limit = 50
	}

	entries, err := c.repo.ListRecentAudit(ctx, limit)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to fetch audit log from DB")
		return nil, model.ErrCommon500
	}
	return entries, nil
}

// ReviveStalePending re-enqueues the pipeline for submissions stuck in
// moderation `pending` - covers messages lost between DB commit and queue
// publish. Both task types go out again: thumbnail generation is
// deterministic on the source key, so a rerun only overwrites its own output.
func (c SubmissionService) ReviveStalePending(ctx context.Context, limit int) {
	logger := mwlogger.LoggerFromContext(ctx)

	stale, err := c.repo.FetchStalePending(ctx, limit)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to load stale submissions from DB")
		return
	}

	for _, id := range stale {
		for _, taskType := range []model.TaskType{model.TaskGenerateThumbnails, model.TaskContentModeration} {
			if err := c.publishTask(ctx, taskType, id); err != nil {
				logger.Error().Err(err).Msg(fmt.Sprintf("Failed to re-publish %s task for submission %d", taskType, id))
			}
		}
	}
}

func (c SubmissionService) publishTask(ctx context.Context, taskType model.TaskType, submissionID int64) error {
	payload, err := model.EncodeTask(model.Task{Type: taskType, SubmissionID: submissionID})
	if err != nil {
		return err
	}
	key := []byte(strconv.FormatInt(submissionID, 10))
	return c.publisher.SendWithRetry(ctx, retryStrategy, key, payload)
}

// auditQuiet - audit trouble is logged, never surfaced to the caller
func (c SubmissionService) auditQuiet(ctx context.Context, actor, action, entity string, entityID int64, payload any) {
	logger := mwlogger.LoggerFromContext(ctx)

	raw, err := json.Marshal(payload)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to marshal audit payload")
		return
	}

	idStr := strconv.FormatInt(entityID, 10)
	if err := c.repo.AppendAudit(ctx, &model.AuditEntry{
		Actor:    actor,
		Action:   action,
		Entity:   entity,
		EntityID: &idStr,
		Payload:  raw,
	}); err != nil {
		logger.Error().Err(err).Msg(fmt.Sprintf("Failed to append audit entry %q", action))
	}
}
