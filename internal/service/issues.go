package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/UnendingLoop/FilmWeekly/internal/model"
	"github.com/UnendingLoop/FilmWeekly/internal/mwlogger"
	"github.com/google/uuid"
)

func (c SubmissionService) CreateIssue(ctx context.Context, data *model.IssueCreateData, actor string) (*model.Issue, error) {
	logger := mwlogger.LoggerFromContext(ctx)

	if err := validateIssueInput(data); err != nil {
		return nil, err
	}

	issue := &model.Issue{
		Slug:               strings.ToLower(strings.TrimSpace(data.Slug)),
		Title:              data.Title,
		Guidance:           data.Guidance,
		Summary:            data.Summary,
		Status:             model.IssueDraft,
		PublishAt:          data.PublishAt,
		SubmissionDeadline: data.SubmissionDeadline,
	}

	if err := c.repo.CreateIssue(ctx, issue); err != nil {
		if errors.Is(err, model.ErrSlugTaken) {
			return nil, err
		}
		logger.Error().Err(err).Msg("Failed to create issue in DB")
		return nil, model.ErrCommon500
	}

	// every issue gets a portal token right away
	token, err := c.repo.EnsurePortal(ctx, issue.ID, uuid.NewString())
	if err != nil {
		logger.Error().Err(err).Msg(fmt.Sprintf("Failed to ensure portal for issue %d", issue.ID))
		return nil, model.ErrCommon500
	}
	issue.PortalToken = token

	c.auditQuiet(ctx, actor, "issue-created", "issue", issue.ID, map[string]any{"slug": issue.Slug, "title": issue.Title})

	return issue, nil
}

func (c SubmissionService) ListIssues(ctx context.Context) ([]model.Issue, error) {
	logger := mwlogger.LoggerFromContext(ctx)

	issues, err := c.repo.ListIssues(ctx)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to fetch issues list from DB")
		return nil, model.ErrCommon500
	}
	return issues, nil
}

// GetIssuePortal returns the issue with its portal token, minting the token
// if an older issue predates portals
func (c SubmissionService) GetIssuePortal(ctx context.Context, issueID int64) (*model.Issue, error) {
	logger := mwlogger.LoggerFromContext(ctx)

	issue, err := c.repo.GetIssue(ctx, issueID)
	if err != nil {
		if errors.Is(err, model.ErrIssueNotFound) {
			return nil, err
		}
		logger.Error().Err(err).Msg(fmt.Sprintf("Failed to fetch issue %d from DB", issueID))
		return nil, model.ErrCommon500
	}

	token, err := c.repo.EnsurePortal(ctx, issueID, uuid.NewString())
	if err != nil {
		logger.Error().Err(err).Msg(fmt.Sprintf("Failed to ensure portal for issue %d", issueID))
		return nil, model.ErrCommon500
	}
	issue.PortalToken = token

	return issue, nil
}
