package service

import (
	"strings"

	"github.com/UnendingLoop/FilmWeekly/internal/model"
)

func validateSubmissionInput(data *model.SubmissionCreateData, maxImages int) error {
	if strings.TrimSpace(data.Title) == "" {
		return model.ErrEmptyTitle
	}
	if len(data.Images) == 0 {
		return model.ErrNoImages
	}
	if len(data.Images) > maxImages {
		return model.ErrTooManyImages
	}
	for _, img := range data.Images {
		if img.File == nil || img.Size <= 0 || img.Filename == "" {
			return model.ErrEmptySource
		}
	}
	return nil
}

func validateQueryParams(req *model.ListRequest) error {
	if req.Page < 0 || req.Limit < 0 || req.Limit > 100 || req.IssueID < 0 {
		return model.ErrIncorrectQuery
	}
	if req.Page == 0 {
		req.Page = 1
	}
	if req.Limit == 0 {
		req.Limit = 20
	}
	if req.Status != "" && !model.StatusMap[model.Status(req.Status)] {
		return model.ErrIncorrectQuery
	}
	switch model.ModerationStatus(req.ModerationStatus) {
	case "", model.ModerationPending, model.ModerationApproved, model.ModerationManualReview, model.ModerationRejected:
	default:
		return model.ErrIncorrectQuery
	}
	return nil
}

func validateIssueInput(data *model.IssueCreateData) error {
	if strings.TrimSpace(data.Slug) == "" || strings.TrimSpace(data.Title) == "" {
		return model.ErrIncorrectQuery
	}
	if data.PublishAt != nil && data.SubmissionDeadline != nil && data.SubmissionDeadline.After(*data.PublishAt) {
		return model.ErrIncorrectQuery
	}
	return nil
}
