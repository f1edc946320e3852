// Package transport provides methods for processing requests from endpoints
package transport

import (
	"context"
	"encoding/json"
	"strconv"

	"github.com/UnendingLoop/FilmWeekly/internal/model"
	"github.com/wb-go/wbf/ginext"
)

// multipart parse ceiling; individual image size is bounded by the form
const maxUploadMemory = 64 << 20

type SubmissionHandler struct {
	service    SubmissionService
	adminToken string
}

type SubmissionService interface {
	CreateSubmission(ctx context.Context, data *model.SubmissionCreateData, adminRequest bool) (*model.Submission, error)
	GetSubmission(ctx context.Context, id int64) (*model.Submission, error)
	ListSubmissions(ctx context.Context, req *model.ListRequest) ([]model.Submission, error)
	Review(ctx context.Context, id int64, reviewer string, decision *model.ReviewDecision) (*model.Submission, error)
	Vote(ctx context.Context, id int64, voterIP string) (*model.VoteResult, error)
	RecomputeModeration(ctx context.Context, id int64, actor string) (*model.Submission, error)
	CreateIssue(ctx context.Context, data *model.IssueCreateData, actor string) (*model.Issue, error)
	ListIssues(ctx context.Context) ([]model.Issue, error)
	GetIssuePortal(ctx context.Context, issueID int64) (*model.Issue, error)
	ListRecentAudit(ctx context.Context, limit int) ([]model.AuditEntry, error)
}

func NewSubmissionHandler(svc SubmissionService, adminToken string) *SubmissionHandler {
	return &SubmissionHandler{
		service:    svc,
		adminToken: adminToken,
	}
}

func (h SubmissionHandler) SimplePinger(ctx *ginext.Context) {
	ctx.JSON(200, map[string]string{"message": "pong"})
}

func (h SubmissionHandler) Create(ctx *ginext.Context) {
	admin := h.isAdmin(ctx)

	if err := ctx.Request.ParseMultipartForm(maxUploadMemory); err != nil {
		ctx.JSON(400, map[string]string{"error": "multipart form is required"})
		return
	}

	var data model.SubmissionCreateData
	data.PortalToken = ctx.PostForm("portalToken")
	data.Title = ctx.PostForm("title")
	data.AuthorName = optionalForm(ctx, "authorName")
	data.AuthorContact = optionalForm(ctx, "authorContact")
	data.Location = optionalForm(ctx, "location")
	data.ShotAt = optionalForm(ctx, "shotAt")
	data.Equipment = optionalForm(ctx, "equipment")
	data.Description = optionalForm(ctx, "description")

	if idStr := ctx.PostForm("issueId"); idStr != "" {
		id, err := strconv.ParseInt(idStr, 10, 64)
		if err != nil || id <= 0 {
			ctx.JSON(400, map[string]string{"error": model.ErrIncorrectID.Error()})
			return
		}
		data.IssueID = id
	}

	for _, header := range ctx.Request.MultipartForm.File["images"] {
		file, err := header.Open()
		if err != nil {
			ctx.JSON(400, map[string]string{"error": model.ErrEmptySource.Error()})
			return
		}
		defer closeFileFlow(file)

		data.Images = append(data.Images, model.ImageUpload{
			File:        file,
			Filename:    header.Filename,
			ContentType: header.Header.Get("Content-Type"),
			Size:        header.Size,
		})
	}

	res, err := h.service.CreateSubmission(ctx.Request.Context(), &data, admin)
	if err != nil {
		ctx.JSON(errorCodeDefiner(err), map[string]string{"error": err.Error()})
		return
	}

	ctx.JSON(201, res)
}

func (h SubmissionHandler) GetSubmission(ctx *ginext.Context) {
	id, ok := parseID(ctx)
	if !ok {
		return
	}

	res, err := h.service.GetSubmission(ctx.Request.Context(), id)
	if err != nil {
		ctx.JSON(errorCodeDefiner(err), map[string]string{"error": err.Error()})
		return
	}

	ctx.JSON(200, res)
}

func (h SubmissionHandler) ListSubmissions(ctx *ginext.Context) {
	if !h.requireAdmin(ctx) {
		return
	}

	var req model.ListRequest
	if err := ctx.ShouldBindQuery(&req); err != nil {
		ctx.JSON(400, map[string]string{"error": "failed to parse query-params"})
		return
	}

	res, err := h.service.ListSubmissions(ctx.Request.Context(), &req)
	if err != nil {
		ctx.JSON(errorCodeDefiner(err), map[string]string{"error": err.Error()})
		return
	}

	ctx.JSON(200, res)
}

func (h SubmissionHandler) Review(ctx *ginext.Context) {
	if !h.requireAdmin(ctx) {
		return
	}
	id, ok := parseID(ctx)
	if !ok {
		return
	}

	var decision model.ReviewDecision
	if err := json.NewDecoder(ctx.Request.Body).Decode(&decision); err != nil {
		ctx.JSON(400, map[string]string{"error": "failed to parse request body"})
		return
	}

	res, err := h.service.Review(ctx.Request.Context(), id, actorFrom(ctx), &decision)
	if err != nil {
		ctx.JSON(errorCodeDefiner(err), map[string]string{"error": err.Error()})
		return
	}

	ctx.JSON(200, res)
}

func (h SubmissionHandler) Vote(ctx *ginext.Context) {
	id, ok := parseID(ctx)
	if !ok {
		return
	}

	res, err := h.service.Vote(ctx.Request.Context(), id, clientIP(ctx))
	if err != nil {
		ctx.JSON(errorCodeDefiner(err), map[string]string{"error": err.Error()})
		return
	}

	ctx.JSON(201, res)
}

func (h SubmissionHandler) RecomputeModeration(ctx *ginext.Context) {
	if !h.requireAdmin(ctx) {
		return
	}
	id, ok := parseID(ctx)
	if !ok {
		return
	}

	res, err := h.service.RecomputeModeration(ctx.Request.Context(), id, actorFrom(ctx))
	if err != nil {
		ctx.JSON(errorCodeDefiner(err), map[string]string{"error": err.Error()})
		return
	}

	ctx.JSON(200, res)
}

func (h SubmissionHandler) CreateIssue(ctx *ginext.Context) {
	if !h.requireAdmin(ctx) {
		return
	}

	var data model.IssueCreateData
	if err := json.NewDecoder(ctx.Request.Body).Decode(&data); err != nil {
		ctx.JSON(400, map[string]string{"error": "failed to parse request body"})
		return
	}

	res, err := h.service.CreateIssue(ctx.Request.Context(), &data, actorFrom(ctx))
	if err != nil {
		ctx.JSON(errorCodeDefiner(err), map[string]string{"error": err.Error()})
		return
	}

	ctx.JSON(201, res)
}

func (h SubmissionHandler) ListIssues(ctx *ginext.Context) {
	if !h.requireAdmin(ctx) {
		return
	}

	res, err := h.service.ListIssues(ctx.Request.Context())
	if err != nil {
		ctx.JSON(errorCodeDefiner(err), map[string]string{"error": err.Error()})
		return
	}

	ctx.JSON(200, res)
}

func (h SubmissionHandler) GetIssuePortal(ctx *ginext.Context) {
	if !h.requireAdmin(ctx) {
		return
	}
	id, ok := parseID(ctx)
	if !ok {
		return
	}

	res, err := h.service.GetIssuePortal(ctx.Request.Context(), id)
	if err != nil {
		ctx.JSON(errorCodeDefiner(err), map[string]string{"error": err.Error()})
		return
	}

	ctx.JSON(200, res)
}

func (h SubmissionHandler) ListAudit(ctx *ginext.Context) {
	if !h.requireAdmin(ctx) {
		return
	}

	limit := 0
	if limitStr := ctx.Request.URL.Query().Get("limit"); limitStr != "" {
		val, err := strconv.Atoi(limitStr)
		if err != nil {
			ctx.JSON(400, map[string]string{"error": model.ErrIncorrectQuery.Error()})
			return
		}
		limit = val
	}

	res, err := h.service.ListRecentAudit(ctx.Request.Context(), limit)
	if err != nil {
		ctx.JSON(errorCodeDefiner(err), map[string]string{"error": err.Error()})
		return
	}

	ctx.JSON(200, res)
}
