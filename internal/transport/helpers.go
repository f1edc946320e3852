package transport

import (
	"crypto/subtle"
	"errors"
	"io"
	"log"
	"net"
	"strconv"
	"strings"

	"github.com/UnendingLoop/FilmWeekly/internal/model"
	"github.com/wb-go/wbf/ginext"
)

func errorCodeDefiner(err error) int {
	switch {
	case errors.Is(err, model.ErrCommon500):
		return 500
	case errors.Is(err, model.ErrSubmissionNotFound),
		errors.Is(err, model.ErrIssueNotFound),
		errors.Is(err, model.ErrPortalNotFound):
		return 404
	case errors.Is(err, model.ErrAlreadyVoted),
		errors.Is(err, model.ErrSlugTaken):
		return 409
	case errors.Is(err, model.ErrPortalRequired),
		errors.Is(err, model.ErrDeadlinePassed),
		errors.Is(err, model.ErrVotingNotOpen),
		errors.Is(err, model.ErrNotEligibleForVote),
		errors.Is(err, model.ErrVoteLimitReached):
		return 403
	case errors.Is(err, model.ErrIncorrectQuery),
		errors.Is(err, model.ErrIncorrectID),
		errors.Is(err, model.ErrIssueMismatch),
		errors.Is(err, model.ErrEmptyTitle),
		errors.Is(err, model.ErrNoImages),
		errors.Is(err, model.ErrTooManyImages),
		errors.Is(err, model.ErrEmptySource),
		errors.Is(err, model.ErrIncorrectStatus),
		errors.Is(err, model.ErrVotingUnsupported),
		errors.Is(err, model.ErrNoClientIP):
		return 400
	default:
		return 500
	}
}

func closeFileFlow(res io.ReadCloser) {
	if res == nil {
		return
	}
	if err := res.Close(); err != nil {
		log.Println("Handler failed to close fileflow:", err)
	}
}

func optionalForm(ctx *ginext.Context, field string) *string {
	if val := ctx.PostForm(field); val != "" {
		return &val
	}
	return nil
}

func parseID(ctx *ginext.Context) (int64, bool) {
	id, err := strconv.ParseInt(ctx.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		ctx.JSON(400, map[string]string{"error": model.ErrIncorrectID.Error()})
		return 0, false
	}
	return id, true
}

// bearerToken pulls the token out of the Authorization header
func bearerToken(ctx *ginext.Context) string {
	auth := ctx.Request.Header.Get("Authorization")
	const prefix = "Bearer "
	if !strings.HasPrefix(auth, prefix) {
		return ""
	}
	return strings.TrimSpace(auth[len(prefix):])
}

func (h SubmissionHandler) isAdmin(ctx *ginext.Context) bool {
	if h.adminToken == "" {
		return false
	}
	token := bearerToken(ctx)
	return token != "" && subtle.ConstantTimeCompare([]byte(token), []byte(h.adminToken)) == 1
}

func (h SubmissionHandler) requireAdmin(ctx *ginext.Context) bool {
	if !h.isAdmin(ctx) {
		ctx.JSON(401, map[string]string{"error": "admin token required"})
		return false
	}
	return true
}

// actorFrom names the admin for the audit trail; the token itself never
// identifies a person
func actorFrom(ctx *ginext.Context) string {
	if actor := ctx.Request.Header.Get("X-Admin-Actor"); actor != "" {
		return actor
	}
	return "admin"
}

func clientIP(ctx *ginext.Context) string {
	if fwd := ctx.Request.Header.Get("X-Forwarded-For"); fwd != "" {
		parts := strings.Split(fwd, ",")
		return strings.TrimSpace(parts[0])
	}
	if real := ctx.Request.Header.Get("X-Real-Ip"); real != "" {
		return real
	}
	host, _, err := net.SplitHostPort(ctx.Request.RemoteAddr)
	if err != nil {
		return ctx.Request.RemoteAddr
	}
	return host
}
