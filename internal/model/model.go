// Package model provides data-structs for internal app-usage
package model

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"time"
)

type (
	Status           string
	ModerationStatus string
	IssueStatus      string
)

const (
	StatusPending       Status = "pending"
	StatusApproved      Status = "approved"
	StatusRejected      Status = "rejected"
	StatusNeedsRevision Status = "needs-revision"
	StatusPublished     Status = "published"
)

var StatusMap = map[Status]bool{
	StatusPending:       true,
	StatusApproved:      true,
	StatusRejected:      true,
	StatusNeedsRevision: true,
	StatusPublished:     true,
}

const (
	ModerationPending      ModerationStatus = "pending"
	ModerationApproved     ModerationStatus = "approved"
	ModerationManualReview ModerationStatus = "manual-review"
	ModerationRejected     ModerationStatus = "rejected"
)

const (
	IssueDraft     IssueStatus = "draft"
	IssueScheduled IssueStatus = "scheduled"
	IssuePublished IssueStatus = "published"
)

//---------------------

type TaskType string

const (
	TaskGenerateThumbnails TaskType = "generate-thumbnails"
	TaskContentModeration  TaskType = "content-moderation"
)

var TaskTypeMap = map[TaskType]bool{
	TaskGenerateThumbnails: true,
	TaskContentModeration:  true,
}

// Task - queue message envelope: one message per unit of async work tied to a submission
type Task struct {
	Type         TaskType `json:"type"`
	SubmissionID int64    `json:"submissionId"`
}

func EncodeTask(t Task) ([]byte, error) {
	return json.Marshal(t)
}

// DecodeTask validates the envelope: malformed shapes and unknown types must
// be dropped by the consumer, not retried
func DecodeTask(raw []byte) (Task, error) {
	var t Task
	if err := json.Unmarshal(raw, &t); err != nil {
		return t, fmt.Errorf("failed to unmarshal task envelope: %w", err)
	}
	if !TaskTypeMap[t.Type] {
		return t, fmt.Errorf("%w: %q", ErrUnknownTaskType, t.Type)
	}
	if t.SubmissionID <= 0 {
		return t, ErrIncorrectID
	}
	return t, nil
}

//---------------------

type Submission struct {
	ID                int64            `json:"id"`
	IssueID           int64            `json:"issue_id"`
	Title             string           `json:"title"`
	AuthorName        *string          `json:"author_name,omitempty"`
	AuthorContact     *string          `json:"author_contact,omitempty"`
	Location          *string          `json:"location,omitempty"`
	ShotAt            *string          `json:"shot_at,omitempty"`
	Equipment         *string          `json:"equipment,omitempty"`
	Description       *string          `json:"description,omitempty"`
	Status            Status           `json:"status"`
	ModerationStatus  ModerationStatus `json:"moderation_status"`
	ModerationSummary *string          `json:"moderation_summary,omitempty"`
	CreatedAt         time.Time        `json:"created_at"`
	UpdatedAt         time.Time        `json:"updated_at"`

	Images     []SubmissionImage  `json:"images,omitempty"`
	Moderation []ModerationResult `json:"moderation,omitempty"`
}

type SubmissionImage struct {
	ID           int64   `json:"id"`
	SubmissionID int64   `json:"submission_id"`
	Position     int     `json:"position"`
	SourceKey    string  `json:"-"`
	ThumbnailKey string  `json:"-"`
	OriginalName string  `json:"original_name"`
	Size         int64   `json:"size"`
	Width        *int    `json:"width,omitempty"`
	Height       *int    `json:"height,omitempty"`
	Metadata     *string `json:"metadata,omitempty"`
}

// ModerationResult - one row per moderation attempt of one image. Append-only:
// a retried task inserts new rows instead of mutating prior ones
type ModerationResult struct {
	ID           int64       `json:"id"`
	SubmissionID int64       `json:"submission_id"`
	ImageID      *int64      `json:"image_id,omitempty"`
	Provider     string      `json:"provider"`
	Verdict      string      `json:"verdict"`
	Score        *float64    `json:"score,omitempty"`
	Reasons      StringSlice `json:"reasons,omitempty"`
	RawResponse  []byte      `json:"raw_response,omitempty"`
	CreatedAt    time.Time   `json:"created_at"`
}

type AuditEntry struct {
	ID        int64     `json:"id"`
	Actor     string    `json:"actor"`
	Action    string    `json:"action"`
	Entity    string    `json:"entity"`
	EntityID  *string   `json:"entity_id,omitempty"`
	Payload   []byte    `json:"payload,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// SystemActor marks pipeline-originated audit entries
const SystemActor = "system"

type Issue struct {
	ID                 int64       `json:"id"`
	Slug               string      `json:"slug"`
	Title              string      `json:"title"`
	Guidance           string      `json:"guidance"`
	Summary            *string     `json:"summary,omitempty"`
	Status             IssueStatus `json:"status"`
	PublishAt          *time.Time  `json:"publish_at,omitempty"`
	SubmissionDeadline *time.Time  `json:"submission_deadline,omitempty"`
	PortalToken        string      `json:"portal_token,omitempty"`
	CreatedAt          time.Time   `json:"created_at"`
	UpdatedAt          time.Time   `json:"updated_at"`
}

//-------------------

type ListRequest struct {
	Page             int    `form:"page"`
	Limit            int    `form:"limit"`
	Status           string `form:"status"`
	ModerationStatus string `form:"moderationStatus"`
	IssueID          int64  `form:"issueId"`
}

type SubmissionCreateData struct {
	PortalToken   string
	IssueID       int64
	Title         string
	AuthorName    *string
	AuthorContact *string
	Location      *string
	ShotAt        *string
	Equipment     *string
	Description   *string
	Images        []ImageUpload
}

type ImageUpload struct {
	File        multipart.File
	Filename    string
	ContentType string
	Size        int64
}

type IssueCreateData struct {
	Slug               string     `json:"slug"`
	Title              string     `json:"title"`
	Guidance           string     `json:"guidance"`
	Summary            *string    `json:"summary,omitempty"`
	PublishAt          *time.Time `json:"publishAt,omitempty"`
	SubmissionDeadline *time.Time `json:"submissionDeadline,omitempty"`
}

type ReviewDecision struct {
	Status Status  `json:"status"`
	Notes  *string `json:"notes,omitempty"`
}

type VoteResult struct {
	SubmissionID   int64 `json:"submissionId"`
	Votes          int   `json:"votes"`
	RemainingVotes int   `json:"remainingVotes"`
}

// ------------------

var (
	ErrCommon500          error = errors.New("something went wrong. Try again later") // 500
	ErrIncorrectQuery     error = errors.New("incorrect query parameters")            // 400
	ErrIncorrectID        error = errors.New("incorrect identifier")                  // 400
	ErrSubmissionNotFound error = errors.New("specified submission doesn't exist")    // 404
	ErrIssueNotFound      error = errors.New("specified issue doesn't exist")         // 404
	ErrPortalNotFound     error = errors.New("portal token not found")                // 404
	ErrPortalRequired     error = errors.New("portal token is required")              // 403
	ErrIssueMismatch      error = errors.New("issue mismatch for provided portal")    // 400
	ErrDeadlinePassed     error = errors.New("submission window has closed")          // 403
	ErrEmptyTitle         error = errors.New("submission title is required")          // 400
	ErrNoImages           error = errors.New("at least one image is required")        // 400
	ErrTooManyImages      error = errors.New("too many images in one submission")     // 400
	ErrEmptySource        error = errors.New("empty/incorrect source image provided") // 400
	ErrIncorrectStatus    error = errors.New("incorrect status provided")             // 400
	ErrUnknownTaskType    error = errors.New("unknown task type")                     // dropped, not retried
	ErrObjectNotFound     error = errors.New("object is missing in storage")
	ErrVotingNotOpen      error = errors.New("voting is not yet available")           // 403
	ErrVotingUnsupported  error = errors.New("this issue does not support voting")    // 400
	ErrNotEligibleForVote error = errors.New("submission is not eligible for voting") // 403
	ErrAlreadyVoted       error = errors.New("you have already voted for it")         // 409
	ErrVoteLimitReached   error = errors.New("vote limit reached for this issue")     // 403
	ErrNoClientIP         error = errors.New("unable to determine client IP")         // 400
	ErrSlugTaken          error = errors.New("issue slug is already in use")          // 409
)

//--------------------

const (
	JPEG = "image/jpeg"
	PNG  = "image/png"
	GIF  = "image/gif"
	WEBP = "image/webp"

	BinaryCType = "application/octet-stream"
)

// DisplayableCTypes - formats a browser renders as-is; anything else gets
// normalized by the thumbnail pipeline
var DisplayableCTypes = map[string]bool{
	JPEG: true,
	PNG:  true,
	GIF:  true,
	WEBP: true,
}

// ThumbnailSuffix - thumbnail key is a deterministic function of the source
// key so a rerun always overwrites the same destination
const ThumbnailSuffix = ".thumbnail.jpg"

func ThumbnailKey(sourceKey string) string {
	return sourceKey + ThumbnailSuffix
}

//--------------------

type StringSlice []string

func (s *StringSlice) Scan(value any) error {
	if value == nil {
		*s = []string{}
		return nil
	}

	b, ok := value.([]byte)
	if !ok {
		return fmt.Errorf("invalid type for StringSlice")
	}

	if err := json.Unmarshal(b, s); err != nil {
		return fmt.Errorf("failed to unmarshal JSONB to []StringSlice: %w", err)
	}
	return nil
}

func (s StringSlice) Value() (driver.Value, error) {
	if len(s) == 0 || s == nil {
		return []byte(`[]`), nil
	}
	res, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal []StringSlice to JSONB: %w", err)
	}

	return res, nil
}
