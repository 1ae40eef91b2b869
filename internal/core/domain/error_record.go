package domain

import (
	"strings"
	"time"
)

type ErrorStatus string

const (
	StatusUnpublished ErrorStatus = "UNPUBLISHED"
	StatusPublished   ErrorStatus = "PUBLISHED"
	StatusRejected    ErrorStatus = "REJECTED"
)

// ParseErrorStatus accepts the canonical upper-case names only.
func ParseErrorStatus(raw string) (ErrorStatus, bool) {
	switch ErrorStatus(strings.TrimSpace(raw)) {
	case StatusUnpublished:
		return StatusUnpublished, true
	case StatusPublished:
		return StatusPublished, true
	case StatusRejected:
		return StatusRejected, true
	default:
		return "", false
	}
}

// Solution is the drafted or editor-curated fix attached to an error.
type Solution struct {
	Title       string   `json:"title"`
	Explanation string   `json:"explanation"`
	RootCause   string   `json:"rootCause"`
	Steps       []string `json:"steps"`
	FixedCode   string   `json:"fixedCode"`
	Prevention  string   `json:"prevention"`
}

func (s Solution) IsDrafted() bool {
	return strings.TrimSpace(s.Title) != ""
}

type ErrorRecord struct {
	ID              string      `json:"id"`
	RawError        string      `json:"rawError"`
	NormalizedError string      `json:"normalizedError"`
	Hash            string      `json:"hash"`
	Language        string      `json:"language,omitempty"`
	Solution        Solution    `json:"solution"`
	Status          ErrorStatus `json:"status"`
	FormattedSlug   string      `json:"formattedSlug,omitempty"`
	PublishedAt     *time.Time  `json:"publishedAt,omitempty"`
	CreatedAt       time.Time   `json:"createdAt"`
	UpdatedAt       time.Time   `json:"updatedAt"`
}

// ReviewCommand is the editor's save/publish/reject request.
type ReviewCommand struct {
	ID          string
	Title       string
	Explanation string
	RootCause   string
	FixedCode   string
	Prevention  string
	Status      string
}

// ReviewUpdate is what the store writes for a review. Slug and PublishedAt
// are only set on publish; nil keeps the stored value.
type ReviewUpdate struct {
	Title         string
	Explanation   string
	RootCause     string
	FixedCode     string
	Prevention    string
	Status        ErrorStatus
	FormattedSlug *string
	PublishedAt   *time.Time
	UpdatedAt     time.Time
}

// ReviewPage is the review screen payload: the record and, when one clears
// the threshold, its most likely duplicate.
type ReviewPage struct {
	Error     *ErrorRecord `json:"error"`
	Duplicate *MatchResult `json:"duplicate"`
}

type StatusCounts struct {
	Total     int64
	Pending   int64
	Published int64
	Today     int64
}

type DashboardStats struct {
	TotalErrors     int64         `json:"totalErrors"`
	PendingErrors   int64         `json:"pendingErrors"`
	PublishedErrors int64         `json:"publishedErrors"`
	TodayErrors     int64         `json:"todayErrors"`
	RecentActivity  []ErrorRecord `json:"recentActivity"`
}
