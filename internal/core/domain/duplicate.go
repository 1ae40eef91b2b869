package domain

// DuplicateTarget is the record under review.
type DuplicateTarget struct {
	ID       string
	RawError string
}

// CandidateProjection is the minimal read-only view of a stored error used
// for duplicate comparison. A missing raw error is carried as "".
type CandidateProjection struct {
	ID       string      `json:"id"`
	RawError string      `json:"rawError"`
	Status   ErrorStatus `json:"status"`
}

// MatchResult is produced per lookup and never persisted.
type MatchResult struct {
	ID     string      `json:"id"`
	Score  float64     `json:"score"`
	Status ErrorStatus `json:"status"`
}
