// Package model defines the records that flow through the redlake pipeline:
// raw candidates from the content source, the anonymized post/comment
// records staged for the warehouse, and the per-cycle aggregate.
package model

import (
	"fmt"
	"time"
)

// Candidate is a raw post handle from the content source. It lives only for
// the duration of one fetch cycle and is never persisted.
type Candidate struct {
	ID          string
	Title       string
	Selftext    string
	Author      string
	Subreddit   string
	Permalink   string
	Score       int
	NumComments int
	CreatedUTC  time.Time
}

// Comment is a raw comment handle belonging to a Candidate.
type Comment struct {
	ID         string
	Body       string
	Author     string
	Score      int
	CreatedUTC time.Time
}

// PostRecord is an anonymized, sentiment-scored post ready for staging.
// It is never mutated after the processor builds it.
type PostRecord struct {
	PostID         string  `json:"post_id"`
	Title          string  `json:"title"`
	Body           string  `json:"body"`
	Subreddit      string  `json:"subreddit"`
	AuthorHash     string  `json:"author_hash,omitempty"`
	CreatedUTC     string  `json:"created_utc"`
	Score          int     `json:"score"`
	NumComments    int     `json:"num_comments"`
	Permalink      string  `json:"permalink"`
	SentimentScore float64 `json:"sentiment_score"`
	FetchedAt      string  `json:"fetched_at"`
}

// CommentRecord is an anonymized, sentiment-scored comment. PostID references
// the parent post but is not enforced as a foreign key; the parent may have
// been filtered out of the same batch.
type CommentRecord struct {
	CommentID      string  `json:"comment_id"`
	PostID         string  `json:"post_id"`
	Body           string  `json:"body"`
	Score          int     `json:"score"`
	AuthorHash     string  `json:"author_hash,omitempty"`
	CreatedUTC     string  `json:"created_utc"`
	SentimentScore float64 `json:"sentiment_score"`
	FetchedAt      string  `json:"fetched_at"`
}

// FetchResult aggregates one fetch cycle. Posts are in completion order of
// the concurrent workers, not listing order. MinCreated/MaxCreated are nil
// when no post was accepted.
type FetchResult struct {
	Posts      []PostRecord
	Comments   []CommentRecord
	MinCreated *time.Time
	MaxCreated *time.Time
}

// DateRange renders the effective date coverage of the batch, or "N/A to N/A"
// when the cycle accepted no posts.
func (r FetchResult) DateRange() string {
	return fmt.Sprintf("%s to %s", formatDay(r.MinCreated), formatDay(r.MaxCreated))
}

func formatDay(t *time.Time) string {
	if t == nil {
		return "N/A"
	}
	return t.Format("2006-01-02")
}

// PipelineRunEntry is one immutable provenance row describing a single
// archiving cycle for one (source prefix, target table) pair.
type PipelineRunEntry struct {
	EntryID      string `json:"entry_id"`
	RunID        string `json:"run_id"`
	Timestamp    string `json:"timestamp"`
	SourcePrefix string `json:"source_prefix"`
	TargetTable  string `json:"target_table"`
	FileCount    int    `json:"file_count"`
	Checksum     string `json:"checksum,omitempty"`
	Status       string `json:"status"`
}

// Provenance status values. ERROR rows carry the truncated failure message
// appended after a colon.
const (
	RunSuccess = "SUCCESS"
	RunNoFiles = "NO_FILES"
	RunError   = "ERROR"
)
