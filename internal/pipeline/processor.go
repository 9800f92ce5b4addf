// Package pipeline implements the parallel fetch-and-enrich core: an item
// processor that anonymizes and scores one post with its comments, and an
// orchestrator that fans candidates out across a bounded worker pool and
// collects results as they complete.
package pipeline

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/redlake/redlake/internal/logging"
	"github.com/redlake/redlake/internal/model"
)

const (
	// maxCommentsPerPost is a hard cap on comment records per post.
	maxCommentsPerPost = 5

	// commentFetchWindow bounds the single comment page requested per post.
	// Wider than the cap so removed comments in the head of the thread do
	// not starve the batch.
	commentFetchWindow = 20
)

// Cleaner redacts PII from text.
type Cleaner interface {
	Clean(ctx context.Context, text string) string
}

// Scorer computes a polarity score in [-1, 1].
type Scorer interface {
	Score(text string) float64
}

// Source lists candidates and expands their comments.
type Source interface {
	Available() bool
	ListTop(ctx context.Context, subreddit, window string, limit int) ([]model.Candidate, error)
	Comments(ctx context.Context, subreddit, postID string, max int) ([]model.Comment, error)
}

// Processor turns one raw candidate into an anonymized post record plus up
// to maxCommentsPerPost comment records. Failures are isolated per item.
type Processor struct {
	source  Source
	cleaner Cleaner
	scorer  Scorer

	// now is swappable for tests.
	now func() time.Time
}

// NewProcessor builds a Processor from explicit dependencies.
func NewProcessor(source Source, cleaner Cleaner, scorer Scorer) *Processor {
	return &Processor{
		source:  source,
		cleaner: cleaner,
		scorer:  scorer,
		now:     time.Now,
	}
}

// Process enriches a single candidate. A removed or deleted post yields
// (nil, nil, nil) without any comment expansion. Comment expansion failures
// degrade to zero comments. Any panic is recovered and returned as the
// item's error; one bad item never corrupts the batch.
func (p *Processor) Process(ctx context.Context, cand model.Candidate) (post *model.PostRecord, comments []model.CommentRecord, err error) {
	defer func() {
		if r := recover(); r != nil {
			post, comments = nil, nil
			err = fmt.Errorf("process %s: panic: %v", cand.ID, r)
		}
	}()

	if isRemoved(cand.Selftext) {
		return nil, nil, nil
	}

	cleanTitle := p.cleaner.Clean(ctx, cand.Title)
	cleanBody := p.cleaner.Clean(ctx, cand.Selftext)

	// One score over the concatenation is the post's sentiment; comments are
	// scored independently below, never inherited.
	fullText := cleanTitle + " . " + cleanBody
	fetchedAt := p.now().UTC().Format(time.RFC3339)

	post = &model.PostRecord{
		PostID:         cand.ID,
		Title:          cleanTitle,
		Body:           cleanBody,
		Subreddit:      cand.Subreddit,
		AuthorHash:     hashAuthor(cand.Author),
		CreatedUTC:     cand.CreatedUTC.UTC().Format(time.RFC3339),
		Score:          cand.Score,
		NumComments:    cand.NumComments,
		Permalink:      cand.Permalink,
		SentimentScore: p.scorer.Score(fullText),
		FetchedAt:      fetchedAt,
	}

	raw, cerr := p.source.Comments(ctx, cand.Subreddit, cand.ID, commentFetchWindow)
	if cerr != nil {
		// Partial result: the post stands, with zero comments.
		logging.Warn("comment expansion failed", "post", cand.ID, "error", cerr)
		return post, nil, nil
	}

	for _, c := range raw {
		if c.Body == "" || isRemoved(c.Body) {
			continue
		}
		cleanComment := p.cleaner.Clean(ctx, c.Body)
		comments = append(comments, model.CommentRecord{
			CommentID:      c.ID,
			PostID:         cand.ID,
			Body:           cleanComment,
			Score:          c.Score,
			AuthorHash:     hashAuthor(c.Author),
			CreatedUTC:     c.CreatedUTC.UTC().Format(time.RFC3339),
			SentimentScore: p.scorer.Score(cleanComment),
			FetchedAt:      fetchedAt,
		})
		if len(comments) >= maxCommentsPerPost {
			break
		}
	}

	return post, comments, nil
}

// isRemoved reports whether a body marks the item as scrubbed by the source.
func isRemoved(body string) bool {
	switch strings.ToLower(strings.TrimSpace(body)) {
	case "[removed]", "[deleted]":
		return true
	}
	return false
}

// hashAuthor returns the irreversible author identifier, or "" when the
// author account is gone.
func hashAuthor(author string) string {
	if author == "" || author == "[deleted]" {
		return ""
	}
	sum := sha256.Sum256([]byte(author))
	return hex.EncodeToString(sum[:])
}
