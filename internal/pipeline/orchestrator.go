package pipeline

import (
	"context"
	"sync"
	"time"

	"github.com/redlake/redlake/internal/logging"
	"github.com/redlake/redlake/internal/model"
)

// defaultWorkers balances network parallelism against the source's rate
// limits and CPU contention from redaction.
const defaultWorkers = 8

// Orchestrator runs one fetch cycle: list candidates, fan out to the
// processor across a fixed worker pool, fan in results as they complete.
type Orchestrator struct {
	source    Source
	processor *Processor
	workers   int
}

// NewOrchestrator builds an Orchestrator. workers <= 0 selects the default
// pool size of 8.
func NewOrchestrator(source Source, processor *Processor, workers int) *Orchestrator {
	if workers <= 0 {
		workers = defaultWorkers
	}
	return &Orchestrator{source: source, processor: processor, workers: workers}
}

// itemResult is the tagged variant carried across the concurrency boundary
// so the fan-in loop can isolate failures uniformly.
type itemResult struct {
	candidateID string
	post        *model.PostRecord
	comments    []model.CommentRecord
	err         error
}

// Fetch retrieves up to limit top posts for the window and enriches them
// concurrently. The source being unavailable short-circuits to an empty
// result. Fetch returns only after every submitted candidate has completed;
// a failing item is logged and contributes nothing. Post accumulation order
// is completion order, not listing order.
func (o *Orchestrator) Fetch(ctx context.Context, subreddit, window string, limit int) model.FetchResult {
	var result model.FetchResult

	if o.source == nil || !o.source.Available() {
		logging.Warn("content source unavailable, skipping fetch", "subreddit", subreddit)
		return result
	}

	candidates, err := o.source.ListTop(ctx, subreddit, window, limit)
	if err != nil {
		logging.Error("candidate listing failed", "subreddit", subreddit, "error", err)
		return result
	}
	logging.Info("candidates listed", "subreddit", subreddit, "count", len(candidates))
	if len(candidates) == 0 {
		return result
	}

	jobs := make(chan model.Candidate)
	results := make(chan itemResult)

	var wg sync.WaitGroup
	for i := 0; i < o.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for cand := range jobs {
				post, comments, perr := o.processor.Process(ctx, cand)
				results <- itemResult{candidateID: cand.ID, post: post, comments: comments, err: perr}
			}
		}()
	}

	go func() {
		for _, cand := range candidates {
			jobs <- cand
		}
		close(jobs)
		wg.Wait()
		close(results)
	}()

	// Single consumer: accumulation order is completion order, and the
	// min/max trackers need no further synchronization.
	done := 0
	for res := range results {
		done++
		if done%10 == 0 {
			logging.Info("fetch progress", "done", done, "total", len(candidates))
		}

		if res.err != nil {
			logging.Error("item processing failed", "post", res.candidateID, "error", res.err)
			continue
		}
		if res.post == nil {
			continue // filtered out
		}

		result.Posts = append(result.Posts, *res.post)
		result.Comments = append(result.Comments, res.comments...)
		trackCreated(&result, res.post.CreatedUTC)
	}

	logging.Info("fetch cycle complete",
		"subreddit", subreddit,
		"posts", len(result.Posts),
		"comments", len(result.Comments),
		"range", result.DateRange())
	return result
}

// trackCreated extends the running min/max date coverage with one accepted
// post's creation time.
func trackCreated(result *model.FetchResult, createdUTC string) {
	t, err := time.Parse(time.RFC3339, createdUTC)
	if err != nil {
		return
	}
	if result.MinCreated == nil || t.Before(*result.MinCreated) {
		tc := t
		result.MinCreated = &tc
	}
	if result.MaxCreated == nil || t.After(*result.MaxCreated) {
		tc := t
		result.MaxCreated = &tc
	}
}
