package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"testing"
	"time"

	"github.com/redlake/redlake/internal/model"
)

func makeCandidates(n int) []model.Candidate {
	var out []model.Candidate
	for i := 0; i < n; i++ {
		c := candidate(fmt.Sprintf("p%02d", i), fmt.Sprintf("title %d", i), fmt.Sprintf("body %d", i), "alice")
		c.CreatedUTC = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC).Add(time.Duration(i) * 24 * time.Hour)
		out = append(out, c)
	}
	return out
}

func newOrch(src *fakeSource, workers int) *Orchestrator {
	proc := NewProcessor(src, redactingCleaner{}, &recordingScorer{})
	return NewOrchestrator(src, proc, workers)
}

func TestFetch_EmptyCandidateList(t *testing.T) {
	src := &fakeSource{}
	res := newOrch(src, 0).Fetch(context.Background(), "technology", "year", 100)

	if len(res.Posts) != 0 || len(res.Comments) != 0 {
		t.Errorf("expected empty result, got %d posts %d comments", len(res.Posts), len(res.Comments))
	}
	if res.MinCreated != nil || res.MaxCreated != nil {
		t.Error("expected sentinel date range for empty cycle")
	}
	if got := res.DateRange(); got != "N/A to N/A" {
		t.Errorf("expected 'N/A to N/A', got %q", got)
	}
}

func TestFetch_SourceUnavailable(t *testing.T) {
	src := &fakeSource{unavailable: true, candidates: makeCandidates(5)}
	res := newOrch(src, 0).Fetch(context.Background(), "technology", "year", 100)
	if len(res.Posts) != 0 {
		t.Errorf("expected no work against unavailable source, got %d posts", len(res.Posts))
	}
}

func TestFetch_ListingErrorYieldsEmptyResult(t *testing.T) {
	src := &fakeSource{listErr: errors.New("api down"), candidates: makeCandidates(5)}
	res := newOrch(src, 0).Fetch(context.Background(), "technology", "year", 100)
	if len(res.Posts) != 0 {
		t.Errorf("expected empty result on listing failure, got %d posts", len(res.Posts))
	}
}

func TestFetch_FailingWorkersIsolated(t *testing.T) {
	src := &fakeSource{
		candidates: makeCandidates(12),
		panicOn:    map[string]bool{"p02": true, "p05": true, "p09": true},
	}
	res := newOrch(src, 0).Fetch(context.Background(), "technology", "year", 100)

	if len(res.Posts) != 9 {
		t.Errorf("expected exactly 9 posts with 3 failing items, got %d", len(res.Posts))
	}
}

func TestFetch_RespectsLimitAndUniqueIDs(t *testing.T) {
	src := &fakeSource{candidates: makeCandidates(20)}
	res := newOrch(src, 0).Fetch(context.Background(), "technology", "year", 7)

	if len(res.Posts) > 7 {
		t.Errorf("posts length %d exceeds limit 7", len(res.Posts))
	}
	seen := map[string]bool{}
	for _, p := range res.Posts {
		if seen[p.PostID] {
			t.Errorf("duplicate post_id %s", p.PostID)
		}
		seen[p.PostID] = true
	}
}

func TestFetch_DateRangeTracking(t *testing.T) {
	src := &fakeSource{candidates: makeCandidates(10)}
	res := newOrch(src, 0).Fetch(context.Background(), "technology", "year", 100)

	if res.MinCreated == nil || res.MaxCreated == nil {
		t.Fatal("expected date range for non-empty cycle")
	}
	if res.MinCreated.After(*res.MaxCreated) {
		t.Errorf("min %v after max %v", res.MinCreated, res.MaxCreated)
	}
	if got := res.DateRange(); got != "2026-01-01 to 2026-01-10" {
		t.Errorf("unexpected range %q", got)
	}
}

func TestFetch_PoolSizeDoesNotChangeResultSet(t *testing.T) {
	comments := map[string][]model.Comment{
		"p03": {{ID: "cm1", Body: "hi", Author: "bob"}},
		"p07": {{ID: "cm2", Body: "yo", Author: "carol"}},
	}

	collect := func(workers int) ([]string, []string) {
		src := &fakeSource{candidates: makeCandidates(20), comments: comments}
		res := newOrch(src, workers).Fetch(context.Background(), "technology", "year", 100)

		var posts, cms []string
		for _, p := range res.Posts {
			posts = append(posts, p.PostID)
		}
		for _, c := range res.Comments {
			cms = append(cms, c.CommentID)
		}
		sort.Strings(posts)
		sort.Strings(cms)
		return posts, cms
	}

	p1, c1 := collect(1)
	p8, c8 := collect(8)

	if fmt.Sprint(p1) != fmt.Sprint(p8) {
		t.Errorf("post sets differ: 1 worker %v vs 8 workers %v", p1, p8)
	}
	if fmt.Sprint(c1) != fmt.Sprint(c8) {
		t.Errorf("comment sets differ: 1 worker %v vs 8 workers %v", c1, c8)
	}
}

func TestFetch_CommentsFlattenedIntoResult(t *testing.T) {
	src := &fakeSource{
		candidates: makeCandidates(2),
		comments: map[string][]model.Comment{
			"p00": {{ID: "cm1", Body: "a", Author: "bob"}, {ID: "cm2", Body: "b", Author: "carol"}},
			"p01": {{ID: "cm3", Body: "c", Author: "dan"}},
		},
	}
	res := newOrch(src, 0).Fetch(context.Background(), "technology", "year", 100)

	if len(res.Comments) != 3 {
		t.Errorf("expected 3 flattened comments, got %d", len(res.Comments))
	}
}

func TestNewOrchestrator_DefaultWorkers(t *testing.T) {
	o := NewOrchestrator(&fakeSource{}, nil, 0)
	if o.workers != defaultWorkers {
		t.Errorf("expected %d workers, got %d", defaultWorkers, o.workers)
	}
}
