package archive

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/redlake/redlake/internal/model"
	"github.com/redlake/redlake/internal/objstore"
	"github.com/redlake/redlake/internal/warehouse"
)

func newTestArchiver(t *testing.T) (*Archiver, *objstore.MemBucket, *warehouse.Warehouse) {
	t.Helper()
	bucket := objstore.NewMemBucket()
	wh, err := warehouse.Open(":memory:")
	if err != nil {
		t.Fatalf("Open warehouse: %v", err)
	}
	t.Cleanup(func() { wh.Close() })

	a := New(bucket, wh)
	a.now = func() time.Time {
		return time.Date(2026, 3, 14, 16, 0, 0, 0, time.UTC)
	}
	return a, bucket, wh
}

const stagedPosts = `{"post_id":"a1","title":"t","subreddit":"technology","created_utc":"2026-03-14T12:00:00Z","sentiment_score":0.5,"fetched_at":"2026-03-14T15:00:00Z"}
`

func TestRun_ClaimsLoadsAndRecords(t *testing.T) {
	a, bucket, wh := newTestArchiver(t)
	ctx := context.Background()

	if err := bucket.Put(ctx, "raw_json/posts/posts_x.json", []byte(stagedPosts), ""); err != nil {
		t.Fatalf("Put: %v", err)
	}

	report := a.Run(ctx)
	if len(report) != 2 {
		t.Fatalf("expected 2 report lines, got %v", report)
	}
	if !strings.Contains(report[0], "moved and loaded 1 files") {
		t.Errorf("unexpected posts report %q", report[0])
	}
	if !strings.Contains(report[1], "no files") {
		t.Errorf("unexpected comments report %q", report[1])
	}

	// File relocated out of the claimable namespace.
	names, _ := bucket.List(ctx, "raw_json/posts/")
	if len(names) != 1 || names[0] != "raw_json/posts/posts_2026-03-14_160000/posts_x.json" {
		t.Errorf("unexpected bucket contents %v", names)
	}

	// Rows landed in the warehouse.
	n, err := wh.CountRows(ctx, warehouse.PostsTable)
	if err != nil {
		t.Fatalf("CountRows: %v", err)
	}
	if n != 1 {
		t.Errorf("expected 1 loaded row, got %d", n)
	}

	// Provenance: SUCCESS for posts with checksum, NO_FILES for comments.
	runs, err := wh.Runs(ctx, 10)
	if err != nil {
		t.Fatalf("Runs: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("expected 2 provenance entries, got %d", len(runs))
	}
	byPrefix := map[string]model.PipelineRunEntry{}
	for _, r := range runs {
		byPrefix[r.SourcePrefix] = r
	}
	posts := byPrefix["raw_json/posts/"]
	if posts.Status != model.RunSuccess {
		t.Errorf("expected SUCCESS, got %q", posts.Status)
	}
	if posts.FileCount != 1 || posts.Checksum == "" {
		t.Errorf("expected file count 1 and a checksum, got %+v", posts)
	}
	comments := byPrefix["raw_json/comments/"]
	if comments.Status != model.RunNoFiles {
		t.Errorf("expected NO_FILES, got %q", comments.Status)
	}
	if comments.Checksum != "" {
		t.Errorf("expected absent checksum, got %q", comments.Checksum)
	}
	if posts.RunID != comments.RunID {
		t.Errorf("targets in one cycle should share a run id: %q vs %q", posts.RunID, comments.RunID)
	}
}

func TestRun_IgnoresAlreadyClaimedFiles(t *testing.T) {
	a, bucket, wh := newTestArchiver(t)
	ctx := context.Background()

	claimed := "raw_json/posts/posts_2026-01-01_000000/posts_old.json"
	if err := bucket.Put(ctx, claimed, []byte(stagedPosts), ""); err != nil {
		t.Fatalf("Put: %v", err)
	}

	a.Run(ctx)

	n, _ := wh.CountRows(ctx, warehouse.PostsTable)
	if n != 0 {
		t.Errorf("claimed files must not be reloaded, got %d rows", n)
	}
	runs, _ := wh.Runs(ctx, 10)
	for _, r := range runs {
		if r.Status != model.RunNoFiles {
			t.Errorf("expected NO_FILES for %s, got %q", r.SourcePrefix, r.Status)
		}
	}
}

func TestRun_IgnoresNonJSONFiles(t *testing.T) {
	a, bucket, wh := newTestArchiver(t)
	ctx := context.Background()

	if err := bucket.Put(ctx, "raw_json/posts/README.txt", []byte("hi"), ""); err != nil {
		t.Fatalf("Put: %v", err)
	}

	a.Run(ctx)
	n, _ := wh.CountRows(ctx, warehouse.PostsTable)
	if n != 0 {
		t.Errorf("non-json files must be ignored, got %d rows", n)
	}
}

func TestRun_LoadErrorRecordsErrorEntry(t *testing.T) {
	a, bucket, wh := newTestArchiver(t)
	ctx := context.Background()

	if err := bucket.Put(ctx, "raw_json/posts/posts_bad.json", []byte("{broken\n"), ""); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := bucket.Put(ctx, "raw_json/comments/comments_ok.json",
		[]byte(`{"comment_id":"c1","post_id":"a1","body":"hi","created_utc":"2026-03-14T13:00:00Z","fetched_at":"2026-03-14T15:00:00Z"}`+"\n"), ""); err != nil {
		t.Fatalf("Put: %v", err)
	}

	report := a.Run(ctx)
	if len(report) != 2 {
		t.Fatalf("expected 2 report lines, got %v", report)
	}

	runs, _ := wh.Runs(ctx, 10)
	byPrefix := map[string]model.PipelineRunEntry{}
	for _, r := range runs {
		byPrefix[r.SourcePrefix] = r
	}
	if got := byPrefix["raw_json/posts/"].Status; !strings.HasPrefix(got, model.RunError) {
		t.Errorf("expected ERROR status, got %q", got)
	}
	// The failing posts target must not stop the comments target.
	if got := byPrefix["raw_json/comments/"].Status; got != model.RunSuccess {
		t.Errorf("expected comments target to succeed, got %q", got)
	}
	n, _ := wh.CountRows(ctx, warehouse.CommentsTable)
	if n != 1 {
		t.Errorf("expected 1 comment row, got %d", n)
	}
}
