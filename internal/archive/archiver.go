// Package archive claims staged NDJSON batches and loads them into the
// warehouse, recording one immutable provenance entry per (prefix, table)
// pair per cycle. Claiming relocates files into a timestamped subdirectory,
// which keeps a later cycle from loading the same batch twice. There is no
// transaction spanning the relocation and the load; a crash in between
// leaves files moved but unloaded, recorded as ERROR and resolved by replay.
package archive

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"

	"github.com/redlake/redlake/internal/emit"
	"github.com/redlake/redlake/internal/logging"
	"github.com/redlake/redlake/internal/model"
	"github.com/redlake/redlake/internal/objstore"
	"github.com/redlake/redlake/internal/warehouse"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Target pairs a staging prefix with its warehouse table.
type Target struct {
	Prefix string
	Table  string
}

// DefaultTargets covers the two batch streams the emitter stages.
var DefaultTargets = []Target{
	{Prefix: emit.PostsPrefix, Table: warehouse.PostsTable},
	{Prefix: emit.CommentsPrefix, Table: warehouse.CommentsTable},
}

// Archiver moves staged files out of the claimable namespace and batch
// loads them.
type Archiver struct {
	bucket  objstore.Bucket
	wh      *warehouse.Warehouse
	targets []Target

	// now is swappable for tests.
	now func() time.Time
}

// New creates an Archiver over the default targets.
func New(bucket objstore.Bucket, wh *warehouse.Warehouse) *Archiver {
	return &Archiver{
		bucket:  bucket,
		wh:      wh,
		targets: DefaultTargets,
		now:     time.Now,
	}
}

// Run executes one archiving cycle across all targets and returns one
// report line per target. A failing target records an ERROR entry and does
// not abort the remaining targets.
func (a *Archiver) Run(ctx context.Context) []string {
	runID := a.now().UTC().Format("2006-01-02_150405")
	var report []string

	for _, target := range a.targets {
		logging.Info("archiving", "prefix", target.Prefix, "table", target.Table, "run", runID)

		moved, err := a.claimFiles(ctx, target.Prefix, runID)
		if err != nil {
			a.record(ctx, runID, target, 0, "", errorStatus(err))
			report = append(report, fmt.Sprintf("%s: %v", target.Prefix, err))
			continue
		}
		if len(moved) == 0 {
			a.record(ctx, runID, target, 0, "", model.RunNoFiles)
			report = append(report, fmt.Sprintf("%s: no files to process", target.Prefix))
			continue
		}

		rows, err := a.load(ctx, target.Table, moved)
		if err != nil {
			a.record(ctx, runID, target, 0, "", errorStatus(err))
			report = append(report, fmt.Sprintf("%s: %v", target.Prefix, err))
			continue
		}

		a.record(ctx, runID, target, len(moved), checksum(moved), model.RunSuccess)
		report = append(report, fmt.Sprintf("%s: moved and loaded %d files (%d rows)", target.Prefix, len(moved), rows))
	}

	return report
}

// claimFiles relocates every top-level .json object under prefix into
// <prefix><base>_<runID>/ and returns the new names.
func (a *Archiver) claimFiles(ctx context.Context, prefix, runID string) ([]string, error) {
	names, err := a.bucket.List(ctx, prefix)
	if err != nil {
		return nil, fmt.Errorf("list staged files: %w", err)
	}

	base := path.Base(strings.TrimSuffix(prefix, "/"))
	claimDir := fmt.Sprintf("%s%s_%s/", prefix, base, runID)

	var moved []string
	for _, name := range names {
		rel := strings.TrimPrefix(name, prefix)
		// Files already claimed by an earlier cycle live in subdirectories.
		if strings.Contains(rel, "/") || !strings.HasSuffix(name, ".json") {
			continue
		}
		newName := claimDir + path.Base(name)
		if err := a.bucket.Move(ctx, name, newName); err != nil {
			return nil, fmt.Errorf("claim %s: %w", name, err)
		}
		moved = append(moved, newName)
	}
	return moved, nil
}

// load batch loads the claimed files into table, returning total rows.
func (a *Archiver) load(ctx context.Context, table string, names []string) (int, error) {
	total := 0
	for _, name := range names {
		data, err := a.bucket.Get(ctx, name)
		if err != nil {
			return 0, fmt.Errorf("read %s: %w", name, err)
		}
		rows, err := a.wh.LoadNDJSON(ctx, table, data)
		if err != nil {
			return 0, fmt.Errorf("load %s: %w", name, err)
		}
		total += rows
	}
	return total, nil
}

// record writes the provenance entry for one target's cycle. A failure to
// record is logged but never escalates past this cycle.
func (a *Archiver) record(ctx context.Context, runID string, target Target, fileCount int, sum, status string) {
	entry := model.PipelineRunEntry{
		EntryID:      uuid.NewString(),
		RunID:        runID,
		Timestamp:    a.now().UTC().Format(time.RFC3339),
		SourcePrefix: target.Prefix,
		TargetTable:  target.Table,
		FileCount:    fileCount,
		Checksum:     sum,
		Status:       status,
	}
	if err := a.wh.RecordRun(ctx, entry); err != nil {
		logging.Error("failed to record pipeline run", "run", runID, "prefix", target.Prefix, "error", err)
		return
	}
	logging.Info("recorded pipeline run", "run", runID, "prefix", target.Prefix, "status", status)
}

// checksum hashes the JSON-encoded sorted file list, the batch's integrity
// fingerprint.
func checksum(names []string) string {
	sorted := make([]string, len(names))
	copy(sorted, names)
	sort.Strings(sorted)

	encoded, err := json.Marshal(sorted)
	if err != nil {
		return ""
	}
	sum := sha256.Sum256(encoded)
	return hex.EncodeToString(sum[:])
}

// errorStatus renders an ERROR provenance status with the truncated message.
func errorStatus(err error) string {
	msg := err.Error()
	if len(msg) > 200 {
		msg = msg[:200]
	}
	return model.RunError + ": " + msg
}
