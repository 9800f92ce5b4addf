// Package emit serializes fetch results as newline-delimited JSON and
// stages them in object storage for the downstream archiver.
package emit

import (
	"bytes"
	"context"
	"fmt"
	"time"

	jsoniter "github.com/json-iterator/go"

	"github.com/redlake/redlake/internal/logging"
	"github.com/redlake/redlake/internal/model"
	"github.com/redlake/redlake/internal/objstore"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const (
	// PostsPrefix and CommentsPrefix are the staging locations the archiver
	// watches. Only top-level files under them are claimable.
	PostsPrefix    = "raw_json/posts/"
	CommentsPrefix = "raw_json/comments/"

	contentType = "application/x-ndjson"
)

// Emitter writes post and comment batches to a bucket.
type Emitter struct {
	bucket objstore.Bucket

	// now is swappable for tests.
	now func() time.Time
}

// New creates an Emitter staging into bucket.
func New(bucket objstore.Bucket) *Emitter {
	return &Emitter{bucket: bucket, now: time.Now}
}

// Emit serializes each record as one compact JSON line and uploads posts
// and comments to independently named, timestamp-qualified objects. Both
// object names are returned.
func (e *Emitter) Emit(ctx context.Context, posts []model.PostRecord, comments []model.CommentRecord) (string, string, error) {
	stamp := e.now().UTC().Format("2006-01-02_150405")
	postName := fmt.Sprintf("%sposts_%s.json", PostsPrefix, stamp)
	commentName := fmt.Sprintf("%scomments_%s.json", CommentsPrefix, stamp)

	postData, err := marshalLines(posts)
	if err != nil {
		return "", "", fmt.Errorf("encode posts: %w", err)
	}
	commentData, err := marshalLines(comments)
	if err != nil {
		return "", "", fmt.Errorf("encode comments: %w", err)
	}

	if err := e.bucket.Put(ctx, postName, postData, contentType); err != nil {
		return "", "", fmt.Errorf("upload posts: %w", err)
	}
	if err := e.bucket.Put(ctx, commentName, commentData, contentType); err != nil {
		return "", "", fmt.Errorf("upload comments: %w", err)
	}

	logging.Info("batches staged",
		"posts", len(posts), "posts_file", postName,
		"comments", len(comments), "comments_file", commentName)
	return postName, commentName, nil
}

// marshalLines renders records as NDJSON, one compact object per line.
func marshalLines[T any](records []T) ([]byte, error) {
	var buf bytes.Buffer
	for _, rec := range records {
		line, err := json.Marshal(rec)
		if err != nil {
			return nil, err
		}
		buf.Write(line)
		buf.WriteByte('\n')
	}
	return buf.Bytes(), nil
}
