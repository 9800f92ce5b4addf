// Package objstore is the narrow contract against object storage: named
// byte streams with a content type, listed by prefix and claimed by rename.
// The pipeline depends on nothing else from the storage layer.
package objstore

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

// Bucket is the storage collaborator contract.
type Bucket interface {
	// Put writes data under name, replacing any existing object.
	Put(ctx context.Context, name string, data []byte, contentType string) error
	// Get reads the object stored under name.
	Get(ctx context.Context, name string) ([]byte, error)
	// List returns the names of all objects under prefix, sorted.
	List(ctx context.Context, prefix string) ([]string, error)
	// Move atomically renames an object.
	Move(ctx context.Context, oldName, newName string) error
}

// FSBucket stores objects as files under a root directory. Object names use
// forward slashes regardless of platform.
type FSBucket struct {
	root string
}

// NewFSBucket creates the root directory if needed.
func NewFSBucket(root string) (*FSBucket, error) {
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("create bucket root: %w", err)
	}
	return &FSBucket{root: root}, nil
}

func (b *FSBucket) path(name string) string {
	return filepath.Join(b.root, filepath.FromSlash(name))
}

// Put implements Bucket. The content type is not persisted on disk.
func (b *FSBucket) Put(_ context.Context, name string, data []byte, _ string) error {
	p := b.path(name)
	if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
		return fmt.Errorf("create object dir: %w", err)
	}
	if err := os.WriteFile(p, data, 0644); err != nil {
		return fmt.Errorf("write object %s: %w", name, err)
	}
	return nil
}

// Get implements Bucket.
func (b *FSBucket) Get(_ context.Context, name string) ([]byte, error) {
	data, err := os.ReadFile(b.path(name))
	if err != nil {
		return nil, fmt.Errorf("read object %s: %w", name, err)
	}
	return data, nil
}

// List implements Bucket. Directories themselves are not objects and are
// not returned.
func (b *FSBucket) List(_ context.Context, prefix string) ([]string, error) {
	var names []string
	err := filepath.WalkDir(b.root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(b.root, path)
		if err != nil {
			return err
		}
		name := filepath.ToSlash(rel)
		if strings.HasPrefix(name, prefix) {
			names = append(names, name)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", prefix, err)
	}
	sort.Strings(names)
	return names, nil
}

// Move implements Bucket.
func (b *FSBucket) Move(_ context.Context, oldName, newName string) error {
	dst := b.path(newName)
	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return fmt.Errorf("create target dir: %w", err)
	}
	if err := os.Rename(b.path(oldName), dst); err != nil {
		return fmt.Errorf("move %s to %s: %w", oldName, newName, err)
	}
	return nil
}

// MemBucket is an in-memory Bucket for tests.
type MemBucket struct {
	mu      sync.RWMutex
	objects map[string][]byte
}

// NewMemBucket returns an empty in-memory bucket.
func NewMemBucket() *MemBucket {
	return &MemBucket{objects: make(map[string][]byte)}
}

// Put implements Bucket.
func (b *MemBucket) Put(_ context.Context, name string, data []byte, _ string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	cp := make([]byte, len(data))
	copy(cp, data)
	b.objects[name] = cp
	return nil
}

// Get implements Bucket.
func (b *MemBucket) Get(_ context.Context, name string) ([]byte, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	data, ok := b.objects[name]
	if !ok {
		return nil, fmt.Errorf("object %s not found", name)
	}
	return data, nil
}

// List implements Bucket.
func (b *MemBucket) List(_ context.Context, prefix string) ([]string, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	var names []string
	for name := range b.objects {
		if strings.HasPrefix(name, prefix) {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names, nil
}

// Move implements Bucket.
func (b *MemBucket) Move(_ context.Context, oldName, newName string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	data, ok := b.objects[oldName]
	if !ok {
		return fmt.Errorf("object %s not found", oldName)
	}
	b.objects[newName] = data
	delete(b.objects, oldName)
	return nil
}
