package lang

import (
	"context"
	"io"
	"os"
	"path"
	"path/filepath"
	"sync"

	"github.com/klauspost/readahead"
)

// Resource is the content of a resolved import.
type Resource struct {
	ID      string
	Content string
}

// Resolver loads the source imported by id from the source identified by
// source.
type Resolver interface {
	Resolve(ctx context.Context, source, id string) (Resource, error)
}

// ResolverFunc adapts a function to the [Resolver] interface.
type ResolverFunc func(ctx context.Context, source, id string) (Resource, error)

// Resolve calls f.
func (f ResolverFunc) Resolve(
	ctx context.Context,
	source, id string,
) (Resource, error) {
	return f(ctx, source, id)
}

// FileResolver loads imports from the file system.
// Relative ids are resolved against the directory of the importing source.
type FileResolver struct{}

// Resolve reads the imported file and identifies it by its absolute path.
func (FileResolver) Resolve(
	_ context.Context,
	source, id string,
) (Resource, error) {
	p := id
	if !filepath.IsAbs(p) {
		p = filepath.Join(filepath.Dir(source), p)
	}

	abs, err := filepath.Abs(p)
	if err != nil {
		return Resource{}, err
	}

	content, err := readFile(abs)
	if err != nil {
		return Resource{}, err
	}

	return Resource{ID: abs, Content: content}, nil
}

// MapResolver loads imports from an in-memory set of sources keyed by id.
// An id is looked up verbatim first, then relative to the importing source.
type MapResolver struct {
	sources map[string]string
	mu      sync.RWMutex
}

// NewMapResolver creates a resolver over the given sources.
func NewMapResolver(sources map[string]string) *MapResolver {
	if sources == nil {
		sources = make(map[string]string)
	}

	return &MapResolver{sources: sources}
}

// Set adds or replaces a source.
func (r *MapResolver) Set(id, content string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.sources[id] = content
}

// Resolve looks up the source for id.
func (r *MapResolver) Resolve(
	_ context.Context,
	source, id string,
) (Resource, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if content, ok := r.sources[id]; ok {
		return Resource{ID: id, Content: content}, nil
	}

	rel := path.Join(path.Dir(source), id)
	if content, ok := r.sources[rel]; ok {
		return Resource{ID: rel, Content: content}, nil
	}

	return Resource{}, os.ErrNotExist
}

// readFile reads the file at path through a read-ahead buffer.
func readFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	ra := readahead.NewReader(f)
	defer ra.Close()

	data, err := io.ReadAll(ra)
	if err != nil {
		return "", err
	}

	return string(data), nil
}
