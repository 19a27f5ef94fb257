package lang

import (
	"sync"

	"github.com/expr-lang/expr/vm"
	"github.com/zeebo/xxh3"
)

// Cache stores parsed sources keyed by id, so an import shared by several
// roots is parsed once. Entries are invalidated when the content changes.
type Cache struct {
	entries sync.Map // id -> *cacheEntry
}

type cacheEntry struct {
	templates *Templates
	hash      uint64
}

// NewCache creates an empty cache.
func NewCache() *Cache {
	return &Cache{}
}

// load returns the cached parse of id if it was made from the same content.
func (c *Cache) load(id, content string) (*Templates, bool) {
	if c == nil {
		return nil, false
	}

	value, ok := c.entries.Load(id)
	if !ok {
		return nil, false
	}

	entry, ok := value.(*cacheEntry)
	if !ok || entry.hash != xxh3.HashString(content) {
		return nil, false
	}

	return entry.templates, true
}

func (c *Cache) store(t *Templates) {
	if c == nil {
		return
	}

	c.entries.Store(t.ID, &cacheEntry{
		templates: t,
		hash:      xxh3.HashString(t.Content),
	})
}

// Len returns the number of cached sources.
func (c *Cache) Len() int {
	n := 0

	c.entries.Range(func(any, any) bool {
		n++

		return true
	})

	return n
}

// Clear removes all cached sources.
func (c *Cache) Clear() {
	c.entries.Clear()
}

// programCache stores compiled expressions keyed by source text.
type programCache struct {
	programs sync.Map // string -> *vm.Program
}

func newProgramCache() *programCache {
	return &programCache{}
}

func (c *programCache) load(source string) (*vm.Program, bool) {
	value, ok := c.programs.Load(source)
	if !ok {
		return nil, false
	}

	program, ok := value.(*vm.Program)

	return program, ok
}

func (c *programCache) store(source string, program *vm.Program) *vm.Program {
	actual, _ := c.programs.LoadOrStore(source, program)
	if p, ok := actual.(*vm.Program); ok {
		return p
	}

	return program
}
