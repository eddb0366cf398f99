// Package fragment implements fine-grained caching of sub-page render
// fragments: deterministic key derivation and lifecycle-driven invalidation.
package fragment

import (
	"fmt"
	"sort"
	"strings"

	"github.com/cespare/xxhash/v2"

	"github.com/publisherkit/pagecache/pkg/cache"
)

// Context captures the viewer-dependent render variables that partition the
// fragment keyspace: two viewers with the same context share cache entries.
type Context struct {
	// Authenticated is the viewer's login state.
	Authenticated bool

	// Variant is the device/view variant (e.g. "desktop", "amp").
	Variant string
}

// Key identifies one cached fragment render. Key derivation is a pure
// function of its fields: identical inputs always produce identical keys.
type Key struct {
	// Type is the fragment type identifier (e.g. "gallery", "listing").
	Type string

	// Attrs are the fragment's parameters.
	Attrs map[string]string

	// Markup is the fragment's static inner markup.
	Markup string

	// ObjectID is the enclosing content object.
	ObjectID int64

	// Context is the viewer/render context.
	Context Context
}

// String derives the cache key:
//
//	frag:<type>:<attrs hash>-<markup hash>:object-<id>:<context hash>
//
// Attributes are hashed in sorted order so map iteration order never leaks
// into the key.
func (k Key) String() string {
	return cache.Key(cache.NamespaceFragment, fmt.Sprintf("%s:%016x-%016x:object-%d:%016x",
		sanitizeType(k.Type), k.attrsHash(), xxhash.Sum64String(k.Markup), k.ObjectID, k.contextHash()))
}

func (k Key) attrsHash() uint64 {
	names := make([]string, 0, len(k.Attrs))
	for name := range k.Attrs {
		names = append(names, name)
	}
	sort.Strings(names)

	var d xxhash.Digest
	for _, name := range names {
		// Separators prevent ("ab","c") colliding with ("a","bc").
		_, _ = d.WriteString(name)
		_, _ = d.WriteString("\x00")
		_, _ = d.WriteString(k.Attrs[name])
		_, _ = d.WriteString("\x01")
	}
	return d.Sum64()
}

func (k Key) contextHash() uint64 {
	var d xxhash.Digest
	if k.Context.Authenticated {
		_, _ = d.WriteString("auth\x00")
	} else {
		_, _ = d.WriteString("anon\x00")
	}
	_, _ = d.WriteString(k.Context.Variant)
	return d.Sum64()
}

// ObjectPattern matches every fragment cached in the context of one content
// object, regardless of type or viewer context.
func ObjectPattern(objectID int64) string {
	return cache.Key(cache.NamespaceFragment, fmt.Sprintf("*:object-%d:*", objectID))
}

// TypePattern matches every cached fragment of one type across all objects.
func TypePattern(fragType string) string {
	return cache.Key(cache.NamespaceFragment, sanitizeType(fragType)+":*")
}

// AllPattern matches the entire fragment namespace.
func AllPattern() string {
	return cache.NamespacePattern(cache.NamespaceFragment)
}

// sanitize guards against fragment types containing the key separator.
func sanitizeType(fragType string) string {
	return strings.ReplaceAll(fragType, ":", "_")
}
