package exclusion

import (
	"github.com/publisherkit/pagecache/pkg/config"
)

// Engine evaluates the four configured exclusion lists against candidate
// items. Lists are read from the Provider and compiled fresh on each call;
// the Engine itself holds no parsed state, so it is trivially safe for
// concurrent use and never serves stale rules after a settings change.
type Engine struct {
	provider config.Provider
}

// NewEngine creates an Engine reading pattern lists from p.
func NewEngine(p config.Provider) *Engine {
	if p == nil {
		panic("config provider cannot be nil")
	}
	return &Engine{provider: p}
}

func (e *Engine) rules(key string) RuleList {
	text, ok := e.provider.Get(key)
	if !ok {
		return nil
	}
	return ParseList(text)
}

// ExcludesKey reports whether a cache key is excluded from caching.
func (e *Engine) ExcludesKey(key string) bool {
	return e.rules(config.KeyExcludeKeys).Matches(key)
}

// ExcludesEphemeral reports whether a named ephemeral entry is excluded
// from redirection into the cache backend.
func (e *Engine) ExcludesEphemeral(name string) bool {
	return e.rules(config.KeyExcludeEphemeral).Matches(name)
}

// ExcludesContent reports whether a rendered document body contains any
// configured exclusion substring.
func (e *Engine) ExcludesContent(body string) bool {
	return e.rules(config.KeyExcludeContent).MatchesSubstring(body)
}

// ExcludesFragmentType reports whether a fragment type is excluded from
// fragment caching.
func (e *Engine) ExcludesFragmentType(fragType string) bool {
	return e.rules(config.KeyExcludeFragmentTypes).Matches(fragType)
}
