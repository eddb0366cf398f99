package fragment

import (
	"context"
	"slices"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/publisherkit/pagecache/pkg/cache"
	"github.com/publisherkit/pagecache/pkg/config"
)

// Prometheus metrics for fragment invalidation.
var (
	purgesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pagecache_fragment_purges_total",
		Help: "Total number of fragment purge operations by scope",
	}, []string{"scope"}) // "object", "type", "all"

	purgedKeysTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pagecache_fragment_purged_keys_total",
		Help: "Total number of fragment keys removed by invalidation",
	})
)

// Event is a content-object lifecycle notification delivered by the host
// platform's dispatcher. The same event may be delivered more than once.
type Event struct {
	ObjectID   int64
	PrevStatus string
	NewStatus  string

	// IsRevision marks autosaves and revision writes, which never affect
	// what is publicly served and must not trigger any purge.
	IsRevision bool
}

// Policy controls how broadly a lifecycle event invalidates the fragment
// namespace. Read fresh from configuration for every event.
type Policy struct {
	// ListingTypes are fragment types not keyed by the objects they list
	// (query/listing style fragments). A targeted per-object purge cannot
	// reach them, so visibility transitions purge them across all objects.
	ListingTypes []string

	// FlushAll purges the entire fragment namespace on every qualifying
	// update. Trades cache efficiency for correctness when partial
	// invalidation cannot be proven safe.
	FlushAll bool

	// VisibleStatuses are the publicly visible content statuses.
	VisibleStatuses []string
}

// DefaultVisibleStatuses marks the statuses served to the public.
var DefaultVisibleStatuses = []string{"publish"}

// PolicyFromProvider reads the invalidation policy from host configuration.
func PolicyFromProvider(p config.Provider) Policy {
	return Policy{
		ListingTypes:    config.List(p, config.KeyListingFragmentTypes, nil),
		FlushAll:        config.Bool(p, config.KeyFlushAllOnUpdate, false),
		VisibleStatuses: config.List(p, config.KeyVisibleStatuses, DefaultVisibleStatuses),
	}
}

// Visible reports whether status is publicly visible under the policy.
func (p Policy) Visible(status string) bool {
	return slices.Contains(p.VisibleStatuses, status)
}

// VisibilityChanged reports whether the event crosses the public-visibility
// boundary in either direction.
func (p Policy) VisibilityChanged(ev Event) bool {
	return p.Visible(ev.PrevStatus) != p.Visible(ev.NewStatus)
}

// Invalidator purges fragment cache slices in response to content-object
// lifecycle events. It implements the observer side of the host's event
// dispatch: the host calls the On* methods directly, and the Invalidator
// holds no reference back into the dispatcher.
//
// Purges are idempotent: re-delivered events scan an already-purged
// keyspace slice, find nothing, and delete nothing.
type Invalidator struct {
	acc      *cache.Accessor
	provider config.Provider
	logger   zerolog.Logger
}

// NewInvalidator creates an Invalidator reading its policy from p.
func NewInvalidator(acc *cache.Accessor, p config.Provider) *Invalidator {
	if acc == nil {
		panic("cache accessor cannot be nil")
	}
	if p == nil {
		panic("config provider cannot be nil")
	}
	return &Invalidator{
		acc:      acc,
		provider: p,
		logger:   log.With().Str("component", "fragment").Logger(),
	}
}

// OnObjectSaved handles a content-object save. Revisions are ignored.
// All fragments cached in the object's context are purged. A save touching
// a publicly visible object (before or after the save) also purges
// listing-type fragments, whose entries list objects they are not keyed by.
// Returns the number of keys removed.
func (inv *Invalidator) OnObjectSaved(ctx context.Context, ev Event) int64 {
	if ev.IsRevision {
		return 0
	}
	policy := PolicyFromProvider(inv.provider)

	purged := inv.purgeObject(ctx, ev.ObjectID)
	purged += inv.purgeBroad(ctx, policy, policy.Visible(ev.PrevStatus) || policy.Visible(ev.NewStatus))

	inv.logger.Info().
		Int64("object_id", ev.ObjectID).
		Int64("deleted", purged).
		Msg("Fragment cache invalidated after save")
	return purged
}

// OnObjectDeleted handles a content-object deletion. Revisions are ignored.
// The object's fragments are purged; a deletion of a visible object also
// purges listing-type fragments. Returns the number of keys removed.
func (inv *Invalidator) OnObjectDeleted(ctx context.Context, ev Event) int64 {
	if ev.IsRevision {
		return 0
	}
	policy := PolicyFromProvider(inv.provider)

	purged := inv.purgeObject(ctx, ev.ObjectID)
	purged += inv.purgeBroad(ctx, policy, policy.Visible(ev.PrevStatus))

	inv.logger.Info().
		Int64("object_id", ev.ObjectID).
		Int64("deleted", purged).
		Msg("Fragment cache invalidated after delete")
	return purged
}

// OnObjectStatusChanged handles a publish-state transition. Revisions are
// ignored, as are transitions that do not cross the visibility boundary.
// Returns the number of keys removed.
func (inv *Invalidator) OnObjectStatusChanged(ctx context.Context, ev Event) int64 {
	if ev.IsRevision {
		return 0
	}
	policy := PolicyFromProvider(inv.provider)
	if !policy.VisibilityChanged(ev) {
		return 0
	}

	purged := inv.purgeObject(ctx, ev.ObjectID)
	purged += inv.purgeBroad(ctx, policy, true)

	inv.logger.Info().
		Int64("object_id", ev.ObjectID).
		Str("prev", ev.PrevStatus).
		Str("new", ev.NewStatus).
		Int64("deleted", purged).
		Msg("Fragment cache invalidated after status change")
	return purged
}

// purgeObject removes every fragment cached in the context of one object.
func (inv *Invalidator) purgeObject(ctx context.Context, objectID int64) int64 {
	purgesTotal.WithLabelValues("object").Inc()
	return inv.purgePattern(ctx, ObjectPattern(objectID))
}

// purgeBroad applies the policy's broad fallback when the event qualifies:
// either the full namespace (FlushAll) or each registered listing type.
func (inv *Invalidator) purgeBroad(ctx context.Context, policy Policy, qualifies bool) int64 {
	if !qualifies {
		return 0
	}

	if policy.FlushAll {
		purgesTotal.WithLabelValues("all").Inc()
		return inv.purgePattern(ctx, AllPattern())
	}

	var purged int64
	for _, fragType := range policy.ListingTypes {
		purgesTotal.WithLabelValues("type").Inc()
		purged += inv.purgePattern(ctx, TypePattern(fragType))
	}
	return purged
}

func (inv *Invalidator) purgePattern(ctx context.Context, pattern string) int64 {
	keys := inv.acc.ScanKeys(ctx, pattern)
	if len(keys) == 0 {
		return 0
	}
	deleted := inv.acc.DeleteKeysChunked(ctx, keys, cache.DefaultChunkSize)
	purgedKeysTotal.Add(float64(deleted))

	inv.logger.Debug().
		Str("pattern", pattern).
		Int64("deleted", deleted).
		Msg("Purged fragment keyspace slice")
	return deleted
}
