// Package dedup collapses concurrent identical in-flight requests keyed by
// a string identity. Callers that hit an already-pending key share the one
// outcome, including errors; the tracking entry is dropped as soon as the
// call settles so a failure never poisons later calls for the same key.
package dedup

import "golang.org/x/sync/singleflight"

// Group deduplicates in-flight calls by key.
type Group struct {
	sf singleflight.Group
}

// Execute invokes fn unless a call with the same key is already pending, in
// which case it waits for and returns that call's result. There is no
// queueing: concurrent callers literally share one outcome.
func (g *Group) Execute(key string, fn func() (any, error)) (any, error) {
	v, err, _ := g.sf.Do(key, fn)
	return v, err
}

// Forget drops the in-flight entry for key so the next Execute invokes fn
// again even if earlier callers are still waiting.
func (g *Group) Forget(key string) { g.sf.Forget(key) }
