package canopy

import "fmt"

// ResolverStats counts memo hits and backend builds since the resolver was
// created.
type ResolverStats struct {
	Hits     int
	Computes int
	Retired  int // superseded handles waiting for ReleaseRetired
}

// Resolver turns declarations into backend effect objects. Each declaration
// caches its last result under a 64-bit key over its kind, its parameters and
// the generations of its inputs; the backend is called only when that key
// changes.
//
// Handles superseded by a recompute stay alive until ReleaseRetired, so a
// frame built before the recompute can still be drawn.
type Resolver struct {
	backend Backend
	effects map[string]RuntimeEffect
	retired []Disposer
	stats   ResolverStats
	ctx     buildContext
}

// NewResolver creates a resolver building objects with b.
func NewResolver(b Backend) *Resolver {
	r := &Resolver{backend: b, effects: make(map[string]RuntimeEffect)}
	r.ctx = buildContext{backend: b, effects: r.runtimeEffect}
	return r
}

// Backend returns the backend objects are built with.
func (r *Resolver) Backend() Backend { return r.backend }

// Stats returns hit and compute counters.
func (r *Resolver) Stats() ResolverStats {
	s := r.stats
	s.Retired = len(r.retired)
	return s
}

// Resolve returns the effect for d given its resolved declaration children in
// traversal order. Parameters are validated first; an invalid parameter is
// reported as a *ParamError and leaves d's cache untouched.
func (r *Resolver) Resolve(d *Declaration, children []Resolved) (Resolved, error) {
	if d == nil || d.props == nil {
		return Resolved{}, paramErr("declaration", "props", nil, "missing")
	}
	p := d.props
	if err := p.validate(); err != nil {
		return Resolved{}, err
	}
	key := memoKey(p, children)
	ids := propIdentities(p)
	if d.valid && d.key == key && sameIdentities(d.idents, ids) {
		r.stats.Hits++
		return d.resolved, nil
	}

	eff, err := p.build(&r.ctx, inputs(children))
	if err != nil {
		return Resolved{}, fmt.Errorf("resolve %s: %w", p.Kind(), err)
	}
	if old, ok := d.resolved.Effect.(Disposer); ok && d.resolved.Effect != eff {
		r.retired = append(r.retired, old)
	}
	d.resolved = Resolved{Cap: p.Capability(), Effect: eff, Gen: nextGeneration()}
	d.key = key
	d.idents = ids
	d.valid = true
	d.computes++
	r.stats.Computes++
	Logger().Debug("canopy: declaration resolved",
		"kind", p.Kind(), "gen", d.resolved.Gen, "absent", eff == nil)
	return d.resolved, nil
}

// ResolveProps builds a one-off effect without caching. The caller owns the
// returned handle.
func (r *Resolver) ResolveProps(p Props, children []Resolved) (Effect, error) {
	if p == nil {
		return nil, paramErr("declaration", "props", nil, "missing")
	}
	if err := p.validate(); err != nil {
		return nil, err
	}
	eff, err := p.build(&r.ctx, inputs(children))
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", p.Kind(), err)
	}
	return eff, nil
}

// ReleaseRetired disposes handles superseded by earlier recomputes.
func (r *Resolver) ReleaseRetired() {
	for i, d := range r.retired {
		d.Dispose()
		r.retired[i] = nil
	}
	r.retired = r.retired[:0]
}

// Dispose releases retired handles and compiled runtime effects.
func (r *Resolver) Dispose() {
	r.ReleaseRetired()
	for src, e := range r.effects {
		e.Dispose()
		delete(r.effects, src)
	}
}

// runtimeEffect compiles source once and caches the program.
func (r *Resolver) runtimeEffect(source string) (RuntimeEffect, error) {
	if e, ok := r.effects[source]; ok {
		return e, nil
	}
	e, err := r.backend.NewRuntimeEffect(source)
	if err != nil {
		return nil, err
	}
	r.effects[source] = e
	return e, nil
}
