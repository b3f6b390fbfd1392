package canopy

import (
	"encoding/binary"
	"hash"
	"hash/fnv"
	"math"
	"strconv"
	"sync/atomic"
)

// Capability is the effect family a declaration produces.
type Capability uint8

const (
	CapNone Capability = iota
	CapShader
	CapImageFilter
	CapColorFilter
	CapPathEffect
)

var capabilityNames = [...]string{"none", "shader", "imageFilter", "colorFilter", "pathEffect"}

func (c Capability) String() string {
	if int(c) < len(capabilityNames) {
		return capabilityNames[c]
	}
	return "Capability(" + strconv.Itoa(int(c)) + ")"
}

// ParseCapability maps a slot name ("shader", "imageFilter", ...) to a Capability.
func ParseCapability(s string) (Capability, error) {
	for i, n := range capabilityNames[1:] {
		if n == s {
			return Capability(i + 1), nil
		}
	}
	return CapNone, paramErr("ref", "slot", s, "unknown paint slot")
}

// Resolved is the output of resolving one declaration. Effect is nil when the
// declaration resolved to an absent handle (an image shader without an image,
// for instance). Gen changes every time a new handle is produced.
type Resolved struct {
	Cap    Capability
	Effect Effect
	Gen    uint64
}

// Absent reports whether no effect object was produced.
func (r Resolved) Absent() bool { return r.Effect == nil }

var generation atomic.Uint64

func nextGeneration() uint64 { return generation.Add(1) }

// Declaration is the payload of a declaration node: the parameters of one
// effect and the cache slot holding its last resolution.
type Declaration struct {
	props Props
	owner *Node

	resolved Resolved
	key      uint64
	idents   []any
	valid    bool
	computes int
}

// Props returns the declaration's parameters. Callers that mutate the
// returned value must call MarkDirty on the owning node.
func (d *Declaration) Props() Props { return d.props }

// SetProps replaces the parameters and marks the owning tree dirty.
func (d *Declaration) SetProps(p Props) {
	d.props = p
	if d.owner != nil {
		d.owner.MarkDirty()
	}
}

// Capability returns the family of effect this declaration produces.
func (d *Declaration) Capability() Capability {
	if d.props == nil {
		return CapNone
	}
	return d.props.Capability()
}

// Resolved returns the cached result of the last successful resolution.
func (d *Declaration) Resolved() Resolved { return d.resolved }

// Computes returns how many times a backend object was built for d.
func (d *Declaration) Computes() int { return d.computes }

// Node returns the node carrying this declaration.
func (d *Declaration) Node() *Node { return d.owner }

// release drops the cached handle.
func (d *Declaration) release() {
	if ds, ok := d.resolved.Effect.(Disposer); ok {
		ds.Dispose()
	}
	d.resolved = Resolved{}
	d.valid = false
	d.idents = nil
}

// --- memo keys ---

// keyHasher feeds a canonical parameter encoding into FNV-1a 64.
type keyHasher struct {
	h   hash.Hash64
	buf [8]byte
}

func newKeyHasher() *keyHasher {
	return &keyHasher{h: fnv.New64a()}
}

func (k *keyHasher) u64(v uint64) {
	binary.LittleEndian.PutUint64(k.buf[:], v)
	_, _ = k.h.Write(k.buf[:])
}

func (k *keyHasher) f64(v float64) {
	// Collapse -0 onto 0 so equal values hash equally.
	if v == 0 {
		v = 0
	}
	k.u64(math.Float64bits(v))
}

func (k *keyHasher) str(s string) {
	k.u64(uint64(len(s)))
	_, _ = k.h.Write([]byte(s))
}

func (k *keyHasher) color(c Color) {
	k.f64(c.R)
	k.f64(c.G)
	k.f64(c.B)
	k.f64(c.A)
}

func (k *keyHasher) rect(r Rect) {
	k.f64(r.X)
	k.f64(r.Y)
	k.f64(r.Width)
	k.f64(r.Height)
}

func (k *keyHasher) sum() uint64 { return k.h.Sum64() }

// memoKey hashes the declaration kind, its parameters and the generations of
// its resolved inputs.
func memoKey(p Props, children []Resolved) uint64 {
	k := newKeyHasher()
	k.str(p.Kind())
	p.writeKey(k)
	k.u64(uint64(len(children)))
	for _, c := range children {
		k.u64(uint64(c.Cap))
		k.u64(c.Gen)
	}
	return k.sum()
}

// identityProps is implemented by kinds that reference objects compared by
// identity rather than by value (images).
type identityProps interface {
	identities() []any
}

func propIdentities(p Props) []any {
	if ip, ok := p.(identityProps); ok {
		return ip.identities()
	}
	return nil
}

func sameIdentities(a, b []any) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// inputs is the ordered list of a declaration's resolved children.
type inputs []Resolved

// first returns the effect of the first child with capability c, applying the
// permissive rule: later children of the same capability are ignored.
func (in inputs) first(c Capability) Effect {
	for _, r := range in {
		if r.Cap == c {
			return r.Effect
		}
	}
	return nil
}

// all returns every child of capability c in order, absent ones included.
func (in inputs) all(c Capability) []Effect {
	var out []Effect
	for _, r := range in {
		if r.Cap == c {
			out = append(out, r.Effect)
		}
	}
	return out
}
