package supers

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/iwanowww/supers/resource"
	"github.com/iwanowww/supers/table"
	"github.com/iwanowww/supers/typeid"
)

// Hierarchy owns a set of types and the machinery that links them: the ID
// source, the process-wide build configuration, and the builder.
//
// Type definition is serialized by the hierarchy's lock; subtype checks on
// defined types never take it.
type Hierarchy struct {
	mu      sync.Mutex
	cfg     table.Config
	src     *typeid.Source
	space   *typeid.Space // verify mode only
	logger  *Logger
	metrics MetricsCollector
	res     *resource.Controller

	root    *Type
	types   map[string]*Type
	ordered []*Type // definition order; archives preserve it
}

// New creates an empty hierarchy.
func New(optFns ...Option) (*Hierarchy, error) {
	o := defaultOptions()
	for _, fn := range optFns {
		fn(&o)
	}
	if err := o.cfg.Validate(); err != nil {
		return nil, fmt.Errorf("supers: invalid config: %w", err)
	}

	h := &Hierarchy{
		cfg:     o.cfg,
		src:     typeid.NewSource(o.seed),
		logger:  o.logger,
		metrics: o.metrics,
		res:     o.res,
		types:   make(map[string]*Type),
	}
	if o.cfg.Verify {
		h.space = typeid.NewSpace()
	}
	return h, nil
}

// Config returns the hierarchy's build configuration.
func (h *Hierarchy) Config() table.Config { return h.cfg }

// Lookup returns the type with the given name, if defined.
func (h *Hierarchy) Lookup(name string) (*Type, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	t, ok := h.types[name]
	return t, ok
}

// Len returns the number of defined types.
func (h *Hierarchy) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.types)
}

// Types returns all types in definition order.
func (h *Hierarchy) Types() []*Type {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]*Type(nil), h.ordered...)
}

// Define links a class: super nil makes it a root (at most one per
// hierarchy), ifaces are its directly implemented interfaces. The type's
// secondary-supertype table is built and published before Define returns.
func (h *Hierarchy) Define(name string, super *Type, ifaces ...*Type) (*Type, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	t, err := h.prepare(name, false, super, ifaces)
	if err != nil {
		return nil, err
	}
	if err := h.buildAndPublish(t); err != nil {
		h.unregister(t)
		return nil, err
	}
	return t, nil
}

// DefineInterface links an interface extending the given interfaces. Its
// superclass is the hierarchy's root, which must already be defined.
func (h *Hierarchy) DefineInterface(name string, extends ...*Type) (*Type, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.root == nil {
		return nil, fmt.Errorf("supers: %q: %w: define a root class before interfaces", name, ErrUnknownType)
	}
	t, err := h.prepare(name, true, h.root, extends)
	if err != nil {
		return nil, err
	}
	if err := h.buildAndPublish(t); err != nil {
		h.unregister(t)
		return nil, err
	}
	return t, nil
}

// prepare performs the serialized half of a definition: validation, ID
// assignment, primary ancestor chain, registration. The caller builds and
// publishes the table.
func (h *Hierarchy) prepare(name string, iface bool, super *Type, ifaces []*Type) (*Type, error) {
	if _, dup := h.types[name]; dup {
		return nil, fmt.Errorf("supers: %q: %w", name, ErrDuplicateType)
	}
	if super == nil && h.root != nil {
		return nil, fmt.Errorf("supers: %q: %w: root is %q", name, ErrDuplicateType, h.root.name)
	}
	if super != nil && super.iface {
		return nil, fmt.Errorf("supers: %q: superclass %q: %w", name, super.name, ErrNotAClass)
	}
	for _, i := range ifaces {
		if !i.iface {
			return nil, fmt.Errorf("supers: %q: superinterface %q: %w", name, i.name, ErrNotAnInterface)
		}
	}

	t := &Type{
		name:   name,
		iface:  iface,
		super:  super,
		ifaces: append([]*Type(nil), ifaces...),
		id:     h.src.Next(),
	}
	if h.space != nil && h.space.Record(t.id) {
		return nil, fmt.Errorf("supers: %q: %w", name, ErrIDCollision)
	}
	h.initPrimarySupers(t)

	if super == nil {
		h.root = t
	}
	h.types[name] = t
	h.ordered = append(h.ordered, t)
	return t, nil
}

// buildAndPublish runs the placement search for one type and publishes the
// result. Publication is a release store; the table is never mutated after.
func (h *Hierarchy) buildAndPublish(t *Type) error {
	start := time.Now()
	secondaries := h.secondarySupers(t)
	tb, res := table.NewBuilder[*Type]((*Type).ID, h.src.Rand, h.cfg).Build(secondaries)
	if h.cfg.Verify {
		for _, s := range secondaries {
			if !tb.Contains(s) {
				return fmt.Errorf("supers: %q: secondary %q: %w", t.name, s.name, ErrTableDefect)
			}
		}
	}
	t.secondary.Store(tb)

	elapsed := time.Since(start)
	h.metrics.RecordBuild(res.Stats, res.Attempts, elapsed)
	h.logger.LogBuild(t.name, len(secondaries), res, elapsed)
	return nil
}

// unregister rolls back registrations made by prepare.
func (h *Hierarchy) unregister(types ...*Type) {
	for _, t := range types {
		delete(h.types, t.name)
		if h.root == t {
			h.root = nil
		}
	}
	h.ordered = h.ordered[:len(h.ordered)-len(types)]
}

// initPrimarySupers computes the type's depth and primary ancestor chain.
// Interfaces and chains deeper than PrimarySuperLimit are forced into the
// overflow regime: checks against them go through the secondary table.
func (h *Hierarchy) initPrimarySupers(t *Type) {
	if t.super == nil {
		t.primary[0] = t
		return
	}
	depth := t.super.depth + 1
	if depth > PrimarySuperLimit || t.iface {
		depth = PrimarySuperLimit
	}
	t.depth = depth
	copy(t.primary[:depth], t.super.primary[:])
	if depth < PrimarySuperLimit {
		t.primary[depth] = t
	}
}

// secondarySupers computes the deduplicated secondary-supertype set: the
// ancestors that overflowed the primary chain first, then the transitive
// interface closure. Computed exactly once per type, under the hierarchy
// lock.
func (h *Hierarchy) secondarySupers(t *Type) []*Type {
	seen := make(map[*Type]struct{})
	var set []*Type
	add := func(s *Type) {
		if _, ok := seen[s]; !ok {
			seen[s] = struct{}{}
			set = append(set, s)
		}
	}

	// Overflowed ancestors go in front: placement follows input order and
	// they are the likelier check targets.
	for s := t.super; s != nil && !s.canBePrimarySuper(); s = s.super {
		add(s)
	}

	visited := make(map[*Type]struct{})
	var walk func(s *Type)
	walk = func(s *Type) {
		if _, ok := visited[s]; ok {
			return
		}
		visited[s] = struct{}{}
		if s.iface {
			add(s)
		}
		for _, i := range s.ifaces {
			walk(i)
		}
		if s.super != nil {
			// Ancestors' interfaces are inherited; ancestor classes are not
			// secondaries unless they overflowed (handled above).
			walk(s.super)
		}
	}
	for _, i := range t.ifaces {
		walk(i)
	}
	if t.super != nil {
		walk(t.super)
	}
	return set
}

// TypeDef describes one type in a DefineAll batch. References are by name and
// may point at previously defined types or other entries of the same batch.
type TypeDef struct {
	Name       string
	Interface  bool
	Super      string   // empty for the root class; ignored for interfaces
	Interfaces []string // superinterfaces
}

// DefineAll links a batch of types, building independent types' tables
// concurrently. Per-type builds stay single-threaded; only builds for
// different types overlap, bounded by the resource controller's worker limit.
// The batch is ordered internally, so definitions may reference each other in
// any order. On a bad definition the hierarchy keeps every type resolved
// before the failure, fully built; on cancellation the current level is
// rolled back.
func (h *Hierarchy) DefineAll(ctx context.Context, defs []TypeDef) ([]*Type, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	levels, err := h.order(defs)
	if err != nil {
		return nil, err
	}

	var out []*Type
	for _, level := range levels {
		// Phase 1 (serialized): resolve names, assign IDs, compute chains
		// and secondary sets. Keeps ID assignment deterministic.
		types := make([]*Type, 0, len(level))
		sets := make([][]*Type, 0, len(level))
		for _, def := range level {
			t, err := h.resolveAndPrepare(def)
			if err != nil {
				// Keep the resolvable prefix: finish the level's already
				// prepared types, since a registered type must never be
				// visible without a published table.
				for i, p := range types {
					if berr := h.buildAndPublish(p); berr != nil {
						h.unregister(types[i:]...)
						return out, berr
					}
					out = append(out, p)
				}
				return out, err
			}
			types = append(types, t)
			sets = append(sets, h.secondarySupers(t))
		}

		// Phase 2 (concurrent): run the randomized placement searches.
		// Each build gets its own builder and rand stream.
		g, gctx := errgroup.WithContext(ctx)
		for i := range types {
			src := typeid.NewSource(h.src.Rand())
			g.Go(func() error {
				return h.res.Do(gctx, func() error {
					start := time.Now()
					tb, res := table.NewBuilder[*Type]((*Type).ID, src.Rand, h.cfg).Build(sets[i])
					types[i].secondary.Store(tb)
					elapsed := time.Since(start)
					h.metrics.RecordBuild(res.Stats, res.Attempts, elapsed)
					h.logger.LogBuild(types[i].name, len(sets[i]), res, elapsed)
					return nil
				})
			})
		}
		if err := g.Wait(); err != nil {
			// Builds never fail; this is cancellation.
			h.unregister(types...)
			return out, err
		}
		out = append(out, types...)
	}
	return out, nil
}

// resolveAndPrepare maps a TypeDef's name references to types and runs
// prepare. Unknown names surface here, after ordering.
func (h *Hierarchy) resolveAndPrepare(def TypeDef) (*Type, error) {
	var super *Type
	switch {
	case def.Interface:
		if h.root == nil {
			return nil, fmt.Errorf("supers: %q: %w: define a root class before interfaces", def.Name, ErrUnknownType)
		}
		super = h.root
	case def.Super != "":
		s, ok := h.types[def.Super]
		if !ok {
			return nil, fmt.Errorf("supers: %q: superclass %q: %w", def.Name, def.Super, ErrUnknownType)
		}
		super = s
	}

	ifaces := make([]*Type, 0, len(def.Interfaces))
	for _, name := range def.Interfaces {
		i, ok := h.types[name]
		if !ok {
			return nil, fmt.Errorf("supers: %q: superinterface %q: %w", def.Name, name, ErrUnknownType)
		}
		ifaces = append(ifaces, i)
	}
	return h.prepare(def.Name, def.Interface, super, ifaces)
}

// order arranges a batch into dependency levels: every def's in-batch
// dependencies resolve in an earlier level. Dependencies outside the batch
// are left to resolveAndPrepare, which reports unknown names.
func (h *Hierarchy) order(defs []TypeDef) ([][]TypeDef, error) {
	inBatch := make(map[string]bool, len(defs))
	batchRoot := ""
	for _, d := range defs {
		inBatch[d.Name] = true
		if !d.Interface && d.Super == "" {
			batchRoot = d.Name
		}
	}
	resolved := make(map[string]bool)

	ready := func(d TypeDef) bool {
		deps := append([]string(nil), d.Interfaces...)
		if !d.Interface && d.Super != "" {
			deps = append(deps, d.Super)
		}
		if d.Interface && h.root == nil && batchRoot != "" {
			deps = append(deps, batchRoot) // interfaces hang off the root
		}
		for _, dep := range deps {
			if inBatch[dep] && !resolved[dep] {
				return false
			}
		}
		return true
	}

	pending := append([]TypeDef(nil), defs...)
	var levels [][]TypeDef
	for len(pending) > 0 {
		var level, rest []TypeDef
		for _, d := range pending {
			if ready(d) {
				level = append(level, d)
			} else {
				rest = append(rest, d)
			}
		}
		if len(level) == 0 {
			return nil, fmt.Errorf("supers: batch of %d unresolvable defs: %w", len(rest), ErrDependencyCycle)
		}
		for _, d := range level {
			resolved[d.Name] = true
		}
		levels = append(levels, level)
		pending = rest
	}
	return levels, nil
}
