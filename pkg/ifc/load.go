package ifc

import (
	"context"
	"errors"
	"fmt"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/RoaringBitmap/roaring/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Faultbox/ifcmesh/pkg/diag"
	"github.com/Faultbox/ifcmesh/pkg/formats"
	"github.com/Faultbox/ifcmesh/pkg/geometry"
	"github.com/Faultbox/ifcmesh/pkg/mesh"
)

// LoadOptions controls decoding and tessellation.
type LoadOptions struct {
	// Tolerance is the chord flatness for curved segments in model units.
	Tolerance float64
	// MaxWorkers bounds parallel geometry building. Zero uses GOMAXPROCS.
	MaxWorkers int
	// Strict makes dangling references fatal.
	Strict bool
	// IndexWidth is 16 or 32 bits. Zero means 32.
	IndexWidth int
	// ExcludeTypes lists product types that are decoded but not tessellated.
	// Nil means DefaultExcludedTypes; an empty slice builds every product.
	ExcludeTypes []string
	// MaxDocumentSize caps decompressed STEP text in bytes. Zero means
	// formats.DefaultMaxDocumentSize.
	MaxDocumentSize int64
}

// DefaultExcludedTypes returns the product types left out of the mesh by
// default. Openings and voiding features describe holes, not material, and
// spaces would enclose every element picked from inside a room.
func DefaultExcludedTypes() []string {
	return []string{"IFCOPENINGELEMENT", "IFCOPENINGSTANDARDCASE", "IFCVOIDINGFEATURE", "IFCSPACE"}
}

// DefaultLoadOptions returns the options used when none are given.
func DefaultLoadOptions() LoadOptions {
	return LoadOptions{
		Tolerance:    geometry.DefaultTolerance,
		MaxWorkers:   runtime.GOMAXPROCS(0),
		IndexWidth:   32,
		ExcludeTypes: DefaultExcludedTypes(),
	}
}

func (o LoadOptions) withDefaults() LoadOptions {
	if o.Tolerance <= 0 {
		o.Tolerance = geometry.DefaultTolerance
	}
	if o.MaxWorkers <= 0 {
		o.MaxWorkers = runtime.GOMAXPROCS(0)
	}
	if o.ExcludeTypes == nil {
		o.ExcludeTypes = DefaultExcludedTypes()
	}
	return o
}

// buildable splits geometry-bearing records into those to tessellate and
// the number left out by ExcludeTypes.
func (o LoadOptions) buildable(records []*formats.EntityRecord) ([]*formats.EntityRecord, int) {
	if len(o.ExcludeTypes) == 0 {
		return records, 0
	}
	excluded := make(map[string]bool, len(o.ExcludeTypes))
	for _, typ := range o.ExcludeTypes {
		excluded[strings.ToUpper(typ)] = true
	}
	out := make([]*formats.EntityRecord, 0, len(records))
	for _, rec := range records {
		if !excluded[rec.Type] {
			out = append(out, rec)
		}
	}
	return out, len(records) - len(out)
}

// LoadResult describes a model that reached Ready.
type LoadResult struct {
	ModelID     ModelID
	State       State
	Diagnostics []diag.Diagnostic
	// Unsupported counts unsupported shape diagnostics by IFC type.
	Unsupported map[string]int

	Entities  int
	Products  int
	Excluded  int // products skipped by ExcludeTypes
	Rendered  int
	Vertices  int
	Triangles int
	Duration  time.Duration
}

// LoadFile reads a document from disk and loads it.
func (s *Store) LoadFile(ctx context.Context, path string, opts LoadOptions) (*LoadResult, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading IFC file: %w", err)
	}
	return s.Load(ctx, data, opts)
}

// Load decodes and tessellates a document into a new model.
//
// A load either reaches Ready, possibly with diagnostics, or fails with a
// *LoadError and leaves a tombstone in FailedToOpen, DecodeFailed or
// BuildFailed. No mesh or index is visible before the merge completes.
func (s *Store) Load(ctx context.Context, data []byte, opts LoadOptions) (*LoadResult, error) {
	opts = opts.withDefaults()
	start := time.Now()

	m := s.register()
	log := s.log.With(zap.Uint32("model", uint32(m.id)))
	stats := LoadStats{ModelID: m.id, Bytes: len(data)}
	finish := func(state State) {
		stats.State = state
		s.observer.ObserveLoad(stats)
	}

	// Decode
	s.transition(m, StateDecoding)
	log.Debug("decoding model", zap.Int("bytes", len(data)))
	doc, err := formats.Decode(data, formats.DecodeOptions{
		Strict:          opts.Strict,
		MaxDocumentSize: opts.MaxDocumentSize,
	})
	stats.DecodeDuration = time.Since(start)
	if err == nil {
		err = ctx.Err()
	}
	if err != nil {
		state := StateDecodeFailed
		if formats.IsFormatError(err, formats.ReasonUnreadable) || formats.IsFormatError(err, formats.ReasonUnrecognizedSchema) {
			state = StateFailedToOpen
		}
		lerr := s.fail(m, state, err)
		log.Warn("model decode failed", zap.Stringer("state", lerr.State), zap.Error(err))
		finish(lerr.State)
		return nil, lerr
	}
	stats.Container = doc.Container
	stats.Entities = len(doc.Entities)
	if !s.transition(m, StateDecoded) {
		finish(StateReleased)
		return nil, &LoadError{ModelID: m.id, State: StateReleased, Err: ErrReleased}
	}
	log.Debug("model decoded",
		zap.Int("entities", len(doc.Entities)),
		zap.String("schema", doc.Header.Schema()),
		zap.Stringer("container", doc.Container),
		zap.Int("diagnostics", len(doc.Diagnostics)))

	// Build
	s.transition(m, StateBuilding)
	buildStart := time.Now()
	products, excluded := opts.buildable(doc.ByKind(formats.KindGeometry))
	stats.Products = len(products)
	if excluded > 0 {
		log.Debug("products excluded by type", zap.Int("count", excluded), zap.Strings("types", opts.ExcludeTypes))
	}
	frags, diags, err := buildFragments(ctx, doc, products, opts)
	stats.BuildDuration = time.Since(buildStart)
	if err != nil {
		lerr := s.fail(m, StateBuildFailed, err)
		log.Warn("model build failed", zap.Error(err))
		finish(lerr.State)
		return nil, lerr
	}

	// Merge
	mergeStart := time.Now()
	unified, index, err := mesh.Merge(frags, mesh.MergeOptions{IndexWidth: opts.IndexWidth})
	stats.MergeDuration = time.Since(mergeStart)
	if err != nil {
		lerr := s.fail(m, StateBuildFailed, err)
		log.Warn("model merge failed", zap.Error(err))
		finish(lerr.State)
		return nil, lerr
	}

	all := make([]diag.Diagnostic, 0, len(doc.Diagnostics)+len(diags))
	all = append(all, doc.Diagnostics...)
	all = append(all, diags...)
	var sorted diag.List
	sorted.Append(all...)
	all = sorted.Sorted()

	rendered := roaring.New()
	for _, r := range index {
		rendered.Add(r.EntityID)
	}
	downgraded := roaring.New()
	for _, id := range doc.IDs() {
		if doc.Entities[id].Downgraded {
			downgraded.Add(id)
		}
	}

	stats.Rendered = int(rendered.GetCardinality())
	stats.Vertices = unified.VertexCount()
	stats.Triangles = unified.TriangleCount()
	stats.Diagnostics = make(map[diag.Kind]int)
	for _, d := range all {
		stats.Diagnostics[d.Kind]++
	}

	// Publish
	s.mu.Lock()
	if m.state == StateReleased {
		s.mu.Unlock()
		log.Debug("model released during load; discarding result")
		finish(StateReleased)
		return nil, &LoadError{ModelID: m.id, State: StateReleased, Err: ErrReleased}
	}
	m.doc = doc
	m.mesh = unified
	m.index = index
	m.rendered = rendered
	m.downgraded = downgraded
	m.diagnostics = all
	m.state = StateReady
	s.mu.Unlock()

	result := &LoadResult{
		ModelID:     m.id,
		State:       StateReady,
		Diagnostics: all,
		Unsupported: diag.Tally(all, diag.KindUnsupportedShape),
		Entities:    stats.Entities,
		Products:    stats.Products,
		Excluded:    excluded,
		Rendered:    stats.Rendered,
		Vertices:    stats.Vertices,
		Triangles:   stats.Triangles,
		Duration:    time.Since(start),
	}
	for _, d := range all {
		log.Debug("diagnostic", zap.String("kind", string(d.Kind)), zap.Uint32("entity", d.EntityID), zap.String("message", d.Message))
	}
	if len(result.Unsupported) > 0 {
		log.Warn("unsupported shapes skipped", zap.Any("types", result.Unsupported))
	}
	log.Info("model ready",
		zap.Int("entities", result.Entities),
		zap.Int("products", result.Products),
		zap.Int("excluded", result.Excluded),
		zap.Int("rendered", result.Rendered),
		zap.Int("vertices", result.Vertices),
		zap.Int("triangles", result.Triangles),
		zap.Int("diagnostics", len(all)),
		zap.Duration("duration", result.Duration))
	finish(StateReady)
	return result, nil
}

// buildFragments tessellates products on a bounded worker pool. Each result
// lands in the slot of its product, so the returned order is ascending
// entity ID whatever order the workers finish in.
func buildFragments(ctx context.Context, doc *formats.Document, products []*formats.EntityRecord, opts LoadOptions) ([]*mesh.Fragment, []diag.Diagnostic, error) {
	builder := geometry.NewBuilder(opts.Tolerance)
	frags := make([]*mesh.Fragment, len(products))
	var diags diag.List

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.MaxWorkers)
	for i, rec := range products {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			frag, ds, err := builder.Build(rec, doc)
			diags.Append(ds...)
			if err != nil {
				var fe *formats.FormatError
				if errors.As(err, &fe) {
					return err
				}
				diags.Add(entityDiagnostic(rec, err))
				return nil
			}
			frags[i] = frag
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	// errgroup swallows cancellation when every worker finished first.
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	return frags, diags.Sorted(), nil
}

// entityDiagnostic turns a per-entity build failure into a diagnostic.
func entityDiagnostic(rec *formats.EntityRecord, err error) diag.Diagnostic {
	kind := diag.KindDegenerateGeometry
	switch {
	case errors.Is(err, geometry.ErrDanglingReference):
		kind = diag.KindDanglingReference
	case errors.Is(err, geometry.ErrMalformedEntity):
		kind = diag.KindMalformedField
	case errors.Is(err, geometry.ErrUnsupportedShape):
		kind = diag.KindUnsupportedShape
	}
	return diag.Diagnostic{Kind: kind, EntityID: rec.ID, Type: rec.Type, Message: err.Error()}
}
