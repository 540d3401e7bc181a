package ifc

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/RoaringBitmap/roaring/v2"
	"go.uber.org/zap"

	"github.com/Faultbox/ifcmesh/internal/picking"
	"github.com/Faultbox/ifcmesh/pkg/diag"
	"github.com/Faultbox/ifcmesh/pkg/formats"
	"github.com/Faultbox/ifcmesh/pkg/mesh"
)

// LoadStats summarizes one finished load, successful or not.
type LoadStats struct {
	ModelID     ModelID
	State       State
	Container   formats.Container
	Bytes       int
	Entities    int
	Products    int // geometry-bearing entities
	Rendered    int // entities that contributed triangles
	Vertices    int
	Triangles   int
	Diagnostics map[diag.Kind]int

	DecodeDuration time.Duration
	BuildDuration  time.Duration
	MergeDuration  time.Duration
}

// Observer receives load statistics, e.g. to export metrics.
// ObserveLoad is called once per load after the model reaches a terminal
// state and must be safe for concurrent use.
type Observer interface {
	ObserveLoad(LoadStats)
}

type noopObserver struct{}

func (noopObserver) ObserveLoad(LoadStats) {}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger used for load lifecycle messages.
func WithLogger(log *zap.Logger) Option {
	return func(s *Store) {
		if log != nil {
			s.log = log
		}
	}
}

// WithObserver registers an observer for load statistics.
func WithObserver(o Observer) Option {
	return func(s *Store) {
		if o != nil {
			s.observer = o
		}
	}
}

// model is the store's record of one load. Fields other than state and err
// are written once, under the store lock, when the model becomes Ready.
type model struct {
	id    ModelID
	state State
	err   error // failure reason of a tombstone

	doc         *formats.Document
	mesh        *mesh.UnifiedMesh
	index       mesh.GeometryIndex
	rendered    *roaring.Bitmap
	downgraded  *roaring.Bitmap
	diagnostics []diag.Diagnostic
}

// Store owns loaded models. Multiple stores are independent.
type Store struct {
	mu     sync.RWMutex
	models map[ModelID]*model
	nextID ModelID

	log      *zap.Logger
	observer Observer
}

// NewStore creates an empty store.
func NewStore(opts ...Option) *Store {
	s := &Store{
		models:   make(map[ModelID]*model),
		log:      zap.NewNop(),
		observer: noopObserver{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// register allocates the next model ID in state Unloaded.
func (s *Store) register() *model {
	s.mu.Lock()
	defer s.mu.Unlock()
	m := &model{id: s.nextID, state: StateUnloaded}
	s.models[m.id] = m
	s.nextID++
	return m
}

// transition moves an in-flight model to the next state. It reports false
// when the model was released in the meantime.
func (s *Store) transition(m *model, to State) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if m.state == StateReleased {
		return false
	}
	m.state = to
	return true
}

// fail leaves a tombstone recording why the load failed.
func (s *Store) fail(m *model, to State, err error) *LoadError {
	s.mu.Lock()
	defer s.mu.Unlock()
	if m.state == StateReleased {
		return &LoadError{ModelID: m.id, State: StateReleased, Err: err}
	}
	m.state = to
	m.err = err
	return &LoadError{ModelID: m.id, State: to, Err: err}
}

// ready returns a snapshot of a Ready model. Unknown IDs and tombstones
// yield ErrNotFound. The snapshot stays valid after a concurrent Release.
func (s *Store) ready(id ModelID) (model, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.models[id]
	if !ok {
		return model{}, fmt.Errorf("model %d: %w", id, ErrNotFound)
	}
	if m.state != StateReady {
		return model{}, fmt.Errorf("model %d is %s: %w", id, m.state, ErrNotFound)
	}
	return *m, nil
}

// State returns the lifecycle state of a model, including tombstones.
func (s *Store) State(id ModelID) (State, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.models[id]
	if !ok {
		return StateUnloaded, fmt.Errorf("model %d: %w", id, ErrNotFound)
	}
	return m.state, nil
}

// Failure returns the reason recorded for a failed load, or nil when the
// model is unknown or did not fail.
func (s *Store) Failure(id ModelID) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if m, ok := s.models[id]; ok {
		return m.err
	}
	return nil
}

// Models returns the IDs of every model the store knows, ascending.
func (s *Store) Models() []ModelID {
	s.mu.RLock()
	ids := make([]ModelID, 0, len(s.models))
	for id := range s.models {
		ids = append(ids, id)
	}
	s.mu.RUnlock()
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Release frees the geometry and entities of a model and leaves a Released
// tombstone. Releasing a model that is still loading makes the load
// discard its result. Releasing twice is a no-op.
func (s *Store) Release(id ModelID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.models[id]
	if !ok {
		return fmt.Errorf("model %d: %w", id, ErrNotFound)
	}
	if m.state == StateReleased {
		return nil
	}
	m.state = StateReleased
	m.doc = nil
	m.mesh = nil
	m.index = nil
	m.rendered = nil
	m.downgraded = nil
	m.diagnostics = nil
	s.log.Debug("model released", zap.Uint32("model", uint32(id)))
	return nil
}

// GetEntity returns the decoded record of an entity.
func (s *Store) GetEntity(id ModelID, entityID uint32) (*formats.EntityRecord, error) {
	m, err := s.ready(id)
	if err != nil {
		return nil, err
	}
	rec, ok := m.doc.Entity(entityID)
	if !ok {
		return nil, fmt.Errorf("model %d: entity #%d: %w", id, entityID, ErrNotFound)
	}
	return rec, nil
}

// ResolveTriangle returns the entity that produced triangle t.
func (s *Store) ResolveTriangle(id ModelID, t uint32) (uint32, error) {
	m, err := s.ready(id)
	if err != nil {
		return 0, err
	}
	if count := m.index.TriangleCount(); t >= count {
		return 0, fmt.Errorf("model %d: triangle %d of %d: %w", id, t, count, ErrIndexOutOfRange)
	}
	r, ok := m.index.Lookup(t)
	if !ok {
		return 0, fmt.Errorf("model %d: triangle %d: %w", id, t, ErrIndexOutOfRange)
	}
	return r.EntityID, nil
}

// Mesh returns the unified mesh of a Ready model. The mesh is shared and
// must not be modified.
func (s *Store) Mesh(id ModelID) (*mesh.UnifiedMesh, error) {
	m, err := s.ready(id)
	if err != nil {
		return nil, err
	}
	return m.mesh, nil
}

// Index returns a copy of the triangle range index of a Ready model.
func (s *Store) Index(id ModelID) (mesh.GeometryIndex, error) {
	m, err := s.ready(id)
	if err != nil {
		return nil, err
	}
	out := make(mesh.GeometryIndex, len(m.index))
	copy(out, m.index)
	return out, nil
}

// Pick returns the nearest triangle hit by a world-space ray.
// ok is false when the ray hits nothing.
func (s *Store) Pick(id ModelID, ray picking.Ray) (hit picking.Hit, ok bool, err error) {
	m, err := s.ready(id)
	if err != nil {
		return picking.Hit{}, false, err
	}
	hit, ok = picking.Pick(m.mesh, m.index, ray)
	return hit, ok, nil
}

// ModelInfo describes a Ready model.
type ModelInfo struct {
	ID          ModelID
	State       State
	Header      formats.Header
	Container   formats.Container
	Entities    int
	Vertices    int
	Triangles   int
	Bounds      mesh.Bounds
	Rendered    *roaring.Bitmap // entities with triangles
	Downgraded  *roaring.Bitmap // entities with dangling references
	Diagnostics []diag.Diagnostic
}

// Info returns a summary of a Ready model. The bitmaps are copies.
func (s *Store) Info(id ModelID) (ModelInfo, error) {
	m, err := s.ready(id)
	if err != nil {
		return ModelInfo{}, err
	}
	return ModelInfo{
		ID:          m.id,
		State:       StateReady,
		Header:      m.doc.Header,
		Container:   m.doc.Container,
		Entities:    len(m.doc.Entities),
		Vertices:    m.mesh.VertexCount(),
		Triangles:   m.mesh.TriangleCount(),
		Bounds:      m.mesh.Bounds,
		Rendered:    m.rendered.Clone(),
		Downgraded:  m.downgraded.Clone(),
		Diagnostics: append([]diag.Diagnostic(nil), m.diagnostics...),
	}, nil
}

// EntitiesByType returns the IDs of a Ready model's entities of one IFC
// type, ascending.
func (s *Store) EntitiesByType(id ModelID, typ string) ([]uint32, error) {
	m, err := s.ready(id)
	if err != nil {
		return nil, err
	}
	recs := m.doc.ByType(typ)
	ids := make([]uint32, len(recs))
	for i, rec := range recs {
		ids[i] = rec.ID
	}
	return ids, nil
}
