package geospatial

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"sort"
	"sync"

	"github.com/sells-group/lease-match/internal/model"
)

// Inventory is the store of known government-occupied properties.
type Inventory interface {
	// WithinBBox returns properties inside the box ordered by id, capped at limit.
	WithinBBox(ctx context.Context, box BBox, limit int) ([]model.FederalProperty, error)
	// SamplePoints returns up to n property locations in a stable
	// pseudo-random order.
	SamplePoints(ctx context.Context, n int) ([]Point, error)
	Count(ctx context.Context) (int, error)
	Upsert(ctx context.Context, props []model.FederalProperty) (int64, error)
	StateSummary(ctx context.Context) ([]StateSummary, error)
}

// MemoryInventory is an in-process Inventory used by tests and small
// deployments.
type MemoryInventory struct {
	mu    sync.RWMutex
	props map[string]model.FederalProperty
}

// NewMemoryInventory creates an inventory seeded with props.
func NewMemoryInventory(props ...model.FederalProperty) *MemoryInventory {
	inv := &MemoryInventory{props: make(map[string]model.FederalProperty, len(props))}
	for _, p := range props {
		inv.props[p.ID] = p
	}
	return inv
}

// WithinBBox implements Inventory.
func (m *MemoryInventory) WithinBBox(_ context.Context, box BBox, limit int) ([]model.FederalProperty, error) {
	m.mu.RLock()
	var out []model.FederalProperty
	for _, p := range m.props {
		if box.Contains(p.Latitude, p.Longitude) {
			out = append(out, p)
		}
	}
	m.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// SamplePoints implements Inventory. Order is by md5(id), matching the
// Postgres implementation.
func (m *MemoryInventory) SamplePoints(_ context.Context, n int) ([]Point, error) {
	m.mu.RLock()
	type keyed struct {
		hash string
		pt   Point
	}
	all := make([]keyed, 0, len(m.props))
	for id, p := range m.props {
		sum := md5.Sum([]byte(id))
		all = append(all, keyed{hash: hex.EncodeToString(sum[:]), pt: Point{Lat: p.Latitude, Lng: p.Longitude}})
	}
	m.mu.RUnlock()

	sort.Slice(all, func(i, j int) bool { return all[i].hash < all[j].hash })
	if n > 0 && len(all) > n {
		all = all[:n]
	}
	out := make([]Point, len(all))
	for i, k := range all {
		out[i] = k.pt
	}
	return out, nil
}

// Count implements Inventory.
func (m *MemoryInventory) Count(_ context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.props), nil
}

// Upsert implements Inventory.
func (m *MemoryInventory) Upsert(_ context.Context, props []model.FederalProperty) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range props {
		m.props[p.ID] = p
	}
	return int64(len(props)), nil
}

// StateSummary implements Inventory.
func (m *MemoryInventory) StateSummary(_ context.Context) ([]StateSummary, error) {
	m.mu.RLock()
	props := make([]model.FederalProperty, 0, len(m.props))
	for _, p := range m.props {
		props = append(props, p)
	}
	m.mu.RUnlock()
	return summarizeByState(props), nil
}
