package geospatial

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/lease-match/internal/model"
)

// Viewport limits.
const (
	DefaultViewportLimit = 1000
	MaxViewportLimit     = 5000
)

// PropertiesInViewport returns the inventory inside a map viewport. A limit
// of zero means DefaultViewportLimit; larger than MaxViewportLimit is capped.
func PropertiesInViewport(ctx context.Context, inv Inventory, box BBox, limit int) ([]model.FederalProperty, error) {
	if err := box.Validate(); err != nil {
		return nil, err
	}
	switch {
	case limit <= 0:
		limit = DefaultViewportLimit
	case limit > MaxViewportLimit:
		limit = MaxViewportLimit
	}

	props, err := inv.WithinBBox(ctx, box, limit)
	if err != nil {
		return nil, eris.Wrap(err, "geo: viewport query")
	}
	if props == nil {
		props = []model.FederalProperty{}
	}
	return props, nil
}
