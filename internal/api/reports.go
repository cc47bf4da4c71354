package api

import (
	"fmt"
	"net/http"

	"github.com/sells-group/lease-match/internal/geospatial"
)

func (s *Server) scoreReport(w http.ResponseWriter, r *http.Request) {
	if s.deps.Analytics == nil {
		writeError(w, http.StatusServiceUnavailable, "analytics unavailable")
		return
	}
	rep, err := s.deps.Analytics.Scores(r.Context())
	if err != nil {
		internalError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

func (s *Server) prefilterReport(w http.ResponseWriter, r *http.Request) {
	if s.deps.Analytics == nil {
		writeError(w, http.StatusServiceUnavailable, "analytics unavailable")
		return
	}
	limit, err := intParam(r.URL.Query().Get("runs"), 0, 1, 500)
	if err != nil {
		badRequest(w, "runs: "+err.Error())
		return
	}
	rep, err := s.deps.Analytics.Prefilter(r.Context(), limit)
	if err != nil {
		internalError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

func (s *Server) topReport(w http.ResponseWriter, r *http.Request) {
	if s.deps.Analytics == nil {
		writeError(w, http.StatusServiceUnavailable, "analytics unavailable")
		return
	}
	n, err := intParam(r.URL.Query().Get("n"), 10, 1, 100)
	if err != nil {
		badRequest(w, "n: "+err.Error())
		return
	}
	rep, err := s.deps.Analytics.Top(r.Context(), n)
	if err != nil {
		internalError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

func (s *Server) densityReport(w http.ResponseWriter, _ *http.Request) {
	if s.deps.Analytics == nil {
		writeError(w, http.StatusServiceUnavailable, "analytics unavailable")
		return
	}
	writeJSON(w, http.StatusOK, s.deps.Analytics.Density())
}

func (s *Server) inventoryReport(w http.ResponseWriter, r *http.Request) {
	if s.deps.Analytics == nil || s.deps.Inventory == nil {
		writeError(w, http.StatusServiceUnavailable, "federal inventory unavailable")
		return
	}
	rep, err := s.deps.Analytics.Inventory(r.Context())
	if err != nil {
		internalError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

// densityAt scores federal presence around ?lat&lng[&radius].
func (s *Server) densityAt(w http.ResponseWriter, r *http.Request) {
	if s.deps.Density == nil {
		writeError(w, http.StatusServiceUnavailable, "density scoring unavailable")
		return
	}
	q := r.URL.Query()
	lat, err := floatParam(q.Get("lat"))
	if err != nil {
		badRequest(w, "lat: "+err.Error())
		return
	}
	lng, err := floatParam(q.Get("lng"))
	if err != nil {
		badRequest(w, "lng: "+err.Error())
		return
	}
	radius := s.cfg.DensityRadiusMiles
	if v := q.Get("radius"); v != "" {
		if radius, err = floatParam(v); err != nil {
			badRequest(w, "radius: "+err.Error())
			return
		}
	}
	if err := s.deps.Density.ValidateQuery(lat, lng, radius); err != nil {
		badRequest(w, err.Error())
		return
	}

	score, err := s.deps.Density.Score(r.Context(), lat, lng, radius)
	if err != nil {
		internalError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, score)
}

// propertiesInViewport lists the inventory inside a map bounding box.
func (s *Server) propertiesInViewport(w http.ResponseWriter, r *http.Request) {
	if s.deps.Inventory == nil {
		writeError(w, http.StatusServiceUnavailable, "federal inventory unavailable")
		return
	}
	q := r.URL.Query()
	var box geospatial.BBox
	for _, p := range []struct {
		name string
		dst  *float64
	}{
		{"min_lng", &box.MinLng},
		{"min_lat", &box.MinLat},
		{"max_lng", &box.MaxLng},
		{"max_lat", &box.MaxLat},
	} {
		v, err := floatParam(q.Get(p.name))
		if err != nil {
			badRequest(w, fmt.Sprintf("%s: %v", p.name, err))
			return
		}
		*p.dst = v
	}
	if err := box.Validate(); err != nil {
		badRequest(w, err.Error())
		return
	}
	limit, err := intParam(q.Get("limit"), 0, 1, geospatial.MaxViewportLimit)
	if err != nil {
		badRequest(w, "limit: "+err.Error())
		return
	}

	props, err := geospatial.PropertiesInViewport(r.Context(), s.deps.Inventory, box, limit)
	if err != nil {
		internalError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"properties": props,
		"count":      len(props),
	})
}
