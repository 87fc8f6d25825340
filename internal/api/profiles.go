package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/flowbench-core/internal/profile"
)

// defaultProfileResolution applies when the resolution query parameter is absent.
const defaultProfileResolution = 100

// profileResponse is the body of GET /profiles/{kind}.
type profileResponse struct {
	Kind       profile.Kind `json:"kind"`
	Resolution int          `json:"resolution"`
	Plateaus   int          `json:"plateaus"`
	Shape      float64      `json:"shape"`
	Reversed   bool         `json:"reversed"`
	Points     []float64    `json:"points"`
}

// handleGetProfile generates motion profile waypoints. Query parameters:
// resolution, plateaus, shape and reverse.
func (s *Server) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	kind, err := profile.ParseKind(chi.URLParam(r, "kind"))
	if err != nil {
		writeNotFound(w, err.Error())
		return
	}

	q := r.URL.Query()
	opts := profile.DefaultOptions()
	resolution := defaultProfileResolution

	if v := q.Get("resolution"); v != "" {
		if resolution, err = strconv.Atoi(v); err != nil {
			writeBadRequest(w, "resolution must be an integer")
			return
		}
	}
	if v := q.Get("plateaus"); v != "" {
		if opts.Plateaus, err = strconv.Atoi(v); err != nil {
			writeBadRequest(w, "plateaus must be an integer")
			return
		}
	}
	if v := q.Get("shape"); v != "" {
		if opts.Shape, err = strconv.ParseFloat(v, 64); err != nil {
			writeBadRequest(w, "shape must be a number")
			return
		}
	}
	reverse := false
	if v := q.Get("reverse"); v != "" {
		if reverse, err = strconv.ParseBool(v); err != nil {
			writeBadRequest(w, "reverse must be a boolean")
			return
		}
	}

	points, err := profile.GenerateWithOptions(kind, resolution, opts)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	if reverse {
		points = profile.Reverse(points)
	}

	writeJSON(w, http.StatusOK, profileResponse{
		Kind:       kind,
		Resolution: resolution,
		Plateaus:   opts.Plateaus,
		Shape:      opts.Shape,
		Reversed:   reverse,
		Points:     points,
	})
}
