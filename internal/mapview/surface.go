package mapview

import (
	"encoding/json"
	"log"
	"sync"

	"greenurban-desktop/internal/greenapi"
)

// Shape styles applied to district borders
const (
	DefaultColor  = "#95a5a6"
	DefaultWeight = 2
	ActiveColor   = "#e74c3c"
	ActiveWeight  = 4
)

// Change is one mutation the frontend applies to the Leaflet map. Fields
// are populated per Op; unused ones are omitted.
type Change struct {
	Op string `json:"op"`

	Districts []BorderShape `json:"districts,omitempty"`
	Name      string        `json:"name,omitempty"`

	TileURL string `json:"tile_url,omitempty"`
	Visible *bool  `json:"visible,omitempty"`

	Lat   float64 `json:"lat,omitempty"`
	Lng   float64 `json:"lng,omitempty"`
	Popup string  `json:"popup,omitempty"`

	Markers []CriticalMarker `json:"markers,omitempty"`

	Zoom int `json:"zoom,omitempty"`
}

// Change ops understood by the embedded frontend
const (
	OpSetBorders           = "set_borders"
	OpHighlight            = "highlight"
	OpClearHighlight       = "clear_highlight"
	OpSetOverlay           = "set_overlay"
	OpRemoveOverlay        = "remove_overlay"
	OpSetOverlayVisible    = "set_overlay_visible"
	OpSetBordersVisible    = "set_borders_visible"
	OpPlaceMarker          = "place_marker"
	OpRemoveMarker         = "remove_marker"
	OpSetCriticalMarkers   = "set_critical_markers"
	OpClearCriticalMarkers = "clear_critical_markers"
	OpFitDistrict          = "fit_district"
	OpSetView              = "set_view"
)

// BorderShape is one district boundary ready for the map
type BorderShape struct {
	Name     string          `json:"name"`
	Geometry json.RawMessage `json:"geometry"`
	Color    string          `json:"color"`
	Weight   int             `json:"weight"`
}

// CriticalMarker is one flagged district rendered as a colored marker
type CriticalMarker struct {
	DistrictName string  `json:"district_name"`
	Lat          float64 `json:"lat"`
	Lng          float64 `json:"lng"`
	Color        string  `json:"color"`
	Popup        string  `json:"popup"`
}

// Surface tracks what is currently on the map and produces the change
// sets that keep the frontend in sync. All result layers follow a
// remove-before-replace discipline: the previous occupant of a slot is
// detached before a new one is attached.
type Surface struct {
	mu sync.Mutex

	borders     []BorderShape
	highlighted string

	overlayURL     string
	overlayVisible bool
	bordersVisible bool

	hasMarker            bool
	markerLat, markerLng float64

	criticalMarkers []CriticalMarker

	pending []Change
}

// NewSurface creates a surface with borders visible and the NDVI overlay
// hidden, matching the dashboard's initial toggles
func NewSurface() *Surface {
	return &Surface{bordersVisible: true}
}

func (s *Surface) push(c Change) {
	s.pending = append(s.pending, c)
}

// Flush returns the accumulated change set and clears it
func (s *Surface) Flush() []Change {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.pending
	s.pending = nil
	return out
}

// SetDistrictBorders replaces the whole border collection. Districts
// without usable geometry are skipped and logged, never fail the batch.
func (s *Surface) SetDistrictBorders(list []greenapi.District) {
	s.mu.Lock()
	defer s.mu.Unlock()

	shapes := make([]BorderShape, 0, len(list))
	for _, d := range list {
		if len(d.Geometry) == 0 || string(d.Geometry) == "null" {
			log.Printf("Skipping district %q: no geometry", d.Name)
			continue
		}
		if !json.Valid(d.Geometry) {
			log.Printf("Skipping district %q: invalid geometry", d.Name)
			continue
		}
		shapes = append(shapes, BorderShape{
			Name:     d.Name,
			Geometry: d.Geometry,
			Color:    DefaultColor,
			Weight:   DefaultWeight,
		})
	}

	s.borders = shapes
	s.highlighted = ""
	s.push(Change{Op: OpSetBorders, Districts: shapes})
}

// HighlightDistrict restyles the named shape to the active style and
// every other shape back to default. An unknown name clears the
// highlight without error.
func (s *Surface) HighlightDistrict(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	found := false
	for _, b := range s.borders {
		if b.Name == name {
			found = true
			break
		}
	}
	if !found {
		s.highlighted = ""
		s.push(Change{Op: OpClearHighlight})
		return
	}
	s.highlighted = name
	s.push(Change{Op: OpHighlight, Name: name})
}

// Highlighted returns the currently highlighted district name, empty when
// none
func (s *Surface) Highlighted() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.highlighted
}

// ClearHighlight resets all shapes to the default style and removes the
// overlay, the coordinate marker, and the critical markers
func (s *Surface) ClearHighlight() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.highlighted = ""
	s.push(Change{Op: OpClearHighlight})
	s.removeOverlayLocked()
	s.removeMarkerLocked()
	s.clearCriticalMarkersLocked()
}

// SetNdviOverlay swaps in a new raster overlay source. Visibility is
// controlled separately; attaching a new overlay does not force it
// visible.
func (s *Surface) SetNdviOverlay(tileURL string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.removeOverlayLocked()
	if tileURL == "" {
		return
	}
	s.overlayURL = tileURL
	s.push(Change{Op: OpSetOverlay, TileURL: tileURL, Visible: boolPtr(s.overlayVisible)})
}

func (s *Surface) removeOverlayLocked() {
	if s.overlayURL == "" {
		return
	}
	s.overlayURL = ""
	s.push(Change{Op: OpRemoveOverlay})
}

// OverlayURL returns the current overlay tile source, empty when none
func (s *Surface) OverlayURL() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.overlayURL
}

// SetOverlayVisible toggles NDVI overlay visibility
func (s *Surface) SetOverlayVisible(visible bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.overlayVisible = visible
	s.push(Change{Op: OpSetOverlayVisible, Visible: boolPtr(visible)})
}

// OverlayVisible reports the overlay visibility flag
func (s *Surface) OverlayVisible() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.overlayVisible
}

// SetBordersVisible toggles the district border layer
func (s *Surface) SetBordersVisible(visible bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bordersVisible = visible
	s.push(Change{Op: OpSetBordersVisible, Visible: boolPtr(visible)})
}

// BordersVisible reports the border layer visibility flag
func (s *Surface) BordersVisible() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bordersVisible
}

// PlaceMarker drops the single coordinate marker, removing any previous
// one first
func (s *Surface) PlaceMarker(lat, lng float64, popup string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.removeMarkerLocked()
	s.hasMarker = true
	s.markerLat, s.markerLng = lat, lng
	s.push(Change{Op: OpPlaceMarker, Lat: lat, Lng: lng, Popup: popup})
}

func (s *Surface) removeMarkerLocked() {
	if !s.hasMarker {
		return
	}
	s.hasMarker = false
	s.push(Change{Op: OpRemoveMarker})
}

// RemoveMarker clears the coordinate marker slot
func (s *Surface) RemoveMarker() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.removeMarkerLocked()
}

// HasMarker reports whether the coordinate marker is placed
func (s *Surface) HasMarker() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hasMarker
}

// SetCriticalMarkers replaces the whole critical-area marker set
func (s *Surface) SetCriticalMarkers(markers []CriticalMarker) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.clearCriticalMarkersLocked()
	if len(markers) == 0 {
		return
	}
	s.criticalMarkers = markers
	s.push(Change{Op: OpSetCriticalMarkers, Markers: markers})
}

func (s *Surface) clearCriticalMarkersLocked() {
	if len(s.criticalMarkers) == 0 {
		return
	}
	s.criticalMarkers = nil
	s.push(Change{Op: OpClearCriticalMarkers})
}

// ClearCriticalMarkers removes all critical-area markers
func (s *Surface) ClearCriticalMarkers() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clearCriticalMarkersLocked()
}

// CriticalMarkers returns the current critical marker set
func (s *Surface) CriticalMarkers() []CriticalMarker {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]CriticalMarker, len(s.criticalMarkers))
	copy(out, s.criticalMarkers)
	return out
}

// FitToDistrict pans and zooms to the named district's shape. Unknown
// names are a no-op.
func (s *Surface) FitToDistrict(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, b := range s.borders {
		if b.Name == name {
			s.push(Change{Op: OpFitDistrict, Name: name})
			return
		}
	}
}

// FitToCity recenters the viewport on the city
func (s *Surface) FitToCity(lat, lng float64, zoom int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.push(Change{Op: OpSetView, Lat: lat, Lng: lng, Zoom: zoom})
}

func boolPtr(b bool) *bool {
	return &b
}
