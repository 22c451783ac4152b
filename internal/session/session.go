// Package session drives analysis sessions for the dashboard. Exactly one
// session of visual results is on screen at a time; starting any analysis
// resets the previous session's visuals before new results land. States
// move Idle -> Loading -> Displaying(Success|Error) and always re-enter
// Loading on the next trigger.
package session

import (
	"context"
	"fmt"
	"log"
	"math"
	"sync"

	"github.com/google/uuid"

	"greenurban-desktop/internal/config"
	"greenurban-desktop/internal/greenapi"
	"greenurban-desktop/internal/mapview"
	"greenurban-desktop/internal/presenter"
)

// State of the current session
type State string

const (
	StateIdle    State = "idle"
	StateLoading State = "loading"
	StateSuccess State = "success"
	StateError   State = "error"
)

// Kind of analysis the session was triggered by
type Kind string

const (
	KindNone       Kind = ""
	KindDistrict   Kind = "district"
	KindCoordinate Kind = "coordinate"
	KindCity       Kind = "city"
	KindCritical   Kind = "critical"
)

// Events emitted to the frontend
const (
	EventState      = "session:state"
	EventProgress   = "session:progress"
	EventNotice     = "session:notice"
	EventMapChanges = "map:changes"

	EventNDVIPanel           = "panel:ndvi"
	EventClassificationPanel = "panel:classification"
	EventForecastPanel       = "panel:forecast"
	EventCityPanel           = "panel:city"
	EventCriticalPanel       = "panel:critical"
)

// User-facing error messages
const (
	ErrInvalidCoordinates = "Mohon masukkan koordinat yang valid"
	ErrOutsideBounds      = "Koordinat berada di luar wilayah Kota Semarang. Silakan pilih lokasi dalam Kota Semarang."
	ErrNoDistrictSelected = "Silakan pilih kecamatan terlebih dahulu untuk prediksi NDVI"

	errDistrictFallback   = "Terjadi kesalahan saat menganalisis kecamatan"
	errCityFallback       = "Terjadi kesalahan saat menganalisis kota"
	errCoordinateFallback = "Terjadi kesalahan saat menganalisis data"
	errCriticalFallback   = "Terjadi kesalahan saat mendeteksi area kritis"
)

// Backend is the slice of the analytics API the orchestrator drives. Both
// the live client and the demo generator satisfy it.
type Backend interface {
	AnalyzeDistrict(ctx context.Context, districtName string) (*greenapi.DistrictAnalysis, error)
	AnalyzeCity(ctx context.Context, cityName string) (*greenapi.CityAnalysis, error)
	GetNDVI(ctx context.Context, lat, lng float64) (*greenapi.NDVIStats, error)
	Predict(ctx context.Context, stats greenapi.NDVIStats, lat, lng float64) (*greenapi.Prediction, error)
	PredictNDVI(ctx context.Context, districtName string, days int) (*greenapi.Forecast, error)
	GetNDVILayer(ctx context.Context, districtName string) (string, error)
	GetCityNDVILayer(ctx context.Context, cityName string) (*greenapi.CityLayer, error)
	DetectCriticalAreas(ctx context.Context, thresholdMin, thresholdMax float64) (*greenapi.CriticalAreasResult, error)
}

// EmitFunc delivers an event to the frontend
type EmitFunc func(event string, data interface{})

// StateInfo is the payload of EventState
type StateInfo struct {
	State State  `json:"state"`
	Kind  Kind   `json:"kind"`
	Error string `json:"error,omitempty"`
	Demo  bool   `json:"demo"`
}

// ProgressInfo is the payload of EventProgress
type ProgressInfo struct {
	Percent int    `json:"percent"`
	Message string `json:"message"`
}

// Snapshot is the currently displayed result set. The report exporter
// reads it instead of re-fetching anything.
type Snapshot struct {
	Kind         Kind                           `json:"kind"`
	DistrictName string                         `json:"district_name,omitempty"`
	Lat, Lng     float64                        `json:"-"`
	NDVI         *presenter.NDVIPanel           `json:"ndvi,omitempty"`
	Class        *presenter.ClassificationPanel `json:"classification,omitempty"`
	Forecast     *presenter.ForecastPanel       `json:"forecast,omitempty"`
	City         *presenter.CityPanel           `json:"city,omitempty"`
	Critical     *presenter.CriticalPanel       `json:"critical,omitempty"`
	Demo         bool                           `json:"demo"`
}

// Orchestrator owns the session state machine. All mutations of the map
// surface and panels funnel through it; responses from a superseded
// session are discarded by token comparison.
type Orchestrator struct {
	mu       sync.Mutex
	state    State
	kind     Kind
	token    string
	lastErr  string
	snapshot *Snapshot

	backend  Backend
	demo     Backend
	demoMode bool

	surface  *mapview.Surface
	settings config.UserSettings
	emit     EmitFunc
}

// NewOrchestrator wires the state machine to its collaborators. demo may
// be nil when demo mode is never used.
func NewOrchestrator(backend, demo Backend, surface *mapview.Surface, settings config.UserSettings, emit EmitFunc) *Orchestrator {
	if emit == nil {
		emit = func(string, interface{}) {}
	}
	return &Orchestrator{
		state:    StateIdle,
		backend:  backend,
		demo:     demo,
		demoMode: settings.DemoMode,
		surface:  surface,
		settings: settings,
		emit:     emit,
	}
}

// UpdateSettings applies changed settings to future sessions
func (o *Orchestrator) UpdateSettings(s config.UserSettings) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.settings = s
	o.demoMode = s.DemoMode
}

// State returns the current session state and kind
func (o *Orchestrator) State() (State, Kind) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state, o.kind
}

// LastError returns the message of the last failed session
func (o *Orchestrator) LastError() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.lastErr
}

// Snapshot returns a copy of the displayed results, nil when nothing is
// displayed
func (o *Orchestrator) Snapshot() *Snapshot {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.snapshot == nil {
		return nil
	}
	cp := *o.snapshot
	return &cp
}

// DemoMode reports whether sessions run against the sample generator
func (o *Orchestrator) DemoMode() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.demoMode
}

func (o *Orchestrator) settingsCopy() config.UserSettings {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.settings
}

func (o *Orchestrator) provider() Backend {
	if o.demoMode && o.demo != nil {
		return o.demo
	}
	return o.backend
}

// begin resets the previous session's visuals and enters Loading. Returns
// the new session token; any response delivered under an older token is
// dropped.
func (o *Orchestrator) begin(kind Kind) (string, Backend) {
	o.mu.Lock()
	defer o.mu.Unlock()

	token := uuid.NewString()
	o.token = token
	o.state = StateLoading
	o.kind = kind
	o.lastErr = ""
	o.snapshot = &Snapshot{Kind: kind, Demo: o.demoMode}

	o.surface.ClearHighlight()
	o.flushMapLocked()
	o.emitStateLocked()
	o.emit(EventProgress, ProgressInfo{Percent: 0, Message: ""})

	return token, o.provider()
}

// current reports whether token still identifies the active session
func (o *Orchestrator) current(token string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.token == token
}

// apply runs fn under the lock if the session is still current. The
// function must not block.
func (o *Orchestrator) apply(token string, fn func()) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.token != token {
		log.Printf("Discarding stale response for superseded session")
		return false
	}
	fn()
	return true
}

func (o *Orchestrator) progress(token string, percent int, message string) {
	o.apply(token, func() {
		o.emit(EventProgress, ProgressInfo{Percent: percent, Message: message})
	})
}

func (o *Orchestrator) finish(token string) {
	o.apply(token, func() {
		o.state = StateSuccess
		o.emitStateLocked()
	})
}

// fail transitions to Displaying(Error). Map layers are left exactly as
// they were when the failure happened.
func (o *Orchestrator) fail(token, message, fallback string) {
	if message == "" {
		message = fallback
	}
	o.apply(token, func() {
		o.state = StateError
		o.lastErr = message
		o.emitStateLocked()
	})
}

func (o *Orchestrator) emitStateLocked() {
	o.emit(EventState, StateInfo{State: o.state, Kind: o.kind, Error: o.lastErr, Demo: o.demoMode})
}

func (o *Orchestrator) flushMapLocked() {
	if changes := o.surface.Flush(); len(changes) > 0 {
		o.emit(EventMapChanges, changes)
	}
}

// AnalyzeDistrict runs a district session. Blocks until the session
// reaches a terminal state; callers run it from their own goroutine.
func (o *Orchestrator) AnalyzeDistrict(ctx context.Context, districtName string) {
	token, api := o.begin(KindDistrict)

	o.apply(token, func() {
		o.snapshot.DistrictName = districtName
		o.surface.HighlightDistrict(districtName)
		o.surface.FitToDistrict(districtName)
		o.flushMapLocked()
	})
	o.progress(token, 10, fmt.Sprintf("Memulai analisis %s...", districtName))
	o.progress(token, 25, "Mengambil data satelit Sentinel-2...")

	analysis, err := api.AnalyzeDistrict(ctx, districtName)
	if err != nil {
		o.fail(token, err.Error(), errDistrictFallback)
		return
	}

	o.progress(token, 70, "Memproses hasil analisis...")
	ndvi := presenter.RenderNDVIPanel(analysis.NDVI)
	class := presenter.RenderClassificationPanel(analysis.PredictionLabel, analysis.PredictionClass, analysis.Confidence)

	if !o.apply(token, func() {
		o.snapshot.NDVI = &ndvi
		o.snapshot.Class = &class
		o.emit(EventNDVIPanel, ndvi)
		o.emit(EventClassificationPanel, class)
	}) {
		return
	}
	o.progress(token, 80, "Menampilkan data NDVI...")

	// Overlay is best effort; failure is only logged
	o.progress(token, 90, "Memperbarui peta dengan layer NDVI...")
	tileURL := analysis.NDVI.TileURL
	if tileURL == "" {
		if url, layerErr := api.GetNDVILayer(ctx, districtName); layerErr != nil {
			log.Printf("NDVI layer unavailable for %s: %v", districtName, layerErr)
		} else {
			tileURL = url
		}
	}
	if tileURL != "" {
		o.apply(token, func() {
			o.surface.SetNdviOverlay(tileURL)
			o.flushMapLocked()
		})
	}

	o.progress(token, 95, "Memulai prediksi NDVI otomatis...")
	o.runForecast(ctx, token, api, districtName)

	o.progress(token, 100, fmt.Sprintf("Analisis %s selesai!", districtName))
	o.finish(token)
}

// runForecast fetches the forecast as a best-effort step with one retry
// at a reduced horizon. Failure never fails the session.
func (o *Orchestrator) runForecast(ctx context.Context, token string, api Backend, districtName string) {
	cfg := o.settingsCopy()
	forecast, err := api.PredictNDVI(ctx, districtName, cfg.ForecastDays)
	if err != nil {
		log.Printf("Forecast for %s failed with %d days, retrying with %d: %v",
			districtName, cfg.ForecastDays, cfg.ForecastRetryDays, err)
		forecast, err = api.PredictNDVI(ctx, districtName, cfg.ForecastRetryDays)
	}

	var panel presenter.ForecastPanel
	if err != nil {
		log.Printf("Forecast for %s unavailable: %v", districtName, err)
		panel = presenter.RenderForecastUnavailable()
	} else {
		panel = presenter.RenderForecastPanel(*forecast)
	}
	o.apply(token, func() {
		o.snapshot.Forecast = &panel
		o.emit(EventForecastPanel, panel)
	})
}

// PredictForecast is the manual forecast trigger. It updates only the
// forecast panel of the current district session.
func (o *Orchestrator) PredictForecast(ctx context.Context, days int) {
	o.mu.Lock()
	var districtName string
	if o.snapshot != nil {
		districtName = o.snapshot.DistrictName
	}
	token := o.token
	api := o.provider()
	if days <= 0 {
		days = o.settings.ForecastDays
	}
	retryDays := o.settings.ForecastRetryDays
	o.mu.Unlock()

	if districtName == "" {
		o.emit(EventNotice, ErrNoDistrictSelected)
		return
	}

	forecast, err := api.PredictNDVI(ctx, districtName, days)
	if err != nil {
		log.Printf("Manual forecast for %s failed with %d days, retrying with %d: %v",
			districtName, days, retryDays, err)
		forecast, err = api.PredictNDVI(ctx, districtName, retryDays)
	}

	var panel presenter.ForecastPanel
	if err != nil {
		panel = presenter.RenderForecastUnavailable()
		o.emit(EventNotice, fmt.Sprintf("Gagal melakukan prediksi NDVI: %v", err))
	} else {
		panel = presenter.RenderForecastPanel(*forecast)
	}
	o.apply(token, func() {
		o.snapshot.Forecast = &panel
		o.emit(EventForecastPanel, panel)
	})
}

// AnalyzeCoordinate runs a point session. Coordinates are validated
// before any request goes out; invalid input fails the session without
// touching the network.
func (o *Orchestrator) AnalyzeCoordinate(ctx context.Context, lat, lng float64) {
	token, api := o.begin(KindCoordinate)
	o.progress(token, 10, "Memulai analisis area...")

	if math.IsNaN(lat) || math.IsNaN(lng) || math.IsInf(lat, 0) || math.IsInf(lng, 0) {
		o.fail(token, ErrInvalidCoordinates, "")
		return
	}
	if !o.settingsCopy().CityBounds.Contains(lat, lng) {
		o.fail(token, ErrOutsideBounds, "")
		return
	}

	o.apply(token, func() {
		o.snapshot.Lat, o.snapshot.Lng = lat, lng
	})
	o.progress(token, 30, "Mengambil data NDVI dari satelit...")

	stats, err := api.GetNDVI(ctx, lat, lng)
	if err != nil {
		o.fail(token, err.Error(), errCoordinateFallback)
		return
	}

	ndvi := presenter.RenderNDVIPanel(*stats)
	if !o.apply(token, func() {
		o.snapshot.NDVI = &ndvi
		o.emit(EventNDVIPanel, ndvi)
	}) {
		return
	}
	o.progress(token, 50, "Menampilkan data NDVI...")

	o.progress(token, 70, "Melakukan prediksi vegetasi...")
	pred, err := api.Predict(ctx, *stats, lat, lng)
	if err != nil {
		o.fail(token, err.Error(), errCoordinateFallback)
		return
	}

	class := presenter.RenderClassificationPanel(pred.PredictionLabel, pred.PredictionClass, pred.Confidence)
	popup := presenter.CoordinatePopup(lat, lng, *stats, pred)
	o.progress(token, 90, "Menampilkan hasil prediksi...")
	o.apply(token, func() {
		o.snapshot.Class = &class
		o.emit(EventClassificationPanel, class)
		o.surface.PlaceMarker(lat, lng, popup)
		o.flushMapLocked()
	})

	o.progress(token, 100, "Analisis area selesai!")
	o.finish(token)
}

// AnalyzeCity runs the city-wide aggregate session
func (o *Orchestrator) AnalyzeCity(ctx context.Context) {
	token, api := o.begin(KindCity)
	cfg := o.settingsCopy()
	cityName := cfg.CityName

	o.progress(token, 10, fmt.Sprintf("Memulai analisis Kota %s...", cityName))
	o.progress(token, 25, fmt.Sprintf("Mengambil data satelit untuk seluruh %s...", cityName))

	city, err := api.AnalyzeCity(ctx, cityName)
	if err != nil {
		o.fail(token, err.Error(), errCityFallback)
		return
	}

	o.progress(token, 60, "Memproses data agregat kota...")
	panel := presenter.RenderCityPanel(*city)

	if !o.apply(token, func() {
		o.snapshot.City = &panel
		o.emit(EventCityPanel, panel)
		o.surface.FitToCity(cfg.DefaultCenterLat, cfg.DefaultCenterLng, cfg.CityZoom)
		o.flushMapLocked()
	}) {
		return
	}
	o.progress(token, 80, "Menampilkan hasil analisis kota...")

	// City overlay is best effort
	o.progress(token, 90, "Memperbarui layer NDVI kota...")
	if layer, layerErr := api.GetCityNDVILayer(ctx, cityName); layerErr != nil {
		log.Printf("City NDVI layer unavailable: %v", layerErr)
	} else if layer != nil && layer.TileURL != "" {
		o.apply(token, func() {
			o.surface.SetNdviOverlay(layer.TileURL)
			o.flushMapLocked()
		})
	}

	o.progress(token, 100, fmt.Sprintf("Analisis Kota %s selesai!", cityName))
	o.finish(token)
}

// DetectCriticalAreas runs the critical-area session over the NDVI band
// [thresholdMin, thresholdMax]
func (o *Orchestrator) DetectCriticalAreas(ctx context.Context, thresholdMin, thresholdMax float64) {
	token, api := o.begin(KindCritical)
	o.progress(token, 10, "Memulai deteksi area kritis...")

	if thresholdMin >= thresholdMax || thresholdMin < -1 || thresholdMax > 1 {
		o.fail(token, "Rentang NDVI tidak valid", "")
		return
	}

	o.progress(token, 40, "Menganalisis seluruh kecamatan...")
	result, err := api.DetectCriticalAreas(ctx, thresholdMin, thresholdMax)
	if err != nil {
		o.fail(token, err.Error(), errCriticalFallback)
		return
	}

	o.progress(token, 80, "Menampilkan area kritis...")
	panel := presenter.RenderCriticalPanel(*result)

	markers := make([]mapview.CriticalMarker, 0, len(panel.Areas))
	for _, card := range panel.Areas {
		markers = append(markers, mapview.CriticalMarker{
			DistrictName: card.DistrictName,
			Lat:          card.Lat,
			Lng:          card.Lng,
			Color:        card.Color,
			Popup:        presenter.CriticalPopup(card),
		})
	}

	o.apply(token, func() {
		o.snapshot.Critical = &panel
		o.emit(EventCriticalPanel, panel)
		o.surface.SetCriticalMarkers(markers)
		o.flushMapLocked()
	})

	o.progress(token, 100, "Deteksi area kritis selesai!")
	o.finish(token)
}

// ClearResults forces the machine back to Idle: highlight, panels, error,
// markers and the overlay toggle are all reset
func (o *Orchestrator) ClearResults() {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.token = uuid.NewString() // orphan any in-flight session
	o.state = StateIdle
	o.kind = KindNone
	o.lastErr = ""
	o.snapshot = nil

	o.surface.ClearHighlight()
	o.surface.SetOverlayVisible(false)
	o.flushMapLocked()
	o.emitStateLocked()
}

// SetOverlayVisible toggles the NDVI overlay on the map
func (o *Orchestrator) SetOverlayVisible(visible bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.surface.SetOverlayVisible(visible)
	o.flushMapLocked()
}

// SetBordersVisible toggles the district border layer
func (o *Orchestrator) SetBordersVisible(visible bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.surface.SetBordersVisible(visible)
	o.flushMapLocked()
}
