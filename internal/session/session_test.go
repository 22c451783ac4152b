package session

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"greenurban-desktop/internal/config"
	"greenurban-desktop/internal/greenapi"
	"greenurban-desktop/internal/mapview"
	"greenurban-desktop/internal/presenter"
)

type fakeBackend struct {
	mu sync.Mutex

	analyzeDistrictCalls int
	analyzeCityCalls     int
	getNDVICalls         int
	predictCalls         int
	predictNDVICalls     int
	forecastDays         []int
	layerCalls           int
	cityLayerCalls       int
	detectCalls          int

	analyzeDistrictErr error
	getNDVIErr         error
	predictErr         error
	forecastErr        error
	forecastRetryOK    bool
	layerErr           error
	cityLayerErr       error
	detectErr          error

	criticalResult *greenapi.CriticalAreasResult

	// block, when set, is closed by the test to release in-flight calls
	block chan struct{}
}

func (f *fakeBackend) AnalyzeDistrict(ctx context.Context, name string) (*greenapi.DistrictAnalysis, error) {
	f.mu.Lock()
	f.analyzeDistrictCalls++
	block := f.block
	f.mu.Unlock()
	if block != nil {
		<-block
	}
	if f.analyzeDistrictErr != nil {
		return nil, f.analyzeDistrictErr
	}
	return &greenapi.DistrictAnalysis{
		DistrictName:    name,
		NDVI:            greenapi.NDVIStats{Mean: 0.42, Min: 0.1, Max: 0.8},
		PredictionLabel: "Vegetasi Sedang",
		PredictionClass: 1,
		Confidence:      map[string]float64{"Vegetasi Sedang": 0.75, "Vegetasi Rendah": 0.1, "Vegetasi Tinggi": 0.15},
	}, nil
}

func (f *fakeBackend) AnalyzeCity(ctx context.Context, name string) (*greenapi.CityAnalysis, error) {
	f.mu.Lock()
	f.analyzeCityCalls++
	f.mu.Unlock()
	return &greenapi.CityAnalysis{
		CityNDVI:           greenapi.NDVIStats{Mean: 0.38, Min: 0.05, Max: 0.82},
		CityClassification: "Vegetasi Sedang",
		PredictionDistribution: greenapi.PredictionDistribution{
			VegetasiRendah: 4, VegetasiSedang: 9, VegetasiTinggi: 3, TotalDistricts: 16,
		},
	}, nil
}

func (f *fakeBackend) GetNDVI(ctx context.Context, lat, lng float64) (*greenapi.NDVIStats, error) {
	f.mu.Lock()
	f.getNDVICalls++
	f.mu.Unlock()
	if f.getNDVIErr != nil {
		return nil, f.getNDVIErr
	}
	return &greenapi.NDVIStats{Mean: 0.55, Min: 0.2, Max: 0.9}, nil
}

func (f *fakeBackend) Predict(ctx context.Context, stats greenapi.NDVIStats, lat, lng float64) (*greenapi.Prediction, error) {
	f.mu.Lock()
	f.predictCalls++
	f.mu.Unlock()
	if f.predictErr != nil {
		return nil, f.predictErr
	}
	return &greenapi.Prediction{
		PredictionLabel: "Vegetasi Sedang",
		PredictionClass: 1,
		Confidence:      map[string]float64{"Vegetasi Sedang": 0.8},
	}, nil
}

func (f *fakeBackend) PredictNDVI(ctx context.Context, name string, days int) (*greenapi.Forecast, error) {
	f.mu.Lock()
	f.predictNDVICalls++
	f.forecastDays = append(f.forecastDays, days)
	retry := f.forecastRetryOK && f.predictNDVICalls > 1
	f.mu.Unlock()
	if f.forecastErr != nil && !retry {
		return nil, f.forecastErr
	}
	return &greenapi.Forecast{
		Statistics: greenapi.ForecastStatistics{
			AvgPrediction: 0.41, MinPrediction: 0.35, MaxPrediction: 0.48, Trend: "stabil",
		},
	}, nil
}

func (f *fakeBackend) GetNDVILayer(ctx context.Context, name string) (string, error) {
	f.mu.Lock()
	f.layerCalls++
	f.mu.Unlock()
	if f.layerErr != nil {
		return "", f.layerErr
	}
	return "https://earthengine.example/tiles/{z}/{x}/{y}", nil
}

func (f *fakeBackend) GetCityNDVILayer(ctx context.Context, name string) (*greenapi.CityLayer, error) {
	f.mu.Lock()
	f.cityLayerCalls++
	f.mu.Unlock()
	if f.cityLayerErr != nil {
		return nil, f.cityLayerErr
	}
	return &greenapi.CityLayer{TileURL: "https://earthengine.example/city/{z}/{x}/{y}"}, nil
}

func (f *fakeBackend) DetectCriticalAreas(ctx context.Context, min, max float64) (*greenapi.CriticalAreasResult, error) {
	f.mu.Lock()
	f.detectCalls++
	f.mu.Unlock()
	if f.detectErr != nil {
		return nil, f.detectErr
	}
	if f.criticalResult != nil {
		return f.criticalResult, nil
	}
	return &greenapi.CriticalAreasResult{
		Statistics: greenapi.CriticalAreaStatistics{TotalDistrictsAnalyzed: 16, CriticalAreasFound: 1, PercentageCritical: 6.3, AvgNDVICritical: 0.22},
		CriticalAreas: []greenapi.CriticalArea{
			{DistrictName: "Semarang Tengah", Coordinates: [2]float64{-6.98, 110.42}, AvgNDVI: 0.22, RiskScore: 65},
		},
	}, nil
}

type eventRecorder struct {
	mu     sync.Mutex
	events []recordedEvent
}

type recordedEvent struct {
	name string
	data interface{}
}

func (r *eventRecorder) emit(event string, data interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, recordedEvent{event, data})
}

func (r *eventRecorder) byName(event string) []interface{} {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []interface{}
	for _, e := range r.events {
		if e.name == event {
			out = append(out, e.data)
		}
	}
	return out
}

func newTestOrchestrator(backend Backend) (*Orchestrator, *eventRecorder) {
	rec := &eventRecorder{}
	o := NewOrchestrator(backend, nil, mapview.NewSurface(), *config.DefaultSettings(), rec.emit)
	return o, rec
}

func TestCoordinateOutsideBoundsNoNetwork(t *testing.T) {
	backend := &fakeBackend{}
	o, _ := newTestOrchestrator(backend)

	o.AnalyzeCoordinate(context.Background(), -8.5, 110.4)

	state, kind := o.State()
	assert.Equal(t, StateError, state)
	assert.Equal(t, KindCoordinate, kind)
	assert.Equal(t, ErrOutsideBounds, o.LastError())
	assert.Zero(t, backend.getNDVICalls, "no request may be issued for out-of-bounds input")
	assert.Zero(t, backend.predictCalls)
}

func TestCoordinateNaNRejected(t *testing.T) {
	backend := &fakeBackend{}
	o, _ := newTestOrchestrator(backend)

	o.AnalyzeCoordinate(context.Background(), math.NaN(), 110.4)

	state, _ := o.State()
	assert.Equal(t, StateError, state)
	assert.Equal(t, ErrInvalidCoordinates, o.LastError())
	assert.Zero(t, backend.getNDVICalls)
}

func TestCoordinateSuccess(t *testing.T) {
	backend := &fakeBackend{}
	o, rec := newTestOrchestrator(backend)

	o.AnalyzeCoordinate(context.Background(), -7.05, 110.44)

	state, _ := o.State()
	assert.Equal(t, StateSuccess, state)
	assert.Equal(t, 1, backend.getNDVICalls)
	assert.Equal(t, 1, backend.predictCalls)

	snap := o.Snapshot()
	require.NotNil(t, snap)
	require.NotNil(t, snap.NDVI)
	assert.Equal(t, "0.550", snap.NDVI.Mean)
	require.NotNil(t, snap.Class)

	assert.NotEmpty(t, rec.byName(EventNDVIPanel))
	assert.NotEmpty(t, rec.byName(EventClassificationPanel))
}

func TestDistrictSuccessWithForecast(t *testing.T) {
	backend := &fakeBackend{}
	o, rec := newTestOrchestrator(backend)

	o.AnalyzeDistrict(context.Background(), "Tembalang")

	state, kind := o.State()
	assert.Equal(t, StateSuccess, state)
	assert.Equal(t, KindDistrict, kind)
	assert.Equal(t, 1, backend.analyzeDistrictCalls)
	assert.Equal(t, 1, backend.predictNDVICalls)
	assert.Equal(t, []int{30}, backend.forecastDays)
	assert.Equal(t, 1, backend.layerCalls)

	snap := o.Snapshot()
	require.NotNil(t, snap)
	assert.Equal(t, "Tembalang", snap.DistrictName)
	require.NotNil(t, snap.Forecast)
	assert.True(t, snap.Forecast.Available)

	forecasts := rec.byName(EventForecastPanel)
	require.Len(t, forecasts, 1)
}

func TestDistrictAnalysisFailure(t *testing.T) {
	backend := &fakeBackend{analyzeDistrictErr: errors.New("Earth Engine not initialized")}
	o, _ := newTestOrchestrator(backend)

	o.AnalyzeDistrict(context.Background(), "Tembalang")

	state, _ := o.State()
	assert.Equal(t, StateError, state)
	assert.Equal(t, "Earth Engine not initialized", o.LastError())
	assert.Zero(t, backend.predictNDVICalls, "forecast must not run after a failed analysis")
}

func TestForecastRetriesOnceWithReducedHorizon(t *testing.T) {
	backend := &fakeBackend{forecastErr: errors.New("model timeout"), forecastRetryOK: true}
	o, _ := newTestOrchestrator(backend)

	o.AnalyzeDistrict(context.Background(), "Tembalang")

	state, _ := o.State()
	assert.Equal(t, StateSuccess, state)
	assert.Equal(t, []int{30, 14}, backend.forecastDays)

	snap := o.Snapshot()
	require.NotNil(t, snap.Forecast)
	assert.True(t, snap.Forecast.Available)
}

func TestForecastFailureDegradesWithoutFailingSession(t *testing.T) {
	backend := &fakeBackend{forecastErr: errors.New("model timeout")}
	o, _ := newTestOrchestrator(backend)

	o.AnalyzeDistrict(context.Background(), "Tembalang")

	state, _ := o.State()
	assert.Equal(t, StateSuccess, state, "forecast failure never fails the session")
	assert.Equal(t, 2, backend.predictNDVICalls, "one retry at the reduced horizon")

	snap := o.Snapshot()
	require.NotNil(t, snap.Forecast)
	assert.False(t, snap.Forecast.Available)
	assert.NotEmpty(t, snap.Forecast.RetryHint)
}

func TestCityLayerFailureIsBestEffort(t *testing.T) {
	backend := &fakeBackend{cityLayerErr: errors.New("export too large")}
	o, _ := newTestOrchestrator(backend)

	o.AnalyzeCity(context.Background())

	state, kind := o.State()
	assert.Equal(t, StateSuccess, state)
	assert.Equal(t, KindCity, kind)
	assert.Equal(t, 1, backend.cityLayerCalls)

	snap := o.Snapshot()
	require.NotNil(t, snap.City)
	assert.Equal(t, "0.380", snap.City.NDVI.Mean)
}

func TestCriticalAreasPlacesMarkers(t *testing.T) {
	backend := &fakeBackend{}
	surface := mapview.NewSurface()
	rec := &eventRecorder{}
	o := NewOrchestrator(backend, nil, surface, *config.DefaultSettings(), rec.emit)

	o.DetectCriticalAreas(context.Background(), 0.2, 0.3)

	state, _ := o.State()
	assert.Equal(t, StateSuccess, state)
	markers := surface.CriticalMarkers()
	require.Len(t, markers, 1)
	assert.Equal(t, "Semarang Tengah", markers[0].DistrictName)
	assert.NotEmpty(t, markers[0].Popup)
}

func TestCriticalAreasInvalidBand(t *testing.T) {
	backend := &fakeBackend{}
	o, _ := newTestOrchestrator(backend)

	o.DetectCriticalAreas(context.Background(), 0.5, 0.2)

	state, _ := o.State()
	assert.Equal(t, StateError, state)
	assert.Zero(t, backend.detectCalls)
}

func TestCriticalAreasEmptyResult(t *testing.T) {
	backend := &fakeBackend{criticalResult: &greenapi.CriticalAreasResult{
		Statistics: greenapi.CriticalAreaStatistics{TotalDistrictsAnalyzed: 16},
	}}
	o, _ := newTestOrchestrator(backend)

	o.DetectCriticalAreas(context.Background(), 0.2, 0.3)

	state, _ := o.State()
	assert.Equal(t, StateSuccess, state)
	snap := o.Snapshot()
	require.NotNil(t, snap.Critical)
	assert.Equal(t, presenter.NoCriticalAreasMessage, snap.Critical.EmptyMessage)
}

func TestClearResultsReturnsToIdle(t *testing.T) {
	backend := &fakeBackend{}
	surface := mapview.NewSurface()
	rec := &eventRecorder{}
	o := NewOrchestrator(backend, nil, surface, *config.DefaultSettings(), rec.emit)

	o.AnalyzeDistrict(context.Background(), "Tembalang")
	o.SetOverlayVisible(true)

	o.ClearResults()

	state, kind := o.State()
	assert.Equal(t, StateIdle, state)
	assert.Equal(t, KindNone, kind)
	assert.Nil(t, o.Snapshot())
	assert.False(t, surface.OverlayVisible())
	assert.Empty(t, surface.Highlighted())
}

func TestStaleResponseDiscarded(t *testing.T) {
	block := make(chan struct{})
	backend := &fakeBackend{block: block}
	o, _ := newTestOrchestrator(backend)

	done := make(chan struct{})
	go func() {
		o.AnalyzeDistrict(context.Background(), "Tembalang")
		close(done)
	}()

	// Wait for the first session to reach the backend, then supersede it
	require.Eventually(t, func() bool {
		backend.mu.Lock()
		defer backend.mu.Unlock()
		return backend.analyzeDistrictCalls == 1
	}, time.Second, time.Millisecond)

	o.ClearResults()
	close(block)
	<-done

	state, _ := o.State()
	assert.Equal(t, StateIdle, state, "a superseded session must not write results")
	assert.Nil(t, o.Snapshot())
}

func TestManualForecastWithoutDistrict(t *testing.T) {
	backend := &fakeBackend{}
	o, rec := newTestOrchestrator(backend)

	o.PredictForecast(context.Background(), 30)

	assert.Zero(t, backend.predictNDVICalls)
	notices := rec.byName(EventNotice)
	require.Len(t, notices, 1)
	assert.Equal(t, ErrNoDistrictSelected, notices[0])
}

func TestManualForecastUpdatesPanel(t *testing.T) {
	backend := &fakeBackend{}
	o, _ := newTestOrchestrator(backend)

	o.AnalyzeDistrict(context.Background(), "Tembalang")
	o.PredictForecast(context.Background(), 60)

	backend.mu.Lock()
	days := append([]int(nil), backend.forecastDays...)
	backend.mu.Unlock()
	assert.Equal(t, []int{30, 60}, days)

	state, _ := o.State()
	assert.Equal(t, StateSuccess, state)
}

func TestDemoModeUsesGenerator(t *testing.T) {
	live := &fakeBackend{}
	demoBackend := &fakeBackend{}
	settings := config.DefaultSettings()
	settings.DemoMode = true
	rec := &eventRecorder{}
	o := NewOrchestrator(live, demoBackend, mapview.NewSurface(), *settings, rec.emit)

	o.AnalyzeDistrict(context.Background(), "Tembalang")

	assert.Zero(t, live.analyzeDistrictCalls)
	assert.Equal(t, 1, demoBackend.analyzeDistrictCalls)

	snap := o.Snapshot()
	require.NotNil(t, snap)
	assert.True(t, snap.Demo)
}

func TestNewSessionResetsVisualsFirst(t *testing.T) {
	backend := &fakeBackend{}
	surface := mapview.NewSurface()
	rec := &eventRecorder{}
	o := NewOrchestrator(backend, nil, surface, *config.DefaultSettings(), rec.emit)

	o.AnalyzeCoordinate(context.Background(), -7.05, 110.44)
	require.True(t, surface.HasMarker())

	o.AnalyzeDistrict(context.Background(), "Tembalang")
	assert.False(t, surface.HasMarker(), "previous session's marker is removed on entry to Loading")
}
