package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/exec"
	goruntime "runtime"
	"sync"

	"github.com/posthog/posthog-go"
	wailsRuntime "github.com/wailsapp/wails/v2/pkg/runtime"

	"greenurban-desktop/internal/cache"
	"greenurban-desktop/internal/config"
	"greenurban-desktop/internal/demo"
	"greenurban-desktop/internal/districts"
	"greenurban-desktop/internal/greenapi"
	"greenurban-desktop/internal/handlers/tileserver"
	"greenurban-desktop/internal/mapview"
	"greenurban-desktop/internal/report"
	"greenurban-desktop/internal/session"
)

// Linker flags
var (
	PostHogKey  string
	PostHogHost string
	AppVersion  string = "0.0.0-dev"
)

// Overlay tiles expire after this many days; Earth Engine layer URLs go
// stale long before that anyway
const overlayCacheTTLDays = 14

// App struct
type App struct {
	ctx context.Context

	client       *greenapi.Client
	registry     *districts.Registry
	surface      *mapview.Surface
	orchestrator *session.Orchestrator
	demoGen      *demo.Generator
	tileCache    *cache.OverlayTileCache
	tileServer   *tileserver.Server
	exporter     *report.Exporter

	settings *config.UserSettings
	mu       sync.Mutex
	devMode  bool // Enable verbose logging in dev mode only
	phClient posthog.Client

	// Local tile template currently registered for the active overlay
	localOverlay string
}

// NewApp creates a new App application struct
func NewApp() *App {
	// Load user settings
	settings, err := config.LoadSettings()
	if err != nil {
		log.Printf("Failed to load settings, using defaults: %v", err)
		settings = config.DefaultSettings()
	}
	log.Printf("Settings loaded from: %s", config.GetSettingsPath())

	// Initialize overlay tile cache with settings
	cacheDir := cache.GetCacheDir()
	tileCache, err := cache.NewOverlayTileCache(cacheDir, settings.CacheMaxSizeMB, overlayCacheTTLDays)
	if err != nil {
		log.Printf("Failed to initialize tile cache: %v", err)
		tileCache = nil // Continue without the caching proxy
	} else {
		log.Printf("Tile cache initialized at %s (max %d MB)", cacheDir, settings.CacheMaxSizeMB)
	}

	// Initialize PostHog
	var phClient posthog.Client
	if PostHogKey != "" {
		phConfig := posthog.Config{
			Endpoint: PostHogHost,
		}
		client, err := posthog.NewWithConfig(PostHogKey, phConfig)
		if err != nil {
			log.Printf("Failed to initialize PostHog: %v", err)
		} else {
			phClient = client
		}
	}

	app := &App{
		client:    greenapi.NewClient(settings.BackendURL),
		registry:  districts.NewRegistry(),
		surface:   mapview.NewSurface(),
		tileCache: tileCache,
		exporter:  report.NewExporter(settings.ReportPath),
		settings:  settings,
		phClient:  phClient,
	}

	if tileCache != nil {
		app.tileServer = tileserver.NewServer(tileCache)
	}

	app.demoGen = demo.NewGenerator(app.registry.Names())
	app.orchestrator = session.NewOrchestrator(app.client, demo.NewBackend(app.demoGen), app.surface, *settings, app.emitEvent)

	return app
}

// emitEvent forwards orchestrator events to the frontend. Overlay URLs
// are rerouted through the local caching proxy before they reach the map.
func (a *App) emitEvent(event string, data interface{}) {
	if event == session.EventMapChanges {
		if changes, ok := data.([]mapview.Change); ok {
			data = a.rerouteOverlays(changes)
		}
	}

	a.devLog("emit %s", event)

	a.mu.Lock()
	ctx := a.ctx
	a.mu.Unlock()
	if ctx == nil {
		return
	}
	wailsRuntime.EventsEmit(ctx, event, data)
}

// devLog prints verbose diagnostics (only in dev mode)
func (a *App) devLog(format string, args ...interface{}) {
	if a.devMode {
		log.Printf(format, args...)
	}
}

// rerouteOverlays swaps upstream overlay tile templates for local ones
// served by the tile proxy, and drops proxied layers when the overlay is
// removed
func (a *App) rerouteOverlays(changes []mapview.Change) []mapview.Change {
	if a.tileServer == nil {
		return changes
	}

	out := make([]mapview.Change, len(changes))
	copy(out, changes)

	a.mu.Lock()
	defer a.mu.Unlock()
	for i, change := range out {
		switch change.Op {
		case mapview.OpSetOverlay:
			if a.localOverlay != "" {
				a.tileServer.DropOverlay(a.localOverlay)
			}
			local := a.tileServer.RegisterOverlay(change.TileURL)
			a.localOverlay = local
			out[i].TileURL = local
			a.devLog("overlay rerouted to %s", local)
		case mapview.OpRemoveOverlay:
			if a.localOverlay != "" {
				a.tileServer.DropOverlay(a.localOverlay)
				a.localOverlay = ""
			}
		}
	}
	return out
}

// startup is called when the app starts
func (a *App) startup(ctx context.Context) {
	a.mu.Lock()
	a.ctx = ctx
	a.mu.Unlock()

	// Create report directory if it doesn't exist
	os.MkdirAll(a.settings.ReportPath, 0755)

	// Start local tile proxy
	if a.tileServer != nil {
		if err := a.tileServer.Start(); err != nil {
			wailsRuntime.LogError(ctx, fmt.Sprintf("Failed to start tile server: %v", err))
			a.tileServer = nil
		}
	}

	// Load district boundaries in background; the registry falls back to
	// the built-in list when the backend is unreachable
	go func() {
		a.registry.Load(ctx, a.client)
		a.demoGen.SetDistricts(a.registry.Names())
		if a.registry.UsingFallback() {
			wailsRuntime.LogInfo(ctx, "District registry using built-in fallback list")
		} else {
			wailsRuntime.LogInfo(ctx, fmt.Sprintf("Loaded %d districts from backend", len(a.registry.Names())))
		}

		a.surface.SetDistrictBorders(a.registry.All())
		if changes := a.surface.Flush(); len(changes) > 0 {
			a.emitEvent(session.EventMapChanges, changes)
		}
		wailsRuntime.EventsEmit(ctx, "districts:loaded", a.registry.Names())
	}()

	// Track app start
	a.TrackEvent("app_started", map[string]interface{}{
		"version": a.GetAppVersion(),
		"os":      goruntime.GOOS,
		"arch":    goruntime.GOARCH,
	})
}

// TrackEvent sends an event to PostHog
func (a *App) TrackEvent(event string, props map[string]interface{}) {
	if a.phClient != nil {
		a.phClient.Enqueue(posthog.Capture{
			DistinctId: "backend_user", // Ideally should be unique per install
			Event:      event,
			Properties: props,
		})
	}
}

// Shutdown cleans up resources
func (a *App) Shutdown(ctx context.Context) {
	if a.tileServer != nil {
		a.tileServer.Stop()
	}
	if a.tileCache != nil {
		a.tileCache.Close()
	}
	if a.phClient != nil {
		a.phClient.Close()
	}
}

// GetAppVersion returns the current application version
func (a *App) GetAppVersion() string {
	return AppVersion
}

// GetDistricts returns the district names for the selector dropdown
func (a *App) GetDistricts() []string {
	return a.registry.Names()
}

// AnalyzeDistrict starts a district analysis session. Results arrive
// through events; the call returns immediately.
func (a *App) AnalyzeDistrict(districtName string) {
	a.TrackEvent("district_analysis_started", map[string]interface{}{
		"district": districtName,
	})
	go a.orchestrator.AnalyzeDistrict(a.appCtx(), districtName)
}

// AnalyzeCoordinate starts a point analysis session
func (a *App) AnalyzeCoordinate(lat, lng float64) {
	a.TrackEvent("coordinate_analysis_started", nil)
	go a.orchestrator.AnalyzeCoordinate(a.appCtx(), lat, lng)
}

// AnalyzeCity starts the city-wide aggregate session
func (a *App) AnalyzeCity() {
	a.TrackEvent("city_analysis_started", nil)
	go a.orchestrator.AnalyzeCity(a.appCtx())
}

// DetectCriticalAreas starts a critical-area detection session over the
// given NDVI band
func (a *App) DetectCriticalAreas(thresholdMin, thresholdMax float64) {
	a.TrackEvent("critical_detection_started", map[string]interface{}{
		"threshold_min": thresholdMin,
		"threshold_max": thresholdMax,
	})
	go a.orchestrator.DetectCriticalAreas(a.appCtx(), thresholdMin, thresholdMax)
}

// PredictForecast triggers a manual forecast for the currently analyzed
// district
func (a *App) PredictForecast(days int) {
	go a.orchestrator.PredictForecast(a.appCtx(), days)
}

// ClearResults resets the dashboard back to its idle state
func (a *App) ClearResults() {
	a.orchestrator.ClearResults()
}

// SetOverlayVisible toggles the NDVI overlay on the map
func (a *App) SetOverlayVisible(visible bool) {
	a.orchestrator.SetOverlayVisible(visible)
}

// SetBordersVisible toggles the district border layer
func (a *App) SetBordersVisible(visible bool) {
	a.orchestrator.SetBordersVisible(visible)
}

// GetSnapshot returns the currently displayed results so the frontend can
// re-render after a reload
func (a *App) GetSnapshot() *session.Snapshot {
	return a.orchestrator.Snapshot()
}

// ExportReport writes the current results to a report file and returns
// its path
func (a *App) ExportReport() (string, error) {
	snap := a.orchestrator.Snapshot()
	path, err := a.exporter.Export(snap)
	if err != nil {
		return "", err
	}

	a.TrackEvent("report_exported", map[string]interface{}{
		"kind": string(snap.Kind),
	})

	a.mu.Lock()
	autoOpen := a.settings.AutoOpenReports
	a.mu.Unlock()
	if autoOpen {
		if openErr := openPath(path); openErr != nil {
			log.Printf("Failed to open report: %v", openErr)
		}
	}
	return path, nil
}

// OpenReportFolder opens the report directory in the system file manager
func (a *App) OpenReportFolder() error {
	a.mu.Lock()
	dir := a.settings.ReportPath
	a.mu.Unlock()

	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return fmt.Errorf("folder does not exist: %s", dir)
	}
	return openPath(dir)
}

// GetCacheStats returns overlay cache usage for the settings screen
func (a *App) GetCacheStats() map[string]interface{} {
	if a.tileCache == nil {
		return map[string]interface{}{"enabled": false}
	}
	entries, size, max := a.tileCache.Stats()
	return map[string]interface{}{
		"enabled":   true,
		"entries":   entries,
		"sizeBytes": size,
		"maxBytes":  max,
	}
}

// ClearCache empties the overlay tile cache
func (a *App) ClearCache() error {
	if a.tileCache == nil {
		return nil
	}
	return a.tileCache.Clear()
}

func (a *App) appCtx() context.Context {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.ctx == nil {
		return context.Background()
	}
	return a.ctx
}

// openPath opens a file or folder with the OS default handler
func openPath(path string) error {
	var cmd *exec.Cmd
	switch goruntime.GOOS {
	case "darwin":
		cmd = exec.Command("open", path)
	case "windows":
		cmd = exec.Command("explorer", path)
	default: // Linux and others
		cmd = exec.Command("xdg-open", path)
	}
	return cmd.Start()
}
