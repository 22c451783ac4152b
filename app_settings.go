package main

import (
	"log"

	wailsRuntime "github.com/wailsapp/wails/v2/pkg/runtime"

	"greenurban-desktop/internal/config"
	"greenurban-desktop/internal/report"
)

// ===================
// Settings Management
// ===================

// GetSettings returns current user settings
func (a *App) GetSettings() (*config.UserSettings, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	// Return a copy to prevent external modifications
	settingsCopy := *a.settings
	return &settingsCopy, nil
}

// SaveSettings saves user settings to disk and updates app state
func (a *App) SaveSettings(settings *config.UserSettings) error {
	if err := config.ValidateSettings(settings); err != nil {
		return err
	}

	if err := config.SaveSettings(settings); err != nil {
		return err
	}

	a.mu.Lock()
	a.settings = settings
	a.exporter = report.NewExporter(settings.ReportPath)
	a.mu.Unlock()

	a.client.SetBaseURL(settings.BackendURL)
	a.orchestrator.UpdateSettings(*settings)

	// Cache size applies on next restart
	log.Printf("Settings saved. Cache settings will apply on next restart.")

	return nil
}

// GetSettingsPath returns the OS-specific settings file path
func (a *App) GetSettingsPath() string {
	return config.GetSettingsPath()
}

// SelectReportFolder opens a folder picker dialog and stores the choice
func (a *App) SelectReportFolder() (string, error) {
	a.mu.Lock()
	ctx := a.ctx
	current := a.settings.ReportPath
	a.mu.Unlock()

	path, err := wailsRuntime.OpenDirectoryDialog(ctx, wailsRuntime.OpenDialogOptions{
		Title:            "Pilih Folder Laporan",
		DefaultDirectory: current,
	})
	if err != nil {
		return "", err
	}

	if path != "" {
		a.mu.Lock()
		a.settings.ReportPath = path
		a.exporter = report.NewExporter(path)
		settingsCopy := *a.settings
		a.mu.Unlock()

		if err := config.SaveSettings(&settingsCopy); err != nil {
			return "", err
		}
		log.Printf("Report folder set to %s", path)
	}

	return path, nil
}
