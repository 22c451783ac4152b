package tileserver

import (
	"bytes"
	"fmt"
	"image"
	"image/png"
	"io"
	"log"
	"net/http"
	"strconv"
	"strings"
)

// handleOverlayTile serves one overlay tile, cache-first.
// URL format: /ndvi/{layer}/{z}/{x}/{y}
func (s *Server) handleOverlayTile(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/ndvi/")
	parts := strings.Split(path, "/")
	if len(parts) != 4 {
		http.Error(w, "Invalid URL format. Expected: /ndvi/{layer}/{z}/{x}/{y}", http.StatusBadRequest)
		return
	}

	layer := parts[0]
	z, err := strconv.Atoi(parts[1])
	if err != nil {
		http.Error(w, "Invalid zoom level", http.StatusBadRequest)
		return
	}
	x, err := strconv.Atoi(parts[2])
	if err != nil {
		http.Error(w, "Invalid X coordinate", http.StatusBadRequest)
		return
	}
	y, err := strconv.Atoi(parts[3])
	if err != nil {
		http.Error(w, "Invalid Y coordinate", http.StatusBadRequest)
		return
	}

	if data, found := s.tileCache.Get(layer, z, x, y); found {
		w.Header().Set("Content-Type", "image/png")
		w.Header().Set("Cache-Control", "public, max-age=86400")
		w.Header().Set("X-Cache-Status", "HIT")
		w.Write(data)
		return
	}

	s.mu.RLock()
	template, known := s.overlays[layer]
	s.mu.RUnlock()
	if !known {
		http.Error(w, "Unknown overlay layer", http.StatusNotFound)
		return
	}

	data, err := s.fetchUpstream(template, z, x, y)
	if err != nil {
		log.Printf("Overlay tile fetch failed (layer=%s z=%d x=%d y=%d): %v", layer, z, x, y, err)
		serveTransparentTile(w)
		return
	}

	if err := s.tileCache.Set(layer, z, x, y, data); err != nil {
		log.Printf("Failed to cache overlay tile: %v", err)
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "public, max-age=86400")
	w.Header().Set("X-Cache-Status", "MISS")
	w.Write(data)
}

// fetchUpstream downloads one tile from the Earth Engine template URL
func (s *Server) fetchUpstream(template string, z, x, y int) ([]byte, error) {
	url := expandTemplate(template, z, x, y)

	resp, err := s.client.Get(url)
	if err != nil {
		return nil, fmt.Errorf("upstream request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("upstream returned status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read upstream tile: %w", err)
	}
	return data, nil
}

// expandTemplate substitutes z/x/y into an upstream tile URL template
func expandTemplate(template string, z, x, y int) string {
	url := strings.ReplaceAll(template, "{z}", strconv.Itoa(z))
	url = strings.ReplaceAll(url, "{x}", strconv.Itoa(x))
	return strings.ReplaceAll(url, "{y}", strconv.Itoa(y))
}

// layerFromTemplate extracts the layer id from a local overlay template
func layerFromTemplate(localTemplate string) string {
	idx := strings.Index(localTemplate, "/ndvi/")
	if idx < 0 {
		return ""
	}
	rest := strings.TrimPrefix(localTemplate[idx:], "/ndvi/")
	if slash := strings.Index(rest, "/"); slash > 0 {
		return rest[:slash]
	}
	return rest
}

// serveTransparentTile answers with a fully transparent tile so broken
// upstream tiles render as gaps instead of map errors
func serveTransparentTile(w http.ResponseWriter) {
	img := image.NewNRGBA(image.Rect(0, 0, 256, 256))

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		http.Error(w, "Failed to generate tile", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("X-Cache-Status", "ERROR")
	w.Write(buf.Bytes())
}
