// Package tileserver runs the loopback HTTP server that feeds NDVI
// overlay tiles to the map frontend. The upstream Earth Engine tile URL
// changes per analysis; the frontend always points at the local server,
// which proxies and caches whichever overlay is currently registered.
package tileserver

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"log"
	"net"
	"net/http"
	"sync"
	"time"

	"greenurban-desktop/internal/cache"
)

// Server proxies overlay tiles through the disk cache
type Server struct {
	tileCache *cache.OverlayTileCache
	client    *http.Client

	mu       sync.RWMutex
	overlays map[string]string // layer id -> upstream URL template

	serverURL string
	httpSrv   *http.Server
}

// NewServer creates a tile server backed by the given cache
func NewServer(tileCache *cache.OverlayTileCache) *Server {
	return &Server{
		tileCache: tileCache,
		client: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				Proxy: http.ProxyFromEnvironment,
			},
		},
		overlays: make(map[string]string),
	}
}

// URL returns the base URL of the running server
func (s *Server) URL() string {
	return s.serverURL
}

// RegisterOverlay maps an upstream tile URL template to a stable layer id
// and returns the local template the map should use
func (s *Server) RegisterOverlay(upstreamTemplate string) string {
	sum := sha1.Sum([]byte(upstreamTemplate))
	layer := hex.EncodeToString(sum[:8])

	s.mu.Lock()
	s.overlays[layer] = upstreamTemplate
	s.mu.Unlock()

	return fmt.Sprintf("%s/ndvi/%s/{z}/{x}/{y}", s.serverURL, layer)
}

// DropOverlay forgets a layer and deletes its cached tiles
func (s *Server) DropOverlay(localTemplate string) {
	layer := layerFromTemplate(localTemplate)
	if layer == "" {
		return
	}
	s.mu.Lock()
	delete(s.overlays, layer)
	s.mu.Unlock()
	s.tileCache.DropLayer(layer)
}

// corsMiddleware adds CORS headers to allow requests from the Wails
// frontend; on macOS/Linux Wails serves from a wails:// origin
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Accept")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// Start begins serving on a random loopback port
func (s *Server) Start() error {
	mux := http.NewServeMux()
	mux.HandleFunc("/ndvi/", s.handleOverlayTile)

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return fmt.Errorf("failed to start tile server: %w", err)
	}

	port := listener.Addr().(*net.TCPAddr).Port
	s.serverURL = fmt.Sprintf("http://127.0.0.1:%d", port)
	log.Printf("Tile server started on %s", s.serverURL)

	s.httpSrv = &http.Server{
		Handler: corsMiddleware(mux),
	}

	go func() {
		if err := s.httpSrv.Serve(listener); err != nil && err != http.ErrServerClosed {
			log.Printf("Tile server stopped: %v", err)
		}
	}()

	return nil
}

// Stop shuts the server down
func (s *Server) Stop() {
	if s.httpSrv != nil {
		s.httpSrv.Close()
	}
}
