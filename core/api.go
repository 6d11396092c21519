package core

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"
)

// APIServer exposes a local Unix socket API so the CLI can talk to a running
// serve daemon: ad-hoc sends, cron management, and journal queries.
type APIServer struct {
	socketPath  string
	listener    net.Listener
	mux         *http.ServeMux
	dispatchers map[string]*Dispatcher // platform name → dispatcher
	cron        *CronScheduler
	history     *History
	mu          sync.RWMutex
}

// SendRequest is the JSON body for POST /send.
type SendRequest struct {
	Platform    string          `json:"platform"`
	Destination string          `json:"destination"`
	Text        string          `json:"text"`
	Blocks      json.RawMessage `json:"blocks,omitempty"`
}

// NewAPIServer creates an API server on a Unix socket under dataDir/run.
func NewAPIServer(dataDir string) (*APIServer, error) {
	sockDir := filepath.Join(dataDir, "run")
	if err := os.MkdirAll(sockDir, 0o755); err != nil {
		return nil, fmt.Errorf("create run dir: %w", err)
	}
	sockPath := filepath.Join(sockDir, "api.sock")

	// Remove stale socket
	os.Remove(sockPath)

	listener, err := net.Listen("unix", sockPath)
	if err != nil {
		return nil, fmt.Errorf("listen unix socket: %w", err)
	}
	os.Chmod(sockPath, 0o660)

	s := &APIServer{
		socketPath:  sockPath,
		listener:    listener,
		mux:         http.NewServeMux(),
		dispatchers: make(map[string]*Dispatcher),
	}
	s.mux.HandleFunc("/send", s.handleSend)
	s.mux.HandleFunc("/platforms", s.handlePlatforms)
	s.mux.HandleFunc("/history", s.handleHistory)
	s.mux.HandleFunc("/cron/add", s.handleCronAdd)
	s.mux.HandleFunc("/cron/list", s.handleCronList)
	s.mux.HandleFunc("/cron/del", s.handleCronDel)

	return s, nil
}

func (s *APIServer) SocketPath() string {
	return s.socketPath
}

func (s *APIServer) RegisterDispatcher(platform string, d *Dispatcher) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dispatchers[platform] = d
}

func (s *APIServer) SetCronScheduler(cs *CronScheduler) {
	s.cron = cs
}

func (s *APIServer) SetHistory(h *History) {
	s.history = h
}

func (s *APIServer) Start() {
	go func() {
		srv := &http.Server{Handler: s.mux}
		if err := srv.Serve(s.listener); err != nil && err != http.ErrServerClosed {
			slog.Error("api server error", "error", err)
		}
	}()
	slog.Info("api server started", "socket", s.socketPath)
}

func (s *APIServer) Stop() {
	s.listener.Close()
	os.Remove(s.socketPath)
}

// resolve picks the dispatcher for a platform name; an empty name resolves
// when exactly one platform is configured.
func (s *APIServer) resolve(platform string) (*Dispatcher, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if platform != "" {
		d, ok := s.dispatchers[platform]
		if !ok {
			return nil, fmt.Errorf("platform %q not configured", platform)
		}
		return d, nil
	}
	if len(s.dispatchers) == 1 {
		for _, d := range s.dispatchers {
			return d, nil
		}
	}
	return nil, fmt.Errorf("platform is required (multiple platforms configured)")
}

func (s *APIServer) handleSend(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "POST only", http.StatusMethodNotAllowed)
		return
	}

	var req SendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid JSON: "+err.Error(), http.StatusBadRequest)
		return
	}
	if req.Text == "" && len(req.Blocks) == 0 {
		http.Error(w, "text or blocks is required", http.StatusBadRequest)
		return
	}

	d, err := s.resolve(req.Platform)
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), time.Minute)
	defer cancel()

	msg := &Outbound{Text: req.Text, Blocks: req.Blocks, Destination: req.Destination}
	if err := d.Dispatch(ctx, msg); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (s *APIServer) handlePlatforms(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make([]string, 0, len(s.dispatchers))
	for name := range s.dispatchers {
		names = append(names, name)
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(names)
}

func (s *APIServer) handleHistory(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		http.Error(w, "history journal not enabled", http.StatusServiceUnavailable)
		return
	}

	n := 20
	if v := r.URL.Query().Get("n"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 {
			n = parsed
		}
	}

	entries, err := s.history.Recent(n)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(entries)
}

// ── Cron API ───────────────────────────────────────────────────

// CronAddRequest is the JSON body for POST /cron/add.
type CronAddRequest struct {
	Platform    string `json:"platform"`
	Destination string `json:"destination"`
	CronExpr    string `json:"cron_expr"`
	Message     string `json:"message"`
	Description string `json:"description"`
}

func (s *APIServer) handleCronAdd(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "POST only", http.StatusMethodNotAllowed)
		return
	}
	if s.cron == nil {
		http.Error(w, "cron scheduler not available", http.StatusServiceUnavailable)
		return
	}

	var req CronAddRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid JSON: "+err.Error(), http.StatusBadRequest)
		return
	}
	if req.CronExpr == "" || req.Message == "" {
		http.Error(w, "cron_expr and message are required", http.StatusBadRequest)
		return
	}

	platform := req.Platform
	if platform == "" {
		d, err := s.resolve("")
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		platform = d.Platform().Name()
	}

	job := &CronJob{
		ID:          GenerateCronID(),
		Platform:    platform,
		Destination: req.Destination,
		CronExpr:    req.CronExpr,
		Message:     req.Message,
		Description: req.Description,
		Enabled:     true,
		CreatedAt:   time.Now(),
	}

	if err := s.cron.AddJob(job); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(job)
}

func (s *APIServer) handleCronList(w http.ResponseWriter, r *http.Request) {
	if s.cron == nil {
		http.Error(w, "cron scheduler not available", http.StatusServiceUnavailable)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(s.cron.Store().List())
}

func (s *APIServer) handleCronDel(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "POST only", http.StatusMethodNotAllowed)
		return
	}
	if s.cron == nil {
		http.Error(w, "cron scheduler not available", http.StatusServiceUnavailable)
		return
	}

	var req struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid JSON: "+err.Error(), http.StatusBadRequest)
		return
	}
	if req.ID == "" {
		http.Error(w, "id is required", http.StatusBadRequest)
		return
	}

	if s.cron.RemoveJob(req.ID) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	} else {
		http.Error(w, fmt.Sprintf("job %q not found", req.ID), http.StatusNotFound)
	}
}
