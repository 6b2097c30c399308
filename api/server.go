// Package api exposes app.App's spec.md §6 command surface over local
// HTTP+JSON, plus one SSE endpoint for bulk-scan progress, for headless
// operation without the Wails GUI — mirroring the teacher's own
// api/server.go design (bearer-token auth, a concurrent-request
// semaphore, and a path-traversal guard ahead of every path argument).
package api

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"

	"logsentry/app"
	"logsentry/core"
)

// Server is the local HTTP+SSE front end over a single *app.App.
type Server struct {
	httpServer *http.Server
	app        *app.App
	port       int

	authToken string

	requestSemaphore chan struct{}
	maxConcurrent    int

	shutdownSignal chan struct{}
	shutdownOnce   sync.Once

	clients      map[chan ScanProgress]struct{}
	clientsMutex sync.RWMutex
}

// ScanProgress is one SSE update streamed while scan_all_logs runs.
type ScanProgress struct {
	Done     int    `json:"done"`
	Total    int    `json:"total"`
	Filename string `json:"filename"`
	Status   string `json:"status"` // always "running"; the final result is sent as a separate "complete" event
}

// NewServer creates an API server bound to a, listening on port.
func NewServer(port int, a *app.App) *Server {
	maxConcurrent := runtime.NumCPU() * 2
	if maxConcurrent < 4 {
		maxConcurrent = 4
	}

	return &Server{
		app:              a,
		port:             port,
		authToken:        generateSecureToken(32),
		requestSemaphore: make(chan struct{}, maxConcurrent),
		maxConcurrent:    maxConcurrent,
		shutdownSignal:   make(chan struct{}),
		clients:          make(map[chan ScanProgress]struct{}),
	}
}

// generateSecureToken generates a cryptographically secure random token.
// Panics if crypto/rand fails, as this indicates a critical system problem.
func generateSecureToken(length int) string {
	bytes := make([]byte, length)
	if _, err := rand.Read(bytes); err != nil {
		panic(fmt.Sprintf("CRITICAL: failed to generate secure token: %v", err))
	}
	return hex.EncodeToString(bytes)
}

// Start registers the command-surface routes and begins serving.
func (s *Server) Start() error {
	router := http.NewServeMux()

	route := func(pattern string, h http.HandlerFunc) {
		router.HandleFunc(pattern, s.authMiddleware(s.resourceLimitMiddleware(h)))
	}

	route("/api/rules", s.handleRules)             // GET list, POST save
	route("/api/rules/get", s.handleGetRule)        // GET ?id=
	route("/api/rules/delete", s.handleDeleteRule)  // POST ?id=
	route("/api/rules/export", s.handleExportRule)  // POST {rule_id, dest_path}
	route("/api/rules/export-all", s.handleExportAllRules)
	route("/api/rules/import", s.handleImportRule)
	route("/api/rules/import-many", s.handleImportMultipleRules)
	route("/api/rules/import-zip", s.handleImportRulesZip)

	route("/api/logs", s.handleLogFiles)              // GET list
	route("/api/logs/import", s.handleImportLogFile)
	route("/api/logs/import-many", s.handleImportMultipleLogFiles)
	route("/api/logs/update-type", s.handleUpdateLogType)
	route("/api/logs/delete", s.handleDeleteLogFile)
	route("/api/logs/events", s.handleLoadLogEvents)

	route("/api/scan", s.handleScanLogs)
	route("/api/scan-all", s.handleScanAllLogs)
	route("/api/scan-all/stream", s.handleScanAllProgress) // SSE

	route("/api/validate-log-file", s.handleValidateLogFile)
	route("/api/validate-condition", s.handleValidateCondition)
	route("/api/test-rule", s.handleTestRule)
	route("/api/query", s.handleRunQuery)

	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ready"}`))
	})

	s.httpServer = &http.Server{
		Addr:           fmt.Sprintf("127.0.0.1:%d", s.port),
		Handler:        router,
		ReadTimeout:    15 * time.Second,
		WriteTimeout:   60 * time.Second, // generous for scan-all/query
		IdleTimeout:    60 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}

	go func() {
		log.Printf("Starting LogSentry API server on http://127.0.0.1:%d", s.port)
		if err := s.httpServer.ListenAndServe(); err != http.ErrServerClosed {
			log.Fatalf("HTTP server error: %v", err)
		}
	}()

	return nil
}

// Stop gracefully shuts the server down within timeout (default 10s).
func (s *Server) Stop(timeout ...time.Duration) error {
	s.shutdownOnce.Do(func() { close(s.shutdownSignal) })

	shutdownTimeout := 10 * time.Second
	if len(timeout) > 0 && timeout[0] > 0 {
		shutdownTimeout = timeout[0]
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	log.Printf("Shutting down server with %v timeout", shutdownTimeout)
	return s.httpServer.Shutdown(ctx)
}

// GetAuthToken returns the bearer token required on every request.
func (s *Server) GetAuthToken() string { return s.authToken }

// GetPort returns the server's listening port.
func (s *Server) GetPort() int { return s.port }

func (s *Server) resourceLimitMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		select {
		case s.requestSemaphore <- struct{}{}:
			defer func() { <-s.requestSemaphore }()
			next(w, r)
		default:
			w.Header().Set("Retry-After", "5")
			http.Error(w, "Too many requests, please try again later", http.StatusTooManyRequests)
		}
	}
}

func (s *Server) authMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			http.Error(w, "Authorization header required", http.StatusUnauthorized)
			return
		}

		const bearerPrefix = "Bearer "
		if !strings.HasPrefix(authHeader, bearerPrefix) {
			http.Error(w, "Invalid authorization format, expected Bearer token", http.StatusUnauthorized)
			return
		}

		token := authHeader[len(bearerPrefix):]
		if subtle.ConstantTimeCompare([]byte(token), []byte(s.authToken)) != 1 {
			http.Error(w, "Invalid authentication token", http.StatusUnauthorized)
			return
		}

		next(w, r)
	}
}

// validatePath checks for path traversal attempts and blocks access to
// sensitive system directories, ahead of any path argument the command
// surface accepts from a request.
func validatePath(path string) error {
	if path == "" {
		return errors.New("path cannot be empty")
	}
	if strings.ContainsRune(path, '\x00') {
		return errors.New("invalid path")
	}
	if strings.Contains(path, "..") {
		return errors.New("invalid path")
	}

	cleaned := filepath.Clean(path)
	if strings.Contains(cleaned, "..") {
		return errors.New("invalid path")
	}

	abs, err := filepath.Abs(cleaned)
	if err != nil {
		return errors.New("invalid path")
	}

	realPath, err := filepath.EvalSymlinks(abs)
	if err != nil {
		parentDir := filepath.Dir(abs)
		realParent, parentErr := filepath.EvalSymlinks(parentDir)
		if parentErr != nil {
			realPath = abs
		} else {
			realPath = filepath.Join(realParent, filepath.Base(abs))
		}
	}
	if strings.Contains(realPath, "..") {
		return errors.New("invalid path")
	}

	lowerPath := strings.ToLower(realPath)
	sensitivePatterns := []string{
		"/etc/", "/var/", "/root/", "/proc/", "/sys/", "/dev/",
		"/.ssh", "/.gnupg", "/.aws", "/.azure", "/.config",
		"/private/etc",
		"\\windows\\system32", "\\windows\\syswow64", "\\program files",
		"\\programdata", "\\appdata\\roaming", "\\appdata\\local",
		"\\.ssh", "\\.gnupg", "\\.aws", "\\.azure",
		"\\ntuser.dat", "\\sam", "\\security", "\\system", "\\software",
		"credential", "password", "secret", ".key", ".pem", ".p12",
	}
	for _, pattern := range sensitivePatterns {
		if strings.Contains(lowerPath, pattern) {
			return errors.New("access to system directories not allowed")
		}
	}

	return nil
}

// writeJSON encodes v as the response body, or translates an error into
// the appropriate HTTP status per core's error taxonomy (spec.md §7).
func writeJSON(w http.ResponseWriter, v interface{}, err error) {
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if v == nil {
		w.WriteHeader(http.StatusOK)
		return
	}
	if encErr := json.NewEncoder(w).Encode(v); encErr != nil {
		log.Printf("failed to encode response: %v", encErr)
	}
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, core.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, core.ErrDuplicateID):
		status = http.StatusConflict
	case errors.Is(err, core.ErrSchema), errors.Is(err, core.ErrSyntax), errors.Is(err, core.ErrFormat):
		status = http.StatusBadRequest
	case errors.Is(err, core.ErrIO):
		status = http.StatusInternalServerError
	case errors.Is(err, core.ErrEngine):
		status = http.StatusUnprocessableEntity
	}
	http.Error(w, err.Error(), status)
}

// decodeBody decodes a JSON request body, capped at 1MB to prevent
// memory exhaustion from an oversized request.
func decodeBody(r *http.Request, v interface{}) error {
	return json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(v)
}

// --- rules ---

func (s *Server) handleRules(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		rules, err := s.app.ListRules()
		writeJSON(w, rules, err)
	case http.MethodPost:
		var rule core.Rule
		if err := decodeBody(r, &rule); err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}
		saved, err := s.app.SaveRule(&rule)
		writeJSON(w, saved, err)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleGetRule(w http.ResponseWriter, r *http.Request) {
	rule, err := s.app.GetRule(r.URL.Query().Get("id"))
	writeJSON(w, rule, err)
}

func (s *Server) handleDeleteRule(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	err := s.app.DeleteRule(r.URL.Query().Get("id"))
	writeJSON(w, nil, err)
}

type exportRuleRequest struct {
	RuleID   string `json:"rule_id"`
	DestPath string `json:"dest_path"`
}

func (s *Server) handleExportRule(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req exportRuleRequest
	if err := decodeBody(r, &req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if err := validatePath(req.DestPath); err != nil {
		http.Error(w, "invalid destination path", http.StatusBadRequest)
		return
	}
	err := s.app.ExportRule(req.RuleID, req.DestPath)
	writeJSON(w, nil, err)
}

func (s *Server) handleExportAllRules(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req struct {
		DestPath string `json:"dest_path"`
	}
	if err := decodeBody(r, &req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if err := validatePath(req.DestPath); err != nil {
		http.Error(w, "invalid destination path", http.StatusBadRequest)
		return
	}
	count, err := s.app.ExportAllRules(req.DestPath)
	writeJSON(w, map[string]int{"count": count}, err)
}

type importRuleRequest struct {
	SourcePath string `json:"source_path"`
	Overwrite  bool   `json:"overwrite"`
}

func (s *Server) handleImportRule(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req importRuleRequest
	if err := decodeBody(r, &req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if err := validatePath(req.SourcePath); err != nil {
		http.Error(w, "invalid source path", http.StatusBadRequest)
		return
	}
	rule, err := s.app.ImportRule(req.SourcePath, req.Overwrite)
	writeJSON(w, rule, err)
}

func (s *Server) handleImportMultipleRules(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req struct {
		FilePaths []string `json:"file_paths"`
		Overwrite bool     `json:"overwrite"`
	}
	if err := decodeBody(r, &req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	for _, p := range req.FilePaths {
		if err := validatePath(p); err != nil {
			http.Error(w, "invalid source path: "+p, http.StatusBadRequest)
			return
		}
	}
	summary, err := s.app.ImportMultipleRules(req.FilePaths, req.Overwrite)
	writeJSON(w, summary, err)
}

func (s *Server) handleImportRulesZip(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req struct {
		ZipPath   string `json:"zip_path"`
		Overwrite bool   `json:"overwrite"`
	}
	if err := decodeBody(r, &req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if err := validatePath(req.ZipPath); err != nil {
		http.Error(w, "invalid zip path", http.StatusBadRequest)
		return
	}
	summary, err := s.app.ImportRulesZip(req.ZipPath, req.Overwrite)
	writeJSON(w, summary, err)
}

// --- log library ---

func (s *Server) handleLogFiles(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	files, err := s.app.ListLogFiles()
	writeJSON(w, files, err)
}

type importLogFileRequest struct {
	SourcePath string       `json:"source_path"`
	LogType    core.LogType `json:"log_type"`
}

func (s *Server) handleImportLogFile(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req importLogFileRequest
	if err := decodeBody(r, &req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if err := validatePath(req.SourcePath); err != nil {
		http.Error(w, "invalid source path", http.StatusBadRequest)
		return
	}
	info, err := s.app.ImportLogFile(req.SourcePath, req.LogType)
	writeJSON(w, info, err)
}

func (s *Server) handleImportMultipleLogFiles(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req struct {
		SourcePaths []string     `json:"source_paths"`
		LogType     core.LogType `json:"log_type"`
	}
	if err := decodeBody(r, &req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	for _, p := range req.SourcePaths {
		if err := validatePath(p); err != nil {
			http.Error(w, "invalid source path: "+p, http.StatusBadRequest)
			return
		}
	}
	summary, err := s.app.ImportMultipleLogFiles(req.SourcePaths, req.LogType)
	writeJSON(w, summary, err)
}

func (s *Server) handleUpdateLogType(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req struct {
		Filename string       `json:"filename"`
		LogType  core.LogType `json:"log_type"`
	}
	if err := decodeBody(r, &req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	err := s.app.UpdateLogType(req.Filename, req.LogType)
	writeJSON(w, nil, err)
}

func (s *Server) handleDeleteLogFile(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	err := s.app.DeleteLogFile(r.URL.Query().Get("filename"))
	writeJSON(w, nil, err)
}

func (s *Server) handleLoadLogEvents(w http.ResponseWriter, r *http.Request) {
	logPath := r.URL.Query().Get("log_path")
	if err := validatePath(logPath); err != nil {
		http.Error(w, "invalid log path", http.StatusBadRequest)
		return
	}
	records, err := s.app.LoadLogEvents(logPath, core.LogType(r.URL.Query().Get("log_type")))
	writeJSON(w, records, err)
}

// --- scanning ---

func (s *Server) handleScanLogs(w http.ResponseWriter, r *http.Request) {
	logPath := r.URL.Query().Get("log_path")
	if err := validatePath(logPath); err != nil {
		http.Error(w, "invalid log path", http.StatusBadRequest)
		return
	}
	resp, err := s.app.ScanLogs(logPath, core.LogType(r.URL.Query().Get("log_type")))
	writeJSON(w, resp, err)
}

func (s *Server) handleScanAllLogs(w http.ResponseWriter, r *http.Request) {
	resp, err := s.app.ScanAllLogs()
	writeJSON(w, resp, err)
}

// handleScanAllProgress runs scan_all_logs while streaming a ScanProgress
// event per completed file over SSE, matching spec.md §6's note that the
// API exposes one SSE endpoint for scan progress.
func (s *Server) handleScanAllProgress(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	done := r.Context().Done()
	resp, err := s.app.ScanAllLogsWithProgress(func(n, total int, filename string) {
		select {
		case <-done:
			return
		default:
		}
		fmt.Fprintf(w, "data: %s\n\n", mustMarshalJSON(ScanProgress{
			Done: n, Total: total, Filename: filename, Status: "running",
		}))
		flusher.Flush()
	})
	if err != nil {
		fmt.Fprintf(w, "event: error\ndata: %s\n\n", mustMarshalJSON(map[string]string{"error": err.Error()}))
		flusher.Flush()
		return
	}

	fmt.Fprintf(w, "event: complete\ndata: %s\n\n", mustMarshalJSON(resp))
	flusher.Flush()
}

// --- conditions, queries, validation ---

func (s *Server) handleValidateLogFile(w http.ResponseWriter, r *http.Request) {
	logPath := r.URL.Query().Get("log_path")
	if err := validatePath(logPath); err != nil {
		http.Error(w, "invalid log path", http.StatusBadRequest)
		return
	}
	valid, err := s.app.ValidateLogFile(logPath)
	writeJSON(w, map[string]bool{"valid": valid}, err)
}

func (s *Server) handleValidateCondition(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Condition string `json:"condition"`
	}
	if err := decodeBody(r, &req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	writeJSON(w, s.app.ValidateCondition(req.Condition), nil)
}

type testRuleRequest struct {
	Condition string       `json:"condition"`
	LogPath   string       `json:"log_path"`
	LogType   core.LogType `json:"log_type"`
}

func (s *Server) handleTestRule(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req testRuleRequest
	if err := decodeBody(r, &req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if err := validatePath(req.LogPath); err != nil {
		http.Error(w, "invalid log path", http.StatusBadRequest)
		return
	}
	writeJSON(w, s.app.TestRule(req.Condition, req.LogPath, req.LogType), nil)
}

func (s *Server) handleRunQuery(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req struct {
		Query string `json:"query"`
	}
	if err := decodeBody(r, &req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	result, err := s.app.RunQuery(req.Query)
	writeJSON(w, result, err)
}

func mustMarshalJSON(v interface{}) string {
	data, err := json.Marshal(v)
	if err != nil {
		log.Printf("error marshaling JSON: %v", err)
		return `{"error":"internal server error during JSON serialization"}`
	}
	return string(data)
}

// GetTempDir returns the directory the local API stores its connection
// file in, cleaning up stale files left behind from previous runs.
func GetTempDir() string {
	tempBase := os.TempDir()
	logSentryTemp := filepath.Join(tempBase, "LogSentry")

	var dirMode os.FileMode = 0755
	if runtime.GOOS == "windows" {
		dirMode = 0700
	}

	if err := os.MkdirAll(logSentryTemp, dirMode); err != nil {
		log.Printf("Failed to create temp directory: %v", err)
		return tempBase
	}

	go cleanupStaleConnectionFiles(logSentryTemp)
	return logSentryTemp
}

func cleanupStaleConnectionFiles(dirPath string) {
	files, err := os.ReadDir(dirPath)
	if err != nil {
		log.Printf("Failed to read temp directory for cleanup: %v", err)
		return
	}

	now := time.Now()
	for _, file := range files {
		if file.IsDir() {
			continue
		}

		name := file.Name()
		if name == "logsentry_connection.json" ||
			name == "logsentry_connection.json.tmp" ||
			name == "logsentry_connection.enc" ||
			(len(name) > 4 && name[len(name)-4:] == ".tmp") {

			filePath := filepath.Join(dirPath, name)
			info, err := os.Stat(filePath)
			if err != nil {
				continue
			}
			if now.Sub(info.ModTime()) > time.Hour {
				os.Remove(filePath)
				log.Printf("Cleaned up stale connection file: %s", name)
			}
		}
	}
}
