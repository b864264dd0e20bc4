package web

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/corey/cognitia/internal/adapters/socket"
	"github.com/corey/cognitia/internal/domain/matcher"
	"github.com/corey/cognitia/internal/ports"
)

// maxBodyBytes caps request bodies (a batch of posts).
const maxBodyBytes = 1 << 20

// Server serves the JSON API over HTTP.
type Server struct {
	queries  socket.AppQueries
	logger   *slog.Logger
	listener net.Listener
	httpSrv  *http.Server
	port     int
	started  time.Time
	stopOnce sync.Once

	portFilePath string // .cognitia/run/http.port
}

// NewServer creates an HTTP server. The portFilePath is where the bound port
// is written for discovery; empty disables it.
func NewServer(queries socket.AppQueries, portFilePath string, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		queries:      queries,
		logger:       logger,
		portFilePath: portFilePath,
		started:      time.Now(),
	}
}

// DefaultPort computes a project-specific port: 19000 + (hash(abs_path) % 1000).
func DefaultPort(projectRoot string) int {
	abs, err := filepath.Abs(projectRoot)
	if err != nil {
		abs = projectRoot
	}
	h := sha256.Sum256([]byte(abs))
	// Use first 4 bytes as uint32
	n := uint32(h[0])<<24 | uint32(h[1])<<16 | uint32(h[2])<<8 | uint32(h[3])
	return 19000 + int(n%1000)
}

// Handler returns the routing mux.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("GET /", http.FileServerFS(staticFS))
	mux.HandleFunc("GET /api/health", s.handleHealth)
	mux.HandleFunc("POST /api/search", s.handleSearch)
	mux.HandleFunc("POST /api/match", s.handleMatch)
	mux.HandleFunc("POST /api/rebuild", s.handleRebuild)
	mux.HandleFunc("GET /api/topics", s.handleTopics)
	mux.HandleFunc("GET /api/topics/{id}", s.handleTopic)
	mux.HandleFunc("POST /api/topics", s.handleUpsertTopics)
	mux.HandleFunc("DELETE /api/topics/{id}", s.handleDeleteTopic)
	return mux
}

// Start begins listening on addr (host:port; port 0 picks a free one).
// Writes the bound port to the port file.
func (s *Server) Start(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}
	s.listener = ln
	s.port = ln.Addr().(*net.TCPAddr).Port
	s.started = time.Now()

	s.httpSrv = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Write port file for discovery
	if s.portFilePath != "" {
		os.WriteFile(s.portFilePath, []byte(strconv.Itoa(s.port)), 0644)
	}

	go func() {
		if err := s.httpSrv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("http server stopped", "err", err)
		}
	}()
	return nil
}

// Stop gracefully shuts down the HTTP server. Idempotent.
func (s *Server) Stop() {
	s.stopOnce.Do(func() {
		if s.httpSrv == nil {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.httpSrv.Shutdown(ctx)
		if s.portFilePath != "" {
			os.Remove(s.portFilePath)
		}
	})
}

// Port returns the bound port number.
func (s *Server) Port() int {
	return s.port
}

// URL returns the base URL.
func (s *Server) URL() string {
	return fmt.Sprintf("http://localhost:%d", s.port)
}

type errorBody struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorBody{Error: msg})
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return false
	}
	return true
}

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "invalid topic id")
		return 0, false
	}
	return id, true
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	result := s.queries.Health()
	result.Uptime = time.Since(s.started).Round(time.Second).String()

	status := http.StatusOK
	if !result.Matcher.Initialized {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, result)
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var params socket.SearchParams
	if !decodeBody(w, r, &params) {
		return
	}

	start := time.Now()
	matches := s.queries.Search(params.Text, params.HTML)
	writeJSON(w, http.StatusOK, socket.SearchResult{
		Matches: matches,
		Count:   len(matches),
		Elapsed: time.Since(start).String(),
	})
}

func (s *Server) handleMatch(w http.ResponseWriter, r *http.Request) {
	var params socket.MatchParams
	if !decodeBody(w, r, &params) {
		return
	}
	if len(params.Posts) == 0 {
		writeError(w, http.StatusBadRequest, "posts array is required")
		return
	}
	writeJSON(w, http.StatusOK, socket.MatchResult{Results: s.queries.MatchPosts(params.Posts)})
}

func (s *Server) handleRebuild(w http.ResponseWriter, r *http.Request) {
	result, err := s.queries.Rebuild(r.Context())
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, matcher.ErrRebuildFailed) {
			status = http.StatusBadGateway
		}
		writeError(w, status, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleTopics(w http.ResponseWriter, r *http.Request) {
	topics, err := s.queries.Topics(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if topics == nil {
		topics = []ports.TopicRecord{}
	}
	writeJSON(w, http.StatusOK, socket.TopicsResult{Topics: topics, Count: len(topics)})
}

func (s *Server) handleTopic(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	topic, err := s.queries.Topic(r.Context(), id)
	if errors.Is(err, ports.ErrTopicNotFound) {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, topic)
}

// handleUpsertTopics accepts either one topic object or {"topics": [...]}.
func (s *Server) handleUpsertTopics(w http.ResponseWriter, r *http.Request) {
	var body struct {
		socket.UpsertParams
		ports.TopicRecord
	}
	if !decodeBody(w, r, &body) {
		return
	}
	topics := body.Topics
	if len(topics) == 0 && (body.Title != "" || body.URL != "") {
		topics = []ports.TopicRecord{body.TopicRecord}
	}
	if len(topics) == 0 {
		writeError(w, http.StatusBadRequest, "no topics in body")
		return
	}

	result, err := s.queries.UpsertTopics(r.Context(), topics)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	status := http.StatusOK
	if result.Upserted == 0 {
		status = http.StatusUnprocessableEntity
	}
	writeJSON(w, status, result)
}

func (s *Server) handleDeleteTopic(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := s.queries.DeleteTopic(r.Context(), id); err != nil && !errors.Is(err, ports.ErrTopicNotFound) {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
