package socket

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"os"
	"sync"
	"time"

	"github.com/corey/cognitia/internal/domain/matcher"
	"github.com/corey/cognitia/internal/ports"
)

// AppQueries is what the daemon exposes to socket and HTTP clients.
// Implementations must be safe for concurrent use.
type AppQueries interface {
	Search(text string, html bool) []matcher.Match
	MatchPosts(posts []Post) []PostResult
	Rebuild(ctx context.Context) (RebuildResult, error)
	Health() HealthResult
	Topics(ctx context.Context) ([]ports.TopicRecord, error)
	Topic(ctx context.Context, id int64) (ports.TopicRecord, error)
	UpsertTopics(ctx context.Context, topics []ports.TopicRecord) (UpsertResult, error)
	DeleteTopic(ctx context.Context, id int64) error
}

// requestTimeout bounds store and rebuild work done for one request.
const requestTimeout = 30 * time.Second

// Server is the daemon that listens on a Unix socket and serves match requests.
type Server struct {
	queries  AppQueries
	listener net.Listener
	sockPath string
	started  time.Time

	ctx    context.Context
	cancel context.CancelFunc

	done         chan struct{}
	shutdownCh   chan struct{} // closed when a remote shutdown request is received
	shutdownOnce sync.Once
	stopOnce     sync.Once
	wg           sync.WaitGroup
}

// NewServer creates a daemon server backed by queries.
func NewServer(queries AppQueries, sockPath string) *Server {
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		queries:    queries,
		sockPath:   sockPath,
		ctx:        ctx,
		cancel:     cancel,
		done:       make(chan struct{}),
		shutdownCh: make(chan struct{}),
	}
}

// Start begins listening on the Unix socket. It handles stale sockets by
// attempting a connection first. If the connection fails, the stale socket
// is removed before binding.
func (s *Server) Start() error {
	// Handle stale socket
	if _, err := os.Stat(s.sockPath); err == nil {
		conn, err := net.DialTimeout("unix", s.sockPath, 500*time.Millisecond)
		if err == nil {
			conn.Close()
			return fmt.Errorf("daemon already running at %s", s.sockPath)
		}
		// Stale socket, remove it
		os.Remove(s.sockPath)
	}

	ln, err := net.Listen("unix", s.sockPath)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	s.listener = ln
	s.started = time.Now()

	s.wg.Add(1)
	go s.acceptLoop()

	return nil
}

// Stop gracefully shuts down the server, closing the listener and removing the socket file.
// Idempotent, safe to call multiple times (e.g., after remote shutdown + signal).
func (s *Server) Stop() error {
	s.stopOnce.Do(func() {
		close(s.done)
		s.cancel()
		if s.listener != nil {
			s.listener.Close()
		}
		s.wg.Wait()
		if s.listener != nil {
			os.Remove(s.sockPath)
		}
	})
	return nil
}

// ShutdownCh returns a channel that is closed when a remote shutdown request
// is received. The daemon's main goroutine should select on this alongside
// OS signals so the process actually exits after a remote stop.
func (s *Server) ShutdownCh() <-chan struct{} {
	return s.shutdownCh
}

// Addr returns the socket path the server is listening on.
func (s *Server) Addr() string {
	return s.sockPath
}

func (s *Server) acceptLoop() {
	defer s.wg.Done()
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-s.done:
				return
			default:
				continue
			}
		}
		s.wg.Add(1)
		go s.handleConn(conn)
	}
}

func (s *Server) handleConn(conn net.Conn) {
	defer s.wg.Done()
	defer conn.Close()

	// Unblock the scanner when the server stops.
	connDone := make(chan struct{})
	defer close(connDone)
	go func() {
		select {
		case <-s.done:
			conn.Close()
		case <-connDone:
		}
	}()

	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 1024*1024), 1024*1024) // 1MB max message

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var req Request
		if err := json.Unmarshal(line, &req); err != nil {
			s.writeResponse(conn, Response{Error: "invalid request JSON"})
			continue
		}

		resp := s.handleRequest(req)
		s.writeResponse(conn, resp)

		if req.Method == MethodShutdown {
			s.shutdownOnce.Do(func() { close(s.shutdownCh) })
			return
		}
	}
}

func (s *Server) handleRequest(req Request) Response {
	if s.queries == nil && req.Method != MethodShutdown {
		return Response{ID: req.ID, Error: "daemon not ready"}
	}

	switch req.Method {
	case MethodSearch:
		return s.handleSearch(req)
	case MethodMatch:
		return s.handleMatch(req)
	case MethodRebuild:
		return s.handleRebuild(req)
	case MethodHealth:
		return s.handleHealth(req)
	case MethodTopics:
		return s.handleTopics(req)
	case MethodTopic:
		return s.handleTopic(req)
	case MethodUpsert:
		return s.handleUpsert(req)
	case MethodDeleteTopic:
		return s.handleDeleteTopic(req)
	case MethodShutdown:
		return Response{ID: req.ID, Result: struct{}{}}
	default:
		return Response{ID: req.ID, Error: fmt.Sprintf("unknown method: %s", req.Method)}
	}
}

// decodeParams re-marshals the generic params into dst.
func decodeParams(req Request, dst interface{}) error {
	paramsJSON, err := json.Marshal(req.Params)
	if err != nil {
		return err
	}
	return json.Unmarshal(paramsJSON, dst)
}

func (s *Server) requestContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(s.ctx, requestTimeout)
}

func (s *Server) handleSearch(req Request) Response {
	var params SearchParams
	if err := decodeParams(req, &params); err != nil {
		return Response{ID: req.ID, Error: "invalid search params"}
	}

	start := time.Now()
	matches := s.queries.Search(params.Text, params.HTML)
	return Response{
		ID: req.ID,
		Result: SearchResult{
			Matches: matches,
			Count:   len(matches),
			Elapsed: time.Since(start).String(),
		},
	}
}

func (s *Server) handleMatch(req Request) Response {
	var params MatchParams
	if err := decodeParams(req, &params); err != nil {
		return Response{ID: req.ID, Error: "invalid match params"}
	}
	if len(params.Posts) == 0 {
		return Response{ID: req.ID, Error: "posts array is required"}
	}
	return Response{ID: req.ID, Result: MatchResult{Results: s.queries.MatchPosts(params.Posts)}}
}

func (s *Server) handleRebuild(req Request) Response {
	ctx, cancel := s.requestContext()
	defer cancel()

	result, err := s.queries.Rebuild(ctx)
	if err != nil {
		return Response{ID: req.ID, Error: err.Error()}
	}
	return Response{ID: req.ID, Result: result}
}

func (s *Server) handleHealth(req Request) Response {
	result := s.queries.Health()
	result.Uptime = time.Since(s.started).Round(time.Second).String()
	return Response{ID: req.ID, Result: result}
}

func (s *Server) handleTopics(req Request) Response {
	ctx, cancel := s.requestContext()
	defer cancel()

	topics, err := s.queries.Topics(ctx)
	if err != nil {
		return Response{ID: req.ID, Error: err.Error()}
	}
	return Response{ID: req.ID, Result: TopicsResult{Topics: topics, Count: len(topics)}}
}

func (s *Server) handleTopic(req Request) Response {
	var params TopicParams
	if err := decodeParams(req, &params); err != nil {
		return Response{ID: req.ID, Error: "invalid topic params"}
	}
	ctx, cancel := s.requestContext()
	defer cancel()

	topic, err := s.queries.Topic(ctx, params.ID)
	if err != nil {
		return Response{ID: req.ID, Error: err.Error()}
	}
	return Response{ID: req.ID, Result: topic}
}

func (s *Server) handleUpsert(req Request) Response {
	var params UpsertParams
	if err := decodeParams(req, &params); err != nil {
		return Response{ID: req.ID, Error: "invalid upsert params"}
	}
	ctx, cancel := s.requestContext()
	defer cancel()

	result, err := s.queries.UpsertTopics(ctx, params.Topics)
	if err != nil {
		return Response{ID: req.ID, Error: err.Error()}
	}
	return Response{ID: req.ID, Result: result}
}

func (s *Server) handleDeleteTopic(req Request) Response {
	var params TopicParams
	if err := decodeParams(req, &params); err != nil {
		return Response{ID: req.ID, Error: "invalid topic params"}
	}
	ctx, cancel := s.requestContext()
	defer cancel()

	if err := s.queries.DeleteTopic(ctx, params.ID); err != nil && !errors.Is(err, ports.ErrTopicNotFound) {
		return Response{ID: req.ID, Error: err.Error()}
	}
	return Response{ID: req.ID, Result: struct{}{}}
}

func (s *Server) writeResponse(conn net.Conn, resp Response) {
	data, err := json.Marshal(resp)
	if err != nil {
		return
	}
	data = append(data, '\n')
	conn.Write(data)
}
