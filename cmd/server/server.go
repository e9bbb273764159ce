package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nickyhof/SchemaDB"
	"github.com/nickyhof/SchemaDB/core"
	"github.com/nickyhof/SchemaDB/db"
	"github.com/nickyhof/SchemaDB/ddl"
	"github.com/nickyhof/SchemaDB/ps"
)

// DefaultComponent is the component connections start on.
const DefaultComponent = "default"

// maxLineSize bounds one request line; JSON imports carry whole scripts.
const maxLineSize = 4 << 20

// Options configures a Server.
type Options struct {
	// Identity signs snapshots of unauthenticated connections.
	Identity core.Identity
	// Auth enables JWT authentication when non-nil.
	Auth *AuthConfig
	// Logger receives connection events. Nil discards them.
	Logger *slog.Logger
}

// Server is a TCP server that exposes the components of a registry.
type Server struct {
	registry   *SchemaDB.Registry
	identity   core.Identity
	authConfig *AuthConfig
	logger     *slog.Logger

	listener net.Listener
	group    *errgroup.Group
	cancel   context.CancelFunc

	mu    sync.Mutex
	conns map[net.Conn]struct{}
}

// NewServer creates a server over registry, creating the default component
// when it does not exist yet.
func NewServer(registry *SchemaDB.Registry, opts Options) (*Server, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	identity := opts.Identity
	if identity.Name == "" && identity.Email == "" {
		identity = core.Identity{Name: "SchemaDB Server", Email: "server@schemadb.local"}
	}
	if _, err := registry.Create(DefaultComponent, nil); err != nil && !errors.Is(err, SchemaDB.ErrComponentExists) {
		return nil, err
	}
	return &Server{
		registry:   registry,
		identity:   identity,
		authConfig: opts.Auth,
		logger:     logger,
		conns:      make(map[net.Conn]struct{}),
	}, nil
}

// Start begins listening for connections on the specified address. The
// server runs until ctx is cancelled or Stop is called.
func (s *Server) Start(ctx context.Context, addr string) error {
	var lc net.ListenConfig
	listener, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}
	s.listener = listener

	ctx, s.cancel = context.WithCancel(ctx)
	s.group, ctx = errgroup.WithContext(ctx)

	s.group.Go(func() error {
		<-ctx.Done()
		_ = listener.Close()
		s.closeConnections()
		return nil
	})
	s.group.Go(func() error {
		return s.acceptLoop(ctx)
	})

	s.logger.Info("server listening", "addr", listener.Addr().String(), "auth", s.authConfig != nil)
	return nil
}

// Stop closes the listener and every open connection, then waits for
// their handlers to return.
func (s *Server) Stop() error {
	if s.cancel == nil {
		return nil
	}
	s.cancel()
	err := s.group.Wait()
	s.logger.Info("server stopped")
	return err
}

// Addr returns the server's listening address.
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

func (s *Server) acceptLoop(ctx context.Context) error {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			s.logger.Warn("accept failed", "error", err)
			continue
		}

		if !s.track(conn) {
			_ = conn.Close()
			return nil
		}
		s.group.Go(func() error {
			defer s.untrack(conn)
			s.handleConnection(ctx, conn)
			return nil
		})
	}
}

// track registers conn for shutdown; it refuses once shutdown began.
func (s *Server) track(conn net.Conn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conns == nil {
		return false
	}
	s.conns[conn] = struct{}{}
	return true
}

func (s *Server) untrack(conn net.Conn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conns != nil {
		delete(s.conns, conn)
	}
}

func (s *Server) closeConnections() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for conn := range s.conns {
		_ = conn.Close()
	}
	s.conns = nil
}

func (s *Server) handleConnection(ctx context.Context, conn net.Conn) {
	defer conn.Close()

	logger := s.logger.With("remote", conn.RemoteAddr().String())
	logger.Info("client connected")

	state := &ConnectionState{component: DefaultComponent}
	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	for scanner.Scan() {
		if ctx.Err() != nil {
			return
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if strings.EqualFold(line, "quit") || strings.EqualFold(line, "exit") {
			logger.Info("client disconnected")
			return
		}

		response := s.handleLine(line, state)
		data, err := EncodeResponse(response)
		if err != nil {
			logger.Error("failed to encode response", "error", err)
			continue
		}
		if _, err := conn.Write(data); err != nil {
			logger.Warn("write failed", "error", err)
			return
		}
	}
	if err := scanner.Err(); err != nil && ctx.Err() == nil {
		logger.Warn("read failed", "error", err)
	}
}

// handleLine answers one request line.
func (s *Server) handleLine(line string, state *ConnectionState) Response {
	if fields := strings.Fields(line); strings.EqualFold(fields[0], "AUTH") {
		return s.handleAuth(line, state)
	}
	if err := s.checkAuth(state, time.Now()); err != nil {
		return failure("auth", err)
	}

	if strings.HasPrefix(line, "{") {
		req, err := DecodeRequest([]byte(line))
		if err != nil {
			return failure("request", fmt.Errorf("invalid request: %w", err))
		}
		return s.handleRequest(req, state)
	}

	if fields := strings.Fields(line); len(fields) == 2 && strings.EqualFold(fields[0], "USE") {
		return s.use(fields[1], state)
	}
	return s.executeQuery(state.component, line)
}

func (s *Server) use(component string, state *ConnectionState) Response {
	if !s.exists(component) {
		return failure("component", fmt.Errorf("%w: %s", SchemaDB.ErrUnknownComponent, component))
	}
	state.component = component
	return success("component", ComponentResponse{Component: component})
}

func (s *Server) exists(component string) bool {
	return s.registry.With(component, func(*db.Engine) error { return nil }) == nil
}

// author signs snapshots taken on the connection.
func (s *Server) author(state *ConnectionState) core.Identity {
	if identity := state.Identity(); identity != nil {
		return *identity
	}
	return s.identity
}

func (s *Server) handleRequest(req Request, state *ConnectionState) Response {
	component := req.Component
	if component == "" {
		component = state.component
	}

	switch req.Op {
	case OpQuery:
		return s.executeQuery(component, req.Query)

	case OpExplain:
		var plan db.QueryPlan
		err := s.registry.With(component, func(engine *db.Engine) error {
			var err error
			plan, err = engine.Explain(req.Query)
			return err
		})
		if err != nil {
			return failure("plan", err)
		}
		return success("plan", plan)

	case OpImport:
		result, err := s.registry.Import(component, req.Script)
		if err != nil {
			return failure("import", err)
		}
		return success("import", summarizeImport(result))

	case OpExport:
		format, err := ddl.ParseFormat(req.Format)
		if err != nil {
			return failure("export", err)
		}
		document, err := s.registry.Export(component, format, req.Database)
		if err != nil {
			return failure("export", err)
		}
		return success("export", document)

	case OpValidate:
		report, err := s.registry.Validate(component)
		if err != nil {
			return failure("validate", err)
		}
		return success("validate", report)

	case OpCreate:
		id, err := s.registry.Create(req.Component, nil)
		if err != nil {
			return failure("component", err)
		}
		s.logger.Info("component created", "component", id)
		return success("component", ComponentResponse{Component: id})

	case OpTeardown:
		if req.Component == "" {
			return failure("component", errors.New("teardown needs a component"))
		}
		if err := s.registry.Teardown(req.Component); err != nil {
			return failure("component", err)
		}
		if state.component == req.Component {
			state.component = DefaultComponent
		}
		return success("component", ComponentResponse{Component: req.Component})

	case OpList:
		return success("list", s.registry.IDs())

	case OpSnapshot:
		txn, err := s.registry.SnapshotAs(component, s.author(state), req.Message)
		if err != nil {
			return failure("snapshot", err)
		}
		return success("snapshot", txn)

	case OpHistory:
		history, err := s.registry.History(component)
		if err != nil {
			return failure("history", err)
		}
		if history == nil {
			history = []ps.Transaction{}
		}
		return success("history", history)

	case OpRestore:
		if err := s.registry.Restore(component, req.Revision); err != nil {
			return failure("restore", err)
		}
		return success("restore", ComponentResponse{Component: component})

	default:
		return failure("request", fmt.Errorf("unknown op %q", req.Op))
	}
}

func (s *Server) executeQuery(component, query string) Response {
	response := s.registry.Run(component, query)
	if !response.Success {
		return Response{Success: false, Error: response.Error}
	}

	switch r := response.Result.(type) {
	case db.QueryResult:
		data := make([][]string, len(r.Data))
		for i, values := range r.Data {
			row := make([]string, len(values))
			for j, value := range values {
				row[j] = value.String()
			}
			data[i] = row
		}
		return success("query", QueryResponse{
			Columns:     r.Columns,
			Data:        data,
			RecordsRead: r.RecordsRead,
			Plan:        r.Plan,
			IndexesUsed: response.IndexesUsed,
			TimeMs:      r.ExecutionTimeSec * 1000,
		})

	case db.CommitResult:
		return success("commit", CommitResponse{
			Status:           r.Status,
			TablesCreated:    r.TablesCreated,
			TablesDeleted:    r.TablesDeleted,
			IndexesCreated:   r.IndexesCreated,
			ConstraintsAdded: r.ConstraintsAdded,
			RecordsWritten:   r.RecordsWritten,
			RecordsUpdated:   r.RecordsUpdated,
			RecordsDeleted:   r.RecordsDeleted,
			Pending:          r.Pending,
			Plan:             r.Plan,
			TimeMs:           r.ExecutionTimeSec * 1000,
		})

	default:
		return success("unknown", nil)
	}
}

func summarizeImport(result ddl.ImportResult) ImportResponse {
	summary := ImportResponse{
		Tables:        make([]string, 0, len(result.Tables)),
		Relationships: make([]string, 0, len(result.Relationships)),
		Errors:        make([]string, 0, len(result.Errors)),
	}
	for _, table := range result.Tables {
		summary.Tables = append(summary.Tables, table.QualifiedName())
	}
	for _, rel := range result.Relationships {
		summary.Relationships = append(summary.Relationships, rel.String())
	}
	for _, err := range result.Errors {
		summary.Errors = append(summary.Errors, err.Error())
	}
	return summary
}
