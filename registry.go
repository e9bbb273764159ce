package SchemaDB

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/nickyhof/SchemaDB/core"
	"github.com/nickyhof/SchemaDB/ddl"
	"github.com/nickyhof/SchemaDB/db"
	"github.com/nickyhof/SchemaDB/op"
	"github.com/nickyhof/SchemaDB/ps"
	"github.com/nickyhof/SchemaDB/validate"
)

var (
	ErrUnknownComponent = errors.New("unknown component")
	ErrComponentExists  = errors.New("component already exists")
	ErrTransactionOpen  = errors.New("component has an open transaction")
)

type Options struct {
	// Logger receives registry events; engines log through it at debug
	// level tagged with their component id. Nil discards.
	Logger *slog.Logger
	// Identity signs snapshots.
	Identity core.Identity
}

// Registry owns one engine per simulated database component. Calls into
// one component are serialized; different components run concurrently.
type Registry struct {
	mu         sync.RWMutex
	components map[string]*component
	identity   core.Identity
	logger     *slog.Logger
}

type component struct {
	mu          sync.Mutex
	id          string
	engine      *db.Engine
	persistence *ps.Persistence
}

func NewRegistry(opts Options) *Registry {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	identity := opts.Identity
	if identity.Name == "" {
		identity = core.Identity{Name: "SchemaDB", Email: "schemadb@localhost"}
	}
	return &Registry{
		components: make(map[string]*component),
		identity:   identity,
		logger:     logger,
	}
}

// NewComponentID returns a fresh random component id.
func NewComponentID() string {
	return uuid.NewString()
}

// Create registers a component with its own engine over model (a new empty
// model when nil). An empty id is replaced with a generated one.
func (r *Registry) Create(id string, model *core.Model) (string, error) {
	if id == "" {
		id = NewComponentID()
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.components[id]; exists {
		return "", fmt.Errorf("%w: %s", ErrComponentExists, id)
	}
	r.components[id] = &component{
		id:     id,
		engine: db.NewEngine(model, db.Config{Logger: r.logger.With("component", id)}),
	}
	r.logger.Info("component created", "component", id)
	return id, nil
}

// Teardown removes a component, discarding its model, open transaction and
// snapshots.
func (r *Registry) Teardown(id string) error {
	r.mu.Lock()
	c, ok := r.components[id]
	if ok {
		delete(r.components, id)
	}
	r.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownComponent, id)
	}

	// wait for an in-flight call to finish
	c.mu.Lock()
	defer c.mu.Unlock()
	r.logger.Info("component torn down", "component", id)
	return nil
}

// IDs lists the registered component ids, sorted.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.components))
	for id := range r.components {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (r *Registry) lookup(id string) (*component, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.components[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownComponent, id)
	}
	return c, nil
}

// With runs fn with exclusive access to a component's engine.
func (r *Registry) With(id string, fn func(engine *db.Engine) error) error {
	c, err := r.lookup(id)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return fn(c.engine)
}

// Run executes one statement on a component.
func (r *Registry) Run(id, query string) db.Response {
	var response db.Response
	err := r.With(id, func(engine *db.Engine) error {
		response = engine.Run(query)
		return nil
	})
	if err != nil {
		return db.Response{Error: err.Error()}
	}
	return response
}

// Import parses a DDL script and adds the tables it declares to a
// component. Statements that failed are reported in the result; the tables
// that parsed are added only if none of them already exists.
func (r *Registry) Import(id, script string) (ddl.ImportResult, error) {
	result := ddl.ImportSchema(script)
	err := r.With(id, func(engine *db.Engine) error {
		if engine.InTransaction() {
			return ErrTransactionOpen
		}
		scratch := engine.Model.Clone()
		schemaOp := op.NewSchemaOp(scratch)
		for _, table := range result.Tables {
			if _, err := schemaOp.CreateTable(table.Clone()); err != nil {
				return err
			}
		}
		engine.Model.Tables = scratch.Tables
		return nil
	})
	if err != nil {
		return result, err
	}
	r.logger.Debug("schema imported", "component", id, "tables", len(result.Tables), "errors", len(result.Errors))
	return result, nil
}

// Export renders a component's model.
func (r *Registry) Export(id string, format ddl.Format, databaseName string) (string, error) {
	var out string
	err := r.With(id, func(engine *db.Engine) error {
		var err error
		out, err = ddl.Export(format, engine.Model.Tables, nil, databaseName)
		return err
	})
	return out, err
}

func (r *Registry) Validate(id string) (validate.Report, error) {
	var report validate.Report
	err := r.With(id, func(engine *db.Engine) error {
		report = validate.Validate(engine.Model.Tables, nil)
		return nil
	})
	return report, err
}

// RenameTable renames a table of a component, rewriting foreign keys and
// views that reference it.
func (r *Registry) RenameTable(id, schema, name, newName string) error {
	return r.With(id, func(engine *db.Engine) error {
		if engine.InTransaction() {
			return ErrTransactionOpen
		}
		return op.NewSchemaOp(engine.Model).RenameTable(schema, name, newName)
	})
}

// RenameSchema moves every table and view of a component's schema.
func (r *Registry) RenameSchema(id, from, to string) error {
	return r.With(id, func(engine *db.Engine) error {
		if engine.InTransaction() {
			return ErrTransactionOpen
		}
		return op.NewSchemaOp(engine.Model).RenameSchema(from, to)
	})
}

// Snapshot saves a component's committed model. Each component keeps its
// own snapshot history.
func (r *Registry) Snapshot(id, message string) (ps.Transaction, error) {
	return r.SnapshotAs(id, r.identity, message)
}

// SnapshotAs is Snapshot signed by author instead of the registry identity.
func (r *Registry) SnapshotAs(id string, author core.Identity, message string) (ps.Transaction, error) {
	c, err := r.lookup(id)
	if err != nil {
		return ps.Transaction{}, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.persistence == nil {
		persistence, err := ps.NewMemoryPersistence()
		if err != nil {
			return ps.Transaction{}, err
		}
		c.persistence = persistence
	}
	txn, err := c.persistence.SaveSnapshot(c.engine.Model, author, message)
	if err != nil {
		return ps.Transaction{}, err
	}
	r.logger.Debug("snapshot saved", "component", id, "snapshot", txn.Short())
	return txn, nil
}

// History lists a component's snapshots, newest first.
func (r *Registry) History(id string) ([]ps.Transaction, error) {
	c, err := r.lookup(id)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.persistence == nil {
		return nil, nil
	}
	return c.persistence.History(0)
}

// Restore replaces a component's model with a snapshot. revision is a
// snapshot id or empty for the latest.
func (r *Registry) Restore(id, revision string) error {
	c, err := r.lookup(id)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.engine.InTransaction() {
		return ErrTransactionOpen
	}
	if c.persistence == nil {
		return fmt.Errorf("%w: %s has no snapshots", ps.ErrSnapshotNotFound, id)
	}
	model, err := c.persistence.LoadSnapshot(revision)
	if err != nil {
		return err
	}
	c.engine.Model = model
	r.logger.Info("component restored", "component", id, "revision", revision)
	return nil
}
