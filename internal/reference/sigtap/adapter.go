package sigtap

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "github.com/denisenkom/go-mssqldb" // SQL Server driver
	"github.com/saude-gov/regulacao/internal/reference"
	"github.com/saude-gov/regulacao/internal/shared/config"
)

// Adapter implements reference.Lookup against the legacy SQL Server
// instance that carries the SIGTAP procedure and CID-10 tables. The
// tables are read-only from this service's point of view.
type Adapter struct {
	db     *sql.DB
	config config.SigtapConfig

	mu      sync.RWMutex
	running bool
}

// New creates a new SIGTAP adapter
func New(cfg config.SigtapConfig) *Adapter {
	return &Adapter{config: cfg}
}

// Start opens the database connection and verifies it
func (a *Adapter) Start(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.running {
		return fmt.Errorf("adapter already running")
	}

	connStr := fmt.Sprintf("server=%s;port=%d;database=%s;user id=%s;password=%s",
		a.config.Host,
		a.config.Port,
		a.config.Database,
		a.config.User,
		a.config.Password,
	)

	if a.config.SSLMode != "disable" {
		connStr += ";encrypt=true;TrustServerCertificate=true"
	}

	db, err := sql.Open("sqlserver", connStr)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return fmt.Errorf("failed to ping database: %w", err)
	}

	a.db = db
	a.running = true
	return nil
}

// Stop closes the database connection
func (a *Adapter) Stop() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.running {
		return nil
	}

	a.running = false
	if a.db != nil {
		return a.db.Close()
	}
	return nil
}

// IsConnected returns connection status
func (a *Adapter) IsConnected() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.running && a.db != nil
}

// Health checks database connectivity
func (a *Adapter) Health(ctx context.Context) error {
	if !a.IsConnected() {
		return fmt.Errorf("adapter not connected")
	}
	return a.db.PingContext(ctx)
}

// FindProcedure resolves a SIGTAP procedure code
func (a *Adapter) FindProcedure(ctx context.Context, code string) (*reference.Procedure, error) {
	if !a.IsConnected() {
		return nil, fmt.Errorf("adapter not connected")
	}

	query := fmt.Sprintf(`
		SELECT Codigo, Descricao, Complexidade
		FROM %s
		WHERE Codigo = @code
	`, a.config.ProcedureTable)

	var p reference.Procedure
	var complexity sql.NullString

	err := a.db.QueryRowContext(ctx, query, sql.Named("code", code)).
		Scan(&p.Code, &p.Description, &complexity)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("%w: procedure %s", reference.ErrCodeNotFound, code)
		}
		return nil, fmt.Errorf("failed to fetch procedure: %w", err)
	}

	if complexity.Valid {
		p.Complexity = complexity.String
	}

	return &p, nil
}

// FindCID resolves a CID-10 diagnosis code
func (a *Adapter) FindCID(ctx context.Context, code string) (*reference.CID, error) {
	if !a.IsConnected() {
		return nil, fmt.Errorf("adapter not connected")
	}

	query := fmt.Sprintf(`
		SELECT Codigo, Descricao
		FROM %s
		WHERE Codigo = @code
	`, a.config.CIDTable)

	var c reference.CID
	err := a.db.QueryRowContext(ctx, query, sql.Named("code", code)).
		Scan(&c.Code, &c.Description)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("%w: cid %s", reference.ErrCodeNotFound, code)
		}
		return nil, fmt.Errorf("failed to fetch cid: %w", err)
	}

	return &c, nil
}

// Verify interface implementation
var _ reference.Lookup = (*Adapter)(nil)
