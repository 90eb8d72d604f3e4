package db

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"lifesync-engine/internal/config"
)

// NewPool construye y devuelve un pool de conexiones configurado.
func NewPool(ctx context.Context, cfg *config.Config) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}

	poolCfg.MaxConns = 10
	poolCfg.MinConns = 1
	poolCfg.MaxConnLifetime = 30 * time.Minute
	poolCfg.MaxConnIdleTime = 5 * time.Minute
	poolCfg.HealthCheckPeriod = 30 * time.Second
	poolCfg.ConnConfig.ConnectTimeout = cfg.DBConnectTimeout

	return pgxpool.NewWithConfig(ctx, poolCfg)
}

// Ping verifica conectividad con la base de datos.
func Ping(ctx context.Context, pool *pgxpool.Pool) error {
	return pool.Ping(ctx)
}

// ErrNotInitialized se devuelve al pedir el cliente antes de Initialize.
var ErrNotInitialized = errors.New("db: connection manager not initialized")

// ConnectionManager mantiene el único pool del proceso. El cliente es caro
// de construir y seguro de compartir; se inicializa una sola vez bajo mutex.
type ConnectionManager struct {
	mu   sync.Mutex
	pool *pgxpool.Pool
}

var manager ConnectionManager

// Manager devuelve el singleton del proceso.
func Manager() *ConnectionManager { return &manager }

// Initialize crea el pool si aún no existe. Idempotente.
func (m *ConnectionManager) Initialize(ctx context.Context, cfg *config.Config) error {
	if m.initialized() {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.pool != nil {
		return nil
	}
	pool, err := NewPool(ctx, cfg)
	if err != nil {
		return err
	}
	m.pool = pool
	return nil
}

func (m *ConnectionManager) initialized() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pool != nil
}

// Client devuelve el pool compartido o ErrNotInitialized.
func (m *ConnectionManager) Client() (*pgxpool.Pool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.pool == nil {
		return nil, ErrNotInitialized
	}
	return m.pool, nil
}

// Close libera el pool y limpia el estado de inicialización.
func (m *ConnectionManager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.pool != nil {
		m.pool.Close()
		m.pool = nil
	}
}

// Reset existe solo para tests: descarta el pool sin cerrarlo.
func (m *ConnectionManager) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pool = nil
}
