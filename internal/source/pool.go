package source

import (
	"context"
	"sync"

	"github.com/ops-intel/orchestrator/infrastructure/apperrors"
)

// Conn is the union handle returned by Manager.Open; callers type-assert
// to the dialect interface (SQLConnection/GraphConnection/CacheConnection/
// HTTPConnection) their tool kind expects.
type Conn interface {
	Close() error
}

// Manager pools connections per source identity (spec §4.2: "Connections
// are pooled per source identity"). SQL and cache connections are
// themselves internally pooled by their driver; Manager's job is to avoid
// re-dialing the same source definition on every tool call.
type Manager struct {
	mu    sync.Mutex
	conns map[string]Conn
}

// NewManager builds an empty connection Manager.
func NewManager() *Manager {
	return &Manager{conns: make(map[string]Conn)}
}

// identity derives the pooling key for def: the tuple a connection's
// lifetime is scoped to.
func identity(sourceID string, def Def) string {
	return sourceID + "|" + string(def.Type) + "|" + def.Host + "|" + def.URI
}

// Open returns a pooled connection for (sourceID, def), opening one on
// first use. The returned Conn is the dialect-specific type; callers
// downcast via the SQLConnection/GraphConnection/CacheConnection/
// HTTPConnection interfaces.
func (m *Manager) Open(ctx context.Context, sourceID string, def Def, readOnly bool) (Conn, error) {
	key := identity(sourceID, def)

	m.mu.Lock()
	if c, ok := m.conns[key]; ok {
		m.mu.Unlock()
		return c, nil
	}
	m.mu.Unlock()

	cred, err := ResolveCredential(def)
	if err != nil {
		return nil, err
	}

	var conn Conn
	switch def.Type {
	case KindPostgreSQL, KindMySQL:
		conn, err = openSQL(ctx, def, cred, readOnly)
	case KindRedis:
		conn, err = openCache(ctx, def, cred)
	case KindNeo4j:
		conn = openGraph(def, cred)
	case KindRESTAPI, KindGraphQLAPI:
		conn = openHTTP(def)
	default:
		return nil, apperrors.Of(apperrors.CodeConfigurationError, "unsupported source kind: "+string(def.Type))
	}
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	m.conns[key] = conn
	m.mu.Unlock()
	return conn, nil
}

// CloseAll releases every pooled connection, used at process shutdown.
func (m *Manager) CloseAll() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.conns {
		_ = c.Close()
	}
	m.conns = make(map[string]Conn)
}
