package source

import (
	"context"
)

// SQLConnection is the dialect surface for postgresql/mysql sources: it
// executes parameterized queries only, with no transaction, read-only
// mode or statement-timeout controls.
type SQLConnection interface {
	Query(ctx context.Context, statement string, args []interface{}) ([]map[string]interface{}, error)
	Close() error
}

// GraphConnection is the dialect surface for neo4j-kind sources (spec
// §4.2: "graph: run Cypher-style read-only queries").
type GraphConnection interface {
	RunCypher(ctx context.Context, statement string, params map[string]interface{}) ([]map[string]interface{}, error)
	Close() error
}

// CacheConnection is the dialect surface for redis-kind sources (spec
// §4.2: "cache: scan/get/hash ops").
type CacheConnection interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string, ttlSeconds int) error
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	Scan(ctx context.Context, pattern string) ([]string, error)
	Close() error
}

// HTTPConnection is the dialect surface for rest_api/graphql_api sources
// (spec §4.2: "HTTP: issue request").
type HTTPConnection interface {
	Do(ctx context.Context, method, path string, headers map[string]string, body []byte) (status int, respBody []byte, err error)
	Close() error
}
