// Package source implements Source Connectors: typed, pooled connections
// to the relational, graph, cache, and HTTP backends a Tool dispatches
// against.
package source

import "time"

// Kind discriminates a Source's backend dialect.
type Kind string

const (
	KindPostgreSQL Kind = "postgresql"
	KindMySQL      Kind = "mysql"
	KindNeo4j      Kind = "neo4j"
	KindRedis      Kind = "redis"
	KindMongoDB    Kind = "mongodb"
	KindKafka      Kind = "kafka"
	KindS3         Kind = "s3"
	KindRESTAPI    Kind = "rest_api"
	KindGraphQLAPI Kind = "graphql_api"
)

// Def is the decoded content of a source-type Asset (spec §3 Source).
type Def struct {
	Type Kind `json:"type"`

	Host string `json:"host"`
	Port int    `json:"port"`
	URI  string `json:"uri"`

	Username string `json:"username"`
	// PasswordRef is a reference, never plaintext at rest: "env:NAME" or
	// "vault:PATH". Dev-only plaintext `Password` is the documented
	// inconsistency (DESIGN.md Open Question decisions).
	PasswordRef string `json:"password_ref"`
	Password    string `json:"password,omitempty"`
	DevMode     bool    `json:"dev_mode,omitempty"`

	TLSMode string        `json:"tls_mode"`
	Timeout time.Duration `json:"timeout"`

	PoolMaxOpen int           `json:"pool_max_open"`
	PoolMaxIdle int           `json:"pool_max_idle"`
	PoolMaxLife time.Duration `json:"pool_max_life"`

	Extras map[string]interface{} `json:"extras,omitempty"`
}

// ResolvedCredential is the secret material resolved at open-time from
// PasswordRef — never round-tripped through the Registry or logged.
type ResolvedCredential struct {
	Username string
	Secret   string
}
