package source

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/ops-intel/orchestrator/infrastructure/apperrors"
)

// sqlConn is the sqlx-backed SQLConnection for postgresql/mysql sources.
// Only the postgres driver (lib/pq) is registered, so opening a mysql
// source fails.
type sqlConn struct {
	db       *sqlx.DB
	readOnly bool
	timeout  int // statement timeout in seconds, 0 = driver default
}

func dialDriver(kind Kind) (string, error) {
	switch kind {
	case KindPostgreSQL:
		return "postgres", nil
	case KindMySQL:
		return "mysql", nil
	default:
		return "", apperrors.Of(apperrors.CodeConfigurationError, "unsupported SQL source kind: "+string(kind))
	}
}

func dsn(def Def, cred ResolvedCredential) string {
	switch def.Type {
	case KindPostgreSQL:
		return fmt.Sprintf("host=%s port=%d user=%s password=%s sslmode=%s connect_timeout=%d",
			def.Host, def.Port, cred.Username, cred.Secret, tlsModeOrDefault(def.TLSMode), int(def.Timeout.Seconds()))
	default:
		return def.URI
	}
}

func tlsModeOrDefault(mode string) string {
	if mode == "" {
		return "disable"
	}
	return mode
}

// openSQL opens a pooled SQL connection for def, applying the pool limits
// PoolMaxOpen, PoolMaxIdle and PoolMaxLife. readOnly and the timeout are
// recorded on the connection but not applied: Query runs statements
// without a read-only transaction or a statement timeout.
func openSQL(ctx context.Context, def Def, cred ResolvedCredential, readOnly bool) (*sqlConn, error) {
	driver, err := dialDriver(def.Type)
	if err != nil {
		return nil, err
	}
	db, err := sqlx.Open(driver, dsn(def, cred))
	if err != nil {
		return nil, apperrors.Ofw(apperrors.CodeConnectionError, "open SQL source failed", err)
	}
	if def.PoolMaxOpen > 0 {
		db.SetMaxOpenConns(def.PoolMaxOpen)
	}
	if def.PoolMaxIdle > 0 {
		db.SetMaxIdleConns(def.PoolMaxIdle)
	}
	if def.PoolMaxLife > 0 {
		db.SetConnMaxLifetime(def.PoolMaxLife)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, apperrors.Ofw(apperrors.CodeConnectionError, "ping SQL source failed", err)
	}

	return &sqlConn{db: db, readOnly: readOnly, timeout: int(def.Timeout.Seconds())}, nil
}

// Query executes statement with args and scans every row into a
// map[string]interface{} keyed by column name.
func (c *sqlConn) Query(ctx context.Context, statement string, args []interface{}) ([]map[string]interface{}, error) {
	rows, err := c.db.QueryxContext(ctx, statement, args...)
	if err != nil {
		if ctx.Err() != nil {
			return nil, apperrors.Ofw(apperrors.CodeToolTimeout, "query deadline exceeded", err)
		}
		return nil, apperrors.Ofw(apperrors.CodeUpstreamUnavailable, "query failed", err)
	}
	defer rows.Close()

	var out []map[string]interface{}
	for rows.Next() {
		row := make(map[string]interface{})
		if err := rows.MapScan(row); err != nil {
			return nil, apperrors.Ofw(apperrors.CodeInternalError, "row scan failed", err)
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

func (c *sqlConn) Close() error { return c.db.Close() }
