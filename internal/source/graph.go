package source

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"

	"github.com/ops-intel/orchestrator/infrastructure/apperrors"
)

// graphConn issues read-only Cypher statements against a neo4j source's
// HTTP transaction endpoint. No pack repo wires a neo4j Bolt driver, so
// this stays on net/http against neo4j's documented HTTP query API rather
// than introducing an unfounded dependency.
type graphConn struct {
	client  *http.Client
	baseURL string
	auth    ResolvedCredential
}

func openGraph(def Def, cred ResolvedCredential) *graphConn {
	base := def.URI
	if base == "" {
		base = "http://" + def.Host
	}
	return &graphConn{
		client:  &http.Client{Timeout: def.Timeout},
		baseURL: base,
		auth:    cred,
	}
}

type cypherRequest struct {
	Statements []cypherStatement `json:"statements"`
}

type cypherStatement struct {
	Statement string                 `json:"statement"`
	Parameters map[string]interface{} `json:"parameters,omitempty"`
}

type cypherResponse struct {
	Results []struct {
		Columns []string        `json:"columns"`
		Data    []struct {
			Row []interface{} `json:"row"`
		} `json:"data"`
	} `json:"results"`
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

// RunCypher issues statement (read-only by convention — callers must not
// pass write clauses) and returns each row as a column-keyed map.
func (c *graphConn) RunCypher(ctx context.Context, statement string, params map[string]interface{}) ([]map[string]interface{}, error) {
	payload, err := json.Marshal(cypherRequest{Statements: []cypherStatement{{Statement: statement, Parameters: params}}})
	if err != nil {
		return nil, apperrors.Ofw(apperrors.CodeInternalError, "encode cypher request failed", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/db/neo4j/tx/commit", bytes.NewReader(payload))
	if err != nil {
		return nil, apperrors.Ofw(apperrors.CodeToolBadRequest, "build cypher request failed", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.auth.Secret != "" {
		req.SetBasicAuth(c.auth.Username, c.auth.Secret)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, apperrors.Ofw(apperrors.CodeToolTimeout, "cypher deadline exceeded", err)
		}
		return nil, apperrors.Ofw(apperrors.CodeUpstreamUnavailable, "cypher request failed", err)
	}
	defer resp.Body.Close()

	var decoded cypherResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, apperrors.Ofw(apperrors.CodeInternalError, "decode cypher response failed", err)
	}
	if len(decoded.Errors) > 0 {
		return nil, apperrors.Of(apperrors.CodeUpstreamUnavailable, decoded.Errors[0].Message)
	}

	var out []map[string]interface{}
	for _, result := range decoded.Results {
		for _, row := range result.Data {
			record := make(map[string]interface{}, len(result.Columns))
			for i, col := range result.Columns {
				if i < len(row.Row) {
					record[col] = row.Row[i]
				}
			}
			out = append(out, record)
		}
	}
	return out, nil
}

func (c *graphConn) Close() error { return nil }
