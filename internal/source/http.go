package source

import (
	"bytes"
	"context"
	"io"
	"net/http"

	"github.com/ops-intel/orchestrator/infrastructure/apperrors"
)

// httpConn is the net/http-backed HTTPConnection for rest_api/graphql_api
// sources.
type httpConn struct {
	client  *http.Client
	baseURL string
}

func openHTTP(def Def) *httpConn {
	return &httpConn{
		client:  &http.Client{Timeout: def.Timeout},
		baseURL: def.URI,
	}
}

// Do issues one HTTP request against baseURL+path.
func (c *httpConn) Do(ctx context.Context, method, path string, headers map[string]string, body []byte) (int, []byte, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return 0, nil, apperrors.Ofw(apperrors.CodeToolBadRequest, "build request failed", err)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return 0, nil, apperrors.Ofw(apperrors.CodeToolTimeout, "request deadline exceeded", err)
		}
		return 0, nil, apperrors.Ofw(apperrors.CodeUpstreamUnavailable, "request failed", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, apperrors.Ofw(apperrors.CodeInternalError, "read response body failed", err)
	}
	return resp.StatusCode, respBody, nil
}

func (c *httpConn) Close() error { return nil }
