// file: http_connector.go
package tablestore

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/carlmjohnson/requests"
)

// HTTPConnector talks to a remote table service exposing
// GET /tables, GET /tables/{name}, PUT /tables/{name} and GET /health.
type HTTPConnector struct {
	cfg    StoreConfig
	client *http.Client
}

func newHTTPConnector(cfg StoreConfig) (*HTTPConnector, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		return nil, errors.New("http store base url is required")
	}
	if _, err := url.Parse(base); err != nil {
		return nil, fmt.Errorf("invalid http store base url: %w", err)
	}
	cfg.BaseURL = base
	return &HTTPConnector{cfg: cfg, client: &http.Client{Timeout: cfg.CallTimeout()}}, nil
}

func (c *HTTPConnector) builder(path string) *requests.Builder {
	b := requests.URL(c.cfg.BaseURL + path).Client(c.client)
	if c.cfg.Token != "" {
		b = b.Bearer(c.cfg.Token)
	}
	return b
}

func (c *HTTPConnector) TestConnection(ctx context.Context) error {
	if err := c.builder("/health").Fetch(ctx); err != nil {
		return unavailable("ping http store", err)
	}
	return nil
}

func (c *HTTPConnector) ListTables(ctx context.Context) ([]string, error) {
	var payload struct {
		Tables []string `json:"tables"`
	}
	if err := c.builder("/tables").ToJSON(&payload).Fetch(ctx); err != nil {
		return nil, unavailable("list http tables", err)
	}
	if payload.Tables == nil {
		return []string{}, nil
	}
	return payload.Tables, nil
}

func (c *HTTPConnector) ReadTable(ctx context.Context, name string) (Table, error) {
	if strings.TrimSpace(name) == "" {
		return Table{}, errors.New("table name is empty")
	}
	var table Table
	err := c.builder("/tables/" + url.PathEscape(name)).ToJSON(&table).Fetch(ctx)
	if requests.HasStatusErr(err, http.StatusNotFound) {
		return Table{}, notFound(name)
	}
	if err != nil {
		return Table{}, unavailable("read http table", err)
	}
	table.Name = name
	if table.Columns == nil {
		table.Columns = []string{}
	}
	if table.Rows == nil {
		table.Rows = []Row{}
	}
	return table, nil
}

func (c *HTTPConnector) WriteTable(ctx context.Context, table Table) error {
	if strings.TrimSpace(table.Name) == "" {
		return errors.New("table name is empty")
	}
	err := c.builder("/tables/" + url.PathEscape(table.Name)).
		Put().
		BodyJSON(table).
		Fetch(ctx)
	if err != nil {
		return unavailable("write http table", err)
	}
	return nil
}

func (c *HTTPConnector) Close() error {
	c.client.CloseIdleConnections()
	return nil
}
