// file: memory_connector.go
package tablestore

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
)

// MemoryStore keeps tables in process memory. Used for local runs and tests.
type MemoryStore struct {
	mu     sync.RWMutex
	tables map[string]Table
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{tables: map[string]Table{}}
}

func (m *MemoryStore) TestConnection(ctx context.Context) error {
	return ctx.Err()
}

func (m *MemoryStore) ListTables(ctx context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	names := make([]string, 0, len(m.tables))
	for name := range m.tables {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

func (m *MemoryStore) ReadTable(ctx context.Context, name string) (Table, error) {
	if err := ctx.Err(); err != nil {
		return Table{}, unavailable("read memory table", err)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	table, ok := m.tables[name]
	if !ok {
		return Table{}, notFound(name)
	}
	return table.Clone(), nil
}

func (m *MemoryStore) WriteTable(ctx context.Context, table Table) error {
	if strings.TrimSpace(table.Name) == "" {
		return errors.New("table name is empty")
	}
	if err := ctx.Err(); err != nil {
		return unavailable("write memory table", err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tables[table.Name] = table.Clone()
	return nil
}

func (m *MemoryStore) Close() error {
	return nil
}
