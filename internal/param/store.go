package param

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/nerrad567/parambridge-core/internal/schema"
)

// CacheStore persists parameter metadata between runs, so the bridge can
// serve a last-known namespace before the first successful poll.
type CacheStore interface {
	// SaveEndpoint replaces the cached parameters of one endpoint.
	SaveEndpoint(ctx context.Context, endpointID string, params []Parameter) error

	// Load retrieves every cached parameter.
	Load(ctx context.Context) ([]Parameter, error)
}

// SQLiteCache implements CacheStore over the parameter_cache table.
type SQLiteCache struct {
	db *sql.DB
}

// NewSQLiteCache creates a cache store. The db parameter should be an open
// connection with migrations applied.
func NewSQLiteCache(db *sql.DB) *SQLiteCache {
	return &SQLiteCache{db: db}
}

// SaveEndpoint replaces the cached rows of one endpoint in a single
// transaction. Removed parameters are not persisted.
func (c *SQLiteCache) SaveEndpoint(ctx context.Context, endpointID string, params []Parameter) error {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		"DELETE FROM parameter_cache WHERE endpoint_id = ?", endpointID,
	); err != nil {
		return fmt.Errorf("clearing endpoint cache: %w", err)
	}

	const insert = `
		INSERT INTO parameter_cache
			(endpoint_id, path, value_type, writable, allowed_values, units, value, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

	for i := range params {
		p := &params[i]
		if p.Status == StatusRemoved {
			continue
		}

		allowed, err := encodeNullable(p.AllowedValues)
		if err != nil {
			return fmt.Errorf("encoding allowed values for %s: %w", p.Path, err)
		}
		value, err := encodeNullable(p.Value)
		if err != nil {
			return fmt.Errorf("encoding value for %s: %w", p.Path, err)
		}

		if _, err := tx.ExecContext(ctx, insert,
			endpointID,
			p.Path,
			string(p.Type),
			boolToInt(p.Writable),
			allowed,
			p.Units,
			value,
			p.UpdatedAt.UTC().Format(time.RFC3339),
		); err != nil {
			return fmt.Errorf("inserting %s/%s: %w", endpointID, p.Path, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing endpoint cache: %w", err)
	}
	return nil
}

// Load retrieves every cached parameter. Rows that fail to decode are
// skipped rather than failing the whole load; the cache is best-effort.
func (c *SQLiteCache) Load(ctx context.Context) ([]Parameter, error) {
	rows, err := c.db.QueryContext(ctx, `
		SELECT endpoint_id, path, value_type, writable, allowed_values, units, value, updated_at
		FROM parameter_cache
		ORDER BY endpoint_id, path`)
	if err != nil {
		return nil, fmt.Errorf("querying parameter cache: %w", err)
	}
	defer rows.Close()

	var params []Parameter
	for rows.Next() {
		var (
			p         Parameter
			valueType string
			writable  int
			allowed   sql.NullString
			value     sql.NullString
			updatedAt string
		)
		if err := rows.Scan(
			&p.EndpointID, &p.Path, &valueType, &writable,
			&allowed, &p.Units, &value, &updatedAt,
		); err != nil {
			return nil, fmt.Errorf("scanning cache row: %w", err)
		}

		p.Type = schema.ValueType(valueType)
		p.Writable = writable != 0
		p.Status = StatusStale
		p.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)

		if allowed.Valid {
			if err := json.Unmarshal([]byte(allowed.String), &p.AllowedValues); err != nil {
				continue
			}
		}
		if value.Valid {
			v, ok := decodeCachedValue(p.Type, value.String)
			if !ok {
				continue
			}
			p.Value = v
		}

		params = append(params, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating cache rows: %w", err)
	}
	return params, nil
}

// encodeNullable marshals a value to JSON, mapping nil to SQL NULL.
func encodeNullable(v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

// decodeCachedValue parses a stored JSON value back to canonical form.
func decodeCachedValue(t schema.ValueType, raw string) (any, bool) {
	var v any
	dec := json.NewDecoder(strings.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&v); err != nil {
		return nil, false
	}
	return schema.Coerce(t, v)
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
