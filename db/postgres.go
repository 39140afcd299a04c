// Copyright 2022 Stock Parfait

// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at

//     http://www.apache.org/licenses/LICENSE-2.0

// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package db

import (
	"context"
	"math"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stockparfait/errors"
)

// PostgresTable is the table holding all the stored frames in the long
// format: one row per (key, date, column).
const PostgresTable = "symbol_data"

// PostgresColumnsTable holds the column names of each stored frame, so that
// frames without rows keep their columns.
const PostgresColumnsTable = "symbol_columns"

var postgresSchema = []string{`
CREATE TABLE IF NOT EXISTS symbol_data (
	storage_key TEXT NOT NULL,
	date DATE NOT NULL,
	column_index INTEGER NOT NULL,
	value DOUBLE PRECISION NOT NULL,
	PRIMARY KEY (storage_key, date, column_index)
)`, `
CREATE TABLE IF NOT EXISTS symbol_columns (
	storage_key TEXT NOT NULL,
	column_index INTEGER NOT NULL,
	column_name TEXT NOT NULL,
	PRIMARY KEY (storage_key, column_index)
)`}

// PostgresStorage keeps frames in two Postgres tables: the column names and
// the values in the long format.
type PostgresStorage struct {
	pool *pgxpool.Pool
}

var _ Storage = &PostgresStorage{}

// NewPostgresStorage connects to the database and creates the tables if
// necessary.
func NewPostgresStorage(ctx context.Context, dsn string) (*PostgresStorage, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, errors.Annotate(err, "failed to connect to postgres")
	}
	for _, q := range postgresSchema {
		if _, err := pool.Exec(ctx, q); err != nil {
			pool.Close()
			return nil, errors.Annotate(err, "failed to create postgres tables")
		}
	}
	return &PostgresStorage{pool: pool}, nil
}

// postgresCell is a single row of PostgresTable.
type postgresCell struct {
	Date   Date
	Column int
	Value  float64
}

// postgresRows splits the frame into the rows of PostgresColumnsTable and
// PostgresTable, in this order.
func postgresRows(key string, f *Frame) (columns, cells [][]any) {
	for j, c := range f.Columns() {
		columns = append(columns, []any{key, j, c})
	}
	for i, d := range f.Dates() {
		for j := range f.Columns() {
			cells = append(cells, []any{key, d.ToTime(), j, f.Value(i, j)})
		}
	}
	return
}

// postgresFrame assembles the frame from its columns and cells sorted by date.
// Missing cells are NaN.
func postgresFrame(columns []string, cells []postgresCell) (*Frame, error) {
	var dates []Date
	data := make([][]float64, len(columns))
	for j := range data {
		data[j] = []float64{}
	}
	for _, c := range cells {
		if c.Column < 0 || c.Column >= len(columns) {
			return nil, errors.Reason("column index %d out of range [0..%d)",
				c.Column, len(columns))
		}
		if len(dates) == 0 || dates[len(dates)-1] != c.Date {
			dates = append(dates, c.Date)
			for j := range data {
				data[j] = append(data[j], math.NaN())
			}
		}
		data[c.Column][len(dates)-1] = c.Value
	}
	if dates == nil {
		dates = []Date{}
	}
	return NewFrame(dates, columns, data)
}

// Load implements Storage.
func (s *PostgresStorage) Load(ctx context.Context, key string) (*Frame, error) {
	if err := checkKey(key); err != nil {
		return nil, err
	}
	rows, err := s.pool.Query(ctx, `
SELECT column_name FROM symbol_columns
WHERE storage_key = $1 ORDER BY column_index`, key)
	if err != nil {
		return nil, errors.Annotate(err, "failed to query columns of '%s'", key)
	}
	columns, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, errors.Annotate(err, "failed to read columns of '%s'", key)
	}
	if len(columns) == 0 {
		return nil, nil
	}

	rows, err = s.pool.Query(ctx, `
SELECT date, column_index, value FROM symbol_data
WHERE storage_key = $1 ORDER BY date, column_index`, key)
	if err != nil {
		return nil, errors.Annotate(err, "failed to query '%s'", key)
	}
	cells, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (postgresCell, error) {
		var t time.Time
		var c postgresCell
		if err := row.Scan(&t, &c.Column, &c.Value); err != nil {
			return c, err
		}
		c.Date = NewDateFromTime(t)
		return c, nil
	})
	if err != nil {
		return nil, errors.Annotate(err, "failed to read rows of '%s'", key)
	}
	f, err := postgresFrame(columns, cells)
	if err != nil {
		return nil, errors.Annotate(err, "inconsistent data for '%s'", key)
	}
	return f, nil
}

// Store implements Storage. The previous value is replaced atomically.
func (s *PostgresStorage) Store(ctx context.Context, key string, f *Frame) (err error) {
	if err = checkKey(key); err != nil {
		return
	}
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return errors.Annotate(err, "failed to begin transaction")
	}
	defer func() {
		if err != nil {
			tx.Rollback(ctx)
		}
	}()
	for _, table := range []string{PostgresColumnsTable, PostgresTable} {
		q := "DELETE FROM " + pgx.Identifier{table}.Sanitize() + " WHERE storage_key = $1"
		if _, err = tx.Exec(ctx, q, key); err != nil {
			return errors.Annotate(err, "failed to delete old data for '%s'", key)
		}
	}
	columns, cells := postgresRows(key, f)
	_, err = tx.CopyFrom(ctx, pgx.Identifier{PostgresColumnsTable},
		[]string{"storage_key", "column_index", "column_name"},
		pgx.CopyFromRows(columns))
	if err != nil {
		return errors.Annotate(err, "failed to copy columns for '%s'", key)
	}
	_, err = tx.CopyFrom(ctx, pgx.Identifier{PostgresTable},
		[]string{"storage_key", "date", "column_index", "value"},
		pgx.CopyFromRows(cells))
	if err != nil {
		return errors.Annotate(err, "failed to copy data for '%s'", key)
	}
	if err = tx.Commit(ctx); err != nil {
		return errors.Annotate(err, "failed to commit data for '%s'", key)
	}
	return nil
}

// Close the connection pool.
func (s *PostgresStorage) Close() error {
	s.pool.Close()
	return nil
}
