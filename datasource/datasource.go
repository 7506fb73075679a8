// Copyright 2025 The refml Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package datasource

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/go-sql-driver/mysql"
	_ "github.com/mattn/go-sqlite3"
	"github.com/refactoring-ai/refml/cnf"
	"github.com/refactoring-ai/refml/dataset"
	"github.com/rs/zerolog/log"
)

// Querier runs a parameterless SQL query and returns
// the result as a dataset.
type Querier interface {
	Query(ctx context.Context, sqlQuery string) (*dataset.Dataset, error)
	Close() error
}

// DataSource is a long-lived connection to the database
// with extracted features. It is created once and passed
// explicitly to the components which need it.
type DataSource struct {
	conn      *sql.DB
	closeOnce sync.Once
	closeErr  error
}

// Query runs the query and reads all the result rows.
// Values are kept in their textual form, NULL values
// are converted to empty strings.
func (ds *DataSource) Query(ctx context.Context, sqlQuery string) (*dataset.Dataset, error) {
	rows, err := ds.conn.QueryContext(ctx, sqlQuery)
	if err != nil {
		return nil, fmt.Errorf("failed to run query: %w", err)
	}
	defer rows.Close()
	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("failed to read result columns: %w", err)
	}
	ans := dataset.New(cols...)
	values := make([]sql.NullString, len(cols))
	scanArgs := make([]any, len(cols))
	for i := range values {
		scanArgs[i] = &values[i]
	}
	for rows.Next() {
		if err := rows.Scan(scanArgs...); err != nil {
			return nil, fmt.Errorf("failed to read result row: %w", err)
		}
		row := make([]string, len(cols))
		for i, v := range values {
			if v.Valid {
				row[i] = v.String
			}
		}
		ans.Rows = append(ans.Rows, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read query result: %w", err)
	}
	log.Debug().Int("numRows", ans.NumRows()).Msg("query finished")
	return ans, nil
}

// Close closes the connection. Repeated calls are NOP.
func (ds *DataSource) Close() error {
	ds.closeOnce.Do(func() {
		ds.closeErr = ds.conn.Close()
		log.Info().Msg("closed data source connection")
	})
	return ds.closeErr
}

func mysqlDSN(conf cnf.DBConf) string {
	mconf := mysql.NewConfig()
	mconf.Net = "tcp"
	mconf.Addr = conf.IP
	mconf.User = conf.User
	mconf.Passwd = conf.Pwd
	mconf.DBName = conf.Database
	mconf.ParseTime = true
	mconf.Loc = time.Local
	return mconf.FormatDSN()
}

// Open connects to the database and verifies the connection.
func Open(ctx context.Context, conf cnf.DBConf) (*DataSource, error) {
	var dsn string
	switch conf.Driver {
	case cnf.DriverMySQL, "":
		dsn = mysqlDSN(conf)
		conf.Driver = cnf.DriverMySQL
	case cnf.DriverSQLite:
		dsn = conf.Database
	default:
		return nil, fmt.Errorf("unsupported database driver %s", conf.Driver)
	}
	db, err := sql.Open(conf.Driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open data source: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to data source: %w", err)
	}
	log.Info().
		Str("driver", conf.Driver).
		Str("database", conf.Database).
		Msg("connected to data source")
	return &DataSource{conn: db}, nil
}

// NewFromDB wraps an already opened database handle.
func NewFromDB(db *sql.DB) *DataSource {
	return &DataSource{conn: db}
}
