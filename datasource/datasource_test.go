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
	"path/filepath"
	"testing"

	"github.com/refactoring-ai/refml/cnf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T) *DataSource {
	ctx := context.Background()
	ds, err := Open(ctx, cnf.DBConf{
		Driver:   cnf.DriverSQLite,
		Database: filepath.Join(t.TempDir(), "features.sqlite"),
	})
	require.NoError(t, err)
	t.Cleanup(func() { ds.Close() })
	_, err = ds.conn.Exec(
		"CREATE TABLE yes (id INTEGER PRIMARY KEY, refactoring TEXT, methodLoc INT, methodCbo INT)")
	require.NoError(t, err)
	_, err = ds.conn.Exec(
		"INSERT INTO yes (refactoring, methodLoc, methodCbo) VALUES ('Extract Method', 10, 2), ('Extract Method', 7, NULL)")
	require.NoError(t, err)
	return ds
}

func TestQueryReadsAllRows(t *testing.T) {
	ds := openTestDB(t)
	ans, err := ds.Query(context.Background(), "SELECT methodLoc, methodCbo FROM yes ORDER BY id")
	require.NoError(t, err)
	assert.Equal(t, []string{"methodLoc", "methodCbo"}, ans.Columns)
	assert.Equal(t, [][]string{{"10", "2"}, {"7", ""}}, ans.Rows)
}

func TestQueryInvalidSQL(t *testing.T) {
	ds := openTestDB(t)
	_, err := ds.Query(context.Background(), "SELECT nope FROM nothing")
	assert.Error(t, err)
}

func TestCloseIsIdempotent(t *testing.T) {
	ds := openTestDB(t)
	assert.NoError(t, ds.Close())
	assert.NoError(t, ds.Close())
	_, err := ds.Query(context.Background(), "SELECT 1")
	assert.Error(t, err)
}

func TestMySQLDSN(t *testing.T) {
	dsn := mysqlDSN(cnf.DBConf{IP: "10.0.0.1:3306", User: "ml", Pwd: "pw", Database: "refactoring"})
	assert.Contains(t, dsn, "ml:pw@tcp(10.0.0.1:3306)/refactoring")
	assert.Contains(t, dsn, "parseTime=true")
}

func TestOpenUnknownDriver(t *testing.T) {
	_, err := Open(context.Background(), cnf.DBConf{Driver: "oracle"})
	assert.Error(t, err)
}
