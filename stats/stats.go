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

package stats

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog/log"
)

// Database is a journal of training runs and evaluations
// stored in an SQLite file.
type Database struct {
	db *sql.DB
}

func (database *Database) createRunTable() error {
	_, err := database.db.Exec(
		"CREATE TABLE run (" +
			"id INTEGER PRIMARY KEY AUTOINCREMENT, " +
			"created INTEGER NOT NULL, " +
			"context_id TEXT NOT NULL" +
			")",
	)
	if err != nil {
		return fmt.Errorf("failed to create table run: %w", err)
	}
	log.Info().Msg("created table `run`")
	return nil
}

func (database *Database) createEvaluationTable() error {
	_, err := database.db.Exec(
		"CREATE TABLE evaluation (" +
			"id INTEGER PRIMARY KEY AUTOINCREMENT, " +
			"run_id INTEGER NOT NULL REFERENCES run(id), " +
			"refactoring TEXT NOT NULL, " +
			"instances INTEGER NOT NULL, " +
			"balanced_size INTEGER NOT NULL, " +
			"model_key TEXT NOT NULL, " +
			"model_info TEXT, " +
			"loaded INT NOT NULL DEFAULT 0" +
			")",
	)
	if err != nil {
		return fmt.Errorf("failed to create table evaluation: %w", err)
	}
	log.Info().Msg("created table `evaluation`")
	return nil
}

func (database *Database) createScoreTable() error {
	_, err := database.db.Exec(
		"CREATE TABLE score (" +
			"evaluation_id INTEGER NOT NULL REFERENCES evaluation(id), " +
			"metric TEXT NOT NULL, " +
			"fold INTEGER NOT NULL, " +
			"value FLOAT NOT NULL, " +
			"PRIMARY KEY(evaluation_id, metric, fold)" +
			")",
	)
	if err != nil {
		return fmt.Errorf("failed to create table score: %w", err)
	}
	log.Info().Msg("created table `score`")
	return nil
}

func (database *Database) createImportanceTable() error {
	_, err := database.db.Exec(
		"CREATE TABLE feature_importance (" +
			"evaluation_id INTEGER NOT NULL REFERENCES evaluation(id), " +
			"idx INTEGER NOT NULL, " +
			"feature TEXT NOT NULL, " +
			"importance FLOAT NOT NULL, " +
			"PRIMARY KEY(evaluation_id, idx)" +
			")",
	)
	if err != nil {
		return fmt.Errorf("failed to create table feature_importance: %w", err)
	}
	log.Info().Msg("created table `feature_importance`")
	return nil
}

func (database *Database) tableExists(tn string) (bool, error) {
	ans := database.db.QueryRow(
		"SELECT name FROM sqlite_master WHERE type='table' AND name=?", tn)
	var nm sql.NullString
	err := ans.Scan(&nm)
	if err == sql.ErrNoRows {
		return false, nil

	} else if err != nil {
		return false, fmt.Errorf("failed to determine existence of table %s: %w", tn, err)
	}
	return true, nil
}

// Init creates all the missing tables. It is safe to call it
// on an already initialized database.
func (database *Database) Init() error {
	tables := []struct {
		name   string
		create func() error
	}{
		{"run", database.createRunTable},
		{"evaluation", database.createEvaluationTable},
		{"score", database.createScoreTable},
		{"feature_importance", database.createImportanceTable},
	}
	for _, tbl := range tables {
		ex, err := database.tableExists(tbl.name)
		if err != nil {
			return fmt.Errorf("failed to init table %s: %w", tbl.name, err)
		}
		if ex {
			log.Debug().Str("table", tbl.name).Msg("table already exists")
			continue
		}
		if err := tbl.create(); err != nil {
			return err
		}
	}
	return nil
}

func (database *Database) Close() error {
	return database.db.Close()
}

func NewDatabase(path string) (*Database, error) {
	dbConn, err := sql.Open("sqlite3", "file:"+path)
	if err != nil {
		return nil, fmt.Errorf("failed to open results database: %w", err)
	}
	// sqlite does not handle concurrent writers well
	dbConn.SetMaxOpenConns(1)
	return &Database{
		db: dbConn,
	}, nil
}
