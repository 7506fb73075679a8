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
	"time"

	"github.com/refactoring-ai/refml/eval"
)

const (
	MetricAccuracy  = "accuracy"
	MetricPrecision = "precision"
	MetricRecall    = "recall"
)

// Run is a single invocation of the training pipeline.
type Run struct {
	ID        int64
	Created   time.Time
	ContextID string
}

// CreateRun inserts a new run and returns its ID.
func (database *Database) CreateRun(contextID string) (int64, error) {
	ans, err := database.db.Exec(
		"INSERT INTO run (created, context_id) VALUES (?, ?)",
		time.Now().Unix(), contextID)
	if err != nil {
		return -1, fmt.Errorf("failed to create new run: %w", err)
	}
	v, err := ans.LastInsertId()
	if err != nil {
		return -1, fmt.Errorf("failed to create new run: %w", err)
	}
	return v, nil
}

func (database *Database) GetRun(runID int64) (Run, error) {
	row := database.db.QueryRow("SELECT id, created, context_id FROM run WHERE id = ?", runID)
	var ans Run
	var created int64
	err := row.Scan(&ans.ID, &created, &ans.ContextID)
	if err == sql.ErrNoRows {
		return Run{}, fmt.Errorf("run %d not found: %w", runID, err)

	} else if err != nil {
		return Run{}, fmt.Errorf("failed to get run: %w", err)
	}
	ans.Created = time.Unix(created, 0)
	return ans, nil
}

// AddEvaluation stores the evaluation including per-fold scores
// and feature importances. Everything is written in a single
// transaction.
func (database *Database) AddEvaluation(runID int64, ev *eval.Evaluation) (int64, error) {
	tx, err := database.db.Begin()
	if err != nil {
		return -1, fmt.Errorf("failed to start transaction: %w", err)
	}
	evalID, err := addEvaluation(tx, runID, ev)
	if err != nil {
		if err2 := tx.Rollback(); err2 != nil {
			return -1, fmt.Errorf("failed to rollback transaction: %w (original error: %s)", err2, err)
		}
		return -1, err
	}
	if err := tx.Commit(); err != nil {
		return -1, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return evalID, nil
}

func addEvaluation(tx *sql.Tx, runID int64, ev *eval.Evaluation) (int64, error) {
	loaded := 0
	if ev.Loaded {
		loaded = 1
	}
	ans, err := tx.Exec(
		"INSERT INTO evaluation "+
			"(run_id, refactoring, instances, balanced_size, model_key, model_info, loaded) "+
			"VALUES (?, ?, ?, ?, ?, ?, ?)",
		runID, ev.Refactoring, ev.Instances, ev.BalancedSize, ev.ModelKey, ev.ModelInfo, loaded)
	if err != nil {
		return -1, fmt.Errorf("failed to add evaluation: %w", err)
	}
	evalID, err := ans.LastInsertId()
	if err != nil {
		return -1, fmt.Errorf("failed to add evaluation: %w", err)
	}
	scores := map[string][]float64{
		MetricAccuracy:  ev.Accuracy,
		MetricPrecision: ev.Precision,
		MetricRecall:    ev.Recall,
	}
	for metric, values := range scores {
		for fold, v := range values {
			_, err := tx.Exec(
				"INSERT INTO score (evaluation_id, metric, fold, value) VALUES (?, ?, ?, ?)",
				evalID, metric, fold, v)
			if err != nil {
				return -1, fmt.Errorf("failed to add %s score: %w", metric, err)
			}
		}
	}
	for i, imp := range ev.Importances {
		_, err := tx.Exec(
			"INSERT INTO feature_importance (evaluation_id, idx, feature, importance) "+
				"VALUES (?, ?, ?, ?)",
			evalID, i, imp.Feature, imp.Importance)
		if err != nil {
			return -1, fmt.Errorf("failed to add feature importance: %w", err)
		}
	}
	return evalID, nil
}

// GetEvaluations returns all the evaluations of a run in the order
// they were added.
func (database *Database) GetEvaluations(runID int64) ([]*eval.Evaluation, error) {
	rows, err := database.db.Query(
		"SELECT id, refactoring, instances, balanced_size, model_key, model_info, loaded "+
			"FROM evaluation WHERE run_id = ? ORDER BY id",
		runID,
	)
	if err != nil {
		return []*eval.Evaluation{}, fmt.Errorf("failed to get evaluations: %w", err)
	}
	ids := make([]int64, 0, 20)
	ans := make([]*eval.Evaluation, 0, 20)
	for rows.Next() {
		var id int64
		var info sql.NullString
		var loaded int
		ev := new(eval.Evaluation)
		err := rows.Scan(
			&id, &ev.Refactoring, &ev.Instances, &ev.BalancedSize, &ev.ModelKey, &info, &loaded)
		if err != nil {
			rows.Close()
			return []*eval.Evaluation{}, fmt.Errorf("failed to get evaluations: %w", err)
		}
		ev.ModelInfo = info.String
		ev.Loaded = loaded == 1
		ids = append(ids, id)
		ans = append(ans, ev)
	}
	if err := rows.Err(); err != nil {
		return []*eval.Evaluation{}, fmt.Errorf("failed to get evaluations: %w", err)
	}
	rows.Close()
	for i, ev := range ans {
		if err := database.loadScores(ids[i], ev); err != nil {
			return []*eval.Evaluation{}, err
		}
		if err := database.loadImportances(ids[i], ev); err != nil {
			return []*eval.Evaluation{}, err
		}
	}
	return ans, nil
}

func (database *Database) loadScores(evalID int64, ev *eval.Evaluation) error {
	rows, err := database.db.Query(
		"SELECT metric, value FROM score WHERE evaluation_id = ? ORDER BY metric, fold", evalID)
	if err != nil {
		return fmt.Errorf("failed to load scores: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var metric string
		var v float64
		if err := rows.Scan(&metric, &v); err != nil {
			return fmt.Errorf("failed to load scores: %w", err)
		}
		switch metric {
		case MetricAccuracy:
			ev.Accuracy = append(ev.Accuracy, v)
		case MetricPrecision:
			ev.Precision = append(ev.Precision, v)
		case MetricRecall:
			ev.Recall = append(ev.Recall, v)
		}
	}
	return rows.Err()
}

func (database *Database) loadImportances(evalID int64, ev *eval.Evaluation) error {
	rows, err := database.db.Query(
		"SELECT feature, importance FROM feature_importance WHERE evaluation_id = ? ORDER BY idx",
		evalID)
	if err != nil {
		return fmt.Errorf("failed to load feature importances: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var imp eval.FeatureImportance
		if err := rows.Scan(&imp.Feature, &imp.Importance); err != nil {
			return fmt.Errorf("failed to load feature importances: %w", err)
		}
		ev.Importances = append(ev.Importances, imp)
	}
	return rows.Err()
}
