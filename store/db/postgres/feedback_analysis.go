package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/pkg/errors"

	"github.com/hrygo/feedbacksense/store"
)

// CreateFeedbackAnalysis inserts an analysis and returns it with id and creation time.
func (d *DB) CreateFeedbackAnalysis(ctx context.Context, create *store.FeedbackAnalysis) (*store.FeedbackAnalysis, error) {
	entities, err := json.Marshal(create.Entities)
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal entities")
	}
	actionItems, err := json.Marshal(create.ActionItems)
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal action_items")
	}

	stmt := `INSERT INTO feedback_analysis
		(feedback, category, entities, summary, sentiment, priority, route, action_items, trend_analysis, source)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id, created_at`

	created := *create
	err = d.db.QueryRowContext(ctx, stmt,
		create.Feedback, create.Category, string(entities), create.Summary, create.Sentiment,
		create.Priority, create.Route, string(actionItems), create.TrendAnalysis, create.Source,
	).Scan(&created.ID, &created.CreatedAt)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create feedback analysis")
	}

	return &created, nil
}

// ListFeedbackAnalyses retrieves analyses newest first.
func (d *DB) ListFeedbackAnalyses(ctx context.Context, find *store.FindFeedbackAnalysis) ([]*store.FeedbackAnalysis, error) {
	query := `SELECT id, feedback, category, COALESCE(entities, ''), COALESCE(summary, ''),
		COALESCE(sentiment, ''), COALESCE(priority, ''), COALESCE(route, ''),
		COALESCE(action_items, ''), COALESCE(trend_analysis, ''), source, created_at
		FROM feedback_analysis WHERE 1=1`
	args := []interface{}{}
	argIdx := 1

	if find.ID != nil {
		query += fmt.Sprintf(" AND id = %s", placeholder(argIdx))
		args = append(args, *find.ID)
		argIdx++
	}
	if find.Category != nil {
		query += fmt.Sprintf(" AND category = %s", placeholder(argIdx))
		args = append(args, *find.Category)
		argIdx++
	}
	if find.Priority != nil {
		query += fmt.Sprintf(" AND priority = %s", placeholder(argIdx))
		args = append(args, *find.Priority)
		argIdx++
	}
	if find.Since != nil {
		query += fmt.Sprintf(" AND created_at >= %s", placeholder(argIdx))
		args = append(args, *find.Since)
	}

	query += " ORDER BY created_at DESC, id DESC"
	if find.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", find.Limit)
	}

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list feedback analyses")
	}
	defer rows.Close()

	list := make([]*store.FeedbackAnalysis, 0)
	for rows.Next() {
		var fa store.FeedbackAnalysis
		var entities, actionItems string
		if err := rows.Scan(&fa.ID, &fa.Feedback, &fa.Category, &entities, &fa.Summary,
			&fa.Sentiment, &fa.Priority, &fa.Route, &actionItems, &fa.TrendAnalysis,
			&fa.Source, &fa.CreatedAt); err != nil {
			return nil, errors.Wrap(err, "failed to scan feedback analysis")
		}
		if fa.Entities, err = decodeList(entities); err != nil {
			return nil, errors.Wrapf(err, "failed to decode entities of analysis %d", fa.ID)
		}
		if fa.ActionItems, err = decodeList(actionItems); err != nil {
			return nil, errors.Wrapf(err, "failed to decode action_items of analysis %d", fa.ID)
		}
		list = append(list, &fa)
	}

	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "error iterating feedback analysis rows")
	}

	return list, nil
}

// GetAnalysisStats counts analyses since the cutoff, in total and per column.
func (d *DB) GetAnalysisStats(ctx context.Context, get *store.GetAnalysisStats) (*store.AnalysisStats, error) {
	stats := store.NewAnalysisStats(get.Since)

	// The total and every breakdown read the same snapshot.
	tx, err := d.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true})
	if err != nil {
		return nil, errors.Wrap(err, "failed to begin stats transaction")
	}
	defer tx.Rollback()

	err = tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM feedback_analysis WHERE created_at >= `+placeholder(1), get.Since,
	).Scan(&stats.Total)
	if err != nil {
		return nil, errors.Wrap(err, "failed to count feedback analyses")
	}

	for _, column := range store.StatsColumns {
		// Column names come from a fixed list, never from user input.
		query := fmt.Sprintf(`SELECT COALESCE(%s, ''), COUNT(*) FROM feedback_analysis
			WHERE created_at >= %s GROUP BY 1`, column, placeholder(1))
		if err := countBy(ctx, tx, query, get.Since, stats.Breakdown(column)); err != nil {
			return nil, errors.Wrapf(err, "failed to get stats by %s", column)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, errors.Wrap(err, "failed to commit stats transaction")
	}
	return stats, nil
}

func countBy(ctx context.Context, tx *sql.Tx, query string, since time.Time, into map[string]int64) error {
	rows, err := tx.QueryContext(ctx, query, since)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var key string
		var count int64
		if err := rows.Scan(&key, &count); err != nil {
			return err
		}
		into[key] = count
	}
	return rows.Err()
}

// CreateAnalysisSummary stores a statistics snapshot.
func (d *DB) CreateAnalysisSummary(ctx context.Context, create *store.AnalysisSummary) (*store.AnalysisSummary, error) {
	data, err := json.Marshal(create.Data)
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal summary data")
	}

	created := *create
	err = d.db.QueryRowContext(ctx,
		`INSERT INTO analysis_summaries (summary_data) VALUES ($1) RETURNING id, created_at`, string(data),
	).Scan(&created.ID, &created.CreatedAt)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create analysis summary")
	}
	return &created, nil
}

// ListAnalysisSummaries returns stored snapshots newest first.
func (d *DB) ListAnalysisSummaries(ctx context.Context, limit int) ([]*store.AnalysisSummary, error) {
	rows, err := d.db.QueryContext(ctx,
		`SELECT id, summary_data, created_at FROM analysis_summaries ORDER BY id DESC LIMIT `+placeholder(1), limit)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list analysis summaries")
	}
	defer rows.Close()

	list := make([]*store.AnalysisSummary, 0)
	for rows.Next() {
		var s store.AnalysisSummary
		var data []byte
		if err := rows.Scan(&s.ID, &data, &s.CreatedAt); err != nil {
			return nil, errors.Wrap(err, "failed to scan analysis summary")
		}
		s.Data = &store.AnalysisStats{}
		if err := json.Unmarshal(data, s.Data); err != nil {
			return nil, errors.Wrapf(err, "failed to decode analysis summary %d", s.ID)
		}
		list = append(list, &s)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "error iterating analysis summary rows")
	}
	return list, nil
}

func decodeList(raw string) ([]string, error) {
	if raw == "" {
		return []string{}, nil
	}
	var list []string
	if err := json.Unmarshal([]byte(raw), &list); err != nil {
		return nil, err
	}
	return list, nil
}
