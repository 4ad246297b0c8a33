package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/hrygo/feedbacksense/store"
)

func (d *DB) CreateFeedbackAnalysis(ctx context.Context, create *store.FeedbackAnalysis) (*store.FeedbackAnalysis, error) {
	entities, err := json.Marshal(create.Entities)
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal entities")
	}
	actionItems, err := json.Marshal(create.ActionItems)
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal action_items")
	}

	createdTs := time.Now().Unix()
	if !create.CreatedAt.IsZero() {
		createdTs = create.CreatedAt.Unix()
	}

	fields := []string{"feedback", "category", "entities", "summary", "sentiment", "priority", "route", "action_items", "trend_analysis", "source", "created_ts"}
	args := []any{create.Feedback, create.Category, string(entities), create.Summary, create.Sentiment,
		create.Priority, create.Route, string(actionItems), create.TrendAnalysis, create.Source, createdTs}
	stmt := "INSERT INTO feedback_analysis (" + strings.Join(fields, ", ") + ") VALUES (" +
		placeholders(len(fields)) + ") RETURNING id"

	created := *create
	if err := d.db.QueryRowContext(ctx, stmt, args...).Scan(&created.ID); err != nil {
		return nil, errors.Wrap(err, "failed to create feedback analysis")
	}
	created.CreatedAt = time.Unix(createdTs, 0)

	return &created, nil
}

func (d *DB) ListFeedbackAnalyses(ctx context.Context, find *store.FindFeedbackAnalysis) ([]*store.FeedbackAnalysis, error) {
	where, args := []string{"1 = 1"}, []any{}
	if find.ID != nil {
		where, args = append(where, "id = ?"), append(args, *find.ID)
	}
	if find.Category != nil {
		where, args = append(where, "category = ?"), append(args, *find.Category)
	}
	if find.Priority != nil {
		where, args = append(where, "priority = ?"), append(args, *find.Priority)
	}
	if find.Since != nil {
		where, args = append(where, "created_ts >= ?"), append(args, find.Since.Unix())
	}

	query := `SELECT id, feedback, category, IFNULL(entities, ''), IFNULL(summary, ''),
		IFNULL(sentiment, ''), IFNULL(priority, ''), IFNULL(route, ''),
		IFNULL(action_items, ''), IFNULL(trend_analysis, ''), source, created_ts
		FROM feedback_analysis
		WHERE ` + strings.Join(where, " AND ") + `
		ORDER BY created_ts DESC, id DESC`
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
		var createdTs int64
		if err := rows.Scan(&fa.ID, &fa.Feedback, &fa.Category, &entities, &fa.Summary,
			&fa.Sentiment, &fa.Priority, &fa.Route, &actionItems, &fa.TrendAnalysis,
			&fa.Source, &createdTs); err != nil {
			return nil, errors.Wrap(err, "failed to scan feedback analysis")
		}
		if fa.Entities, err = decodeList(entities); err != nil {
			return nil, errors.Wrapf(err, "failed to decode entities of analysis %d", fa.ID)
		}
		if fa.ActionItems, err = decodeList(actionItems); err != nil {
			return nil, errors.Wrapf(err, "failed to decode action_items of analysis %d", fa.ID)
		}
		fa.CreatedAt = time.Unix(createdTs, 0)
		list = append(list, &fa)
	}

	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "error iterating feedback analysis rows")
	}

	return list, nil
}

func (d *DB) GetAnalysisStats(ctx context.Context, get *store.GetAnalysisStats) (*store.AnalysisStats, error) {
	stats := store.NewAnalysisStats(get.Since)
	since := get.Since.Unix()

	// The total and every breakdown read the same snapshot.
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to begin stats transaction")
	}
	defer tx.Rollback()

	if err := tx.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM feedback_analysis WHERE created_ts >= ?", since,
	).Scan(&stats.Total); err != nil {
		return nil, errors.Wrap(err, "failed to count feedback analyses")
	}

	for _, column := range store.StatsColumns {
		// Column names come from a fixed list, never from user input.
		query := fmt.Sprintf("SELECT IFNULL(%s, ''), COUNT(*) FROM feedback_analysis WHERE created_ts >= ? GROUP BY 1", column)
		if err := countBy(ctx, tx, query, since, stats.Breakdown(column)); err != nil {
			return nil, errors.Wrapf(err, "failed to get stats by %s", column)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, errors.Wrap(err, "failed to commit stats transaction")
	}
	return stats, nil
}

func countBy(ctx context.Context, tx *sql.Tx, query string, since int64, into map[string]int64) error {
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

func (d *DB) CreateAnalysisSummary(ctx context.Context, create *store.AnalysisSummary) (*store.AnalysisSummary, error) {
	data, err := json.Marshal(create.Data)
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal summary data")
	}

	createdTs := time.Now().Unix()
	created := *create
	if err := d.db.QueryRowContext(ctx,
		"INSERT INTO analysis_summaries (summary_data, created_ts) VALUES (?, ?) RETURNING id", string(data), createdTs,
	).Scan(&created.ID); err != nil {
		return nil, errors.Wrap(err, "failed to create analysis summary")
	}
	created.CreatedAt = time.Unix(createdTs, 0)
	return &created, nil
}

// ListAnalysisSummaries returns stored snapshots newest first.
func (d *DB) ListAnalysisSummaries(ctx context.Context, limit int) ([]*store.AnalysisSummary, error) {
	rows, err := d.db.QueryContext(ctx,
		"SELECT id, summary_data, created_ts FROM analysis_summaries ORDER BY id DESC LIMIT ?", limit)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list analysis summaries")
	}
	defer rows.Close()

	list := make([]*store.AnalysisSummary, 0)
	for rows.Next() {
		var s store.AnalysisSummary
		var data string
		var createdTs int64
		if err := rows.Scan(&s.ID, &data, &createdTs); err != nil {
			return nil, errors.Wrap(err, "failed to scan analysis summary")
		}
		s.Data = &store.AnalysisStats{}
		if err := json.Unmarshal([]byte(data), s.Data); err != nil {
			return nil, errors.Wrapf(err, "failed to decode analysis summary %d", s.ID)
		}
		s.CreatedAt = time.Unix(createdTs, 0)
		list = append(list, &s)
	}
	return list, rows.Err()
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
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
