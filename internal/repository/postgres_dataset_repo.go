package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/hitoshi/carefunnel/internal/dataset"
	"github.com/lib/pq"
)

// PostgresDatasetRepo はPostgreSQLを使用したテーブルストア。
type PostgresDatasetRepo struct {
	db *sql.DB
}

// NewPostgresDatasetRepo はPostgresDatasetRepoを生成する。
func NewPostgresDatasetRepo(db *sql.DB) *PostgresDatasetRepo {
	return &PostgresDatasetRepo{db: db}
}

// Replace は6テーブルをTRUNCATEし、COPYで一括投入してから生成実行を記録する。
func (r *PostgresDatasetRepo) Replace(ctx context.Context, ds *dataset.Dataset) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("トランザクションの開始に失敗しました: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, truncateSQL()); err != nil {
		return fmt.Errorf("テーブルの初期化に失敗しました: %w", err)
	}

	// 外部キーの向きに合わせて親テーブルから投入する
	for _, name := range dataset.TableNames {
		tbl, err := ds.Table(name)
		if err != nil {
			return err
		}
		if err := copyTable(ctx, tx, tbl); err != nil {
			return err
		}
	}

	counts, err := json.Marshal(ds.Counts())
	if err != nil {
		return fmt.Errorf("行数のエンコードに失敗しました: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO dataset_runs (id, seed, user_count, max_sessions_per_user, window_days, anchor_date, row_counts, generated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		ds.Run.ID, int64(ds.Run.Seed), ds.Run.UserCount, ds.Run.MaxSessionsPerUser, ds.Run.WindowDays,
		ds.Run.AnchorDate.Format(dataset.DateLayout), string(counts), ds.Run.GeneratedAt,
	)
	if err != nil {
		return fmt.Errorf("生成実行の記録に失敗しました: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("トランザクションのコミットに失敗しました: %w", err)
	}

	return nil
}

// truncateSQL は6テーブルをまとめて空にするSQLを返す。
func truncateSQL() string {
	names := make([]string, len(dataset.TableNames))
	for i, name := range dataset.TableNames {
		names[i] = pq.QuoteIdentifier(name)
	}
	return "TRUNCATE " + strings.Join(names, ", ")
}

// copyTable はテーブルビューの行をCOPY FROM STDINで投入する。
func copyTable(ctx context.Context, tx *sql.Tx, tbl *dataset.Table) error {
	stmt, err := tx.PrepareContext(ctx, pq.CopyIn(tbl.Name, tbl.Columns...))
	if err != nil {
		return fmt.Errorf("%s のCOPY準備に失敗しました: %w", tbl.Name, err)
	}
	defer stmt.Close()

	for _, row := range tbl.Rows {
		if _, err := stmt.ExecContext(ctx, row...); err != nil {
			return fmt.Errorf("%s への行の投入に失敗しました: %w", tbl.Name, err)
		}
	}

	// 引数なしのExecでバッファをフラッシュする
	if _, err := stmt.ExecContext(ctx); err != nil {
		return fmt.Errorf("%s のCOPY完了に失敗しました: %w", tbl.Name, err)
	}

	return nil
}

// CurrentRun は最新の生成実行を返す。一度も生成されていなければnilを返す。
func (r *PostgresDatasetRepo) CurrentRun(ctx context.Context) (*dataset.Run, error) {
	runs, err := r.ListRuns(ctx, 1)
	if err != nil {
		return nil, err
	}
	if len(runs) == 0 {
		return nil, nil
	}
	return &runs[0].Run, nil
}

// ListRuns は生成実行の履歴を新しい順に最大limit件返す。
func (r *PostgresDatasetRepo) ListRuns(ctx context.Context, limit int) ([]RunSummary, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, seed, user_count, max_sessions_per_user, window_days, anchor_date, row_counts, generated_at
		 FROM dataset_runs
		 ORDER BY generated_at DESC
		 LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("生成実行履歴の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var runs []RunSummary
	for rows.Next() {
		var rs RunSummary
		var seed int64
		var counts []byte
		if err := rows.Scan(
			&rs.ID, &seed, &rs.UserCount, &rs.MaxSessionsPerUser, &rs.WindowDays,
			&rs.AnchorDate, &counts, &rs.GeneratedAt,
		); err != nil {
			return nil, fmt.Errorf("生成実行行の読み取りに失敗しました: %w", err)
		}
		rs.Seed = uint64(seed)
		rs.AnchorDate = dateOnly(rs.AnchorDate)
		rs.GeneratedAt = rs.GeneratedAt.UTC()
		if err := json.Unmarshal(counts, &rs.RowCounts); err != nil {
			return nil, fmt.Errorf("行数のデコードに失敗しました: %w", err)
		}
		runs = append(runs, rs)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("生成実行履歴の走査に失敗しました: %w", err)
	}

	return runs, nil
}

// Ping はデータベースへの疎通を確認する。
func (r *PostgresDatasetRepo) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// dateOnly はDATE列から読んだ値をUTCの0時に揃える。
func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// compile-time interface check
var _ DatasetRepository = (*PostgresDatasetRepo)(nil)
