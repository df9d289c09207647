// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"

	"github.com/hitoshi/carefunnel/internal/dataset"
	"github.com/hitoshi/carefunnel/internal/store"
)

// DatasetWriter はデータセット全体を入れ替えるインターフェース。
type DatasetWriter interface {
	// Replace は既存の6テーブルを破棄し、dsの内容で置き換える。
	// 1トランザクションで行うため、読み手は旧データか新データのどちらかだけを見る。
	Replace(ctx context.Context, ds *dataset.Dataset) error
}

// DatasetRepository はテーブルストアの読み書きインターフェース。
type DatasetRepository interface {
	store.Source
	DatasetWriter

	// ListRuns は生成実行の履歴を新しい順に最大limit件返す。
	ListRuns(ctx context.Context, limit int) ([]RunSummary, error)
}

// RunSummary は生成実行の履歴1件。
type RunSummary struct {
	dataset.Run
	RowCounts map[string]int
}
