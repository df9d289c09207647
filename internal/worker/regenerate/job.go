// Package regenerate はデータセットの再構築ジョブとそのスケジューラを提供する。
// 再構築は「生成 → 検証 → ストアの入れ替え → キャッシュ破棄」を1回のパスで行う。
package regenerate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/carefunnel/internal/dataset"
	"github.com/hitoshi/carefunnel/internal/generator"
	"github.com/hitoshi/carefunnel/internal/model"
	"github.com/hitoshi/carefunnel/internal/repository"
)

// Invalidator は同一プロセス内の読み込みキャッシュを破棄するインターフェース。
// store.Cacheが満たす。別プロセスのキャッシュは生成実行IDの変化で破棄されるため、
// worker と generate コマンドはnilを渡す。
type Invalidator interface {
	Invalidate()
}

// Recorder は再構築の結果を記録するインターフェース。
type Recorder interface {
	RecordGeneration(success bool, duration time.Duration)
	SetTableRows(counts map[string]int)
}

// Job はデータセットの再構築ジョブ。
type Job struct {
	cfg         generator.Config
	writer      repository.DatasetWriter
	invalidator Invalidator
	recorder    Recorder
	logger      *slog.Logger

	// MaxAttempts はストア書き込みの最大試行回数（デフォルト: 3）
	MaxAttempts int
	// now は窓の終端日が未設定のときに使う現在時刻。テストで差し替える。
	now func() time.Time
	// backoff は再試行前の待ち時間。テストで差し替える。
	backoff func(failures int) time.Duration
}

// NewJob はJobを生成する。invalidatorとrecorderはnilでもよい。
// cfg.AnchorDateがゼロ値の場合は実行のたびにその日（UTC）を窓の終端とする。
func NewJob(cfg generator.Config, writer repository.DatasetWriter, invalidator Invalidator, recorder Recorder, logger *slog.Logger) *Job {
	return &Job{
		cfg:         cfg,
		writer:      writer,
		invalidator: invalidator,
		recorder:    recorder,
		logger:      logger,
		MaxAttempts: 3,
		now:         time.Now,
		backoff:     CalculateBackoff,
	}
}

// Run はデータセットを再構築する。
func (j *Job) Run(ctx context.Context) error {
	_, err := j.Rebuild(ctx)
	return err
}

// Rebuild はデータセットを生成・検証してストアを入れ替え、生成したデータセットを返す。
// 失敗した場合、ストアは以前のデータセットのまま残る。
func (j *Job) Rebuild(ctx context.Context) (*dataset.Dataset, error) {
	start := time.Now()

	ds, err := j.rebuild(ctx)
	duration := time.Since(start)

	if j.recorder != nil {
		j.recorder.RecordGeneration(err == nil, duration)
	}
	if err != nil {
		j.logger.Error("データセットの再構築に失敗しました",
			slog.String("error", err.Error()),
			slog.Duration("duration", duration),
		)
		return nil, err
	}

	counts := ds.Counts()
	if j.recorder != nil {
		j.recorder.SetTableRows(counts)
	}

	attrs := []any{
		slog.String("run_id", ds.Run.ID),
		slog.Uint64("seed", ds.Run.Seed),
		slog.String("anchor_date", ds.Run.AnchorDate.Format(dataset.DateLayout)),
		slog.Float64("duration_ms", float64(duration.Milliseconds())),
	}
	for _, name := range dataset.TableNames {
		attrs = append(attrs, slog.Int(name, counts[name]))
	}
	j.logger.Info("データセットの再構築が完了しました", attrs...)

	return ds, nil
}

func (j *Job) rebuild(ctx context.Context) (*dataset.Dataset, error) {
	cfg := j.cfg
	if cfg.AnchorDate.IsZero() {
		cfg.AnchorDate = j.now().UTC()
	}

	ds, err := generator.Generate(cfg)
	if err != nil {
		return nil, err
	}
	if err := ds.Validate(); err != nil {
		return nil, err
	}

	if err := j.replaceWithRetry(ctx, ds); err != nil {
		return nil, err
	}

	if j.invalidator != nil {
		j.invalidator.Invalidate()
	}
	return ds, nil
}

// replaceWithRetry はストアの入れ替えを最大MaxAttempts回試行する。
// APIErrorは再試行しても結果が変わらないため即座に返す。
func (j *Job) replaceWithRetry(ctx context.Context, ds *dataset.Dataset) error {
	attempts := max(j.MaxAttempts, 1)

	var err error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			delay := j.backoff(attempt - 1)
			j.logger.Warn("ストアへの書き込みを再試行します",
				slog.Int("attempt", attempt+1),
				slog.Duration("delay", delay),
				slog.String("error", err.Error()),
			)
			select {
			case <-ctx.Done():
				return fmt.Errorf("ストアへの書き込みを中断しました: %w", ctx.Err())
			case <-time.After(delay):
			}
		}

		err = j.writer.Replace(ctx, ds)
		if err == nil {
			return nil
		}

		var apiErr *model.APIError
		if errors.As(err, &apiErr) || ctx.Err() != nil {
			return err
		}
	}
	return fmt.Errorf("ストアへの書き込みが%d回失敗しました: %w", attempts, err)
}
