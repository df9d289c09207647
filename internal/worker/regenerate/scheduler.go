package regenerate

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// Runner はスケジューラから実行されるジョブ。
type Runner interface {
	Run(ctx context.Context) error
}

// Scheduler はcron式に従って再構築ジョブを実行する。
// 前回の実行が終わっていない場合、その回はスキップする。
type Scheduler struct {
	runner Runner
	spec   string
	logger *slog.Logger
}

// NewScheduler はSchedulerを生成する。specは標準のcron式または@daily等の記述子。
func NewScheduler(runner Runner, spec string, logger *slog.Logger) *Scheduler {
	return &Scheduler{runner: runner, spec: spec, logger: logger}
}

// ValidateSchedule はcron式を検証する。
func ValidateSchedule(spec string) error {
	if _, err := cron.ParseStandard(spec); err != nil {
		return fmt.Errorf("スケジュール %q の解析に失敗しました: %w", spec, err)
	}
	return nil
}

// Start は起動直後に1回ジョブを実行し、以降はcron式に従って実行する。
// コンテキストがキャンセルされるまでブロックし、実行中のジョブの終了を待ってから戻る。
func (s *Scheduler) Start(ctx context.Context) error {
	if err := ValidateSchedule(s.spec); err != nil {
		return err
	}

	cl := cronLogger{logger: s.logger}
	c := cron.New(
		cron.WithLocation(time.UTC),
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
	)
	if _, err := c.AddFunc(s.spec, func() { s.runOnce(ctx) }); err != nil {
		return fmt.Errorf("ジョブの登録に失敗しました: %w", err)
	}

	s.logger.Info("再構築スケジューラを開始しました", slog.String("schedule", s.spec))

	// 起動直後に1回実行
	s.runOnce(ctx)

	c.Start()
	<-ctx.Done()
	<-c.Stop().Done()

	s.logger.Info("再構築スケジューラを停止しました")
	return nil
}

func (s *Scheduler) runOnce(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	if err := s.runner.Run(ctx); err != nil {
		s.logger.Error("再構築ジョブの実行に失敗しました", slog.String("error", err.Error()))
	}
}

// cronLogger はcron.Loggerをslogに委譲する。
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	args := append([]any{slog.String("error", err.Error())}, keysAndValues...)
	l.logger.Error("cron: "+msg, args...)
}
