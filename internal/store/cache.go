package store

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/hitoshi/carefunnel/internal/dataset"
	"github.com/hitoshi/carefunnel/internal/model"
)

// CacheObserver はキャッシュのヒット・ミスを記録するインターフェース。
type CacheObserver interface {
	RecordCacheRequest(table string, hit bool)
}

// Cache はテーブル名をキーにした読み込みキャッシュ。
// 初回アクセス時にSourceから読み込み、以降は同じ行を返す。
// 無効化のきっかけはストアの再構築（生成実行IDの変化）だけである。
type Cache struct {
	src      Source
	logger   *slog.Logger
	observer CacheObserver

	mu     sync.Mutex
	run    *dataset.Run
	tables map[string]any
	// generation は無効化のたびに進む。読み込み中に無効化された結果を保存しないために使う。
	generation uint64
}

// NewCache はCacheを生成する。observerはnilでもよい。
func NewCache(src Source, logger *slog.Logger, observer CacheObserver) *Cache {
	return &Cache{
		src:      src,
		logger:   logger,
		observer: observer,
		tables:   make(map[string]any),
	}
}

// maxSnapshotAttempts は読み込み中に再構築が重なった場合にSnapshotを読み直す上限回数。
const maxSnapshotAttempts = 3

// Refresh はストアの最新の生成実行を確認し、前回と異なればキャッシュ全体を無効化する。
// データセットが未生成の場合はNoDatasetエラーを返す。
func (c *Cache) Refresh(ctx context.Context) error {
	run, err := c.src.CurrentRun(ctx)
	if err != nil {
		return fmt.Errorf("生成実行の取得に失敗しました: %w", err)
	}
	if run == nil {
		return model.NewNoDatasetError()
	}
	c.adopt(run)
	return nil
}

// adopt はrunをキャッシュ中の生成実行とし、異なる実行なら読み込み済みのテーブルを破棄する。
func (c *Cache) adopt(run *dataset.Run) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.run != nil && c.run.ID == run.ID {
		return
	}
	if c.run != nil {
		c.logger.Info("データセットの再構築を検知したためキャッシュを破棄しました",
			slog.String("previous_run_id", c.run.ID),
			slog.String("run_id", run.ID),
		)
	}
	c.resetLocked()
	c.run = run
}

func sameRun(a, b *dataset.Run) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.ID == b.ID
}

func runID(run *dataset.Run) string {
	if run == nil {
		return ""
	}
	return run.ID
}

// Invalidate はキャッシュ全体を破棄する。
// 同じプロセス内でregenerate.Jobがストアを入れ替えた直後に呼ばれる。
// 別プロセスでの再構築はRefreshとSnapshotが生成実行IDの変化から検知する。
func (c *Cache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.resetLocked()
	c.run = nil
}

func (c *Cache) resetLocked() {
	c.tables = make(map[string]any)
	c.generation++
}

// Run は現在キャッシュしている生成実行を返す。Refresh前はnil。
func (c *Cache) Run() *dataset.Run {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.run
}

// load はnameのテーブルをキャッシュから返し、なければreadで読み込んで保存する。
func load[T any](ctx context.Context, c *Cache, name string, read func(context.Context) ([]T, error)) ([]T, error) {
	c.mu.Lock()
	if v, ok := c.tables[name]; ok {
		c.mu.Unlock()
		c.observe(name, true)
		return v.([]T), nil
	}
	gen := c.generation
	c.mu.Unlock()
	c.observe(name, false)

	rows, err := read(ctx)
	if err != nil {
		return nil, fmt.Errorf("テーブル %s の読み込みに失敗しました: %w", name, err)
	}

	c.mu.Lock()
	if c.generation == gen {
		c.tables[name] = rows
	}
	c.mu.Unlock()

	return rows, nil
}

func (c *Cache) observe(table string, hit bool) {
	if c.observer != nil {
		c.observer.RecordCacheRequest(table, hit)
	}
}

func (c *Cache) Users(ctx context.Context) ([]model.User, error) {
	return load(ctx, c, dataset.TableUsers, c.src.ReadUsers)
}

func (c *Cache) Sessions(ctx context.Context) ([]model.Session, error) {
	return load(ctx, c, dataset.TableSessions, c.src.ReadSessions)
}

func (c *Cache) Quotes(ctx context.Context) ([]model.Quote, error) {
	return load(ctx, c, dataset.TableQuotes, c.src.ReadQuotes)
}

func (c *Cache) Bookings(ctx context.Context) ([]model.Booking, error) {
	return load(ctx, c, dataset.TableBookings, c.src.ReadBookings)
}

func (c *Cache) Fulfillment(ctx context.Context) ([]model.Fulfillment, error) {
	return load(ctx, c, dataset.TableFulfillment, c.src.ReadFulfillment)
}

func (c *Cache) Finance(ctx context.Context) ([]model.Finance, error) {
	return load(ctx, c, dataset.TableFinance, c.src.ReadFinance)
}

// Snapshot は6テーブルすべてを同じ生成実行のデータセットとして返す。
// 読み込みの前後でストアの生成実行が変わった場合は、新しい実行に切り替えて読み直す。
func (c *Cache) Snapshot(ctx context.Context) (*dataset.Dataset, error) {
	for attempt := 1; attempt <= maxSnapshotAttempts; attempt++ {
		start, err := c.src.CurrentRun(ctx)
		if err != nil {
			return nil, fmt.Errorf("生成実行の取得に失敗しました: %w", err)
		}
		if start != nil {
			c.adopt(start)
		}

		ds, err := c.readAll(ctx)
		if err != nil {
			return nil, err
		}

		end, err := c.src.CurrentRun(ctx)
		if err != nil {
			return nil, fmt.Errorf("生成実行の取得に失敗しました: %w", err)
		}
		if sameRun(start, end) {
			if start != nil {
				ds.Run = *start
			}
			return ds, nil
		}

		c.logger.Warn("読み込み中にデータセットが再構築されたため読み直します",
			slog.String("run_id", runID(start)),
			slog.String("current_run_id", runID(end)),
			slog.Int("attempt", attempt),
		)
	}
	return nil, fmt.Errorf("データセットの再構築が続いたため %d 回読み直しても一貫したスナップショットを取得できませんでした", maxSnapshotAttempts)
}

func (c *Cache) readAll(ctx context.Context) (*dataset.Dataset, error) {
	ds := &dataset.Dataset{}

	var err error
	if ds.Users, err = c.Users(ctx); err != nil {
		return nil, err
	}
	if ds.Sessions, err = c.Sessions(ctx); err != nil {
		return nil, err
	}
	if ds.Quotes, err = c.Quotes(ctx); err != nil {
		return nil, err
	}
	if ds.Bookings, err = c.Bookings(ctx); err != nil {
		return nil, err
	}
	if ds.Fulfillment, err = c.Fulfillment(ctx); err != nil {
		return nil, err
	}
	if ds.Finance, err = c.Finance(ctx); err != nil {
		return nil, err
	}
	return ds, nil
}

// Table は指定テーブルのビューを返す。必要なテーブルだけを読み込む。
func (c *Cache) Table(ctx context.Context, name string) (*dataset.Table, error) {
	name = dataset.NormalizeColumn(name)
	ds := &dataset.Dataset{}

	var err error
	switch name {
	case dataset.TableUsers:
		ds.Users, err = c.Users(ctx)
	case dataset.TableSessions:
		ds.Sessions, err = c.Sessions(ctx)
	case dataset.TableQuotes:
		ds.Quotes, err = c.Quotes(ctx)
	case dataset.TableBookings:
		ds.Bookings, err = c.Bookings(ctx)
	case dataset.TableFulfillment:
		ds.Fulfillment, err = c.Fulfillment(ctx)
	case dataset.TableFinance:
		ds.Finance, err = c.Finance(ctx)
	default:
		return nil, model.NewUnknownTableError(name)
	}
	if err != nil {
		return nil, err
	}
	return ds.Table(name)
}
