// Package store はテーブルストアの読み取りインターフェースと、
// テーブル名をキーにした読み込みキャッシュを提供する。
package store

import (
	"context"

	"github.com/hitoshi/carefunnel/internal/dataset"
	"github.com/hitoshi/carefunnel/internal/model"
)

// Source はテーブルストアの読み取りインターフェース。
// 各メソッドはID順に並んだ行を返す。
type Source interface {
	ReadUsers(ctx context.Context) ([]model.User, error)
	ReadSessions(ctx context.Context) ([]model.Session, error)
	ReadQuotes(ctx context.Context) ([]model.Quote, error)
	ReadBookings(ctx context.Context) ([]model.Booking, error)
	ReadFulfillment(ctx context.Context) ([]model.Fulfillment, error)
	ReadFinance(ctx context.Context) ([]model.Finance, error)

	// CurrentRun は最新の生成実行を返す。まだ生成されていない場合はnilを返す。
	CurrentRun(ctx context.Context) (*dataset.Run, error)
}

// MemorySource はメモリ上のデータセットをSourceとして公開する。
// CSVから読み込んだデータセットやテストで使う。
type MemorySource struct {
	ds *dataset.Dataset
}

// NewMemorySource はMemorySourceを生成する。
func NewMemorySource(ds *dataset.Dataset) *MemorySource {
	return &MemorySource{ds: ds}
}

func (m *MemorySource) ReadUsers(ctx context.Context) ([]model.User, error) {
	return m.ds.Users, nil
}

func (m *MemorySource) ReadSessions(ctx context.Context) ([]model.Session, error) {
	return m.ds.Sessions, nil
}

func (m *MemorySource) ReadQuotes(ctx context.Context) ([]model.Quote, error) {
	return m.ds.Quotes, nil
}

func (m *MemorySource) ReadBookings(ctx context.Context) ([]model.Booking, error) {
	return m.ds.Bookings, nil
}

func (m *MemorySource) ReadFulfillment(ctx context.Context) ([]model.Fulfillment, error) {
	return m.ds.Fulfillment, nil
}

func (m *MemorySource) ReadFinance(ctx context.Context) ([]model.Finance, error) {
	return m.ds.Finance, nil
}

// CurrentRun はデータセットの実行情報を返す。RunIDが空の場合はnil。
func (m *MemorySource) CurrentRun(ctx context.Context) (*dataset.Run, error) {
	if m.ds.Run.ID == "" {
		return nil, nil
	}
	run := m.ds.Run
	return &run, nil
}
