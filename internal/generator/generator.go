// Package generator は合成データセット全体を生成する。
// ユーザー・セッションの生成、ファネルシミュレーション、財務導出を1回のパスで行う。
package generator

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hitoshi/carefunnel/internal/dataset"
	"github.com/hitoshi/carefunnel/internal/finance"
	"github.com/hitoshi/carefunnel/internal/funnel"
	"github.com/hitoshi/carefunnel/internal/model"
	"github.com/hitoshi/carefunnel/internal/sampling"
)

// 乱数ストリーム番号。ユーザーとセッションは1本の系列を共有し、
// ファネルはセッションごとに独立した系列を使う。
const (
	streamEntities uint64 = 1
	streamFunnel   uint64 = 2
)

// Generate は設定を検証したうえでデータセットを生成する。
// 設定が不正な場合は乱数を一切消費せずにConfigurationErrorを返す。
func Generate(cfg Config) (*dataset.Dataset, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	r := sampling.NewStream(cfg.Seed, streamEntities, 0)
	users := GenerateUsers(r, cfg)
	sessions := GenerateSessions(r, cfg, users)

	ds := &dataset.Dataset{
		Run: dataset.Run{
			ID:                 uuid.NewString(),
			Seed:               cfg.Seed,
			UserCount:          cfg.UserCount,
			MaxSessionsPerUser: cfg.MaxSessionsPerUser,
			WindowDays:         cfg.WindowDays,
			AnchorDate:         cfg.anchor(),
			GeneratedAt:        time.Now().UTC(),
		},
		Users:    users,
		Sessions: sessions,
		Quotes:   make([]model.Quote, 0, len(sessions)),
	}

	for i, s := range sessions {
		out := funnel.Simulate(s, sampling.NewStream(cfg.Seed, streamFunnel, uint64(i)))
		ds.Quotes = append(ds.Quotes, out.Quote)
		if out.Booking == nil {
			continue
		}

		b := *out.Booking
		b.ID = fmt.Sprintf("b%07d", len(ds.Bookings))
		ds.Bookings = append(ds.Bookings, b)

		if out.Fulfillment != nil {
			f := *out.Fulfillment
			f.ID = fmt.Sprintf("f%07d", len(ds.Fulfillment))
			f.BookingID = b.ID
			ds.Fulfillment = append(ds.Fulfillment, f)
		}
	}

	ds.Finance = finance.DeriveAll(ds.Bookings)

	return ds, nil
}
