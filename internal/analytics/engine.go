// Package analytics はフィルタ済みのファネル指標、チャネル比較、サービス別利益率を計算する。
// 計算は入力だけに依存し、空の選択でもゼロ値を返して失敗しない。
package analytics

import (
	"cmp"
	"slices"

	"github.com/hitoshi/carefunnel/internal/dataset"
	"github.com/hitoshi/carefunnel/internal/model"
	"github.com/shopspring/decimal"
)

// ChannelRow はチャネル別のセッション→完了率。
type ChannelRow struct {
	Channel           model.Channel `json:"channel"`
	SessionToComplete float64       `json:"session_to_complete"`
}

// ServiceMarginRow はサービス別の売上と貢献利益。
// CMPctは売上が0のときnil。
type ServiceMarginRow struct {
	ServiceType        model.ServiceType `json:"service_type"`
	Revenue            decimal.Decimal   `json:"revenue"`
	ContributionMargin decimal.Decimal   `json:"contribution_margin"`
	Bookings           int               `json:"bookings"`
	CMPct              *float64          `json:"cm_pct"`
}

// Result はダッシュボード1画面分の集計結果。
type Result struct {
	SessionsN          int                `json:"sessions_n"`
	QuotesN            int                `json:"quotes_n"`
	BookingsN          int                `json:"bookings_n"`
	CompletedN         int                `json:"completed_n"`
	SessionToBooking   float64            `json:"session_to_booking"`
	SessionToComplete  float64            `json:"session_to_complete"`
	Revenue            decimal.Decimal    `json:"revenue"`
	ContributionMargin decimal.Decimal    `json:"contribution_margin"`
	CMPct              float64            `json:"cm_pct"`
	ChannelTable       []ChannelRow       `json:"channel_table"`
	ServiceMarginTable []ServiceMarginRow `json:"service_margin_table"`
	CancelRate         float64            `json:"cancel_rate"`
	BestChannel        *ChannelRow        `json:"best_channel"`
	WorstChannel       *ChannelRow        `json:"worst_channel"`
	BestMarginService  *ServiceMarginRow  `json:"best_margin_service"`
	// NoData は選択条件に該当するセッションが1件もないことを示す。
	NoData bool `json:"no_data"`
}

// Engine は指標計算エンジン。状態を持たない。
type Engine struct{}

// NewEngine はEngineを生成する。
func NewEngine() *Engine {
	return &Engine{}
}

// Compute はdsにfを適用して全指標を計算する。
func (e *Engine) Compute(ds *dataset.Dataset, f Filter) Result {
	sessionsByID := make(map[string]model.Session, len(ds.Sessions))
	selected := make(map[string]bool)
	for _, s := range ds.Sessions {
		sessionsByID[s.ID] = s
		if f.Match(s) {
			selected[s.ID] = true
		}
	}

	res := Result{
		SessionsN:          len(selected),
		Revenue:            decimal.Zero,
		ContributionMargin: decimal.Zero,
		ChannelTable:       []ChannelRow{},
		ServiceMarginTable: []ServiceMarginRow{},
	}

	for _, q := range ds.Quotes {
		if selected[q.SessionID] {
			res.QuotesN++
		}
	}

	var bookings []model.Booking
	cancelled := 0
	for _, b := range ds.Bookings {
		if !selected[b.SessionID] {
			continue
		}
		bookings = append(bookings, b)
		switch b.Status {
		case model.BookingStatusCompleted:
			res.CompletedN++
		case model.BookingStatusCancelled:
			cancelled++
		}
	}
	res.BookingsN = len(bookings)

	financeByBooking := make(map[string]model.Finance, len(ds.Finance))
	for _, fin := range ds.Finance {
		financeByBooking[fin.BookingID] = fin
	}
	for _, b := range bookings {
		if fin, ok := financeByBooking[b.ID]; ok {
			res.Revenue = res.Revenue.Add(fin.Revenue)
			res.ContributionMargin = res.ContributionMargin.Add(fin.ContributionMargin)
		}
	}

	res.SessionToBooking = ratio(res.BookingsN, res.SessionsN)
	res.SessionToComplete = ratio(res.CompletedN, res.SessionsN)
	res.CancelRate = ratio(cancelled, res.BookingsN)
	if !res.Revenue.IsZero() {
		res.CMPct = res.ContributionMargin.Div(res.Revenue).InexactFloat64()
	}

	res.ChannelTable = channelTable(ds.Bookings, sessionsByID, f)
	if n := len(res.ChannelTable); n > 0 {
		best := res.ChannelTable[0]
		res.BestChannel = &best
		res.WorstChannel = worstChannel(res.ChannelTable)
	}

	res.ServiceMarginTable = serviceMarginTable(bookings, financeByBooking)
	if n := len(res.ServiceMarginTable); n > 0 && res.ServiceMarginTable[0].CMPct != nil {
		best := res.ServiceMarginTable[0]
		res.BestMarginService = &best
	}

	res.NoData = res.SessionsN == 0
	return res
}

type channelAcc struct {
	completed int
	sessions  map[string]bool
}

// channelTable はチャネル絞り込みを無視して、予約のあるチャネルごとの完了率を返す。
// 完了率の降順、同率はチャネル名の昇順。
func channelTable(bookings []model.Booking, sessionsByID map[string]model.Session, f Filter) []ChannelRow {
	var scoped []model.Booking
	for _, b := range bookings {
		s, ok := sessionsByID[b.SessionID]
		if ok && f.matchIgnoringChannel(s) {
			scoped = append(scoped, b)
		}
	}

	groups := GroupBy(scoped,
		func(b model.Booking) model.Channel { return sessionsByID[b.SessionID].Channel },
		func(acc channelAcc, b model.Booking) channelAcc {
			if acc.sessions == nil {
				acc.sessions = make(map[string]bool)
			}
			acc.sessions[b.SessionID] = true
			if b.IsCompleted() {
				acc.completed++
			}
			return acc
		},
	)

	rows := make([]ChannelRow, 0, len(groups))
	for _, g := range groups {
		rows = append(rows, ChannelRow{
			Channel:           g.Key,
			SessionToComplete: ratio(g.Acc.completed, len(g.Acc.sessions)),
		})
	}

	slices.SortStableFunc(rows, func(a, b ChannelRow) int {
		if c := cmp.Compare(b.SessionToComplete, a.SessionToComplete); c != 0 {
			return c
		}
		return cmp.Compare(a.Channel, b.Channel)
	})
	return rows
}

// worstChannel は完了率が最小のチャネルを返す。同率はチャネル名の昇順で先のもの。
func worstChannel(rows []ChannelRow) *ChannelRow {
	worst := rows[0]
	for _, r := range rows[1:] {
		if r.SessionToComplete < worst.SessionToComplete ||
			(r.SessionToComplete == worst.SessionToComplete && r.Channel < worst.Channel) {
			worst = r
		}
	}
	return &worst
}

type serviceAcc struct {
	revenue  decimal.Decimal
	margin   decimal.Decimal
	bookings int
}

// serviceMarginTable はサービス別の売上・貢献利益・予約数・利益率を返す。
// 利益率の降順で、利益率がnilの行は末尾、同率はサービス名の昇順。
func serviceMarginTable(bookings []model.Booking, financeByBooking map[string]model.Finance) []ServiceMarginRow {
	groups := GroupBy(bookings,
		func(b model.Booking) model.ServiceType { return b.ServiceType },
		func(acc serviceAcc, b model.Booking) serviceAcc {
			acc.bookings++
			if fin, ok := financeByBooking[b.ID]; ok {
				acc.revenue = acc.revenue.Add(fin.Revenue)
				acc.margin = acc.margin.Add(fin.ContributionMargin)
			}
			return acc
		},
	)

	rows := make([]ServiceMarginRow, 0, len(groups))
	for _, g := range groups {
		row := ServiceMarginRow{
			ServiceType:        g.Key,
			Revenue:            g.Acc.revenue,
			ContributionMargin: g.Acc.margin,
			Bookings:           g.Acc.bookings,
		}
		if !g.Acc.revenue.IsZero() {
			pct := g.Acc.margin.Div(g.Acc.revenue).InexactFloat64()
			row.CMPct = &pct
		}
		rows = append(rows, row)
	}

	slices.SortStableFunc(rows, func(a, b ServiceMarginRow) int {
		switch {
		case a.CMPct == nil && b.CMPct == nil:
			return cmp.Compare(a.ServiceType, b.ServiceType)
		case a.CMPct == nil:
			return 1
		case b.CMPct == nil:
			return -1
		}
		if c := cmp.Compare(*b.CMPct, *a.CMPct); c != 0 {
			return c
		}
		return cmp.Compare(a.ServiceType, b.ServiceType)
	})
	return rows
}
