// Package finance は予約ごとの売上・原価・貢献利益を導出する。
// 乱数は使わず、予約から決定的に計算する。
package finance

import (
	"github.com/hitoshi/carefunnel/internal/model"
	"github.com/shopspring/decimal"
)

// COGSRate はサービス種別の売上原価率を返す。未知の種別は0。
func COGSRate(service model.ServiceType) decimal.Decimal {
	return service.COGSRate()
}

// Derive は1件の予約から財務行を計算する。
// 売上は完了時のみ支払価格、キャンセル時は0。
// 原価は売上×原価率を小数第2位に丸めた値、貢献利益は売上−原価。
func Derive(b model.Booking) model.Finance {
	revenue := decimal.Zero
	if b.IsCompleted() {
		revenue = b.PricePaid.Round(2)
	}
	cogs := revenue.Mul(COGSRate(b.ServiceType)).Round(2)

	return model.Finance{
		BookingID:          b.ID,
		Revenue:            revenue,
		COGS:               cogs,
		ContributionMargin: revenue.Sub(cogs),
	}
}

// DeriveAll は予約の並び順どおりに財務行を返す。
func DeriveAll(bookings []model.Booking) []model.Finance {
	rows := make([]model.Finance, len(bookings))
	for i, b := range bookings {
		rows[i] = Derive(b)
	}
	return rows
}
