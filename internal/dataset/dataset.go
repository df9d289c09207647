// Package dataset は1回の生成で作られる6テーブル分のデータセットを表す。
// 参照整合性の検証と、テーブル名で引ける列指向ビューを提供する。
package dataset

import (
	"fmt"
	"time"

	"github.com/hitoshi/carefunnel/internal/model"
	"github.com/shopspring/decimal"
)

// maxReportedViolations はエラーメッセージに含める違反件数の上限。
const maxReportedViolations = 5

// Run は生成実行のメタデータ。
type Run struct {
	ID                 string
	Seed               uint64
	UserCount          int
	MaxSessionsPerUser int
	WindowDays         int
	AnchorDate         time.Time
	GeneratedAt        time.Time
}

// Dataset は生成された全テーブルを保持する。生成後は読み取り専用として扱う。
type Dataset struct {
	Run         Run
	Users       []model.User
	Sessions    []model.Session
	Quotes      []model.Quote
	Bookings    []model.Booking
	Fulfillment []model.Fulfillment
	Finance     []model.Finance
}

// Counts はテーブル名ごとの行数を返す。
func (d *Dataset) Counts() map[string]int {
	return map[string]int{
		TableUsers:       len(d.Users),
		TableSessions:    len(d.Sessions),
		TableQuotes:      len(d.Quotes),
		TableBookings:    len(d.Bookings),
		TableFulfillment: len(d.Fulfillment),
		TableFinance:     len(d.Finance),
	}
}

// IsEmpty はセッションが1件もないかを返す。
func (d *Dataset) IsEmpty() bool {
	return len(d.Sessions) == 0
}

// Validate は参照整合性を検証する。
// 生成器が唯一の書き手なので違反は起こらない前提だが、
// ストアから読み込んだデータは黙って捨てずに DataIntegrityError として報告する。
func (d *Dataset) Validate() error {
	var violations []string
	report := func(format string, args ...any) {
		violations = append(violations, fmt.Sprintf(format, args...))
	}

	users := make(map[string]bool, len(d.Users))
	for _, u := range d.Users {
		if users[u.ID] {
			report("ユーザーIDが重複しています: %s", u.ID)
		}
		users[u.ID] = true
	}

	sessions := make(map[string]bool, len(d.Sessions))
	for _, s := range d.Sessions {
		if sessions[s.ID] {
			report("セッションIDが重複しています: %s", s.ID)
		}
		sessions[s.ID] = true
		if !users[s.UserID] {
			report("セッション %s のユーザー %s が存在しません", s.ID, s.UserID)
		}
	}

	quotes := make(map[string]bool, len(d.Quotes))
	for _, q := range d.Quotes {
		if !sessions[q.SessionID] {
			report("見積もり %s のセッション %s が存在しません", q.ID, q.SessionID)
		}
		if quotes[q.SessionID] {
			report("セッション %s に見積もりが複数あります", q.SessionID)
		}
		quotes[q.SessionID] = true
		if q.ShowedInsurancePrice != (q.InsurancePrice != nil) {
			report("見積もり %s の保険価格と提示フラグが一致しません", q.ID)
		}
	}

	bookings := make(map[string]model.Booking, len(d.Bookings))
	booked := make(map[string]bool, len(d.Bookings))
	for _, b := range d.Bookings {
		if !sessions[b.SessionID] {
			report("予約 %s のセッション %s が存在しません", b.ID, b.SessionID)
		}
		if !quotes[b.SessionID] {
			report("予約 %s に対応する見積もりがありません", b.ID)
		}
		if booked[b.SessionID] {
			report("セッション %s に予約が複数あります", b.SessionID)
		}
		if b.WaitTimeDays < 0 {
			report("予約 %s の待ち日数が負です", b.ID)
		}
		booked[b.SessionID] = true
		bookings[b.ID] = b
	}

	fulfilled := make(map[string]bool, len(d.Fulfillment))
	for _, f := range d.Fulfillment {
		if fulfilled[f.BookingID] {
			report("予約 %s に実施記録が複数あります", f.BookingID)
		}
		b, ok := bookings[f.BookingID]
		switch {
		case !ok:
			report("実施記録 %s の予約 %s が存在しません", f.ID, f.BookingID)
		case !b.IsCompleted():
			report("実施記録 %s の予約 %s は完了していません", f.ID, f.BookingID)
		case f.CompletedDate.Before(b.BookingDate):
			report("実施記録 %s の完了日が予約日より前です", f.ID)
		}
		fulfilled[f.BookingID] = true
	}
	for _, b := range d.Bookings {
		if b.IsCompleted() && !fulfilled[b.ID] {
			report("完了済み予約 %s に実施記録がありません", b.ID)
		}
	}

	financed := make(map[string]bool, len(d.Finance))
	for _, f := range d.Finance {
		if financed[f.BookingID] {
			report("予約 %s に財務行が複数あります", f.BookingID)
		}
		financed[f.BookingID] = true

		b, ok := bookings[f.BookingID]
		if !ok {
			report("財務行の予約 %s が存在しません", f.BookingID)
		} else {
			revenue := decimal.Zero
			if b.IsCompleted() {
				revenue = b.PricePaid.Round(2)
			}
			if !f.Revenue.Equal(revenue) {
				report("財務行 %s の売上 %s が予約の支払額 %s と一致しません", f.BookingID, f.Revenue, revenue)
			}
			if cogs := f.Revenue.Mul(b.ServiceType.COGSRate()).Round(2); !f.COGS.Equal(cogs) {
				report("財務行 %s の原価 %s が売上×原価率 %s と一致しません", f.BookingID, f.COGS, cogs)
			}
		}
		if !f.ContributionMargin.Equal(f.Revenue.Sub(f.COGS)) {
			report("財務行 %s の貢献利益が売上−原価と一致しません", f.BookingID)
		}
	}
	for _, b := range d.Bookings {
		if !financed[b.ID] {
			report("予約 %s に財務行がありません", b.ID)
		}
	}

	if len(violations) == 0 {
		return nil
	}
	if len(violations) > maxReportedViolations {
		more := len(violations) - maxReportedViolations
		violations = append(violations[:maxReportedViolations], fmt.Sprintf("ほか%d件", more))
	}
	return model.NewDataIntegrityError(violations...)
}
