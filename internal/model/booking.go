package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Booking はセッションから発生した予約を表す。
// すべてのセッションが予約になるわけではない。
type Booking struct {
	ID                 string
	SessionID          string
	UserID             string
	ServiceType        ServiceType
	VisitMode          VisitMode
	BookingDate        time.Time
	PricePaid          decimal.Decimal
	UsedInsurancePrice bool
	WaitTimeDays       int
	Status             BookingStatus
}

// IsCompleted は予約が完了済みかを返す。
func (b Booking) IsCompleted() bool {
	return b.Status == BookingStatusCompleted
}

// Fulfillment は完了した予約の実施記録。
// Status が completed の予約にのみ1件存在する。
type Fulfillment struct {
	ID                string
	BookingID         string
	CompletedDate     time.Time
	SatisfactionScore int // 0〜10
}

// Finance は予約ごとの売上・原価・貢献利益。
type Finance struct {
	BookingID          string
	Revenue            decimal.Decimal
	COGS               decimal.Decimal
	ContributionMargin decimal.Decimal
}
