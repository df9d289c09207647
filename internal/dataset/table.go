package dataset

import (
	"strings"

	"github.com/hitoshi/carefunnel/internal/model"
)

// テーブル名
const (
	TableUsers       = "users"
	TableSessions    = "sessions"
	TableQuotes      = "quotes"
	TableBookings    = "bookings"
	TableFulfillment = "fulfillment"
	TableFinance     = "finance"
)

// DateLayout はテーブルビューとCSVでの日付表現。
const DateLayout = "2006-01-02"

// TableNames は全テーブル名を生成順で返す。
var TableNames = []string{
	TableUsers,
	TableSessions,
	TableQuotes,
	TableBookings,
	TableFulfillment,
	TableFinance,
}

// Columns はテーブルごとの列名（小文字）。
var Columns = map[string][]string{
	TableUsers:       {"user_id", "signup_date", "state", "age", "channel_first_touch"},
	TableSessions:    {"session_id", "user_id", "session_date", "service_type", "device", "channel"},
	TableQuotes:      {"quote_id", "session_id", "cash_price", "insurance_price", "has_insurance", "showed_insurance_price"},
	TableBookings:    {"booking_id", "session_id", "user_id", "service_type", "visit_mode", "booking_date", "price_paid", "used_insurance_price", "wait_time_days", "status"},
	TableFulfillment: {"fulfillment_id", "booking_id", "completed_date", "nps"},
	TableFinance:     {"booking_id", "revenue", "cogs", "contribution_margin"},
}

// Table は名前付き列と順序付き行からなるテーブルビュー。
// 値は string / int / bool / decimal.Decimal / nil のいずれか。
type Table struct {
	Name    string
	Columns []string
	Rows    [][]any
}

// NormalizeColumn は列名の前後空白を除去し小文字化する。
func NormalizeColumn(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// IsTableName は定義済みのテーブル名かを返す。
func IsTableName(name string) bool {
	_, ok := Columns[name]
	return ok
}

// Table は指定テーブルのビューを返す。未知の名前の場合はUnknownTableエラー。
func (d *Dataset) Table(name string) (*Table, error) {
	name = NormalizeColumn(name)
	if !IsTableName(name) {
		return nil, model.NewUnknownTableError(name)
	}

	t := &Table{Name: name, Columns: Columns[name]}

	switch name {
	case TableUsers:
		for _, u := range d.Users {
			t.Rows = append(t.Rows, []any{u.ID, u.SignupDate.Format(DateLayout), u.State, u.Age, string(u.ChannelFirstTouch)})
		}
	case TableSessions:
		for _, s := range d.Sessions {
			t.Rows = append(t.Rows, []any{s.ID, s.UserID, s.SessionDate.Format(DateLayout), string(s.ServiceType), string(s.Device), string(s.Channel)})
		}
	case TableQuotes:
		for _, q := range d.Quotes {
			var insurance any
			if q.InsurancePrice != nil {
				insurance = *q.InsurancePrice
			}
			t.Rows = append(t.Rows, []any{q.ID, q.SessionID, q.CashPrice, insurance, q.HasInsurance, q.ShowedInsurancePrice})
		}
	case TableBookings:
		for _, b := range d.Bookings {
			t.Rows = append(t.Rows, []any{
				b.ID, b.SessionID, b.UserID, string(b.ServiceType), string(b.VisitMode),
				b.BookingDate.Format(DateLayout), b.PricePaid, b.UsedInsurancePrice, b.WaitTimeDays, string(b.Status),
			})
		}
	case TableFulfillment:
		for _, f := range d.Fulfillment {
			t.Rows = append(t.Rows, []any{f.ID, f.BookingID, f.CompletedDate.Format(DateLayout), f.SatisfactionScore})
		}
	case TableFinance:
		for _, f := range d.Finance {
			t.Rows = append(t.Rows, []any{f.BookingID, f.Revenue, f.COGS, f.ContributionMargin})
		}
	}

	return t, nil
}

// Records は行を列名→値のマップに変換する。JSON出力用。
func (t *Table) Records() []map[string]any {
	out := make([]map[string]any, len(t.Rows))
	for i, row := range t.Rows {
		rec := make(map[string]any, len(t.Columns))
		for j, col := range t.Columns {
			rec[col] = row[j]
		}
		out[i] = rec
	}
	return out
}
