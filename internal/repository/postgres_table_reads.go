package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/carefunnel/internal/model"
	"github.com/shopspring/decimal"
)

// queryRows はクエリを実行し、各行をscanで変換して返す。
func queryRows[T any](ctx context.Context, db *sql.DB, table, query string, scan func(*sql.Rows) (T, error)) ([]T, error) {
	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%s の取得に失敗しました: %w", table, err)
	}
	defer rows.Close()

	var out []T
	for rows.Next() {
		v, err := scan(rows)
		if err != nil {
			return nil, fmt.Errorf("%s 行の読み取りに失敗しました: %w", table, err)
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s の走査に失敗しました: %w", table, err)
	}

	return out, nil
}

// ReadUsers はユーザーをID順に返す。
func (r *PostgresDatasetRepo) ReadUsers(ctx context.Context) ([]model.User, error) {
	return queryRows(ctx, r.db, "users",
		`SELECT user_id, signup_date, state, age, channel_first_touch FROM users ORDER BY user_id`,
		func(rows *sql.Rows) (model.User, error) {
			var u model.User
			err := rows.Scan(&u.ID, &u.SignupDate, &u.State, &u.Age, &u.ChannelFirstTouch)
			u.SignupDate = dateOnly(u.SignupDate)
			return u, err
		},
	)
}

// ReadSessions はセッションをID順に返す。
func (r *PostgresDatasetRepo) ReadSessions(ctx context.Context) ([]model.Session, error) {
	return queryRows(ctx, r.db, "sessions",
		`SELECT session_id, user_id, session_date, service_type, device, channel FROM sessions ORDER BY session_id`,
		func(rows *sql.Rows) (model.Session, error) {
			var s model.Session
			err := rows.Scan(&s.ID, &s.UserID, &s.SessionDate, &s.ServiceType, &s.Device, &s.Channel)
			s.SessionDate = dateOnly(s.SessionDate)
			return s, err
		},
	)
}

// ReadQuotes は見積もりをID順に返す。保険価格が未提示の行はInsurancePriceがnilになる。
func (r *PostgresDatasetRepo) ReadQuotes(ctx context.Context) ([]model.Quote, error) {
	return queryRows(ctx, r.db, "quotes",
		`SELECT quote_id, session_id, cash_price, insurance_price, has_insurance, showed_insurance_price
		 FROM quotes ORDER BY quote_id`,
		func(rows *sql.Rows) (model.Quote, error) {
			var q model.Quote
			var insurance decimal.NullDecimal
			if err := rows.Scan(&q.ID, &q.SessionID, &q.CashPrice, &insurance, &q.HasInsurance, &q.ShowedInsurancePrice); err != nil {
				return q, err
			}
			if insurance.Valid {
				q.InsurancePrice = &insurance.Decimal
			}
			return q, nil
		},
	)
}

// ReadBookings は予約をID順に返す。
func (r *PostgresDatasetRepo) ReadBookings(ctx context.Context) ([]model.Booking, error) {
	return queryRows(ctx, r.db, "bookings",
		`SELECT booking_id, session_id, user_id, service_type, visit_mode, booking_date,
		        price_paid, used_insurance_price, wait_time_days, status
		 FROM bookings ORDER BY booking_id`,
		func(rows *sql.Rows) (model.Booking, error) {
			var b model.Booking
			err := rows.Scan(
				&b.ID, &b.SessionID, &b.UserID, &b.ServiceType, &b.VisitMode, &b.BookingDate,
				&b.PricePaid, &b.UsedInsurancePrice, &b.WaitTimeDays, &b.Status,
			)
			b.BookingDate = dateOnly(b.BookingDate)
			return b, err
		},
	)
}

// ReadFulfillment は実施記録をID順に返す。
func (r *PostgresDatasetRepo) ReadFulfillment(ctx context.Context) ([]model.Fulfillment, error) {
	return queryRows(ctx, r.db, "fulfillment",
		`SELECT fulfillment_id, booking_id, completed_date, nps FROM fulfillment ORDER BY fulfillment_id`,
		func(rows *sql.Rows) (model.Fulfillment, error) {
			var f model.Fulfillment
			err := rows.Scan(&f.ID, &f.BookingID, &f.CompletedDate, &f.SatisfactionScore)
			f.CompletedDate = dateOnly(f.CompletedDate)
			return f, err
		},
	)
}

// ReadFinance は財務行を予約ID順に返す。
func (r *PostgresDatasetRepo) ReadFinance(ctx context.Context) ([]model.Finance, error) {
	return queryRows(ctx, r.db, "finance",
		`SELECT booking_id, revenue, cogs, contribution_margin FROM finance ORDER BY booking_id`,
		func(rows *sql.Rows) (model.Finance, error) {
			var f model.Finance
			err := rows.Scan(&f.BookingID, &f.Revenue, &f.COGS, &f.ContributionMargin)
			return f, err
		},
	)
}
