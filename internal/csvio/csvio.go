// Package csvio は6テーブルをCSVディレクトリとして書き出し、読み戻す。
package csvio

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/hitoshi/carefunnel/internal/dataset"
	"github.com/hitoshi/carefunnel/internal/model"
	"github.com/shopspring/decimal"
)

// runFile は生成実行のメタデータを保存するファイル名。
const runFile = "dataset_runs.csv"

var runColumns = []string{"run_id", "seed", "user_count", "max_sessions_per_user", "window_days", "anchor_date", "generated_at"}

// FileName はテーブルのCSVファイル名を返す。
func FileName(table string) string {
	return table + ".csv"
}

// WriteDir はdsの6テーブルと生成実行をdir配下にCSVで書き出す。
// 日付は YYYY-MM-DD、金額は小数2桁、未提示の保険価格は空セル。
func WriteDir(dir string, ds *dataset.Dataset) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("出力ディレクトリの作成に失敗しました: %w", err)
	}

	for _, name := range dataset.TableNames {
		tbl, err := ds.Table(name)
		if err != nil {
			return err
		}
		rows := make([][]string, len(tbl.Rows))
		for i, row := range tbl.Rows {
			rows[i] = make([]string, len(row))
			for j, v := range row {
				rows[i][j] = formatCell(v)
			}
		}
		if err := writeFile(filepath.Join(dir, FileName(name)), tbl.Columns, rows); err != nil {
			return err
		}
	}

	run := ds.Run
	runRow := []string{
		run.ID,
		strconv.FormatUint(run.Seed, 10),
		strconv.Itoa(run.UserCount),
		strconv.Itoa(run.MaxSessionsPerUser),
		strconv.Itoa(run.WindowDays),
		run.AnchorDate.Format(dataset.DateLayout),
		run.GeneratedAt.Format(time.RFC3339),
	}
	return writeFile(filepath.Join(dir, runFile), runColumns, [][]string{runRow})
}

func writeFile(path string, header []string, rows [][]string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("%s の作成に失敗しました: %w", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(header); err != nil {
		return fmt.Errorf("%s のヘッダー書き込みに失敗しました: %w", path, err)
	}
	if err := w.WriteAll(rows); err != nil {
		return fmt.Errorf("%s の書き込みに失敗しました: %w", path, err)
	}

	return f.Close()
}

func formatCell(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case int:
		return strconv.Itoa(x)
	case bool:
		return strconv.FormatBool(x)
	case decimal.Decimal:
		return x.StringFixed(2)
	default:
		return fmt.Sprint(x)
	}
}

// ReadDir はWriteDirが書き出したディレクトリを読み込み、整合性を検証して返す。
// ヘッダーは前後空白を除去して小文字化してから照合する。
// dataset_runs.csv がない場合、Runはゼロ値のまま返す。
func ReadDir(dir string) (*dataset.Dataset, error) {
	ds := &dataset.Dataset{}

	readers := []struct {
		table string
		read  func(r *record)
	}{
		{dataset.TableUsers, func(r *record) {
			ds.Users = append(ds.Users, model.User{
				ID:                r.str("user_id"),
				SignupDate:        r.date("signup_date"),
				State:             r.str("state"),
				Age:               r.integer("age"),
				ChannelFirstTouch: model.Channel(r.str("channel_first_touch")),
			})
		}},
		{dataset.TableSessions, func(r *record) {
			ds.Sessions = append(ds.Sessions, model.Session{
				ID:          r.str("session_id"),
				UserID:      r.str("user_id"),
				SessionDate: r.date("session_date"),
				ServiceType: model.ServiceType(r.str("service_type")),
				Device:      model.Device(r.str("device")),
				Channel:     model.Channel(r.str("channel")),
			})
		}},
		{dataset.TableQuotes, func(r *record) {
			ds.Quotes = append(ds.Quotes, model.Quote{
				ID:                   r.str("quote_id"),
				SessionID:            r.str("session_id"),
				CashPrice:            r.dec("cash_price"),
				InsurancePrice:       r.optDec("insurance_price"),
				HasInsurance:         r.boolean("has_insurance"),
				ShowedInsurancePrice: r.boolean("showed_insurance_price"),
			})
		}},
		{dataset.TableBookings, func(r *record) {
			ds.Bookings = append(ds.Bookings, model.Booking{
				ID:                 r.str("booking_id"),
				SessionID:          r.str("session_id"),
				UserID:             r.str("user_id"),
				ServiceType:        model.ServiceType(r.str("service_type")),
				VisitMode:          model.VisitMode(r.str("visit_mode")),
				BookingDate:        r.date("booking_date"),
				PricePaid:          r.dec("price_paid"),
				UsedInsurancePrice: r.boolean("used_insurance_price"),
				WaitTimeDays:       r.integer("wait_time_days"),
				Status:             model.BookingStatus(r.str("status")),
			})
		}},
		{dataset.TableFulfillment, func(r *record) {
			ds.Fulfillment = append(ds.Fulfillment, model.Fulfillment{
				ID:                r.str("fulfillment_id"),
				BookingID:         r.str("booking_id"),
				CompletedDate:     r.date("completed_date"),
				SatisfactionScore: r.integer("nps"),
			})
		}},
		{dataset.TableFinance, func(r *record) {
			ds.Finance = append(ds.Finance, model.Finance{
				BookingID:          r.str("booking_id"),
				Revenue:            r.dec("revenue"),
				COGS:               r.dec("cogs"),
				ContributionMargin: r.dec("contribution_margin"),
			})
		}},
	}

	for _, rd := range readers {
		if err := readFile(filepath.Join(dir, FileName(rd.table)), dataset.Columns[rd.table], rd.read); err != nil {
			return nil, err
		}
	}

	err := readFile(filepath.Join(dir, runFile), runColumns, func(r *record) {
		ds.Run = dataset.Run{
			ID:                 r.str("run_id"),
			Seed:               r.uinteger("seed"),
			UserCount:          r.integer("user_count"),
			MaxSessionsPerUser: r.integer("max_sessions_per_user"),
			WindowDays:         r.integer("window_days"),
			AnchorDate:         r.date("anchor_date"),
			GeneratedAt:        r.timestamp("generated_at"),
		}
	})
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}

	if err := ds.Validate(); err != nil {
		return nil, err
	}
	return ds, nil
}

// readFile はCSVを1行ずつrecordとしてfnに渡す。
// requiredの列がヘッダーにない場合はDataIntegrityErrorを返す。
func readFile(path string, required []string, fn func(*record)) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("%s を開けませんでした: %w", path, err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return fmt.Errorf("%s のヘッダー読み込みに失敗しました: %w", path, err)
	}

	index := make(map[string]int, len(header))
	for i, h := range header {
		index[dataset.NormalizeColumn(h)] = i
	}
	var missing []string
	for _, col := range required {
		if _, ok := index[col]; !ok {
			missing = append(missing, fmt.Sprintf("%s に列 %s がありません", filepath.Base(path), col))
		}
	}
	if len(missing) > 0 {
		return model.NewDataIntegrityError(missing...)
	}

	for line := 2; ; line++ {
		cells, err := reader.Read()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("%s の読み込みに失敗しました: %w", path, err)
		}

		r := &record{index: index, cells: cells}
		fn(r)
		if r.err != nil {
			return fmt.Errorf("%s:%d: %w", filepath.Base(path), line, r.err)
		}
	}
}
