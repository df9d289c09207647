// Package report はダッシュボードの集計結果をExcelブックとして書き出す。
package report

import (
	"fmt"
	"io"
	"time"

	"github.com/hitoshi/carefunnel/internal/analytics"
	"github.com/hitoshi/carefunnel/internal/dataset"
	"github.com/xuri/excelize/v2"
)

// シート名
const (
	SheetKPI      = "KPI"
	SheetChannels = "Channels"
	SheetServices = "Services"
)

// ContentType はXLSXのMIMEタイプ。
const ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// WriteXLSX はresをKPI・Channels・Servicesの3シートに書き出し、wへ出力する。
func WriteXLSX(w io.Writer, res analytics.Result, f analytics.Filter) error {
	x := excelize.NewFile()
	defer x.Close()

	if err := x.SetSheetName("Sheet1", SheetKPI); err != nil {
		return fmt.Errorf("シート名の設定に失敗しました: %w", err)
	}
	for _, name := range []string{SheetChannels, SheetServices} {
		if _, err := x.NewSheet(name); err != nil {
			return fmt.Errorf("シート %s の作成に失敗しました: %w", name, err)
		}
	}

	if err := writeRows(x, SheetKPI, kpiRows(res, f)); err != nil {
		return err
	}
	if err := writeRows(x, SheetChannels, channelRows(res)); err != nil {
		return err
	}
	if err := writeRows(x, SheetServices, serviceRows(res)); err != nil {
		return err
	}

	if err := x.Write(w); err != nil {
		return fmt.Errorf("Excelブックの書き出しに失敗しました: %w", err)
	}
	return nil
}

func writeRows(x *excelize.File, sheet string, rows [][]any) error {
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := x.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("シート %s の %d 行目の書き込みに失敗しました: %w", sheet, i+1, err)
		}
	}
	return nil
}

func kpiRows(res analytics.Result, f analytics.Filter) [][]any {
	choice := func(v string) string {
		if v == "" {
			return analytics.All
		}
		return v
	}

	rows := [][]any{
		{"metric", "value"},
		{"start", formatDate(f.Start)},
		{"end", formatDate(f.End)},
		{"service", choice(string(f.Service))},
		{"channel", choice(string(f.Channel))},
		{"sessions_n", res.SessionsN},
		{"quotes_n", res.QuotesN},
		{"bookings_n", res.BookingsN},
		{"completed_n", res.CompletedN},
		{"session_to_booking", res.SessionToBooking},
		{"session_to_complete", res.SessionToComplete},
		{"revenue", res.Revenue.InexactFloat64()},
		{"contribution_margin", res.ContributionMargin.InexactFloat64()},
		{"cm_pct", res.CMPct},
		{"cancel_rate", res.CancelRate},
	}

	best, worst, margin := "", "", ""
	if res.BestChannel != nil {
		best = string(res.BestChannel.Channel)
	}
	if res.WorstChannel != nil {
		worst = string(res.WorstChannel.Channel)
	}
	if res.BestMarginService != nil {
		margin = string(res.BestMarginService.ServiceType)
	}
	rows = append(rows,
		[]any{"best_channel", best},
		[]any{"worst_channel", worst},
		[]any{"best_margin_service", margin},
	)
	if res.NoData {
		rows = append(rows, []any{"note", "no data for this selection"})
	}
	return rows
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(dataset.DateLayout)
}

func channelRows(res analytics.Result) [][]any {
	rows := [][]any{{"channel", "session_to_complete"}}
	for _, r := range res.ChannelTable {
		rows = append(rows, []any{string(r.Channel), r.SessionToComplete})
	}
	return rows
}

func serviceRows(res analytics.Result) [][]any {
	rows := [][]any{{"service_type", "revenue", "contribution_margin", "bookings", "cm_pct"}}
	for _, r := range res.ServiceMarginTable {
		var pct any = ""
		if r.CMPct != nil {
			pct = *r.CMPct
		}
		rows = append(rows, []any{
			string(r.ServiceType), r.Revenue.InexactFloat64(), r.ContributionMargin.InexactFloat64(), r.Bookings, pct,
		})
	}
	return rows
}
