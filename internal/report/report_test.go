package report

import (
	"bytes"
	"testing"
	"time"

	"github.com/hitoshi/carefunnel/internal/analytics"
	"github.com/hitoshi/carefunnel/internal/model"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

func sampleResult() analytics.Result {
	pct := 0.65
	return analytics.Result{
		SessionsN:          5,
		QuotesN:            5,
		BookingsN:          5,
		CompletedN:         3,
		SessionToBooking:   1,
		SessionToComplete:  0.6,
		Revenue:            decimal.RequireFromString("290.00"),
		ContributionMargin: decimal.RequireFromString("148.50"),
		CMPct:              0.512,
		ChannelTable: []analytics.ChannelRow{
			{Channel: model.ChannelReferral, SessionToComplete: 1},
			{Channel: model.ChannelEmail, SessionToComplete: 0.5},
		},
		ServiceMarginTable: []analytics.ServiceMarginRow{
			{ServiceType: model.ServiceVirtualVisit, Revenue: decimal.RequireFromString("90"), ContributionMargin: decimal.RequireFromString("58.5"), Bookings: 2, CMPct: &pct},
			{ServiceType: model.ServiceLabs, Revenue: decimal.Zero, ContributionMargin: decimal.Zero, Bookings: 2},
		},
		CancelRate:   0.4,
		BestChannel:  &analytics.ChannelRow{Channel: model.ChannelReferral, SessionToComplete: 1},
		WorstChannel: &analytics.ChannelRow{Channel: model.ChannelEmail, SessionToComplete: 0.5},
	}
}

func open(t *testing.T, res analytics.Result, f analytics.Filter) *excelize.File {
	t.Helper()
	var buf bytes.Buffer
	if err := WriteXLSX(&buf, res, f); err != nil {
		t.Fatalf("WriteXLSX: %v", err)
	}
	x, err := excelize.OpenReader(&buf)
	if err != nil {
		t.Fatalf("OpenReader: %v", err)
	}
	t.Cleanup(func() { x.Close() })
	return x
}

func TestWriteXLSX_Sheets(t *testing.T) {
	x := open(t, sampleResult(), analytics.Filter{})

	got := x.GetSheetList()
	want := []string{SheetKPI, SheetChannels, SheetServices}
	if len(got) != len(want) {
		t.Fatalf("sheets = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("sheet %d = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestWriteXLSX_KPIValues(t *testing.T) {
	f := analytics.Filter{Start: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), Service: model.ServiceLabs}
	x := open(t, sampleResult(), f)

	rows, err := x.GetRows(SheetKPI)
	if err != nil {
		t.Fatalf("GetRows: %v", err)
	}
	values := map[string]string{}
	for _, r := range rows {
		if len(r) == 2 {
			values[r[0]] = r[1]
		}
	}

	checks := map[string]string{
		"start":         "2026-03-01",
		"service":       "labs",
		"channel":       analytics.All,
		"sessions_n":    "5",
		"completed_n":   "3",
		"revenue":       "290",
		"best_channel":  "referral",
		"worst_channel": "email",
	}
	for k, want := range checks {
		if values[k] != want {
			t.Errorf("%s = %q, want %q", k, values[k], want)
		}
	}
}

func TestWriteXLSX_ServicesSheetLeavesNullMarginBlank(t *testing.T) {
	x := open(t, sampleResult(), analytics.Filter{})

	rows, err := x.GetRows(SheetServices)
	if err != nil {
		t.Fatalf("GetRows: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("rows = %d, want header + 2", len(rows))
	}
	if rows[1][0] != "virtual_visit" || rows[1][4] != "0.65" {
		t.Errorf("virtual row = %v", rows[1])
	}
	// GetRowsは末尾の空セルを切り詰める
	if len(rows[2]) > 4 && rows[2][4] != "" {
		t.Errorf("labs cm_pct = %q, want blank", rows[2][4])
	}
}

func TestWriteXLSX_NoDataNote(t *testing.T) {
	x := open(t, analytics.Result{NoData: true}, analytics.Filter{})

	rows, err := x.GetRows(SheetKPI)
	if err != nil {
		t.Fatalf("GetRows: %v", err)
	}
	last := rows[len(rows)-1]
	if last[0] != "note" {
		t.Errorf("last row = %v, want the no-data note", last)
	}

	channels, _ := x.GetRows(SheetChannels)
	if len(channels) != 1 {
		t.Errorf("Channels rows = %d, want header only", len(channels))
	}
}
