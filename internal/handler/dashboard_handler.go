package handler

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/carefunnel/internal/analytics"
	"github.com/hitoshi/carefunnel/internal/dataset"
	"github.com/hitoshi/carefunnel/internal/report"
)

// DatasetProvider はダッシュボードが読むデータセットの供給元。
// store.Cacheが実装する。
type DatasetProvider interface {
	// Refresh はストアの再構築を検知してキャッシュを入れ替える。
	Refresh(ctx context.Context) error
	Snapshot(ctx context.Context) (*dataset.Dataset, error)
	Table(ctx context.Context, name string) (*dataset.Table, error)
}

// QueryObserver はダッシュボード計算時間を記録するインターフェース。
type QueryObserver interface {
	RecordDashboardQuery(duration time.Duration)
}

// DashboardHandler はダッシュボードAPIのHTTPハンドラー。
type DashboardHandler struct {
	data     DatasetProvider
	engine   *analytics.Engine
	observer QueryObserver
	logger   *slog.Logger
}

// NewDashboardHandler はDashboardHandlerを生成する。observerはnilでもよい。
func NewDashboardHandler(data DatasetProvider, engine *analytics.Engine, observer QueryObserver, logger *slog.Logger) *DashboardHandler {
	return &DashboardHandler{
		data:     data,
		engine:   engine,
		observer: observer,
		logger:   logger,
	}
}

// appliedFilter は実際に適用した絞り込み条件。未指定の期間はデータの範囲で埋まる。
type appliedFilter struct {
	Start   *string `json:"start"`
	End     *string `json:"end"`
	Service string  `json:"service"`
	Channel string  `json:"channel"`
}

type dashboardResponse struct {
	Filter appliedFilter `json:"filter"`
	analytics.Result
}

type tableResponse struct {
	Name    string   `json:"name"`
	Columns []string `json:"columns"`
	Rows    [][]any  `json:"rows"`
}

// snapshot はキャッシュを最新化してデータセットを返す。
func (h *DashboardHandler) snapshot(ctx context.Context) (*dataset.Dataset, error) {
	if err := h.data.Refresh(ctx); err != nil {
		return nil, err
	}
	return h.data.Snapshot(ctx)
}

// compute はクエリ文字列のフィルタを適用して指標を計算する。
func (h *DashboardHandler) compute(r *http.Request) (analytics.Result, analytics.Filter, error) {
	q := r.URL.Query()
	f, err := analytics.ParseFilter(q.Get("start"), q.Get("end"), q.Get("service"), q.Get("channel"))
	if err != nil {
		return analytics.Result{}, analytics.Filter{}, err
	}

	ds, err := h.snapshot(r.Context())
	if err != nil {
		return analytics.Result{}, analytics.Filter{}, err
	}

	if first, last, ok := analytics.Bounds(ds); ok {
		f = f.WithDefaultRange(first, last)
	}

	start := time.Now()
	res := h.engine.Compute(ds, f)
	elapsed := time.Since(start)
	if h.observer != nil {
		h.observer.RecordDashboardQuery(elapsed)
	}

	h.logger.Debug("dashboard computed",
		slog.Int("sessions_n", res.SessionsN),
		slog.Bool("no_data", res.NoData),
		slog.Duration("duration", elapsed),
	)
	return res, f, nil
}

// Filters はサイドバーの選択肢を返す。
// GET /api/filters
func (h *DashboardHandler) Filters(w http.ResponseWriter, r *http.Request) {
	ds, err := h.snapshot(r.Context())
	if err != nil {
		handleServiceError(h.logger, w, err)
		return
	}
	writeJSON(w, http.StatusOK, analytics.Options(ds))
}

// Dashboard は絞り込み条件に対する全指標を返す。
// GET /api/dashboard?start=YYYY-MM-DD&end=YYYY-MM-DD&service=&channel=
func (h *DashboardHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	res, f, err := h.compute(r)
	if err != nil {
		handleServiceError(h.logger, w, err)
		return
	}
	writeJSON(w, http.StatusOK, dashboardResponse{Filter: toAppliedFilter(f), Result: res})
}

// ExportXLSX はダッシュボードの集計結果をExcelブックとして返す。
// GET /api/dashboard/export.xlsx
func (h *DashboardHandler) ExportXLSX(w http.ResponseWriter, r *http.Request) {
	res, f, err := h.compute(r)
	if err != nil {
		handleServiceError(h.logger, w, err)
		return
	}

	// 書き込み途中で失敗した場合に壊れたブックを返さないよう、一度バッファに書き出す
	var buf bytes.Buffer
	if err := report.WriteXLSX(&buf, res, f); err != nil {
		handleServiceError(h.logger, w, err)
		return
	}

	w.Header().Set("Content-Type", report.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, exportFileName(f)))
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes())
}

// Table は名前付きテーブルのビューを返す。
// GET /api/tables/{name}
func (h *DashboardHandler) Table(w http.ResponseWriter, r *http.Request) {
	if err := h.data.Refresh(r.Context()); err != nil {
		handleServiceError(h.logger, w, err)
		return
	}

	tbl, err := h.data.Table(r.Context(), chi.URLParam(r, "name"))
	if err != nil {
		handleServiceError(h.logger, w, err)
		return
	}

	rows := tbl.Rows
	if rows == nil {
		rows = [][]any{}
	}
	writeJSON(w, http.StatusOK, tableResponse{Name: tbl.Name, Columns: tbl.Columns, Rows: rows})
}

func toAppliedFilter(f analytics.Filter) appliedFilter {
	out := appliedFilter{Service: analytics.All, Channel: analytics.All}
	if !f.Start.IsZero() {
		s := f.Start.Format(dataset.DateLayout)
		out.Start = &s
	}
	if !f.End.IsZero() {
		e := f.End.Format(dataset.DateLayout)
		out.End = &e
	}
	if f.Service != "" {
		out.Service = string(f.Service)
	}
	if f.Channel != "" {
		out.Channel = string(f.Channel)
	}
	return out
}

// exportFileName は dashboard_<start>_<end>.xlsx 形式のファイル名を返す。
func exportFileName(f analytics.Filter) string {
	if f.Start.IsZero() || f.End.IsZero() {
		return "dashboard.xlsx"
	}
	return fmt.Sprintf("dashboard_%s_%s.xlsx", f.Start.Format("20060102"), f.End.Format("20060102"))
}
