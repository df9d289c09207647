package csvio

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/hitoshi/carefunnel/internal/dataset"
	"github.com/hitoshi/carefunnel/internal/generator"
	"github.com/hitoshi/carefunnel/internal/model"
)

func generated(t *testing.T) *dataset.Dataset {
	t.Helper()
	cfg := generator.DefaultConfig(time.Date(2026, 6, 30, 0, 0, 0, 0, time.UTC))
	cfg.UserCount = 60
	ds, err := generator.Generate(cfg)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	return ds
}

// formatted はテーブルビューをCSVセル表現に揃えて比較できる形にする。
func formatted(t *testing.T, ds *dataset.Dataset, name string) [][]string {
	t.Helper()
	tbl, err := ds.Table(name)
	if err != nil {
		t.Fatalf("Table(%s): %v", name, err)
	}
	out := make([][]string, len(tbl.Rows))
	for i, row := range tbl.Rows {
		out[i] = make([]string, len(row))
		for j, v := range row {
			out[i][j] = formatCell(v)
		}
	}
	return out
}

func TestWriteDirReadDir_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	ds := generated(t)

	if err := WriteDir(dir, ds); err != nil {
		t.Fatalf("WriteDir: %v", err)
	}

	loaded, err := ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}

	for _, name := range dataset.TableNames {
		if !reflect.DeepEqual(formatted(t, loaded, name), formatted(t, ds, name)) {
			t.Errorf("%s differs after round trip", name)
		}
	}
	if loaded.Run.ID != ds.Run.ID || loaded.Run.Seed != ds.Run.Seed {
		t.Errorf("Run = %+v, want id %s seed %d", loaded.Run, ds.Run.ID, ds.Run.Seed)
	}
}

func TestWriteDir_FormatsCells(t *testing.T) {
	dir := t.TempDir()
	if err := WriteDir(dir, generated(t)); err != nil {
		t.Fatalf("WriteDir: %v", err)
	}

	raw, err := os.ReadFile(filepath.Join(dir, "quotes.csv"))
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(raw)), "\n")
	if lines[0] != "quote_id,session_id,cash_price,insurance_price,has_insurance,showed_insurance_price" {
		t.Errorf("header = %q", lines[0])
	}

	sawEmptyInsurance := false
	for _, line := range lines[1:] {
		cells := strings.Split(line, ",")
		if !strings.Contains(cells[2], ".") || len(cells[2])-strings.Index(cells[2], ".") != 3 {
			t.Fatalf("cash_price %q should have 2 decimals", cells[2])
		}
		if cells[3] == "" {
			sawEmptyInsurance = true
			if cells[5] != "false" {
				t.Fatalf("empty insurance price with showed flag %q", cells[5])
			}
		}
	}
	if !sawEmptyInsurance {
		t.Error("expected at least one quote without an insurance price")
	}
}

// ヘッダーの大文字・空白は正規化して読み込めること
func TestReadDir_NormalizesHeaders(t *testing.T) {
	dir := t.TempDir()
	if err := WriteDir(dir, generated(t)); err != nil {
		t.Fatalf("WriteDir: %v", err)
	}

	path := filepath.Join(dir, "users.csv")
	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	rewritten := strings.Replace(string(raw),
		"user_id,signup_date,state,age,channel_first_touch",
		" User_ID ,SIGNUP_DATE,State,Age , Channel_First_Touch", 1)
	if err := os.WriteFile(path, []byte(rewritten), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	ds, err := ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(ds.Users) != 60 {
		t.Errorf("users = %d, want 60", len(ds.Users))
	}
}

func TestReadDir_MissingColumn(t *testing.T) {
	dir := t.TempDir()
	if err := WriteDir(dir, generated(t)); err != nil {
		t.Fatalf("WriteDir: %v", err)
	}

	path := filepath.Join(dir, "finance.csv")
	raw, _ := os.ReadFile(path)
	rewritten := strings.Replace(string(raw), "contribution_margin", "margin", 1)
	if err := os.WriteFile(path, []byte(rewritten), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	_, err := ReadDir(dir)
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodeDataIntegrity {
		t.Fatalf("expected DATA_INTEGRITY error, got %v", err)
	}
	if !strings.Contains(apiErr.Message, "contribution_margin") {
		t.Errorf("Message = %q, want it to name the column", apiErr.Message)
	}
}

func TestReadDir_BrokenReference(t *testing.T) {
	dir := t.TempDir()
	if err := WriteDir(dir, generated(t)); err != nil {
		t.Fatalf("WriteDir: %v", err)
	}

	// 予約の参照先セッションを全て消す
	if err := os.WriteFile(filepath.Join(dir, "sessions.csv"),
		[]byte("session_id,user_id,session_date,service_type,device,channel\n"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	_, err := ReadDir(dir)
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodeDataIntegrity {
		t.Fatalf("expected DATA_INTEGRITY error, got %v", err)
	}
}

func TestReadDir_BadValueReportsLine(t *testing.T) {
	dir := t.TempDir()
	if err := WriteDir(dir, generated(t)); err != nil {
		t.Fatalf("WriteDir: %v", err)
	}

	path := filepath.Join(dir, "users.csv")
	raw, _ := os.ReadFile(path)
	lines := strings.Split(string(raw), "\n")
	cells := strings.Split(lines[1], ",")
	cells[3] = "forty"
	lines[1] = strings.Join(cells, ",")
	if err := os.WriteFile(path, []byte(strings.Join(lines, "\n")), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	_, err := ReadDir(dir)
	if err == nil || !strings.Contains(err.Error(), "users.csv:2") {
		t.Fatalf("expected error pointing at users.csv:2, got %v", err)
	}
}

func TestReadDir_WithoutRunFile(t *testing.T) {
	dir := t.TempDir()
	if err := WriteDir(dir, generated(t)); err != nil {
		t.Fatalf("WriteDir: %v", err)
	}
	if err := os.Remove(filepath.Join(dir, runFile)); err != nil {
		t.Fatalf("Remove: %v", err)
	}

	ds, err := ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if ds.Run.ID != "" {
		t.Errorf("Run.ID = %q, want empty", ds.Run.ID)
	}
}

func TestReadDir_MissingDirectory(t *testing.T) {
	if _, err := ReadDir(filepath.Join(t.TempDir(), "nope")); err == nil {
		t.Fatal("expected error for a missing directory")
	}
}
