package generator

import (
	"errors"
	"reflect"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/hitoshi/carefunnel/internal/dataset"
	"github.com/hitoshi/carefunnel/internal/finance"
	"github.com/hitoshi/carefunnel/internal/model"
)

var testAnchor = time.Date(2026, 6, 30, 15, 4, 5, 0, time.UTC)

func mustGenerate(t *testing.T, cfg Config) *dataset.Dataset {
	t.Helper()
	ds, err := Generate(cfg)
	if err != nil {
		t.Fatalf("Generate returned error: %v", err)
	}
	return ds
}

func TestConfigValidate_RejectsInvalidParameters(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
		want   string
	}{
		{"zero users", func(c *Config) { c.UserCount = 0 }, "UserCount"},
		{"negative users", func(c *Config) { c.UserCount = -5 }, "UserCount"},
		{"zero sessions", func(c *Config) { c.MaxSessionsPerUser = 0 }, "MaxSessionsPerUser"},
		{"zero window", func(c *Config) { c.WindowDays = 0 }, "WindowDays"},
		{"missing anchor", func(c *Config) { c.AnchorDate = time.Time{} }, "AnchorDate"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig(testAnchor)
			tt.mutate(&cfg)

			err := cfg.Validate()
			var apiErr *model.APIError
			if !errors.As(err, &apiErr) {
				t.Fatalf("expected *model.APIError, got %v", err)
			}
			if apiErr.Code != model.ErrCodeInvalidConfiguration {
				t.Errorf("Code = %q, want %q", apiErr.Code, model.ErrCodeInvalidConfiguration)
			}
			if !strings.Contains(apiErr.Message, tt.want) {
				t.Errorf("Message = %q, want it to mention %q", apiErr.Message, tt.want)
			}
		})
	}
}

func TestGenerate_InvalidConfigFailsFast(t *testing.T) {
	cfg := DefaultConfig(testAnchor)
	cfg.UserCount = 0

	ds, err := Generate(cfg)
	if err == nil {
		t.Fatal("expected configuration error")
	}
	if ds != nil {
		t.Error("no dataset should be produced for an invalid config")
	}
}

func TestGenerate_ShapeAndIntegrity(t *testing.T) {
	cfg := DefaultConfig(testAnchor)
	cfg.UserCount = 300
	ds := mustGenerate(t, cfg)

	if len(ds.Users) != 300 {
		t.Errorf("users = %d, want 300", len(ds.Users))
	}
	if n := len(ds.Sessions); n < 300 || n > 300*cfg.MaxSessionsPerUser {
		t.Errorf("sessions = %d, want within [300, %d]", n, 300*cfg.MaxSessionsPerUser)
	}
	if len(ds.Quotes) != len(ds.Sessions) {
		t.Errorf("quotes = %d, want one per session (%d)", len(ds.Quotes), len(ds.Sessions))
	}
	if len(ds.Finance) != len(ds.Bookings) {
		t.Errorf("finance = %d, want one per booking (%d)", len(ds.Finance), len(ds.Bookings))
	}
	if len(ds.Bookings) == 0 || len(ds.Bookings) >= len(ds.Sessions) {
		t.Errorf("bookings = %d of %d sessions, want a partial conversion", len(ds.Bookings), len(ds.Sessions))
	}

	if err := ds.Validate(); err != nil {
		t.Fatalf("generated dataset failed validation: %v", err)
	}
}

func TestGenerate_IDsAreZeroPaddedAndUnique(t *testing.T) {
	cfg := DefaultConfig(testAnchor)
	cfg.UserCount = 200
	ds := mustGenerate(t, cfg)

	checks := []struct {
		pattern *regexp.Regexp
		ids     []string
	}{
		{regexp.MustCompile(`^u\d{5}$`), collect(ds.Users, func(u model.User) string { return u.ID })},
		{regexp.MustCompile(`^s\d{7}$`), collect(ds.Sessions, func(s model.Session) string { return s.ID })},
		{regexp.MustCompile(`^qs\d{7}$`), collect(ds.Quotes, func(q model.Quote) string { return q.ID })},
		{regexp.MustCompile(`^b\d{7}$`), collect(ds.Bookings, func(b model.Booking) string { return b.ID })},
		{regexp.MustCompile(`^f\d{7}$`), collect(ds.Fulfillment, func(f model.Fulfillment) string { return f.ID })},
	}

	for _, c := range checks {
		seen := map[string]bool{}
		for i, id := range c.ids {
			if !c.pattern.MatchString(id) {
				t.Fatalf("id %q does not match %s", id, c.pattern)
			}
			if seen[id] {
				t.Fatalf("duplicate id %q", id)
			}
			seen[id] = true
			if i > 0 && id <= c.ids[i-1] {
				t.Fatalf("ids not monotonic: %q after %q", id, c.ids[i-1])
			}
		}
	}
}

func TestGenerate_ValuesWithinDistributionBounds(t *testing.T) {
	cfg := DefaultConfig(testAnchor)
	cfg.UserCount = 400
	ds := mustGenerate(t, cfg)

	last := time.Date(2026, 6, 30, 0, 0, 0, 0, time.UTC)
	first := last.AddDate(0, 0, -cfg.WindowDays)

	for _, u := range ds.Users {
		if u.Age < 18 || u.Age > 80 {
			t.Fatalf("user %s age %d out of [18, 80]", u.ID, u.Age)
		}
		if u.SignupDate.Before(first) || u.SignupDate.After(last) {
			t.Fatalf("user %s signup %s outside window", u.ID, u.SignupDate)
		}
		if len(u.State) != 2 {
			t.Fatalf("user %s state %q", u.ID, u.State)
		}
		if !u.ChannelFirstTouch.Valid() {
			t.Fatalf("user %s channel %q", u.ID, u.ChannelFirstTouch)
		}
	}

	perUser := map[string]int{}
	for _, s := range ds.Sessions {
		perUser[s.UserID]++
		if s.SessionDate.Before(first) || s.SessionDate.After(last) {
			t.Fatalf("session %s date %s outside window", s.ID, s.SessionDate)
		}
		if !s.ServiceType.Valid() || !s.Channel.Valid() {
			t.Fatalf("session %s has invalid enum values", s.ID)
		}
	}
	for _, u := range ds.Users {
		if n := perUser[u.ID]; n < 1 || n > cfg.MaxSessionsPerUser {
			t.Fatalf("user %s has %d sessions", u.ID, n)
		}
	}
}

func TestGenerate_FinanceMatchesDeriver(t *testing.T) {
	cfg := DefaultConfig(testAnchor)
	cfg.UserCount = 150
	ds := mustGenerate(t, cfg)

	for i, b := range ds.Bookings {
		want := finance.Derive(b)
		got := ds.Finance[i]
		if got.BookingID != b.ID || !got.Revenue.Equal(want.Revenue) || !got.COGS.Equal(want.COGS) || !got.ContributionMargin.Equal(want.ContributionMargin) {
			t.Fatalf("finance row %d = %+v, want %+v", i, got, want)
		}
	}
}

// seed=42, 1200ユーザー, 最大8セッションで2回生成した結果が完全に一致することを検証
func TestGenerate_ReproducibleForSameSeed(t *testing.T) {
	cfg := Config{
		UserCount:          1200,
		MaxSessionsPerUser: 8,
		Seed:               42,
		WindowDays:         180,
		AnchorDate:         testAnchor,
	}

	a := mustGenerate(t, cfg)
	b := mustGenerate(t, cfg)

	if a.Run.ID == b.Run.ID {
		t.Error("each run should get its own run id")
	}

	a.Run, b.Run = dataset.Run{}, dataset.Run{}
	if !reflect.DeepEqual(a, b) {
		t.Fatal("datasets generated from the same seed differ")
	}
}

func TestGenerate_DifferentSeedDiffers(t *testing.T) {
	cfg := DefaultConfig(testAnchor)
	cfg.UserCount = 100
	a := mustGenerate(t, cfg)

	cfg.Seed = 43
	b := mustGenerate(t, cfg)

	if reflect.DeepEqual(a.Sessions, b.Sessions) {
		t.Error("different seeds should produce different sessions")
	}
}

func collect[T any](items []T, id func(T) string) []string {
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = id(it)
	}
	return out
}
