package analytics

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/hitoshi/carefunnel/internal/dataset"
	"github.com/hitoshi/carefunnel/internal/model"
)

// All はサービス・チャネルを絞り込まないことを表す選択肢。
const All = "All"

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterValidation("service_type", func(fl validator.FieldLevel) bool {
		return model.ServiceType(fl.Field().String()).Valid()
	})
	v.RegisterValidation("channel", func(fl validator.FieldLevel) bool {
		return model.Channel(fl.Field().String()).Valid()
	})
	return v
}

// Filter はダッシュボードの絞り込み条件。
// 期間はセッション日に対する両端を含む範囲で、ゼロ値の端は無制限。
// Service・Channelが空のときは絞り込まない。
type Filter struct {
	Start   time.Time
	End     time.Time
	Service model.ServiceType `validate:"omitempty,service_type"`
	Channel model.Channel     `validate:"omitempty,channel"`
}

// ParseFilter はクエリ文字列由来の値からFilterを組み立てて検証する。
// 日付は YYYY-MM-DD、サービス・チャネルは空または All で全件。
func ParseFilter(start, end, service, channel string) (Filter, error) {
	var f Filter
	var err error

	if f.Start, err = parseDate("start", start); err != nil {
		return Filter{}, err
	}
	if f.End, err = parseDate("end", end); err != nil {
		return Filter{}, err
	}
	f.Service = model.ServiceType(normalizeChoice(service))
	f.Channel = model.Channel(normalizeChoice(channel))

	if err := f.Validate(); err != nil {
		return Filter{}, err
	}
	return f, nil
}

func parseDate(field, value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(dataset.DateLayout, value)
	if err != nil {
		return time.Time{}, model.NewInvalidFilterError(fmt.Sprintf("%s=%q は日付として解釈できません", field, value))
	}
	return t, nil
}

func normalizeChoice(v string) string {
	v = strings.TrimSpace(v)
	if strings.EqualFold(v, All) {
		return ""
	}
	return v
}

// Validate はサービス・チャネルが既知の値であり、開始日が終了日以前であることを検証する。
func (f Filter) Validate() error {
	if err := validate.Struct(f); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			parts := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				parts = append(parts, fmt.Sprintf("%s=%v は未知の値です", strings.ToLower(fe.Field()), fe.Value()))
			}
			return model.NewInvalidFilterError(strings.Join(parts, ", "))
		}
		return fmt.Errorf("フィルタの検証に失敗しました: %w", err)
	}

	if !f.Start.IsZero() && !f.End.IsZero() && f.Start.After(f.End) {
		return model.NewInvalidFilterError(fmt.Sprintf("開始日 %s が終了日 %s より後です",
			f.Start.Format(dataset.DateLayout), f.End.Format(dataset.DateLayout)))
	}
	return nil
}

// WithDefaultRange は未指定の端をデータの最小・最大日で埋めたFilterを返す。
func (f Filter) WithDefaultRange(first, last time.Time) Filter {
	if f.Start.IsZero() {
		f.Start = first
	}
	if f.End.IsZero() {
		f.End = last
	}
	return f
}

func (f Filter) inRange(d time.Time) bool {
	if !f.Start.IsZero() && d.Before(f.Start) {
		return false
	}
	if !f.End.IsZero() && d.After(f.End) {
		return false
	}
	return true
}

// matchIgnoringChannel は期間とサービスだけで判定する。チャネル比較に使う。
func (f Filter) matchIgnoringChannel(s model.Session) bool {
	if !f.inRange(s.SessionDate) {
		return false
	}
	return f.Service == "" || s.ServiceType == f.Service
}

// Match はセッションが全条件を満たすかを返す。
func (f Filter) Match(s model.Session) bool {
	if !f.matchIgnoringChannel(s) {
		return false
	}
	return f.Channel == "" || s.Channel == f.Channel
}
