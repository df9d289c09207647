package generator

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/hitoshi/carefunnel/internal/model"
)

// デフォルトの生成パラメータ。
const (
	DefaultUserCount          = 1200
	DefaultMaxSessionsPerUser = 8
	DefaultSeed               = 42
	DefaultWindowDays         = 180
)

var validate = validator.New()

// Config は1回の生成実行のパラメータ。
// 同じ Seed と AnchorDate からは常に同じデータセットが生成される。
type Config struct {
	UserCount          int `validate:"gt=0"`
	MaxSessionsPerUser int `validate:"gt=0"`
	Seed               uint64
	WindowDays         int `validate:"gt=0,lte=3650"`
	AnchorDate         time.Time
}

// DefaultConfig はanchorを窓の終端とするデフォルト設定を返す。
func DefaultConfig(anchor time.Time) Config {
	return Config{
		UserCount:          DefaultUserCount,
		MaxSessionsPerUser: DefaultMaxSessionsPerUser,
		Seed:               DefaultSeed,
		WindowDays:         DefaultWindowDays,
		AnchorDate:         anchor,
	}
}

// Validate は生成パラメータを検証する。
// 不正な場合はConfigurationErrorを返す。
func (c Config) Validate() error {
	var reasons []string

	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return model.NewConfigurationError(err.Error())
		}
		for _, fe := range verrs {
			reasons = append(reasons, fmt.Sprintf("%s=%v (%s%s)", fe.Field(), fe.Value(), fe.Tag(), paramSuffix(fe.Param())))
		}
	}

	if c.AnchorDate.IsZero() {
		reasons = append(reasons, "AnchorDate が未設定です")
	}

	if len(reasons) > 0 {
		return model.NewConfigurationError(strings.Join(reasons, ", "))
	}
	return nil
}

// anchor は AnchorDate をUTCの日付境界に揃えて返す。
func (c Config) anchor() time.Time {
	y, m, d := c.AnchorDate.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func paramSuffix(p string) string {
	if p == "" {
		return ""
	}
	return "=" + p
}
