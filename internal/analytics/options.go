package analytics

import (
	"slices"
	"time"

	"github.com/hitoshi/carefunnel/internal/dataset"
)

// FilterOptions はダッシュボードのサイドバーに並べる選択肢。
type FilterOptions struct {
	MinDate  *string  `json:"min_date"`
	MaxDate  *string  `json:"max_date"`
	Services []string `json:"services"`
	Channels []string `json:"channels"`
}

// Bounds はセッション日の最小・最大を返す。セッションがなければokはfalse。
func Bounds(ds *dataset.Dataset) (first, last time.Time, ok bool) {
	for i, s := range ds.Sessions {
		if i == 0 || s.SessionDate.Before(first) {
			first = s.SessionDate
		}
		if i == 0 || s.SessionDate.After(last) {
			last = s.SessionDate
		}
	}
	return first, last, len(ds.Sessions) > 0
}

// Options はデータに現れるサービス・チャネルを昇順に並べ、先頭に All を付けて返す。
func Options(ds *dataset.Dataset) FilterOptions {
	opts := FilterOptions{}

	if first, last, ok := Bounds(ds); ok {
		lo, hi := first.Format(dataset.DateLayout), last.Format(dataset.DateLayout)
		opts.MinDate, opts.MaxDate = &lo, &hi
	}

	services := map[string]bool{}
	channels := map[string]bool{}
	for _, s := range ds.Sessions {
		services[string(s.ServiceType)] = true
		channels[string(s.Channel)] = true
	}

	opts.Services = append([]string{All}, sortedKeys(services)...)
	opts.Channels = append([]string{All}, sortedKeys(channels)...)
	return opts
}

func sortedKeys(m map[string]bool) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
