// Package sampling は合成データ生成で使う確率分布を提供する。
// すべての関数は呼び出し側が所有する *rand.Rand から値を引くため、
// 同じシードからは同じ系列が再現される。
package sampling

import (
	"math"
	"math/rand/v2"
	"time"
)

// Weighted は重み付きカテゴリの1要素。
type Weighted[T any] struct {
	Value  T
	Weight float64
}

// NewStream はシードとストリーム番号、レコード番号から独立した乱数系列を生成する。
// レコードごとに系列を分けることで、各レコードの抽選が他のレコードの抽選順序に依存しない。
func NewStream(seed, stream, index uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, mix(stream<<40^index)))
}

// mix はsplitmix64の最終化関数。近い入力を十分に離れた値へ写す。
func mix(x uint64) uint64 {
	x += 0x9e3779b97f4a7c15
	x = (x ^ (x >> 30)) * 0xbf58476d1ce4e5b9
	x = (x ^ (x >> 27)) * 0x94d049bb133111eb
	return x ^ (x >> 31)
}

// Clip はvを[lo, hi]に収める。
func Clip(v, lo, hi float64) float64 {
	return math.Min(math.Max(v, lo), hi)
}

// Normal は平均mean、標準偏差sdの正規分布から1つ値を引く。
func Normal(r *rand.Rand, mean, sd float64) float64 {
	return r.NormFloat64()*sd + mean
}

// ClippedNormal は正規分布から引いた値を[lo, hi]に収めて返す。
func ClippedNormal(r *rand.Rand, mean, sd, lo, hi float64) float64 {
	return Clip(Normal(r, mean, sd), lo, hi)
}

// Bernoulli は確率pでtrueを返す。
func Bernoulli(r *rand.Rand, p float64) bool {
	return r.Float64() < p
}

// IntBetween は[lo, hi]の一様な整数を返す。
func IntBetween(r *rand.Rand, lo, hi int) int {
	return lo + r.IntN(hi-lo+1)
}

// Choice は重みに比例した確率で要素を1つ選ぶ。
// 重みの合計が1である必要はない。itemsは空であってはならない。
func Choice[T any](r *rand.Rand, items []Weighted[T]) T {
	var total float64
	for _, it := range items {
		total += it.Weight
	}

	u := r.Float64() * total
	var acc float64
	for _, it := range items {
		acc += it.Weight
		if u < acc {
			return it.Value
		}
	}
	return items[len(items)-1].Value
}

// DateInWindow はanchorを終端とする直近windowDays日間（両端含む）から一様に日付を選ぶ。
func DateInWindow(r *rand.Rand, anchor time.Time, windowDays int) time.Time {
	return anchor.AddDate(0, 0, -r.IntN(windowDays+1))
}
