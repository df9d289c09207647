package analytics

import (
	"cmp"
	"slices"
)

// Group はGroupByの1グループ分の結果。
type Group[K cmp.Ordered, A any] struct {
	Key K
	Acc A
}

// GroupBy はitemsをkeyで分類し、グループごとにaddで集計する。
// 出現しなかったキーのグループは作らない。結果はキーの昇順。
func GroupBy[T any, K cmp.Ordered, A any](items []T, key func(T) K, add func(A, T) A) []Group[K, A] {
	index := make(map[K]int)
	var groups []Group[K, A]

	for _, it := range items {
		k := key(it)
		i, ok := index[k]
		if !ok {
			var zero A
			i = len(groups)
			index[k] = i
			groups = append(groups, Group[K, A]{Key: k, Acc: zero})
		}
		groups[i].Acc = add(groups[i].Acc, it)
	}

	slices.SortFunc(groups, func(a, b Group[K, A]) int {
		return cmp.Compare(a.Key, b.Key)
	})
	return groups
}

// ratio は分母が0のとき0を返す割り算。
func ratio(num, den int) float64 {
	if den == 0 {
		return 0
	}
	return float64(num) / float64(den)
}
