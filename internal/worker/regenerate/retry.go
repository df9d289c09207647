package regenerate

import "time"

const (
	// initialBackoff は指数バックオフの初回遅延。
	initialBackoff = 2 * time.Second
	// maxBackoff は指数バックオフの最大遅延。
	maxBackoff = 30 * time.Second
)

// CalculateBackoff は失敗回数に基づいて指数バックオフ遅延を計算する。
// 初回2秒、2倍ずつ増加、最大30秒。
func CalculateBackoff(failures int) time.Duration {
	delay := initialBackoff
	for i := 0; i < failures; i++ {
		delay *= 2
		if delay > maxBackoff {
			return maxBackoff
		}
	}
	return delay
}
