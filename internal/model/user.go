// Package model はドメインモデルを定義する。
package model

import "time"

// User は合成データ上の利用者を表す。生成後に変更されることはない。
type User struct {
	ID                string
	SignupDate        time.Time
	State             string // 米国州コード（例: "CA"）
	Age               int
	ChannelFirstTouch Channel
}

// Session はサービス検討のための1回の訪問を表す。
// 1ユーザーは1件以上のセッションを持つ。
type Session struct {
	ID          string
	UserID      string
	SessionDate time.Time
	ServiceType ServiceType
	Device      Device
	Channel     Channel
}
