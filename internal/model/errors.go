package model

import (
	"fmt"
	"strings"
)

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: config, integrity, validation, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeInvalidConfiguration = "INVALID_CONFIGURATION"
	ErrCodeDataIntegrity        = "DATA_INTEGRITY"
	ErrCodeInvalidFilter        = "INVALID_FILTER"
	ErrCodeUnknownTable         = "UNKNOWN_TABLE"
	ErrCodeNoDataset            = "NO_DATASET"
	ErrCodeRateLimitExceeded    = "RATE_LIMIT_EXCEEDED"
	ErrCodeInternal             = "INTERNAL_ERROR"
)

// NewConfigurationError は生成パラメータ不正エラーを生成する。
// 生成処理の開始前に返され、乱数の消費は一切行われない。
func NewConfigurationError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidConfiguration,
		Message:  fmt.Sprintf("生成設定が不正です: %s", reason),
		Category: "config",
		Action:   "USER_COUNT、MAX_SESSIONS_PER_USER、WINDOW_DAYS、ANCHOR_DATE の値を確認してください。",
	}
}

// NewDataIntegrityError は参照整合性違反エラーを生成する。
// violationsが複数ある場合は「; 」で連結してメッセージに含める。
func NewDataIntegrityError(violations ...string) *APIError {
	return &APIError{
		Code:     ErrCodeDataIntegrity,
		Message:  fmt.Sprintf("データセットの整合性が崩れています: %s", strings.Join(violations, "; ")),
		Category: "integrity",
		Action:   "データセットを再生成してください（generate サブコマンド）。",
	}
}

// NewInvalidFilterError は無効なフィルタエラーを生成する。
func NewInvalidFilterError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidFilter,
		Message:  fmt.Sprintf("無効なフィルタです: %s", reason),
		Category: "validation",
		Action:   "期間は YYYY-MM-DD 形式（開始日 <= 終了日）で、サービス・チャネルは一覧の値か All を指定してください。",
	}
}

// NewUnknownTableError は存在しないテーブル名が指定された場合のエラーを生成する。
func NewUnknownTableError(name string) *APIError {
	return &APIError{
		Code:     ErrCodeUnknownTable,
		Message:  fmt.Sprintf("指定されたテーブルは存在しません: %s", name),
		Category: "validation",
		Action:   "users、sessions、quotes、bookings、fulfillment、finance のいずれかを指定してください。",
	}
}

// NewNoDatasetError はデータセットが未生成の場合のエラーを生成する。
func NewNoDatasetError() *APIError {
	return &APIError{
		Code:     ErrCodeNoDataset,
		Message:  "データセットがまだ生成されていません。",
		Category: "system",
		Action:   "generate サブコマンドを実行するか、worker の初回実行を待ってください。",
	}
}

// NewRateLimitError はクライアントごとのリクエスト上限を超えた場合のエラーを生成する。
func NewRateLimitError() *APIError {
	return &APIError{
		Code:     ErrCodeRateLimitExceeded,
		Message:  "リクエストが多すぎます。",
		Category: "system",
		Action:   "Retry-After の秒数だけ待ってから再度お試しください。",
	}
}

// NewInternalError は詳細を伏せた内部エラーを生成する。詳細はログにのみ残す。
func NewInternalError() *APIError {
	return &APIError{
		Code:     ErrCodeInternal,
		Message:  "内部エラーが発生しました。",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	}
}
