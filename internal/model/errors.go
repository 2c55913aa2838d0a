package model

import (
	"errors"
	"fmt"
)

// カテゴリ別のセンチネルエラー。errors.Isでの判別に使用する。
var (
	// ErrUnauthorized は非クリティカルなエンドポイントでの401を表す。
	// セッションは維持され、呼び出し元が個別に処理する。
	ErrUnauthorized = errors.New("unauthorized")

	// ErrSessionExpired はクリティカルなエンドポイントでの401を表す。
	// 保存済みトークンは破棄済みであり、再ログインが必要。
	ErrSessionExpired = errors.New("session expired")

	// ErrConflict はサーバー側の制約違反（外部キー等）を表す。
	ErrConflict = errors.New("conflict")
)

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code       string // エラーコード
	Message    string // エラーメッセージ
	Category   string // カテゴリ: auth, validation, network, server
	Action     string // ユーザー向け対処方法
	HTTPStatus int    // HTTPステータス（ネットワーク障害時は0）
	Err        error  // ラップされた原因
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap はラップされた原因エラーを返す。
func (e *APIError) Unwrap() error {
	return e.Err
}

// 定義済みエラーコード
const (
	ErrCodeNetworkFailure    = "NETWORK_FAILURE"
	ErrCodeUnauthorized      = "UNAUTHORIZED"
	ErrCodeSessionExpired    = "SESSION_EXPIRED"
	ErrCodeServerError       = "SERVER_ERROR"
	ErrCodeValidationFailed  = "VALIDATION_FAILED"
	ErrCodeNotFound          = "NOT_FOUND"
	ErrCodePostDeleteBlocked = "POST_DELETE_BLOCKED"
	ErrCodeLoginFailed       = "LOGIN_FAILED"
	ErrCodeRegisterFailed    = "REGISTER_FAILED"
)

// NewNetworkError はネットワーク障害エラーを生成する。
func NewNetworkError(err error) *APIError {
	return &APIError{
		Code:     ErrCodeNetworkFailure,
		Message:  fmt.Sprintf("サーバーに接続できませんでした: %v", err),
		Category: "network",
		Action:   "ネットワーク接続を確認し、しばらく待ってから再度お試しください。",
		Err:      err,
	}
}

// NewSessionExpiredError はセッション失効エラーを生成する。
// クリティカルエンドポイントでの401に対応し、保存済みトークンは破棄済み。
func NewSessionExpiredError(url string) *APIError {
	return &APIError{
		Code:       ErrCodeSessionExpired,
		Message:    fmt.Sprintf("認証の有効期限が切れました: %s", url),
		Category:   "auth",
		Action:     "再度ログインしてください。",
		HTTPStatus: 401,
		Err:        ErrSessionExpired,
	}
}

// NewUnauthorizedError は非クリティカルエンドポイントでの401エラーを生成する。
// セッションは維持される。
func NewUnauthorizedError(url string) *APIError {
	return &APIError{
		Code:       ErrCodeUnauthorized,
		Message:    fmt.Sprintf("認証エラーが発生しました（セッションは維持されます）: %s", url),
		Category:   "auth",
		Action:     "この操作の結果は表示できませんが、他の操作は継続できます。",
		HTTPStatus: 401,
		Err:        ErrUnauthorized,
	}
}

// NewHTTPError はその他のHTTPエラー応答からエラーを生成する。
// serverMessageはレスポンスボディ由来のメッセージ（空の場合あり）。
func NewHTTPError(status int, serverMessage string) *APIError {
	msg := serverMessage
	if msg == "" {
		msg = fmt.Sprintf("サーバーがステータス %d を返しました", status)
	}
	category := "server"
	if status >= 400 && status < 500 {
		category = "validation"
	}
	return &APIError{
		Code:       ErrCodeServerError,
		Message:    msg,
		Category:   category,
		Action:     "入力内容を確認し、再度お試しください。",
		HTTPStatus: status,
	}
}

// NewPostDeleteBlockedError は投稿削除時の外部キー制約違反エラーを生成する。
// 既知のサーバー側障害モード: 関連レコードが残っていると削除に失敗する。
func NewPostDeleteBlockedError(postID int64) *APIError {
	return &APIError{
		Code:       ErrCodePostDeleteBlocked,
		Message:    fmt.Sprintf("投稿 %d はコメントやいいねが関連付いているため削除できませんでした。", postID),
		Category:   "server",
		Action:     "しばらく待ってから再度お試しください。解決しない場合は管理者に連絡してください。",
		HTTPStatus: 500,
		Err:        ErrConflict,
	}
}

// NewValidationError はクライアント側の事前検証エラーを生成する。
func NewValidationError(detail string) *APIError {
	return &APIError{
		Code:     ErrCodeValidationFailed,
		Message:  fmt.Sprintf("入力内容が不正です: %s", detail),
		Category: "validation",
		Action:   "入力内容を修正して再度お試しください。",
	}
}
