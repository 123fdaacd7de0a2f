// Package model はドメインモデルを定義する。
package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ（UIにそのまま表示する短い文言）
	Category string // カテゴリ: auth, clan, connection, view, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeLoginFailed        = "LOGIN_FAILED"
	ErrCodeSignupFailed       = "SIGNUP_FAILED"
	ErrCodeNotAuthenticated   = "NOT_AUTHENTICATED"
	ErrCodeUserFetchFailed    = "USER_FETCH_FAILED"
	ErrCodeClanFetchFailed    = "CLAN_FETCH_FAILED"
	ErrCodeClanCreateFailed   = "CLAN_CREATE_FAILED"
	ErrCodeClanJoinFailed     = "CLAN_JOIN_FAILED"
	ErrCodeClanLeaveFailed    = "CLAN_LEAVE_FAILED"
	ErrCodeClanDeleteFailed   = "CLAN_DELETE_FAILED"
	ErrCodeClanNotReady       = "CLAN_NOT_READY"
	ErrCodeClanActionDenied   = "CLAN_ACTION_DENIED"
	ErrCodeInvalidTransition  = "INVALID_TRANSITION"
	ErrCodeConnectionFailed   = "CONNECTION_FAILED"
	ErrCodeConnectionInactive = "CONNECTION_INACTIVE"
	ErrCodeInvalidRequest     = "INVALID_REQUEST"
)

// エラーカテゴリ
const (
	CategoryAuth       = "auth"
	CategoryClan       = "clan"
	CategoryConnection = "connection"
	CategoryView       = "view"
	CategoryValidation = "validation"
	CategorySystem     = "system"
)

// NewLoginFailedError はログイン失敗エラーを生成する。
func NewLoginFailedError() *APIError {
	return &APIError{
		Code:     ErrCodeLoginFailed,
		Message:  "Login failed",
		Category: CategoryAuth,
		Action:   "ユーザー名とパスワードを確認して再度お試しください。",
	}
}

// NewSignupFailedError はサインアップ失敗エラーを生成する。
func NewSignupFailedError() *APIError {
	return &APIError{
		Code:     ErrCodeSignupFailed,
		Message:  "Signup failed",
		Category: CategoryAuth,
		Action:   "別のユーザー名で再度お試しください。",
	}
}

// NewNotAuthenticatedError はセッションが存在しない場合のエラーを生成する。
func NewNotAuthenticatedError() *APIError {
	return &APIError{
		Code:     ErrCodeNotAuthenticated,
		Message:  "Not logged in",
		Category: CategoryAuth,
		Action:   "ログインしてください。",
	}
}

// NewUserFetchFailedError は現在ユーザー取得失敗エラーを生成する。
func NewUserFetchFailedError() *APIError {
	return &APIError{
		Code:     ErrCodeUserFetchFailed,
		Message:  "Failed to fetch current user info",
		Category: CategoryClan,
		Action:   "しばらく待ってから再読み込みしてください。",
	}
}

// NewClanFetchFailedError は現在クラン取得失敗エラーを生成する。
func NewClanFetchFailedError() *APIError {
	return &APIError{
		Code:     ErrCodeClanFetchFailed,
		Message:  "Failed to fetch current clan info",
		Category: CategoryClan,
		Action:   "しばらく待ってから再読み込みしてください。",
	}
}

// NewClanMutationError はクラン操作（create/join/leave/delete）の失敗エラーを生成する。
func NewClanMutationError(code, message string) *APIError {
	return &APIError{
		Code:     code,
		Message:  message,
		Category: CategoryClan,
		Action:   "入力内容を確認して再度お試しください。",
	}
}

// NewClanNotReadyError はユーザーとクランの取得が完了する前に操作された場合のエラーを生成する。
func NewClanNotReadyError() *APIError {
	return &APIError{
		Code:     ErrCodeClanNotReady,
		Message:  "Clan info is still loading",
		Category: CategoryClan,
		Action:   "読み込み完了後に再度お試しください。",
	}
}

// NewClanActionDeniedError は所有者判定に合わない操作のエラーを生成する。
func NewClanActionDeniedError(message string) *APIError {
	return &APIError{
		Code:     ErrCodeClanActionDenied,
		Message:  message,
		Category: CategoryClan,
		Action:   "表示されている操作のみ実行できます。",
	}
}

// NewInvalidTransitionError は現在の画面状態から許可されない遷移のエラーを生成する。
func NewInvalidTransitionError(from, action string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidTransition,
		Message:  fmt.Sprintf("%s is not available from %s", action, from),
		Category: CategoryView,
		Action:   "画面を再読み込みしてください。",
	}
}

// NewConnectionFailedError はリアルタイム接続の確立失敗エラーを生成する。
func NewConnectionFailedError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeConnectionFailed,
		Message:  fmt.Sprintf("Game connection failed: %s", reason),
		Category: CategoryConnection,
		Action:   "メニューに戻ってから再度スポーンしてください。",
	}
}

// NewConnectionInactiveError は開いていない接続への操作のエラーを生成する。
func NewConnectionInactiveError() *APIError {
	return &APIError{
		Code:     ErrCodeConnectionInactive,
		Message:  "Game connection is not open",
		Category: CategoryConnection,
		Action:   "スポーンしてから操作してください。",
	}
}

// NewInvalidRequestError はリクエストボディが不正な場合のエラーを生成する。
func NewInvalidRequestError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidRequest,
		Message:  fmt.Sprintf("Invalid request: %s", reason),
		Category: CategoryValidation,
		Action:   "リクエスト内容を確認してください。",
	}
}
