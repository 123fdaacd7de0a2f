// Package handler はコントロールAPIのHTTPハンドラーを提供する。
//
// 描画側はこのAPIで画面状態を取得し、ユーザー操作をシェルに伝える。
// すべての操作は成功時に最新の状態スナップショットを返す。
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/hitoshi/vosdos-shell/internal/middleware"
	"github.com/hitoshi/vosdos-shell/internal/model"
	"github.com/hitoshi/vosdos-shell/internal/shell"
)

// maxRequestBodyBytes はリクエストボディの上限。
const maxRequestBodyBytes = 64 << 10

// ShellController はハンドラーが操作するシェルのインターフェース。
type ShellController interface {
	Snapshot() shell.Snapshot
	Login(ctx context.Context, username, password string) error
	Signup(ctx context.Context, username, password string) error
	Logout(ctx context.Context)
	ManageClan(ctx context.Context) error
	ReturnToMenu() error
	Spawn(ctx context.Context) error
	LeaveGame() error
	CreateClan(ctx context.Context, name, password string) error
	JoinClan(ctx context.Context, name, password string) error
	LeaveClan(ctx context.Context) error
	DeleteClan(ctx context.Context) error
	RefreshClan(ctx context.Context) error
}

// statusForCode はエラーコードに対応するHTTPステータスを返す。
func statusForCode(code string) int {
	switch code {
	case model.ErrCodeInvalidRequest:
		return http.StatusBadRequest
	case model.ErrCodeLoginFailed, model.ErrCodeNotAuthenticated:
		return http.StatusUnauthorized
	case model.ErrCodeSignupFailed:
		return http.StatusBadRequest
	case model.ErrCodeInvalidTransition, model.ErrCodeClanNotReady,
		model.ErrCodeClanActionDenied, model.ErrCodeConnectionInactive:
		return http.StatusConflict
	case model.ErrCodeUserFetchFailed, model.ErrCodeClanFetchFailed,
		model.ErrCodeClanCreateFailed, model.ErrCodeClanJoinFailed,
		model.ErrCodeClanLeaveFailed, model.ErrCodeClanDeleteFailed,
		model.ErrCodeConnectionFailed:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// writeError はエラーを統一エラーフォーマットで書き込む。
// APIError以外のエラーは内部エラーとして扱い、詳細は返さない。
func writeError(w http.ResponseWriter, err error) {
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) {
		middleware.WriteInternalServerError(w)
		return
	}
	middleware.WriteErrorResponse(w, statusForCode(apiErr.Code), apiErr)
}

// writeJSON はJSONレスポンスを書き込む。
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// decodeJSON はリクエストボディをvにデコードする。未知のフィールドは拒否する。
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return model.NewInvalidRequestError("malformed JSON body")
	}
	return nil
}
