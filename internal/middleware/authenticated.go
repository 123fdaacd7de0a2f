// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"net/http"

	"github.com/hitoshi/vosdos-shell/internal/model"
)

// AuthChecker は現在セッションが確立しているかを判定する。
// シェルの画面状態が Unauthenticated 以外であれば認証済みとみなす。
type AuthChecker interface {
	Authenticated() bool
}

// AuthCheckerFunc は関数をAuthCheckerとして使うためのアダプター。
type AuthCheckerFunc func() bool

// Authenticated はAuthCheckerインターフェースを実装する。
func (f AuthCheckerFunc) Authenticated() bool { return f() }

// NewAuthenticatedMiddleware は認証済みの場合のみ後続のハンドラーを呼ぶミドルウェアを返す。
// 未認証リクエストには401と統一エラーフォーマットを返す。
func NewAuthenticatedMiddleware(checker AuthChecker) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !checker.Authenticated() {
				WriteErrorResponse(w, http.StatusUnauthorized, model.NewNotAuthenticatedError())
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
