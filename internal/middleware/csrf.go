package middleware

import (
	"log/slog"
	"mime"
	"net/http"

	"github.com/hitoshi/vosdos-shell/internal/model"
)

// NewCSRFMiddleware はブラウザからのクロスサイト状態変更を拒否するミドルウェアを返す。
// 状態変更メソッド（POST, PUT, PATCH, DELETE）は以下を満たす必要がある。
//   - Originヘッダーがある場合は allowedOrigin と一致すること
//   - ボディを持つ場合は Content-Type が application/json であること
//
// application/json はCORSプリフライトを必要とするため、単純なフォーム送信では到達できない。
func NewCSRFMiddleware(logger *slog.Logger, allowedOrigin string) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if isSafeMethod(r.Method) {
				next.ServeHTTP(w, r)
				return
			}

			if origin := r.Header.Get("Origin"); origin != "" && origin != allowedOrigin {
				logger.Warn("CSRF validation failed: origin mismatch",
					slog.String("method", r.Method),
					slog.String("path", r.URL.Path),
					slog.String("origin", origin),
				)
				WriteErrorResponse(w, http.StatusForbidden, model.NewInvalidRequestError("origin not allowed"))
				return
			}

			if r.ContentLength != 0 && !isJSONContentType(r.Header.Get("Content-Type")) {
				logger.Warn("CSRF validation failed: content type",
					slog.String("method", r.Method),
					slog.String("path", r.URL.Path),
				)
				WriteErrorResponse(w, http.StatusUnsupportedMediaType, model.NewInvalidRequestError("content type must be application/json"))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// isSafeMethod はHTTPメソッドが安全（読み取り専用）かどうかを判定する。
func isSafeMethod(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return true
	default:
		return false
	}
}

func isJSONContentType(v string) bool {
	mt, _, err := mime.ParseMediaType(v)
	return err == nil && mt == "application/json"
}
