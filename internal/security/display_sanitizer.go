// Package security はアプリケーションのセキュリティ機能を提供する。
//
// DisplaySanitizer はゲームサーバーから受け取った表示用文字列（ユーザー名、クラン名）から
// HTMLを取り除き、描画側がそのまま埋め込んでも安全な文字列にする。
package security

import (
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// DisplaySanitizer は表示用文字列のサニタイズ機能のインターフェース。
type DisplaySanitizer interface {
	// Sanitize はタグをすべて除去し、HTML特殊文字をエスケープした文字列を返す。
	// 前後の空白は取り除く。同一入力に対して常に同一出力を返す。
	Sanitize(text string) string
}

// displaySanitizer はDisplaySanitizerの実装。
// bluemondayのStrictPolicyを保持し、スレッドセーフに処理する。
type displaySanitizer struct {
	policy *bluemonday.Policy
}

// NewDisplaySanitizer はDisplaySanitizerの新しいインスタンスを生成する。
func NewDisplaySanitizer() *displaySanitizer {
	return &displaySanitizer{
		policy: bluemonday.StrictPolicy(),
	}
}

// Sanitize はタグを除去した表示用文字列を返す。
func (s *displaySanitizer) Sanitize(text string) string {
	if text == "" {
		return ""
	}
	return strings.TrimSpace(s.policy.Sanitize(text))
}
