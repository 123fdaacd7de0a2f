// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
)

// CredentialKey は認証情報を保存する固定キー。
// ゲームサーバーのセッションヘッダー名と同じ値を使う。
const CredentialKey = "vosdos-session-token"

// CredentialRepository はクライアント側で永続化する認証情報（不透明トークン）のインターフェース。
// 1クライアントにつき保存できる認証情報は1つだけ。
type CredentialRepository interface {
	// Load は保存済みの認証情報を取得する。未保存の場合は ("", false, nil) を返す。
	Load(ctx context.Context) (string, bool, error)

	// Save は認証情報を保存する。既存の値は上書きする。
	Save(ctx context.Context, credential string) error

	// Clear は保存済みの認証情報を削除する。未保存でもエラーにしない。
	Clear(ctx context.Context) error
}
