package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/hitoshi/vosdos-shell/internal/database"
)

// SQLCredentialRepo はclient_stateテーブルを使用した認証情報リポジトリ。
// PostgreSQLとSQLiteの両方で動作する。
type SQLCredentialRepo struct {
	db      *sql.DB
	dialect database.Dialect
	key     string
}

// NewSQLCredentialRepo はSQLCredentialRepoを生成する。
func NewSQLCredentialRepo(db *sql.DB, dialect database.Dialect) *SQLCredentialRepo {
	return &SQLCredentialRepo{db: db, dialect: dialect, key: CredentialKey}
}

// Load は保存済みの認証情報を取得する。
func (r *SQLCredentialRepo) Load(ctx context.Context) (string, bool, error) {
	var value string
	err := r.db.QueryRowContext(ctx,
		fmt.Sprintf(`SELECT value FROM client_state WHERE state_key = %s`, r.dialect.Placeholder(1)),
		r.key,
	).Scan(&value)

	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to load credential: %w", err)
	}
	if value == "" {
		return "", false, nil
	}

	return value, true, nil
}

// Save は認証情報を保存する（UPSERT）。
func (r *SQLCredentialRepo) Save(ctx context.Context, credential string) error {
	if credential == "" {
		return fmt.Errorf("credential must not be empty")
	}

	p := r.dialect.Placeholder
	_, err := r.db.ExecContext(ctx,
		fmt.Sprintf(`INSERT INTO client_state (state_key, value, updated_at)
		 VALUES (%s, %s, %s)
		 ON CONFLICT (state_key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
			p(1), p(2), p(3)),
		r.key, credential, time.Now().UTC().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("failed to save credential: %w", err)
	}
	return nil
}

// Clear は保存済みの認証情報を削除する。
func (r *SQLCredentialRepo) Clear(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx,
		fmt.Sprintf(`DELETE FROM client_state WHERE state_key = %s`, r.dialect.Placeholder(1)),
		r.key,
	)
	if err != nil {
		return fmt.Errorf("failed to clear credential: %w", err)
	}
	return nil
}
