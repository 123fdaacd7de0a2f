package model

// User はゲームサーバーが認証済みセッションに対して返すユーザーを表す。
// サーバーが唯一の正であり、クライアント側で書き換えることはない。
type User struct {
	ID       uint   `json:"id"`
	Username string `json:"username"`
}

// Clan はプレイヤーのグループ（クラン）を表す。
// OwnerIDは所有ユーザーのIDを指す。
type Clan struct {
	ID      uint   `json:"id"`
	Name    string `json:"name"`
	OwnerID uint   `json:"owner_id"`
}

// IsOwnedBy はユーザーがクランの所有者かどうかを返す。
func (c *Clan) IsOwnedBy(u *User) bool {
	if c == nil || u == nil {
		return false
	}
	return c.OwnerID == u.ID
}
