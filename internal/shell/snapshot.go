package shell

import (
	"errors"

	"github.com/hitoshi/vosdos-shell/internal/clan"
	"github.com/hitoshi/vosdos-shell/internal/model"
	"github.com/hitoshi/vosdos-shell/internal/realtime"
)

// ConnectionInfo はSpawned状態の接続の情報。
type ConnectionInfo struct {
	ID     string
	State  realtime.State
	Reason string
}

// Snapshot はShell全体の状態のコピー。
type Snapshot struct {
	View    View
	Message string
	Error   *model.APIError
	// Clan はManagingClanのときのみ非nil
	Clan *clan.Snapshot
	// Connection はSpawnedのときのみ非nil
	Connection *ConnectionInfo
}

// Snapshot は現在の状態のコピーを返す。
func (s *Shell) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot{
		View:    s.view,
		Message: s.message,
		Error:   s.authErr,
	}
	if s.view == ViewManagingClan && s.coordinator != nil {
		cs := s.coordinator.Snapshot()
		snap.Clan = &cs
	}
	if s.view == ViewSpawned && s.conn != nil {
		snap.Connection = &ConnectionInfo{
			ID:     s.conn.ID(),
			State:  s.conn.State(),
			Reason: s.conn.Reason(),
		}
	}
	return snap
}

// asAPIError はエラーをAPIErrorに変換する。変換できない場合はfallbackを返す。
func asAPIError(err error, fallback *model.APIError) *model.APIError {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}
	return fallback
}
