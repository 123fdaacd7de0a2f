package handler

import (
	"net/http"

	"github.com/hitoshi/vosdos-shell/internal/clan"
	"github.com/hitoshi/vosdos-shell/internal/middleware"
	"github.com/hitoshi/vosdos-shell/internal/security"
	"github.com/hitoshi/vosdos-shell/internal/shell"
)

// クラン表示の読み込み状態
const (
	clanStatusLoading = "loading"
	clanStatusAbsent  = "absent"
	clanStatusPresent = "present"
	clanStatusError   = "error"
)

// stateResponse は画面状態のAPIレスポンス。
type stateResponse struct {
	View       string                        `json:"view"`
	Message    string                        `json:"message,omitempty"`
	Error      *middleware.ErrorResponseBody `json:"error,omitempty"`
	Clan       *clanViewResponse             `json:"clan,omitempty"`
	Connection *connectionResponse           `json:"connection,omitempty"`
}

// clanViewResponse はクラン管理画面の表示内容。
// 入力中のパスワードは返さない。
type clanViewResponse struct {
	User      string           `json:"user"`
	UserReady bool             `json:"user_ready"`
	Clan      string           `json:"clan"`
	ClanReady bool             `json:"clan_ready"`
	Status    string           `json:"status"`
	IsOwner   bool             `json:"is_owner"`
	Error     string           `json:"error,omitempty"`
	FormName  string           `json:"form_name"`
	Controls  controlsResponse `json:"controls"`
}

type controlsResponse struct {
	Create bool `json:"create"`
	Join   bool `json:"join"`
	Leave  bool `json:"leave"`
	Delete bool `json:"delete"`
}

type connectionResponse struct {
	ID     string `json:"id"`
	State  string `json:"state"`
	Reason string `json:"reason,omitempty"`
}

// StateHandler は画面状態スナップショットを返すハンドラー。
type StateHandler struct {
	shell     ShellController
	sanitizer security.DisplaySanitizer
}

// NewStateHandler はStateHandlerを生成する。
func NewStateHandler(s ShellController, sanitizer security.DisplaySanitizer) *StateHandler {
	return &StateHandler{shell: s, sanitizer: sanitizer}
}

// GetState は現在の画面状態を返す。
// GET /api/state
func (h *StateHandler) GetState(w http.ResponseWriter, r *http.Request) {
	h.writeState(w, http.StatusOK)
}

// writeState は現在の画面状態をstatusで書き込む。各操作ハンドラーからも使う。
func (h *StateHandler) writeState(w http.ResponseWriter, status int) {
	writeJSON(w, status, h.buildState(h.shell.Snapshot()))
}

func (h *StateHandler) buildState(snap shell.Snapshot) stateResponse {
	resp := stateResponse{
		View:    string(snap.View),
		Message: snap.Message,
	}
	if snap.Error != nil {
		body := middleware.NewErrorResponseBody(snap.Error)
		resp.Error = &body
	}
	if snap.Clan != nil {
		resp.Clan = h.buildClanView(*snap.Clan)
	}
	if snap.Connection != nil {
		resp.Connection = &connectionResponse{
			ID:     snap.Connection.ID,
			State:  snap.Connection.State.String(),
			Reason: snap.Connection.Reason,
		}
	}
	return resp
}

func (h *StateHandler) buildClanView(cs clan.Snapshot) *clanViewResponse {
	controls := cs.Controls
	return &clanViewResponse{
		User:      h.sanitizer.Sanitize(cs.DisplayUser()),
		UserReady: cs.UserReady,
		Clan:      h.sanitizer.Sanitize(cs.DisplayClan()),
		ClanReady: cs.ClanReady,
		Status:    clanStatus(cs),
		IsOwner:   cs.IsOwner(),
		Error:     cs.ErrorMessage(),
		FormName:  h.sanitizer.Sanitize(cs.Form.Name),
		Controls: controlsResponse{
			Create: controls.CanCreate,
			Join:   controls.CanJoin,
			Leave:  controls.CanLeave,
			Delete: controls.CanDelete,
		},
	}
}

func clanStatus(cs clan.Snapshot) string {
	switch {
	case !cs.ClanReady:
		return clanStatusLoading
	case cs.Clan.IsPresent():
		return clanStatusPresent
	case cs.Clan.IsError():
		return clanStatusError
	default:
		return clanStatusAbsent
	}
}
