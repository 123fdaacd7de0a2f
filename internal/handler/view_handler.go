package handler

import "net/http"

// ViewHandler は画面遷移のハンドラー。
type ViewHandler struct {
	shell ShellController
	state *StateHandler
}

// NewViewHandler はViewHandlerを生成する。
func NewViewHandler(s ShellController, state *StateHandler) *ViewHandler {
	return &ViewHandler{shell: s, state: state}
}

// ManageClan はクラン管理画面に遷移する。
// POST /api/view/clan
func (h *ViewHandler) ManageClan(w http.ResponseWriter, r *http.Request) {
	if err := h.shell.ManageClan(r.Context()); err != nil {
		writeError(w, err)
		return
	}
	h.state.writeState(w, http.StatusOK)
}

// ReturnToMenu はクラン管理画面からメニューに戻る。
// POST /api/view/menu
func (h *ViewHandler) ReturnToMenu(w http.ResponseWriter, r *http.Request) {
	if err := h.shell.ReturnToMenu(); err != nil {
		writeError(w, err)
		return
	}
	h.state.writeState(w, http.StatusOK)
}

// Spawn はゲームに入り、リアルタイム接続を開く。
// 接続に失敗した場合も画面はSpawnedのままで、エラーを返す。
// POST /api/view/spawn
func (h *ViewHandler) Spawn(w http.ResponseWriter, r *http.Request) {
	if err := h.shell.Spawn(r.Context()); err != nil {
		writeError(w, err)
		return
	}
	h.state.writeState(w, http.StatusOK)
}

// LeaveGame はゲームから抜けてメニューに戻る。
// POST /api/view/leave_game
func (h *ViewHandler) LeaveGame(w http.ResponseWriter, r *http.Request) {
	if err := h.shell.LeaveGame(); err != nil {
		writeError(w, err)
		return
	}
	h.state.writeState(w, http.StatusOK)
}
