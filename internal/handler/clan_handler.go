package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/hitoshi/vosdos-shell/internal/model"
)

// maxClanNameLength はクラン名の最大文字数。
const maxClanNameLength = 64

// clanFormRequest はクラン作成・参加のリクエストボディ。
type clanFormRequest struct {
	Name     string `json:"name"`
	Password string `json:"password"`
}

// ClanHandler はクラン操作のハンドラー。
type ClanHandler struct {
	shell ShellController
	state *StateHandler
}

// NewClanHandler はClanHandlerを生成する。
func NewClanHandler(s ShellController, state *StateHandler) *ClanHandler {
	return &ClanHandler{shell: s, state: state}
}

// CreateClan はクランを作成する。
// POST /api/clan/create
func (h *ClanHandler) CreateClan(w http.ResponseWriter, r *http.Request) {
	h.withForm(w, r, h.shell.CreateClan)
}

// JoinClan はクランに参加する。
// POST /api/clan/join
func (h *ClanHandler) JoinClan(w http.ResponseWriter, r *http.Request) {
	h.withForm(w, r, h.shell.JoinClan)
}

// LeaveClan はクランから脱退する。
// POST /api/clan/leave
func (h *ClanHandler) LeaveClan(w http.ResponseWriter, r *http.Request) {
	h.run(w, r.Context(), h.shell.LeaveClan)
}

// DeleteClan はクランを削除する。
// DELETE /api/clan
func (h *ClanHandler) DeleteClan(w http.ResponseWriter, r *http.Request) {
	h.run(w, r.Context(), h.shell.DeleteClan)
}

// Refresh はユーザーとクランを再取得する。
// POST /api/clan/refresh
func (h *ClanHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	h.run(w, r.Context(), h.shell.RefreshClan)
}

func (h *ClanHandler) withForm(w http.ResponseWriter, r *http.Request, op func(ctx context.Context, name, password string) error) {
	var req clanFormRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		writeError(w, model.NewInvalidRequestError("clan name is required"))
		return
	}
	if len([]rune(name)) > maxClanNameLength {
		writeError(w, model.NewInvalidRequestError("clan name is too long"))
		return
	}
	h.run(w, r.Context(), func(ctx context.Context) error {
		return op(ctx, name, req.Password)
	})
}

func (h *ClanHandler) run(w http.ResponseWriter, ctx context.Context, op func(ctx context.Context) error) {
	if err := op(ctx); err != nil {
		writeError(w, err)
		return
	}
	h.state.writeState(w, http.StatusOK)
}
