package handler

import (
	"net/http"

	"github.com/hitoshi/vosdos-shell/internal/model"
)

// credentialsRequest はログイン・サインアップのリクエストボディ。
type credentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// AuthHandler はログイン・サインアップ・ログアウトのハンドラー。
type AuthHandler struct {
	shell ShellController
	state *StateHandler
}

// NewAuthHandler はAuthHandlerを生成する。
func NewAuthHandler(s ShellController, state *StateHandler) *AuthHandler {
	return &AuthHandler{shell: s, state: state}
}

// Login はログインする。
// POST /api/auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeCredentials(w, r)
	if !ok {
		return
	}
	if err := h.shell.Login(r.Context(), req.Username, req.Password); err != nil {
		writeError(w, err)
		return
	}
	h.state.writeState(w, http.StatusOK)
}

// Signup はアカウントを作成する。成功してもログインはしない。
// POST /api/auth/signup
func (h *AuthHandler) Signup(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeCredentials(w, r)
	if !ok {
		return
	}
	if err := h.shell.Signup(r.Context(), req.Username, req.Password); err != nil {
		writeError(w, err)
		return
	}
	h.state.writeState(w, http.StatusCreated)
}

// Logout はどの画面からでもログアウトする。常に成功する。
// POST /api/auth/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	h.shell.Logout(r.Context())
	h.state.writeState(w, http.StatusOK)
}

func (h *AuthHandler) decodeCredentials(w http.ResponseWriter, r *http.Request) (credentialsRequest, bool) {
	var req credentialsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return req, false
	}
	if req.Username == "" || req.Password == "" {
		writeError(w, model.NewInvalidRequestError("username and password are required"))
		return req, false
	}
	return req, true
}
