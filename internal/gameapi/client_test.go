package gameapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/time/rate"

	"github.com/hitoshi/vosdos-shell/internal/metrics"
)

func newTestLogger(buf *bytes.Buffer) *slog.Logger {
	return slog.New(slog.NewJSONHandler(buf, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
}

func newTestClient(t *testing.T, handler http.HandlerFunc, opts ...Option) (*Client, *bytes.Buffer) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	var buf bytes.Buffer
	return NewClient(server.Client(), newTestLogger(&buf), server.URL, opts...), &buf
}

func TestNewClient_ReturnsNonNil(t *testing.T) {
	var buf bytes.Buffer
	c := NewClient(http.DefaultClient, newTestLogger(&buf), "http://localhost:8080/")
	if c == nil {
		t.Fatal("NewClient は nil を返してはならない")
	}
	if c.baseURL != "http://localhost:8080" {
		t.Errorf("baseURL = %q, want 末尾スラッシュなし", c.baseURL)
	}
}

func TestClient_VerifySession_SendsCredentialHeader(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			t.Errorf("HTTPメソッド = %s, want GET", r.Method)
		}
		if r.URL.Path != PathVerifySession {
			t.Errorf("パス = %s, want %s", r.URL.Path, PathVerifySession)
		}
		if got := r.Header.Get("vosdos-session-token"); got != "tok123" {
			t.Errorf("セッションヘッダー = %q, want tok123", got)
		}
		if r.Header.Get(RequestIDHeader) == "" {
			t.Error("リクエストIDヘッダーが設定されていない")
		}
		w.WriteHeader(http.StatusOK)
	})

	if err := c.VerifySession(context.Background(), "tok123"); err != nil {
		t.Fatalf("VerifySession がエラーを返した: %v", err)
	}
}

func TestClient_VerifySession_Non2xxIsInvalid(t *testing.T) {
	for _, code := range []int{http.StatusBadRequest, http.StatusUnauthorized, http.StatusInternalServerError} {
		c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(code)
		})

		err := c.VerifySession(context.Background(), "tok123")
		if err == nil {
			t.Fatalf("status %d: VerifySession should fail", code)
		}
		if StatusCode(err) != code {
			t.Errorf("StatusCode(err) = %d, want %d", StatusCode(err), code)
		}
	}
}

func TestClient_VerifySession_TransportErrorIsInvalid(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	var buf bytes.Buffer
	c := NewClient(http.DefaultClient, newTestLogger(&buf), url)

	if err := c.VerifySession(context.Background(), "tok123"); err == nil {
		t.Fatal("接続できないサーバーへの検証はエラーであるべき")
	}
	if !strings.Contains(buf.String(), "ゲームサーバーAPIの呼び出しに失敗しました") {
		t.Errorf("通信エラーがログに出力されていない: %s", buf.String())
	}
}

func TestClient_VerifySession_EmptyCredential(t *testing.T) {
	var called atomic.Bool
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		called.Store(true)
	})

	if err := c.VerifySession(context.Background(), ""); !errors.Is(err, ErrNoCredential) {
		t.Errorf("err = %v, want ErrNoCredential", err)
	}
	if called.Load() {
		t.Error("認証情報なしでサーバーを呼び出してはならない")
	}
}

func TestClient_Login_ReturnsTrimmedBody(t *testing.T) {
	c, buf := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != PathLogin {
			t.Errorf("リクエスト = %s %s, want POST %s", r.Method, r.URL.Path, PathLogin)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("Content-Type = %q, want application/json", ct)
		}
		var body map[string]string
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("リクエストボディのデコードに失敗: %v", err)
		}
		if body["username"] != "alice" || body["password"] != "pw" {
			t.Errorf("body = %v", body)
		}
		w.WriteHeader(http.StatusCreated)
		io.WriteString(w, "tok123\n")
	})

	credential, err := c.Login(context.Background(), "alice", "pw")
	if err != nil {
		t.Fatalf("Login がエラーを返した: %v", err)
	}
	if credential != "tok123" {
		t.Errorf("credential = %q, want tok123", credential)
	}
	if strings.Contains(buf.String(), "tok123") {
		t.Error("認証情報がログに出力されてはならない")
	}
}

func TestClient_Login_EmptyBodyIsFailure(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	_, err := c.Login(context.Background(), "alice", "pw")
	if !errors.Is(err, ErrEmptyCredential) {
		t.Errorf("err = %v, want ErrEmptyCredential", err)
	}
}

func TestClient_Login_Unauthorized(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "invalid credentials", http.StatusUnauthorized)
	})

	credential, err := c.Login(context.Background(), "alice", "bad")
	if err == nil {
		t.Fatal("401 のログインはエラーであるべき")
	}
	if credential != "" {
		t.Errorf("credential = %q, want empty", credential)
	}
}

func TestClient_Signup(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != PathSignup {
			t.Errorf("パス = %s, want %s", r.URL.Path, PathSignup)
		}
		if r.Header.Get("vosdos-session-token") != "" {
			t.Error("signup に認証ヘッダーを付けてはならない")
		}
		w.WriteHeader(http.StatusCreated)
	})

	if err := c.Signup(context.Background(), "alice", "pw"); err != nil {
		t.Fatalf("Signup がエラーを返した: %v", err)
	}
}

func TestClient_CurrentUser(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"id":1,"username":"a"}`)
	})

	user, err := c.CurrentUser(context.Background(), "tok123")
	if err != nil {
		t.Fatalf("CurrentUser がエラーを返した: %v", err)
	}
	if user.ID != 1 || user.Username != "a" {
		t.Errorf("user = %+v, want {1 a}", user)
	}
}

func TestClient_CurrentUser_InvalidJSON(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `not json`)
	})

	if _, err := c.CurrentUser(context.Background(), "tok123"); err == nil {
		t.Fatal("不正なJSONはエラーであるべき")
	}
}

func TestClient_CurrentClan_Present(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"id":5,"name":"foo","owner_id":1}`)
	})

	result, err := c.CurrentClan(context.Background(), "tok123")
	if err != nil {
		t.Fatalf("CurrentClan がエラーを返した: %v", err)
	}
	if !result.IsPresent() {
		t.Fatalf("Kind = %v, want present", result.Kind)
	}
	if result.Clan.ID != 5 || result.Clan.Name != "foo" || result.Clan.OwnerID != 1 {
		t.Errorf("clan = %+v", result.Clan)
	}
}

func TestClient_CurrentClan_417IsAbsent(t *testing.T) {
	c, buf := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "player is not in a clan", StatusNoClan)
	})

	result, err := c.CurrentClan(context.Background(), "tok123")
	if err != nil {
		t.Fatalf("417 はエラーではない: %v", err)
	}
	if !result.IsAbsent() {
		t.Errorf("Kind = %v, want absent", result.Kind)
	}
	if result.Clan != nil || result.Reason != "" {
		t.Errorf("absent の結果にクランや理由を含めてはならない: %+v", result)
	}
	if strings.Contains(buf.String(), `"level":"WARN"`) || strings.Contains(buf.String(), `"level":"ERROR"`) {
		t.Errorf("417 を警告/エラーとしてログ出力してはならない: %s", buf.String())
	}
}

func TestClient_CurrentClan_OtherStatusIsError(t *testing.T) {
	for _, code := range []int{http.StatusBadRequest, http.StatusUnauthorized, http.StatusNotFound, http.StatusInternalServerError} {
		c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(code)
		})

		result, err := c.CurrentClan(context.Background(), "tok123")
		if err == nil {
			t.Errorf("status %d: err should be non-nil", code)
		}
		if !result.IsError() {
			t.Errorf("status %d: Kind = %v, want error", code, result.Kind)
		}
		if result.Clan != nil {
			t.Errorf("status %d: error の結果にクランを含めてはならない", code)
		}
		if result.Reason == "" {
			t.Errorf("status %d: 失敗理由が空", code)
		}
	}
}

func TestClient_ClanMutations_MethodsAndBodies(t *testing.T) {
	type seen struct {
		method string
		path   string
		body   string
	}
	var got []seen
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		got = append(got, seen{r.Method, r.URL.Path, string(b)})
		if r.Header.Get("vosdos-session-token") != "tok123" {
			t.Errorf("%s: セッションヘッダーがない", r.URL.Path)
		}
		w.WriteHeader(http.StatusOK)
	})

	ctx := context.Background()
	if err := c.CreateClan(ctx, "tok123", "foo", "pw"); err != nil {
		t.Fatalf("CreateClan: %v", err)
	}
	if err := c.JoinClan(ctx, "tok123", "bar", "pw2"); err != nil {
		t.Fatalf("JoinClan: %v", err)
	}
	if err := c.LeaveClan(ctx, "tok123"); err != nil {
		t.Fatalf("LeaveClan: %v", err)
	}
	if err := c.DeleteClan(ctx, "tok123"); err != nil {
		t.Fatalf("DeleteClan: %v", err)
	}

	want := []seen{
		{http.MethodPost, PathClanCreate, `{"name":"foo","password":"pw"}`},
		{http.MethodPost, PathClanJoin, `{"name":"bar","password":"pw2"}`},
		{http.MethodPost, PathClanLeave, ""},
		{http.MethodDelete, PathClanDelete, ""},
	}
	if len(got) != len(want) {
		t.Fatalf("リクエスト数 = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("request[%d] = %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestClient_ClanMutation_Failure(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "clan exists", http.StatusConflict)
	})

	err := c.CreateClan(context.Background(), "tok123", "foo", "pw")
	if StatusCode(err) != http.StatusConflict {
		t.Errorf("StatusCode(err) = %d, want 409", StatusCode(err))
	}
}

func TestClient_CustomSessionHeader(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("x-session") != "tok123" {
			t.Errorf("カスタムヘッダーに認証情報がない")
		}
		w.WriteHeader(http.StatusOK)
	}, WithSessionHeader("x-session"))

	if err := c.VerifySession(context.Background(), "tok123"); err != nil {
		t.Fatalf("VerifySession: %v", err)
	}
}

func TestClient_RecordsMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	collector := metrics.NewCollector(reg)

	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(StatusNoClan)
	}, WithMetrics(collector))

	if _, err := c.CurrentClan(context.Background(), "tok123"); err != nil {
		t.Fatalf("CurrentClan: %v", err)
	}

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}

	found := false
	for _, mf := range families {
		if mf.GetName() != "vosdos_shell_api_requests_total" {
			continue
		}
		for _, m := range mf.GetMetric() {
			labels := map[string]string{}
			for _, lp := range m.GetLabel() {
				labels[lp.GetName()] = lp.GetValue()
			}
			if labels["endpoint"] == PathCurrentClan && labels["status_code"] == "417" {
				found = true
				if v := m.GetCounter().GetValue(); v != 1 {
					t.Errorf("api_requests_total = %v, want 1", v)
				}
			}
		}
	}
	if !found {
		t.Error("current_clan 417 のメトリクスが記録されていない")
	}
}

func TestClient_RateLimiterHonoursContext(t *testing.T) {
	limiter := rate.NewLimiter(rate.Limit(0.001), 1)
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}, WithRateLimiter(limiter))

	ctx := context.Background()
	if err := c.VerifySession(ctx, "tok123"); err != nil {
		t.Fatalf("1回目はバースト内で成功するべき: %v", err)
	}

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	if err := c.VerifySession(cancelled, "tok123"); err == nil {
		t.Error("キャンセル済みコンテキストでレート制限待ちはエラーになるべき")
	}
}
