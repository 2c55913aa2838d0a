package app

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/learnlink/learnlink-go/internal/api"
	"github.com/learnlink/learnlink-go/internal/config"
	"github.com/learnlink/learnlink-go/internal/credentials"
	"github.com/learnlink/learnlink-go/internal/logger"
	"github.com/learnlink/learnlink-go/internal/model"
	"github.com/learnlink/learnlink-go/internal/session"
	"github.com/learnlink/learnlink-go/internal/transport"
)

// writeJSON はContent-Typeを付けてJSON応答を書き込む。
func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func newTestApp(t *testing.T, handler http.Handler) (*App, *bytes.Buffer) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	store := credentials.NewMemoryStore()
	log := logger.Setup(io.Discard, slog.LevelError)
	client := transport.New(transport.Options{
		BaseURL:           srv.URL,
		Timeout:           5 * time.Second,
		RequestsPerMinute: 6000,
		Store:             store,
		Logger:            log,
	})
	a := api.New(client, log)
	sess := session.NewManager(a.Auth, store, log)
	client.SetOnSessionExpired(sess.Expire)

	out := &bytes.Buffer{}
	return &App{
		cfg: &config.Config{
			BaseURL:      srv.URL,
			PollInterval: time.Minute,
		},
		logger:  log,
		api:     a,
		client:  client,
		session: sess,
		store:   store,
		out:     out,
	}, out
}

// makeAuthedJWT は有効期限付きの署名なしJWTを返す。
func makeAuthedJWT(t *testing.T) string {
	t.Helper()
	header := base64.RawURLEncoding.EncodeToString([]byte(`{"alg":"none","typ":"JWT"}`))
	payload, err := json.Marshal(map[string]any{"sub": "1", "exp": time.Now().Add(time.Hour).Unix()})
	if err != nil {
		t.Fatalf("クレームの組み立てに失敗した: %v", err)
	}
	return header + "." + base64.RawURLEncoding.EncodeToString(payload) + "."
}

func TestApp_GuardRejectsAnonymous(t *testing.T) {
	a, _ := newTestApp(t, http.NewServeMux())

	guarded := []struct {
		name string
		cmd  Command
		args []string
	}{
		{name: "whoami", cmd: CommandWhoami},
		{name: "feed", cmd: CommandFeed},
		{name: "profile", cmd: CommandProfile, args: []string{"42"}},
		{name: "follow", cmd: CommandFollow, args: []string{"42"}},
		{name: "notifications", cmd: CommandNotifications},
		{name: "search", cmd: CommandSearch, args: []string{"go"}},
		{name: "analytics", cmd: CommandAnalytics},
		{name: "activity", cmd: CommandActivity, args: []string{"42"}},
	}
	for _, tt := range guarded {
		t.Run(tt.name, func(t *testing.T) {
			err := a.Dispatch(context.Background(), tt.cmd, tt.args)
			if !errors.Is(err, ErrLoginRequired) {
				t.Errorf("未認証での %s のエラー = %v, want ErrLoginRequired", tt.name, err)
			}
		})
	}
}

func TestApp_GuardSavesInterruptedCommand(t *testing.T) {
	a, _ := newTestApp(t, http.NewServeMux())

	err := a.Dispatch(context.Background(), CommandProfile, []string{"42"})
	if !errors.Is(err, ErrLoginRequired) {
		t.Fatalf("未認証でのエラー = %v, want ErrLoginRequired", err)
	}
	// 中断したコマンドが戻り先として保存され、一度だけ取り出せること。
	if got := a.store.TakeReturnTo(); got != "profile 42" {
		t.Errorf("TakeReturnTo = %q, want %q", got, "profile 42")
	}
	if got := a.store.TakeReturnTo(); got != "" {
		t.Errorf("2回目の TakeReturnTo = %q, want 空", got)
	}
}

func TestApp_LoginThenWhoami(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/auth/login", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, model.TokenResponse{AccessToken: makeAuthedJWT(t), TokenType: "Bearer"})
	})
	mux.HandleFunc("GET /api/auth/me", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, model.User{ID: 1, Name: "太郎", Email: "taro@example.com"})
	})
	a, out := newTestApp(t, mux)

	if err := a.Dispatch(context.Background(), CommandLogin, []string{"taro@example.com", "pw"}); err != nil {
		t.Fatalf("login がエラーを返した: %v", err)
	}
	if !strings.Contains(out.String(), "ログインしました") {
		t.Errorf("ログイン出力が見つからない: %q", out.String())
	}

	out.Reset()
	if err := a.Dispatch(context.Background(), CommandWhoami, nil); err != nil {
		t.Fatalf("whoami がエラーを返した: %v", err)
	}
	if !strings.Contains(out.String(), "太郎") {
		t.Errorf("whoami 出力にユーザー名が含まれない: %q", out.String())
	}
}

func TestApp_FeedRendersSanitizedContent(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/auth/me", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, model.User{ID: 1, Name: "太郎"})
	})
	mux.HandleFunc("GET /api/posts", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, model.Page[model.Post]{
			Content: []model.Post{{
				ID:      1,
				Content: `<script>alert(1)</script>Goの勉強`,
				Author:  &model.User{Name: "花子"},
			}},
			TotalPages:    1,
			TotalElements: 1,
		})
	})
	a, out := newTestApp(t, mux)
	_ = a.store.SaveToken(makeAuthedJWT(t))

	if err := a.Dispatch(context.Background(), CommandFeed, nil); err != nil {
		t.Fatalf("feed がエラーを返した: %v", err)
	}
	got := out.String()
	if strings.Contains(got, "<script>") {
		t.Errorf("出力にHTMLタグが残っている: %q", got)
	}
	if !strings.Contains(got, "Goの勉強") {
		t.Errorf("出力に本文が含まれない: %q", got)
	}
}

func TestApp_SessionExpiredClearsState(t *testing.T) {
	// クリティカルエンドポイントでの401はセッションを失効させ、
	// 後続の認証必須コマンドはログイン要求になること。
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/auth/me", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, model.User{ID: 1, Name: "太郎"})
	})
	mux.HandleFunc("GET /api/posts", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})
	a, _ := newTestApp(t, mux)
	_ = a.store.SaveToken(makeAuthedJWT(t))

	err := a.Dispatch(context.Background(), CommandFeed, nil)
	if !errors.Is(err, model.ErrSessionExpired) {
		t.Fatalf("feed のエラー = %v, want ErrSessionExpired", err)
	}
	// トークンは破棄済みのため、次の認証必須コマンドはログイン要求になる。
	if err := a.Dispatch(context.Background(), CommandWhoami, nil); !errors.Is(err, ErrLoginRequired) {
		t.Errorf("失効後の whoami のエラー = %v, want ErrLoginRequired", err)
	}
}

func TestRun_HelpWithoutConfig(t *testing.T) {
	out := &bytes.Buffer{}
	if err := Run(out, nil); err != nil {
		t.Fatalf("Run がエラーを返した: %v", err)
	}
	if !strings.Contains(out.String(), "使い方") {
		t.Errorf("使い方が出力されない: %q", out.String())
	}
}
