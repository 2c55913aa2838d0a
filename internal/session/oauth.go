package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// OAuthResult はOAuthリダイレクトの処理結果。
type OAuthResult struct {
	// ReturnTo はログイン前に保存されていた戻り先。一度取り出すと消える。
	// 保存されていなければ空。
	ReturnTo string
}

// AuthorizeURL は外部プロバイダの認可開始URLを組み立てる。
// ユーザーはこのURLをブラウザで開き、認可完了後にコールバックへ戻される。
func (m *Manager) AuthorizeURL(baseURL, provider, redirectURI string) string {
	u := strings.TrimRight(baseURL, "/") + "/api/auth/oauth2/authorize/" + provider
	if redirectURI != "" {
		u += "?redirect_uri=" + url.QueryEscape(redirectURI)
	}
	return u
}

// HandleRedirect はOAuthリダイレクトのクエリパラメータを処理する。
// tokenパラメータがあればセッションを確立、errorパラメータがあれば失敗として返す。
// どちらも無い応答は不正なリダイレクトとして扱う。
func (m *Manager) HandleRedirect(ctx context.Context, query url.Values) (*OAuthResult, error) {
	if errMsg := query.Get("error"); errMsg != "" {
		m.setAnonymous()
		return nil, fmt.Errorf("外部プロバイダでの認証に失敗しました: %s", errMsg)
	}

	token := query.Get("token")
	if token == "" {
		m.setAnonymous()
		return nil, errors.New("リダイレクトにトークンが含まれていません")
	}

	if _, err := m.establish(ctx, token); err != nil {
		return nil, err
	}

	return &OAuthResult{ReturnTo: m.store.TakeReturnTo()}, nil
}

// CallbackServer はOAuthリダイレクトを受けるループバックHTTPサーバ。
// 1回のリダイレクトを受信したら結果を返して停止する。
type CallbackServer struct {
	addr    string
	manager *Manager
	logger  *slog.Logger
}

// NewCallbackServer はCallbackServerを生成する。
func NewCallbackServer(addr string, manager *Manager, logger *slog.Logger) *CallbackServer {
	if logger == nil {
		logger = slog.Default()
	}
	return &CallbackServer{addr: addr, manager: manager, logger: logger}
}

// RedirectURI はプロバイダに渡すリダイレクト先URLを返す。
func (s *CallbackServer) RedirectURI() string {
	return "http://" + s.addr + "/oauth2/redirect"
}

// Listen はリダイレクトを1回受信するまで待ち、処理結果を返す。
// ctxのキャンセルで待機を打ち切る。
func (s *CallbackServer) Listen(ctx context.Context) (*OAuthResult, error) {
	type outcome struct {
		result *OAuthResult
		err    error
	}
	done := make(chan outcome, 1)

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get("/oauth2/redirect", func(w http.ResponseWriter, req *http.Request) {
		result, err := s.manager.HandleRedirect(req.Context(), req.URL.Query())
		if err != nil {
			http.Error(w, "認証に失敗しました。ターミナルに戻ってください。", http.StatusBadRequest)
		} else {
			w.Header().Set("Content-Type", "text/plain; charset=utf-8")
			fmt.Fprintln(w, "認証が完了しました。このウィンドウを閉じてターミナルに戻ってください。")
		}
		select {
		case done <- outcome{result: result, err: err}:
		default:
		}
	})

	srv := &http.Server{
		Addr:              s.addr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.logger.Warn("コールバックサーバの停止に失敗しました", slog.String("error", err.Error()))
		}
	}()

	s.logger.Info("OAuthリダイレクトを待機しています", slog.String("addr", s.addr))

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case err := <-errCh:
		return nil, fmt.Errorf("コールバックサーバの起動に失敗しました: %w", err)
	case out := <-done:
		return out.result, out.err
	}
}
