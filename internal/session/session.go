// Package session は認証セッションのライフサイクルを管理する。
// トークンの保存・復元、ログイン・ログアウト、OAuthリダイレクトの処理を担い、
// 「トークンが保存されているときに限り認証済み」という不変条件を維持する。
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/learnlink/learnlink-go/internal/api"
	"github.com/learnlink/learnlink-go/internal/credentials"
	"github.com/learnlink/learnlink-go/internal/model"
)

// State はセッションの状態。
type State int

const (
	// StateLoading は復元処理中でまだ確定していない状態。
	StateLoading State = iota
	// StateAnonymous は未認証状態。
	StateAnonymous
	// StateAuthenticated は認証済み状態。Userが利用可能。
	StateAuthenticated
)

// String はログ出力用の状態名を返す。
func (s State) String() string {
	switch s {
	case StateLoading:
		return "loading"
	case StateAnonymous:
		return "anonymous"
	case StateAuthenticated:
		return "authenticated"
	default:
		return "unknown"
	}
}

// Manager はセッション状態とその遷移を管理する。
// 全メソッドは複数goroutineから安全に呼び出せる。
type Manager struct {
	auth   *api.AuthService
	store  credentials.Store
	logger *slog.Logger

	mu    sync.RWMutex
	state State
	user  *model.User
}

// NewManager はManagerを生成する。初期状態はStateLoading。
func NewManager(auth *api.AuthService, store credentials.Store, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		auth:   auth,
		store:  store,
		logger: logger,
		state:  StateLoading,
	}
}

// State は現在のセッション状態を返す。
func (m *Manager) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// User は認証済みユーザーを返す。未認証ならnil。
func (m *Manager) User() *model.User {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.user
}

// Restore は保存済みトークンからセッションを復元する。
// トークンがない、期限切れ、またはユーザー取得に失敗した場合は
// トークンを破棄して未認証状態に確定する。復元の失敗はエラーではない。
func (m *Manager) Restore(ctx context.Context) error {
	token, ok := m.store.Token()
	if !ok {
		m.setAnonymous()
		return nil
	}

	if credentials.TokenExpired(token) {
		m.logger.Info("保存済みトークンの有効期限が切れています。セッションを破棄します")
		if err := m.store.Clear(); err != nil {
			m.logger.Error("トークンの破棄に失敗しました", slog.String("error", err.Error()))
		}
		m.setAnonymous()
		return nil
	}

	user, err := m.auth.Me(ctx)
	if err != nil {
		// ネットワーク障害でもトークンを破棄して未認証に倒す。
		// 古いトークンを持ち続けるより再ログインを促す方が安全。
		m.logger.Warn("セッション復元時のユーザー取得に失敗しました",
			slog.String("error", err.Error()),
		)
		if clearErr := m.store.Clear(); clearErr != nil {
			m.logger.Error("トークンの破棄に失敗しました", slog.String("error", clearErr.Error()))
		}
		m.setAnonymous()
		return nil
	}

	m.setAuthenticated(user)
	m.logger.Info("セッションを復元しました",
		slog.Int64("user_id", user.ID),
	)
	return nil
}

// Login は資格情報でログインし、トークンを保存してセッションを確立する。
// トークン保存後のユーザー取得に失敗した場合はトークンを破棄して
// 「トークンあり・未認証」という中間状態を残さない。
func (m *Manager) Login(ctx context.Context, email, password string) (*model.User, error) {
	tok, err := m.auth.Login(ctx, email, password)
	if err != nil {
		m.setAnonymous()
		return nil, err
	}
	return m.establish(ctx, tok.AccessToken)
}

// Register は新規ユーザーを登録し、そのままセッションを確立する。
func (m *Manager) Register(ctx context.Context, name, email, password string) (*model.User, error) {
	tok, err := m.auth.Signup(ctx, api.SignupRequest{Name: name, Email: email, Password: password})
	if err != nil {
		m.setAnonymous()
		return nil, err
	}
	return m.establish(ctx, tok.AccessToken)
}

// establish はトークンを保存し、対応するユーザーを取得して認証済み状態へ遷移する。
func (m *Manager) establish(ctx context.Context, accessToken string) (*model.User, error) {
	if accessToken == "" {
		m.setAnonymous()
		return nil, errors.New("サーバーがアクセストークンを返しませんでした")
	}
	if err := m.store.SaveToken(accessToken); err != nil {
		m.setAnonymous()
		return nil, fmt.Errorf("トークンの保存に失敗しました: %w", err)
	}

	user, err := m.auth.Me(ctx)
	if err != nil {
		if clearErr := m.store.Clear(); clearErr != nil {
			m.logger.Error("トークンの破棄に失敗しました", slog.String("error", clearErr.Error()))
		}
		m.setAnonymous()
		return nil, fmt.Errorf("ログイン後のユーザー取得に失敗しました: %w", err)
	}

	m.setAuthenticated(user)
	return user, nil
}

// Logout はトークンを破棄して未認証状態へ遷移する。
// サーバー側セッションはステートレスなJWTのためクライアント側破棄のみで完結する。
func (m *Manager) Logout() error {
	err := m.store.Clear()
	m.setAnonymous()
	if err != nil {
		return fmt.Errorf("トークンの破棄に失敗しました: %w", err)
	}
	m.logger.Info("ログアウトしました")
	return nil
}

// Expire はトランスポート層のセッション失効フックから呼ばれる。
// トークンは既に破棄されているため、状態のみ未認証へ遷移させる。
func (m *Manager) Expire() {
	m.logger.Warn("セッションが失効しました。再ログインが必要です")
	m.setAnonymous()
}

func (m *Manager) setAnonymous() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = StateAnonymous
	m.user = nil
}

func (m *Manager) setAuthenticated(user *model.User) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = StateAuthenticated
	m.user = user
}
