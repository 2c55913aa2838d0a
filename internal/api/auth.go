package api

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/learnlink/learnlink-go/internal/model"
	"github.com/learnlink/learnlink-go/internal/transport"
)

// AuthService は認証エンドポイントへの呼び出しを提供する。
type AuthService struct {
	client *transport.Client
	logger *slog.Logger
}

// LoginRequest はログインエンドポイントのリクエストボディ。
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// SignupRequest はサインアップエンドポイントのリクエストボディ。
type SignupRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Login は資格情報でログインし、アクセストークンを取得する。
func (s *AuthService) Login(ctx context.Context, email, password string) (*model.TokenResponse, error) {
	var out model.TokenResponse
	_, err := s.client.R(ctx).
		SetBody(LoginRequest{Email: email, Password: password}).
		SetResult(&out).
		Post("/api/auth/login")
	if err != nil {
		s.logger.Error("ログインに失敗しました", slog.String("error", err.Error()))
		return nil, fmt.Errorf("ログインに失敗しました: %w", transport.Normalize(err))
	}
	return &out, nil
}

// Signup は新規ユーザーを登録し、アクセストークンを取得する。
func (s *AuthService) Signup(ctx context.Context, req SignupRequest) (*model.TokenResponse, error) {
	var out model.TokenResponse
	_, err := s.client.R(ctx).
		SetBody(req).
		SetResult(&out).
		Post("/api/auth/signup")
	if err != nil {
		s.logger.Error("ユーザー登録に失敗しました", slog.String("error", err.Error()))
		return nil, fmt.Errorf("ユーザー登録に失敗しました: %w", transport.Normalize(err))
	}
	return &out, nil
}

// Me は保存済みトークンに対応する現在のユーザーを取得する。
func (s *AuthService) Me(ctx context.Context) (*model.User, error) {
	var out model.User
	_, err := s.client.R(ctx).
		SetResult(&out).
		Get("/api/auth/me")
	if err != nil {
		s.logger.Error("現在のユーザー取得に失敗しました", slog.String("error", err.Error()))
		return nil, fmt.Errorf("現在のユーザー取得に失敗しました: %w", transport.Normalize(err))
	}
	return &out, nil
}
