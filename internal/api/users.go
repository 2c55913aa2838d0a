package api

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"time"

	"github.com/learnlink/learnlink-go/internal/model"
	"github.com/learnlink/learnlink-go/internal/transport"
)

// UserService はユーザー/フォロー関連エンドポイントへの呼び出しを提供する。
type UserService struct {
	client *transport.Client
	logger *slog.Logger
}

// cacheBust は中間キャッシュによる古い応答を避けるためのタイムスタンプパラメータ。
// フォロー状態のように鮮度が重要なエンドポイントに付与する。
func cacheBust() string {
	return strconv.FormatInt(time.Now().UnixMilli(), 10)
}

// Profile は指定ユーザーのプロフィールを取得する。
func (s *UserService) Profile(ctx context.Context, userID int64) (*model.UserProfile, error) {
	var out model.UserProfile
	_, err := s.client.R(ctx).
		SetQueryParam("_t", cacheBust()).
		SetResult(&out).
		Get(fmt.Sprintf("/api/users/%d", userID))
	if err != nil {
		s.logger.Error("プロフィール取得に失敗しました",
			slog.Int64("user_id", userID),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("プロフィール取得に失敗しました: %w", transport.Normalize(err))
	}
	return &out, nil
}

// UpdateProfileRequest はプロフィール更新のリクエストボディ。
type UpdateProfileRequest struct {
	Name     string `json:"name,omitempty"`
	Bio      string `json:"bio,omitempty"`
	Location string `json:"location,omitempty"`
}

// UpdateProfile は自分のプロフィールを更新する。
func (s *UserService) UpdateProfile(ctx context.Context, userID int64, req UpdateProfileRequest) (*model.UserProfile, error) {
	var out model.UserProfile
	_, err := s.client.R(ctx).
		SetBody(req).
		SetResult(&out).
		Put(fmt.Sprintf("/api/users/%d", userID))
	if err != nil {
		s.logger.Error("プロフィール更新に失敗しました",
			slog.Int64("user_id", userID),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("プロフィール更新に失敗しました: %w", transport.Normalize(err))
	}
	return &out, nil
}

// UploadProfilePicture はプロフィール画像をmultipartでアップロードする。
func (s *UserService) UploadProfilePicture(ctx context.Context, filename string, file io.Reader) (*model.User, error) {
	var out model.User
	_, err := s.client.R(ctx).
		SetFileReader("file", filename, file).
		SetResult(&out).
		Post("/api/users/profile-picture")
	if err != nil {
		s.logger.Error("プロフィール画像のアップロードに失敗しました",
			slog.String("filename", filename),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("プロフィール画像のアップロードに失敗しました: %w", transport.Normalize(err))
	}
	return &out, nil
}

// Follow は指定ユーザーをフォローする。
func (s *UserService) Follow(ctx context.Context, userID int64) (*model.FollowStatus, error) {
	var out model.FollowStatus
	_, err := s.client.R(ctx).
		SetQueryParam("_t", cacheBust()).
		SetResult(&out).
		Post(fmt.Sprintf("/api/users/%d/follow", userID))
	if err != nil {
		s.logger.Error("フォローに失敗しました",
			slog.Int64("user_id", userID),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("フォローに失敗しました: %w", transport.Normalize(err))
	}
	return &out, nil
}

// Unfollow は指定ユーザーのフォローを解除する。
func (s *UserService) Unfollow(ctx context.Context, userID int64) (*model.FollowStatus, error) {
	var out model.FollowStatus
	_, err := s.client.R(ctx).
		SetQueryParam("_t", cacheBust()).
		SetResult(&out).
		Delete(fmt.Sprintf("/api/users/%d/follow", userID))
	if err != nil {
		s.logger.Error("フォロー解除に失敗しました",
			slog.Int64("user_id", userID),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("フォロー解除に失敗しました: %w", transport.Normalize(err))
	}
	return &out, nil
}

// FollowStatus は専用エンドポイントからフォロー状態を取得する。
// この呼び出しは冪等かつ副作用なしであり、応答はフォロー状態の正として扱われる。
func (s *UserService) FollowStatus(ctx context.Context, userID int64) (*model.FollowStatus, error) {
	var out model.FollowStatus
	_, err := s.client.R(ctx).
		SetQueryParam("_t", cacheBust()).
		SetResult(&out).
		Get(fmt.Sprintf("/api/users/%d/follow/status", userID))
	if err != nil {
		s.logger.Error("フォロー状態の確認に失敗しました",
			slog.Int64("user_id", userID),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("フォロー状態の確認に失敗しました: %w", transport.Normalize(err))
	}
	return &out, nil
}

// Followers は指定ユーザーのフォロワー一覧をページ取得する。
func (s *UserService) Followers(ctx context.Context, userID int64, page, size int) (*model.Page[model.User], error) {
	var out model.Page[model.User]
	_, err := s.client.R(ctx).
		SetQueryParam("page", strconv.Itoa(page)).
		SetQueryParam("size", strconv.Itoa(size)).
		SetResult(&out).
		Get(fmt.Sprintf("/api/users/%d/followers", userID))
	if err != nil {
		s.logger.Error("フォロワー一覧の取得に失敗しました",
			slog.Int64("user_id", userID),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("フォロワー一覧の取得に失敗しました: %w", transport.Normalize(err))
	}
	return &out, nil
}

// Following は指定ユーザーがフォローしているユーザー一覧をページ取得する。
func (s *UserService) Following(ctx context.Context, userID int64, page, size int) (*model.Page[model.User], error) {
	var out model.Page[model.User]
	_, err := s.client.R(ctx).
		SetQueryParam("page", strconv.Itoa(page)).
		SetQueryParam("size", strconv.Itoa(size)).
		SetResult(&out).
		Get(fmt.Sprintf("/api/users/%d/following", userID))
	if err != nil {
		s.logger.Error("フォロー中一覧の取得に失敗しました",
			slog.Int64("user_id", userID),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("フォロー中一覧の取得に失敗しました: %w", transport.Normalize(err))
	}
	return &out, nil
}
