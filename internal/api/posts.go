package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/learnlink/learnlink-go/internal/model"
	"github.com/learnlink/learnlink-go/internal/transport"
)

// 投稿削除はサーバ側の参照整理が間に合わず一時的に失敗することがあるため、
// 少数回だけ再試行する。
const (
	deleteMaxAttempts = 2
	deleteRetryDelay  = time.Second
)

// PostService は投稿とコメント関連エンドポイントへの呼び出しを提供する。
type PostService struct {
	client *transport.Client
	logger *slog.Logger
}

// CreatePostRequest は投稿作成のメタデータ部。multipartの"post"フィールドとして送られる。
type CreatePostRequest struct {
	Content  string `json:"content"`
	Category string `json:"category,omitempty"`
}

// PostFile は投稿に添付するファイル。
type PostFile struct {
	Name   string
	Reader io.Reader
}

// List はフィードの投稿をページ取得する。
func (s *PostService) List(ctx context.Context, page, size int) (*model.Page[model.Post], error) {
	var out model.Page[model.Post]
	_, err := s.client.R(ctx).
		SetQueryParam("page", strconv.Itoa(page)).
		SetQueryParam("size", strconv.Itoa(size)).
		SetResult(&out).
		Get("/api/posts")
	if err != nil {
		s.logger.Error("投稿一覧の取得に失敗しました", slog.String("error", err.Error()))
		return nil, fmt.Errorf("投稿一覧の取得に失敗しました: %w", transport.Normalize(err))
	}
	return &out, nil
}

// Get は単一の投稿を取得する。
func (s *PostService) Get(ctx context.Context, postID int64) (*model.Post, error) {
	var out model.Post
	_, err := s.client.R(ctx).
		SetResult(&out).
		Get(fmt.Sprintf("/api/posts/%d", postID))
	if err != nil {
		s.logger.Error("投稿の取得に失敗しました",
			slog.Int64("post_id", postID),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("投稿の取得に失敗しました: %w", transport.Normalize(err))
	}
	return &out, nil
}

// ByUser は指定ユーザーの投稿をページ取得する。
func (s *PostService) ByUser(ctx context.Context, userID int64, page, size int) (*model.Page[model.Post], error) {
	var out model.Page[model.Post]
	_, err := s.client.R(ctx).
		SetQueryParam("page", strconv.Itoa(page)).
		SetQueryParam("size", strconv.Itoa(size)).
		SetResult(&out).
		Get(fmt.Sprintf("/api/posts/user/%d", userID))
	if err != nil {
		s.logger.Error("ユーザー投稿の取得に失敗しました",
			slog.Int64("user_id", userID),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("ユーザー投稿の取得に失敗しました: %w", transport.Normalize(err))
	}
	return &out, nil
}

// Create は投稿を作成する。本文はJSONとして"post"フィールドに、
// 添付ファイルは"files"フィールドに載せたmultipartで送る。
func (s *PostService) Create(ctx context.Context, req CreatePostRequest, files []PostFile) (*model.Post, error) {
	meta, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("投稿メタデータの組み立てに失敗しました: %w", err)
	}

	r := s.client.R(ctx).
		SetMultipartField("post", "", "application/json", strings.NewReader(string(meta)))
	for _, f := range files {
		r.SetFileReader("files", f.Name, f.Reader)
	}

	var out model.Post
	_, err = r.SetResult(&out).Post("/api/posts")
	if err != nil {
		s.logger.Error("投稿の作成に失敗しました", slog.String("error", err.Error()))
		return nil, fmt.Errorf("投稿の作成に失敗しました: %w", transport.Normalize(err))
	}
	return &out, nil
}

// Update は投稿の本文を更新する。
func (s *PostService) Update(ctx context.Context, postID int64, req CreatePostRequest) (*model.Post, error) {
	var out model.Post
	_, err := s.client.R(ctx).
		SetBody(req).
		SetResult(&out).
		Put(fmt.Sprintf("/api/posts/%d", postID))
	if err != nil {
		s.logger.Error("投稿の更新に失敗しました",
			slog.Int64("post_id", postID),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("投稿の更新に失敗しました: %w", transport.Normalize(err))
	}
	return &out, nil
}

// Delete は投稿を削除する。通知などの参照が残っていてサーバが競合を返す場合は
// 固定間隔で一度だけ再試行し、それでも失敗するなら操作不能エラーを返す。
func (s *PostService) Delete(ctx context.Context, postID int64) error {
	var lastErr error
	for attempt := 1; attempt <= deleteMaxAttempts; attempt++ {
		_, err := s.client.R(ctx).Delete(fmt.Sprintf("/api/posts/%d", postID))
		if err == nil {
			return nil
		}
		lastErr = transport.Normalize(err)

		var apiErr *model.APIError
		if errors.As(lastErr, &apiErr) && !isDeleteConflict(apiErr) {
			// 競合以外の失敗は再試行しても変わらない。
			break
		}
		s.logger.Warn("投稿削除が失敗したため再試行します",
			slog.Int64("post_id", postID),
			slog.Int("attempt", attempt),
			slog.String("error", lastErr.Error()),
		)
		if attempt < deleteMaxAttempts {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(deleteRetryDelay):
			}
		}
	}

	var apiErr *model.APIError
	if errors.As(lastErr, &apiErr) && isDeleteConflict(apiErr) {
		s.logger.Error("投稿を削除できません。参照データが残っています",
			slog.Int64("post_id", postID),
		)
		return model.NewPostDeleteBlockedError(postID)
	}
	s.logger.Error("投稿の削除に失敗しました",
		slog.Int64("post_id", postID),
		slog.String("error", lastErr.Error()),
	)
	return fmt.Errorf("投稿の削除に失敗しました: %w", lastErr)
}

// isDeleteConflict はサーバ側の参照制約による削除失敗かどうかを判定する。
// 明確な409のほか、制約違反をそのまま500で返す実装にも対応する。
func isDeleteConflict(e *model.APIError) bool {
	if e.HTTPStatus == 409 {
		return true
	}
	if e.HTTPStatus == 500 {
		msg := strings.ToLower(e.Message)
		return strings.Contains(msg, "constraint") || strings.Contains(msg, "foreign key")
	}
	return false
}

// ToggleLike は投稿のいいね状態を反転させ、反転後の投稿を返す。
// 応答が最新のいいね数を持つため、呼び出し側はこれで表示を上書きする。
func (s *PostService) ToggleLike(ctx context.Context, postID int64) (*model.Post, error) {
	var out model.Post
	_, err := s.client.R(ctx).
		SetResult(&out).
		Post(fmt.Sprintf("/api/posts/%d/like", postID))
	if err != nil {
		s.logger.Error("いいねの切り替えに失敗しました",
			slog.Int64("post_id", postID),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("いいねの切り替えに失敗しました: %w", transport.Normalize(err))
	}
	return &out, nil
}

// Comments は投稿のコメントをページ取得する。
func (s *PostService) Comments(ctx context.Context, postID int64, page, size int) (*model.Page[model.Comment], error) {
	var out model.Page[model.Comment]
	_, err := s.client.R(ctx).
		SetQueryParam("page", strconv.Itoa(page)).
		SetQueryParam("size", strconv.Itoa(size)).
		SetResult(&out).
		Get(fmt.Sprintf("/api/posts/%d/comments", postID))
	if err != nil {
		s.logger.Error("コメント一覧の取得に失敗しました",
			slog.Int64("post_id", postID),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("コメント一覧の取得に失敗しました: %w", transport.Normalize(err))
	}
	return &out, nil
}

// AddComment は投稿にコメントを追加する。
func (s *PostService) AddComment(ctx context.Context, postID int64, content string) (*model.Comment, error) {
	var out model.Comment
	_, err := s.client.R(ctx).
		SetBody(map[string]string{"content": content}).
		SetResult(&out).
		Post(fmt.Sprintf("/api/posts/%d/comments", postID))
	if err != nil {
		s.logger.Error("コメントの追加に失敗しました",
			slog.Int64("post_id", postID),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("コメントの追加に失敗しました: %w", transport.Normalize(err))
	}
	return &out, nil
}

// UpdateComment はコメントを更新する。
func (s *PostService) UpdateComment(ctx context.Context, postID, commentID int64, content string) (*model.Comment, error) {
	var out model.Comment
	_, err := s.client.R(ctx).
		SetBody(map[string]string{"content": content}).
		SetResult(&out).
		Put(fmt.Sprintf("/api/posts/%d/comments/%d", postID, commentID))
	if err != nil {
		s.logger.Error("コメントの更新に失敗しました",
			slog.Int64("comment_id", commentID),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("コメントの更新に失敗しました: %w", transport.Normalize(err))
	}
	return &out, nil
}

// DeleteComment はコメントを削除する。
func (s *PostService) DeleteComment(ctx context.Context, postID, commentID int64) error {
	_, err := s.client.R(ctx).
		Delete(fmt.Sprintf("/api/posts/%d/comments/%d", postID, commentID))
	if err != nil {
		s.logger.Error("コメントの削除に失敗しました",
			slog.Int64("comment_id", commentID),
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("コメントの削除に失敗しました: %w", transport.Normalize(err))
	}
	return nil
}
