package api

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/learnlink/learnlink-go/internal/model"
	"github.com/learnlink/learnlink-go/internal/transport"
)

// SearchService は検索エンドポイントへの呼び出しを提供する。
type SearchService struct {
	client *transport.Client
	logger *slog.Logger
}

// GlobalResult は横断検索の結果。
type GlobalResult struct {
	Users         []model.User         `json:"users"`
	Posts         []model.Post         `json:"posts"`
	LearningPlans []model.LearningPlan `json:"learningPlans"`
}

// Global は全種別を横断して検索する。
func (s *SearchService) Global(ctx context.Context, query string) (*GlobalResult, error) {
	var out GlobalResult
	_, err := s.client.R(ctx).
		SetQueryParam("query", query).
		SetResult(&out).
		Get("/api/search")
	if err != nil {
		s.logger.Error("検索に失敗しました",
			slog.String("query", query),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("検索に失敗しました: %w", transport.Normalize(err))
	}
	return &out, nil
}

// Users はユーザーを検索する。
func (s *SearchService) Users(ctx context.Context, query string, page, size int) (*model.Page[model.User], error) {
	var out model.Page[model.User]
	_, err := s.client.R(ctx).
		SetQueryParam("query", query).
		SetQueryParam("page", strconv.Itoa(page)).
		SetQueryParam("size", strconv.Itoa(size)).
		SetResult(&out).
		Get("/api/search/users")
	if err != nil {
		s.logger.Error("ユーザー検索に失敗しました",
			slog.String("query", query),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("ユーザー検索に失敗しました: %w", transport.Normalize(err))
	}
	return &out, nil
}

// Posts は投稿を検索する。
func (s *SearchService) Posts(ctx context.Context, query string, page, size int) (*model.Page[model.Post], error) {
	var out model.Page[model.Post]
	_, err := s.client.R(ctx).
		SetQueryParam("query", query).
		SetQueryParam("page", strconv.Itoa(page)).
		SetQueryParam("size", strconv.Itoa(size)).
		SetResult(&out).
		Get("/api/search/posts")
	if err != nil {
		s.logger.Error("投稿検索に失敗しました",
			slog.String("query", query),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("投稿検索に失敗しました: %w", transport.Normalize(err))
	}
	return &out, nil
}

// LearningPlans は公開プランを検索する。
func (s *SearchService) LearningPlans(ctx context.Context, query string, page, size int) (*model.Page[model.LearningPlan], error) {
	var out model.Page[model.LearningPlan]
	_, err := s.client.R(ctx).
		SetQueryParam("query", query).
		SetQueryParam("page", strconv.Itoa(page)).
		SetQueryParam("size", strconv.Itoa(size)).
		SetResult(&out).
		Get("/api/search/learning-plans")
	if err != nil {
		s.logger.Error("プラン検索に失敗しました",
			slog.String("query", query),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("プラン検索に失敗しました: %w", transport.Normalize(err))
	}
	return &out, nil
}
