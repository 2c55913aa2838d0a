package api

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strconv"

	"github.com/learnlink/learnlink-go/internal/model"
	"github.com/learnlink/learnlink-go/internal/transport"
)

// PlanService は学習プラン関連エンドポイントへの呼び出しを提供する。
type PlanService struct {
	client *transport.Client
	logger *slog.Logger
}

// PlanRequest は学習プラン作成・更新のリクエストボディ。
type PlanRequest struct {
	Title       string         `json:"title"`
	Description string         `json:"description,omitempty"`
	Category    string         `json:"category,omitempty"`
	Public      bool           `json:"isPublic"`
	Topics      []TopicRequest `json:"topics,omitempty"`
}

// TopicRequest はトピック作成・更新のリクエストボディ。
type TopicRequest struct {
	Title       string            `json:"title"`
	Description string            `json:"description,omitempty"`
	OrderIndex  int               `json:"orderIndex"`
	Resources   []ResourceRequest `json:"resources,omitempty"`
}

// ResourceRequest はリソース作成・更新のリクエストボディ。
type ResourceRequest struct {
	Title       string             `json:"title"`
	URL         string             `json:"url"`
	Type        model.ResourceType `json:"type"`
	Description string             `json:"description,omitempty"`
}

// Public は公開プランをページ取得する。
func (s *PlanService) Public(ctx context.Context, page, size int) (*model.Page[model.LearningPlan], error) {
	var out model.Page[model.LearningPlan]
	_, err := s.client.R(ctx).
		SetQueryParam("page", strconv.Itoa(page)).
		SetQueryParam("size", strconv.Itoa(size)).
		SetResult(&out).
		Get("/api/learning-plans/public")
	if err != nil {
		s.logger.Error("公開プランの取得に失敗しました", slog.String("error", err.Error()))
		return nil, fmt.Errorf("公開プランの取得に失敗しました: %w", transport.Normalize(err))
	}
	return &out, nil
}

// ByUser は指定ユーザーのプランを取得する。
func (s *PlanService) ByUser(ctx context.Context, userID int64) ([]model.LearningPlan, error) {
	var out []model.LearningPlan
	_, err := s.client.R(ctx).
		SetResult(&out).
		Get(fmt.Sprintf("/api/learning-plans/user/%d", userID))
	if err != nil {
		s.logger.Error("ユーザープランの取得に失敗しました",
			slog.Int64("user_id", userID),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("ユーザープランの取得に失敗しました: %w", transport.Normalize(err))
	}
	return out, nil
}

// Get は単一のプランを取得する。作成直後のサーバ採番ID確認にも使う。
func (s *PlanService) Get(ctx context.Context, planID int64) (*model.LearningPlan, error) {
	var out model.LearningPlan
	_, err := s.client.R(ctx).
		SetResult(&out).
		Get(fmt.Sprintf("/api/learning-plans/%d", planID))
	if err != nil {
		s.logger.Error("プランの取得に失敗しました",
			slog.Int64("plan_id", planID),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("プランの取得に失敗しました: %w", transport.Normalize(err))
	}
	return &out, nil
}

// Create はプランを作成する。
func (s *PlanService) Create(ctx context.Context, req PlanRequest) (*model.LearningPlan, error) {
	var out model.LearningPlan
	_, err := s.client.R(ctx).
		SetBody(req).
		SetResult(&out).
		Post("/api/learning-plans")
	if err != nil {
		s.logger.Error("プランの作成に失敗しました", slog.String("error", err.Error()))
		return nil, fmt.Errorf("プランの作成に失敗しました: %w", transport.Normalize(err))
	}
	return &out, nil
}

// Update はプランを更新する。
func (s *PlanService) Update(ctx context.Context, planID int64, req PlanRequest) (*model.LearningPlan, error) {
	var out model.LearningPlan
	_, err := s.client.R(ctx).
		SetBody(req).
		SetResult(&out).
		Put(fmt.Sprintf("/api/learning-plans/%d", planID))
	if err != nil {
		s.logger.Error("プランの更新に失敗しました",
			slog.Int64("plan_id", planID),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("プランの更新に失敗しました: %w", transport.Normalize(err))
	}
	return &out, nil
}

// Delete はプランを削除する。
func (s *PlanService) Delete(ctx context.Context, planID int64) error {
	_, err := s.client.R(ctx).
		Delete(fmt.Sprintf("/api/learning-plans/%d", planID))
	if err != nil {
		s.logger.Error("プランの削除に失敗しました",
			slog.Int64("plan_id", planID),
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("プランの削除に失敗しました: %w", transport.Normalize(err))
	}
	return nil
}

// AddTopic はプランにトピックを追加する。
func (s *PlanService) AddTopic(ctx context.Context, planID int64, req TopicRequest) (*model.Topic, error) {
	var out model.Topic
	_, err := s.client.R(ctx).
		SetBody(req).
		SetResult(&out).
		Post(fmt.Sprintf("/api/learning-plans/%d/topics", planID))
	if err != nil {
		s.logger.Error("トピックの追加に失敗しました",
			slog.Int64("plan_id", planID),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("トピックの追加に失敗しました: %w", transport.Normalize(err))
	}
	return &out, nil
}

// UpdateTopic はトピックを更新する。
func (s *PlanService) UpdateTopic(ctx context.Context, planID, topicID int64, req TopicRequest) (*model.Topic, error) {
	var out model.Topic
	_, err := s.client.R(ctx).
		SetBody(req).
		SetResult(&out).
		Put(fmt.Sprintf("/api/learning-plans/%d/topics/%d", planID, topicID))
	if err != nil {
		s.logger.Error("トピックの更新に失敗しました",
			slog.Int64("topic_id", topicID),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("トピックの更新に失敗しました: %w", transport.Normalize(err))
	}
	return &out, nil
}

// UpdateTopicStatus はトピックの完了状態を変更する。
func (s *PlanService) UpdateTopicStatus(ctx context.Context, planID, topicID int64, status model.CompletionStatus) (*model.Topic, error) {
	var out model.Topic
	_, err := s.client.R(ctx).
		SetBody(map[string]model.CompletionStatus{"completionStatus": status}).
		SetResult(&out).
		Patch(fmt.Sprintf("/api/learning-plans/%d/topics/%d/status", planID, topicID))
	if err != nil {
		s.logger.Error("トピック状態の更新に失敗しました",
			slog.Int64("topic_id", topicID),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("トピック状態の更新に失敗しました: %w", transport.Normalize(err))
	}
	return &out, nil
}

// AddResource はトピックにリソースを追加する。
func (s *PlanService) AddResource(ctx context.Context, planID, topicID int64, req ResourceRequest) (*model.Resource, error) {
	var out model.Resource
	_, err := s.client.R(ctx).
		SetBody(req).
		SetResult(&out).
		Post(fmt.Sprintf("/api/learning-plans/%d/topics/%d/resources", planID, topicID))
	if err != nil {
		s.logger.Error("リソースの追加に失敗しました",
			slog.Int64("topic_id", topicID),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("リソースの追加に失敗しました: %w", transport.Normalize(err))
	}
	return &out, nil
}

// UpdateResource はリソースを更新する。
func (s *PlanService) UpdateResource(ctx context.Context, planID, topicID, resourceID int64, req ResourceRequest) (*model.Resource, error) {
	var out model.Resource
	_, err := s.client.R(ctx).
		SetBody(req).
		SetResult(&out).
		Put(fmt.Sprintf("/api/learning-plans/%d/topics/%d/resources/%d", planID, topicID, resourceID))
	if err != nil {
		s.logger.Error("リソースの更新に失敗しました",
			slog.Int64("resource_id", resourceID),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("リソースの更新に失敗しました: %w", transport.Normalize(err))
	}
	return &out, nil
}

// UpdateResourceStatus はリソースの完了フラグを変更する。
func (s *PlanService) UpdateResourceStatus(ctx context.Context, planID, topicID, resourceID int64, completed bool) (*model.Resource, error) {
	var out model.Resource
	_, err := s.client.R(ctx).
		SetBody(map[string]bool{"completed": completed}).
		SetResult(&out).
		Patch(fmt.Sprintf("/api/learning-plans/%d/topics/%d/resources/%d/status", planID, topicID, resourceID))
	if err != nil {
		s.logger.Error("リソース状態の更新に失敗しました",
			slog.Int64("resource_id", resourceID),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("リソース状態の更新に失敗しました: %w", transport.Normalize(err))
	}
	return &out, nil
}

// UploadResourceFile はリソースにファイルを添付する。
// サーバはファイルを保存し、リソースのURLを保存先に書き換えて返す。
func (s *PlanService) UploadResourceFile(ctx context.Context, planID, topicID, resourceID int64, filename string, file io.Reader) (*model.Resource, error) {
	var out model.Resource
	_, err := s.client.R(ctx).
		SetFileReader("file", filename, file).
		SetResult(&out).
		Post(fmt.Sprintf("/api/learning-plans/%d/topics/%d/resources/%d/file", planID, topicID, resourceID))
	if err != nil {
		s.logger.Error("リソースファイルのアップロードに失敗しました",
			slog.Int64("resource_id", resourceID),
			slog.String("filename", filename),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("リソースファイルのアップロードに失敗しました: %w", transport.Normalize(err))
	}
	return &out, nil
}
