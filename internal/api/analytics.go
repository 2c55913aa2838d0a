package api

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/learnlink/learnlink-go/internal/transport"
)

// AnalyticsService は学習統計エンドポイントへの呼び出しを提供する。
// 統計の形はサーバ側で変化しやすいため、キーの固定されない部分はmapで受ける。
type AnalyticsService struct {
	client *transport.Client
	logger *slog.Logger
}

// UserSummary はユーザー全体の学習統計サマリ。
type UserSummary struct {
	TotalPlans          int     `json:"totalPlans"`
	CompletedPlans      int     `json:"completedPlans"`
	TotalTopics         int     `json:"totalTopics"`
	CompletedTopics     int     `json:"completedTopics"`
	TotalResources      int     `json:"totalResources"`
	CompletedResources  int     `json:"completedResources"`
	OverallCompletion   float64 `json:"overallCompletionPercentage"`
	TotalTimeSpentHours float64 `json:"totalTimeSpentHours"`
}

// DailyActivity は日次の学習アクティビティ件数。
type DailyActivity struct {
	Date  string `json:"date"`
	Count int    `json:"count"`
}

// TimelinePoint は進捗タイムラインの1点。
type TimelinePoint struct {
	Date       string  `json:"date"`
	Completion float64 `json:"completionPercentage"`
}

// PlanStats は単一プランの統計。
type PlanStats struct {
	PlanID             int64   `json:"planId"`
	Title              string  `json:"title"`
	TotalTopics        int     `json:"totalTopics"`
	CompletedTopics    int     `json:"completedTopics"`
	TotalResources     int     `json:"totalResources"`
	CompletedResources int     `json:"completedResources"`
	Completion         float64 `json:"completionPercentage"`
}

// User は自分の学習統計サマリを取得する。
func (s *AnalyticsService) User(ctx context.Context) (*UserSummary, error) {
	var out UserSummary
	_, err := s.client.R(ctx).
		SetResult(&out).
		Get("/api/analytics/user")
	if err != nil {
		s.logger.Error("学習統計の取得に失敗しました", slog.String("error", err.Error()))
		return nil, fmt.Errorf("学習統計の取得に失敗しました: %w", transport.Normalize(err))
	}
	return &out, nil
}

// Categories はカテゴリ別のプラン数を取得する。
func (s *AnalyticsService) Categories(ctx context.Context) (map[string]int, error) {
	var out map[string]int
	_, err := s.client.R(ctx).
		SetResult(&out).
		Get("/api/analytics/categories")
	if err != nil {
		s.logger.Error("カテゴリ統計の取得に失敗しました", slog.String("error", err.Error()))
		return nil, fmt.Errorf("カテゴリ統計の取得に失敗しました: %w", transport.Normalize(err))
	}
	return out, nil
}

// DailyActivity は直近days日分の日次アクティビティを取得する。
func (s *AnalyticsService) DailyActivity(ctx context.Context, days int) ([]DailyActivity, error) {
	var out []DailyActivity
	_, err := s.client.R(ctx).
		SetQueryParam("days", strconv.Itoa(days)).
		SetResult(&out).
		Get("/api/analytics/daily-activity")
	if err != nil {
		s.logger.Error("日次アクティビティの取得に失敗しました", slog.String("error", err.Error()))
		return nil, fmt.Errorf("日次アクティビティの取得に失敗しました: %w", transport.Normalize(err))
	}
	return out, nil
}

// ProgressTimeline は進捗タイムラインを取得する。
func (s *AnalyticsService) ProgressTimeline(ctx context.Context) ([]TimelinePoint, error) {
	var out []TimelinePoint
	_, err := s.client.R(ctx).
		SetResult(&out).
		Get("/api/analytics/progress-timeline")
	if err != nil {
		s.logger.Error("進捗タイムラインの取得に失敗しました", slog.String("error", err.Error()))
		return nil, fmt.Errorf("進捗タイムラインの取得に失敗しました: %w", transport.Normalize(err))
	}
	return out, nil
}

// PlanStats は単一プランの統計を取得する。
func (s *AnalyticsService) PlanStats(ctx context.Context, planID int64) (*PlanStats, error) {
	var out PlanStats
	_, err := s.client.R(ctx).
		SetResult(&out).
		Get(fmt.Sprintf("/api/analytics/plans/%d", planID))
	if err != nil {
		s.logger.Error("プラン統計の取得に失敗しました",
			slog.Int64("plan_id", planID),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("プラン統計の取得に失敗しました: %w", transport.Normalize(err))
	}
	return &out, nil
}

// TimeSpent はプラン別の学習時間を取得する。
func (s *AnalyticsService) TimeSpent(ctx context.Context) (map[string]float64, error) {
	var out map[string]float64
	_, err := s.client.R(ctx).
		SetResult(&out).
		Get("/api/analytics/time-spent")
	if err != nil {
		s.logger.Error("学習時間の取得に失敗しました", slog.String("error", err.Error()))
		return nil, fmt.Errorf("学習時間の取得に失敗しました: %w", transport.Normalize(err))
	}
	return out, nil
}
