package api

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/learnlink/learnlink-go/internal/transport"
)

// ActivityService はユーザーのアクティビティ履歴エンドポイントへの呼び出しを提供する。
// これらのエンドポイントは他人のプロフィールでは401を返すことがあり、
// その401はセッション失効として扱わない(transport側の許可リスト参照)。
type ActivityService struct {
	client *transport.Client
	logger *slog.Logger
}

// Activity はユーザーの行動履歴の1件。
type Activity struct {
	ID          int64     `json:"id"`
	Type        string    `json:"type"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"createdAt"`
}

// LearningProgress はプラン単位の進捗の1件。
type LearningProgress struct {
	PlanID     int64   `json:"planId"`
	PlanTitle  string  `json:"planTitle"`
	Completion float64 `json:"completionPercentage"`
}

// SocialActivity はソーシャル活動のサマリ。
type SocialActivity struct {
	PostsCount     int `json:"postsCount"`
	CommentsCount  int `json:"commentsCount"`
	LikesGiven     int `json:"likesGiven"`
	FollowersCount int `json:"followersCount"`
	FollowingCount int `json:"followingCount"`
}

// Activities は指定ユーザーの行動履歴を取得する。
func (s *ActivityService) Activities(ctx context.Context, userID int64, limit int) ([]Activity, error) {
	var out []Activity
	_, err := s.client.R(ctx).
		SetQueryParam("limit", strconv.Itoa(limit)).
		SetResult(&out).
		Get(fmt.Sprintf("/api/users/%d/activities", userID))
	if err != nil {
		s.logger.Warn("行動履歴の取得に失敗しました",
			slog.Int64("user_id", userID),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("行動履歴の取得に失敗しました: %w", transport.Normalize(err))
	}
	return out, nil
}

// LearningProgress は指定ユーザーの学習進捗を取得する。
func (s *ActivityService) LearningProgress(ctx context.Context, userID int64) ([]LearningProgress, error) {
	var out []LearningProgress
	_, err := s.client.R(ctx).
		SetResult(&out).
		Get(fmt.Sprintf("/api/users/%d/learning-progress", userID))
	if err != nil {
		s.logger.Warn("学習進捗の取得に失敗しました",
			slog.Int64("user_id", userID),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("学習進捗の取得に失敗しました: %w", transport.Normalize(err))
	}
	return out, nil
}

// SocialActivity は指定ユーザーのソーシャル活動サマリを取得する。
func (s *ActivityService) SocialActivity(ctx context.Context, userID int64) (*SocialActivity, error) {
	var out SocialActivity
	_, err := s.client.R(ctx).
		SetResult(&out).
		Get(fmt.Sprintf("/api/users/%d/social-activity", userID))
	if err != nil {
		s.logger.Warn("ソーシャル活動の取得に失敗しました",
			slog.Int64("user_id", userID),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("ソーシャル活動の取得に失敗しました: %w", transport.Normalize(err))
	}
	return &out, nil
}
