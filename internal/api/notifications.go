package api

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/learnlink/learnlink-go/internal/model"
	"github.com/learnlink/learnlink-go/internal/transport"
)

// NotificationService は通知関連エンドポイントへの呼び出しを提供する。
type NotificationService struct {
	client *transport.Client
	logger *slog.Logger
}

// List は通知をページ取得する。unreadOnlyがtrueなら未読のみに絞る。
func (s *NotificationService) List(ctx context.Context, unreadOnly bool, page, size int) (*model.Page[model.Notification], error) {
	var out model.Page[model.Notification]
	_, err := s.client.R(ctx).
		SetQueryParam("unreadOnly", strconv.FormatBool(unreadOnly)).
		SetQueryParam("page", strconv.Itoa(page)).
		SetQueryParam("size", strconv.Itoa(size)).
		SetResult(&out).
		Get("/api/notifications")
	if err != nil {
		s.logger.Error("通知一覧の取得に失敗しました", slog.String("error", err.Error()))
		return nil, fmt.Errorf("通知一覧の取得に失敗しました: %w", transport.Normalize(err))
	}
	return &out, nil
}

// UnreadCount は未読件数を取得する。応答が未読件数の正となる。
func (s *NotificationService) UnreadCount(ctx context.Context) (int, error) {
	var out struct {
		Count int `json:"count"`
	}
	_, err := s.client.R(ctx).
		SetResult(&out).
		Get("/api/notifications/unread/count")
	if err != nil {
		return 0, fmt.Errorf("未読件数の取得に失敗しました: %w", transport.Normalize(err))
	}
	return out.Count, nil
}

// MarkRead は単一の通知を既読にする。
func (s *NotificationService) MarkRead(ctx context.Context, notificationID int64) (*model.Notification, error) {
	var out model.Notification
	_, err := s.client.R(ctx).
		SetResult(&out).
		Patch(fmt.Sprintf("/api/notifications/%d/read", notificationID))
	if err != nil {
		s.logger.Error("通知の既読化に失敗しました",
			slog.Int64("notification_id", notificationID),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("通知の既読化に失敗しました: %w", transport.Normalize(err))
	}
	return &out, nil
}

// MarkAllRead は全通知を既読にする。
func (s *NotificationService) MarkAllRead(ctx context.Context) error {
	_, err := s.client.R(ctx).
		Patch("/api/notifications/read-all")
	if err != nil {
		s.logger.Error("全通知の既読化に失敗しました", slog.String("error", err.Error()))
		return fmt.Errorf("全通知の既読化に失敗しました: %w", transport.Normalize(err))
	}
	return nil
}
