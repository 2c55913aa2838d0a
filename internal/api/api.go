// Package api はLearnLink REST APIのリソース別モジュールを提供する。
// 各モジュールは1つのバックエンドリソースに対応し、1関数が1つのREST呼び出しに対応する。
// 失敗はログに記録した上で呼び出し元へ返す。ユーザー向けの表示は呼び出し元の責務。
package api

import (
	"log/slog"

	"github.com/learnlink/learnlink-go/internal/transport"
)

// API は全リソースモジュールを束ねる。
type API struct {
	Auth          *AuthService
	Users         *UserService
	Posts         *PostService
	Plans         *PlanService
	Notifications *NotificationService
	Search        *SearchService
	Analytics     *AnalyticsService
	Activity      *ActivityService
}

// New はAPIを生成する。
func New(client *transport.Client, logger *slog.Logger) *API {
	if logger == nil {
		logger = slog.Default()
	}
	return &API{
		Auth:          &AuthService{client: client, logger: logger},
		Users:         &UserService{client: client, logger: logger},
		Posts:         &PostService{client: client, logger: logger},
		Plans:         &PlanService{client: client, logger: logger},
		Notifications: &NotificationService{client: client, logger: logger},
		Search:        &SearchService{client: client, logger: logger},
		Analytics:     &AnalyticsService{client: client, logger: logger},
		Activity:      &ActivityService{client: client, logger: logger},
	}
}
