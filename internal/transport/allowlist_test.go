package transport

import "testing"

func TestIsNonCriticalURL(t *testing.T) {
	tests := []struct {
		name string
		url  string
		want bool
	}{
		{"アクティビティ", "http://localhost:8080/api/users/12/activities?page=0", true},
		{"学習進捗", "http://localhost:8080/api/users/12/learning-progress", true},
		{"ソーシャルアクティビティ", "http://localhost:8080/api/users/12/social-activity", true},
		{"アナリティクス", "http://localhost:8080/api/analytics/user", true},
		{"ユーザープロフィール", "http://localhost:8080/api/users/42", true},
		{"フォロー状態確認", "http://localhost:8080/api/users/42/follow/status", true},
		{"投稿一覧", "http://localhost:8080/api/posts?page=0&size=10", false},
		{"自分の情報", "http://localhost:8080/api/auth/me", false},
		{"通知一覧", "http://localhost:8080/api/notifications?unreadOnly=true", false},
		{"学習プラン", "http://localhost:8080/api/learning-plans/3", false},
		{"検索", "http://localhost:8080/api/search?query=go", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsNonCriticalURL(tt.url); got != tt.want {
				t.Errorf("IsNonCriticalURL(%q) = %v, want %v", tt.url, got, tt.want)
			}
		})
	}
}
