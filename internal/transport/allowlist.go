package transport

import (
	"regexp"
	"strings"
)

// nonCriticalSubstrings は401発生時にセッション破棄を行わないエンドポイントの
// 固定許可リスト。頻繁にポーリングされる二次的なエンドポイントの一時的な
// 認証失敗が全体のログアウトを引き起こすのを防ぐ。
// リトライ/バックオフのような汎用機構ではなく、明示的な業務ルールとして保守する。
var nonCriticalSubstrings = []string{
	"/activities",
	"/learning-progress",
	"/social-activity",
	"/analytics",
	"/api/users/",
}

// userActivityPattern はユーザー別アクティビティ/進捗エンドポイントのパターン。
var userActivityPattern = regexp.MustCompile(`/api/users/\d+/(activities|learning-progress|social-activity)`)

// IsNonCriticalURL は401応答を受けたURLが非クリティカルかどうかを判定する。
// 非クリティカルなURLでの認証失敗はログに記録して呼び出し元へ返すのみで、
// セッションの破棄は行わない。
func IsNonCriticalURL(url string) bool {
	for _, sub := range nonCriticalSubstrings {
		if strings.Contains(url, sub) {
			return true
		}
	}
	return userActivityPattern.MatchString(url)
}
