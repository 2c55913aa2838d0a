package app

import (
	"fmt"
	"html"
	"io"
	"strings"

	"github.com/microcosm-cc/bluemonday"

	"github.com/learnlink/learnlink-go/internal/api"
	"github.com/learnlink/learnlink-go/internal/model"
	"github.com/learnlink/learnlink-go/internal/social"
)

// strictPolicy はサーバー由来のテキストからHTMLタグを全て除去するポリシー。
// 投稿本文やユーザー名にHTMLが混入していてもターミナルへそのまま流さない。
var strictPolicy = bluemonday.StrictPolicy()

// sanitize はサーバー由来の文字列をターミナル表示用に無害化する。
// タグを除去した後、bluemondayがエスケープしたエンティティを戻す。
func sanitize(s string) string {
	return html.UnescapeString(strictPolicy.Sanitize(s))
}

func renderPosts(w io.Writer, page *model.Page[model.Post]) {
	if len(page.Content) == 0 {
		fmt.Fprintln(w, "投稿はありません")
		return
	}
	for i := range page.Content {
		renderPost(w, &page.Content[i])
	}
	fmt.Fprintf(w, "--- %d/%dページ（全%d件）---\n", page.Number+1, page.TotalPages, page.TotalElements)
}

func renderPost(w io.Writer, post *model.Post) {
	author := "不明"
	if post.Author != nil {
		author = sanitize(post.Author.Name)
	}
	like := " "
	if post.IsLikedByCurrentUser {
		like = "♥"
	}
	fmt.Fprintf(w, "#%d %s [%s]\n", post.ID, author, like)
	fmt.Fprintf(w, "  %s\n", sanitize(post.Content))
	fmt.Fprintf(w, "  いいね %d / コメント %d\n", post.LikesCount, post.CommentsCount)
}

func renderComments(w io.Writer, page *model.Page[model.Comment]) {
	if len(page.Content) == 0 {
		return
	}
	fmt.Fprintln(w, "コメント:")
	for _, c := range page.Content {
		name := "不明"
		if c.User != nil {
			name = sanitize(c.User.Name)
		}
		fmt.Fprintf(w, "  [%d] %s: %s\n", c.ID, name, sanitize(c.Content))
	}
}

func renderProfile(w io.Writer, p *model.UserProfile, state social.ButtonState, followerCount int, own bool) {
	fmt.Fprintf(w, "%s (ID: %d)\n", sanitize(p.Name), p.ID)
	if p.Bio != "" {
		fmt.Fprintf(w, "  %s\n", sanitize(p.Bio))
	}
	if p.Location != "" {
		fmt.Fprintf(w, "  場所: %s\n", sanitize(p.Location))
	}
	fmt.Fprintf(w, "  フォロワー %d / フォロー中 %d / 投稿 %d\n",
		followerCount, p.FollowingCount, p.PostsCount)
	if own {
		fmt.Fprintln(w, "  （自分のプロフィール）")
	} else if state.IsFollowing {
		fmt.Fprintln(w, "  フォロー中")
	}
}

func renderNotifications(w io.Writer, page *model.Page[model.Notification], unread int) {
	fmt.Fprintf(w, "未読通知: %d件\n", unread)
	if len(page.Content) == 0 {
		fmt.Fprintln(w, "通知はありません")
		return
	}
	for _, n := range page.Content {
		mark := " "
		if !n.IsRead {
			mark = "*"
		}
		fmt.Fprintf(w, "%s [%d] %s\n", mark, n.ID, sanitize(n.Message))
	}
}

func renderPlanList(w io.Writer, plans []model.LearningPlan) {
	if len(plans) == 0 {
		fmt.Fprintln(w, "プランはありません")
		return
	}
	for _, p := range plans {
		fmt.Fprintf(w, "#%d %s（%s）進捗 %.0f%%\n",
			p.ID, sanitize(p.Title), sanitize(p.Category), p.CompletionPercentage)
	}
}

func renderPlan(w io.Writer, p *model.LearningPlan) {
	fmt.Fprintf(w, "#%d %s 進捗 %.0f%%\n", p.ID, sanitize(p.Title), p.CompletionPercentage)
	if p.Description != "" {
		fmt.Fprintf(w, "  %s\n", sanitize(p.Description))
	}
	for _, topic := range p.Topics {
		fmt.Fprintf(w, "  [%d] %s（%s）\n", topic.ID, sanitize(topic.Title), statusLabel(topic.CompletionStatus))
		for _, res := range topic.Resources {
			done := " "
			if res.IsCompleted {
				done = "x"
			}
			fmt.Fprintf(w, "    [%s] %d: %s <%s>\n", done, res.ID, sanitize(res.Title), sanitize(res.URL))
		}
	}
}

func statusLabel(s model.CompletionStatus) string {
	switch s {
	case model.CompletionCompleted:
		return "完了"
	case model.CompletionInProgress:
		return "進行中"
	default:
		return "未着手"
	}
}

func renderSearchResult(w io.Writer, r *api.GlobalResult) {
	if len(r.Users) == 0 && len(r.Posts) == 0 && len(r.LearningPlans) == 0 {
		fmt.Fprintln(w, "該当する結果はありません")
		return
	}
	if len(r.Users) > 0 {
		fmt.Fprintln(w, "ユーザー:")
		for _, u := range r.Users {
			fmt.Fprintf(w, "  #%d %s\n", u.ID, sanitize(u.Name))
		}
	}
	if len(r.Posts) > 0 {
		fmt.Fprintln(w, "投稿:")
		for _, p := range r.Posts {
			fmt.Fprintf(w, "  #%d %s\n", p.ID, sanitize(truncate(p.Content, 60)))
		}
	}
	if len(r.LearningPlans) > 0 {
		fmt.Fprintln(w, "学習プラン:")
		for _, p := range r.LearningPlans {
			fmt.Fprintf(w, "  #%d %s\n", p.ID, sanitize(p.Title))
		}
	}
}

func renderAnalytics(w io.Writer, s *api.UserSummary) {
	fmt.Fprintf(w, "プラン: %d（完了 %d）\n", s.TotalPlans, s.CompletedPlans)
	fmt.Fprintf(w, "トピック: %d（完了 %d）\n", s.TotalTopics, s.CompletedTopics)
	fmt.Fprintf(w, "リソース: %d（完了 %d）\n", s.TotalResources, s.CompletedResources)
	fmt.Fprintf(w, "全体進捗: %.0f%% / 学習時間: %.1f時間\n", s.OverallCompletion, s.TotalTimeSpentHours)
}

func renderActivities(w io.Writer, activities []api.Activity) {
	if len(activities) == 0 {
		fmt.Fprintln(w, "アクティビティはありません")
		return
	}
	for _, act := range activities {
		fmt.Fprintf(w, "[%s] %s\n", act.CreatedAt.Format("2006-01-02 15:04"), sanitize(act.Description))
	}
}

func truncate(s string, limit int) string {
	runes := []rune(strings.TrimSpace(s))
	if len(runes) <= limit {
		return string(runes)
	}
	return string(runes[:limit]) + "…"
}
