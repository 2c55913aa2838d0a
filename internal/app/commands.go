package app

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/learnlink/learnlink-go/internal/api"
	"github.com/learnlink/learnlink-go/internal/metrics"
	"github.com/learnlink/learnlink-go/internal/model"
	"github.com/learnlink/learnlink-go/internal/notify"
	"github.com/learnlink/learnlink-go/internal/planner"
	"github.com/learnlink/learnlink-go/internal/session"
	"github.com/learnlink/learnlink-go/internal/social"
)

func (a *App) runLogin(ctx context.Context, args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("使い方: learnlink login <email> <password>")
	}
	user, err := a.session.Login(ctx, args[0], args[1])
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "ログインしました: %s (ID: %d)\n", sanitize(user.Name), user.ID)
	return nil
}

func (a *App) runRegister(ctx context.Context, args []string) error {
	if len(args) < 3 {
		return fmt.Errorf("使い方: learnlink register <name> <email> <password>")
	}
	user, err := a.session.Register(ctx, args[0], args[1], args[2])
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "登録してログインしました: %s (ID: %d)\n", sanitize(user.Name), user.ID)
	return nil
}

func (a *App) runLogout() error {
	if err := a.session.Logout(); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "ログアウトしました")
	return nil
}

func (a *App) runWhoami(ctx context.Context) error {
	user, err := a.requireSession(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "%s <%s> (ID: %d)\n", sanitize(user.Name), sanitize(user.Email), user.ID)
	return nil
}

func (a *App) runOAuth(ctx context.Context, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("使い方: learnlink oauth <provider>")
	}
	provider := args[0]

	cs := session.NewCallbackServer(a.cfg.OAuthCallbackAddr, a.session, a.logger)
	authorizeURL := a.session.AuthorizeURL(a.cfg.BaseURL, provider, cs.RedirectURI())

	fmt.Fprintf(a.out, "以下のURLをブラウザで開いて認証してください:\n%s\n", authorizeURL)

	result, err := cs.Listen(ctx)
	if err != nil {
		return err
	}
	user := a.session.User()
	fmt.Fprintf(a.out, "ログインしました: %s (ID: %d)\n", sanitize(user.Name), user.ID)
	if result.ReturnTo != "" {
		fmt.Fprintf(a.out, "中断していた操作: %s\n", sanitize(result.ReturnTo))
	}
	return nil
}

func (a *App) runFeed(ctx context.Context, args []string) error {
	if _, err := a.requireSession(ctx); err != nil {
		return err
	}
	page := 0
	if len(args) > 0 {
		page, _ = strconv.Atoi(args[0])
	}
	posts, err := a.api.Posts.List(ctx, page, 20)
	if err != nil {
		return err
	}
	renderPosts(a.out, posts)
	return nil
}

func (a *App) runPost(ctx context.Context, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("使い方: learnlink post <show|create|delete|like|comment> ...")
	}
	if _, err := a.requireSession(ctx); err != nil {
		return err
	}

	switch args[0] {
	case "show":
		id, err := parseID(args[1:], "post show <id>")
		if err != nil {
			return err
		}
		post, err := a.api.Posts.Get(ctx, id)
		if err != nil {
			return err
		}
		renderPost(a.out, post)
		comments, err := a.api.Posts.Comments(ctx, id, 0, 20)
		if err == nil {
			renderComments(a.out, comments)
		}
		return nil

	case "create":
		if len(args) < 2 {
			return fmt.Errorf("使い方: learnlink post create <本文> [file...]")
		}
		var files []api.PostFile
		for _, path := range args[2:] {
			f, err := os.Open(path)
			if err != nil {
				return fmt.Errorf("添付ファイルを開けません: %w", err)
			}
			defer f.Close()
			files = append(files, api.PostFile{Name: filepath.Base(path), Reader: f})
		}
		post, err := a.api.Posts.Create(ctx, api.CreatePostRequest{Content: args[1]}, files)
		if err != nil {
			return err
		}
		fmt.Fprintf(a.out, "投稿しました (ID: %d)\n", post.ID)
		return nil

	case "delete":
		id, err := parseID(args[1:], "post delete <id>")
		if err != nil {
			return err
		}
		if err := a.api.Posts.Delete(ctx, id); err != nil {
			return err
		}
		fmt.Fprintf(a.out, "投稿 %d を削除しました\n", id)
		return nil

	case "like":
		id, err := parseID(args[1:], "post like <id>")
		if err != nil {
			return err
		}
		toggler := social.NewLikeToggler(a.api.Posts, a.logger)
		if post, err := a.api.Posts.Get(ctx, id); err == nil {
			toggler.Track(post)
		}
		if err := toggler.Toggle(ctx, id); err != nil {
			return err
		}
		liked, count := toggler.State(id)
		if liked {
			fmt.Fprintf(a.out, "いいねしました（いいね数: %d）\n", count)
		} else {
			fmt.Fprintf(a.out, "いいねを取り消しました（いいね数: %d）\n", count)
		}
		return nil

	case "comment":
		if len(args) < 3 {
			return fmt.Errorf("使い方: learnlink post comment <id> <本文>")
		}
		id, err := strconv.ParseInt(args[1], 10, 64)
		if err != nil {
			return fmt.Errorf("投稿IDが不正です: %q", args[1])
		}
		comment, err := a.api.Posts.AddComment(ctx, id, args[2])
		if err != nil {
			return err
		}
		fmt.Fprintf(a.out, "コメントしました (ID: %d)\n", comment.ID)
		return nil

	default:
		return fmt.Errorf("不明なpostサブコマンド: %q", args[0])
	}
}

func (a *App) runProfile(ctx context.Context, args []string) error {
	user, err := a.requireSession(ctx)
	if err != nil {
		return err
	}
	id, err := parseID(args, "profile <userID>")
	if err != nil {
		return err
	}

	ctrl := social.NewFollowController(a.api.Users, a.logger)
	profile, err := ctrl.Load(ctx, user.ID, id)
	if err != nil {
		return err
	}
	renderProfile(a.out, profile, ctrl.State(), ctrl.FollowerCount(), user.ID == id)

	// アクティビティ系は他人のプロフィールで401を返すことがあるが、
	// セッションは維持されるため失敗しても表示を続行する。
	if act, err := a.api.Activity.SocialActivity(ctx, id); err == nil {
		fmt.Fprintf(a.out, "投稿 %d / コメント %d / フォロワー %d / フォロー中 %d\n",
			act.PostsCount, act.CommentsCount, act.FollowersCount, act.FollowingCount)
	}
	return nil
}

func (a *App) runFollow(ctx context.Context, args []string, follow bool) error {
	user, err := a.requireSession(ctx)
	if err != nil {
		return err
	}
	usage := "follow <userID>"
	if !follow {
		usage = "unfollow <userID>"
	}
	id, err := parseID(args, usage)
	if err != nil {
		return err
	}

	ctrl := social.NewFollowController(a.api.Users, a.logger)
	if _, err := ctrl.Load(ctx, user.ID, id); err != nil {
		return err
	}
	if ctrl.State().IsFollowing == follow {
		if follow {
			fmt.Fprintln(a.out, "すでにフォローしています")
		} else {
			fmt.Fprintln(a.out, "フォローしていません")
		}
		return nil
	}
	if err := ctrl.Toggle(ctx); err != nil {
		return err
	}
	if follow {
		fmt.Fprintf(a.out, "フォローしました（フォロワー数: %d）\n", ctrl.FollowerCount())
	} else {
		fmt.Fprintf(a.out, "フォローを解除しました（フォロワー数: %d）\n", ctrl.FollowerCount())
	}
	return nil
}

func (a *App) runNotifications(ctx context.Context, args []string) error {
	if _, err := a.requireSession(ctx); err != nil {
		return err
	}

	syncer := notify.NewSyncer(notify.Options{
		API:      a.api.Notifications,
		Logger:   a.logger,
		Interval: a.cfg.PollInterval,
	})

	if len(args) > 0 {
		switch args[0] {
		case "watch":
			return a.watchNotifications(ctx, syncer)
		case "read":
			id, err := parseID(args[1:], "notifications read <id>")
			if err != nil {
				return err
			}
			if err := syncer.MarkRead(ctx, id); err != nil {
				return err
			}
			fmt.Fprintf(a.out, "通知 %d を既読にしました\n", id)
			return nil
		case "read-all":
			if err := syncer.MarkAllRead(ctx); err != nil {
				return err
			}
			fmt.Fprintln(a.out, "全通知を既読にしました")
			return nil
		}
	}

	unreadOnly := len(args) > 0 && args[0] == "--unread"
	page, err := syncer.Refresh(ctx, unreadOnly, 0, 20)
	if err != nil {
		return err
	}
	renderNotifications(a.out, page, syncer.UnreadCount())
	return nil
}

// watchNotifications は未読数のポーリングループを開始し、
// /metricsエンドポイントでPrometheusメトリクスを公開する。
// シグナルによるctxキャンセルまで動き続ける。
func (a *App) watchNotifications(ctx context.Context, syncer *notify.Syncer) error {
	reg := prometheus.NewRegistry()
	collector := metrics.NewCollector(reg)

	// watchモードではメトリクス付きで作り直す。
	syncer = notify.NewSyncer(notify.Options{
		API:      a.api.Notifications,
		Logger:   a.logger,
		Recorder: collector,
		Interval: a.cfg.PollInterval,
	})

	syncer.OnChange(func(count int) {
		fmt.Fprintf(a.out, "[%s] 未読通知: %d件\n", time.Now().Format("15:04:05"), count)
	})

	r := chi.NewRouter()
	r.Use(chimiddleware.Recoverer)
	r.Handle("/metrics", metrics.Handler(reg))

	srv := &http.Server{
		Addr:              a.cfg.MetricsAddr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			a.logger.Error("メトリクスサーバの起動に失敗しました", slog.String("error", err.Error()))
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	fmt.Fprintf(a.out, "未読数を監視しています（間隔: %s、メトリクス: http://%s/metrics）\n",
		a.cfg.PollInterval, a.cfg.MetricsAddr)

	syncer.Start(ctx)
	return nil
}

// planDraftFile はplan createが読み込むJSONファイルの形。
// リソースのfileフィールドにローカルパスを書くとファイル添付リソースになる。
type planDraftFile struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Category    string `json:"category"`
	Public      bool   `json:"public"`
	Topics      []struct {
		Title       string `json:"title"`
		Description string `json:"description"`
		Resources   []struct {
			Title string `json:"title"`
			Type  string `json:"type"`
			URL   string `json:"url"`
			File  string `json:"file"`
		} `json:"resources"`
	} `json:"topics"`
}

func (a *App) runPlan(ctx context.Context, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("使い方: learnlink plan <list|show|create|complete> ...")
	}
	if _, err := a.requireSession(ctx); err != nil {
		return err
	}

	switch args[0] {
	case "list":
		if len(args) > 1 {
			id, err := strconv.ParseInt(args[1], 10, 64)
			if err != nil {
				return fmt.Errorf("ユーザーIDが不正です: %q", args[1])
			}
			plans, err := a.api.Plans.ByUser(ctx, id)
			if err != nil {
				return err
			}
			renderPlanList(a.out, plans)
			return nil
		}
		page, err := a.api.Plans.Public(ctx, 0, 20)
		if err != nil {
			return err
		}
		renderPlanList(a.out, page.Content)
		return nil

	case "show":
		id, err := parseID(args[1:], "plan show <id>")
		if err != nil {
			return err
		}
		plan, err := a.api.Plans.Get(ctx, id)
		if err != nil {
			return err
		}
		renderPlan(a.out, plan)
		return nil

	case "create":
		if len(args) < 2 {
			return fmt.Errorf("使い方: learnlink plan create <file.json>")
		}
		draft, closers, err := loadPlanDraft(args[1])
		defer func() {
			for _, c := range closers {
				c.Close()
			}
		}()
		if err != nil {
			return err
		}
		pub := planner.NewPublisher(a.api.Plans, planner.NewPreflight(a.cfg.HTTPTimeout), a.logger)
		plan, err := pub.Publish(ctx, draft)
		if err != nil {
			return err
		}
		fmt.Fprintf(a.out, "プランを作成しました (ID: %d)\n", plan.ID)
		renderPlan(a.out, plan)
		return nil

	case "complete":
		if len(args) < 3 {
			return fmt.Errorf("使い方: learnlink plan complete <planID> <topicID> [resourceID]")
		}
		planID, err1 := strconv.ParseInt(args[1], 10, 64)
		topicID, err2 := strconv.ParseInt(args[2], 10, 64)
		if err1 != nil || err2 != nil {
			return fmt.Errorf("IDが不正です")
		}
		if len(args) > 3 {
			resourceID, err := strconv.ParseInt(args[3], 10, 64)
			if err != nil {
				return fmt.Errorf("リソースIDが不正です: %q", args[3])
			}
			if _, err := a.api.Plans.UpdateResourceStatus(ctx, planID, topicID, resourceID, true); err != nil {
				return err
			}
			fmt.Fprintf(a.out, "リソース %d を完了にしました\n", resourceID)
		} else {
			if _, err := a.api.Plans.UpdateTopicStatus(ctx, planID, topicID, model.CompletionCompleted); err != nil {
				return err
			}
			fmt.Fprintf(a.out, "トピック %d を完了にしました\n", topicID)
		}
		// 完了率はサーバー導出値のため、再取得して表示する。
		if plan, err := a.api.Plans.Get(ctx, planID); err == nil {
			fmt.Fprintf(a.out, "プラン全体の進捗: %.0f%%\n", plan.CompletionPercentage)
		}
		return nil

	default:
		return fmt.Errorf("不明なplanサブコマンド: %q", args[0])
	}
}

// loadPlanDraft はJSONファイルからプラン下書きを組み立てる。
// 添付ファイルのクローズは呼び出し側が行う。
func loadPlanDraft(path string) (*planner.PlanDraft, []*os.File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("下書きファイルを読み込めません: %w", err)
	}
	var in planDraftFile
	if err := json.Unmarshal(data, &in); err != nil {
		return nil, nil, fmt.Errorf("下書きJSONの解析に失敗しました: %w", err)
	}

	draft := &planner.PlanDraft{
		Title:       in.Title,
		Description: in.Description,
		Category:    in.Category,
		Public:      in.Public,
	}
	var closers []*os.File
	for _, topic := range in.Topics {
		td := planner.TopicDraft{Title: topic.Title, Description: topic.Description}
		for _, res := range topic.Resources {
			rd := planner.ResourceDraft{
				Title: res.Title,
				Type:  model.ResourceType(res.Type),
				URL:   res.URL,
			}
			if res.File != "" {
				f, err := os.Open(res.File)
				if err != nil {
					return nil, closers, fmt.Errorf("添付ファイルを開けません: %w", err)
				}
				closers = append(closers, f)
				rd.File = &planner.FileAttachment{Name: filepath.Base(res.File), Reader: f}
			}
			td.Resources = append(td.Resources, rd)
		}
		draft.Topics = append(draft.Topics, td)
	}
	return draft, closers, nil
}

func (a *App) runSearch(ctx context.Context, args []string) error {
	if _, err := a.requireSession(ctx); err != nil {
		return err
	}
	if len(args) < 1 {
		return fmt.Errorf("使い方: learnlink search <query>")
	}
	result, err := a.api.Search.Global(ctx, args[0])
	if err != nil {
		return err
	}
	renderSearchResult(a.out, result)
	return nil
}

func (a *App) runAnalytics(ctx context.Context) error {
	if _, err := a.requireSession(ctx); err != nil {
		return err
	}
	summary, err := a.api.Analytics.User(ctx)
	if err != nil {
		return err
	}
	renderAnalytics(a.out, summary)

	if categories, err := a.api.Analytics.Categories(ctx); err == nil && len(categories) > 0 {
		fmt.Fprintln(a.out, "カテゴリ別プラン数:")
		for name, count := range categories {
			fmt.Fprintf(a.out, "  %s: %d\n", sanitize(name), count)
		}
	}
	return nil
}

func (a *App) runActivity(ctx context.Context, args []string) error {
	if _, err := a.requireSession(ctx); err != nil {
		return err
	}
	id, err := parseID(args, "activity <userID>")
	if err != nil {
		return err
	}

	activities, err := a.api.Activity.Activities(ctx, id, 20)
	if err != nil {
		return err
	}
	renderActivities(a.out, activities)

	if progress, err := a.api.Activity.LearningProgress(ctx, id); err == nil {
		for _, p := range progress {
			fmt.Fprintf(a.out, "  %s: %.0f%%\n", sanitize(p.PlanTitle), p.Completion)
		}
	}
	return nil
}

func parseID(args []string, usage string) (int64, error) {
	if len(args) < 1 {
		return 0, fmt.Errorf("使い方: learnlink %s", usage)
	}
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("IDが不正です: %q", args[0])
	}
	return id, nil
}
