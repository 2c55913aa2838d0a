// Package app はCLIのエントリーポイントと各サブコマンドの実装を提供する。
// 標準出力はコマンド結果専用とし、ログは標準エラーへJSONで出力する。
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/learnlink/learnlink-go/internal/api"
	"github.com/learnlink/learnlink-go/internal/config"
	"github.com/learnlink/learnlink-go/internal/credentials"
	"github.com/learnlink/learnlink-go/internal/logger"
	"github.com/learnlink/learnlink-go/internal/model"
	"github.com/learnlink/learnlink-go/internal/session"
	"github.com/learnlink/learnlink-go/internal/transport"
)

// ErrLoginRequired は認証が必要なコマンドを未認証で実行したことを表す。
var ErrLoginRequired = errors.New("この操作にはログインが必要です。learnlink login を実行してください")

// App はCLI全体の依存関係を束ねる。
type App struct {
	cfg     *config.Config
	logger  *slog.Logger
	api     *api.API
	client  *transport.Client
	session *session.Manager
	store   credentials.Store
	out     io.Writer
}

// Init は環境変数から設定を読み込み、全依存関係をワイヤリングする。
// logWriterがnilの場合はログを標準エラーへ出力する。
func Init(out, logWriter io.Writer) (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("設定の読み込みに失敗しました: %w", err)
	}

	level := logger.ParseLevel(cfg.LogLevel)
	logger.SetupDefault(logWriter, level)
	log := slog.Default()

	store := credentials.NewFileStore(cfg.CredentialsPath)

	client := transport.New(transport.Options{
		BaseURL:           cfg.BaseURL,
		Timeout:           cfg.HTTPTimeout,
		RequestsPerMinute: cfg.RequestsPerMinute,
		Store:             store,
		Logger:            log,
	})

	a := api.New(client, log)
	sess := session.NewManager(a.Auth, store, log)

	// クリティカルエンドポイントでの401はトランスポート層がトークンを破棄済み。
	// セッション状態もここで未認証へ落とす。
	client.SetOnSessionExpired(sess.Expire)

	return &App{
		cfg:     cfg,
		logger:  log,
		api:     a,
		client:  client,
		session: sess,
		store:   store,
		out:     out,
	}, nil
}

// Run はCLIのメインエントリーポイント。argsにはos.Args[1:]を渡す。
func Run(out io.Writer, args []string) error {
	cmd, rest := ParseCommand(args)

	if cmd == CommandHelp {
		printUsage(out)
		return nil
	}

	app, err := Init(out, nil)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app.logger.Info("コマンドを実行します",
		slog.String("command", string(cmd)),
		slog.String("base_url", app.cfg.BaseURL),
	)

	return app.Dispatch(ctx, cmd, rest)
}

// Dispatch はサブコマンドを対応するハンドラへ振り分ける。
// ログイン要求で中断したコマンドは戻り先として保存し、
// OAuthログイン完了後の案内に使う（中断前のパス保存に相当）。
func (a *App) Dispatch(ctx context.Context, cmd Command, args []string) error {
	err := a.dispatch(ctx, cmd, args)
	if errors.Is(err, ErrLoginRequired) {
		if serr := a.store.SetReturnTo(strings.Join(append([]string{string(cmd)}, args...), " ")); serr != nil {
			a.logger.Warn("中断コマンドの保存に失敗しました", slog.String("error", serr.Error()))
		}
	}
	return err
}

func (a *App) dispatch(ctx context.Context, cmd Command, args []string) error {
	switch cmd {
	case CommandLogin:
		return a.runLogin(ctx, args)
	case CommandRegister:
		return a.runRegister(ctx, args)
	case CommandLogout:
		return a.runLogout()
	case CommandWhoami:
		return a.runWhoami(ctx)
	case CommandOAuth:
		return a.runOAuth(ctx, args)
	case CommandFeed:
		return a.runFeed(ctx, args)
	case CommandPost:
		return a.runPost(ctx, args)
	case CommandProfile:
		return a.runProfile(ctx, args)
	case CommandFollow:
		return a.runFollow(ctx, args, true)
	case CommandUnfollow:
		return a.runFollow(ctx, args, false)
	case CommandNotifications:
		return a.runNotifications(ctx, args)
	case CommandPlan:
		return a.runPlan(ctx, args)
	case CommandSearch:
		return a.runSearch(ctx, args)
	case CommandAnalytics:
		return a.runAnalytics(ctx)
	case CommandActivity:
		return a.runActivity(ctx, args)
	default:
		printUsage(a.out)
		return nil
	}
}

// requireSession はセッションを復元し、認証済みユーザーを返す。
// 未認証の場合はErrLoginRequiredを返す。認証必須コマンドの入口で呼ぶ。
func (a *App) requireSession(ctx context.Context) (*model.User, error) {
	if err := a.session.Restore(ctx); err != nil {
		return nil, err
	}
	if a.session.State() != session.StateAuthenticated {
		return nil, ErrLoginRequired
	}
	return a.session.User(), nil
}

func printUsage(w io.Writer) {
	fmt.Fprint(w, `learnlink - LearnLink APIクライアント

使い方:
  learnlink login <email> <password>        ログイン
  learnlink register <name> <email> <pass>  新規登録
  learnlink logout                          ログアウト
  learnlink whoami                          現在のユーザーを表示
  learnlink oauth <provider>                外部プロバイダでログイン
  learnlink feed [page]                     投稿フィードを表示
  learnlink post show <id>                  投稿を表示
  learnlink post create <本文> [file...]    投稿を作成
  learnlink post delete <id>                投稿を削除
  learnlink post like <id>                  いいねを切り替え
  learnlink post comment <id> <本文>        コメントを追加
  learnlink profile <userID>                プロフィールを表示
  learnlink follow <userID>                 フォロー
  learnlink unfollow <userID>               フォロー解除
  learnlink notifications [--unread]        通知を一覧表示
  learnlink notifications read <id>         通知を既読化
  learnlink notifications read-all          全通知を既読化
  learnlink notifications watch             未読数を監視（/metrics公開）
  learnlink plan list [userID]              プラン一覧
  learnlink plan show <id>                  プラン詳細
  learnlink plan create <file.json>         プランを作成（添付はJSONで指定）
  learnlink plan complete <planID> <topicID> [resourceID]  完了マーク
  learnlink search <query>                  横断検索
  learnlink analytics                       学習統計を表示
  learnlink activity <userID>               アクティビティを表示
`)
}
