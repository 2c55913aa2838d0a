// Package notify は通知の未読件数と一覧の同期を管理する。
// 未読件数はサーバーを正とする定期ポーリングと、
// 既読操作に対する楽観的な減算の2経路で更新される。
package notify

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/learnlink/learnlink-go/internal/api"
	"github.com/learnlink/learnlink-go/internal/metrics"
	"github.com/learnlink/learnlink-go/internal/model"
)

// Syncer は通知状態のクライアント側ミラーを保持する。
// 全メソッドは複数goroutineから安全に呼び出せる。
type Syncer struct {
	api      *api.NotificationService
	logger   *slog.Logger
	recorder metrics.Recorder
	interval time.Duration

	mu            sync.Mutex
	unreadCount   int
	notifications []model.Notification
	onChange      func(unreadCount int)
}

// Options はSyncerの生成パラメータ。
type Options struct {
	API      *api.NotificationService
	Logger   *slog.Logger
	Recorder metrics.Recorder
	// Interval はポーリング間隔。0以下なら60秒。
	Interval time.Duration
}

// NewSyncer はSyncerを生成する。
func NewSyncer(opts Options) *Syncer {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Recorder == nil {
		opts.Recorder = metrics.Nop{}
	}
	if opts.Interval <= 0 {
		opts.Interval = 60 * time.Second
	}
	return &Syncer{
		api:      opts.API,
		logger:   opts.Logger,
		recorder: opts.Recorder,
		interval: opts.Interval,
	}
}

// UnreadCount は現在の未読件数ミラーを返す。
func (s *Syncer) UnreadCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.unreadCount
}

// Notifications は最後に取得した通知一覧のコピーを返す。
func (s *Syncer) Notifications() []model.Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Notification, len(s.notifications))
	copy(out, s.notifications)
	return out
}

// OnChange は未読件数が変化したときに呼ばれるコールバックを登録する。
// コールバックはロックの外で呼ばれる。
func (s *Syncer) OnChange(fn func(unreadCount int)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onChange = fn
}

// setUnread は未読件数を更新し、変化があればコールバックとゲージに反映する。
func (s *Syncer) setUnread(count int) {
	s.mu.Lock()
	count, changed, fn := s.applyUnreadLocked(count)
	s.mu.Unlock()
	s.notifyUnread(count, changed, fn)
}

// applyUnreadLocked は未読件数を下限0で更新する。mu保持中に呼ぶこと。
func (s *Syncer) applyUnreadLocked(count int) (int, bool, func(int)) {
	if count < 0 {
		count = 0
	}
	changed := s.unreadCount != count
	s.unreadCount = count
	return count, changed, s.onChange
}

// notifyUnread はゲージと変化コールバックへ反映する。ロックの外で呼ぶこと。
func (s *Syncer) notifyUnread(count int, changed bool, fn func(int)) {
	s.recorder.SetUnreadCount(count)
	if changed && fn != nil {
		fn(count)
	}
}

// RefreshUnreadCount はサーバーから未読件数を取得してミラーを上書きする。
// 取得に失敗した場合はミラーを変更しない。古い表示の方が誤ったゼロ表示よりましである。
func (s *Syncer) RefreshUnreadCount(ctx context.Context) error {
	count, err := s.api.UnreadCount(ctx)
	if err != nil {
		s.logger.Warn("未読件数の取得に失敗しました。表示を維持します",
			slog.String("error", err.Error()),
		)
		return err
	}
	s.setUnread(count)
	return nil
}

// Refresh は通知一覧と未読件数をまとめて再取得する。
func (s *Syncer) Refresh(ctx context.Context, unreadOnly bool, page, size int) (*model.Page[model.Notification], error) {
	pageResult, err := s.api.List(ctx, unreadOnly, page, size)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.notifications = pageResult.Content
	s.mu.Unlock()

	if err := s.RefreshUnreadCount(ctx); err != nil {
		// 一覧は取得できているので件数の失敗は致命的ではない。
		s.logger.Warn("一覧更新後の未読件数同期に失敗しました", slog.String("error", err.Error()))
	}
	return pageResult, nil
}

// MarkRead は通知を既読にする。未読件数は応答を待たずに楽観的に減算し、
// 失敗してもロールバックしない。次回のポーリングでサーバー値に収束する。
func (s *Syncer) MarkRead(ctx context.Context, notificationID int64) error {
	s.mu.Lock()
	wasUnread := true
	for i := range s.notifications {
		if s.notifications[i].ID == notificationID {
			wasUnread = !s.notifications[i].IsRead
			s.notifications[i].IsRead = true
			break
		}
	}
	// 既読フラグと件数の減算を同一クリティカルセクションで行う。
	// ロックをまたぐとポーリングの上書きと競合して減算が古い値に基づく。
	var (
		count   int
		changed bool
		fn      func(int)
	)
	if wasUnread {
		count, changed, fn = s.applyUnreadLocked(s.unreadCount - 1)
	}
	s.mu.Unlock()

	if wasUnread {
		s.notifyUnread(count, changed, fn)
	}

	if _, err := s.api.MarkRead(ctx, notificationID); err != nil {
		s.logger.Warn("既読化リクエストに失敗しました。次回の同期で補正されます",
			slog.Int64("notification_id", notificationID),
			slog.String("error", err.Error()),
		)
		return err
	}
	return nil
}

// MarkAllRead は全通知を既読にする。未読件数は楽観的にゼロへ落とす。
func (s *Syncer) MarkAllRead(ctx context.Context) error {
	s.mu.Lock()
	for i := range s.notifications {
		s.notifications[i].IsRead = true
	}
	s.mu.Unlock()
	s.setUnread(0)

	if err := s.api.MarkAllRead(ctx); err != nil {
		s.logger.Warn("全既読化リクエストに失敗しました。次回の同期で補正されます",
			slog.String("error", err.Error()),
		)
		return err
	}
	return nil
}

// Start は未読件数のポーリングループを開始する。
// 起動直後に1回実行し、以降はinterval間隔で繰り返す。ctxのキャンセルで停止する。
func (s *Syncer) Start(ctx context.Context) {
	s.logger.Info("通知ポーリングを開始します",
		slog.Duration("interval", s.interval),
	)

	s.poll(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("通知ポーリングを停止します")
			return
		case <-ticker.C:
			s.poll(ctx)
		}
	}
}

func (s *Syncer) poll(ctx context.Context) {
	if err := s.RefreshUnreadCount(ctx); err != nil {
		s.recorder.RecordPollFailure()
		return
	}
	s.recorder.RecordPollSuccess()
}
