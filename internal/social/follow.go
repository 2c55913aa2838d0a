// Package social はフォローといいねのクライアント側状態管理を提供する。
// どちらも楽観的更新の後にサーバー応答で照合するパターンを実装する。
package social

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/learnlink/learnlink-go/internal/api"
	"github.com/learnlink/learnlink-go/internal/model"
)

// ErrToggleInFlight は前回のフォロー操作が完了する前の再操作を表す。
var ErrToggleInFlight = errors.New("フォロー操作が進行中です")

// ButtonState はフォローボタンの表示状態。
type ButtonState struct {
	IsFollowing bool
	IsLoading   bool
}

// FollowController は特定プロフィールに対するフォロー状態を管理する。
// プロフィール表示のフォロワー数ミラーも保持し、操作のたびに
// 専用エンドポイントの応答で照合する。
type FollowController struct {
	api    *api.UserService
	logger *slog.Logger

	mu            sync.Mutex
	userID        int64
	ownProfile    bool
	following     bool
	followerCount int
	inFlight      bool
}

// NewFollowController はFollowControllerを生成する。
func NewFollowController(users *api.UserService, logger *slog.Logger) *FollowController {
	if logger == nil {
		logger = slog.Default()
	}
	return &FollowController{api: users, logger: logger}
}

// Load はプロフィールを取得し、フォロー状態を初期化する。
// 自分自身のプロフィール（viewerID == userID）ではフォロー状態の確認を行わない。
// それ以外ではプロフィール応答に含まれるフラグを使わず、
// 専用エンドポイントから取得した値を正として採用する。
func (c *FollowController) Load(ctx context.Context, viewerID, userID int64) (*model.UserProfile, error) {
	profile, err := c.api.Profile(ctx, userID)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.userID = userID
	c.ownProfile = viewerID != 0 && viewerID == userID
	c.following = profile.IsCurrentUserFollowing
	c.followerCount = int(profile.FollowersCount)
	own := c.ownProfile
	c.mu.Unlock()

	if own || viewerID == 0 {
		return profile, nil
	}

	status, err := c.api.FollowStatus(ctx, userID)
	if err != nil {
		// 確認の失敗はプロフィール由来の値で続行する。
		c.logger.Warn("フォロー状態の初期確認に失敗しました。プロフィールの値で続行します",
			slog.Int64("user_id", userID),
			slog.String("error", err.Error()),
		)
		return profile, nil
	}

	c.apply(status)
	return profile, nil
}

// State は現在のボタン表示状態を返す。
func (c *FollowController) State() ButtonState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return ButtonState{IsFollowing: c.following, IsLoading: c.inFlight}
}

// FollowerCount は現在のフォロワー数ミラーを返す。
func (c *FollowController) FollowerCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.followerCount
}

// Toggle はフォロー状態を反転させる。
// 表示は即座に楽観的に反転し、操作完了後は結果の成否にかかわらず
// 専用エンドポイントから再取得した状態で必ず照合する。
// 進行中の操作がある間の再呼び出しはErrToggleInFlightで拒否する。
func (c *FollowController) Toggle(ctx context.Context) error {
	c.mu.Lock()
	if c.inFlight {
		c.mu.Unlock()
		return ErrToggleInFlight
	}
	if c.ownProfile {
		c.mu.Unlock()
		return errors.New("自分自身はフォローできません")
	}
	c.inFlight = true
	wasFollowing := c.following
	userID := c.userID

	// 楽観的反転。フォロワー数も仮に増減させるが負数にはしない。
	c.following = !wasFollowing
	if wasFollowing {
		if c.followerCount > 0 {
			c.followerCount--
		}
	} else {
		c.followerCount++
	}
	c.mu.Unlock()

	var opErr error
	var action string
	if wasFollowing {
		action = "フォロー解除"
		_, opErr = c.api.Unfollow(ctx, userID)
	} else {
		action = "フォロー"
		_, opErr = c.api.Follow(ctx, userID)
	}

	// 成否にかかわらずサーバーの状態で照合する。
	// 操作自体が失敗していても実際には反映済みの場合があるため。
	c.reconcile(ctx, userID)

	c.mu.Lock()
	c.inFlight = false
	c.mu.Unlock()

	if opErr != nil {
		return fmt.Errorf("%sに失敗しました: %w", action, opErr)
	}
	return nil
}

// reconcile は専用エンドポイントの応答でミラーを上書きする。
func (c *FollowController) reconcile(ctx context.Context, userID int64) {
	status, err := c.api.FollowStatus(ctx, userID)
	if err != nil {
		c.logger.Warn("フォロー状態の照合に失敗しました。楽観的表示を維持します",
			slog.Int64("user_id", userID),
			slog.String("error", err.Error()),
		)
		return
	}
	c.apply(status)
}

func (c *FollowController) apply(status *model.FollowStatus) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.following = status.Following
	c.followerCount = status.FollowerCount
}
