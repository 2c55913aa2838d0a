package social

import (
	"context"
	"log/slog"
	"sync"

	"github.com/learnlink/learnlink-go/internal/api"
	"github.com/learnlink/learnlink-go/internal/model"
)

// LikeToggler は投稿のいいね状態を管理する。
// 表示は楽観的に反転させ、切り替えエンドポイントの応答で照合する。
type LikeToggler struct {
	api    *api.PostService
	logger *slog.Logger

	mu    sync.Mutex
	posts map[int64]*likeState
}

type likeState struct {
	liked bool
	count int
}

// NewLikeToggler はLikeTogglerを生成する。
func NewLikeToggler(posts *api.PostService, logger *slog.Logger) *LikeToggler {
	if logger == nil {
		logger = slog.Default()
	}
	return &LikeToggler{api: posts, logger: logger, posts: make(map[int64]*likeState)}
}

// Track は投稿の現在のいいね状態を登録する。一覧取得時に呼ぶ。
func (l *LikeToggler) Track(post *model.Post) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.posts[post.ID] = &likeState{liked: post.IsLikedByCurrentUser, count: post.LikesCount}
}

// State は投稿のいいね状態ミラーを返す。未登録ならfalse, 0。
func (l *LikeToggler) State(postID int64) (liked bool, count int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if st, ok := l.posts[postID]; ok {
		return st.liked, st.count
	}
	return false, 0
}

// Toggle はいいねを反転させる。表示は即座に反転し、
// 応答に含まれる投稿のいいね数・フラグで必ず上書きされる。
// 失敗時は反転前の状態へ戻す。
func (l *LikeToggler) Toggle(ctx context.Context, postID int64) error {
	l.mu.Lock()
	st, ok := l.posts[postID]
	if !ok {
		st = &likeState{}
		l.posts[postID] = st
	}
	prev := *st
	st.liked = !st.liked
	if st.liked {
		st.count++
	} else if st.count > 0 {
		st.count--
	}
	l.mu.Unlock()

	post, err := l.api.ToggleLike(ctx, postID)
	if err != nil {
		l.logger.Warn("いいねの切り替えに失敗しました。表示を元に戻します",
			slog.Int64("post_id", postID),
			slog.String("error", err.Error()),
		)
		l.mu.Lock()
		*st = prev
		l.mu.Unlock()
		return err
	}

	l.mu.Lock()
	st.liked = post.IsLikedByCurrentUser
	st.count = post.LikesCount
	l.mu.Unlock()
	return nil
}
