package notify

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/learnlink/learnlink-go/internal/api"
	"github.com/learnlink/learnlink-go/internal/credentials"
	"github.com/learnlink/learnlink-go/internal/logger"
	"github.com/learnlink/learnlink-go/internal/model"
	"github.com/learnlink/learnlink-go/internal/transport"
)

// writeJSON はContent-Typeを付けてJSON応答を書き込む。
func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func newTestSyncer(t *testing.T, handler http.Handler, interval time.Duration) *Syncer {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	store := credentials.NewMemoryStore()
	_ = store.SaveToken("test-token")
	log := logger.Setup(io.Discard, slog.LevelError)
	client := transport.New(transport.Options{
		BaseURL:           srv.URL,
		Timeout:           5 * time.Second,
		RequestsPerMinute: 6000,
		Store:             store,
		Logger:            log,
	})
	a := api.New(client, log)
	return NewSyncer(Options{API: a.Notifications, Logger: log, Interval: interval})
}

func TestSyncer_RefreshUnreadCount(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/notifications/unread/count", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]int{"count": 5})
	})
	s := newTestSyncer(t, mux, time.Minute)

	if err := s.RefreshUnreadCount(context.Background()); err != nil {
		t.Fatalf("RefreshUnreadCount がエラーを返した: %v", err)
	}
	if got := s.UnreadCount(); got != 5 {
		t.Errorf("UnreadCount = %d, want 5", got)
	}
}

func TestSyncer_RefreshFailureKeepsMirror(t *testing.T) {
	var fail atomic.Bool
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/notifications/unread/count", func(w http.ResponseWriter, r *http.Request) {
		if fail.Load() {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		writeJSON(w, map[string]int{"count": 5})
	})
	s := newTestSyncer(t, mux, time.Minute)

	if err := s.RefreshUnreadCount(context.Background()); err != nil {
		t.Fatalf("RefreshUnreadCount がエラーを返した: %v", err)
	}
	fail.Store(true)

	if err := s.RefreshUnreadCount(context.Background()); err == nil {
		t.Fatal("失敗時にエラーが返らなかった")
	}
	// 取得失敗はミラーを壊さないこと。
	if got := s.UnreadCount(); got != 5 {
		t.Errorf("失敗後の UnreadCount = %d, want 5", got)
	}
}

func TestSyncer_MarkReadNotClobberedByConcurrentPoll(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("PATCH /api/notifications/1/read", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, model.Notification{ID: 1, IsRead: true})
	})
	s := newTestSyncer(t, mux, time.Minute)

	s.mu.Lock()
	s.notifications = []model.Notification{{ID: 1, IsRead: false}}
	s.unreadCount = 3
	s.mu.Unlock()

	// 既読化と並行してポーリングの上書きを走らせる。
	const polled = 10
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 100; i++ {
			s.setUnread(polled)
		}
	}()
	if err := s.MarkRead(context.Background(), 1); err != nil {
		t.Fatalf("MarkRead がエラーを返した: %v", err)
	}
	wg.Wait()

	// 減算は常に最新の件数に対して行われる。
	// 上書き前の値3に基づく古い減算結果2が最終値になってはならない。
	if got := s.UnreadCount(); got != polled && got != polled-1 {
		t.Errorf("UnreadCount = %d, want %d または %d", got, polled, polled-1)
	}
}

func TestSyncer_MarkReadOptimisticDecrement(t *testing.T) {
	var patched atomic.Bool
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/notifications", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, model.Page[model.Notification]{
			Content: []model.Notification{
				{ID: 1, IsRead: false},
				{ID: 2, IsRead: false},
			},
			Last: true,
		})
	})
	mux.HandleFunc("GET /api/notifications/unread/count", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]int{"count": 2})
	})
	mux.HandleFunc("PATCH /api/notifications/1/read", func(w http.ResponseWriter, r *http.Request) {
		patched.Store(true)
		writeJSON(w, model.Notification{ID: 1, IsRead: true})
	})
	s := newTestSyncer(t, mux, time.Minute)

	if _, err := s.Refresh(context.Background(), false, 0, 20); err != nil {
		t.Fatalf("Refresh がエラーを返した: %v", err)
	}

	if err := s.MarkRead(context.Background(), 1); err != nil {
		t.Fatalf("MarkRead がエラーを返した: %v", err)
	}
	if !patched.Load() {
		t.Error("既読化エンドポイントが呼ばれなかった")
	}
	if got := s.UnreadCount(); got != 1 {
		t.Errorf("UnreadCount = %d, want 1", got)
	}

	list := s.Notifications()
	if !list[0].IsRead {
		t.Error("ミラー上の通知が既読になっていない")
	}
	if list[1].IsRead {
		t.Error("無関係な通知まで既読になっている")
	}
}

func TestSyncer_MarkReadFailureNoRollback(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/notifications/unread/count", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]int{"count": 3})
	})
	mux.HandleFunc("PATCH /api/notifications/1/read", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	s := newTestSyncer(t, mux, time.Minute)
	_ = s.RefreshUnreadCount(context.Background())

	if err := s.MarkRead(context.Background(), 1); err == nil {
		t.Fatal("MarkRead がエラーを返さなかった")
	}
	// 失敗してもロールバックしない。次回ポーリングでサーバー値に収束する。
	if got := s.UnreadCount(); got != 2 {
		t.Errorf("失敗後の UnreadCount = %d, want 2", got)
	}
}

func TestSyncer_MarkReadFloorsAtZero(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("PATCH /api/notifications/1/read", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, model.Notification{ID: 1, IsRead: true})
	})
	s := newTestSyncer(t, mux, time.Minute)

	if err := s.MarkRead(context.Background(), 1); err != nil {
		t.Fatalf("MarkRead がエラーを返した: %v", err)
	}
	if got := s.UnreadCount(); got != 0 {
		t.Errorf("UnreadCount = %d, want 0（負数にならないこと）", got)
	}
}

func TestSyncer_MarkAllRead(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/notifications/unread/count", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]int{"count": 7})
	})
	mux.HandleFunc("PATCH /api/notifications/read-all", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	s := newTestSyncer(t, mux, time.Minute)
	_ = s.RefreshUnreadCount(context.Background())

	if err := s.MarkAllRead(context.Background()); err != nil {
		t.Fatalf("MarkAllRead がエラーを返した: %v", err)
	}
	if got := s.UnreadCount(); got != 0 {
		t.Errorf("UnreadCount = %d, want 0", got)
	}
}

func TestSyncer_OnChange(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/notifications/unread/count", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]int{"count": 4})
	})
	s := newTestSyncer(t, mux, time.Minute)

	var got atomic.Int64
	var calls atomic.Int64
	s.OnChange(func(count int) {
		got.Store(int64(count))
		calls.Add(1)
	})

	_ = s.RefreshUnreadCount(context.Background())
	if got.Load() != 4 {
		t.Errorf("コールバックが受け取った件数 = %d, want 4", got.Load())
	}
	// 同じ値での再取得ではコールバックは呼ばれないこと。
	_ = s.RefreshUnreadCount(context.Background())
	if calls.Load() != 1 {
		t.Errorf("コールバックの呼び出し回数 = %d, want 1", calls.Load())
	}
}

func TestSyncer_StartPollsAndStops(t *testing.T) {
	var polls atomic.Int64
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/notifications/unread/count", func(w http.ResponseWriter, r *http.Request) {
		polls.Add(1)
		writeJSON(w, map[string]int{"count": 1})
	})
	s := newTestSyncer(t, mux, 30*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Start(ctx)
		close(done)
	}()

	// 即時実行の1回と、ティッカーによる数回を待つ。
	time.Sleep(120 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("キャンセル後もポーリングループが停止しない")
	}
	if polls.Load() < 2 {
		t.Errorf("ポーリング回数 = %d, want >= 2", polls.Load())
	}
	if got := s.UnreadCount(); got != 1 {
		t.Errorf("UnreadCount = %d, want 1", got)
	}
}
