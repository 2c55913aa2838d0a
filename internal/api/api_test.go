package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

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

// newTestAPI はhttptestサーバに向けたAPIを生成する。
func newTestAPI(t *testing.T, handler http.Handler) (*API, *httptest.Server) {
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
	return New(client, log), srv
}

func TestAuthService_Login(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/auth/login", func(w http.ResponseWriter, r *http.Request) {
		var req LoginRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("リクエストボディの読み取りに失敗した: %v", err)
		}
		if req.Email != "taro@example.com" {
			t.Errorf("email = %q, want %q", req.Email, "taro@example.com")
		}
		writeJSON(w, model.TokenResponse{AccessToken: "jwt-abc", TokenType: "Bearer"})
	})
	a, _ := newTestAPI(t, mux)

	tok, err := a.Auth.Login(context.Background(), "taro@example.com", "secret")
	if err != nil {
		t.Fatalf("Login がエラーを返した: %v", err)
	}
	if tok.AccessToken != "jwt-abc" {
		t.Errorf("AccessToken = %q, want %q", tok.AccessToken, "jwt-abc")
	}
}

func TestUserService_FollowStatus(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/users/42/follow/status", func(w http.ResponseWriter, r *http.Request) {
		// 鮮度確保のためのキャッシュバスティングパラメータが付くこと。
		if r.URL.Query().Get("_t") == "" {
			t.Error("_t パラメータが付与されていない")
		}
		writeJSON(w, model.FollowStatus{Following: true, FollowerCount: 7})
	})
	a, _ := newTestAPI(t, mux)

	st, err := a.Users.FollowStatus(context.Background(), 42)
	if err != nil {
		t.Fatalf("FollowStatus がエラーを返した: %v", err)
	}
	if !st.Following {
		t.Error("Following = false, want true")
	}
	if st.FollowerCount != 7 {
		t.Errorf("FollowerCount = %d, want 7", st.FollowerCount)
	}
}

func TestUserService_FollowUnfollow(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/users/42/follow", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, model.FollowStatus{Following: true, FollowerCount: 8})
	})
	mux.HandleFunc("DELETE /api/users/42/follow", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, model.FollowStatus{Following: false, FollowerCount: 7})
	})
	a, _ := newTestAPI(t, mux)

	st, err := a.Users.Follow(context.Background(), 42)
	if err != nil {
		t.Fatalf("Follow がエラーを返した: %v", err)
	}
	if !st.Following || st.FollowerCount != 8 {
		t.Errorf("Follow 後の状態 = %+v, want following=true count=8", st)
	}

	st, err = a.Users.Unfollow(context.Background(), 42)
	if err != nil {
		t.Fatalf("Unfollow がエラーを返した: %v", err)
	}
	if st.Following || st.FollowerCount != 7 {
		t.Errorf("Unfollow 後の状態 = %+v, want following=false count=7", st)
	}
}

func TestPostService_CreateMultipart(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/posts", func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Fatalf("multipartの解析に失敗した: %v", err)
		}
		meta := r.FormValue("post")
		var req CreatePostRequest
		if err := json.Unmarshal([]byte(meta), &req); err != nil {
			t.Fatalf("postフィールドのJSON解析に失敗した: %v", err)
		}
		if req.Content != "今日はGoを勉強した" {
			t.Errorf("content = %q, want %q", req.Content, "今日はGoを勉強した")
		}
		files := r.MultipartForm.File["files"]
		if len(files) != 1 {
			t.Fatalf("files の数 = %d, want 1", len(files))
		}
		if files[0].Filename != "note.png" {
			t.Errorf("filename = %q, want %q", files[0].Filename, "note.png")
		}
		writeJSON(w, model.Post{ID: 100, Content: req.Content})
	})
	a, _ := newTestAPI(t, mux)

	post, err := a.Posts.Create(context.Background(),
		CreatePostRequest{Content: "今日はGoを勉強した"},
		[]PostFile{{Name: "note.png", Reader: strings.NewReader("png-bytes")}},
	)
	if err != nil {
		t.Fatalf("Create がエラーを返した: %v", err)
	}
	if post.ID != 100 {
		t.Errorf("ID = %d, want 100", post.ID)
	}
}

func TestPostService_DeleteRetriesOnConflict(t *testing.T) {
	var calls int
	mux := http.NewServeMux()
	mux.HandleFunc("DELETE /api/posts/5", func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			writeJSON(w, map[string]string{"message": "foreign key constraint violation"})
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})
	a, _ := newTestAPI(t, mux)

	if err := a.Posts.Delete(context.Background(), 5); err != nil {
		t.Fatalf("Delete がエラーを返した: %v", err)
	}
	if calls != 2 {
		t.Errorf("呼び出し回数 = %d, want 2", calls)
	}
}

func TestPostService_DeleteBlockedAfterRetries(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("DELETE /api/posts/5", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		writeJSON(w, map[string]string{"message": "foreign key constraint violation"})
	})
	a, _ := newTestAPI(t, mux)

	err := a.Posts.Delete(context.Background(), 5)
	if err == nil {
		t.Fatal("Delete がエラーを返さなかった")
	}
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("APIError 以外のエラーが返った: %v", err)
	}
	if apiErr.Code != model.ErrCodePostDeleteBlocked {
		t.Errorf("Code = %q, want %q", apiErr.Code, model.ErrCodePostDeleteBlocked)
	}
	if !errors.Is(err, model.ErrConflict) {
		t.Error("errors.Is(err, ErrConflict) = false, want true")
	}
}

func TestPostService_DeleteNoRetryOnOtherError(t *testing.T) {
	var calls int
	mux := http.NewServeMux()
	mux.HandleFunc("DELETE /api/posts/5", func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusNotFound)
		writeJSON(w, map[string]string{"message": "post not found"})
	})
	a, _ := newTestAPI(t, mux)

	if err := a.Posts.Delete(context.Background(), 5); err == nil {
		t.Fatal("Delete がエラーを返さなかった")
	}
	if calls != 1 {
		t.Errorf("呼び出し回数 = %d, want 1（競合以外は再試行しない）", calls)
	}
}

func TestNotificationService_UnreadCount(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/notifications/unread/count", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]int{"count": 3})
	})
	a, _ := newTestAPI(t, mux)

	n, err := a.Notifications.UnreadCount(context.Background())
	if err != nil {
		t.Fatalf("UnreadCount がエラーを返した: %v", err)
	}
	if n != 3 {
		t.Errorf("count = %d, want 3", n)
	}
}

func TestNotificationService_List(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/notifications", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("unreadOnly") != "true" {
			t.Errorf("unreadOnly = %q, want %q", q.Get("unreadOnly"), "true")
		}
		if q.Get("page") != "0" || q.Get("size") != "20" {
			t.Errorf("page/size = %q/%q, want 0/20", q.Get("page"), q.Get("size"))
		}
		writeJSON(w, model.Page[model.Notification]{
			Content:       []model.Notification{{ID: 1, IsRead: false}},
			TotalElements: 1,
			Last:          true,
		})
	})
	a, _ := newTestAPI(t, mux)

	page, err := a.Notifications.List(context.Background(), true, 0, 20)
	if err != nil {
		t.Fatalf("List がエラーを返した: %v", err)
	}
	if len(page.Content) != 1 {
		t.Fatalf("Content の数 = %d, want 1", len(page.Content))
	}
}

func TestPlanService_UpdateResourceStatus(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("PATCH /api/learning-plans/1/topics/2/resources/3/status", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]bool
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("リクエストボディの読み取りに失敗した: %v", err)
		}
		if !body["completed"] {
			t.Error("completed = false, want true")
		}
		writeJSON(w, model.Resource{ID: 3, IsCompleted: true})
	})
	a, _ := newTestAPI(t, mux)

	res, err := a.Plans.UpdateResourceStatus(context.Background(), 1, 2, 3, true)
	if err != nil {
		t.Fatalf("UpdateResourceStatus がエラーを返した: %v", err)
	}
	if !res.IsCompleted {
		t.Error("IsCompleted = false, want true")
	}
}

func TestActivityService_NonCritical401KeepsSession(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/users/9/activities", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})
	a, _ := newTestAPI(t, mux)

	_, err := a.Activity.Activities(context.Background(), 9, 10)
	if err == nil {
		t.Fatal("Activities がエラーを返さなかった")
	}
	if !errors.Is(err, model.ErrUnauthorized) {
		t.Errorf("errors.Is(err, ErrUnauthorized) = false: %v", err)
	}
	if errors.Is(err, model.ErrSessionExpired) {
		t.Error("非クリティカルの401がセッション失効として扱われた")
	}
}
