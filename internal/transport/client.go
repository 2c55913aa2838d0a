// Package transport はLearnLink APIへのHTTPクライアントラッパーを提供する。
// 全リクエストへのBearerトークン付与、401応答の許可リスト判定、
// クライアント側レート制限、メトリクス記録を担う。
package transport

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/learnlink/learnlink-go/internal/credentials"
	"github.com/learnlink/learnlink-go/internal/metrics"
	"github.com/learnlink/learnlink-go/internal/model"
)

// Options はClientの生成パラメータ。
type Options struct {
	BaseURL           string
	Timeout           time.Duration
	RequestsPerMinute int
	Store             credentials.Store
	Logger            *slog.Logger
	Recorder          metrics.Recorder
}

// Client はresty.Clientをラップし、LearnLink API共通の横断的関心事を実装する。
// APIモジュールはR(ctx)でリクエストを組み立てる。
type Client struct {
	rc       *resty.Client
	store    credentials.Store
	logger   *slog.Logger
	limiter  *rate.Limiter
	recorder metrics.Recorder

	mu               sync.Mutex
	onSessionExpired func()
}

// New はClientを生成する。
func New(opts Options) *Client {
	if opts.Recorder == nil {
		opts.Recorder = metrics.Nop{}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.RequestsPerMinute <= 0 {
		opts.RequestsPerMinute = 120
	}

	c := &Client{
		store:    opts.Store,
		logger:   opts.Logger,
		limiter:  rate.NewLimiter(rate.Limit(float64(opts.RequestsPerMinute)/60.0), opts.RequestsPerMinute),
		recorder: opts.Recorder,
	}

	rc := resty.New().
		SetBaseURL(opts.BaseURL).
		SetTimeout(opts.Timeout).
		SetHeader("Accept", "application/json")

	rc.OnBeforeRequest(c.beforeRequest)
	rc.OnAfterResponse(c.afterResponse)

	c.rc = rc
	return c
}

// SetOnSessionExpired はクリティカルエンドポイントでの401によって
// セッションが破棄された際に呼ばれるフックを登録する。
// （ブラウザ実装での /login?expired=true への強制遷移に相当）
func (c *Client) SetOnSessionExpired(fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onSessionExpired = fn
}

// R はコンテキスト付きのリクエストを生成する。
func (c *Client) R(ctx context.Context) *resty.Request {
	return c.rc.R().SetContext(ctx)
}

// beforeRequest は送信前処理: レート制限、Bearerトークン付与、リクエストID付与。
func (c *Client) beforeRequest(_ *resty.Client, req *resty.Request) error {
	ctx := req.Context()
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	if token, ok := c.store.Token(); ok {
		req.SetHeader("Authorization", "Bearer "+token)
	}
	req.SetHeader("X-Request-ID", uuid.New().String())
	// Content-Typeを返さないサーバでもJSONとしてデコードする。
	req.ForceContentType("application/json")
	return nil
}

// afterResponse は受信後処理: メトリクス記録と、エラー応答のAPIErrorへの変換。
// 401は許可リスト判定により、非クリティカルならセッション維持のままエラーを返し、
// クリティカルなら保存済みトークンを破棄してセッション失効フックを呼ぶ。
// 成功応答はそのまま通過させる。
func (c *Client) afterResponse(_ *resty.Client, resp *resty.Response) error {
	c.recorder.RecordHTTPStatus(resp.StatusCode())
	c.recorder.RecordRequestLatency(resp.Time())

	if !resp.IsError() {
		return nil
	}

	url := resp.Request.URL

	if resp.StatusCode() == 401 {
		if IsNonCriticalURL(url) {
			c.logger.Warn("非クリティカルエンドポイントで認証エラーが発生しました。ログアウトせずに続行します",
				slog.String("url", url),
			)
			return model.NewUnauthorizedError(url)
		}

		c.logger.Warn("クリティカルエンドポイントで認証エラーが発生しました。セッションを破棄します",
			slog.String("url", url),
		)
		if err := c.store.Clear(); err != nil {
			c.logger.Error("トークンの破棄に失敗しました", slog.String("error", err.Error()))
		}

		c.mu.Lock()
		fn := c.onSessionExpired
		c.mu.Unlock()
		if fn != nil {
			fn()
		}

		return model.NewSessionExpiredError(url)
	}

	msg := serverMessage(resp.Body())
	c.logger.Error("APIがエラーステータスを返しました",
		slog.String("url", url),
		slog.Int("http_status", resp.StatusCode()),
		slog.String("message", msg),
	)
	return model.NewHTTPError(resp.StatusCode(), msg)
}

// serverMessage はエラー応答ボディから人間可読メッセージを取り出す。
// {"message": "..."} 形式を想定し、それ以外は空文字を返す。
func serverMessage(body []byte) string {
	var payload struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return ""
	}
	return payload.Message
}

// Normalize は実行エラーをAPIErrorへ正規化する。
// ミドルウェアが生成したAPIErrorはそのまま通し、
// ネットワーク障害等の素のエラーはネットワークエラーとしてラップする。
func Normalize(err error) error {
	if err == nil {
		return nil
	}
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}
	return model.NewNetworkError(err)
}
