// Package planner は学習プランの下書き検証と公開処理を提供する。
// ファイル添付リソースは2段階で作成される。まずプレースホルダURLで
// レコードを作成し、サーバー採番のIDが確定してからファイルを紐付ける。
package planner

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/go-playground/validator/v10"

	"github.com/learnlink/learnlink-go/internal/api"
	"github.com/learnlink/learnlink-go/internal/model"
)

// PlaceholderURL はファイル未添付のリソースに設定される仮URL。
// ファイルのアップロード完了後にサーバーが実際の保存先へ書き換える。
const PlaceholderURL = "pending://file-upload"

// PlanDraft は公開前の学習プランの下書き。
type PlanDraft struct {
	Title       string       `validate:"required,min=3,max=100"`
	Description string       `validate:"max=1000"`
	Category    string       `validate:"required"`
	Public      bool         `validate:"-"`
	Topics      []TopicDraft `validate:"required,min=1,dive"`
}

// TopicDraft はトピックの下書き。
type TopicDraft struct {
	Title       string          `validate:"required,min=1,max=100"`
	Description string          `validate:"max=1000"`
	Resources   []ResourceDraft `validate:"dive"`
}

// ResourceDraft はリソースの下書き。
// FileがnilでなければURLの代わりにファイルが紐付けられる。
type ResourceDraft struct {
	Title string             `validate:"required,min=1,max=200"`
	Type  model.ResourceType `validate:"required,oneof=ARTICLE VIDEO COURSE BOOK PDF OTHER"`
	URL   string             `validate:"omitempty,url"`
	File  *FileAttachment    `validate:"-"`
}

// FileAttachment は下書きに添付されたファイル。
// トピックとリソースの位置で管理され、公開処理がサーバー採番IDへ変換する。
type FileAttachment struct {
	Name   string
	Reader io.Reader
}

// URLPreflight はURLリソースの事前検証を行う。公開ホストでないURLを拒否する。
// nilの場合は検証を行わない。
type URLPreflight interface {
	ValidateURL(rawURL string) error
}

// Publisher は下書きの検証と公開を担う。
type Publisher struct {
	api       *api.PlanService
	validate  *validator.Validate
	preflight URLPreflight
	logger    *slog.Logger
}

// NewPublisher はPublisherを生成する。preflightはnil可。
func NewPublisher(plans *api.PlanService, preflight URLPreflight, logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{
		api:       plans,
		validate:  validator.New(),
		preflight: preflight,
		logger:    logger,
	}
}

// Validate は下書きのスキーマ検証とURLの事前検証を行う。
func (p *Publisher) Validate(draft *PlanDraft) error {
	if err := p.validate.Struct(draft); err != nil {
		return model.NewValidationError(err.Error())
	}

	for ti, topic := range draft.Topics {
		for ri, res := range topic.Resources {
			if res.File == nil && res.URL == "" {
				return model.NewValidationError(fmt.Sprintf(
					"トピック%dのリソース%dにはURLかファイルのどちらかが必要です", ti+1, ri+1))
			}
			if res.File == nil && p.preflight != nil {
				if err := p.preflight.ValidateURL(res.URL); err != nil {
					return model.NewValidationError(fmt.Sprintf(
						"トピック%dのリソース%dのURLが不正です: %v", ti+1, ri+1, err))
				}
			}
		}
	}
	return nil
}

// Publish は下書きを検証し、プランを作成してファイルを紐付ける。
//
// 作成エンドポイントはネストされたリソースを常には永続化しないため、
// 作成後にプランを再取得し、下書きと突き合わせて欠落リソースを
// 個別エンドポイントで補完してからアップロードを行う。
func (p *Publisher) Publish(ctx context.Context, draft *PlanDraft) (*model.LearningPlan, error) {
	if err := p.Validate(draft); err != nil {
		return nil, err
	}

	created, err := p.api.Create(ctx, buildPlanRequest(draft))
	if err != nil {
		return nil, err
	}

	// サーバー採番IDを確定させるために再取得する。
	plan, err := p.api.Get(ctx, created.ID)
	if err != nil {
		return nil, fmt.Errorf("作成したプランの再取得に失敗しました: %w", err)
	}

	if len(plan.Topics) != len(draft.Topics) {
		return nil, fmt.Errorf("作成されたトピック数(%d)が下書き(%d)と一致しません",
			len(plan.Topics), len(draft.Topics))
	}

	for ti := range draft.Topics {
		if err := p.attachTopicFiles(ctx, plan.ID, &plan.Topics[ti], &draft.Topics[ti]); err != nil {
			return nil, err
		}
	}

	// アップロードで書き換えられたURLを反映した最終形を返す。
	final, err := p.api.Get(ctx, plan.ID)
	if err != nil {
		p.logger.Warn("公開後のプラン再取得に失敗しました", slog.String("error", err.Error()))
		return plan, nil
	}
	return final, nil
}

// attachTopicFiles は1トピック分のリソースを下書きと突き合わせ、
// 欠落リソースを補完した上でファイルをアップロードする。
func (p *Publisher) attachTopicFiles(ctx context.Context, planID int64, topic *model.Topic, draft *TopicDraft) error {
	// タイトルで突き合わせる。同名リソースは出現順に対応付ける。
	remaining := make(map[string][]*model.Resource)
	for i := range topic.Resources {
		r := &topic.Resources[i]
		remaining[r.Title] = append(remaining[r.Title], r)
	}

	for ri := range draft.Resources {
		dr := &draft.Resources[ri]

		var resourceID int64
		if matches := remaining[dr.Title]; len(matches) > 0 {
			resourceID = matches[0].ID
			remaining[dr.Title] = matches[1:]
		} else {
			// ネスト作成で落とされたリソースを個別エンドポイントで補完する。
			p.logger.Warn("作成応答にリソースが含まれていません。個別に作成します",
				slog.Int64("plan_id", planID),
				slog.Int64("topic_id", topic.ID),
				slog.String("title", dr.Title),
			)
			createdRes, err := p.api.AddResource(ctx, planID, topic.ID, buildResourceRequest(dr))
			if err != nil {
				return fmt.Errorf("リソース %q の補完作成に失敗しました: %w", dr.Title, err)
			}
			resourceID = createdRes.ID
		}

		if dr.File == nil {
			continue
		}
		if _, err := p.api.UploadResourceFile(ctx, planID, topic.ID, resourceID, dr.File.Name, dr.File.Reader); err != nil {
			return fmt.Errorf("リソース %q のファイルアップロードに失敗しました: %w", dr.Title, err)
		}
	}
	return nil
}

func buildPlanRequest(draft *PlanDraft) api.PlanRequest {
	req := api.PlanRequest{
		Title:       draft.Title,
		Description: draft.Description,
		Category:    draft.Category,
		Public:      draft.Public,
	}
	for i, topic := range draft.Topics {
		tr := api.TopicRequest{
			Title:       topic.Title,
			Description: topic.Description,
			OrderIndex:  i,
		}
		for j := range topic.Resources {
			tr.Resources = append(tr.Resources, buildResourceRequest(&topic.Resources[j]))
		}
		req.Topics = append(req.Topics, tr)
	}
	return req
}

func buildResourceRequest(dr *ResourceDraft) api.ResourceRequest {
	url := dr.URL
	if dr.File != nil {
		url = PlaceholderURL
	}
	return api.ResourceRequest{
		Title: dr.Title,
		URL:   url,
		Type:  dr.Type,
	}
}
