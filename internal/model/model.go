// Package model はLearnLink APIのワイヤ形式に対応するデータ転送オブジェクトを定義する。
// エンティティの正はすべてサーバー側にあり、クライアントは消費するのみ。
// 例外はフォロー/いいね/既読状態の楽観的ミラーで、これらはサーバー応答で照合される。
package model

import "time"

// User は認証済みユーザー本人の情報を表す。
type User struct {
	ID             int64  `json:"id"`
	Name           string `json:"name"`
	Email          string `json:"email"`
	Bio            string `json:"bio,omitempty"`
	Location       string `json:"location,omitempty"`
	ProfilePicture string `json:"profilePicture,omitempty"`
}

// UserProfile は他ユーザーから見たプロフィール情報を表す。
// IsCurrentUserFollowingは閲覧者依存のフラグで、楽観的更新の対象。
type UserProfile struct {
	ID                     int64      `json:"id"`
	Name                   string     `json:"name"`
	Email                  string     `json:"email,omitempty"`
	Bio                    string     `json:"bio,omitempty"`
	Location               string     `json:"location,omitempty"`
	ProfilePicture         string     `json:"profilePicture,omitempty"`
	JoinedDate             *time.Time `json:"joinedDate,omitempty"`
	FollowersCount         int64      `json:"followersCount"`
	FollowingCount         int64      `json:"followingCount"`
	PostsCount             int64      `json:"postsCount"`
	IsCurrentUserFollowing bool       `json:"isCurrentUserFollowing"`
}

// FollowStatus はフォロー状態確認エンドポイントの応答。
// この応答が正とされ、楽観的更新後の照合に使用される。
type FollowStatus struct {
	Following     bool `json:"following"`
	FollowerCount int  `json:"followerCount"`
}

// Media は投稿に添付されたメディアを表す。
type Media struct {
	Type    string `json:"type"`
	FileURL string `json:"fileUrl"`
}

// Post は投稿を表す。いいね数と既いいねフラグは楽観的更新の対象。
type Post struct {
	ID                   int64      `json:"id"`
	Title                string     `json:"title"`
	Content              string     `json:"content"`
	Author               *User      `json:"author,omitempty"`
	Category             string     `json:"category,omitempty"`
	Media                []Media    `json:"media,omitempty"`
	LikesCount           int        `json:"likesCount"`
	IsLikedByCurrentUser bool       `json:"isLikedByCurrentUser"`
	CommentsCount        int        `json:"commentsCount"`
	LearningProgress     int        `json:"learningProgressPercent"`
	CreatedAt            *time.Time `json:"createdAt,omitempty"`
}

// Comment は投稿に対するコメントを表す。
type Comment struct {
	ID        int64      `json:"id"`
	Content   string     `json:"content"`
	User      *User      `json:"user,omitempty"`
	CreatedAt *time.Time `json:"createdAt,omitempty"`
}

// CompletionStatus はトピックの完了状態。
type CompletionStatus string

const (
	CompletionNotStarted CompletionStatus = "NOT_STARTED"
	CompletionInProgress CompletionStatus = "IN_PROGRESS"
	CompletionCompleted  CompletionStatus = "COMPLETED"
)

// ResourceType はリソースの種別。
type ResourceType string

const (
	ResourceArticle ResourceType = "ARTICLE"
	ResourceVideo   ResourceType = "VIDEO"
	ResourceCourse  ResourceType = "COURSE"
	ResourceBook    ResourceType = "BOOK"
	ResourcePDF     ResourceType = "PDF"
	ResourceOther   ResourceType = "OTHER"
)

// Resource は学習プランのトピックに属するリソースを表す。
// ファイル添付リソースはプレースホルダURLで作成され、後からファイルが紐付けられる。
type Resource struct {
	ID          int64        `json:"id"`
	Title       string       `json:"title"`
	Description string       `json:"description,omitempty"`
	URL         string       `json:"url"`
	Type        ResourceType `json:"type"`
	IsCompleted bool         `json:"isCompleted"`
}

// Topic は学習プランのトピックを表す。リソースの順序はサーバーが保持する。
type Topic struct {
	ID               int64            `json:"id"`
	Title            string           `json:"title"`
	Description      string           `json:"description,omitempty"`
	CompletionStatus CompletionStatus `json:"completionStatus"`
	Resources        []Resource       `json:"resources"`
}

// LearningPlan は学習プランを表す。
// CompletionPercentageはトピック/リソースの完了数からサーバーが導出する値であり、
// クライアント側で再計算・書き換えしてはならない。
type LearningPlan struct {
	ID                   int64      `json:"id"`
	Title                string     `json:"title"`
	Description          string     `json:"description,omitempty"`
	Category             string     `json:"category,omitempty"`
	IsPublic             bool       `json:"isPublic"`
	EstimatedDays        int        `json:"estimatedDays,omitempty"`
	StartDate            *time.Time `json:"startDate,omitempty"`
	TargetCompletionDate *time.Time `json:"targetCompletionDate,omitempty"`
	Creator              *User      `json:"creator,omitempty"`
	Topics               []Topic    `json:"topics"`
	CompletionPercentage float64    `json:"completionPercentage"`
}

// NotificationType は通知の種別。
type NotificationType string

const (
	NotificationLike      NotificationType = "LIKE"
	NotificationComment   NotificationType = "COMMENT"
	NotificationFollow    NotificationType = "FOLLOW"
	NotificationMention   NotificationType = "MENTION"
	NotificationPlanShare NotificationType = "LEARNING_PLAN_SHARE"
)

// Notification は通知を表す。サーバー側で作成され、クライアントは既読状態のみ変更する。
type Notification struct {
	ID         int64            `json:"id"`
	Type       NotificationType `json:"type"`
	Message    string           `json:"message"`
	Actor      *User            `json:"actor,omitempty"`
	EntityType string           `json:"entityType,omitempty"`
	EntityID   int64            `json:"entityId,omitempty"`
	IsRead     bool             `json:"isRead"`
	CreatedAt  *time.Time       `json:"createdAt,omitempty"`
}

// TokenResponse はログイン/サインアップエンドポイントの応答。
type TokenResponse struct {
	AccessToken string `json:"accessToken"`
	TokenType   string `json:"tokenType"`
}

// Page はページ分割された応答を表す（content/number/size/last規約）。
type Page[T any] struct {
	Content       []T   `json:"content"`
	Number        int   `json:"number"`
	Size          int   `json:"size"`
	TotalElements int64 `json:"totalElements"`
	TotalPages    int   `json:"totalPages"`
	Last          bool  `json:"last"`
}
