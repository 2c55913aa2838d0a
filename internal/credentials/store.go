// Package credentials はクライアント側の永続状態を管理する。
// ブラウザ実装でのlocalStorage（認証トークン）とsessionStorage
// （OAuth往復後の戻り先、1回限り）に相当する。
package credentials

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

// Store は認証トークンと一時状態の永続化インターフェース。
// テスト時はMemoryStoreに差し替え可能。
type Store interface {
	// Token は保存済みトークンを返す。存在しない場合は ("", false)。
	Token() (string, bool)
	// SaveToken はトークンを永続化する。
	SaveToken(token string) error
	// Clear はトークンを破棄する。トークンが存在しなくてもエラーにならない。
	Clear() error
	// SetReturnTo はOAuth往復後の戻り先を保存する。
	SetReturnTo(path string) error
	// TakeReturnTo は戻り先を返し、同時に破棄する（1回限りの消費）。
	// 未設定の場合は空文字を返す。
	TakeReturnTo() string
}

// TokenExpired はJWTトークンのexpクレームを検証なしでパースし、
// 有効期限切れかどうかを判定する。パースできないトークンや
// expクレームを持たないトークンは期限切れとは扱わない
// （正式な検証はサーバー側の責務）。
func TokenExpired(token string) bool {
	claims := jwt.MapClaims{}
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(token, claims); err != nil {
		return false
	}
	// expクレームが存在しない場合は期限切れと扱わない（第2引数false）。
	return !claims.VerifyExpiresAt(time.Now().Unix(), false)
}

// fileState はファイルに保存されるJSON形式。
type fileState struct {
	AuthToken string `json:"authToken,omitempty"`
	ReturnTo  string `json:"returnTo,omitempty"`
}

// FileStore はファイルベースのStore実装。
// トークンはパーミッション0600のJSONファイルに保存される。
type FileStore struct {
	mu   sync.Mutex
	path string
}

// NewFileStore はFileStoreを生成する。親ディレクトリは保存時に作成される。
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Token は保存済みトークンを返す。
func (s *FileStore) Token() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, err := s.load()
	if err != nil || st.AuthToken == "" {
		return "", false
	}
	return st.AuthToken, true
}

// SaveToken はトークンを永続化する。
func (s *FileStore) SaveToken(token string) error {
	if token == "" {
		return errors.New("空のトークンは保存できません")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	st, _ := s.load()
	st.AuthToken = token
	return s.save(st)
}

// Clear はトークンを破棄する。
func (s *FileStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, err := s.load()
	if err != nil {
		return nil
	}
	st.AuthToken = ""
	return s.save(st)
}

// SetReturnTo はOAuth往復後の戻り先を保存する。
func (s *FileStore) SetReturnTo(path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, _ := s.load()
	st.ReturnTo = path
	return s.save(st)
}

// TakeReturnTo は戻り先を返し、同時に破棄する。
func (s *FileStore) TakeReturnTo() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, err := s.load()
	if err != nil || st.ReturnTo == "" {
		return ""
	}
	ret := st.ReturnTo
	st.ReturnTo = ""
	if err := s.save(st); err != nil {
		return ret
	}
	return ret
}

// load はファイルから状態を読み込む。ファイル未作成の場合はゼロ値を返す。
func (s *FileStore) load() (fileState, error) {
	var st fileState
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return st, nil
		}
		return st, err
	}
	if err := json.Unmarshal(data, &st); err != nil {
		// 壊れたファイルは空として扱う（次の保存で上書きされる）
		return fileState{}, nil
	}
	return st, nil
}

// save は状態をファイルに書き込む。トークンを含むため0600で保存する。
func (s *FileStore) save(st fileState) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("認証情報ディレクトリの作成に失敗しました: %w", err)
	}
	data, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("認証情報のエンコードに失敗しました: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0o600); err != nil {
		return fmt.Errorf("認証情報ファイルの書き込みに失敗しました: %w", err)
	}
	return nil
}

// MemoryStore はインメモリのStore実装。テスト用。
type MemoryStore struct {
	mu       sync.Mutex
	token    string
	returnTo string
}

// NewMemoryStore はMemoryStoreを生成する。
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Token は保持中のトークンを返す。
func (s *MemoryStore) Token() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.token == "" {
		return "", false
	}
	return s.token, true
}

// SaveToken はトークンを保持する。
func (s *MemoryStore) SaveToken(token string) error {
	if token == "" {
		return errors.New("空のトークンは保存できません")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = token
	return nil
}

// Clear はトークンを破棄する。
func (s *MemoryStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = ""
	return nil
}

// SetReturnTo は戻り先を保持する。
func (s *MemoryStore) SetReturnTo(path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.returnTo = path
	return nil
}

// TakeReturnTo は戻り先を返し、同時に破棄する。
func (s *MemoryStore) TakeReturnTo() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	ret := s.returnTo
	s.returnTo = ""
	return ret
}

// インターフェース実装の静的チェック
var (
	_ Store = (*FileStore)(nil)
	_ Store = (*MemoryStore)(nil)
)
