// Package storage はアップロードされたファイルを一時的にメモリ上で受け付けます。
// ファイルの中身は解析も保存もせず、名前・サイズ・MIME タイプのみを保持します。
package storage

import (
	"errors"
	"fmt"
	"math"
	"path"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/gabriel-vasile/mimetype"
)

const (
	// DefaultAcceptPattern は受け付けるファイル名のパターンです。
	DefaultAcceptPattern = "*.{csv,xlsx,xls,json,txt}"
	// DefaultMaxBytes は1ファイルの上限サイズ（50MB）です。
	DefaultMaxBytes int64 = 50 * 1024 * 1024
	// SniffBytes は MIME 判定に読む先頭バイト数です。
	SniffBytes = 3072
)

// ErrFileNotFound は指定位置のファイルがないときに返ります。
var ErrFileNotFound = errors.New("staged file not found")

// Error は API 利用者に返すエラーです。
type Error struct {
	Code    string
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// FileInfo は受け付けたファイルのメタデータです。
type FileInfo struct {
	Name       string    `json:"name"`
	Size       int64     `json:"size"`
	SizeLabel  string    `json:"sizeLabel"`
	MIME       string    `json:"mime"`
	UploadedAt time.Time `json:"uploadedAt"`
}

// Upload は受け付け前のファイルです。Head は先頭 SniffBytes バイトまでの内容です。
type Upload struct {
	Name string
	Size int64
	Head []byte
}

// Limits は受け付け条件です。
type Limits struct {
	MaxBytes      int64
	AcceptPattern string
}

// Staging は所有者ごとにファイル一覧を保持します。
type Staging struct {
	limits Limits
	now    func() time.Time

	mu    sync.Mutex
	files map[string][]FileInfo
}

// NewStaging は Staging を作成します。
func NewStaging(limits Limits) (*Staging, error) {
	if limits.MaxBytes <= 0 {
		limits.MaxBytes = DefaultMaxBytes
	}
	if limits.AcceptPattern == "" {
		limits.AcceptPattern = DefaultAcceptPattern
	}
	limits.AcceptPattern = strings.ToLower(limits.AcceptPattern)
	if !doublestar.ValidatePattern(limits.AcceptPattern) {
		return nil, fmt.Errorf("invalid accept pattern: %q", limits.AcceptPattern)
	}
	return &Staging{
		limits: limits,
		now:    time.Now,
		files:  make(map[string][]FileInfo),
	}, nil
}

// Limits は受け付け条件を返します。
func (s *Staging) Limits() Limits {
	return s.limits
}

// Accepts はファイル名が受け付けパターンに一致するかを返します。
func (s *Staging) Accepts(name string) bool {
	base := strings.ToLower(path.Base(strings.ReplaceAll(name, "\\", "/")))
	ok, err := doublestar.Match(s.limits.AcceptPattern, base)
	return err == nil && ok
}

// Stage はファイルをまとめて検証し、すべて妥当な場合のみ追加します。
func (s *Staging) Stage(owner string, uploads []Upload) ([]FileInfo, error) {
	if owner == "" {
		return nil, fmt.Errorf("owner is required")
	}
	if len(uploads) == 0 {
		return nil, &Error{Code: "INVALID_INPUT", Message: "アップロードされたファイルが見つかりません。"}
	}

	now := s.now().UTC()
	staged := make([]FileInfo, 0, len(uploads))
	for _, up := range uploads {
		if !s.Accepts(up.Name) {
			return nil, &Error{
				Code:    "UNSUPPORTED_FILE_TYPE",
				Message: fmt.Sprintf("%s は対応していない形式です（CSV, Excel, JSON, TXT のみ）。", up.Name),
			}
		}
		if up.Size > s.limits.MaxBytes {
			return nil, &Error{
				Code:    "LIMIT_EXCEEDED",
				Message: fmt.Sprintf("%s は上限サイズ %s を超えています。", up.Name, FormatSize(s.limits.MaxBytes)),
			}
		}
		head := up.Head
		if len(head) > SniffBytes {
			head = head[:SniffBytes]
		}
		staged = append(staged, FileInfo{
			Name:       path.Base(strings.ReplaceAll(up.Name, "\\", "/")),
			Size:       up.Size,
			SizeLabel:  FormatSize(up.Size),
			MIME:       mimetype.Detect(head).String(),
			UploadedAt: now,
		})
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.files[owner] = append(s.files[owner], staged...)
	return append([]FileInfo(nil), staged...), nil
}

// List は所有者のファイル一覧を返します。
func (s *Staging) List(owner string) []FileInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]FileInfo{}, s.files[owner]...)
}

// Names はファイル名の一覧を返します。
func (s *Staging) Names(owner string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	files := s.files[owner]
	if len(files) == 0 {
		return nil
	}
	names := make([]string, 0, len(files))
	for _, f := range files {
		names = append(names, f.Name)
	}
	return names
}

// Remove は index 番目のファイルを一覧から外します。
func (s *Staging) Remove(owner string, index int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	files := s.files[owner]
	if index < 0 || index >= len(files) {
		return fmt.Errorf("%w: index %d", ErrFileNotFound, index)
	}
	next := append(append([]FileInfo(nil), files[:index]...), files[index+1:]...)
	if len(next) == 0 {
		delete(s.files, owner)
		return nil
	}
	s.files[owner] = next
	return nil
}

// Clear は所有者のファイルをすべて外します。
func (s *Staging) Clear(owner string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.files, owner)
}

var sizeUnits = []string{"Bytes", "KB", "MB", "GB"}

// FormatSize はバイト数を 1024 単位で "1.5 KB" のように表示します（小数第2位まで）。
func FormatSize(bytes int64) string {
	if bytes <= 0 {
		return "0 Bytes"
	}
	v := float64(bytes)
	i := 0
	for v >= 1024 && i < len(sizeUnits)-1 {
		v /= 1024
		i++
	}
	v = math.Round(v*100) / 100
	return strconv.FormatFloat(v, 'f', -1, 64) + " " + sizeUnits[i]
}
