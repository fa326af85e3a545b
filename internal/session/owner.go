// Package session はブラウザごとの匿名の所有者IDをセッションクッキーで管理します。
package session

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	SessionCookieName    = "ad_session"
	sessionKeyOwner      = "owner_id"
	sessionKeyIssuedAt   = "issued_at"
	sessionKeyLastActive = "last_activity"
)

var (
	maxSessionLifetime = 7 * 24 * time.Hour
	idleTimeout        = 24 * time.Hour
)

// ContextOwnerKey はハンドラー間で所有者IDを共有するためのキーです。
const ContextOwnerKey = "session.owner"

// SessionMaxAgeSeconds はクッキーの MaxAge に利用する秒数を返します。
func SessionMaxAgeSeconds() int {
	return int(maxSessionLifetime.Seconds())
}

// NewStore は署名付きクッキーのセッションストアを作成します。
func NewStore(secret string, secure bool) sessions.Store {
	store := cookie.NewStore([]byte(secret))
	store.Options(sessions.Options{
		Path:     "/",
		MaxAge:   SessionMaxAgeSeconds(),
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
	return store
}

// Middleware はセッションと所有者IDを用意するミドルウェアを返します。
func Middleware(store sessions.Store) []gin.HandlerFunc {
	return []gin.HandlerFunc{
		sessions.Sessions(SessionCookieName, store),
		EnsureOwner(),
	}
}

// EnsureOwner は所有者IDがなければ発行し、期限切れなら新しいIDに切り替えます。
// 所有者IDは実行中のジョブやアップロードを画面ごとに分けるためだけに使います。
func EnsureOwner() gin.HandlerFunc {
	return func(c *gin.Context) {
		session := sessions.Default(c)
		now := time.Now()

		owner, _ := session.Get(sessionKeyOwner).(string)
		issuedAt := readUnix(session.Get(sessionKeyIssuedAt))
		lastActive := readUnix(session.Get(sessionKeyLastActive))

		expired := issuedAt.IsZero() || now.Sub(issuedAt) > maxSessionLifetime ||
			lastActive.IsZero() || now.Sub(lastActive) > idleTimeout
		if owner == "" || expired {
			owner = uuid.NewString()
			session.Set(sessionKeyOwner, owner)
			session.Set(sessionKeyIssuedAt, now.Unix())
		}
		session.Set(sessionKeyLastActive, now.Unix())
		// 保存に失敗しても所有者IDはこのリクエスト内で有効。エラーはアクセスログに残す
		if err := session.Save(); err != nil {
			_ = c.Error(fmt.Errorf("save session: %w", err))
		}

		c.Set(ContextOwnerKey, owner)
		c.Next()
	}
}

// OwnerID はリクエストの所有者IDを返します。EnsureOwner の後でのみ有効です。
func OwnerID(c *gin.Context) string {
	return c.GetString(ContextOwnerKey)
}

func readUnix(v interface{}) time.Time {
	switch t := v.(type) {
	case int64:
		return time.Unix(t, 0)
	case int:
		return time.Unix(int64(t), 0)
	case float64:
		return time.Unix(int64(t), 0)
	default:
		return time.Time{}
	}
}
