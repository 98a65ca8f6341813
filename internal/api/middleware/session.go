package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/sessions"
)

const (
	// SessionCookieName names the browser cookie that binds /api/v1/chat to a
	// conversation.
	SessionCookieName = "melodycomp"

	conversationKey   = "conversation_id"
	browserSessionKey = "browser_session"
	sessionMaxAgeSecs = 30 * 24 * 3600
)

// NewCookieStore returns the signed cookie store for browser sessions.
func NewCookieStore(secret string, secure bool) *sessions.CookieStore {
	store := sessions.NewCookieStore([]byte(secret))
	store.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   sessionMaxAgeSecs,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	}
	return store
}

// BrowserSession loads the cookie session into the gin context. A cookie
// that fails to decode (rotated secret, tampering) starts a fresh session.
func BrowserSession(store sessions.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		session, err := store.Get(c.Request, SessionCookieName)
		if err != nil {
			session, _ = store.New(c.Request, SessionCookieName)
		}
		c.Set(browserSessionKey, session)
		c.Next()
	}
}

// ConversationID returns the conversation bound to the browser session.
func ConversationID(c *gin.Context) string {
	session := browserSession(c)
	if session == nil {
		return ""
	}
	id, _ := session.Values[conversationKey].(string)
	return id
}

// BindConversation stores the conversation id in the session cookie.
func BindConversation(c *gin.Context, id string) error {
	session := browserSession(c)
	if session == nil {
		return nil
	}
	session.Values[conversationKey] = id
	return session.Save(c.Request, c.Writer)
}

func browserSession(c *gin.Context) *sessions.Session {
	v, ok := c.Get(browserSessionKey)
	if !ok {
		return nil
	}
	session, _ := v.(*sessions.Session)
	return session
}
