package handler

import (
	"crypto/rand"
	"encoding/hex"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/session"
)

const (
	csrfSessionKey = "csrf_token"
	csrfFormField  = "csrf_token"
	// CSRFHeader is accepted in place of the form field.
	CSRFHeader = "X-CSRF-Token"
)

// NewSessionStore returns the in-memory session store holding anti-forgery tokens.
func NewSessionStore() *session.Store {
	return session.New(session.Config{
		CookieHTTPOnly: true,
		CookieSameSite: "Lax",
	})
}

// SessionToken godoc
// @Summary Get the anti-forgery token
// @Description Creates the session on first use and returns its token. The token is generated once per session and never rotated mid-session.
// @Tags session
// @Produce json
// @Success 200 {object} sessionResponse
// @Router /api/session [get]
func SessionToken(sessions *session.Store) fiber.Handler {
	return func(c *fiber.Ctx) error {
		sess, err := sessions.Get(c)
		if err != nil {
			return writeError(c, fiber.StatusInternalServerError, "SESSION_ERROR", "session unavailable")
		}

		token, _ := sess.Get(csrfSessionKey).(string)
		if token == "" {
			if token, err = newCSRFToken(); err != nil {
				return writeError(c, fiber.StatusInternalServerError, "SESSION_ERROR", "session unavailable")
			}
			sess.Set(csrfSessionKey, token)
		}
		if err := sess.Save(); err != nil {
			return writeError(c, fiber.StatusInternalServerError, "SESSION_ERROR", "session unavailable")
		}
		return c.JSON(sessionResponse{CSRFToken: token})
	}
}

type sessionResponse struct {
	CSRFToken string `json:"csrf_token"`
}

// sessionCSRFToken reads the caller's session token without creating one.
// A missing session yields "", which never passes the integrity check.
func sessionCSRFToken(c *fiber.Ctx, sessions *session.Store) string {
	sess, err := sessions.Get(c)
	if err != nil {
		return ""
	}
	token, _ := sess.Get(csrfSessionKey).(string)
	return token
}

// submittedCSRFToken prefers the form field and falls back to the header.
func submittedCSRFToken(c *fiber.Ctx) string {
	if token := c.FormValue(csrfFormField); token != "" {
		return token
	}
	return c.Get(CSRFHeader)
}

func newCSRFToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
