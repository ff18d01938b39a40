package httpapi

import (
	"html/template"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

var loginTemplate = template.Must(template.New("login").Parse(`<!doctype html>
<html>
<head><meta charset="utf-8"><title>Sign in</title></head>
<body>
<h1>Sign in</h1>
{{if .Error}}<p role="alert">{{.Error}}</p>{{end}}
<form method="post" action="{{.Action}}">
<input type="hidden" name="next" value="{{.Next}}">
<label>Email <input type="email" name="email" value="{{.Email}}" required></label>
<label>Password <input type="password" name="password" required></label>
<button type="submit">Sign in</button>
</form>
</body>
</html>
`))

type loginPage struct {
	Action string
	Next   string
	Email  string
	Error  string
}

// LoginFormHandler renders the login form, preserving next.
func (h *Handler) LoginFormHandler(w http.ResponseWriter, r *http.Request) {
	h.renderLogin(w, http.StatusOK, loginPage{Next: safeNext(r.URL.Query().Get("next"))})
}

// LoginSubmitHandler checks credentials, sets the session cookie and
// redirects to next. Without a next target it answers 200.
func (h *Handler) LoginSubmitHandler(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.renderLogin(w, http.StatusBadRequest, loginPage{Error: "Invalid form."})
		return
	}
	email := r.PostForm.Get("email")
	next := safeNext(r.PostForm.Get("next"))

	user, err := h.engine.Login(r.Context(), email, r.PostForm.Get("password"))
	if err != nil {
		h.renderLogin(w, http.StatusUnauthorized, loginPage{
			Next:  next,
			Email: email,
			Error: "Invalid email or password.",
		})
		return
	}

	token, err := h.engine.NewSession(user.ID)
	if err != nil {
		h.logger.Error("session token issuance failed", zap.Error(err))
		h.renderLogin(w, http.StatusInternalServerError, loginPage{Next: next, Error: "Please try again."})
		return
	}
	h.setSessionCookie(w, token)

	if next != "" {
		http.Redirect(w, r, next, http.StatusFound)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"user": user})
}

func (h *Handler) renderLogin(w http.ResponseWriter, status int, page loginPage) {
	page.Action = h.engine.Config().Security.LoginPath
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	if err := loginTemplate.Execute(w, page); err != nil {
		h.logger.Error("render login form", zap.Error(err))
	}
}

func (h *Handler) sessionCookieName() string {
	return h.engine.Config().Security.SessionCookieName
}

func (h *Handler) sessionToken(r *http.Request) string {
	c, err := r.Cookie(h.sessionCookieName())
	if err != nil {
		return ""
	}
	return c.Value
}

func (h *Handler) setSessionCookie(w http.ResponseWriter, token string) {
	ttl := h.engine.SessionTTL()
	http.SetCookie(w, &http.Cookie{
		Name:     h.sessionCookieName(),
		Value:    token,
		Path:     "/",
		MaxAge:   int(ttl / time.Second),
		HttpOnly: true,
		Secure:   h.engine.SecureCookies(),
		SameSite: http.SameSiteLaxMode,
	})
}

func (h *Handler) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     h.sessionCookieName(),
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.engine.SecureCookies(),
		SameSite: http.SameSiteLaxMode,
	})
}

// safeNext only accepts same-origin absolute paths, so the login form
// cannot be used as an open redirect.
func safeNext(next string) string {
	if !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") || strings.HasPrefix(next, "/\\") {
		return ""
	}
	return next
}
