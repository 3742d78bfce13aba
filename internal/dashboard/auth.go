package dashboard

import (
	"errors"
	"net/http"

	"github.com/TheBase/TheBase/internal/session"
)

type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type sessionView struct {
	Token     string `json:"token,omitempty"`
	UserID    string `json:"user_id"`
	Email     string `json:"email"`
	ExpiresAt string `json:"expires_at"`
}

func viewSession(sess *session.Session, withToken bool) sessionView {
	v := sessionView{UserID: sess.UserID, Email: sess.Email, ExpiresAt: sess.ExpiresAt.UTC().Format("2006-01-02T15:04:05Z")}
	if withToken {
		v.Token = sess.Token
	}
	return v
}

func (s *Server) handleSignUp(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	if !s.opts.AllowSignUp {
		writeError(w, http.StatusForbidden, "sign-up is disabled")
		return
	}
	var c credentials
	if !decodeBody(w, r, &c) {
		return
	}
	sess, err := s.opts.Sessions.SignUp(r.Context(), c.Email, c.Password)
	switch {
	case errors.Is(err, session.ErrUserExists):
		writeError(w, http.StatusConflict, err.Error())
		return
	case err != nil:
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, viewSession(sess, true))
}

func (s *Server) handleSignIn(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	var c credentials
	if !decodeBody(w, r, &c) {
		return
	}
	sess, err := s.opts.Sessions.SignIn(r.Context(), c.Email, c.Password)
	if errors.Is(err, session.ErrInvalidCredentials) {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, viewSession(sess, true))
}

func (s *Server) handleSignOut(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	if err := s.opts.Sessions.SignOut(SessionFrom(r.Context()).Token); err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	writeJSON(w, http.StatusOK, viewSession(SessionFrom(r.Context()), false))
}
