package routes

import (
	"errors"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/render"
	"github.com/mattn/go-sqlite3"
	"github.com/mbolis/dynamic-forms/app"
	"github.com/mbolis/dynamic-forms/httpx"
	"github.com/mbolis/dynamic-forms/log"
	"github.com/mbolis/dynamic-forms/model"
	"github.com/mbolis/dynamic-forms/routes/middlewares"
)

// Signup registers an account. The first account ever created is the
// administrator.
func Signup(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var creds model.Credentials
		err := render.DecodeJSON(r.Body, &creds)
		if err != nil {
			httpx.LogStatus(w, r, http.StatusBadRequest, log.DebugLevel, "request.parse_body")
			return
		}

		if err = httpx.CheckMobile(creds.MobileNumber); err != nil {
			httpx.LogStatusMsg(w, r, http.StatusBadRequest, log.DebugLevel, "signup.mobile_number", "%s", err)
			return
		}
		if err = httpx.CheckPIN(creds.Password); err != nil {
			httpx.LogStatusMsg(w, r, http.StatusBadRequest, log.DebugLevel, "signup.password", "%s", err)
			return
		}

		hash, err := httpx.HashPIN(creds.Password)
		if err != nil {
			httpx.LogInternalError(w, r, "signup.hash", err)
			return
		}

		res, err := app.ExecContext(r.Context(), `
			INSERT INTO user (mobile_number, password_hash, is_admin, is_active, created_at)
			VALUES (?, ?, NOT EXISTS (SELECT 1 FROM user), 1, ?)`,
			creds.MobileNumber,
			hash,
			time.Now().UTC(),
		)
		var sqliteErr sqlite3.Error
		if errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique {
			httpx.LogStatusMsg(w, r, http.StatusBadRequest, log.DebugLevel, "signup.duplicate", "Mobile number already registered")
			return
		}
		if err != nil {
			httpx.LogInternalError(w, r, "db.insert_user", err)
			return
		}
		id, err := res.LastInsertId()
		if err != nil {
			httpx.LogInternalError(w, r, "db.insert_user.id", err)
			return
		}

		u, err := middlewares.LoadUser(r.Context(), app.DB, "id = ?", id)
		if err != nil {
			httpx.LogInternalError(w, r, "db.get_user", err)
			return
		}

		log.WithFields(log.Fields{"user": u.ID, "admin": u.IsAdmin}).Info("signup: account created")
		w.WriteHeader(http.StatusCreated)
		render.JSON(w, r, u)
	}
}

func Login(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var creds model.Credentials
		err := render.DecodeJSON(r.Body, &creds)
		if err != nil {
			httpx.LogStatus(w, r, http.StatusBadRequest, log.DebugLevel, "request.parse_body")
			return
		}

		body := url.Values{
			"grant_type": {"password"},
			"username":   {creds.MobileNumber},
			"password":   {creds.Password},
		}
		r.Body = io.NopCloser(strings.NewReader(body.Encode()))
		r.Header.Set("content-type", "application/x-www-form-urlencoded")
		r.Header.Set("content-length", strconv.Itoa(len(body.Encode())))
		r.ContentLength = int64(len(body.Encode()))

		resp := httpx.NewResponseBuffer()
		app.UserCredentials(resp, r)
		if resp.Status() == http.StatusOK {
			resp.Flush(w)
			return
		}

		// the bearer server does not tell why it refused, ask again
		err = httpx.Authenticate(r.Context(), app.DB, creds.MobileNumber, creds.Password)
		switch {
		case errors.Is(err, httpx.ErrDeactivated):
			httpx.LogStatusMsg(w, r, http.StatusUnauthorized, log.DebugLevel, "login.deactivated", "Account deactivated")
		case err == nil, errors.Is(err, httpx.ErrBadCredentials):
			w.Header().Set("WWW-Authenticate", "Bearer")
			httpx.LogStatusMsg(w, r, http.StatusUnauthorized, log.DebugLevel, "login.credentials", "Incorrect mobile number or password")
		default:
			httpx.LogInternalError(w, r, "login.authenticate", err)
		}
	}
}

var reRefresh = regexp.MustCompile(`(?i)^refresh\s+(.*)`)

func Refresh(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		auth := r.Header.Get("authorization")
		match := reRefresh.FindStringSubmatch(auth)
		if len(match) == 0 {
			httpx.LogStatus(w, r, http.StatusUnauthorized, log.DebugLevel, "refresh.token")
			return
		}
		token := match[1]

		body := url.Values{
			"grant_type":    {"refresh_token"},
			"refresh_token": {token},
		}

		req, err := http.NewRequestWithContext(r.Context(), "POST", "/", strings.NewReader(body.Encode()))
		if err != nil {
			httpx.LogInternalError(w, r, "refresh.new_request", err)
			return
		}
		req.Header.Set("content-type", "application/x-www-form-urlencoded")
		req.Header.Set("content-length", strconv.Itoa(len(body.Encode())))

		resp := httpx.NewResponseBuffer()
		app.UserCredentials(resp, req)
		if resp.Status() != http.StatusOK {
			httpx.LogStatusMsg(w, r, http.StatusUnauthorized, log.DebugLevel, "refresh.refused", "Could not refresh")
			return
		}
		resp.Flush(w)
	}
}
