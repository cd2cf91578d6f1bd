package middlewares

import (
	"context"
	"database/sql"
	"errors"
	"net/http"

	"github.com/go-chi/oauth"
	"github.com/mbolis/dynamic-forms/app"
	"github.com/mbolis/dynamic-forms/httpx"
	"github.com/mbolis/dynamic-forms/log"
	"github.com/mbolis/dynamic-forms/model"
)

type userKey struct{}

// CurrentUser loads the account named by a bearer token authorized upstream
// by oauth.Authorize. Unknown and deactivated accounts are refused.
func CurrentUser(app app.App) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			mobile, _ := r.Context().Value(oauth.CredentialContext).(string)
			if mobile == "" {
				httpx.LogStatusMsg(w, r, http.StatusUnauthorized, log.DebugLevel, "auth.credential", "Could not validate credentials")
				return
			}

			u, err := LoadUser(r.Context(), app.DB, "mobile_number = ?", mobile)
			if errors.Is(err, sql.ErrNoRows) {
				httpx.LogStatusMsg(w, r, http.StatusUnauthorized, log.DebugLevel, "auth.user", "Could not validate credentials")
				return
			}
			if err != nil {
				httpx.LogInternalError(w, r, "db.get_current_user", err)
				return
			}
			if !u.IsActive {
				httpx.LogStatusMsg(w, r, http.StatusUnauthorized, log.DebugLevel, "auth.user", "Account deactivated")
				return
			}

			ctx := context.WithValue(r.Context(), userKey{}, u)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// User returns the account loaded by CurrentUser.
func User(r *http.Request) model.User {
	u, _ := r.Context().Value(userKey{}).(model.User)
	return u
}

// Admin middleware to check the current user is an administrator.
func Admin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !User(r).IsAdmin {
			httpx.LogStatusMsg(w, r, http.StatusForbidden, log.DebugLevel, "auth.admin", "Admin privileges required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// LoadUser fetches the single user matching where.
func LoadUser(ctx context.Context, db *sql.DB, where string, args ...any) (u model.User, err error) {
	err = db.
		QueryRowContext(ctx, `
			SELECT id, mobile_number, first_name, last_name, is_admin, is_active, created_at
			FROM user
			WHERE `+where, args...).
		Scan(&u.ID, &u.MobileNumber, &u.FirstName, &u.LastName, &u.IsAdmin, &u.IsActive, &u.CreatedAt)
	return
}
