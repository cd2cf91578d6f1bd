package routes

import (
	"database/sql"
	"errors"
	"net/http"

	"github.com/go-chi/render"
	"github.com/mbolis/dynamic-forms/app"
	"github.com/mbolis/dynamic-forms/httpx"
	"github.com/mbolis/dynamic-forms/log"
	"github.com/mbolis/dynamic-forms/model"
	"github.com/mbolis/dynamic-forms/routes/middlewares"
)

func ListUsers(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rows, err := app.QueryContext(r.Context(), `
			SELECT id, mobile_number, first_name, last_name, is_admin, is_active, created_at
			FROM user
			ORDER BY id`)
		if err != nil {
			httpx.LogInternalError(w, r, "db.get_users", err)
			return
		}
		defer rows.Close()

		users := []model.User{}
		for rows.Next() {
			u := model.User{}
			err = rows.Scan(&u.ID, &u.MobileNumber, &u.FirstName, &u.LastName, &u.IsAdmin, &u.IsActive, &u.CreatedAt)
			if err != nil {
				httpx.LogInternalError(w, r, "db.get_users.scan", err)
				return
			}
			users = append(users, u)
		}
		if err = rows.Err(); err != nil {
			httpx.LogInternalError(w, r, "db.get_users.rows", err)
			return
		}

		render.JSON(w, r, users)
	}
}

// ToggleUserStatus activates or deactivates an account. Administrators
// cannot deactivate themselves.
func ToggleUserStatus(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userId, ok := urlID(w, r, "id")
		if !ok {
			return
		}

		res, err := app.ExecContext(r.Context(), "UPDATE user SET is_active = NOT is_active WHERE id = ? AND id != ?", userId, middlewares.User(r).ID)
		if err != nil {
			httpx.LogInternalError(w, r, "db.toggle_user", err)
			return
		}
		n, err := res.RowsAffected()
		if err != nil {
			httpx.LogInternalError(w, r, "db.toggle_user.verify", err)
			return
		}

		if n < 1 {
			if userId == middlewares.User(r).ID {
				httpx.LogStatusMsg(w, r, http.StatusBadRequest, log.DebugLevel, "toggle_user.self", "Cannot deactivate yourself")
			} else {
				httpx.LogNotFound(w, r, "toggle_user", "User", userId)
			}
			return
		}

		u, err := middlewares.LoadUser(r.Context(), app.DB, "id = ?", userId)
		if err != nil {
			httpx.LogInternalError(w, r, "db.get_user", err)
			return
		}

		log.WithFields(log.Fields{"user": u.ID, "active": u.IsActive}).Info("toggle_user: status changed")
		render.JSON(w, r, u)
	}
}

func formExists(app app.App, w http.ResponseWriter, r *http.Request, code string) (int, bool) {
	formId, ok := urlID(w, r, "id")
	if !ok {
		return 0, false
	}

	_, err := loadForm(r.Context(), app, formId)
	if errors.Is(err, sql.ErrNoRows) {
		httpx.LogNotFound(w, r, code, "Form", formId)
		return 0, false
	}
	if err != nil {
		httpx.LogInternalError(w, r, "db."+code, err)
		return 0, false
	}
	return formId, true
}

// GetFormAccess lists every non-admin user with their access flag for a form.
func GetFormAccess(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		formId, ok := formExists(app, w, r, "get_form_access")
		if !ok {
			return
		}

		rows, err := app.QueryContext(r.Context(), `
			SELECT u.id, u.mobile_number, u.first_name, u.last_name, coalesce(a.has_access, 0)
			FROM user u
			LEFT OUTER JOIN form_access a ON (a.user_id = u.id AND a.form_id = ?)
			WHERE NOT u.is_admin
			ORDER BY u.id`,
			formId,
		)
		if err != nil {
			httpx.LogInternalError(w, r, "db.get_form_access", err)
			return
		}
		defer rows.Close()

		infos := []model.AccessInfo{}
		for rows.Next() {
			a := model.AccessInfo{}
			err = rows.Scan(&a.UserID, &a.MobileNumber, &a.FirstName, &a.LastName, &a.HasAccess)
			if err != nil {
				httpx.LogInternalError(w, r, "db.get_form_access.scan", err)
				return
			}
			infos = append(infos, a)
		}
		if err = rows.Err(); err != nil {
			httpx.LogInternalError(w, r, "db.get_form_access.rows", err)
			return
		}

		render.JSON(w, r, infos)
	}
}

// UpdateFormAccess grants or revokes access to a form for one user.
func UpdateFormAccess(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		formId, ok := formExists(app, w, r, "update_form_access")
		if !ok {
			return
		}

		req := model.AccessUpdate{}
		err := render.DecodeJSON(r.Body, &req)
		if err != nil {
			httpx.LogStatus(w, r, http.StatusBadRequest, log.DebugLevel, "request.parse_body")
			return
		}

		_, err = middlewares.LoadUser(r.Context(), app.DB, "id = ?", req.UserID)
		if errors.Is(err, sql.ErrNoRows) {
			httpx.LogNotFound(w, r, "update_form_access", "User", req.UserID)
			return
		}
		if err != nil {
			httpx.LogInternalError(w, r, "db.get_user", err)
			return
		}

		_, err = app.ExecContext(r.Context(), `
			INSERT INTO form_access (form_id, user_id, has_access) VALUES (?, ?, ?)
			ON CONFLICT (form_id, user_id) DO UPDATE SET has_access = excluded.has_access`,
			formId,
			req.UserID,
			req.HasAccess,
		)
		if err != nil {
			httpx.LogInternalError(w, r, "db.update_form_access", err)
			return
		}

		log.WithFields(log.Fields{"form": formId, "user": req.UserID, "access": req.HasAccess}).Info("update_form_access: access updated")
		render.JSON(w, r, map[string]any{
			"message": "Access updated",
		})
	}
}
