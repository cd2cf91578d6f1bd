package routes

import (
	"net/http"

	"github.com/go-chi/render"
	"github.com/mbolis/dynamic-forms/app"
	"github.com/mbolis/dynamic-forms/httpx"
	"github.com/mbolis/dynamic-forms/log"
	"github.com/mbolis/dynamic-forms/model"
	"github.com/mbolis/dynamic-forms/routes/middlewares"
)

func Health(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, map[string]string{"status": "healthy"})
}

func Me(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, middlewares.User(r))
}

// UpdateProfile sets the names of the current user. Empty values leave the
// stored name untouched.
func UpdateProfile(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req := model.ProfileUpdate{}
		err := render.DecodeJSON(r.Body, &req)
		if err != nil {
			httpx.LogStatus(w, r, http.StatusBadRequest, log.DebugLevel, "request.parse_body")
			return
		}

		u := middlewares.User(r)
		if name := nonEmpty(req.FirstName); name != nil {
			u.FirstName = name
		}
		if name := nonEmpty(req.LastName); name != nil {
			u.LastName = name
		}

		_, err = app.ExecContext(r.Context(), `
			UPDATE user SET first_name = ?, last_name = ?
			WHERE id = ?`,
			u.FirstName,
			u.LastName,
			u.ID,
		)
		if err != nil {
			httpx.LogInternalError(w, r, "db.update_profile", err)
			return
		}

		render.JSON(w, r, u)
	}
}

func nonEmpty(s *string) *string {
	if s == nil {
		return nil
	}
	v := sanitize(*s)
	if v == "" {
		return nil
	}
	return &v
}
