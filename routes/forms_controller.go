package routes

import (
	"context"
	"database/sql"
	"errors"
	"html"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/mbolis/dynamic-forms/app"
	"github.com/mbolis/dynamic-forms/httpx"
	"github.com/mbolis/dynamic-forms/log"
	"github.com/mbolis/dynamic-forms/model"
	"github.com/mbolis/dynamic-forms/routes/middlewares"
	"github.com/mbolis/dynamic-forms/schema"
	"github.com/microcosm-cc/bluemonday"
)

// form titles and descriptions are plain text
var textPolicy = bluemonday.StrictPolicy()

func sanitize(s string) string {
	return strings.TrimSpace(html.UnescapeString(textPolicy.Sanitize(s)))
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

const formColumns = "id, version, title, description, form_schema, created_by, created_at"

func scanForm(row interface{ Scan(...any) error }) (f model.Form, err error) {
	err = row.Scan(&f.ID, &f.Version, &f.Title, &f.Description, &f.FormSchema, &f.CreatedBy, &f.CreatedAt)
	return
}

func loadForm(ctx context.Context, q queryer, id int) (model.Form, error) {
	return scanForm(q.QueryRowContext(ctx, "SELECT "+formColumns+" FROM form WHERE id = ?", id))
}

// canView reports whether u created the form or was granted access to it.
func canView(ctx context.Context, q queryer, form model.Form, u model.User) (bool, error) {
	if form.CreatedBy == u.ID {
		return true, nil
	}

	var granted bool
	err := q.QueryRowContext(ctx, `
		SELECT has_access FROM form_access
		WHERE form_id = ?
			AND user_id = ?`,
		form.ID,
		u.ID,
	).Scan(&granted)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	return granted, err
}

func urlID(w http.ResponseWriter, r *http.Request, param string) (int, bool) {
	id, err := strconv.Atoi(chi.URLParam(r, param))
	if err != nil {
		httpx.LogStatus(w, r, http.StatusBadRequest, log.DebugLevel, "request.get_url_param."+param)
		return 0, false
	}
	return id, true
}

// viewableForm loads the form named in the URL for a creator or grantee,
// answering 404 or 403 itself when it cannot.
func viewableForm(app app.App, w http.ResponseWriter, r *http.Request, code string) (model.Form, bool) {
	formId, ok := urlID(w, r, "id")
	if !ok {
		return model.Form{}, false
	}

	form, err := loadForm(r.Context(), app, formId)
	if errors.Is(err, sql.ErrNoRows) {
		httpx.LogNotFound(w, r, code, "Form", formId)
		return form, false
	}
	if err != nil {
		httpx.LogInternalError(w, r, "db."+code, err)
		return form, false
	}

	ok, err = canView(r.Context(), app, form, middlewares.User(r))
	if err != nil {
		httpx.LogInternalError(w, r, "db."+code+".access", err)
		return form, false
	}
	if !ok {
		httpx.LogStatusMsg(w, r, http.StatusForbidden, log.DebugLevel, code, "Forbidden: You do not have access to this form")
		return form, false
	}
	return form, true
}

// prepareSchema checks a client supplied schema and returns it as stored.
// Fields sent without an id get a fresh one.
func prepareSchema(data string) (string, error) {
	s, err := schema.Parse(data)
	if err != nil {
		return "", &schema.ValidationError{Message: "form_schema is not a valid field list: " + err.Error()}
	}
	for i := range s {
		if s[i].ID == "" {
			s[i].ID = schema.NewFieldID()
		}
	}

	s = schema.Link(s)
	err = schema.Validate(s)
	if err != nil {
		return "", err
	}
	return s.Encode()
}

func CreateForm(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req := model.FormRequest{}
		err := render.DecodeJSON(r.Body, &req)
		if err != nil {
			httpx.LogStatus(w, r, http.StatusBadRequest, log.DebugLevel, "request.parse_body")
			return
		}

		title := sanitize(req.Title)
		if title == "" {
			httpx.LogValidation(w, r, "create_form.title", schema.ErrTitleRequired)
			return
		}
		var description string
		if req.Description != nil {
			description = sanitize(*req.Description)
		}
		formSchema, err := prepareSchema(req.FormSchema)
		if err != nil {
			httpx.LogValidation(w, r, "create_form.schema", err)
			return
		}

		res, err := app.ExecContext(r.Context(), `
			INSERT INTO form (title, description, form_schema, created_by, created_at)
			VALUES (?, ?, ?, ?, ?)`,
			title,
			description,
			formSchema,
			middlewares.User(r).ID,
			time.Now().UTC(),
		)
		if err != nil {
			httpx.LogInternalError(w, r, "db.insert_form", err)
			return
		}
		formId, err := res.LastInsertId()
		if err != nil {
			httpx.LogInternalError(w, r, "db.insert_form.id", err)
			return
		}

		form, err := loadForm(r.Context(), app, int(formId))
		if err != nil {
			httpx.LogInternalError(w, r, "db.get_form", err)
			return
		}

		w.WriteHeader(http.StatusCreated)
		render.JSON(w, r, form)
	}
}

func listForms(app app.App, w http.ResponseWriter, r *http.Request, code string, query string, args ...any) {
	rows, err := app.QueryContext(r.Context(), query, args...)
	if err != nil {
		httpx.LogInternalError(w, r, "db."+code, err)
		return
	}
	defer rows.Close()

	forms := []model.Form{}
	for rows.Next() {
		f, err := scanForm(rows)
		if err != nil {
			httpx.LogInternalError(w, r, "db."+code+".scan", err)
			return
		}
		forms = append(forms, f)
	}
	if err = rows.Err(); err != nil {
		httpx.LogInternalError(w, r, "db."+code+".rows", err)
		return
	}

	render.JSON(w, r, forms)
}

// ListForms returns the forms created by the current user.
func ListForms(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		listForms(app, w, r, "get_forms", `
			SELECT `+formColumns+`
			FROM form
			WHERE created_by = ?
			ORDER BY id`,
			middlewares.User(r).ID,
		)
	}
}

// SharedForms returns the forms the current user was granted access to.
func SharedForms(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		listForms(app, w, r, "get_shared_forms", `
			SELECT f.id, f.version, f.title, f.description, f.form_schema, f.created_by, f.created_at
			FROM form f
			INNER JOIN form_access a ON (a.form_id = f.id)
			WHERE a.user_id = ?
				AND a.has_access
			ORDER BY f.id`,
			middlewares.User(r).ID,
		)
	}
}

func GetFormById(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		form, ok := viewableForm(app, w, r, "get_form")
		if !ok {
			return
		}
		render.JSON(w, r, form)
	}
}

// ownedForm loads the form named in the URL inside tx. Forms created by
// someone else are reported as missing.
func ownedForm(tx *sql.Tx, w http.ResponseWriter, r *http.Request, code string) (model.Form, bool) {
	formId, ok := urlID(w, r, "id")
	if !ok {
		return model.Form{}, false
	}

	form, err := loadForm(r.Context(), tx, formId)
	if errors.Is(err, sql.ErrNoRows) || err == nil && form.CreatedBy != middlewares.User(r).ID {
		httpx.LogNotFound(w, r, code, "Form", formId)
		return form, false
	}
	if err != nil {
		httpx.LogInternalError(w, r, "db."+code, err)
		return form, false
	}
	return form, true
}

// saveForm writes form back, guarded by the version it was read at.
func saveForm(ctx context.Context, tx *sql.Tx, form model.Form) (bool, error) {
	res, err := tx.ExecContext(ctx, `
		UPDATE form
		SET
			title = ?,
			description = ?,
			form_schema = ?,
			version = version+1
		WHERE	id = ?
			AND version = ?`,
		form.Title,
		form.Description,
		form.FormSchema,
		form.ID,
		form.Version,
	)
	if err != nil {
		return false, err
	}
	// optimistic lock
	n, err := res.RowsAffected()
	return n > 0, err
}

func UpdateForm(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req := model.FormRequest{}
		err := render.DecodeJSON(r.Body, &req)
		if err != nil {
			httpx.LogStatus(w, r, http.StatusBadRequest, log.DebugLevel, "request.parse_body")
			return
		}

		tx, err := app.BeginTx(r.Context(), nil)
		if err != nil {
			httpx.LogInternalError(w, r, "db.begin_tx", err)
			return
		}
		defer tx.Rollback()

		form, ok := ownedForm(tx, w, r, "update_form")
		if !ok {
			return
		}
		if req.Version != nil && *req.Version != form.Version {
			httpx.LogStatusMsg(w, r, http.StatusConflict, log.DebugLevel, "update_form.version",
				"Form was modified (version %d, expected %d)", form.Version, *req.Version)
			return
		}

		form.Title = sanitize(req.Title)
		if form.Title == "" {
			httpx.LogValidation(w, r, "update_form.title", schema.ErrTitleRequired)
			return
		}
		if req.Description != nil {
			form.Description = sanitize(*req.Description)
		}
		form.FormSchema, err = prepareSchema(req.FormSchema)
		if err != nil {
			httpx.LogValidation(w, r, "update_form.schema", err)
			return
		}

		ok, err = saveForm(r.Context(), tx, form)
		if err != nil {
			httpx.LogInternalError(w, r, "db.update_form", err)
			return
		}
		if !ok {
			httpx.LogStatus(w, r, http.StatusConflict, log.DebugLevel, "db.update_form.verify.conflict")
			return
		}

		form, err = loadForm(r.Context(), tx, form.ID)
		if err != nil {
			httpx.LogInternalError(w, r, "db.update_form.reload", err)
			return
		}

		err = tx.Commit()
		if err != nil {
			httpx.LogInternalError(w, r, "db.update_form.commit", err)
			return
		}

		render.JSON(w, r, form)
	}
}

// DeleteForm removes a form together with its access grants and records.
func DeleteForm(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tx, err := app.BeginTx(r.Context(), nil)
		if err != nil {
			httpx.LogInternalError(w, r, "db.begin_tx", err)
			return
		}
		defer tx.Rollback()

		form, ok := ownedForm(tx, w, r, "delete_form")
		if !ok {
			return
		}

		_, err = tx.ExecContext(r.Context(), "DELETE FROM form WHERE id = ?", form.ID)
		if err != nil {
			httpx.LogInternalError(w, r, "db.delete_form", err)
			return
		}

		err = tx.Commit()
		if err != nil {
			httpx.LogInternalError(w, r, "db.delete_form.commit", err)
			return
		}

		log.WithFields(log.Fields{"form": form.ID}).Info("delete_form: form deleted")
		w.WriteHeader(http.StatusNoContent)
	}
}

// Visibility evaluates which fields of a form are shown for a partial set of
// answers, in form order.
func Visibility(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		form, ok := viewableForm(app, w, r, "visibility")
		if !ok {
			return
		}

		req := model.VisibilityRequest{}
		err := render.DecodeJSON(r.Body, &req)
		if err != nil {
			httpx.LogStatus(w, r, http.StatusBadRequest, log.DebugLevel, "request.parse_body")
			return
		}
		answers, err := schema.DecodeAnswers(string(req.Answers))
		if err != nil {
			httpx.LogStatusMsg(w, r, http.StatusBadRequest, log.DebugLevel, "visibility.answers", "answers must be an object")
			return
		}

		s, err := schema.Parse(form.FormSchema)
		if err != nil {
			httpx.LogInternalError(w, r, "visibility.parse_schema", err)
			return
		}

		render.JSON(w, r, model.VisibilityResult{
			Visible: schema.VisibleFields(s, answers).Labels(),
		})
	}
}
