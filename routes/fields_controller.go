package routes

import (
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/mbolis/dynamic-forms/app"
	"github.com/mbolis/dynamic-forms/httpx"
	"github.com/mbolis/dynamic-forms/log"
	"github.com/mbolis/dynamic-forms/model"
	"github.com/mbolis/dynamic-forms/schema"
)

var (
	errFieldNotFound = errors.New("field not found")
	errBadBody       = errors.New("malformed request body")
)

// fieldEdit transforms the schema of a form and returns the field it touched.
type fieldEdit func(r *http.Request, s schema.Schema) (schema.Schema, schema.Field, error)

// editFields runs edit against the schema of a form owned by the current
// user and stores the result once it passes save-time validation.
func editFields(app app.App, code string, edit fieldEdit) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tx, err := app.BeginTx(r.Context(), nil)
		if err != nil {
			httpx.LogInternalError(w, r, "db.begin_tx", err)
			return
		}
		defer tx.Rollback()

		form, ok := ownedForm(tx, w, r, code)
		if !ok {
			return
		}

		s, err := schema.Parse(form.FormSchema)
		if err != nil {
			httpx.LogInternalError(w, r, code+".parse_schema", err)
			return
		}

		s, f, err := edit(r, s)
		switch {
		case errors.Is(err, errFieldNotFound):
			httpx.LogNotFound(w, r, code, "Field", chi.URLParam(r, "fieldId"))
			return
		case errors.Is(err, errBadBody):
			httpx.LogStatus(w, r, http.StatusBadRequest, log.DebugLevel, "request.parse_body")
			return
		case err != nil:
			httpx.LogValidation(w, r, code, err)
			return
		}

		s = schema.Link(s)
		err = schema.Validate(s)
		if err != nil {
			httpx.LogValidation(w, r, code+".validate", err)
			return
		}
		form.FormSchema, err = s.Encode()
		if err != nil {
			httpx.LogInternalError(w, r, code+".encode_schema", err)
			return
		}

		ok, err = saveForm(r.Context(), tx, form)
		if err != nil {
			httpx.LogInternalError(w, r, "db."+code, err)
			return
		}
		if !ok {
			httpx.LogStatus(w, r, http.StatusConflict, log.DebugLevel, "db."+code+".verify.conflict")
			return
		}

		err = tx.Commit()
		if err != nil {
			httpx.LogInternalError(w, r, "db."+code+".commit", err)
			return
		}

		// report the field as linked and stored
		if stored, found := s.Find(f.ID); found {
			f = stored
		}
		render.JSON(w, r, model.FieldResult{Field: f, Version: form.Version + 1})
	}
}

func decodePatch(r *http.Request) (patch schema.FieldPatch, err error) {
	err = render.DecodeJSON(r.Body, &patch)
	if errors.Is(err, io.EOF) {
		err = nil
	}
	if err != nil {
		err = errBadBody
	}
	return
}

func fieldParam(r *http.Request, s schema.Schema) (schema.Field, error) {
	f, ok := s.Find(schema.FieldID(chi.URLParam(r, "fieldId")))
	if !ok {
		return f, errFieldNotFound
	}
	return f, nil
}

// AddField appends a default field. An optional body patches its attributes
// right away.
func AddField(app app.App) http.HandlerFunc {
	return editFields(app, "add_field", func(r *http.Request, s schema.Schema) (schema.Schema, schema.Field, error) {
		patch, err := decodePatch(r)
		if err != nil {
			return s, schema.Field{}, err
		}

		s, f := schema.AddField(s)
		s, err = schema.UpdateField(s, f.ID, patch)
		return s, f, err
	})
}

func UpdateField(app app.App) http.HandlerFunc {
	return editFields(app, "update_field", func(r *http.Request, s schema.Schema) (schema.Schema, schema.Field, error) {
		f, err := fieldParam(r, s)
		if err != nil {
			return s, f, err
		}
		patch, err := decodePatch(r)
		if err != nil {
			return s, f, err
		}

		s, err = schema.UpdateField(s, f.ID, patch)
		return s, f, err
	})
}

func RemoveField(app app.App) http.HandlerFunc {
	return editFields(app, "remove_field", func(r *http.Request, s schema.Schema) (schema.Schema, schema.Field, error) {
		f, err := fieldParam(r, s)
		if err != nil {
			return s, f, err
		}
		return schema.RemoveField(s, f.ID), f, nil
	})
}

func ToggleField(app app.App) http.HandlerFunc {
	return editFields(app, "toggle_field", func(r *http.Request, s schema.Schema) (schema.Schema, schema.Field, error) {
		f, err := fieldParam(r, s)
		if err != nil {
			return s, f, err
		}
		return schema.ToggleActive(s, f.ID), f, nil
	})
}

// ConditionCandidates lists the fields a field may be made to depend on.
func ConditionCandidates(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		form, ok := viewableForm(app, w, r, "condition_candidates")
		if !ok {
			return
		}

		s, err := schema.Parse(form.FormSchema)
		if err != nil {
			httpx.LogInternalError(w, r, "condition_candidates.parse_schema", err)
			return
		}
		f, err := fieldParam(r, s)
		if err != nil {
			httpx.LogNotFound(w, r, "condition_candidates", "Field", chi.URLParam(r, "fieldId"))
			return
		}

		render.JSON(w, r, schema.ConditionCandidates(s, f.ID))
	}
}
