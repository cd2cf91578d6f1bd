package routes

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/render"
	"github.com/mbolis/dynamic-forms/app"
	"github.com/mbolis/dynamic-forms/httpx"
	"github.com/mbolis/dynamic-forms/log"
	"github.com/mbolis/dynamic-forms/model"
	"github.com/mbolis/dynamic-forms/routes/middlewares"
	"github.com/mbolis/dynamic-forms/schema"
)

const responseColumns = "id, form_id, user_id, response_data, is_active, submitted_at"

func scanResponse(row interface{ Scan(...any) error }) (resp model.Response, err error) {
	err = row.Scan(&resp.ID, &resp.FormID, &resp.UserID, &resp.ResponseData, &resp.IsActive, &resp.SubmittedAt)
	return
}

// present rekeys a stored record against the current schema and fills in its
// label keyed view, with dates as date pickers expect them. Records that
// cannot be decoded are returned untouched.
func present(s schema.Schema, resp model.Response) model.Response {
	stored, err := schema.DecodeAnswers(resp.ResponseData)
	if err != nil {
		log.Warnf("responses: record %d holds unreadable answers: %s", resp.ID, err)
		resp.Answers = schema.AnswerSet{}
		return resp
	}

	if data, err := schema.Rekey(s, stored).Encode(); err == nil {
		resp.ResponseData = data
	}
	resp.Answers = schema.Labeled(s, stored)
	for _, f := range s.Active() {
		if v, ok := resp.Answers[f.Label]; ok {
			resp.Answers[f.Label] = f.DisplayValue(v)
		}
	}
	return resp
}

func decodeRequestAnswers(w http.ResponseWriter, r *http.Request, data *string, code string) (schema.AnswerSet, bool) {
	if data == nil {
		return schema.AnswerSet{}, true
	}
	answers, err := schema.DecodeAnswers(*data)
	if err != nil {
		httpx.LogStatusMsg(w, r, http.StatusBadRequest, log.DebugLevel, code, "response_data must be a JSON object")
		return nil, false
	}
	return answers, true
}

// SubmitResponse stores a new record for a form. Only the answers of fields
// visible for the submitted answers are kept.
func SubmitResponse(app app.App) http.HandlerFunc {
	submitting := newInflight()

	return func(w http.ResponseWriter, r *http.Request) {
		form, ok := viewableForm(app, w, r, "submit_response")
		if !ok {
			return
		}

		req := model.ResponseRequest{}
		err := render.DecodeJSON(r.Body, &req)
		if err != nil {
			httpx.LogStatus(w, r, http.StatusBadRequest, log.DebugLevel, "request.parse_body")
			return
		}
		answers, ok := decodeRequestAnswers(w, r, req.ResponseData, "submit_response.answers")
		if !ok {
			return
		}

		s, err := schema.Parse(form.FormSchema)
		if err != nil {
			httpx.LogInternalError(w, r, "submit_response.parse_schema", err)
			return
		}
		stored, err := schema.PrepareSubmission(s, answers)
		if err != nil {
			httpx.LogValidation(w, r, "submit_response.validate", err)
			return
		}
		data, err := stored.Encode()
		if err != nil {
			httpx.LogInternalError(w, r, "submit_response.encode", err)
			return
		}

		// one submission at a time per user and form
		user := middlewares.User(r)
		key := fmt.Sprintf("%d:%d", form.ID, user.ID)
		if !submitting.acquire(key) {
			httpx.LogStatusMsg(w, r, http.StatusConflict, log.DebugLevel, "submit_response.in_progress", "A submission for this form is already in progress")
			return
		}
		defer submitting.release(key)

		isActive := true
		if req.IsActive != nil {
			isActive = *req.IsActive
		}

		res, err := app.ExecContext(r.Context(), `
			INSERT INTO form_response (form_id, user_id, response_data, is_active, submitted_at)
			VALUES (?, ?, ?, ?, ?)`,
			form.ID,
			user.ID,
			data,
			isActive,
			time.Now().UTC(),
		)
		if err != nil {
			httpx.LogInternalError(w, r, "db.insert_response", err)
			return
		}
		responseId, err := res.LastInsertId()
		if err != nil {
			httpx.LogInternalError(w, r, "db.insert_response.id", err)
			return
		}

		resp, err := loadResponse(r.Context(), app, int(responseId), user.ID)
		if err != nil {
			httpx.LogInternalError(w, r, "db.get_response", err)
			return
		}

		w.WriteHeader(http.StatusCreated)
		render.JSON(w, r, present(s, resp))
	}
}

func loadResponse(ctx context.Context, q queryer, id, userId int) (model.Response, error) {
	return scanResponse(q.QueryRowContext(ctx, `
		SELECT `+responseColumns+`
		FROM form_response
		WHERE id = ?
			AND user_id = ?`,
		id,
		userId,
	))
}

// ownResponses loads the form named in the URL and the current user's
// records for it, oldest first.
func ownResponses(app app.App, w http.ResponseWriter, r *http.Request, code string) (schema.Schema, []model.Response, bool) {
	formId, ok := urlID(w, r, "id")
	if !ok {
		return nil, nil, false
	}

	form, err := loadForm(r.Context(), app, formId)
	if errors.Is(err, sql.ErrNoRows) {
		httpx.LogNotFound(w, r, code, "Form", formId)
		return nil, nil, false
	}
	if err != nil {
		httpx.LogInternalError(w, r, "db."+code+".form", err)
		return nil, nil, false
	}
	s, err := schema.Parse(form.FormSchema)
	if err != nil {
		httpx.LogInternalError(w, r, code+".parse_schema", err)
		return nil, nil, false
	}

	rows, err := app.QueryContext(r.Context(), `
		SELECT `+responseColumns+`
		FROM form_response
		WHERE form_id = ?
			AND user_id = ?
		ORDER BY submitted_at, id`,
		formId,
		middlewares.User(r).ID,
	)
	if err != nil {
		httpx.LogInternalError(w, r, "db."+code, err)
		return nil, nil, false
	}
	defer rows.Close()

	responses := []model.Response{}
	for rows.Next() {
		resp, err := scanResponse(rows)
		if err != nil {
			httpx.LogInternalError(w, r, "db."+code+".scan", err)
			return nil, nil, false
		}
		responses = append(responses, resp)
	}
	if err = rows.Err(); err != nil {
		httpx.LogInternalError(w, r, "db."+code+".rows", err)
		return nil, nil, false
	}
	return s, responses, true
}

func ListResponses(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, responses, ok := ownResponses(app, w, r, "get_responses")
		if !ok {
			return
		}

		for i := range responses {
			responses[i] = present(s, responses[i])
		}
		render.JSON(w, r, responses)
	}
}

// ResponseTable projects the current user's records onto the active fields
// of the form, with dates in display form.
func ResponseTable(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, responses, ok := ownResponses(app, w, r, "get_response_table")
		if !ok {
			return
		}

		table := model.ResponseTable{
			Columns: schema.Columns(s),
			Rows:    []model.ResponseRow{},
		}
		for _, resp := range responses {
			stored, err := schema.DecodeAnswers(resp.ResponseData)
			if err != nil {
				log.Warnf("get_response_table: record %d holds unreadable answers: %s", resp.ID, err)
				stored = schema.AnswerSet{}
			}
			table.Rows = append(table.Rows, model.ResponseRow{
				ID:          resp.ID,
				IsActive:    resp.IsActive,
				SubmittedAt: resp.SubmittedAt,
				Cells:       displayRow(s, stored),
			})
		}
		render.JSON(w, r, table)
	}
}

func displayRow(s schema.Schema, stored schema.AnswerSet) []string {
	cells := schema.Row(s, stored)
	for i, f := range s.Active() {
		if cells[i] != schema.Placeholder {
			cells[i] = f.DisplayValue(cells[i])
		}
	}
	return cells
}

// UpdateResponse edits the answers and/or the active flag of a record owned
// by the current user. Answers of fields no longer active are preserved.
func UpdateResponse(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		responseId, ok := urlID(w, r, "id")
		if !ok {
			return
		}

		req := model.ResponseRequest{}
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

		user := middlewares.User(r)
		resp, err := loadResponse(r.Context(), tx, responseId, user.ID)
		if errors.Is(err, sql.ErrNoRows) {
			httpx.LogNotFound(w, r, "update_response", "Response record", responseId)
			return
		}
		if err != nil {
			httpx.LogInternalError(w, r, "db.get_response", err)
			return
		}

		form, err := loadForm(r.Context(), tx, resp.FormID)
		if err != nil {
			httpx.LogInternalError(w, r, "db.get_response.form", err)
			return
		}
		s, err := schema.Parse(form.FormSchema)
		if err != nil {
			httpx.LogInternalError(w, r, "update_response.parse_schema", err)
			return
		}

		if req.ResponseData != nil {
			edits, ok := decodeRequestAnswers(w, r, req.ResponseData, "update_response.answers")
			if !ok {
				return
			}
			stored, err := schema.DecodeAnswers(resp.ResponseData)
			if err != nil {
				httpx.LogInternalError(w, r, "update_response.stored_answers", err)
				return
			}
			stored, err = schema.ApplyEdit(s, stored, edits)
			if err != nil {
				httpx.LogValidation(w, r, "update_response.validate", err)
				return
			}
			resp.ResponseData, err = stored.Encode()
			if err != nil {
				httpx.LogInternalError(w, r, "update_response.encode", err)
				return
			}
		}
		if req.IsActive != nil {
			resp.IsActive = *req.IsActive
		}

		_, err = tx.ExecContext(r.Context(), `
			UPDATE form_response
			SET
				response_data = ?,
				is_active = ?
			WHERE id = ?`,
			resp.ResponseData,
			resp.IsActive,
			resp.ID,
		)
		if err != nil {
			httpx.LogInternalError(w, r, "db.update_response", err)
			return
		}

		err = tx.Commit()
		if err != nil {
			httpx.LogInternalError(w, r, "db.update_response.commit", err)
			return
		}

		render.JSON(w, r, present(s, resp))
	}
}
