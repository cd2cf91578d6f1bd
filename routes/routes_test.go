package routes

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/mbolis/dynamic-forms/app"
	"github.com/mbolis/dynamic-forms/config"
	"github.com/mbolis/dynamic-forms/database"
	"github.com/mbolis/dynamic-forms/httpx"
	"github.com/mbolis/dynamic-forms/log"
	"github.com/mbolis/dynamic-forms/model"
	"github.com/mbolis/dynamic-forms/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	adminMobile = "5550000001"
	userMobile  = "5550000002"
)

type server struct {
	t       *testing.T
	handler http.Handler
}

func newServer(t *testing.T) *server {
	log.SetOutput(io.Discard)

	db, err := database.Open(filepath.Join(t.TempDir(), "forms.sqlite"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	cfg := config.Config{TokenSecret: "test-secret", TokenTTL: time.Minute}
	a := app.App{
		DB:           db,
		BearerServer: httpx.NewBearerServer(db, cfg),
		Config:       cfg,
	}
	return &server{t, Wire(a)}
}

func (s *server) do(method, path, token string, body any) *httptest.ResponseRecorder {
	s.t.Helper()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(s.t, err)
		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", token)
	}

	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

type tokens struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

func (s *server) signup(mobile, pin string) model.User {
	s.t.Helper()
	rec := s.do("POST", "/api/signup", "", model.Credentials{MobileNumber: mobile, Password: pin})
	require.Equal(s.t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[model.User](s.t, rec)
}

func (s *server) login(mobile, pin string) tokens {
	s.t.Helper()
	rec := s.do("POST", "/api/login", "", model.Credentials{MobileNumber: mobile, Password: pin})
	require.Equal(s.t, http.StatusOK, rec.Code, rec.Body.String())
	tok := decode[tokens](s.t, rec)
	require.NotEmpty(s.t, tok.AccessToken)
	return tok
}

func bearer(tok tokens) string {
	return "Bearer " + tok.AccessToken
}

// seed signs up an administrator and a regular user, in that order.
func (s *server) seed() (admin, user string, userID int) {
	s.signup(adminMobile, "1234")
	u := s.signup(userMobile, "4321")
	return bearer(s.login(adminMobile, "1234")), bearer(s.login(userMobile, "4321")), u.ID
}

const intakeSchema = `[
	{"id":"c","label":"Country","type":"select","options":"US,CA","required":true},
	{"id":"s","label":"State","type":"text","conditionField":"Country","conditionValue":"US","required":true},
	{"id":"d","label":"DOB","type":"date"}
]`

func (s *server) createForm(token string) model.Form {
	s.t.Helper()
	rec := s.do("POST", "/api/forms", token, map[string]any{
		"title":       "<b>Intake</b>",
		"description": "New patients & visitors",
		"form_schema": intakeSchema,
	})
	require.Equal(s.t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[model.Form](s.t, rec)
}

func TestHealth(t *testing.T) {
	s := newServer(t)

	rec := s.do("GET", "/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "healthy", decode[map[string]string](t, rec)["status"])
}

func TestSignupAndLogin(t *testing.T) {
	s := newServer(t)

	first := s.signup(adminMobile, "1234")
	assert.True(t, first.IsAdmin)
	assert.True(t, first.IsActive)
	second := s.signup(userMobile, "4321")
	assert.False(t, second.IsAdmin)

	rec := s.do("POST", "/api/signup", "", model.Credentials{MobileNumber: userMobile, Password: "0000"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Mobile number already registered", decode[httpx.ErrorBody](t, rec).Detail)

	rec = s.do("POST", "/api/signup", "", model.Credentials{MobileNumber: "555", Password: "0000"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = s.do("POST", "/api/signup", "", model.Credentials{MobileNumber: "5550000003", Password: "12345"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do("POST", "/api/login", "", model.Credentials{MobileNumber: adminMobile, Password: "9999"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Incorrect mobile number or password", decode[httpx.ErrorBody](t, rec).Detail)

	tok := s.login(adminMobile, "1234")
	rec = s.do("GET", "/api/me", bearer(tok), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, adminMobile, decode[model.User](t, rec).MobileNumber)

	rec = s.do("GET", "/api/me", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRefreshTokenIsSingleUse(t *testing.T) {
	s := newServer(t)
	s.signup(adminMobile, "1234")
	tok := s.login(adminMobile, "1234")

	rec := s.do("POST", "/api/refresh", "Refresh "+tok.RefreshToken, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	fresh := decode[tokens](t, rec)
	assert.NotEmpty(t, fresh.AccessToken)

	rec = s.do("GET", "/api/me", bearer(fresh), nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = s.do("POST", "/api/refresh", "Refresh "+tok.RefreshToken, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestProfile(t *testing.T) {
	s := newServer(t)
	s.signup(adminMobile, "1234")
	token := bearer(s.login(adminMobile, "1234"))

	rec := s.do("PUT", "/api/profile", token, map[string]any{"first_name": "Ada", "last_name": ""})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = s.do("GET", "/api/me", token, nil)
	me := decode[model.User](t, rec)
	require.NotNil(t, me.FirstName)
	assert.Equal(t, "Ada", *me.FirstName)
	assert.Nil(t, me.LastName)
}

func TestUserAdministration(t *testing.T) {
	s := newServer(t)
	admin, user, userID := s.seed()

	rec := s.do("GET", "/api/admin/users", user, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = s.do("GET", "/api/admin/users", admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	users := decode[[]model.User](t, rec)
	require.Len(t, users, 2)

	rec = s.do("PUT", fmt.Sprintf("/api/admin/users/%d/toggle-status", users[0].ID), admin, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Cannot deactivate yourself", decode[httpx.ErrorBody](t, rec).Detail)

	rec = s.do("PUT", "/api/admin/users/999/toggle-status", admin, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = s.do("PUT", fmt.Sprintf("/api/admin/users/%d/toggle-status", userID), admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, decode[model.User](t, rec).IsActive)

	// a deactivated account loses access immediately
	rec = s.do("GET", "/api/me", user, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Account deactivated", decode[httpx.ErrorBody](t, rec).Detail)

	rec = s.do("POST", "/api/login", "", model.Credentials{MobileNumber: userMobile, Password: "4321"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Account deactivated", decode[httpx.ErrorBody](t, rec).Detail)

	rec = s.do("PUT", fmt.Sprintf("/api/admin/users/%d/toggle-status", userID), admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decode[model.User](t, rec).IsActive)
}

func TestFormLifecycle(t *testing.T) {
	s := newServer(t)
	admin, user, userID := s.seed()

	form := s.createForm(admin)
	assert.Equal(t, "Intake", form.Title)
	assert.Equal(t, "New patients & visitors", form.Description)
	assert.Equal(t, 1, form.Version)

	stored, err := schema.Parse(form.FormSchema)
	require.NoError(t, err)
	require.Len(t, stored, 3)
	assert.Equal(t, schema.FieldID("c"), stored[1].ConditionFieldID)

	rec := s.do("POST", "/api/forms", admin, map[string]any{"title": "  ", "form_schema": "[]"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "form title is required", decode[httpx.ErrorBody](t, rec).Detail)

	rec = s.do("POST", "/api/forms", admin, map[string]any{
		"title":       "Broken",
		"form_schema": `[{"id":"a","label":"A","type":"text","conditionField":"Missing","conditionValue":"x"}]`,
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Len(t, decode[httpx.ErrorBody](t, rec).Errors, 1)

	rec = s.do("GET", "/api/forms", admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]model.Form](t, rec), 1)

	path := fmt.Sprintf("/api/forms/%d", form.ID)

	// not shared yet
	rec = s.do("GET", path, user, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	rec = s.do("PUT", path, user, map[string]any{"title": "Mine", "form_schema": "[]"})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	accessPath := fmt.Sprintf("/api/admin/forms/%d/access", form.ID)
	rec = s.do("PUT", accessPath, admin, model.AccessUpdate{UserID: userID, HasAccess: true})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = s.do("GET", accessPath, admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	access := decode[[]model.AccessInfo](t, rec)
	require.Len(t, access, 1)
	assert.Equal(t, userID, access[0].UserID)
	assert.True(t, access[0].HasAccess)

	rec = s.do("GET", path, user, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	rec = s.do("GET", "/api/user/shared-forms", user, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]model.Form](t, rec), 1)

	// stale version
	rec = s.do("PUT", path, admin, map[string]any{"title": "Intake", "form_schema": intakeSchema, "version": 7})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = s.do("PUT", path, admin, map[string]any{"title": "Intake v2", "form_schema": intakeSchema, "version": 1})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	updated := decode[model.Form](t, rec)
	assert.Equal(t, 2, updated.Version)
	assert.Equal(t, "Intake v2", updated.Title)

	rec = s.do("DELETE", path, admin, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = s.do("GET", path, admin, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec = s.do("GET", "/api/user/shared-forms", user, nil)
	assert.Empty(t, decode[[]model.Form](t, rec))
}

func TestCreateFormKeepsDigitStringIDs(t *testing.T) {
	s := newServer(t)
	admin, _, _ := s.seed()

	rec := s.do("POST", "/api/forms", admin, map[string]any{
		"title":       "Digits",
		"form_schema": `[{"id":"0123","label":"A","type":"text"},{"id":"123","label":"B","type":"text"}]`,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	form := decode[model.Form](t, rec)
	assert.Contains(t, form.FormSchema, `"id":"0123"`)
	assert.Contains(t, form.FormSchema, `"id":"123"`)
}

func TestFieldEditing(t *testing.T) {
	s := newServer(t)
	admin, user, _ := s.seed()
	form := s.createForm(admin)
	fields := fmt.Sprintf("/api/forms/%d/fields", form.ID)

	rec := s.do("POST", fields, admin, map[string]any{"label": "Age", "type": "number"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	added := decode[model.FieldResult](t, rec)
	assert.Equal(t, "Age", added.Field.Label)
	assert.Equal(t, schema.Number, added.Field.Type)
	assert.True(t, added.Field.IsActive)
	assert.NotEmpty(t, added.Field.ID)
	assert.Equal(t, 2, added.Version)

	rec = s.do("POST", fields, user, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	// renaming keeps dependents attached
	rec = s.do("PATCH", fields+"/c", admin, map[string]any{"label": "Nation"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "Nation", decode[model.FieldResult](t, rec).Field.Label)

	rec = s.do("PATCH", fields+"/d", admin, map[string]any{"label": "Age"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do("PATCH", fields+"/nope", admin, map[string]any{"label": "X"})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = s.do("GET", fmt.Sprintf("/api/forms/%d", form.ID), admin, nil)
	current, err := schema.Parse(decode[model.Form](t, rec).FormSchema)
	require.NoError(t, err)
	state, _ := current.Find("s")
	assert.Equal(t, "Nation", state.ConditionField)
	assert.Equal(t, schema.FieldID("c"), state.ConditionFieldID)

	// an active field cannot depend on a deactivated one
	rec = s.do("POST", fields+"/c/toggle", admin, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do("POST", fields+"/d/toggle", admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, decode[model.FieldResult](t, rec).Field.IsActive)

	rec = s.do("GET", fields+"/s/candidates", admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"Nation"}, decode[schema.Schema](t, rec).Labels())

	// removing a field others depend on leaves them dangling
	rec = s.do("DELETE", fields+"/c", admin, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do("DELETE", fields+"/d", admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	visibility := fmt.Sprintf("/api/forms/%d/visibility", form.ID)
	rec = s.do("POST", visibility, admin, map[string]any{"answers": map[string]any{"Nation": "US"}})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"Nation", "State", "Age"}, decode[model.VisibilityResult](t, rec).Visible)

	rec = s.do("POST", visibility, admin, map[string]any{"answers": map[string]any{"Nation": "CA", "State": "ON"}})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"Nation", "Age"}, decode[model.VisibilityResult](t, rec).Visible)
}

func submit(answers map[string]string) map[string]any {
	data, _ := json.Marshal(answers)
	return map[string]any{"response_data": string(data)}
}

func TestResponses(t *testing.T) {
	s := newServer(t)
	admin, user, userID := s.seed()
	form := s.createForm(admin)
	responses := fmt.Sprintf("/api/forms/%d/responses", form.ID)

	rec := s.do("POST", responses, user, submit(map[string]string{"Country": "CA"}))
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = s.do("PUT", fmt.Sprintf("/api/admin/forms/%d/access", form.ID), admin, model.AccessUpdate{UserID: userID, HasAccess: true})
	require.Equal(t, http.StatusOK, rec.Code)

	// the hidden State answer is dropped
	rec = s.do("POST", responses, user, submit(map[string]string{"Country": "CA", "State": "ON", "DOB": "1990-12-25"}))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	first := decode[model.Response](t, rec)
	assert.Equal(t, userID, first.UserID)
	assert.True(t, first.IsActive)
	assert.JSONEq(t, `{"c":"CA","d":"12/25/1990"}`, first.ResponseData)
	assert.Equal(t, schema.AnswerSet{"Country": "CA", "DOB": "1990-12-25"}, first.Answers)

	rec = s.do("POST", responses, user, submit(map[string]string{"Country": "US"}))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	problems := decode[httpx.ErrorBody](t, rec).Errors
	require.Len(t, problems, 1)
	assert.Equal(t, "State", problems[0].Label)

	rec = s.do("POST", responses, user, submit(map[string]string{"Country": "FR"}))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do("POST", responses, user, map[string]any{"response_data": "[1,2]"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// the creator may submit too
	rec = s.do("POST", responses, admin, submit(map[string]string{"Country": "US", "State": "NY"}))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = s.do("GET", responses, user, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	listed := decode[[]model.Response](t, rec)
	require.Len(t, listed, 1)
	assert.Equal(t, first.ID, listed[0].ID)

	rec = s.do("PUT", fmt.Sprintf("/api/responses/%d", first.ID), admin, map[string]any{"is_active": false})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	edit := submit(map[string]string{"DOB": "1991-01-02"})
	edit["is_active"] = false
	rec = s.do("PUT", fmt.Sprintf("/api/responses/%d", first.ID), user, edit)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	edited := decode[model.Response](t, rec)
	assert.False(t, edited.IsActive)
	assert.JSONEq(t, `{"c":"CA","d":"01/02/1991"}`, edited.ResponseData)

	rec = s.do("GET", responses+"/table", user, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	table := decode[model.ResponseTable](t, rec)
	require.Len(t, table.Columns, 3)
	assert.Equal(t, "Country", table.Columns[0].Label)
	require.Len(t, table.Rows, 1)
	assert.Equal(t, []string{"CA", schema.Placeholder, "1991-01-02"}, table.Rows[0].Cells)
	assert.False(t, table.Rows[0].IsActive)
}

func TestDeactivatedFieldKeepsAnswers(t *testing.T) {
	s := newServer(t)
	admin, _, _ := s.seed()
	form := s.createForm(admin)
	responses := fmt.Sprintf("/api/forms/%d/responses", form.ID)
	fields := fmt.Sprintf("/api/forms/%d/fields", form.ID)

	rec := s.do("POST", responses, admin, submit(map[string]string{"Country": "CA", "DOB": "2000-01-01"}))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = s.do("POST", fields+"/d/toggle", admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = s.do("GET", responses+"/table", admin, nil)
	table := decode[model.ResponseTable](t, rec)
	assert.Len(t, table.Columns, 2)
	assert.Equal(t, []string{"CA", schema.Placeholder}, table.Rows[0].Cells)

	// reactivation brings the answer back
	rec = s.do("POST", fields+"/d/toggle", admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = s.do("GET", responses+"/table", admin, nil)
	table = decode[model.ResponseTable](t, rec)
	assert.Equal(t, []string{"CA", schema.Placeholder, "2000-01-01"}, table.Rows[0].Cells)
}
