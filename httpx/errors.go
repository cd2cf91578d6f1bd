package httpx

import (
	"fmt"
	"net/http"

	"github.com/go-chi/render"
	"github.com/mbolis/dynamic-forms/log"
	"github.com/mbolis/dynamic-forms/schema"
)

// ErrorBody is the JSON shape of every error response.
type ErrorBody struct {
	Detail string                    `json:"detail"`
	Errors []*schema.ValidationError `json:"errors,omitempty"`
}

func writeError(w http.ResponseWriter, r *http.Request, status int, body ErrorBody) {
	w.Header().Set("X-Content-Type-Options", "nosniff")
	render.Status(r, status)
	render.JSON(w, r, body)
}

// Will log an error, and send an HTTP response with status 500 and default text
func LogInternalError(w http.ResponseWriter, r *http.Request, code string, err error) {
	log.Errorf("%s: %s", code, err)
	writeError(w, r, http.StatusInternalServerError, ErrorBody{Detail: http.StatusText(http.StatusInternalServerError)})
}

// Will log a debug message, and send an HTTP response with status 404 and
// "<what> not found" as detail
func LogNotFound(w http.ResponseWriter, r *http.Request, code string, what string, id any) {
	log.Debugf("%s: not found (%v)", code, id)
	writeError(w, r, http.StatusNotFound, ErrorBody{Detail: what + " not found"})
}

// Will log an error code at the given level, and send
// an HTTP response with status and default text
func LogStatus(w http.ResponseWriter, r *http.Request, status int, level log.Level, code string) {
	log.Log(level, code)
	writeError(w, r, status, ErrorBody{Detail: http.StatusText(status)})
}

// Will log an error code and message at the given level,
// and send an HTTP response with the given status and formatted message
func LogStatusMsg(w http.ResponseWriter, r *http.Request, status int, level log.Level, code string, msg string, args ...any) {
	errMsg := fmt.Sprintf(msg, args...)
	log.Log(level, code+":", errMsg)
	writeError(w, r, status, ErrorBody{Detail: errMsg})
}

// LogValidation answers 400 for a rejected schema or answer set, listing
// every problem found. Errors that are not validation failures are internal.
func LogValidation(w http.ResponseWriter, r *http.Request, code string, err error) {
	if !schema.IsValidation(err) {
		LogInternalError(w, r, code, err)
		return
	}

	problems := schema.Problems(err)
	detail := err.Error()
	switch {
	case len(problems) == 1:
		detail = problems[0].Error()
	case len(problems) > 1:
		detail = fmt.Sprintf("%d validation problems", len(problems))
	}
	log.Debugf("%s: %s", code, err)
	writeError(w, r, http.StatusBadRequest, ErrorBody{Detail: detail, Errors: problems})
}
