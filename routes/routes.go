package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/oauth"
	"github.com/mbolis/dynamic-forms/app"
	"github.com/mbolis/dynamic-forms/log"
	"github.com/mbolis/dynamic-forms/routes/middlewares"
)

func Wire(app app.App) http.Handler {
	middleware.DefaultLogger = middleware.RequestLogger(&middleware.DefaultLogFormatter{
		Logger:  log.Logger,
		NoColor: true,
	})

	root := chi.NewRouter()
	root.Use(middleware.RequestID, middleware.Logger, middleware.Recoverer)

	root.Get("/health", Health)
	root.Mount("/api", apiRouter(app))

	if app.StaticDir != "" {
		root.Mount("/", http.FileServer(http.Dir(app.StaticDir)))
	}

	return root
}

func apiRouter(app app.App) http.Handler {
	api := chi.NewRouter()

	api.Post("/signup", Signup(app))
	api.Post("/login", Login(app))
	api.Post("/refresh", Refresh(app))

	api.Group(func(r chi.Router) {
		r.Use(oauth.Authorize(app.TokenSecret, nil), middlewares.CurrentUser(app))

		r.Get("/me", Me)
		r.Put("/profile", UpdateProfile(app))

		// CRUD form
		r.Post("/forms", CreateForm(app))
		r.Get("/forms", ListForms(app))
		r.Get(`/forms/{id:^\d+$}`, GetFormById(app))
		r.Put(`/forms/{id:^\d+$}`, UpdateForm(app))
		r.Delete(`/forms/{id:^\d+$}`, DeleteForm(app))

		// schema editing
		r.Post(`/forms/{id:^\d+$}/fields`, AddField(app))
		r.Patch(`/forms/{id:^\d+$}/fields/{fieldId}`, UpdateField(app))
		r.Delete(`/forms/{id:^\d+$}/fields/{fieldId}`, RemoveField(app))
		r.Post(`/forms/{id:^\d+$}/fields/{fieldId}/toggle`, ToggleField(app))
		r.Get(`/forms/{id:^\d+$}/fields/{fieldId}/candidates`, ConditionCandidates(app))
		r.Post(`/forms/{id:^\d+$}/visibility`, Visibility(app))

		r.Get("/user/shared-forms", SharedForms(app))

		r.Post(`/forms/{id:^\d+$}/responses`, SubmitResponse(app))
		r.Get(`/forms/{id:^\d+$}/responses`, ListResponses(app))
		r.Get(`/forms/{id:^\d+$}/responses/table`, ResponseTable(app))
		r.Put(`/responses/{id:^\d+$}`, UpdateResponse(app))

		r.Route("/admin", func(r chi.Router) {
			r.Use(middlewares.Admin)

			r.Get("/users", ListUsers(app))
			r.Put(`/users/{id:^\d+$}/toggle-status`, ToggleUserStatus(app))
			r.Get(`/forms/{id:^\d+$}/access`, GetFormAccess(app))
			r.Put(`/forms/{id:^\d+$}/access`, UpdateFormAccess(app))
		})
	})

	return api
}
