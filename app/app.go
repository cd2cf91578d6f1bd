package app

import (
	"database/sql"

	"github.com/go-chi/oauth"
	"github.com/mbolis/dynamic-forms/config"
)

// App bundles what request handlers share.
type App struct {
	*sql.DB
	*oauth.BearerServer
	config.Config
}
