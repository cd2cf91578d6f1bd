package database

import (
	"database/sql"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Open connects to the SQLite database at url and brings its schema up to
// date.
func Open(url string) (db *sql.DB, err error) {
	db, err = sql.Open("sqlite3", dsn(url))
	if err != nil {
		return
	}

	// db tuning options
	db.SetMaxOpenConns(20)
	db.SetMaxIdleConns(10)
	db.SetConnMaxIdleTime(5 * time.Minute)
	db.SetConnMaxLifetime(2 * time.Hour)

	err = db.Ping()
	if err != nil {
		db.Close()
		return
	}

	err = migrateDB(db)
	if err != nil {
		db.Close()
		return
	}

	return
}

// foreign keys are a per-connection setting in SQLite, so they go in the DSN
func dsn(url string) string {
	sep := "?"
	if strings.Contains(url, "?") {
		sep = "&"
	}
	if !strings.Contains(url, "_foreign_keys") && !strings.Contains(url, "_fk=") {
		url += sep + "_foreign_keys=on"
		sep = "&"
	}
	if !strings.Contains(url, "_busy_timeout") {
		url += sep + "_busy_timeout=5000"
	}
	return url
}
