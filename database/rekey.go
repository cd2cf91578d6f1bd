package database

import (
	"context"
	"database/sql"

	"github.com/mbolis/dynamic-forms/log"
	"github.com/mbolis/dynamic-forms/schema"
)

// RekeyResponses rewrites stored answer sets still keyed by field label so
// that they are keyed by field id. Keys that match no field are left alone.
// It returns the number of records changed.
func RekeyResponses(ctx context.Context, db *sql.DB) (n int, err error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx, `
		SELECT r.id, r.response_data, f.form_schema
		FROM form_response r
		JOIN form f ON (f.id = r.form_id)`)
	if err != nil {
		return
	}

	type rekeyed struct {
		id   int
		data string
	}
	var changed []rekeyed
	for rows.Next() {
		var id int
		var data, schemaData string
		err = rows.Scan(&id, &data, &schemaData)
		if err != nil {
			rows.Close()
			return
		}

		s, perr := schema.Parse(schemaData)
		if perr != nil {
			log.Warnf("db.rekey: response %d: unreadable schema: %s", id, perr)
			continue
		}
		stored, perr := schema.DecodeAnswers(data)
		if perr != nil {
			log.Warnf("db.rekey: response %d: unreadable answers: %s", id, perr)
			continue
		}

		before, perr := stored.Encode()
		if perr != nil {
			log.Warnf("db.rekey: response %d: cannot encode answers: %s", id, perr)
			continue
		}
		out, perr := schema.Rekey(s, stored).Encode()
		if perr != nil {
			log.Warnf("db.rekey: response %d: cannot encode rekeyed answers: %s", id, perr)
			continue
		}
		if out != before {
			changed = append(changed, rekeyed{id, out})
		}
	}
	rows.Close()
	if err = rows.Err(); err != nil {
		return
	}

	for _, c := range changed {
		_, err = tx.ExecContext(ctx, "UPDATE form_response SET response_data = ? WHERE id = ?", c.data, c.id)
		if err != nil {
			return
		}
		log.Debugf("db.rekey: response %d rekeyed", c.id)
	}

	err = tx.Commit()
	if err != nil {
		return
	}
	return len(changed), nil
}
