package cli

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/AlecAivazis/survey/v2"
	"github.com/mbolis/dynamic-forms/config"
	"github.com/mbolis/dynamic-forms/database"
	"github.com/mbolis/dynamic-forms/httpx"
	"github.com/mbolis/dynamic-forms/log"
	"github.com/spf13/cobra"
)

type UserAdd struct {
	Mobile string `survey:"mobile"`
	PIN    string `survey:"pin"`
	Admin  bool
}

func NewUserAdd(cfg *config.Config) *cobra.Command {
	a := &UserAdd{}
	cmd := &cobra.Command{
		Use:   "useradd",
		Short: "Create an account, prompting for missing credentials",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.ask(); err != nil {
				return err
			}

			db, err := database.Open(cfg.DBUrl)
			if err != nil {
				return err
			}
			defer db.Close()

			id, err := a.Run(db)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "user %d created\n", id)
			return nil
		},
	}
	cmd.Flags().StringVar(&a.Mobile, "mobile", "", "10 digit mobile number")
	cmd.Flags().StringVar(&a.PIN, "pin", "", "4 digit PIN")
	cmd.Flags().BoolVar(&a.Admin, "admin", false, "grant administrator rights")
	return cmd
}

func validator(check func(string) error) survey.Validator {
	return func(ans any) error {
		s, _ := ans.(string)
		return check(s)
	}
}

func (a *UserAdd) ask() error {
	var q []*survey.Question
	if a.Mobile == "" {
		q = append(q, &survey.Question{
			Name:     "mobile",
			Prompt:   &survey.Input{Message: "Mobile number"},
			Validate: validator(httpx.CheckMobile),
		})
	}
	if a.PIN == "" {
		q = append(q, &survey.Question{
			Name:     "pin",
			Prompt:   &survey.Password{Message: "PIN"},
			Validate: validator(httpx.CheckPIN),
		})
	}
	if len(q) == 0 {
		return nil
	}
	return survey.Ask(q, a)
}

// Run stores the account. Without --admin the first account still becomes
// the administrator, as on signup.
func (a *UserAdd) Run(db *sql.DB) (int64, error) {
	if err := httpx.CheckMobile(a.Mobile); err != nil {
		return 0, err
	}
	if err := httpx.CheckPIN(a.PIN); err != nil {
		return 0, err
	}

	hash, err := httpx.HashPIN(a.PIN)
	if err != nil {
		return 0, err
	}

	res, err := db.Exec(`
		INSERT INTO user (mobile_number, password_hash, is_admin, is_active, created_at)
		VALUES (?, ?, ? OR NOT EXISTS (SELECT 1 FROM user), 1, ?)`,
		a.Mobile,
		hash,
		a.Admin,
		time.Now().UTC(),
	)
	if err != nil {
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}

	log.WithFields(log.Fields{"user": id, "admin": a.Admin}).Info("useradd: account created")
	return id, nil
}
