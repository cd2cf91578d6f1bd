package httpx

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"regexp"
	"strconv"
	"time"

	"github.com/go-chi/oauth"
	"golang.org/x/crypto/bcrypt"
)

// RefreshTTL bounds how long a refresh token can be exchanged.
const RefreshTTL = 30 * 24 * time.Hour

var (
	reMobile = regexp.MustCompile(`^[0-9]{10}$`)
	rePIN    = regexp.MustCompile(`^[0-9]{4}$`)
)

// CheckMobile accepts 10 digit mobile numbers.
func CheckMobile(mobile string) error {
	if !reMobile.MatchString(mobile) {
		return errors.New("Mobile number must be exactly 10 digits")
	}
	return nil
}

// CheckPIN accepts 4 digit PINs.
func CheckPIN(pin string) error {
	if !rePIN.MatchString(pin) {
		return errors.New("PIN must be exactly 4 digits")
	}
	return nil
}

func HashPIN(pin string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(pin), bcrypt.DefaultCost)
	return string(hash), err
}

var (
	ErrBadCredentials = errors.New("incorrect mobile number or password")
	ErrDeactivated    = errors.New("account deactivated")
	errNoRefresh      = errors.New("could not refresh")
)

type credentialsVerifier struct {
	db *sql.DB
}

// CredentialsVerifier authenticates users by mobile number and PIN and keeps
// refresh token ids in the token table.
func CredentialsVerifier(db *sql.DB) oauth.CredentialsVerifier {
	return &credentialsVerifier{db}
}

func (cs *credentialsVerifier) ValidateUser(username string, password string, scope string, r *http.Request) error {
	return Authenticate(r.Context(), cs.db, username, password)
}

// Authenticate checks a mobile number and PIN pair. It returns
// ErrBadCredentials or ErrDeactivated when the pair is refused.
func Authenticate(ctx context.Context, db *sql.DB, mobile, pin string) error {
	var hash []byte
	var active bool
	err := db.
		QueryRowContext(ctx, "SELECT password_hash, is_active FROM user WHERE mobile_number = ?", mobile).
		Scan(&hash, &active)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrBadCredentials
	}
	if err != nil {
		return err
	}

	if bcrypt.CompareHashAndPassword(hash, []byte(pin)) != nil {
		return ErrBadCredentials
	}
	if !active {
		return ErrDeactivated
	}
	return nil
}

func (cs *credentialsVerifier) StoreTokenID(tokenType oauth.TokenType, credential string, tokenID string, refreshTokenID string) error {
	_, err := cs.db.Exec(
		"INSERT INTO token (username, token_id, refresh_token_id, expiration) VALUES (?, ?, ?, ?)",
		credential,
		tokenID,
		refreshTokenID,
		time.Now().Add(RefreshTTL),
	)
	return err
}

// ValidateTokenID consumes the stored refresh token: each one can be
// exchanged once, and never for a deactivated account.
func (cs *credentialsVerifier) ValidateTokenID(tokenType oauth.TokenType, credential string, tokenID string, refreshTokenID string) error {
	var expiration time.Time
	err := cs.db.
		QueryRow(`
			SELECT expiration FROM token
			WHERE username = ?
				AND token_id = ?
				AND refresh_token_id = ?`,
			credential,
			tokenID,
			refreshTokenID,
		).
		Scan(&expiration)
	if err != nil {
		return errNoRefresh
	}

	res, err := cs.db.Exec(`
		DELETE FROM token
		WHERE username = ?
			AND token_id = ?
			AND refresh_token_id = ?`,
		credential,
		tokenID,
		refreshTokenID,
	)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		// exchanged concurrently
		return errNoRefresh
	}
	if expiration.Before(time.Now()) {
		return errNoRefresh
	}

	var active bool
	err = cs.db.QueryRow("SELECT is_active FROM user WHERE mobile_number = ?", credential).Scan(&active)
	if err != nil || !active {
		return errNoRefresh
	}
	return nil
}

func (cs *credentialsVerifier) AddClaims(tokenType oauth.TokenType, credential string, tokenID string, scope string, r *http.Request) (map[string]string, error) {
	var id int
	var admin bool
	err := cs.db.
		QueryRowContext(r.Context(), "SELECT id, is_admin FROM user WHERE mobile_number = ?", credential).
		Scan(&id, &admin)
	if err != nil {
		return nil, err
	}

	roles := "user"
	if admin {
		roles = "admin,user"
	}
	return map[string]string{"roles": roles, "uid": strconv.Itoa(id)}, nil
}

func (*credentialsVerifier) AddProperties(tokenType oauth.TokenType, credential string, tokenID string, scope string, r *http.Request) (map[string]string, error) {
	return map[string]string{}, nil
}

func (*credentialsVerifier) ValidateClient(clientID string, clientSecret string, scope string, r *http.Request) error {
	return errors.New("not supported")
}
