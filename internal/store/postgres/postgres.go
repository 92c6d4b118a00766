// Package postgres implements store.Backend and session.Store on database/sql
// with the pgx driver.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"airhome/internal/session"
	"airhome/internal/store"
)

// Store provides persistence backed by Postgres.
type Store struct {
	db *sql.DB
}

var (
	_ store.Backend = (*Store)(nil)
	_ session.Store = (*Store)(nil)
)

// New sets up a Store using the provided database handle.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// Close releases the pool.
func (s *Store) Close() error {
	return s.db.Close()
}

// CreateHome inserts a home and returns it with its generated id.
func (s *Store) CreateHome(ctx context.Context, home store.Home) (store.Home, error) {
	if err := store.Checkpoint(ctx, "create home"); err != nil {
		return store.Home{}, err
	}
	home, err := store.PrepareHome(home)
	if err != nil {
		return store.Home{}, err
	}

	var id int64
	err = s.db.QueryRowContext(ctx, `
		INSERT INTO homes (house_name, price, location, rating, photo, description)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`, home.HouseName, home.Price, home.Location, home.Rating, home.Photo, home.Description).Scan(&id)
	if err != nil {
		return store.Home{}, store.Wrap("create home", fmt.Errorf("insert home: %w", err))
	}

	home.ID = formatID(id)
	return home, nil
}

// UpdateHome overwrites the mutable columns of an existing home.
func (s *Store) UpdateHome(ctx context.Context, id string, home store.Home) (store.Home, error) {
	if err := store.Checkpoint(ctx, "update home"); err != nil {
		return store.Home{}, err
	}
	home, err := store.PrepareHome(home)
	if err != nil {
		return store.Home{}, err
	}
	homeID, ok := parseID(id)
	if !ok {
		return store.Home{}, store.ErrHomeNotFound
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE homes
		SET house_name = $1, price = $2, location = $3, rating = $4, photo = $5, description = $6, updated_at = NOW()
		WHERE id = $7
	`, home.HouseName, home.Price, home.Location, home.Rating, home.Photo, home.Description, homeID)
	if err != nil {
		return store.Home{}, store.Wrap("update home", fmt.Errorf("update home: %w", err))
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return store.Home{}, store.Wrap("update home", fmt.Errorf("rows affected: %w", err))
	}
	if affected == 0 {
		return store.Home{}, store.ErrHomeNotFound
	}

	home.ID = formatID(homeID)
	return home, nil
}

// HomeByID loads one home.
func (s *Store) HomeByID(ctx context.Context, id string) (store.Home, error) {
	if err := store.Checkpoint(ctx, "get home"); err != nil {
		return store.Home{}, err
	}
	homeID, ok := parseID(id)
	if !ok {
		return store.Home{}, store.ErrHomeNotFound
	}

	row := s.db.QueryRowContext(ctx, `
		SELECT id, house_name, price, location, rating, photo, description
		FROM homes
		WHERE id = $1
	`, homeID)
	home, err := scanHome(row)
	if errors.Is(err, sql.ErrNoRows) {
		return store.Home{}, store.ErrHomeNotFound
	}
	if err != nil {
		return store.Home{}, store.Wrap("get home", fmt.Errorf("select home: %w", err))
	}
	return home, nil
}

// ListHomes returns every home ordered by id.
func (s *Store) ListHomes(ctx context.Context) ([]store.Home, error) {
	if err := store.Checkpoint(ctx, "list homes"); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, house_name, price, location, rating, photo, description
		FROM homes
		ORDER BY id ASC
	`)
	if err != nil {
		return nil, store.Wrap("list homes", fmt.Errorf("select homes: %w", err))
	}
	defer rows.Close()

	var homes []store.Home
	for rows.Next() {
		home, err := scanHome(rows)
		if err != nil {
			return nil, store.Wrap("list homes", fmt.Errorf("scan home: %w", err))
		}
		homes = append(homes, home)
	}
	if err := rows.Err(); err != nil {
		return nil, store.Wrap("list homes", fmt.Errorf("iterate homes: %w", err))
	}
	return homes, nil
}

// DeleteHome removes the favourites of the home and the home in one transaction.
func (s *Store) DeleteHome(ctx context.Context, id string) error {
	if err := store.Checkpoint(ctx, "delete home"); err != nil {
		return err
	}
	homeID, ok := parseID(id)
	if !ok {
		return store.ErrHomeNotFound
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return store.Wrap("delete home", fmt.Errorf("begin tx: %w", err))
	}
	defer func() {
		if tx != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err := tx.ExecContext(ctx, `
		DELETE FROM favourites
		WHERE home_id = $1
	`, homeID); err != nil {
		return store.Wrap("delete home", fmt.Errorf("delete favourites: %w", err))
	}

	res, err := tx.ExecContext(ctx, `
		DELETE FROM homes
		WHERE id = $1
	`, homeID)
	if err != nil {
		return store.Wrap("delete home", fmt.Errorf("delete home: %w", err))
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return store.Wrap("delete home", fmt.Errorf("rows affected: %w", err))
	}
	if affected == 0 {
		return store.ErrHomeNotFound
	}

	if err := tx.Commit(); err != nil {
		return store.Wrap("delete home", fmt.Errorf("commit tx: %w", err))
	}
	tx = nil

	return nil
}

// AddFavourite inserts the pair; an existing pair is reported as ErrFavouriteExists.
func (s *Store) AddFavourite(ctx context.Context, owner, homeID string) error {
	if err := store.Checkpoint(ctx, "add favourite"); err != nil {
		return err
	}
	id, ok := parseID(homeID)
	if !ok {
		return store.ErrHomeNotFound
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO favourites (owner, home_id)
		VALUES ($1, $2)
		ON CONFLICT (owner, home_id) DO NOTHING
	`, owner, id)
	if err != nil {
		if isForeignKeyViolation(err) {
			return store.ErrHomeNotFound
		}
		return store.Wrap("add favourite", fmt.Errorf("insert favourite: %w", err))
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return store.Wrap("add favourite", fmt.Errorf("rows affected: %w", err))
	}
	if affected == 0 {
		return store.ErrFavouriteExists
	}
	return nil
}

// RemoveFavourite deletes the pair.
func (s *Store) RemoveFavourite(ctx context.Context, owner, homeID string) error {
	if err := store.Checkpoint(ctx, "remove favourite"); err != nil {
		return err
	}
	id, ok := parseID(homeID)
	if !ok {
		return store.ErrFavouriteNotFound
	}

	res, err := s.db.ExecContext(ctx, `
		DELETE FROM favourites
		WHERE owner = $1 AND home_id = $2
	`, owner, id)
	if err != nil {
		return store.Wrap("remove favourite", fmt.Errorf("delete favourite: %w", err))
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return store.Wrap("remove favourite", fmt.Errorf("rows affected: %w", err))
	}
	if affected == 0 {
		return store.ErrFavouriteNotFound
	}
	return nil
}

// FavouriteHomeIDs lists the owner's favourites oldest first.
func (s *Store) FavouriteHomeIDs(ctx context.Context, owner string) ([]string, error) {
	if err := store.Checkpoint(ctx, "list favourites"); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT home_id
		FROM favourites
		WHERE owner = $1
		ORDER BY created_at ASC, home_id ASC
	`, owner)
	if err != nil {
		return nil, store.Wrap("list favourites", fmt.Errorf("select favourites: %w", err))
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, store.Wrap("list favourites", fmt.Errorf("scan favourite: %w", err))
		}
		ids = append(ids, formatID(id))
	}
	if err := rows.Err(); err != nil {
		return nil, store.Wrap("list favourites", fmt.Errorf("iterate favourites: %w", err))
	}
	return ids, nil
}

// CreateUser inserts an account.
func (s *Store) CreateUser(ctx context.Context, user store.User) (store.User, error) {
	if err := store.Checkpoint(ctx, "create user"); err != nil {
		return store.User{}, err
	}
	user, err := store.PrepareUser(user)
	if err != nil {
		return store.User{}, err
	}

	var id int64
	err = s.db.QueryRowContext(ctx, `
		INSERT INTO users (first_name, last_name, email, password_hash, user_type)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`, user.FirstName, user.LastName, user.Email, user.PasswordHash, user.UserType).Scan(&id)
	if err != nil {
		if isUniqueViolation(err) {
			return store.User{}, store.ErrUserExists
		}
		return store.User{}, store.Wrap("create user", fmt.Errorf("insert user: %w", err))
	}

	user.ID = formatID(id)
	return user, nil
}

// UserByEmail loads an account by email.
func (s *Store) UserByEmail(ctx context.Context, email string) (store.User, error) {
	if err := store.Checkpoint(ctx, "get user"); err != nil {
		return store.User{}, err
	}

	row := s.db.QueryRowContext(ctx, `
		SELECT id, first_name, last_name, email, password_hash, user_type
		FROM users
		WHERE email = $1
	`, store.NormalizeEmail(email))
	return scanUser(row)
}

// UserByID loads an account by id.
func (s *Store) UserByID(ctx context.Context, id string) (store.User, error) {
	if err := store.Checkpoint(ctx, "get user"); err != nil {
		return store.User{}, err
	}
	userID, ok := parseID(id)
	if !ok {
		return store.User{}, store.ErrUserNotFound
	}

	row := s.db.QueryRowContext(ctx, `
		SELECT id, first_name, last_name, email, password_hash, user_type
		FROM users
		WHERE id = $1
	`, userID)
	return scanUser(row)
}

// SaveSession persists a session token.
func (s *Store) SaveSession(ctx context.Context, token, userID string, expiresAt time.Time) error {
	id, ok := parseID(userID)
	if !ok {
		return store.ErrUserNotFound
	}

	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO sessions (token, user_id, expires_at)
		VALUES ($1, $2, $3)
	`, token, id, expiresAt.UTC()); err != nil {
		return store.Wrap("save session", fmt.Errorf("store session: %w", err))
	}
	return nil
}

// SessionUser resolves a live token to its user id.
func (s *Store) SessionUser(ctx context.Context, token string) (string, error) {
	var userID int64
	err := s.db.QueryRowContext(ctx, `
		SELECT user_id
		FROM sessions
		WHERE token = $1 AND expires_at > NOW()
	`, token).Scan(&userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", session.ErrNoSession
		}
		return "", store.Wrap("lookup session", fmt.Errorf("lookup session: %w", err))
	}
	return formatID(userID), nil
}

// DeleteSession removes a token.
func (s *Store) DeleteSession(ctx context.Context, token string) error {
	if _, err := s.db.ExecContext(ctx, `
		DELETE FROM sessions
		WHERE token = $1
	`, token); err != nil {
		return store.Wrap("delete session", fmt.Errorf("delete session: %w", err))
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanHome(row rowScanner) (store.Home, error) {
	var (
		home store.Home
		id   int64
	)
	if err := row.Scan(&id, &home.HouseName, &home.Price, &home.Location, &home.Rating, &home.Photo, &home.Description); err != nil {
		return store.Home{}, err
	}
	home.ID = formatID(id)
	return home, nil
}

func scanUser(row rowScanner) (store.User, error) {
	var (
		user store.User
		id   int64
	)
	err := row.Scan(&id, &user.FirstName, &user.LastName, &user.Email, &user.PasswordHash, &user.UserType)
	if errors.Is(err, sql.ErrNoRows) {
		return store.User{}, store.ErrUserNotFound
	}
	if err != nil {
		return store.User{}, store.Wrap("get user", fmt.Errorf("select user: %w", err))
	}
	user.ID = formatID(id)
	return user, nil
}

// parseID reports false for ids that cannot name a row, which callers treat as a miss.
func parseID(id string) (int64, bool) {
	n, err := strconv.ParseInt(id, 10, 64)
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}

func formatID(id int64) string {
	return strconv.FormatInt(id, 10)
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}

func isForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23503"
	}
	return false
}
