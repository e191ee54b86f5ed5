package storage

import (
	"chat-functions/internal/storage/zapadapter"
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/rs/xid"
	"go.uber.org/zap"
)

var (
	ErrUserExists   = errors.New("user already exists")
	ErrUserNotExist = errors.New("user does not exist")
)

const schema = `
create table if not exists users (
	user_id    text primary key,
	logged_in  boolean not null,
	created_at timestamptz not null default clock_timestamp()
);

create table if not exists messages (
	id         text primary key,
	user_id    text not null,
	text       text not null,
	created_at timestamptz not null default clock_timestamp()
);

create index if not exists messages_user_id_created_at_idx on messages (user_id, created_at, id);
`

// Store defines fields used in db interaction processes
type Store struct {
	logger *zap.SugaredLogger
	db     *pgxpool.Pool
}

// New sets provided zap.Logger via zapadapter to pgxpool.Pool, creates missing tables
// and returns instance of Store struct
func New(ctx context.Context, logger *zap.SugaredLogger, cfg Config, opts ...Option) (*Store, error) {
	config, err := pgxpool.ParseConfig(cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("pgxpool.ParseConfig: %w", err)
	}
	config.ConnConfig.Logger = zapadapter.NewLogger(logger.Desugar())
	config.ConnConfig.LogLevel = pgx.LogLevelWarn
	if cfg.ConnectTimeout > 0 {
		config.ConnConfig.ConnectTimeout = cfg.ConnectTimeout
	}

	for _, opt := range opts {
		opt.apply(config)
	}

	pool, err := pgxpool.ConnectConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("pgxpool.ConnectConfig: %w", err)
	}

	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	return &Store{
		logger: logger,
		db:     pool,
	}, nil
}

// Close closes all connections in the pool
func (s *Store) Close() {
	s.db.Close()
}

// CreateUser inserts logged in user document, ErrUserExists is returned if the key is taken
func (s *Store) CreateUser(ctx context.Context, userID string) error {
	s.logger.Debugf("Creating user (%s)", userID)

	sql := "insert into users (user_id, logged_in) values ($1, true)"
	_, err := s.db.Exec(ctx, sql, userID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return ErrUserExists
		}
		return fmt.Errorf("inserting user: %w", err)
	}

	return nil
}

// User returns user document by its key
func (s *Store) User(ctx context.Context, userID string) (User, error) {
	u := User{ID: userID}
	sql := "select logged_in from users where user_id = $1"
	err := s.db.QueryRow(ctx, sql, userID).Scan(&u.LoggedIn)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, ErrUserNotExist
		}
		return User{}, fmt.Errorf("selecting user: %w", err)
	}

	return u, nil
}

// SetLoggedIn overwrites login state of existing user
func (s *Store) SetLoggedIn(ctx context.Context, userID string, loggedIn bool) error {
	s.logger.Debugf("Setting loggedIn=%t for user (%s)", loggedIn, userID)

	sql := "update users set logged_in = $2 where user_id = $1"
	ct, err := s.db.Exec(ctx, sql, userID, loggedIn)
	if err != nil {
		return fmt.Errorf("updating user: %w", err)
	}

	if ct.RowsAffected() == 0 {
		return ErrUserNotExist
	}

	return nil
}

// RenameUser moves user document from oldID to newID inside one transaction:
// the new document is written first, the old one is deleted afterwards.
// A document already stored under newID is overwritten.
func (s *Store) RenameUser(ctx context.Context, oldID, newID string) error {
	s.logger.Debugf("Renaming user (%s) to (%s)", oldID, newID)

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	// error handling can be omitted for rollback according docs
	defer tx.Rollback(context.Background())

	var loggedIn bool
	sql := "select logged_in from users where user_id = $1 for update"
	err = tx.QueryRow(ctx, sql, oldID).Scan(&loggedIn)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrUserNotExist
		}
		return fmt.Errorf("selecting user: %w", err)
	}

	if oldID == newID {
		return nil
	}

	sql = `insert into users (user_id, logged_in) values ($1, $2)
		   on conflict (user_id) do update set logged_in = excluded.logged_in`
	if _, err = tx.Exec(ctx, sql, newID, loggedIn); err != nil {
		return fmt.Errorf("writing new user: %w", err)
	}

	sql = "delete from users where user_id = $1"
	if _, err = tx.Exec(ctx, sql, oldID); err != nil {
		return fmt.Errorf("deleting old user: %w", err)
	}

	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}

	s.logger.Debugf("Renamed user (%s) to (%s)", oldID, newID)

	return nil
}

// CreateMessage appends message to the user's log, id and timestamp are assigned here
func (s *Store) CreateMessage(ctx context.Context, userID, text string) (Message, error) {
	s.logger.Debugf("Creating message for user (%s)", userID)

	m := Message{
		ID:     xid.New().String(),
		UserID: userID,
		Text:   text,
	}
	sql := "insert into messages (id, user_id, text) values ($1, $2, $3) returning created_at"
	err := s.db.QueryRow(ctx, sql, m.ID, m.UserID, m.Text).Scan(&m.Timestamp)
	if err != nil {
		return Message{}, fmt.Errorf("inserting message: %w", err)
	}

	return m, nil
}

// MessagesByUserID returns user's log sorted by message creation time (from earliest to latest)
func (s *Store) MessagesByUserID(ctx context.Context, userID string) ([]Message, error) {
	s.logger.Debugf("Retrieving messages for user (%s)", userID)

	sql := `select id,
				   user_id,
				   text,
				   created_at
			  from messages
			 where user_id = $1
			 order by created_at, id`

	rows, err := s.db.Query(ctx, sql, userID)
	if err != nil {
		return nil, fmt.Errorf("selecting messages: %w", err)
	}

	defer rows.Close()

	messages := make([]Message, 0)
	for rows.Next() {
		var m Message
		err = rows.Scan(&m.ID, &m.UserID, &m.Text, &m.Timestamp)
		if err != nil {
			return nil, fmt.Errorf("scanning message: %w", err)
		}
		messages = append(messages, m)
	}

	if rows.Err() != nil {
		return nil, rows.Err()
	}

	s.logger.Debugf("Retrieved %d messages", len(messages))

	return messages, nil
}
