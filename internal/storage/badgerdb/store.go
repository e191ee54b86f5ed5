// Package badgerdb implements the users and messages collections on top of an embedded BadgerDB.
//
// Keys:
//
//	user:{user_id}                                 -> {"loggedIn":bool}
//	msg:{hex(user_id)}:{unix_nanos_padded}:{id}    -> message document
//
// The 19-digit zero padded timestamp keeps a user's messages in chronological order under
// a plain prefix scan, the id disambiguates messages sharing a timestamp.
package badgerdb

import (
	"chat-functions/internal/storage"
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/rs/xid"
	"go.uber.org/zap"
)

const (
	userPrefix    = "user:"
	messagePrefix = "msg:"
)

// Config defines fields used for opening BadgerDB, an empty Path keeps the whole database in memory
type Config struct {
	Path string `env:"BADGER_PATH"`
}

type userDoc struct {
	LoggedIn bool `json:"loggedIn"`
}

type messageDoc struct {
	ID        string `json:"id"`
	UserID    string `json:"userId"`
	Text      string `json:"text"`
	Timestamp int64  `json:"timestamp"`
}

// Store defines fields used in db interaction processes
type Store struct {
	logger *zap.SugaredLogger
	db     *badger.DB

	// mu serializes message appends so assigned timestamps never go backwards
	mu   sync.Mutex
	last time.Time
	now  func() time.Time
}

// New opens BadgerDB described by cfg and routes its logs to logger
func New(logger *zap.SugaredLogger, cfg Config) (*Store, error) {
	opts := badger.DefaultOptions(cfg.Path).
		WithLogger(badgerLogger{logger.Named("badger")}).
		WithLoggingLevel(badger.WARNING)
	if cfg.Path == "" {
		opts = opts.WithInMemory(true)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("badger.Open: %w", err)
	}

	return &Store{
		logger: logger,
		db:     db,
		now:    time.Now,
	}, nil
}

// Close flushes pending writes and releases the database
func (s *Store) Close() {
	if err := s.db.Close(); err != nil {
		s.logger.Errorf("closing badger: %v", err)
	}
}

func userKey(userID string) []byte {
	return []byte(userPrefix + userID)
}

func messagesPrefix(userID string) []byte {
	return []byte(messagePrefix + hex.EncodeToString([]byte(userID)) + ":")
}

func messageKey(m messageDoc) []byte {
	return append(messagesPrefix(m.UserID), fmt.Sprintf("%019d:%s", m.Timestamp, m.ID)...)
}

func getUser(txn *badger.Txn, userID string) (userDoc, error) {
	var doc userDoc
	item, err := txn.Get(userKey(userID))
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return doc, storage.ErrUserNotExist
		}
		return doc, fmt.Errorf("getting user: %w", err)
	}

	err = item.Value(func(val []byte) error {
		return json.Unmarshal(val, &doc)
	})
	if err != nil {
		return doc, fmt.Errorf("decoding user: %w", err)
	}

	return doc, nil
}

func setUser(txn *badger.Txn, userID string, doc userDoc) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encoding user: %w", err)
	}
	return txn.Set(userKey(userID), data)
}

// update runs fn in a read-write transaction, repeating it while the commit
// conflicts with a concurrent transaction on the same keys
func (s *Store) update(ctx context.Context, fn func(txn *badger.Txn) error) error {
	for {
		err := s.db.Update(fn)
		if !errors.Is(err, badger.ErrConflict) {
			return err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fmt.Errorf("retrying conflicted transaction: %w", ctxErr)
		}
		s.logger.Debug("Transaction conflict, retrying")
	}
}

// CreateUser stores logged in user document, ErrUserExists is returned if the key is taken
func (s *Store) CreateUser(ctx context.Context, userID string) error {
	s.logger.Debugf("Creating user (%s)", userID)

	return s.update(ctx, func(txn *badger.Txn) error {
		_, err := getUser(txn, userID)
		switch {
		case err == nil:
			return storage.ErrUserExists
		case !errors.Is(err, storage.ErrUserNotExist):
			return err
		}
		return setUser(txn, userID, userDoc{LoggedIn: true})
	})
}

// User returns user document by its key
func (s *Store) User(_ context.Context, userID string) (storage.User, error) {
	var doc userDoc
	err := s.db.View(func(txn *badger.Txn) error {
		var err error
		doc, err = getUser(txn, userID)
		return err
	})
	if err != nil {
		return storage.User{}, err
	}

	return storage.User{ID: userID, LoggedIn: doc.LoggedIn}, nil
}

// SetLoggedIn overwrites login state of existing user
func (s *Store) SetLoggedIn(ctx context.Context, userID string, loggedIn bool) error {
	s.logger.Debugf("Setting loggedIn=%t for user (%s)", loggedIn, userID)

	return s.update(ctx, func(txn *badger.Txn) error {
		doc, err := getUser(txn, userID)
		if err != nil {
			return err
		}
		doc.LoggedIn = loggedIn
		return setUser(txn, userID, doc)
	})
}

// RenameUser moves user document from oldID to newID in a single transaction,
// writing the new key before deleting the old one. A document under newID is overwritten.
func (s *Store) RenameUser(ctx context.Context, oldID, newID string) error {
	s.logger.Debugf("Renaming user (%s) to (%s)", oldID, newID)

	return s.update(ctx, func(txn *badger.Txn) error {
		doc, err := getUser(txn, oldID)
		if err != nil {
			return err
		}
		if oldID == newID {
			return nil
		}
		if err = setUser(txn, newID, doc); err != nil {
			return err
		}
		return txn.Delete(userKey(oldID))
	})
}

// timestamp returns current time clamped to the last assigned one, s.mu must be held
func (s *Store) timestamp() time.Time {
	now := s.now().UTC()
	if now.Before(s.last) {
		now = s.last
	}
	s.last = now
	return now
}

// CreateMessage appends message to the user's log, id and timestamp are assigned here
func (s *Store) CreateMessage(_ context.Context, userID, text string) (storage.Message, error) {
	s.logger.Debugf("Creating message for user (%s)", userID)

	s.mu.Lock()
	defer s.mu.Unlock()

	doc := messageDoc{
		ID:        xid.New().String(),
		UserID:    userID,
		Text:      text,
		Timestamp: s.timestamp().UnixNano(),
	}

	data, err := json.Marshal(doc)
	if err != nil {
		return storage.Message{}, fmt.Errorf("encoding message: %w", err)
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(messageKey(doc), data)
	})
	if err != nil {
		return storage.Message{}, fmt.Errorf("storing message: %w", err)
	}

	return toMessage(doc), nil
}

// MessagesByUserID returns user's log sorted by message creation time (from earliest to latest)
func (s *Store) MessagesByUserID(_ context.Context, userID string) ([]storage.Message, error) {
	s.logger.Debugf("Retrieving messages for user (%s)", userID)

	messages := make([]storage.Message, 0)
	err := s.db.View(func(txn *badger.Txn) error {
		prefix := messagesPrefix(userID)
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var doc messageDoc
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &doc)
			})
			if err != nil {
				return fmt.Errorf("decoding message: %w", err)
			}
			messages = append(messages, toMessage(doc))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Debugf("Retrieved %d messages", len(messages))

	return messages, nil
}

func toMessage(doc messageDoc) storage.Message {
	return storage.Message{
		ID:        doc.ID,
		UserID:    doc.UserID,
		Text:      doc.Text,
		Timestamp: time.Unix(0, doc.Timestamp).UTC(),
	}
}

// badgerLogger bridges badger.Logger to zap
type badgerLogger struct {
	*zap.SugaredLogger
}

func (l badgerLogger) Warningf(format string, args ...interface{}) {
	l.Warnf(format, args...)
}
