package functions

import (
	"chat-functions/internal/storage"
	"chat-functions/internal/storage/badgerdb"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var errStoreDown = errors.New("store is down")

func bootstrapStore(t *testing.T) *badgerdb.Store {
	s, err := badgerdb.New(zap.NewNop().Sugar(), badgerdb.Config{})
	require.NoError(t, err)
	t.Cleanup(s.Close)
	return s
}

// brokenStore fails every call and counts them
type brokenStore struct {
	calls int
}

func (b *brokenStore) CreateUser(context.Context, string) error {
	b.calls++
	return errStoreDown
}

func (b *brokenStore) SetLoggedIn(context.Context, string, bool) error {
	b.calls++
	return errStoreDown
}

func (b *brokenStore) RenameUser(context.Context, string, string) error {
	b.calls++
	return errStoreDown
}

func (b *brokenStore) CreateMessage(context.Context, string, string) (storage.Message, error) {
	b.calls++
	return storage.Message{}, errStoreDown
}

func (b *brokenStore) MessagesByUserID(context.Context, string) ([]storage.Message, error) {
	b.calls++
	return nil, errStoreDown
}

func requireCode(t *testing.T, err error, code Code) *Error {
	t.Helper()

	var ferr *Error
	require.True(t, errors.As(err, &ferr), "expected *Error, got %v", err)
	require.Equal(t, code, ferr.Code)
	return ferr
}
