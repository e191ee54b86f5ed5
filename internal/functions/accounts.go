package functions

import (
	"chat-functions/internal/storage"
	"context"
	"errors"

	"go.uber.org/zap"
)

// UserStore is the users collection of the document store
type UserStore interface {
	CreateUser(ctx context.Context, userID string) error
	SetLoggedIn(ctx context.Context, userID string, loggedIn bool) error
	RenameUser(ctx context.Context, oldID, newID string) error
}

type UserRequest struct {
	UserID string `json:"userId" validate:"required"`
}

type RenameRequest struct {
	OldUserID string `json:"oldUserId" validate:"required"`
	NewUserID string `json:"newUserId" validate:"required"`
}

// Accounts implements the account directory functions
type Accounts struct {
	logger *zap.SugaredLogger
	store  UserStore
}

func NewAccounts(logger *zap.SugaredLogger, store UserStore) *Accounts {
	return &Accounts{logger: logger, store: store}
}

// Register creates logged in user, registering existing user is a no-op
func (a *Accounts) Register(ctx context.Context, req UserRequest) (StatusResult, error) {
	a.logger.Debugw("Received user request data", "function", "register", "userId", req.UserID)

	if verr := validateRequest(req); verr != nil {
		a.logger.Debug(verr.Message)
		return StatusResult{}, verr
	}

	err := a.store.CreateUser(ctx, req.UserID)
	if err != nil {
		if errors.Is(err, storage.ErrUserExists) {
			return StatusResult{Status: StatusAlreadyExists}, nil
		}
		a.logger.Errorf("Error registering: %v", err)
		return StatusResult{}, unknown("An error occurred while registering", err)
	}

	return StatusResult{Status: StatusRegistered}, nil
}

// Login marks existing user as logged in
func (a *Accounts) Login(ctx context.Context, req UserRequest) (StatusResult, error) {
	return a.setLoggedIn(ctx, req, true)
}

// Logout marks existing user as logged out
func (a *Accounts) Logout(ctx context.Context, req UserRequest) (StatusResult, error) {
	return a.setLoggedIn(ctx, req, false)
}

func (a *Accounts) setLoggedIn(ctx context.Context, req UserRequest, loggedIn bool) (StatusResult, error) {
	function, action, done := "login", "logging in", StatusLoggedIn
	if !loggedIn {
		function, action, done = "logout", "logging out", StatusLoggedOut
	}

	a.logger.Debugw("Received user request data", "function", function, "userId", req.UserID)

	if verr := validateRequest(req); verr != nil {
		a.logger.Debug(verr.Message)
		return StatusResult{}, verr
	}

	err := a.store.SetLoggedIn(ctx, req.UserID, loggedIn)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotExist) {
			return StatusResult{Status: StatusNotExist}, nil
		}
		a.logger.Errorf("Error %s: %v", action, err)
		return StatusResult{}, unknown("An error occurred while "+action, err)
	}

	return StatusResult{Status: done}, nil
}

// RenameUserID moves the user document to a new key keeping its login state.
// The new document is written before the old one is deleted, so a retry after a partial
// failure completes the move. An existing document under the new key is overwritten.
func (a *Accounts) RenameUserID(ctx context.Context, req RenameRequest) (StatusResult, error) {
	a.logger.Debugw("Received user request data", "function", "renameUserId",
		"oldUserId", req.OldUserID, "newUserId", req.NewUserID)

	if verr := validateRequest(req); verr != nil {
		a.logger.Debug(verr.Message)
		return StatusResult{}, verr
	}

	err := a.store.RenameUser(ctx, req.OldUserID, req.NewUserID)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotExist) {
			return StatusResult{Status: StatusNotExist}, nil
		}
		a.logger.Errorf("Error updating user: %v", err)
		return StatusResult{}, unknown("An error occurred while updating user", err)
	}

	return StatusResult{Status: StatusUpdated}, nil
}
