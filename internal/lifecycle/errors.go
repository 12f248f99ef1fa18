package lifecycle

import (
	"errors"
	"fmt"
)

// Kind classifies lifecycle errors for callers (HTTP status mapping, retries).
type Kind string

const (
	KindNotFound      Kind = "not_found"
	KindInvalidState  Kind = "invalid_state"
	KindNotAuthorized Kind = "not_authorized"
	KindValidation    Kind = "validation"
	KindStorage       Kind = "storage"
)

// Error is a classified lifecycle error. Sentinels below are compared with errors.Is.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Msg + ": " + e.Err.Error()
	}
	return e.Msg
}

func (e *Error) Unwrap() error { return e.Err }

var (
	ErrAssetNotFound    = &Error{Kind: KindNotFound, Msg: "asset not found"}
	ErrUserNotFound     = &Error{Kind: KindNotFound, Msg: "user not found"}
	ErrIssueNotFound    = &Error{Kind: KindNotFound, Msg: "issue not found"}
	ErrRequestNotFound  = &Error{Kind: KindNotFound, Msg: "request not found"}
	ErrCategoryNotFound = &Error{Kind: KindNotFound, Msg: "category not found"}

	ErrAlreadyAssigned     = &Error{Kind: KindInvalidState, Msg: "asset already assigned"}
	ErrAssetInactive       = &Error{Kind: KindInvalidState, Msg: "asset is inactive"}
	ErrNotAssigned         = &Error{Kind: KindInvalidState, Msg: "asset is not assigned"}
	ErrActiveMaintenance   = &Error{Kind: KindInvalidState, Msg: "asset already has active maintenance"}
	ErrNoActiveMaintenance = &Error{Kind: KindInvalidState, Msg: "asset has no active maintenance"}
	ErrDuplicateReturn     = &Error{Kind: KindInvalidState, Msg: "return already requested for this asset"}
	ErrInvalidTransition   = &Error{Kind: KindInvalidState, Msg: "operation not allowed in current asset state"}
	ErrNotDeleted          = &Error{Kind: KindInvalidState, Msg: "asset is not deactivated"}
	ErrIssueState          = &Error{Kind: KindInvalidState, Msg: "issue is not in the required state"}
	ErrRequestProcessed    = &Error{Kind: KindInvalidState, Msg: "request already processed"}
	ErrCategoryMismatch    = &Error{Kind: KindInvalidState, Msg: "asset category does not match request"}
	ErrCategoryInUse       = &Error{Kind: KindInvalidState, Msg: "category is used by assets"}
	ErrCategoryExists      = &Error{Kind: KindInvalidState, Msg: "category already exists"}

	ErrNotHolder = &Error{Kind: KindNotAuthorized, Msg: "you are not assigned to this asset"}

	// ErrConditionFailed is returned by a Store when a conditional write matched
	// no row: the asset left the expected state between the read and the write.
	ErrConditionFailed = &Error{Kind: KindInvalidState, Msg: "asset state changed concurrently"}
)

// ValidationError reports a malformed or missing input field.
func ValidationError(field, problem string) error {
	return &Error{Kind: KindValidation, Msg: fmt.Sprintf("%s: %s", field, problem)}
}

// StorageError wraps a failure from the persistence layer.
func StorageError(op string, err error) error {
	return &Error{Kind: KindStorage, Msg: op, Err: err}
}

// KindOf returns the classification of err, or KindStorage for unclassified errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindStorage
}

// classify passes through classified errors and wraps anything else as storage.
func classify(op string, err error) error {
	var e *Error
	if errors.As(err, &e) {
		return err
	}
	return StorageError(op, err)
}
