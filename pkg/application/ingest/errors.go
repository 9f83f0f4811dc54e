package ingest

import (
	stderrors "errors"
)

type ErrorKind int

const (
	KindPermanent ErrorKind = iota
	KindTransient
)

func (k ErrorKind) String() string {
	if k == KindTransient {
		return "transient"
	}
	return "permanent"
}

// WriteError carries the store's verdict on whether retrying may help.
type WriteError struct {
	Kind ErrorKind
	Err  error
}

func (e *WriteError) Error() string {
	return e.Kind.String() + " write error: " + e.Err.Error()
}

func (e *WriteError) Unwrap() error {
	return e.Err
}

func Transient(err error) error {
	if err == nil {
		return nil
	}
	return &WriteError{Kind: KindTransient, Err: err}
}

func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &WriteError{Kind: KindPermanent, Err: err}
}

// KindOf treats unclassified errors as permanent.
func KindOf(err error) ErrorKind {
	var writeErr *WriteError
	if stderrors.As(err, &writeErr) {
		return writeErr.Kind
	}
	return KindPermanent
}
