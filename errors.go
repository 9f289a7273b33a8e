package sessiontx

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNilEntity            = errors.New("sessiontx: nil entity not allowed")
	ErrTxClosed             = errors.New("sessiontx: transaction is not open")
	ErrUnsupportedOperation = errors.New("sessiontx: unsupported merged operation")
)

// KeyError is a failed cluster write for one key.
type KeyError struct {
	Key string
	Op  Operation
	Err error
}

func (e *KeyError) Error() string {
	return fmt.Sprintf("%s %q: %v", e.Op, e.Key, e.Err)
}

func (e *KeyError) Unwrap() error { return e.Err }

// CommitError reports the keys whose writes failed during a commit. Every
// other key in the same commit was written (or abandoned after conflicts)
// independently.
type CommitError struct {
	TxID     string
	Failures []*KeyError
}

func (e *CommitError) Error() string {
	switch len(e.Failures) {
	case 0:
		return fmt.Sprintf("commit %s: unknown error", e.TxID)
	case 1:
		return fmt.Sprintf("commit %s: %v", e.TxID, e.Failures[0])
	default:
		msgs := make([]string, 0, len(e.Failures))
		for _, f := range e.Failures {
			msgs = append(msgs, f.Error())
		}
		return fmt.Sprintf("commit %s: %d key writes failed: %s", e.TxID, len(e.Failures), strings.Join(msgs, "; "))
	}
}

func (e *CommitError) Unwrap() []error {
	errs := make([]error, 0, len(e.Failures))
	for _, f := range e.Failures {
		errs = append(errs, f)
	}
	return errs
}
