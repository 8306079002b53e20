package service

import (
	"errors"
	"fmt"
)

// ErrNothingToExport is returned by export operations when the store is
// empty. It is a user-visible condition, not a failure; nothing is written.
var ErrNothingToExport = errors.New("no contacts to export")

// ErrNoStorage is returned by Backup and Restore when no export storage is configured.
var ErrNoStorage = errors.New("export storage not configured")

// ImportError reports a vCard stream that could not be parsed, or a store
// failure partway through an import. Contacts added before the failure stay
// persisted; Added counts them.
type ImportError struct {
	Added int
	Err   error
}

func (e *ImportError) Error() string {
	return fmt.Sprintf("import vcf: %v (%d added before failure)", e.Err, e.Added)
}

func (e *ImportError) Unwrap() error { return e.Err }

// ExportError reports a failure writing exported vCard data to its destination.
type ExportError struct {
	Err error
}

func (e *ExportError) Error() string {
	return fmt.Sprintf("export vcf: %v", e.Err)
}

func (e *ExportError) Unwrap() error { return e.Err }
