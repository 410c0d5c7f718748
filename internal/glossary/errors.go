// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package glossary

import (
	"errors"
	"fmt"
)

var (
	// ErrDuplicateTerm matches any DuplicateTermError via errors.Is.
	ErrDuplicateTerm = errors.New("duplicate term")

	// ErrTermNotFound indicates a remove or lookup named a term the domain lacks.
	ErrTermNotFound = errors.New("term not found")

	// ErrInvalidEntry indicates an entry is missing a required field.
	ErrInvalidEntry = errors.New("invalid entry")

	// ErrSerialization matches any SerializationError via errors.Is.
	ErrSerialization = errors.New("malformed glossary file")
)

// DuplicateTermError reports an add whose normalized source term already
// exists in the domain.
type DuplicateTermError struct {
	Domain     string
	SourceTerm string

	// Existing is the stored source term the new one collides with. It can
	// differ from SourceTerm in case or number.
	Existing string
}

func (e *DuplicateTermError) Error() string {
	if e.Existing != "" && e.Existing != e.SourceTerm {
		return fmt.Sprintf("duplicate term %q in domain %q (collides with %q)", e.SourceTerm, e.Domain, e.Existing)
	}
	return fmt.Sprintf("duplicate term %q in domain %q", e.SourceTerm, e.Domain)
}

// Is makes errors.Is(err, ErrDuplicateTerm) succeed.
func (e *DuplicateTermError) Is(target error) bool { return target == ErrDuplicateTerm }

// SerializationError reports the first malformed row or field in a glossary
// file. Decoding aborts at this point; nothing is loaded.
type SerializationError struct {
	Format Format
	Path   string

	// Row is the 1-based record number (the CSV header is row 1). Zero
	// means the file could not be parsed at all.
	Row int

	// Field names the offending column, empty when the whole row is bad.
	Field string

	Err error
}

func (e *SerializationError) Error() string {
	loc := string(e.Format)
	if e.Path != "" {
		loc = e.Path
	}
	switch {
	case e.Row > 0 && e.Field != "":
		return fmt.Sprintf("%s: row %d, field %q: %v", loc, e.Row, e.Field, e.Err)
	case e.Row > 0:
		return fmt.Sprintf("%s: row %d: %v", loc, e.Row, e.Err)
	default:
		return fmt.Sprintf("%s: %v", loc, e.Err)
	}
}

func (e *SerializationError) Unwrap() error { return e.Err }

// Is makes errors.Is(err, ErrSerialization) succeed.
func (e *SerializationError) Is(target error) bool { return target == ErrSerialization }
