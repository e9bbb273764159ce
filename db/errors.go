package db

import (
	"errors"
	"fmt"
)

var (
	ErrAlreadyOpen         = errors.New("transaction already open")
	ErrNoActiveTransaction = errors.New("no active transaction")
	ErrDDLInTransaction    = errors.New("schema changes are not allowed inside a transaction")
	ErrUnknownTable        = errors.New("unknown table")
	ErrUnknownColumn       = errors.New("unknown column")
	ErrReadOnlyTarget      = errors.New("views are read-only")
	ErrRecursiveView       = errors.New("view nesting too deep")
	ErrConstraint          = errors.New("constraint violation")
	ErrArity               = errors.New("column count does not match value count")
	ErrTypeMismatch        = errors.New("type mismatch")
)

type PlanErrorKind int

const (
	UnknownTable PlanErrorKind = iota
	UnknownColumn
	ReadOnlyTarget
	RecursiveView
)

// PlanError reports a statement that refers to something the model does not
// have, or that targets a view with a write.
type PlanError struct {
	Kind   PlanErrorKind
	Table  string
	Column string
}

func (e *PlanError) Error() string {
	switch e.Kind {
	case UnknownColumn:
		return fmt.Sprintf("unknown column %s in %s", e.Column, e.Table)
	case ReadOnlyTarget:
		return fmt.Sprintf("cannot write to view %s", e.Table)
	case RecursiveView:
		return fmt.Sprintf("view %s nests too deeply", e.Table)
	default:
		return fmt.Sprintf("unknown table %s", e.Table)
	}
}

func (e *PlanError) Unwrap() error {
	switch e.Kind {
	case UnknownColumn:
		return ErrUnknownColumn
	case ReadOnlyTarget:
		return ErrReadOnlyTarget
	case RecursiveView:
		return ErrRecursiveView
	default:
		return ErrUnknownTable
	}
}

type ExecErrorKind int

const (
	ArityMismatch ExecErrorKind = iota
	TypeMismatch
	NotNullViolation
	UniqueViolation
	DuplicateObject
	MissingObject
)

// ExecError reports a statement that planned fine but could not be applied.
// The model is unchanged when one is returned.
type ExecError struct {
	Kind    ExecErrorKind
	Table   string
	Column  string
	Message string
}

func (e *ExecError) Error() string {
	return e.Message
}

func (e *ExecError) Unwrap() error {
	switch e.Kind {
	case ArityMismatch:
		return ErrArity
	case TypeMismatch:
		return ErrTypeMismatch
	case NotNullViolation, UniqueViolation:
		return ErrConstraint
	default:
		return nil
	}
}

type TxErrorKind int

const (
	AlreadyOpen TxErrorKind = iota
	NoActiveTransaction
	DDLInTransaction
)

type TxError struct {
	Kind TxErrorKind
}

func (e *TxError) Error() string {
	return e.Unwrap().Error()
}

func (e *TxError) Unwrap() error {
	switch e.Kind {
	case AlreadyOpen:
		return ErrAlreadyOpen
	case DDLInTransaction:
		return ErrDDLInTransaction
	default:
		return ErrNoActiveTransaction
	}
}
