// Package checker runs authorization checks against required selections and
// combines their verdicts.
package checker

import "fmt"

// ResultContext describes the field whose resolution a result is being
// applied to.
type ResultContext struct {
	TypeName  string
	FieldName string
}

// Result is the verdict of a check. The only implementations are Success and
// *Error.
type Result interface {
	isResult()
}

type success struct{}

func (success) isResult()      {}
func (success) String() string { return "Success" }

// Success is the result of a check that passed.
var Success Result = success{}

// Error is the result of a check that failed.
type Error struct {
	Err error
	// ForResolver reports whether the error applies to the resolver in ctx.
	// A nil ForResolver never applies.
	ForResolver func(ctx ResultContext) bool
}

func (*Error) isResult() {}

func (e *Error) Error() string { return e.Err.Error() }

func (e *Error) Unwrap() error { return e.Err }

// IsErrorForResolver reports whether the error should fail the resolver in ctx.
func (e *Error) IsErrorForResolver(ctx ResultContext) bool {
	return e.ForResolver != nil && e.ForResolver(ctx)
}

// Deny returns an *Error that applies to every resolver.
func Deny(err error) *Error {
	return &Error{Err: err, ForResolver: func(ResultContext) bool { return true }}
}

// Denyf is Deny with a formatted message.
func Denyf(format string, args ...any) *Error {
	return Deny(fmt.Errorf(format, args...))
}

// AsError returns r as an *Error, or nil for Success.
func AsError(r Result) *Error {
	switch r := r.(type) {
	case *Error:
		return r
	case success:
		return nil
	case nil:
		return nil
	default:
		panic(fmt.Sprintf("checker: unknown result %T", r))
	}
}

// Combine returns other when it is an *Error and self otherwise. It is not
// commutative: folding left to right keeps the last error seen.
func Combine(self, other Result) Result {
	switch other.(type) {
	case *Error:
		return other
	case success, nil:
		if self == nil {
			return Success
		}
		return self
	default:
		panic(fmt.Sprintf("checker: unknown result %T", other))
	}
}

// Fold combines results from left to right, starting from Success.
func Fold(results ...Result) Result {
	acc := Success
	for _, r := range results {
		acc = Combine(acc, r)
	}
	return acc
}
