package bootstrap

import (
	"fmt"
	"strings"
)

// Violation is a problem with one registration.
type Violation struct {
	Message    string `json:"message"`
	Coordinate string `json:"coordinate,omitempty"`
	File       string `json:"file,omitempty"`
	Line       int    `json:"line,omitempty"`
	Column     int    `json:"column,omitempty"`
}

func (v *Violation) String() string {
	var b strings.Builder
	if v.Coordinate != "" {
		b.WriteString(v.Coordinate + ": ")
	}
	b.WriteString(v.Message)
	if v.Line > 0 {
		fmt.Fprintf(&b, " (%s:%d:%d)", v.File, v.Line, v.Column)
	}
	return b.String()
}

// ValidationError lists every violation found while loading registrations.
type ValidationError []*Violation

func (e ValidationError) Error() string {
	msg := "violations found:\n"
	for _, v := range e {
		msg += "- " + v.String() + "\n"
	}
	return msg
}

func violationAt(file string, r *Registration, format string, args ...any) *Violation {
	return &Violation{
		Message:    fmt.Sprintf(format, args...),
		Coordinate: r.Coordinate,
		File:       file,
		Line:       r.Line,
		Column:     r.Column,
	}
}
