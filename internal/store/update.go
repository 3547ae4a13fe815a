package store

import (
	"strings"
	"time"
)

// FieldOp is what an Update does to one field.
type FieldOp int

const (
	OpKeep FieldOp = iota
	OpClear
	OpSet
)

// Field is a tagged per-field update. The zero value keeps the current value.
type Field[T any] struct {
	op    FieldOp
	value T
}

// Keep leaves the field unchanged.
func Keep[T any]() Field[T] { return Field[T]{} }

// Clear removes the field's value.
func Clear[T any]() Field[T] { return Field[T]{op: OpClear} }

// Set replaces the field's value.
func Set[T any](v T) Field[T] { return Field[T]{op: OpSet, value: v} }

// Op returns the operation carried by the field.
func (f Field[T]) Op() FieldOp { return f.op }

// Value returns the value of a Set field.
func (f Field[T]) Value() (T, bool) { return f.value, f.op == OpSet }

// Apply returns the new value of a field currently holding cur.
func (f Field[T]) Apply(cur *T) *T {
	switch f.op {
	case OpClear:
		return nil
	case OpSet:
		v := f.value
		return &v
	default:
		return cur
	}
}

// SetOrKeep maps an optional input to Set when present and Keep otherwise.
func SetOrKeep[T any](v *T) Field[T] {
	if v == nil {
		return Keep[T]()
	}
	return Set(*v)
}

// Update lists the changes to apply to a record.
type Update struct {
	Username    Field[string]
	DisplayName Field[string]
	Birthday    Field[time.Time]
	PhotoID     Field[string]
}

// IsZero reports whether the update keeps every field.
func (u Update) IsZero() bool {
	return u.Username.op == OpKeep && u.DisplayName.op == OpKeep &&
		u.Birthday.op == OpKeep && u.PhotoID.op == OpKeep
}

// Apply returns r with u applied. Blank strings clear the field; birthdays
// are truncated to the calendar date.
func (u Update) Apply(r Record) Record {
	r.Username = blankToNil(u.Username.Apply(r.Username))
	r.DisplayName = blankToNil(u.DisplayName.Apply(r.DisplayName))
	r.PhotoID = blankToNil(u.PhotoID.Apply(r.PhotoID))
	if b := u.Birthday.Apply(r.Birthday); b != nil {
		d := time.Date(b.Year(), b.Month(), b.Day(), 0, 0, 0, 0, time.UTC)
		r.Birthday = &d
	} else {
		r.Birthday = nil
	}
	return r
}

func blankToNil(s *string) *string {
	if s == nil || strings.TrimSpace(*s) == "" {
		return nil
	}
	v := strings.TrimSpace(*s)
	return &v
}
