// Package flagset maps kernel bitmask constants to their symbolic names.
//
// A Set is built once from an ordered list of (name, value) pairs and is
// read-only afterwards, so it can be shared freely.
package flagset

import (
	"fmt"
	"iter"
	"strings"
)

type Value interface {
	~uint32 | ~uint64
}

type Flag[T Value] struct {
	Name  string
	Value T
}

func (f Flag[T]) String() string {
	return f.Name
}

type ParseError struct {
	Name  string
	Valid []string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("invalid value: %s, options: %s", e.Name, strings.Join(e.Valid, ", "))
}

type Set[T Value] struct {
	flags  []Flag[T]
	byName map[string]int
}

// New panics on duplicate names: tables are static and a duplicate is a programming error.
func New[T Value](flags ...Flag[T]) *Set[T] {
	s := &Set[T]{
		flags:  make([]Flag[T], 0, len(flags)),
		byName: make(map[string]int, len(flags)),
	}
	for _, f := range flags {
		if _, ok := s.byName[f.Name]; ok {
			panic("flagset: duplicate name " + f.Name)
		}
		s.byName[f.Name] = len(s.flags)
		s.flags = append(s.flags, f)
	}
	return s
}

func (s *Set[T]) Parse(name string) (Flag[T], error) {
	i, ok := s.byName[name]
	if !ok {
		return Flag[T]{}, &ParseError{Name: name, Valid: s.Names()}
	}
	return s.flags[i], nil
}

// ParseList parses a comma-separated list of names and ORs them together.
func (s *Set[T]) ParseList(list string) (T, error) {
	var mask T
	for _, name := range strings.Split(list, ",") {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		f, err := s.Parse(name)
		if err != nil {
			return 0, err
		}
		mask = Combine(mask, f)
	}
	return mask, nil
}

func (s *Set[T]) All() iter.Seq[Flag[T]] {
	return func(yield func(Flag[T]) bool) {
		for _, f := range s.flags {
			if !yield(f) {
				return
			}
		}
	}
}

func (s *Set[T]) Names() []string {
	names := make([]string, len(s.flags))
	for i, f := range s.flags {
		names[i] = f.Name
	}
	return names
}

// Union is the OR of every declared value.
func (s *Set[T]) Union() T {
	var mask T
	for _, f := range s.flags {
		mask |= f.Value
	}
	return mask
}

// Format joins the names of all flags set in mask with '|', in declaration order.
func (s *Set[T]) Format(mask T) string {
	var b strings.Builder
	for _, f := range s.flags {
		if !Test(mask, f) {
			continue
		}
		if b.Len() > 0 {
			b.WriteByte('|')
		}
		b.WriteString(f.Name)
	}
	return b.String()
}

func Test[T Value](mask T, f Flag[T]) bool {
	return mask&f.Value != 0
}

func Combine[T Value](mask T, f Flag[T]) T {
	return mask | f.Value
}
