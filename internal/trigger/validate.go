package trigger

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Validation failures. A ValidationError wraps one of these per problem so
// callers can test with errors.Is.
var (
	ErrEmptyID          = errors.New("trigger id is empty")
	ErrDuplicateID      = errors.New("duplicate trigger id")
	ErrEmptyPattern     = errors.New("trigger pattern is empty")
	ErrInvalidPattern   = errors.New("trigger pattern contains whitespace or control characters")
	ErrDuplicatePattern = errors.New("duplicate trigger pattern")
	ErrPrefixCollision  = errors.New("trigger pattern is a prefix of another")
	ErrUnknownKind      = errors.New("unknown trigger kind")
)

// Problem is a single validation failure.
type Problem struct {
	ID      string
	Pattern string
	Other   string
	Err     error
}

func (p Problem) String() string {
	if p.Other != "" {
		return fmt.Sprintf("%s (%q vs %q)", p.Err, p.Pattern, p.Other)
	}
	if p.Pattern != "" {
		return fmt.Sprintf("%s (%s: %q)", p.Err, p.ID, p.Pattern)
	}
	return fmt.Sprintf("%s (%s)", p.Err, p.ID)
}

// ValidationError collects every problem found in a trigger set.
type ValidationError struct {
	Problems []Problem
}

func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Problems))
	for i, p := range e.Problems {
		parts[i] = p.String()
	}
	return "invalid triggers: " + strings.Join(parts, "; ")
}

// Unwrap exposes the individual sentinel errors.
func (e *ValidationError) Unwrap() []error {
	errs := make([]error, len(e.Problems))
	for i, p := range e.Problems {
		errs[i] = p.Err
	}
	return errs
}

// Validate checks a trigger set. IDs must be unique across the whole set;
// enabled patterns must be non-empty, unique and prefix-free so that a match
// is never ambiguous. Disabled triggers are only checked for identity.
func Validate(defs []Definition) error {
	var problems []Problem

	ids := make(map[string]bool, len(defs))
	for _, d := range defs {
		if d.ID == "" {
			problems = append(problems, Problem{Pattern: d.Pattern, Err: ErrEmptyID})
		} else if ids[d.ID] {
			problems = append(problems, Problem{ID: d.ID, Err: ErrDuplicateID})
		}
		ids[d.ID] = true

		switch d.Kind {
		case KindNote, KindTask, KindTimer:
		default:
			problems = append(problems, Problem{ID: d.ID, Pattern: d.Pattern, Err: ErrUnknownKind})
		}
	}

	enabled := Enabled(defs)
	sort.SliceStable(enabled, func(i, j int) bool {
		return enabled[i].Pattern < enabled[j].Pattern
	})

	for _, d := range enabled {
		if d.Pattern == "" {
			problems = append(problems, Problem{ID: d.ID, Err: ErrEmptyPattern})
			continue
		}
		if !validPattern(d.Pattern) {
			problems = append(problems, Problem{ID: d.ID, Pattern: d.Pattern, Err: ErrInvalidPattern})
		}
	}

	for i := 0; i < len(enabled); i++ {
		a := enabled[i]
		if a.Pattern == "" {
			continue
		}
		for j := i + 1; j < len(enabled); j++ {
			b := enabled[j]
			if b.Pattern == "" {
				continue
			}
			switch {
			case a.Pattern == b.Pattern:
				problems = append(problems, Problem{ID: b.ID, Pattern: b.Pattern, Other: a.Pattern, Err: ErrDuplicatePattern})
			case strings.HasPrefix(b.Pattern, a.Pattern):
				problems = append(problems, Problem{ID: a.ID, Pattern: a.Pattern, Other: b.Pattern, Err: ErrPrefixCollision})
			case strings.HasPrefix(a.Pattern, b.Pattern):
				problems = append(problems, Problem{ID: b.ID, Pattern: b.Pattern, Other: a.Pattern, Err: ErrPrefixCollision})
			}
		}
	}

	if len(problems) == 0 {
		return nil
	}
	return &ValidationError{Problems: problems}
}

func validPattern(p string) bool {
	if !utf8.ValidString(p) {
		return false
	}
	for _, r := range p {
		if unicode.IsSpace(r) || unicode.IsControl(r) {
			return false
		}
	}
	return true
}
