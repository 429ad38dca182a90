// Package trigger defines trigger patterns and recognizes them in the stream
// of characters the user is typing.
package trigger

import (
	"crypto/rand"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
)

// Kind is what a trigger starts once it fires.
type Kind int

const (
	// KindNote captures free text as a note.
	KindNote Kind = iota
	// KindTask captures free text as a task.
	KindTask
	// KindTimer collects an event name and starts a time-tracking session.
	KindTimer
)

// Kinds lists every kind in display order.
var Kinds = []Kind{KindNote, KindTask, KindTimer}

func (k Kind) String() string {
	switch k {
	case KindNote:
		return "note"
	case KindTask:
		return "task"
	case KindTimer:
		return "timer"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// IsTimer reports whether the kind arms a timer instead of a capture.
func (k Kind) IsTimer() bool {
	return k == KindTimer
}

// ParseKind parses the lowercase name of a kind.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "note", "":
		return KindNote, nil
	case "task", "todo":
		return KindTask, nil
	case "timer":
		return KindTimer, nil
	}
	return KindNote, fmt.Errorf("unknown trigger kind %q", s)
}

// MarshalText implements encoding.TextMarshaler.
func (k Kind) MarshalText() ([]byte, error) {
	switch k {
	case KindNote, KindTask, KindTimer:
		return []byte(k.String()), nil
	}
	return nil, fmt.Errorf("unknown trigger kind %d", int(k))
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *Kind) UnmarshalText(b []byte) error {
	parsed, err := ParseKind(string(b))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// Definition is one configured trigger.
type Definition struct {
	ID      string `toml:"id" yaml:"id"`
	Pattern string `toml:"pattern" yaml:"pattern"`
	Kind    Kind   `toml:"kind" yaml:"kind"`
	Enabled bool   `toml:"enabled" yaml:"enabled"`
}

// Hit is produced when a trigger pattern has just been typed.
type Hit struct {
	Definition Definition
	At         time.Time
	// App identifies the foreground application when the platform can tell.
	App string
}

// NewID returns a new sortable trigger identifier.
func NewID() string {
	return ulid.MustNew(ulid.Timestamp(time.Now()), ulid.Monotonic(rand.Reader, 0)).String()
}

// Defaults returns the stock trigger set.
func Defaults() []Definition {
	return []Definition{
		{ID: "01-note", Pattern: "///", Kind: KindNote, Enabled: true},
		{ID: "02-task", Pattern: ",,,", Kind: KindTask, Enabled: true},
		{ID: "03-timer", Pattern: ";;;", Kind: KindTimer, Enabled: true},
	}
}

// Enabled filters defs down to the enabled triggers.
func Enabled(defs []Definition) []Definition {
	out := make([]Definition, 0, len(defs))
	for _, d := range defs {
		if d.Enabled {
			out = append(out, d)
		}
	}
	return out
}
