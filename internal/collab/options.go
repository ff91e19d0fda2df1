package collab

import (
	"time"

	"github.com/dimitrije/querydraft/internal/config"
)

// Options bounds every session the Manager creates. Zero fields take the
// defaults.
type Options struct {
	Capacity         int
	EditLogSize      int
	ConflictWindow   time.Duration
	ConflictDistance int
	MailboxSize      int
}

func DefaultOptions() Options {
	return Options{
		Capacity:         config.MaxSessionCapacity,
		EditLogSize:      1000,
		ConflictWindow:   5 * time.Second,
		ConflictDistance: 10,
		MailboxSize:      64,
	}
}

func OptionsFromConfig(cfg config.CollabConfig) Options {
	return Options{
		Capacity:         cfg.SessionCapacity,
		EditLogSize:      cfg.EditLogCapacity,
		ConflictWindow:   cfg.ConflictWindow,
		ConflictDistance: cfg.ConflictDistance,
		MailboxSize:      cfg.MailboxSize,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.Capacity <= 0 || o.Capacity > config.MaxSessionCapacity {
		o.Capacity = d.Capacity
	}
	if o.EditLogSize <= 0 {
		o.EditLogSize = d.EditLogSize
	}
	if o.ConflictWindow <= 0 {
		o.ConflictWindow = d.ConflictWindow
	}
	if o.ConflictDistance <= 0 {
		o.ConflictDistance = d.ConflictDistance
	}
	if o.MailboxSize <= 0 {
		o.MailboxSize = d.MailboxSize
	}
	return o
}

// Clock supplies edit timestamps and the conflict window's notion of now.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }
