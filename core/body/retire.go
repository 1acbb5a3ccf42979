package body

import (
	"log/slog"
	"reflect"
	"sync"

	"github.com/dmitrymomot/relay/core/logger"
)

// Coordinator retires sources that are no longer the active body.
//
// Retiring a stream source first attaches an observer that absorbs its
// terminal failure and only then cancels it, so a failure caused by the
// cancellation (or already pending) never reaches the unhandled hook.
type Coordinator struct {
	mu      sync.Mutex
	retired map[Source]struct{}

	onRelease func(Source)
	logger    *slog.Logger
	tel       *telemetry
}

// NewCoordinator creates a coordinator. onRelease, if set, is called once per
// released source instance, inert ones included; only stream sources are
// cancelled.
func NewCoordinator(onRelease func(Source), l *slog.Logger) *Coordinator {
	if l == nil {
		l = slog.Default()
	}
	return &Coordinator{
		retired:   make(map[Source]struct{}),
		onRelease: onRelease,
		logger:    l,
		tel:       newTelemetry(nil, nil),
	}
}

// Retire releases src. It returns false if src is nil or was already retired.
func (c *Coordinator) Retire(src Source) bool {
	if src == nil {
		return false
	}

	if reflect.TypeOf(src).Comparable() {
		c.mu.Lock()
		if _, done := c.retired[src]; done {
			c.mu.Unlock()
			return false
		}
		c.retired[src] = struct{}{}
		c.mu.Unlock()
	}

	if c.onRelease != nil {
		c.onRelease(src)
	}
	c.tel.retire(src.Kind())

	if src.Inert() {
		return true
	}

	src.Observe(func(err error) {
		c.absorb(src, err)
	})
	src.Cancel()
	return true
}

// Retired reports whether src went through Retire.
func (c *Coordinator) Retired(src Source) bool {
	if src == nil || !reflect.TypeOf(src).Comparable() {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.retired[src]
	return ok
}

func (c *Coordinator) absorb(src Source, err error) {
	c.tel.absorb()
	c.logger.Debug("absorbed failure of retired body source",
		logger.Component("body"),
		logger.Kind(src.Kind().String()),
		logger.Error(err),
	)
}
