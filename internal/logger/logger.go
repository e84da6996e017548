// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package logger wires logiface to a zerolog backend.
//
// Loggers are always used through the generic *logiface.Logger[logiface.Event]
// form. A nil logger is valid and drops everything.
package logger

import (
	"errors"
	"io"
	"strings"
	"time"

	"github.com/joeycumines/logiface"
	"github.com/rs/zerolog"
)

// Logger is the structured logger type used across the module.
type Logger = logiface.Logger[logiface.Event]

// Event adapts a zerolog event to logiface.
type Event struct {
	logiface.UnimplementedEvent
	z   *zerolog.Event
	lvl logiface.Level
	msg string
}

var _ logiface.Event = (*Event)(nil)

func (x *Event) Level() logiface.Level {
	if x != nil {
		return x.lvl
	}
	return logiface.LevelDisabled
}

func (x *Event) AddField(key string, val any) { x.z.Interface(key, val) }

func (x *Event) AddMessage(msg string) bool {
	x.msg = msg
	return true
}

func (x *Event) AddError(err error) bool {
	x.z.Err(err)
	return true
}

func (x *Event) AddString(key, val string) bool {
	x.z.Str(key, val)
	return true
}

func (x *Event) AddInt(key string, val int) bool {
	x.z.Int(key, val)
	return true
}

func (x *Event) AddInt64(key string, val int64) bool {
	x.z.Int64(key, val)
	return true
}

func (x *Event) AddUint64(key string, val uint64) bool {
	x.z.Uint64(key, val)
	return true
}

func (x *Event) AddBool(key string, val bool) bool {
	x.z.Bool(key, val)
	return true
}

func (x *Event) AddDuration(key string, val time.Duration) bool {
	x.z.Dur(key, val)
	return true
}

type backend struct {
	z zerolog.Logger
}

func (b *backend) NewEvent(level logiface.Level) *Event {
	if !level.Enabled() {
		return nil
	}
	e := &Event{lvl: level}
	switch level {
	case logiface.LevelTrace:
		e.z = b.z.Trace()
	case logiface.LevelDebug:
		e.z = b.z.Debug()
	case logiface.LevelInformational:
		e.z = b.z.Info()
	case logiface.LevelNotice, logiface.LevelWarning:
		e.z = b.z.Warn()
	case logiface.LevelError:
		e.z = b.z.Error()
	default:
		// crit and above: WithLevel never exits or panics
		e.z = b.z.WithLevel(zerolog.FatalLevel)
	}
	return e
}

func (b *backend) Write(e *Event) error {
	e.z.Msg(e.msg)
	return nil
}

// New returns a logger writing JSON lines to w at or above level.
func New(w io.Writer, level logiface.Level) *Logger {
	b := &backend{z: zerolog.New(w).With().Timestamp().Logger()}
	return logiface.New[*Event](
		logiface.WithEventFactory[*Event](b),
		logiface.WithWriter[*Event](b),
		logiface.WithLevel[*Event](level),
	).Logger()
}

// Nop returns a logger that drops everything.
func Nop() *Logger {
	return nil
}

// ErrUnknownLevel is returned by ParseLevel.
var ErrUnknownLevel = errors.New("logger: unknown level")

// ParseLevel maps a syslog keyword ("err", "warning", "info", ...) to a
// level. "disabled" and "" disable logging.
func ParseLevel(s string) (logiface.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "disabled", "off":
		return logiface.LevelDisabled, nil
	case "emerg":
		return logiface.LevelEmergency, nil
	case "alert":
		return logiface.LevelAlert, nil
	case "crit":
		return logiface.LevelCritical, nil
	case "err", "error":
		return logiface.LevelError, nil
	case "warning", "warn":
		return logiface.LevelWarning, nil
	case "notice":
		return logiface.LevelNotice, nil
	case "info":
		return logiface.LevelInformational, nil
	case "debug":
		return logiface.LevelDebug, nil
	case "trace":
		return logiface.LevelTrace, nil
	}
	return logiface.LevelDisabled, ErrUnknownLevel
}
