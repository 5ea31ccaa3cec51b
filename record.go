package redislog

import (
	"log/slog"
	"strings"
	"time"
)

// Record is one log event, as seen by the encoders. It is built once per log
// call and must be treated as read-only.
//
// The optional attributes use their zero values to mean "absent": an empty
// ModulePath or File, and a Line of 0.
type Record struct {
	Level      Level
	Message    string
	ModulePath string
	Target     string
	File       string
	Line       int

	// Time is the time the record was created. It is not part of the default
	// encodings.
	Time time.Time

	// Attrs holds the structured attributes attached to the record, with any
	// groups already applied. It is not part of the default encodings.
	Attrs []slog.Attr
}

// modulePath extracts the package path from a fully qualified function name,
// as reported by runtime.Frame.Function, e.g.
//
//	github.com/acme/app/internal/store.(*DB).Get -> github.com/acme/app/internal/store
func modulePath(function string) string {
	if function == "" {
		return ""
	}
	slash := strings.LastIndexByte(function, '/')
	dot := strings.IndexByte(function[slash+1:], '.')
	if dot < 0 {
		return function
	}
	return function[:slash+1+dot]
}
