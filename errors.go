package alm

import (
	"errors"
	"fmt"
)

// ParseError reports a malformed or missing feed extract. It is fatal for
// the whole run: financial state is never partially applied.
type ParseError struct {
	File string // extract name, when known
	Line int    // 1-based line in the extract, 0 when not line-scoped
	Err  error
}

func (e *ParseError) Error() string {
	switch {
	case e.File != "" && e.Line > 0:
		return fmt.Sprintf("parse %s:%d: %v", e.File, e.Line, e.Err)
	case e.File != "":
		return fmt.Sprintf("parse %s: %v", e.File, e.Err)
	default:
		return fmt.Sprintf("parse: %v", e.Err)
	}
}

func (e *ParseError) Unwrap() error { return e.Err }

// ErrMissingPriorDayNav is returned when a day has neither a prior closing
// NAV nor an externally reported opening value. It fails only that day's
// aggregation, other days proceed.
var ErrMissingPriorDayNav = errors.New("no prior closing NAV and no reported opening value")
