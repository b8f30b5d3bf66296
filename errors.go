package daybreak

import "errors"

// ErrClosedDatabase is returned by every error-returning Database method
// except Close once Close has been called (spec §7 *ClosedDatabase*).
var ErrClosedDatabase = errors.New("daybreak: database is closed")
