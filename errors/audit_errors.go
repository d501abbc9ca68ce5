package errors

import "errors"

var (
	// ErrAuditWriteFailed marks the single most important fail-closed rule:
	// an operation whose contract requires an audit record must not report
	// success when this is returned.
	ErrAuditWriteFailed = errors.New("audit write failed")
	ErrAuditChainBroken = errors.New("audit hash chain broken")
)
