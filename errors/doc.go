// Package errors provides the structured error taxonomy used across the
// dashboard service.
//
// # Error Categories
//
//   - Transient: the store or device may come back (feed lost, controller offline)
//   - Permanent: retrying the same input will not help (bad payload, bad config)
//   - Internal: bugs or corrupted state
//
// # Usage
//
//	err := errors.New(errors.ErrCodeControllerOffline, "controller offline",
//	    errors.WithComponent("reboot"))
//
//	if errors.Is(err, errors.ErrCodeControllerOffline) {
//	    // surface as 503
//	}
//
// Errors marshal to JSON so the HTTP layer can return them verbatim.
package errors
