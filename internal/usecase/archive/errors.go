// Package archive provides read-side use cases over the harvested corpus:
// paginated summary listings, recent item listings and corpus statistics.
package archive

import "errors"

// Sentinel errors for archive use case operations.
var (
	// ErrInvalidKind indicates an item kind outside video/web.
	ErrInvalidKind = errors.New("invalid article kind")

	// ErrInvalidRunID indicates a non-positive run ID.
	ErrInvalidRunID = errors.New("invalid run ID")

	// ErrRunNotFound indicates that the requested run does not exist.
	ErrRunNotFound = errors.New("run not found")

	// ErrRunActive indicates a prune request for a run that has not
	// reached a terminal state.
	ErrRunActive = errors.New("run is still active")

	// ErrMaintenanceDisabled indicates the service was built without a
	// maintenance connection, so prune operations are unavailable.
	ErrMaintenanceDisabled = errors.New("maintenance database not configured")
)
