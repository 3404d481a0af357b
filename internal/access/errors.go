package access

import (
	"errors"
	"fmt"
)

var (
	// ErrMissingClientID is returned when id is empty. The HTTP layer is
	// expected to catch this before calling Access, but the service
	// enforces it too.
	ErrMissingClientID = errors.New("missing client id")

	// ErrCapacityExhausted means no free port and no recyclable record.
	// Always wrapped via capacityExhaustedError so the message reports
	// max_slots; errors.Is still matches the bare sentinel.
	ErrCapacityExhausted = errors.New("capacity exhausted")

	// ErrCreationFailed means the runtime refused to create the container.
	ErrCreationFailed = errors.New("container creation failed")
)

// capacityExhaustedError reports the configured slot count alongside the
// sentinel so callers see why the 503 happened, not just that it did.
func capacityExhaustedError(maxSlots int) error {
	return fmt.Errorf("%w: max_slots=%d", ErrCapacityExhausted, maxSlots)
}
