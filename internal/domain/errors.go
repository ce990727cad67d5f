package domain

import "errors"

// Domain-specific errors used throughout the application.
var (
	// ErrPrinterExists is returned when registering a printer whose id
	// is already present in the fleet.
	ErrPrinterExists = errors.New("printer already registered")

	// ErrPrinterNotFound is returned when operating on an unknown printer id.
	ErrPrinterNotFound = errors.New("printer not found")

	// ErrPrinterIDRequired is returned when a printer config has no id.
	ErrPrinterIDRequired = errors.New("printer id is required")

	// ErrHostRequired is returned when a printer config has no host.
	ErrHostRequired = errors.New("printer host is required")

	// ErrSerialRequired is returned when a Bambu printer config has no serial.
	ErrSerialRequired = errors.New("printer serial is required")

	// ErrAccessCodeRequired is returned when a LAN-mode Bambu printer
	// config has no access code.
	ErrAccessCodeRequired = errors.New("printer access code is required")

	// ErrCredentials indicates the cloud bearer token is missing a
	// usable username claim. Not retried automatically: new credentials
	// are required.
	ErrCredentials = errors.New("invalid cloud credentials")

	// ErrUnsupportedVendor is returned when no protocol client exists
	// for the configured vendor family.
	ErrUnsupportedVendor = errors.New("unsupported printer vendor")

	// ErrSupervisorStopped is returned when registering a printer on a
	// supervisor whose merge loop has already exited.
	ErrSupervisorStopped = errors.New("supervisor stopped")
)
