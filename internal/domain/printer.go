// Package domain contains the core business entities and interfaces.
// These are protocol-agnostic and represent the vendor-neutral concepts
// shared by the supervisor and the per-vendor protocol clients.
package domain

import "time"

// DeviceID uniquely identifies one printer across the fleet. It is the
// key for every per-device structure.
type DeviceID string

// Vendor identifies the protocol family a printer speaks.
type Vendor string

const (
	VendorBambu   Vendor = "bambu"
	VendorKlipper Vendor = "klipper"
)

// ConnectionState describes the lifecycle of one printer connection.
// Transitions are reported by the protocol client as WorkerMsg events,
// never polled.
type ConnectionState string

const (
	ConnConnecting   ConnectionState = "connecting"
	ConnConnected    ConnectionState = "connected"
	ConnReconnecting ConnectionState = "reconnecting"
	ConnDisconnected ConnectionState = "disconnected"
)

// TrustPolicy names the TLS certificate validation strategy for a
// connection. Insecure is a deliberate choice for LAN-scoped hosts
// whose firmware presents a self-signed certificate; it must always be
// passed explicitly, never defaulted.
type TrustPolicy string

const (
	// TrustSystemRoots validates the server certificate against the
	// system trust store. Used for cloud brokers.
	TrustSystemRoots TrustPolicy = "system-roots"

	// TrustInsecure disables certificate validation. Only valid for
	// LAN-scoped hosts.
	TrustInsecure TrustPolicy = "insecure"
)

// PrinterConfig describes one printer in the fleet. Vendor selects the
// protocol family; the remaining fields are interpreted per family.
type PrinterConfig struct {
	// ID is the unique identifier for this printer
	ID DeviceID `json:"id" yaml:"id"`

	// Name is a human-readable name for the printer
	Name string `json:"name" yaml:"name"`

	// Vendor selects the protocol family
	Vendor Vendor `json:"vendor" yaml:"vendor"`

	// Host is the printer's address. For Bambu LAN mode this is the
	// local IP; in cloud mode it is ignored in favour of the cloud broker.
	Host string `json:"host,omitempty" yaml:"host,omitempty"`

	// Serial is the Bambu device serial, used to derive topic names
	Serial string `json:"serial,omitempty" yaml:"serial,omitempty"`

	// AccessCode is the per-device LAN access code (Bambu LAN mode)
	AccessCode string `json:"access_code,omitempty" yaml:"access_code,omitempty"`

	// Cloud selects Bambu cloud mode; requires a fleet-wide bearer token
	Cloud bool `json:"cloud,omitempty" yaml:"cloud,omitempty"`

	// Timeout is the per-operation protocol timeout
	Timeout time.Duration `json:"timeout,omitempty" yaml:"timeout,omitempty"`
}

// Validate performs validation on the printer configuration.
func (c *PrinterConfig) Validate() error {
	if c.ID == "" {
		return ErrPrinterIDRequired
	}
	switch c.Vendor {
	case VendorBambu:
		if c.Serial == "" {
			return ErrSerialRequired
		}
		if !c.Cloud {
			if c.Host == "" {
				return ErrHostRequired
			}
			if c.AccessCode == "" {
				return ErrAccessCodeRequired
			}
		}
	case VendorKlipper:
		if c.Host == "" {
			return ErrHostRequired
		}
	default:
		return ErrUnsupportedVendor
	}
	return nil
}
