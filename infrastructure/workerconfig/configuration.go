// Package workerconfig reads the per-session facts the parent process
// establishes before handing a connection to the worker (spec §1):
// assigned addressing, DPD/keepalive/rekey policy, the inherited file
// descriptors, and the TLS material for the reliable channel. Grounded
// on the teacher's own JSON configuration reader
// (infrastructure/PAL/configuration/server/{reader,configuration}.go):
// a plain struct with json tags, a defaulting pass, read from a path
// given on the command line.
package workerconfig

import (
	"encoding/json"
	"fmt"
	"os"
)

// Configuration is the worker's entire view of the world: it owns no
// tun/socket provisioning logic of its own (spec §1), only the facts
// and descriptors handed down by the parent.
type Configuration struct {
	// IsServer selects the X25519/HKDF key-exchange and cipher roles
	// (spec §4.4; grounded on the teacher's client/server role split).
	IsServer bool `json:"IsServer"`

	// ConnFD is the already-accepted, not-yet-TLS-wrapped TCP socket.
	ConnFD int `json:"ConnFD"`
	// ControlFD is the parent control socket (spec §6).
	ControlFD int `json:"ControlFD"`
	// TunFD is the pre-provisioned tunnel device descriptor.
	TunFD int `json:"TunFD"`

	TLSCertPath string `json:"TLSCertPath"`
	TLSKeyPath  string `json:"TLSKeyPath"`

	ClientIPv4     string `json:"ClientIPv4"`
	ClientIPv4Mask string `json:"ClientIPv4Mask"`
	ClientIPv6     string `json:"ClientIPv6"`
	ClientIPv6Prefix int  `json:"ClientIPv6Prefix"`

	DNS           []string `json:"DNS"`
	SplitInclude  []string `json:"SplitInclude"`

	BaseMTU int `json:"BaseMTU"`

	DPDSeconds            int `json:"DPDSeconds"`
	KeepaliveSeconds      int `json:"KeepaliveSeconds"`
	CookieValiditySeconds int `json:"CookieValiditySeconds"`

	TXRateLimitBytesPerSec float64 `json:"TXRateLimitBytesPerSec"`
	RXRateLimitBytesPerSec float64 `json:"RXRateLimitBytesPerSec"`
}

// NewDefaultConfiguration fills in the fallbacks a worker needs to
// run even if the parent omits optional fields, mirroring the
// teacher's NewDefaultConfiguration/EnsureDefaults split.
func NewDefaultConfiguration() *Configuration {
	return (&Configuration{
		BaseMTU:                1500,
		DPDSeconds:             30,
		KeepaliveSeconds:       20,
		CookieValiditySeconds:  10800,
		TXRateLimitBytesPerSec: 125_000_000, // 1 Gbit/s
		RXRateLimitBytesPerSec: 125_000_000,
	}).EnsureDefaults()
}

// EnsureDefaults fills any zero-valued optional field left unset by
// the parent's JSON document.
func (c *Configuration) EnsureDefaults() *Configuration {
	if c.BaseMTU == 0 {
		c.BaseMTU = 1500
	}
	if c.DPDSeconds == 0 {
		c.DPDSeconds = 30
	}
	if c.KeepaliveSeconds == 0 {
		c.KeepaliveSeconds = 20
	}
	if c.CookieValiditySeconds == 0 {
		c.CookieValiditySeconds = 10800
	}
	if c.TXRateLimitBytesPerSec == 0 {
		c.TXRateLimitBytesPerSec = 125_000_000
	}
	if c.RXRateLimitBytesPerSec == 0 {
		c.RXRateLimitBytesPerSec = 125_000_000
	}
	return c
}

// Read loads and validates the configuration document at path.
func Read(path string) (*Configuration, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("workerconfig: configuration file does not exist: %s", path)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("workerconfig: configuration file (%s) is unreadable: %w", path, err)
	}

	cfg := NewDefaultConfiguration()
	if err := json.Unmarshal(raw, cfg); err != nil {
		return nil, fmt.Errorf("workerconfig: configuration file (%s) is invalid: %w", path, err)
	}
	cfg.EnsureDefaults()

	if cfg.ConnFD == 0 && cfg.ControlFD == 0 {
		return nil, fmt.Errorf("workerconfig: configuration file (%s) names no inherited descriptors", path)
	}
	return cfg, nil
}
