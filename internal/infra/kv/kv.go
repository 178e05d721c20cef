// Package kv provides the key-value backends that persist engine state.
// Each backend stores opaque JSON documents and writes batches atomically.
package kv

import (
	"fmt"

	"github.com/boddenberg/pj-liquidity-engine/internal/port"
)

// Supported drivers.
const (
	DriverBolt   = "bolt"
	DriverSQLite = "sqlite"
	DriverMemory = "memory"
)

// Open returns the store for the configured driver.
func Open(driver, path string) (port.KVStore, error) {
	switch driver {
	case DriverBolt, "":
		s, err := OpenBolt(path)
		if err != nil {
			return nil, err
		}
		return s, nil
	case DriverSQLite:
		s, err := OpenSQLite(path)
		if err != nil {
			return nil, err
		}
		return s, nil
	case DriverMemory:
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", driver)
	}
}
