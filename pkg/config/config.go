// Package config holds the engine's tunables as plain structs with
// constructor-assigned defaults, matching tradSys's convention of
// hand-rolled Config structs rather than a reflection-based loader.
package config

import "github.com/merl-labs/clob/pkg/types"

// EngineConfig governs one market account's runtime behavior.
type EngineConfig struct {
	// InitialBidsCapacity/InitialAsksCapacity/InitialSeatsCapacity are not
	// read by CreateMarket or any other code: the dynamic region's size is
	// the length of the buffer the caller passes to CreateMarket.
	InitialBidsCapacity  uint32
	InitialAsksCapacity  uint32
	InitialSeatsCapacity uint32

	// MaxOrdersWalkedPerMatch bounds how many resting orders PlaceOrder will
	// cross in a single call before giving up and resting the remainder,
	// keeping a single instruction's compute bounded regardless of book
	// depth. Zero means unbounded.
	MaxOrdersWalkedPerMatch uint32

	// MinReverseSpreadBps is the smallest spread a Reverse order may carry:
	// BatchUpdate rejects a Reverse order below it as invalid input, so at
	// the default of 1 a zero spread is rejected. It is only a validation
	// floor, never substituted for the order's own spread.
	MinReverseSpreadBps uint16
}

// DefaultEngineConfig returns the engine's out-of-the-box tuning.
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		InitialBidsCapacity:     64,
		InitialAsksCapacity:     64,
		InitialSeatsCapacity:    32,
		MaxOrdersWalkedPerMatch: 0,
		MinReverseSpreadBps:     1,
	}
}

// GlobalConfig governs one global cross-market account.
type GlobalConfig struct {
	// MaxTraders bounds seat membership; defaults to the protocol maximum
	// but may be narrowed (never widened) by a deployment.
	MaxTraders uint32

	// EvictionGraceSlots is not read by internal/global: AddTrader and
	// EvictMinimum evict the minimum-balance member however recently it
	// joined.
	EvictionGraceSlots types.Slot
}

// DefaultGlobalConfig returns the global account's out-of-the-box tuning.
func DefaultGlobalConfig() GlobalConfig {
	return GlobalConfig{
		MaxTraders:         types.MaxGlobalTraders,
		EvictionGraceSlots: 0,
	}
}
