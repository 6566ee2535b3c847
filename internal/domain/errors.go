package domain

import "fmt"

// FetchError reports an unreachable or malformed upstream response for one
// sensor. The sensor is skipped for the run; others are unaffected.
type FetchError struct {
	Sensor string
	Err    error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s: %v", e.Sensor, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// StoreError reports a write or transaction failure against one sensor's
// table. The reconciliation that produced it was rolled back.
type StoreError struct {
	Sensor string
	Table  string
	Op     string
	Err    error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store %s (%s, table %s): %v", e.Op, e.Sensor, e.Table, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

// GuardError reports a failed area-of-interest wipe or state write. A run
// must not proceed past it: a partial wipe leaves the tables unreconcilable.
type GuardError struct {
	Op  string
	Err error
}

func (e *GuardError) Error() string {
	return fmt.Sprintf("area guard %s: %v", e.Op, e.Err)
}

func (e *GuardError) Unwrap() error { return e.Err }

// MatchInputError reports a detection whose date/time could not be parsed
// into a timestamp. The row is excluded from matching and counted; it never
// aborts the validation pass.
type MatchInputError struct {
	Sensor string
	Key    NaturalKey
	Err    error
}

func (e *MatchInputError) Error() string {
	return fmt.Sprintf("match input %s (%s): %v", e.Sensor, e.Key, e.Err)
}

func (e *MatchInputError) Unwrap() error { return e.Err }
