// Package materialize defers the construction of expensive per-entity
// objects until the owner loop is idle, while still allowing immediate,
// synchronous construction on demand.
//
// Each registered entity key is in exactly one of two states: Delayed,
// holding the pending future for the not-yet-built object, or
// Materialized, holding the built object. Register stores a Delayed state
// and schedules a low-priority build on the owner loop after a short
// delay; Get short-circuits the schedule and builds synchronously;
// Unregister cancels a Delayed entity outright, so its object is never
// built at all.
//
// All Manager methods must be called on the owner loop; the manager
// performs no locking of its own.
package materialize
