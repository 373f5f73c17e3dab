// Package linking owns the lifecycle of ephemeral device-linking sessions.
//
// A Session is one linking attempt: an isolated credential context plus a
// connected protocol client, driven by a flow to a single milestone (a
// pairing code or a QR image) and torn down after a bounded window whether
// or not the user finishes linking on their phone.
//
// Layers & Roles
//
//	Manager      -> creates sessions, closes them exactly once, arms deadline timers
//	Registry     -> process-wide ledger of live sessions (insert on create, remove on close)
//	PairingFlow  -> readiness, registration check, pairing-code request
//	QRFlow       -> first-QR-wins listener over the connection update stream
//
// State machine:
//
//	Initializing -> AwaitingMilestone -> MilestoneIssued -> Closed
//	Initializing | AwaitingMilestone -> Closed   (failure or deadline)
//
// Delivery of a milestone is guarded by a single compare-and-swap on the
// session; Close is idempotent, so a deadline firing concurrently with a
// late event never releases resources twice.
package linking
