// Package credstore keeps the per-session credential contexts handed to the
// messaging protocol client while a device is being linked.
//
// A credential context is a small set of named blobs (keys, registration
// state, identity) owned by exactly one linking session. The protocol client
// mutates it through the SaveFunc returned by OpenOrCreate, and the session
// discards it on close.
//
// Backends:
//   - MemoryStore   : in-process map, the default for single-instance runs and tests
//   - FileStore     : one directory per session, one file per entry
//   - RedisStore    : one hash per session with a sliding TTL
//   - PostgresStore : one row per entry in walink.credentials
package credstore
