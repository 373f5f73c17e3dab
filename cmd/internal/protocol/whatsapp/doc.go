// Package whatsapp adapts go.mau.fi/whatsmeow to the linking package.
//
// Each linking session gets its own whatsmeow device and client. The device
// store (sqlite or postgres) holds the protocol keys; the session's
// credential context receives a snapshot of the linked identity whenever the
// client reports one.
package whatsapp
