package linking

import "errors"

var (
	// ErrInvalidInput is returned when a request is missing required input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrProvisioning is returned when a session cannot be created: credential
	// context, protocol version lookup or client construction failed.
	ErrProvisioning = errors.New("session provisioning failed")

	// ErrAlreadyRegistered is returned when the credential context already belongs to a linked device.
	ErrAlreadyRegistered = errors.New("already registered")

	// ErrConnectionFailed is returned for any failure of the pairing-code protocol.
	ErrConnectionFailed = errors.New("connection failed")

	// ErrQRGenerationFailed is returned when no QR payload could be produced.
	ErrQRGenerationFailed = errors.New("qr generation failed")

	// ErrSessionClosed is returned when a session was closed (usually by its deadline)
	// before its flow could deliver.
	ErrSessionClosed = errors.New("session closed")

	// ErrUpdatesClosed is returned when the connection update stream ends without a QR payload.
	ErrUpdatesClosed = errors.New("connection updates closed")

	// ErrNotReady is returned when the client did not signal readiness in time.
	ErrNotReady = errors.New("client not ready")

	// ErrConfig is returned for invalid configuration.
	ErrConfig = errors.New("invalid config")
)
