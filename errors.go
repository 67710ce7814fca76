package mgo

import "fmt"

// CommunicationError reports a transport failure: a socket that refused to
// connect, a short read, or a worker that observed the peer hang up.
type CommunicationError struct {
	Op  string
	Err error
}

func (e *CommunicationError) Error() string {
	if e.Err == nil {
		return "mgo: communication error during " + e.Op
	}
	return fmt.Sprintf("mgo: communication error during %s: %v", e.Op, e.Err)
}

func (e *CommunicationError) Unwrap() error { return e.Err }

// ProtocolError reports a malformed reply or a SCRAM signature mismatch:
// something the peer sent that cannot be a legal wire-protocol message.
type ProtocolError struct {
	Msg string
}

func (e *ProtocolError) Error() string { return "mgo: protocol error: " + e.Msg }

// ConfigError reports a bad connection URI, an unsupported scheme, or TLS
// requested without the corresponding configuration present.
type ConfigError struct {
	Msg string
}

func (e *ConfigError) Error() string { return "mgo: config error: " + e.Msg }

// AuthError reports that the server rejected a set of credentials, or that
// a SCRAM/MONGODB-CR exchange could not proceed.
type AuthError struct {
	Msg string
}

func (e *AuthError) Error() string { return "mgo: auth error: " + e.Msg }

// OperationTimeoutError reports that a query failed server-side with error
// code 50 after its $maxTimeMS deadline fired.
type OperationTimeoutError struct {
	Msg string
}

func (e *OperationTimeoutError) Error() string { return "mgo: operation timeout: " + e.Msg }

// InvalidStateError reports misuse of a stateful handle: double-releasing a
// pool slot, or issuing a request against a cursor that is already closed.
type InvalidStateError struct {
	Msg string
}

func (e *InvalidStateError) Error() string { return "mgo: invalid state: " + e.Msg }
