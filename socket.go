package mgo

import (
	"crypto/tls"
	"encoding/binary"
	"io"
	"net"
	"time"
)

// socket is one TCP (optionally TLS) connection to a single replica. It is
// always owned by exactly one pool worker goroutine; callers never touch
// the net.Conn directly.
type socket struct {
	conn       net.Conn
	replica    Replica
	compressor Compressor
	authed     bool
}

func dialSocket(r Replica, tlsCfg *TLSConfig, timeout time.Duration) (*socket, error) {
	dialer := &net.Dialer{Timeout: timeout}
	var conn net.Conn
	var err error
	if r.TLS {
		cfg, cerr := tlsCfg.clientConfig()
		if cerr != nil {
			return nil, &ConfigError{Msg: "building TLS config: " + cerr.Error()}
		}
		conn, err = tls.DialWithDialer(dialer, "tcp", r.Addr(), cfg)
	} else {
		conn, err = dialer.Dial("tcp", r.Addr())
	}
	if err != nil {
		return nil, &CommunicationError{Op: "connect", Err: err}
	}
	return &socket{conn: conn, replica: r}, nil
}

// send writes one fully framed wire message (optionally OP_COMPRESSED
// wrapped) to the socket.
func (s *socket) send(msg []byte) error {
	wrapped, err := wrapCompressed(msg, s.compressor)
	if err != nil {
		return &CommunicationError{Op: "compress", Err: err}
	}
	if _, err := s.conn.Write(wrapped); err != nil {
		return &CommunicationError{Op: "send", Err: err}
	}
	return nil
}

// recv reads exactly one wire message: a 4-byte length prefix followed by
// length-4 bytes of body, using io.ReadFull throughout so a short read
// cannot silently truncate the message.
func (s *socket) recv() (msgHeader, []byte, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(s.conn, lenBuf[:]); err != nil {
		return msgHeader{}, nil, &CommunicationError{Op: "recv header length", Err: err}
	}
	totalLen := int32(binary.LittleEndian.Uint32(lenBuf[:]))
	if totalLen < 16 {
		return msgHeader{}, nil, &ProtocolError{Msg: "message length smaller than header"}
	}
	rest := make([]byte, totalLen-4)
	if _, err := io.ReadFull(s.conn, rest); err != nil {
		return msgHeader{}, nil, &CommunicationError{Op: "recv body", Err: err}
	}

	full := append(lenBuf[:], rest...)
	header := decodeHeader(full[:16])
	body := full[16:]

	if header.OpCode == opCompressed {
		originalOpcode, payload, err := unwrapCompressed(body)
		if err != nil {
			return msgHeader{}, nil, err
		}
		header.OpCode = originalOpcode
		body = payload
	}
	return header, body, nil
}

func (s *socket) close() error {
	return s.conn.Close()
}

// roundTrip sends msg and blocks for exactly one reply whose responseTo
// matches msg's requestID, returning the parsed OP_REPLY. This is the
// synchronous primitive the pool worker loop drives, and that a pinned
// tailable-cursor socket also calls directly, bypassing the pool.
func (s *socket) roundTrip(requestID int32, msg []byte) (*replyMessage, error) {
	if err := s.send(msg); err != nil {
		return nil, err
	}
	header, body, err := s.recv()
	if err != nil {
		return nil, err
	}
	if header.OpCode != opReply {
		return nil, &ProtocolError{Msg: "expected OP_REPLY"}
	}
	if header.ResponseTo != requestID {
		return nil, &ProtocolError{Msg: "reply responseTo does not match request id"}
	}
	return parseReply(body)
}
