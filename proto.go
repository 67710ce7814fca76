package mgo

import (
	"encoding/binary"
	"math"
	"sync/atomic"

	"github.com/coreward/mgo/bson"
)

// Wire op-codes, per the legacy MongoDB wire protocol.
const (
	opReply       = 1
	opQuery       = 2004
	opGetMore     = 2005
	opKillCursors = 2007
	// opCompressed wraps any of the above for the OP_COMPRESSED feature
	// negotiated in compress.go.
	opCompressed = 2012
)

// OP_QUERY flag bits.
const (
	flagTailableCursor  = 1 << 1
	flagSlaveOk         = 1 << 2
	flagNoCursorTimeout = 1 << 4
	flagAwaitData       = 1 << 5
	flagExhaust         = 1 << 6
	flagPartial         = 1 << 7
)

// OP_REPLY response-flag bits.
const (
	replyCursorNotFound = 1
	replyQueryFailure   = 1 << 1
)

const maxRequestID = int32(math.MaxInt32) - 1

var requestIDCounter int32

// nextRequestID returns a monotonically increasing request id, wrapping
// modulo INT32_MAX-1. A compare-and-swap loop keeps this safe under
// concurrent acquire from multiple pool workers.
func nextRequestID() int32 {
	for {
		cur := atomic.LoadInt32(&requestIDCounter)
		next := cur + 1
		if next > maxRequestID {
			next = 1
		}
		if atomic.CompareAndSwapInt32(&requestIDCounter, cur, next) {
			return next
		}
	}
}

// msgHeader is the 16-byte header prefixing every wire message.
type msgHeader struct {
	MessageLength int32
	RequestID     int32
	ResponseTo    int32
	OpCode        int32
}

func (h msgHeader) encode(buf []byte) {
	binary.LittleEndian.PutUint32(buf[0:4], uint32(h.MessageLength))
	binary.LittleEndian.PutUint32(buf[4:8], uint32(h.RequestID))
	binary.LittleEndian.PutUint32(buf[8:12], uint32(h.ResponseTo))
	binary.LittleEndian.PutUint32(buf[12:16], uint32(h.OpCode))
}

func decodeHeader(buf []byte) msgHeader {
	return msgHeader{
		MessageLength: int32(binary.LittleEndian.Uint32(buf[0:4])),
		RequestID:     int32(binary.LittleEndian.Uint32(buf[4:8])),
		ResponseTo:    int32(binary.LittleEndian.Uint32(buf[8:12])),
		OpCode:        int32(binary.LittleEndian.Uint32(buf[12:16])),
	}
}

// buildOpQuery frames an OP_QUERY message: header, flags, fullCollectionName
// cstring, numberToSkip, numberToReturn, query document, and an optional
// projection document.
func buildOpQuery(requestID int32, fullCollectionName string, flags uint32, skip, numberToReturn int32, query interface{}, fields interface{}) ([]byte, error) {
	queryBytes, err := bson.Marshal(query)
	if err != nil {
		return nil, err
	}
	var fieldsBytes []byte
	if fields != nil {
		fieldsBytes, err = bson.Marshal(fields)
		if err != nil {
			return nil, err
		}
	}

	body := make([]byte, 0, 20+len(fullCollectionName)+len(queryBytes)+len(fieldsBytes))
	var tmp [4]byte
	binary.LittleEndian.PutUint32(tmp[:], flags)
	body = append(body, tmp[:]...)
	body = append(body, fullCollectionName...)
	body = append(body, 0)
	binary.LittleEndian.PutUint32(tmp[:], uint32(skip))
	body = append(body, tmp[:]...)
	binary.LittleEndian.PutUint32(tmp[:], uint32(numberToReturn))
	body = append(body, tmp[:]...)
	body = append(body, queryBytes...)
	if fieldsBytes != nil {
		body = append(body, fieldsBytes...)
	}

	return frame(requestID, 0, opQuery, body), nil
}

// buildOpGetMore frames an OP_GET_MORE message.
func buildOpGetMore(requestID int32, fullCollectionName string, numberToReturn int32, cursorID int64) []byte {
	body := make([]byte, 0, 16+len(fullCollectionName))
	var tmp4 [4]byte
	binary.LittleEndian.PutUint32(tmp4[:], 0)
	body = append(body, tmp4[:]...)
	body = append(body, fullCollectionName...)
	body = append(body, 0)
	binary.LittleEndian.PutUint32(tmp4[:], uint32(numberToReturn))
	body = append(body, tmp4[:]...)
	var tmp8 [8]byte
	binary.LittleEndian.PutUint64(tmp8[:], uint64(cursorID))
	body = append(body, tmp8[:]...)
	return frame(requestID, 0, opGetMore, body)
}

// buildOpKillCursors frames an OP_KILL_CURSORS message. The server never
// replies to this opcode.
func buildOpKillCursors(requestID int32, cursorIDs []int64) []byte {
	body := make([]byte, 0, 8+8*len(cursorIDs))
	var tmp4 [4]byte
	binary.LittleEndian.PutUint32(tmp4[:], 0)
	body = append(body, tmp4[:]...)
	binary.LittleEndian.PutUint32(tmp4[:], uint32(len(cursorIDs)))
	body = append(body, tmp4[:]...)
	var tmp8 [8]byte
	for _, id := range cursorIDs {
		binary.LittleEndian.PutUint64(tmp8[:], uint64(id))
		body = append(body, tmp8[:]...)
	}
	return frame(requestID, 0, opKillCursors, body)
}

func frame(requestID, responseTo, opCode int32, body []byte) []byte {
	out := make([]byte, 16+len(body))
	h := msgHeader{
		MessageLength: int32(16 + len(body)),
		RequestID:     requestID,
		ResponseTo:    responseTo,
		OpCode:        opCode,
	}
	h.encode(out[:16])
	copy(out[16:], body)
	return out
}

// replyMessage is the parsed body of an OP_REPLY.
type replyMessage struct {
	ResponseFlags int32
	CursorID      int64
	StartingFrom  int32
	NumberReturned int32
	Documents     []bson.M
}

// parseReply decodes an OP_REPLY body (everything after the 16-byte
// header) into a replyMessage.
func parseReply(body []byte) (*replyMessage, error) {
	if len(body) < 20 {
		return nil, &ProtocolError{Msg: "OP_REPLY body shorter than fixed header"}
	}
	r := &replyMessage{
		ResponseFlags:  int32(binary.LittleEndian.Uint32(body[0:4])),
		CursorID:       int64(binary.LittleEndian.Uint64(body[4:12])),
		StartingFrom:   int32(binary.LittleEndian.Uint32(body[12:16])),
		NumberReturned: int32(binary.LittleEndian.Uint32(body[16:20])),
	}
	if r.ResponseFlags&replyCursorNotFound != 0 {
		r.CursorID = 0
	}
	off := 20
	docs := make([]bson.M, 0, r.NumberReturned)
	for off < len(body) {
		if off+4 > len(body) {
			return nil, &ProtocolError{Msg: "truncated document in OP_REPLY"}
		}
		docLen := int(binary.LittleEndian.Uint32(body[off : off+4]))
		if docLen <= 0 || off+docLen > len(body) {
			return nil, &ProtocolError{Msg: "invalid document length in OP_REPLY"}
		}
		var m bson.M
		if err := bson.Unmarshal(body[off:off+docLen], &m); err != nil {
			return nil, &ProtocolError{Msg: "malformed BSON document in OP_REPLY: " + err.Error()}
		}
		docs = append(docs, m)
		off += docLen
	}
	r.Documents = docs
	return r, nil
}
