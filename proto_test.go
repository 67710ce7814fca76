package mgo

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/coreward/mgo/bson"
)

func TestBuildOpQueryRoundTrip(t *testing.T) {
	msg, err := buildOpQuery(7, "test.coll", flagSlaveOk, 5, 100, bson.M{"a": 1}, bson.M{"b": 1})
	if err != nil {
		t.Fatalf("buildOpQuery: %v", err)
	}

	h := decodeHeader(msg[:16])
	if h.OpCode != opQuery {
		t.Fatalf("opcode = %d, want %d", h.OpCode, opQuery)
	}
	if h.RequestID != 7 {
		t.Fatalf("requestID = %d, want 7", h.RequestID)
	}
	if int(h.MessageLength) != len(msg) {
		t.Fatalf("messageLength = %d, want %d", h.MessageLength, len(msg))
	}
}

func TestBuildOpGetMoreFraming(t *testing.T) {
	msg := buildOpGetMore(3, "test.coll", 50, 123456789)
	h := decodeHeader(msg[:16])
	if h.OpCode != opGetMore {
		t.Fatalf("opcode = %d, want %d", h.OpCode, opGetMore)
	}
	if int(h.MessageLength) != len(msg) {
		t.Fatalf("messageLength = %d, want %d", h.MessageLength, len(msg))
	}
}

func TestParseReplyRoundTrip(t *testing.T) {
	doc1, _ := bson.Marshal(bson.M{"a": 1})
	doc2, _ := bson.Marshal(bson.M{"b": "two"})

	body := make([]byte, 0, 20+len(doc1)+len(doc2))
	body = appendInt32(body, 0)
	body = appendInt64(body, 42)
	body = appendInt32(body, 0)
	body = appendInt32(body, 2)
	body = append(body, doc1...)
	body = append(body, doc2...)

	reply, err := parseReply(body)
	if err != nil {
		t.Fatalf("parseReply: %v", err)
	}
	if reply.CursorID != 42 {
		t.Fatalf("cursorID = %d, want 42", reply.CursorID)
	}
	if len(reply.Documents) != 2 {
		t.Fatalf("len(Documents) = %d, want 2", len(reply.Documents))
	}
	want := []bson.M{{"a": int32(1)}, {"b": "two"}}
	for i := range want {
		if diff := cmp.Diff(want[i], reply.Documents[i]); diff != "" {
			t.Fatalf("document %d mismatch (-want +got):\n%s", i, diff)
		}
	}
}

func TestParseReplyForcesCursorZeroOnNotFound(t *testing.T) {
	body := make([]byte, 0, 20)
	body = appendInt32(body, replyCursorNotFound)
	body = appendInt64(body, 99)
	body = appendInt32(body, 0)
	body = appendInt32(body, 0)

	reply, err := parseReply(body)
	if err != nil {
		t.Fatalf("parseReply: %v", err)
	}
	if reply.CursorID != 0 {
		t.Fatalf("cursorID = %d, want 0 when CursorNotFound is set", reply.CursorID)
	}
}

func TestNextRequestIDWrapsBeforeOverflow(t *testing.T) {
	requestIDCounter = maxRequestID - 1
	first := nextRequestID()
	second := nextRequestID()
	if first != maxRequestID {
		t.Fatalf("first = %d, want %d", first, maxRequestID)
	}
	if second != 1 {
		t.Fatalf("second = %d, want 1 after wraparound", second)
	}
}

func appendInt32(b []byte, v int32) []byte {
	return append(b, byte(v), byte(v>>8), byte(v>>16), byte(v>>24))
}

func appendInt64(b []byte, v int64) []byte {
	return append(b, byte(v), byte(v>>8), byte(v>>16), byte(v>>24), byte(v>>32), byte(v>>40), byte(v>>48), byte(v>>56))
}
