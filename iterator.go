package mgo

import "github.com/coreward/mgo/bson"

// queryDoc wraps a filter into the legacy {$query, $orderby, $maxTimeMS}
// envelope OP_QUERY expects.
func queryDoc(filter bson.M, sort bson.D, maxTimeMS int64) bson.M {
	doc := bson.M{"$query": filter}
	if len(sort) > 0 {
		doc["$orderby"] = sort
	}
	if maxTimeMS > 0 {
		doc["$maxTimeMS"] = maxTimeMS
	}
	return doc
}

// numberToReturn computes the numberToReturn field for the next OP_QUERY or
// OP_GET_MORE: limit==0 requests a full batch, limit<0 is a single
// hard-capped batch, otherwise the remaining-to-deliver count clamped by
// batchSize.
func (it *Iter) numberToReturn() int32 {
	switch {
	case it.limit == 0:
		return it.batchSize
	case it.limit < 0:
		return it.limit
	default:
		remaining := it.limit - it.delivered
		if remaining <= 0 {
			return 0
		}
		if it.batchSize > 0 && remaining > it.batchSize {
			return it.batchSize
		}
		return remaining
	}
}

// refresh fetches the next batch of documents: OP_QUERY when there is no
// live server cursor yet, OP_GET_MORE afterward, preserving the cursor id
// across empty batches while tailing.
func (it *Iter) refresh() ([]bson.M, error) {
	if it.closed {
		return nil, &CommunicationError{Op: "refresh", Err: errCursorClosed}
	}

	numberToReturn := it.numberToReturn()
	if numberToReturn == 0 && it.limit > 0 {
		it.closed = true
		return nil, nil
	}

	session := it.coll.db.session
	reqID := nextRequestID()

	var msg []byte
	var err error
	if it.cursorID == 0 {
		q := queryDoc(it.filter, it.sort, it.maxTimeMS)
		fields := interface{}(it.fields)
		if len(it.fields) == 0 {
			fields = nil
		}
		msg, err = buildOpQuery(reqID, it.coll.FullName(), it.flags, it.skip, numberToReturn, q, fields)
	} else {
		msg = buildOpGetMore(reqID, it.coll.FullName(), numberToReturn, it.cursorID)
	}
	if err != nil {
		return nil, err
	}

	var reply *replyMessage
	if it.sock != nil {
		reply, err = it.sock.roundTrip(reqID, msg)
	} else {
		slot, aerr := session.pool.acquire()
		if aerr != nil {
			return nil, aerr
		}
		reply, err = session.pool.sendRecv(slot, msg)
		_ = session.pool.release(slot)
	}
	if err != nil {
		it.closed = true
		return nil, err
	}

	if reply.CursorID == 0 || !it.tailable {
		it.cursorID = reply.CursorID
		if reply.CursorID == 0 {
			it.closed = true
		}
	}

	it.delivered += int32(len(reply.Documents))
	for _, doc := range reply.Documents {
		if errVal, ok := doc["$err"]; ok {
			if code, _ := doc["code"].(int32); code == 50 {
				return nil, &OperationTimeoutError{Msg: formatErrVal(errVal)}
			}
		}
	}

	if len(reply.Documents) == 0 && numberToReturn == 1 {
		return nil, ErrNotFound
	}
	return reply.Documents, nil
}

func formatErrVal(v interface{}) string {
	if s, ok := v.(string); ok {
		return s
	}
	return "server error"
}

// Next advances the cursor and decodes the next document into result.
// It returns false when the cursor is exhausted; callers should check Err
// afterward to distinguish "done" from "failed".
func (it *Iter) Next(result interface{}) bool {
	if len(it.buf) == 0 {
		if it.closed && it.cursorID == 0 {
			return false
		}
		docs, err := it.refresh()
		if err != nil {
			if err != ErrNotFound {
				it.err = err
			}
			return false
		}
		it.buf = docs
		if len(it.buf) == 0 {
			// Either exhausted (closed) or a tailable cursor that came back
			// empty: in both cases yield control to the caller instead of
			// spinning on OP_GET_MORE. A tailable caller decides whether to
			// call Next again.
			return false
		}
	}
	doc := it.buf[0]
	it.buf = it.buf[1:]
	if result != nil {
		if err := decodeReplyInto(doc, result); err != nil {
			it.err = err
			return false
		}
	}
	return true
}

// Err returns the error that stopped iteration, if any.
func (it *Iter) Err() error {
	return it.err
}

// Close marks the cursor closed and issues a best-effort killCursors for
// any live server-side cursor id. Failures to kill are swallowed: the
// server will eventually expire the cursor on its own timeout.
func (it *Iter) Close() error {
	if it.closed && it.cursorID == 0 {
		return nil
	}
	it.closed = true
	if it.cursorID == 0 {
		return nil
	}
	cursorID := it.cursorID
	it.cursorID = 0

	session := it.coll.db.session
	slot, err := session.pool.acquire()
	if err != nil {
		return nil
	}
	defer func() { _ = session.pool.release(slot) }()

	reqID := nextRequestID()
	msg := buildOpKillCursors(reqID, []int64{cursorID})
	slot.writer <- msg
	<-slot.reader
	return nil
}

// All drains the cursor into result, which must be a pointer to a slice.
func (it *Iter) All(result *[]bson.M) error {
	defer it.Close()
	for {
		var doc bson.M
		if !it.Next(&doc) {
			break
		}
		*result = append(*result, doc)
	}
	return it.Err()
}

var errCursorClosed = &InvalidStateError{Msg: "use of closed cursor"}
