package mgo

import "github.com/coreward/mgo/bson"

// runCommand is the shared command-execution primitive: acquire a pool slot,
// send cmd as an OP_QUERY against db.$cmd, release the slot, and return the
// raw reply document. Every higher-level operation (insert/update/delete,
// index management, isMaster, ping, ...) goes through this.
func runCommand(s *Session, db string, cmd interface{}, result interface{}) (bson.M, error) {
	slot, err := s.pool.acquire()
	if err != nil {
		return nil, err
	}
	defer func() { _ = s.pool.release(slot) }()

	reqID := nextRequestID()
	msg, err := buildOpQuery(reqID, db+".$cmd", 0, 0, -1, cmd, nil)
	if err != nil {
		return nil, err
	}

	reply, err := s.pool.sendRecv(slot, msg)
	if err != nil {
		return nil, err
	}
	if reply == nil || len(reply.Documents) == 0 {
		return nil, &ProtocolError{Msg: "empty command reply"}
	}
	doc := reply.Documents[0]

	if !replyOK(doc) {
		if code, ok := doc["code"].(int32); ok {
			return doc, &QueryError{Code: int(code), Message: replyErrMsg(doc)}
		}
		return doc, &QueryError{Message: replyErrMsg(doc)}
	}

	if result != nil {
		if err := decodeReplyInto(doc, result); err != nil {
			return doc, err
		}
	}
	return doc, nil
}

// StatusReply is the uniform result every command-facade call (listDatabases,
// listCollections, create, drop, renameCollection, count, distinct, insert,
// update, delete, findAndModify, createUser, dropUser, getLastError,
// isMaster, collStats, and any other command run through Run) hands back:
// whether the server reported ok, the concatenated error message when it
// didn't, the raw reply document, and, for insert, the ids assigned to
// documents that arrived without one.
type StatusReply struct {
	Ok          bool
	Err         string
	Raw         bson.M
	InsertedIds []interface{}
}

// newStatusReply derives a StatusReply from a command's raw reply and the
// error runCommand produced for it.
func newStatusReply(raw bson.M, err error) StatusReply {
	reply := StatusReply{Raw: raw}
	if err != nil {
		reply.Err = err.Error()
		return reply
	}
	reply.Ok = true
	return reply
}

// decodeReplyInto round-trips a command reply through BSON encoding to
// populate an arbitrary struct pointer, reusing the same struct-tag codec
// used for collection documents rather than hand-writing a second decoder.
func decodeReplyInto(doc bson.M, out interface{}) error {
	raw, err := bson.Marshal(doc)
	if err != nil {
		return err
	}
	return bson.Unmarshal(raw, out)
}

// writeCommandReply captures the common shape of insert/update/delete
// command replies.
type writeCommandReply struct {
	N          int                       `bson:"n"`
	WriteErrs  []writeError              `bson:"writeErrors,omitempty"`
	Upserted   []writeCommandUpsertEntry `bson:"upserted,omitempty"`
	NModified  int                       `bson:"nModified,omitempty"`
}

type writeCommandUpsertEntry struct {
	Index int         `bson:"index"`
	Id    interface{} `bson:"_id"`
}

type writeError struct {
	Index int    `bson:"index"`
	Code  int    `bson:"code"`
	Errmsg string `bson:"errmsg"`
}

func (w writeError) toBulkCase() BulkErrorCase {
	return BulkErrorCase{Index: w.Index, Err: &QueryError{Code: w.Code, Message: w.Errmsg}}
}
