package mgo

import (
	"hash"
	"time"

	"github.com/coreward/mgo/bson"
)

// Credential holds the username/password/auth-database triple parsed from a
// connection URI.
type Credential struct {
	Username string
	Password string
	Source   string
}

// Session is a client handle: it owns the replica list, the connection
// pool, and the mutable read-preference/write-concern state a copy may
// diverge on. Session, Database and Collection form the same borrow graph
// as upstream mgo: Collection holds a Database, Database holds a Session,
// and the Session refcounts the pool it owns.
type Session struct {
	pool       *pool
	dbName     string
	mode       Mode
	safe       *Safe
	credential *Credential
	owner      bool // only the owning Session's Close tears down the pool
}

// Database is a cheap {name, session} handle.
type Database struct {
	session *Session
	name    string
}

// Collection is a cheap {database, name} handle.
type Collection struct {
	db   *Database
	name string
}

// FullName returns the "<db>.<collection>" namespace string used on the
// wire as OP_QUERY's fullCollectionName.
func (c *Collection) FullName() string { return c.db.name + "." + c.name }

// Query represents a pending find, accumulating filter/sort/projection/
// skip/limit state until Iter, One, or All materializes it into wire
// traffic.
type Query struct {
	coll       *Collection
	filter     bson.M
	projection bson.M
	sort       bson.D
	skip       int32
	limit      int32
	flags      uint32
	maxTimeMS  int64
}

// Iter is a server-side cursor handle. It buffers one reply batch at a
// time and calls refresh to fetch the next one.
type Iter struct {
	coll      *Collection
	filter    bson.M
	fields    bson.M
	sort      bson.D
	flags     uint32
	skip      int32
	limit     int32
	batchSize int32
	maxTimeMS int64

	cursorID  int64
	delivered int32
	closed    bool
	tailable  bool

	buf []bson.M
	err error

	sock *socket // non-nil only while a caller pinned it across Next calls
}

// Pipe represents an aggregation pipeline awaiting execution.
type Pipe struct {
	coll      *Collection
	pipeline  interface{}
	allowDisk bool
	batchSize int32
	maxTimeMS int64
}

// bulkOpKind distinguishes the three write-command shapes a Bulk batches.
type bulkOpKind int

const (
	bulkInsert bulkOpKind = iota
	bulkUpdate
	bulkDelete
)

type bulkOp struct {
	kind     bulkOpKind
	doc      interface{} // insert
	selector interface{} // update/delete
	update   interface{} // update
	multi    bool
	upsert   bool
}

// Bulk batches write operations and flushes them as legacy write commands
// (insert/update/delete over $cmd) rather than individual round trips.
type Bulk struct {
	coll    *Collection
	ordered bool
	ops     []bulkOp
}

// GridFS is a handle to a {prefix}.files / {prefix}.chunks collection pair.
type GridFS struct {
	Files  *Collection
	Chunks *Collection
	prefix string
}

// GridFile represents one file stored in (or being written to) a GridFS.
type GridFile struct {
	gfs         *GridFS
	id          interface{}
	name        string
	contentType string
	chunkSize   int
	length      int64
	uploadDate  time.Time
	metadata    interface{}

	writing bool
	closed  bool
	md5sum  string // hex digest, computed on Close
	buf     []byte
	chunk   int
	hasher  hash.Hash
}
