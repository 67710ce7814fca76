package mgo

import "github.com/coreward/mgo/bson"

// Copy returns a new Session with its own copy of the mode/safety settings,
// sharing the same underlying pool. Closing the copy does not tear down the
// pool; only the owning Session's Close does.
func (s *Session) Copy() *Session {
	safe := *s.safe
	cp := *s
	cp.safe = &safe
	cp.owner = false
	return &cp
}

// Clone is an alias for Copy, kept for API parity with the classic driver.
func (s *Session) Clone() *Session {
	return s.Copy()
}

// Close releases the Session. Only the session that owns the pool (the one
// returned by Dial) actually tears it down; copies are no-ops.
func (s *Session) Close() {
	if s.owner && s.pool != nil {
		s.pool.close()
	}
}

// SetMode sets the read preference mode for operations issued through this
// Session. refresh is accepted for API compatibility and ignored, since this
// client does not track per-connection monotonic read state.
func (s *Session) SetMode(mode Mode, refresh bool) {
	s.mode = mode
}

// Mode returns the Session's current read preference mode.
func (s *Session) Mode() Mode {
	return s.mode
}

// SetSafe sets the write concern applied to subsequent writes.
func (s *Session) SetSafe(safe *Safe) {
	if safe == nil {
		safe = &Safe{}
	}
	s.safe = safe
}

// Safe returns the Session's current write concern.
func (s *Session) Safe() *Safe {
	return s.safe
}

// DB returns a handle for the named database. An empty name reuses the
// Session's default database (the one named in the dial URI, or "test").
func (s *Session) DB(name string) *Database {
	if name == "" {
		name = s.dbName
	}
	return &Database{session: s, name: name}
}

// Ping round-trips a cheap command to confirm the replica set is reachable.
func (s *Session) Ping() error {
	_, err := s.Run(bson.D{{Name: "ping", Value: 1}}, nil)
	return err
}

// BuildInfo runs the buildInfo command against the admin database.
func (s *Session) BuildInfo() (BuildInfo, error) {
	var info BuildInfo
	status, err := s.Run(bson.D{{Name: "buildInfo", Value: 1}}, nil)
	if err != nil {
		return info, err
	}
	if err := decodeReplyInto(status.Raw, &info); err != nil {
		return info, err
	}
	return info, nil
}

// Run executes an administrative command against the admin database,
// returning the command facade's uniform StatusReply alongside the error.
func (s *Session) Run(cmd interface{}, result interface{}) (StatusReply, error) {
	return s.DB("admin").Run(cmd, result)
}
