package mgo

import "github.com/coreward/mgo/bson"

// C returns a handle for the named collection within this database.
func (d *Database) C(name string) *Collection {
	return &Collection{db: d, name: name}
}

// Name returns the database's name.
func (d *Database) Name() string {
	return d.name
}

// DropDatabase drops the entire database.
func (d *Database) DropDatabase() error {
	_, err := d.Run(bson.D{{Name: "dropDatabase", Value: 1}}, nil)
	return err
}

// Run executes cmd against this database's $cmd pseudo-collection and, if
// result is non-nil, decodes the reply document into it, returning the
// command facade's uniform StatusReply alongside the error.
func (d *Database) Run(cmd interface{}, result interface{}) (StatusReply, error) {
	raw, err := runCommand(d.session, d.name, cmd, result)
	return newStatusReply(raw, err), err
}

// GridFS returns a GridFS handle rooted at the given prefix (commonly "fs").
func (d *Database) GridFS(prefix string) *GridFS {
	if prefix == "" {
		prefix = "fs"
	}
	return &GridFS{
		Files:  d.C(prefix + ".files"),
		Chunks: d.C(prefix + ".chunks"),
		prefix: prefix,
	}
}
