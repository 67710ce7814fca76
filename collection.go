package mgo

import "github.com/coreward/mgo/bson"

// Find starts a query against filter, which may be nil to match every
// document.
func (c *Collection) Find(filter interface{}) *Query {
	return &Query{coll: c, filter: toFilterDoc(filter)}
}

// FindId is shorthand for Find(bson.M{"_id": id}).
func (c *Collection) FindId(id interface{}) *Query {
	return c.Find(bson.M{"_id": id})
}

func toFilterDoc(filter interface{}) bson.M {
	if filter == nil {
		return bson.M{}
	}
	switch f := filter.(type) {
	case bson.M:
		return f
	case map[string]interface{}:
		return bson.M(f)
	default:
		m, err := normalizeDoc(filter)
		if err != nil {
			return bson.M{}
		}
		return m
	}
}

// normalizeDoc round-trips an arbitrary document (struct, bson.D, bson.M)
// through the BSON codec to obtain a bson.M view of it, reusing the same
// struct-tag machinery the wire layer already depends on rather than adding
// a second reflection path.
func normalizeDoc(doc interface{}) (bson.M, error) {
	raw, err := bson.Marshal(doc)
	if err != nil {
		return nil, err
	}
	var m bson.M
	if err := bson.Unmarshal(raw, &m); err != nil {
		return nil, err
	}
	return m, nil
}

// ensureDocID returns a normalized bson.M for doc with an _id assigned if
// one isn't already present, and the id value that ended up in the
// document (existing or freshly generated).
func ensureDocID(doc interface{}) (bson.M, interface{}, error) {
	m, err := normalizeDoc(doc)
	if err != nil {
		return nil, nil, err
	}
	if id, ok := m["_id"]; ok && id != nil {
		return m, id, nil
	}
	id := bson.NewObjectId()
	m["_id"] = id
	return m, id, nil
}

// Insert adds one or more documents, assigning an ObjectId _id to any
// document that lacks one.
func (c *Collection) Insert(docs ...interface{}) error {
	_, _, err := c.insert(docs)
	return err
}

// InsertStatus is like Insert but returns the command facade's uniform
// StatusReply, reporting the _id of every document (existing or freshly
// generated) in InsertedIds.
func (c *Collection) InsertStatus(docs ...interface{}) (StatusReply, error) {
	ids, raw, err := c.insert(docs)
	reply := newStatusReply(raw, err)
	reply.InsertedIds = ids
	return reply, err
}

func (c *Collection) insert(docs []interface{}) ([]interface{}, bson.M, error) {
	normalized := make([]bson.M, 0, len(docs))
	ids := make([]interface{}, 0, len(docs))
	for _, d := range docs {
		m, id, err := ensureDocID(d)
		if err != nil {
			return nil, nil, err
		}
		normalized = append(normalized, m)
		ids = append(ids, id)
	}

	cmd := bson.D{
		{Name: "insert", Value: c.name},
		{Name: "documents", Value: normalized},
	}
	var reply writeCommandReply
	raw, err := runCommand(c.db.session, c.db.name, cmd, &reply)
	if err != nil {
		return ids, raw, err
	}
	if len(reply.WriteErrs) > 0 {
		return ids, raw, toBulkError(reply.WriteErrs)
	}
	return ids, raw, nil
}

// Count reports how many documents in the collection match filter.
func (c *Collection) Count(filter interface{}) (int, error) {
	cmd := bson.D{
		{Name: "count", Value: c.name},
		{Name: "query", Value: toFilterDoc(filter)},
	}
	var reply struct {
		N int `bson:"n"`
	}
	if _, err := runCommand(c.db.session, c.db.name, cmd, &reply); err != nil {
		return 0, err
	}
	return reply.N, nil
}

// Remove deletes at most one document matching selector.
func (c *Collection) Remove(selector interface{}) error {
	info, err := c.delete(selector, 1)
	if err != nil {
		return err
	}
	if info.Removed == 0 {
		return ErrNotFound
	}
	return nil
}

// RemoveId deletes the document with the given _id.
func (c *Collection) RemoveId(id interface{}) error {
	return c.Remove(bson.M{"_id": id})
}

// RemoveAll deletes every document matching selector.
func (c *Collection) RemoveAll(selector interface{}) (*ChangeInfo, error) {
	info, err := c.delete(selector, 0)
	if err != nil {
		return nil, err
	}
	return &info, nil
}

func (c *Collection) delete(selector interface{}, limit int) (ChangeInfo, error) {
	cmd := bson.D{
		{Name: "delete", Value: c.name},
		{Name: "deletes", Value: []bson.M{{
			"q":     toFilterDoc(selector),
			"limit": limit,
		}}},
	}
	var reply writeCommandReply
	if _, err := runCommand(c.db.session, c.db.name, cmd, &reply); err != nil {
		return ChangeInfo{}, err
	}
	if len(reply.WriteErrs) > 0 {
		return ChangeInfo{}, toBulkError(reply.WriteErrs)
	}
	return ChangeInfo{Removed: reply.N}, nil
}

// Update applies update to the first document matching selector. The update
// document must be either a full replacement or contain update operators;
// callers needing $set semantics should build that document themselves or
// use wrapInSetOperator-style helpers upstream of this call.
func (c *Collection) Update(selector, update interface{}) error {
	info, err := c.update(selector, update, false, false)
	if err != nil {
		return err
	}
	if info.Matched == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateId applies update to the document with the given _id.
func (c *Collection) UpdateId(id, update interface{}) error {
	return c.Update(bson.M{"_id": id}, update)
}

// Upsert updates the first matching document, inserting one if none match.
func (c *Collection) Upsert(selector, update interface{}) (*ChangeInfo, error) {
	info, err := c.update(selector, update, false, true)
	if err != nil {
		return nil, err
	}
	return &info, nil
}

// UpdateAll applies update to every document matching selector.
func (c *Collection) UpdateAll(selector, update interface{}) (*ChangeInfo, error) {
	info, err := c.update(selector, update, true, false)
	if err != nil {
		return nil, err
	}
	return &info, nil
}

func (c *Collection) update(selector, update interface{}, multi, upsert bool) (ChangeInfo, error) {
	cmd := bson.D{
		{Name: "update", Value: c.name},
		{Name: "updates", Value: []bson.M{{
			"q":      toFilterDoc(selector),
			"u":      update,
			"multi":  multi,
			"upsert": upsert,
		}}},
	}
	var reply writeCommandReply
	if _, err := runCommand(c.db.session, c.db.name, cmd, &reply); err != nil {
		return ChangeInfo{}, err
	}
	if len(reply.WriteErrs) > 0 {
		return ChangeInfo{}, toBulkError(reply.WriteErrs)
	}
	info := ChangeInfo{Matched: reply.N, Updated: reply.NModified}
	if len(reply.Upserted) > 0 {
		info.UpsertedId = reply.Upserted[0].Id
	}
	return info, nil
}

func toBulkError(errs []writeError) error {
	cases := make([]BulkErrorCase, 0, len(errs))
	for _, e := range errs {
		cases = append(cases, e.toBulkCase())
	}
	return &BulkError{ecases: cases}
}

// findAndModify backs Query.Apply.
func (c *Collection) findAndModify(q *Query, change Change, result interface{}) (ChangeInfo, error) {
	cmd := bson.D{{Name: "findAndModify", Value: c.name}}
	cmd = append(cmd, bson.DocElem{Name: "query", Value: q.filter})
	if len(q.sort) > 0 {
		cmd = append(cmd, bson.DocElem{Name: "sort", Value: q.sort})
	}
	if change.Remove {
		cmd = append(cmd, bson.DocElem{Name: "remove", Value: true})
	} else {
		cmd = append(cmd, bson.DocElem{Name: "update", Value: change.Update})
		cmd = append(cmd, bson.DocElem{Name: "new", Value: change.ReturnNew})
		cmd = append(cmd, bson.DocElem{Name: "upsert", Value: change.Upsert})
	}

	var reply struct {
		Value       bson.M `bson:"value"`
		LastErrOps  struct {
			Updated    int         `bson:"n"`
			UpsertedId interface{} `bson:"upserted,omitempty"`
		} `bson:"lastErrorObject"`
	}
	if _, err := runCommand(c.db.session, c.db.name, cmd, &reply); err != nil {
		return ChangeInfo{}, err
	}
	if reply.Value == nil {
		return ChangeInfo{}, ErrNotFound
	}
	if result != nil {
		if err := decodeReplyInto(reply.Value, result); err != nil {
			return ChangeInfo{}, err
		}
	}
	info := ChangeInfo{Updated: reply.LastErrOps.Updated, UpsertedId: reply.LastErrOps.UpsertedId}
	if change.Remove {
		info.Removed = 1
		info.Updated = 0
	}
	return info, nil
}

// EnsureIndex creates an index described by idx if it does not already
// exist.
func (c *Collection) EnsureIndex(idx Index) error {
	keyDoc := bson.D{}
	for _, k := range idx.Key {
		field, dir := k, 1
		if len(field) > 0 && field[0] == '-' {
			dir = -1
			field = field[1:]
		}
		keyDoc = append(keyDoc, bson.DocElem{Name: field, Value: dir})
	}

	name := idx.Name
	if name == "" {
		name = indexNameFromKey(keyDoc)
	}

	spec := bson.M{
		"key":  keyDoc,
		"name": name,
	}
	if idx.Unique {
		spec["unique"] = true
	}
	if idx.Sparse {
		spec["sparse"] = true
	}
	if idx.Background {
		spec["background"] = true
	}
	if idx.ExpireAfter > 0 {
		spec["expireAfterSeconds"] = int(idx.ExpireAfter.Seconds())
	}
	if idx.PartialFilter != nil {
		spec["partialFilterExpression"] = idx.PartialFilter
	}
	if idx.Collation != nil {
		spec["collation"] = idx.Collation
	}

	cmd := bson.D{
		{Name: "createIndexes", Value: c.name},
		{Name: "indexes", Value: []bson.M{spec}},
	}
	_, err := runCommand(c.db.session, c.db.name, cmd, nil)
	return err
}

// EnsureIndexKey is shorthand for EnsureIndex with only a key specified.
func (c *Collection) EnsureIndexKey(key ...string) error {
	return c.EnsureIndex(Index{Key: key})
}

func indexNameFromKey(key bson.D) string {
	name := ""
	for i, e := range key {
		if i > 0 {
			name += "_"
		}
		name += e.Name + "_"
		switch v := e.Value.(type) {
		case int:
			if v < 0 {
				name += "-1"
			} else {
				name += "1"
			}
		}
	}
	return name
}

// Indexes lists the indexes defined on this collection.
func (c *Collection) Indexes() ([]Index, error) {
	cmd := bson.D{{Name: "listIndexes", Value: c.name}}
	raw, err := runCommand(c.db.session, c.db.name, cmd, nil)
	if err != nil {
		return nil, err
	}
	cursor, _ := raw["cursor"].(bson.M)
	if cursor == nil {
		return nil, nil
	}
	batch, _ := cursor["firstBatch"].([]interface{})
	out := make([]Index, 0, len(batch))
	for _, item := range batch {
		doc, ok := item.(bson.M)
		if !ok {
			continue
		}
		idx := Index{Name: fieldString(doc["name"])}
		if keyDoc, ok := doc["key"].(bson.M); ok {
			for k, v := range keyDoc {
				if n, ok := toIntValue(v); ok && n < 0 {
					idx.Key = append(idx.Key, "-"+k)
				} else {
					idx.Key = append(idx.Key, k)
				}
			}
		}
		if u, ok := doc["unique"].(bool); ok {
			idx.Unique = u
		}
		out = append(out, idx)
	}
	return out, nil
}

func fieldString(v interface{}) string {
	s, _ := v.(string)
	return s
}

func toIntValue(v interface{}) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int32:
		return int(n), true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	}
	return 0, false
}

// DropCollection drops the collection.
func (c *Collection) DropCollection() error {
	_, err := runCommand(c.db.session, c.db.name, bson.D{{Name: "drop", Value: c.name}}, nil)
	return err
}

// Pipe returns an aggregation pipeline handle for this collection.
func (c *Collection) Pipe(pipeline interface{}) *Pipe {
	return &Pipe{coll: c, pipeline: pipeline, batchSize: 100}
}

// Run executes an arbitrary command against the collection's database,
// returning the command facade's uniform StatusReply alongside the error.
func (c *Collection) Run(cmd interface{}, result interface{}) (StatusReply, error) {
	raw, err := runCommand(c.db.session, c.db.name, cmd, result)
	return newStatusReply(raw, err), err
}

// Bulk returns a new bulk write batch. Batches are ordered by default;
// Unordered lets one continue past individual operation failures.
func (c *Collection) Bulk() *Bulk {
	return &Bulk{coll: c, ordered: true}
}

// Set applies fields to the first document matching selector, wrapping a
// plain replacement document in $set automatically so callers don't have to
// remember MongoDB's operator-vs-replacement distinction.
func (c *Collection) Set(selector interface{}, fields interface{}) error {
	return c.Update(selector, wrapInSetOperator(fields))
}
