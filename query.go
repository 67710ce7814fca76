package mgo

import "github.com/coreward/mgo/bson"

// Sort sets the field order used to sort matching documents. A "-" prefix
// means descending, matching the classic driver's convention.
func (q *Query) Sort(fields ...string) *Query {
	sort := make(bson.D, 0, len(fields))
	for _, f := range fields {
		dir := 1
		if len(f) > 0 && f[0] == '-' {
			dir = -1
			f = f[1:]
		}
		sort = append(sort, bson.DocElem{Name: f, Value: dir})
	}
	q.sort = sort
	return q
}

// Limit caps the number of documents returned. A negative limit requests a
// single hard-capped batch.
func (q *Query) Limit(n int) *Query {
	q.limit = int32(n)
	return q
}

// Skip sets the number of matching documents to skip before returning
// results.
func (q *Query) Skip(n int) *Query {
	q.skip = int32(n)
	return q
}

// Select sets the projection document controlling which fields come back.
func (q *Query) Select(projection bson.M) *Query {
	q.projection = projection
	return q
}

// SetMaxTime caps server-side execution time via $maxTimeMS.
func (q *Query) SetMaxTime(ms int64) *Query {
	q.maxTimeMS = ms
	return q
}

func (q *Query) newIter() *Iter {
	return &Iter{
		coll:      q.coll,
		filter:    q.filter,
		fields:    q.projection,
		sort:      q.sort,
		skip:      q.skip,
		limit:     q.limit,
		batchSize: 0,
		maxTimeMS: q.maxTimeMS,
	}
}

// Iter starts server-side iteration over the query's matches.
func (q *Query) Iter() *Iter {
	return q.newIter()
}

// One fetches a single document into result: at most one batch is
// requested and an empty result fails with ErrNotFound.
func (q *Query) One(result interface{}) error {
	it := q.newIter()
	it.limit = -1
	docs, err := it.refresh()
	if err != nil {
		return err
	}
	if len(docs) == 0 {
		return ErrNotFound
	}
	if result != nil {
		if err := decodeReplyInto(docs[0], result); err != nil {
			return err
		}
	}
	_ = it.Close()
	return nil
}

// All drains every matching document into result, which must point to a
// slice of bson.M (or a compatible struct slice via the standard decode
// path layered on top).
func (q *Query) All(result *[]bson.M) error {
	return q.Iter().All(result)
}

// Count reports how many documents match the query's filter, via the count
// command rather than draining the cursor.
func (q *Query) Count() (int, error) {
	return q.coll.Count(q.filter)
}

// Apply runs a findAndModify against the query's filter and decodes the
// resulting document (pre- or post-image, per change.ReturnNew) into
// result.
func (q *Query) Apply(change Change, result interface{}) (ChangeInfo, error) {
	return q.coll.findAndModify(q, change, result)
}
