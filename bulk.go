package mgo

import "github.com/coreward/mgo/bson"

// Insert queues one or more documents for insertion, assigning an ObjectId
// to any that lack an _id.
func (b *Bulk) Insert(docs ...interface{}) *Bulk {
	for _, d := range docs {
		b.ops = append(b.ops, bulkOp{kind: bulkInsert, doc: d})
	}
	return b
}

// Update queues an update of the first document matching selector.
func (b *Bulk) Update(selector, update interface{}) *Bulk {
	b.ops = append(b.ops, bulkOp{kind: bulkUpdate, selector: selector, update: update})
	return b
}

// UpdateAll queues an update of every document matching selector.
func (b *Bulk) UpdateAll(selector, update interface{}) *Bulk {
	b.ops = append(b.ops, bulkOp{kind: bulkUpdate, selector: selector, update: update, multi: true})
	return b
}

// Upsert queues an upsert of the first document matching selector.
func (b *Bulk) Upsert(selector, update interface{}) *Bulk {
	b.ops = append(b.ops, bulkOp{kind: bulkUpdate, selector: selector, update: update, upsert: true})
	return b
}

// Remove queues removal of the first document matching selector.
func (b *Bulk) Remove(selector interface{}) *Bulk {
	b.ops = append(b.ops, bulkOp{kind: bulkDelete, selector: selector})
	return b
}

// RemoveAll queues removal of every document matching selector.
func (b *Bulk) RemoveAll(selector interface{}) *Bulk {
	b.ops = append(b.ops, bulkOp{kind: bulkDelete, selector: selector, multi: true})
	return b
}

// Unordered marks the batch as allowed to continue past individual op
// failures; by default a Bulk stops at the first error, per the classic
// driver's default.
func (b *Bulk) Unordered() *Bulk {
	b.ordered = false
	return b
}

// Run flushes the queued operations as a sequence of legacy write commands,
// grouping consecutive operations of the same kind into a single command
// the way the server itself batches bulk writes.
func (b *Bulk) Run() (*BulkResult, error) {
	result := &BulkResult{}
	var allErrs []BulkErrorCase

	i := 0
	for i < len(b.ops) {
		kind := b.ops[i].kind
		j := i
		for j < len(b.ops) && b.ops[j].kind == kind {
			j++
		}
		batch := b.ops[i:j]

		var reply writeCommandReply
		var err error
		switch kind {
		case bulkInsert:
			reply, err = b.runInsertBatch(batch)
		case bulkUpdate:
			reply, err = b.runUpdateBatch(batch)
		case bulkDelete:
			reply, err = b.runDeleteBatch(batch)
		}
		if err != nil {
			return result, err
		}

		switch kind {
		case bulkUpdate:
			result.Matched += reply.N
			result.Modified += reply.NModified
			for _, u := range reply.Upserted {
				result.UpsertedId = append(result.UpsertedId, u.Id)
			}
		case bulkDelete:
			result.Matched += reply.N
		}

		for _, we := range reply.WriteErrs {
			we.Index += i
			allErrs = append(allErrs, we.toBulkCase())
		}
		if b.ordered && len(reply.WriteErrs) > 0 {
			return result, &BulkError{ecases: allErrs}
		}

		i = j
	}

	if len(allErrs) > 0 {
		return result, &BulkError{ecases: allErrs}
	}
	return result, nil
}

func (b *Bulk) runInsertBatch(ops []bulkOp) (writeCommandReply, error) {
	docs := make([]bson.M, 0, len(ops))
	for _, op := range ops {
		m, _, err := ensureDocID(op.doc)
		if err != nil {
			return writeCommandReply{}, err
		}
		docs = append(docs, m)
	}
	cmd := bson.D{
		{Name: "insert", Value: b.coll.name},
		{Name: "documents", Value: docs},
		{Name: "ordered", Value: b.ordered},
	}
	var reply writeCommandReply
	_, err := runCommand(b.coll.db.session, b.coll.db.name, cmd, &reply)
	return reply, err
}

func (b *Bulk) runUpdateBatch(ops []bulkOp) (writeCommandReply, error) {
	updates := make([]bson.M, 0, len(ops))
	for _, op := range ops {
		updates = append(updates, bson.M{
			"q":      toFilterDoc(op.selector),
			"u":      op.update,
			"multi":  op.multi,
			"upsert": op.upsert,
		})
	}
	cmd := bson.D{
		{Name: "update", Value: b.coll.name},
		{Name: "updates", Value: updates},
		{Name: "ordered", Value: b.ordered},
	}
	var reply writeCommandReply
	_, err := runCommand(b.coll.db.session, b.coll.db.name, cmd, &reply)
	return reply, err
}

func (b *Bulk) runDeleteBatch(ops []bulkOp) (writeCommandReply, error) {
	deletes := make([]bson.M, 0, len(ops))
	for _, op := range ops {
		limit := 1
		if op.multi {
			limit = 0
		}
		deletes = append(deletes, bson.M{
			"q":     toFilterDoc(op.selector),
			"limit": limit,
		})
	}
	cmd := bson.D{
		{Name: "delete", Value: b.coll.name},
		{Name: "deletes", Value: deletes},
		{Name: "ordered", Value: b.ordered},
	}
	var reply writeCommandReply
	_, err := runCommand(b.coll.db.session, b.coll.db.name, cmd, &reply)
	return reply, err
}
