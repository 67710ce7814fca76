package mgo

import "github.com/coreward/mgo/bson"

// AllowDiskUse permits the aggregation to spill to disk for large sorts or
// groupings.
func (p *Pipe) AllowDiskUse() *Pipe {
	p.allowDisk = true
	return p
}

// Batch sets the cursor batch size used when streaming results back.
func (p *Pipe) Batch(n int) *Pipe {
	p.batchSize = int32(n)
	return p
}

// SetMaxTime caps server-side execution time via the aggregate command's
// maxTimeMS field.
func (p *Pipe) SetMaxTime(ms int64) *Pipe {
	p.maxTimeMS = ms
	return p
}

// Iter runs the pipeline and returns a cursor over its output, reusing the
// same cursor engine a regular find uses.
func (p *Pipe) Iter() (*Iter, error) {
	cmd := bson.D{
		{Name: "aggregate", Value: p.coll.name},
		{Name: "pipeline", Value: p.pipeline},
		{Name: "cursor", Value: bson.M{"batchSize": p.batchSize}},
	}
	if p.allowDisk {
		cmd = append(cmd, bson.DocElem{Name: "allowDiskUse", Value: true})
	}
	if p.maxTimeMS > 0 {
		cmd = append(cmd, bson.DocElem{Name: "maxTimeMS", Value: p.maxTimeMS})
	}

	var reply struct {
		Cursor struct {
			FirstBatch []bson.M `bson:"firstBatch"`
			Id         int64    `bson:"id"`
			NS         string   `bson:"ns"`
		} `bson:"cursor"`
	}
	if _, err := runCommand(p.coll.db.session, p.coll.db.name, cmd, &reply); err != nil {
		return nil, err
	}

	it := &Iter{
		coll:      p.coll,
		batchSize: p.batchSize,
		cursorID:  reply.Cursor.Id,
		buf:       reply.Cursor.FirstBatch,
		delivered: int32(len(reply.Cursor.FirstBatch)),
	}
	if it.cursorID == 0 {
		it.closed = true
	}
	return it, nil
}

// All drains the pipeline's full result set into result.
func (p *Pipe) All(result *[]bson.M) error {
	it, err := p.Iter()
	if err != nil {
		return err
	}
	return it.All(result)
}

// One fetches the first document the pipeline produces.
func (p *Pipe) One(result interface{}) error {
	it, err := p.Iter()
	if err != nil {
		return err
	}
	defer it.Close()
	if !it.Next(result) {
		if err := it.Err(); err != nil {
			return err
		}
		return ErrNotFound
	}
	return nil
}
