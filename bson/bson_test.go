package bson_test

import (
	"testing"
	"time"

	. "gopkg.in/check.v1"

	"github.com/coreward/mgo/bson"
)

func Test(t *testing.T) { TestingT(t) }

type S struct{}

var _ = Suite(&S{})

func (s *S) TestObjectIdHexRoundTrip(c *C) {
	id := bson.NewObjectId()
	c.Assert(bson.IsObjectIdHex(id.Hex()), Equals, true)
	c.Assert(bson.ObjectIdHex(id.Hex()), Equals, id)
}

func (s *S) TestObjectIdWithTime(c *C) {
	t := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	id := bson.NewObjectIdWithTime(t)
	c.Assert(id.Time().Unix(), Equals, t.Unix())
}

func (s *S) TestMarshalUnmarshalDocument(c *C) {
	in := bson.M{"name": "ripcord", "count": 7, "active": true}
	raw, err := bson.Marshal(in)
	c.Assert(err, IsNil)

	var out bson.M
	err = bson.Unmarshal(raw, &out)
	c.Assert(err, IsNil)
	c.Assert(out["name"], Equals, "ripcord")
	c.Assert(out["active"], Equals, true)
}

func (s *S) TestDPreservesOrderAndDuplicates(c *C) {
	in := bson.D{{Name: "b", Value: 1}, {Name: "a", Value: 2}, {Name: "b", Value: 3}}
	raw, err := bson.Marshal(in)
	c.Assert(err, IsNil)

	var out bson.D
	err = bson.Unmarshal(raw, &out)
	c.Assert(err, IsNil)
	c.Assert(len(out), Equals, 3)
	c.Assert(out[0].Name, Equals, "b")
	c.Assert(out[1].Name, Equals, "a")
	c.Assert(out[2].Name, Equals, "b")
}

func (s *S) TestStructTagMapping(c *C) {
	type inner struct {
		Name  string `bson:"name"`
		Count int    `bson:"count,omitempty"`
	}
	in := inner{Name: "widget"}
	raw, err := bson.Marshal(in)
	c.Assert(err, IsNil)

	var m bson.M
	c.Assert(bson.Unmarshal(raw, &m), IsNil)
	_, hasCount := m["count"]
	c.Assert(hasCount, Equals, false)

	var out inner
	c.Assert(bson.Unmarshal(raw, &out), IsNil)
	c.Assert(out.Name, Equals, "widget")
}
