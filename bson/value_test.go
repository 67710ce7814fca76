package bson_test

import (
	. "gopkg.in/check.v1"

	"github.com/coreward/mgo/bson"
)

func (s *S) TestValueGetSet(c *C) {
	v := bson.NewValue(bson.M{"a": 1})
	v.Set("b", bson.NewValue("hello"))
	got := v.Get("b")
	str, err := got.ToString()
	c.Assert(err, IsNil)
	c.Assert(str, Equals, "hello")
}

func (s *S) TestValueIndexAndAdd(c *C) {
	v := bson.NewValue([]interface{}{1, 2, 3})
	v.Add(bson.NewValue(4))
	el := v.Index(3)
	n, err := el.ToInt()
	c.Assert(err, IsNil)
	c.Assert(n, Equals, 4)
}

func (s *S) TestValuePath(c *C) {
	v := bson.NewValue(bson.M{"a": bson.M{"b": bson.M{"c": 42}}})
	leaf, ok := bson.Path(v, "a", "b", "c")
	c.Assert(ok, Equals, true)
	n, err := leaf.ToInt()
	c.Assert(err, IsNil)
	c.Assert(n, Equals, 42)

	_, ok = bson.Path(v, "a", "missing", "c")
	c.Assert(ok, Equals, false)
}

func (s *S) TestValueSetPathAutoVivifies(c *C) {
	v := bson.NewValue(bson.M{})
	leaf := bson.NewValue("deep")
	bson.SetPath(&v, leaf, "x", "y", "z")

	got, ok := bson.Path(v, "x", "y", "z")
	c.Assert(ok, Equals, true)
	str, err := got.ToString()
	c.Assert(err, IsNil)
	c.Assert(str, Equals, "deep")
}

func (s *S) TestValueKindMismatch(c *C) {
	v := bson.NewValue("not a number")
	_, err := v.ToInt()
	c.Assert(err, NotNil)
}

func (s *S) TestContainsAndLen(c *C) {
	v := bson.NewValue(bson.M{"x": 1, "y": 2})
	c.Assert(bson.Contains(v, "x"), Equals, true)
	c.Assert(bson.Contains(v, "z"), Equals, false)
	c.Assert(v.Len(), Equals, 2)
}
