package bson_test

import (
	. "gopkg.in/check.v1"

	"github.com/coreward/mgo/bson"
)

func (s *S) TestMergeDeepCopiesAWhenBIsEmpty(c *C) {
	a := bson.NewValue(bson.M{"x": 1, "nested": bson.M{"y": 2}})
	merged := bson.Merge(a, bson.NewValue(bson.M{}))

	nested := merged.Get("nested")
	nested.Set("y", bson.NewValue(99))

	y, err := a.Get("nested").Get("y").ToInt()
	c.Assert(err, IsNil)
	c.Assert(y, Equals, 2)
}

func (s *S) TestMergeCombinesDisjointKeys(c *C) {
	a := bson.NewValue(bson.M{"x": 1})
	b := bson.NewValue(bson.M{"y": 2})
	merged := bson.Merge(a, b)

	x, err := merged.Get("x").ToInt()
	c.Assert(err, IsNil)
	c.Assert(x, Equals, 1)

	y, err := merged.Get("y").ToInt()
	c.Assert(err, IsNil)
	c.Assert(y, Equals, 2)
}

func (s *S) TestMergeRecursesSharedDocumentKeys(c *C) {
	a := bson.NewValue(bson.M{"nested": bson.M{"x": 1}})
	b := bson.NewValue(bson.M{"nested": bson.M{"y": 2}})
	merged := bson.Merge(a, b)

	nested := merged.Get("nested")
	c.Assert(nested.Len(), Equals, 2)
}

func (s *S) TestMergeDoesNotMutateInputs(c *C) {
	a := bson.NewValue(bson.M{"nested": bson.M{"x": 1}})
	b := bson.NewValue(bson.M{"nested": bson.M{"y": 2}})
	merged := bson.Merge(a, b)
	nested := merged.Get("nested")
	nested.Set("z", bson.NewValue(3))

	c.Assert(bson.Contains(a.Get("nested"), "z"), Equals, false)
	c.Assert(bson.Contains(b.Get("nested"), "z"), Equals, false)
}

func (s *S) TestUpdateOverwritesScalar(c *C) {
	v := bson.NewValue(bson.M{"x": 1})
	bson.Update(&v, bson.NewValue(bson.M{"x": 2}))

	x, err := v.Get("x").ToInt()
	c.Assert(err, IsNil)
	c.Assert(x, Equals, 2)
}

func (s *S) TestUpdateMergesNestedDocuments(c *C) {
	v := bson.NewValue(bson.M{"nested": bson.M{"x": 1}})
	bson.Update(&v, bson.NewValue(bson.M{"nested": bson.M{"y": 2}}))

	nested := v.Get("nested")
	c.Assert(nested.Len(), Equals, 2)
}

func (s *S) TestUpdateOnNullAdoptsPatch(c *C) {
	var v bson.Value
	bson.Update(&v, bson.NewValue(bson.M{"a": 1}))

	a, err := v.Get("a").ToInt()
	c.Assert(err, IsNil)
	c.Assert(a, Equals, 1)
}
