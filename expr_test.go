package mgo

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/coreward/mgo/bson"
)

func TestComparisonExprs(t *testing.T) {
	cases := []struct {
		name string
		expr Expr
		want bson.M
	}{
		{"eq", Eq("age", 30), bson.M{"age": bson.M{"$eq": 30}}},
		{"ne", Ne("age", 30), bson.M{"age": bson.M{"$ne": 30}}},
		{"gt", Gt("age", 30), bson.M{"age": bson.M{"$gt": 30}}},
		{"lt", Lt("age", 30), bson.M{"age": bson.M{"$lt": 30}}},
		{"gte", Gte("age", 30), bson.M{"age": bson.M{"$gte": 30}}},
		{"lte", Lte("age", 30), bson.M{"age": bson.M{"$lte": 30}}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if diff := cmp.Diff(tc.want, BuildFilter(tc.expr)); diff != "" {
				t.Errorf("mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestInNotInExprs(t *testing.T) {
	got := BuildFilter(In("status", "a", "b"))
	want := bson.M{"status": bson.M{"$in": []interface{}{"a", "b"}}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("In mismatch (-want +got):\n%s", diff)
	}

	got = BuildFilter(NotIn("status", "a"))
	want = bson.M{"status": bson.M{"$nin": []interface{}{"a"}}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("NotIn mismatch (-want +got):\n%s", diff)
	}
}

func TestSizeAndAllExprs(t *testing.T) {
	got := BuildFilter(Size("tags", 3))
	want := bson.M{"tags": bson.M{"$size": 3}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Size mismatch (-want +got):\n%s", diff)
	}

	got = BuildFilter(All("tags", "a", "b"))
	want = bson.M{"tags": bson.M{"$all": []interface{}{"a", "b"}}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("All mismatch (-want +got):\n%s", diff)
	}
}

func TestLogicalExprs(t *testing.T) {
	got := And(Eq("a", 1), Eq("b", 2)).toBSON()
	want := bson.M{"$and": []bson.M{
		{"a": bson.M{"$eq": 1}},
		{"b": bson.M{"$eq": 2}},
	}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("And mismatch (-want +got):\n%s", diff)
	}
}

func TestBuildFilterMergesDistinctFields(t *testing.T) {
	got := BuildFilter(Eq("a", 1), Eq("b", 2))
	want := bson.M{"a": bson.M{"$eq": 1}, "b": bson.M{"$eq": 2}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}
}

func TestBuildFilterNestsDuplicateFieldsUnderAnd(t *testing.T) {
	got := BuildFilter(Gt("age", 18), Lt("age", 65))
	and, ok := got["$and"].([]bson.M)
	if !ok || len(and) != 2 {
		t.Fatalf("expected duplicate-field predicates to nest under $and, got %#v", got)
	}
}
