package mgo

import "github.com/coreward/mgo/bson"

// Expr is a composable predicate that renders to a BSON filter document.
// Hand-written filters (bson.M/bson.D) remain first-class citizens
// throughout this package; Expr exists for callers who prefer to assemble
// queries programmatically.
type Expr interface {
	toBSON() bson.M
}

type cmpExpr struct {
	field string
	op    string
	value interface{}
}

func (e cmpExpr) toBSON() bson.M {
	return bson.M{e.field: bson.M{e.op: e.value}}
}

func Eq(field string, value interface{}) Expr  { return cmpExpr{field, "$eq", value} }
func Ne(field string, value interface{}) Expr  { return cmpExpr{field, "$ne", value} }
func Gt(field string, value interface{}) Expr  { return cmpExpr{field, "$gt", value} }
func Lt(field string, value interface{}) Expr  { return cmpExpr{field, "$lt", value} }
func Gte(field string, value interface{}) Expr { return cmpExpr{field, "$gte", value} }
func Lte(field string, value interface{}) Expr { return cmpExpr{field, "$lte", value} }

// In builds a {field: {$in: values}} membership predicate.
func In(field string, values ...interface{}) Expr {
	return cmpExpr{field, "$in", values}
}

// NotIn builds a {field: {$nin: values}} membership predicate.
func NotIn(field string, values ...interface{}) Expr {
	return cmpExpr{field, "$nin", values}
}

// Is builds a {field: {$type: kind}} type-check predicate. A single kind
// renders as a scalar; multiple kinds render as an array.
func Is(field string, kinds ...interface{}) Expr {
	if len(kinds) == 1 {
		return cmpExpr{field, "$type", kinds[0]}
	}
	return cmpExpr{field, "$type", kinds}
}

// Size builds a {field: {$size: n}} array-length predicate.
func Size(field string, n int) Expr {
	return cmpExpr{field, "$size", n}
}

// All builds a {field: {$all: values}} predicate.
func All(field string, values ...interface{}) Expr {
	return cmpExpr{field, "$all", values}
}

type logicalExpr struct {
	op    string
	exprs []Expr
}

func (e logicalExpr) toBSON() bson.M {
	arr := make([]bson.M, 0, len(e.exprs))
	for _, sub := range e.exprs {
		arr = append(arr, sub.toBSON())
	}
	return bson.M{e.op: arr}
}

func And(exprs ...Expr) Expr { return logicalExpr{"$and", exprs} }
func Or(exprs ...Expr) Expr  { return logicalExpr{"$or", exprs} }
func Nor(exprs ...Expr) Expr { return logicalExpr{"$nor", exprs} }

type notExpr struct{ inner Expr }

func (e notExpr) toBSON() bson.M {
	return bson.M{"$not": e.inner.toBSON()}
}

func Not(inner Expr) Expr { return notExpr{inner} }

// BuildFilter flattens one or more top-level expressions into a single
// filter document. Distinct fields merge into sibling keys; a predicate
// whose field already has a top-level entry moves both the existing and the
// new predicate into $and, preserving both instead of letting one silently
// overwrite the other.
func BuildFilter(exprs ...Expr) bson.M {
	if len(exprs) == 0 {
		return bson.M{}
	}
	if len(exprs) == 1 {
		return exprs[0].toBSON()
	}

	out := bson.M{}
	var and []bson.M
	for _, e := range exprs {
		doc := e.toBSON()
		conflict := false
		for k := range doc {
			if _, exists := out[k]; exists {
				conflict = true
				break
			}
		}
		if !conflict {
			for k, v := range doc {
				out[k] = v
			}
			continue
		}
		for k, v := range doc {
			if existing, ok := out[k]; ok {
				and = append(and, bson.M{k: existing})
				delete(out, k)
			}
			and = append(and, bson.M{k: v})
		}
	}
	if len(and) > 0 {
		out["$and"] = and
	}
	return out
}
