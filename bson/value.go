package bson

import (
	"fmt"
	"time"
)

// Value is a dynamic BSON node: a document (D, preserving key order and
// duplicates the way the wire format itself does), an array
// ([]interface{}), or a scalar. It gives callers the document()/
// value[key]/add/to_int style accessors from the BSON codec's public
// contract without requiring a struct definition up front, useful for
// building commands and filters from values only known at runtime.
//
// The zero Value is a Null node. A document built through Document(),
// Set, AddKey or SetPath is always stored as a D; a Value wrapping a
// plain M (e.g. from NewValue(someMap)) is read normally but gets
// promoted to an equivalent D the first time it is written through one
// of those calls, since an unordered M has no order to preserve.
type Value struct {
	v interface{}
}

// NewValue wraps an arbitrary Go value (typically produced by Unmarshal or
// a driver reply) as a Value.
func NewValue(v interface{}) Value { return Value{v: v} }

// Document returns a new, empty document Value.
func Document() Value { return Value{v: D{}} }

// Array returns a new, empty array Value.
func Array() Value { return Value{v: []interface{}{}} }

// Interface returns the underlying Go value (D, M, []interface{}, or a
// scalar).
func (val Value) Interface() interface{} { return val.v }

// IsNull reports whether val holds BSON null or carries no value.
func (val Value) IsNull() bool { return val.v == nil }

// asDoc returns val's document content as a D, converting a plain M
// read-only into an equivalent D (in whatever order the map iterates in,
// since M carries none of its own). It never mutates val.
func (val Value) asDoc() (D, bool) {
	return toDoc(val.v)
}

func (val Value) asSlice() ([]interface{}, bool) {
	s, ok := val.v.([]interface{})
	return s, ok
}

// Get returns the value stored under key, or the first match when key is
// duplicated. It panics with a *KindMismatchError if val is not a
// document; use Contains to check first when that matters.
func (val Value) Get(key string) Value {
	d, ok := val.asDoc()
	if !ok {
		panic(&KindMismatchError{Wanted: "Document", Kind: scalarKindOf(val.v)})
	}
	for _, el := range d {
		if el.Name == key {
			return Value{v: el.Value}
		}
	}
	return Value{}
}

// Set stores v under key, overwriting the first existing element named
// key or appending a new one, turning val into a document if it was
// Null. Set panics with *KindMismatchError if val already holds a
// non-document, non-null node.
func (val *Value) Set(key string, v Value) {
	d := val.docForWrite()
	for i, el := range d {
		if el.Name == key {
			d[i].Value = v.v
			val.v = d
			return
		}
	}
	val.v = append(d, DocElem{Name: key, Value: v.v})
}

// docForWrite returns val's document content as a D ready for in-place
// mutation, promoting a Null or M-backed val first.
func (val *Value) docForWrite() D {
	if val.v == nil {
		return D{}
	}
	d, ok := toDoc(val.v)
	if !ok {
		panic(&KindMismatchError{Wanted: "Document", Kind: scalarKindOf(val.v)})
	}
	return d
}

// Index returns the i'th element of an array node. It panics with
// *KindMismatchError if val is not an array, and with a plain error-free
// index-out-of-range panic (matching slice semantics) otherwise.
func (val Value) Index(i int) Value {
	s, ok := val.asSlice()
	if !ok {
		panic(&KindMismatchError{Wanted: "Array", Kind: scalarKindOf(val.v)})
	}
	return Value{v: s[i]}
}

// Add appends v to an array node, turning a Null val into an array first.
// It panics with *KindMismatchError for any other node; AddKey is the
// document counterpart.
func (val *Value) Add(v Value) {
	s, ok := val.asSlice()
	if !ok {
		if val.v != nil {
			panic(&KindMismatchError{Wanted: "Array", Kind: scalarKindOf(val.v)})
		}
		s = nil
	}
	s = append(s, v.v)
	val.v = s
}

// AddKey appends (key, v) to a document node unconditionally, turning a
// Null val into a document first. Unlike Set, it does not look for an
// existing element named key, so it is the way to build a document with
// deliberate duplicate keys.
func (val *Value) AddKey(key string, v Value) {
	d := val.docForWrite()
	val.v = append(d, DocElem{Name: key, Value: v.v})
}

// Contains reports whether val is a document containing key.
func Contains(val Value, key string) bool {
	d, ok := val.asDoc()
	if !ok {
		return false
	}
	for _, el := range d {
		if el.Name == key {
			return true
		}
	}
	return false
}

// Len returns the element count of a document or array node. It panics with
// *KindMismatchError for scalar nodes.
func (val Value) Len() int {
	if d, ok := val.asDoc(); ok {
		return len(d)
	}
	if s, ok := val.asSlice(); ok {
		return len(s)
	}
	panic(&KindMismatchError{Wanted: "Document or Array", Kind: scalarKindOf(val.v)})
}

// Path navigates nested documents, returning the value at the end of the
// key chain and true, or a Null Value and false if any step is missing or
// not itself a document. On a duplicate key it follows the first match.
func Path(val Value, keys ...string) (Value, bool) {
	cur := val
	for _, k := range keys {
		d, ok := cur.asDoc()
		if !ok {
			return Value{}, false
		}
		found := false
		for _, el := range d {
			if el.Name == k {
				cur = Value{v: el.Value}
				found = true
				break
			}
		}
		if !found {
			return Value{}, false
		}
	}
	return cur, true
}

// SetPath writes v at the end of the key chain, creating intermediate
// documents as needed.
func SetPath(val *Value, v Value, keys ...string) {
	if len(keys) == 0 {
		return
	}
	var child Value
	if d, ok := val.asDoc(); ok {
		for _, el := range d {
			if el.Name == keys[0] {
				child = Value{v: el.Value}
				break
			}
		}
	} else if val.v != nil {
		panic(&KindMismatchError{Wanted: "Document", Kind: scalarKindOf(val.v)})
	}
	if len(keys) == 1 {
		val.Set(keys[0], v)
		return
	}
	SetPath(&child, v, keys[1:]...)
	val.Set(keys[0], child)
}

// ToInt returns the value as an int, accepting Int32 or Int64 nodes.
func (val Value) ToInt() (int, error) {
	switch n := val.v.(type) {
	case int32:
		return int(n), nil
	case int64:
		return int(n), nil
	case int:
		return n, nil
	}
	return 0, &KindMismatchError{Wanted: "Int32 or Int64", Kind: scalarKindOf(val.v)}
}

// ToInt32 returns the value as an int32, accepting Int32 or Int64 nodes
// (narrowing Int64 without overflow checking, matching wire truncation).
func (val Value) ToInt32() (int32, error) {
	switch n := val.v.(type) {
	case int32:
		return n, nil
	case int64:
		return int32(n), nil
	}
	return 0, &KindMismatchError{Wanted: "Int32 or Int64", Kind: scalarKindOf(val.v)}
}

// ToInt64 returns the value as an int64, accepting Int32 or Int64 nodes.
func (val Value) ToInt64() (int64, error) {
	switch n := val.v.(type) {
	case int32:
		return int64(n), nil
	case int64:
		return n, nil
	}
	return 0, &KindMismatchError{Wanted: "Int32 or Int64", Kind: scalarKindOf(val.v)}
}

// ToFloat returns the value as a float64, requiring a Double node.
func (val Value) ToFloat() (float64, error) {
	if f, ok := val.v.(float64); ok {
		return f, nil
	}
	return 0, &KindMismatchError{Wanted: "Double", Kind: scalarKindOf(val.v)}
}

// ToBool returns the value as a bool, requiring a Bool node.
func (val Value) ToBool() (bool, error) {
	if b, ok := val.v.(bool); ok {
		return b, nil
	}
	return false, &KindMismatchError{Wanted: "Bool", Kind: scalarKindOf(val.v)}
}

// ToString returns the value as a string, requiring a StringUTF8 node.
func (val Value) ToString() (string, error) {
	if s, ok := val.v.(string); ok {
		return s, nil
	}
	return "", &KindMismatchError{Wanted: "StringUTF8", Kind: scalarKindOf(val.v)}
}

// ToObjectId returns the value as an ObjectId, requiring an ObjectId node.
func (val Value) ToObjectId() (ObjectId, error) {
	if id, ok := val.v.(ObjectId); ok {
		return id, nil
	}
	return "", &KindMismatchError{Wanted: "ObjectId", Kind: scalarKindOf(val.v)}
}

// ToTime returns the value as a time.Time, requiring a TimeUTC node.
func (val Value) ToTime() (time.Time, error) {
	if t, ok := val.v.(time.Time); ok {
		return t, nil
	}
	return time.Time{}, &KindMismatchError{Wanted: "TimeUTC", Kind: scalarKindOf(val.v)}
}

// ToBinary returns the value as a Binary, accepting Binary nodes and the
// []byte representation of BinaryGeneric.
func (val Value) ToBinary() (Binary, error) {
	switch b := val.v.(type) {
	case Binary:
		return b, nil
	case []byte:
		return Binary{Kind: BinaryGeneric, Data: b}, nil
	}
	return Binary{}, &KindMismatchError{Wanted: "Binary", Kind: scalarKindOf(val.v)}
}

// Bytes serializes val as a BSON document. val must hold a document node.
func (val Value) Bytes() ([]byte, error) {
	d, ok := val.asDoc()
	if !ok {
		return nil, &KindMismatchError{Wanted: "Document", Kind: scalarKindOf(val.v)}
	}
	return Marshal(d)
}

// ParseValue decodes data as a BSON document and returns it as a Value.
// The reply is decoded into an M, matching the representation Unmarshal
// itself uses for dynamic (interface{}-typed) document fields.
func ParseValue(data []byte) (Value, error) {
	var m M
	if err := Unmarshal(data, &m); err != nil {
		return Value{}, err
	}
	return Value{v: m}, nil
}

func scalarKindOf(v interface{}) byte {
	switch v.(type) {
	case nil:
		return kindNull
	case float64:
		return kindFloat
	case string:
		return kindString
	case M, D:
		return kindDocument
	case []interface{}:
		return kindArray
	case Binary, []byte:
		return kindBinary
	case undefinedType:
		return kindUndefined
	case ObjectId:
		return kindObjectId
	case bool:
		return kindBool
	case time.Time:
		return kindDatetime
	case RegEx:
		return kindRegEx
	case DBPointer:
		return kindDBPointer
	case JavaScript:
		return kindJavaScript
	case Symbol:
		return kindSymbol
	case int32:
		return kindInt32
	case MongoTimestamp:
		return kindTimestamp
	case int64, int:
		return kindInt64
	case orderKey:
		return kindMaxKey
	default:
		return 0xFE
	}
}

func (val Value) String() string {
	return fmt.Sprintf("%v", val.v)
}
