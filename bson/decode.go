package bson

import (
	"encoding/binary"
	"fmt"
	"math"
	"reflect"
	"time"
)

type decoder struct {
	in []byte
	i  int
}

func (d *decoder) fatal(msg string) {
	panic(internalPanic(msg))
}

func (d *decoder) readByte() byte {
	if d.i >= len(d.in) {
		d.fatal("bson: document truncated")
	}
	b := d.in[d.i]
	d.i++
	return b
}

func (d *decoder) readBytes(n int) []byte {
	if n < 0 || d.i+n > len(d.in) {
		d.fatal("bson: document truncated")
	}
	b := d.in[d.i : d.i+n]
	d.i += n
	return b
}

func (d *decoder) readInt32() int32 {
	return int32(binary.LittleEndian.Uint32(d.readBytes(4)))
}

func (d *decoder) readInt64() int64 {
	return int64(binary.LittleEndian.Uint64(d.readBytes(8)))
}

func (d *decoder) readFloat() float64 {
	return math.Float64frombits(binary.LittleEndian.Uint64(d.readBytes(8)))
}

func (d *decoder) readCString() string {
	start := d.i
	for {
		if d.i >= len(d.in) {
			d.fatal("bson: unterminated cstring")
		}
		if d.in[d.i] == 0 {
			s := string(d.in[start:d.i])
			d.i++
			return s
		}
		d.i++
	}
}

func (d *decoder) readStr() string {
	n := int(d.readInt32())
	if n <= 0 {
		d.fatal("bson: invalid string length")
	}
	b := d.readBytes(n)
	if b[n-1] != 0 {
		d.fatal("bson: string missing trailing NUL")
	}
	return string(b[:n-1])
}

// peekDocLen peeks the 4-byte length prefix of a sub-document starting at
// the decoder's current position, without consuming it.
func (d *decoder) peekDocLen() int32 {
	if d.i+4 > len(d.in) {
		d.fatal("bson: document truncated")
	}
	return int32(binary.LittleEndian.Uint32(d.in[d.i : d.i+4]))
}

// readDocTo decodes a whole top-level document (length prefix + elements +
// trailing NUL) into v, which must be a map or addressable struct.
func (d *decoder) readDocTo(v reflect.Value) {
	for v.Kind() == reflect.Ptr {
		if v.IsNil() {
			v.Set(reflect.New(v.Type().Elem()))
		}
		v = v.Elem()
	}

	end := d.i + int(d.peekDocLen())
	d.i += 4

	switch v.Kind() {
	case reflect.Map:
		d.readDocIntoMap(v, end)
	case reflect.Struct:
		d.readDocIntoStruct(v, end)
	case reflect.Slice, reflect.Array:
		if _, ok := tryD(v); ok {
			d.readDocIntoStruct(v, end)
		} else {
			d.readDocIntoSlice(v, end)
		}
	case reflect.Interface:
		m := reflect.ValueOf(make(M))
		d.readDocIntoMap(m, end)
		v.Set(m)
	default:
		d.fatal(fmt.Sprintf("bson: cannot decode document into %s", v.Type()))
	}

	if d.i >= len(d.in) || d.in[d.i] != 0 {
		d.fatal("bson: document missing trailing NUL")
	}
	d.i++
}

func (d *decoder) readDocIntoMap(v reflect.Value, end int) {
	if v.IsNil() {
		v.Set(reflect.MakeMap(v.Type()))
	}
	elemType := v.Type().Elem()
	for d.i < end-1 {
		kind := d.readByte()
		key := d.readCString()
		ev := reflect.New(elemType).Elem()
		if !d.readElemTo(ev, kind) {
			continue
		}
		v.SetMapIndex(reflect.ValueOf(key), ev)
	}
}

func (d *decoder) readDocIntoSlice(v reflect.Value, end int) {
	elemType := v.Type().Elem()
	var elems []reflect.Value
	for d.i < end-1 {
		kind := d.readByte()
		d.readCString() // array index key, discarded
		ev := reflect.New(elemType).Elem()
		if d.readElemTo(ev, kind) {
			elems = append(elems, ev)
		}
	}
	slice := reflect.MakeSlice(v.Type(), len(elems), len(elems))
	for i, ev := range elems {
		slice.Index(i).Set(ev)
	}
	v.Set(slice)
}

func (d *decoder) readDocIntoStruct(v reflect.Value, end int) {
	if dPtr, ok := tryD(v); ok {
		for d.i < end-1 {
			kind := d.readByte()
			key := d.readCString()
			var val interface{}
			ev := reflect.ValueOf(&val).Elem()
			d.readElemTo(ev, kind)
			*dPtr = append(*dPtr, DocElem{Name: key, Value: val})
		}
		return
	}

	sinfo, err := getStructInfo(v.Type())
	if err != nil {
		d.fatal(err.Error())
	}
	seen := make(map[string]bool, len(sinfo.FieldsMap))
	for d.i < end-1 {
		kind := d.readByte()
		key := d.readCString()
		finfo, ok := sinfo.FieldsMap[key]
		if !ok {
			d.skipElem(kind)
			continue
		}
		seen[key] = true
		fv := fieldByIndexChainAlloc(v, finfo)
		if setterDecode(fv, kind, d) {
			continue
		}
		d.readElemTo(fv, kind)
	}
	for _, finfo := range sinfo.FieldsList {
		if !finfo.OmitEmpty && !seen[finfo.Key] {
			d.fatal((&MissingKeyError{v.Type(), finfo.Key}).Error())
		}
	}
}

func tryD(v reflect.Value) (*D, bool) {
	if v.Type() == reflect.TypeOf(D{}) && v.CanAddr() {
		return v.Addr().Interface().(*D), true
	}
	return nil, false
}

func fieldByIndexChainAlloc(v reflect.Value, finfo fieldInfo) reflect.Value {
	if finfo.Inline == nil {
		return v.Field(finfo.Num)
	}
	for n, i := range finfo.Inline {
		if v.Kind() == reflect.Ptr {
			if v.IsNil() {
				v.Set(reflect.New(v.Type().Elem()))
			}
			v = v.Elem()
		}
		v = v.Field(i)
		_ = n
	}
	return v
}

func setterDecode(v reflect.Value, kind byte, d *decoder) bool {
	if !v.CanAddr() {
		return false
	}
	setter, ok := v.Addr().Interface().(Setter)
	if !ok {
		return false
	}
	raw := d.readRaw(kind)
	if err := setter.SetBSON(raw); err != nil {
		if _, ok := err.(*TypeError); !ok {
			d.fatal(err.Error())
		}
	}
	return true
}

// readRaw reads the payload bytes for an element of the given kind,
// without interpreting them, and returns them as a Raw.
func (d *decoder) readRaw(kind byte) Raw {
	start := d.i
	d.skipElem(kind)
	return Raw{Kind: kind, Data: d.in[start:d.i]}
}

func (d *decoder) skipElem(kind byte) {
	switch kind {
	case kindFloat, kindDatetime, kindInt64, kindTimestamp:
		d.readBytes(8)
	case kindString, kindJavaScript, kindSymbol:
		d.readStr()
	case kindDocument, kindArray:
		n := int(d.peekDocLen())
		d.readBytes(n)
	case kindBinary:
		n := int(d.readInt32())
		d.readByte()
		d.readBytes(n)
	case kindObjectId:
		d.readBytes(12)
	case kindBool:
		d.readByte()
	case kindNull, kindUndefined, kindMinKey, kindMaxKey:
	case kindRegEx:
		d.readCString()
		d.readCString()
	case kindDBPointer:
		d.readStr()
		d.readBytes(12)
	case kindJavaScriptScope:
		n := int(d.readInt32())
		d.readBytes(n - 4)
	case kindInt32:
		d.readBytes(4)
	default:
		d.fatal(fmt.Sprintf("bson: unknown element kind 0x%02x", kind))
	}
}

// readElemTo decodes a single element of the given kind into v. It returns
// false (without consuming more than the element itself) when the target
// type cannot represent the kind and the element should be skipped rather
// than aborting the whole decode, matching Setter's TypeError contract.
func (d *decoder) readElemTo(v reflect.Value, kind byte) bool {
	if v.Kind() == reflect.Ptr {
		if v.IsNil() {
			v.Set(reflect.New(v.Type().Elem()))
		}
		return d.readElemTo(v.Elem(), kind)
	}

	if v.Kind() == reflect.Interface {
		val := d.decodeGeneric(kind)
		if val == nil {
			v.Set(reflect.Zero(v.Type()))
		} else {
			v.Set(reflect.ValueOf(val))
		}
		return true
	}

	switch kind {
	case kindFloat:
		f := d.readFloat()
		return setNumeric(v, f)
	case kindString, kindSymbol:
		s := d.readStr()
		if v.Kind() == reflect.String {
			v.SetString(s)
			return true
		}
		return false
	case kindDocument:
		d.readDocTo(v)
		return true
	case kindArray:
		d.readDocTo(v)
		return true
	case kindBinary:
		n := int(d.readInt32())
		subtype := d.readByte()
		var data []byte
		if subtype == BinaryOld {
			inner := int(d.readInt32())
			data = append([]byte(nil), d.readBytes(inner)...)
		} else {
			data = append([]byte(nil), d.readBytes(n)...)
		}
		if v.Kind() == reflect.Slice && v.Type().Elem().Kind() == reflect.Uint8 {
			v.SetBytes(data)
			return true
		}
		if v.Type() == reflect.TypeOf(Binary{}) {
			v.Set(reflect.ValueOf(Binary{Kind: subtype, Data: data}))
			return true
		}
		return false
	case kindObjectId:
		b := append([]byte(nil), d.readBytes(12)...)
		if v.Type() == reflect.TypeOf(ObjectId("")) {
			v.Set(reflect.ValueOf(ObjectId(b)))
			return true
		}
		return false
	case kindBool:
		b := d.readByte() != 0
		if v.Kind() == reflect.Bool {
			v.SetBool(b)
			return true
		}
		return false
	case kindDatetime:
		ms := d.readInt64()
		t := time.Unix(ms/1000, (ms%1000)*int64(time.Millisecond)).UTC()
		if v.Type() == reflect.TypeOf(time.Time{}) {
			v.Set(reflect.ValueOf(t))
			return true
		}
		return false
	case kindNull, kindUndefined:
		return true
	case kindRegEx:
		re := RegEx{Pattern: d.readCString(), Options: d.readCString()}
		if v.Type() == reflect.TypeOf(RegEx{}) {
			v.Set(reflect.ValueOf(re))
			return true
		}
		return false
	case kindDBPointer:
		ns := d.readStr()
		id := ObjectId(append([]byte(nil), d.readBytes(12)...))
		if v.Type() == reflect.TypeOf(DBPointer{}) {
			v.Set(reflect.ValueOf(DBPointer{Namespace: ns, Id: id}))
			return true
		}
		return false
	case kindJavaScript:
		code := d.readStr()
		if v.Type() == reflect.TypeOf(JavaScript{}) {
			v.Set(reflect.ValueOf(JavaScript{Code: code}))
			return true
		}
		return false
	case kindJavaScriptScope:
		start := d.i
		total := int(d.readInt32())
		code := d.readStr()
		var scope M
		d.readDocTo(reflect.ValueOf(&scope).Elem())
		_ = total
		if v.Type() == reflect.TypeOf(JavaScript{}) {
			v.Set(reflect.ValueOf(JavaScript{Code: code, Scope: scope}))
			return true
		}
		d.i = start + total
		return false
	case kindInt32:
		n := d.readInt32()
		return setNumeric(v, float64(n))
	case kindTimestamp:
		n := d.readInt64()
		if v.Type() == reflect.TypeOf(MongoTimestamp(0)) {
			v.Set(reflect.ValueOf(MongoTimestamp(n)))
			return true
		}
		return setNumeric(v, float64(n))
	case kindInt64:
		n := d.readInt64()
		return setNumeric(v, float64(n))
	case kindMinKey:
		if v.Type() == reflect.TypeOf(MinKey) {
			v.Set(reflect.ValueOf(MinKey))
			return true
		}
		return false
	case kindMaxKey:
		if v.Type() == reflect.TypeOf(MaxKey) {
			v.Set(reflect.ValueOf(MaxKey))
			return true
		}
		return false
	default:
		d.fatal(fmt.Sprintf("bson: unknown element kind 0x%02x", kind))
		return false
	}
}

func setNumeric(v reflect.Value, f float64) bool {
	switch v.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		v.SetInt(int64(f))
		return true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		v.SetUint(uint64(f))
		return true
	case reflect.Float32, reflect.Float64:
		v.SetFloat(f)
		return true
	case reflect.Bool:
		v.SetBool(f != 0)
		return true
	}
	return false
}

// decodeGeneric decodes a single element of kind into the natural Go type
// for dynamic (interface{}-typed) decoding, the representation used by M
// and by Value's typed accessors.
func (d *decoder) decodeGeneric(kind byte) interface{} {
	switch kind {
	case kindFloat:
		return d.readFloat()
	case kindString, kindSymbol:
		return d.readStr()
	case kindDocument:
		var m M
		d.readDocTo(reflect.ValueOf(&m).Elem())
		return m
	case kindArray:
		var a []interface{}
		d.readDocTo(reflect.ValueOf(&a).Elem())
		return a
	case kindBinary:
		n := int(d.readInt32())
		subtype := d.readByte()
		if subtype == BinaryOld {
			inner := int(d.readInt32())
			data := append([]byte(nil), d.readBytes(inner)...)
			return Binary{Kind: subtype, Data: data}
		}
		data := append([]byte(nil), d.readBytes(n)...)
		if subtype == BinaryGeneric {
			return data
		}
		return Binary{Kind: subtype, Data: data}
	case kindUndefined:
		return Undefined
	case kindObjectId:
		return ObjectId(append([]byte(nil), d.readBytes(12)...))
	case kindBool:
		return d.readByte() != 0
	case kindDatetime:
		ms := d.readInt64()
		return time.Unix(ms/1000, (ms%1000)*int64(time.Millisecond)).UTC()
	case kindNull:
		return nil
	case kindRegEx:
		return RegEx{Pattern: d.readCString(), Options: d.readCString()}
	case kindDBPointer:
		ns := d.readStr()
		id := ObjectId(append([]byte(nil), d.readBytes(12)...))
		return DBPointer{Namespace: ns, Id: id}
	case kindJavaScript:
		return JavaScript{Code: d.readStr()}
	case kindJavaScriptScope:
		total := int(d.readInt32())
		start := d.i
		code := d.readStr()
		var scope M
		d.readDocTo(reflect.ValueOf(&scope).Elem())
		d.i = start + (total - 4)
		return JavaScript{Code: code, Scope: scope}
	case kindInt32:
		return d.readInt32()
	case kindTimestamp:
		return MongoTimestamp(d.readInt64())
	case kindInt64:
		return d.readInt64()
	case kindMinKey:
		return MinKey
	case kindMaxKey:
		return MaxKey
	default:
		d.fatal(fmt.Sprintf("bson: unknown element kind 0x%02x", kind))
		return nil
	}
}
