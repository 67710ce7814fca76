package bson

import (
	"encoding/binary"
	"fmt"
	"math"
	"reflect"
	"time"
)

type encoder struct {
	out []byte
}

// addDoc encodes v (a map, struct, D, or Getter) as a top-level BSON
// document: length prefix, elements, trailing NUL.
func (e *encoder) addDoc(v reflect.Value) {
	for v.Kind() == reflect.Ptr {
		if v.IsNil() {
			e.addBytes(0x05, 0x00, 0x00, 0x00, 0x00)
			return
		}
		v = v.Elem()
	}

	if getter, ok := asGetter(v); ok {
		bson, err := getter.GetBSON()
		if err != nil {
			panic(err)
		}
		e.addDoc(reflect.ValueOf(bson))
		return
	}

	start := e.reserveInt32()

	switch v.Kind() {
	case reflect.Map:
		e.addMap(v)
	case reflect.Struct:
		e.addStruct(v)
	case reflect.Array, reflect.Slice:
		e.addSliceAsDoc(v)
	default:
		panic(fmt.Sprintf("bson: cannot marshal %s as a document", v.Type()))
	}

	e.out = append(e.out, 0)
	e.setInt32(start, int32(len(e.out)-start))
}

func asGetter(v reflect.Value) (Getter, bool) {
	if !v.IsValid() {
		return nil, false
	}
	if v.CanInterface() {
		if g, ok := v.Interface().(Getter); ok {
			return g, true
		}
	}
	if v.CanAddr() && v.Addr().CanInterface() {
		if g, ok := v.Addr().Interface().(Getter); ok {
			return g, true
		}
	}
	return nil, false
}

func (e *encoder) addMap(v reflect.Value) {
	if d, ok := v.Interface().(D); ok {
		for _, elem := range d {
			e.addElem(elem.Name, reflect.ValueOf(elem.Value))
		}
		return
	}
	keys := v.MapKeys()
	for _, k := range keys {
		e.addElem(fmt.Sprint(k.Interface()), v.MapIndex(k))
	}
}

func (e *encoder) addSliceAsDoc(v reflect.Value) {
	if d, ok := v.Interface().(D); ok {
		for _, elem := range d {
			e.addElem(elem.Name, reflect.ValueOf(elem.Value))
		}
		return
	}
	n := v.Len()
	for i := 0; i < n; i++ {
		e.addElem(itoa(i), v.Index(i))
	}
}

func (e *encoder) addStruct(v reflect.Value) {
	sinfo, err := getStructInfo(v.Type())
	if err != nil {
		panic(err)
	}
	for _, finfo := range sinfo.FieldsList {
		fv := fieldByIndexChain(v, finfo)
		if !fv.IsValid() {
			continue
		}
		if finfo.OmitEmpty && isZero(fv) {
			continue
		}
		if finfo.MinSize {
			fv = minimizeInt(fv)
		}
		e.addElem(finfo.Key, fv)
	}
}

func fieldByIndexChain(v reflect.Value, finfo fieldInfo) reflect.Value {
	if finfo.Inline == nil {
		return v.Field(finfo.Num)
	}
	for _, i := range finfo.Inline {
		if v.Kind() == reflect.Ptr {
			if v.IsNil() {
				return reflect.Value{}
			}
			v = v.Elem()
		}
		v = v.Field(i)
	}
	return v
}

func minimizeInt(v reflect.Value) reflect.Value {
	if v.Kind() == reflect.Int64 {
		n := v.Int()
		if n >= math.MinInt32 && n <= math.MaxInt32 {
			return reflect.ValueOf(int32(n))
		}
	}
	return v
}

func itoa(i int) string {
	if i == 0 {
		return "0"
	}
	neg := i < 0
	if neg {
		i = -i
	}
	var buf [20]byte
	pos := len(buf)
	for i > 0 {
		pos--
		buf[pos] = byte('0' + i%10)
		i /= 10
	}
	if neg {
		pos--
		buf[pos] = '-'
	}
	return string(buf[pos:])
}

// addElem appends a single <type><cstring key><payload> element.
func (e *encoder) addElem(key string, v reflect.Value) {
	if !v.IsValid() {
		e.out = append(e.out, kindNull)
		e.addCString(key)
		return
	}

	if g, ok := asGetter(v); ok {
		bv, err := g.GetBSON()
		if err != nil {
			panic(err)
		}
		e.addElem(key, reflect.ValueOf(bv))
		return
	}

	switch vi := v.Interface().(type) {
	case Raw:
		if len(vi.Data) == 0 && vi.Kind == 0 {
			e.out = append(e.out, kindNull)
			e.addCString(key)
			return
		}
		e.out = append(e.out, vi.Kind)
		e.addCString(key)
		e.out = append(e.out, vi.Data...)
		return
	case ObjectId:
		e.out = append(e.out, kindObjectId)
		e.addCString(key)
		e.out = append(e.out, []byte(vi)...)
		return
	case Symbol:
		e.out = append(e.out, kindSymbol)
		e.addCString(key)
		e.addStr(string(vi))
		return
	case Binary:
		e.out = append(e.out, kindBinary)
		e.addCString(key)
		e.addBinary(vi.Kind, vi.Data)
		return
	case []byte:
		e.out = append(e.out, kindBinary)
		e.addCString(key)
		e.addBinary(BinaryGeneric, vi)
		return
	case RegEx:
		e.out = append(e.out, kindRegEx)
		e.addCString(key)
		e.addCString(vi.Pattern)
		e.addCString(vi.Options)
		return
	case JavaScript:
		if vi.Scope == nil {
			e.out = append(e.out, kindJavaScript)
			e.addCString(key)
			e.addStr(vi.Code)
			return
		}
		e.out = append(e.out, kindJavaScriptScope)
		e.addCString(key)
		start := e.reserveInt32()
		e.addStr(vi.Code)
		e.addDoc(reflect.ValueOf(vi.Scope))
		e.setInt32(start, int32(len(e.out)-start))
		return
	case DBPointer:
		e.out = append(e.out, kindDBPointer)
		e.addCString(key)
		e.addStr(vi.Namespace)
		e.out = append(e.out, []byte(vi.Id)...)
		return
	case MongoTimestamp:
		e.out = append(e.out, kindTimestamp)
		e.addCString(key)
		e.addInt64(int64(vi))
		return
	case undefinedType:
		e.out = append(e.out, kindUndefined)
		e.addCString(key)
		return
	case orderKey:
		if vi == MinKey {
			e.out = append(e.out, kindMinKey)
		} else {
			e.out = append(e.out, kindMaxKey)
		}
		e.addCString(key)
		return
	case time.Time:
		e.out = append(e.out, kindDatetime)
		e.addCString(key)
		if vi.IsZero() {
			e.addInt64(0)
		} else {
			e.addInt64(vi.UnixNano() / int64(time.Millisecond))
		}
		return
	}

	switch v.Kind() {
	case reflect.Interface, reflect.Ptr:
		if v.IsNil() {
			e.out = append(e.out, kindNull)
			e.addCString(key)
			return
		}
		e.addElem(key, v.Elem())
	case reflect.String:
		e.out = append(e.out, kindString)
		e.addCString(key)
		e.addStr(v.String())
	case reflect.Bool:
		e.out = append(e.out, kindBool)
		e.addCString(key)
		if v.Bool() {
			e.out = append(e.out, 1)
		} else {
			e.out = append(e.out, 0)
		}
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32:
		e.out = append(e.out, kindInt32)
		e.addCString(key)
		e.addInt32(int32(v.Int()))
	case reflect.Int64:
		e.out = append(e.out, kindInt64)
		e.addCString(key)
		e.addInt64(v.Int())
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32:
		e.out = append(e.out, kindInt32)
		e.addCString(key)
		e.addInt32(int32(v.Uint()))
	case reflect.Uint64:
		e.out = append(e.out, kindInt64)
		e.addCString(key)
		e.addInt64(int64(v.Uint()))
	case reflect.Float32, reflect.Float64:
		e.out = append(e.out, kindFloat)
		e.addCString(key)
		e.addFloat(v.Float())
	case reflect.Map:
		e.out = append(e.out, kindDocument)
		e.addCString(key)
		e.addDoc(v)
	case reflect.Struct:
		e.out = append(e.out, kindDocument)
		e.addCString(key)
		e.addDoc(v)
	case reflect.Slice, reflect.Array:
		if v.Type().Elem().Kind() == reflect.Uint8 {
			e.out = append(e.out, kindBinary)
			e.addCString(key)
			e.addBinary(BinaryGeneric, v.Bytes())
			return
		}
		e.out = append(e.out, kindArray)
		e.addCString(key)
		e.addDoc(v)
	default:
		panic(fmt.Sprintf("bson: cannot marshal field %q of kind %s", key, v.Kind()))
	}
}

func (e *encoder) addCString(s string) {
	e.out = append(e.out, s...)
	e.out = append(e.out, 0)
}

func (e *encoder) addStr(s string) {
	e.addInt32(int32(len(s) + 1))
	e.out = append(e.out, s...)
	e.out = append(e.out, 0)
}

func (e *encoder) addBinary(kind byte, data []byte) {
	if kind == BinaryOld {
		e.addInt32(int32(len(data) + 4))
		e.out = append(e.out, kind)
		e.addInt32(int32(len(data)))
		e.out = append(e.out, data...)
		return
	}
	e.addInt32(int32(len(data)))
	e.out = append(e.out, kind)
	e.out = append(e.out, data...)
}

func (e *encoder) addInt32(i int32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], uint32(i))
	e.out = append(e.out, b[:]...)
}

func (e *encoder) addInt64(i int64) {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], uint64(i))
	e.out = append(e.out, b[:]...)
}

func (e *encoder) addFloat(f float64) {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], math.Float64bits(f))
	e.out = append(e.out, b[:]...)
}

func (e *encoder) reserveInt32() int {
	start := len(e.out)
	e.out = append(e.out, 0, 0, 0, 0)
	return start
}

func (e *encoder) setInt32(start int, i int32) {
	binary.LittleEndian.PutUint32(e.out[start:], uint32(i))
}

func (e *encoder) addBytes(b ...byte) {
	e.out = append(e.out, b...)
}
