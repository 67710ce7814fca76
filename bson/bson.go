// Package bson implements the BSON value model and binary codec used by the
// mgo wire client: a tagged-union document value, a length-prefixed binary
// encoding compatible with BSON 1.1, and a struct/map object mapper driven
// by `bson` field tags.
//
// The package mirrors the shape of the classic globalsign/mgo bson package:
// M and D for dynamic document construction, Raw for partial decoding, and
// Marshal/Unmarshal for the struct mapper.
package bson

import (
	"crypto/md5"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"reflect"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// Getter is implemented by values that want to control their own
// marshalling: GetBSON's return value is marshalled in their place.
type Getter interface {
	GetBSON() (interface{}, error)
}

// Setter is implemented by values that want to control their own
// unmarshalling: SetBSON receives the raw element instead of the usual
// reflection-driven decode, and a TypeError return causes the value to be
// skipped rather than aborting the whole decode.
type Setter interface {
	SetBSON(raw Raw) error
}

// M is an unordered document: a plain map from field name to value. Key
// order is not preserved across a M value's lifetime; use D when order
// matters (index specs, command documents, sort documents).
type M map[string]interface{}

// D is an ordered document. Duplicate keys are permitted and survive a
// marshal/unmarshal round trip, matching the wire format's own lack of a
// uniqueness constraint on document keys.
type D []DocElem

// DocElem is one (key, value) pair of a D.
type DocElem struct {
	Name  string
	Value interface{}
}

// Map converts d into an M, losing order and collapsing duplicate keys
// (last write wins).
func (d D) Map() M {
	m := make(M, len(d))
	for _, e := range d {
		m[e.Name] = e.Value
	}
	return m
}

// Raw holds an undecoded BSON element: its type byte and the raw payload
// bytes (not including the type byte or the element's key). Raw lets
// callers defer decoding part of a document, or hand back the wire bytes of
// an already-parsed sub-value.
type Raw struct {
	Kind byte
	Data []byte
}

// Unmarshal decodes raw into out, which must be a map or a pointer. Returns
// a *TypeError if raw's Kind is not compatible with out's type.
func (raw Raw) Unmarshal(out interface{}) (err error) {
	defer handleErr(&err)
	v := reflect.ValueOf(out)
	switch v.Kind() {
	case reflect.Ptr:
		if v.IsNil() {
			return errors.New("bson: Raw Unmarshal needs a non-nil pointer")
		}
		v = v.Elem()
		fallthrough
	case reflect.Map:
		d := &decoder{in: raw.Data}
		if !d.readElemTo(v, raw.Kind) {
			return &TypeError{v.Type(), raw.Kind}
		}
	default:
		return errors.New("bson: Raw Unmarshal needs a map or a pointer")
	}
	return nil
}

// Symbol is the BSON "symbol" type: a legacy cousin of string kept only for
// wire round-tripping.
type Symbol string

// MongoTimestamp is the BSON internal timestamp type: a 32-bit seconds
// component and a 32-bit ordinal, packed into a single little-endian int64
// on the wire.
type MongoTimestamp int64

// Timestamp splits a MongoTimestamp into its increment and seconds parts.
func (t MongoTimestamp) Timestamp() (seconds, increment uint32) {
	u := uint64(t)
	return uint32(u >> 32), uint32(u)
}

// NewMongoTimestamp packs a seconds/increment pair into a MongoTimestamp.
func NewMongoTimestamp(seconds, increment uint32) MongoTimestamp {
	return MongoTimestamp(uint64(seconds)<<32 | uint64(increment))
}

type orderKey int64

// MaxKey compares higher than every other BSON value.
var MaxKey = orderKey(1<<63 - 1)

// MinKey compares lower than every other BSON value.
var MinKey = orderKey(-1 << 63)

type undefinedType struct{}

// Undefined is the deprecated BSON "undefined" value.
var Undefined undefinedType

// Binary is a BSON binary value with its subtype byte. When decoding into
// an interface{} (an M, for instance), subtype 0x00 (Generic) comes back as
// Go's []byte instead, so a Binary seen there always carries a non-generic
// subtype; a field typed Binary receives every subtype, Generic included.
type Binary struct {
	Kind byte
	Data []byte
}

// Binary subtypes, per the BSON spec.
const (
	BinaryGeneric     byte = 0x00
	BinaryFunction    byte = 0x01
	BinaryOld         byte = 0x02
	BinaryUUIDOld     byte = 0x03
	BinaryUUID        byte = 0x04
	BinaryMD5         byte = 0x05
	BinaryUserDefined byte = 0x80
)

// RegEx is a BSON regular expression: a pattern and a sorted options
// string (the wire format does not verify the options before encoding).
type RegEx struct {
	Pattern string
	Options string
}

// JavaScript holds BSON JavaScript code, with an optional Scope document
// for the JSCodeWithScope variant.
type JavaScript struct {
	Code  string
	Scope interface{}
}

// DBPointer is the deprecated BSON DBRef-like type: a namespace and an
// ObjectId.
type DBPointer struct {
	Namespace string
	Id        ObjectId
}

const initialBufferSize = 64

func handleErr(err *error) {
	if r := recover(); r != nil {
		if _, ok := r.(runtime.Error); ok {
			panic(r)
		}
		if e, ok := r.(internalPanic); ok {
			*err = errors.New(string(e))
			return
		}
		if e, ok := r.(error); ok {
			*err = e
			return
		}
		if s, ok := r.(string); ok {
			*err = errors.New(s)
			return
		}
		panic(r)
	}
}

type internalPanic string

// Marshal serializes in, which must be a map, a struct, or a value
// implementing Getter, into its BSON binary representation.
func Marshal(in interface{}) (out []byte, err error) {
	defer handleErr(&err)
	e := &encoder{out: make([]byte, 0, initialBufferSize)}
	e.addDoc(reflect.ValueOf(in))
	return e.out, nil
}

// Unmarshal decodes BSON data in into out, which must be a map, or a
// pointer to a struct, map, or Setter.
func Unmarshal(in []byte, out interface{}) (err error) {
	defer handleErr(&err)
	v := reflect.ValueOf(out)
	switch v.Kind() {
	case reflect.Ptr:
		if v.IsNil() {
			return errors.New("bson: Unmarshal needs a non-nil pointer")
		}
		if setter, ok := out.(Setter); ok {
			return setter.SetBSON(Raw{Kind: kindDocument, Data: in})
		}
		d := &decoder{in: in}
		d.readDocTo(v.Elem())
	case reflect.Map:
		d := &decoder{in: in}
		d.readDocTo(v)
	case reflect.Struct:
		return errors.New("bson: Unmarshal can't deal with struct values, use a pointer")
	default:
		return errors.New("bson: Unmarshal needs a map or a pointer to a struct")
	}
	return nil
}

// TypeError reports that a BSON kind could not be decoded into a Go type.
type TypeError struct {
	Type reflect.Type
	Kind byte
}

func (e *TypeError) Error() string {
	return fmt.Sprintf("bson: kind 0x%02x isn't compatible with type %s", e.Kind, e.Type.String())
}

// --------------------------------------------------------------------------
// ObjectId

// ObjectId is a 12-byte opaque identifier, conventionally stored under a
// document's "_id" key.
type ObjectId string

// ObjectIdHex returns the ObjectId represented by the given hex string. It
// panics if s is not a valid 24-character hex encoding of 12 bytes,
// mirroring the historical mgo API.
func ObjectIdHex(s string) ObjectId {
	d, err := hex.DecodeString(s)
	if err != nil || len(d) != 12 {
		panic(fmt.Sprintf("bson: invalid input to ObjectIdHex: %q", s))
	}
	return ObjectId(d)
}

// IsObjectIdHex returns whether s is a valid hex representation of an
// ObjectId.
func IsObjectIdHex(s string) bool {
	if len(s) != 24 {
		return false
	}
	_, err := hex.DecodeString(s)
	return err == nil
}

var objectIdCounter uint32
var machineId []byte
var machineIdOnce sync.Once

func initMachineId() {
	var sum [3]byte
	hostname, err := os.Hostname()
	if err != nil {
		var b [3]byte
		_, _ = md5.New().Write(b[:])
		machineId = b[:]
		return
	}
	hw := md5.New()
	hw.Write([]byte(hostname))
	copy(sum[:3], hw.Sum(nil))
	machineId = sum[:]
}

// NewObjectId returns a new, time-ordered, unique ObjectId.
func NewObjectId() ObjectId {
	machineIdOnce.Do(initMachineId)
	b := make([]byte, 12)
	binary.BigEndian.PutUint32(b, uint32(time.Now().Unix()))
	b[4], b[5], b[6] = machineId[0], machineId[1], machineId[2]
	pid := os.Getpid()
	b[7] = byte(pid >> 8)
	b[8] = byte(pid)
	i := atomic.AddUint32(&objectIdCounter, 1)
	b[9] = byte(i >> 16)
	b[10] = byte(i >> 8)
	b[11] = byte(i)
	return ObjectId(b)
}

// NewObjectIdWithTime returns an ObjectId whose timestamp component is t
// and whose other components are zeroed. It is only meaningful for range
// queries against the _id field, never for insertion.
func NewObjectIdWithTime(t time.Time) ObjectId {
	var b [12]byte
	binary.BigEndian.PutUint32(b[:4], uint32(t.Unix()))
	return ObjectId(string(b[:]))
}

func (id ObjectId) String() string {
	return fmt.Sprintf(`ObjectIdHex(%q)`, id.Hex())
}

// Hex returns the 24-character hex encoding of id.
func (id ObjectId) Hex() string {
	return hex.EncodeToString([]byte(id))
}

// MarshalJSON implements json.Marshaler.
func (id ObjectId) MarshalJSON() ([]byte, error) {
	return []byte(fmt.Sprintf(`"%s"`, id.Hex())), nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (id *ObjectId) UnmarshalJSON(data []byte) error {
	if len(data) != 26 || data[0] != '"' || data[25] != '"' {
		return fmt.Errorf("bson: invalid ObjectId in JSON: %s", data)
	}
	var buf [12]byte
	if _, err := hex.Decode(buf[:], data[1:25]); err != nil {
		return fmt.Errorf("bson: invalid ObjectId in JSON: %s (%s)", data, err)
	}
	*id = ObjectId(buf[:])
	return nil
}

// Valid reports whether id has the required 12-byte length.
func (id ObjectId) Valid() bool {
	return len(id) == 12
}

func (id ObjectId) byteSlice(start, end int) []byte {
	if len(id) != 12 {
		panic(fmt.Sprintf("bson: invalid ObjectId: %q", string(id)))
	}
	return []byte(string(id)[start:end])
}

// Time returns the creation-time component of id.
func (id ObjectId) Time() time.Time {
	secs := int64(binary.BigEndian.Uint32(id.byteSlice(0, 4)))
	return time.Unix(secs, 0)
}

// Machine returns the 3-byte machine-identifier component of id.
func (id ObjectId) Machine() []byte { return id.byteSlice(4, 7) }

// Pid returns the 2-byte process-identifier component of id.
func (id ObjectId) Pid() uint16 { return binary.BigEndian.Uint16(id.byteSlice(7, 9)) }

// Counter returns the 3-byte incrementing-counter component of id.
func (id ObjectId) Counter() int32 {
	b := id.byteSlice(9, 12)
	return int32(uint32(b[0])<<16 | uint32(b[1])<<8 | uint32(b[2]))
}

// --------------------------------------------------------------------------
// struct tag reflection, shared by encoder and decoder

type structInfo struct {
	FieldsMap  map[string]fieldInfo
	FieldsList []fieldInfo
	Zero       reflect.Value
}

type fieldInfo struct {
	Key       string
	Num       int
	OmitEmpty bool
	MinSize   bool
	Inline    []int
}

var structMap = make(map[reflect.Type]*structInfo)
var structMapMutex sync.RWMutex

func getStructInfo(st reflect.Type) (*structInfo, error) {
	structMapMutex.RLock()
	sinfo, found := structMap[st]
	structMapMutex.RUnlock()
	if found {
		return sinfo, nil
	}
	n := st.NumField()
	fieldsMap := make(map[string]fieldInfo)
	fieldsList := make([]fieldInfo, 0, n)
	for i := 0; i != n; i++ {
		field := st.Field(i)
		if field.PkgPath != "" && !field.Anonymous {
			continue
		}
		info := fieldInfo{Num: i}
		tag := field.Tag.Get("bson")
		if tag == "-" {
			continue
		}
		inline := false
		fields := strings.Split(tag, ",")
		if len(fields) > 1 {
			for _, flag := range fields[1:] {
				switch flag {
				case "omitempty":
					info.OmitEmpty = true
				case "minsize":
					info.MinSize = true
				case "inline":
					inline = true
				}
			}
			tag = fields[0]
		}
		if inline {
			ft := field.Type
			if ft.Kind() == reflect.Ptr {
				ft = ft.Elem()
			}
			if ft.Kind() != reflect.Struct {
				return nil, errors.New("bson: ,inline needs a struct value or pointer field")
			}
			sub, err := getStructInfo(ft)
			if err != nil {
				return nil, err
			}
			for _, finfo := range sub.FieldsList {
				if _, found := fieldsMap[finfo.Key]; found {
					return nil, fmt.Errorf("bson: duplicated key %q in struct %s", finfo.Key, st)
				}
				if finfo.Inline == nil {
					finfo.Inline = []int{i, finfo.Num}
				} else {
					finfo.Inline = append([]int{i}, finfo.Inline...)
				}
				fieldsMap[finfo.Key] = finfo
				fieldsList = append(fieldsList, finfo)
			}
			continue
		}
		if tag != "" {
			info.Key = tag
		} else {
			info.Key = strings.ToLower(field.Name)
		}
		if _, found := fieldsMap[info.Key]; found {
			return nil, fmt.Errorf("bson: duplicated key %q in struct %s", info.Key, st)
		}
		fieldsMap[info.Key] = info
		fieldsList = append(fieldsList, info)
	}
	sinfo = &structInfo{fieldsMap, fieldsList, reflect.New(st).Elem()}
	structMapMutex.Lock()
	structMap[st] = sinfo
	structMapMutex.Unlock()
	return sinfo, nil
}

// isZero reports whether v holds its type's zero value, for the purpose of
// the omitempty tag flag.
func isZero(v reflect.Value) bool {
	switch v.Kind() {
	case reflect.String:
		return v.Len() == 0
	case reflect.Ptr, reflect.Interface:
		return v.IsNil()
	case reflect.Slice, reflect.Map:
		return v.Len() == 0
	case reflect.Array:
		z := true
		for i := 0; i < v.Len(); i++ {
			z = z && isZero(v.Index(i))
		}
		return z
	case reflect.Struct:
		if t, ok := v.Interface().(time.Time); ok {
			return t.IsZero()
		}
		z := true
		for i := 0; i < v.NumField(); i++ {
			z = z && isZero(v.Field(i))
		}
		return z
	case reflect.Bool:
		return !v.Bool()
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return v.Int() == 0
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return v.Uint() == 0
	case reflect.Float32, reflect.Float64:
		return v.Float() == 0
	}
	return false
}

// MissingKeyError is returned by the object mapper when a struct field
// without ,omitempty is absent from the document being decoded.
type MissingKeyError struct {
	Type reflect.Type
	Key  string
}

func (e *MissingKeyError) Error() string {
	return fmt.Sprintf("bson: required key %q missing while decoding into %s", e.Key, e.Type)
}

// KindMismatchError is returned by the typed accessors (ToInt, ToString,
// ...) when a Value's kind isn't one of the kinds the accessor permits.
type KindMismatchError struct {
	Wanted string
	Kind   byte
}

func (e *KindMismatchError) Error() string {
	return fmt.Sprintf("bson: expected %s, found kind 0x%02x", e.Wanted, e.Kind)
}

func kindName(k byte) string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return "0x" + strconv.FormatInt(int64(k), 16)
}
