package bson

// BSON element type bytes, per the BSON 1.1 specification.
const (
	kindFloat           = 0x01
	kindString          = 0x02
	kindDocument        = 0x03
	kindArray           = 0x04
	kindBinary          = 0x05
	kindUndefined       = 0x06 // deprecated
	kindObjectId        = 0x07
	kindBool            = 0x08
	kindDatetime        = 0x09
	kindNull            = 0x0A
	kindRegEx           = 0x0B
	kindDBPointer       = 0x0C // deprecated
	kindJavaScript      = 0x0D
	kindSymbol          = 0x0E // deprecated
	kindJavaScriptScope = 0x0F
	kindInt32           = 0x10
	kindTimestamp       = 0x11
	kindInt64           = 0x12
	kindMinKey          = 0xFF
	kindMaxKey          = 0x7F
)

var kindNames = map[byte]string{
	kindFloat:           "Double",
	kindString:          "StringUTF8",
	kindDocument:        "Document",
	kindArray:           "Array",
	kindBinary:          "Binary",
	kindUndefined:       "Undefined",
	kindObjectId:        "ObjectId",
	kindBool:            "Bool",
	kindDatetime:        "TimeUTC",
	kindNull:            "Null",
	kindRegEx:           "Regexp",
	kindDBPointer:       "DBPointer",
	kindJavaScript:      "JSCode",
	kindSymbol:          "Symbol",
	kindJavaScriptScope: "JSCodeWithScope",
	kindInt32:           "Int32",
	kindTimestamp:       "Timestamp",
	kindInt64:           "Int64",
	kindMinKey:          "MinKey",
	kindMaxKey:          "MaxKey",
}
