package mgo

import (
	"bytes"
	"encoding/binary"
	"io"

	"github.com/golang/snappy"
	"github.com/klauspost/compress/zlib"
)

// Compressor identifies one of the negotiable OP_COMPRESSED payload codecs.
type Compressor int

const (
	compressorNone Compressor = iota
	compressorSnappy
	compressorZlib
)

// id returns the wire byte identifying the compressor inside an
// OP_COMPRESSED message, per the MongoDB wire protocol's compression
// extension.
func (c Compressor) id() byte {
	switch c {
	case compressorSnappy:
		return 1
	case compressorZlib:
		return 2
	default:
		return 0
	}
}

// negotiateCompressor picks the first compressor this client implements
// from an isMaster reply's "compression" array, preferring snappy.
func negotiateCompressor(offered []string) Compressor {
	has := func(name string) bool {
		for _, o := range offered {
			if o == name {
				return true
			}
		}
		return false
	}
	switch {
	case has("snappy"):
		return compressorSnappy
	case has("zlib"):
		return compressorZlib
	default:
		return compressorNone
	}
}

// wrapCompressed takes a fully framed message (header + body, opCode
// already set in the header) and re-wraps it as OP_COMPRESSED when c is not
// compressorNone.
func wrapCompressed(msg []byte, c Compressor) ([]byte, error) {
	if c == compressorNone {
		return msg, nil
	}
	h := decodeHeader(msg[:16])
	originalOpcode := h.OpCode
	uncompressed := msg[16:]

	compressed, err := compressBytes(uncompressed, c)
	if err != nil {
		return nil, err
	}

	body := make([]byte, 0, 9+len(compressed))
	var tmp4 [4]byte
	binary.LittleEndian.PutUint32(tmp4[:], uint32(originalOpcode))
	body = append(body, tmp4[:]...)
	binary.LittleEndian.PutUint32(tmp4[:], uint32(len(uncompressed)))
	body = append(body, tmp4[:]...)
	body = append(body, c.id())
	body = append(body, compressed...)

	return frame(h.RequestID, h.ResponseTo, opCompressed, body), nil
}

// unwrapCompressed decodes an OP_COMPRESSED body (everything after the
// 16-byte header) back into the original opcode and message body.
func unwrapCompressed(body []byte) (originalOpcode int32, payload []byte, err error) {
	if len(body) < 9 {
		return 0, nil, &ProtocolError{Msg: "OP_COMPRESSED body too short"}
	}
	originalOpcode = int32(binary.LittleEndian.Uint32(body[0:4]))
	uncompressedSize := int32(binary.LittleEndian.Uint32(body[4:8]))
	compressorID := body[8]
	compressed := body[9:]

	var c Compressor
	switch compressorID {
	case 1:
		c = compressorSnappy
	case 2:
		c = compressorZlib
	case 0:
		c = compressorNone
	default:
		return 0, nil, &ProtocolError{Msg: "unknown OP_COMPRESSED compressor id"}
	}

	payload, err = decompressBytes(compressed, c, int(uncompressedSize))
	if err != nil {
		return 0, nil, err
	}
	return originalOpcode, payload, nil
}

func compressBytes(data []byte, c Compressor) ([]byte, error) {
	switch c {
	case compressorSnappy:
		return snappy.Encode(nil, data), nil
	case compressorZlib:
		var buf bytes.Buffer
		w := zlib.NewWriter(&buf)
		if _, err := w.Write(data); err != nil {
			return nil, err
		}
		if err := w.Close(); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	default:
		return data, nil
	}
}

func decompressBytes(data []byte, c Compressor, expectedSize int) ([]byte, error) {
	switch c {
	case compressorSnappy:
		out := make([]byte, 0, expectedSize)
		return snappy.Decode(out, data)
	case compressorZlib:
		r, err := zlib.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, err
		}
		defer r.Close()
		out := make([]byte, 0, expectedSize)
		buf := bytes.NewBuffer(out)
		if _, err := io.Copy(buf, r); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	default:
		return data, nil
	}
}
