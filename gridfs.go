package mgo

import (
	"crypto/md5"
	"encoding/hex"
	"time"

	"github.com/coreward/mgo/bson"
)

const defaultChunkSize = 255 * 1024

// Create opens a new GridFile for writing under the given filename.
func (gfs *GridFS) Create(name string) (*GridFile, error) {
	return &GridFile{
		gfs:        gfs,
		id:         bson.NewObjectId(),
		name:       name,
		chunkSize:  defaultChunkSize,
		uploadDate: time.Now(),
		writing:    true,
		hasher:     md5.New(),
	}, nil
}

type gridFileDoc struct {
	Id          interface{} `bson:"_id"`
	Filename    string      `bson:"filename"`
	ChunkSize   int         `bson:"chunkSize"`
	Length      int64       `bson:"length"`
	Md5         string      `bson:"md5"`
	ContentType string      `bson:"contentType,omitempty"`
	Metadata    interface{} `bson:"metadata,omitempty"`
}

// Open looks up the most recently written file with the given name.
func (gfs *GridFS) Open(name string) (*GridFile, error) {
	var doc gridFileDoc
	err := gfs.Files.Find(bson.M{"filename": name}).Sort("-uploadDate").One(&doc)
	if err != nil {
		return nil, err
	}
	return gfs.openDoc(doc), nil
}

// OpenId looks up a file by its _id.
func (gfs *GridFS) OpenId(id interface{}) (*GridFile, error) {
	var doc gridFileDoc
	err := gfs.Files.FindId(id).One(&doc)
	if err != nil {
		return nil, err
	}
	return gfs.openDoc(doc), nil
}

func (gfs *GridFS) openDoc(doc gridFileDoc) *GridFile {
	return &GridFile{
		gfs:         gfs,
		id:          doc.Id,
		name:        doc.Filename,
		contentType: doc.ContentType,
		chunkSize:   doc.ChunkSize,
		length:      doc.Length,
		metadata:    doc.Metadata,
		md5sum:      doc.Md5,
		writing:     false,
	}
}

// Remove deletes every revision of the named file and its chunks.
func (gfs *GridFS) Remove(name string) error {
	var docs []bson.M
	if err := gfs.Files.Find(bson.M{"filename": name}).All(&docs); err != nil {
		return err
	}
	for _, d := range docs {
		if err := gfs.RemoveId(d["_id"]); err != nil {
			return err
		}
	}
	return nil
}

// RemoveId deletes one file revision and its chunks.
func (gfs *GridFS) RemoveId(id interface{}) error {
	if _, err := gfs.Chunks.RemoveAll(bson.M{"files_id": id}); err != nil {
		return err
	}
	return gfs.Files.RemoveId(id)
}

// SetContentType sets the MIME type recorded with the file on Close.
func (f *GridFile) SetContentType(ct string) {
	f.contentType = ct
}

// SetMetadata attaches arbitrary metadata recorded with the file on Close.
func (f *GridFile) SetMetadata(md interface{}) {
	f.metadata = md
}

// Id returns the file's _id.
func (f *GridFile) Id() interface{} { return f.id }

// Name returns the file's name.
func (f *GridFile) Name() string { return f.name }

// Size returns the file's total length in bytes.
func (f *GridFile) Size() int64 { return f.length }

// MD5 returns the file's content hex digest, valid once Close has run (for
// a writer) or once Open has loaded it (for a reader).
func (f *GridFile) MD5() string { return f.md5sum }

// Write buffers p and flushes full chunks to the chunks collection as they
// fill, accumulating the content digest incrementally.
func (f *GridFile) Write(p []byte) (int, error) {
	if !f.writing {
		return 0, &InvalidStateError{Msg: "write to a GridFile opened for reading"}
	}
	f.hasher.Write(p)
	f.buf = append(f.buf, p...)
	f.length += int64(len(p))

	for len(f.buf) >= f.chunkSize {
		chunk := f.buf[:f.chunkSize]
		if err := f.flushChunk(chunk); err != nil {
			return 0, err
		}
		f.buf = f.buf[f.chunkSize:]
	}
	return len(p), nil
}

func (f *GridFile) flushChunk(data []byte) error {
	cp := make([]byte, len(data))
	copy(cp, data)
	err := f.gfs.Chunks.Insert(bson.M{
		"files_id": f.id,
		"n":        f.chunk,
		"data":     cp,
	})
	if err != nil {
		return err
	}
	f.chunk++
	return nil
}

// Close flushes any buffered tail bytes, writes the file metadata document,
// and finalizes the MD5 digest.
func (f *GridFile) Close() error {
	if f.closed {
		return nil
	}
	f.closed = true
	if !f.writing {
		return nil
	}

	if len(f.buf) > 0 {
		if err := f.flushChunk(f.buf); err != nil {
			return err
		}
		f.buf = nil
	}

	f.md5sum = hex.EncodeToString(f.hasher.Sum(nil))

	doc := gridFileDoc{
		Id:          f.id,
		Filename:    f.name,
		ChunkSize:   f.chunkSize,
		Length:      f.length,
		Md5:         f.md5sum,
		ContentType: f.contentType,
		Metadata:    f.metadata,
	}
	m, err := normalizeDoc(doc)
	if err != nil {
		return err
	}
	m["uploadDate"] = f.uploadDate
	return f.gfs.Files.Insert(m)
}

// Read streams the file's chunks in order into p, fetching the next chunk
// only once the buffered one is used up. Past the last chunk it returns 0
// and a nil error.
func (f *GridFile) Read(p []byte) (int, error) {
	if f.writing {
		return 0, &InvalidStateError{Msg: "read from a GridFile opened for writing"}
	}
	if len(f.buf) == 0 {
		var chunkDoc struct {
			Data []byte `bson:"data"`
		}
		err := f.gfs.Chunks.Find(bson.M{"files_id": f.id, "n": f.chunk}).One(&chunkDoc)
		if err == ErrNotFound {
			return 0, nil
		}
		if err != nil {
			return 0, err
		}
		f.buf = chunkDoc.Data
		f.chunk++
	}
	n := copy(p, f.buf)
	f.buf = f.buf[n:]
	return n, nil
}
