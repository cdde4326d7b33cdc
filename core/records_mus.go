package core

import (
	"errors"
	"slices"
	"time"

	"github.com/mus-format/mus-go/ord"
	"github.com/mus-format/mus-go/raw"
	"github.com/mus-format/mus-go/varint"
)

// ErrCorruptRecord indicates a stored record could not be decoded.
var ErrCorruptRecord = errors.New("corrupt record")

// Serializers for persisted records. Each follows the mus-go contract:
// Size reports the encoded length, Marshal writes into a buffer of at least
// that size, and Unmarshal returns the value and the bytes consumed.
var (
	ChunkMUS          = chunkMUS{}
	CollectionInfoMUS = collectionInfoMUS{}
	TimeMUS           = timeMUS{}
)

type timeMUS struct{}

// Times are stored as Unix microseconds; the zero time is stored as 0.
func (timeMUS) Marshal(t time.Time, bs []byte) (n int) {
	return varint.Int64.Marshal(unixMicro(t), bs)
}

func (timeMUS) Unmarshal(bs []byte) (t time.Time, n int, err error) {
	us, n, err := varint.Int64.Unmarshal(bs)
	if err != nil || us == 0 {
		return time.Time{}, n, err
	}
	return time.UnixMicro(us).UTC(), n, nil
}

func (timeMUS) Size(t time.Time) int {
	return varint.Int64.Size(unixMicro(t))
}

func unixMicro(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMicro()
}

type chunkMUS struct{}

func (chunkMUS) Marshal(v Chunk, bs []byte) (n int) {
	n = varint.Uint64.Marshal(uint64(v.Id), bs)
	n += ord.String.Marshal(v.Collection, bs[n:])
	n += varint.Uint64.Marshal(uint64(v.DocumentID), bs[n:])
	n += varint.Int.Marshal(v.Index, bs[n:])
	n += varint.Int.Marshal(v.Offset, bs[n:])
	n += ord.String.Marshal(v.Text, bs[n:])
	n += marshalVector(v.Vector, bs[n:])
	n += marshalMetadata(v.Metadata, bs[n:])
	n += TimeMUS.Marshal(v.InsertedAt, bs[n:])
	return
}

func (chunkMUS) Unmarshal(bs []byte) (v Chunk, n int, err error) {
	var (
		n1  int
		u64 uint64
	)
	u64, n, err = varint.Uint64.Unmarshal(bs)
	if err != nil {
		return
	}
	v.Id = ID(u64)
	v.Collection, n1, err = ord.String.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	u64, n1, err = varint.Uint64.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.DocumentID = ID(u64)
	v.Index, n1, err = varint.Int.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.Offset, n1, err = varint.Int.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.Text, n1, err = ord.String.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.Vector, n1, err = unmarshalVector(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.Metadata, n1, err = unmarshalMetadata(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.InsertedAt, n1, err = TimeMUS.Unmarshal(bs[n:])
	n += n1
	return
}

func (chunkMUS) Size(v Chunk) (size int) {
	size = varint.Uint64.Size(uint64(v.Id))
	size += ord.String.Size(v.Collection)
	size += varint.Uint64.Size(uint64(v.DocumentID))
	size += varint.Int.Size(v.Index)
	size += varint.Int.Size(v.Offset)
	size += ord.String.Size(v.Text)
	size += sizeVector(v.Vector)
	size += sizeMetadata(v.Metadata)
	return size + TimeMUS.Size(v.InsertedAt)
}

// collectionInfoMUS persists only the identity of a collection.
// Counts are derived at read time.
type collectionInfoMUS struct{}

func (collectionInfoMUS) Marshal(v CollectionInfo, bs []byte) (n int) {
	n = ord.String.Marshal(v.Name, bs)
	n += TimeMUS.Marshal(v.CreatedAt, bs[n:])
	return
}

func (collectionInfoMUS) Unmarshal(bs []byte) (v CollectionInfo, n int, err error) {
	var n1 int
	v.Name, n, err = ord.String.Unmarshal(bs)
	if err != nil {
		return
	}
	v.CreatedAt, n1, err = TimeMUS.Unmarshal(bs[n:])
	n += n1
	return
}

func (collectionInfoMUS) Size(v CollectionInfo) int {
	return ord.String.Size(v.Name) + TimeMUS.Size(v.CreatedAt)
}

func marshalVector(vec []float32, bs []byte) (n int) {
	n = varint.Int.Marshal(len(vec), bs)
	for _, f := range vec {
		n += raw.Float32.Marshal(f, bs[n:])
	}
	return
}

func unmarshalVector(bs []byte) (vec []float32, n int, err error) {
	length, n, err := varint.Int.Unmarshal(bs)
	if err != nil {
		return nil, n, err
	}
	if length < 0 || length*4 > len(bs)-n {
		return nil, n, ErrCorruptRecord
	}
	if length == 0 {
		return nil, n, nil
	}
	vec = make([]float32, length)
	var n1 int
	for i := range vec {
		vec[i], n1, err = raw.Float32.Unmarshal(bs[n:])
		n += n1
		if err != nil {
			return nil, n, err
		}
	}
	return vec, n, nil
}

func sizeVector(vec []float32) int {
	size := varint.Int.Size(len(vec))
	for _, f := range vec {
		size += raw.Float32.Size(f)
	}
	return size
}

// Metadata keys are written in sorted order so equal maps encode identically.
func marshalMetadata(m map[string]string, bs []byte) (n int) {
	n = varint.Int.Marshal(len(m), bs)
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		n += ord.String.Marshal(k, bs[n:])
		n += ord.String.Marshal(m[k], bs[n:])
	}
	return
}

func unmarshalMetadata(bs []byte) (m map[string]string, n int, err error) {
	length, n, err := varint.Int.Unmarshal(bs)
	if err != nil {
		return nil, n, err
	}
	if length < 0 || length > len(bs)-n {
		return nil, n, ErrCorruptRecord
	}
	if length == 0 {
		return nil, n, nil
	}
	m = make(map[string]string, length)
	var (
		n1   int
		k, v string
	)
	for range length {
		k, n1, err = ord.String.Unmarshal(bs[n:])
		n += n1
		if err != nil {
			return nil, n, err
		}
		v, n1, err = ord.String.Unmarshal(bs[n:])
		n += n1
		if err != nil {
			return nil, n, err
		}
		m[k] = v
	}
	return m, n, nil
}

func sizeMetadata(m map[string]string) int {
	size := varint.Int.Size(len(m))
	for k, v := range m {
		size += ord.String.Size(k) + ord.String.Size(v)
	}
	return size
}
