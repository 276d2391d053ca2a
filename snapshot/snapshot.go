// Package snapshot serializes a location store into a portable, framed,
// checksummed byte stream, independent of the backend that produced it.
//
// A snapshot lets an index built once (e.g. from a planet file) be shipped
// to other machines or object storage and loaded into any backend, instead
// of repopulating from the source data. The stream is a 16-byte header, a
// sequence of compressed record blocks, and a CRC32C footer; records are
// 16-byte little-endian (id, packed location) pairs, matching the mapped
// stores' on-disk layout.
package snapshot

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"iter"
	"sync"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"

	"github.com/agrenott/osmloc"
	"github.com/agrenott/osmloc/internal/hash"
)

// Codec selects the per-block compression algorithm.
type Codec uint8

const (
	// CodecNone stores blocks uncompressed.
	CodecNone Codec = 0
	// CodecLZ4 uses LZ4 block compression (fast, moderate ratio).
	CodecLZ4 Codec = 1
	// CodecZstd uses zstd block compression (better ratio).
	CodecZstd Codec = 2
)

const (
	magic          = uint32(0x4F4C534E) // "OLSN"
	version        = uint8(1)
	headerLen      = 16
	footerLen      = 8
	recordLen      = 16
	blockHeaderLen = 9 // codec u8, rawLen u32, compLen u32

	// defaultBlockRecords keeps raw blocks at 1 MiB.
	defaultBlockRecords = 65536
)

// ErrCorrupt is returned when a snapshot fails structural or checksum
// validation.
var ErrCorrupt = errors.New("snapshot: corrupt snapshot")

// Record is one (id, location) pair of a snapshot stream.
type Record struct {
	ID       uint64
	Location osmloc.Location
}

// Options configure snapshot writing.
type Options struct {
	// Codec is the block compression algorithm. Default: CodecZstd.
	Codec Codec
	// BlockRecords is the number of records per block. Default: 65536.
	BlockRecords int
}

// WithCodec selects the block compression algorithm.
func WithCodec(c Codec) func(*Options) {
	return func(o *Options) { o.Codec = c }
}

// WithBlockRecords overrides the records-per-block framing.
func WithBlockRecords(n int) func(*Options) {
	return func(o *Options) { o.BlockRecords = n }
}

// zstd encoder/decoder pools, shared across snapshots.
var (
	zstdEncoderPool sync.Pool
	zstdDecoderPool sync.Pool
)

func getZstdEncoder() *zstd.Encoder {
	if v := zstdEncoderPool.Get(); v != nil {
		return v.(*zstd.Encoder)
	}
	enc, _ := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	return enc
}

func getZstdDecoder() *zstd.Decoder {
	if v := zstdDecoderPool.Get(); v != nil {
		return v.(*zstd.Decoder)
	}
	dec, _ := zstd.NewReader(nil)
	return dec
}

// Write serializes src to w and returns the number of records written.
// src must be one of the compiled-in backends (anything implementing
// osmloc.Iterator). A sorted-sequence store may be written in either
// state; the record order is simply the store's current order.
func Write(w io.Writer, src osmloc.Store, optFns ...func(*Options)) (int, error) {
	opts := Options{Codec: CodecZstd, BlockRecords: defaultBlockRecords}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.BlockRecords <= 0 {
		opts.BlockRecords = defaultBlockRecords
	}

	it, ok := src.(osmloc.Iterator)
	if !ok {
		return 0, fmt.Errorf("snapshot: store %T is not iterable", src)
	}

	var header [headerLen]byte
	binary.LittleEndian.PutUint32(header[0:4], magic)
	header[4] = version
	header[5] = byte(opts.Codec)
	binary.LittleEndian.PutUint64(header[8:16], uint64(src.Len()))
	if _, err := w.Write(header[:]); err != nil {
		return 0, fmt.Errorf("snapshot: write header: %w", err)
	}

	crc := hash.NewCRC32C()
	body := io.MultiWriter(w, crc)

	raw := make([]byte, 0, opts.BlockRecords*recordLen)
	written := 0
	var werr error
	for id, loc := range it.All() {
		raw = binary.LittleEndian.AppendUint64(raw, id)
		raw = binary.LittleEndian.AppendUint64(raw, loc.Pack())
		written++
		if len(raw) >= opts.BlockRecords*recordLen {
			if werr = writeBlock(body, opts.Codec, raw); werr != nil {
				break
			}
			raw = raw[:0]
		}
	}
	if werr != nil {
		return written, werr
	}
	if len(raw) > 0 {
		if err := writeBlock(body, opts.Codec, raw); err != nil {
			return written, err
		}
	}

	var footer [footerLen]byte
	binary.LittleEndian.PutUint32(footer[0:4], crc.Sum32())
	binary.LittleEndian.PutUint32(footer[4:8], magic)
	if _, err := w.Write(footer[:]); err != nil {
		return written, fmt.Errorf("snapshot: write footer: %w", err)
	}
	return written, nil
}

// writeBlock compresses raw with the requested codec, falling back to an
// uncompressed block when compression does not help.
func writeBlock(w io.Writer, codec Codec, raw []byte) error {
	var compressed []byte
	used := codec

	switch codec {
	case CodecZstd:
		enc := getZstdEncoder()
		compressed = enc.EncodeAll(raw, nil)
		zstdEncoderPool.Put(enc)
	case CodecLZ4:
		buf := make([]byte, lz4.CompressBlockBound(len(raw)))
		n, err := lz4.CompressBlock(raw, buf, nil)
		if err != nil {
			return fmt.Errorf("snapshot: lz4 compress: %w", err)
		}
		if n == 0 {
			// Incompressible block; store it raw.
			used = CodecNone
			compressed = raw
		} else {
			compressed = buf[:n]
		}
	default:
		used = CodecNone
		compressed = raw
	}

	if used != CodecNone && len(compressed) >= len(raw) {
		used = CodecNone
		compressed = raw
	}

	var hdr [blockHeaderLen]byte
	hdr[0] = byte(used)
	binary.LittleEndian.PutUint32(hdr[1:5], uint32(len(raw)))
	binary.LittleEndian.PutUint32(hdr[5:9], uint32(len(compressed)))
	if _, err := w.Write(hdr[:]); err != nil {
		return fmt.Errorf("snapshot: write block header: %w", err)
	}
	if _, err := w.Write(compressed); err != nil {
		return fmt.Errorf("snapshot: write block: %w", err)
	}
	return nil
}

// Read yields the records of a snapshot stream. Iteration stops at the
// first error; structural and checksum failures yield a wrapped
// ErrCorrupt.
func Read(r io.Reader) iter.Seq2[Record, error] {
	return func(yield func(Record, error) bool) {
		var header [headerLen]byte
		if _, err := io.ReadFull(r, header[:]); err != nil {
			yield(Record{}, fmt.Errorf("snapshot: read header: %w", err))
			return
		}
		if binary.LittleEndian.Uint32(header[0:4]) != magic {
			yield(Record{}, fmt.Errorf("%w: bad magic", ErrCorrupt))
			return
		}
		if header[4] != version {
			yield(Record{}, fmt.Errorf("%w: unsupported version %d", ErrCorrupt, header[4]))
			return
		}
		count := binary.LittleEndian.Uint64(header[8:16])

		crc := hash.NewCRC32C()
		body := io.TeeReader(r, crc)

		remaining := count
		for remaining > 0 {
			raw, err := readBlock(body)
			if err != nil {
				yield(Record{}, err)
				return
			}
			if uint64(len(raw)/recordLen) > remaining {
				yield(Record{}, fmt.Errorf("%w: more records than declared", ErrCorrupt))
				return
			}
			for off := 0; off+recordLen <= len(raw); off += recordLen {
				rec := Record{
					ID:       binary.LittleEndian.Uint64(raw[off:]),
					Location: osmloc.Unpack(binary.LittleEndian.Uint64(raw[off+8:])),
				}
				remaining--
				if !yield(rec, nil) {
					return
				}
			}
		}

		sum := crc.Sum32()
		var footer [footerLen]byte
		if _, err := io.ReadFull(r, footer[:]); err != nil {
			yield(Record{}, fmt.Errorf("%w: read footer: %w", ErrCorrupt, err))
			return
		}
		if binary.LittleEndian.Uint32(footer[0:4]) != sum {
			yield(Record{}, fmt.Errorf("%w: checksum mismatch", ErrCorrupt))
			return
		}
		if binary.LittleEndian.Uint32(footer[4:8]) != magic {
			yield(Record{}, fmt.Errorf("%w: bad footer magic", ErrCorrupt))
			return
		}
	}
}

func readBlock(r io.Reader) ([]byte, error) {
	var hdr [blockHeaderLen]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return nil, fmt.Errorf("%w: read block header: %w", ErrCorrupt, err)
	}
	codec := Codec(hdr[0])
	rawLen := binary.LittleEndian.Uint32(hdr[1:5])
	compLen := binary.LittleEndian.Uint32(hdr[5:9])
	if rawLen%recordLen != 0 {
		return nil, fmt.Errorf("%w: block size %d not record aligned", ErrCorrupt, rawLen)
	}

	compressed := make([]byte, compLen)
	if _, err := io.ReadFull(r, compressed); err != nil {
		return nil, fmt.Errorf("%w: read block: %w", ErrCorrupt, err)
	}

	switch codec {
	case CodecNone:
		if compLen != rawLen {
			return nil, fmt.Errorf("%w: stored block length mismatch", ErrCorrupt)
		}
		return compressed, nil
	case CodecZstd:
		dec := getZstdDecoder()
		raw, err := dec.DecodeAll(compressed, make([]byte, 0, rawLen))
		zstdDecoderPool.Put(dec)
		if err != nil {
			return nil, fmt.Errorf("%w: zstd decompress: %w", ErrCorrupt, err)
		}
		if uint32(len(raw)) != rawLen {
			return nil, fmt.Errorf("%w: decompressed block length mismatch", ErrCorrupt)
		}
		return raw, nil
	case CodecLZ4:
		raw := make([]byte, rawLen)
		n, err := lz4.UncompressBlock(compressed, raw)
		if err != nil {
			return nil, fmt.Errorf("%w: lz4 decompress: %w", ErrCorrupt, err)
		}
		if uint32(n) != rawLen {
			return nil, fmt.Errorf("%w: decompressed block length mismatch", ErrCorrupt)
		}
		return raw, nil
	default:
		return nil, fmt.Errorf("%w: unknown block codec %d", ErrCorrupt, codec)
	}
}

// Load reads a snapshot into dst and returns the number of records loaded.
// After the stream ends, dst is sorted, so it is immediately queryable.
func Load(r io.Reader, dst osmloc.Store) (int, error) {
	loaded := 0
	for rec, err := range Read(r) {
		if err != nil {
			return loaded, err
		}
		if err := dst.Set(rec.ID, rec.Location); err != nil {
			return loaded, fmt.Errorf("snapshot: load record %d: %w", rec.ID, err)
		}
		loaded++
	}
	if err := dst.Sort(); err != nil {
		return loaded, fmt.Errorf("snapshot: sort after load: %w", err)
	}
	return loaded, nil
}
