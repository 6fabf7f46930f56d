// Package htsnap is a compact binary encoding for hashtree snapshots.
//
// An encoded snapshot is a single envelope byte naming the compression,
// followed by a msgpack record of the snapshot's layers and leaf metadata.
// Decoding never hashes; the caller must trust the source,
// or compare the decoded root against a known value.
package htsnap

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/golang/snappy"
	"github.com/gordian-engine/hashtree"
	"github.com/klauspost/compress/zstd"
	"github.com/vmihailenco/msgpack/v5"
)

// Encoding selects the compression of an encoded snapshot.
type Encoding byte

const (
	Raw    Encoding = 0
	Snappy Encoding = 1
	Zstd   Encoding = 2

	// Adaptive tries every encoding and keeps the smallest output.
	// It is never written to the envelope.
	Adaptive Encoding = 0xff
)

func (e Encoding) String() string {
	switch e {
	case Raw:
		return "raw"
	case Snappy:
		return "snappy"
	case Zstd:
		return "zstd"
	case Adaptive:
		return "adaptive"
	default:
		return fmt.Sprintf("Encoding(%d)", byte(e))
	}
}

// DefaultMaxDecodedSize bounds the decompressed record size
// when [CodecConfig.MaxDecodedSize] is zero.
const DefaultMaxDecodedSize = 64 << 20

const recordVersion = 1

// ErrTooLarge is returned when an encoded snapshot
// would decompress to more than the configured maximum.
var ErrTooLarge = errors.New("decoded snapshot exceeds size limit")

// ErrUnknownEncoding is returned when decoding
// an envelope byte that names no known encoding.
var ErrUnknownEncoding = errors.New("unknown snapshot encoding")

type record struct {
	Version uint8      `msgpack:"version"`
	Layers  [][][]byte `msgpack:"layers"`

	// Aligned with Layers[0]; a nil entry means no metadata.
	Meta [][]byte `msgpack:"meta,omitempty"`
}

// CodecConfig is the configuration for [NewCodec].
type CodecConfig struct {
	// Upper bound on the decompressed record size.
	// Zero means [DefaultMaxDecodedSize].
	MaxDecodedSize int

	// Number of concurrent zstd decodes.
	// Zero means 4.
	DecoderConcurrency int
}

// Codec encodes and decodes snapshots.
// It holds reusable zstd state and is safe for concurrent use.
// Call Close to release the zstd resources.
type Codec struct {
	enc *zstd.Encoder
	dec *zstd.Decoder

	maxSize int
}

// NewCodec returns a Codec configured by cfg.
func NewCodec(cfg CodecConfig) (*Codec, error) {
	maxSize := cfg.MaxDecodedSize
	if maxSize <= 0 {
		maxSize = DefaultMaxDecodedSize
	}
	conc := cfg.DecoderConcurrency
	if conc <= 0 {
		conc = 4
	}

	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, fmt.Errorf("failed to create zstd encoder: %w", err)
	}

	dec, err := zstd.NewReader(
		nil,
		zstd.WithDecoderConcurrency(conc),
		zstd.WithDecoderMaxMemory(uint64(maxSize)),
	)
	if err != nil {
		_ = enc.Close()
		return nil, fmt.Errorf("failed to create zstd decoder: %w", err)
	}

	return &Codec{
		enc:     enc,
		dec:     dec,
		maxSize: maxSize,
	}, nil
}

// Close releases the codec's zstd resources.
func (c *Codec) Close() error {
	c.dec.Close()
	return c.enc.Close()
}

// Marshal encodes f with the given encoding.
// The snapshot is validated first,
// so a malformed snapshot is never written.
func (c *Codec) Marshal(f hashtree.FlatSnapshot, enc Encoding) ([]byte, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}

	r := record{
		Version: recordVersion,
		Layers:  f.Layers,
	}
	if f.Meta != nil {
		r.Meta = make([][]byte, len(f.Meta))
		for i, m := range f.Meta {
			r.Meta[i] = m
		}
	}

	body, err := msgpack.Marshal(&r)
	if err != nil {
		return nil, fmt.Errorf("failed to encode snapshot record: %w", err)
	}

	switch enc {
	case Raw:
		return c.encodeRaw(body), nil
	case Snappy:
		return c.encodeSnappy(body), nil
	case Zstd:
		return c.encodeZstd(body), nil
	case Adaptive:
		best := c.encodeRaw(body)
		if s := c.encodeSnappy(body); len(s) < len(best) {
			best = s
		}
		if z := c.encodeZstd(body); len(z) < len(best) {
			best = z
		}
		return best, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownEncoding, enc)
	}
}

func (c *Codec) encodeRaw(body []byte) []byte {
	out := make([]byte, 1+len(body))
	out[0] = byte(Raw)
	copy(out[1:], body)
	return out
}

func (c *Codec) encodeSnappy(body []byte) []byte {
	out := make([]byte, 1+snappy.MaxEncodedLen(len(body)))
	out[0] = byte(Snappy)
	res := snappy.Encode(out[1:], body)
	return out[:1+len(res)]
}

func (c *Codec) encodeZstd(body []byte) []byte {
	return c.enc.EncodeAll(body, []byte{byte(Zstd)})
}

// Unmarshal decodes a snapshot written by Marshal.
// The decoded snapshot has been validated.
func (c *Codec) Unmarshal(b []byte) (hashtree.FlatSnapshot, error) {
	if len(b) == 0 {
		return hashtree.FlatSnapshot{}, errors.New("empty snapshot encoding")
	}

	body := b[1:]
	switch Encoding(b[0]) {
	case Raw:
		if len(body) > c.maxSize {
			return hashtree.FlatSnapshot{}, ErrTooLarge
		}
	case Snappy:
		n, err := snappy.DecodedLen(body)
		if err != nil {
			return hashtree.FlatSnapshot{}, fmt.Errorf(
				"failed to calculate snappy-decoded snapshot length: %w", err,
			)
		}
		if n > c.maxSize {
			return hashtree.FlatSnapshot{}, ErrTooLarge
		}
		body, err = snappy.Decode(nil, body)
		if err != nil {
			return hashtree.FlatSnapshot{}, fmt.Errorf("failed to decode snappy snapshot: %w", err)
		}
	case Zstd:
		var err error
		body, err = c.dec.DecodeAll(body, nil)
		if err != nil {
			if errors.Is(err, zstd.ErrDecoderSizeExceeded) || errors.Is(err, zstd.ErrWindowSizeExceeded) {
				return hashtree.FlatSnapshot{}, ErrTooLarge
			}
			return hashtree.FlatSnapshot{}, fmt.Errorf("failed to decode zstd snapshot: %w", err)
		}
		if len(body) > c.maxSize {
			return hashtree.FlatSnapshot{}, ErrTooLarge
		}
	default:
		return hashtree.FlatSnapshot{}, fmt.Errorf(
			"%w: header byte 0x%x", ErrUnknownEncoding, b[0],
		)
	}

	var r record
	if err := msgpack.Unmarshal(body, &r); err != nil {
		return hashtree.FlatSnapshot{}, fmt.Errorf("failed to decode snapshot record: %w", err)
	}
	if r.Version != recordVersion {
		return hashtree.FlatSnapshot{}, fmt.Errorf(
			"unsupported snapshot record version %d", r.Version,
		)
	}

	f := hashtree.FlatSnapshot{Layers: r.Layers}
	if r.Meta != nil {
		f.Meta = make([]json.RawMessage, len(r.Meta))
		for i, m := range r.Meta {
			if m != nil {
				f.Meta[i] = m
			}
		}
	}

	if err := f.Validate(); err != nil {
		return hashtree.FlatSnapshot{}, err
	}
	return f, nil
}

// EncodeTree snapshots t and encodes it with c.
func EncodeTree[M any](c *Codec, t *hashtree.Tree[M], enc Encoding) ([]byte, error) {
	f, err := t.FlatSnapshot()
	if err != nil {
		return nil, err
	}
	return c.Marshal(f, enc)
}

// DecodeTree decodes b with c and reconstructs the tree under cfg.
func DecodeTree[M any](c *Codec, b []byte, cfg hashtree.Config) (*hashtree.Tree[M], error) {
	f, err := c.Unmarshal(b)
	if err != nil {
		return nil, err
	}
	return hashtree.ReconstructFlat[M](f, cfg)
}
