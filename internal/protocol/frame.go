package protocol

import (
	"bufio"
	"encoding/binary"
	"io"
	"sync"

	"github.com/pkg/errors"
	"google.golang.org/protobuf/encoding/protowire"
)

// DefaultMaxFrameSize bounds a single frame when no limit is configured.
const DefaultMaxFrameSize = 4 << 20

// ErrFrameTooLarge is returned when a peer announces a frame over the
// configured limit.
var ErrFrameTooLarge = errors.New("frame exceeds maximum size")

// WriteFrame writes payload prefixed by its length as an unsigned
// varint, in a single Write call.
func WriteFrame(w io.Writer, payload []byte) error {
	buf := make([]byte, 0, protowire.SizeVarint(uint64(len(payload)))+len(payload))
	buf = protowire.AppendVarint(buf, uint64(len(payload)))
	buf = append(buf, payload...)

	_, err := w.Write(buf)
	return err
}

// ReadFrame reads one varint length-prefixed frame.
func ReadFrame(r *bufio.Reader, max int) ([]byte, error) {
	if max <= 0 {
		max = DefaultMaxFrameSize
	}

	size, err := binary.ReadUvarint(r)
	if err != nil {
		return nil, err
	}
	if size > uint64(max) {
		return nil, errors.Wrapf(ErrFrameTooLarge, "%d > %d", size, max)
	}

	payload := make([]byte, size)
	if _, err := io.ReadFull(r, payload); err != nil {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return nil, err
	}
	return payload, nil
}

// Codec reads and writes envelopes over a stream. Writes are
// serialized so concurrent senders never interleave frames; reads
// must come from a single goroutine.
type Codec struct {
	r   *bufio.Reader
	w   io.Writer
	mu  sync.Mutex
	max int
}

func NewCodec(rw io.ReadWriter, maxFrameSize int) *Codec {
	return &Codec{
		r:   bufio.NewReader(rw),
		w:   rw,
		max: maxFrameSize,
	}
}

func (c *Codec) WriteEnvelope(env *Envelope) error {
	buf := env.Marshal()

	c.mu.Lock()
	defer c.mu.Unlock()

	if err := WriteFrame(c.w, buf); err != nil {
		return errors.Wrapf(err, "write %v frame", env.Kind)
	}
	return nil
}

func (c *Codec) ReadEnvelope() (*Envelope, error) {
	payload, err := ReadFrame(c.r, c.max)
	if err != nil {
		return nil, err
	}

	env, err := UnmarshalEnvelope(payload)
	if err != nil {
		return nil, errors.Wrap(err, "decode envelope")
	}
	return env, nil
}
