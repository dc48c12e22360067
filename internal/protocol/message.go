// Package protocol implements the framed binary link between the
// schedule center and its peers. Every frame is an unsigned varint
// length followed by a protobuf-encoded Envelope; requests, replies
// and heartbeats share the Envelope kind space.
package protocol

import (
	"fmt"

	"github.com/pkg/errors"
	"google.golang.org/protobuf/encoding/protowire"
)

type Kind uint32

const (
	KindUnknown Kind = iota
	KindHeartbeat
	KindExecuteRequest
	KindCancelRequest
	KindGenerateRequest
	KindUpdateRequest
	KindResponse
)

func (k Kind) String() string {
	switch k {
	case KindHeartbeat:
		return "heartbeat"
	case KindExecuteRequest:
		return "execute"
	case KindCancelRequest:
		return "cancel"
	case KindGenerateRequest:
		return "generate"
	case KindUpdateRequest:
		return "update"
	case KindResponse:
		return "response"
	default:
		return fmt.Sprintf("kind(%d)", uint32(k))
	}
}

// ExecuteKind selects the sub-protocol a peer uses for a command.
type ExecuteKind uint32

const (
	ScheduleKind ExecuteKind = iota
	ManualKind
	DebugKind
)

type ResponseStatus uint32

const (
	StatusOK ResponseStatus = iota
	StatusError
)

// Envelope field numbers.
const (
	envKind    protowire.Number = 1
	envID      protowire.Number = 2
	envPayload protowire.Number = 3
)

// Envelope is the typed container of every frame. ID correlates a
// Response with the request that caused it.
type Envelope struct {
	Kind    Kind
	ID      string
	Payload []byte
}

func (e *Envelope) Marshal() []byte {
	var b []byte
	b = protowire.AppendTag(b, envKind, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(e.Kind))
	if e.ID != "" {
		b = protowire.AppendTag(b, envID, protowire.BytesType)
		b = protowire.AppendString(b, e.ID)
	}
	if len(e.Payload) > 0 {
		b = protowire.AppendTag(b, envPayload, protowire.BytesType)
		b = protowire.AppendBytes(b, e.Payload)
	}
	return b
}

func UnmarshalEnvelope(b []byte) (*Envelope, error) {
	env := &Envelope{}
	err := walk(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch {
		case num == envKind && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			env.Kind = Kind(v)
			return n, nil
		case num == envID && typ == protowire.BytesType:
			v, n := protowire.ConsumeString(b)
			env.ID = v
			return n, nil
		case num == envPayload && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(b)
			if n >= 0 {
				env.Payload = append([]byte(nil), v...)
			}
			return n, nil
		}
		return protowire.ConsumeFieldValue(num, typ, b), nil
	})
	if err != nil {
		return nil, err
	}
	return env, nil
}

// Command is the payload of execute, cancel, generate and update
// requests. ID is a history id, a job id or AllJobs.
type Command struct {
	Kind ExecuteKind
	ID   string
}

// AllJobs addresses every job in a generate request.
const AllJobs = "ALL"

func (c *Command) Marshal() []byte {
	var b []byte
	b = protowire.AppendTag(b, 1, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(c.Kind))
	b = protowire.AppendTag(b, 2, protowire.BytesType)
	b = protowire.AppendString(b, c.ID)
	return b
}

func UnmarshalCommand(b []byte) (*Command, error) {
	c := &Command{}
	err := walk(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch {
		case num == 1 && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			c.Kind = ExecuteKind(v)
			return n, nil
		case num == 2 && typ == protowire.BytesType:
			v, n := protowire.ConsumeString(b)
			c.ID = v
			return n, nil
		}
		return protowire.ConsumeFieldValue(num, typ, b), nil
	})
	if err != nil {
		return nil, err
	}
	return c, nil
}

// Response is the payload of a reply envelope.
type Response struct {
	Status  ResponseStatus
	Message string
}

func (r *Response) Marshal() []byte {
	var b []byte
	b = protowire.AppendTag(b, 1, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(r.Status))
	if r.Message != "" {
		b = protowire.AppendTag(b, 2, protowire.BytesType)
		b = protowire.AppendString(b, r.Message)
	}
	return b
}

func UnmarshalResponse(b []byte) (*Response, error) {
	r := &Response{}
	err := walk(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch {
		case num == 1 && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			r.Status = ResponseStatus(v)
			return n, nil
		case num == 2 && typ == protowire.BytesType:
			v, n := protowire.ConsumeString(b)
			r.Message = v
			return n, nil
		}
		return protowire.ConsumeFieldValue(num, typ, b), nil
	})
	if err != nil {
		return nil, err
	}
	return r, nil
}

// Heartbeat is the payload a peer sends to prove liveness.
type Heartbeat struct {
	Host      string
	Timestamp int64 // unix millis
}

func (h *Heartbeat) Marshal() []byte {
	var b []byte
	b = protowire.AppendTag(b, 1, protowire.BytesType)
	b = protowire.AppendString(b, h.Host)
	b = protowire.AppendTag(b, 2, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(h.Timestamp))
	return b
}

func UnmarshalHeartbeat(b []byte) (*Heartbeat, error) {
	h := &Heartbeat{}
	err := walk(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch {
		case num == 1 && typ == protowire.BytesType:
			v, n := protowire.ConsumeString(b)
			h.Host = v
			return n, nil
		case num == 2 && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			h.Timestamp = int64(v)
			return n, nil
		}
		return protowire.ConsumeFieldValue(num, typ, b), nil
	})
	if err != nil {
		return nil, err
	}
	return h, nil
}

// walk iterates the fields of a protobuf message, handing each value
// to fn, which returns how many bytes it consumed.
func walk(b []byte, fn func(protowire.Number, protowire.Type, []byte) (int, error)) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return errors.Wrap(protowire.ParseError(n), "field tag")
		}
		b = b[n:]

		n, err := fn(num, typ, b)
		if err != nil {
			return err
		}
		if n < 0 {
			return errors.Wrapf(protowire.ParseError(n), "field %d", num)
		}
		b = b[n:]
	}
	return nil
}
