package ingest

import (
	"encoding/json"
	"strings"
	"time"

	"mdingest/internal/tz"
	"mdingest/pkg/exception"

	"github.com/bytedance/sonic"
	"github.com/shopspring/decimal"
	"github.com/yanun0323/errors"
)

// Vendor message types.
const (
	MessageTypeInit      = "I"
	MessageTypeHeartbeat = "H"
	MessageTypeError     = "E"
)

// Envelope is the outer object of every vendor websocket message.
// Data is a positional array for market data and an object for control messages.
type Envelope struct {
	MessageType string            `json:"messageType"`
	Service     string            `json:"service"`
	Data        json.RawMessage   `json:"data"`
	Response    *EnvelopeResponse `json:"response"`
}

type EnvelopeResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e Envelope) IsControl() bool {
	return e.MessageType == MessageTypeInit || e.MessageType == MessageTypeHeartbeat
}

// Frame is the positional data array of one market data message.
type Frame []json.RawMessage

// Unmarshal decodes the element at index into p.
func (f Frame) Unmarshal(index int, p any) error {
	if index >= len(f) {
		return errors.Wrapf(exception.ErrIndexOutOfRange, "index: %d, len: %d", index, len(f))
	}

	if err := sonic.Unmarshal(f[index], p); err != nil {
		return errors.Wrapf(exception.ErrFeedMalformedPayload, "unmarshal from index: %d, err: %v", index, err)
	}

	return nil
}

func (f Frame) Text(index int) (string, error) {
	var s string
	if err := f.Unmarshal(index, &s); err != nil {
		return "", err
	}
	return s, nil
}

// Decimal accepts both JSON numbers and numeric strings.
func (f Frame) Decimal(index int) (decimal.Decimal, error) {
	var d decimal.Decimal
	if err := f.Unmarshal(index, &d); err != nil {
		return decimal.Zero, err
	}
	return d, nil
}

// Time parses an ISO-8601 timestamp element.
func (f Frame) Time(index int) (time.Time, error) {
	s, err := f.Text(index)
	if err != nil {
		return time.Time{}, err
	}
	t, err := tz.ParseISO(s)
	if err != nil {
		return time.Time{}, errors.Wrapf(exception.ErrFeedMalformedPayload, "timestamp at index: %d, err: %v", index, err)
	}
	return t, nil
}

func (f Frame) expect(arity int) error {
	if len(f) != arity {
		return errors.Wrapf(exception.ErrFeedPayloadArity, "expected: %d, got: %d", arity, len(f))
	}
	return nil
}

func (f Frame) raw() string {
	var sb strings.Builder
	sb.WriteByte('[')
	for i, v := range f {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.Write(v)
	}
	sb.WriteByte(']')
	return sb.String()
}

// Kind returns field 0 when it is a string, used as the message discriminator.
func (f Frame) Kind() string {
	if len(f) == 0 {
		return ""
	}
	var s string
	if err := sonic.Unmarshal(f[0], &s); err != nil {
		return ""
	}
	return s
}

// DecodeEnvelope parses one raw websocket message.
func DecodeEnvelope(payload []byte) (Envelope, error) {
	var env Envelope
	if err := sonic.Unmarshal(payload, &env); err != nil {
		return Envelope{}, errors.Wrapf(exception.ErrFeedMalformedPayload, "unmarshal envelope, err: %v", err)
	}
	return env, nil
}

// DecodeFrame extracts the positional data array of a market data envelope.
func DecodeFrame(env Envelope) (Frame, error) {
	if len(env.Data) == 0 {
		return nil, errors.Wrap(exception.ErrFeedMalformedPayload, "missing data")
	}
	var frame Frame
	if err := sonic.Unmarshal(env.Data, &frame); err != nil {
		return nil, errors.Wrapf(exception.ErrFeedMalformedPayload, "unmarshal data, err: %v", err)
	}
	return frame, nil
}
