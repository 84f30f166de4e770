package wire

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// ErrEmptyPayload is returned by Frame.Decode when the frame has no payload.
var ErrEmptyPayload = errors.New("frame has no payload")

// Frame is one classified inbound message.
type Frame struct {
	Kind       Kind
	MsgType    string          // "msg_type" as sent by the venue, may be empty
	ReqID      int64           // "req_id" echoed by the venue, 0 if absent
	Payload    json.RawMessage // value of the discriminating field
	Raw        []byte          // the complete message
	Err        *APIError       // set for KindError
	ReceivedAt time.Time
}

// Decode unmarshals the frame payload into v.
func (f Frame) Decode(v any) error {
	if len(f.Payload) == 0 {
		return ErrEmptyPayload
	}
	if err := json.Unmarshal(f.Payload, v); err != nil {
		return fmt.Errorf("decode %s payload: %w", f.Kind, err)
	}
	return nil
}

var (
	jsonNull = []byte("null")
	pongAck  = []byte(`"pong"`)
)

// Classify parses a raw message and determines its kind from the first
// present field in classification order. Messages that parse but carry none of
// the known fields are KindUnknown.
func Classify(data []byte, receivedAt time.Time) (Frame, error) {
	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(data, &envelope); err != nil {
		return Frame{}, fmt.Errorf("parse frame: %w", err)
	}

	frame := Frame{
		Kind:       KindUnknown,
		Raw:        data,
		ReceivedAt: receivedAt,
	}
	if raw, ok := envelope["msg_type"]; ok {
		_ = json.Unmarshal(raw, &frame.MsgType)
	}
	if raw, ok := envelope["req_id"]; ok {
		_ = json.Unmarshal(raw, &frame.ReqID)
	}

	for _, k := range Kinds {
		if k == KindUnknown {
			break
		}
		raw, ok := envelope[k.Field()]
		if !ok || len(raw) == 0 || bytes.Equal(raw, jsonNull) {
			continue
		}
		frame.Kind = k
		frame.Payload = raw
		break
	}

	switch frame.Kind {
	case KindPing:
		// {"ping":"pong"} answers our own ping; anything else is the venue asking.
		if bytes.Equal(bytes.TrimSpace(frame.Payload), pongAck) {
			frame.Kind = KindPong
		}
	case KindError:
		var apiErr APIError
		if err := json.Unmarshal(frame.Payload, &apiErr); err != nil {
			return Frame{}, fmt.Errorf("parse error payload: %w", err)
		}
		apiErr.MsgType = frame.MsgType
		frame.Err = &apiErr
	}

	return frame, nil
}
