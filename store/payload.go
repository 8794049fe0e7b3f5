package store

import (
	"errors"
	"fmt"

	"github.com/peteb4ker/romper-sub005/codec"
	"github.com/peteb4ker/romper-sub005/model"
)

var errBadPayload = errors.New("malformed journal payload")

// Journal payloads carry the codec name so a store reopened with another
// codec still reads old records: [NameLen: 1] [Name] [Encoded payload].
func encodePayload(c codec.Codec, p model.Payload) ([]byte, error) {
	data, err := c.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("encode payload with %s: %w", c.Name(), err)
	}
	name := c.Name()
	out := make([]byte, 0, 1+len(name)+len(data))
	out = append(out, byte(len(name)))
	out = append(out, name...)
	return append(out, data...), nil
}

func decodePayload(data []byte) (model.Payload, error) {
	var p model.Payload
	if len(data) == 0 {
		return p, nil
	}
	n := int(data[0])
	if len(data) < 1+n {
		return p, errBadPayload
	}
	name := string(data[1 : 1+n])
	c, ok := codec.ByName(name)
	if !ok {
		return p, fmt.Errorf("%w: unknown codec %q", errBadPayload, name)
	}
	if err := c.Unmarshal(data[1+n:], &p); err != nil {
		return p, fmt.Errorf("decode payload with %s: %w", name, err)
	}
	return p, nil
}
