package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Transport carries changes between processes sharing a cart slot.
//
// Listen blocks until ctx is done and must not deliver changes whose Origin
// equals the transport's own origin. Announce is called after every
// successful slot write.
type Transport interface {
	Announce(ctx context.Context, c Change) error
	Listen(ctx context.Context, fn Listener) error
	Close() error
}

// Nop is a Transport for single-process deployments.
type Nop struct{}

func (Nop) Announce(context.Context, Change) error { return nil }

func (Nop) Listen(ctx context.Context, _ Listener) error {
	<-ctx.Done()
	return nil
}

func (Nop) Close() error { return nil }

// message is the wire form shared by the network transports.
type message struct {
	Origin string    `json:"origin"`
	Key    string    `json:"key"`
	At     time.Time `json:"at"`
}

// ErrMalformedMessage is returned by Decode for payloads that are not a
// change notice.
var ErrMalformedMessage = errors.New("malformed change message")

// Encode serializes c for slot key.
func Encode(key string, c Change) ([]byte, error) {
	return json.Marshal(message{Origin: c.Origin, Key: key, At: c.At.UTC()})
}

// Decode parses a wire payload into a remote change. It returns the slot key
// the change refers to.
func Decode(data []byte) (Change, string, error) {
	var m message
	if err := json.Unmarshal(data, &m); err != nil {
		return Change{}, "", fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}
	if m.Origin == "" {
		return Change{}, "", fmt.Errorf("%w: missing origin", ErrMalformedMessage)
	}
	return Change{Origin: m.Origin, Source: SourceRemote, At: m.At}, m.Key, nil
}

// FromOthers wraps fn so changes originating from origin are dropped.
func FromOthers(origin string, fn Listener) Listener {
	return func(c Change) {
		if c.Origin != "" && c.Origin == origin {
			return
		}
		c.Source = SourceRemote
		fn(c)
	}
}
