package store

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"sync"

	"github.com/pkg/errors"
)

var (
	ErrStateTypeMismatch = fmt.Errorf("state type error")
)

// RegisterOrGet returns the live state registered under the descriptor's
// key, materializing it from a restored mirror or from the initializer when
// the key is new.
func RegisterOrGet[T any](controller Controller, descriptor StateDescriptor[T]) (StateController[T], error) {
	if load, ok := controller.Load(descriptor.Key); !ok {
		vs := &state[T]{
			pointer:    new(T),
			mutex:      &sync.RWMutex{},
			serializer: descriptor.Serializer,
		}
		*vs.pointer = descriptor.Initializer()
		controller.Store(descriptor.Key, vs)
		return vs, nil
	} else {
		switch l := load.(type) {
		case mirrorState:
			if l.Type != NonParallelizeState {
				return nil, ErrStateTypeMismatch
			}
			vs := &state[T]{
				pointer:    new(T),
				mutex:      &sync.RWMutex{},
				serializer: descriptor.Serializer,
			}
			if t, err := descriptor.Deserializer(l.Payload); err != nil {
				return nil, errors.WithMessage(err, "failed to deserialize state")
			} else {
				*vs.pointer = t
			}
			controller.Store(descriptor.Key, vs)
			return vs, nil
		case *state[T]:
			return l, nil
		default:
			return nil, ErrStateTypeMismatch
		}
	}
}

// GobRegisterOrGet will use gob to decode or encode state, so state should
// expose fields.
func GobRegisterOrGet[T any](controller Controller, key string, initializer StateInitializer[T]) (StateController[T], error) {
	return RegisterOrGet[T](controller, StateDescriptor[T]{
		Key:         key,
		Initializer: initializer,
		Serializer: func(v T) ([]byte, error) {
			var buffer bytes.Buffer
			encoder := gob.NewEncoder(&buffer)
			if err := encoder.Encode(&v); err != nil {
				return nil, errors.WithMessage(err, "failed to encode state to gob bytes")
			}
			return buffer.Bytes(), nil
		},
		Deserializer: func(v []byte) (T, error) {
			pointer := new(T)
			if err := gob.NewDecoder(bytes.NewReader(v)).Decode(pointer); err != nil {
				return *pointer, errors.WithMessage(err, "failed to decode gob bytes")
			}
			return *pointer, nil
		},
	})
}
