package store

import "sync"

type StateSerializer[T any] func(T) ([]byte, error)
type StateDeserializer[T any] func([]byte) (T, error)
type StateInitializer[T any] func() T

type StateDescriptor[T any] struct {
	Key          string
	Initializer  StateInitializer[T]
	Serializer   StateSerializer[T]
	Deserializer StateDeserializer[T]
}

type state[T any] struct {
	pointer    *T
	mutex      *sync.RWMutex
	serializer StateSerializer[T]
}

func (s *state[T]) Pointer() *T {
	return s.pointer
}

func (s *state[T]) Locker() *sync.RWMutex {
	return s.mutex
}

func (s *state[T]) Clear() {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	*s.pointer = *new(T)
}

func (s *state[T]) mirror() (mirrorState, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	payload, err := s.serializer(*s.pointer)
	if err != nil {
		return mirrorState{}, err
	}
	return mirrorState{
		Type:    NonParallelizeState,
		Payload: payload,
	}, nil
}
