package store

import (
	"bytes"
	"encoding/gob"
	"sync"

	"github.com/pkg/errors"
)

// managerState is the durable envelope: namespace -> state key -> payload.
type managerState map[string]map[string][]byte

type manager struct {
	mutex   *sync.Mutex
	mm      map[string]*controller
	name    string
	backend Backend
}

func (m *manager) init() error {
	stateBytes, err := m.backend.Get(m.name)
	if err != nil {
		return errors.WithMessagef(err, "failed to get %s state manager's state", m.name)
	}
	if stateBytes == nil {
		return nil
	}
	restored := managerState{}
	if err := gob.NewDecoder(bytes.NewReader(stateBytes)).Decode(&restored); err != nil {
		return errors.WithMessagef(err, "failed to decode %s state manager's state", m.name)
	}
	for namespace, controllerState := range restored {
		m.mm[namespace] = &controller{mm: &sync.Map{}}
		for name, payload := range controllerState {
			m.mm[namespace].Store(name, mirrorState{
				Type:    NonParallelizeState,
				Payload: payload,
			})
		}
	}
	return nil
}

func (m *manager) Controller(namespace string) Controller {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if c, ok := m.mm[namespace]; ok {
		return c
	} else {
		c = &controller{&sync.Map{}}
		m.mm[namespace] = c
		return c
	}
}

func (m *manager) Save(id int64) (err error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	snapshot := managerState{}
	for namespace, control := range m.mm {
		snapshot[namespace] = map[string][]byte{}
		control.Range(func(key string, state State) bool {
			var ms mirrorState
			if ms, err = state.mirror(); err != nil {
				return false
			}
			snapshot[namespace][key] = ms.Payload
			return true
		})
		if err != nil {
			return errors.WithMessagef(err, "failed to mirror %s namespace state", namespace)
		}
	}
	var buffer bytes.Buffer
	if err := gob.NewEncoder(&buffer).Encode(&snapshot); err != nil {
		return errors.WithMessagef(err, "failed to encode %s state manager's state", m.name)
	}
	return m.backend.Save(id, m.name, buffer.Bytes())
}

func (m *manager) Persist(id int64) error {
	return m.backend.Persist(id)
}

func (m *manager) Clean() error {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	for _, c := range m.mm {
		c.Range(func(key string, state State) bool {
			c.Delete(key)
			return true
		})
	}
	return nil
}

func (m *manager) Close() error {
	return m.backend.Close()
}

func NewManager(name string, backend Backend) (Manager, error) {
	managerV := &manager{
		mutex:   &sync.Mutex{},
		mm:      map[string]*controller{},
		name:    name,
		backend: backend,
	}
	return managerV, managerV.init()
}
