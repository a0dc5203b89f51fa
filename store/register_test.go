package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type counterState struct {
	Count int64
}

func TestGobRegisterOrGetInitializes(t *testing.T) {
	manager, err := NewManager("job", NewMemoryBackend())
	require.NoError(t, err)
	ctrl := manager.Controller("ns")
	stateRefer, err := GobRegisterOrGet[counterState](ctrl, "counter", func() counterState {
		return counterState{Count: 5}
	})
	require.NoError(t, err)
	assert.Equal(t, int64(5), stateRefer.Pointer().Count)

	//a second register returns the same live state
	again, err := GobRegisterOrGet[counterState](ctrl, "counter", func() counterState {
		return counterState{}
	})
	require.NoError(t, err)
	stateRefer.Pointer().Count = 7
	assert.Equal(t, int64(7), again.Pointer().Count)
}

func TestManagerSavePersistRestore(t *testing.T) {
	backend := NewMemoryBackend()
	manager, err := NewManager("job", backend)
	require.NoError(t, err)
	stateRefer, err := GobRegisterOrGet[counterState](manager.Controller("ns"), "counter", func() counterState {
		return counterState{}
	})
	require.NoError(t, err)
	stateRefer.Pointer().Count = 42
	require.NoError(t, manager.Save(1))
	require.NoError(t, manager.Persist(1))

	//a new manager over the same backend restores the mirrored state
	restored, err := NewManager("job", backend)
	require.NoError(t, err)
	restoredRefer, err := GobRegisterOrGet[counterState](restored.Controller("ns"), "counter", func() counterState {
		return counterState{}
	})
	require.NoError(t, err)
	assert.Equal(t, int64(42), restoredRefer.Pointer().Count)
}

func TestStateClear(t *testing.T) {
	manager, err := NewManager("job", NewMemoryBackend())
	require.NoError(t, err)
	stateRefer, err := GobRegisterOrGet[counterState](manager.Controller("ns"), "counter", func() counterState {
		return counterState{Count: 3}
	})
	require.NoError(t, err)
	stateRefer.Clear()
	assert.Equal(t, int64(0), stateRefer.Pointer().Count)
}
