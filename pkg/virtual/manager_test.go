package virtual

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/padlink/padlink/pkg/models"
)

// trackingFactory hands out NullDevices and remembers them by number.
type trackingFactory struct {
	mu      sync.Mutex
	devices map[int]*NullDevice
	fail    bool
}

func newTrackingFactory() *trackingFactory {
	return &trackingFactory{devices: make(map[int]*NullDevice)}
}

func (f *trackingFactory) factory(number int) (Device, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return nil, errors.New("driver unavailable")
	}
	d := NewNullDevice(number)
	f.devices[number] = d
	return d, nil
}

func (f *trackingFactory) device(number int) *NullDevice {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.devices[number]
}

func input(number int) *models.ControllerInputData {
	return models.NewControllerInputData(number, "guid-a_0", models.InputMethodXInput,
		models.ButtonState{A: true}, models.AxisState{})
}

func startedManager(t *testing.T, cfg ManagerConfig) (*Manager, *trackingFactory) {
	t.Helper()
	f := newTrackingFactory()
	m := NewManager(f.factory, cfg)
	m.Start()
	t.Cleanup(m.Stop)
	return m, f
}

func TestManager_CreateIsIdempotent(t *testing.T) {
	m, _ := startedManager(t, ManagerConfig{MaxControllers: 4})

	assert.True(t, m.Create(1))
	assert.True(t, m.Create(1))
	assert.Equal(t, 1, m.ActiveCount())
	assert.True(t, m.IsActive(1))
}

func TestManager_RejectsWhenStopped(t *testing.T) {
	f := newTrackingFactory()
	m := NewManager(f.factory, ManagerConfig{MaxControllers: 4})

	assert.False(t, m.Create(1))
	assert.False(t, m.UpdateState(input(1)))
}

func TestManager_EnforcesNumberBounds(t *testing.T) {
	m, _ := startedManager(t, ManagerConfig{MaxControllers: 4})

	assert.False(t, m.Create(0))
	assert.False(t, m.Create(-1))
	assert.False(t, m.Create(models.MaxControllerNumber+1))
	assert.True(t, m.Create(models.MaxControllerNumber))
}

func TestManager_UnlimitedAcceptsAnyPositiveNumber(t *testing.T) {
	m, _ := startedManager(t, ManagerConfig{MaxControllers: 0})

	assert.True(t, m.Create(42))
	assert.False(t, m.Create(0))
	assert.Equal(t, []int{42}, m.ControllerNumbers())
}

func TestManager_EnforcesCapacity(t *testing.T) {
	m, _ := startedManager(t, ManagerConfig{MaxControllers: 2})

	assert.True(t, m.Create(1))
	assert.True(t, m.Create(2))
	assert.False(t, m.Create(3))

	// Removing one frees the slot.
	assert.True(t, m.Remove(1))
	assert.True(t, m.Create(3))
}

func TestManager_FactoryFailureReturnsFalse(t *testing.T) {
	m, f := startedManager(t, ManagerConfig{MaxControllers: 4})
	f.fail = true

	assert.False(t, m.Create(1))
	assert.Equal(t, 0, m.ActiveCount())
}

func TestManager_UpdateStateAutoCreates(t *testing.T) {
	m, f := startedManager(t, ManagerConfig{MaxControllers: 4, AutoCreate: true})

	require.True(t, m.UpdateState(input(3)))
	assert.True(t, m.IsActive(3))

	dev := f.device(3)
	require.NotNil(t, dev)
	require.NotNil(t, dev.LastState())
	assert.True(t, dev.LastState().Buttons.A)
}

func TestManager_UpdateStateWithoutAutoCreate(t *testing.T) {
	m, _ := startedManager(t, ManagerConfig{MaxControllers: 4})

	assert.False(t, m.UpdateState(input(3)))

	require.True(t, m.Create(3))
	assert.True(t, m.UpdateState(input(3)))
}

func TestManager_RemoveResetsDevice(t *testing.T) {
	m, f := startedManager(t, ManagerConfig{MaxControllers: 4})

	require.True(t, m.Create(2))
	require.True(t, m.UpdateState(input(2)))

	dev := f.device(2)
	require.NotNil(t, dev.LastState())

	assert.True(t, m.Remove(2))
	assert.Nil(t, dev.LastState(), "device must go neutral before removal")
	assert.False(t, m.IsActive(2))

	assert.False(t, m.Remove(2))
}

func TestManager_ResetAndResetAll(t *testing.T) {
	m, f := startedManager(t, ManagerConfig{MaxControllers: 4})

	require.True(t, m.Create(1))
	require.True(t, m.Create(2))
	require.True(t, m.UpdateState(input(1)))
	require.True(t, m.UpdateState(input(2)))

	assert.True(t, m.Reset(1))
	assert.Nil(t, f.device(1).LastState())
	require.NotNil(t, f.device(2).LastState())

	m.ResetAll()
	assert.Nil(t, f.device(2).LastState())

	assert.False(t, m.Reset(7))
}

func TestManager_StopRemovesEverything(t *testing.T) {
	m, _ := startedManager(t, ManagerConfig{MaxControllers: 4})

	require.True(t, m.Create(1))
	require.True(t, m.Create(2))

	m.Stop()

	assert.Equal(t, 0, m.ActiveCount())
	assert.False(t, m.Running())
}

func TestManager_LifecycleCallbacks(t *testing.T) {
	var mu sync.Mutex
	var created, destroyed []int

	m, _ := startedManager(t, ManagerConfig{
		MaxControllers: 4,
		CreationCallback: func(n int) {
			mu.Lock()
			created = append(created, n)
			mu.Unlock()
		},
		DestructionCallback: func(n int) {
			mu.Lock()
			destroyed = append(destroyed, n)
			mu.Unlock()
		},
	})

	require.True(t, m.Create(1))
	require.True(t, m.Create(2))
	require.True(t, m.Remove(1))

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []int{1, 2}, created)
	assert.Equal(t, []int{1}, destroyed)
}

func TestLookupDriver(t *testing.T) {
	f, err := LookupDriver("null")
	require.NoError(t, err)
	require.NotNil(t, f)

	_, err = LookupDriver("missing")
	assert.ErrorIs(t, err, ErrUnknownDriver)

	assert.Contains(t, DriverNames(), "null")
}
