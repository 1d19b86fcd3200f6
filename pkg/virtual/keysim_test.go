package virtual

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/padlink/padlink/pkg/models"
)

// fakeInjector records key transitions.
type fakeInjector struct {
	mu       sync.Mutex
	events   []string
	failNext bool
}

func (f *fakeInjector) Press(key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failNext {
		f.failNext = false
		return errors.New("injection failed")
	}
	f.events = append(f.events, "press:"+key)
	return nil
}

func (f *fakeInjector) Release(key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, "release:"+key)
	return nil
}

func (f *fakeInjector) snapshot() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.events...)
}

func connectedKeySim(t *testing.T) (*KeySim, *fakeInjector) {
	t.Helper()
	inj := &fakeInjector{}
	k := NewKeySim(1, inj)
	require.NoError(t, k.Connect())
	return k, inj
}

func keysimInput(buttons models.ButtonState, axes models.AxisState) *models.ControllerInputData {
	return models.NewControllerInputData(1, "guid-a_0", models.InputMethodXInput, buttons, axes)
}

func TestKeySim_ButtonsMapToKeys(t *testing.T) {
	k, _ := connectedKeySim(t)

	require.NoError(t, k.UpdateState(keysimInput(
		models.ButtonState{A: true, Start: true, DPadLeft: true}, models.AxisState{})))

	held := k.HeldKeys()
	assert.ElementsMatch(t, []string{"z", "return", "left"}, held)
}

func TestKeySim_SticksMapToDirections(t *testing.T) {
	k, _ := connectedKeySim(t)

	require.NoError(t, k.UpdateState(keysimInput(models.ButtonState{}, models.AxisState{
		LeftStickX:  -1.0, // a
		LeftStickY:  0.8,  // w
		RightStickX: 0.6,  // l
	})))

	assert.ElementsMatch(t, []string{"a", "w", "l"}, k.HeldKeys())

	// Below the deflection threshold nothing is held.
	require.NoError(t, k.UpdateState(keysimInput(models.ButtonState{}, models.AxisState{
		LeftStickX: 0.3,
	})))
	assert.Empty(t, k.HeldKeys())
}

func TestKeySim_OnlyTransitionsReachInjector(t *testing.T) {
	k, inj := connectedKeySim(t)

	state := keysimInput(models.ButtonState{A: true}, models.AxisState{})
	require.NoError(t, k.UpdateState(state))
	require.NoError(t, k.UpdateState(state))
	require.NoError(t, k.UpdateState(state))

	assert.Equal(t, []string{"press:z"}, inj.snapshot())

	require.NoError(t, k.UpdateState(keysimInput(models.ButtonState{}, models.AxisState{})))
	assert.Equal(t, []string{"press:z", "release:z"}, inj.snapshot())
}

func TestKeySim_ResetReleasesEverything(t *testing.T) {
	k, _ := connectedKeySim(t)

	require.NoError(t, k.UpdateState(keysimInput(
		models.ButtonState{A: true, B: true}, models.AxisState{LeftStickY: -1.0})))
	require.Len(t, k.HeldKeys(), 3)

	k.ResetState()
	assert.Empty(t, k.HeldKeys())
}

func TestKeySim_DisconnectReleasesHeldKeys(t *testing.T) {
	k, inj := connectedKeySim(t)

	require.NoError(t, k.UpdateState(keysimInput(models.ButtonState{X: true}, models.AxisState{})))

	k.Disconnect()
	assert.Empty(t, k.HeldKeys())
	assert.Contains(t, inj.snapshot(), "release:c")

	assert.ErrorIs(t, k.UpdateState(keysimInput(models.ButtonState{}, models.AxisState{})), ErrNotConnected)
}

func TestKeySim_FailedPressIsNotHeld(t *testing.T) {
	k, inj := connectedKeySim(t)
	inj.failNext = true

	require.NoError(t, k.UpdateState(keysimInput(models.ButtonState{A: true}, models.AxisState{})))
	assert.Empty(t, k.HeldKeys())
}

func TestKeySimFactory(t *testing.T) {
	f := KeySimFactory(&fakeInjector{})
	dev, err := f(1)
	require.NoError(t, err)
	require.NoError(t, dev.Connect())

	_, err = KeySimFactory(nil)(1)
	assert.Error(t, err)
}
