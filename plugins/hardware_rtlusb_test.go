package plugins

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRTLUSBBusTransfers(t *testing.T) {
	ctrl := &fakeControl{}
	bus := &RTLUSBBus{ctrl: ctrl}

	n, err := bus.Write(0x1a, []byte{0x05, 0x83, 0x32})
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	buf := make([]byte, 5)
	n, err = bus.Read(0x1a, buf)
	require.NoError(t, err)
	assert.Equal(t, 5, n)

	require.Len(t, ctrl.calls, 2)

	// 8-bit address in wValue, I2C block in the high byte of wIndex
	assert.Equal(t, controlCall{
		requestType: 0x40,
		value:       0x34,
		index:       0x0610,
		data:        []byte{0x05, 0x83, 0x32},
	}, ctrl.calls[0])
	assert.Equal(t, uint8(0xc0), ctrl.calls[1].requestType)
	assert.Equal(t, uint16(0x34), ctrl.calls[1].value)
	assert.Equal(t, uint16(0x0600), ctrl.calls[1].index)
}

func TestRTLUSBBusRepeater(t *testing.T) {
	tests := []struct {
		on  bool
		val uint8
	}{
		{true, 0x18},
		{false, 0x10},
	}

	for _, tt := range tests {
		ctrl := &fakeControl{}
		bus := &RTLUSBBus{ctrl: ctrl}

		require.NoError(t, bus.SetRepeater(tt.on))
		require.Len(t, ctrl.calls, 2)

		assert.Equal(t, controlCall{
			requestType: 0x40,
			value:       0x0120,
			index:       0x0011,
			data:        []byte{tt.val},
		}, ctrl.calls[0])

		// Dummy read from page 0x0a
		assert.Equal(t, uint8(0xc0), ctrl.calls[1].requestType)
		assert.Equal(t, uint16(0x0120), ctrl.calls[1].value)
		assert.Equal(t, uint16(0x000a), ctrl.calls[1].index)
	}
}

func TestRTLUSBBusErrors(t *testing.T) {
	ctrl := &fakeControl{err: errFakeBus}
	bus := &RTLUSBBus{ctrl: ctrl}

	_, err := bus.Write(0x1a, []byte{0x05})
	assert.ErrorIs(t, err, errFakeBus)

	_, err = bus.Read(0x1a, make([]byte, 1))
	assert.ErrorIs(t, err, errFakeBus)

	assert.ErrorIs(t, bus.SetRepeater(true), errFakeBus)
}

func TestRTLUSBBusCloseWithoutDevice(t *testing.T) {
	ctrl := &fakeControl{}
	bus := &RTLUSBBus{ctrl: ctrl, Product: "RTL2838UHIDIR"}

	assert.Equal(t, "rtlsdr:RTL2838UHIDIR", bus.String())
	require.NoError(t, bus.Close())

	// Repeater switched off on the way out
	require.Len(t, ctrl.calls, 2)
	assert.Equal(t, []byte{0x10}, ctrl.calls[0].data)
	assert.Nil(t, bus.ctrl)
}
