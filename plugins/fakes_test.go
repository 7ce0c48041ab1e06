package plugins

import (
	"errors"
	"sync"
)

var errFakeBus = errors.New("fake bus failure")

// fakeBus answers every status read with a locked PLL and filter code 7
type fakeBus struct {
	mu        sync.Mutex
	writes    int
	failWrite bool
	closed    bool
	status    [5]uint8
}

func newFakeBus() *fakeBus {
	return &fakeBus{status: [5]uint8{0x96, 0x00, 0x60, 0x00, 0x27}}
}

func reverseBits(b uint8) uint8 {
	var r uint8
	for i := 0; i < 8; i++ {
		r = r<<1 | b>>i&1
	}
	return r
}

func (b *fakeBus) Write(addr uint8, data []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.failWrite {
		return 0, errFakeBus
	}
	b.writes++
	return len(data), nil
}

func (b *fakeBus) Read(addr uint8, data []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for i := range data {
		if i < len(b.status) {
			data[i] = reverseBits(b.status[i])
		}
	}
	return len(data), nil
}

func (b *fakeBus) Close() error {
	b.closed = true
	return nil
}

func (b *fakeBus) String() string {
	return "fake"
}

type fakeBiasTee struct {
	on     bool
	closed bool
}

func (f *fakeBiasTee) SetBiasTee(on bool) error {
	f.on = on
	return nil
}

func (f *fakeBiasTee) BiasTee() (bool, error) {
	return f.on, nil
}

func (f *fakeBiasTee) Info() string {
	return "GPIO: fake, Bias-tee Pin: 17"
}

func (f *fakeBiasTee) Close() error {
	f.closed = true
	return nil
}

type controlCall struct {
	requestType uint8
	value       uint16
	index       uint16
	data        []byte
}

// fakeControl records EP0 transfers and fills reads with 0xff
type fakeControl struct {
	calls []controlCall
	err   error
}

func (f *fakeControl) Control(requestType, request uint8, value, index uint16, data []byte) (int, error) {
	if f.err != nil {
		return 0, f.err
	}
	call := controlCall{requestType: requestType, value: value, index: index}
	if requestType == rtlCtrlIn {
		for i := range data {
			data[i] = 0xff
		}
	} else {
		call.data = append([]byte(nil), data...)
	}
	f.calls = append(f.calls, call)
	return len(data), nil
}
