package r82xx

import (
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"
)

type busWrite struct {
	addr uint8
	data []byte
}

// fakeBus records writes and answers reads from a scripted status block.
// Status bytes are given in register order and bit reversed on the way out,
// as the chip does.
type fakeBus struct {
	writes []busWrite
	reads  int

	status   [5]uint8
	statuses [][5]uint8 // consumed one per read before falling back to status

	failWrite  bool
	shortWrite bool
	failRead   bool
}

var errFakeBus = errors.New("fake bus failure")

func lockedStatus() [5]uint8 {
	// locked, VCO band 0x20, fine-tune 2, filter code 7
	return [5]uint8{0x00, 0x00, 0x60, 0x00, 0x27}
}

func (b *fakeBus) Write(addr uint8, data []byte) (int, error) {
	if b.failWrite {
		return 0, errFakeBus
	}
	b.writes = append(b.writes, busWrite{addr: addr, data: append([]byte(nil), data...)})
	if b.shortWrite {
		return len(data) - 1, nil
	}
	return len(data), nil
}

func (b *fakeBus) Read(addr uint8, data []byte) (int, error) {
	if b.failRead {
		return 0, errFakeBus
	}
	b.reads++

	src := b.status
	if len(b.statuses) > 0 {
		src = b.statuses[0]
		b.statuses = b.statuses[1:]
	}
	for i := range data {
		data[i] = bitReverse(src[i%len(src)])
	}
	return len(data), nil
}

// lastValue returns the last byte sent to reg, overrides included.
func (b *fakeBus) lastValue(reg uint8) (uint8, bool) {
	var val uint8
	found := false
	for _, w := range b.writes {
		if len(w.data) < 2 {
			continue
		}
		start := int(w.data[0])
		for k, v := range w.data[1:] {
			if start+k == int(reg) {
				val, found = v, true
			}
		}
	}
	return val, found
}

// dataWrites returns the writes that carried register data, skipping address
// selects for reads.
func (b *fakeBus) dataWrites() []busWrite {
	var out []busWrite
	for _, w := range b.writes {
		if len(w.data) > 1 {
			out = append(out, w)
		}
	}
	return out
}

func (b *fakeBus) reset() {
	b.writes = nil
	b.reads = 0
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestTuner(t *testing.T, cfg Config) (*Tuner, *fakeBus) {
	t.Helper()

	bus := &fakeBus{status: lockedStatus()}
	cfg.Logger = testLogger()

	tuner, err := New(bus, cfg)
	require.NoError(t, err)
	return tuner, bus
}

func cached(t *testing.T, tuner *Tuner, reg uint8) uint8 {
	t.Helper()

	v, ok := tuner.ReadCachedRegister(reg)
	require.True(t, ok, "register 0x%02X not cached", reg)
	return v
}
