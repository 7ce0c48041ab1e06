// Package r82xx drives the Rafael Micro R820T/R828D family of silicon tuners.
//
// A Tuner owns the host-side mirror of the chip's writable registers and turns
// frequency, bandwidth and gain requests into masked register writes over a
// Bus. A Tuner is not safe for concurrent use; callers serialize access.
package r82xx

import (
	"errors"
	"fmt"
	"log/slog"
)

var (
	ErrBus             = errors.New("tuner bus transfer failed")
	ErrPLLOutOfRange   = errors.New("no valid PLL values for frequency")
	ErrOverrideAddress = errors.New("override register outside shadow window")
	ErrNotCached       = errors.New("register not cached")
	ErrXtalCheckFailed = errors.New("no crystal capacitor setting locked")
	ErrInvalidConfig   = errors.New("invalid tuner configuration")
)

func busError(op string, reg, n, want int, err error) error {
	if err != nil {
		return fmt.Errorf("%w: %s register 0x%02X: %w", ErrBus, op, reg, err)
	}
	return fmt.Errorf("%w: %s register 0x%02X: transferred %d of %d bytes", ErrBus, op, reg, n, want)
}

// Standard applied at Init, before any host request.
const (
	initBandwidth = 3
	initStandard  = StandardUndefined
	initProfile   = StandardDVBT
)

// Input path switch point for dual-input parts, compared against the RF
// frequency rather than the LO.
const inputSwitchFreq = 345000000

// Tuner is the driver state for one physical tuner.
type Tuner struct {
	bus Bus
	cfg Config
	log *slog.Logger
	buf []byte

	regs         [NumRegs]uint8
	overrideMask [NumRegs]uint8
	overrideData [NumRegs]uint8

	xtalCapSel    XtalCap
	hasLock       bool
	intFreq       uint32
	ifBandCenter  int32
	standard      Standard
	receptionType ReceptionType
	bandwidth     uint32
	appliedBW     uint32
	filCalCode    uint8
	input         InputPath
	initialized   bool
	frequency     uint32
	loFrequency   uint32
}

// New validates cfg and returns an uninitialized tuner on bus.
func New(bus Bus, cfg Config) (*Tuner, error) {
	cfg.setDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	t := &Tuner{
		bus:           bus,
		cfg:           cfg,
		log:           cfg.Logger.With("tuner", cfg.Chip.String()),
		buf:           make([]byte, cfg.MaxMessageLen),
		regs:          initArray,
		xtalCapSel:    XtalHighCap0P,
		receptionType: ReceptionUnset,
	}
	return t, nil
}

// Config returns the effective configuration, defaults applied.
func (t *Tuner) Config() Config {
	return t.cfg
}

// Init loads the power-on register image and applies the default digital
// standard. Overrides are cleared.
func (t *Tuner) Init() (CalibrationResult, error) {
	t.xtalCapSel = XtalHighCap0P
	t.ifBandCenter = 0
	t.clearOverrides()

	if err := t.write(RegShadowStart, initArray[:]); err != nil {
		t.log.Error("Init failed", "error", err)
		return CalibrationResult{}, fmt.Errorf("init: %w", err)
	}

	if t.cfg.XtalCheck {
		xtalCap, err := t.CalibrateCrystal()
		if err != nil {
			if !errors.Is(err, ErrXtalCheckFailed) {
				return CalibrationResult{}, fmt.Errorf("init: %w", err)
			}
			t.log.Warn("Crystal capacitor check failed, keeping default", "cap", t.xtalCapSel.String())
		} else {
			t.log.Info("Crystal capacitor selected", "cap", xtalCap.String())
		}
	}

	res, err := t.ApplyStandard(initBandwidth, ReceptionDigitalTV, initStandard)
	if err != nil {
		t.log.Error("Init failed", "error", err)
		return res, fmt.Errorf("init: %w", err)
	}

	if err := t.SelectRFProfile(0, ReceptionDigitalTV, initProfile); err != nil {
		t.log.Error("Init failed", "error", err)
		return res, fmt.Errorf("init: %w", err)
	}

	t.initialized = true
	t.log.Info("Tuner initialized",
		"xtal", t.cfg.Xtal,
		"filter_cal_code", t.filCalCode,
		"locked", res.Locked)
	return res, nil
}

var standbySequence = []struct {
	reg, val uint8
}{
	{0x06, 0xb1},
	{0x05, 0xa0},
	{0x07, 0x3a},
	{0x08, 0x40},
	{0x09, 0xc0},
	{0x0a, 0x36},
	{0x0c, 0x35},
	{0x0f, 0x68},
	{0x11, 0x03},
	{0x17, 0xf4},
	{0x19, 0x0c},
}

// Standby powers down the signal path. It is a no-op before Init. The next
// standard apply recalibrates.
func (t *Tuner) Standby() error {
	if !t.initialized {
		return nil
	}

	for _, w := range standbySequence {
		if err := t.writeReg(w.reg, w.val); err != nil {
			t.log.Error("Standby failed", "register", hexByte(int(w.reg)), "error", err)
			return fmt.Errorf("standby: %w", err)
		}
	}

	t.receptionType = ReceptionUnset
	t.log.Info("Tuner in standby")
	return nil
}

// TuneResult reports what SetFrequency programmed. Locked is false when the
// PLL did not lock after retries; the call still succeeds in that case.
type TuneResult struct {
	Frequency   uint32    `json:"frequency"`
	LOFrequency uint32    `json:"lo_frequency"`
	BandMHz     uint32    `json:"band_mhz"`
	Locked      bool      `json:"locked"`
	Input       InputPath `json:"input"`
}

// SetFrequency tunes the LO to freq plus the IF and band center offset.
func (t *Tuner) SetFrequency(freq uint32) (TuneResult, error) {
	lo := uint32(int64(freq) + int64(t.intFreq) + int64(t.ifBandCenter))
	res := TuneResult{
		Frequency:   freq,
		LOFrequency: lo,
		BandMHz:     freqRanges[lookupFreqRange(lo)].freq,
		Input:       t.input,
	}

	if err := t.selectMux(lo); err != nil {
		t.log.Error("Set frequency failed", "frequency", freq, "lo", lo, "error", err)
		return res, fmt.Errorf("set frequency %d Hz: %w", freq, err)
	}

	if err := t.programPLL(lo); err != nil {
		t.log.Error("Set frequency failed", "frequency", freq, "lo", lo, "error", err)
		return res, fmt.Errorf("set frequency %d Hz: %w", freq, err)
	}

	t.frequency = freq
	t.loFrequency = lo
	res.Locked = t.hasLock
	if !t.hasLock {
		t.log.Warn("PLL not locked", "frequency", freq, "lo", lo)
		return res, nil
	}

	if t.cfg.Chip == ChipR828D {
		path := InputCable1
		if freq > inputSwitchFreq {
			path = InputAirIn
		}
		if path != t.input {
			t.input = path
			if err := t.writeMasked(RegInputGain, uint8(path), 0x60); err != nil {
				t.log.Error("Input switch failed", "input", path.String(), "error", err)
				return res, fmt.Errorf("set frequency %d Hz: %w", freq, err)
			}
			t.log.Info("Input path switched", "input", path.String(), "frequency", freq)
		}
		res.Input = t.input
	}

	return res, nil
}

// SetBandCenterOffset stores an offset added to the LO on the next
// SetFrequency and returns the current IF.
func (t *Tuner) SetBandCenterOffset(offset int32) uint32 {
	t.ifBandCenter = offset
	return t.intFreq
}

// HasLock reports whether the last PLL programming observed lock.
func (t *Tuner) HasLock() bool {
	return t.hasLock
}

// IntermediateFrequency returns the IF in Hz used for LO planning.
func (t *Tuner) IntermediateFrequency() uint32 {
	return t.intFreq
}

// Initialized reports whether Init completed.
func (t *Tuner) Initialized() bool {
	return t.initialized
}

// Status is a snapshot of the tuner state.
type Status struct {
	Chip             string         `json:"chip"`
	Initialized      bool           `json:"initialized"`
	Locked           bool           `json:"locked"`
	Frequency        uint32         `json:"frequency"`
	LOFrequency      uint32         `json:"lo_frequency"`
	IF               uint32         `json:"intermediate_frequency"`
	BandCenterOffset int32          `json:"band_center_offset"`
	Standard         string         `json:"standard"`
	ReceptionType    string         `json:"reception_type"`
	Bandwidth        uint32         `json:"bandwidth"`
	AppliedBandwidth uint32         `json:"applied_bandwidth"`
	FilterCalCode    uint8          `json:"filter_cal_code"`
	Input            string         `json:"input"`
	XtalCap          string         `json:"xtal_cap"`
	VGAGain          int            `json:"vga_gain"`
	Registers        [NumRegs]uint8 `json:"registers"`
}

// Status returns the current state.
func (t *Tuner) Status() Status {
	return Status{
		Chip:             t.cfg.Chip.String(),
		Initialized:      t.initialized,
		Locked:           t.hasLock,
		Frequency:        t.frequency,
		LOFrequency:      t.loFrequency,
		IF:               t.intFreq,
		BandCenterOffset: t.ifBandCenter,
		Standard:         t.standard.String(),
		ReceptionType:    t.receptionType.String(),
		Bandwidth:        t.bandwidth,
		AppliedBandwidth: t.appliedBW,
		FilterCalCode:    t.filCalCode,
		Input:            t.input.String(),
		XtalCap:          t.xtalCapSel.String(),
		VGAGain:          vgaGain(t.regs[RegVGA-RegShadowStart] & 0x0f),
		Registers:        t.regs,
	}
}
