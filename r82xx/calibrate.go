package r82xx

import "fmt"

// Filter calibration parameters shared by every standard.
const (
	filterCalLO    = 56000000 // Hz
	defaultIF      = 3570000  // Hz, channels below 6 MHz
	filtGain       = 0x10     // +3 dB, 6 MHz on
	imgR           = 0x00     // image negative
	filtQ          = 0x10     // R10[4] low Q
	hpCorner       = 0x6b     // 1.7 MHz disable, +2 cap, 1.0 MHz
	extEnable      = 0x60     // R30[6] ext enable, R30[5] ext at LNA max-1
	loopThrough    = 0x01     // R5[7] loop-through off
	loopThroughAtt = 0x00     // R31[7] loop-through attenuation enable
	fltExtWidest   = 0x00     // R15[7] filter extension widest off
	polyfilCurrent = 0x60     // R25[6:5] min

	filterCalAttempts = 2
	xtal16MHz         = 16000000
)

// CalibrationResult reports the outcome of ApplyStandard. Locked is false when
// the calibration LO did not lock, in which case no filter code was measured
// and the standard was not recorded.
type CalibrationResult struct {
	Locked     bool  `json:"locked"`
	FilterCode uint8 `json:"filter_code"`
	Calibrated bool  `json:"calibrated"`
}

// CalibrateCrystal sweeps the crystal load capacitors and keeps the first
// setting at which the PLL locks with a usable VCO band.
func (t *Tuner) CalibrateCrystal() (XtalCap, error) {
	t.regs = initArray

	// 30 pF, drive low
	if err := t.writeMasked(RegPLLDivider, 0x0b, 0x0b); err != nil {
		return 0, fmt.Errorf("xtal check: %w", err)
	}

	// PLL autotune 128 kHz
	if err := t.writeMasked(RegMuxAGC, 0x00, 0x0c); err != nil {
		return 0, fmt.Errorf("xtal check: %w", err)
	}

	// Manual initial reg = 111111, then auto
	if err := t.writeMasked(RegVersion, 0x7f, 0x7f); err != nil {
		return 0, fmt.Errorf("xtal check: %w", err)
	}
	if err := t.writeMasked(RegVersion, 0x00, 0x40); err != nil {
		return 0, fmt.Errorf("xtal check: %w", err)
	}

	var data [3]uint8
	for _, c := range xtalCapacitors {
		if err := t.writeMasked(RegPLLDivider, c.mask, 0x1b); err != nil {
			return 0, fmt.Errorf("xtal check: %w", err)
		}

		if err := t.read(RegStatus, data[:]); err != nil {
			return 0, fmt.Errorf("xtal check: %w", err)
		}
		if data[2]&StatusLocked == 0 {
			continue
		}

		val := data[2] & StatusVCOBand
		if xtalCapAccepted(t.cfg.Xtal, val) {
			t.xtalCapSel = c.cap
			return c.cap, nil
		}
	}

	t.log.Error("Crystal capacitor sweep exhausted", "register", hexByte(RegPLLDivider))
	return 0, ErrXtalCheckFailed
}

// xtalCapAccepted decides whether a locked VCO band code ends the sweep.
func xtalCapAccepted(xtal uint32, val uint8) bool {
	if xtal == xtal16MHz && (val > 29 || val < 23) {
		return true
	}
	return val != StatusVCOBand
}

// ApplyStandard reloads the register image, calibrates the channel filter and
// programs the filter defaults for the given standard.
func (t *Tuner) ApplyStandard(bw uint32, typ ReceptionType, std Standard) (CalibrationResult, error) {
	var res CalibrationResult

	changed := bw != t.bandwidth || typ != t.receptionType || std != t.standard
	t.log.Debug("Applying standard",
		"bandwidth", bw,
		"type", typ.String(),
		"standard", std.String(),
		"changed", changed)

	t.regs = initArray

	// Init flag and xtal check result
	if err := t.writeMasked(RegVGA, 0x00, 0x0f); err != nil {
		return res, fmt.Errorf("apply standard: %w", err)
	}

	if err := t.writeMasked(RegVersion, VersionNumber, 0x3f); err != nil {
		return res, fmt.Errorf("apply standard: %w", err)
	}

	// LT gain test
	if typ != ReceptionAnalogTV {
		if err := t.writeMasked(RegLNATop, 0x00, 0x38); err != nil {
			return res, fmt.Errorf("apply standard: %w", err)
		}
	}

	t.ifBandCenter = 0
	t.intFreq = defaultIF

	// The host applies a standard once per change, so calibration always runs.
	code, locked, err := t.calibrateFilter()
	if err != nil {
		return res, fmt.Errorf("apply standard: %w", err)
	}
	res.Locked = locked
	if !locked {
		t.log.Warn("Filter calibration aborted, PLL not locked", "lo", filterCalLO)
		return res, nil
	}
	res.FilterCode = code
	res.Calibrated = code != 0
	t.filCalCode = code

	writes := []struct {
		reg, val, mask uint8
	}{
		{RegFilterCal, filtQ | code, 0x1f},
		{RegFilterBW, hpCorner, 0xef},    // bandwidth, filter gain, HP corner
		{RegMixerGain, imgR, 0x80},       // image rejection
		{RegFilterPower, filtGain, 0x30}, // filt_3dB, V6MHz
		{RegDischarge, extEnable, 0x60},  // channel filter extension
		{RegInputGain, loopThrough, 0x80},
		{RegLoopAtten, loopThroughAtt, 0x80},
		{RegCalClock, fltExtWidest, 0x80},
		{RegPolyFilter, polyfilCurrent, 0x60},
	}
	for _, w := range writes {
		if err := t.writeMasked(w.reg, w.val, w.mask); err != nil {
			return res, fmt.Errorf("apply standard: %w", err)
		}
	}

	t.standard = std
	t.receptionType = typ
	t.bandwidth = bw
	return res, nil
}

// SetStandard switches the tuner to a new standard. It applies the standard,
// reprograms the front-end profile for it and retunes the last frequency,
// since filter calibration moves the LO. Nothing past ApplyStandard runs when
// the calibration PLL does not lock.
func (t *Tuner) SetStandard(bw uint32, typ ReceptionType, std Standard) (CalibrationResult, error) {
	res, err := t.ApplyStandard(bw, typ, std)
	if err != nil || !res.Locked {
		return res, err
	}

	if err := t.SelectRFProfile(t.frequency, typ, std); err != nil {
		return res, fmt.Errorf("set standard: %w", err)
	}

	if t.frequency != 0 {
		if _, err := t.SetFrequency(t.frequency); err != nil {
			return res, fmt.Errorf("set standard: %w", err)
		}
	}
	return res, nil
}

// calibrateFilter runs the filter self-calibration up to twice. A code of 0
// selects the narrowest filter.
func (t *Tuner) calibrateFilter() (code uint8, locked bool, err error) {
	var data [5]uint8
	for i := 0; i < filterCalAttempts; i++ {
		// Filter cap
		if err := t.writeMasked(RegFilterBW, hpCorner, 0x60); err != nil {
			return 0, false, err
		}

		// Calibration clock on
		if err := t.writeMasked(RegCalClock, 0x04, 0x04); err != nil {
			return 0, false, err
		}

		// Xtal cap 0 pF for the PLL
		if err := t.writeMasked(RegPLLDivider, 0x00, 0x03); err != nil {
			return 0, false, err
		}

		if err := t.programPLL(filterCalLO); err != nil {
			return 0, false, err
		}
		if !t.hasLock {
			return 0, false, nil
		}

		// Start and stop trigger
		if err := t.writeMasked(RegFilterBW, 0x10, 0x10); err != nil {
			return 0, true, err
		}
		if err := t.writeMasked(RegFilterBW, 0x00, 0x10); err != nil {
			return 0, true, err
		}

		// Calibration clock off
		if err := t.writeMasked(RegCalClock, 0x00, 0x04); err != nil {
			return 0, true, err
		}

		if err := t.read(RegStatus, data[:]); err != nil {
			return 0, true, err
		}

		code = data[4] & StatusFilterCode
		if code != 0 && code != filterCodeSentinel {
			return code, true, nil
		}
		t.log.Debug("Filter calibration attempt rejected", "attempt", i+1, "code", code)
	}

	if code == filterCodeSentinel {
		code = 0
	}
	return code, true, nil
}
