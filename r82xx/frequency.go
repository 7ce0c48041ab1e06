package r82xx

import "fmt"

// VCO window in kHz.
const (
	vcoMinKHz = 1770000
	vcoMaxKHz = 2 * vcoMinKHz
)

// selectMux programs the front-end band for the LO frequency freq.
func (t *Tuner) selectMux(freq uint32) error {
	r := freqRanges[lookupFreqRange(freq)]

	// Open drain
	if err := t.writeMasked(RegDriveOpen, r.openD, 0x08); err != nil {
		return err
	}

	// RF mux, polyphase mux
	if err := t.writeMasked(RegMuxAGC, r.rfMuxPoly, 0xc3); err != nil {
		return err
	}

	// Tracking filter band
	if err := t.writeReg(RegTrackFilter, r.tfC); err != nil {
		return err
	}

	// Xtal cap and drive
	var val uint8
	switch t.xtalCapSel {
	case XtalLowCap30P, XtalLowCap20P:
		val = r.xtalCap20p | 0x08
	case XtalLowCap10P:
		val = r.xtalCap10p | 0x08
	case XtalHighCap0P:
		val = r.xtalCap0p
	default:
		val = r.xtalCap0p | 0x08
	}
	if err := t.writeMasked(RegPLLDivider, val, 0x0b); err != nil {
		return err
	}

	if err := t.writeMasked(RegImageTrimA, 0x00, 0x3f); err != nil {
		return err
	}
	return t.writeMasked(RegImageTrimB, 0x00, 0x3f)
}

// pllPlan is the divider solution for one LO frequency.
type pllPlan struct {
	mixDiv uint32 // mixer divider, 2..64, or 128 when no divider fits the VCO window
	divNum uint8  // divider ratio exponent before fine-tune adjustment
	vco    uint64 // Hz
	vcoDiv uint64 // 65536*nint + sdm
	nint   uint32
	sdm    uint32
}

// mixerDivider finds the smallest mixer divider placing freqKHz inside the
// VCO window. The divider register encodes 2^(divNum+1), so 2 is the
// smallest ratio.
func mixerDivider(freqKHz uint32) (mixDiv uint32, divNum uint8) {
	for mixDiv = 2; mixDiv <= 64; mixDiv <<= 1 {
		v := uint64(freqKHz) * uint64(mixDiv)
		if v >= vcoMinKHz && v < vcoMaxKHz {
			for divBuf := mixDiv; divBuf > 2; divBuf >>= 1 {
				divNum++
			}
			return mixDiv, divNum
		}
	}
	return mixDiv, 0
}

// solvePLL approximates vco / (2 * xtal) as nint + sdm/65536 with round to
// nearest, using integer arithmetic only.
func solvePLL(freq, xtal uint32) pllPlan {
	freqKHz := (freq + 500) / 1000
	mixDiv, divNum := mixerDivider(freqKHz)

	p := pllPlan{mixDiv: mixDiv, divNum: divNum}
	p.vco = uint64(freq) * uint64(mixDiv)
	p.vcoDiv = (uint64(xtal) + 65536*p.vco) / (2 * uint64(xtal))
	p.nint = uint32(p.vcoDiv / 65536)
	p.sdm = uint32(p.vcoDiv % 65536)
	return p
}

// nisi packs the integer divider as ni | si<<6.
func nisi(nint uint32) uint8 {
	ni := (int(nint) - 13) / 4
	si := int(nint) - 4*ni - 13
	return uint8(ni + si<<6)
}

// programPLL tunes the synthesizer to freq and checks for lock. Failing to
// lock is not an error; it clears hasLock.
func (t *Tuner) programPLL(freq uint32) error {
	powerRef := t.cfg.Chip.vcoPowerRef()

	// refdiv2 off
	if err := t.writeMasked(RegPLLDivider, 0x00, 0x10); err != nil {
		return err
	}

	// PLL autotune 128 kHz
	if err := t.writeMasked(RegMuxAGC, 0x00, 0x0c); err != nil {
		return err
	}

	// VCO current 100
	if err := t.writeMasked(RegVCOCurrent, 0x80, 0xe0); err != nil {
		return err
	}

	p := solvePLL(freq, t.cfg.Xtal)

	var data [5]uint8
	if err := t.read(RegStatus, data[:]); err != nil {
		return err
	}

	divNum := p.divNum
	fineTune := (data[4] & StatusFineTune) >> 4
	if fineTune > powerRef {
		divNum--
	} else if fineTune < powerRef {
		divNum++
	}

	if err := t.writeMasked(RegPLLDivider, divNum<<5, 0xe0); err != nil {
		return err
	}

	if p.nint > 128/uint32(powerRef)-1 {
		t.log.Error("No valid PLL values", "frequency", freq, "nint", p.nint, "mix_div", p.mixDiv)
		return fmt.Errorf("%w: %d Hz (nint %d)", ErrPLLOutOfRange, freq, p.nint)
	}

	if err := t.writeReg(RegPLLInteger, nisi(p.nint)); err != nil {
		return err
	}

	// pw_sdm
	var sdmOff uint8
	if p.sdm == 0 {
		sdmOff = 0x08
	}
	if err := t.writeMasked(RegVCOCurrent, sdmOff, 0x08); err != nil {
		return err
	}

	if err := t.writeReg(RegSDMHigh, uint8(p.sdm>>8)); err != nil {
		return err
	}
	if err := t.writeReg(RegSDMLow, uint8(p.sdm&0xff)); err != nil {
		return err
	}

	for i := 0; i < 2; i++ {
		if err := t.read(RegStatus, data[:3]); err != nil {
			return err
		}
		if data[2]&StatusLocked != 0 {
			break
		}
		if i == 0 {
			// Raise VCO current and retry
			if err := t.writeMasked(RegVCOCurrent, 0x60, 0xe0); err != nil {
				return err
			}
		}
	}

	if data[2]&StatusLocked == 0 {
		t.hasLock = false
		return nil
	}
	t.hasLock = true

	// PLL autotune 8 kHz
	return t.writeMasked(RegMuxAGC, 0x08, 0x08)
}
