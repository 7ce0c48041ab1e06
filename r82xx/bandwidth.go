package r82xx

import "fmt"

// Filter register defaults for the narrow bandwidth table.
const (
	narrowReg0a = 0x0f
	filterExt   = 0x60 // enable filter extension under weak signal
)

// bandwidthPlan is the filter setting chosen for a requested bandwidth.
type bandwidthPlan struct {
	applied uint32
	reg0a   uint8
	reg0b   uint8
	ifFreq  uint32
}

func planBandwidth(bw uint32) bandwidthPlan {
	for _, w := range wideBandwidths {
		if bw > w.above {
			return bandwidthPlan{applied: w.applied, reg0a: w.reg0a, reg0b: w.reg0b, ifFreq: w.ifFreq}
		}
	}

	e := bandwidthTable[lookupBandwidth(bw)]
	return bandwidthPlan{
		applied: e.bandwidth / 1000 * 1000,
		reg0a:   narrowReg0a,
		reg0b:   e.reg0b,
		ifFreq:  e.ifFreq,
	}
}

// SetBandwidth selects the IF filter for bw and returns the bandwidth it
// actually provides. With apply unset only the lookup is done. The configured
// overrides replace individual filter fields after the table lookup.
func (t *Tuner) SetBandwidth(bw, sampleRate uint32, apply bool) (uint32, error) {
	p := planBandwidth(bw)
	if !apply {
		return p.applied, nil
	}

	o := t.cfg.Overrides
	t.intFreq = p.ifFreq
	if o.IFCenter != nil {
		t.intFreq = uint32(*o.IFCenter)
	}

	if o.R9 != nil {
		if err := t.writeMasked(RegImageTrimB, uint8(*o.R9)<<6, 0xc0); err != nil {
			return p.applied, fmt.Errorf("set bandwidth: %w", err)
		}
	}

	// R10 low nibble, or the overridden fields only
	reg0a, mask := p.reg0a, uint8(0x0f)
	if o.R10Hi != nil {
		reg0a = reg0a&^0xf0 | uint8(*o.R10Hi)<<4
		mask = 0xf0
	}
	if o.R10Lo != nil {
		reg0a = reg0a&^0x0f | uint8(*o.R10Lo)
		mask |= 0x0f
	}
	if err := t.writeMasked(RegFilterCal, reg0a, mask); err != nil {
		return p.applied, fmt.Errorf("set bandwidth: %w", err)
	}

	// R11, bit 7 is the undocumented high part of the filter bandwidth
	reg0b := p.reg0b
	if o.R11Hi != nil {
		reg0b = reg0b&^0xe0 | uint8(*o.R11Hi)<<5
	}
	if o.R11Lo != nil {
		reg0b = reg0b&^0x0f | uint8(*o.R11Lo)
	}
	if err := t.writeMasked(RegFilterBW, reg0b, 0xef); err != nil {
		return p.applied, fmt.Errorf("set bandwidth: %w", err)
	}

	if err := t.writeThresholdOverride(RegLNAThreshold, o.R13Hi, o.R13Lo); err != nil {
		return p.applied, fmt.Errorf("set bandwidth: %w", err)
	}
	if err := t.writeThresholdOverride(RegMixThreshold, o.R14Hi, o.R14Lo); err != nil {
		return p.applied, fmt.Errorf("set bandwidth: %w", err)
	}

	// Channel filter extension
	reg1e, mask := uint8(filterExt), uint8(0x60)
	if o.R30Hi != nil {
		reg1e = uint8(*o.R30Hi) << 4
	}
	if o.R30Lo != nil {
		reg1e |= uint8(*o.R30Lo)
		mask |= 0x1f
	}
	if err := t.writeMasked(RegDischarge, reg1e, mask); err != nil {
		return p.applied, fmt.Errorf("set bandwidth: %w", err)
	}

	t.appliedBW = p.applied
	t.log.Info("Bandwidth set",
		"requested", bw,
		"applied", p.applied,
		"sample_rate", sampleRate,
		"if", t.intFreq,
		"r10", hexByte(int(reg0a)),
		"r11", hexByte(int(reg0b)))
	return p.applied, nil
}

// writeThresholdOverride replaces the high and low nibbles of an AGC
// threshold register when configured. Nothing is written otherwise.
func (t *Tuner) writeThresholdOverride(reg uint8, hi, lo *int) error {
	val, _ := t.readCached(int(reg))
	var mask uint8
	if hi != nil {
		val = val&^0xf0 | uint8(*hi)<<4
		mask |= 0xf0
	}
	if lo != nil {
		val = val&^0x0f | uint8(*lo)
		mask |= 0x0f
	}
	if mask == 0 {
		return nil
	}
	return t.writeMasked(reg, val, mask)
}
