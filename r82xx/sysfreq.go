package r82xx

import "fmt"

// RFProfile is the front-end bias and threshold bundle for one standard.
type RFProfile struct {
	MixerTop     uint8 `json:"mixer_top"`
	LNATop       uint8 `json:"lna_top"`
	ChargePump   uint8 `json:"charge_pump"`
	DividerBuf   uint8 `json:"divider_buffer"`
	LNAThreshold uint8 `json:"lna_threshold"`
	MixThreshold uint8 `json:"mixer_threshold"`
	AirCable1In  uint8 `json:"air_cable1_in"`
	Cable2In     uint8 `json:"cable2_in"`
	PreDetect    uint8 `json:"pre_detect"`
	LNADischarge uint8 `json:"lna_discharge"`
	FilterCur    uint8 `json:"filter_current"`
}

var defaultRFProfile = RFProfile{
	MixerTop:     0x24, // mixer top 13, top-1, low discharge
	LNATop:       0xe5, // detect bw 3, LNA top 4, predet top 2
	ChargePump:   0x38, // auto
	DividerBuf:   0x30, // 150 uA
	LNAThreshold: 0x53, // vth 0.84, vtl 0.64
	MixThreshold: 0x75, // vth 1.04, vtl 0.84
	AirCable1In:  0x00,
	Cable2In:     0x00,
	PreDetect:    0x40,
	LNADischarge: 14,
	FilterCur:    0x40, // low
}

// DVB-T channels where the alternate mixer top and PLL currents apply.
var dvbtSpurChannels = map[uint32]bool{
	506000000: true,
	666000000: true,
	818000000: true,
}

// rfProfile returns the front-end bundle for std at freq.
func rfProfile(freq uint32, std Standard) RFProfile {
	p := defaultRFProfile
	switch std {
	case StandardDVBT:
		if dvbtSpurChannels[freq] {
			p.MixerTop = 0x14   // mixer top 14
			p.ChargePump = 0x28 // 0.2
			p.DividerBuf = 0x20 // 200 uA
		}
	case StandardISDBT:
		p.LNAThreshold = 0x75 // vth 1.04, vtl 0.84
	}
	return p
}

// SelectRFProfile programs the front-end bundle for freq and std, then sets up
// the LNA AGC for the reception type.
func (t *Tuner) SelectRFProfile(freq uint32, typ ReceptionType, std Standard) error {
	p := rfProfile(freq, std)

	type write struct {
		reg, val, mask uint8
	}

	var writes []write
	if t.cfg.UsePredetect {
		writes = append(writes, write{RegFilterPower, p.PreDetect, 0x40})
	}
	writes = append(writes,
		write{RegLNATop, p.LNATop, 0xc7},
		write{RegMixerTop, p.MixerTop, 0xf8},
		write{RegLNAThreshold, p.LNAThreshold, 0xff},
		write{RegMixThreshold, p.MixThreshold, 0xff},
		write{RegInputGain, p.AirCable1In, 0x60},
		write{RegFilterPower, p.Cable2In, 0x08},
		write{RegChargePump, p.ChargePump, 0x38},
		write{RegDriveOpen, p.DividerBuf, 0x30},
		write{RegFilterCal, p.FilterCur, 0x60},
	)

	if typ != ReceptionAnalogTV {
		writes = append(writes,
			write{RegLNATop, 0x00, 0x38},   // LNA top lowest
			write{RegMixerTop, 0x00, 0x04}, // normal mode
			write{RegFilterPower, 0x00, 0x40},
			write{RegMuxAGC, 0x30, 0x30}, // AGC clock 250 Hz
			write{RegLNATop, 0x18, 0x38}, // LNA top 3
			// Discharge mode. The mask does not match the mixer top field;
			// kept as the hardware was validated with it.
			write{RegMixerTop, p.MixerTop, 0x04},
			write{RegDischarge, p.LNADischarge, 0x1f},
			write{RegMuxAGC, 0x20, 0x30}, // AGC clock 60 Hz
		)
	} else {
		writes = append(writes,
			write{RegFilterPower, 0x00, 0x40},
			write{RegLNATop, p.LNATop, 0x38},
			write{RegMixerTop, p.MixerTop, 0x04},
			write{RegDischarge, p.LNADischarge, 0x1f},
			write{RegMuxAGC, 0x00, 0x30}, // AGC clock 1 kHz
			write{RegPLLDivider, 0x00, 0x04},
		)
	}

	for _, w := range writes {
		var err error
		if w.mask == 0xff {
			err = t.writeReg(w.reg, w.val)
		} else {
			err = t.writeMasked(w.reg, w.val, w.mask)
		}
		if err != nil {
			t.log.Error("RF profile write failed", "register", hexByte(int(w.reg)), "error", err)
			return fmt.Errorf("select rf profile: %w", err)
		}
	}

	t.input = InputPath(p.AirCable1In)
	t.log.Debug("RF profile selected",
		"frequency", freq,
		"type", typ.String(),
		"standard", std.String(),
		"mixer_top", hexByte(int(p.MixerTop)))
	return nil
}
