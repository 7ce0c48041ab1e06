package r82xx

import (
	"fmt"
	"strings"
)

// GainMode selects how SetGain programs the gain stages.
type GainMode int

const (
	GainAuto GainMode = iota
	GainManual
	GainExtended
)

var gainModeNames = map[GainMode]string{
	GainAuto:     "auto",
	GainManual:   "manual",
	GainExtended: "extended",
}

func (m GainMode) String() string {
	if s, ok := gainModeNames[m]; ok {
		return s
	}
	return fmt.Sprintf("GainMode(%d)", int(m))
}

// ParseGainMode accepts the names returned by GainMode.String.
func ParseGainMode(s string) (GainMode, error) {
	for m, name := range gainModeNames {
		if strings.EqualFold(s, name) {
			return m, nil
		}
	}
	return 0, fmt.Errorf("unknown gain mode %q", s)
}

// GainSettings is one SetGain request. Gain is the manual target in tenths
// of dB. LNA, Mixer and VGA are raw register codes used only in extended mode.
type GainSettings struct {
	Mode  GainMode `json:"mode"`
	Gain  int      `json:"gain"`
	LNA   uint8    `json:"lna"`
	Mixer uint8    `json:"mixer"`
	VGA   uint8    `json:"vga"`
}

// GainResult reports the codes written by SetGain. Gain is the LNA plus mixer
// total reached by the manual search, in tenths of dB.
type GainResult struct {
	Mode     GainMode `json:"mode"`
	LNAIndex uint8    `json:"lna_index"`
	MixIndex uint8    `json:"mixer_index"`
	Gain     int      `json:"gain"`
}

// Fixed VGA codes.
const (
	vgaManualCode = 0x08 // 16.3 dB
	vgaAutoCode   = 0x0b // 26.5 dB
	gainSearchLen = 15
)

// manualGainIndices walks the LNA and mixer step tables alternately until the
// accumulated gain reaches target.
func manualGainIndices(target int) (lna, mix uint8, total int) {
	for i := 0; i < gainSearchLen; i++ {
		if total >= target {
			break
		}
		lna++
		total += lnaGainSteps[lna]

		if total >= target {
			break
		}
		mix++
		total += mixerGainSteps[mix]
	}
	return lna, mix, total
}

// SetGain programs the LNA, mixer and VGA stages.
func (t *Tuner) SetGain(g GainSettings) (GainResult, error) {
	res := GainResult{Mode: g.Mode}

	switch g.Mode {
	case GainExtended:
		writes := []struct {
			reg, val, mask uint8
		}{
			{RegInputGain, g.LNA, 0x0f},
			{RegMixerGain, g.Mixer, 0x0f},
			{RegVGA, g.VGA, 0x9f},
		}
		for _, w := range writes {
			if err := t.writeMasked(w.reg, w.val, w.mask); err != nil {
				return res, fmt.Errorf("set gain: %w", err)
			}
		}
		res.LNAIndex = g.LNA & 0x0f
		res.MixIndex = g.Mixer & 0x0f

	case GainManual:
		// LNA and mixer auto off
		if err := t.writeMasked(RegInputGain, 0x10, 0x10); err != nil {
			return res, fmt.Errorf("set gain: %w", err)
		}
		if err := t.writeMasked(RegMixerGain, 0x00, 0x10); err != nil {
			return res, fmt.Errorf("set gain: %w", err)
		}

		var data [4]uint8
		if err := t.read(RegStatus, data[:]); err != nil {
			return res, fmt.Errorf("set gain: %w", err)
		}

		if err := t.writeMasked(RegVGA, vgaManualCode, 0x9f); err != nil {
			return res, fmt.Errorf("set gain: %w", err)
		}

		lna, mix, total := manualGainIndices(g.Gain)
		if err := t.writeMasked(RegInputGain, lna, 0x0f); err != nil {
			return res, fmt.Errorf("set gain: %w", err)
		}
		if err := t.writeMasked(RegMixerGain, mix, 0x0f); err != nil {
			return res, fmt.Errorf("set gain: %w", err)
		}
		res.LNAIndex, res.MixIndex, res.Gain = lna, mix, total

	case GainAuto:
		if err := t.writeMasked(RegInputGain, 0x00, 0x10); err != nil {
			return res, fmt.Errorf("set gain: %w", err)
		}
		if err := t.writeMasked(RegMixerGain, 0x10, 0x10); err != nil {
			return res, fmt.Errorf("set gain: %w", err)
		}
		if err := t.writeMasked(RegVGA, vgaAutoCode, 0x9f); err != nil {
			return res, fmt.Errorf("set gain: %w", err)
		}

	default:
		return res, fmt.Errorf("set gain: unknown mode %d", int(g.Mode))
	}

	t.log.Debug("Gain set",
		"mode", g.Mode.String(),
		"target", g.Gain,
		"lna_index", res.LNAIndex,
		"mixer_index", res.MixIndex,
		"total", res.Gain)
	return res, nil
}

// GainSteps lists the totals, in tenths of dB, that the manual search can
// reach, in search order.
func GainSteps() []int {
	steps := make([]int, 0, 2*gainSearchLen+1)
	total := 0
	steps = append(steps, total)
	for i := 1; i <= gainSearchLen; i++ {
		total += lnaGainSteps[i]
		steps = append(steps, total)
		total += mixerGainSteps[i]
		steps = append(steps, total)
	}
	return steps
}

// vgaGain converts a 4-bit VGA code to tenths of dB.
func vgaGain(code uint8) int {
	g := vgaBaseGain
	for i := 1; i <= int(code&0x0f); i++ {
		g += vgaGainSteps[i]
	}
	return g
}
