package plugins

import "github.com/linht/tuner-manager/r82xx"

// Registers inside the shadow window without a named constant in r82xx
const (
	regRingPLL   = 0x18 // Ring PLL / RF poly filter mode
	regReserved1 = 0x20
	regReserved2 = 0x21
	regReserved3 = 0x22
)

// RegisterDescriptions names every register the tuner exposes
var RegisterDescriptions = map[uint8]string{
	0x00: "STATUS0 - Chip ID (read-only)",
	0x01: "STATUS1 - Reserved (read-only)",
	0x02: "STATUS2 - PLL lock, VCO band (read-only)",
	0x03: "STATUS3 - RF/AGC level (read-only)",
	0x04: "STATUS4 - VCO fine tune, filter cal code (read-only)",

	r82xx.RegInputGain:    "R5 - Loop-through, input select, LNA gain",
	r82xx.RegFilterPower:  "R6 - Pre-detect, filter gain, cable2 input",
	r82xx.RegMixerGain:    "R7 - Image rejection, mixer auto gain, mixer gain",
	r82xx.RegImageTrimA:   "R8 - Image gain trim",
	r82xx.RegImageTrimB:   "R9 - IF filter power, image phase trim",
	r82xx.RegFilterCal:    "R10 - Filter current, filter Q, filter cal code",
	r82xx.RegFilterBW:     "R11 - Filter bandwidth, HP corner, cal trigger",
	r82xx.RegVGA:          "R12 - VGA gain",
	r82xx.RegLNAThreshold: "R13 - LNA AGC thresholds",
	r82xx.RegMixThreshold: "R14 - Mixer AGC thresholds",
	r82xx.RegCalClock:     "R15 - Filter ext widest, cal clock",
	r82xx.RegPLLDivider:   "R16 - Mixer divider, refdiv2, xtal cap and drive",
	r82xx.RegChargePump:   "R17 - PLL charge pump current",
	r82xx.RegVCOCurrent:   "R18 - VCO current, SDM power",
	r82xx.RegVersion:      "R19 - Version, initial cal",
	r82xx.RegPLLInteger:   "R20 - PLL integer (Ni/Si)",
	r82xx.RegSDMLow:       "R21 - PLL fractional word LSB",
	r82xx.RegSDMHigh:      "R22 - PLL fractional word MSB",
	r82xx.RegDriveOpen:    "R23 - Divider buffer current, open drain",
	regRingPLL:            "R24 - Ring PLL",
	r82xx.RegPolyFilter:   "R25 - RF poly filter current",
	r82xx.RegMuxAGC:       "R26 - RF mux, AGC clock, PLL autotune",
	r82xx.RegTrackFilter:  "R27 - Tracking filter band",
	r82xx.RegMixerTop:     "R28 - Mixer top, discharge mode",
	r82xx.RegLNATop:       "R29 - LNA top, power detector bandwidth",
	r82xx.RegDischarge:    "R30 - Filter extension, LNA discharge current",
	r82xx.RegLoopAtten:    "R31 - Loop-through attenuation",
	regReserved1:          "R32 - Reserved",
	regReserved2:          "R33 - Reserved",
	regReserved3:          "R34 - Reserved",
}

// describeRegister falls back to a generic label for unnamed addresses
func describeRegister(addr uint8) string {
	if desc, ok := RegisterDescriptions[addr]; ok {
		return desc
	}
	return "Unknown register"
}
