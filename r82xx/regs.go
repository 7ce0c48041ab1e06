package r82xx

import "strings"

// Shadow window. Registers 0x00..0x04 are read-only status registers and are
// never cached.
const (
	RegShadowStart = 0x05
	NumRegs        = 30
)

// VersionNumber is forced into the version field of R19 on every standard apply.
const VersionNumber = 49

// Register addresses used by the tuning logic.
const (
	RegStatus       = 0x00 // Status block, read-only (lock flag, fine-tune, filter cal code)
	RegInputGain    = 0x05 // Loop-through, input select, LNA gain
	RegFilterPower  = 0x06 // Pre-detect, filter gain, cable2 input
	RegMixerGain    = 0x07 // Image rejection, mixer auto, mixer gain
	RegImageTrimA   = 0x08 // Image gain trim
	RegImageTrimB   = 0x09 // Image phase trim / IF filter current
	RegFilterCal    = 0x0a // Filter current, filter Q, filter cal code
	RegFilterBW     = 0x0b // Filter bandwidth, HP corner, cal trigger
	RegVGA          = 0x0c // VGA gain
	RegLNAThreshold = 0x0d // LNA AGC detector thresholds
	RegMixThreshold = 0x0e // Mixer AGC detector thresholds
	RegCalClock     = 0x0f // Filter ext widest, cal clock enable
	RegPLLDivider   = 0x10 // Divider ratio, refdiv2, xtal cap & drive
	RegChargePump   = 0x11 // PLL charge pump current
	RegVCOCurrent   = 0x12 // VCO current, pw_sdm
	RegVersion      = 0x13 // Version, initial cal control
	RegPLLInteger   = 0x14 // ni / si
	RegSDMLow       = 0x15 // Fractional word, low byte
	RegSDMHigh      = 0x16 // Fractional word, high byte
	RegDriveOpen    = 0x17 // Divider buffer current, open drain
	RegPolyFilter   = 0x19 // RF poly filter current
	RegMuxAGC       = 0x1a // RF mux / poly mux, AGC clock, PLL autotune
	RegTrackFilter  = 0x1b // Tracking filter band
	RegMixerTop     = 0x1c // Mixer top, discharge mode
	RegLNATop       = 0x1d // LNA top, detect bandwidth
	RegDischarge    = 0x1e // Filter extension, LNA discharge current
	RegLoopAtten    = 0x1f // Loop-through attenuation
)

// Status block bits.
const (
	StatusLocked       = 0x40 // byte 2: PLL lock flag
	StatusVCOBand      = 0x3f // byte 2: VCO band / xtal check code
	StatusFineTune     = 0x30 // byte 4: VCO fine-tune level
	StatusFilterCode   = 0x0f // byte 4: filter calibration code
	filterCodeSentinel = 0x0f
)

// Power-on image of the shadow window, 0x05 through 0x22.
var initArray = [NumRegs]uint8{
	0x83, 0x32, 0x75, // 05 to 07
	0xc0, 0x40, 0xd6, 0x6c, // 08 to 0b
	0xf5, 0x63, 0x75, 0x68, // 0c to 0f
	0x6c, 0x83, 0x80, 0x00, // 10 to 13
	0x0f, 0x00, 0xc0, 0x30, // 14 to 17
	0x48, 0xcc, 0x60, 0x00, // 18 to 1b
	0x54, 0xae, 0x4a, 0xc0, // 1c to 1f
}

// DefaultRegisters returns a copy of the power-on shadow image.
func DefaultRegisters() [NumRegs]uint8 {
	return initArray
}

// Chip identifies the Rafael Micro part variant.
type Chip int

const (
	ChipR820T Chip = iota
	ChipR620D
	ChipR828D
	ChipR828
	ChipR828S
	ChipR820C
)

var chipNames = map[Chip]string{
	ChipR820T: "R820T",
	ChipR620D: "R620D",
	ChipR828D: "R828D",
	ChipR828:  "R828",
	ChipR828S: "R828S",
	ChipR820C: "R820C",
}

func (c Chip) String() string {
	if name, ok := chipNames[c]; ok {
		return name
	}
	return "unknown"
}

// ParseChip maps a part name ("R820T", "r828d", ...) to a Chip.
func ParseChip(name string) (Chip, bool) {
	for chip, n := range chipNames {
		if strings.EqualFold(n, name) {
			return chip, true
		}
	}
	return 0, false
}

// vcoPowerRef is the fine-tune reference level and PLL integer limit divisor.
func (c Chip) vcoPowerRef() uint8 {
	if c == ChipR828D {
		return 1
	}
	return 2
}

// XtalCap is the crystal load capacitor mode chosen by the capacitor sweep.
type XtalCap int

const (
	XtalLowCap30P XtalCap = iota
	XtalLowCap20P
	XtalLowCap10P
	XtalLowCap0P
	XtalHighCap0P
)

func (x XtalCap) String() string {
	switch x {
	case XtalLowCap30P:
		return "low-30pF"
	case XtalLowCap20P:
		return "low-20pF"
	case XtalLowCap10P:
		return "low-10pF"
	case XtalLowCap0P:
		return "low-0pF"
	case XtalHighCap0P:
		return "high-0pF"
	}
	return "unknown"
}

// ReceptionType selects the analog or digital AGC sequencing.
type ReceptionType int

const (
	ReceptionUnset     ReceptionType = -1
	ReceptionRadio     ReceptionType = 1
	ReceptionAnalogTV  ReceptionType = 2
	ReceptionDigitalTV ReceptionType = 3
)

func (r ReceptionType) String() string {
	switch r {
	case ReceptionRadio:
		return "radio"
	case ReceptionAnalogTV:
		return "analog-tv"
	case ReceptionDigitalTV:
		return "digital-tv"
	}
	return "unset"
}

// ParseReceptionType accepts the names printed by String.
func ParseReceptionType(s string) (ReceptionType, bool) {
	for _, r := range []ReceptionType{ReceptionRadio, ReceptionAnalogTV, ReceptionDigitalTV} {
		if strings.EqualFold(r.String(), s) {
			return r, true
		}
	}
	return ReceptionUnset, false
}

// Standard is the delivery system the front-end profile is tuned for.
type Standard int

const (
	StandardUndefined Standard = iota
	StandardDVBT
	StandardDVBT2
	StandardISDBT
)

func (s Standard) String() string {
	switch s {
	case StandardDVBT:
		return "dvb-t"
	case StandardDVBT2:
		return "dvb-t2"
	case StandardISDBT:
		return "isdb-t"
	}
	return "undefined"
}

// ParseStandard accepts the names printed by String; "" is Undefined.
func ParseStandard(s string) (Standard, bool) {
	if s == "" {
		return StandardUndefined, true
	}
	for _, std := range []Standard{StandardUndefined, StandardDVBT, StandardDVBT2, StandardISDBT} {
		if strings.EqualFold(std.String(), s) {
			return std, true
		}
	}
	return StandardUndefined, false
}

// InputPath is the R5[6:5] input select on dual-input parts.
type InputPath uint8

const (
	InputAirIn  InputPath = 0x00
	InputCable1 InputPath = 0x60
)

func (p InputPath) String() string {
	if p == InputCable1 {
		return "cable1"
	}
	return "air-in"
}
