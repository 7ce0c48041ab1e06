package r82xx

// freqRange is one row of the mux band table. Thresholds are band start
// frequencies in MHz.
type freqRange struct {
	freq       uint32
	openD      uint8 // R23[3]
	rfMuxPoly  uint8 // R26[7:6] mux, R26[1:0] polyphase
	tfC        uint8 // R27 tracking filter band
	xtalCap20p uint8 // R16[1:0]
	xtalCap10p uint8
	xtalCap0p  uint8
}

var freqRanges = []freqRange{
	{0, 0x08, 0x02, 0xdf, 0x02, 0x01, 0x00},
	{50, 0x08, 0x02, 0xbe, 0x02, 0x01, 0x00},
	{55, 0x08, 0x02, 0x8b, 0x02, 0x01, 0x00},
	{60, 0x08, 0x02, 0x7b, 0x02, 0x01, 0x00},
	{65, 0x08, 0x02, 0x69, 0x02, 0x01, 0x00},
	{70, 0x08, 0x02, 0x58, 0x02, 0x01, 0x00},
	{75, 0x00, 0x02, 0x44, 0x02, 0x01, 0x00},
	{80, 0x00, 0x02, 0x44, 0x02, 0x01, 0x00},
	{90, 0x00, 0x02, 0x34, 0x01, 0x01, 0x00},
	{100, 0x00, 0x02, 0x34, 0x01, 0x01, 0x00},
	{110, 0x00, 0x02, 0x24, 0x01, 0x01, 0x00},
	{120, 0x00, 0x02, 0x24, 0x01, 0x01, 0x00},
	{140, 0x00, 0x02, 0x14, 0x01, 0x01, 0x00},
	{180, 0x00, 0x02, 0x13, 0x00, 0x00, 0x00},
	{220, 0x00, 0x02, 0x13, 0x00, 0x00, 0x00},
	{250, 0x00, 0x02, 0x11, 0x00, 0x00, 0x00},
	{280, 0x00, 0x02, 0x00, 0x00, 0x00, 0x00},
	{310, 0x00, 0x41, 0x00, 0x00, 0x00, 0x00},
	{450, 0x00, 0x41, 0x00, 0x00, 0x00, 0x00},
	{588, 0x00, 0x40, 0x00, 0x00, 0x00, 0x00},
	{650, 0x00, 0x40, 0x00, 0x00, 0x00, 0x00},
}

// lookupFreqRange returns the index of the last band whose start does not
// exceed freqHz.
func lookupFreqRange(freqHz uint32) int {
	mhz := freqHz / 1000000
	i := 0
	for ; i < len(freqRanges)-1; i++ {
		if mhz < freqRanges[i+1].freq {
			break
		}
	}
	return i
}

// Crystal capacitor sweep, tried in order.
var xtalCapacitors = []struct {
	mask uint8
	cap  XtalCap
}{
	{0x0b, XtalLowCap30P},
	{0x02, XtalLowCap20P},
	{0x01, XtalLowCap10P},
	{0x00, XtalLowCap0P},
	{0x10, XtalHighCap0P},
}

// Gain steps in tenths of dB, measured at 928 MHz with -60 dBm input.
var (
	vgaGainSteps   = [16]int{0, 26, 26, 30, 42, 35, 24, 13, 14, 32, 36, 34, 35, 37, 35, 36}
	lnaGainSteps   = [16]int{0, 9, 13, 40, 38, 13, 31, 22, 26, 31, 26, 14, 19, 5, 35, 13}
	mixerGainSteps = [16]int{0, 5, 10, 10, 19, 9, 10, 25, 17, 10, 8, 16, 13, 6, 3, -8}
)

// vgaBaseGain is the VGA gain at code 0, in tenths of dB.
const vgaBaseGain = -47

// bandwidthEntry maps a channel bandwidth below 4.5 MHz to the R11 filter byte
// and the IF that centers (or shifts) the channel inside that filter.
type bandwidthEntry struct {
	bandwidth uint32
	reg0b     uint8
	ifFreq    uint32
}

// The x00400 rows duplicate the bandwidth just below them with the channel
// placed on the other sideband of the IF corner.
var bandwidthTable = []bandwidthEntry{
	{200000, 0xef, 1900000},
	{200400, 0xef, 700000},
	{300000, 0xef, 1850000},
	{300400, 0xef, 750000},
	{400000, 0xef, 1800000},
	{400400, 0xef, 800000},
	{500000, 0xef, 1750000},
	{500400, 0xef, 850000},
	{600000, 0xef, 1700000},
	{600400, 0xef, 900000},
	{700000, 0xef, 1650000},
	{700400, 0xef, 950000},
	{800000, 0xef, 1600000},
	{800400, 0xef, 1000000},
	{900000, 0xef, 1550000},
	{1000000, 0xef, 1500000},
	{1100000, 0xef, 1450000},
	{1200000, 0xef, 1400000},
	{1300000, 0xef, 1350000},
	{1400000, 0xef, 1300000},
	{1550000, 0xcf, 1400000},
	{1700000, 0xaf, 1450000},
	{1900000, 0x8f, 1600000},
	{2200000, 0x51, 4700000},
}

// lookupBandwidth picks the first entry whose midpoint with its successor is
// above bw.
func lookupBandwidth(bw uint32) int {
	i := 0
	for ; i < len(bandwidthTable)-1; i++ {
		if bw < (bandwidthTable[i+1].bandwidth+bandwidthTable[i].bandwidth)/2 {
			break
		}
	}
	return i
}

// Wide channel filters selected by threshold, highest first.
var wideBandwidths = []struct {
	above   uint32
	applied uint32
	reg0a   uint8
	reg0b   uint8
	ifFreq  uint32
}{
	{7000000, 8000000, 0x10, 0x0b, 4570000},
	{6000000, 7000000, 0x10, 0x2a, 4570000},
	{4500000, 6000000, 0x10, 0x6b, 3570000},
}
