package r82xx

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManualGainIndices(t *testing.T) {
	tests := []struct {
		target int
		lna    uint8
		mix    uint8
		total  int
	}{
		{0, 0, 0, 0},
		{9, 1, 0, 9},
		{10, 1, 1, 14},
		{50, 3, 2, 77},
		{77, 3, 2, 77},
		{78, 3, 3, 87},
	}

	for _, tt := range tests {
		lna, mix, total := manualGainIndices(tt.target)
		assert.Equal(t, tt.lna, lna, "target %d", tt.target)
		assert.Equal(t, tt.mix, mix, "target %d", tt.target)
		assert.Equal(t, tt.total, total, "target %d", tt.target)
	}
}

func TestManualGainReachesTarget(t *testing.T) {
	steps := GainSteps()
	// The last mixer step is negative, so the search peaks one step early
	peak := steps[len(steps)-2]

	for target := 0; target <= peak; target++ {
		lna, mix, total := manualGainIndices(target)
		require.GreaterOrEqual(t, total, target, "target %d", target)
		assert.LessOrEqual(t, lna, uint8(gainSearchLen))
		assert.LessOrEqual(t, mix, lna, "mixer never leads the LNA")
		assert.GreaterOrEqual(t, mix+1, lna, "stages alternate")

		again, _, _ := manualGainIndices(target)
		assert.Equal(t, lna, again)
	}
}

func TestGainSteps(t *testing.T) {
	steps := GainSteps()

	require.Len(t, steps, 31)
	assert.Equal(t, []int{0, 9, 14, 27, 37, 77}, steps[:6])
	assert.Equal(t, 496, steps[29])
	assert.Equal(t, 488, steps[30])
}

func TestVGAGain(t *testing.T) {
	assert.Equal(t, -47, vgaGain(0))
	assert.Equal(t, 163, vgaGain(vgaManualCode))
	assert.Equal(t, 265, vgaGain(vgaAutoCode))
	assert.Equal(t, vgaGain(0x0f), vgaGain(0xff))
}

func TestSetGainManual(t *testing.T) {
	tuner, bus := newTestTuner(t, Config{})

	res, err := tuner.SetGain(GainSettings{Mode: GainManual, Gain: 50})
	require.NoError(t, err)

	assert.Equal(t, uint8(3), res.LNAIndex)
	assert.Equal(t, uint8(2), res.MixIndex)
	assert.Equal(t, 77, res.Gain)

	assert.Equal(t, uint8(0x13), cached(t, tuner, RegInputGain)&0x1f)
	assert.Equal(t, uint8(0x02), cached(t, tuner, RegMixerGain)&0x1f)
	assert.Equal(t, uint8(0x08), cached(t, tuner, RegVGA)&0x9f)
	assert.Equal(t, 1, bus.reads)
}

func TestSetGainAuto(t *testing.T) {
	tuner, bus := newTestTuner(t, Config{})

	_, err := tuner.SetGain(GainSettings{Mode: GainManual, Gain: 300})
	require.NoError(t, err)

	_, err = tuner.SetGain(GainSettings{Mode: GainAuto})
	require.NoError(t, err)

	assert.Equal(t, uint8(0x00), cached(t, tuner, RegInputGain)&0x10)
	assert.Equal(t, uint8(0x10), cached(t, tuner, RegMixerGain)&0x10)
	assert.Equal(t, uint8(0x0b), cached(t, tuner, RegVGA)&0x9f)
	assert.Equal(t, 1, bus.reads)
}

func TestSetGainExtended(t *testing.T) {
	tuner, bus := newTestTuner(t, Config{})
	before05 := cached(t, tuner, RegInputGain)
	before07 := cached(t, tuner, RegMixerGain)

	res, err := tuner.SetGain(GainSettings{Mode: GainExtended, LNA: 0x0c, Mixer: 0x07, VGA: 0x1a})
	require.NoError(t, err)

	assert.Equal(t, before05&0xf0|0x0c, cached(t, tuner, RegInputGain))
	assert.Equal(t, before07&0xf0|0x07, cached(t, tuner, RegMixerGain))
	assert.Equal(t, uint8(0x1a), cached(t, tuner, RegVGA)&0x9f)
	assert.Equal(t, uint8(0x0c), res.LNAIndex)
	assert.Equal(t, uint8(0x07), res.MixIndex)
	assert.Zero(t, bus.reads)
}

func TestSetGainUnknownMode(t *testing.T) {
	tuner, bus := newTestTuner(t, Config{})

	_, err := tuner.SetGain(GainSettings{Mode: GainMode(7)})
	assert.Error(t, err)
	assert.Empty(t, bus.writes)
}

func TestParseGainMode(t *testing.T) {
	for _, m := range []GainMode{GainAuto, GainManual, GainExtended} {
		got, err := ParseGainMode(m.String())
		require.NoError(t, err)
		assert.Equal(t, m, got)
	}

	got, err := ParseGainMode("MANUAL")
	require.NoError(t, err)
	assert.Equal(t, GainManual, got)

	_, err = ParseGainMode("agc")
	assert.Error(t, err)
}
