package r82xx

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRFProfile(t *testing.T) {
	t.Run("Default", func(t *testing.T) {
		for _, std := range []Standard{StandardUndefined, StandardDVBT2} {
			assert.Equal(t, defaultRFProfile, rfProfile(100000000, std), std.String())
		}
	})

	t.Run("DVB-T spur channels", func(t *testing.T) {
		for _, freq := range []uint32{506000000, 666000000, 818000000} {
			p := rfProfile(freq, StandardDVBT)
			assert.Equal(t, uint8(0x14), p.MixerTop)
			assert.Equal(t, uint8(0x28), p.ChargePump)
			assert.Equal(t, uint8(0x20), p.DividerBuf)
			assert.Equal(t, defaultRFProfile.LNATop, p.LNATop)
		}

		// Only the exact channel frequency qualifies
		assert.Equal(t, defaultRFProfile, rfProfile(506000001, StandardDVBT))
		// and only for DVB-T
		assert.Equal(t, defaultRFProfile, rfProfile(506000000, StandardDVBT2))
	})

	t.Run("ISDB-T", func(t *testing.T) {
		p := rfProfile(0, StandardISDBT)
		assert.Equal(t, uint8(0x75), p.LNAThreshold)
		assert.Equal(t, defaultRFProfile.MixerTop, p.MixerTop)
	})
}

func TestSelectRFProfileAnalog(t *testing.T) {
	tuner, _ := newTestTuner(t, Config{})

	require.NoError(t, tuner.SelectRFProfile(0, ReceptionAnalogTV, StandardUndefined))

	assert.Equal(t, uint8(0x00), cached(t, tuner, RegMuxAGC)&0x30)
	assert.Equal(t, uint8(0x20), cached(t, tuner, RegLNATop)&0x38)
	assert.Equal(t, uint8(0x00), cached(t, tuner, RegFilterPower)&0x40)
	assert.Equal(t, uint8(0x00), cached(t, tuner, RegPLLDivider)&0x04)
	assert.Equal(t, uint8(0x0e), cached(t, tuner, RegDischarge)&0x1f)
}

func TestSelectRFProfileDischargeMask(t *testing.T) {
	tuner, _ := newTestTuner(t, Config{})

	require.NoError(t, tuner.SelectRFProfile(506000000, ReceptionDigitalTV, StandardDVBT))

	// Mixer top 0x14 written through mask 0xf8, then bit 2 from the same byte
	assert.Equal(t, uint8(0x14), cached(t, tuner, RegMixerTop)&0xfc)
}

func TestSelectRFProfilePredetect(t *testing.T) {
	tuner, bus := newTestTuner(t, Config{UsePredetect: true})

	require.NoError(t, tuner.SelectRFProfile(0, ReceptionDigitalTV, StandardDVBT))

	writes := bus.dataWrites()
	require.NotEmpty(t, writes)
	assert.Equal(t, uint8(RegFilterPower), writes[0].data[0])
	assert.Equal(t, uint8(0x40), writes[0].data[1]&0x40)

	// Digital sequencing turns it back off
	assert.Equal(t, uint8(0x00), cached(t, tuner, RegFilterPower)&0x40)
}
