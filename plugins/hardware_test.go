package plugins

import (
	"encoding/json"
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/linht/tuner-manager/r82xx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testRig struct {
	app    *fiber.App
	plugin *TunerPlugin
	bus    *fakeBus
}

func newTestRig(t *testing.T, biasTee BiasTee) *testRig {
	t.Helper()

	bus := newFakeBus()
	cfg, err := TunerConfig{Chip: "R820T"}.CoreConfig(nil)
	require.NoError(t, err)

	ctrl, err := NewTunerController(bus, biasTee, cfg)
	require.NoError(t, err)

	plugin := NewTunerPlugin(HardwareConfig{}, ctrl)
	app := fiber.New()
	plugin.RegisterRoutes(app)

	return &testRig{app: app, plugin: plugin, bus: bus}
}

func (r *testRig) do(t *testing.T, method, path, body string) (int, APIResponse) {
	t.Helper()

	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out APIResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return resp.StatusCode, out
}

func dataMap(t *testing.T, resp APIResponse) map[string]interface{} {
	t.Helper()
	m, ok := resp.Data.(map[string]interface{})
	require.True(t, ok, "response data is %T", resp.Data)
	return m
}

func TestTunerPluginRequiresInit(t *testing.T) {
	rig := newTestRig(t, nil)

	for _, tc := range []struct{ path, body string }{
		{"/api/tuner/frequency", `{"frequency":100000000}`},
		{"/api/tuner/gain", `{"mode":"auto"}`},
		{"/api/tuner/bandwidth", `{"bandwidth":1000000}`},
	} {
		status, resp := rig.do(t, "POST", tc.path, tc.body)
		assert.Equal(t, 409, status, tc.path)
		assert.False(t, resp.Success)
		assert.Contains(t, resp.Error, "not initialized")
	}
}

func TestTunerPluginInitAndTune(t *testing.T) {
	rig := newTestRig(t, nil)

	status, resp := rig.do(t, "POST", "/api/tuner/init", "")
	require.Equal(t, 200, status)
	assert.True(t, resp.Success)
	assert.Equal(t, "Tuner initialized", resp.Message)
	assert.Equal(t, float64(7), dataMap(t, resp)["filter_code"])

	status, resp = rig.do(t, "POST", "/api/tuner/frequency", `{"frequency":100000000}`)
	require.Equal(t, 200, status)
	data := dataMap(t, resp)
	assert.Equal(t, float64(103570000), data["lo_frequency"])
	assert.Equal(t, true, data["locked"])
	assert.Equal(t, "air-in", data["input"])

	status, resp = rig.do(t, "GET", "/api/tuner/status", "")
	require.Equal(t, 200, status)
	data = dataMap(t, resp)
	assert.Equal(t, true, data["initialized"])
	assert.Equal(t, float64(100000000), data["frequency"])
	assert.Equal(t, "fake", data["bus"])
	assert.NotContains(t, data, "bias_tee")
}

func TestTunerPluginFrequencyValidation(t *testing.T) {
	rig := newTestRig(t, nil)
	rig.do(t, "POST", "/api/tuner/init", "")

	status, _ := rig.do(t, "POST", "/api/tuner/frequency", `{"frequency":0}`)
	assert.Equal(t, 400, status)

	status, _ = rig.do(t, "POST", "/api/tuner/frequency", `not json`)
	assert.Equal(t, 400, status)

	status, resp := rig.do(t, "POST", "/api/tuner/frequency", `{"frequency":2000000000}`)
	assert.Equal(t, 400, status)
	assert.Contains(t, resp.Error, "no valid PLL values")
}

func TestTunerPluginBandwidth(t *testing.T) {
	rig := newTestRig(t, nil)

	// Lookup only works before init
	status, resp := rig.do(t, "POST", "/api/tuner/bandwidth", `{"bandwidth":1000000,"sample_rate":2400000,"apply":false}`)
	require.Equal(t, 200, status)
	data := dataMap(t, resp)
	assert.Equal(t, float64(1000000), data["bandwidth"])
	assert.Equal(t, false, data["applied"])

	rig.do(t, "POST", "/api/tuner/init", "")
	status, resp = rig.do(t, "POST", "/api/tuner/bandwidth", `{"bandwidth":8000000,"sample_rate":10000000}`)
	require.Equal(t, 200, status)
	data = dataMap(t, resp)
	assert.Equal(t, float64(8000000), data["bandwidth"])
	assert.Equal(t, float64(4570000), data["intermediate_frequency"])
}

func TestTunerPluginCenterOffset(t *testing.T) {
	rig := newTestRig(t, nil)
	rig.do(t, "POST", "/api/tuner/init", "")

	status, _ := rig.do(t, "POST", "/api/tuner/center-offset", `{"offset":-1000000}`)
	require.Equal(t, 200, status)

	_, resp := rig.do(t, "POST", "/api/tuner/frequency", `{"frequency":100000000}`)
	assert.Equal(t, float64(102570000), dataMap(t, resp)["lo_frequency"])
}

func TestTunerPluginStandard(t *testing.T) {
	rig := newTestRig(t, nil)

	status, resp := rig.do(t, "POST", "/api/tuner/standard", `{"bandwidth":6000000,"reception_type":"digital-tv","standard":"dvb-t"}`)
	require.Equal(t, 200, status)
	assert.Equal(t, true, dataMap(t, resp)["calibrated"])

	_, resp = rig.do(t, "GET", "/api/tuner/status", "")
	assert.Equal(t, "dvb-t", dataMap(t, resp)["standard"])

	// The front-end profile follows the standard onto the chip
	status, _ = rig.do(t, "POST", "/api/tuner/standard", `{"bandwidth":6000000,"reception_type":"digital-tv","standard":"isdb-t"}`)
	require.Equal(t, 200, status)
	_, resp = rig.do(t, "GET", "/api/tuner/register/0x0d", "")
	assert.Equal(t, "0x75", dataMap(t, resp)["value"])

	status, _ = rig.do(t, "POST", "/api/tuner/standard", `{"reception_type":"satellite"}`)
	assert.Equal(t, 400, status)

	status, _ = rig.do(t, "POST", "/api/tuner/standard", `{"reception_type":"radio","standard":"atsc"}`)
	assert.Equal(t, 400, status)
}

func TestTunerPluginGain(t *testing.T) {
	rig := newTestRig(t, nil)
	rig.do(t, "POST", "/api/tuner/init", "")

	status, resp := rig.do(t, "POST", "/api/tuner/gain", `{"mode":"manual","gain":50}`)
	require.Equal(t, 200, status)
	data := dataMap(t, resp)
	assert.Equal(t, "manual", data["mode"])
	assert.Equal(t, float64(77), data["gain"])

	status, _ = rig.do(t, "POST", "/api/tuner/gain", `{"mode":"turbo"}`)
	assert.Equal(t, 400, status)

	status, resp = rig.do(t, "GET", "/api/tuner/gain/steps", "")
	require.Equal(t, 200, status)
	steps, ok := dataMap(t, resp)["steps"].([]interface{})
	require.True(t, ok)
	assert.Len(t, steps, len(r82xx.GainSteps()))
}

func TestTunerPluginRegisters(t *testing.T) {
	rig := newTestRig(t, nil)

	status, resp := rig.do(t, "GET", "/api/tuner/register/0x05", "")
	require.Equal(t, 200, status)
	data := dataMap(t, resp)
	assert.Equal(t, "0x83", data["value"])
	assert.Equal(t, "R5 - Loop-through, input select, LNA gain", data["description"])

	status, resp = rig.do(t, "GET", "/api/tuner/register/2", "")
	assert.Equal(t, 400, status)
	assert.Contains(t, resp.Error, "register not cached")

	status, _ = rig.do(t, "GET", "/api/tuner/register/0x100", "")
	assert.Equal(t, 400, status)

	status, _ = rig.do(t, "POST", "/api/tuner/register/0x0c", `{"value":11,"mask":15}`)
	require.Equal(t, 200, status)
	_, resp = rig.do(t, "GET", "/api/tuner/register/12", "")
	data = dataMap(t, resp)
	assert.Equal(t, "0xFB", data["value"])
	assert.Equal(t, "0xF5", data["default"])

	status, _ = rig.do(t, "POST", "/api/tuner/register/0x02", `{"value":1}`)
	assert.Equal(t, 400, status)

	status, resp = rig.do(t, "GET", "/api/tuner/registers", "")
	require.Equal(t, 200, status)
	assert.Equal(t, float64(r82xx.NumRegs), dataMap(t, resp)["count"])
}

func TestTunerPluginOverride(t *testing.T) {
	rig := newTestRig(t, nil)

	status, resp := rig.do(t, "POST", "/api/tuner/override/0x0c", `{"value":0,"mask":15}`)
	require.Equal(t, 200, status)
	data := dataMap(t, resp)
	assert.Equal(t, "0x0F", data["override_mask"])
	assert.Equal(t, "0x00", data["override_data"])
	assert.Equal(t, "Override set", resp.Message)

	status, resp = rig.do(t, "POST", "/api/tuner/override/0x0c", `{"mask":15,"clear":true}`)
	require.Equal(t, 200, status)
	assert.NotContains(t, dataMap(t, resp), "override_mask")

	status, _ = rig.do(t, "POST", "/api/tuner/override/0x03", `{"value":1}`)
	assert.Equal(t, 400, status)
}

func TestTunerPluginXtalCheck(t *testing.T) {
	rig := newTestRig(t, nil)

	status, resp := rig.do(t, "POST", "/api/tuner/xtal-check", "")
	require.Equal(t, 200, status)
	assert.Equal(t, "low-30pF", dataMap(t, resp)["xtal_cap"])

	rig.bus.status[2] = 0x3f
	status, _ = rig.do(t, "POST", "/api/tuner/xtal-check", "")
	assert.Equal(t, 409, status)
}

func TestTunerPluginBiasTee(t *testing.T) {
	t.Run("Not configured", func(t *testing.T) {
		rig := newTestRig(t, nil)

		status, resp := rig.do(t, "POST", "/api/tuner/bias-tee", `{"enabled":true}`)
		assert.Equal(t, 503, status)
		assert.Contains(t, resp.Error, "bias-tee")

		_, resp = rig.do(t, "GET", "/api/tuner/info", "")
		assert.Equal(t, "", dataMap(t, resp)["bias_tee"])
	})

	t.Run("Switches line", func(t *testing.T) {
		line := &fakeBiasTee{}
		rig := newTestRig(t, line)

		status, _ := rig.do(t, "POST", "/api/tuner/bias-tee", `{"enabled":true}`)
		require.Equal(t, 200, status)
		assert.True(t, line.on)

		_, resp := rig.do(t, "GET", "/api/tuner/status", "")
		assert.Equal(t, true, dataMap(t, resp)["bias_tee"])

		_, resp = rig.do(t, "GET", "/api/tuner/info", "")
		assert.Equal(t, "GPIO: fake, Bias-tee Pin: 17", dataMap(t, resp)["bias_tee"])

		require.NoError(t, rig.plugin.Shutdown())
		assert.True(t, line.closed)
		assert.True(t, rig.bus.closed)
	})
}

func TestTunerPluginBusError(t *testing.T) {
	rig := newTestRig(t, nil)
	rig.bus.failWrite = true

	status, resp := rig.do(t, "POST", "/api/tuner/init", "")
	assert.Equal(t, 500, status)
	assert.Contains(t, resp.Error, "tuner bus transfer failed")
}

func TestTunerPluginPublishesStatus(t *testing.T) {
	rig := newTestRig(t, nil)
	_, events := rig.plugin.events.Subscribe()

	rig.do(t, "POST", "/api/tuner/init", "")

	var ev struct {
		Type string `json:"type"`
		Data struct {
			Initialized bool `json:"initialized"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(<-events, &ev))
	assert.Equal(t, EventStatus, ev.Type)
	assert.True(t, ev.Data.Initialized)
}

func TestTunerErrorStatus(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{r82xx.ErrInvalidConfig, 400},
		{r82xx.ErrOverrideAddress, 400},
		{r82xx.ErrNotCached, 400},
		{r82xx.ErrPLLOutOfRange, 400},
		{ErrNotInitialized, 409},
		{r82xx.ErrXtalCheckFailed, 409},
		{ErrNoBiasTee, 503},
		{r82xx.ErrBus, 500},
		{errFakeBus, 500},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tunerErrorStatus(tt.err), tt.err.Error())
	}
}

func TestCoreConfig(t *testing.T) {
	cfg, err := TunerConfig{Chip: "r828d", Xtal: 16000000, XtalCheck: true}.CoreConfig(nil)
	require.NoError(t, err)
	assert.Equal(t, r82xx.ChipR828D, cfg.Chip)
	assert.Equal(t, uint32(16000000), cfg.Xtal)
	assert.True(t, cfg.XtalCheck)

	cfg, err = TunerConfig{}.CoreConfig(nil)
	require.NoError(t, err)
	assert.Equal(t, r82xx.ChipR820T, cfg.Chip)

	_, err = TunerConfig{Chip: "E4000"}.CoreConfig(nil)
	assert.ErrorIs(t, err, r82xx.ErrInvalidConfig)
}

func TestOpenTunerBusUnknownKind(t *testing.T) {
	_, err := OpenTunerBus(TunerConfig{Bus: "spi"})
	assert.ErrorIs(t, err, r82xx.ErrInvalidConfig)
}

func TestTunerControllerClose(t *testing.T) {
	bus := newFakeBus()
	cfg, err := TunerConfig{}.CoreConfig(nil)
	require.NoError(t, err)
	ctrl, err := NewTunerController(bus, nil, cfg)
	require.NoError(t, err)

	require.NoError(t, ctrl.Close())
	assert.True(t, bus.closed)

	err = ctrl.Do(func(*r82xx.Tuner) error { return nil })
	assert.Error(t, err)
}
