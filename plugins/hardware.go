package plugins

import (
	"fmt"
	"log/slog"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/linht/tuner-manager/r82xx"
)

// TunerPlugin exposes one R82xx tuner over HTTP and a websocket status stream.
// The bus stays open for the plugin's lifetime.
type TunerPlugin struct {
	config HardwareConfig
	ctrl   *TunerController
	events *EventHub
}

// HardwareConfig holds hardware configuration
type HardwareConfig struct {
	Tuner TunerConfig `yaml:"tuner"`
	GPIO  GPIOConfig  `yaml:"gpio"`
}

// NewTunerPlugin creates a plugin around an open controller
func NewTunerPlugin(cfg HardwareConfig, ctrl *TunerController) *TunerPlugin {
	slog.Info("Tuner plugin initializing",
		"chip", cfg.Tuner.Chip,
		"bus", ctrl.busName,
		"xtal", cfg.Tuner.Xtal,
		"gpio_chip", cfg.GPIO.Chip,
		"bias_tee_pin", cfg.GPIO.BiasTeePin)

	return &TunerPlugin{
		config: cfg,
		ctrl:   ctrl,
		events: NewEventHub(),
	}
}

// Name returns the plugin identifier
func (p *TunerPlugin) Name() string {
	return "tuner"
}

// RegisterRoutes adds the plugin's HTTP routes
func (p *TunerPlugin) RegisterRoutes(app *fiber.App) {
	api := app.Group("/api/tuner")

	// Device control endpoints
	api.Post("/init", p.handleInit)
	api.Post("/standby", p.handleStandby)
	api.Get("/status", p.handleStatus)
	api.Get("/info", p.handleInfo)
	api.Post("/xtal-check", p.handleXtalCheck)

	// Tuning endpoints
	api.Post("/frequency", p.handleSetFrequency)
	api.Post("/bandwidth", p.handleSetBandwidth)
	api.Post("/center-offset", p.handleSetCenterOffset)
	api.Post("/standard", p.handleApplyStandard)
	api.Post("/gain", p.handleSetGain)
	api.Get("/gain/steps", p.handleGainSteps)

	// Register access endpoints
	api.Get("/register/:addr", p.handleReadRegister)
	api.Post("/register/:addr", p.handleWriteRegister)
	api.Get("/registers", p.handleReadAllRegisters)
	api.Post("/override/:addr", p.handleSetOverride)

	// Antenna power
	api.Post("/bias-tee", p.handleSetBiasTee)

	// Status stream
	api.Get("/events", p.events.Handler(func() interface{} {
		return p.ctrl.Status()
	}))

	slog.Info("Tuner plugin routes registered")
}

// Shutdown disconnects subscribers and releases the hardware
func (p *TunerPlugin) Shutdown() error {
	p.events.Close()
	return p.ctrl.Close()
}

// publishStatus pushes the current snapshot to every subscriber
func (p *TunerPlugin) publishStatus() {
	p.events.Publish(EventStatus, p.ctrl.Status())
}

// parseAddr accepts decimal or 0x-prefixed register addresses
func parseAddr(c *fiber.Ctx) (uint8, bool) {
	v, err := strconv.ParseUint(c.Params("addr"), 0, 8)
	if err != nil {
		return 0, false
	}
	return uint8(v), true
}

// Device control handlers

func (p *TunerPlugin) handleInit(c *fiber.Ctx) error {
	var res r82xx.CalibrationResult

	err := p.ctrl.Do(func(t *r82xx.Tuner) error {
		var err error
		res, err = t.Init()
		return err
	})

	if err != nil {
		slog.Error("Failed to initialize tuner", "error", err)
		return SendTunerError(c, err)
	}

	p.publishStatus()

	msg := "Tuner initialized"
	if !res.Locked {
		msg = "Tuner initialized, filter calibration PLL did not lock"
	}
	slog.Info(msg, "filter_code", res.FilterCode)
	return SendSuccess(c, res, msg)
}

func (p *TunerPlugin) handleStandby(c *fiber.Ctx) error {
	err := p.ctrl.Do(func(t *r82xx.Tuner) error {
		return t.Standby()
	})

	if err != nil {
		slog.Error("Failed to put tuner in standby", "error", err)
		return SendTunerError(c, err)
	}

	p.publishStatus()
	slog.Info("Tuner in standby")
	return SendSuccess(c, nil, "Tuner in standby")
}

func (p *TunerPlugin) handleStatus(c *fiber.Ctx) error {
	return SendSuccess(c, p.ctrl.Status(), "")
}

func (p *TunerPlugin) handleInfo(c *fiber.Ctx) error {
	return SendSuccess(c, map[string]interface{}{
		"config":      p.config,
		"bus":         p.ctrl.busName,
		"bias_tee":    p.ctrl.BiasTeeInfo(),
		"subscribers": p.events.Count(),
	}, "")
}

func (p *TunerPlugin) handleXtalCheck(c *fiber.Ctx) error {
	var xtalCap r82xx.XtalCap

	err := p.ctrl.Do(func(t *r82xx.Tuner) error {
		var err error
		xtalCap, err = t.CalibrateCrystal()
		return err
	})

	if err != nil {
		slog.Error("Crystal check failed", "error", err)
		return SendTunerError(c, err)
	}

	p.publishStatus()
	slog.Info("Crystal check complete", "xtal_cap", xtalCap.String())
	return SendSuccess(c, map[string]interface{}{
		"xtal_cap": xtalCap.String(),
	}, "Crystal check complete")
}

// Tuning handlers

func (p *TunerPlugin) handleSetFrequency(c *fiber.Ctx) error {
	var req struct {
		Frequency uint32 `json:"frequency"`
	}
	if err := c.BodyParser(&req); err != nil {
		return SendErrorMessage(c, 400, "Invalid request body")
	}
	if req.Frequency == 0 {
		return SendErrorMessage(c, 400, "Frequency must be positive")
	}

	var res r82xx.TuneResult
	err := p.ctrl.DoInitialized(func(t *r82xx.Tuner) error {
		var err error
		res, err = t.SetFrequency(req.Frequency)
		return err
	})

	if err != nil {
		return SendTunerError(c, err)
	}

	p.publishStatus()
	slog.Info("Frequency set", "frequency", res.Frequency, "lo", res.LOFrequency, "locked", res.Locked)

	msg := "Frequency set"
	if !res.Locked {
		msg = "Frequency set, PLL not locked"
	}
	return SendSuccess(c, map[string]interface{}{
		"frequency":    res.Frequency,
		"lo_frequency": res.LOFrequency,
		"band_mhz":     res.BandMHz,
		"locked":       res.Locked,
		"input":        res.Input.String(),
	}, msg)
}

func (p *TunerPlugin) handleSetBandwidth(c *fiber.Ctx) error {
	var req struct {
		Bandwidth  uint32 `json:"bandwidth"`
		SampleRate uint32 `json:"sample_rate"`
		Apply      *bool  `json:"apply"`
	}
	if err := c.BodyParser(&req); err != nil {
		return SendErrorMessage(c, 400, "Invalid request body")
	}
	apply := req.Apply == nil || *req.Apply

	var applied, ifFreq uint32
	err := p.ctrl.Do(func(t *r82xx.Tuner) error {
		if apply && !t.Initialized() {
			return ErrNotInitialized
		}
		var err error
		applied, err = t.SetBandwidth(req.Bandwidth, req.SampleRate, apply)
		ifFreq = t.IntermediateFrequency()
		return err
	})

	if err != nil {
		return SendTunerError(c, err)
	}

	if apply {
		p.publishStatus()
	}
	return SendSuccess(c, map[string]interface{}{
		"bandwidth":              applied,
		"intermediate_frequency": ifFreq,
		"applied":                apply,
	}, "")
}

func (p *TunerPlugin) handleSetCenterOffset(c *fiber.Ctx) error {
	var req struct {
		Offset int32 `json:"offset"`
	}
	if err := c.BodyParser(&req); err != nil {
		return SendErrorMessage(c, 400, "Invalid request body")
	}

	var ifFreq uint32
	err := p.ctrl.Do(func(t *r82xx.Tuner) error {
		ifFreq = t.SetBandCenterOffset(req.Offset)
		return nil
	})

	if err != nil {
		return SendTunerError(c, err)
	}

	p.publishStatus()
	return SendSuccess(c, map[string]interface{}{
		"offset":                 req.Offset,
		"intermediate_frequency": ifFreq,
	}, "Band center offset set, takes effect on next tune")
}

func (p *TunerPlugin) handleApplyStandard(c *fiber.Ctx) error {
	var req struct {
		Bandwidth     uint32 `json:"bandwidth"`
		ReceptionType string `json:"reception_type"`
		Standard      string `json:"standard"`
	}
	if err := c.BodyParser(&req); err != nil {
		return SendErrorMessage(c, 400, "Invalid request body")
	}

	typ, ok := r82xx.ParseReceptionType(req.ReceptionType)
	if !ok {
		return SendErrorMessage(c, 400, fmt.Sprintf("Invalid reception type %q", req.ReceptionType))
	}
	std, ok := r82xx.ParseStandard(req.Standard)
	if !ok {
		return SendErrorMessage(c, 400, fmt.Sprintf("Invalid standard %q", req.Standard))
	}

	var res r82xx.CalibrationResult
	err := p.ctrl.Do(func(t *r82xx.Tuner) error {
		var err error
		res, err = t.SetStandard(req.Bandwidth, typ, std)
		return err
	})

	if err != nil {
		return SendTunerError(c, err)
	}

	p.publishStatus()

	msg := "Standard applied"
	if !res.Locked {
		msg = "Standard not applied, filter calibration PLL did not lock"
	}
	slog.Info(msg, "standard", std.String(), "reception_type", typ.String(), "bandwidth", req.Bandwidth)
	return SendSuccess(c, res, msg)
}

func (p *TunerPlugin) handleSetGain(c *fiber.Ctx) error {
	var req struct {
		Mode  string `json:"mode"`
		Gain  int    `json:"gain"`
		LNA   uint8  `json:"lna"`
		Mixer uint8  `json:"mixer"`
		VGA   uint8  `json:"vga"`
	}
	if err := c.BodyParser(&req); err != nil {
		return SendErrorMessage(c, 400, "Invalid request body")
	}

	mode, err := r82xx.ParseGainMode(req.Mode)
	if err != nil {
		return SendError(c, 400, err)
	}

	var res r82xx.GainResult
	err = p.ctrl.DoInitialized(func(t *r82xx.Tuner) error {
		var err error
		res, err = t.SetGain(r82xx.GainSettings{
			Mode:  mode,
			Gain:  req.Gain,
			LNA:   req.LNA,
			Mixer: req.Mixer,
			VGA:   req.VGA,
		})
		return err
	})

	if err != nil {
		return SendTunerError(c, err)
	}

	p.publishStatus()
	slog.Info("Gain set", "mode", mode.String(), "gain", res.Gain)
	return SendSuccess(c, map[string]interface{}{
		"mode":        mode.String(),
		"lna_index":   res.LNAIndex,
		"mixer_index": res.MixIndex,
		"gain":        res.Gain,
	}, "Gain set")
}

func (p *TunerPlugin) handleGainSteps(c *fiber.Ctx) error {
	return SendSuccess(c, map[string]interface{}{
		"steps": r82xx.GainSteps(),
		"unit":  "0.1 dB",
	}, "")
}

// Register access handlers

func registerInfo(t *r82xx.Tuner, addr uint8, value uint8) map[string]interface{} {
	info := map[string]interface{}{
		"address":     fmt.Sprintf("0x%02X", addr),
		"value":       fmt.Sprintf("0x%02X", value),
		"value_dec":   value,
		"description": describeRegister(addr),
	}
	if addr >= r82xx.RegShadowStart && int(addr) < r82xx.RegShadowStart+r82xx.NumRegs {
		defaults := r82xx.DefaultRegisters()
		info["default"] = fmt.Sprintf("0x%02X", defaults[addr-r82xx.RegShadowStart])
	}
	if mask, data, ok := t.RegisterOverride(addr); ok && mask != 0 {
		info["override_mask"] = fmt.Sprintf("0x%02X", mask)
		info["override_data"] = fmt.Sprintf("0x%02X", data)
	}
	return info
}

func (p *TunerPlugin) handleReadRegister(c *fiber.Ctx) error {
	addr, ok := parseAddr(c)
	if !ok {
		return SendErrorMessage(c, 400, "Invalid register address")
	}

	var info map[string]interface{}
	err := p.ctrl.Do(func(t *r82xx.Tuner) error {
		value, ok := t.ReadCachedRegister(addr)
		if !ok {
			return fmt.Errorf("%w: register 0x%02X", r82xx.ErrNotCached, addr)
		}
		info = registerInfo(t, addr, value)
		return nil
	})

	if err != nil {
		return SendTunerError(c, err)
	}
	return SendSuccess(c, info, "")
}

func (p *TunerPlugin) handleReadAllRegisters(c *fiber.Ctx) error {
	regList := make([]map[string]interface{}, 0, r82xx.NumRegs)

	err := p.ctrl.Do(func(t *r82xx.Tuner) error {
		for i := 0; i < r82xx.NumRegs; i++ {
			addr := uint8(r82xx.RegShadowStart + i)
			value, _ := t.ReadCachedRegister(addr)
			regList = append(regList, registerInfo(t, addr, value))
		}
		return nil
	})

	if err != nil {
		return SendTunerError(c, err)
	}

	return SendSuccess(c, map[string]interface{}{
		"registers": regList,
		"count":     len(regList),
	}, "")
}

func (p *TunerPlugin) handleWriteRegister(c *fiber.Ctx) error {
	addr, ok := parseAddr(c)
	if !ok {
		return SendErrorMessage(c, 400, "Invalid register address")
	}

	var req struct {
		Value uint8  `json:"value"`
		Mask  *uint8 `json:"mask"`
	}
	if err := c.BodyParser(&req); err != nil {
		return SendErrorMessage(c, 400, "Invalid request body")
	}
	mask := uint8(0xff)
	if req.Mask != nil {
		mask = *req.Mask
	}

	var value uint8
	err := p.ctrl.Do(func(t *r82xx.Tuner) error {
		if err := t.WriteRegister(addr, req.Value, mask); err != nil {
			return err
		}
		value, _ = t.ReadCachedRegister(addr)
		return nil
	})

	if err != nil {
		return SendTunerError(c, err)
	}

	p.events.Publish(EventRegister, map[string]interface{}{
		"address": fmt.Sprintf("0x%02X", addr),
		"value":   fmt.Sprintf("0x%02X", value),
	})
	slog.Info("Register write", "address", fmt.Sprintf("0x%02X", addr), "value", fmt.Sprintf("0x%02X", req.Value), "mask", fmt.Sprintf("0x%02X", mask))
	return SendSuccess(c, nil, "Register written successfully")
}

func (p *TunerPlugin) handleSetOverride(c *fiber.Ctx) error {
	addr, ok := parseAddr(c)
	if !ok {
		return SendErrorMessage(c, 400, "Invalid register address")
	}

	var req struct {
		Value uint8  `json:"value"`
		Mask  *uint8 `json:"mask"`
		Clear bool   `json:"clear"`
	}
	if err := c.BodyParser(&req); err != nil {
		return SendErrorMessage(c, 400, "Invalid request body")
	}
	mask := uint8(0xff)
	if req.Mask != nil {
		mask = *req.Mask
	}

	var info map[string]interface{}
	err := p.ctrl.Do(func(t *r82xx.Tuner) error {
		if err := t.SetRegisterOverride(addr, req.Value, mask, req.Clear); err != nil {
			return err
		}
		value, _ := t.ReadCachedRegister(addr)
		info = registerInfo(t, addr, value)
		return nil
	})

	if err != nil {
		return SendTunerError(c, err)
	}

	p.events.Publish(EventRegister, info)
	msg := "Override set"
	if req.Clear {
		msg = "Override cleared"
	}
	return SendSuccess(c, info, msg)
}

func (p *TunerPlugin) handleSetBiasTee(c *fiber.Ctx) error {
	var req struct {
		Enabled bool `json:"enabled"`
	}
	if err := c.BodyParser(&req); err != nil {
		return SendErrorMessage(c, 400, "Invalid request body")
	}

	if err := p.ctrl.SetBiasTee(req.Enabled); err != nil {
		slog.Error("Failed to switch bias-tee", "error", err)
		return SendTunerError(c, err)
	}

	p.publishStatus()
	slog.Info("Bias-tee switched", "enabled", req.Enabled)
	return SendSuccess(c, map[string]interface{}{
		"enabled": req.Enabled,
	}, "")
}

func init() {
	Register("tuner", func(config interface{}) (Plugin, error) {
		hwConfig, ok := config.(HardwareConfig)
		if !ok {
			return nil, fmt.Errorf("invalid config for tuner plugin: expected HardwareConfig")
		}

		ctrl, err := OpenTunerController(hwConfig, slog.Default())
		if err != nil {
			return nil, err
		}

		if hwConfig.Tuner.InitOnStart {
			err := ctrl.Do(func(t *r82xx.Tuner) error {
				_, err := t.Init()
				return err
			})
			if err != nil {
				ctrl.Close()
				return nil, fmt.Errorf("failed to initialize tuner: %w", err)
			}
		}

		return NewTunerPlugin(hwConfig, ctrl), nil
	})
}
