package plugins

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/linht/tuner-manager/r82xx"
)

// Bus kinds accepted in the tuner config
const (
	BusI2C    = "i2c"
	BusRTLUSB = "rtlsdr"
)

var (
	ErrNoBiasTee      = errors.New("bias-tee not configured")
	ErrNotInitialized = errors.New("tuner not initialized")
)

// TunerConfig holds the tuner section of the config file
type TunerConfig struct {
	Chip          string          `yaml:"chip"`
	Bus           string          `yaml:"bus"`
	I2CBus        string          `yaml:"i2c_bus"`
	I2CSpeed      uint32          `yaml:"i2c_speed"`
	USBIndex      int             `yaml:"usb_index"`
	Address       uint8           `yaml:"address"`
	Xtal          uint32          `yaml:"xtal"`
	MaxMessageLen int             `yaml:"max_message_len"`
	UsePredetect  bool            `yaml:"use_predetect"`
	XtalCheck     bool            `yaml:"xtal_check"`
	InitOnStart   bool            `yaml:"init_on_start"`
	Overrides     r82xx.Overrides `yaml:"overrides"`
}

// GPIOConfig holds the bias-tee line; an empty chip disables it
type GPIOConfig struct {
	Chip       string `yaml:"chip"`
	BiasTeePin int    `yaml:"bias_tee_pin"`
}

// CoreConfig converts the file config into the driver config. Range checks
// happen in r82xx.New once defaults are filled in.
func (c TunerConfig) CoreConfig(logger *slog.Logger) (r82xx.Config, error) {
	chip := r82xx.ChipR820T
	if c.Chip != "" {
		var ok bool
		if chip, ok = r82xx.ParseChip(c.Chip); !ok {
			return r82xx.Config{}, fmt.Errorf("%w: unknown chip %q", r82xx.ErrInvalidConfig, c.Chip)
		}
	}

	cfg := r82xx.Config{
		Chip:          chip,
		Address:       c.Address,
		Xtal:          c.Xtal,
		MaxMessageLen: c.MaxMessageLen,
		UsePredetect:  c.UsePredetect,
		XtalCheck:     c.XtalCheck,
		Overrides:     c.Overrides,
		Logger:        logger,
	}
	return cfg, nil
}

// TunerBus is a driver bus that owns an OS resource
type TunerBus interface {
	r82xx.Bus
	io.Closer
}

// BiasTee switches antenna power
type BiasTee interface {
	SetBiasTee(on bool) error
	BiasTee() (bool, error)
	Close() error
}

// TunerController owns one tuner and the hardware around it. All access to
// the tuner goes through Do, which serializes callers.
type TunerController struct {
	mu      sync.Mutex
	bus     TunerBus
	tuner   *r82xx.Tuner
	biasTee BiasTee
	busName string
}

// ControllerStatus is the tuner snapshot plus the surrounding hardware
type ControllerStatus struct {
	r82xx.Status
	Bus     string `json:"bus"`
	BiasTee *bool  `json:"bias_tee,omitempty"`
}

// NewTunerController wraps an open bus; biasTee may be nil
func NewTunerController(bus TunerBus, biasTee BiasTee, cfg r82xx.Config) (*TunerController, error) {
	tuner, err := r82xx.New(bus, cfg)
	if err != nil {
		return nil, err
	}

	name := "custom"
	if s, ok := bus.(fmt.Stringer); ok {
		name = s.String()
	}

	return &TunerController{
		bus:     bus,
		tuner:   tuner,
		biasTee: biasTee,
		busName: name,
	}, nil
}

// OpenTunerBus opens the transport named in the config
func OpenTunerBus(cfg TunerConfig) (TunerBus, error) {
	switch cfg.Bus {
	case BusI2C, "":
		return NewI2CBus(cfg.I2CBus, cfg.I2CSpeed)
	case BusRTLUSB:
		return OpenRTLUSBBus(cfg.USBIndex)
	default:
		return nil, fmt.Errorf("%w: unknown bus %q", r82xx.ErrInvalidConfig, cfg.Bus)
	}
}

// OpenTunerController opens the bus and optional bias-tee line from config
func OpenTunerController(hw HardwareConfig, logger *slog.Logger) (*TunerController, error) {
	cfg, err := hw.Tuner.CoreConfig(logger)
	if err != nil {
		return nil, err
	}

	bus, err := OpenTunerBus(hw.Tuner)
	if err != nil {
		return nil, fmt.Errorf("failed to open tuner bus: %w", err)
	}

	var biasTee BiasTee
	if hw.GPIO.Chip != "" {
		gpio, err := NewGPIOController(hw.GPIO.Chip, hw.GPIO.BiasTeePin)
		if err != nil {
			bus.Close()
			return nil, fmt.Errorf("failed to initialize GPIO: %w", err)
		}
		biasTee = gpio
	}

	ctrl, err := NewTunerController(bus, biasTee, cfg)
	if err != nil {
		if biasTee != nil {
			biasTee.Close()
		}
		bus.Close()
		return nil, err
	}
	return ctrl, nil
}

// Do runs fn with exclusive access to the tuner
func (tc *TunerController) Do(fn func(*r82xx.Tuner) error) error {
	tc.mu.Lock()
	defer tc.mu.Unlock()

	if tc.tuner == nil {
		return fmt.Errorf("controller closed")
	}
	return fn(tc.tuner)
}

// DoInitialized is Do for operations that need a programmed tuner
func (tc *TunerController) DoInitialized(fn func(*r82xx.Tuner) error) error {
	return tc.Do(func(t *r82xx.Tuner) error {
		if !t.Initialized() {
			return ErrNotInitialized
		}
		return fn(t)
	})
}

// Status returns the tuner snapshot and bias-tee state
func (tc *TunerController) Status() ControllerStatus {
	tc.mu.Lock()
	defer tc.mu.Unlock()

	st := ControllerStatus{Bus: tc.busName}
	if tc.tuner != nil {
		st.Status = tc.tuner.Status()
	}
	if tc.biasTee != nil {
		if on, err := tc.biasTee.BiasTee(); err == nil {
			st.BiasTee = &on
		}
	}
	return st
}

// BiasTeeInfo describes the bias-tee line, or "" when none is configured
func (tc *TunerController) BiasTeeInfo() string {
	tc.mu.Lock()
	defer tc.mu.Unlock()

	if tc.biasTee == nil {
		return ""
	}
	if d, ok := tc.biasTee.(interface{ Info() string }); ok {
		return d.Info()
	}
	return "bias-tee"
}

// SetBiasTee switches antenna power
func (tc *TunerController) SetBiasTee(on bool) error {
	tc.mu.Lock()
	defer tc.mu.Unlock()

	if tc.biasTee == nil {
		return ErrNoBiasTee
	}
	return tc.biasTee.SetBiasTee(on)
}

// Close puts the tuner in standby and releases the hardware
func (tc *TunerController) Close() error {
	tc.mu.Lock()
	defer tc.mu.Unlock()

	var errs []error

	if tc.tuner != nil {
		if err := tc.tuner.Standby(); err != nil {
			errs = append(errs, fmt.Errorf("standby error: %w", err))
		}
		tc.tuner = nil
	}

	if tc.biasTee != nil {
		if err := tc.biasTee.Close(); err != nil {
			errs = append(errs, fmt.Errorf("GPIO close error: %w", err))
		}
		tc.biasTee = nil
	}

	if tc.bus != nil {
		if err := tc.bus.Close(); err != nil {
			errs = append(errs, fmt.Errorf("bus close error: %w", err))
		}
		tc.bus = nil
	}

	if len(errs) > 0 {
		return fmt.Errorf("errors during close: %v", errs)
	}
	return nil
}
