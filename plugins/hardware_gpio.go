package plugins

import (
	"fmt"

	"github.com/warthog618/go-gpiocdev"
)

// GPIOController drives the bias-tee line that powers an active antenna or LNA
type GPIOController struct {
	chip     *gpiocdev.Chip
	biasLine *gpiocdev.Line
	chipPath string
	biasPin  int
}

// NewGPIOController requests the bias-tee pin as an output, initially off
func NewGPIOController(chipPath string, biasPin int) (*GPIOController, error) {
	// Open GPIO chip
	chip, err := gpiocdev.NewChip(chipPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open GPIO chip %s: %w", chipPath, err)
	}

	line, err := chip.RequestLine(
		biasPin,
		gpiocdev.AsOutput(0),
		gpiocdev.WithConsumer("r82xx-bias-tee"),
	)
	if err != nil {
		chip.Close()
		return nil, fmt.Errorf("failed to request bias-tee pin %d: %w", biasPin, err)
	}

	return &GPIOController{
		chip:     chip,
		biasLine: line,
		chipPath: chipPath,
		biasPin:  biasPin,
	}, nil
}

// SetBiasTee switches antenna power on or off
func (g *GPIOController) SetBiasTee(on bool) error {
	if g.biasLine == nil {
		return fmt.Errorf("bias-tee line not initialized")
	}

	value := 0
	if on {
		value = 1
	}

	if err := g.biasLine.SetValue(value); err != nil {
		return fmt.Errorf("failed to set bias-tee pin to %v: %w", on, err)
	}
	return nil
}

// BiasTee reads back the current line state
func (g *GPIOController) BiasTee() (bool, error) {
	if g.biasLine == nil {
		return false, fmt.Errorf("bias-tee line not initialized")
	}

	value, err := g.biasLine.Value()
	if err != nil {
		return false, fmt.Errorf("failed to read bias-tee pin: %w", err)
	}
	return value == 1, nil
}

// Info returns a one-line description of the line
func (g *GPIOController) Info() string {
	if g.chip == nil {
		return fmt.Sprintf("GPIO: %s (closed)", g.chipPath)
	}
	return fmt.Sprintf("GPIO: %s (%s, %s), Bias-tee Pin: %d",
		g.chipPath, g.chip.Name, g.chip.Label, g.biasPin)
}

// Close drives the line low and releases all GPIO resources
func (g *GPIOController) Close() error {
	var errs []error

	if g.biasLine != nil {
		if err := g.biasLine.SetValue(0); err != nil {
			errs = append(errs, fmt.Errorf("failed to switch bias-tee off: %w", err))
		}
		if err := g.biasLine.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close bias-tee line: %w", err))
		}
		g.biasLine = nil
	}

	if g.chip != nil {
		if err := g.chip.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close GPIO chip: %w", err))
		}
		g.chip = nil
	}

	if len(errs) > 0 {
		return fmt.Errorf("errors closing GPIO: %v", errs)
	}
	return nil
}
