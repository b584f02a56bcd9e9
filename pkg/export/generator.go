package export

import (
	"fmt"

	"github.com/hefei93/TowerCollector/pkg/model"
)

// TextGenerator binds a Formatter to a Device. All writes funnel through
// the device so that transport failures surface as DeviceErrors with the
// device-not-available reason.
type TextGenerator struct {
	formatter Formatter
	device    Device
}

// NewTextGenerator creates a generator writing formatter output to device.
func NewTextGenerator(formatter Formatter, device Device) *TextGenerator {
	return &TextGenerator{formatter: formatter, device: device}
}

func (g *TextGenerator) WriteHeader(header model.HeaderData) error {
	if err := g.formatter.WriteHeader(g.device, header); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}
	return nil
}

func (g *TextGenerator) WriteEntry(m model.Measurement) error {
	if err := g.formatter.WriteEntry(g.device, m); err != nil {
		return fmt.Errorf("writing entry %d: %w", m.ID, err)
	}
	return nil
}

func (g *TextGenerator) WriteNewSegment() error {
	if err := g.formatter.WriteNewSegment(g.device); err != nil {
		return fmt.Errorf("writing segment break: %w", err)
	}
	return nil
}

func (g *TextGenerator) WriteFooter() error {
	if err := g.formatter.WriteFooter(g.device); err != nil {
		return fmt.Errorf("writing footer: %w", err)
	}
	return nil
}
