package export

import (
	"io"

	"github.com/hefei93/TowerCollector/pkg/model"
)

// Formatter renders measurements into one text export format. The
// generator calls WriteHeader exactly once, WriteEntry per measurement,
// WriteNewSegment between entries separated by a long time gap, and
// WriteFooter exactly once at the end, on cancelled runs too, so the
// output stays well-formed.
type Formatter interface {
	WriteHeader(w io.Writer, header model.HeaderData) error
	WriteEntry(w io.Writer, m model.Measurement) error
	WriteNewSegment(w io.Writer) error
	WriteFooter(w io.Writer) error
}
