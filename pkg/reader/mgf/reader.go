// Package mgf provides streaming readers for Mascot Generic Format peak lists
package mgf

import (
	"bufio"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"

	"github.com/ChrisMcGann/ScanKey/pkg/core"
	"github.com/ChrisMcGann/ScanKey/pkg/warn"
)

// TITLE lines carry the scan as "scan=N" or as "run.N.N.charge".
var titleScanPattern = regexp.MustCompile(`scan=(\d+)|\.(\d+)\.\d+\.\d+`)

// Reader provides streaming access to MGF files. Unparseable numeric
// headers are reported and treated as absent; a block with an unparseable
// peak line is skipped. Only a truncated file ends the stream with an error.
type Reader struct {
	scanner     *bufio.Scanner
	lineNum     int
	index       int64
	current     *core.RawScan
	warnings    warn.Sink
	fieldErrors *warn.Counter
	skipped     *warn.Counter
	err         error
}

// NewReader creates a new MGF reader
func NewReader(r io.Reader) *Reader {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	return &Reader{
		scanner:     scanner,
		warnings:    warn.Discard,
		fieldErrors: warn.NewCounter(warn.DefaultFirst),
		skipped:     warn.NewCounter(warn.DefaultFirst),
	}
}

// SetWarnings directs field and skipped-block warnings to sink.
func (r *Reader) SetWarnings(sink warn.Sink) {
	if sink == nil {
		sink = warn.Discard
	}
	r.warnings = sink
}

// FieldErrors returns the number of header values that could not be parsed.
func (r *Reader) FieldErrors() int {
	return r.fieldErrors.Count
}

// Skipped returns the number of blocks dropped for malformed peak lines.
func (r *Reader) Skipped() int {
	return r.skipped.Count
}

// Next advances to the next spectrum. Returns false when no more spectra or error.
func (r *Reader) Next() bool {
	r.current = nil

	scan, err := r.readSpectrum()
	if err != nil {
		if err != io.EOF {
			r.err = err
		}
		return false
	}

	r.current = scan
	return true
}

// Scan returns the current spectrum
func (r *Reader) Scan() *core.RawScan {
	return r.current
}

// Err returns any error encountered during reading
func (r *Reader) Err() error {
	return r.err
}

// readSpectrum returns the next block that has a well-formed peak list
func (r *Reader) readSpectrum() (*core.RawScan, error) {
	for {
		scan, badPeak, err := r.readBlock()
		if err != nil {
			return nil, err
		}
		if badPeak == nil {
			return scan, nil
		}
		r.skipped.Hit(r.warnings, "Skipping MGF block %d: %v", r.index, badPeak)
	}
}

// readBlock reads one block. A malformed peak line is returned as badPeak
// after the rest of the block has been consumed.
func (r *Reader) readBlock() (scan *core.RawScan, badPeak error, err error) {
	var title string

	for r.scanner.Scan() {
		r.lineNum++
		line := strings.TrimSpace(r.scanner.Text())

		// Skip blank lines and comments between entries
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, ";") {
			continue
		}

		if scan == nil {
			if strings.EqualFold(line, "BEGIN IONS") {
				r.index++
				scan = &core.RawScan{
					Descriptor: core.RawScanDescriptor{MSLevel: 2},
					Centroided: true,
				}
			}
			// Global parameters before the first block are ignored.
			continue
		}

		if strings.EqualFold(line, "END IONS") {
			if badPeak == nil {
				r.finish(scan, title)
			}
			return scan, badPeak, nil
		}

		if key, value, ok := strings.Cut(line, "="); ok && !isNumeric(key) {
			if fieldErr := r.parseHeader(scan, strings.ToUpper(strings.TrimSpace(key)), strings.TrimSpace(value)); fieldErr != nil {
				r.fieldErrors.Hit(r.warnings, "MGF block %d line %d: %v; treating as absent", r.index, r.lineNum, fieldErr)
			}
			if strings.EqualFold(strings.TrimSpace(key), "TITLE") {
				title = strings.TrimSpace(value)
			}
			continue
		}

		if badPeak != nil {
			continue
		}
		mz, intensity, perr := parsePeak(line)
		if perr != nil {
			badPeak = fmt.Errorf("line %d: %w", r.lineNum, perr)
			continue
		}
		scan.MZs = append(scan.MZs, mz)
		scan.Intensities = append(scan.Intensities, intensity)
	}

	if err := r.scanner.Err(); err != nil {
		return nil, nil, err
	}
	if scan != nil {
		return nil, nil, fmt.Errorf("line %d: missing END IONS", r.lineNum)
	}
	return nil, nil, io.EOF
}

// parseHeader applies one KEY=VALUE line
func (r *Reader) parseHeader(scan *core.RawScan, key, value string) error {
	d := &scan.Descriptor
	switch key {
	case "PEPMASS":
		// PEPMASS=mz [intensity]
		fields := strings.Fields(value)
		if len(fields) > 0 {
			d.SelectedIonMZ = fields[0]
		}

	case "CHARGE":
		// Several charges ("2+ and 3+") leave the charge unknown.
		if !strings.Contains(value, "and") && !strings.Contains(value, ",") {
			d.ChargeState = value
		}

	case "RTINSECONDS":
		// RTINSECONDS may be a range "start-end"; use its start.
		first := value
		if i := strings.Index(value, "-"); i > 0 {
			first = value[:i]
		}
		rt, err := strconv.ParseFloat(strings.TrimSpace(first), 64)
		if err != nil {
			return &core.FieldError{Field: key, Value: value, Err: err}
		}
		d.ElutionTimeMin = rt / 60

	case "SCANS":
		// Left unset on error; finish falls back to the title or block index.
		first, _, _ := strings.Cut(value, "-")
		n, err := strconv.ParseInt(strings.TrimSpace(first), 10, 64)
		if err != nil {
			return &core.FieldError{Field: key, Value: value, Err: err}
		}
		d.ScanNumber = n

	case "MSLEVEL":
		level, err := strconv.Atoi(value)
		if err != nil {
			return &core.FieldError{Field: key, Value: value, Err: err}
		}
		d.MSLevel = level

	case "ACTIVATION", "FRAGMENTATION":
		d.ActivationTerms = append(d.ActivationTerms, value)

	case "FILTER":
		d.FilterText = value
	}
	return nil
}

// finish fills the fields MGF leaves implicit
func (r *Reader) finish(scan *core.RawScan, title string) {
	d := &scan.Descriptor
	if d.ScanNumber == 0 {
		if m := titleScanPattern.FindStringSubmatch(title); m != nil {
			digits := m[1]
			if digits == "" {
				digits = m[2]
			}
			d.ScanNumber, _ = strconv.ParseInt(digits, 10, 64)
		}
	}
	if d.ScanNumber == 0 {
		d.ScanNumber = r.index
	}

	for i, mz := range scan.MZs {
		y := scan.Intensities[i]
		d.TotalIonCurrent += y
		if y > d.BasePeakIntensity {
			d.BasePeakIntensity, d.BasePeakMZ = y, mz
		}
		if i == 0 || mz < d.LowMass {
			d.LowMass = mz
		}
		if mz > d.HighMass {
			d.HighMass = mz
		}
	}
}

// parsePeak parses a single peak line (format: "mz intensity [charge]")
func parsePeak(line string) (float64, float64, error) {
	fields := strings.Fields(line)
	if len(fields) < 2 {
		return 0, 0, fmt.Errorf("invalid peak format, expected at least 2 fields")
	}

	mz, err := strconv.ParseFloat(fields[0], 64)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid m/z value: %w", err)
	}

	intensity, err := strconv.ParseFloat(fields[1], 64)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid intensity value: %w", err)
	}
	return mz, intensity, nil
}

func isNumeric(s string) bool {
	_, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	return err == nil
}
