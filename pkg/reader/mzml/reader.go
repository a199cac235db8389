// Package mzml provides streaming readers for mzML spectra and chromatograms
package mzml

import (
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/net/html/charset"

	"github.com/ChrisMcGann/ScanKey/pkg/core"
	"github.com/ChrisMcGann/ScanKey/pkg/srm"
	"github.com/ChrisMcGann/ScanKey/pkg/warn"
)

var scanIDPattern = regexp.MustCompile(`(?:^|\s)scan=(\d+)`)

// elements walks an XML stream and decodes every element with a given local
// name, skipping all others.
type elements struct {
	decoder *xml.Decoder
	name    string
}

func newElements(r io.Reader, name string) *elements {
	d := xml.NewDecoder(r)
	d.CharsetReader = charset.NewReaderLabel
	return &elements{decoder: d, name: name}
}

// next decodes the next matching element into v. It returns false at EOF.
func (e *elements) next(v any) (bool, error) {
	for {
		tok, err := e.decoder.Token()
		if err == io.EOF {
			return false, nil
		}
		if err != nil {
			return false, fmt.Errorf("invalid XML: %w", err)
		}
		se, ok := tok.(xml.StartElement)
		if !ok || se.Name.Local != e.name {
			continue
		}
		if err := e.decoder.DecodeElement(v, &se); err != nil {
			return false, fmt.Errorf("invalid %s element: %w", e.name, err)
		}
		return true, nil
	}
}

// Reader provides streaming access to the spectra of an mzML file. A
// spectrum whose data cannot be decoded is skipped with a warning; only
// malformed XML ends the stream.
type Reader struct {
	elems    *elements
	current  *core.RawScan
	count    int
	warnings warn.Sink
	skipped  *warn.Counter
	err      error
}

// NewReader creates a new mzML spectrum reader
func NewReader(r io.Reader) *Reader {
	return &Reader{
		elems:    newElements(r, "spectrum"),
		warnings: warn.Discard,
		skipped:  warn.NewCounter(warn.DefaultFirst),
	}
}

// SetWarnings directs skipped-spectrum warnings to sink.
func (r *Reader) SetWarnings(sink warn.Sink) {
	if sink == nil {
		sink = warn.Discard
	}
	r.warnings = sink
}

// Next advances to the next spectrum. Returns false when no more spectra or error.
func (r *Reader) Next() bool {
	r.current = nil
	if r.err != nil {
		return false
	}

	for {
		var s spectrum
		ok, err := r.elems.next(&s)
		if err != nil {
			r.err = fmt.Errorf("spectrum %d: %w", r.count+r.skipped.Count+1, err)
			return false
		}
		if !ok {
			return false
		}

		scan, err := s.rawScan()
		if err != nil {
			r.skipped.Hit(r.warnings, "Skipping spectrum %q: %v", s.ID, err)
			continue
		}
		r.count++
		r.current = scan
		return true
	}
}

// Scan returns the current spectrum
func (r *Reader) Scan() *core.RawScan {
	return r.current
}

// Err returns any error encountered during reading
func (r *Reader) Err() error {
	return r.err
}

// Count returns the number of spectra read so far.
func (r *Reader) Count() int {
	return r.count
}

// Skipped returns the number of spectra dropped because their data could
// not be decoded.
func (r *Reader) Skipped() int {
	return r.skipped.Count
}

// scanNumber extracts N from a native id such as
// "controllerType=0 controllerNumber=1 scan=N".
func scanNumber(id string) (int64, bool) {
	m := scanIDPattern.FindStringSubmatch(id)
	if m == nil {
		return 0, false
	}
	n, err := strconv.ParseInt(m[1], 10, 64)
	return n, err == nil
}

func parseFloat(s string) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0
	}
	return v
}

// minutes converts a time value to minutes using its unit accession.
// Unitless values are taken as minutes.
func minutes(p CVParam) float64 {
	v := parseFloat(p.Value)
	if p.UnitAccession == accUnitSecond {
		return v / 60
	}
	return v
}

func (s *spectrum) rawScan() (*core.RawScan, error) {
	d := core.RawScanDescriptor{
		BasePeakMZ:        parseFloat(paramValue(s.CvPar, accBasePeakMZ)),
		BasePeakIntensity: parseFloat(paramValue(s.CvPar, accBasePeakInt)),
		TotalIonCurrent:   parseFloat(paramValue(s.CvPar, accTotalIonCurrent)),
		LowMass:           parseFloat(paramValue(s.CvPar, accLowestMZ)),
		HighMass:          parseFloat(paramValue(s.CvPar, accHighestMZ)),
	}

	if n, ok := scanNumber(s.ID); ok {
		d.ScanNumber = n
	} else {
		d.ScanNumber = int64(s.Index) + 1
	}
	if level, err := strconv.Atoi(paramValue(s.CvPar, accMSLevel)); err == nil {
		d.MSLevel = level
	}
	switch {
	case hasParam(s.CvPar, accSRMSpectrum):
		d.LegacyScanType = "SRM"
	case hasParam(s.CvPar, accSIMSpectrum):
		d.LegacyScanType = "SIM"
	}

	if len(s.ScanList.Scan) > 0 {
		params := s.ScanList.Scan[0].CvPar
		if p, ok := findParam(params, accScanStartTime); ok {
			d.ElutionTimeMin = minutes(p)
		}
		d.FilterText = paramValue(params, accFilterString)
	}

	if len(s.PrecursorList.Precursor) > 0 {
		// The last precursor is the one isolated for this scan in MSn.
		prec := s.PrecursorList.Precursor[len(s.PrecursorList.Precursor)-1]
		if n, ok := scanNumber(prec.SpectrumRef); ok {
			d.PrecursorScanNumber = n
		}
		win := prec.IsolationWindow.CvPar
		d.IsolationWindow = core.IsolationWindow{
			Target:      paramValue(win, accIsolationTarget),
			LowerOffset: paramValue(win, accIsolationLower),
			UpperOffset: paramValue(win, accIsolationUpper),
		}
		if len(prec.SelectedIonList.SelectedIon) > 0 {
			ion := prec.SelectedIonList.SelectedIon[0].CvPar
			d.SelectedIonMZ = paramValue(ion, accSelectedIonMZ)
			d.ChargeState = paramValue(ion, accChargeState)
		}
		for _, p := range prec.Activation.CvPar {
			if p.Accession != accCollisionEnergy {
				d.ActivationTerms = append(d.ActivationTerms, p.Accession)
			}
		}
	}

	data, _, err := arrays(s.BinaryDataArrayList)
	if err != nil {
		return nil, err
	}
	scan := &core.RawScan{
		Descriptor:  d,
		MZs:         data[accMZArray],
		Intensities: data[accIntensityArray],
		Centroided:  hasParam(s.CvPar, accCentroid),
	}
	if len(scan.MZs) != len(scan.Intensities) {
		return nil, fmt.Errorf("%d m/z values but %d intensities", len(scan.MZs), len(scan.Intensities))
	}
	return scan, nil
}

// ChromatogramReader provides streaming access to the chromatograms of an
// mzML file. Undecodable chromatograms are skipped like spectra.
type ChromatogramReader struct {
	elems    *elements
	closer   io.Closer
	current  *core.ChromatogramTrace
	warnings warn.Sink
	skipped  *warn.Counter
	err      error
}

// NewChromatogramReader creates a new mzML chromatogram reader
func NewChromatogramReader(r io.Reader) *ChromatogramReader {
	cr := &ChromatogramReader{
		elems:    newElements(r, "chromatogram"),
		warnings: warn.Discard,
		skipped:  warn.NewCounter(warn.DefaultFirst),
	}
	if c, ok := r.(io.Closer); ok {
		cr.closer = c
	}
	return cr
}

// SetWarnings directs skipped-chromatogram warnings to sink.
func (r *ChromatogramReader) SetWarnings(sink warn.Sink) {
	if sink == nil {
		sink = warn.Discard
	}
	r.warnings = sink
}

// Next advances to the next chromatogram.
func (r *ChromatogramReader) Next() bool {
	r.current = nil
	if r.err != nil {
		return false
	}

	for {
		var c chromatogram
		ok, err := r.elems.next(&c)
		if err != nil {
			r.err = err
			return false
		}
		if !ok {
			return false
		}

		trace, err := c.trace()
		if err != nil {
			r.skipped.Hit(r.warnings, "Skipping chromatogram %q: %v", c.ID, err)
			continue
		}
		r.current = trace
		return true
	}
}

// Skipped returns the number of chromatograms dropped because their data
// could not be decoded.
func (r *ChromatogramReader) Skipped() int {
	return r.skipped.Count
}

// Trace returns the current chromatogram
func (r *ChromatogramReader) Trace() *core.ChromatogramTrace {
	return r.current
}

// Err returns any error encountered during reading
func (r *ChromatogramReader) Err() error {
	return r.err
}

// Close closes the underlying file when the reader owns one.
func (r *ChromatogramReader) Close() error {
	if r.closer == nil {
		return nil
	}
	return r.closer.Close()
}

func (c *chromatogram) trace() (*core.ChromatogramTrace, error) {
	t := &core.ChromatogramTrace{ID: c.ID}
	switch {
	case hasParam(c.CvPar, accTICChromatogram):
		t.Kind = core.TraceTIC
	case hasParam(c.CvPar, accSRMChromatogram):
		t.Kind = core.TraceSRM
	case hasParam(c.CvPar, accSICChromatogram):
		t.Kind = core.TraceSIM
	}
	if c.Precursor != nil {
		t.PrecursorMZ = parseFloat(paramValue(c.Precursor.IsolationWindow.CvPar, accIsolationTarget))
	}
	if c.Product != nil {
		t.TargetMZ = parseFloat(paramValue(c.Product.IsolationWindow.CvPar, accIsolationTarget))
	}
	if t.TargetMZ == 0 {
		t.TargetMZ = t.PrecursorMZ
	}

	data, kinds, err := arrays(c.BinaryDataArrayList)
	if err != nil {
		return nil, err
	}
	t.Times = data[accTimeArray]
	if kinds[accTimeArray].UnitAccession == accUnitSecond {
		for i := range t.Times {
			t.Times[i] /= 60
		}
	}
	t.Intensities = data[accIntensityArray]
	if _, err := t.Len(); err != nil {
		return nil, err
	}
	return t, nil
}

// ChromatogramOpener returns an srm.TraceOpener that reopens path on every
// call, so each reconstruction pass reads the file from the start. Skipped
// chromatograms are reported to sink on the first pass only.
func ChromatogramOpener(path string, sink warn.Sink) srm.TraceOpener {
	opened := 0
	return func() (srm.TraceReader, error) {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("failed to open input file: %w", err)
		}
		r := NewChromatogramReader(f)
		if opened == 0 {
			r.SetWarnings(sink)
		}
		opened++
		return r, nil
	}
}
