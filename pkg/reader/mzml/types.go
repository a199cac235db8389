package mzml

// Only the parts of mzML needed to describe a scan or a chromatogram are
// decoded; everything else is skipped by encoding/xml.

type spectrum struct {
	Index               int                 `xml:"index,attr"`
	ID                  string              `xml:"id,attr"`
	DefaultArrayLength  int                 `xml:"defaultArrayLength,attr"`
	CvPar               []CVParam           `xml:"cvParam"`
	ScanList            scanList            `xml:"scanList"`
	PrecursorList       precursorList       `xml:"precursorList"`
	BinaryDataArrayList binaryDataArrayList `xml:"binaryDataArrayList"`
}

type chromatogram struct {
	Index               int                 `xml:"index,attr"`
	ID                  string              `xml:"id,attr"`
	CvPar               []CVParam           `xml:"cvParam"`
	Precursor           *xmlPrecursor       `xml:"precursor"`
	Product             *product            `xml:"product"`
	BinaryDataArrayList binaryDataArrayList `xml:"binaryDataArrayList"`
}

type scanList struct {
	CvPar []CVParam `xml:"cvParam"`
	Scan  []scan    `xml:"scan"`
}

type scan struct {
	CvPar []CVParam `xml:"cvParam"`
}

type precursorList struct {
	Precursor []xmlPrecursor `xml:"precursor"`
}

type xmlPrecursor struct {
	SpectrumRef     string          `xml:"spectrumRef,attr"`
	IsolationWindow paramGroup      `xml:"isolationWindow"`
	SelectedIonList selectedIonList `xml:"selectedIonList"`
	Activation      paramGroup      `xml:"activation"`
}

type product struct {
	IsolationWindow paramGroup `xml:"isolationWindow"`
}

type selectedIonList struct {
	SelectedIon []paramGroup `xml:"selectedIon"`
}

type paramGroup struct {
	CvPar []CVParam `xml:"cvParam"`
}

type binaryDataArrayList struct {
	BinaryDataArray []binaryDataArray `xml:"binaryDataArray"`
}

type binaryDataArray struct {
	EncodedLength int       `xml:"encodedLength,attr"`
	ArrayLength   int       `xml:"arrayLength,attr"`
	CvPar         []CVParam `xml:"cvParam"`
	Binary        string    `xml:"binary"`
}

// CVParam contains values and attributes of a mzML Controlled Vocabulary term
type CVParam struct {
	Accession     string `xml:"accession,attr"`
	Name          string `xml:"name,attr"`
	Value         string `xml:"value,attr"`
	UnitAccession string `xml:"unitAccession,attr"`
}

// PSI-MS and unit ontology accessions read by this package.
const (
	accMSLevel         = "MS:1000511"
	accCentroid        = "MS:1000127"
	accScanStartTime   = "MS:1000016"
	accFilterString    = "MS:1000512"
	accBasePeakMZ      = "MS:1000504"
	accBasePeakInt     = "MS:1000505"
	accTotalIonCurrent = "MS:1000285"
	accLowestMZ        = "MS:1000528"
	accHighestMZ       = "MS:1000527"
	accSIMSpectrum     = "MS:1000582"
	accSRMSpectrum     = "MS:1001472"
	accIsolationTarget = "MS:1000827"
	accIsolationLower  = "MS:1000828"
	accIsolationUpper  = "MS:1000829"
	accSelectedIonMZ   = "MS:1000744"
	accChargeState     = "MS:1000041"
	accCollisionEnergy = "MS:1000045"
	accMZArray         = "MS:1000514"
	accIntensityArray  = "MS:1000515"
	accTimeArray       = "MS:1000595"
	accFloat32         = "MS:1000521"
	accFloat64         = "MS:1000523"
	accZlib            = "MS:1000574"
	accNoCompression   = "MS:1000576"
	accTICChromatogram = "MS:1000235"
	accSRMChromatogram = "MS:1001473"
	accSICChromatogram = "MS:1000627"
	accUnitSecond      = "UO:0000010"
)

func findParam(params []CVParam, accession string) (CVParam, bool) {
	for _, p := range params {
		if p.Accession == accession {
			return p, true
		}
	}
	return CVParam{}, false
}

func hasParam(params []CVParam, accession string) bool {
	_, ok := findParam(params, accession)
	return ok
}

// paramValue returns the value of the first cvParam with accession, or "".
func paramValue(params []CVParam, accession string) string {
	p, _ := findParam(params, accession)
	return p.Value
}
