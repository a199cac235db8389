// Package filtertext parses Thermo-style scan filter strings such as
// "FTMS + p NSI d Full ms2 810.79@hcd25.00 [100.00-1635.00]".
package filtertext

import (
	"regexp"
	"strconv"
	"strings"
)

// Mode is the acquisition mode named in a filter.
type Mode uint8

const (
	ModeUnknown Mode = iota
	ModeFull
	ModeSIM
	ModeZoom
	ModeSRM
	ModeCRM
	ModeQ1MS
	ModeQ3MS
	ModeMRM
)

// Info is what a filter string says about a scan.
type Info struct {
	Analyzer string
	Polarity int
	Centroid bool
	Mode     Mode
	MSLevel  int

	// ParentMZ is the last precursor m/z in the chain (the one fragmented
	// to produce this scan); 0 when none is given.
	ParentMZ float64

	// Activations holds primary activation codes in the order found
	// ("hcd", "cid", ...). Supplemental holds codes chained after a primary
	// one on the same precursor ("@etd50.00@hcd20.00") or implied by "sa".
	Activations  []string
	Supplemental []string

	// Mass range from the trailing bracket, 0 when absent.
	LowMass  float64
	HighMass float64
}

var (
	levelPattern  = regexp.MustCompile(`^ms(\d+)?$`)
	parentPattern = regexp.MustCompile(`^(\d+(?:\.\d+)?)((?:@[a-z]+-?\d*(?:\.\d+)?)*)$`)
	actPattern    = regexp.MustCompile(`@([a-z]+)`)
	rangePattern  = regexp.MustCompile(`(\d+(?:\.\d+)?)-(\d+(?:\.\d+)?)`)
)

// Parse extracts scan information from filter. ok is false when the string
// does not look like a scan filter at all.
func Parse(filter string) (Info, bool) {
	info := Info{}
	filter = strings.TrimSpace(filter)
	if filter == "" {
		return info, false
	}

	head := filter
	if idx := strings.Index(filter, "["); idx >= 0 {
		head = filter[:idx]
		info.LowMass, info.HighMass = parseRanges(filter[idx:])
	}

	for _, tok := range strings.Fields(head) {
		lower := strings.ToLower(tok)
		switch {
		case lower == "ftms" || lower == "itms" || lower == "tqms" || lower == "sqms" || lower == "tofms" || lower == "sector":
			info.Analyzer = strings.ToUpper(tok)
		case tok == "+":
			info.Polarity = 1
		case tok == "-":
			info.Polarity = -1
		case lower == "c":
			info.Centroid = true
		case lower == "p":
			info.Centroid = false
		case lower == "full":
			info.Mode = ModeFull
		case lower == "sim":
			info.Mode = ModeSIM
		case lower == "z":
			info.Mode = ModeZoom
		case lower == "srm":
			info.Mode = ModeSRM
		case lower == "crm":
			info.Mode = ModeCRM
		case lower == "q1ms":
			info.Mode = ModeQ1MS
			info.MSLevel = 1
		case lower == "q3ms":
			info.Mode = ModeQ3MS
			info.MSLevel = 1
		case lower == "mrm":
			info.Mode = ModeMRM
		case lower == "sa":
			info.Supplemental = appendUnique(info.Supplemental, "cid")
		case levelPattern.MatchString(lower):
			m := levelPattern.FindStringSubmatch(lower)
			info.MSLevel = 1
			if m[1] != "" {
				if n, err := strconv.Atoi(m[1]); err == nil {
					info.MSLevel = n
				}
			}
		case parentPattern.MatchString(lower):
			info.parseParent(lower)
		}
	}

	if info.Mode == ModeUnknown && info.MSLevel == 0 {
		return info, false
	}
	if info.Mode == ModeUnknown {
		info.Mode = ModeFull
	}
	return info, true
}

func (info *Info) parseParent(tok string) {
	m := parentPattern.FindStringSubmatch(tok)
	if mz, err := strconv.ParseFloat(m[1], 64); err == nil {
		info.ParentMZ = mz
	}
	codes := actPattern.FindAllStringSubmatch(m[2], -1)
	for i, c := range codes {
		if i == 0 {
			info.Activations = appendUnique(info.Activations, c[1])
		} else {
			info.Supplemental = appendUnique(info.Supplemental, c[1])
		}
	}
}

func parseRanges(s string) (low, high float64) {
	matches := rangePattern.FindAllStringSubmatch(s, -1)
	for i, m := range matches {
		lo, err1 := strconv.ParseFloat(m[1], 64)
		hi, err2 := strconv.ParseFloat(m[2], 64)
		if err1 != nil || err2 != nil {
			continue
		}
		if i == 0 || lo < low {
			low = lo
		}
		if hi > high {
			high = hi
		}
	}
	return low, high
}

func appendUnique(list []string, v string) []string {
	for _, s := range list {
		if s == v {
			return list
		}
	}
	return append(list, v)
}

// HighResolution reports whether the scan was acquired on an FT analyzer.
func (info Info) HighResolution() bool {
	return info.Analyzer == "FTMS"
}

// BaseLabel returns the scan type label without activation prefix:
// MS, HMS, MSn, HMSn, SIM ms, HMS-SIM, Zoom-MS, CID-SRM, Q1MS, Q3MS, MRM.
func (info Info) BaseLabel() string {
	hr := info.HighResolution()
	switch info.Mode {
	case ModeSIM:
		if hr {
			return "HMS-SIM"
		}
		return "SIM ms"
	case ModeZoom:
		return "Zoom-MS"
	case ModeSRM, ModeCRM:
		return "CID-SRM"
	case ModeQ1MS:
		return "Q1MS"
	case ModeQ3MS:
		return "Q3MS"
	case ModeMRM:
		return "MRM"
	}
	if info.MSLevel > 1 {
		if hr {
			return "HMSn"
		}
		return "MSn"
	}
	if hr {
		return "HMS"
	}
	return "MS"
}

// IsSRM reports a selected/consecutive reaction monitoring filter.
func (info Info) IsSRM() bool {
	return info.Mode == ModeSRM || info.Mode == ModeCRM || info.Mode == ModeMRM
}

// IsQMS reports a Q1MS or Q3MS quadrupole scan.
func (info Info) IsQMS() bool {
	return info.Mode == ModeQ1MS || info.Mode == ModeQ3MS
}
