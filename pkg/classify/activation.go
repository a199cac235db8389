package classify

import "strings"

// ActivationTag is a recognized activation vocabulary term.
type ActivationTag uint8

const (
	TagUnknown ActivationTag = iota
	TagCID
	TagPD
	TagPSD
	TagSID
	TagBIRD
	TagECD
	TagIRPD
	TagORI
	TagHCD
	TagUVPD
	TagETD
	TagPQD
	TagLIFT
	TagEThcD
	TagSupplementalCID
	TagSupplementalHCD
)

// ParseActivationTerm maps a PSI-MS accession, an mzXML activationMethod
// value or a filter-text activation code to a tag. Anything it does not
// recognize is TagUnknown and gets ignored by the classifier.
func ParseActivationTerm(term string) ActivationTag {
	switch strings.ToUpper(strings.TrimSpace(term)) {
	case "MS:1000133", "CID":
		return TagCID
	case "MS:1000134", "PD":
		return TagPD
	case "MS:1000135", "PSD":
		return TagPSD
	case "MS:1000136", "SID":
		return TagSID
	case "MS:1000242", "BIRD":
		return TagBIRD
	case "MS:1000250", "ECD":
		return TagECD
	case "MS:1000262", "IRPD", "IRMPD", "MPD":
		return TagIRPD
	case "MS:1000282", "ORI", "SORI":
		return TagORI
	case "MS:1000422", "MS:1002481", "HCD":
		return TagHCD
	case "MS:1003246", "UVPD":
		return TagUVPD
	case "MS:1000598", "ETD":
		return TagETD
	case "MS:1000599", "PQD":
		return TagPQD
	case "MS:1002000", "LIFT":
		return TagLIFT
	case "MS:1002631", "ETHCD":
		return TagEThcD
	case "MS:1002679", "SA", "SUPPLEMENTAL CID":
		return TagSupplementalCID
	case "MS:1002678", "SUPPLEMENTAL HCD":
		return TagSupplementalHCD
	default:
		return TagUnknown
	}
}

// Label returns the activation label used in scan type names.
// Supplemental and unknown tags have no label of their own.
func (t ActivationTag) Label() string {
	switch t {
	case TagCID:
		return "CID"
	case TagPD:
		return "PD"
	case TagPSD:
		return "PSD"
	case TagSID:
		return "SID"
	case TagBIRD:
		return "BIRD"
	case TagECD:
		return "ECD"
	case TagIRPD:
		return "IRPD"
	case TagORI:
		return "ORI"
	case TagHCD:
		return "HCD"
	case TagUVPD:
		return "UVPD"
	case TagETD:
		return "ETD"
	case TagPQD:
		return "PQD"
	case TagLIFT:
		return "LIFT"
	case TagEThcD:
		return "EThcD"
	default:
		return ""
	}
}

// activationSet collects labels in first-observed order without duplicates.
type activationSet struct {
	labels          []string
	supplementalCID bool
	supplementalHCD bool
}

func (s *activationSet) add(tag ActivationTag) {
	switch tag {
	case TagUnknown:
		return
	case TagSupplementalCID:
		s.supplementalCID = true
		return
	case TagSupplementalHCD:
		s.supplementalHCD = true
		return
	}
	label := tag.Label()
	for _, l := range s.labels {
		if l == label {
			return
		}
	}
	s.labels = append(s.labels, label)
}

// addTerm accepts compound mzXML values such as "ETD+SA".
func (s *activationSet) addTerm(term string) {
	for _, part := range strings.Split(term, "+") {
		s.add(ParseActivationTerm(part))
	}
}

// resolve applies the electron-transfer supplemental rules and joins the labels.
func (s *activationSet) resolve() string {
	labels := make([]string, 0, len(s.labels))
	seen := make(map[string]bool, len(s.labels))
	for _, l := range s.labels {
		if l == "ETD" {
			switch {
			case s.supplementalCID:
				l = "ETciD"
			case s.supplementalHCD:
				l = "EThcD"
			}
		}
		if seen[l] {
			continue
		}
		seen[l] = true
		labels = append(labels, l)
	}
	return strings.Join(labels, ",")
}
