package mzml

import (
	"bytes"
	"compress/zlib"
	"encoding/base64"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"strings"
)

// decodeArray decodes a base64 binary data array into float64 values,
// honouring the precision and compression cvParams.
func decodeArray(bda binaryDataArray) ([]float64, error) {
	text := strings.TrimSpace(bda.Binary)
	if text == "" {
		return nil, nil
	}
	raw, err := base64.StdEncoding.DecodeString(text)
	if err != nil {
		return nil, fmt.Errorf("invalid base64 data: %w", err)
	}

	switch {
	case hasParam(bda.CvPar, accZlib):
		zr, err := zlib.NewReader(bytes.NewReader(raw))
		if err != nil {
			return nil, fmt.Errorf("invalid zlib data: %w", err)
		}
		raw, err = io.ReadAll(zr)
		zr.Close()
		if err != nil {
			return nil, fmt.Errorf("invalid zlib data: %w", err)
		}
	case hasParam(bda.CvPar, accNoCompression), len(bda.CvPar) == 0:
	default:
		for _, p := range bda.CvPar {
			if strings.Contains(strings.ToLower(p.Name), "compression") && p.Accession != accNoCompression {
				return nil, fmt.Errorf("unsupported compression %q", p.Name)
			}
		}
	}

	width := 8
	if hasParam(bda.CvPar, accFloat32) {
		width = 4
	}
	if len(raw)%width != 0 {
		return nil, fmt.Errorf("binary length %d is not a multiple of %d", len(raw), width)
	}

	values := make([]float64, len(raw)/width)
	for i := range values {
		if width == 4 {
			values[i] = float64(math.Float32frombits(binary.LittleEndian.Uint32(raw[i*4:])))
		} else {
			values[i] = math.Float64frombits(binary.LittleEndian.Uint64(raw[i*8:]))
		}
	}
	return values, nil
}

// arrays returns the decoded arrays keyed by their array-type accession.
func arrays(list binaryDataArrayList) (map[string][]float64, map[string]CVParam, error) {
	out := make(map[string][]float64, len(list.BinaryDataArray))
	kinds := make(map[string]CVParam, len(list.BinaryDataArray))
	for _, bda := range list.BinaryDataArray {
		var kind CVParam
		for _, acc := range []string{accMZArray, accIntensityArray, accTimeArray} {
			if p, ok := findParam(bda.CvPar, acc); ok {
				kind = p
				break
			}
		}
		if kind.Accession == "" {
			continue
		}
		values, err := decodeArray(bda)
		if err != nil {
			return nil, nil, fmt.Errorf("%s: %w", kind.Name, err)
		}
		out[kind.Accession] = values
		kinds[kind.Accession] = kind
	}
	return out, kinds, nil
}
