// Package names loads the operator-maintained IP-to-display-name mapping
// consumed by the reconciler. No CSV-parsing library appears anywhere in
// the retrieved example corpus, so this is the one ambient concern built
// directly on the standard library's encoding/csv rather than an
// ecosystem package (documented in DESIGN.md).
package names

import (
	"bytes"
	"encoding/csv"
	"io"
	"os"
)

const bom = "\xef\xbb\xbf"

// Map is an IP -> display-name lookup. A missing entry is the caller's cue
// to fall back to the synthetic "Ch <channel_id>" name (spec.md §4.3.1).
type Map map[string]string

// Load reads path and returns the ip->name mapping. A missing file is not
// an error (spec.md §6: "tolerating absence"); it yields an empty Map.
// Malformed rows are skipped silently rather than aborting the whole load.
func Load(path string) (Map, error) {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return Map{}, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return parse(f)
}

func parse(r io.Reader) (Map, error) {
	buf, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	buf = bytes.TrimPrefix(buf, []byte(bom))

	reader := csv.NewReader(bytes.NewReader(buf))
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	out := Map{}
	first := true
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			// Malformed row: skip the rest of this line and continue
			// reading, per spec.md §6's "parse errors ignored silently".
			continue
		}
		if first {
			first = false
			continue
		}
		if len(record) < 2 {
			continue
		}
		ip, name := record[0], record[1]
		if ip == "" || name == "" {
			continue
		}
		out[ip] = name
	}
	return out, nil
}
