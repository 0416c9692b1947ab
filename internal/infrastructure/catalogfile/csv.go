package catalogfile

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"strings"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// csvLayout remembers header spelling, delimiter and BOM of a CSV export
type csvLayout struct {
	header []string
	keys   []string
	comma  rune
	bom    bool
}

// decodeCSV turns CSV rows into the same raw objects a JSON export produces.
// Spreadsheet exports use ';' as often as ','; the header line decides.
func decodeCSV(data []byte) (*csvLayout, []map[string]json.RawMessage, error) {
	l := &csvLayout{comma: ','}
	if bytes.HasPrefix(data, utf8BOM) {
		l.bom = true
		data = data[len(utf8BOM):]
	}

	firstLine := data
	if i := bytes.IndexByte(data, '\n'); i >= 0 {
		firstLine = data[:i]
	}
	if bytes.Count(firstLine, []byte(";")) > bytes.Count(firstLine, []byte(",")) {
		l.comma = ';'
	}

	r := csv.NewReader(bytes.NewReader(data))
	r.Comma = l.comma
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	rows, err := r.ReadAll()
	if err != nil {
		return nil, nil, err
	}
	if len(rows) == 0 {
		return nil, nil, errors.New("empty document")
	}

	l.header = rows[0]
	l.keys = make([]string, len(l.header))
	for i, h := range l.header {
		l.keys[i] = strings.ToLower(strings.TrimSpace(h))
	}

	records := make([]map[string]json.RawMessage, 0, len(rows)-1)
	for _, row := range rows[1:] {
		if len(row) == 1 && strings.TrimSpace(row[0]) == "" {
			continue
		}
		raw := make(map[string]json.RawMessage, len(l.keys))
		for i, key := range l.keys {
			if key == "" {
				continue
			}
			value := ""
			if i < len(row) {
				value = row[i]
			}
			var data []byte
			if key == fieldImages {
				data, err = json.Marshal(splitList(value))
			} else {
				data, err = json.Marshal(value)
			}
			if err != nil {
				return nil, nil, err
			}
			raw[key] = data
		}
		records = append(records, raw)
	}
	return l, records, nil
}

func encodeCSV(l *csvLayout, records []map[string]json.RawMessage) ([]byte, error) {
	header := append([]string(nil), l.header...)
	keys := append([]string(nil), l.keys...)
	known := make(map[string]bool, len(keys))
	for _, k := range keys {
		known[k] = true
	}
	// columns that reconciliation filled but the export never had
	for _, extra := range []string{fieldImage, fieldImagePath, fieldCategory} {
		if known[extra] {
			continue
		}
		for _, raw := range records {
			if _, ok := raw[extra]; ok {
				header = append(header, extra)
				keys = append(keys, extra)
				known[extra] = true
				break
			}
		}
	}

	var buf bytes.Buffer
	if l.bom {
		buf.Write(utf8BOM)
	}
	w := csv.NewWriter(&buf)
	w.Comma = l.comma
	if err := w.Write(header); err != nil {
		return nil, err
	}
	for _, raw := range records {
		row := make([]string, len(keys))
		for i, key := range keys {
			if key == fieldImages {
				var images []string
				if data, ok := raw[key]; ok && !isNull(data) {
					_ = json.Unmarshal(data, &images)
				}
				row[i] = strings.Join(images, ", ")
				continue
			}
			row[i] = rawString(raw, key)
		}
		if err := w.Write(row); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func splitList(s string) []string {
	parts := strings.FieldsFunc(s, func(r rune) bool { return r == ',' || r == ';' || r == '|' })
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
