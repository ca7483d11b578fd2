package config

import (
	"bufio"
	"bytes"
	"fmt"
	"strings"
)

// iniParser implements koanf.Parser for the flat `key = value` INI dialect
// the service config files use (§6 CLI). koanf ships parsers for YAML,
// JSON and TOML but none for INI, so this is the one piece of the
// config stack not sourced from an existing library.
type iniParser struct{}

// INIParser returns a koanf.Parser for the flat INI dialect consumed by
// Load.
func INIParser() iniParser { return iniParser{} }

// Unmarshal parses b into a flat string-keyed map. Section headers
// ("[name]") are accepted but ignored, since every key this service
// reads is unique across the whole file; ';' and '#' start a
// whole-line comment; blank lines are skipped.
func (iniParser) Unmarshal(b []byte) (map[string]interface{}, error) {
	out := make(map[string]interface{})
	sc := bufio.NewScanner(bytes.NewReader(b))
	for lineNo := 1; sc.Scan(); lineNo++ {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, ";") || strings.HasPrefix(line, "#") {
			continue
		}
		if strings.HasPrefix(line, "[") && strings.HasSuffix(line, "]") {
			continue
		}
		eq := strings.IndexByte(line, '=')
		if eq < 0 {
			return nil, fmt.Errorf("config: ini line %d: missing '=': %q", lineNo, line)
		}
		key := strings.TrimSpace(line[:eq])
		val := strings.TrimSpace(line[eq+1:])
		val = strings.Trim(val, `"`)
		out[strings.ToLower(key)] = val
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("config: scan ini: %w", err)
	}
	return out, nil
}

// Marshal renders a flat map back to INI text. Only used by koanf's
// generic Marshal path; Load never calls it, but the Parser interface
// requires it.
func (iniParser) Marshal(m map[string]interface{}) ([]byte, error) {
	var buf bytes.Buffer
	for k, v := range m {
		fmt.Fprintf(&buf, "%s = %v\n", k, v)
	}
	return buf.Bytes(), nil
}
