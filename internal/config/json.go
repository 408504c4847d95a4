package config

import "encoding/json"

// configAlias avoids infinite recursion when Config's own (Un)MarshalJSON
// delegates back into encoding/json for the known fields.
type configAlias Config

// MarshalJSON re-merges extra (unknown, user-added) keys back onto the
// known fields before emitting, so round-tripping a Config never drops
// customizations this package doesn't model. Grounded on the teacher's
// hooks.SettingsJSON merge step (internal/hooks/merge.go), adapted from a
// settings.json-wide merge to a single-struct extra-field merge.
func (c Config) MarshalJSON() ([]byte, error) {
	known, err := json.Marshal(configAlias(c))
	if err != nil {
		return nil, err
	}
	if len(c.extra) == 0 {
		return known, nil
	}

	var merged map[string]json.RawMessage
	if err := json.Unmarshal(known, &merged); err != nil {
		return nil, err
	}
	for k, v := range c.extra {
		if _, known := merged[k]; !known {
			merged[k] = v
		}
	}
	return json.Marshal(merged)
}

// UnmarshalJSON decodes the known fields normally, then stashes any
// top-level key this struct doesn't declare into extra.
func (c *Config) UnmarshalJSON(data []byte) error {
	var alias configAlias
	if err := json.Unmarshal(data, &alias); err != nil {
		return err
	}
	*c = Config(alias)

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	known := knownConfigKeys()
	extra := make(map[string]json.RawMessage)
	for k, v := range raw {
		if !known[k] {
			extra[k] = v
		}
	}
	if len(extra) > 0 {
		c.extra = extra
	}
	return nil
}

func knownConfigKeys() map[string]bool {
	return map[string]bool{
		"trigger_phrases": true,
		"blocked_tools":   true,
		"read_patterns":   true,
		"write_patterns":  true,
		"extrasafe":       true,
		"git":             true,
		"environment":     true,
		"features":        true,
	}
}
