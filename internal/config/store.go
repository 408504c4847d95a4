package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/xcawolfe-amzn/cc-sessions/internal/util"
)

// Store is the project-wide config record, unscoped by project-root hash
// (spec §3.1: config is meant to be checked in and shared, unlike state).
// Grounded on the teacher's hooks.Store (internal/hooks/config.go) for the
// load/migrate/save shape, generalized from a settings.json merge target to
// this package's own Config type.
type Store struct {
	projectRoot string
	path        string
}

const configSubpath = "sessions/sessions-config.json"

// New opens the config store for projectRoot without loading it.
func New(projectRoot string) *Store {
	return &Store{
		projectRoot: projectRoot,
		path:        filepath.Join(projectRoot, configSubpath),
	}
}

// Path returns the config file path.
func (s *Store) Path() string { return s.path }

// Load reads the config file, running both legacy-key migrations, and
// materializes defaults if the file does not yet exist. A syntactically
// invalid file is quarantined, matching state.Store's behavior, since both
// stores share the same on-disk-corruption recovery contract (spec §4.A,
// §4.B).
func (s *Store) Load() (*Config, error) {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		def := Default()
		if writeErr := s.Save(def); writeErr != nil {
			return nil, writeErr
		}
		return def, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", s.path, err)
	}

	migrated, err := migrateRaw(data)
	if err != nil {
		if quarantineErr := util.QuarantineBad(s.path); quarantineErr != nil {
			return nil, fmt.Errorf("quarantining corrupt config: %w", quarantineErr)
		}
		def := Default()
		if writeErr := s.Save(def); writeErr != nil {
			return nil, writeErr
		}
		return def, nil
	}

	var cfg Config
	if err := json.Unmarshal(migrated, &cfg); err != nil {
		if quarantineErr := util.QuarantineBad(s.path); quarantineErr != nil {
			return nil, fmt.Errorf("quarantining corrupt config: %w", quarantineErr)
		}
		def := Default()
		if writeErr := s.Save(def); writeErr != nil {
			return nil, writeErr
		}
		return def, nil
	}
	return &cfg, nil
}

// Save writes cfg atomically.
func (s *Store) Save(cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("creating config dir: %w", err)
	}
	return util.WriteJSONAtomic(s.path, cfg)
}

// migrateRaw rewrites two legacy key shapes before the document is
// unmarshaled into Config, so renamed keys are never silently dropped as
// "extra":
//
//   - features.use_nerd_fonts (bool) -> features.icon_style ("nerd_font" |
//     "plain")
//   - trigger_phrases.implementation_mode -> trigger_phrases.orchestration_mode
func migrateRaw(data []byte) ([]byte, error) {
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, err
	}

	if featuresRaw, ok := doc["features"]; ok {
		var features map[string]json.RawMessage
		if err := json.Unmarshal(featuresRaw, &features); err == nil {
			if useNerdRaw, ok := features["use_nerd_fonts"]; ok {
				var useNerd bool
				if err := json.Unmarshal(useNerdRaw, &useNerd); err == nil {
					if _, hasIconStyle := features["icon_style"]; !hasIconStyle {
						style := IconStylePlain
						if useNerd {
							style = IconStyleNerdFont
						}
						styleJSON, _ := json.Marshal(style)
						features["icon_style"] = styleJSON
					}
				}
				delete(features, "use_nerd_fonts")
				merged, err := json.Marshal(features)
				if err != nil {
					return nil, err
				}
				doc["features"] = merged
			}
		}
	}

	if triggersRaw, ok := doc["trigger_phrases"]; ok {
		var triggers map[string]json.RawMessage
		if err := json.Unmarshal(triggersRaw, &triggers); err == nil {
			if legacy, ok := triggers["implementation_mode"]; ok {
				if _, hasNew := triggers[string(TriggerOrchestrationMode)]; !hasNew {
					triggers[string(TriggerOrchestrationMode)] = legacy
				}
				delete(triggers, "implementation_mode")
				merged, err := json.Marshal(triggers)
				if err != nil {
					return nil, err
				}
				doc["trigger_phrases"] = merged
			}
		}
	}

	return json.Marshal(doc)
}
