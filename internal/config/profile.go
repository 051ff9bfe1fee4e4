package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
)

// Printer connection modes.
const (
	PrinterModeNetwork = "network"
	PrinterModeUSB     = "usb"
)

var ErrProfileNotFound = errors.New("printer profile not found")

// PrinterSettings describes how to reach one printer.
type PrinterSettings struct {
	Mode   string `json:"mode"`
	Host   string `json:"host"`
	Port   int    `json:"port"`
	Device string `json:"device,omitempty"`
	USBVID int    `json:"usb_vid"`
	USBPID int    `json:"usb_pid"`
}

// Profile groups the printers of one register.
type Profile struct {
	Store    string          `json:"store"`
	Register string          `json:"register"`
	Receipt  PrinterSettings `json:"receipt"`
	Label    PrinterSettings `json:"label"`
}

// PrinterSettingsFile is the on-disk layout of the profile file.
type PrinterSettingsFile struct {
	ActiveProfile string             `json:"active_profile"`
	Profiles      map[string]Profile `json:"profiles"`
}

// DefaultPrinterSettings is used for any key missing from the file.
func DefaultPrinterSettings() PrinterSettingsFile {
	return PrinterSettingsFile{
		ActiveProfile: "Default",
		Profiles: map[string]Profile{
			"Default": {
				Store:    "Main Store",
				Register: "TILL-1",
				Receipt:  PrinterSettings{Mode: PrinterModeNetwork, Host: "192.168.1.50", Port: 9100},
				Label:    PrinterSettings{Mode: PrinterModeNetwork, Host: "192.168.1.51", Port: 9100},
			},
		},
	}
}

// ProfileStore reads and writes the printer profile file.
type ProfileStore struct {
	path string
	mu   sync.Mutex
}

func NewProfileStore(path string) *ProfileStore {
	return &ProfileStore{path: path}
}

// Load returns the file deep-merged over the defaults. A missing file yields
// the defaults. A malformed file yields the defaults and an error.
func (s *ProfileStore) Load() (PrinterSettingsFile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load()
}

func (s *ProfileStore) load() (PrinterSettingsFile, error) {
	defaults := DefaultPrinterSettings()

	raw, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return defaults, nil
	}
	if err != nil {
		return defaults, fmt.Errorf("failed to read printer profiles: %w", err)
	}

	var stored map[string]any
	if err := json.Unmarshal(raw, &stored); err != nil {
		return defaults, fmt.Errorf("failed to parse printer profiles %s: %w", s.path, err)
	}

	base, err := toMap(defaults)
	if err != nil {
		return defaults, err
	}

	merged, err := json.Marshal(deepMerge(base, stored))
	if err != nil {
		return defaults, fmt.Errorf("failed to encode printer profiles: %w", err)
	}

	var out PrinterSettingsFile
	if err := json.Unmarshal(merged, &out); err != nil {
		return defaults, fmt.Errorf("failed to decode printer profiles: %w", err)
	}
	return out, nil
}

// Save writes settings atomically: a temp file in the same directory is
// renamed over the target.
func (s *ProfileStore) Save(settings PrinterSettingsFile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.save(settings)
}

func (s *ProfileStore) save(settings PrinterSettingsFile) error {
	data, err := json.MarshalIndent(settings, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode printer profiles: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".profiles-*.json")
	if err != nil {
		return fmt.Errorf("failed to write printer profiles %s: %w", s.path, err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write printer profiles %s: %w", s.path, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to sync printer profiles %s: %w", s.path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write printer profiles %s: %w", s.path, err)
	}

	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("failed to replace printer profiles %s: %w", s.path, err)
	}
	return nil
}

// Active returns the name and value of the active profile.
func (s *ProfileStore) Active() (string, Profile, error) {
	settings, err := s.Load()
	prof, ok := settings.Profiles[settings.ActiveProfile]
	if !ok {
		return settings.ActiveProfile, Profile{}, ErrProfileNotFound
	}
	return settings.ActiveProfile, prof, err
}

// SetActive switches the active profile. Unknown names are rejected.
func (s *ProfileStore) SetActive(name string) (Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	settings, err := s.load()
	if err != nil {
		return Profile{}, err
	}
	prof, ok := settings.Profiles[name]
	if !ok {
		return Profile{}, ErrProfileNotFound
	}
	settings.ActiveProfile = name
	if err := s.save(settings); err != nil {
		return Profile{}, err
	}
	return prof, nil
}

// Put creates or replaces a named profile.
func (s *ProfileStore) Put(name string, profile Profile) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	settings, err := s.load()
	if err != nil {
		return err
	}
	if settings.Profiles == nil {
		settings.Profiles = map[string]Profile{}
	}
	settings.Profiles[name] = profile
	return s.save(settings)
}

// Names lists profile names in sorted order.
func (f PrinterSettingsFile) Names() []string {
	names := make([]string, 0, len(f.Profiles))
	for name := range f.Profiles {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func toMap(v any) (map[string]any, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to encode printer defaults: %w", err)
	}
	out := map[string]any{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("failed to decode printer defaults: %w", err)
	}
	return out, nil
}

// deepMerge overlays extra onto base. Nested objects merge key by key;
// everything else in extra replaces the base value.
func deepMerge(base, extra map[string]any) map[string]any {
	out := make(map[string]any, len(base)+len(extra))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range extra {
		if em, ok := v.(map[string]any); ok {
			if bm, ok := out[k].(map[string]any); ok {
				out[k] = deepMerge(bm, em)
				continue
			}
		}
		out[k] = v
	}
	return out
}
