package client

import (
	"encoding/json"
	"errors"
	"os"

	"github.com/onepond/fairygate/persona"
)

// Settings is the immutable user-preference value the controller carries.
// Updates go through Controller.UpdateSettings, which replaces the whole
// value and persists it through the injected store; nothing reads ambient
// global state.
type Settings struct {
	Persona         persona.Persona   `json:"persona"`
	MaxOutputTokens int               `json:"maxOutputTokens,omitempty"`
	CustomMemory    string            `json:"customMemory,omitempty"`
	Location        *persona.Location `json:"location,omitempty"`
}

// DefaultSettings returns the settings used before any are persisted.
func DefaultSettings() Settings {
	return Settings{Persona: persona.Default}
}

// SettingsStore persists user settings. Implementations must tolerate a
// missing record by returning ErrNoSettings.
type SettingsStore interface {
	Load() (Settings, error)
	Save(Settings) error
}

// ErrNoSettings means no settings have been persisted yet.
var ErrNoSettings = errors.New("no settings persisted")

// FileSettingsStore keeps settings as JSON in a single file.
type FileSettingsStore struct {
	Path string
}

func (s *FileSettingsStore) Load() (Settings, error) {
	data, err := os.ReadFile(s.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return Settings{}, ErrNoSettings
		}
		return Settings{}, err
	}
	var settings Settings
	if err := json.Unmarshal(data, &settings); err != nil {
		return Settings{}, err
	}
	return settings, nil
}

func (s *FileSettingsStore) Save(settings Settings) error {
	data, err := json.MarshalIndent(settings, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(s.Path, data, 0644)
}
