// Package calendar resolves named working-hours calendars used by SLA
// duration calculations. The core treats this purely as an injected lookup;
// calendar persistence is a deployment concern.
package calendar

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/epnlabs/sitrep/pkg/models"
)

// Provider looks up a working-hours calendar by name. An empty timezone
// keeps the calendar's own timezone.
type Provider interface {
	Calendar(name, timezone string) (*models.Calendar, error)
}

// FileProvider loads calendar definitions from JSON files named
// <name>.json under a root directory, falling back to the built-in default
// calendar when the default is requested but not defined on disk.
type FileProvider struct {
	root   string
	logger *slog.Logger
}

// NewFileProvider creates a provider rooted at the given directory.
func NewFileProvider(root string, logger *slog.Logger) *FileProvider {
	return &FileProvider{root: root, logger: logger}
}

func (p *FileProvider) Calendar(name, timezone string) (*models.Calendar, error) {
	if name == "" {
		name = models.DefaultCalendarName
	}

	loaded, err := p.load(name)
	if err != nil {
		return nil, err
	}

	if loaded == nil {
		if name != models.DefaultCalendarName {
			return nil, fmt.Errorf("calendar %q is not defined", name)
		}

		loaded = models.DefaultCalendar()
	}

	if timezone != "" {
		loaded.Timezone = timezone
	}

	p.logger.Debug("Resolved calendar", "name", name, "timezone", loaded.Timezone)

	return loaded, nil
}

func (p *FileProvider) load(name string) (*models.Calendar, error) {
	if p.root == "" {
		return nil, nil
	}

	path := filepath.Join(p.root, name+".json")

	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}

	if err != nil {
		return nil, fmt.Errorf("failed to read calendar %q: %w", name, err)
	}

	var loaded models.Calendar

	err = json.Unmarshal(raw, &loaded)
	if err != nil {
		return nil, fmt.Errorf("failed to parse calendar %q: %w", name, err)
	}

	if loaded.Name == "" {
		loaded.Name = name
	}

	return &loaded, nil
}
