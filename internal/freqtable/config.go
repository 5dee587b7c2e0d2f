package freqtable

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/go-logr/logr"
	"gopkg.in/yaml.v3"
	"k8s.io/utils/cpuset"
)

// TableConfig is one entry of a frequency table file. Cores are given in
// cpuset list syntax ("0-3,6"). MinFreq/MaxFreq are optional board-specific
// overrides clamping the table for the listed cores.
type TableConfig struct {
	Cores       string      `yaml:"cores"`
	Frequencies []Frequency `yaml:"frequencies"`
	MinFreq     Frequency   `yaml:"minFreq"`
	MaxFreq     Frequency   `yaml:"maxFreq"`
}

// FileConfig is the schema of a single table file.
type FileConfig struct {
	Tables []TableConfig `yaml:"tables"`
}

// Registry holds the supported-frequency table for every configured core.
// A single instance is shared by the dispatch layer and the config watcher;
// lookups and reloads may race, hence the lock.
type Registry struct {
	mu     sync.RWMutex
	tables map[uint]Table
	log    logr.Logger
}

func NewRegistry(log logr.Logger) *Registry {
	return &Registry{
		tables: make(map[uint]Table),
		log:    log,
	}
}

// Lookup resolves target for core in the requested direction.
func (r *Registry) Lookup(core uint, target Frequency, rel Relation) (Frequency, error) {
	table, ok := r.Table(core)
	if !ok {
		return 0, fmt.Errorf("%w: no table for core %d", ErrEmptyTable, core)
	}
	return table.Lookup(target, rel)
}

// Table returns the table for core, if one is configured.
func (r *Registry) Table(core uint) (Table, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	table, ok := r.tables[core]
	return table, ok
}

// Cores returns every core identifier with a configured table.
func (r *Registry) Cores() []uint {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cores := make([]uint, 0, len(r.tables))
	for core := range r.tables {
		cores = append(cores, core)
	}
	return cores
}

// SetTable installs or replaces the table for one core.
func (r *Registry) SetTable(core uint, table Table) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tables[core] = table
}

// LoadDir parses every table file in dir (freqtable-*.yaml) and replaces the
// registry contents with the parsed result. The previous contents are kept
// untouched when any file fails to parse.
func (r *Registry) LoadDir(dir string) error {
	files, err := filepath.Glob(filepath.Join(dir, "freqtable-*.yaml"))
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return fmt.Errorf("no freqtable-*.yaml files found in %s", dir)
	}

	parsed := make(map[uint]Table)
	for _, file := range files {
		if err := parseTableFile(file, parsed); err != nil {
			return err
		}
	}

	r.mu.Lock()
	r.tables = parsed
	r.mu.Unlock()
	r.log.V(4).Info("frequency tables loaded", "files", len(files), "cores", len(parsed))
	return nil
}

func parseTableFile(name string, out map[uint]Table) error {
	data, err := os.ReadFile(name)
	if err != nil {
		return fmt.Errorf("could not read table file %s: %w", name, err)
	}
	var cfg FileConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return fmt.Errorf("table file %s could not be parsed: %w", name, err)
	}
	for _, entry := range cfg.Tables {
		cores, err := cpuset.Parse(entry.Cores)
		if err != nil {
			return fmt.Errorf("core list %q in %s could not be parsed: %w", entry.Cores, name, err)
		}
		table, err := NewTable(entry.Frequencies)
		if err != nil {
			return fmt.Errorf("table for cores %q in %s: %w", entry.Cores, name, err)
		}
		if entry.MinFreq != 0 || entry.MaxFreq != 0 {
			if table, err = table.Clamp(entry.MinFreq, entry.MaxFreq); err != nil {
				return fmt.Errorf("table for cores %q in %s: %w", entry.Cores, name, err)
			}
		}
		for _, core := range cores.List() {
			out[uint(core)] = table
		}
	}
	return nil
}
