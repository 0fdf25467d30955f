package environment

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jfarrimo/frycook/pkg/errdefs"
	"gopkg.in/yaml.v3"
)

// Settings configures the engine itself: where packages live, where scratch
// output goes, which files to skip and how to reach remote hosts.
type Settings struct {
	// PackageDir is the root of the local package tree.
	PackageDir string `yaml:"package_dir" validate:"required"`

	// ModuleDir receives rendered output from the render command.
	ModuleDir string `yaml:"module_dir"`

	// TmpDir is scratch space for git checkouts.
	TmpDir string `yaml:"tmp_dir"`

	// FileIgnores is a regular expression matched against relative file names.
	FileIgnores string `yaml:"file_ignores"`

	// RemoteUser is the account used for remote sessions.
	RemoteUser string `yaml:"remote_user" validate:"required"`

	// RecipeDir holds Starlark recipe scripts.
	RecipeDir string `yaml:"recipe_dir"`

	// JournalPath is the SQLite run journal. Empty disables the journal.
	JournalPath string `yaml:"journal_path"`

	// MetricsPath receives Prometheus text-format metrics after a run.
	MetricsPath string `yaml:"metrics_path"`

	SSH     SSHSettings     `yaml:"ssh"`
	Tracing TracingSettings `yaml:"tracing"`

	raw    map[string]interface{}
	ignore *regexp.Regexp
}

// SSHSettings configures the SSH transport.
type SSHSettings struct {
	Port                  int           `yaml:"port" validate:"min=1,max=65535"`
	KeyPath               string        `yaml:"key_path"`
	KnownHostsPath        string        `yaml:"known_hosts_path"`
	StrictHostKeyChecking bool          `yaml:"strict_host_key_checking"`
	ConnectTimeout        time.Duration `yaml:"connect_timeout" validate:"gt=0"`
	CommandTimeout        time.Duration `yaml:"command_timeout" validate:"gt=0"`
	SudoPassword          string        `yaml:"sudo_password"`
}

// TracingSettings configures span export.
type TracingSettings struct {
	Exporter string `yaml:"exporter" validate:"oneof=none stdout otlp"`
	Endpoint string `yaml:"endpoint" validate:"required_if=Exporter otlp"`
}

// LoadSettings reads, expands and validates the settings document at path.
func LoadSettings(path string) (*Settings, error) {
	doc, err := loadDocument(path, nil)
	if err != nil {
		return nil, err
	}
	doc = ExpandHome(doc, homeDir())

	s, err := decodeSettings(doc)
	if err != nil {
		return nil, errdefs.NewConfigLoadError(path, err).WithStage("decode")
	}
	if err := s.Validate(); err != nil {
		return nil, errdefs.NewConfigLoadError(path, err).WithStage("validate")
	}
	return s, nil
}

// NewSettings builds settings from an already expanded document, applying
// defaults and validating the result.
func NewSettings(doc map[string]interface{}) (*Settings, error) {
	s, err := decodeSettings(doc)
	if err != nil {
		return nil, err
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

func decodeSettings(doc map[string]interface{}) (*Settings, error) {
	data, err := yaml.Marshal(doc)
	if err != nil {
		return nil, err
	}
	s := &Settings{}
	if err := yaml.Unmarshal(data, s); err != nil {
		return nil, err
	}
	s.raw = MergeMaps(nil, doc)
	s.ApplyDefaults()
	return s, nil
}

// ApplyDefaults fills unset fields with their defaults.
func (s *Settings) ApplyDefaults() {
	if s.RemoteUser == "" {
		s.RemoteUser = "root"
	}
	if s.TmpDir == "" {
		s.TmpDir = os.TempDir()
	}
	if s.ModuleDir == "" {
		s.ModuleDir = filepath.Join(s.TmpDir, "frycook-modules")
	}
	if s.SSH.Port == 0 {
		s.SSH.Port = 22
	}
	if s.SSH.ConnectTimeout == 0 {
		s.SSH.ConnectTimeout = 30 * time.Second
	}
	if s.SSH.CommandTimeout == 0 {
		s.SSH.CommandTimeout = 5 * time.Minute
	}
	if s.Tracing.Exporter == "" {
		s.Tracing.Exporter = "none"
	}
}

// Validate checks struct constraints and compiles the ignore pattern.
func (s *Settings) Validate() error {
	if err := validator.New().Struct(s); err != nil {
		return fmt.Errorf("invalid settings: %w", err)
	}
	s.ignore = nil
	if s.FileIgnores != "" {
		re, err := regexp.Compile(s.FileIgnores)
		if err != nil {
			return fmt.Errorf("invalid file_ignores pattern: %w", err)
		}
		s.ignore = re
	}
	return nil
}

// IgnoreFile reports whether the relative file name matches file_ignores.
func (s *Settings) IgnoreFile(rel string) bool {
	return s.ignore != nil && s.ignore.MatchString(rel)
}

// IgnorePattern returns the compiled file_ignores pattern, or nil.
func (s *Settings) IgnorePattern() *regexp.Regexp {
	return s.ignore
}

// Raw returns a copy of the full settings document, including keys the
// engine itself does not interpret. Recipes may read their own keys here.
func (s *Settings) Raw() map[string]interface{} {
	return MergeMaps(nil, s.raw)
}
