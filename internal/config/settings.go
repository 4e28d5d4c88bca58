package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// Hard-coded defaults used when neither a project nor the global section
// sets a key.
const (
	DefaultJobs       = 2
	DefaultSignKey    = ""
	DefaultDistMethod = DistAuto
	DefaultDebianDir  = "debian"
	DefaultHookSubdir = ""
)

var (
	DefaultConfigureArgs  = []string{"--prefix=/usr"}
	DefaultInstallCommand = []string{"sudo", "dpkg", "-i"}
	DefaultReloadCommand  = []string{"./reload"}
)

// DistMethod selects how the distributable archive is produced.
type DistMethod string

const (
	DistAuto DistMethod = "auto"
	DistMake DistMethod = "make"
	DistGit  DistMethod = "git"
)

// Overrides holds the per-project keys. A nil field means "not set here".
type Overrides struct {
	Jobs          *int        `yaml:"jobs"`
	SignKey       *string     `yaml:"sign_key"`
	DistMethod    *DistMethod `yaml:"dist_method"`
	DebianDir     *string     `yaml:"debian_dir"`
	ConfigureArgs []string    `yaml:"configure_args"`
	HookSubdir    *string     `yaml:"build_hook_subdir"`
}

// PbuilderSettings configures the pbuilder chroot.
type PbuilderSettings struct {
	Dist         string `yaml:"dist"`
	Mirror       string `yaml:"mirror"`
	Architecture string `yaml:"architecture"`
}

// Settings is the parsed configuration file.
type Settings struct {
	Root           string               `yaml:"root"`
	Archive        string               `yaml:"archive"`
	InstallCommand []string             `yaml:"install_command"`
	ReloadCommand  []string             `yaml:"reload_command"`
	Defaults       Overrides            `yaml:"defaults"`
	Projects       map[string]Overrides `yaml:"projects"`
	Pbuilder       PbuilderSettings     `yaml:"pbuilder"`
}

// Load reads settings from path. A missing file yields empty settings,
// since every key has a default.
func Load(path string) (*Settings, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return &Settings{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML settings, rejecting unknown keys.
func Parse(data []byte) (*Settings, error) {
	var s Settings
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&s); err != nil && err != io.EOF {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := s.validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

func (s *Settings) validate() error {
	check := func(where string, o Overrides) error {
		if o.Jobs != nil && *o.Jobs < 1 {
			return fmt.Errorf("%s: jobs must be positive, got %d", where, *o.Jobs)
		}
		if o.DistMethod != nil {
			switch *o.DistMethod {
			case DistAuto, DistMake, DistGit:
			default:
				return fmt.Errorf("%s: unknown dist_method %q", where, *o.DistMethod)
			}
		}
		return nil
	}
	if err := check("defaults", s.Defaults); err != nil {
		return err
	}
	for name, o := range s.Projects {
		if err := check("projects."+name, o); err != nil {
			return err
		}
	}
	return nil
}

// lookup resolves a key: project override, then global default, then def.
func lookup[T any](s *Settings, project string, get func(Overrides) *T, def T) T {
	if s != nil {
		if o, ok := s.Projects[project]; ok {
			if v := get(o); v != nil {
				return *v
			}
		}
		if v := get(s.Defaults); v != nil {
			return *v
		}
	}
	return def
}

// Jobs is the parallelism degree passed to make and debuild.
func (s *Settings) Jobs(project string) int {
	return lookup(s, project, func(o Overrides) *int { return o.Jobs }, DefaultJobs)
}

// SignKey is the key id packages are signed with; empty disables signing.
func (s *Settings) SignKey(project string) string {
	return lookup(s, project, func(o Overrides) *string { return o.SignKey }, DefaultSignKey)
}

// DistMethod overrides how the distributable archive is made.
func (s *Settings) DistMethod(project string) DistMethod {
	return lookup(s, project, func(o Overrides) *DistMethod { return o.DistMethod }, DefaultDistMethod)
}

// DebianDir is the packaging directory path inside the code checkout.
func (s *Settings) DebianDir(project string) string {
	return lookup(s, project, func(o Overrides) *string { return o.DebianDir }, DefaultDebianDir)
}

// HookSubdir is the subdirectory of the package build tree that the
// debuild build hook copies objects into; empty disables the hook.
func (s *Settings) HookSubdir(project string) string {
	return lookup(s, project, func(o Overrides) *string { return o.HookSubdir }, DefaultHookSubdir)
}

// ConfigureArgs are passed to ./configure of autotools projects.
func (s *Settings) ConfigureArgs(project string) []string {
	get := func(o Overrides) *[]string {
		if o.ConfigureArgs == nil {
			return nil
		}
		return &o.ConfigureArgs
	}
	return lookup(s, project, get, DefaultConfigureArgs)
}

// SetDefaultJobs overrides the global jobs value, e.g. from a flag.
func (s *Settings) SetDefaultJobs(n int) {
	s.Defaults.Jobs = &n
}

// Install returns the command prefix that installs .deb files.
func (s *Settings) Install() []string {
	if len(s.InstallCommand) > 0 {
		return s.InstallCommand
	}
	return DefaultInstallCommand
}

// Reload returns the command run inside the archive after new packages land.
func (s *Settings) Reload() []string {
	if len(s.ReloadCommand) > 0 {
		return s.ReloadCommand
	}
	return DefaultReloadCommand
}
