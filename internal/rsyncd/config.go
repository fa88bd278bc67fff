// Package rsyncd implements the daemon collaborator: the TCP-facing,
// rsyncd.conf-driven side of a connection. It drives pkg/protocol's
// ConnectionSession through the greeting/module-select/authenticate/
// transfer/close lifecycle and supplies the module listing and
// challenge/response authentication primitives that the core consumes
// but does not define.
package rsyncd

import (
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// ModuleConfig describes one exported module from a daemon's module
// file (the Go-native analogue of rsyncd.conf's [module] sections).
type ModuleConfig struct {
	// Name is the module's selectable name (the "module" in
	// rsync://host/module/path).
	Name string `yaml:"name"`
	// Path is the module's root directory on the daemon's filesystem.
	Path string `yaml:"path"`
	// Comment is shown alongside Name in a module listing.
	Comment string `yaml:"comment"`
	// ReadOnly rejects any client-initiated write operation against
	// the module.
	ReadOnly bool `yaml:"read_only"`
	// Secrets maps an authorized username to its plaintext secret. A
	// module with an empty map requires no authentication.
	Secrets map[string]string `yaml:"secrets"`
	// Uid and Gid, if set, are the credentials file operations against
	// the module should run as; empty means "do not change identity".
	UID string `yaml:"uid"`
	GID string `yaml:"gid"`
}

// RequiresAuth reports whether the module has at least one configured
// secret and so must challenge a connecting client.
func (m ModuleConfig) RequiresAuth() bool {
	return len(m.Secrets) > 0
}

// Config is a parsed module file: the full set of modules a daemon
// exports, in the order the module file lists them.
type Config struct {
	Modules []ModuleConfig `yaml:"modules"`
}

// Lookup returns the named module and true, or a zero value and false
// if no module by that name is configured.
func (c Config) Lookup(name string) (ModuleConfig, bool) {
	for _, module := range c.Modules {
		if module.Name == name {
			return module, true
		}
	}
	return ModuleConfig{}, false
}

// LoadConfig parses a daemon module file from path.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, errors.Wrap(err, "unable to read daemon module file")
	}
	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return Config{}, errors.Wrap(err, "unable to parse daemon module file")
	}
	for _, module := range config.Modules {
		if module.Name == "" {
			return Config{}, errors.New("daemon module file contains a module with no name")
		}
		if module.Path == "" {
			return Config{}, errors.Errorf("module %q has no path", module.Name)
		}
	}
	return config, nil
}
