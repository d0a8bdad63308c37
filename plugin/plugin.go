package plugin

import (
	stderrors "errors"
	"io"
	"strings"

	"github.com/jmgilman/go/classpath"
)

// Level is the severity of a descriptor Problem.
type Level int

const (
	// LevelWarning problems are recorded on the Plugin.
	LevelWarning Level = iota
	// LevelError problems make the plugin invalid.
	LevelError
)

// String returns a string representation of the Level.
func (l Level) String() string {
	if l == LevelError {
		return "error"
	}
	return "warning"
}

// Problem is one finding of descriptor validation.
type Problem struct {
	Level   Level
	Message string
}

// Vendor identifies who publishes the plugin.
type Vendor struct {
	Name  string
	Email string
	URL   string
}

// Dependency is a <depends> declaration.
type Dependency struct {
	ID         string
	Optional   bool
	ConfigFile string
}

// IsModule reports whether the dependency is on an IDE module rather than
// another plugin.
func (d Dependency) IsModule() bool {
	return strings.HasPrefix(d.ID, modulePrefix)
}

const modulePrefix = "com.intellij.modules."

// Plugin is a fully built plugin: its descriptor plus a resolver over its
// classes.
type Plugin struct {
	ID           string
	Name         string
	Version      string
	Vendor       Vendor
	Description  string
	ChangeNotes  string
	SinceBuild   BuildNumber
	UntilBuild   BuildNumber
	Dependencies []Dependency
	Modules      []string

	// OriginalFile is the path the plugin was built from.
	OriginalFile string
	// Classes resolves the classes shipped with the plugin.
	Classes classpath.Resolver
	// Warnings holds the non-fatal descriptor problems.
	Warnings []Problem

	closers []io.Closer
}

// String returns "id:version".
func (p *Plugin) String() string {
	return p.ID + ":" + p.Version
}

// IsCompatibleWith reports whether build lies within the plugin's
// since/until range. An empty until-build is unbounded.
func (p *Plugin) IsCompatibleWith(build BuildNumber) bool {
	if !p.SinceBuild.IsZero() && p.SinceBuild.Compare(build) > 0 {
		return false
	}
	if !p.UntilBuild.IsZero() && build.Compare(p.UntilBuild) > 0 {
		return false
	}
	return true
}

// Close releases the archives opened for the plugin's classes.
func (p *Plugin) Close() error {
	var errs []error
	for _, c := range p.closers {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	p.closers = nil
	return stderrors.Join(errs...)
}
