package plugin

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/jmgilman/go/errors"
)

// DescriptorPath is where a plugin jar keeps its descriptor.
const DescriptorPath = "META-INF/plugin.xml"

// Descriptor field limits.
const (
	MaxNameLength         = 64
	MaxVersionLength      = 64
	MaxPropertyLength     = 255
	MaxLongPropertyLength = 65535
)

const defaultPluginID = "com.your.company.unique.plugin.id"

var (
	defaultTemplateNames = []string{"Plugin display name here", "My Framework Support", "Template", "Demo"}

	defaultTemplateDescriptions = []string{
		"Enter short description for your plugin here",
		"most HTML tags may be used",
		"example.com/my-framework",
	}

	restrictedNameWords = []string{
		"plugin", "JetBrains", "IDEA", "PyCharm", "CLion", "AppCode", "DataGrip", "Fleet", "GoLand",
		"PhpStorm", "WebStorm", "Rider", "ReSharper", "TeamCity", "YouTrack", "RubyMine", "IntelliJ",
	}

	htmlTag          = regexp.MustCompile(`<[^>]*>`)
	latinDescription = regexp.MustCompile(`[\w\s\p{P}\x{2013}\x{2014}]{40,}`)
	lineBreakInProp  = regexp.MustCompile(`\S\s*\n\s*\S`)
)

type descriptorXML struct {
	XMLName     xml.Name        `xml:"idea-plugin"`
	ID          *string         `xml:"id"`
	Name        *string         `xml:"name"`
	Version     *string         `xml:"version"`
	Vendor      *vendorXML      `xml:"vendor"`
	Description *string         `xml:"description"`
	ChangeNotes *string         `xml:"change-notes"`
	IdeaVersion *ideaVersionXML `xml:"idea-version"`
	Depends     []dependsXML    `xml:"depends"`
	Modules     []moduleXML     `xml:"module"`
}

type vendorXML struct {
	Name  string `xml:",chardata"`
	Email string `xml:"email,attr"`
	URL   string `xml:"url,attr"`
}

type ideaVersionXML struct {
	SinceBuild *string `xml:"since-build,attr"`
	UntilBuild *string `xml:"until-build,attr"`
}

type dependsXML struct {
	ID         string  `xml:",chardata"`
	Optional   *string `xml:"optional,attr"`
	ConfigFile *string `xml:"config-file,attr"`
}

type moduleXML struct {
	Value string `xml:"value,attr"`
}

// ParseDescriptor decodes and validates a plugin.xml document. Error level
// problems are returned as a CodePluginInvalid error; warnings are recorded
// on the returned Plugin.
func ParseDescriptor(path string, data []byte) (*Plugin, error) {
	var doc descriptorXML
	decoder := xml.NewDecoder(bytes.NewReader(data))
	if err := decoder.Decode(&doc); err != nil {
		return nil, errors.WrapWithContext(err, CodePluginInvalid, "failed to parse plugin descriptor",
			map[string]interface{}{"plugin": path})
	}

	v := &validator{}
	p := v.build(&doc)
	if v.hasErrors() {
		return nil, invalidPlugin(path, v.problems)
	}

	p.OriginalFile = path
	p.Warnings = v.warnings()
	return p, nil
}

type validator struct {
	problems []Problem
}

func (v *validator) errorf(format string, args ...any) {
	v.problems = append(v.problems, Problem{Level: LevelError, Message: fmt.Sprintf(format, args...)})
}

func (v *validator) warnf(format string, args ...any) {
	v.problems = append(v.problems, Problem{Level: LevelWarning, Message: fmt.Sprintf(format, args...)})
}

func (v *validator) hasErrors() bool {
	for _, p := range v.problems {
		if p.Level == LevelError {
			return true
		}
	}
	return false
}

func (v *validator) warnings() []Problem {
	var out []Problem
	for _, p := range v.problems {
		if p.Level == LevelWarning {
			out = append(out, p)
		}
	}
	return out
}

func (v *validator) build(doc *descriptorXML) *Plugin {
	p := &Plugin{
		Name:        trimmed(doc.Name),
		Version:     trimmed(doc.Version),
		Description: trimmed(doc.Description),
		ChangeNotes: trimmed(doc.ChangeNotes),
	}

	v.validateName(doc.Name)
	v.validateID(doc.ID)
	p.ID = trimmed(doc.ID)
	if p.ID == "" {
		p.ID = p.Name
	}
	v.validateVersion(doc.Version)
	v.validateDescription(doc.Description)
	v.validateChangeNotes(p.ChangeNotes)

	if doc.Vendor != nil {
		p.Vendor = Vendor{
			Name:  strings.TrimSpace(doc.Vendor.Name),
			Email: strings.TrimSpace(doc.Vendor.Email),
			URL:   strings.TrimSpace(doc.Vendor.URL),
		}
	}
	v.validateVendor(doc.Vendor, p.Vendor)

	p.SinceBuild, p.UntilBuild = v.validateIdeaVersion(doc.IdeaVersion)
	p.Dependencies = v.validateDependencies(doc.Depends)

	for _, m := range doc.Modules {
		value := strings.TrimSpace(m.Value)
		if value == "" {
			v.errorf("invalid <module> declaration: value must not be empty")
			continue
		}
		p.Modules = append(p.Modules, value)
	}

	return p
}

func (v *validator) validateID(id *string) {
	if id == nil {
		return
	}
	value := strings.TrimSpace(*id)
	switch {
	case value == "":
		v.errorf("property <id> is not specified")
	case value == defaultPluginID:
		v.errorf("property <id> has the default value %q", value)
	default:
		v.validateLength("id", value, MaxPropertyLength)
		v.validateNewlines("id", *id)
	}
}

func (v *validator) validateName(name *string) {
	value := trimmed(name)
	if value == "" {
		v.errorf("property <name> is not specified")
		return
	}
	for _, template := range defaultTemplateNames {
		if strings.EqualFold(template, value) {
			v.errorf("property <name> has the default value %q", value)
			return
		}
	}
	lower := strings.ToLower(value)
	for _, word := range restrictedNameWords {
		if strings.Contains(lower, strings.ToLower(word)) {
			v.warnf("plugin name should not contain the word %q", word)
			break
		}
	}
	v.validateLength("name", value, MaxNameLength)
	v.validateNewlines("name", *name)
}

func (v *validator) validateVersion(version *string) {
	value := trimmed(version)
	if value == "" {
		v.errorf("property <version> is not specified")
		return
	}
	v.validateLength("version", value, MaxVersionLength)
}

func (v *validator) validateDescription(description *string) {
	value := trimmed(description)
	if value == "" {
		v.errorf("property <description> is not specified")
		return
	}
	v.validateLength("description", value, MaxLongPropertyLength)

	text := strings.Join(strings.Fields(htmlTag.ReplaceAllString(value, " ")), " ")
	for _, template := range defaultTemplateDescriptions {
		if strings.Contains(text, template) {
			v.errorf("property <description> has the default value %q", text)
			return
		}
	}
	if !latinDescription.MatchString(text) {
		v.warnf("description is too short or not written in English (at least 40 latin characters expected)")
	}
}

func (v *validator) validateChangeNotes(notes string) {
	if notes == "" {
		return
	}
	if strings.Contains(notes, "Add change notes here") || strings.Contains(notes, "most HTML tags may be used") {
		v.warnf("<change-notes> contain the default template text")
	}
	v.validateLength("<change-notes>", notes, MaxLongPropertyLength)
}

func (v *validator) validateVendor(raw *vendorXML, vendor Vendor) {
	if raw == nil || vendor.Name == "" {
		v.errorf("property <vendor> is not specified")
		return
	}
	if vendor.Name == "YourCompany" {
		v.warnf("property <vendor> has the default value %q", vendor.Name)
	}
	v.validateLength("vendor", vendor.Name, MaxPropertyLength)
	if vendor.URL == "https://www.yourcompany.com" {
		v.warnf("vendor url has the default value %q", vendor.URL)
	}
	v.validateLength("vendor url", vendor.URL, MaxPropertyLength)
	if vendor.Email == "support@yourcompany.com" {
		v.warnf("vendor email has the default value %q", vendor.Email)
	}
	v.validateLength("vendor email", vendor.Email, MaxPropertyLength)
}

func (v *validator) validateIdeaVersion(raw *ideaVersionXML) (since, until BuildNumber) {
	if raw == nil {
		v.errorf("property <idea-version> is not specified")
		return since, until
	}

	if raw.SinceBuild == nil || strings.TrimSpace(*raw.SinceBuild) == "" {
		v.errorf("<idea-version> attribute since-build is not specified")
	} else {
		value := strings.TrimSpace(*raw.SinceBuild)
		parsed, err := ParseBuildNumber(value)
		switch {
		case err != nil:
			v.errorf("invalid since-build %q: %v", value, err)
		default:
			if parsed.Baseline() < 130 && strings.HasSuffix(value, ".*") {
				v.errorf("invalid since-build %q: wildcards are not allowed before build 130", value)
			}
			if parsed.Baseline() > 999 {
				v.errorf("since-build %q has a baseline above 999", value)
			}
			if parsed.ProductCode != "" {
				v.errorf("since-build %q must not carry a product code", value)
			}
			since = parsed
		}
	}

	if raw.UntilBuild != nil && strings.TrimSpace(*raw.UntilBuild) != "" {
		value := strings.TrimSpace(*raw.UntilBuild)
		parsed, err := ParseBuildNumber(value)
		switch {
		case err != nil:
			v.errorf("invalid until-build %q: %v", value, err)
		default:
			if parsed.Baseline() > 999 {
				v.errorf("until-build %q has a baseline above 999", value)
			} else if parsed.Baseline() > 400 {
				v.warnf("until-build %q is suspiciously high", value)
			}
			if parsed.ProductCode != "" {
				v.errorf("until-build %q must not carry a product code", value)
			}
			until = parsed
		}
	}

	if !since.IsZero() && !until.IsZero() && since.Compare(until) > 0 {
		v.errorf("since-build %s is greater than until-build %s", since, until)
	}
	return since, until
}

func (v *validator) validateDependencies(raw []dependsXML) []Dependency {
	var deps []Dependency
	seen := make(map[string]int)
	modules := 0

	for _, d := range raw {
		id := strings.TrimSpace(d.ID)
		if id == "" || strings.Contains(id, "\n") {
			v.errorf("invalid dependency id %q", d.ID)
			continue
		}

		dep := Dependency{ID: id}
		if d.ConfigFile != nil {
			dep.ConfigFile = strings.TrimSpace(*d.ConfigFile)
		}
		if d.Optional != nil {
			switch strings.TrimSpace(*d.Optional) {
			case "true":
				dep.Optional = true
				if d.ConfigFile == nil {
					v.warnf("optional dependency %q does not specify config-file", id)
				}
			case "false":
				v.warnf("dependency %q declares optional=\"false\", which is the default", id)
			default:
				v.errorf("dependency %q has a non-boolean optional attribute", id)
			}
		}

		seen[id]++
		if seen[id] == 2 {
			v.warnf("dependency %q is declared more than once", id)
		}
		if dep.IsModule() {
			modules++
		}
		deps = append(deps, dep)
	}

	if modules == 0 {
		v.warnf("plugin does not declare any com.intellij.modules dependency and is only compatible with IntelliJ IDEA")
	}
	return deps
}

func (v *validator) validateLength(property, value string, limit int) {
	if n := utf8.RuneCountInString(value); n > limit {
		v.errorf("value of %s is too long: %d characters, at most %d allowed", property, n, limit)
	}
}

func (v *validator) validateNewlines(property, raw string) {
	if lineBreakInProp.MatchString(raw) {
		v.errorf("value of %s must not contain newlines", property)
	}
}

func trimmed(s *string) string {
	if s == nil {
		return ""
	}
	return strings.TrimSpace(*s)
}
