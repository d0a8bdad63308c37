package testutil

import (
	"fmt"
	"strings"
	"testing"
)

// Descriptor describes a plugin.xml for tests. Empty fields are omitted
// from the generated document.
type Descriptor struct {
	ID          string
	Name        string
	Version     string
	Vendor      string
	Description string
	SinceBuild  string
	UntilBuild  string
	Depends     []string
	// Extra is appended verbatim inside <idea-plugin>.
	Extra string
}

// ValidDescriptor returns a descriptor that passes validation without
// warnings.
func ValidDescriptor(id string) Descriptor {
	return Descriptor{
		ID:          id,
		Name:        "Sample Tool Window",
		Version:     "1.0.0",
		Vendor:      "Acme",
		Description: "Adds a sample tool window that lists the project's open files and recent commits.",
		SinceBuild:  "233",
		UntilBuild:  "241.*",
		Depends:     []string{"com.intellij.modules.platform"},
	}
}

// XML renders the descriptor.
func (d Descriptor) XML() []byte {
	var b strings.Builder
	b.WriteString("<idea-plugin>\n")
	element(&b, "id", d.ID)
	element(&b, "name", d.Name)
	element(&b, "version", d.Version)
	element(&b, "vendor", d.Vendor)
	if d.Description != "" {
		fmt.Fprintf(&b, "  <description><![CDATA[%s]]></description>\n", d.Description)
	}
	if d.SinceBuild != "" || d.UntilBuild != "" {
		b.WriteString("  <idea-version")
		if d.SinceBuild != "" {
			fmt.Fprintf(&b, " since-build=%q", d.SinceBuild)
		}
		if d.UntilBuild != "" {
			fmt.Fprintf(&b, " until-build=%q", d.UntilBuild)
		}
		b.WriteString("/>\n")
	}
	for _, dep := range d.Depends {
		element(&b, "depends", dep)
	}
	b.WriteString(d.Extra)
	b.WriteString("</idea-plugin>\n")
	return []byte(b.String())
}

// PluginJar builds a plugin jar holding the descriptor and a class for
// every name.
func (d Descriptor) PluginJar(t testing.TB, classes ...string) []byte {
	t.Helper()

	entries := Entries{"META-INF/plugin.xml": d.XML()}
	for _, name := range classes {
		entries[name+".class"] = SimpleClass(name)
	}
	return ZipBytes(t, entries)
}

func element(b *strings.Builder, name, value string) {
	if value != "" {
		fmt.Fprintf(b, "  <%s>%s</%s>\n", name, value, name)
	}
}
