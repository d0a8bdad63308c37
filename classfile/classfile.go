// Package classfile models parsed JVM class files.
//
// The package defines the ClassFile value handed out by class resolvers and
// the Parser collaborator that turns raw class-file bytes into one. The
// default parser reads the structural parts of the format (constant pool,
// access flags, class hierarchy, member signatures) and skips attribute
// payloads such as bytecode.
package classfile

import (
	"io"
	"strings"

	"github.com/opencontainers/go-digest"
)

// Suffix is the file extension carried by class-file entries.
const Suffix = ".class"

// AccessFlags is the access_flags bitmask of a class or member.
type AccessFlags uint16

// Access flag bits from the class-file format.
const (
	AccPublic     AccessFlags = 0x0001
	AccPrivate    AccessFlags = 0x0002
	AccProtected  AccessFlags = 0x0004
	AccStatic     AccessFlags = 0x0008
	AccFinal      AccessFlags = 0x0010
	AccSuper      AccessFlags = 0x0020
	AccVolatile   AccessFlags = 0x0040
	AccTransient  AccessFlags = 0x0080
	AccNative     AccessFlags = 0x0100
	AccInterface  AccessFlags = 0x0200
	AccAbstract   AccessFlags = 0x0400
	AccStrict     AccessFlags = 0x0800
	AccSynthetic  AccessFlags = 0x1000
	AccAnnotation AccessFlags = 0x2000
	AccEnum       AccessFlags = 0x4000
	AccModule     AccessFlags = 0x8000
)

// Has reports whether all bits of flag are set.
func (a AccessFlags) Has(flag AccessFlags) bool {
	return a&flag == flag
}

// Member is a field or method declaration.
type Member struct {
	Access     AccessFlags
	Name       string
	Descriptor string
}

// ClassFile is the parsed structure of one class. It is immutable once
// built; parsing the same bytes twice yields equal values.
type ClassFile struct {
	// Name is the internal (slash separated) class name, e.g. "com/foo/Bar".
	Name string
	// SuperName is the internal name of the super class. Empty for
	// java/lang/Object and module-info.
	SuperName    string
	Interfaces   []string
	Access       AccessFlags
	MajorVersion uint16
	MinorVersion uint16
	Fields       []Member
	Methods      []Member
	// Digest identifies the bytes the class was parsed from.
	Digest digest.Digest
}

// IsInterface reports whether the class is an interface.
func (c *ClassFile) IsInterface() bool { return c.Access.Has(AccInterface) }

// IsAbstract reports whether the class is abstract.
func (c *ClassFile) IsAbstract() bool { return c.Access.Has(AccAbstract) }

// Package returns the package part of the class name, or "" for the
// default package.
func (c *ClassFile) Package() string {
	return PackageOf(c.Name)
}

// FindMethod returns the method with the given name and descriptor.
func (c *ClassFile) FindMethod(name, descriptor string) (Member, bool) {
	for _, m := range c.Methods {
		if m.Name == name && m.Descriptor == descriptor {
			return m, true
		}
	}
	return Member{}, false
}

// FindField returns the field with the given name.
func (c *ClassFile) FindField(name string) (Member, bool) {
	for _, f := range c.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Member{}, false
}

// PackageOf returns the package of an internal class name.
func PackageOf(className string) string {
	if i := strings.LastIndexByte(className, '/'); i >= 0 {
		return className[:i]
	}
	return ""
}

// Parser turns the bytes of one class into a ClassFile.
// Implementations must be deterministic and must not retain r.
type Parser interface {
	Parse(name string, r io.Reader) (*ClassFile, error)
}

// ParserFunc adapts a function to the Parser interface.
type ParserFunc func(name string, r io.Reader) (*ClassFile, error)

// Parse calls f(name, r).
func (f ParserFunc) Parse(name string, r io.Reader) (*ClassFile, error) {
	return f(name, r)
}

// DefaultParser is the Parser used when none is configured.
var DefaultParser Parser = ParserFunc(Parse)
