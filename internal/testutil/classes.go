// Package testutil builds class-file, jar and plugin fixtures for tests.
package testutil

import (
	"bytes"
	"encoding/binary"

	"github.com/jmgilman/go/classpath/classfile"
)

// DefaultMajorVersion is the class-file version written when a ClassSpec
// leaves MajorVersion unset (Java 8).
const DefaultMajorVersion = 52

// ObjectClass is the default super class.
const ObjectClass = "java/lang/Object"

// ClassSpec describes a class to encode. Unset fields get usable defaults.
type ClassSpec struct {
	Name         string
	Super        string
	NoSuper      bool
	Interfaces   []string
	Access       classfile.AccessFlags
	MajorVersion uint16
	Fields       []classfile.Member
	Methods      []classfile.Member
	// Longs adds eight-byte constants to the pool.
	Longs []int64
}

// ClassBytes encodes spec as a structurally valid class file.
func ClassBytes(spec ClassSpec) []byte {
	if spec.Access == 0 {
		spec.Access = classfile.AccPublic | classfile.AccSuper
	}
	if spec.MajorVersion == 0 {
		spec.MajorVersion = DefaultMajorVersion
	}
	if spec.Super == "" && !spec.NoSuper {
		spec.Super = ObjectClass
	}

	p := newPool()
	for _, v := range spec.Longs {
		p.long(v)
	}
	this := p.class(spec.Name)
	var super uint16
	if spec.Super != "" {
		super = p.class(spec.Super)
	}
	interfaces := make([]uint16, len(spec.Interfaces))
	for i, name := range spec.Interfaces {
		interfaces[i] = p.class(name)
	}
	code := p.utf8("Code")
	fields := p.members(spec.Fields)
	methods := p.members(spec.Methods)
	source := p.utf8("SourceFile")
	sourceName := p.utf8("Generated.java")

	var b bytes.Buffer
	put := func(v any) { _ = binary.Write(&b, binary.BigEndian, v) }

	put(classfile.Magic)
	put(uint16(0))
	put(spec.MajorVersion)
	put(p.count)
	b.Write(p.buf.Bytes())

	put(uint16(spec.Access))
	put(this)
	put(super)
	put(uint16(len(interfaces)))
	for _, idx := range interfaces {
		put(idx)
	}

	put(uint16(len(fields)))
	for _, f := range fields {
		put(uint16(f.access))
		put(f.name)
		put(f.descriptor)
		put(uint16(0))
	}

	put(uint16(len(methods)))
	for _, m := range methods {
		put(uint16(m.access))
		put(m.name)
		put(m.descriptor)
		// One Code attribute with an opaque body.
		put(uint16(1))
		put(code)
		put(uint32(4))
		b.Write([]byte{0, 1, 0, 1})
	}

	put(uint16(1))
	put(source)
	put(uint32(2))
	put(sourceName)

	return b.Bytes()
}

// SimpleClass encodes a public class with a default constructor.
func SimpleClass(name string) []byte {
	return ClassBytes(ClassSpec{
		Name:    name,
		Methods: []classfile.Member{{Access: classfile.AccPublic, Name: "<init>", Descriptor: "()V"}},
	})
}

type memberRef struct {
	access     classfile.AccessFlags
	name       uint16
	descriptor uint16
}

type pool struct {
	buf   bytes.Buffer
	count uint16
	utf8s map[string]uint16
	refs  map[string]uint16
}

func newPool() *pool {
	return &pool{count: 1, utf8s: map[string]uint16{}, refs: map[string]uint16{}}
}

func (p *pool) utf8(s string) uint16 {
	if idx, ok := p.utf8s[s]; ok {
		return idx
	}
	p.buf.WriteByte(1)
	_ = binary.Write(&p.buf, binary.BigEndian, uint16(len(s)))
	p.buf.WriteString(s)
	idx := p.count
	p.count++
	p.utf8s[s] = idx
	return idx
}

func (p *pool) class(name string) uint16 {
	if idx, ok := p.refs[name]; ok {
		return idx
	}
	nameIdx := p.utf8(name)
	p.buf.WriteByte(7)
	_ = binary.Write(&p.buf, binary.BigEndian, nameIdx)
	idx := p.count
	p.count++
	p.refs[name] = idx
	return idx
}

func (p *pool) long(v int64) {
	p.buf.WriteByte(5)
	_ = binary.Write(&p.buf, binary.BigEndian, v)
	p.count += 2
}

func (p *pool) members(members []classfile.Member) []memberRef {
	refs := make([]memberRef, len(members))
	for i, m := range members {
		refs[i] = memberRef{access: m.Access, name: p.utf8(m.Name), descriptor: p.utf8(m.Descriptor)}
	}
	return refs
}
