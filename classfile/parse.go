package classfile

import (
	_ "crypto/sha256" // registers the canonical digest algorithm
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	platformerrors "github.com/jmgilman/go/errors"
	"github.com/opencontainers/go-digest"
)

// CodeParseFailed is the error code for bytes that could not be parsed
// into a ClassFile.
const CodeParseFailed platformerrors.ErrorCode = "CLASS_PARSE_FAILED"

// Magic is the first four bytes of every class file.
const Magic uint32 = 0xCAFEBABE

// Sentinel errors for the ways class bytes can be rejected.
// They are always returned wrapped with CodeParseFailed.
var (
	// ErrBadMagic indicates the bytes do not start with Magic.
	ErrBadMagic = errors.New("bad magic number")
	// ErrTruncated indicates the bytes end before the structure does.
	ErrTruncated = errors.New("class file truncated")
	// ErrBadConstantPool indicates an unknown tag or a dangling index.
	ErrBadConstantPool = errors.New("malformed constant pool")
	// ErrNameMismatch indicates the class declares a different name than
	// the one it was requested under.
	ErrNameMismatch = errors.New("declared class name does not match")
)

// Constant pool tags.
const (
	tagUtf8               = 1
	tagInteger            = 3
	tagFloat              = 4
	tagLong               = 5
	tagDouble             = 6
	tagClass              = 7
	tagString             = 8
	tagFieldref           = 9
	tagMethodref          = 10
	tagInterfaceMethodref = 11
	tagNameAndType        = 12
	tagMethodHandle       = 15
	tagMethodType         = 16
	tagDynamic            = 17
	tagInvokeDynamic      = 18
	tagModule             = 19
	tagPackage            = 20
)

type constant struct {
	tag   uint8
	index uint16
	utf8  string
}

// Parse reads all of r and parses it as the class called name.
// If name is empty the declared name is accepted as is.
func Parse(name string, r io.Reader) (*ClassFile, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, wrapParseError(err, name, "failed to read class bytes")
	}
	return ParseBytes(name, data)
}

// ParseBytes parses data as the class called name.
func ParseBytes(name string, data []byte) (*ClassFile, error) {
	d := &decoder{data: data}

	if d.u4() != Magic {
		if d.err != nil {
			return nil, wrapParseError(d.err, name, "failed to read class header")
		}
		return nil, wrapParseError(ErrBadMagic, name, "not a class file")
	}

	cf := &ClassFile{
		MinorVersion: d.u2(),
		MajorVersion: d.u2(),
	}

	pool := d.constantPool()
	if d.err != nil {
		return nil, wrapParseError(d.err, name, "failed to read constant pool")
	}

	cf.Access = AccessFlags(d.u2())
	thisIndex := d.u2()
	superIndex := d.u2()

	interfaces := make([]string, int(d.u2()))
	for i := range interfaces {
		interfaces[i] = pool.className(d, d.u2())
	}

	cf.Name = pool.className(d, thisIndex)
	if superIndex != 0 {
		cf.SuperName = pool.className(d, superIndex)
	}
	if len(interfaces) > 0 {
		cf.Interfaces = interfaces
	}

	cf.Fields = d.members(pool)
	cf.Methods = d.members(pool)
	d.skipAttributes()
	if d.err != nil {
		return nil, wrapParseError(d.err, name, "failed to read class body")
	}

	if name != "" && cf.Name != name {
		return nil, platformerrors.WrapWithContext(
			fmt.Errorf("%w: declared %q", ErrNameMismatch, cf.Name),
			CodeParseFailed,
			"class declares a different name",
			map[string]interface{}{"class": name, "declared": cf.Name},
		)
	}

	cf.Digest = digest.FromBytes(data)
	return cf, nil
}

func wrapParseError(err error, name, message string) error {
	return platformerrors.WrapWithContext(err, CodeParseFailed, message, map[string]interface{}{"class": name})
}

// decoder reads big-endian values and remembers the first failure.
type decoder struct {
	data []byte
	off  int
	err  error
}

func (d *decoder) take(n int) []byte {
	if d.err != nil {
		return nil
	}
	if n < 0 || len(d.data)-d.off < n {
		d.err = ErrTruncated
		return nil
	}
	b := d.data[d.off : d.off+n]
	d.off += n
	return b
}

func (d *decoder) u1() uint8 {
	if b := d.take(1); b != nil {
		return b[0]
	}
	return 0
}

func (d *decoder) u2() uint16 {
	if b := d.take(2); b != nil {
		return binary.BigEndian.Uint16(b)
	}
	return 0
}

func (d *decoder) u4() uint32 {
	if b := d.take(4); b != nil {
		return binary.BigEndian.Uint32(b)
	}
	return 0
}

func (d *decoder) fail(err error) {
	if d.err == nil {
		d.err = err
	}
}

type constantPool []constant

func (d *decoder) constantPool() constantPool {
	count := int(d.u2())
	pool := make(constantPool, count)

	for i := 1; i < count && d.err == nil; i++ {
		c := constant{tag: d.u1()}
		switch c.tag {
		case tagUtf8:
			c.utf8 = string(d.take(int(d.u2())))
		case tagClass, tagString, tagMethodType, tagModule, tagPackage:
			c.index = d.u2()
		case tagInteger, tagFloat, tagFieldref, tagMethodref, tagInterfaceMethodref,
			tagNameAndType, tagDynamic, tagInvokeDynamic:
			d.take(4)
		case tagLong, tagDouble:
			d.take(8)
			// Eight-byte constants occupy two pool slots.
			i++
		case tagMethodHandle:
			d.take(3)
		default:
			d.fail(fmt.Errorf("%w: tag %d at index %d", ErrBadConstantPool, c.tag, i))
		}
		if i < count {
			pool[i] = c
		}
	}
	return pool
}

func (p constantPool) utf8(d *decoder, index uint16) string {
	if int(index) >= len(p) || index == 0 || p[index].tag != tagUtf8 {
		d.fail(fmt.Errorf("%w: index %d is not a utf8 constant", ErrBadConstantPool, index))
		return ""
	}
	return p[index].utf8
}

func (p constantPool) className(d *decoder, index uint16) string {
	if int(index) >= len(p) || index == 0 || p[index].tag != tagClass {
		d.fail(fmt.Errorf("%w: index %d is not a class constant", ErrBadConstantPool, index))
		return ""
	}
	return p.utf8(d, p[index].index)
}

func (d *decoder) members(pool constantPool) []Member {
	count := int(d.u2())
	if count == 0 || d.err != nil {
		return nil
	}

	members := make([]Member, 0, min(count, 1024))
	for i := 0; i < count && d.err == nil; i++ {
		m := Member{Access: AccessFlags(d.u2())}
		m.Name = pool.utf8(d, d.u2())
		m.Descriptor = pool.utf8(d, d.u2())
		d.skipAttributes()
		members = append(members, m)
	}
	return members
}

func (d *decoder) skipAttributes() {
	count := int(d.u2())
	for i := 0; i < count && d.err == nil; i++ {
		d.u2()
		d.take(int(d.u4()))
	}
}
