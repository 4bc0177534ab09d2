package hierarchy

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// classDecl is the slice of a compiled type definition the registry cares
// about: the declared name, the direct supertype and the implemented
// interfaces, all in internal slash form (for example "java/util/ArrayList").
type classDecl struct {
	Name       string
	Super      string
	Interfaces []string
}

var errTruncatedClass = errors.New("truncated class file")

const classMagic = 0xCAFEBABE

// Constant pool tags. Only Utf8 and Class are dereferenced; the rest are
// skipped by size.
const (
	constUtf8               = 1
	constInteger            = 3
	constFloat              = 4
	constLong               = 5
	constDouble             = 6
	constClass              = 7
	constString             = 8
	constFieldRef           = 9
	constMethodRef          = 10
	constInterfaceMethodRef = 11
	constNameAndType        = 12
	constMethodHandle       = 15
	constMethodType         = 16
	constDynamic            = 17
	constInvokeDynamic      = 18
	constModule             = 19
	constPackage            = 20
)

// parseClass reads just enough of a class file to extract the declared
// name, supertype and interfaces. Anything past the interfaces table is
// ignored.
func parseClass(data []byte) (classDecl, error) {
	r := classReader{data: data}
	magic, err := r.u32()
	if err != nil {
		return classDecl{}, err
	}
	if magic != classMagic {
		return classDecl{}, fmt.Errorf("bad class file magic %#x", magic)
	}
	// minor, major version
	if _, err := r.u32(); err != nil {
		return classDecl{}, err
	}

	poolCount, err := r.u16()
	if err != nil {
		return classDecl{}, err
	}
	utf8s := make(map[uint16]string)
	classes := make(map[uint16]uint16)
	for i := uint16(1); i < poolCount; i++ {
		tag, err := r.u8()
		if err != nil {
			return classDecl{}, err
		}
		switch tag {
		case constUtf8:
			n, err := r.u16()
			if err != nil {
				return classDecl{}, err
			}
			b, err := r.bytes(int(n))
			if err != nil {
				return classDecl{}, err
			}
			utf8s[i] = string(b)
		case constClass:
			nameIdx, err := r.u16()
			if err != nil {
				return classDecl{}, err
			}
			classes[i] = nameIdx
		case constInteger, constFloat, constFieldRef, constMethodRef,
			constInterfaceMethodRef, constNameAndType, constDynamic, constInvokeDynamic:
			if _, err := r.bytes(4); err != nil {
				return classDecl{}, err
			}
		case constLong, constDouble:
			if _, err := r.bytes(8); err != nil {
				return classDecl{}, err
			}
			i++ // 8-byte constants take two pool slots
		case constString, constMethodType, constModule, constPackage:
			if _, err := r.bytes(2); err != nil {
				return classDecl{}, err
			}
		case constMethodHandle:
			if _, err := r.bytes(3); err != nil {
				return classDecl{}, err
			}
		default:
			return classDecl{}, fmt.Errorf("unknown constant pool tag %d", tag)
		}
	}

	// access_flags
	if _, err := r.u16(); err != nil {
		return classDecl{}, err
	}
	thisIdx, err := r.u16()
	if err != nil {
		return classDecl{}, err
	}
	superIdx, err := r.u16()
	if err != nil {
		return classDecl{}, err
	}
	ifCount, err := r.u16()
	if err != nil {
		return classDecl{}, err
	}

	className := func(idx uint16) (string, error) {
		if idx == 0 {
			return "", nil // java/lang/Object and module-info have no super
		}
		nameIdx, ok := classes[idx]
		if !ok {
			return "", fmt.Errorf("constant %d is not a class", idx)
		}
		name, ok := utf8s[nameIdx]
		if !ok {
			return "", fmt.Errorf("class constant %d has no utf8 name", idx)
		}
		return name, nil
	}

	decl := classDecl{}
	if decl.Name, err = className(thisIdx); err != nil {
		return classDecl{}, err
	}
	if decl.Name == "" {
		return classDecl{}, errors.New("class file has no declared name")
	}
	if decl.Super, err = className(superIdx); err != nil {
		return classDecl{}, err
	}
	for i := uint16(0); i < ifCount; i++ {
		idx, err := r.u16()
		if err != nil {
			return classDecl{}, err
		}
		name, err := className(idx)
		if err != nil {
			return classDecl{}, err
		}
		decl.Interfaces = append(decl.Interfaces, name)
	}
	return decl, nil
}

type classReader struct {
	data []byte
	off  int
}

func (r *classReader) bytes(n int) ([]byte, error) {
	if r.off+n > len(r.data) {
		return nil, errTruncatedClass
	}
	b := r.data[r.off : r.off+n]
	r.off += n
	return b, nil
}

func (r *classReader) u8() (uint8, error) {
	b, err := r.bytes(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func (r *classReader) u16() (uint16, error) {
	b, err := r.bytes(2)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(b), nil
}

func (r *classReader) u32() (uint32, error) {
	b, err := r.bytes(4)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(b), nil
}
