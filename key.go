package nosqlbench

import (
	"encoding/binary"
	"fmt"
	"sort"

	g "github.com/hhkbp2/nosqlbench/generator"
)

// KeyGenerator encodes key ids into keys.
type KeyGenerator interface {
	// Generate draws a key id out of [0, max) from the key distribution.
	Generate(max uint32) Key
	// GenerateByID encodes id directly.
	GenerateByID(id uint32) Key
}

type MakeKeyGeneratorFunc func(dist g.Distribution) KeyGenerator

var (
	KeyTypes = map[string]MakeKeyGeneratorFunc{
		"string": func(dist g.Distribution) KeyGenerator {
			return NewStringKeyGenerator(dist)
		},
		"u32": func(dist g.Distribution) KeyGenerator {
			return NewU32KeyGenerator(dist)
		},
		"u64": func(dist g.Distribution) KeyGenerator {
			return NewU64KeyGenerator(dist)
		},
	}
)

func NewKeyGenerator(name string, dist g.Distribution) (KeyGenerator, error) {
	f, ok := KeyTypes[name]
	if !ok {
		return nil, NewErrorf("unknown key type: %s", name)
	}
	return f(dist), nil
}

func KeyTypeNames() []string {
	return sortedKeys(KeyTypes)
}

func sortedKeys[V any](m map[string]V) []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

const (
	StringKeyLength = 11
)

// StringKeyGenerator produces "K" followed by the zero padded decimal id,
// e.g. "K0000000042".
type StringKeyGenerator struct {
	dist g.Distribution
}

func NewStringKeyGenerator(dist g.Distribution) *StringKeyGenerator {
	return &StringKeyGenerator{
		dist: dist,
	}
}

func (self *StringKeyGenerator) Generate(max uint32) Key {
	return self.GenerateByID(self.dist.Random(max))
}

func (self *StringKeyGenerator) GenerateByID(id uint32) Key {
	return Key(fmt.Sprintf("K%010d", id))
}

// U32KeyGenerator produces the 4 byte little endian id.
type U32KeyGenerator struct {
	dist g.Distribution
}

func NewU32KeyGenerator(dist g.Distribution) *U32KeyGenerator {
	return &U32KeyGenerator{
		dist: dist,
	}
}

func (self *U32KeyGenerator) Generate(max uint32) Key {
	return self.GenerateByID(self.dist.Random(max))
}

func (self *U32KeyGenerator) GenerateByID(id uint32) Key {
	b := make([]byte, 4)
	binary.LittleEndian.PutUint32(b, id)
	return Key(b)
}

// U64KeyGenerator produces the 8 byte little endian id.
type U64KeyGenerator struct {
	dist g.Distribution
}

func NewU64KeyGenerator(dist g.Distribution) *U64KeyGenerator {
	return &U64KeyGenerator{
		dist: dist,
	}
}

func (self *U64KeyGenerator) Generate(max uint32) Key {
	return self.GenerateByID(self.dist.Random(max))
}

func (self *U64KeyGenerator) GenerateByID(id uint32) Key {
	b := make([]byte, 8)
	binary.LittleEndian.PutUint64(b, uint64(id))
	return Key(b)
}
