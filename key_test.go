package nosqlbench

import (
	"encoding/binary"
	"testing"

	g "github.com/hhkbp2/nosqlbench/generator"
	"github.com/stretchr/testify/require"
)

func TestStringKeyGenerator(t *testing.T) {
	keys := NewStringKeyGenerator(nil)
	require.Equal(t, Key("K0000000042"), keys.GenerateByID(42))
	require.Equal(t, StringKeyLength, len(keys.GenerateByID(4294967295)))
}

func TestU32KeyGenerator(t *testing.T) {
	k := NewU32KeyGenerator(nil).GenerateByID(0x01020304)
	require.Equal(t, Key{0x04, 0x03, 0x02, 0x01}, k)
}

func TestU64KeyGenerator(t *testing.T) {
	k := NewU64KeyGenerator(nil).GenerateByID(7)
	require.Equal(t, 8, len(k))
	require.Equal(t, uint64(7), binary.LittleEndian.Uint64(k))
}

func TestKeyGeneratorDrawsFromDistribution(t *testing.T) {
	require.Equal(t, []string{"string", "u32", "u64"}, KeyTypeNames())
	for _, name := range KeyTypeNames() {
		dist, err := g.NewDistribution("uniform", 1, 1)
		require.Nil(t, err)
		keys, err := NewKeyGenerator(name, dist)
		require.Nil(t, err)
		for i := 0; i < 100; i++ {
			k := keys.Generate(10)
			require.NotEqual(t, 0, len(k))
			if name == "u32" {
				require.True(t, binary.LittleEndian.Uint32(k) < 10)
			}
		}
	}
	_, err := NewKeyGenerator("uuid", nil)
	require.NotNil(t, err)
}
