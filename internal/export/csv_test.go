package export

import (
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestPLNFormatsPolishStyle(t *testing.T) {
	out := PLN(decimal.RequireFromString("1234.5"))
	require.True(t, strings.HasSuffix(out, "zł"), "got %q", out)
	require.Contains(t, out, ",50")
}

func TestPLNKeepsTwoDecimals(t *testing.T) {
	out := PLN(decimal.RequireFromString("28"))
	require.Contains(t, out, "28,00")
}

func TestQuantityWithLabel(t *testing.T) {
	require.Equal(t, "3.5 kg", Quantity(decimal.RequireFromString("3.5"), "kg"))
	require.Equal(t, "7", Quantity(decimal.RequireFromString("7"), ""))
}

func TestWriteTable(t *testing.T) {
	var sb strings.Builder
	err := WriteTable(&sb, []string{"a", "b"}, [][]string{{"1", "x,y"}, {"2", "z"}})
	require.NoError(t, err)
	require.Equal(t, "a,b\n1,\"x,y\"\n2,z\n", sb.String())
}
