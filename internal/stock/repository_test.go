package stock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// A delivery has no source and spoilage or sale consumption has no
// destination. The absent side must reach the database as NULL, which the
// stock_movements columns allow, not as an empty string.
func TestMovementParamsNullAbsentSide(t *testing.T) {
	delivery := Movement{Type: MovementDelivery, To: LocationStorage}
	require.Nil(t, nullLocation(delivery.From))
	require.Equal(t, "STORAGE", nullLocation(delivery.To))

	spoilage := Movement{Type: MovementSpoilage, From: LocationShop}
	require.Equal(t, "SHOP", nullLocation(spoilage.From))
	require.Nil(t, nullLocation(spoilage.To))
}

func TestNullTimeParam(t *testing.T) {
	require.Nil(t, nullTime(nil))
	ts := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	require.Equal(t, ts, nullTime(&ts))
}
