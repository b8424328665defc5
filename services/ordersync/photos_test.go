package ordersync

import (
	"testing"

	"ordersync/services/ordersync/dataset"

	"github.com/stretchr/testify/require"
)

func TestPhotoFileName(t *testing.T) {
	photoUrl := "https://www.instacart.ca/orderdeliveryphoto/1.png"

	first := dataset.Order{
		DateTime: "2024-01-05 10:00",
		Url:      "https://www.instacart.ca/store/orders/abc",
	}
	second := dataset.Order{
		DateTime: "2024-01-05 10:00",
		Url:      "https://www.instacart.ca/store/orders/def",
	}

	require.Equal(t, "2024-01-05_10-00_abc.png", photoFileName(first, photoUrl))

	// two deliveries in the same minute must not share a file
	require.NotEqual(t,
		photoFileName(first, photoUrl),
		photoFileName(second, photoUrl))

	// extension falls back to jpg when the photo url carries none
	require.Equal(t, "2024-01-05_10-00_abc.jpg",
		photoFileName(first, "https://www.instacart.ca/orderdeliveryphoto/raw"))
}
