package kafka

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeBookingEvent(t *testing.T) {
	event, err := DecodeBookingEvent([]byte(`{"type":"booking_paid","booking_id":"b-1","destination":"Paris","total_price":1500}`))
	require.NoError(t, err)
	assert.Equal(t, "booking_paid", event.Type)
	assert.Equal(t, "b-1", event.BookingID)
	assert.Equal(t, 1500.0, event.TotalPrice)

	_, err = DecodeBookingEvent([]byte(`not json`))
	assert.Error(t, err)

	_, err = DecodeBookingEvent([]byte(`{"type":"booking_paid"}`))
	assert.Error(t, err)
}
