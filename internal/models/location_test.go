package models

import (
	"math"
	"testing"

	"delivery-dispatch/internal/errs"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr(v float64) *float64 { return &v }

func TestCoordinate_Validate(t *testing.T) {
	tests := []struct {
		name    string
		coord   Coordinate
		wantErr bool
	}{
		{"origin", Coordinate{0, 0}, false},
		{"bounds", Coordinate{-90, 180}, false},
		{"other bounds", Coordinate{90, -180}, false},
		{"latitude too high", Coordinate{90.0001, 0}, true},
		{"longitude too low", Coordinate{0, -180.5}, true},
		{"nan latitude", Coordinate{math.NaN(), 0}, true},
		{"inf longitude", Coordinate{0, math.Inf(1)}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.coord.Validate()
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errs.IsValidation(err))
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestCoordinateFromPair(t *testing.T) {
	c, err := CoordinateFromPair(nil, nil)
	require.NoError(t, err)
	assert.Nil(t, c)

	_, err = CoordinateFromPair(ptr(10), nil)
	assert.ErrorIs(t, err, errs.ErrValueIsRequired)

	_, err = CoordinateFromPair(nil, ptr(10))
	assert.ErrorIs(t, err, errs.ErrValueIsRequired)

	_, err = CoordinateFromPair(ptr(100), ptr(10))
	assert.ErrorIs(t, err, errs.ErrValueIsOutOfRange)

	c, err = CoordinateFromPair(ptr(10.5), ptr(106.7))
	require.NoError(t, err)
	assert.Equal(t, Coordinate{Latitude: 10.5, Longitude: 106.7}, *c)
}

func TestOrderStatus(t *testing.T) {
	assert.True(t, OrderStatusDelivered.IsTerminal())
	assert.True(t, OrderStatusCancelled.IsTerminal())
	assert.False(t, OrderStatusDelivering.IsTerminal())

	assert.True(t, OrderStatusPickingUp.Valid())
	assert.False(t, OrderStatus("picking_up").Valid())

	assert.Equal(t, "ORDER_COOKING", OrderNotificationType(OrderStatusCooking))
}
