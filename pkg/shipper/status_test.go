package shipper_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/tournevent/integrations/pkg/shipper"
)

func TestStatusMapper_Map(t *testing.T) {
	mapper := shipper.NewStatusMapper(
		shipper.StatusRule{Match: "out_for_delivery", Status: shipper.StatusOutForDelivery},
		shipper.StatusRule{Match: "delivered", Status: shipper.StatusDelivered},
		shipper.StatusRule{Match: "RETURN", Status: shipper.StatusReturnToSender},
	)

	tests := []struct {
		code     string
		expected shipper.TrackingStatus
		mapped   bool
	}{
		{"OUT_FOR_DELIVERY", shipper.StatusOutForDelivery, true},
		{"Delivered to neighbour", shipper.StatusDelivered, true},
		{"return_initiated", shipper.StatusReturnToSender, true},
		{"", shipper.StatusUnknown, true},
		{"   ", shipper.StatusUnknown, true},
		{"SORTED_AT_HUB", shipper.StatusInTransit, false},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			status, mapped := mapper.Map(tt.code)
			assert.Equal(t, tt.expected, status)
			assert.Equal(t, tt.mapped, mapped)
		})
	}
}

func TestStatusMapper_FirstRuleWins(t *testing.T) {
	mapper := shipper.NewStatusMapper(
		shipper.StatusRule{Match: "delivery", Status: shipper.StatusOutForDelivery},
		shipper.StatusRule{Match: "attempted delivery", Status: shipper.StatusFailedAttempt},
	)

	status, _ := mapper.Map("Attempted delivery")
	assert.Equal(t, shipper.StatusOutForDelivery, status)
}

func TestTotalWeight(t *testing.T) {
	assert.InDelta(t, 3.5, shipper.TotalWeight([]shipper.Package{{Weight: 1}, {Weight: 2.5}}), 1e-9)
	assert.Zero(t, shipper.TotalWeight(nil))
}
