package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPriority(t *testing.T) {
	cases := []struct {
		severity Severity
		alert    AlertType
		want     int
	}{
		{SeverityCritical, TypeWaterQuality, 10},
		{SeverityHigh, TypeLeakDetection, 9},
		{SeverityMedium, TypeHighConsumption, 6},
		{SeverityHigh, TypePaymentOverdue, 7},
		{SeverityLow, TypeMeterReadingDue, 3},
		{SeverityLow, TypeSystemMaintenance, 3},
		{SeverityHigh, TypeComplaintEscalated, 7},
		{Severity("Unknown"), AlertType("Unknown"), 5},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, Priority(tc.severity, tc.alert), "%s/%s", tc.severity, tc.alert)
	}
}

func TestAlertTypeCode(t *testing.T) {
	assert.Equal(t, "payment-overdue", TypePaymentOverdue.Code())
	assert.Equal(t, "meter-reading-due", TypeMeterReadingDue.Code())

	parsed, err := ParseAlertType("water-quality")
	assert.NoError(t, err)
	assert.Equal(t, TypeWaterQuality, parsed)

	parsed, err = ParseAlertType("System Maintenance")
	assert.NoError(t, err)
	assert.Equal(t, TypeSystemMaintenance, parsed)

	_, err = ParseAlertType("Flood")
	assert.ErrorIs(t, err, ErrInvalidType)
}
