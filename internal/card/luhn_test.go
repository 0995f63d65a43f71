package card

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsValidNumber(t *testing.T) {
	testCases := []struct {
		name     string
		raw      string
		expected bool
	}{
		{name: "visa test card", raw: "4242424242424242", expected: true},
		{name: "sequential digits", raw: "1234567890123456", expected: false},
		{name: "spaces are stripped", raw: "4242 4242 4242 4242", expected: true},
		{name: "tabs and newlines are stripped", raw: "4242\t4242\n4242 4242", expected: true},
		{name: "mastercard test card", raw: "5555555555554444", expected: true},
		{name: "amex test card", raw: "378282246310005", expected: true},
		{name: "decline test card", raw: "4000000000000002", expected: true},
		{name: "single digit changed", raw: "4242424242424241", expected: false},
		{name: "letters", raw: "4242abcd42424242", expected: false},
		{name: "dashes", raw: "4242-4242-4242-4242", expected: false},
		{name: "empty", raw: "", expected: false},
		{name: "only whitespace", raw: "   ", expected: false},
		{name: "unicode digits", raw: "４２４２", expected: false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.NotPanics(t, func() {
				assert.Equal(t, tc.expected, IsValidNumber(tc.raw))
			})
		})
	}
}

func TestLast4(t *testing.T) {
	assert.Equal(t, "4242", Last4("4242 4242 4242 4242"))
	assert.Equal(t, "12", Last4("12"))
}
