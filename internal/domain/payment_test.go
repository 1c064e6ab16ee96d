package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPaymentStatusTerminal(t *testing.T) {
	assert.False(t, PaymentPending.Terminal())
	assert.True(t, PaymentSuccess.Terminal())
	assert.True(t, PaymentFailed.Terminal())
	assert.True(t, PaymentAbandoned.Terminal())
}

func TestValidProvider(t *testing.T) {
	assert.True(t, ValidProvider(ProviderPaystack))
	assert.True(t, ValidProvider(ProviderFlutterwave))
	assert.False(t, ValidProvider("stripe"))
	assert.False(t, ValidProvider(""))
}
