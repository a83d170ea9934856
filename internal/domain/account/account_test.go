package account

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewAccount(t *testing.T) {
	t.Run("SuccessfulCreation", func(t *testing.T) {
		beforeCreation := time.Now()
		acc, err := NewAccount("btc-hot", TypeWithdraw, "manual", true, 2, 8)
		require.NoError(t, err)
		require.NotNil(t, acc)

		assert.NotEqual(t, uuid.Nil, acc.ID)
		assert.Equal(t, "btc-hot", acc.Name)
		assert.Equal(t, TypeWithdraw, acc.Type)
		assert.True(t, acc.IsDefault)
		assert.Equal(t, int32(8), acc.ProviderDivisibility)
		assert.JSONEq(t, `{}`, string(acc.Secret))
		assert.WithinDuration(t, beforeCreation, acc.CreatedAt, time.Second)
	})

	tests := []struct {
		name     string
		accName  string
		accType  Type
		provider string
		ledger   int32
		wantErr  error
	}{
		{name: "empty name", accType: TypeDeposit, provider: "manual", wantErr: ErrEmptyName},
		{name: "bad type", accName: "a", accType: "refund", provider: "manual", wantErr: ErrInvalidType},
		{name: "empty provider", accName: "a", accType: TypeDeposit, wantErr: ErrEmptyProvider},
		{name: "bad divisibility", accName: "a", accType: TypeDeposit, provider: "manual", ledger: 19, wantErr: ErrInvalidDivisibility},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewAccount(tt.accName, tt.accType, tt.provider, false, tt.ledger, 2)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestAccount_MetadataString(t *testing.T) {
	acc := &Account{Metadata: map[string]any{"reference": "1BoatSLRHtKNngkdXEeobR76b53LETtpyT", "count": 3}}
	assert.Equal(t, "1BoatSLRHtKNngkdXEeobR76b53LETtpyT", acc.MetadataString("reference"))
	assert.Equal(t, "", acc.MetadataString("count"))
	assert.Equal(t, "", acc.MetadataString("missing"))
}
