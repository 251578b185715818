package stripe

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/storefront-backend/pkg/config"
)

func TestNewClientValidatesKeys(t *testing.T) {
	cases := []struct {
		name    string
		cfg     config.StripeConfig
		wantErr bool
	}{
		{"test key in test mode", config.StripeConfig{APIKey: "sk_test_123", Secret: "whsec_1", Env: "test"}, false},
		{"restricted test key", config.StripeConfig{APIKey: "rk_test_123", Secret: "whsec_1"}, false},
		{"live key in test mode", config.StripeConfig{APIKey: "sk_live_123", Secret: "whsec_1", Env: "test"}, true},
		{"test key in live mode", config.StripeConfig{APIKey: "sk_test_123", Secret: "whsec_1", Env: "LIVE"}, true},
		{"missing key", config.StripeConfig{Secret: "whsec_1", Env: "test"}, true},
		{"missing secret", config.StripeConfig{APIKey: "sk_test_123", Env: "test"}, true},
		{"unknown mode", config.StripeConfig{APIKey: "sk_test_123", Secret: "whsec_1", Env: "staging"}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			client, err := NewClient(context.Background(), tc.cfg, nil)
			if tc.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "whsec_1", client.SigningSecret())
			assert.Equal(t, ModeTest, client.Mode())
			assert.NotNil(t, client.API())
		})
	}
}

func TestNilClientAccessors(t *testing.T) {
	var c *Client
	assert.Nil(t, c.API())
	assert.Empty(t, c.Mode())
	assert.Empty(t, c.SigningSecret())
}
