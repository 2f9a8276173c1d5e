package cards

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateDetails(t *testing.T) {
	d, err := GenerateDetails()
	require.NoError(t, err)

	assert.Len(t, d.Number, 12)
	assert.Len(t, d.CVC, 3)
	assert.Len(t, d.ExpiryMonth, 2)
	assert.Len(t, d.ExpiryYear, 2)
	assert.Len(t, d.LastFour(), 4)
	assert.Equal(t, d.Number[8:], d.LastFour())
}

func TestTokenDeterministic(t *testing.T) {
	d := Details{Number: "400000000002", CVC: "123", ExpiryMonth: "08", ExpiryYear: "29"}

	tok := Token(d)
	assert.Len(t, tok, 64)
	assert.Equal(t, tok, Token(d))

	other := d
	other.CVC = "124"
	assert.NotEqual(t, tok, Token(other))
}
