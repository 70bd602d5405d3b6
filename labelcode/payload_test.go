package labelcode

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePayload(t *testing.T) {
	s, err := ParsePayload(Payload("CASE01/SA001/ET01_X7Q2", "ACME", "Inspection Electrique"))
	require.NoError(t, err)
	assert.Equal(t, "CASE01/SA001/ET01_X7Q2", s.Code)
	assert.Equal(t, "ACME", s.Client)
	assert.Equal(t, "Inspection Electrique", s.Product)

	s, err = ParsePayload(URL("https://erp.example.com/", "I004/IEL002/ET12_9ZZ0") + "?src=scan")
	require.NoError(t, err)
	assert.Equal(t, "I004/IEL002/ET12_9ZZ0", s.Code)

	s, err = ParsePayload("  I004/IEL002/ET03_AB12\n")
	require.NoError(t, err)
	assert.Equal(t, "I004/IEL002/ET03_AB12", s.Code)
}

func TestParsePayload_Invalid(t *testing.T) {
	for _, in := range []string{"", "   ", "hello", "I004/IEL002/ET03_ab12", "I004/ET3_AB12"} {
		_, err := ParsePayload(in)
		assert.Error(t, err, in)
	}
}

func TestURL(t *testing.T) {
	assert.Equal(t, "http://localhost:8080/inspection/etiquette/A/ET01_AAAA", URL("http://localhost:8080", "A/ET01_AAAA"))
}
