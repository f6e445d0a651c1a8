package automod

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFingerprintNormalization(t *testing.T) {
	assert := assert.New(t)

	base := Fingerprint("Salut tout le monde")

	// case and whitespace differences collapse to the same fingerprint
	assert.Equal(base, Fingerprint("salut   TOUT le\tmonde"))
	assert.Equal(base, Fingerprint("  salut tout le monde  "))

	assert.NotEqual(base, Fingerprint("salut tout le monde!"))
	assert.Len(base, 64)
}
