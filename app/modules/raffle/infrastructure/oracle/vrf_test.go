package raffleoracle

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProveAndVerify(t *testing.T) {
	prover := NewProver()
	words, proof, err := prover.Prove("7", "0xabc", 3)
	require.NoError(t, err)
	require.Len(t, words, 3)
	for _, w := range words {
		assert.GreaterOrEqual(t, w.Sign(), 0)
	}

	verifier := prover.Verifier()
	assert.NoError(t, verifier.Verify("7", "0xabc", words, proof))

	t.Run("other request", func(t *testing.T) {
		assert.ErrorIs(t, verifier.Verify("8", "0xabc", words, proof), ErrInvalidProof)
	})
	t.Run("tampered word", func(t *testing.T) {
		tampered := []*big.Int{new(big.Int).Add(words[0], big.NewInt(1)), words[1], words[2]}
		assert.ErrorIs(t, verifier.Verify("7", "0xabc", tampered, proof), ErrInvalidProof)
	})
	t.Run("missing proof", func(t *testing.T) {
		assert.ErrorIs(t, verifier.Verify("7", "0xabc", words, nil), ErrInvalidProof)
	})
	t.Run("foreign key", func(t *testing.T) {
		assert.ErrorIs(t, NewProver().Verifier().Verify("7", "0xabc", words, proof), ErrInvalidProof)
	})
}

func TestVerifierFromHex(t *testing.T) {
	prover := NewProver()
	pub, err := prover.PublicKeyHex()
	require.NoError(t, err)

	verifier, err := NewVerifierFromHex(pub)
	require.NoError(t, err)

	words, proof, err := prover.Prove("1", "k", 1)
	require.NoError(t, err)
	assert.NoError(t, verifier.Verify("1", "k", words, proof))

	_, err = NewVerifierFromHex("zz")
	assert.Error(t, err)
}

func TestDeriveWordsDeterministic(t *testing.T) {
	a := DeriveWords([]byte("proof"), 2)
	b := DeriveWords([]byte("proof"), 2)
	assert.Equal(t, a, b)
	assert.NotEqual(t, a[0], a[1])
}

func TestSeedCanonical(t *testing.T) {
	a, err := Seed("1", "k")
	require.NoError(t, err)
	b, err := Seed("1", "k")
	require.NoError(t, err)
	assert.Equal(t, a, b)

	c, err := Seed("2", "k")
	require.NoError(t, err)
	assert.NotEqual(t, a, c)
}
