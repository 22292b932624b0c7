package raffleoracle

import (
	"bytes"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"

	raffletypes "github.com/Black-And-White-Club/raffle-bot/app/modules/raffle/domain/types"
	"github.com/fxamacker/cbor/v2"
	"github.com/zeebo/blake3"
	"go.dedis.ch/kyber/v3"
	"go.dedis.ch/kyber/v3/pairing/bn256"
	"go.dedis.ch/kyber/v3/sign/bls"
	"go.dedis.ch/kyber/v3/util/random"
)

var suite = bn256.NewSuite()

// ErrInvalidProof is returned when a proof does not match its words.
var ErrInvalidProof = errors.New("invalid randomness proof")

var seedEncoding = mustSeedEncoding()

func mustSeedEncoding() cbor.EncMode {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("cbor encoding: %v", err))
	}
	return em
}

type seedInput struct {
	RequestID raffletypes.RequestID `cbor:"1,keyasint"`
	KeyHash   string                `cbor:"2,keyasint"`
}

// Seed is the message signed for a request.
func Seed(requestID raffletypes.RequestID, keyHash string) ([]byte, error) {
	b, err := seedEncoding.Marshal(seedInput{RequestID: requestID, KeyHash: keyHash})
	if err != nil {
		return nil, fmt.Errorf("encode seed: %w", err)
	}
	return b, nil
}

// DeriveWords expands a proof into n uniformly distributed 256 bit words.
func DeriveWords(proof []byte, n uint32) []*big.Int {
	words := make([]*big.Int, 0, n)
	var idx [4]byte
	for i := uint32(0); i < n; i++ {
		binary.BigEndian.PutUint32(idx[:], i)
		h := blake3.New()
		_, _ = h.Write(proof)
		_, _ = h.Write(idx[:])
		words = append(words, new(big.Int).SetBytes(h.Sum(nil)))
	}
	return words
}

// Prover signs request seeds with a BLS key on bn256.
type Prover struct {
	private kyber.Scalar
	public  kyber.Point
}

// NewProver generates a fresh key pair.
func NewProver() *Prover {
	private, public := bls.NewKeyPair(suite, random.New())
	return &Prover{private: private, public: public}
}

// Prove returns the proof and words for a request.
func (p *Prover) Prove(requestID raffletypes.RequestID, keyHash string, numWords uint32) ([]*big.Int, []byte, error) {
	seed, err := Seed(requestID, keyHash)
	if err != nil {
		return nil, nil, err
	}
	sig, err := bls.Sign(suite, p.private, seed)
	if err != nil {
		return nil, nil, fmt.Errorf("sign seed: %w", err)
	}
	return DeriveWords(sig, numWords), sig, nil
}

// Verifier returns the verifier matching this prover.
func (p *Prover) Verifier() *Verifier {
	return &Verifier{public: p.public}
}

// PublicKeyHex returns the verification key in hex.
func (p *Prover) PublicKeyHex() (string, error) {
	b, err := p.public.MarshalBinary()
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// Verifier checks proofs delivered with random words.
type Verifier struct {
	public kyber.Point
}

// NewVerifierFromHex parses a hex encoded BLS public key.
func NewVerifierFromHex(s string) (*Verifier, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("decode verify key: %w", err)
	}
	point := suite.G2().Point()
	if err := point.UnmarshalBinary(b); err != nil {
		return nil, fmt.Errorf("invalid verify key: %w", err)
	}
	return &Verifier{public: point}, nil
}

// Verify checks that proof signs the request seed and expands to words.
func (v *Verifier) Verify(requestID raffletypes.RequestID, keyHash string, words []*big.Int, proof []byte) error {
	if len(proof) == 0 {
		return fmt.Errorf("%w: missing proof", ErrInvalidProof)
	}
	seed, err := Seed(requestID, keyHash)
	if err != nil {
		return err
	}
	if err := bls.Verify(suite, v.public, seed, proof); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidProof, err)
	}
	expected := DeriveWords(proof, uint32(len(words)))
	for i := range words {
		if words[i] == nil || !bytes.Equal(words[i].Bytes(), expected[i].Bytes()) {
			return fmt.Errorf("%w: word %d does not match proof", ErrInvalidProof, i)
		}
	}
	return nil
}
