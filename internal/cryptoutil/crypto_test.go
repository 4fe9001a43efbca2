package cryptoutil

import (
	"testing"

	"github.com/stretchr/testify/suite"
)

type CryptoTestSuite struct {
	suite.Suite
}

func TestCryptoSuite(t *testing.T) {
	suite.Run(t, new(CryptoTestSuite))
}

func (s *CryptoTestSuite) TestHMACHexKnownVector() {
	// RFC 4231 test case 2
	s.Equal(
		"5bdcc146bf60754e6a042426089575c75a003f089d2739839dec58b964ec3843",
		HMACHex("Jefe", "what do ya want for nothing?"),
	)
}

func (s *CryptoTestSuite) TestSignJoinsWithComma() {
	s.Equal(
		HMACHex("secret", "client,meeting,stream"),
		Sign("client", "meeting", "stream", "secret"),
	)
}

func (s *CryptoTestSuite) TestSignDeterministic() {
	first := Sign("cid", "m1", "s1", "k")
	for i := 0; i < 10; i++ {
		s.Equal(first, Sign("cid", "m1", "s1", "k"))
	}
	s.Len(first, 64)
}

func (s *CryptoTestSuite) TestSignDependsOnEveryInput() {
	base := Sign("cid", "m1", "s1", "k")
	s.NotEqual(base, Sign("cid2", "m1", "s1", "k"))
	s.NotEqual(base, Sign("cid", "m2", "s1", "k"))
	s.NotEqual(base, Sign("cid", "m1", "s2", "k"))
	s.NotEqual(base, Sign("cid", "m1", "s1", "k2"))
}

func (s *CryptoTestSuite) TestEqual() {
	s.True(Equal("abc", "abc"))
	s.False(Equal("abc", "abd"))
}

func (s *CryptoTestSuite) TestRandomSequenceRange() {
	for i := 0; i < 100; i++ {
		seq, err := RandomSequence()
		s.Require().NoError(err)
		s.GreaterOrEqual(seq, int64(0))
		s.Less(seq, int64(1_000_000_000))
	}
}
