package raffleapi

import (
	"strconv"
	"testing"
	"time"

	raffletypes "github.com/Black-And-White-Club/raffle-bot/app/modules/raffle/domain/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenVerifier(t *testing.T) {
	v := NewTokenVerifier("s3cret", "raffle-bot")

	tok, err := IssueToken("s3cret", "raffle-bot", "alice", time.Minute)
	require.NoError(t, err)
	player, err := v.Verify(tok)
	require.NoError(t, err)
	assert.EqualValues(t, "alice", player)

	wrongIssuer, err := IssueToken("s3cret", "someone-else", "alice", time.Minute)
	require.NoError(t, err)
	_, err = v.Verify(wrongIssuer)
	assert.ErrorIs(t, err, ErrInvalidToken)

	noSubject, err := IssueToken("s3cret", "raffle-bot", "", time.Minute)
	require.NoError(t, err)
	_, err = v.Verify(noSubject)
	assert.ErrorIs(t, err, ErrInvalidToken)

	expired, err := IssueToken("s3cret", "raffle-bot", "alice", -time.Minute)
	require.NoError(t, err)
	_, err = v.Verify(expired)
	assert.ErrorIs(t, err, ErrExpiredToken)
}

func TestPlayerRateLimiterPrunesIdlePlayers(t *testing.T) {
	l := NewPlayerRateLimiter(1, 1)
	for i := 0; i <= cleanupThreshold; i++ {
		l.Allow(playerN(i))
	}
	for _, e := range l.players {
		e.lastSeen = time.Now().Add(-2 * maxIdleAge)
	}
	assert.True(t, l.Allow("fresh"))
	assert.Len(t, l.players, 1)
}

func playerN(i int) raffletypes.PlayerID {
	return raffletypes.PlayerID(strconv.Itoa(i))
}
