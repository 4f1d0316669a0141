package datafetcher

import (
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func round(answer int64, updatedAt time.Time) RoundData {
	return RoundData{
		RoundID:         big.NewInt(92233720368547),
		Answer:          big.NewInt(answer),
		StartedAt:       big.NewInt(updatedAt.Unix()),
		UpdatedAt:       big.NewInt(updatedAt.Unix()),
		AnsweredInRound: big.NewInt(1),
	}
}

func TestScaleAnswer(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)

	// 2000.12345678 with 8 decimals
	price, err := scaleAnswer(round(200012345678, now.Add(-10*time.Minute)), 8, now, time.Hour)
	require.NoError(t, err)
	assert.InDelta(t, 2000.12345678, price, 1e-9)
}

func TestScaleAnswerRejectsBadRounds(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)

	_, err := scaleAnswer(round(0, now), 8, now, time.Hour)
	assert.ErrorIs(t, err, ErrInvalidPriceData)

	_, err = scaleAnswer(round(-5, now), 8, now, time.Hour)
	assert.ErrorIs(t, err, ErrInvalidPriceData)

	stale := round(200000000000, now.Add(-3*time.Hour))
	_, err = scaleAnswer(stale, 8, now, 2*time.Hour)
	assert.ErrorIs(t, err, ErrStalePrice)

	// A zero max age disables the staleness check
	price, err := scaleAnswer(stale, 8, now, 0)
	require.NoError(t, err)
	assert.Equal(t, 2000.0, price)

	incomplete := round(200000000000, now)
	incomplete.UpdatedAt = big.NewInt(0)
	_, err = scaleAnswer(incomplete, 8, now, 0)
	assert.ErrorIs(t, err, ErrInvalidPriceData)
}

func TestParseRoundData(t *testing.T) {
	out := []interface{}{big.NewInt(1), big.NewInt(2), big.NewInt(3), big.NewInt(4), big.NewInt(5)}
	rd, err := parseRoundData(out)
	require.NoError(t, err)
	assert.Equal(t, int64(2), rd.Answer.Int64())
	assert.Equal(t, int64(4), rd.UpdatedAt.Int64())

	_, err = parseRoundData(out[:4])
	assert.ErrorIs(t, err, ErrInvalidPriceData)

	out[1] = uint8(1)
	_, err = parseRoundData(out)
	assert.ErrorIs(t, err, ErrInvalidPriceData)
}
