/*
This file reads the asset B (ETH/USD) price from a Chainlink aggregator.
*/

package datafetcher

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"github.com/ethmom/rebalancer/internal/contracts"
	"github.com/ethmom/rebalancer/internal/logger"
	"github.com/ethmom/rebalancer/internal/types"
)

var oracleLogger = logger.GetForComponent("price_oracle")

var (
	ErrInvalidPriceData = errors.New("invalid price data received")
	ErrStalePrice       = errors.New("oracle price is stale")
)

// RoundData is the result of AggregatorV3.latestRoundData
type RoundData struct {
	RoundID         *big.Int
	Answer          *big.Int
	StartedAt       *big.Int
	UpdatedAt       *big.Int
	AnsweredInRound *big.Int
}

// ChainlinkOracle prices asset B through an AggregatorV3 feed.
type ChainlinkOracle struct {
	address  common.Address
	contract *bind.BoundContract
	maxAge   time.Duration
	now      func() time.Time
}

// NewChainlinkOracle creates an oracle reader. maxAge 0 disables the staleness check.
func NewChainlinkOracle(address common.Address, caller bind.ContractCaller, maxAge time.Duration) (*ChainlinkOracle, error) {
	if address == (common.Address{}) {
		return nil, errors.New("oracle address cannot be zero")
	}
	if caller == nil {
		return nil, errors.New("contract caller cannot be nil")
	}
	if maxAge < 0 {
		return nil, errors.New("max price age cannot be negative")
	}
	return &ChainlinkOracle{
		address:  address,
		contract: bind.NewBoundContract(address, contracts.AggregatorABI, caller, nil, nil),
		maxAge:   maxAge,
		now:      time.Now,
	}, nil
}

// LatestPrice returns the latest answer scaled to a float. Errors wrap types.ErrOracleUnavailable.
func (o *ChainlinkOracle) LatestPrice(ctx context.Context) (float64, error) {
	opts := &bind.CallOpts{Context: ctx}

	var decimalsOut []interface{}
	if err := o.contract.Call(opts, &decimalsOut, "decimals"); err != nil {
		return 0, fmt.Errorf("%w: decimals: %w", types.ErrOracleUnavailable, err)
	}
	if len(decimalsOut) != 1 {
		return 0, fmt.Errorf("%w: %w: decimals returned %d values", types.ErrOracleUnavailable, ErrInvalidPriceData, len(decimalsOut))
	}
	dec, ok := decimalsOut[0].(uint8)
	if !ok {
		return 0, fmt.Errorf("%w: %w: decimals returned %T", types.ErrOracleUnavailable, ErrInvalidPriceData, decimalsOut[0])
	}

	var roundOut []interface{}
	if err := o.contract.Call(opts, &roundOut, "latestRoundData"); err != nil {
		return 0, fmt.Errorf("%w: latestRoundData: %w", types.ErrOracleUnavailable, err)
	}
	round, err := parseRoundData(roundOut)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", types.ErrOracleUnavailable, err)
	}

	price, err := scaleAnswer(round, dec, o.now(), o.maxAge)
	if err != nil {
		oracleLogger.Error().
			Err(err).
			Str("oracle", o.address.Hex()).
			Str("answer", round.Answer.String()).
			Msg("Oracle price rejected")
		return 0, fmt.Errorf("%w: %w", types.ErrOracleUnavailable, err)
	}

	oracleLogger.Info().
		Str("oracle", o.address.Hex()).
		Float64("price", price).
		Str("roundID", round.RoundID.String()).
		Time("updatedAt", time.Unix(round.UpdatedAt.Int64(), 0)).
		Msg("Oracle price read")

	return price, nil
}

func parseRoundData(out []interface{}) (RoundData, error) {
	if len(out) != 5 {
		return RoundData{}, fmt.Errorf("%w: latestRoundData returned %d values", ErrInvalidPriceData, len(out))
	}
	values := make([]*big.Int, 5)
	for i, v := range out {
		b, ok := v.(*big.Int)
		if !ok || b == nil {
			return RoundData{}, fmt.Errorf("%w: latestRoundData value %d is %T", ErrInvalidPriceData, i, v)
		}
		values[i] = b
	}
	return RoundData{
		RoundID:         values[0],
		Answer:          values[1],
		StartedAt:       values[2],
		UpdatedAt:       values[3],
		AnsweredInRound: values[4],
	}, nil
}

// scaleAnswer converts the raw answer to a price and checks that it is positive and fresh.
func scaleAnswer(round RoundData, dec uint8, now time.Time, maxAge time.Duration) (float64, error) {
	if round.Answer == nil || round.Answer.Sign() <= 0 {
		return 0, fmt.Errorf("%w: answer must be positive", ErrInvalidPriceData)
	}
	if round.UpdatedAt == nil || round.UpdatedAt.Sign() <= 0 {
		return 0, fmt.Errorf("%w: round is not complete", ErrInvalidPriceData)
	}
	if maxAge > 0 {
		updatedAt := time.Unix(round.UpdatedAt.Int64(), 0)
		if age := now.Sub(updatedAt); age > maxAge {
			return 0, fmt.Errorf("%w: updated %s ago (max %s)", ErrStalePrice, age.Truncate(time.Second), maxAge)
		}
	}

	price, _ := decimal.NewFromBigInt(round.Answer, -int32(dec)).Float64()
	return price, nil
}
