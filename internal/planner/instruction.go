/*

This file contains the mapping from a rebalance decision to the arguments of TradeModule.trade.

*/

package planner

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"github.com/ethmom/rebalancer/internal/config"
	"github.com/ethmom/rebalancer/internal/types"
	"github.com/ethmom/rebalancer/internal/utils"
)

var (
	ErrNoTradeRequired = errors.New("decision does not require a trade")
	ErrDustTrade       = errors.New("trade quantity rounds to zero in the smallest unit")
)

// BuildTradeInstruction turns a required decision into a trade instruction. BUY_B sends asset A
// and receives asset B, BUY_A sends asset B and receives asset A.
func BuildTradeInstruction(setToken common.Address, decision types.Decision, current types.Composition, params types.StrategyParameters) (types.TradeInstruction, error) {
	if !decision.Required || decision.Direction == types.DirectionNone {
		return types.TradeInstruction{}, ErrNoTradeRequired
	}
	if setToken == (common.Address{}) {
		return types.TradeInstruction{}, errors.New("set token address cannot be zero")
	}
	if decision.NotionalRaw.IsNil() || !decision.NotionalRaw.IsPositive() {
		return types.TradeInstruction{}, fmt.Errorf("%w: notional %f", ErrDustTrade, decision.Notional)
	}

	minReceive, err := utils.ParseRawAmount(params.MinReceiveQuantity)
	if err != nil {
		return types.TradeInstruction{}, fmt.Errorf("invalid min receive quantity: %w", err)
	}
	exchangeData, err := config.DecodeExchangeData(params.ExchangeData)
	if err != nil {
		return types.TradeInstruction{}, err
	}

	send, receive := current.Pair.A, current.Pair.B
	held := current.RawA
	switch decision.Direction {
	case types.DirectionBuyB:
	case types.DirectionBuyA:
		send, receive = current.Pair.B, current.Pair.A
		held = current.RawB
	default:
		return types.TradeInstruction{}, fmt.Errorf("unknown direction %q", decision.Direction)
	}

	// The float sizing can land a few units above the balance on a full sell; TradeModule
	// rejects any send quantity above the held real units.
	sendQuantity := decision.NotionalRaw
	if !held.IsNil() && sendQuantity.GT(held) {
		decisionLogger.Debug().
			Str("notionalRaw", sendQuantity.String()).
			Str("held", held.String()).
			Str("send", send.Symbol).
			Msg("Send quantity clamped to held units")
		sendQuantity = held
	}
	if !sendQuantity.IsPositive() {
		return types.TradeInstruction{}, fmt.Errorf("%w: no %s held to send", ErrDustTrade, send.Symbol)
	}

	instruction := types.TradeInstruction{
		SetToken:           setToken,
		ExchangeName:       params.ExchangeName,
		SendToken:          send.Address,
		SendSymbol:         send.Symbol,
		SendQuantity:       sendQuantity,
		ReceiveToken:       receive.Address,
		ReceiveSymbol:      receive.Symbol,
		MinReceiveQuantity: minReceive,
		ExchangeData:       exchangeData,
	}

	decisionLogger.Info().
		Str("send", send.Symbol).
		Str("sendQuantity", instruction.SendQuantity.String()).
		Str("receive", receive.Symbol).
		Str("minReceive", minReceive.String()).
		Str("exchange", instruction.ExchangeName).
		Msg("Trade instruction built")

	return instruction, nil
}
