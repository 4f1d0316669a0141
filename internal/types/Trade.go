/*

This file contains the types produced by the decision engine and handed to the trade module.

*/

package types

import (
	sdkmath "cosmossdk.io/math"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// Decision is the outcome of comparing a target allocation against the current composition.
type Decision struct {
	Required      bool      `json:"required"`
	Direction     Direction `json:"direction"`
	DesiredValueB float64   `json:"desired_value_b"`
	Difference    float64   `json:"difference"` // Positive means more asset B is needed
	Threshold     float64   `json:"threshold"`  // Tolerance fraction times total value

	// Notional is denominated in the asset being sold: A for BUY_B, B for BUY_A.
	Notional    float64     `json:"notional"`
	NotionalRaw sdkmath.Int `json:"notional_raw"`
}

// TradeInstruction holds the arguments of TradeModule.trade
type TradeInstruction struct {
	SetToken           common.Address `json:"set_token"`
	ExchangeName       string         `json:"exchange_name"`
	SendToken          common.Address `json:"send_token"`
	SendSymbol         string         `json:"send_symbol"`
	SendQuantity       sdkmath.Int    `json:"send_quantity"`
	ReceiveToken       common.Address `json:"receive_token"`
	ReceiveSymbol      string         `json:"receive_symbol"`
	MinReceiveQuantity sdkmath.Int    `json:"min_receive_quantity"`
	ExchangeData       hexutil.Bytes  `json:"exchange_data"`
}

// TransactionResult contains the confirmed (or simulated) transaction details
type TransactionResult struct {
	TxHash            string  `json:"tx_hash,omitempty"`
	BlockNumber       uint64  `json:"block_number,omitempty"`
	GasUsed           uint64  `json:"gas_used"`
	GasLimit          uint64  `json:"gas_limit"`
	EffectiveGasPrice string  `json:"effective_gas_price,omitempty"` // wei
	GasFeeETH         float64 `json:"gas_fee_eth"`
	Success           bool    `json:"success"`
	Simulated         bool    `json:"simulated"`
	ErrorMessage      string  `json:"error_message,omitempty"`
}
