package contracts

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Ethereum mainnet deployments. All are overridable through configuration.
var (
	WETHAddress               = common.HexToAddress("0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2")
	USDCAddress               = common.HexToAddress("0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48")
	TradeModuleAddress        = common.HexToAddress("0xFaAB3F8f3678f68AA0d307B66e71b636F82C28BF")
	DebtIssuanceModuleAddress = common.HexToAddress("0xa0a98EB7Af028BE00d04e46e1316808A62a8fd59")
	SetTokenCreatorAddress    = common.HexToAddress("0x2758BF6Af0EC63f1710d3d7890e1C263a247B75E")
	EthUsdAggregatorAddress   = common.HexToAddress("0x5f4eC3Df9cbd43714FE2740f5E3616155c5b8419")
	UniswapV2RouterAddress    = common.HexToAddress("0x7a250d5630B4cF539739dF2C5dAcb4c659F2488D")
)

const (
	// DefaultExchangeName is the TradeModule adapter used for WETH/USDC trades
	DefaultExchangeName = "BalancerV2ExchangeAdapter"
	// DefaultExchangeData is the Balancer V2 WETH/USDC pool id passed to the adapter
	DefaultExchangeData = "0x96646936b91d6b9d7d0c47c496afbf3d6ec7b6f8000200000000000000000019"
	// DefaultGasLimit for every write call
	DefaultGasLimit uint64 = 8_000_000

	USDCDecimals = 6
	WETHDecimals = 18
)

// PreciseUnit is 1e18, the Set Protocol fixed point unit used for fees and SetToken quantities.
var PreciseUnit = new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)
