/*

This file contains the call interfaces of the external Set Protocol v2 contracts and the
mainnet contracts used to fund and price the vault. Only the functions and events used by
the rebalancer and the operator CLI are listed.

*/

package contracts

import (
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

const setTokenJSON = `[
 {"type":"function","name":"manager","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"address"}]},
 {"type":"function","name":"name","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"string"}]},
 {"type":"function","name":"symbol","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"string"}]},
 {"type":"function","name":"totalSupply","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
 {"type":"function","name":"balanceOf","stateMutability":"view","inputs":[{"name":"account","type":"address"}],"outputs":[{"name":"","type":"uint256"}]},
 {"type":"function","name":"getModules","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"address[]"}]},
 {"type":"function","name":"getComponents","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"address[]"}]},
 {"type":"function","name":"getPositions","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"tuple[]","components":[
   {"name":"component","type":"address"},
   {"name":"module","type":"address"},
   {"name":"unit","type":"int256"},
   {"name":"positionState","type":"uint8"},
   {"name":"data","type":"bytes"}]}]},
 {"type":"function","name":"getDefaultPositionRealUnit","stateMutability":"view","inputs":[{"name":"_component","type":"address"}],"outputs":[{"name":"","type":"int256"}]},
 {"type":"function","name":"getExternalPositionRealUnit","stateMutability":"view","inputs":[{"name":"_component","type":"address"},{"name":"_positionModule","type":"address"}],"outputs":[{"name":"","type":"int256"}]},
 {"type":"function","name":"getTotalComponentRealUnits","stateMutability":"view","inputs":[{"name":"_component","type":"address"}],"outputs":[{"name":"","type":"int256"}]},
 {"type":"function","name":"isInitializedModule","stateMutability":"view","inputs":[{"name":"_module","type":"address"}],"outputs":[{"name":"","type":"bool"}]}
]`

const setTokenCreatorJSON = `[
 {"type":"function","name":"create","stateMutability":"nonpayable","inputs":[
   {"name":"_components","type":"address[]"},
   {"name":"_units","type":"int256[]"},
   {"name":"_modules","type":"address[]"},
   {"name":"_manager","type":"address"},
   {"name":"_name","type":"string"},
   {"name":"_symbol","type":"string"}],"outputs":[{"name":"","type":"address"}]},
 {"type":"event","name":"SetTokenCreated","anonymous":false,"inputs":[
   {"name":"_setToken","type":"address","indexed":true},
   {"name":"_manager","type":"address","indexed":false},
   {"name":"_name","type":"string","indexed":false},
   {"name":"_symbol","type":"string","indexed":false}]}
]`

const tradeModuleJSON = `[
 {"type":"function","name":"initialize","stateMutability":"nonpayable","inputs":[{"name":"_setToken","type":"address"}],"outputs":[]},
 {"type":"function","name":"trade","stateMutability":"nonpayable","inputs":[
   {"name":"_setToken","type":"address"},
   {"name":"_exchangeName","type":"string"},
   {"name":"_sendToken","type":"address"},
   {"name":"_sendQuantity","type":"uint256"},
   {"name":"_receiveToken","type":"address"},
   {"name":"_minReceiveQuantity","type":"uint256"},
   {"name":"_data","type":"bytes"}],"outputs":[]},
 {"type":"event","name":"ComponentExchanged","anonymous":false,"inputs":[
   {"name":"_setToken","type":"address","indexed":true},
   {"name":"_sendToken","type":"address","indexed":true},
   {"name":"_receiveToken","type":"address","indexed":true},
   {"name":"_exchangeAdapter","type":"address","indexed":false},
   {"name":"_totalSendAmount","type":"uint256","indexed":false},
   {"name":"_totalReceiveAmount","type":"uint256","indexed":false},
   {"name":"_protocolFee","type":"uint256","indexed":false}]}
]`

const debtIssuanceModuleJSON = `[
 {"type":"function","name":"initialize","stateMutability":"nonpayable","inputs":[
   {"name":"_setToken","type":"address"},
   {"name":"_maxManagerFee","type":"uint256"},
   {"name":"_managerIssueFee","type":"uint256"},
   {"name":"_managerRedeemFee","type":"uint256"},
   {"name":"_feeRecipient","type":"address"},
   {"name":"_managerIssuanceHook","type":"address"}],"outputs":[]},
 {"type":"function","name":"issue","stateMutability":"nonpayable","inputs":[
   {"name":"_setToken","type":"address"},
   {"name":"_quantity","type":"uint256"},
   {"name":"_to","type":"address"}],"outputs":[]},
 {"type":"function","name":"redeem","stateMutability":"nonpayable","inputs":[
   {"name":"_setToken","type":"address"},
   {"name":"_quantity","type":"uint256"},
   {"name":"_to","type":"address"}],"outputs":[]},
 {"type":"function","name":"getRequiredComponentIssuanceUnits","stateMutability":"view","inputs":[
   {"name":"_setToken","type":"address"},
   {"name":"_quantity","type":"uint256"}],"outputs":[
   {"name":"","type":"address[]"},
   {"name":"","type":"uint256[]"},
   {"name":"","type":"uint256[]"}]}
]`

const erc20JSON = `[
 {"type":"function","name":"symbol","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"string"}]},
 {"type":"function","name":"decimals","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint8"}]},
 {"type":"function","name":"balanceOf","stateMutability":"view","inputs":[{"name":"account","type":"address"}],"outputs":[{"name":"","type":"uint256"}]},
 {"type":"function","name":"allowance","stateMutability":"view","inputs":[{"name":"owner","type":"address"},{"name":"spender","type":"address"}],"outputs":[{"name":"","type":"uint256"}]},
 {"type":"function","name":"approve","stateMutability":"nonpayable","inputs":[{"name":"spender","type":"address"},{"name":"amount","type":"uint256"}],"outputs":[{"name":"","type":"bool"}]}
]`

const wethJSON = `[
 {"type":"function","name":"deposit","stateMutability":"payable","inputs":[],"outputs":[]},
 {"type":"function","name":"withdraw","stateMutability":"nonpayable","inputs":[{"name":"wad","type":"uint256"}],"outputs":[]},
 {"type":"function","name":"balanceOf","stateMutability":"view","inputs":[{"name":"account","type":"address"}],"outputs":[{"name":"","type":"uint256"}]}
]`

const uniswapV2RouterJSON = `[
 {"type":"function","name":"swapExactETHForTokens","stateMutability":"payable","inputs":[
   {"name":"amountOutMin","type":"uint256"},
   {"name":"path","type":"address[]"},
   {"name":"to","type":"address"},
   {"name":"deadline","type":"uint256"}],"outputs":[{"name":"amounts","type":"uint256[]"}]},
 {"type":"function","name":"getAmountsOut","stateMutability":"view","inputs":[
   {"name":"amountIn","type":"uint256"},
   {"name":"path","type":"address[]"}],"outputs":[{"name":"amounts","type":"uint256[]"}]}
]`

const aggregatorJSON = `[
 {"type":"function","name":"decimals","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint8"}]},
 {"type":"function","name":"description","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"string"}]},
 {"type":"function","name":"latestAnswer","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"int256"}]},
 {"type":"function","name":"latestRoundData","stateMutability":"view","inputs":[],"outputs":[
   {"name":"roundId","type":"uint80"},
   {"name":"answer","type":"int256"},
   {"name":"startedAt","type":"uint256"},
   {"name":"updatedAt","type":"uint256"},
   {"name":"answeredInRound","type":"uint80"}]}
]`

// Parsed call interfaces
var (
	SetTokenABI           = mustParse("SetToken", setTokenJSON)
	SetTokenCreatorABI    = mustParse("SetTokenCreator", setTokenCreatorJSON)
	TradeModuleABI        = mustParse("TradeModule", tradeModuleJSON)
	DebtIssuanceModuleABI = mustParse("DebtIssuanceModule", debtIssuanceModuleJSON)
	ERC20ABI              = mustParse("ERC20", erc20JSON)
	WETHABI               = mustParse("WETH9", wethJSON)
	UniswapV2RouterABI    = mustParse("UniswapV2Router02", uniswapV2RouterJSON)
	AggregatorABI         = mustParse("AggregatorV3", aggregatorJSON)
)

func mustParse(name, def string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(def))
	if err != nil {
		panic("contracts: invalid " + name + " ABI: " + err.Error())
	}
	return parsed
}
