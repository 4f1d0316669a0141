package vault

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/ethmom/rebalancer/internal/types"
)

// VaultReader defines the read-only view of a SetToken used by the composition reader and the
// operator CLI. Every call goes to the chain, nothing is cached between cycles.
type VaultReader interface {
	// Address returns the SetToken address.
	Address() common.Address

	// Manager returns the account allowed to call manager-only modules.
	Manager(ctx context.Context) (common.Address, error)

	TotalSupply(ctx context.Context) (*big.Int, error)
	BalanceOf(ctx context.Context, account common.Address) (*big.Int, error)

	GetModules(ctx context.Context) ([]common.Address, error)
	IsInitializedModule(ctx context.Context, module common.Address) (bool, error)

	GetComponents(ctx context.Context) ([]common.Address, error)
	GetPositions(ctx context.Context) ([]types.SetPosition, error)

	// GetDefaultPositionRealUnit returns the per-share real unit of a component held by the
	// SetToken itself.
	GetDefaultPositionRealUnit(ctx context.Context, component common.Address) (*big.Int, error)

	// GetTotalComponentRealUnits adds external positions to the default position.
	GetTotalComponentRealUnits(ctx context.Context, component common.Address) (*big.Int, error)
}

// VaultManager adds trade execution to the reader.
type VaultManager interface {
	VaultReader

	// ExecuteTrade submits TradeModule.trade and blocks until it is mined.
	ExecuteTrade(ctx context.Context, instr types.TradeInstruction) (*types.TransactionResult, error)
}
