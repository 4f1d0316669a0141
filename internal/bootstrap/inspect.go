package bootstrap

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/ethmom/rebalancer/internal/types"
	"github.com/ethmom/rebalancer/internal/vault"
)

// ModuleState is a module address and whether it has been initialized.
type ModuleState struct {
	Address     common.Address `json:"address"`
	Initialized bool           `json:"initialized"`
}

// ComponentUnits holds the per-share units of one component.
type ComponentUnits struct {
	Component   common.Address `json:"component"`
	DefaultUnit *big.Int       `json:"default_unit"`
	TotalUnit   *big.Int       `json:"total_unit"`
}

// Inspection is a read-only view of a deployed SetToken.
type Inspection struct {
	SetToken    common.Address      `json:"set_token"`
	Manager     common.Address      `json:"manager"`
	TotalSupply *big.Int            `json:"total_supply"`
	Holder      common.Address      `json:"holder,omitempty"`
	HolderBal   *big.Int            `json:"holder_balance,omitempty"`
	Modules     []ModuleState       `json:"modules"`
	Components  []ComponentUnits    `json:"components"`
	Positions   []types.SetPosition `json:"positions"`
}

// Inspect reads manager, modules, components, positions, units and supply. A non-zero holder
// also gets its SetToken balance reported.
func Inspect(ctx context.Context, reader vault.VaultReader, holder common.Address) (*Inspection, error) {
	out := &Inspection{SetToken: reader.Address(), Holder: holder}

	var err error
	if out.Manager, err = reader.Manager(ctx); err != nil {
		return nil, fmt.Errorf("manager: %w", err)
	}
	if out.TotalSupply, err = reader.TotalSupply(ctx); err != nil {
		return nil, fmt.Errorf("total supply: %w", err)
	}
	if holder != (common.Address{}) {
		if out.HolderBal, err = reader.BalanceOf(ctx, holder); err != nil {
			return nil, fmt.Errorf("balance of %s: %w", holder.Hex(), err)
		}
	}

	modules, err := reader.GetModules(ctx)
	if err != nil {
		return nil, fmt.Errorf("modules: %w", err)
	}
	for _, m := range modules {
		initialized, err := reader.IsInitializedModule(ctx, m)
		if err != nil {
			return nil, fmt.Errorf("module %s: %w", m.Hex(), err)
		}
		out.Modules = append(out.Modules, ModuleState{Address: m, Initialized: initialized})
	}

	components, err := reader.GetComponents(ctx)
	if err != nil {
		return nil, fmt.Errorf("components: %w", err)
	}
	for _, c := range components {
		def, err := reader.GetDefaultPositionRealUnit(ctx, c)
		if err != nil {
			return nil, fmt.Errorf("default unit of %s: %w", c.Hex(), err)
		}
		total, err := reader.GetTotalComponentRealUnits(ctx, c)
		if err != nil {
			return nil, fmt.Errorf("total units of %s: %w", c.Hex(), err)
		}
		out.Components = append(out.Components, ComponentUnits{Component: c, DefaultUnit: def, TotalUnit: total})
	}

	if out.Positions, err = reader.GetPositions(ctx); err != nil {
		return nil, fmt.Errorf("positions: %w", err)
	}
	return out, nil
}
