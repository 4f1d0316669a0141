package types

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Position state values reported by SetToken.getPositions
const (
	PositionStateDefault  uint8 = 0
	PositionStateExternal uint8 = 1
)

// SetPosition is one entry of SetToken.getPositions. Unit is a per-share real unit in the
// component's smallest denomination.
type SetPosition struct {
	Component     common.Address `json:"component"`
	Module        common.Address `json:"module"`
	Unit          *big.Int       `json:"unit"`
	PositionState uint8          `json:"position_state"`
	Data          []byte         `json:"data,omitempty"`
}
