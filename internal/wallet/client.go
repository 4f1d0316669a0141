package wallet

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/ethmom/rebalancer/internal/logger"
	"github.com/ethmom/rebalancer/internal/types"
	"github.com/ethmom/rebalancer/internal/utils"
)

// Error definitions for zero-tolerance error handling
var (
	ErrInvalidConfig       = errors.New("invalid configuration")
	ErrKeyInvalid          = errors.New("signing key is invalid")
	ErrRPCConnectionFailed = errors.New("RPC connection failed")
	ErrTxBuildFailed       = errors.New("transaction build failed")
	ErrTxBroadcastFailed   = errors.New("transaction broadcast failed")
	ErrTxNotMined          = errors.New("transaction was not mined in time")
	ErrTxReverted          = errors.New("transaction reverted")
	ErrGasEstimationFailed = errors.New("gas estimation failed")
)

var walletLogger = logger.GetForComponent("wallet_client")

// ChainBackend is the part of an Ethereum JSON-RPC client used by the wallet.
// *ethclient.Client satisfies it.
type ChainBackend interface {
	bind.ContractBackend
	bind.DeployBackend
	ChainID(ctx context.Context) (*big.Int, error)
	BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error)
}

// SigningClient signs and sends transactions with the vault manager key.
type SigningClient struct {
	backend        ChainBackend
	key            *ecdsa.PrivateKey
	address        common.Address
	chainID        *big.Int
	gasLimit       uint64
	confirmTimeout time.Duration
}

// ClientConfig holds the settings for NewSigningClient
type ClientConfig struct {
	PrivateKeyHex  string
	ChainID        uint64 // 0 asks the node
	GasLimit       uint64 // 0 lets the node estimate
	ConfirmTimeout time.Duration
}

// Dial connects to an Ethereum JSON-RPC endpoint.
func Dial(ctx context.Context, rpcURL string) (*ethclient.Client, error) {
	if strings.TrimSpace(rpcURL) == "" {
		return nil, errors.Join(ErrInvalidConfig, errors.New("RPC URL cannot be empty"))
	}
	client, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, errors.Join(ErrRPCConnectionFailed, err)
	}
	return client, nil
}

// NewSigningClient creates a signing client with validation
func NewSigningClient(ctx context.Context, backend ChainBackend, cfg ClientConfig) (*SigningClient, error) {
	if backend == nil {
		return nil, errors.Join(ErrInvalidConfig, errors.New("chain backend cannot be nil"))
	}
	if cfg.ConfirmTimeout <= 0 {
		return nil, errors.Join(ErrInvalidConfig, errors.New("confirmation timeout must be positive"))
	}

	key, err := crypto.HexToECDSA(strings.TrimPrefix(strings.TrimSpace(cfg.PrivateKeyHex), "0x"))
	if err != nil {
		return nil, errors.Join(ErrKeyInvalid, err)
	}

	chainID := new(big.Int).SetUint64(cfg.ChainID)
	if cfg.ChainID == 0 {
		chainID, err = backend.ChainID(ctx)
		if err != nil {
			return nil, errors.Join(ErrRPCConnectionFailed, fmt.Errorf("failed to read chain id: %w", err))
		}
	}

	client := &SigningClient{
		backend:        backend,
		key:            key,
		address:        crypto.PubkeyToAddress(key.PublicKey),
		chainID:        chainID,
		gasLimit:       cfg.GasLimit,
		confirmTimeout: cfg.ConfirmTimeout,
	}

	walletLogger.Info().
		Str("address", client.address.Hex()).
		Str("chainID", chainID.String()).
		Uint64("gasLimit", cfg.GasLimit).
		Msg("Signing client created successfully")

	return client, nil
}

// Address returns the signer address.
func (s *SigningClient) Address() common.Address {
	return s.address
}

// Backend returns the chain backend used for calls and transactions.
func (s *SigningClient) Backend() ChainBackend {
	return s.backend
}

// ChainID returns the chain id used for signing.
func (s *SigningClient) ChainID() *big.Int {
	return new(big.Int).Set(s.chainID)
}

// TransactOpts returns fresh transaction options bound to ctx. value is the ETH sent with the call.
func (s *SigningClient) TransactOpts(ctx context.Context, value *big.Int) (*bind.TransactOpts, error) {
	opts, err := bind.NewKeyedTransactorWithChainID(s.key, s.chainID)
	if err != nil {
		return nil, errors.Join(ErrTxBuildFailed, err)
	}
	opts.Context = ctx
	opts.GasLimit = s.gasLimit
	opts.Value = value
	return opts, nil
}

// ETHBalance returns the signer's ETH balance in wei.
func (s *SigningClient) ETHBalance(ctx context.Context) (*big.Int, error) {
	return s.backend.BalanceAt(ctx, s.address, nil)
}

// EstimateGas runs eth_estimateGas for calldata sent from the signer.
func (s *SigningClient) EstimateGas(ctx context.Context, to common.Address, data []byte, value *big.Int) (uint64, error) {
	gas, err := s.backend.EstimateGas(ctx, ethereum.CallMsg{
		From:  s.address,
		To:    &to,
		Data:  data,
		Value: value,
	})
	if err != nil {
		return 0, errors.Join(ErrGasEstimationFailed, err)
	}
	return gas, nil
}

// WaitForTransactionInclusion blocks until tx is mined or the confirmation timeout passes.
// A mined but reverted transaction returns its receipt together with ErrTxReverted.
func (s *SigningClient) WaitForTransactionInclusion(ctx context.Context, tx *ethtypes.Transaction) (*ethtypes.Receipt, error) {
	if tx == nil {
		return nil, errors.New("transaction cannot be nil")
	}

	walletLogger.Info().
		Str("txHash", tx.Hash().Hex()).
		Dur("timeout", s.confirmTimeout).
		Msg("Waiting for transaction to be included in block...")

	waitCtx, cancel := context.WithTimeout(ctx, s.confirmTimeout)
	defer cancel()

	receipt, err := bind.WaitMined(waitCtx, s.backend, tx)
	if err != nil {
		return nil, errors.Join(ErrTxNotMined, fmt.Errorf("transaction %s: %w", tx.Hash().Hex(), err))
	}

	if receipt.Status != ethtypes.ReceiptStatusSuccessful {
		walletLogger.Error().
			Str("txHash", tx.Hash().Hex()).
			Uint64("blockNumber", receipt.BlockNumber.Uint64()).
			Uint64("gasUsed", receipt.GasUsed).
			Msg("Transaction reverted")
		return receipt, fmt.Errorf("%w: %s", ErrTxReverted, tx.Hash().Hex())
	}

	walletLogger.Info().
		Str("txHash", tx.Hash().Hex()).
		Uint64("blockNumber", receipt.BlockNumber.Uint64()).
		Uint64("gasUsed", receipt.GasUsed).
		Msg("Transaction found in block")

	return receipt, nil
}

// ReceiptToResult builds the transaction result recorded in cycle snapshots.
func ReceiptToResult(tx *ethtypes.Transaction, receipt *ethtypes.Receipt) *types.TransactionResult {
	result := &types.TransactionResult{}
	if tx != nil {
		result.TxHash = tx.Hash().Hex()
		result.GasLimit = tx.Gas()
	}
	if receipt == nil {
		return result
	}

	result.Success = receipt.Status == ethtypes.ReceiptStatusSuccessful
	result.GasUsed = receipt.GasUsed
	if receipt.BlockNumber != nil {
		result.BlockNumber = receipt.BlockNumber.Uint64()
	}
	if receipt.EffectiveGasPrice != nil {
		result.EffectiveGasPrice = receipt.EffectiveGasPrice.String()
		fee := new(big.Int).Mul(receipt.EffectiveGasPrice, new(big.Int).SetUint64(receipt.GasUsed))
		if feeETH, err := utils.BigIntToFloat64(fee, 18); err == nil {
			result.GasFeeETH = feeETH
		} else {
			walletLogger.Warn().Err(err).Str("fee", fee.String()).Msg("Failed to convert gas fee")
		}
	}
	return result
}
