// Package blockchain relays NFT mint and time-access calls to deployed
// contracts over Ethereum JSON-RPC. Contract semantics live on chain; this
// package only signs, sends and decodes.
package blockchain

import (
	"context"
	"crypto/ecdsa"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"go.uber.org/zap"
)

var ErrTxFailed = errors.New("transaction reverted")

// Chain is a signing connection to one network.
type Chain struct {
	client  *ethclient.Client
	key     *ecdsa.PrivateKey
	chainID *big.Int
	log     *zap.Logger
}

// Dial connects to rpcURL and loads the signing key (hex, optional 0x prefix).
func Dial(ctx context.Context, rpcURL, hexKey string, log *zap.Logger) (*Chain, error) {
	if log == nil {
		log = zap.NewNop()
	}
	key, err := crypto.HexToECDSA(strings.TrimPrefix(hexKey, "0x"))
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}

	client, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", rpcURL, err)
	}
	chainID, err := client.ChainID(ctx)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("chain id: %w", err)
	}

	log.Info("ethereum connected",
		zap.String("rpc", rpcURL),
		zap.String("chain_id", chainID.String()),
		zap.String("wallet", crypto.PubkeyToAddress(key.PublicKey).Hex()))
	return &Chain{client: client, key: key, chainID: chainID, log: log}, nil
}

func (c *Chain) Close() { c.client.Close() }

// ParseArtifact reads an ABI from a compiler artifact ({"abi": [...]}) or a bare ABI array.
func ParseArtifact(data []byte) (abi.ABI, error) {
	var artifact struct {
		ABI json.RawMessage `json:"abi"`
	}
	raw := data
	if err := json.Unmarshal(data, &artifact); err == nil && len(artifact.ABI) > 0 {
		raw = artifact.ABI
	}
	parsed, err := abi.JSON(strings.NewReader(string(raw)))
	if err != nil {
		return abi.ABI{}, fmt.Errorf("parse abi: %w", err)
	}
	return parsed, nil
}

func LoadArtifact(path string) (abi.ABI, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return abi.ABI{}, fmt.Errorf("read artifact: %w", err)
	}
	return ParseArtifact(data)
}

// Contract is a deployed contract bound to a Chain.
type Contract struct {
	chain   *Chain
	address common.Address
	bound   *bind.BoundContract
}

func (c *Chain) Bind(address string, parsed abi.ABI) (*Contract, error) {
	if !common.IsHexAddress(address) {
		return nil, fmt.Errorf("invalid contract address %q", address)
	}
	addr := common.HexToAddress(address)
	return &Contract{
		chain:   c,
		address: addr,
		bound:   bind.NewBoundContract(addr, parsed, c.client, c.client, c.client),
	}, nil
}

// transact signs and sends method, then waits for the receipt.
func (k *Contract) transact(ctx context.Context, method string, args ...interface{}) (*types.Receipt, error) {
	opts, err := bind.NewKeyedTransactorWithChainID(k.chain.key, k.chain.chainID)
	if err != nil {
		return nil, err
	}
	opts.Context = ctx

	tx, err := k.bound.Transact(opts, method, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", method, err)
	}
	k.chain.log.Debug("transaction sent", zap.String("method", method), zap.String("tx", tx.Hash().Hex()))

	receipt, err := bind.WaitMined(ctx, k.chain.client, tx)
	if err != nil {
		return nil, fmt.Errorf("%s: wait mined: %w", method, err)
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return nil, fmt.Errorf("%s %s: %w", method, tx.Hash().Hex(), ErrTxFailed)
	}
	return receipt, nil
}

func (k *Contract) call(ctx context.Context, method string, args ...interface{}) ([]interface{}, error) {
	var out []interface{}
	if err := k.bound.Call(&bind.CallOpts{Context: ctx}, &out, method, args...); err != nil {
		return nil, fmt.Errorf("%s: %w", method, err)
	}
	return out, nil
}

func hexAddress(field, value string) (common.Address, error) {
	if !common.IsHexAddress(value) {
		return common.Address{}, fmt.Errorf("%s is not a valid address", field)
	}
	return common.HexToAddress(value), nil
}
