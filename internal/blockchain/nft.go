package blockchain

import (
	"context"
	"errors"
	"math/big"

	"carelink/backend/internal/apperr"

	"github.com/ethereum/go-ethereum/core/types"
)

// Minter calls mintNFT(address,string) on the file NFT contract.
type Minter struct {
	contract *Contract
}

func NewMinter(contract *Contract) *Minter {
	return &Minter{contract: contract}
}

// MintNFT mints a token pointing at tokenURI to recipient and returns its id.
func (m *Minter) MintNFT(ctx context.Context, recipient, tokenURI string) (*big.Int, error) {
	to, err := hexAddress("recipientAddress", recipient)
	if err != nil {
		return nil, apperr.Validation(err.Error())
	}

	receipt, err := m.contract.transact(ctx, "mintNFT", to, tokenURI)
	if err != nil {
		return nil, apperr.Upstream("Failed to mint NFT", err)
	}
	id, err := TokenIDFromReceipt(receipt)
	if err != nil {
		return nil, apperr.Upstream("Failed to mint NFT", err)
	}
	return id, nil
}

// TokenIDFromReceipt reads the token id from the first log of a mint
// receipt. For an ERC-721 Transfer(from, to, tokenId) event it is the third
// indexed topic.
func TokenIDFromReceipt(receipt *types.Receipt) (*big.Int, error) {
	if receipt == nil || len(receipt.Logs) == 0 {
		return nil, errors.New("receipt has no logs")
	}
	topics := receipt.Logs[0].Topics
	if len(topics) < 4 {
		return nil, errors.New("first log is not an indexed Transfer event")
	}
	return new(big.Int).SetBytes(topics[3].Bytes()), nil
}
