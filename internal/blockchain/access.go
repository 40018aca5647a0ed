package blockchain

import (
	"context"
	"fmt"
	"math/big"

	"carelink/backend/internal/apperr"
)

// AccessGrant is the time window a user holds on a token.
type AccessGrant struct {
	StartTime uint64 `json:"startTime"`
	EndTime   uint64 `json:"endTime"`
	IsActive  bool   `json:"isActive"`
}

// AccessClient relays calls to the NFTTimeAccess contract.
type AccessClient struct {
	contract *Contract
}

func NewAccessClient(contract *Contract) *AccessClient {
	return &AccessClient{contract: contract}
}

func accessArgs(nftContract, userAddress string) ([]interface{}, error) {
	nft, err := hexAddress("nftContract", nftContract)
	if err != nil {
		return nil, apperr.Validation(err.Error())
	}
	user, err := hexAddress("userAddress", userAddress)
	if err != nil {
		return nil, apperr.Validation(err.Error())
	}
	return []interface{}{nft, user}, nil
}

func (a *AccessClient) GrantAccess(ctx context.Context, nftContract string, tokenID *big.Int, userAddress string, duration *big.Int) error {
	addrs, err := accessArgs(nftContract, userAddress)
	if err != nil {
		return err
	}
	if _, err := a.contract.transact(ctx, "grantAccess", addrs[0], tokenID, addrs[1], duration); err != nil {
		return apperr.Upstream("Failed to grant access", err)
	}
	return nil
}

func (a *AccessClient) RevokeAccess(ctx context.Context, nftContract string, tokenID *big.Int, userAddress string) error {
	addrs, err := accessArgs(nftContract, userAddress)
	if err != nil {
		return err
	}
	if _, err := a.contract.transact(ctx, "revokeAccess", addrs[0], tokenID, addrs[1]); err != nil {
		return apperr.Upstream("Failed to revoke access", err)
	}
	return nil
}

func (a *AccessClient) HasAccess(ctx context.Context, nftContract string, tokenID *big.Int, userAddress string) (bool, error) {
	addrs, err := accessArgs(nftContract, userAddress)
	if err != nil {
		return false, err
	}
	out, err := a.contract.call(ctx, "hasAccess", addrs[0], tokenID, addrs[1])
	if err != nil {
		return false, apperr.Upstream("Failed to check access", err)
	}
	if len(out) != 1 {
		return false, apperr.Upstream("Failed to check access", fmt.Errorf("hasAccess returned %d values", len(out)))
	}
	ok, isBool := out[0].(bool)
	if !isBool {
		return false, apperr.Upstream("Failed to check access", fmt.Errorf("hasAccess returned %T", out[0]))
	}
	return ok, nil
}

func (a *AccessClient) GetAccessGrant(ctx context.Context, nftContract string, tokenID *big.Int, userAddress string) (*AccessGrant, error) {
	addrs, err := accessArgs(nftContract, userAddress)
	if err != nil {
		return nil, err
	}
	out, err := a.contract.call(ctx, "getAccessGrant", addrs[0], tokenID, addrs[1])
	if err != nil {
		return nil, apperr.Upstream("Failed to get access grant", err)
	}
	grant, err := DecodeAccessGrant(out)
	if err != nil {
		return nil, apperr.Upstream("Failed to get access grant", err)
	}
	return grant, nil
}

// DecodeAccessGrant converts the (uint256 startTime, uint256 endTime, bool isActive) outputs.
func DecodeAccessGrant(out []interface{}) (*AccessGrant, error) {
	if len(out) != 3 {
		return nil, fmt.Errorf("getAccessGrant returned %d values", len(out))
	}
	start, ok1 := out[0].(*big.Int)
	end, ok2 := out[1].(*big.Int)
	active, ok3 := out[2].(bool)
	if !ok1 || !ok2 || !ok3 {
		return nil, fmt.Errorf("getAccessGrant returned (%T, %T, %T)", out[0], out[1], out[2])
	}
	return &AccessGrant{StartTime: start.Uint64(), EndTime: end.Uint64(), IsActive: active}, nil
}
