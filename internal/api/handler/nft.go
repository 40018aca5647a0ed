package handler

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"math/big"
	"net/http"
	"os"
	"path/filepath"

	"carelink/backend/internal/apperr"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

var errRelayDisabled = apperr.New(apperr.KindUpstream, "NFT relay is not configured")

// uploadName is a random 32 hex character file name with the original extension.
func uploadName(original string) (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf) + filepath.Ext(original), nil
}

func mintFailed(c *gin.Context, err error) {
	c.JSON(apperr.HTTPStatus(err), gin.H{"success": false, "error": apperr.Message(err)})
}

// MintNFT stores the upload, pins it to IPFS and mints a token pointing at it.
func (h *Handler) MintNFT(c *gin.Context) {
	if h.Pinner == nil || h.Minter == nil {
		mintFailed(c, errRelayDisabled)
		return
	}

	file, err := c.FormFile("file")
	if err != nil {
		mintFailed(c, apperr.Validation("file is required"))
		return
	}
	recipient := c.PostForm("recipientAddress")
	if recipient == "" {
		mintFailed(c, apperr.Validation("recipientAddress is required"))
		return
	}

	name, err := uploadName(file.Filename)
	if err != nil {
		mintFailed(c, apperr.Wrap(apperr.KindInternal, "name upload", err))
		return
	}
	if err := os.MkdirAll(h.UploadDir, 0o750); err != nil {
		mintFailed(c, apperr.Wrap(apperr.KindInternal, "create upload dir", err))
		return
	}
	dst := filepath.Join(h.UploadDir, name)
	if err := c.SaveUploadedFile(file, dst); err != nil {
		mintFailed(c, apperr.Wrap(apperr.KindInternal, "save upload", err))
		return
	}

	ctx := c.Request.Context()
	pin, err := h.Pinner.PinFile(ctx, dst, file.Filename)
	if err != nil {
		h.Log.Warn("pinning failed", zap.String("file", name), zap.Error(err))
		mintFailed(c, err)
		return
	}

	tokenID, err := h.Minter.MintNFT(ctx, recipient, pin.URL)
	if err != nil {
		h.Log.Warn("mint failed", zap.String("ipfs", pin.URL), zap.Error(err))
		mintFailed(c, err)
		return
	}

	h.Log.Info("nft minted", zap.String("token_id", tokenID.String()), zap.String("ipfs", pin.URL), zap.String("user_id", currentUserID(c)))
	c.JSON(http.StatusOK, gin.H{"success": true, "tokenId": tokenID, "ipfsUrl": pin.URL})
}

type accessRequest struct {
	NFTContract       string      `json:"nftContract" form:"nftContract" binding:"required"`
	TokenID           json.Number `json:"tokenId" form:"tokenId" binding:"required"`
	UserAddress       string      `json:"userAddress" form:"userAddress" binding:"required"`
	DurationInSeconds json.Number `json:"durationInSeconds" form:"durationInSeconds"`
}

func parseUint256(field string, n json.Number) (*big.Int, error) {
	v, ok := new(big.Int).SetString(string(n), 10)
	if !ok || v.Sign() < 0 || v.BitLen() > 256 {
		return nil, apperr.Validation(field + " must be a non-negative integer")
	}
	return v, nil
}

// bindAccess reads the body for POST and the query string for GET.
func (h *Handler) bindAccess(c *gin.Context) (*accessRequest, *big.Int, bool) {
	if h.Access == nil {
		h.fail(c, errRelayDisabled)
		return nil, nil, false
	}

	var req accessRequest
	var err error
	if c.Request.Method == http.MethodGet {
		err = c.ShouldBindQuery(&req)
	} else {
		err = c.ShouldBindJSON(&req)
	}
	if err != nil {
		badRequest(c, err)
		return nil, nil, false
	}

	tokenID, err := parseUint256("tokenId", req.TokenID)
	if err != nil {
		h.fail(c, err)
		return nil, nil, false
	}
	return &req, tokenID, true
}

func (h *Handler) GrantAccess(c *gin.Context) {
	req, tokenID, ok := h.bindAccess(c)
	if !ok {
		return
	}
	if req.DurationInSeconds == "" {
		h.fail(c, apperr.Validation("durationInSeconds is required"))
		return
	}
	duration, err := parseUint256("durationInSeconds", req.DurationInSeconds)
	if err != nil {
		h.fail(c, err)
		return
	}

	if err := h.Access.GrantAccess(c.Request.Context(), req.NFTContract, tokenID, req.UserAddress, duration); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (h *Handler) RevokeAccess(c *gin.Context) {
	req, tokenID, ok := h.bindAccess(c)
	if !ok {
		return
	}
	if err := h.Access.RevokeAccess(c.Request.Context(), req.NFTContract, tokenID, req.UserAddress); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (h *Handler) CheckAccess(c *gin.Context) {
	req, tokenID, ok := h.bindAccess(c)
	if !ok {
		return
	}
	has, err := h.Access.HasAccess(c.Request.Context(), req.NFTContract, tokenID, req.UserAddress)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"hasAccess": has})
}

func (h *Handler) AccessDetails(c *gin.Context) {
	req, tokenID, ok := h.bindAccess(c)
	if !ok {
		return
	}
	grant, err := h.Access.GetAccessGrant(c.Request.Context(), req.NFTContract, tokenID, req.UserAddress)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, grant)
}
