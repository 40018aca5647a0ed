package handler

import (
	"context"
	"math/big"
	"net/http"

	"carelink/backend/internal/apperr"
	"carelink/backend/internal/auth"
	"carelink/backend/internal/blockchain"
	"carelink/backend/internal/chathub"
	"carelink/backend/internal/localization"
	"carelink/backend/internal/messaging"
	"carelink/backend/internal/pinning"
	"carelink/backend/internal/users"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Pinner uploads a local file to IPFS.
type Pinner interface {
	PinFile(ctx context.Context, path, name string) (*pinning.Pin, error)
}

// Minter mints a file NFT.
type Minter interface {
	MintNFT(ctx context.Context, recipient, tokenURI string) (*big.Int, error)
}

// AccessManager relays the time-limited access contract.
type AccessManager interface {
	GrantAccess(ctx context.Context, nftContract string, tokenID *big.Int, userAddress string, duration *big.Int) error
	RevokeAccess(ctx context.Context, nftContract string, tokenID *big.Int, userAddress string) error
	HasAccess(ctx context.Context, nftContract string, tokenID *big.Int, userAddress string) (bool, error)
	GetAccessGrant(ctx context.Context, nftContract string, tokenID *big.Int, userAddress string) (*blockchain.AccessGrant, error)
}

// Handler містить посилання на ChatHub та сервіси
type Handler struct {
	Hub       *chathub.ManagerService
	Messages  *messaging.Service
	Users     *users.Service
	Tokens    *auth.Tokens
	Localizer *localization.Localizer

	// NFT relay; nil members answer 502.
	Pinner    Pinner
	Minter    Minter
	Access    AccessManager
	UploadDir string

	Log *zap.Logger
}

func NewHandler(hub *chathub.ManagerService, messages *messaging.Service, usersSvc *users.Service, tokens *auth.Tokens, loc *localization.Localizer, log *zap.Logger) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{
		Hub:       hub,
		Messages:  messages,
		Users:     usersSvc,
		Tokens:    tokens,
		Localizer: loc,
		UploadDir: "./uploads",
		Log:       log,
	}
}

// Routes registers every endpoint on r.
func (h *Handler) Routes(r gin.IRouter) {
	r.GET("/healthz", h.Health)
	r.GET("/ws", h.ServeWebSocket)

	u := r.Group("/users")
	u.POST("/signup", h.Signup)
	u.POST("/login", h.Login)
	u.POST("/forgot-password", h.ForgotPassword)
	u.POST("/verify-otp", h.VerifyOTP)
	u.POST("/reset-password", h.ResetPassword)

	m := r.Group("/messages", h.RequireAuth())
	m.GET("/conversation/:otherUserId", h.GetConversation)
	m.GET("/unread", h.GetUnread)
	m.POST("/mark-read", h.MarkRead)
	m.GET("/conversations", h.GetConversations)
	m.POST("/send", h.SendMessage)

	n := r.Group("/nft", h.RequireAuth())
	n.POST("/mint", h.MintNFT)

	a := r.Group("/nft-access", h.RequireAuth())
	a.POST("/grant", h.GrantAccess)
	a.POST("/revoke", h.RevokeAccess)
	a.GET("/check", h.CheckAccess)
	a.GET("/details", h.AccessDetails)
}

func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"online": h.Hub.Registry.Count(),
	})
}

// fail writes err as {"error": msg} with the status for its kind.
func (h *Handler) fail(c *gin.Context, err error) {
	status := apperr.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		h.Log.Error("request failed", zap.String("path", c.FullPath()), zap.Error(err))
	}
	_ = c.Error(err)
	c.AbortWithStatusJSON(status, gin.H{"error": apperr.Message(err)})
}

func badRequest(c *gin.Context, err error) {
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid body", "details": err.Error()})
}
