package restapi

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"chain_provider/internal/app/port"
	"chain_provider/internal/domain/entity"
)

// ErrorBody is the JSON shape of every failed response.
type ErrorBody struct {
	Kind    entity.ErrorKind `json:"kind"`
	Message string           `json:"message"`
}

// APIErrorResponse wraps ErrorBody.
type APIErrorResponse struct {
	Error ErrorBody `json:"error"`
}

// APITokensResponse is returned by the batch token lookup.
type APITokensResponse struct {
	Tokens []entity.TokenMetadata `json:"tokens"`
	Errors []entity.BalanceError  `json:"errors,omitempty"`
}

// ChainView is the public projection of a chain definition; endpoint URLs may carry API keys
// and are left out.
type ChainView struct {
	Identifier     string `json:"identifier"`
	ChainID        uint64 `json:"chainId"`
	Name           string `json:"name"`
	Family         string `json:"family"`
	NativeSymbol   string `json:"nativeSymbol"`
	Decimals       uint8  `json:"decimals"`
	Endpoints      int    `json:"endpoints"`
	SupportsQuotes bool   `json:"supportsQuotes"`
}

// EndpointView is the public projection of an endpoint's health; the URL is reduced to its host.
type EndpointView struct {
	Endpoint            string               `json:"endpoint"`
	State               entity.EndpointState `json:"state"`
	ConsecutiveFailures int                  `json:"consecutiveFailures"`
	LastSuccess         *time.Time           `json:"lastSuccess,omitempty"`
	LastFailure         *time.Time           `json:"lastFailure,omitempty"`
	CooldownUntil       *time.Time           `json:"cooldownUntil,omitempty"`
	ProbeInFlight       bool                 `json:"probeInFlight"`
}

// Handler serves the provider REST surface.
type Handler struct {
	provider port.ChainDataProvider
	balances port.BalanceService
	tokens   port.TokenService
	quotes   port.QuoteService
	logger   port.Logger
}

// NewHandler creates a new Handler.
func NewHandler(p port.ChainDataProvider, b port.BalanceService, t port.TokenService, q port.QuoteService, l port.Logger) *Handler {
	return &Handler{provider: p, balances: b, tokens: t, quotes: q, logger: l}
}

// statusFor maps provider error kinds to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, entity.ErrInvalidRequest):
		return http.StatusBadRequest
	case errors.Is(err, entity.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, entity.ErrTimeout):
		return http.StatusGatewayTimeout
	default:
		return http.StatusServiceUnavailable
	}
}

func (h *Handler) fail(c *gin.Context, err error) {
	kind, ok := entity.KindOf(err)
	if !ok {
		kind = entity.KindUpstreamUnavailable
	}
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		cause := err
		var pe *entity.ProviderError
		if errors.As(err, &pe) && pe.Cause != nil {
			cause = pe.Cause
		}
		h.logger.Warn("Request failed", "path", c.FullPath(), "status", status, "error", err, "cause", cause)
	}
	c.AbortWithStatusJSON(status, APIErrorResponse{Error: ErrorBody{Kind: kind, Message: entity.PublicMessage(err)}})
}

// ListChains handles GET /chains.
func (h *Handler) ListChains(c *gin.Context) {
	defs := h.provider.Chains()
	out := make([]ChainView, 0, len(defs))
	for _, d := range defs {
		out = append(out, ChainView{
			Identifier:     d.Identifier,
			ChainID:        d.ChainID,
			Name:           d.Name,
			Family:         string(d.Family),
			NativeSymbol:   d.NativeSymbol,
			Decimals:       d.Decimals,
			Endpoints:      len(d.RPCURLs),
			SupportsQuotes: d.SupportsQuotes(),
		})
	}
	c.JSON(http.StatusOK, gin.H{"chains": out})
}

// EndpointStatus handles GET /chains/:chain/endpoints.
func (h *Handler) EndpointStatus(c *gin.Context) {
	st, err := h.provider.EndpointStatus(c.Param("chain"))
	if err != nil {
		h.fail(c, err)
		return
	}
	out := make([]EndpointView, 0, len(st))
	for _, s := range st {
		out = append(out, EndpointView{
			Endpoint:            entity.RedactURL(s.URL),
			State:               s.State,
			ConsecutiveFailures: s.ConsecutiveFailures,
			LastSuccess:         s.LastSuccess,
			LastFailure:         s.LastFailure,
			CooldownUntil:       s.CooldownUntil,
			ProbeInFlight:       s.ProbeInFlight,
		})
	}
	c.JSON(http.StatusOK, gin.H{"chain": strings.ToLower(c.Param("chain")), "endpoints": out})
}

// GetBalances handles GET /chains/:chain/balances/:address.
// With a single token query parameter it returns that balance, otherwise the wallet view
// of the native asset plus every token listed in token / tokens.
func (h *Handler) GetBalances(c *gin.Context) {
	chain, address := c.Param("chain"), c.Param("address")
	tokens := splitList(c.QueryArray("token"), c.Query("tokens"))

	if len(tokens) == 1 {
		b, err := h.balances.GetBalance(c.Request.Context(), chain, address, tokens[0])
		if err != nil {
			h.fail(c, err)
			return
		}
		c.JSON(http.StatusOK, b)
		return
	}

	res, err := h.balances.GetWalletBalances(c.Request.Context(), chain, address, tokens)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// InvalidateBalances handles POST /chains/:chain/balances/:address/invalidate.
func (h *Handler) InvalidateBalances(c *gin.Context) {
	n, err := h.balances.InvalidateBalances(c.Param("chain"), c.Param("address"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"invalidated": n})
}

// GetToken handles GET /chains/:chain/tokens/:token.
func (h *Handler) GetToken(c *gin.Context) {
	md, err := h.tokens.GetToken(c.Request.Context(), c.Param("chain"), c.Param("token"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, md)
}

// GetTokens handles GET /chains/:chain/tokens?addresses=a,b.
func (h *Handler) GetTokens(c *gin.Context) {
	found, failed, err := h.tokens.GetTokens(c.Request.Context(), c.Param("chain"), splitList(nil, c.Query("addresses")))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, APITokensResponse{Tokens: found, Errors: failed})
}

// GetQuote handles GET /chains/:chain/quotes?tokenIn=&tokenOut=&amount=.
func (h *Handler) GetQuote(c *gin.Context) {
	q, err := h.quotes.GetQuote(c.Request.Context(), c.Param("chain"), c.Query("tokenIn"), c.Query("tokenOut"), c.Query("amount"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, q)
}

func splitList(values []string, csv string) []string {
	var out []string
	all := append(append([]string(nil), values...), csv)
	for _, v := range all {
		for _, part := range strings.Split(v, ",") {
			if p := strings.TrimSpace(part); p != "" {
				out = append(out, p)
			}
		}
	}
	return out
}
