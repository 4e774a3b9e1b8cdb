// Package httpapi exposes read-only account and book queries over REST
// (§SPEC_FULL domain stack), for dashboards and order-entry clients that
// need to look before they submit an instruction. It never mutates
// engine state; every write still goes through internal/instruction.
package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/merl-labs/clob/internal/global"
	"github.com/merl-labs/clob/internal/market"
	"github.com/merl-labs/clob/internal/ratelimit"
	"github.com/merl-labs/clob/pkg/interfaces"
	"github.com/merl-labs/clob/pkg/types"
)

// Server wires a *gin.Engine over one market (and optional global pool),
// mirroring internal/gateway/server.go's "router holds read dependencies,
// handlers stay thin" shape.
type Server struct {
	Engine *gin.Engine
	market *market.Market
	global *global.Global
	log    interfaces.Logger
}

// Config controls JWT verification for protected routes.
type Config struct {
	JWTSecret string
}

// NewServer builds the router and registers every route. Seat/trader
// lookups are public reads behind JWT auth; /healthz is unauthenticated.
func NewServer(m *market.Market, g *global.Global, cfg Config, log interfaces.Logger) *Server {
	if log == nil {
		log = interfaces.NoopLogger{}
	}
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())

	s := &Server{Engine: engine, market: m, global: g, log: log}

	engine.GET("/healthz", s.handleHealthz)

	authorized := engine.Group("/v1")
	authorized.Use(AuthMiddleware(cfg.JWTSecret))
	authorized.Use(RateLimitMiddleware(ratelimit.New(ratelimit.DefaultConfig())))
	authorized.GET("/market", s.handleMarket)
	authorized.GET("/seats/:trader", s.handleSeat)
	if g != nil {
		authorized.GET("/global/:trader", s.handleGlobalBalance)
	}

	return s
}

func (s *Server) handleHealthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// marketView is the JSON projection of a market's best prices.
type marketView struct {
	BaseMint string `json:"base_mint"`
	QuoteMint string `json:"quote_mint"`
	BestBid  *priceView `json:"best_bid,omitempty"`
	BestAsk  *priceView `json:"best_ask,omitempty"`
}

type priceView struct {
	Mantissa uint32 `json:"mantissa"`
	Exponent int8   `json:"exponent"`
}

func toPriceView(p types.Price) *priceView {
	if p.Mantissa == 0 {
		return nil
	}
	return &priceView{Mantissa: p.Mantissa, Exponent: p.Exponent}
}

func (s *Server) handleMarket(c *gin.Context) {
	base := s.market.Header.BaseMint()
	quote := s.market.Header.QuoteMint()
	c.JSON(http.StatusOK, marketView{
		BaseMint:  hexKey(base),
		QuoteMint: hexKey(quote),
		BestBid:   toPriceView(s.market.Header.BestBid()),
		BestAsk:   toPriceView(s.market.Header.BestAsk()),
	})
}

type seatView struct {
	Trader         string `json:"trader"`
	BaseAvailable  uint64 `json:"base_available"`
	QuoteAvailable uint64 `json:"quote_available"`
	BaseLocked     uint64 `json:"base_locked"`
	QuoteLocked    uint64 `json:"quote_locked"`
}

func (s *Server) handleSeat(c *gin.Context) {
	trader, err := parseTraderKey(c.Param("trader"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid trader key"})
		return
	}
	idx, err := s.market.Seat(trader)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no seat for trader on this market"})
		return
	}
	seat := s.market.SeatAt(idx)
	c.JSON(http.StatusOK, seatView{
		Trader:         hexKey(trader),
		BaseAvailable:  uint64(seat.BaseAvailable),
		QuoteAvailable: uint64(seat.QuoteAvailable),
		BaseLocked:     uint64(seat.BaseLocked),
		QuoteLocked:    uint64(seat.QuoteLocked),
	})
}

type globalBalanceView struct {
	Trader  string `json:"trader"`
	Balance uint64 `json:"balance"`
	Locked  uint64 `json:"locked"`
}

func (s *Server) handleGlobalBalance(c *gin.Context) {
	trader, err := parseTraderKey(c.Param("trader"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid trader key"})
		return
	}
	dep, err := s.global.Balance(trader)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "trader not a global pool member"})
		return
	}
	c.JSON(http.StatusOK, globalBalanceView{
		Trader:  hexKey(trader),
		Balance: dep.Balance,
		Locked:  dep.Locked,
	})
}
