package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"insiderlens/internal/repository"
	"insiderlens/internal/service"
)

// AdminHandler exposes the operator enqueue endpoints. It sits behind the
// admin middleware; request bodies are kept minimal since every action is a
// schedule-and-return.
type AdminHandler struct {
	Svc *service.AdminService
}

func (h *AdminHandler) Register(group *gin.RouterGroup) {
	group.POST("/events/:cik/:owner/:accession/regenerate", h.forceAI)
	group.POST("/ingest", h.ingest)
	group.POST("/backfill", h.backfill)
	group.POST("/tickers/:ticker/prices", h.refreshPrices)
	group.POST("/tickers/:ticker/market-cap", h.refreshMarketCap)
	group.POST("/tickers/:ticker/reparse", h.reparse)
	group.POST("/benchmark", h.refreshBenchmark)
	group.POST("/jobs/:id/retry", h.retryJob)
}

// @Summary Force AI regeneration for one event
// @Tags admin
// @Router /api/v1/admin/events/{cik}/{owner}/{accession}/regenerate [post]
func (h *AdminHandler) forceAI(c *gin.Context) {
	if h.Svc == nil {
		Error(c, http.StatusInternalServerError, "service unavailable", nil)
		return
	}
	key := repository.EventKey{
		IssuerCIK:       c.Param("cik"),
		OwnerKey:        c.Param("owner"),
		AccessionNumber: c.Param("accession"),
	}
	if err := h.Svc.ForceAI(c.Request.Context(), key); err != nil {
		Error(c, http.StatusBadRequest, err.Error(), nil)
		return
	}
	Ok(c, gin.H{"scheduled": true}, nil)
}

type ingestRequest struct {
	IssuerCIK       string `json:"issuer_cik" binding:"required"`
	AccessionNumber string `json:"accession_number" binding:"required"`
	WithAI          bool   `json:"with_ai"`
}

// @Summary Fetch and parse a single accession
// @Tags admin
// @Router /api/v1/admin/ingest [post]
func (h *AdminHandler) ingest(c *gin.Context) {
	if h.Svc == nil {
		Error(c, http.StatusInternalServerError, "service unavailable", nil)
		return
	}
	var req ingestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, err.Error(), nil)
		return
	}
	scheduled, err := h.Svc.IngestAccession(c.Request.Context(),
		strings.TrimSpace(req.IssuerCIK), strings.TrimSpace(req.AccessionNumber), req.WithAI)
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	Ok(c, gin.H{"scheduled": scheduled}, nil)
}

type backfillRequest struct {
	Ticker    string `json:"ticker"`
	IssuerCIK string `json:"issuer_cik"`
}

// @Summary Discover and backfill an issuer's historical Form 4 filings
// @Tags admin
// @Router /api/v1/admin/backfill [post]
func (h *AdminHandler) backfill(c *gin.Context) {
	if h.Svc == nil {
		Error(c, http.StatusInternalServerError, "service unavailable", nil)
		return
	}
	var req backfillRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, err.Error(), nil)
		return
	}
	switch {
	case req.Ticker != "":
		cik, err := h.Svc.BackfillTicker(c.Request.Context(), req.Ticker)
		if err != nil {
			Error(c, http.StatusBadRequest, err.Error(), nil)
			return
		}
		Ok(c, gin.H{"scheduled": true, "issuer_cik": cik}, nil)
	case req.IssuerCIK != "":
		scheduled, err := h.Svc.BackfillCIK(c.Request.Context(), strings.TrimSpace(req.IssuerCIK))
		if err != nil {
			Error(c, http.StatusBadGateway, err.Error(), nil)
			return
		}
		Ok(c, gin.H{"scheduled": scheduled, "issuer_cik": req.IssuerCIK}, nil)
	default:
		Error(c, http.StatusBadRequest, "ticker or issuer_cik required", nil)
	}
}

// @Summary Refresh the price series for a ticker
// @Tags admin
// @Router /api/v1/admin/tickers/{ticker}/prices [post]
func (h *AdminHandler) refreshPrices(c *gin.Context) {
	if h.Svc == nil {
		Error(c, http.StatusInternalServerError, "service unavailable", nil)
		return
	}
	cik, err := h.Svc.RefreshPrices(c.Request.Context(), c.Param("ticker"))
	if err != nil {
		Error(c, http.StatusBadRequest, err.Error(), nil)
		return
	}
	Ok(c, gin.H{"scheduled": true, "issuer_cik": cik}, nil)
}

// @Summary Refresh the market cap snapshot for a ticker
// @Tags admin
// @Router /api/v1/admin/tickers/{ticker}/market-cap [post]
func (h *AdminHandler) refreshMarketCap(c *gin.Context) {
	if h.Svc == nil {
		Error(c, http.StatusInternalServerError, "service unavailable", nil)
		return
	}
	scheduled, err := h.Svc.RefreshMarketCap(c.Request.Context(), c.Param("ticker"))
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	Ok(c, gin.H{"scheduled": scheduled}, nil)
}

// @Summary Reparse every stored filing for a ticker
// @Tags admin
// @Router /api/v1/admin/tickers/{ticker}/reparse [post]
func (h *AdminHandler) reparse(c *gin.Context) {
	if h.Svc == nil {
		Error(c, http.StatusInternalServerError, "service unavailable", nil)
		return
	}
	scheduled, err := h.Svc.ReparseTicker(c.Request.Context(), c.Param("ticker"))
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	Ok(c, gin.H{"scheduled": scheduled}, nil)
}

type benchmarkRequest struct {
	Symbol string `json:"symbol"`
}

// @Summary Refresh the benchmark price series
// @Tags admin
// @Router /api/v1/admin/benchmark [post]
func (h *AdminHandler) refreshBenchmark(c *gin.Context) {
	if h.Svc == nil {
		Error(c, http.StatusInternalServerError, "service unavailable", nil)
		return
	}
	var req benchmarkRequest
	if err := c.ShouldBindJSON(&req); err != nil && c.Request.ContentLength > 0 {
		Error(c, http.StatusBadRequest, err.Error(), nil)
		return
	}
	scheduled, err := h.Svc.RefreshBenchmark(c.Request.Context(), strings.TrimSpace(req.Symbol))
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	Ok(c, gin.H{"scheduled": scheduled}, nil)
}

// @Summary Requeue a terminal job
// @Tags admin
// @Router /api/v1/admin/jobs/{id}/retry [post]
func (h *AdminHandler) retryJob(c *gin.Context) {
	if h.Svc == nil {
		Error(c, http.StatusInternalServerError, "service unavailable", nil)
		return
	}
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		Error(c, http.StatusBadRequest, "invalid job id", nil)
		return
	}
	if err := h.Svc.RetryJob(c.Request.Context(), id); err != nil {
		Error(c, http.StatusBadRequest, err.Error(), nil)
		return
	}
	Ok(c, gin.H{"scheduled": true}, nil)
}
