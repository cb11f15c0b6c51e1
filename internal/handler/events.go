package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"insiderlens/internal/repository"
	"insiderlens/internal/service"
)

type EventHandler struct {
	Svc *service.EventQueryService
}

func (h *EventHandler) Register(r *gin.Engine) {
	group := r.Group("/api/v1")
	group.GET("/events", h.feed)
	group.GET("/events/:cik/:owner/:accession", h.detail)
	group.GET("/tickers", h.tickers)
	group.GET("/tickers/:ticker/events", h.tickerFeed)
}

// @Summary Paged insider event feed, grouped by filing
// @Tags events
// @Router /api/v1/events [get]
func (h *EventHandler) feed(c *gin.Context) {
	if h.Svc == nil {
		Error(c, http.StatusInternalServerError, "service unavailable", nil)
		return
	}
	params := eventParams(c)
	page, err := h.Svc.Feed(c.Request.Context(), params)
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	Ok(c, page.Groups, paginationMeta(page.Limit, page.Offset, page.Total))
}

// @Summary Single event detail with rows, outcomes, stats, AI and trade plan
// @Tags events
// @Router /api/v1/events/{cik}/{owner}/{accession} [get]
func (h *EventHandler) detail(c *gin.Context) {
	if h.Svc == nil {
		Error(c, http.StatusInternalServerError, "service unavailable", nil)
		return
	}
	detail, err := h.Svc.Detail(c.Request.Context(),
		c.Param("cik"), c.Param("owner"), c.Param("accession"))
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	if detail == nil {
		Error(c, http.StatusNotFound, "event not found", nil)
		return
	}
	Ok(c, detail, nil)
}

// @Summary Ticker directory with event counts
// @Tags tickers
// @Router /api/v1/tickers [get]
func (h *EventHandler) tickers(c *gin.Context) {
	if h.Svc == nil {
		Error(c, http.StatusInternalServerError, "service unavailable", nil)
		return
	}
	limit := intQuery(c, "limit", 100)
	offset := intQuery(c, "offset", 0)
	rows, err := h.Svc.Tickers(c.Request.Context(), repository.TickerDirectoryParams{
		Limit:  limit,
		Offset: offset,
		Query:  strQueryPtr(c, "q"),
	})
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	Ok(c, rows, map[string]any{"limit": limit, "offset": offset})
}

// @Summary Event feed scoped to one ticker
// @Tags tickers
// @Router /api/v1/tickers/{ticker}/events [get]
func (h *EventHandler) tickerFeed(c *gin.Context) {
	if h.Svc == nil {
		Error(c, http.StatusInternalServerError, "service unavailable", nil)
		return
	}
	params := eventParams(c)
	page, issuer, err := h.Svc.TickerFeed(c.Request.Context(), c.Param("ticker"), params)
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	if issuer == nil {
		Error(c, http.StatusNotFound, "unknown ticker", nil)
		return
	}
	meta := paginationMeta(page.Limit, page.Offset, page.Total)
	meta["issuer_cik"] = issuer.IssuerCIK
	meta["issuer_name"] = issuer.IssuerName
	Ok(c, page.Groups, meta)
}

func eventParams(c *gin.Context) repository.ListEventsParams {
	params := repository.ListEventsParams{
		Limit:          intQuery(c, "limit", 50),
		Offset:         intQuery(c, "offset", 0),
		Ticker:         strQueryPtr(c, "ticker"),
		SinceDate:      strQueryPtr(c, "since"),
		Side:           strQueryPtr(c, "side"),
		ClusterOnly:    boolQueryDefault(c, "cluster_only", false),
		AIOnly:         boolQueryDefault(c, "ai_only", false),
		OfficerOnly:    boolQueryDefault(c, "officer_only", false),
		DirectorOnly:   boolQueryDefault(c, "director_only", false),
		TenPercentOnly: boolQueryDefault(c, "ten_percent_only", false),
	}
	if raw := strings.TrimSpace(c.Query("min_dollars")); raw != "" {
		if value, err := decimal.NewFromString(raw); err == nil && value.Sign() > 0 {
			params.MinDollars = &value
		}
	}
	if c.Query("sort") == "ai_best" {
		params.Sort = repository.SortAIBestDesc
	}
	return params
}
