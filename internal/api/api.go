package api

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"csgo-market/internal/market"
	"csgo-market/internal/models"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type APIHandler struct {
	store *market.Store
	log   *zap.Logger
}

func SetupRoutes(r *gin.RouterGroup, store *market.Store, log *zap.Logger) *APIHandler {
	handler := &APIHandler{
		store: store,
		log:   log.Named("api"),
	}

	items := r.Group("/items")
	{
		items.GET("", handler.ListItems)
		items.POST("/resolve", handler.ResolveItem)
		items.GET("/:item_key", handler.GetItem)
		items.GET("/:item_key/sources/:source", handler.GetCurrentValue)
		items.GET("/:item_key/sources/:source/history", handler.GetHistory)
	}

	r.POST("/observations", handler.RecordObservation)
	r.POST("/observations/batch", handler.RecordObservationBatch)
	r.POST("/market/lookup", handler.MarketLookup)

	return handler
}

func ok(c *gin.Context, data any) {
	c.JSON(http.StatusOK, gin.H{"code": 200, "msg": "ok", "data": data})
}

// fail maps store errors onto HTTP statuses.
func (h *APIHandler) fail(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, models.ErrUnknownSource),
		errors.Is(err, models.ErrInvalidIdentity),
		errors.Is(err, models.ErrInvalidObservation):
		status = http.StatusBadRequest
	case errors.Is(err, models.ErrUnknownItem), errors.Is(err, models.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, models.ErrInvariantViolation), errors.Is(err, models.ErrIdentityConflict):
		status = http.StatusConflict
	}

	msg := err.Error()
	if status == http.StatusInternalServerError {
		h.log.Error("request failed", zap.String("path", c.FullPath()), zap.Error(err))
		msg = "internal error"
	}
	c.JSON(status, gin.H{"code": status, "msg": msg})
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, gin.H{"code": http.StatusBadRequest, "msg": msg})
}

// GET /api/v1/items?search=&limit=&offset=
func (h *APIHandler) ListItems(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	params := market.ListParams{
		Search: strings.TrimSpace(c.Query("search")),
		Limit:  limit,
		Offset: offset,
	}.Normalize()
	views, total, err := h.store.ListItems(c.Request.Context(), params)
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, gin.H{"items": views, "total": total, "limit": params.Limit, "offset": params.Offset})
}

// GET /api/v1/items/:item_key
func (h *APIHandler) GetItem(c *gin.Context) {
	view, err := h.store.ReadItem(c.Request.Context(), c.Param("item_key"))
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, view)
}

// GET /api/v1/items/:item_key/sources/:source
func (h *APIHandler) GetCurrentValue(c *gin.Context) {
	src, err := models.ParseSource(c.Param("source"))
	if err != nil {
		h.fail(c, err)
		return
	}
	obs, err := h.store.CurrentValue(c.Request.Context(), c.Param("item_key"), src)
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, obs)
}

// GET /api/v1/items/:item_key/sources/:source/history?limit=100
func (h *APIHandler) GetHistory(c *gin.Context) {
	src, err := models.ParseSource(c.Param("source"))
	if err != nil {
		h.fail(c, err)
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))
	rows, err := h.store.History(c.Request.Context(), c.Param("item_key"), src, limit)
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, rows)
}

type identityRequest struct {
	NameBase       string  `json:"name_base"`
	MarketHashName string  `json:"market_hash_name"`
	StatTrak       bool    `json:"is_stattrak"`
	Souvenir       bool    `json:"is_souvenir"`
	Condition      *string `json:"condition"`
	Phase          *string `json:"phase"`
}

func (r identityRequest) identity() models.Identity {
	if r.NameBase == "" && r.MarketHashName != "" {
		id := models.ParseMarketHashName(r.MarketHashName)
		if r.Phase != nil {
			id.Phase = r.Phase
		}
		return id
	}
	id := models.Identity{
		NameBase: r.NameBase,
		StatTrak: r.StatTrak,
		Souvenir: r.Souvenir,
		Phase:    r.Phase,
	}
	if r.Condition != nil {
		cond := models.Condition(*r.Condition)
		id.Condition = &cond
	}
	return id
}

// POST /api/v1/items/resolve
func (h *APIHandler) ResolveItem(c *gin.Context) {
	var req identityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid body")
		return
	}
	id := req.identity()
	key, err := h.store.ResolveOrCreate(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, gin.H{"item_key": key, "display_name": id.Normalize().DisplayName()})
}

// POST /api/v1/market/lookup
func (h *APIHandler) MarketLookup(c *gin.Context) {
	var req identityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid body")
		return
	}
	view, err := h.store.Lookup(c.Request.Context(), req.identity())
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, view)
}

type observationRequest struct {
	ItemKey      string              `json:"item_key"`
	Source       string              `json:"source"`
	Price        decimal.NullDecimal `json:"price"`
	Qty          int                 `json:"qty"`
	HighestOffer decimal.NullDecimal `json:"highest_offer"`
	ObservedAt   *time.Time          `json:"observed_at"`
}

func (r observationRequest) observation(now time.Time) models.Observation {
	obs := models.Observation{
		ItemKey:      r.ItemKey,
		Source:       models.Source(strings.ToLower(strings.TrimSpace(r.Source))),
		Price:        r.Price,
		Qty:          r.Qty,
		HighestOffer: r.HighestOffer,
		ObservedAt:   now,
	}
	if r.ObservedAt != nil {
		obs.ObservedAt = *r.ObservedAt
	}
	return obs
}

// POST /api/v1/observations
func (h *APIHandler) RecordObservation(c *gin.Context) {
	var req observationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid body")
		return
	}
	obs := req.observation(time.Now())
	if err := h.store.RecordObservation(c.Request.Context(), obs); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"code": http.StatusCreated, "msg": "observation recorded"})
}

// POST /api/v1/observations/batch
func (h *APIHandler) RecordObservationBatch(c *gin.Context) {
	var req struct {
		Observations []observationRequest `json:"observations"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid body")
		return
	}
	now := time.Now()
	batch := make([]models.Observation, 0, len(req.Observations))
	for _, o := range req.Observations {
		batch = append(batch, o.observation(now))
	}

	result, err := h.store.IngestBatch(c.Request.Context(), batch)
	if err != nil {
		h.fail(c, err)
		return
	}
	failed := make([]gin.H, 0, len(result.Failed))
	for _, f := range result.Failed {
		failed = append(failed, gin.H{"index": f.Index, "error": f.Err.Error()})
	}
	ok(c, gin.H{"recorded": result.Recorded, "failed": failed})
}
