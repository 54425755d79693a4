package hub

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"ledger/internal/core"
	"ledger/internal/hubapi"
	"ledger/internal/log"
	"ledger/internal/metrics"
)

const maxBatch = 5000

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":   "ok",
		"sessions": s.feed.sessions(),
	})
}

func (s *Server) handleList(c *gin.Context) {
	ctx := c.Request.Context()
	household := c.Param("household")

	if records, ok := s.snapshots.Get(household); ok {
		metrics.HubCache.WithLabelValues("hit").Inc()
		c.JSON(http.StatusOK, hubapi.ExpensesResponse{Household: household, Expenses: records})
		return
	}
	metrics.HubCache.WithLabelValues("miss").Inc()

	version := s.version(household)
	records, err := s.store.List(ctx, household)
	if err != nil {
		s.storeError(c, "list", household, err)
		return
	}
	if records == nil {
		records = []core.Expense{}
	}
	s.cacheSnapshot(household, version, records)
	c.JSON(http.StatusOK, hubapi.ExpensesResponse{Household: household, Expenses: records})
}

func (s *Server) handleUpsert(c *gin.Context) {
	ctx := c.Request.Context()
	household := c.Param("household")

	var req hubapi.UpsertRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abort(c, http.StatusBadRequest, fmt.Errorf("decode body: %w", err))
		return
	}
	if len(req.Expenses) == 0 {
		abort(c, http.StatusBadRequest, errors.New("no expenses in request"))
		return
	}
	if len(req.Expenses) > maxBatch {
		abort(c, http.StatusRequestEntityTooLarge, fmt.Errorf("batch exceeds %d records", maxBatch))
		return
	}
	// Imported rows may carry defaulted fields, so only the key is required.
	for i, e := range req.Expenses {
		if strings.TrimSpace(e.ID) == "" {
			abort(c, http.StatusBadRequest, fmt.Errorf("expense %d: %w", i, core.ErrEmptyID))
			return
		}
	}

	if err := s.store.Upsert(ctx, household, req.Expenses...); err != nil {
		s.storeError(c, "upsert", household, err)
		return
	}
	s.written(ctx, household)

	log.FromContext(ctx).InfoContext(ctx, "Expenses upserted",
		log.FieldHousehold, household,
		log.FieldCount, len(req.Expenses))
	c.Status(http.StatusNoContent)
}

func (s *Server) handleDelete(c *gin.Context) {
	ctx := c.Request.Context()
	household := c.Param("household")
	id := c.Param("id")

	if err := s.store.Delete(ctx, household, id); err != nil {
		s.storeError(c, "delete", household, err)
		return
	}
	s.written(ctx, household)

	log.FromContext(ctx).InfoContext(ctx, "Expense deleted",
		log.FieldHousehold, household,
		log.FieldExpenseID, id)
	c.Status(http.StatusNoContent)
}

func (s *Server) handleChanges(c *gin.Context) {
	s.feed.serve(c, c.Param("household"))
}

func (s *Server) storeError(c *gin.Context, op, household string, err error) {
	ctx := c.Request.Context()
	log.FromContext(ctx).ErrorContext(ctx, "Store operation failed",
		log.FieldOperation, op,
		log.FieldHousehold, household,
		log.FieldError, err)
	_ = c.Error(err)
	c.AbortWithStatusJSON(http.StatusBadGateway, hubapi.ErrorResponse{Error: op + " failed"})
}
