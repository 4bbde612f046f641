package expensesync

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"bitbucket.org/mmdatafocus/expenses_backend/models"
	"bitbucket.org/mmdatafocus/expenses_backend/models/reports"
	"bitbucket.org/mmdatafocus/expenses_backend/utils"
	"github.com/gin-gonic/gin"
)

const defaultSyncWindowDays = 30

// Service wires the worker to its concrete source adapters for the HTTP
// trigger surface.
type Service struct {
	worker *Worker
	erp    SourceAdapter
	card   PartitionedAdapter
}

func NewService(worker *Worker, erp SourceAdapter, card PartitionedAdapter) *Service {
	return &Service{worker: worker, erp: erp, card: card}
}

func (s *Service) SyncERPHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		s.runSync(c, s.erp)
	}
}

func (s *Service) SyncCardHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		s.runSync(c, s.card)
	}
}

func (s *Service) runSync(c *gin.Context, adapter SourceAdapter) {
	var req TriggerSyncRequest
	// Body is optional; an empty body means the default window.
	_ = c.ShouldBindJSON(&req)

	fromDate := time.Now().AddDate(0, 0, -defaultSyncWindowDays)
	if req.FromDate != nil {
		parsed, err := time.Parse("2006-01-02", strings.TrimSpace(*req.FromDate))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "fromDate must be YYYY-MM-DD"})
			return
		}
		fromDate = parsed
	}

	triggeredBy, _ := utils.GetTriggeredByFromContext(c.Request.Context())
	if triggeredBy == "" {
		triggeredBy = models.SyncTriggeredManual
	}

	summary, err := s.worker.Run(c.Request.Context(), adapter, fromDate, triggeredBy)
	if err != nil {
		if errors.Is(err, ErrRunInProgress) {
			c.JSON(http.StatusConflict, gin.H{"success": false, "message": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": err.Error()})
		return
	}
	c.JSON(http.StatusOK, summaryToResponse(summary))
}

func (s *Service) SyncCardHistoricalHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req HistoricalSyncRequest
		_ = c.ShouldBindJSON(&req)

		daysBack := req.DaysBack
		if daysBack <= 0 {
			daysBack = 90
		}
		if daysBack > 365 {
			daysBack = 365
		}

		triggeredBy, _ := utils.GetTriggeredByFromContext(c.Request.Context())
		if triggeredBy == "" {
			triggeredBy = models.SyncTriggeredManual
		}

		summary, breakdown, err := s.worker.RunHistorical(c.Request.Context(), s.card, daysBack, triggeredBy)
		if err != nil {
			if errors.Is(err, ErrRunInProgress) {
				c.JSON(http.StatusConflict, gin.H{"success": false, "message": err.Error()})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": err.Error()})
			return
		}

		to := time.Now()
		from := to.AddDate(0, 0, -daysBack)
		c.JSON(http.StatusOK, HistoricalSyncResponse{
			SyncResponse:        summaryToResponse(summary),
			DateRange:           fmt.Sprintf("%s - %s", from.Format("2006-01-02"), to.Format("2006-01-02")),
			DaysImported:        daysBack,
			SyncStatusBreakdown: breakdown,
		})
	}
}

func LastSuccessHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		source := models.SourceSystem(strings.ToUpper(strings.TrimSpace(c.Query("source"))))
		if source != "" && source != models.SourceSystemERP && source != models.SourceSystemCard {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "source must be ERP or CARD"})
			return
		}

		lastSync, err := LastSuccessfulSyncTime(c.Request.Context(), source)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": err.Error()})
			return
		}
		c.JSON(http.StatusOK, LastSyncResponse{Success: true, LastSyncTime: formatTime(lastSync)})
	}
}

func FlagUpdateHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req FlagUpdateRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "expenseId is required"})
			return
		}

		if req.FlagCategory != nil && strings.TrimSpace(*req.FlagCategory) == "" {
			// Blank and null both mean "clear the flag".
			req.FlagCategory = nil
		}

		if err := UpdateFlag(c.Request.Context(), req.ExpenseId, req.FlagCategory); err != nil {
			if errors.Is(err, utils.ErrorRecordNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"success": false, "message": "expense not found"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true})
	}
}

func ApprovalUpdateHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req ApprovalUpdateRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "expenseId is required"})
			return
		}

		status, err := models.ParseApprovalStatus(req.ApprovalStatus)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": err.Error()})
			return
		}

		if err := UpdateApprovalStatus(c.Request.Context(), req.ExpenseId, status); err != nil {
			if errors.Is(err, utils.ErrorRecordNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"success": false, "message": "expense not found"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true})
	}
}

func ListExpensesHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		filter := ExpenseFilter{
			Source:       models.SourceSystem(strings.ToUpper(strings.TrimSpace(c.Query("source")))),
			FlagCategory: strings.TrimSpace(c.Query("flag")),
		}
		if v := strings.TrimSpace(c.Query("limit")); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				filter.Limit = n
			}
		}

		records, err := ListExpenseRecords(c.Request.Context(), filter)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "items": records})
	}
}

func ExportExpensesHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		records, err := ListExpenseRecords(c.Request.Context(), ExpenseFilter{Limit: 1000})
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": err.Error()})
			return
		}

		c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		c.Header("Content-Disposition", "attachment; filename=expenses.xlsx")
		if err := reports.WriteExpenseExcel(c.Writer, records); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": err.Error()})
		}
	}
}

func SyncHistoryHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		limit := 20
		if v := strings.TrimSpace(c.Query("limit")); v != "" {
			if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 100 {
				limit = n
			}
		}

		runs, err := ListSyncRuns(c.Request.Context(), limit)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": err.Error()})
			return
		}

		items := make([]SyncRunResponse, 0, len(runs))
		for _, run := range runs {
			items = append(items, mapRunToResponse(run))
		}
		c.JSON(http.StatusOK, gin.H{"items": items})
	}
}

func SyncRunDetailHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := strconv.Atoi(c.Param("id"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "invalid run id"})
			return
		}

		run, runErrors, err := GetSyncRunWithErrors(c.Request.Context(), id)
		if err != nil {
			if errors.Is(err, utils.ErrorRecordNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"success": false, "message": "not found"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": err.Error()})
			return
		}

		errs := make([]RecordError, 0, len(runErrors))
		for _, e := range runErrors {
			errs = append(errs, RecordError{ExternalId: e.ExternalId, Message: e.Message})
		}
		c.JSON(http.StatusOK, SyncRunDetailResponse{
			SyncRunResponse: mapRunToResponse(*run),
			Errors:          errs,
		})
	}
}

func summaryToResponse(summary *RunSummary) SyncResponse {
	message := "sync completed"
	switch summary.Status {
	case models.SyncRunStatusPartial:
		message = "sync completed with errors"
	case models.SyncRunStatusFailed:
		message = "sync failed"
	}
	return SyncResponse{
		Success: summary.Status != models.SyncRunStatusFailed,
		Message: message,
		Stats: SyncStats{
			Fetched:        summary.Fetched,
			Created:        summary.Created,
			Updated:        summary.Updated,
			FlagsPreserved: summary.FlagsPreserved,
			Errors:         len(summary.Errors),
		},
		Errors: summary.Errors,
	}
}

func mapRunToResponse(run models.SyncRun) SyncRunResponse {
	return SyncRunResponse{
		ID:             run.ID,
		SourceSystem:   string(run.SourceSystem),
		Status:         run.Status,
		TriggeredBy:    run.TriggeredBy,
		StartedAt:      formatTime(run.StartedAt),
		CompletedAt:    formatTime(run.CompletedAt),
		DurationMs:     run.DurationMs,
		RecordsFetched: run.RecordsFetched,
		RecordsCreated: run.RecordsCreated,
		RecordsUpdated: run.RecordsUpdated,
		FlagsPreserved: run.FlagsPreserved,
		ErrorCount:     run.ErrorCount,
	}
}

func formatTime(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.UTC().Format(time.RFC3339)
	return &s
}
