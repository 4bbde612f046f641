package expensesync

import (
	"context"
	"errors"
	"time"

	"bitbucket.org/mmdatafocus/expenses_backend/config"
	"bitbucket.org/mmdatafocus/expenses_backend/models"
	"bitbucket.org/mmdatafocus/expenses_backend/utils"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// flagChunkSize caps the IN-clause of the flag prefetch; the backend rejects
// larger parameter lists on import-scale runs.
const flagChunkSize = 1000

const lastSuccessCacheKey = "sync:last-success:"

type gormRecordStore struct{}

func NewRecordStore() RecordStore {
	return gormRecordStore{}
}

func (gormRecordStore) FlagsByExternalIds(ctx context.Context, externalIds []string) (map[string]*string, error) {
	db := config.GetDB()
	flags := make(map[string]*string, len(externalIds))

	type flagRow struct {
		ExternalId   string
		FlagCategory *string
	}

	for _, chunk := range utils.ChunkStrings(externalIds, flagChunkSize) {
		var rows []flagRow
		if err := db.WithContext(ctx).
			Model(&models.ExpenseRecord{}).
			Select("external_id", "flag_category").
			Where("external_id IN ?", chunk).
			Scan(&rows).Error; err != nil {
			return nil, err
		}
		for _, row := range rows {
			flags[row.ExternalId] = row.FlagCategory
		}
	}
	return flags, nil
}

func (gormRecordStore) Exists(ctx context.Context, externalId string) (bool, error) {
	db := config.GetDB()
	var count int64
	if err := db.WithContext(ctx).
		Model(&models.ExpenseRecord{}).
		Where("external_id = ?", externalId).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// Upsert inserts or updates by external id in one statement. ApprovalStatus is
// never in the assignment list: it is owned by the approval endpoint alone.
// FlagCategory IS assigned — the orchestrator has already copied the preserved
// value into the record, so the write is a no-op for existing flags.
func (gormRecordStore) Upsert(ctx context.Context, rec *models.ExpenseRecord) error {
	db := config.GetDB()
	return db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "external_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"source_system", "transaction_date", "vendor_name", "amount",
				"currency", "status_raw", "department", "branch", "category",
				"memo", "transaction_type", "cardholder", "flag_category",
				"provider_sync_status", "last_synced_at", "updated_at",
			}),
		}).
		Create(rec).Error
}

type gormRunLog struct{}

func NewRunLog() RunLog {
	return gormRunLog{}
}

func (gormRunLog) Start(ctx context.Context, source models.SourceSystem, triggeredBy string) (*models.SyncRun, error) {
	db := config.GetDB()
	now := time.Now()
	run := &models.SyncRun{
		SourceSystem: source,
		Status:       models.SyncRunStatusRunning,
		TriggeredBy:  triggeredBy,
		StartedAt:    &now,
	}
	if err := db.WithContext(ctx).Create(run).Error; err != nil {
		return nil, err
	}
	return run, nil
}

func (gormRunLog) Finish(ctx context.Context, run *models.SyncRun, summary *RunSummary) error {
	db := config.GetDB()

	if err := db.WithContext(ctx).Model(run).Updates(map[string]interface{}{
		"status":          summary.Status,
		"records_fetched": summary.Fetched,
		"records_created": summary.Created,
		"records_updated": summary.Updated,
		"flags_preserved": summary.FlagsPreserved,
		"error_count":     len(summary.Errors),
		"completed_at":    summary.CompletedAt,
		"duration_ms":     summary.CompletedAt.Sub(summary.StartedAt).Milliseconds(),
	}).Error; err != nil {
		return err
	}

	for _, recordErr := range summary.Errors {
		row := models.SyncRunError{
			SyncRunId:  run.ID,
			ExternalId: recordErr.ExternalId,
			Message:    recordErr.Message,
		}
		if err := db.WithContext(ctx).Create(&row).Error; err != nil {
			return err
		}
	}

	// The cached last-success time is stale after any terminal run.
	_ = config.RemoveRedisKey(lastSuccessCacheKey + string(run.SourceSystem))
	return nil
}

// LastSuccessfulSyncTime reads the most recent success-run completion time,
// redis-cached between runs.
func LastSuccessfulSyncTime(ctx context.Context, source models.SourceSystem) (*time.Time, error) {
	cacheKey := lastSuccessCacheKey + string(source)
	var cached time.Time
	if found, err := config.GetRedisObject(cacheKey, &cached); err == nil && found {
		return &cached, nil
	}

	db := config.GetDB()
	var run models.SyncRun
	query := db.WithContext(ctx).Where("status = ?", models.SyncRunStatusSuccess)
	if source != "" {
		query = query.Where("source_system = ?", source)
	}
	if err := query.Order("completed_at desc").Take(&run).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	if run.CompletedAt != nil {
		_ = config.SetRedisObject(cacheKey, *run.CompletedAt, 10*time.Minute)
	}
	return run.CompletedAt, nil
}

// UpdateFlag is the only sanctioned path that changes a flag outside the
// auto-assign-when-absent rule. nil clears the flag.
func UpdateFlag(ctx context.Context, expenseId int, flagCategory *string) error {
	db := config.GetDB()
	result := db.WithContext(ctx).
		Model(&models.ExpenseRecord{}).
		Where("id = ?", expenseId).
		Update("flag_category", flagCategory)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return utils.ErrorRecordNotFound
	}
	return nil
}

func UpdateApprovalStatus(ctx context.Context, expenseId int, status *models.ApprovalStatus) error {
	db := config.GetDB()
	result := db.WithContext(ctx).
		Model(&models.ExpenseRecord{}).
		Where("id = ?", expenseId).
		Update("approval_status", status)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return utils.ErrorRecordNotFound
	}
	return nil
}

type ExpenseFilter struct {
	Source       models.SourceSystem
	FlagCategory string
	Limit        int
}

func ListExpenseRecords(ctx context.Context, filter ExpenseFilter) ([]models.ExpenseRecord, error) {
	db := config.GetDB()
	query := db.WithContext(ctx).Model(&models.ExpenseRecord{})
	if filter.Source != "" {
		query = query.Where("source_system = ?", filter.Source)
	}
	if filter.FlagCategory != "" {
		query = query.Where("flag_category = ?", filter.FlagCategory)
	}
	limit := filter.Limit
	if limit <= 0 || limit > 1000 {
		limit = 100
	}
	var records []models.ExpenseRecord
	if err := query.Order("transaction_date desc").Limit(limit).Find(&records).Error; err != nil {
		return nil, err
	}
	return records, nil
}

func ListSyncRuns(ctx context.Context, limit int) ([]models.SyncRun, error) {
	db := config.GetDB()
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	var runs []models.SyncRun
	if err := db.WithContext(ctx).Order("id desc").Limit(limit).Find(&runs).Error; err != nil {
		return nil, err
	}
	return runs, nil
}

func GetSyncRunWithErrors(ctx context.Context, id int) (*models.SyncRun, []models.SyncRunError, error) {
	db := config.GetDB()
	var run models.SyncRun
	if err := db.WithContext(ctx).Where("id = ?", id).Take(&run).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, utils.ErrorRecordNotFound
		}
		return nil, nil, err
	}
	var errs []models.SyncRunError
	if err := db.WithContext(ctx).Where("sync_run_id = ?", run.ID).Order("id").Find(&errs).Error; err != nil {
		return nil, nil, err
	}
	return &run, errs, nil
}
