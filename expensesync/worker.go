package expensesync

import (
	"context"
	"errors"
	"fmt"
	"time"

	"bitbucket.org/mmdatafocus/expenses_backend/config"
	"bitbucket.org/mmdatafocus/expenses_backend/models"
	"github.com/bsm/redislock"
	"github.com/sirupsen/logrus"
)

// ErrRunInProgress is returned when another run against the same source holds
// the per-source lock.
var ErrRunInProgress = errors.New("a sync run for this source is already in progress")

// runLockTTL bounds how long a crashed run can block its source.
const runLockTTL = 30 * time.Minute

var customFieldLabels = []string{"Department", "Branch", "Category"}

// Worker drives one end-to-end sync run: fetch, normalize, preserve flags,
// upsert, accumulate stats. Records are processed sequentially; a single bad
// record never aborts the run, only a failed fetch does.
type Worker struct {
	store  RecordStore
	runLog RunLog
	logger *logrus.Logger
}

func NewWorker(store RecordStore, runLog RunLog, logger *logrus.Logger) *Worker {
	return &Worker{store: store, runLog: runLog, logger: logger}
}

// Run executes an incremental sync for one source from fromDate.
func (w *Worker) Run(ctx context.Context, adapter SourceAdapter, fromDate time.Time, triggeredBy string) (*RunSummary, error) {
	lock, err := w.obtainRunLock(ctx, adapter.Source())
	if err != nil {
		return nil, err
	}
	if lock != nil {
		defer func() { _ = lock.Release(context.Background()) }()
	}

	run, err := w.runLog.Start(ctx, adapter.Source(), triggeredBy)
	if err != nil {
		return nil, err
	}

	records, err := adapter.FetchRecords(ctx, fromDate)
	if err != nil {
		return w.finishFailedFetch(ctx, run, adapter.Source(), err), nil
	}
	return w.process(ctx, run, adapter, records), nil
}

// RunHistorical executes a bulk import for a partitioned source over the
// trailing daysBack window, querying every downstream-sync-state partition and
// merging the overlap. Returns the per-state breakdown of the merged set.
func (w *Worker) RunHistorical(ctx context.Context, adapter PartitionedAdapter, daysBack int, triggeredBy string) (*RunSummary, map[string]int, error) {
	lock, err := w.obtainRunLock(ctx, adapter.Source())
	if err != nil {
		return nil, nil, err
	}
	if lock != nil {
		defer func() { _ = lock.Release(context.Background()) }()
	}

	run, err := w.runLog.Start(ctx, adapter.Source(), triggeredBy)
	if err != nil {
		return nil, nil, err
	}

	partitions := make([][]RawRecord, 0, len(ProviderSyncStates))
	for _, state := range ProviderSyncStates {
		partition, err := adapter.FetchRecordsBySyncState(ctx, daysBack, state)
		if err != nil {
			// Without every partition the record set is not exhaustive, so a
			// partition fetch failure is fatal like any other fetch failure.
			return w.finishFailedFetch(ctx, run, adapter.Source(), fmt.Errorf("partition %s: %w", state, err)), nil, nil
		}
		partitions = append(partitions, partition)
	}

	records := MergeBySyncState(partitions...)
	breakdown := make(map[string]int)
	for _, rec := range records {
		state := rec.SyncState
		if state == "" {
			state = "UNKNOWN"
		}
		breakdown[state]++
	}
	return w.process(ctx, run, adapter, records), breakdown, nil
}

func (w *Worker) process(ctx context.Context, run *models.SyncRun, adapter SourceAdapter, records []RawRecord) *RunSummary {
	summary := &RunSummary{
		Fetched:   len(records),
		StartedAt: derefTime(run.StartedAt),
	}

	externalIds := make([]string, 0, len(records))
	for _, rec := range records {
		externalIds = append(externalIds, rec.ExternalId)
	}
	flags, err := w.store.FlagsByExternalIds(ctx, externalIds)
	if err != nil {
		return w.finishFailedFetch(ctx, run, adapter.Source(), fmt.Errorf("flag prefetch: %w", err))
	}

	userNames := w.loadUserNames(ctx, adapter)
	fieldUUIDs := w.loadFieldUUIDs(ctx, adapter)
	resolver, _ := adapter.(CustomFieldResolver)

	for _, raw := range records {
		created, preserved, recErr := w.processRecord(ctx, adapter, raw, flags, userNames, fieldUUIDs, resolver)
		if recErr != nil {
			summary.Errors = append(summary.Errors, RecordError{ExternalId: raw.ExternalId, Message: recErr.Error()})
			config.LogError(w.logger, "expensesync", "processRecord", raw.ExternalId, nil, recErr)
			continue
		}
		if created {
			summary.Created++
		} else {
			summary.Updated++
		}
		if preserved {
			summary.FlagsPreserved++
		}
	}

	switch {
	case summary.Fetched > 0 && len(summary.Errors) == summary.Fetched:
		summary.Status = models.SyncRunStatusFailed
	case len(summary.Errors) > 0:
		summary.Status = models.SyncRunStatusPartial
	default:
		summary.Status = models.SyncRunStatusSuccess
	}
	summary.CompletedAt = time.Now()

	if err := w.runLog.Finish(ctx, run, summary); err != nil {
		config.LogError(w.logger, "expensesync", "process", "finish run log", run.ID, err)
	}
	return summary
}

func (w *Worker) processRecord(
	ctx context.Context,
	adapter SourceAdapter,
	raw RawRecord,
	flags map[string]*string,
	userNames map[string]string,
	fieldUUIDs map[string]string,
	resolver CustomFieldResolver,
) (created bool, preserved bool, err error) {
	detail, derr := adapter.FetchDetails(ctx, raw.ExternalId)
	if derr != nil {
		// Degraded data, not a processing failure: normalize from fallbacks.
		detail = nil
	}
	items, ierr := adapter.FetchLineItems(ctx, raw.ExternalId)
	if ierr != nil {
		items = nil
	}

	nc := w.resolveNames(ctx, adapter, raw, userNames)
	if resolver != nil && len(items) == 0 {
		nc.Department = resolver.ExtractCustomFieldValue(raw, fieldUUIDs["Department"])
		nc.Branch = resolver.ExtractCustomFieldValue(raw, fieldUUIDs["Branch"])
		nc.Category = resolver.ExtractCustomFieldValue(raw, fieldUUIDs["Category"])
	}

	rec := Normalize(raw, detail, items, nc, time.Now())
	rec.FlagCategory, preserved = DecideFlag(flags, raw.ExternalId, rec.Category)

	// The upsert primitive does not distinguish create from update, so
	// classify with an existence check first.
	exists, err := w.store.Exists(ctx, raw.ExternalId)
	if err != nil {
		return false, false, err
	}
	if err := w.store.Upsert(ctx, rec); err != nil {
		return false, false, err
	}
	return !exists, preserved, nil
}

func (w *Worker) resolveNames(ctx context.Context, adapter SourceAdapter, raw RawRecord, userNames map[string]string) NormalizeContext {
	nc := NormalizeContext{}
	if raw.Source == models.SourceSystemERP {
		name, err := adapter.FetchRelatedName(ctx, raw.VendorRef)
		if err != nil || name == "" {
			name = FallbackVendorName(raw.VendorRef)
		}
		nc.VendorName = name
		return nc
	}

	vendor := raw.MerchantName
	if vendor == "" {
		vendor = placeholderMerchant
	}
	nc.VendorName = vendor

	holder := placeholderUnknownUser
	if name, ok := userNames[raw.CardholderId]; ok {
		holder = name
	}
	nc.Cardholder = &holder
	return nc
}

func (w *Worker) loadUserNames(ctx context.Context, adapter SourceAdapter) map[string]string {
	directory, ok := adapter.(UserDirectory)
	if !ok {
		return nil
	}
	mapping, err := directory.UserNameMapping(ctx)
	if err != nil {
		// Name resolution degrades to placeholders; the run continues.
		config.LogError(w.logger, "expensesync", "loadUserNames", string(adapter.Source()), nil, err)
		return nil
	}
	return mapping
}

func (w *Worker) loadFieldUUIDs(ctx context.Context, adapter SourceAdapter) map[string]string {
	resolver, ok := adapter.(CustomFieldResolver)
	if !ok {
		return nil
	}
	uuids := make(map[string]string, len(customFieldLabels))
	for _, label := range customFieldLabels {
		uuid, err := resolver.CustomFieldUUIDByLabel(ctx, label)
		if err != nil {
			config.LogError(w.logger, "expensesync", "loadFieldUUIDs", label, nil, err)
			continue
		}
		uuids[label] = uuid
	}
	return uuids
}

func (w *Worker) finishFailedFetch(ctx context.Context, run *models.SyncRun, source models.SourceSystem, fetchErr error) *RunSummary {
	summary := &RunSummary{
		Status:      models.SyncRunStatusFailed,
		StartedAt:   derefTime(run.StartedAt),
		CompletedAt: time.Now(),
		Errors:      []RecordError{{ExternalId: string(source), Message: fetchErr.Error()}},
	}
	config.LogError(w.logger, "expensesync", "fetch", string(source), nil, fetchErr)
	if err := w.runLog.Finish(ctx, run, summary); err != nil {
		config.LogError(w.logger, "expensesync", "finishFailedFetch", "finish run log", run.ID, err)
	}
	return summary
}

// obtainRunLock serializes runs per source. When Redis is unavailable the run
// proceeds unguarded, matching how the rest of the codebase treats the lock
// service as best-effort infrastructure.
func (w *Worker) obtainRunLock(ctx context.Context, source models.SourceSystem) (*redislock.Lock, error) {
	locker := config.GetRedisLock()
	if locker == nil {
		return nil, nil
	}
	lock, err := locker.Obtain(ctx, "sync-lock:"+string(source), runLockTTL, nil)
	if err == redislock.ErrNotObtained {
		return nil, ErrRunInProgress
	}
	if err != nil {
		w.logger.WithFields(logrus.Fields{
			"module": "expensesync",
			"source": string(source),
		}).Warn("error obtaining run lock; proceeding without lock: " + err.Error())
		return nil, nil
	}
	return lock, nil
}

func derefTime(t *time.Time) time.Time {
	if t == nil {
		return time.Now()
	}
	return *t
}
