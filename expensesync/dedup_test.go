package expensesync

import "testing"

func TestMergeBySyncState_KnownStateWins(t *testing.T) {
	unknown := RawRecord{ExternalId: "CARD-1"}
	synced := RawRecord{ExternalId: "CARD-1", SyncState: ProviderSyncStateSynced}

	// unknown first, then known
	merged := MergeBySyncState([]RawRecord{unknown}, []RawRecord{synced})
	if len(merged) != 1 {
		t.Fatalf("expected 1 merged record, got %d", len(merged))
	}
	if merged[0].SyncState != ProviderSyncStateSynced {
		t.Fatalf("expected SYNCED to win over unknown, got %q", merged[0].SyncState)
	}

	// known first, then unknown
	merged = MergeBySyncState([]RawRecord{synced}, []RawRecord{unknown})
	if merged[0].SyncState != ProviderSyncStateSynced {
		t.Fatalf("expected SYNCED to be kept over later unknown, got %q", merged[0].SyncState)
	}
}

func TestMergeBySyncState_FirstSeenWinsBetweenKnownStates(t *testing.T) {
	first := RawRecord{ExternalId: "CARD-2", SyncState: ProviderSyncStateManualSynced}
	second := RawRecord{ExternalId: "CARD-2", SyncState: ProviderSyncStateNotSynced}

	merged := MergeBySyncState([]RawRecord{first}, []RawRecord{second})
	if merged[0].SyncState != ProviderSyncStateManualSynced {
		t.Fatalf("expected first-seen known state to be kept, got %q", merged[0].SyncState)
	}
}

func TestMergeBySyncState_PreservesOrderAndDistinctIds(t *testing.T) {
	merged := MergeBySyncState(
		[]RawRecord{{ExternalId: "CARD-1"}, {ExternalId: "CARD-2"}},
		[]RawRecord{{ExternalId: "CARD-3"}, {ExternalId: "CARD-1", SyncState: ProviderSyncStateError}},
	)
	if len(merged) != 3 {
		t.Fatalf("expected 3 distinct records, got %d", len(merged))
	}
	expectedOrder := []string{"CARD-1", "CARD-2", "CARD-3"}
	for i, id := range expectedOrder {
		if merged[i].ExternalId != id {
			t.Fatalf("position %d: expected %s, got %s", i, id, merged[i].ExternalId)
		}
	}
	if merged[0].SyncState != ProviderSyncStateError {
		t.Fatalf("expected replaced entry to carry the known state, got %q", merged[0].SyncState)
	}
}
