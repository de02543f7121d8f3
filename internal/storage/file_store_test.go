package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"cvtailor/internal/errors"
	"cvtailor/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *FileStore {
	t.Helper()
	store, err := NewFileStore(t.TempDir(), nil)
	require.NoError(t, err)
	store.now = func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) }
	return store
}

func record(id string, score float64) types.ATSScoreRecord {
	return types.ATSScoreRecord{
		ID:              id,
		FinalATSScore:   score,
		CategoryStatus:  types.StatusGood,
		Inconsistencies: []types.Inconsistency{},
	}
}

func TestCompanySlug(t *testing.T) {
	tests := []struct {
		input    string
		expected string
		wantErr  bool
	}{
		{"Acme Corp", "acme-corp", false},
		{"  ACME, Inc. ", "acme-inc", false},
		{"../../etc/passwd", "etc-passwd", false},
		{"", "", true},
		{"!!!", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			slug, err := CompanySlug(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.IsValidation(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, slug)
		})
	}
}

func TestAppendIsAppendOnly(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Append(ctx, "Acme Corp", record("a", 55)))
	require.NoError(t, store.Append(ctx, "acme corp", record("b", 72.5)))

	entries, err := store.List(ctx, "ACME CORP")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "a", entries[0].ID)
	assert.Equal(t, "b", entries[1].ID)
	assert.Equal(t, 72.5, entries[1].FinalATSScore)

	data, err := os.ReadFile(filepath.Join(store.dir, "acme-corp", AnalysisFileName))
	require.NoError(t, err)

	var doc map[string]any
	require.NoError(t, json.Unmarshal(data, &doc))
	assert.Len(t, doc[EntriesKey], 2)
	assert.Equal(t, "Acme Corp", doc["company"])
	assert.Equal(t, "2026-01-02T03:04:05Z", doc["updated_at"])
}

func TestAppendPreservesOtherDocumentKeys(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	dir := filepath.Join(store.dir, "globex")
	require.NoError(t, os.MkdirAll(dir, 0750))
	existing := `{"job_description": "Staff engineer", "ats_calculation_entries": [{"id": "old", "final_ats_score": 40}]}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, AnalysisFileName), []byte(existing), 0600))

	require.NoError(t, store.Append(ctx, "Globex", record("new", 80)))

	data, err := os.ReadFile(filepath.Join(dir, AnalysisFileName))
	require.NoError(t, err)
	var doc map[string]any
	require.NoError(t, json.Unmarshal(data, &doc))
	assert.Equal(t, "Staff engineer", doc["job_description"])

	entries, err := store.List(ctx, "Globex")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "old", entries[0].ID)
	assert.Equal(t, "new", entries[1].ID)
}

func TestAppendLeavesPastEntriesUntouched(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	dir := filepath.Join(store.dir, "initech")
	require.NoError(t, os.MkdirAll(dir, 0750))
	legacy := `{"final_ats_score":71.5,"legacy_note":"kept?","analysis_version":"v1"}`
	oddType := `{"final_ats_score":"71.5"}`
	existing := `{"ats_calculation_entries":[` + legacy + `,` + oddType + `]}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, AnalysisFileName), []byte(existing), 0600))

	require.NoError(t, store.Append(ctx, "Initech", record("new", 80)))

	data, err := os.ReadFile(filepath.Join(dir, AnalysisFileName))
	require.NoError(t, err)
	var doc struct {
		Entries []json.RawMessage `json:"ats_calculation_entries"`
	}
	require.NoError(t, json.Unmarshal(data, &doc))
	require.Len(t, doc.Entries, 3)

	compact := func(raw json.RawMessage) string {
		var buf bytes.Buffer
		require.NoError(t, json.Compact(&buf, raw))
		return buf.String()
	}
	assert.Equal(t, legacy, compact(doc.Entries[0]))
	assert.Equal(t, oddType, compact(doc.Entries[1]))

	var added types.ATSScoreRecord
	require.NoError(t, json.Unmarshal(doc.Entries[2], &added))
	assert.Equal(t, "new", added.ID)
}

func TestListUnknownCompanyIsEmpty(t *testing.T) {
	entries, err := newTestStore(t).List(context.Background(), "nobody")
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestListMalformedDocument(t *testing.T) {
	store := newTestStore(t)
	dir := filepath.Join(store.dir, "broken")
	require.NoError(t, os.MkdirAll(dir, 0750))
	require.NoError(t, os.WriteFile(filepath.Join(dir, AnalysisFileName), []byte("[1,2"), 0600))

	_, err := store.List(context.Background(), "broken")
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeStorage))
}

func TestConcurrentAppendsKeepEveryRecord(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			assert.NoError(t, store.Append(ctx, "initech", record(fmt.Sprintf("r%d", i), float64(i))))
		}(i)
	}
	wg.Wait()

	entries, err := store.List(ctx, "initech")
	require.NoError(t, err)
	assert.Len(t, entries, 20)
}

func TestCompanies(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Append(ctx, "Zeta", record("z", 1)))
	require.NoError(t, store.Append(ctx, "Alpha", record("a", 1)))
	require.NoError(t, os.MkdirAll(filepath.Join(store.dir, "empty-dir"), 0750))

	companies, err := store.Companies(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"alpha", "zeta"}, companies)
}

func TestCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := newTestStore(t).Append(ctx, "acme", record("x", 1))
	assert.ErrorIs(t, err, context.Canceled)
}
