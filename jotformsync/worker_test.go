package jotformsync

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stageworks/roster_backend/models"
	"github.com/stageworks/roster_backend/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type fakeSource struct {
	subs    []Submission
	err     error
	queries []SubmissionQuery
}

func (f *fakeSource) ListSubmissions(_ context.Context, _ string, q SubmissionQuery) ([]Submission, error) {
	f.queries = append(f.queries, q)
	return f.subs, f.err
}

var importMappings = []FieldMapping{
	{ExternalFieldId: "3", MemberField: FieldLegalName},
	{ExternalFieldId: "4", MemberField: FieldEmail},
}

func makeSubmissions(n int) []Submission {
	subs := make([]Submission, 0, n)
	for i := 1; i <= n; i++ {
		subs = append(subs, Submission{
			ID: fmt.Sprintf("s%d", i),
			Answers: map[string]any{
				"3": fmt.Sprintf("Member Number%d", i),
				"4": fmt.Sprintf("member%d@example.com", i),
			},
		})
	}
	return subs
}

var fixedNow = time.Date(2024, time.July, 4, 12, 0, 0, 0, time.UTC)

func newTestImporter(db *gorm.DB, source SubmissionSource) *Importer {
	return NewImporter(db, source).WithBatching(3, 0).WithClock(func() time.Time { return fixedNow })
}

func TestImporterRunIsIdempotent(t *testing.T) {
	db := testutil.NewTestDB(t)
	ctx := testutil.Ctx("staff")
	source := &fakeSource{subs: makeSubmissions(4)}
	tuition := decimal.NewFromInt(300)
	opts := ImportOptions{FormID: "2401", Mappings: importMappings, DefaultSeason: "2024-2025", DefaultTuition: &tuition}

	first, err := newTestImporter(db, source).Run(ctx, opts)
	require.NoError(t, err)
	assert.True(t, first.Success)
	assert.Equal(t, 4, first.ImportedCount)
	assert.Zero(t, first.DuplicateCount)
	assert.Empty(t, first.Errors)

	var member models.Member
	require.NoError(t, db.Where("external_submission_id = ?", "s2").Take(&member).Error)
	assert.Equal(t, "Member", member.FirstName)
	assert.Equal(t, "Number2", member.LastName)
	assert.Equal(t, models.MemberSourceJotform, member.Source)
	assert.Equal(t, "2024-2025", member.Season)
	assert.True(t, member.TuitionAmount.Equal(tuition))

	second, err := newTestImporter(db, source).Run(ctx, opts)
	require.NoError(t, err)
	assert.True(t, second.Success)
	assert.Zero(t, second.ImportedCount)
	assert.Equal(t, 4, second.DuplicateCount)

	var count int64
	require.NoError(t, db.Model(&models.Member{}).Count(&count).Error)
	assert.EqualValues(t, 4, count)

	log, err := models.GetImportLog(ctx, second.LogId)
	require.NoError(t, err)
	assert.Equal(t, models.ImportLogStatusSuccess, log.Status)
	assert.Equal(t, 4, log.DuplicatesSkipped)
	assert.Equal(t, "staff", log.TriggeredBy)

	settings, err := models.GetIntegrationSettings(ctx, db, "2401")
	require.NoError(t, err)
	require.NotNil(t, settings.LastSyncDate)
	assert.True(t, settings.LastSyncDate.Equal(fixedNow))
}

func TestImporterIsolatesItemFailures(t *testing.T) {
	db := testutil.NewTestDB(t)
	ctx := testutil.Ctx("staff")

	require.NoError(t, db.Callback().Create().Before("gorm:create").Register("test:reject_s4", func(tx *gorm.DB) {
		if m, ok := tx.Statement.Dest.(*models.Member); ok && m.ExternalSubmissionId != nil && *m.ExternalSubmissionId == "s4" {
			_ = tx.AddError(gorm.ErrDuplicatedKey)
		}
	}))

	subs := makeSubmissions(10)
	subs[6].Answers["4"] = "not an email"
	source := &fakeSource{subs: subs}

	var slept []time.Duration
	importer := NewImporter(db, source).WithBatching(3, 20*time.Millisecond).WithClock(func() time.Time { return fixedNow })
	importer.sleep = func(d time.Duration) { slept = append(slept, d) }

	result, err := importer.Run(ctx, ImportOptions{FormID: "2401", Mappings: importMappings})
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Equal(t, 8, result.ImportedCount)
	assert.Equal(t, 2, result.ErrorCount)
	require.Len(t, result.Errors, 2)
	assert.Contains(t, result.Errors[0], "Submission s4")
	assert.Contains(t, result.Errors[1], "Submission s7")
	assert.Len(t, slept, 3, "four batches of three pause three times")

	log, err := models.GetImportLog(ctx, result.LogId)
	require.NoError(t, err)
	assert.Equal(t, models.ImportLogStatusPartial, log.Status)
	assert.Equal(t, 8, log.MembersImported)
	assert.Equal(t, 2, log.ErrorsCount)
	assert.Len(t, log.ErrorList(), 2)
}

func TestImporterFetchFailure(t *testing.T) {
	db := testutil.NewTestDB(t)
	ctx := testutil.Ctx("staff")
	source := &fakeSource{err: errors.New("jotform api error 500: down")}

	result, err := newTestImporter(db, source).Run(ctx, ImportOptions{FormID: "2401", Mappings: importMappings})
	require.Error(t, err)
	require.NotNil(t, result)
	assert.False(t, result.Success)

	log, err := models.GetImportLog(ctx, result.LogId)
	require.NoError(t, err)
	assert.Equal(t, models.ImportLogStatusError, log.Status)
	require.Len(t, log.ErrorList(), 1)
	assert.Contains(t, log.ErrorList()[0], "down")
	assert.NotNil(t, log.CompletedAt)

	_, err = models.GetIntegrationSettings(ctx, db, "2401")
	assert.Error(t, err, "a failed run does not advance the sync date")
}

func TestImporterConfigErrorsLeaveNoLog(t *testing.T) {
	db := testutil.NewTestDB(t)
	ctx := testutil.Ctx("staff")
	source := &fakeSource{subs: makeSubmissions(1)}

	_, err := newTestImporter(db, source).Run(ctx, ImportOptions{FormID: "2401"})
	assert.ErrorIs(t, err, ErrNoFieldMappings)
	_, err = newTestImporter(db, source).Run(ctx, ImportOptions{Mappings: importMappings})
	assert.ErrorIs(t, err, ErrMissingFormID)

	var count int64
	require.NoError(t, db.Model(&models.ImportLog{}).Count(&count).Error)
	assert.Zero(t, count)
	assert.Empty(t, source.queries)
}

func TestImporterIncrementalUsesLastSyncDate(t *testing.T) {
	db := testutil.NewTestDB(t)
	ctx := testutil.Ctx("poller")
	source := &fakeSource{}

	_, err := newTestImporter(db, source).Run(ctx, ImportOptions{FormID: "2401", Mappings: importMappings, Incremental: true})
	require.NoError(t, err)
	require.Len(t, source.queries, 1)
	require.NotNil(t, source.queries[0].Since)
	assert.True(t, source.queries[0].Since.Equal(time.Unix(0, 0)), "first incremental run starts from the epoch")

	_, err = newTestImporter(db, source).Run(ctx, ImportOptions{FormID: "2401", Mappings: importMappings, Incremental: true})
	require.NoError(t, err)
	require.Len(t, source.queries, 2)
	assert.True(t, source.queries[1].Since.Equal(fixedNow))

	_, err = newTestImporter(db, source).Run(ctx, ImportOptions{FormID: "2401", Mappings: importMappings})
	require.NoError(t, err)
	assert.Nil(t, source.queries[2].Since)
}

func TestRunImportRequiresConfiguration(t *testing.T) {
	testutil.NewTestDB(t)
	ctx := testutil.Ctx("staff")

	_, err := RunImport(ctx, ImportOptions{})
	assert.ErrorIs(t, err, ErrMissingFormID)

	_, err = RunImport(ctx, ImportOptions{FormID: "2401"})
	assert.ErrorIs(t, err, ErrMissingAPIKey)

	_, err = RunImport(ctx, ImportOptions{FormID: "2401", APIKey: "key"})
	assert.ErrorIs(t, err, ErrNoFieldMappings)
}
