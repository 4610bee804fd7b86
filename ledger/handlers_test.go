package ledger

import (
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stageworks/roster_backend/models"
	"github.com/stageworks/roster_backend/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newLedgerRouter(username string, role models.UserRole) http.Handler {
	r := testutil.NewRouter(username, role)
	RegisterRoutes(r.Group("/api"))
	return r
}

func createPoolPayment(t *testing.T, h http.Handler, externalId string, paidOn string) models.UnmatchedPayment {
	t.Helper()
	w := testutil.Do(t, h, http.MethodPost, "/api/unmatched-payments", map[string]any{
		"amount":              "200.00",
		"payment_date":        paidOn,
		"method":              "check",
		"external_payment_id": externalId,
		"notes":               "check #1042",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	return testutil.DecodeJSON[models.UnmatchedPayment](t, w)
}

func TestAssignAndUnassignOverHTTP(t *testing.T) {
	db := testutil.NewTestDB(t)
	staff := newLedgerRouter("maria", models.UserRoleStaff)
	admin := newLedgerRouter("root", models.UserRoleAdmin)
	member := testutil.SeedMember(t, db, models.Member{
		FirstName: "Ana", LastName: "Lee", Email: "ana@example.com", Season: "2024-2025",
		TuitionAmount: decimal.NewFromInt(500),
	})

	w := testutil.Do(t, admin, http.MethodPost, "/api/payment-schedules", map[string]any{
		"season": "2024-2025", "name": "Deposit", "due_date": "2024-09-01T00:00:00Z", "amount": "200",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	schedule := testutil.DecodeJSON[models.PaymentSchedule](t, w)

	pool := createPoolPayment(t, staff, "chk-1042", "2024-09-03T15:00:00Z")
	assert.Equal(t, models.UnmatchedSourceManual, pool.Source)

	w = testutil.Do(t, staff, http.MethodPost, "/api/payments/1/unassign", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = testutil.Do(t, staff, http.MethodPost, fmt.Sprintf("/api/unmatched-payments/%d/assign", pool.ID), map[string]any{})
	assert.Equal(t, http.StatusBadRequest, w.Code, "member_id is required")

	w = testutil.Do(t, staff, http.MethodPost, fmt.Sprintf("/api/unmatched-payments/%d/assign", pool.ID), map[string]any{
		"member_id": member.ID, "payment_schedule_id": schedule.ID,
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	payment := testutil.DecodeJSON[models.Payment](t, w)
	assert.True(t, payment.IsLate)
	assert.Equal(t, "maria", payment.AssignedBy)

	w = testutil.Do(t, staff, http.MethodPost, fmt.Sprintf("/api/unmatched-payments/%d/assign", pool.ID), map[string]any{"member_id": member.ID})
	assert.Equal(t, http.StatusNotFound, w.Code, "the pool row is gone after assignment")

	w = testutil.Do(t, staff, http.MethodGet, fmt.Sprintf("/api/members/%d/ledger", member.ID), nil)
	require.Equal(t, http.StatusOK, w.Code)
	ledger := testutil.DecodeJSON[MemberLedger](t, w)
	require.Len(t, ledger.Payments, 1)
	assert.True(t, ledger.Payments[0].Late)
	require.NotNil(t, ledger.Payments[0].ScheduleName)
	assert.Equal(t, "Deposit", *ledger.Payments[0].ScheduleName)
	assert.True(t, ledger.TotalPaid.Equal(decimal.NewFromInt(200)))
	assert.True(t, ledger.Balance.Equal(decimal.NewFromInt(300)))

	w = testutil.Do(t, staff, http.MethodGet, "/api/seasons/2024-2025/balances", nil)
	require.Equal(t, http.StatusOK, w.Code)
	balances := testutil.DecodeJSON[[]MemberBalance](t, w)
	require.Len(t, balances, 1)
	assert.Equal(t, "Ana Lee", balances[0].Name)
	assert.Equal(t, 1, balances[0].LateCount)

	w = testutil.Do(t, staff, http.MethodGet, "/api/payments?season=2024-2025", nil)
	require.Equal(t, http.StatusOK, w.Code)
	season := testutil.DecodeJSON[[]PaymentView](t, w)
	require.Len(t, season, 1)
	assert.Equal(t, "Ana Lee", season[0].MemberName)

	w = testutil.Do(t, admin, http.MethodDelete, fmt.Sprintf("/api/payment-schedules/%d", schedule.ID), nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = testutil.Do(t, staff, http.MethodPost, fmt.Sprintf("/api/payments/%d/unassign", payment.ID), nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	back := testutil.DecodeJSON[models.UnmatchedPayment](t, w)
	assert.Equal(t, models.UnmatchedSourceUnassigned, back.Source)
	assert.Equal(t, "check #1042", back.Notes)

	w = testutil.Do(t, staff, http.MethodPost, fmt.Sprintf("/api/payments/%d/unassign", payment.ID), nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = testutil.Do(t, staff, http.MethodGet, fmt.Sprintf("/api/members/%d/ledger?includeInactive=true", member.ID), nil)
	require.Equal(t, http.StatusOK, w.Code)
	ledger = testutil.DecodeJSON[MemberLedger](t, w)
	assert.Len(t, ledger.Payments, 1)
	assert.True(t, ledger.TotalPaid.IsZero(), "inactive rows do not count toward the total")
}

func TestCreateUnmatchedPaymentValidation(t *testing.T) {
	testutil.NewTestDB(t)
	staff := newLedgerRouter("maria", models.UserRoleStaff)

	w := testutil.Do(t, staff, http.MethodPost, "/api/unmatched-payments", map[string]any{
		"amount": "0", "payment_date": "2024-09-03T00:00:00Z", "method": "cash",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = testutil.Do(t, staff, http.MethodPost, "/api/unmatched-payments", map[string]any{
		"amount": "10", "payment_date": "2024-09-03T00:00:00Z", "method": "barter",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	createPoolPayment(t, staff, "chk-7", "2024-09-03T00:00:00Z")
	w = testutil.Do(t, staff, http.MethodPost, "/api/unmatched-payments", map[string]any{
		"amount": "10", "payment_date": "2024-09-04T00:00:00Z", "method": "check", "external_payment_id": "chk-7",
	})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = testutil.Do(t, staff, http.MethodGet, "/api/unmatched-payments", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, testutil.DecodeJSON[[]models.UnmatchedPayment](t, w), 1)
}

func TestLedgerRoles(t *testing.T) {
	testutil.NewTestDB(t)
	viewer := newLedgerRouter("guest", models.UserRoleViewer)

	w := testutil.Do(t, viewer, http.MethodGet, "/api/unmatched-payments", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = testutil.Do(t, viewer, http.MethodPost, "/api/unmatched-payments/1/assign", map[string]any{"member_id": 1})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = testutil.Do(t, newLedgerRouter("maria", models.UserRoleStaff), http.MethodPost, "/api/payment-schedules", map[string]any{
		"season": "2024-2025", "name": "x", "due_date": time.Now().Format(time.RFC3339),
	})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = testutil.Do(t, newLedgerRouter("", ""), http.MethodGet, "/api/payments", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
