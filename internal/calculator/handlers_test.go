package calculator

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-chi-calculator/internal/handlers"
	"go-chi-calculator/internal/storage"
	"go-chi-calculator/internal/testutil"
)

func TestMain(m *testing.M) {
	if err := InitMetrics(); err != nil {
		fmt.Fprintf(os.Stderr, "initializing calculator metrics: %v\n", err)
		os.Exit(1)
	}
	os.Exit(m.Run())
}

func newRouter(store Store, opts ...Option) http.Handler {
	r := chi.NewRouter()
	RegisterRoutes(r, NewHandler(store, opts...))
	return r
}

func newPersistentRouter(t *testing.T) (http.Handler, *storage.Store) {
	t.Helper()
	store := testutil.NewStore(t)
	return newRouter(store), store
}

func decodeCalculation(t *testing.T, w interface{ Result() *http.Response }) CalculationResponse {
	t.Helper()
	var resp CalculationResponse
	testutil.DecodeJSONBody(t, w.Result().Body, &resp)
	return resp
}

func decodeError(t *testing.T, w interface{ Result() *http.Response }) handlers.ErrorResponse {
	t.Helper()
	var resp handlers.ErrorResponse
	testutil.DecodeJSONBody(t, w.Result().Body, &resp)
	return resp
}

func TestAddIsPersisted(t *testing.T) {
	router, _ := newPersistentRouter(t)

	w := testutil.PostJSON(t, router, "/calculator/add", map[string]any{"operand1": 10, "operand2": 5})
	testutil.CheckResponseCode(t, http.StatusOK, w.Code)

	resp := decodeCalculation(t, w)
	assert.Equal(t, 15.0, resp.Result)
	assert.Equal(t, "add", resp.Operation)
	assert.NotZero(t, resp.ID)
	require.NotNil(t, resp.CreatedAt)
	require.NotNil(t, resp.Operand1)
	require.NotNil(t, resp.Operand2)
	assert.Equal(t, 10.0, *resp.Operand1)
	assert.Equal(t, 5.0, *resp.Operand2)
	assert.Nil(t, resp.OperandsList)
}

func TestOperationResults(t *testing.T) {
	tests := []struct {
		path string
		body string
		want float64
	}{
		{"/calculator/add", `{"operation":"add","operand1":2,"operand2":3}`, 5},
		{"/calculator/subtract", `{"operand1":10,"operand2":5}`, 5},
		{"/calculator/multiply", `{"operand1":10,"operand2":5}`, 50},
		{"/calculator/divide", `{"operand1":10,"operand2":4}`, 2.5},
		{"/calculator/modulo", `{"operand1":10,"operand2":3}`, 1},
		{"/calculator/modulo", `{"operand1":-7,"operand2":3}`, 2},
		{"/calculator/modulo", `{"operand1":10.5,"operand2":3}`, 1},
		{"/calculator/modulo", `{"operand1":-7.9,"operand2":3}`, 2},
		{"/calculator/power", `{"operand1":2,"operand2":10}`, 1024},
		{"/calculator/power", `{"operand1":2,"operand2":-1}`, 0.5},
		{"/calculator/sqrt", `{"operand":16}`, 4},
		{"/calculator/factorial", `{"operand":5}`, 120},
		{"/calculator/factorial", `{"operand":0}`, 1},
		{"/calculator/percentage", `{"part":25,"whole":200}`, 12.5},
		{"/calculator/average", `{"numbers":[1,2,3,4,5]}`, 3},
		{"/calculator/median", `{"numbers":[1,3,3,6,7,8,9]}`, 6},
		{"/calculator/median", `{"numbers":[1,2,3,4,5,6,8,9]}`, 4.5},
		{"/calculator/median", `{"numbers":[1.7e308,1.7e308]}`, 1.7e308},
		{"/calculator/average", `{"numbers":[1.7e308,1.7e308]}`, 1.7e308},
	}

	router, _ := newPersistentRouter(t)

	for _, tc := range tests {
		t.Run(tc.path+" "+tc.body, func(t *testing.T) {
			w := testutil.PostJSON(t, router, tc.path, tc.body)
			testutil.CheckResponseCode(t, http.StatusOK, w.Code)
			assert.Equal(t, tc.want, decodeCalculation(t, w).Result)
		})
	}
}

func TestSqrtStoresOperandAsOperand1(t *testing.T) {
	router, _ := newPersistentRouter(t)

	w := testutil.PostJSON(t, router, "/calculator/sqrt", map[string]any{"operand": 16})
	testutil.CheckResponseCode(t, http.StatusOK, w.Code)

	resp := decodeCalculation(t, w)
	assert.Equal(t, 4.0, resp.Result)
	require.NotNil(t, resp.Operand1)
	assert.Equal(t, 16.0, *resp.Operand1)
	assert.Nil(t, resp.Operand2)
}

func TestModuloTruncatesButStoresOperandsAsSent(t *testing.T) {
	router, _ := newPersistentRouter(t)

	w := testutil.PostJSON(t, router, "/calculator/modulo", map[string]any{"operand1": 10.5, "operand2": 3})
	testutil.CheckResponseCode(t, http.StatusOK, w.Code)

	created := decodeCalculation(t, w)
	assert.Equal(t, 1.0, created.Result)

	w = testutil.Get(router, fmt.Sprintf("/calculator/history/%d", created.ID))
	testutil.CheckResponseCode(t, http.StatusOK, w.Code)

	stored := decodeCalculation(t, w)
	require.NotNil(t, stored.Operand1)
	assert.Equal(t, 10.5, *stored.Operand1)
	assert.Equal(t, 1.0, stored.Result)
}

func TestListOperationsRecordOperandsList(t *testing.T) {
	router, _ := newPersistentRouter(t)

	w := testutil.PostJSON(t, router, "/calculator/average", map[string]any{"numbers": []float64{1, 2, 3.5}})
	testutil.CheckResponseCode(t, http.StatusOK, w.Code)

	resp := decodeCalculation(t, w)
	require.NotNil(t, resp.OperandsList)
	assert.Equal(t, "[1,2,3.5]", *resp.OperandsList)
	assert.Nil(t, resp.Operand1)
}

func TestDomainErrors(t *testing.T) {
	tests := []struct {
		path   string
		body   string
		code   string
		detail string
	}{
		{"/calculator/divide", `{"operand1":10,"operand2":0}`, CodeDivisionByZero, "Cannot divide by zero"},
		{"/calculator/modulo", `{"operand1":10,"operand2":0}`, CodeDivisionByZero, "Cannot modulo by zero"},
		{"/calculator/modulo", `{"operand1":5,"operand2":0.5}`, CodeDivisionByZero, "Cannot modulo by zero"},
		{"/calculator/modulo", `{"operand1":1e19,"operand2":3}`, CodeInvalidDomain, "modulo() operand out of range"},
		{"/calculator/power", `{"operand1":0,"operand2":-1}`, CodeDivisionByZero, "0.0 cannot be raised to a negative power"},
		{"/calculator/power", `{"operand1":10,"operand2":400}`, CodeInvalidDomain, "Numerical result out of range"},
		{"/calculator/multiply", `{"operand1":1e308,"operand2":10}`, CodeInvalidDomain, "Numerical result out of range"},
		{"/calculator/sqrt", `{"operand":-4}`, CodeInvalidDomain, "Cannot take square root of a negative number"},
		{"/calculator/factorial", `{"operand":-1}`, CodeInvalidDomain, "factorial() not defined for negative values"},
		{"/calculator/factorial", `{"operand":2.5}`, CodeInvalidDomain, "factorial() only accepts integers"},
		{"/calculator/factorial", `{"operand":171}`, CodeInvalidDomain, "factorial(171) is too large to represent"},
		{"/calculator/percentage", `{"part":1,"whole":0}`, CodeDivisionByZero, "Cannot compute percentage with a zero whole"},
		{"/calculator/average", `{"numbers":[]}`, CodeInvalidDomain, "Cannot calculate average of empty list"},
		{"/calculator/median", `{"numbers":[]}`, CodeInvalidDomain, "Cannot calculate median of empty list"},
	}

	router, store := newPersistentRouter(t)

	for _, tc := range tests {
		t.Run(tc.path+" "+tc.body, func(t *testing.T) {
			w := testutil.PostJSON(t, router, tc.path, tc.body)
			testutil.CheckResponseCode(t, http.StatusBadRequest, w.Code)

			resp := decodeError(t, w)
			assert.Equal(t, tc.code, resp.Error)
			assert.Contains(t, resp.Detail, tc.detail)
		})
	}

	records, err := store.List(context.Background(), 100)
	require.NoError(t, err)
	assert.Empty(t, records, "failed calculations must not be recorded")
}

func TestStructuralValidationErrors(t *testing.T) {
	tests := []struct {
		name string
		path string
		body string
	}{
		{"empty body", "/calculator/add", ``},
		{"malformed json", "/calculator/add", `{"operand1":`},
		{"missing operand", "/calculator/add", `{"operand1":1}`},
		{"wrong type", "/calculator/divide", `{"operand1":"ten","operand2":2}`},
		{"null operand", "/calculator/sqrt", `{"operand":null}`},
		{"missing numbers", "/calculator/average", `{}`},
		{"non numeric list item", "/calculator/median", `{"numbers":[1,"2"]}`},
		{"not an object", "/calculator/percentage", `[25,200]`},
		{"out of float range", "/calculator/add", `{"operand1":1e400,"operand2":1}`},
	}

	router, _ := newPersistentRouter(t)

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			w := testutil.PostJSON(t, router, tc.path, tc.body)
			testutil.CheckResponseCode(t, http.StatusUnprocessableEntity, w.Code)

			resp := decodeError(t, w)
			assert.Equal(t, CodeValidation, resp.Error)
			assert.NotEmpty(t, resp.Detail)
		})
	}
}

func TestMissingFieldIsNamedInDetail(t *testing.T) {
	router, _ := newPersistentRouter(t)

	w := testutil.PostJSON(t, router, "/calculator/add", `{"operand1":1}`)
	testutil.CheckResponseCode(t, http.StatusUnprocessableEntity, w.Code)
	assert.Contains(t, decodeError(t, w).Detail, "operand2")
}

func TestRequestBodyLimit(t *testing.T) {
	router := newRouter(testutil.NewStore(t), WithMaxBodyBytes(16))

	w := testutil.PostJSON(t, router, "/calculator/average", `{"numbers":[1,2,3,4,5,6,7,8,9]}`)
	testutil.CheckResponseCode(t, http.StatusUnprocessableEntity, w.Code)
}

func TestHistoryAfterCalculation(t *testing.T) {
	router, _ := newPersistentRouter(t)

	w := testutil.PostJSON(t, router, "/calculator/multiply", map[string]any{"operand1": 6, "operand2": 7})
	testutil.CheckResponseCode(t, http.StatusOK, w.Code)
	created := decodeCalculation(t, w)

	w = testutil.Get(router, "/calculator/history")
	testutil.CheckResponseCode(t, http.StatusOK, w.Code)

	var history []CalculationResponse
	testutil.DecodeJSONBody(t, w.Result().Body, &history)
	require.NotEmpty(t, history)
	assert.Equal(t, created.ID, history[0].ID)
	assert.Equal(t, 42.0, history[0].Result)
}

func TestHistoryNewestFirstAndLimit(t *testing.T) {
	router, _ := newPersistentRouter(t)

	for i := 1; i <= 4; i++ {
		w := testutil.PostJSON(t, router, "/calculator/add", map[string]any{"operand1": i, "operand2": 0})
		testutil.CheckResponseCode(t, http.StatusOK, w.Code)
	}

	w := testutil.Get(router, "/calculator/history?limit=2")
	testutil.CheckResponseCode(t, http.StatusOK, w.Code)

	var history []CalculationResponse
	testutil.DecodeJSONBody(t, w.Result().Body, &history)
	require.Len(t, history, 2)
	assert.Equal(t, 4.0, history[0].Result)
	assert.Equal(t, 3.0, history[1].Result)
}

func TestHistoryEmptyIsJSONArray(t *testing.T) {
	router, _ := newPersistentRouter(t)

	w := testutil.Get(router, "/calculator/history")
	testutil.CheckResponseCode(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[]`, w.Body.String())
}

func TestHistoryRejectsBadLimit(t *testing.T) {
	router, _ := newPersistentRouter(t)

	for _, q := range []string{"abc", "0", "-3", "1001"} {
		w := testutil.Get(router, "/calculator/history?limit="+q)
		testutil.CheckResponseCode(t, http.StatusUnprocessableEntity, w.Code)
	}
}

func TestGetHistoryByID(t *testing.T) {
	router, _ := newPersistentRouter(t)

	w := testutil.PostJSON(t, router, "/calculator/percentage", map[string]any{"part": 25, "whole": 200})
	testutil.CheckResponseCode(t, http.StatusOK, w.Code)
	created := decodeCalculation(t, w)

	w = testutil.Get(router, fmt.Sprintf("/calculator/history/%d", created.ID))
	testutil.CheckResponseCode(t, http.StatusOK, w.Code)

	got := decodeCalculation(t, w)
	assert.Equal(t, created.ID, got.ID)
	assert.Equal(t, "percentage", got.Operation)
	assert.Equal(t, 12.5, got.Result)
	require.NotNil(t, got.Operand1)
	require.NotNil(t, got.Operand2)
	assert.Equal(t, 25.0, *got.Operand1)
	assert.Equal(t, 200.0, *got.Operand2)
}

func TestGetHistoryNotFound(t *testing.T) {
	router, _ := newPersistentRouter(t)

	for _, id := range []string{"999999", "0", "-5"} {
		w := testutil.Get(router, "/calculator/history/"+id)
		testutil.CheckResponseCode(t, http.StatusNotFound, w.Code)

		resp := decodeError(t, w)
		assert.Equal(t, CodeNotFound, resp.Error)
		assert.Equal(t, "Calculation not found", resp.Detail)
	}

	w := testutil.Get(router, "/calculator/history/abc")
	testutil.CheckResponseCode(t, http.StatusUnprocessableEntity, w.Code)
}

func TestStoredRecordsReplayToTheirResult(t *testing.T) {
	router, store := newPersistentRouter(t)

	bodies := map[string]string{
		"/calculator/divide":     `{"operand1":1,"operand2":3}`,
		"/calculator/power":      `{"operand1":2.5,"operand2":1.7}`,
		"/calculator/sqrt":       `{"operand":2}`,
		"/calculator/factorial":  `{"operand":20}`,
		"/calculator/median":     `{"numbers":[0.1,0.7,0.3,0.9]}`,
		"/calculator/average":    `{"numbers":[0.1,0.2,0.3]}`,
		"/calculator/modulo":     `{"operand1":17.5,"operand2":-5}`,
		"/calculator/percentage": `{"part":1,"whole":7}`,
	}
	for path, body := range bodies {
		w := testutil.PostJSON(t, router, path, body)
		testutil.CheckResponseCode(t, http.StatusOK, w.Code)
	}

	records, err := store.List(context.Background(), 100)
	require.NoError(t, err)
	require.Len(t, records, len(bodies))

	for i := range records {
		got, err := Replay(&records[i])
		require.NoError(t, err)
		assert.Equal(t, records[i].Result, got, "operation %s", records[i].Operation)
	}
}

func TestReplayRejectsUnknownOperation(t *testing.T) {
	_, err := Replay(&storage.Record{Operation: "chain"})
	assert.Error(t, err)

	one := 1.0
	_, err = Replay(&storage.Record{Operation: "add", Operand1: &one})
	assert.ErrorIs(t, err, errMissingOperand)
}

func TestDatabaseFreeVariant(t *testing.T) {
	router := newRouter(nil)

	w := testutil.PostJSON(t, router, "/calculator/add", map[string]any{"operand1": 10, "operand2": 5})
	testutil.CheckResponseCode(t, http.StatusOK, w.Code)

	var raw map[string]any
	testutil.DecodeJSONBody(t, w.Result().Body, &raw)
	assert.Equal(t, 15.0, raw["result"])
	assert.Equal(t, "add", raw["operation"])
	assert.NotContains(t, raw, "id")
	assert.NotContains(t, raw, "created_at")

	w = testutil.PostJSON(t, router, "/calculator/divide", map[string]any{"operand1": 10, "operand2": 0})
	testutil.CheckResponseCode(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, decodeError(t, w).Detail, "Cannot divide by zero")

	for _, path := range []string{"/calculator/history", "/calculator/history/1"} {
		w = testutil.Get(router, path)
		testutil.CheckResponseCode(t, http.StatusServiceUnavailable, w.Code)
		assert.Equal(t, CodeStorageUnavailable, decodeError(t, w).Error)
	}
}

// driftingStore changes the stored result before the handler's checks run,
// as a lossy column type would.
type driftingStore struct {
	*storage.Store
}

func (s driftingStore) Create(ctx context.Context, rec *storage.Record, checks ...storage.Check) error {
	return s.Store.Create(ctx, rec, func(stored *storage.Record) error {
		stored.Result++
		for _, check := range checks {
			if err := check(stored); err != nil {
				return err
			}
		}
		return nil
	})
}

func TestReplayMismatchIsNotCommitted(t *testing.T) {
	store := testutil.NewStore(t)
	router := newRouter(driftingStore{Store: store})

	w := testutil.PostJSON(t, router, "/calculator/add", map[string]any{"operand1": 1, "operand2": 2})
	testutil.CheckResponseCode(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, CodeInternal, decodeError(t, w).Error)

	records, err := store.List(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, records, "a calculation answered with 500 must not be stored")
}

type failingStore struct {
	err error
}

func (s failingStore) Create(context.Context, *storage.Record, ...storage.Check) error {
	return s.err
}

func (s failingStore) Get(context.Context, uint) (*storage.Record, error) { return nil, s.err }

func (s failingStore) List(context.Context, int) ([]storage.Record, error) { return nil, s.err }

func TestStorageFailures(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"unavailable", fmt.Errorf("insert: %w: connection refused", storage.ErrUnavailable), http.StatusServiceUnavailable, CodeStorageUnavailable},
		{"unexpected", errors.New("disk on fire"), http.StatusInternalServerError, CodeInternal},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			router := newRouter(failingStore{err: tc.err})

			w := testutil.PostJSON(t, router, "/calculator/add", map[string]any{"operand1": 1, "operand2": 2})
			testutil.CheckResponseCode(t, tc.status, w.Code)
			resp := decodeError(t, w)
			assert.Equal(t, tc.code, resp.Error)
			assert.NotContains(t, resp.Detail, "disk on fire", "internal causes stay out of responses")

			w = testutil.Get(router, "/calculator/history")
			testutil.CheckResponseCode(t, tc.status, w.Code)
		})
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		err    error
		status int
		code   string
	}{
		{invalidRequest(nil, "bad"), http.StatusUnprocessableEntity, CodeValidation},
		{fmt.Errorf("wrapped: %w", storage.ErrNotFound), http.StatusNotFound, CodeNotFound},
		{errPersistenceDisabled, http.StatusServiceUnavailable, CodeStorageUnavailable},
		{errReplayMismatch, http.StatusInternalServerError, CodeInternal},
	}

	for _, tc := range tests {
		status, code, _ := classify(tc.err)
		assert.Equal(t, tc.status, status, "%v", tc.err)
		assert.Equal(t, tc.code, code, "%v", tc.err)
	}
}
