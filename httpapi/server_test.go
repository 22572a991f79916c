package httpapi_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"babylon/recurring/httpapi"
	"babylon/recurring/recurring/detect"
	"babylon/recurring/recurring/match"
	"babylon/recurring/recurring/memstore"
	"babylon/recurring/recurring/model"
)

var fixedNow = time.Date(2025, time.July, 1, 12, 0, 0, 0, time.UTC)

type fixture struct {
	store   *memstore.Store
	handler http.Handler
	userID  primitive.ObjectID
}

func newFixture() *fixture {
	store := memstore.New()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	detector := detect.NewDetector(store, store.Series(), store.Bills(), 180, 5, "USD")
	detector.Now = func() time.Time { return fixedNow }
	linker := match.NewLinker(store.Series(), store.Bills(), store.Paychecks(), store.Ledger(), 7, "USD")
	linker.Now = func() time.Time { return fixedNow }
	reconciler := match.NewReconciler(store.Bills(), store.Paychecks(), store.Ledger(), 90)
	reconciler.Now = func() time.Time { return fixedNow }

	server := httpapi.NewServer(detector, linker, reconciler, logger)

	return &fixture{
		store:   store,
		handler: server.Handler(),
		userID:  primitive.NewObjectID(),
	}
}

func (f *fixture) do(method, target, body string) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	req.Header.Set(httpapi.UserHeader, f.userID.Hex())
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func TestHealthNeedsNoUser(t *testing.T) {
	f := newFixture()
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestMissingUserHeaderIsUnauthorized(t *testing.T) {
	f := newFixture()
	req := httptest.NewRequest(http.MethodGet, "/api/recurring/overview", nil)
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestMalformedUserHeaderIsUnauthorized(t *testing.T) {
	f := newFixture()
	req := httptest.NewRequest(http.MethodGet, "/api/recurring/overview", nil)
	req.Header.Set(httpapi.UserHeader, "not-a-hex-id")
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestDetectEndpoint(t *testing.T) {
	f := newFixture()
	for i := 4; i >= 1; i-- {
		date := fixedNow.AddDate(0, -i, 0)
		date = time.Date(date.Year(), date.Month(), 15, 0, 0, 0, 0, time.UTC)
		f.store.SeedFeed(model.TransactionRecord{
			UserID:   f.userID,
			Type:     model.TxExpense,
			Amount:   15.49,
			Date:     date.Format("2006-01-02"),
			Merchant: "Netflix",
		})
	}

	rec := f.do(http.MethodPost, "/api/recurring/detect", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var result detect.Result
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.True(t, result.OK)
	require.Len(t, result.Results, 1)
	assert.Equal(t, "NETFLIX|expense", result.Results[0].Key)
}

func TestDetectRejectsMalformedBody(t *testing.T) {
	f := newFixture()
	rec := f.do(http.MethodPost, "/api/recurring/detect", "{not json")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMatchBillEndpoint(t *testing.T) {
	f := newFixture()
	rec := f.do(http.MethodPost, "/api/bills/match", `{"txId":"stmt-ext-42","amount":61.2,"name":"City Power"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		OK            bool       `json:"ok"`
		Bill          model.Bill `json:"bill"`
		TransactionID string     `json:"transactionId"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.OK)
	assert.Equal(t, model.BillPaid, resp.Bill.Status)
	assert.NotEmpty(t, resp.TransactionID)
	assert.Equal(t, 1, f.store.TransactionCount())
}

func TestMatchBillMissingTxIDIsBadRequest(t *testing.T) {
	f := newFixture()
	rec := f.do(http.MethodPost, "/api/bills/match", `{"name":"City Power"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMatchBillUnknownSeriesIsNotFound(t *testing.T) {
	f := newFixture()
	body := `{"txId":"stmt-ext-42","recurringId":"` + primitive.NewObjectID().Hex() + `"}`
	rec := f.do(http.MethodPost, "/api/bills/match", body)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestMatchBillBadDateIsBadRequest(t *testing.T) {
	f := newFixture()
	rec := f.do(http.MethodPost, "/api/bills/match", `{"txId":"stmt-ext-42","date":"June 15"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMatchPaycheckEndpoint(t *testing.T) {
	f := newFixture()
	rec := f.do(http.MethodPost, "/api/paychecks/match", `{"txId":"pay-1","amount":1850,"employerName":"Acme Corp"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Hit model.PaycheckHit `json:"hit"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.InDelta(t, 1850, resp.Hit.Amount, 0.001)
	assert.Equal(t, 1, f.store.PaycheckCount())
}

func TestMatchPaycheckNonPositiveAmountIsBadRequest(t *testing.T) {
	f := newFixture()
	rec := f.do(http.MethodPost, "/api/paychecks/match", `{"txId":"pay-1","amount":-5}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestOverviewEndpoint(t *testing.T) {
	f := newFixture()
	_, err := f.store.Bills().Insert(context.Background(), model.Bill{
		UserID: f.userID, Name: "NETFLIX", Status: model.BillDue, DueDate: fixedNow.AddDate(0, 0, 10),
	})
	require.NoError(t, err)

	rec := f.do(http.MethodGet, "/api/recurring/overview?horizonDays=30", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp match.OverviewResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Len(t, resp.Bills, 1)
	assert.NotNil(t, resp.RecentPaychecks)
}

// Requests streamed without a Content-Length header still carry options;
// the body is decoded regardless of how its length is declared.
func TestBackfillDecodesChunkedBody(t *testing.T) {
	f := newFixture()
	_, err := f.store.Bills().Insert(context.Background(), model.Bill{
		UserID: f.userID, Name: "NETFLIX", Amount: 15.49, Status: model.BillPaid,
		DueDate: fixedNow.AddDate(0, 0, -45), PaidAt: fixedNow.AddDate(0, 0, -45), TxID: "stmt-ext-1",
	})
	require.NoError(t, err)

	// Wrapping the reader hides its length, so the request goes out with
	// ContentLength -1 the way a chunked upload would.
	body := struct{ io.Reader }{strings.NewReader(`{"days":30}`)}
	req := httptest.NewRequest(http.MethodPost, "/api/recurring/backfill", body)
	req.Header.Set(httpapi.UserHeader, f.userID.Hex())
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Summary match.Summary `json:"summary"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, match.Summary{}, resp.Summary, "the bill sits outside the narrowed window")
}

func TestOverviewRejectsNonIntegerHorizon(t *testing.T) {
	f := newFixture()
	rec := f.do(http.MethodGet, "/api/recurring/overview?horizonDays=soon", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestBackfillEndpoint(t *testing.T) {
	f := newFixture()
	_, err := f.store.Bills().Insert(context.Background(), model.Bill{
		UserID: f.userID, Name: "NETFLIX", Amount: 15.49, Status: model.BillPaid,
		DueDate: fixedNow.AddDate(0, 0, -10), PaidAt: fixedNow.AddDate(0, 0, -10), TxID: "stmt-ext-1",
	})
	require.NoError(t, err)

	rec := f.do(http.MethodPost, "/api/recurring/backfill", `{"days":30}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		OK      bool          `json:"ok"`
		Since   string        `json:"since"`
		Summary match.Summary `json:"summary"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.OK)
	assert.NotEmpty(t, resp.Since)
	assert.Equal(t, match.Summary{BillsCreated: 1}, resp.Summary)
}
