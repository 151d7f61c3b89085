package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"locker-bank-backend/config"
	"locker-bank-backend/internal/db"
	"locker-bank-backend/internal/engine"
	"locker-bank-backend/internal/model"
	"locker-bank-backend/internal/parse"
	"locker-bank-backend/internal/relay"
	"locker-bank-backend/internal/store"
)

// fakeRelay is an in-memory stand-in for the hardware relay bridge.
type fakeRelay struct {
	opened    []int
	openErr   error
	closed    bool
	verifyErr error
	doors     map[int]parse.DoorState
	statusErr error
}

func (f *fakeRelay) Open(_ context.Context, number int) error {
	if f.openErr != nil {
		return f.openErr
	}
	f.opened = append(f.opened, number)
	return nil
}

func (f *fakeRelay) VerifyClosed(_ context.Context, _ int) (bool, error) {
	return f.closed, f.verifyErr
}

func (f *fakeRelay) StatusAll(_ context.Context) (map[int]parse.DoorState, error) {
	return f.doors, f.statusErr
}

func (f *fakeRelay) Ping(_ context.Context) error { return nil }

func newTestRouter(t *testing.T, relayClient relay.Client) (*gin.Engine, *gorm.DB) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	testDB, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := testDB.DB()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, db.Migrate(testDB))
	require.NoError(t, db.Seed(testDB, []config.MachineSeed{
		{ID: 1, Name: "Main Entrance", Location: "Lobby", Compartments: 4},
	}))

	appStore := store.NewGormStore(testDB)
	eng := engine.New(appStore, 200*time.Millisecond)
	handler := NewHandler(appStore, eng, relayClient, nil, nil)
	return NewRouter(handler, 1000, time.Second), testDB
}

func postJSON(t *testing.T, router *gin.Engine, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func getJSON(t *testing.T, router *gin.Engine, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestDepositAndWithdrawFlow(t *testing.T) {
	bridge := &fakeRelay{closed: true}
	router, _ := newTestRouter(t, bridge)

	rec := postJSON(t, router, "/api/deposit/open", gin.H{"machineId": 1, "trackingCode": "T1"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := decodeBody(t, rec)
	assert.Equal(t, float64(1), body["compartmentNumber"])
	sessionToken := int(body["sessionToken"].(float64))
	assert.GreaterOrEqual(t, sessionToken, 1000)
	assert.Equal(t, []int{1}, bridge.opened)

	rec = postJSON(t, router, "/api/deposit/close", gin.H{
		"machineId": 1, "compartmentNumber": 1, "sessionToken": sessionToken,
		"trackingCode": "T1", "doorClosed": true,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body = decodeBody(t, rec)
	password := body["password"].(string)
	assert.Len(t, password, 6)

	rec = postJSON(t, router, "/api/withdraw/open", gin.H{"machineId": 1, "password": password})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body = decodeBody(t, rec)
	assert.Equal(t, float64(1), body["compartmentNumber"])
	assert.Equal(t, []int{1, 1}, bridge.opened)

	rec = postJSON(t, router, "/api/withdraw/close", gin.H{
		"machineId": 1, "compartmentNumber": 1, "sessionToken": sessionToken, "doorClosed": true,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	// The password is single-use.
	rec = postJSON(t, router, "/api/withdraw/open", gin.H{"machineId": 1, "password": password})
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestDepositOpenValidation(t *testing.T) {
	router, _ := newTestRouter(t, nil)

	rec := postJSON(t, router, "/api/deposit/open", gin.H{"machineId": 1})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = postJSON(t, router, "/api/deposit/open", gin.H{"machineId": 42, "trackingCode": "T1"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDepositOpenInactiveMachine(t *testing.T) {
	router, testDB := newTestRouter(t, nil)

	require.NoError(t, testDB.Model(&model.Machine{}).Where("id = ?", 1).
		Update("status", model.MachineInactive).Error)

	rec := postJSON(t, router, "/api/deposit/open", gin.H{"machineId": 1, "trackingCode": "T1"})
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestDepositOpenRelayFailure(t *testing.T) {
	bridge := &fakeRelay{openErr: relay.ErrUnreachable}
	router, testDB := newTestRouter(t, bridge)

	rec := postJSON(t, router, "/api/deposit/open", gin.H{"machineId": 1, "trackingCode": "T1"})
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, decodeBody(t, rec)["message"], "reset is required")

	// The assignment committed before the door failed; recovery is a reset.
	var compartment model.Compartment
	require.NoError(t, testDB.Where("machine_id = ? AND number = ?", 1, 1).First(&compartment).Error)
	assert.Equal(t, model.CompartmentDepositOpen, compartment.Status)

	rec = postJSON(t, router, "/api/machines/1/compartments/1/reset", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	require.NoError(t, testDB.Where("machine_id = ? AND number = ?", 1, 1).First(&compartment).Error)
	assert.Equal(t, model.CompartmentAvailable, compartment.Status)
}

func TestDepositCloseDoorNotConfirmed(t *testing.T) {
	bridge := &fakeRelay{closed: true}
	router, _ := newTestRouter(t, bridge)

	rec := postJSON(t, router, "/api/deposit/open", gin.H{"machineId": 1, "trackingCode": "T1"})
	require.Equal(t, http.StatusOK, rec.Code)
	sessionToken := int(decodeBody(t, rec)["sessionToken"].(float64))

	// The kiosk never claimed the door shut.
	rec = postJSON(t, router, "/api/deposit/close", gin.H{
		"machineId": 1, "compartmentNumber": 1, "sessionToken": sessionToken,
		"trackingCode": "T1", "doorClosed": false,
	})
	assert.Equal(t, http.StatusConflict, rec.Code)

	// The kiosk claims closed but the sensor says open.
	bridge.closed = false
	rec = postJSON(t, router, "/api/deposit/close", gin.H{
		"machineId": 1, "compartmentNumber": 1, "sessionToken": sessionToken,
		"trackingCode": "T1", "doorClosed": true,
	})
	assert.Equal(t, http.StatusConflict, rec.Code)

	// Sensor agrees: the close goes through.
	bridge.closed = true
	rec = postJSON(t, router, "/api/deposit/close", gin.H{
		"machineId": 1, "compartmentNumber": 1, "sessionToken": sessionToken,
		"trackingCode": "T1", "doorClosed": true,
	})
	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

func TestWithdrawOpenUnknownPassword(t *testing.T) {
	router, _ := newTestRouter(t, nil)

	rec := postJSON(t, router, "/api/withdraw/open", gin.H{"machineId": 1, "password": "123456"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListMachines(t *testing.T) {
	router, _ := newTestRouter(t, nil)

	rec := getJSON(t, router, "/api/machines")
	require.Equal(t, http.StatusOK, rec.Code)

	var summaries []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &summaries))
	require.Len(t, summaries, 1)
	assert.Equal(t, "Main Entrance", summaries[0]["name"])
	assert.Equal(t, float64(3), summaries[0]["totalCompartments"])
	assert.Equal(t, float64(3), summaries[0]["availableCompartments"])
}

func TestCompartmentStatus(t *testing.T) {
	bridge := &fakeRelay{doors: map[int]parse.DoorState{
		1: parse.DoorOpen, 2: parse.DoorClosed, 3: parse.DoorClosed, 4: parse.DoorClosed,
	}}
	router, _ := newTestRouter(t, bridge)

	rec := getJSON(t, router, "/api/machines/1/compartments")
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody(t, rec)
	rows := body["compartments"].([]any)
	require.Len(t, rows, 4)

	first := rows[0].(map[string]any)
	assert.Equal(t, float64(1), first["number"])
	assert.Equal(t, string(parse.DoorOpen), first["door"])
	assert.Equal(t, string(model.CompartmentAvailable), first["status"])

	last := rows[3].(map[string]any)
	assert.Equal(t, true, last["reserved"])
}

func TestCompartmentStatusRelayDown(t *testing.T) {
	bridge := &fakeRelay{statusErr: fmt.Errorf("%w: connection refused", relay.ErrUnreachable)}
	router, _ := newTestRouter(t, bridge)

	rec := getJSON(t, router, "/api/machines/1/compartments")
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)

	// Ledger statuses still come back; door states degrade to unknown.
	body := decodeBody(t, rec)
	rows := body["compartments"].([]any)
	require.Len(t, rows, 4)
	for _, row := range rows {
		assert.Equal(t, string(parse.DoorUnknown), row.(map[string]any)["door"])
	}
}

func TestCompartmentStatusUnknownMachine(t *testing.T) {
	router, _ := newTestRouter(t, nil)

	rec := getJSON(t, router, "/api/machines/9/compartments")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestResetValidation(t *testing.T) {
	router, _ := newTestRouter(t, nil)

	rec := postJSON(t, router, "/api/machines/1/compartments/0/reset", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = postJSON(t, router, "/api/machines/1/compartments/42/reset", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHTTPStatusMapping(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{store.ErrInvalidCompartment, http.StatusBadRequest},
		{store.ErrMachineNotFound, http.StatusNotFound},
		{store.ErrCompartmentNotFound, http.StatusNotFound},
		{store.ErrOrderNotFound, http.StatusNotFound},
		{store.ErrInvalidCredential, http.StatusNotFound},
		{store.ErrMachineInactive, http.StatusConflict},
		{store.ErrNoCompartmentAvailable, http.StatusConflict},
		{store.ErrInvalidState, http.StatusConflict},
		{store.ErrNotAvailable, http.StatusConflict},
		{engine.ErrDoorOpen, http.StatusConflict},
		{engine.ErrBusy, http.StatusServiceUnavailable},
		{errors.New("disk on fire"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, httpStatus(tc.err), tc.err.Error())
	}
}
