package payments

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http/httptest"
	"testing"

	paysvc "crm-backend/internal/application/payments"
	"crm-backend/internal/domain"
	"crm-backend/internal/middleware"
	"crm-backend/internal/testutil"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func setupPaymentsTest(t *testing.T) (*fiber.App, *gorm.DB) {
	db := testutil.NewDB(t)
	h := &Handlers{Service: &paysvc.Service{DB: db}}
	app := fiber.New(fiber.Config{ErrorHandler: middleware.ErrorHandler})
	app.Post("/deals/:deal_id/payments/generate", h.Generate)
	app.Get("/deals/:deal_id/payments", h.List)
	app.Post("/deals/:deal_id/payments", h.Add)
	app.Patch("/payments/:payment_id/amount", h.Override)
	app.Delete("/payments/:payment_id/amount-override", h.ClearOverride)
	app.Patch("/payments/:payment_id/referral", h.SetReferral)
	app.Delete("/payments/:payment_id", h.Delete)
	app.Patch("/payment-splits/:payment_split_id/paid", h.SetSplitPaid)
	return app, db
}

func do(t *testing.T, app *fiber.App, method, path string, body interface{}) (int, map[string]interface{}) {
	t.Helper()
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, r)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := app.Test(req)
	require.NoError(t, err)
	var result map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
	return resp.StatusCode, result
}

func errMessage(result map[string]interface{}) string {
	e, _ := result["error"].(map[string]interface{})
	msg, _ := e["message"].(string)
	return msg
}

func money(t *testing.T, v interface{}) string {
	t.Helper()
	s, ok := v.(string)
	require.True(t, ok, "expected decimal string, got %T", v)
	return testutil.D(s).StringFixed(2)
}

func TestGenerate_ScenarioA(t *testing.T) {
	app, db := setupPaymentsTest(t)
	deal := testutil.Deal(t, db)
	testutil.Broker(t, db, deal.DealID, "Broker X", "60", "20", "20")
	testutil.Broker(t, db, deal.DealID, "Broker Y", "40", "80", "80")

	code, result := do(t, app, "POST", "/deals/"+deal.DealID.String()+"/payments/generate", nil)
	require.Equal(t, 201, code, result)
	payments := result["data"].([]interface{})
	require.Len(t, payments, 2)
	for _, raw := range payments {
		p := raw.(map[string]interface{})
		assert.Equal(t, "50000.00", money(t, p["payment_amount"]))
		assert.Equal(t, "42750.00", money(t, p["agci"]))
		assert.Equal(t, "2500.00", money(t, p["referral_fee_usd"]))
	}
	assert.Equal(t, float64(4), result["metadata"].(map[string]interface{})["splits_created"])
}

func TestGenerate_ScenarioD(t *testing.T) {
	app, db := setupPaymentsTest(t)
	deal := testutil.Deal(t, db, testutil.WithPayments(0))

	code, result := do(t, app, "POST", "/deals/"+deal.DealID.String()+"/payments/generate", nil)
	assert.Equal(t, 422, code)
	assert.Equal(t, "deal has no payment count configured", errMessage(result))
	assert.Equal(t, int64(0), testutil.Count(t, db, &domain.Payment{}, "deal_id = ?", deal.DealID))
}

func TestOverride_ScenarioB(t *testing.T) {
	app, db := setupPaymentsTest(t)
	deal := testutil.Deal(t, db)
	x := testutil.Broker(t, db, deal.DealID, "Broker X", "60", "20", "20")
	code, result := do(t, app, "POST", "/deals/"+deal.DealID.String()+"/payments/generate", nil)
	require.Equal(t, 201, code)
	first := result["data"].([]interface{})[0].(map[string]interface{})
	id := first["payment_id"].(string)

	code, result = do(t, app, "PATCH", "/payments/"+id+"/amount", map[string]interface{}{"amount": 60000})
	require.Equal(t, 200, code, result)
	p := result["data"].(map[string]interface{})
	assert.Equal(t, true, p["amount_override"])
	assert.Equal(t, "51300.00", money(t, p["agci"]))
	split := testutil.Splits(t, db, uuid.MustParse(id))[x.BrokerID]
	assert.Equal(t, "20520.00", split.SplitBrokerTotal.StringFixed(2))

	code, result = do(t, app, "DELETE", "/payments/"+id+"/amount-override", nil)
	require.Equal(t, 200, code)
	assert.Equal(t, "42750.00", money(t, result["data"].(map[string]interface{})["agci"]))
}

func TestOverride_Validation(t *testing.T) {
	app, _ := setupPaymentsTest(t)
	id := uuid.NewString()

	code, result := do(t, app, "PATCH", "/payments/"+id+"/amount", map[string]interface{}{})
	assert.Equal(t, 400, code)
	assert.Equal(t, "amount is required", errMessage(result))

	code, _ = do(t, app, "PATCH", "/payments/"+id+"/amount", map[string]interface{}{"amount": -5})
	assert.Equal(t, 400, code)

	code, result = do(t, app, "PATCH", "/payments/"+id+"/amount", map[string]interface{}{"amount": 5})
	assert.Equal(t, 404, code)
	assert.Equal(t, "Payment not found", errMessage(result))
}

func TestReferral_SetAndClear(t *testing.T) {
	app, db := setupPaymentsTest(t)
	deal := testutil.Deal(t, db, testutil.WithPayments(1))
	_, result := do(t, app, "POST", "/deals/"+deal.DealID.String()+"/payments/generate", nil)
	id := result["data"].([]interface{})[0].(map[string]interface{})["payment_id"].(string)

	code, result := do(t, app, "PATCH", "/payments/"+id+"/referral", map[string]interface{}{"referral_fee_percent": 0})
	require.Equal(t, 200, code, result)
	assert.Equal(t, "90000.00", money(t, result["data"].(map[string]interface{})["agci"]))

	code, result = do(t, app, "PATCH", "/payments/"+id+"/referral", map[string]interface{}{"referral_fee_percent": nil})
	require.Equal(t, 200, code, result)
	assert.Equal(t, "85500.00", money(t, result["data"].(map[string]interface{})["agci"]))

	code, result = do(t, app, "PATCH", "/payments/"+id+"/referral", map[string]interface{}{"referral_fee_percent": 10001})
	assert.Equal(t, 400, code)
	assert.Equal(t, "referral_fee_percent must be a percentage between 0 and 10000 (values above 100 are read as basis points)", errMessage(result))
}

func TestAddListDelete(t *testing.T) {
	app, db := setupPaymentsTest(t)
	deal := testutil.Deal(t, db)
	base := "/deals/" + deal.DealID.String() + "/payments"
	do(t, app, "POST", base+"/generate", nil)

	code, result := do(t, app, "POST", base, map[string]interface{}{"amount": "1000.50"})
	require.Equal(t, 201, code, result)
	added := result["data"].(map[string]interface{})
	assert.Equal(t, float64(3), added["payment_sequence"])
	assert.Equal(t, "manual", added["source"])

	code, _ = do(t, app, "POST", base, map[string]interface{}{"source": "wire"})
	assert.Equal(t, 400, code)

	code, result = do(t, app, "GET", base, nil)
	assert.Equal(t, 200, code)
	assert.Len(t, result["data"], 3)

	code, _ = do(t, app, "DELETE", "/payments/"+added["payment_id"].(string), nil)
	assert.Equal(t, 200, code)
	code, _ = do(t, app, "DELETE", "/payments/"+added["payment_id"].(string), nil)
	assert.Equal(t, 404, code)

	code, _ = do(t, app, "GET", "/deals/"+uuid.NewString()+"/payments", nil)
	assert.Equal(t, 404, code)
}

func TestSetSplitPaid(t *testing.T) {
	app, db := setupPaymentsTest(t)
	deal := testutil.Deal(t, db)
	x := testutil.Broker(t, db, deal.DealID, "Broker X", "60", "20", "20")
	_, result := do(t, app, "POST", "/deals/"+deal.DealID.String()+"/payments/generate", nil)
	id := uuid.MustParse(result["data"].([]interface{})[0].(map[string]interface{})["payment_id"].(string))
	split := testutil.Splits(t, db, id)[x.BrokerID]
	path := "/payment-splits/" + split.PaymentSplitID.String() + "/paid"

	code, result := do(t, app, "PATCH", path, map[string]interface{}{"paid": true})
	require.Equal(t, 200, code, result)
	assert.Equal(t, true, result["data"].(map[string]interface{})["paid"])

	code, result = do(t, app, "PATCH", path, map[string]interface{}{})
	assert.Equal(t, 400, code)
	assert.Equal(t, "paid is required", errMessage(result))

	code, _ = do(t, app, "PATCH", "/payment-splits/"+uuid.NewString()+"/paid", map[string]interface{}{"paid": true})
	assert.Equal(t, 404, code)
}
