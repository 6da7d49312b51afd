package commissionsplits

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http/httptest"
	"testing"

	cssvc "crm-backend/internal/application/commissionsplits"
	"crm-backend/internal/application/engine"
	"crm-backend/internal/domain"
	"crm-backend/internal/middleware"
	"crm-backend/internal/testutil"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func setupSplitsTest(t *testing.T) (*fiber.App, *gorm.DB) {
	db := testutil.NewDB(t)
	h := &Handlers{Service: &cssvc.Service{DB: db}}
	app := fiber.New(fiber.Config{ErrorHandler: middleware.ErrorHandler})
	app.Get("/deals/:deal_id/commission-splits", h.List)
	app.Post("/deals/:deal_id/commission-splits", h.Create)
	app.Patch("/commission-splits/:commission_split_id", h.Update)
	app.Delete("/commission-splits/:commission_split_id", h.Delete)
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
	req.Header.Set("Content-Type", "application/json")
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

func TestCreate_BackfillsAndRejectsDuplicate(t *testing.T) {
	app, db := setupSplitsTest(t)
	deal := testutil.Deal(t, db)
	_, err := engine.GeneratePayments(db, deal)
	require.NoError(t, err)
	path := "/deals/" + deal.DealID.String() + "/commission-splits"
	broker := uuid.NewString()
	body := map[string]interface{}{
		"broker_id":                 broker,
		"broker_name":               "Broker X",
		"split_origination_percent": 60,
		"split_site_percent":        20,
		"split_deal_percent":        20,
	}

	code, result := do(t, app, "POST", path, body)
	require.Equal(t, 201, code, result)
	assert.Equal(t, broker, result["data"].(map[string]interface{})["broker_id"])
	assert.Equal(t, int64(2), testutil.Count(t, db, &domain.PaymentSplit{}, "broker_id = ?", broker))

	code, result = do(t, app, "POST", path, body)
	assert.Equal(t, 409, code)
	assert.Equal(t, cssvc.ErrBrokerAlreadyOnDeal.Error(), errMessage(result))

	code, result = do(t, app, "GET", path, nil)
	assert.Equal(t, 200, code)
	assert.Len(t, result["data"], 1)
}

func TestCreate_Validation(t *testing.T) {
	app, db := setupSplitsTest(t)
	deal := testutil.Deal(t, db)
	path := "/deals/" + deal.DealID.String() + "/commission-splits"

	code, result := do(t, app, "POST", path, map[string]interface{}{"split_origination_percent": 1})
	assert.Equal(t, 400, code)
	assert.Equal(t, "broker_id is required", errMessage(result))

	code, _ = do(t, app, "POST", path, map[string]interface{}{"broker_id": uuid.NewString(), "split_origination_percent": 1})
	assert.Equal(t, 400, code)

	code, result = do(t, app, "POST", path, map[string]interface{}{
		"broker_id": uuid.NewString(), "split_origination_percent": -1, "split_site_percent": 0, "split_deal_percent": 0,
	})
	assert.Equal(t, 400, code)
	assert.Equal(t, "split_origination_percent must be a percentage between 0 and 10000 (values above 100 are read as basis points)", errMessage(result))

	// The first invalid field in column order is reported
	for i := 0; i < 5; i++ {
		code, result = do(t, app, "POST", path, map[string]interface{}{
			"broker_id": uuid.NewString(), "split_origination_percent": 1, "split_site_percent": 10001, "split_deal_percent": -1,
		})
		assert.Equal(t, 400, code)
		assert.Equal(t, "split_site_percent must be a percentage between 0 and 10000 (values above 100 are read as basis points)", errMessage(result))
	}

	code, _ = do(t, app, "POST", "/deals/"+uuid.NewString()+"/commission-splits", map[string]interface{}{
		"broker_id": uuid.NewString(), "split_origination_percent": 1, "split_site_percent": 1, "split_deal_percent": 1,
	})
	assert.Equal(t, 404, code)
}

func TestUpdateAndDelete(t *testing.T) {
	app, db := setupSplitsTest(t)
	deal := testutil.Deal(t, db)
	x := testutil.Broker(t, db, deal.DealID, "Broker X", "60", "20", "20")
	res, err := engine.GeneratePayments(db, deal)
	require.NoError(t, err)
	path := "/commission-splits/" + x.CommissionSplitID.String()

	// basis-point style input is normalized to 50%
	code, result := do(t, app, "PATCH", path, map[string]interface{}{"split_origination_percent": 5000})
	require.Equal(t, 200, code, result)
	split := testutil.Splits(t, db, res.Payments[0].PaymentID)[x.BrokerID]
	assert.True(t, testutil.D("50").Equal(split.SplitOriginationPercent))
	assert.True(t, testutil.D("10687.50").Equal(split.SplitOriginationUSD))

	code, _ = do(t, app, "DELETE", path, nil)
	assert.Equal(t, 200, code)
	assert.Equal(t, int64(0), testutil.Count(t, db, &domain.PaymentSplit{}, "broker_id = ?", x.BrokerID))

	code, _ = do(t, app, "PATCH", path, map[string]interface{}{"broker_name": "Gone"})
	assert.Equal(t, 404, code)
}
