package dealevents

import (
	"encoding/json"
	"net/http/httptest"
	"testing"

	evsvc "crm-backend/internal/application/dealevents"
	"crm-backend/internal/application/engine"
	"crm-backend/internal/middleware"
	"crm-backend/internal/testutil"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func setupEventsTest(t *testing.T) (*fiber.App, *gorm.DB) {
	db := testutil.NewDB(t)
	h := &Handlers{Service: &evsvc.Service{DB: db}}
	app := fiber.New(fiber.Config{ErrorHandler: middleware.ErrorHandler})
	app.Get("/deals/:deal_id/events", h.List)
	return app, db
}

func get(t *testing.T, app *fiber.App, path string) (int, map[string]interface{}) {
	t.Helper()
	resp, err := app.Test(httptest.NewRequest("GET", path, nil))
	require.NoError(t, err)
	var result map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
	return resp.StatusCode, result
}

func TestList(t *testing.T) {
	app, db := setupEventsTest(t)
	deal := testutil.Deal(t, db)
	require.NoError(t, engine.RecordEvent(db, deal.DealID, nil, "PAYMENTS_GENERATED", map[string]interface{}{"payments": 2}))

	code, result := get(t, app, "/deals/"+deal.DealID.String()+"/events")
	assert.Equal(t, 200, code)
	assert.Len(t, result["data"], 1)
	assert.Equal(t, float64(1), result["metadata"].(map[string]interface{})["count"])

	code, _ = get(t, app, "/deals/"+deal.DealID.String()+"/events?type=bogus")
	assert.Equal(t, 400, code)

	code, _ = get(t, app, "/deals/"+uuid.NewString()+"/events")
	assert.Equal(t, 404, code)
}
