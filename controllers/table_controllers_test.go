package controllers_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/dinehub/pos-backend/controllers"
	"github.com/dinehub/pos-backend/models"
	"github.com/dinehub/pos-backend/services"
	"github.com/dinehub/pos-backend/utils"
	"github.com/dinehub/pos-backend/ws"
)

func setupTableTest(t *testing.T) (*gin.Engine, *services.TableRegistry) {
	t.Helper()
	utils.InitLogger()
	gin.SetMode(gin.TestMode)

	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.Floor{},
		&models.Table{},
		&models.Reservation{},
		&models.TableStatusLog{},
		&models.Order{},
		&models.OrderItem{},
	))

	registry := services.NewTableRegistry(db, ws.NewHub())
	ctrl := controllers.NewTableController(registry)

	router := gin.New()
	router.POST("/tables", ctrl.CreateTable)
	router.GET("/tables", ctrl.GetAllTables)
	router.GET("/tables/:table_id", ctrl.GetTableByID)
	router.PATCH("/tables/:table_id/status", ctrl.UpdateTableStatus)
	router.GET("/tables/:table_id/history", ctrl.GetTableHistory)
	router.GET("/dashboard/stats", ctrl.GetDashboardStats)
	return router, registry
}

func doJSON(t *testing.T, router *gin.Engine, method, url string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, url, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestCreateAndListTables(t *testing.T) {
	router, _ := setupTableTest(t)

	w := doJSON(t, router, "POST", "/tables", map[string]interface{}{
		"table_number": "A1", "capacity": 4, "section": "patio",
	})
	assert.Equal(t, http.StatusCreated, w.Code)

	// Duplicate numbers come back as a conflict.
	w = doJSON(t, router, "POST", "/tables", map[string]interface{}{
		"table_number": "A1", "capacity": 2,
	})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = doJSON(t, router, "GET", "/tables", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	var response map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Equal(t, "List of tables", response["message"])
	data := response["data"].([]interface{})
	assert.Len(t, data, 1)
}

func TestUpdateTableStatusEndpoint(t *testing.T) {
	router, registry := setupTableTest(t)

	table := models.Table{Number: "B1", Capacity: 2}
	require.NoError(t, registry.CreateTable(&table))
	url := "/tables/" + strconv.Itoa(int(table.ID)) + "/status"

	w := doJSON(t, router, "PATCH", url, map[string]string{"status": models.TableOccupied})
	assert.Equal(t, http.StatusOK, w.Code)

	var response map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Equal(t, "Table status updated", response["message"])
	data := response["data"].(map[string]interface{})
	assert.Equal(t, models.TableOccupied, data["status"])

	// OCCUPIED => RESERVED is not a legal edge.
	w = doJSON(t, router, "PATCH", url, map[string]string{"status": models.TableReserved})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	// Unknown table is a 404.
	w = doJSON(t, router, "PATCH", "/tables/9999/status", map[string]string{"status": models.TableCleaning})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestTableHistoryEndpoint(t *testing.T) {
	router, registry := setupTableTest(t)

	table := models.Table{Number: "C1", Capacity: 2}
	require.NoError(t, registry.CreateTable(&table))
	url := "/tables/" + strconv.Itoa(int(table.ID))

	doJSON(t, router, "PATCH", url+"/status", map[string]string{"status": models.TableOccupied})
	doJSON(t, router, "PATCH", url+"/status", map[string]string{"status": models.TableVacant})

	w := doJSON(t, router, "GET", url+"/history", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	var response map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	trail := response["data"].([]interface{})
	require.Len(t, trail, 2)
	first := trail[0].(map[string]interface{})
	assert.Equal(t, models.TableVacant, first["from_status"])
	assert.Equal(t, models.TableOccupied, first["to_status"])
}

func TestDashboardStatsEndpoint(t *testing.T) {
	router, registry := setupTableTest(t)

	require.NoError(t, registry.CreateTable(&models.Table{Number: "D1", Capacity: 2}))
	require.NoError(t, registry.CreateTable(&models.Table{Number: "D2", Capacity: 2, Status: models.TableCleaning}))

	w := doJSON(t, router, "GET", "/dashboard/stats", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	var response map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	stats := response["data"].(map[string]interface{})
	assert.EqualValues(t, 1, stats[models.TableVacant])
	assert.EqualValues(t, 1, stats[models.TableCleaning])
}
