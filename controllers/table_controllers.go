package controllers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/dinehub/pos-backend/models"
	"github.com/dinehub/pos-backend/services"
	"github.com/dinehub/pos-backend/utils"
)

type TableController struct {
	Registry *services.TableRegistry
}

func NewTableController(registry *services.TableRegistry) *TableController {
	return &TableController{Registry: registry}
}

// CreateTable adds a new table to the floor plan.
func (tc *TableController) CreateTable(c *gin.Context) {
	var req struct {
		Number   string  `json:"table_number" binding:"required"`
		Capacity int     `json:"capacity" binding:"required,gt=0"`
		Section  string  `json:"section"`
		Shape    string  `json:"shape"`
		FloorID  *uint   `json:"floor_id"`
		PosX     float64 `json:"pos_x"`
		PosY     float64 `json:"pos_y"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	table := models.Table{
		Number:   req.Number,
		Capacity: req.Capacity,
		Section:  req.Section,
		Shape:    req.Shape,
		FloorID:  req.FloorID,
		PosX:     req.PosX,
		PosY:     req.PosY,
		Status:   models.TableVacant,
	}
	if err := tc.Registry.CreateTable(&table); err != nil {
		utils.RespondAppError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusCreated, "Table created successfully", table)
}

// GetAllTables lists every table.
func (tc *TableController) GetAllTables(c *gin.Context) {
	if status := c.Query("status"); status != "" {
		tables, err := tc.Registry.FindByStatus(status)
		if err != nil {
			utils.RespondAppError(c, err)
			return
		}
		utils.RespondJSON(c, http.StatusOK, "Tables with status: "+status, tables)
		return
	}

	tables, err := tc.Registry.ListTables()
	if err != nil {
		utils.RespondAppError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "List of tables", tables)
}

// GetTableByID shows one table.
func (tc *TableController) GetTableByID(c *gin.Context) {
	id, err := paramID(c, "table_id")
	if err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}
	table, err := tc.Registry.Get(id)
	if err != nil {
		utils.RespondAppError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Table detail", table)
}

// UpdateTableStatus drives the state machine from the floor.
func (tc *TableController) UpdateTableStatus(c *gin.Context) {
	id, err := paramID(c, "table_id")
	if err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	var body struct {
		Status     string `json:"status" binding:"required"`
		Note       string `json:"note"`
		EmployeeID *uint  `json:"employee_id"`
		OrderID    *uint  `json:"order_id"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	table, err := tc.Registry.UpdateStatus(id, body.Status, services.StatusChange{
		Actor:      actorFromContext(c),
		Note:       body.Note,
		EmployeeID: body.EmployeeID,
		OrderID:    body.OrderID,
	})
	if err != nil {
		utils.RespondAppError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Table status updated", table)
}

// AssignOrder links an order to a table and forces it OCCUPIED.
func (tc *TableController) AssignOrder(c *gin.Context) {
	id, err := paramID(c, "table_id")
	if err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	var body struct {
		OrderID    uint  `json:"order_id" binding:"required"`
		EmployeeID *uint `json:"employee_id"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	table, err := tc.Registry.AssignOrder(id, body.OrderID, body.EmployeeID)
	if err != nil {
		utils.RespondAppError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Order assigned to table", table)
}

// UpdateTable edits layout metadata.
func (tc *TableController) UpdateTable(c *gin.Context) {
	id, err := paramID(c, "table_id")
	if err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	var body map[string]interface{}
	if err := c.ShouldBindJSON(&body); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	allowed := map[string]bool{
		"table_number": true, "capacity": true, "section": true,
		"shape": true, "floor_id": true, "pos_x": true, "pos_y": true,
	}
	updates := make(map[string]interface{})
	for key, val := range body {
		if !allowed[key] {
			continue
		}
		if key == "table_number" {
			key = "number"
		}
		updates[key] = val
	}

	table, err := tc.Registry.UpdateTable(id, updates)
	if err != nil {
		utils.RespondAppError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Table updated", table)
}

// DeleteTable removes a table unless a reservation or order still holds it.
func (tc *TableController) DeleteTable(c *gin.Context) {
	id, err := paramID(c, "table_id")
	if err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}
	if err := tc.Registry.DeleteTable(id); err != nil {
		utils.RespondAppError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Table deleted", gin.H{"id": id})
}

// GetTableHistory shows the append-only status trail.
func (tc *TableController) GetTableHistory(c *gin.Context) {
	id, err := paramID(c, "table_id")
	if err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}
	log, err := tc.Registry.History(id)
	if err != nil {
		utils.RespondAppError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Table status history", log)
}

// GetDashboardStats returns the per-status table counts.
func (tc *TableController) GetDashboardStats(c *gin.Context) {
	utils.RespondJSON(c, http.StatusOK, "Table stats", tc.Registry.StatusCounts())
}

func paramID(c *gin.Context, name string) (uint, error) {
	raw := c.Param(name)
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, err
	}
	return uint(id), nil
}

func actorFromContext(c *gin.Context) string {
	if role, exists := c.Get("role"); exists {
		if userID, ok := c.Get("user_id"); ok {
			return role.(string) + ":" + strconv.Itoa(int(userID.(uint)))
		}
		return role.(string)
	}
	return "system"
}
