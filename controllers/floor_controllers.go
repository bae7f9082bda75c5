package controllers

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/dinehub/pos-backend/models"
	"github.com/dinehub/pos-backend/utils"
)

type FloorController struct {
	DB *gorm.DB
}

func NewFloorController(db *gorm.DB) *FloorController {
	return &FloorController{DB: db}
}

// CreateFloor adds a floor. Duplicate floor numbers are a Conflict.
func (fc *FloorController) CreateFloor(c *gin.Context) {
	var req struct {
		FloorNumber int    `json:"floor_number" binding:"required"`
		Name        string `json:"name" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	var count int64
	if err := fc.DB.Model(&models.Floor{}).Where("floor_number = ?", req.FloorNumber).Count(&count).Error; err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}
	if count > 0 {
		utils.RespondAppError(c, fmt.Errorf("%w: floor %d already exists", utils.ErrConflict, req.FloorNumber))
		return
	}

	floor := models.Floor{FloorNumber: req.FloorNumber, Name: req.Name}
	if err := fc.DB.Create(&floor).Error; err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}
	utils.RespondJSON(c, http.StatusCreated, "Floor created", floor)
}

// GetAllFloors lists the floors.
func (fc *FloorController) GetAllFloors(c *gin.Context) {
	var floors []models.Floor
	if err := fc.DB.Order("floor_number asc").Find(&floors).Error; err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "List of floors", floors)
}

// UpdateFloor renames a floor or moves its number.
func (fc *FloorController) UpdateFloor(c *gin.Context) {
	id, err := paramID(c, "floor_id")
	if err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	var floor models.Floor
	if err := fc.DB.First(&floor, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.RespondAppError(c, fmt.Errorf("%w: floor %d", utils.ErrNotFound, id))
			return
		}
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}

	var req struct {
		FloorNumber *int    `json:"floor_number"`
		Name        *string `json:"name"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	if req.FloorNumber != nil {
		var count int64
		if err := fc.DB.Model(&models.Floor{}).
			Where("floor_number = ? AND id <> ?", *req.FloorNumber, id).
			Count(&count).Error; err != nil {
			utils.RespondError(c, http.StatusInternalServerError, err)
			return
		}
		if count > 0 {
			utils.RespondAppError(c, fmt.Errorf("%w: floor %d already exists", utils.ErrConflict, *req.FloorNumber))
			return
		}
		floor.FloorNumber = *req.FloorNumber
	}
	if req.Name != nil {
		floor.Name = *req.Name
	}

	if err := fc.DB.Save(&floor).Error; err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Floor updated", floor)
}

// DeleteFloor refuses while tables still sit on the floor.
func (fc *FloorController) DeleteFloor(c *gin.Context) {
	id, err := paramID(c, "floor_id")
	if err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	var tables int64
	if err := fc.DB.Model(&models.Table{}).Where("floor_id = ?", id).Count(&tables).Error; err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}
	if tables > 0 {
		utils.RespondAppError(c, fmt.Errorf("%w: floor %d still has %d table(s)", utils.ErrConflict, id, tables))
		return
	}

	if err := fc.DB.Delete(&models.Floor{}, id).Error; err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Floor deleted", gin.H{"id": id})
}
