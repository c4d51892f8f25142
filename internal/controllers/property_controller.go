package controllers

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/brickfolio/investment-service/internal/dtos"
	"github.com/brickfolio/investment-service/internal/models"
	"github.com/brickfolio/investment-service/internal/services"
	"github.com/brickfolio/investment-service/internal/utils"
)

type PropertyController struct {
	propertyService     *services.PropertyService
	distributionService *services.DistributionService
}

func NewPropertyController(
	ps *services.PropertyService,
	ds *services.DistributionService,
) *PropertyController {
	return &PropertyController{propertyService: ps, distributionService: ds}
}

// decodeAndValidate parses the JSON body into dst and runs struct
// validation, writing the error response itself on failure.
func decodeAndValidate(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		utils.RespondErrorWithCode(w, http.StatusBadRequest, utils.ErrCodeInvalidPayload, "Invalid JSON payload", nil, err)
		return false
	}
	if err := validate.Struct(dst); err != nil {
		utils.RespondErrorWithCode(w, http.StatusBadRequest, utils.ErrCodeValidation, "Request failed validation", nil, err)
		return false
	}
	return true
}

func pathUUID(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(mux.Vars(r)[name])
	if err != nil {
		utils.RespondErrorWithCode(w, http.StatusBadRequest, utils.ErrCodeValidation, "Malformed "+name, nil, err)
		return uuid.Nil, false
	}
	return id, true
}

// GET /api/v1/properties
func (c *PropertyController) ListPropertiesHandler(w http.ResponseWriter, r *http.Request) {
	props, err := c.propertyService.ListProperties(r.Context())
	if err != nil {
		utils.HandleAppError(w, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, props)
}

// GET /api/v1/properties/{propertyID}
func (c *PropertyController) GetPropertyHandler(w http.ResponseWriter, r *http.Request) {
	propertyID, ok := pathUUID(w, r, "propertyID")
	if !ok {
		return
	}
	p, err := c.propertyService.GetProperty(r.Context(), propertyID)
	if err != nil {
		utils.HandleAppError(w, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, p)
}

// POST /api/v1/properties  (admin)
func (c *PropertyController) CreatePropertyHandler(w http.ResponseWriter, r *http.Request) {
	actorID, ok := userIDFromContext(w, r)
	if !ok {
		return
	}

	var req dtos.CreatePropertyRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	p, err := c.propertyService.CreateProperty(r.Context(), services.CreatePropertyRequest{
		Name:               req.Name,
		Address:            req.Address,
		City:               req.City,
		State:              req.State,
		TotalTokens:        req.TotalTokens,
		PricePerTokenCents: req.PricePerTokenCents,
	}, actorID)
	if err != nil {
		utils.HandleAppError(w, err)
		return
	}

	utils.RespondWithJSON(w, http.StatusCreated, p)
}

// PATCH /api/v1/properties/{propertyID}/status  (admin)
func (c *PropertyController) UpdatePropertyStatusHandler(w http.ResponseWriter, r *http.Request) {
	actorID, ok := userIDFromContext(w, r)
	if !ok {
		return
	}
	propertyID, ok := pathUUID(w, r, "propertyID")
	if !ok {
		return
	}

	var req dtos.UpdatePropertyStatusRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	p, err := c.propertyService.SetPropertyStatus(r.Context(), propertyID, models.PropertyStatusType(req.Status), actorID)
	if err != nil {
		utils.HandleAppError(w, err)
		return
	}

	utils.RespondWithJSON(w, http.StatusOK, p)
}

// POST /api/v1/properties/{propertyID}/rental-records  (admin)
func (c *PropertyController) RecordRentalIncomeHandler(w http.ResponseWriter, r *http.Request) {
	actorID, ok := userIDFromContext(w, r)
	if !ok {
		return
	}
	propertyID, ok := pathUUID(w, r, "propertyID")
	if !ok {
		return
	}

	var req dtos.RentalRecordRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	rec, err := c.propertyService.RecordRentalIncome(r.Context(), services.RentalRecordRequest{
		PropertyID:       propertyID,
		MonthYear:        req.MonthYear,
		TotalIncomeCents: req.TotalIncomeCents,
		ExpensesCents:    req.ExpensesCents,
	}, actorID)
	if err != nil {
		utils.HandleAppError(w, err)
		return
	}

	utils.RespondWithJSON(w, http.StatusCreated, rec)
}

// POST /api/v1/properties/{propertyID}/distributions  (admin)
func (c *PropertyController) DistributeHandler(w http.ResponseWriter, r *http.Request) {
	propertyID, ok := pathUUID(w, r, "propertyID")
	if !ok {
		return
	}

	var req dtos.DistributeRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	result, err := c.distributionService.DistributeRentalIncome(r.Context(), propertyID, req.MonthYear)
	if err != nil {
		utils.HandleAppError(w, err)
		return
	}

	utils.RespondWithJSON(w, http.StatusOK, dtos.DistributeResponse{
		RentalRecordID:   result.RentalRecordID,
		PropertyID:       result.PropertyID,
		MonthYear:        result.MonthYear,
		NetIncomeCents:   result.NetIncomeCents,
		HoldersPaid:      result.HoldersPaid,
		DistributedCents: result.DistributedCents,
	})
}
