package handler

import (
	"errors"
	"net/http"
	"reflect"

	"github.com/Bushels/PipeVault-sub014/internal/apierror"
	"github.com/Bushels/PipeVault-sub014/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var validate = validator.New()

func init() {
	// Register decimal.Decimal as a numeric type so that validator tags like
	// min=0, gt=0, required work without panicking ("Bad field type decimal.Decimal").
	validate.RegisterCustomTypeFunc(func(field reflect.Value) interface{} {
		if v, ok := field.Interface().(decimal.Decimal); ok {
			f, _ := v.Float64()
			return f
		}
		return nil
	}, decimal.Decimal{})
}

// bindAndValidate binds JSON body and runs go-playground/validator tags.
// Returns false and writes the error response if validation fails —
// the caller should return immediately without writing another response.
func bindAndValidate(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		c.JSON(http.StatusBadRequest, apierror.New("invalid JSON: "+err.Error()))
		return false
	}
	if err := validate.Struct(req); err != nil {
		fields := make(map[string]string)
		for _, fe := range err.(validator.ValidationErrors) {
			fields[fe.Field()] = fe.Tag()
		}
		c.JSON(http.StatusUnprocessableEntity, apierror.NewValidation(fields))
		return false
	}
	return true
}

// parseID parses the :id path param as a UUID, writing a 400 on failure.
func parseID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, apierror.New("invalid id"))
		return uuid.Nil, false
	}
	return id, true
}

// respondError maps service-layer sentinel errors onto the HTTP error taxonomy.
// Anything unrecognized collapses to a 500 with a generic message so internal
// details never leak to clients.
func respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrNotFound):
		c.JSON(http.StatusNotFound, apierror.NewKind("not_found", "resource not found"))
	case errors.Is(err, service.ErrInvalidTransition):
		c.JSON(http.StatusConflict, apierror.NewKind("invalid_transition", err.Error()))
	case errors.Is(err, service.ErrCapacityExceeded):
		c.JSON(http.StatusConflict, apierror.NewKind("capacity_exceeded", err.Error()))
	case errors.Is(err, service.ErrSlotOccupied):
		c.JSON(http.StatusConflict, apierror.NewKind("slot_occupied", err.Error()))
	case errors.Is(err, service.ErrInvalidQuantity):
		c.JSON(http.StatusUnprocessableEntity, apierror.NewKind("invalid_quantity", err.Error()))
	default:
		c.JSON(http.StatusInternalServerError, apierror.New("internal error"))
	}
}
