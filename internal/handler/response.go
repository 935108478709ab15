package handler

import (
	"net/http"

	"rentalengine/internal/middleware"
	"rentalengine/internal/usecase"

	"github.com/labstack/echo/v4"
)

type ErrorResponse struct {
	Error             string `json:"error"`
	ProductID         string `json:"product_id,omitempty"`
	HasOverdueReturns bool   `json:"has_overdue_returns,omitempty"`
}

// usecase.Errorの種類でステータスを決める
func writeError(c echo.Context, err error) error {
	if err == nil {
		return nil
	}
	ue, ok := usecase.AsError(err)
	if !ok {
		c.Logger().Error(err)
		return c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal error"})
	}

	switch ue.Kind {
	case usecase.KindNotFound:
		return c.JSON(http.StatusNotFound, ErrorResponse{Error: ue.Message, ProductID: ue.ProductID})
	case usecase.KindInsufficientStock:
		return c.JSON(http.StatusConflict, ErrorResponse{Error: ue.Message, ProductID: ue.ProductID})
	case usecase.KindOverdueReturns:
		return c.JSON(http.StatusForbidden, ErrorResponse{Error: ue.Message, HasOverdueReturns: true})
	case usecase.KindValidation:
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: ue.Message})
	}

	//500（原因は返さない）
	c.Logger().Error(err)
	return c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal error"})
}

// AuthJWTが入れたuser_id
func getUserIDFromContext(c echo.Context) (string, bool) {
	id, ok := c.Get(middleware.CtxUserIDKey).(string)
	if !ok || id == "" {
		return "", false
	}
	return id, true
}
