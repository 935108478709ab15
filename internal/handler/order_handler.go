package handler

import (
	"net/http"
	"strings"
	"time"

	"rentalengine/internal/config"
	"rentalengine/internal/domain/model"
	"rentalengine/internal/middleware"
	"rentalengine/internal/usecase"
	"rentalengine/internal/validator"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
)

type OrderHandler struct {
	orders  *usecase.OrderUsecase
	returns *usecase.ReturnUsecase
}

func NewOrderHandler(orders *usecase.OrderUsecase, returns *usecase.ReturnUsecase) *OrderHandler {
	return &OrderHandler{orders: orders, returns: returns}
}

type OrderItemRequest struct {
	ProductID            string          `json:"product_id"`
	Size                 string          `json:"size"`
	Color                string          `json:"color"`
	RentalPeriod         string          `json:"rental_period"`
	Quantity             int64           `json:"quantity"`
	Price                decimal.Decimal `json:"price"`
	DesiredDeliveryDate  string          `json:"desired_delivery_date"` // YYYY-MM-DD
	NeedsExpressDelivery bool            `json:"needs_express_delivery"`
}

type PaymentRequest struct {
	PaymentMethod string `json:"payment_method"`
	CardLast4     string `json:"card_last4"`
}

type OrderCreateRequest struct {
	Items           []OrderItemRequest    `json:"items"`
	Discount        decimal.Decimal       `json:"discount"`
	DeliveryFee     decimal.Decimal       `json:"delivery_fee"`
	DeliveryAddress model.DeliveryAddress `json:"delivery_address"`
	Contact         model.ContactInfo     `json:"contact"`
	Payment         *PaymentRequest       `json:"payment"`
}

type ReturnSubmitRequest struct {
	Condition string `json:"condition"`
}

type OverdueCheckResponse struct {
	HasOverdueReturns bool `json:"has_overdue_returns"`
}

func (h *OrderHandler) RegisterRoutes(e *echo.Echo, cfg config.Config) {
	g := e.Group("/orders")
	g.Use(middleware.AuthJWT(cfg))

	g.POST("", h.create)
	g.GET("", h.list)
	g.GET("/overdue-check", h.overdueCheck)
	g.GET("/number/:number", h.byNumber)
	g.GET("/:id", h.detail)
	g.PATCH("/:id/items/:productId/return", h.submitReturn)
}

func (h *OrderHandler) create(c echo.Context) error {
	customerID, ok := getUserIDFromContext(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
	}

	var req OrderCreateRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid body"})
	}

	key := strings.TrimSpace(c.Request().Header.Get("X-Idempotency-Key"))
	cardLast4 := ""
	if req.Payment != nil {
		cardLast4 = req.Payment.CardLast4
	}
	if err := validator.ValidateOrderRequest(req.Contact.Email, cardLast4, key); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
	}

	in := usecase.CreateOrderInput{
		Items:           make([]usecase.CreateOrderItemInput, 0, len(req.Items)),
		Discount:        req.Discount,
		DeliveryFee:     req.DeliveryFee,
		DeliveryAddress: req.DeliveryAddress,
		Contact:         req.Contact,
		//二重送信防止キーはヘッダーから受け取る（bodyには入れない）
		IdempotencyKey: key,
	}
	for _, it := range req.Items {
		var desired *time.Time
		if s := strings.TrimSpace(it.DesiredDeliveryDate); s != "" {
			d, err := time.Parse(time.DateOnly, s)
			if err != nil {
				return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid desired_delivery_date"})
			}
			desired = &d
		}
		in.Items = append(in.Items, usecase.CreateOrderItemInput{
			ProductID:            it.ProductID,
			Size:                 it.Size,
			Color:                it.Color,
			RentalPeriod:         it.RentalPeriod,
			Quantity:             it.Quantity,
			Price:                it.Price,
			DesiredDeliveryDate:  desired,
			NeedsExpressDelivery: it.NeedsExpressDelivery,
		})
	}
	if req.Payment != nil {
		in.Payment = &usecase.PaymentInput{
			PaymentMethod: req.Payment.PaymentMethod,
			CardLast4:     req.Payment.CardLast4,
		}
	}

	out, err := h.orders.CreateOrder(c.Request().Context(), customerID, in)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, out)
}

func (h *OrderHandler) list(c echo.Context) error {
	customerID, ok := getUserIDFromContext(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
	}

	out, err := h.orders.ListOrdersForCustomer(c.Request().Context(), customerID)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *OrderHandler) detail(c echo.Context) error {
	customerID, ok := getUserIDFromContext(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
	}

	out, err := h.orders.GetOrder(c.Request().Context(), customerID, c.Param("id"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *OrderHandler) byNumber(c echo.Context) error {
	customerID, ok := getUserIDFromContext(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
	}

	out, err := h.orders.GetOrderByNumber(c.Request().Context(), customerID, c.Param("number"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *OrderHandler) overdueCheck(c echo.Context) error {
	customerID, ok := getUserIDFromContext(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
	}

	overdue, err := h.orders.HasOverdueReturns(c.Request().Context(), customerID)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, OverdueCheckResponse{HasOverdueReturns: overdue})
}

func (h *OrderHandler) submitReturn(c echo.Context) error {
	customerID, ok := getUserIDFromContext(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
	}

	var req ReturnSubmitRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid body"})
	}
	if err := validator.ValidateReturnCondition(req.Condition); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
	}

	out, err := h.returns.SubmitReturn(c.Request().Context(), customerID, c.Param("id"), c.Param("productId"), req.Condition)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}
