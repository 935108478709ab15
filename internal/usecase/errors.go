package usecase

import (
	"errors"
	"fmt"
)

type ErrorKind string

const (
	KindNotFound          ErrorKind = "not_found"
	KindInsufficientStock ErrorKind = "insufficient_stock"
	KindOverdueReturns    ErrorKind = "overdue_returns"
	KindValidation        ErrorKind = "validation"
	KindInternal          ErrorKind = "internal"
)

// Error はusecaseが返すエラー。handlerはKindでステータスを決める
type Error struct {
	Kind    ErrorKind
	Message string
	//在庫不足/商品なしのときの対象商品
	ProductID string
	//延滞返却がある顧客の注文拒否
	HasOverdueReturns bool
	Err               error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// errors.Is(err, ErrNotFound) のようにKindだけで比較する
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Message == "" && t.Kind == e.Kind
}

var (
	ErrNotFound          = &Error{Kind: KindNotFound}
	ErrInsufficientStock = &Error{Kind: KindInsufficientStock}
	ErrOverdueReturns    = &Error{Kind: KindOverdueReturns}
	ErrValidation        = &Error{Kind: KindValidation}
	ErrInternal          = &Error{Kind: KindInternal}
)

func AsError(err error) (*Error, bool) {
	var e *Error
	ok := errors.As(err, &e)
	return e, ok
}

func notFound(msg string) error {
	return &Error{Kind: KindNotFound, Message: msg}
}

func productNotFound(productID string) error {
	return &Error{Kind: KindNotFound, Message: "product not found: " + productID, ProductID: productID}
}

func insufficientStock(productID, name string) error {
	return &Error{Kind: KindInsufficientStock, Message: "insufficient stock for product: " + name, ProductID: productID}
}

func overdueReturns() error {
	return &Error{Kind: KindOverdueReturns, Message: "customer has overdue returns", HasOverdueReturns: true}
}

func validation(msg string) error {
	return &Error{Kind: KindValidation, Message: msg}
}

func internal(msg string, err error) error {
	return &Error{Kind: KindInternal, Message: msg, Err: err}
}

// usecaseのエラーはそのまま、それ以外はInternalに包む
func wrapInternal(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := AsError(err); ok {
		return err
	}
	return internal("db error", err)
}
