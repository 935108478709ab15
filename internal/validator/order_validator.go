package validator

import (
	"errors"
	"regexp"
	"strings"
)

var (
	// 入力が不正
	ErrInvalidInput = errors.New("invalid input")
)

var (
	emailRe = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	last4Re = regexp.MustCompile(`^[0-9]{4}$`)
	// 英数字と - _ . : のみ
	idempotencyKeyRe = regexp.MustCompile(`^[A-Za-z0-9\-_.:]{1,255}$`)
)

// FieldError はどの項目がだめだったか
type FieldError struct {
	Field string
}

func (e *FieldError) Error() string { return "invalid " + e.Field }

func (e *FieldError) Unwrap() error { return ErrInvalidInput }

// 注文作成リクエストの書式チェック（必須や金額はusecase側）
func ValidateOrderRequest(contactEmail, cardLast4, idempotencyKey string) error {
	// email形式
	if email := strings.TrimSpace(contactEmail); email != "" && !isEmailLike(email) {
		return &FieldError{Field: "contact.email"}
	}

	// カード下4桁は数字4つ
	if cardLast4 != "" && !last4Re.MatchString(cardLast4) {
		return &FieldError{Field: "payment.card_last4"}
	}

	// ヘッダー未指定はOK
	if idempotencyKey != "" && !idempotencyKeyRe.MatchString(idempotencyKey) {
		return &FieldError{Field: "idempotency_key"}
	}

	return nil
}

// 返却状態の入力（空はだめ）
func ValidateReturnCondition(condition string) error {
	if strings.TrimSpace(condition) == "" {
		return &FieldError{Field: "condition"}
	}
	return nil
}

// 簡易メール形式をチェック
func isEmailLike(s string) bool {
	return emailRe.MatchString(s)
}
