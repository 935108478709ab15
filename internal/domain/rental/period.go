package rental

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
)

var ErrInvalidPeriod = errors.New("invalid rental period")

// MaxDays より長い期間は解釈できない扱い
const MaxDays = 3650

// "1 week" / "3 days" のようなラベルを日数にする
func ParseDays(label string) (int, error) {
	parts := strings.Fields(strings.ToLower(label))
	if len(parts) != 2 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidPeriod, label)
	}

	n, err := strconv.Atoi(parts[0])
	if err != nil || n < 0 || n > MaxDays {
		return 0, fmt.Errorf("%w: %q", ErrInvalidPeriod, label)
	}

	var days int
	switch parts[1] {
	case "day", "days":
		days = n
	case "week", "weeks":
		days = n * 7
	default:
		return 0, fmt.Errorf("%w: %q", ErrInvalidPeriod, label)
	}
	if days > MaxDays {
		return 0, fmt.Errorf("%w: %q", ErrInvalidPeriod, label)
	}
	return days, nil
}

// Calculator は期間計算の入口。パース失敗はログに残して0日にする
type Calculator struct {
	log *zap.Logger
}

func NewCalculator(log *zap.Logger) *Calculator {
	if log == nil {
		log = zap.NewNop()
	}
	return &Calculator{log: log}
}

func (c *Calculator) Days(label string) int {
	d, err := ParseDays(label)
	if err != nil {
		c.log.Warn("rental period not parsed, using 0 days", zap.String("rental_period", label), zap.Error(err))
		return 0
	}
	return d
}

// 配達日(日付) + 日数
func (c *Calculator) ExpectedReturnDate(deliveredAt time.Time, label string) time.Time {
	return dateOf(deliveredAt).AddDate(0, 0, c.Days(label))
}

// 返却予定日が今日より前なら延滞
func (c *Calculator) IsOverdue(deliveredAt time.Time, label string, now time.Time) bool {
	today := dateOf(now.In(deliveredAt.Location()))
	return c.ExpectedReturnDate(deliveredAt, label).Before(today)
}

func dateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
