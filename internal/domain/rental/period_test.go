package rental

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestParseDays(t *testing.T) {
	cases := []struct {
		label string
		want  int
		ok    bool
	}{
		{"2 week", 14, true},
		{"1 week", 7, true},
		{"3 days", 3, true},
		{"1 day", 1, true},
		{"  4 Weeks ", 28, true},
		{"garbage", 0, false},
		{"", 0, false},
		{"5", 0, false},
		{"two weeks", 0, false},
		{"3 months", 0, false},
		{"-1 days", 0, false},
		{"521 weeks", 0, false},
		{"3650 days", 3650, true},
		{"3651 days", 0, false},
		{"2000000000000000000 weeks", 0, false},
		{"99999999999999999999 days", 0, false},
	}
	calc := NewCalculator(nil)

	for _, tc := range cases {
		t.Run(tc.label, func(t *testing.T) {
			got, err := ParseDays(tc.label)
			assert.Equal(t, tc.want, got)
			if tc.ok {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, ErrInvalidPeriod)
			}
			assert.Equal(t, tc.want, calc.Days(tc.label))
		})
	}
}

func TestExpectedReturnDate(t *testing.T) {
	calc := NewCalculator(nil)
	delivered := time.Date(2026, 3, 1, 18, 30, 0, 0, time.UTC)

	assert.Equal(t, time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC), calc.ExpectedReturnDate(delivered, "2 week"))
	assert.Equal(t, time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), calc.ExpectedReturnDate(delivered, "garbage"))
}

func TestIsOverdue(t *testing.T) {
	calc := NewCalculator(nil)
	delivered := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	//返却予定日は3/4
	assert.False(t, calc.IsOverdue(delivered, "3 days", time.Date(2026, 3, 4, 23, 0, 0, 0, time.UTC)))
	assert.True(t, calc.IsOverdue(delivered, "3 days", time.Date(2026, 3, 5, 0, 0, 1, 0, time.UTC)))

	//巨大な週数でも過去日付にはならない
	assert.False(t, calc.IsOverdue(delivered, "2000000000000000000 weeks", time.Date(2026, 3, 1, 23, 0, 0, 0, time.UTC)))

	//解釈できない期間は配達日当日が期限
	assert.False(t, calc.IsOverdue(delivered, "garbage", time.Date(2026, 3, 1, 23, 0, 0, 0, time.UTC)))
	assert.True(t, calc.IsOverdue(delivered, "garbage", time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)))
}

func TestCalculator_LogsUnparseableLabel(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	calc := NewCalculator(zap.New(core))

	assert.Equal(t, 0, calc.Days("forever"))
	assert.Equal(t, 1, logs.Len())
	assert.Equal(t, 7, calc.Days("1 week"))
	assert.Equal(t, 1, logs.Len())
}
