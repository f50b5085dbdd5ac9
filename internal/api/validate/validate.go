package validate

import (
	"strings"

	"github.com/shopspring/decimal"
)

type ErrField struct {
	Field string `json:"field"`
	Msg   string `json:"msg"`
}

type Errs []ErrField

func (e Errs) Error() string {
	var b strings.Builder
	for i, ef := range e {
		if i > 0 {
			b.WriteString("; ")
		}
		b.WriteString(ef.Field + ": " + ef.Msg)
	}
	return b.String()
}

func Required(field, value string) *ErrField {
	if strings.TrimSpace(value) == "" {
		return &ErrField{Field: field, Msg: "required"}
	}
	return nil
}

func Email(field, value string) *ErrField {
	at := strings.Index(value, "@")
	if at < 1 || at == len(value)-1 || !strings.Contains(value[at:], ".") {
		return &ErrField{Field: field, Msg: "invalid email"}
	}
	return nil
}

func MinLen(field, value string, n int) *ErrField {
	if len(value) < n {
		return &ErrField{Field: field, Msg: "too short"}
	}
	return nil
}

// PositiveAmount parses a decimal money amount with at most two fraction digits.
func PositiveAmount(field, value string) (decimal.Decimal, *ErrField) {
	d, err := decimal.NewFromString(strings.TrimSpace(value))
	if err != nil {
		return decimal.Zero, &ErrField{Field: field, Msg: "invalid amount"}
	}
	if !d.IsPositive() {
		return decimal.Zero, &ErrField{Field: field, Msg: "must be positive"}
	}
	if d.Exponent() < -2 {
		return decimal.Zero, &ErrField{Field: field, Msg: "at most two decimal places"}
	}
	return d, nil
}
