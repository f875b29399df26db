package client

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"github.com/ttacon/libphonenumber"

	"github.com/Proton-105/inovabank/internal/domain"
	apperrors "github.com/Proton-105/inovabank/internal/errors"
)

// PhoneRegion is the default region for numbers typed without a country code.
const PhoneRegion = "BR"

var validate = validator.New(validator.WithRequiredStructEnabled())

// EditForm is the admin edit dialog. Every field is text as typed; an empty
// value clears the column.
type EditForm struct {
	FullName       string `json:"full_name" validate:"max=200"`
	Email          string `json:"email" validate:"omitempty,email"`
	Phone          string `json:"phone"`
	SalaryAmount   string `json:"salary_amount"`
	SalaryDay      string `json:"salary_day"`
	AdvanceAmount  string `json:"advance_amount"`
	AdvanceDay     string `json:"advance_day"`
	InitialBalance string `json:"initial_balance"`
	CreditLimit    string `json:"credit_limit"`
	// HasCreditCard is shown in the dialog but not persisted.
	HasCreditCard bool `json:"has_credit_card"`
}

// FormFromClient prefills the edit form. Unset fields become empty strings.
func FormFromClient(c *domain.Client) EditForm {
	return EditForm{
		FullName:       domain.StringOrEmpty(c.FullName),
		Email:          domain.StringOrEmpty(c.Email),
		Phone:          domain.StringOrEmpty(c.Phone),
		SalaryAmount:   decimalText(c.SalaryAmount),
		SalaryDay:      intText(c.SalaryDay),
		AdvanceAmount:  decimalText(c.AdvanceAmount),
		AdvanceDay:     intText(c.AdvanceDay),
		InitialBalance: decimalText(c.InitialBalance),
		CreditLimit:    decimalText(c.CreditLimit),
		HasCreditCard:  false,
	}
}

// Parse converts the form into a full update, validating each field.
func (f EditForm) Parse() (domain.ClientUpdate, error) {
	var (
		update domain.ClientUpdate
		errs   []string
	)

	if err := validate.Struct(f); err != nil {
		var fieldErrs validator.ValidationErrors
		if !errors.As(err, &fieldErrs) {
			return update, apperrors.NewValidationError(err.Error())
		}
		for _, fe := range fieldErrs {
			errs = append(errs, fmt.Sprintf("%s inválido", fieldLabel(fe.Field())))
		}
	}

	update.FullName = optionalText(f.FullName)
	update.Email = optionalText(f.Email)

	phone, err := normalizePhone(f.Phone)
	if err != nil {
		errs = append(errs, err.Error())
	}
	update.Phone = phone

	amounts := []struct {
		label       string
		raw         string
		allowNeg    bool
		destination **decimal.Decimal
	}{
		{"salário", f.SalaryAmount, false, &update.SalaryAmount},
		{"adiantamento", f.AdvanceAmount, false, &update.AdvanceAmount},
		{"saldo inicial", f.InitialBalance, true, &update.InitialBalance},
		{"limite de crédito", f.CreditLimit, false, &update.CreditLimit},
	}
	for _, a := range amounts {
		value, err := parseAmount(a.label, a.raw, a.allowNeg)
		if err != nil {
			errs = append(errs, err.Error())
			continue
		}
		*a.destination = value
	}

	days := []struct {
		label       string
		raw         string
		destination **int
	}{
		{"dia do salário", f.SalaryDay, &update.SalaryDay},
		{"dia do adiantamento", f.AdvanceDay, &update.AdvanceDay},
	}
	for _, d := range days {
		value, err := parseDay(d.label, d.raw)
		if err != nil {
			errs = append(errs, err.Error())
			continue
		}
		*d.destination = value
	}

	if len(errs) > 0 {
		return domain.ClientUpdate{}, apperrors.NewValidationError(strings.Join(errs, "; "))
	}

	return update, nil
}

func optionalText(raw string) *string {
	if raw == "" {
		return nil
	}
	v := raw
	return &v
}

func normalizePhone(raw string) (*string, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}

	num, err := libphonenumber.Parse(raw, PhoneRegion)
	if err != nil || !libphonenumber.IsValidNumber(num) {
		return nil, fmt.Errorf("telefone inválido: %q", raw)
	}

	formatted := libphonenumber.Format(num, libphonenumber.E164)
	return &formatted, nil
}

func parseAmount(label, raw string, allowNegative bool) (*decimal.Decimal, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}

	value, err := decimal.NewFromString(raw)
	if err != nil {
		return nil, fmt.Errorf("%s inválido: %q", label, raw)
	}
	if !allowNegative && value.IsNegative() {
		return nil, fmt.Errorf("%s não pode ser negativo", label)
	}
	return &value, nil
}

func parseDay(label, raw string) (*int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}

	day, err := strconv.Atoi(raw)
	if err != nil || day < 1 || day > 31 {
		return nil, fmt.Errorf("%s deve estar entre 1 e 31", label)
	}
	return &day, nil
}

func fieldLabel(field string) string {
	switch field {
	case "FullName":
		return "nome"
	case "Email":
		return "email"
	default:
		return strings.ToLower(field)
	}
}

func decimalText(d *decimal.Decimal) string {
	if d == nil {
		return ""
	}
	return d.String()
}

func intText(i *int) string {
	if i == nil {
		return ""
	}
	return strconv.Itoa(*i)
}
