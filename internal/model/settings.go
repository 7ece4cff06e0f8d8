package model

import (
	"strings"
	"time"
)

// Plan is the subscription tier of the shop.
type Plan string

const (
	PlanFree Plan = "free"
	PlanPro  Plan = "pro"
)

// Settings are the shop-wide preferences. There is a single row.
type Settings struct {
	CompanyName          string    `json:"company_name" db:"company_name" validate:"required,min=1,max=160"`
	CompanyLogoURL       string    `json:"company_logo_url" db:"company_logo_url" validate:"omitempty,url"`
	Locale               string    `json:"locale" db:"locale" validate:"required,oneof=pt-BR en-US"`
	Currency             string    `json:"currency" db:"currency" validate:"required,oneof=BRL USD"`
	TaxPercent           float64   `json:"tax_percent" db:"tax_percent" validate:"gte=0,lte=100"`
	DefaultMarkupPercent float64   `json:"default_markup_percent" db:"default_markup_percent" validate:"gte=0"`
	DefaultUnit          Unit      `json:"default_unit" db:"default_unit" validate:"required,unit"`
	Theme                string    `json:"theme" db:"theme" validate:"required,oneof=light dark system"`
	Plan                 Plan      `json:"plan" db:"plan" validate:"required,oneof=free pro"`
	UpdatedAt            time.Time `json:"updated_at" db:"updated_at"`
}

// DefaultSettings returns the settings a fresh shop starts with.
func DefaultSettings() Settings {
	return Settings{
		CompanyName:          "Minha Gráfica",
		Locale:               "pt-BR",
		Currency:             "BRL",
		DefaultMarkupPercent: 40,
		DefaultUnit:          "m",
		Theme:                "system",
		Plan:                 PlanFree,
	}
}

// NormalizeLocale maps any locale tag onto the two supported ones.
func NormalizeLocale(locale string) string {
	if strings.HasPrefix(strings.ToLower(strings.TrimSpace(locale)), "pt") {
		return "pt-BR"
	}
	if strings.TrimSpace(locale) == "" {
		return "pt-BR"
	}
	return "en-US"
}

// NormalizeCurrency keeps a supported currency or derives one from the locale.
func NormalizeCurrency(currency, locale string) string {
	switch c := strings.ToUpper(strings.TrimSpace(currency)); c {
	case "BRL", "USD":
		return c
	}
	if NormalizeLocale(locale) == "pt-BR" {
		return "BRL"
	}
	return "USD"
}

// Normalize fixes up locale and currency so that formatting never fails.
func (s *Settings) Normalize() {
	s.Locale = NormalizeLocale(s.Locale)
	s.Currency = NormalizeCurrency(s.Currency, s.Locale)
	if s.Plan == "" {
		s.Plan = PlanFree
	}
	if s.Theme == "" {
		s.Theme = "system"
	}
	if s.DefaultUnit == "" {
		s.DefaultUnit = "m"
	}
}
