package accounts

import "github.com/insightdelivered/tax-declaration-converter/internal/models"

// Keys naming the figures the default table feeds.
const (
	KeyCurrentAssets = "current_assets"
	KeyIntangibles   = "intangibles"
	KeyLiabilities   = "liabilities"
	KeyEquity        = "equity"
	KeyNetIncome     = "net_income"
	KeyRevenue       = "revenue"
	KeyCost          = "cost"
	KeyReceivables   = "receivables"
)

// DefaultTargets returns the target accounts of the income tax declaration
// form, in precedence order.
func DefaultTargets() []models.TargetAccount {
	return []models.TargetAccount{
		{Code: "349", Fragment: "TOTAL ACTIVOS CORRIENTES", Key: KeyCurrentAssets},
		{Code: "389", Fragment: "TOTAL ACTIVOS INTANGIBLES", Key: KeyIntangibles},
		{Code: "599", Fragment: "TOTAL DEL PASIVO", Key: KeyLiabilities},
		{Code: "698", Fragment: "TOTAL PATRIMONIO NETO", Key: KeyEquity},
		{Code: "701", Fragment: "UTILIDAD DEL EJERCICIO", Key: KeyNetIncome},
		{Code: "6999", Fragment: "TOTAL INGRESOS", Key: KeyRevenue},
		{Code: "7991", Fragment: "TOTAL COSTOS", Key: KeyCost},
		{Code: "314", Fragment: "Locales", Key: KeyReceivables},
		{Code: "316", Fragment: "Locales", Key: KeyReceivables},
		{Code: "318", Fragment: "Locales", Key: KeyReceivables},
	}
}
