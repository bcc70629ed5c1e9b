package repoargs

import "github.com/shopspring/decimal"

type CreateAccount struct {
	Username string
	Password string
	Balance  decimal.Decimal
}
