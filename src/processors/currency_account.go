package processors

import (
	"fmt"

	"github.com/username/steuerrechner/backend/src/models"
)

// ForeignCurrencyAccount collects the currency flows of one foreign currency
// as transactions, for the opening/closing pair view used by the per-year
// currency-gain tables. Inflows are opening buys, outflows closing sells;
// AddTransaction enforces that convention so the FIFO pair matcher can be
// reused unchanged.
type ForeignCurrencyAccount struct {
	Currency     string
	Transactions []models.Transaction
}

func NewForeignCurrencyAccount(currency string) *ForeignCurrencyAccount {
	return &ForeignCurrencyAccount{Currency: currency}
}

func (a *ForeignCurrencyAccount) AddTransaction(txn models.Transaction) error {
	if txn.AmountOrig == nil || txn.Amount == nil {
		return fmt.Errorf("transaction amount was not provided")
	}
	if txn.AmountOrig.Currency != a.Currency {
		return fmt.Errorf("transaction currency %s does not match this account's currency %s",
			txn.AmountOrig.Currency, a.Currency)
	}
	if !txn.Quantity.Equal(txn.AmountOrig.Amount) {
		return fmt.Errorf("quantity must match original amount")
	}
	if txn.Amount.Sign() != txn.AmountOrig.Sign() {
		return fmt.Errorf("both amounts must have the same sign")
	}
	if txn.AmountOrig.IsPositive() && txn.BuySell != models.Buy {
		return fmt.Errorf("positive amounts must be buys")
	}
	if txn.AmountOrig.IsNegative() && txn.BuySell != models.Sell {
		return fmt.Errorf("negative amounts must be sells")
	}
	buyOpens := txn.BuySell == models.Buy && txn.OpenClose == models.Open
	sellCloses := txn.BuySell == models.Sell && txn.OpenClose == models.Close
	if !buyOpens && !sellCloses {
		return fmt.Errorf("buy must match open, sell must match close")
	}
	a.Transactions = append(a.Transactions, txn)
	return nil
}

// TransactionPairs runs the FIFO pair matcher over the account's flows for
// closings dated in year.
func (a *ForeignCurrencyAccount) TransactionPairs(year int) []TransactionCollection {
	return ToOpeningClosingPairs(a.Transactions, year)
}
