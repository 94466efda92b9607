package google

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"rewards/internal/rewards"
)

var (
	idHeaders       = []string{"transactionid", "transaction id", "id"}
	customerHeaders = []string{"customerid", "customer id", "customer"}
	amountHeaders   = []string{"amount", "importo"}
	dateHeaders     = []string{"date", "data"}
)

// Day zero of the spreadsheet serial date system.
var sheetsEpoch = time.Date(1899, time.December, 30, 0, 0, 0, 0, time.UTC)

// parseTransactions converts a values matrix whose first row is a header
// into transaction records. Cells that do not hold a usable amount or date
// are kept as invalid data for the engine to skip.
func parseTransactions(values [][]interface{}) ([]*rewards.Transaction, error) {
	out := make([]*rewards.Transaction, 0, len(values))
	if len(values) == 0 {
		return out, nil
	}
	headers := toStrings(values[0])
	colID := indexOfAny(headers, idHeaders)
	colCustomer := indexOfAny(headers, customerHeaders)
	colAmount := indexOfAny(headers, amountHeaders)
	colDate := indexOfAny(headers, dateHeaders)
	if colCustomer == -1 || colAmount == -1 {
		return nil, fmt.Errorf("unexpected transactions header: need CustomerID and Amount, got headers=%v", headers)
	}

	for i := 1; i < len(values); i++ {
		row := values[i]
		if isBlank(row) {
			continue
		}
		tx := &rewards.Transaction{
			TransactionID: strings.TrimSpace(cellString(row, colID)),
			CustomerID:    strings.TrimSpace(cellString(row, colCustomer)),
			Amount:        parseAmountCell(cell(row, colAmount)),
			Date:          parseDateCell(cell(row, colDate)),
		}
		if tx.TransactionID == "" {
			tx.TransactionID = "row-" + strconv.Itoa(i+1)
		}
		out = append(out, tx)
	}
	return out, nil
}

func parseAmountCell(v interface{}) rewards.Amount {
	switch val := v.(type) {
	case nil:
		return rewards.Amount{}
	case float64:
		return rewards.Number(val)
	case string:
		s := strings.TrimSpace(val)
		if s == "" {
			return rewards.Amount{}
		}
		if f, err := strconv.ParseFloat(strings.ReplaceAll(s, ",", "."), 64); err == nil {
			return rewards.Number(f)
		}
		return rewards.NonNumeric(val)
	default:
		return rewards.NonNumeric(val)
	}
}

func parseDateCell(v interface{}) rewards.Date {
	switch val := v.(type) {
	case string:
		return rewards.ParseDate(val)
	case float64:
		days := int(val)
		if days <= 0 {
			return rewards.Date{}
		}
		t := sheetsEpoch.AddDate(0, 0, days)
		return rewards.CivilDate(t.Year(), t.Month(), t.Day())
	default:
		return rewards.Date{}
	}
}

func parseCustomerNames(values [][]interface{}) map[string]string {
	names := map[string]string{}
	for i, row := range values {
		cols := toStrings(row)
		id := safeGet(cols, 0)
		if id == "" || (i == 0 && strings.EqualFold(id, "id")) {
			continue
		}
		if name := safeGet(cols, 1); name != "" {
			names[id] = name
		}
	}
	return names
}

func cell(row []interface{}, idx int) interface{} {
	if idx < 0 || idx >= len(row) {
		return nil
	}
	return row[idx]
}

func cellString(row []interface{}, idx int) string {
	v := cell(row, idx)
	if v == nil {
		return ""
	}
	if f, ok := v.(float64); ok {
		return strconv.FormatFloat(f, 'f', -1, 64)
	}
	return fmt.Sprint(v)
}

func isBlank(row []interface{}) bool {
	for _, v := range row {
		if strings.TrimSpace(fmt.Sprint(v)) != "" {
			return false
		}
	}
	return true
}

func toStrings(in []interface{}) []string {
	out := make([]string, len(in))
	for i, v := range in {
		out[i] = strings.TrimSpace(fmt.Sprint(v))
	}
	return out
}

func indexOfAny(headers []string, names []string) int {
	for i, h := range headers {
		h = strings.ToLower(strings.TrimSpace(h))
		for _, n := range names {
			if h == n {
				return i
			}
		}
	}
	return -1
}

func safeGet(arr []string, idx int) string {
	if idx < 0 || idx >= len(arr) {
		return ""
	}
	return arr[idx]
}
