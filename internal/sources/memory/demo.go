package memory

import "rewards/internal/rewards"

// DemoTransactions is the data set served when no seed file exists. It
// spans three months for three customers and includes the malformed
// records a real feed carries.
func DemoTransactions() []*rewards.Transaction {
	tx := func(id, customer string, amount rewards.Amount, date string) *rewards.Transaction {
		return &rewards.Transaction{TransactionID: id, CustomerID: customer, Amount: amount, Date: rewards.ParseDate(date)}
	}
	n := rewards.Number
	return []*rewards.Transaction{
		tx("T001", "C001", n(120), "2025-01-05"),
		tx("T002", "C001", n(75), "2025-01-18"),
		tx("T003", "C001", n(45.5), "2025-01-27"),
		tx("T004", "C001", n(210.99), "2025-02-03"),
		tx("T005", "C001", n(99.99), "2025-02-14"),
		tx("T006", "C001", n(150), "2025-03-09"),
		tx("T007", "C001", rewards.NonNumeric("N/A"), "2025-03-12"),
		tx("T008", "C002", n(55.25), "2025-01-02"),
		tx("T009", "C002", n(101), "2025-01-30"),
		tx("T010", "C002", n(-20), "2025-02-11"),
		tx("T011", "C002", n(320.4), "2025-02-21"),
		tx("T012", "C002", n(64), "2025-03-01"),
		tx("T013", "C002", n(88.8), "not-a-date"),
		tx("T014", "C003", n(500), "2025-01-10"),
		tx("T015", "C003", n(12.99), "2025-02-02"),
		tx("T016", "C003", n(100), "2025-02-28"),
		tx("T017", "C003", n(100.5), "2025-03-15"),
		tx("T018", "C003", n(250.75), "2025-03-30"),
	}
}
