package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleTransactions = `[
  {"transactionId": "T1", "customerId": "C1", "amount": 120, "date": "2025-01-05"},
  {"transactionId": "T2", "customerId": "C1", "amount": 75.5, "date": "2025-01-20"},
  {"transactionId": "T3", "customerId": "C1", "amount": "invalid", "date": "2025-02-01"},
  {"transactionId": "T4", "customerId": "C1", "amount": 200, "date": "2025-02-14"},
  {"transactionId": "T5", "customerId": "C2", "amount": 51, "date": "2025-03-03"}
]`

func writeSample(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "transactions.json")
	require.NoError(t, os.WriteFile(path, []byte(sampleTransactions), 0o600))
	return path
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd(&out)
	// A nil slice would make cobra fall back to os.Args.
	cmd.SetArgs(append([]string{}, args...))
	cmd.SetErr(&bytes.Buffer{})
	err := cmd.Execute()
	return out.String(), err
}

func TestReport_Tables(t *testing.T) {
	out, err := execute(t, writeSample(t), "--timezone", "UTC")
	require.NoError(t, err)

	assert.Contains(t, out, "C1: 365 points")
	assert.Contains(t, out, "C2: 1 points")
	assert.Contains(t, out, "(1 record(s) with an invalid amount not counted)")
	assert.Contains(t, out, "January 2025")
	assert.Contains(t, out, "February 2025")
	assert.Regexp(t, `T3\s+2025-02-01\s+invalid\s+0`, out)
	assert.Regexp(t, `T4\s+2025-02-14\s+200\.00\s+250\s+200\s+50`, out)
	assert.Less(t, strings.Index(out, "C1:"), strings.Index(out, "C2:"))
}

func TestReport_JSONWithFilters(t *testing.T) {
	out, err := execute(t, writeSample(t), "--customer", "C1", "--from", "2025-02-01", "--to", "2025-02-28", "--json")
	require.NoError(t, err)

	var got []struct {
		Customer struct {
			ID string `json:"id"`
		} `json:"customer"`
		TotalPoints int `json:"totalPoints"`
		Months      []struct {
			Month  string `json:"month"`
			Points int    `json:"points"`
		} `json:"months"`
		Transactions []struct {
			TransactionID string `json:"transactionId"`
			Points        int    `json:"points"`
		} `json:"transactions"`
		Skipped int `json:"skipped"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	require.Len(t, got, 1)

	assert.Equal(t, "C1", got[0].Customer.ID)
	assert.Equal(t, 250, got[0].TotalPoints)
	assert.Equal(t, 1, got[0].Skipped)
	require.Len(t, got[0].Months, 1)
	assert.Equal(t, "2025-02", got[0].Months[0].Month)
	assert.Len(t, got[0].Transactions, 2)
}

func TestReport_Errors(t *testing.T) {
	path := writeSample(t)

	tests := []struct {
		name string
		args []string
		want string
	}{
		{"missing file", []string{filepath.Join(t.TempDir(), "nope.json")}, "failed to read transactions"},
		{"bad from", []string{path, "--from", "01/02/2025"}, "--from"},
		{"inverted range", []string{path, "--from", "2025-03-01", "--to", "2025-01-01"}, "start date"},
		{"unknown customer", []string{path, "--customer", "C9"}, "customer C9"},
		{"bad timezone", []string{path, "--timezone", "Mars/Base"}, "--timezone"},
		{"no args", nil, "accepts 1 arg"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := execute(t, tt.args...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestReport_EmptyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.json")
	require.NoError(t, os.WriteFile(path, []byte("[]"), 0o600))

	out, err := execute(t, path)
	require.NoError(t, err)
	assert.Equal(t, "No transactions found.\n", out)
}
