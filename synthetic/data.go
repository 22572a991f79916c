// Package synthetic generates transaction-feed CSV files with known
// recurring patterns, for exercising detection end to end.
package synthetic

import (
	"encoding/csv"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"time"
)

// Data represents a single row of the generated feed.
type Data struct {
	Date        string
	Type        string
	Amount      float64
	Merchant    string
	Category    string
	Description string
	AccountID   string
}

// GenerateSyntheticData creates a CSV feed containing a fixed-amount
// monthly subscription, a biweekly paycheck, a variable monthly utility
// bill, and random one-off noise rows. The recurring rows are spread over
// the last six months so detection has enough history to qualify them.
func GenerateSyntheticData(noiseRows int, dir string) error {
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return fmt.Errorf("failed to create directory '%s': %w", dir, err)
		}
	}

	filePath := filepath.Join(dir, "test-synthetic-data.csv")
	file, err := os.Create(filePath)
	if err != nil {
		return fmt.Errorf("failed to create file '%s': %w", filePath, err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	// Write header
	header := []string{"Date", "Type", "Amount", "Merchant", "Category", "Description", "Account ID"}
	if err := writer.Write(header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	now := time.Now().UTC()
	var rows []Data
	rows = append(rows, monthlySubscription(now)...)
	rows = append(rows, biweeklyPaycheck(now)...)
	rows = append(rows, variableUtility(now)...)
	rows = append(rows, noise(now, noiseRows)...)

	for _, record := range rows {
		row := []string{
			record.Date,
			record.Type,
			fmt.Sprintf("%.2f", record.Amount),
			record.Merchant,
			record.Category,
			record.Description,
			record.AccountID,
		}
		if err := writer.Write(row); err != nil {
			return fmt.Errorf("failed to write row: %w", err)
		}
	}

	return nil
}

const feedDateLayout = "2006-01-02"

// monthlySubscription emits six fixed charges, one per month on the 15th.
func monthlySubscription(now time.Time) []Data {
	var rows []Data
	for i := 6; i >= 1; i-- {
		date := now.AddDate(0, -i, 0)
		date = time.Date(date.Year(), date.Month(), 15, 0, 0, 0, 0, time.UTC)
		rows = append(rows, Data{
			Date:        date.Format(feedDateLayout),
			Type:        "expense",
			Amount:      15.49,
			Merchant:    "NETFLIX",
			Category:    "Entertainment",
			Description: "NETFLIX.COM",
			AccountID:   "checking-1",
		})
	}
	return rows
}

// biweeklyPaycheck emits deposits every 14 days over the last 120 days.
func biweeklyPaycheck(now time.Time) []Data {
	var rows []Data
	for offset := 120; offset >= 0; offset -= 14 {
		date := now.AddDate(0, 0, -offset)
		rows = append(rows, Data{
			Date:        date.Format(feedDateLayout),
			Type:        "income",
			Amount:      1850.00,
			Merchant:    "ACME CORP PAYROLL",
			Category:    "Income",
			Description: "DIRECT DEP ACME CORP",
			AccountID:   "checking-1",
		})
	}
	return rows
}

// variableUtility emits a monthly bill whose amount drifts within the
// tolerance detection accepts.
func variableUtility(now time.Time) []Data {
	var rows []Data
	for i := 6; i >= 1; i-- {
		date := now.AddDate(0, -i, 0)
		date = time.Date(date.Year(), date.Month(), 3, 0, 0, 0, 0, time.UTC)
		amount := 80.0 + rand.Float64()*16.0
		rows = append(rows, Data{
			Date:        date.Format(feedDateLayout),
			Type:        "expense",
			Amount:      amount,
			Merchant:    "CITY POWER AND LIGHT",
			Category:    "Utilities",
			Description: "CITY POWER AUTOPAY",
			AccountID:   "checking-1",
		})
	}
	return rows
}

// noise emits one-off purchases at random dates and amounts.
func noise(now time.Time, count int) []Data {
	var rows []Data
	for i := 0; i < count; i++ {
		date := now.AddDate(0, 0, -rand.Intn(180))
		rows = append(rows, Data{
			Date:        date.Format(feedDateLayout),
			Type:        "expense",
			Amount:      rand.Float64() * 200,
			Merchant:    fmt.Sprintf("ONE OFF SHOP %d", i),
			Category:    "Shopping",
			Description: fmt.Sprintf("Purchase %d", i),
			AccountID:   "checking-1",
		})
	}
	return rows
}
