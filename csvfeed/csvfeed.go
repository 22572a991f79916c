// Package csvfeed serves a bank-statement CSV export as a read-only
// transaction feed, so detection can run without a live ledger store.
package csvfeed

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"babylon/recurring/appcontext"
	"babylon/recurring/recurring/model"
	"babylon/recurring/recurring/repository"
)

var errProcessCsv = errors.New("error while parsing CSV file")

// ProcessCsvError wraps a per-file parse failure.
func ProcessCsvError(filename string, baseErr error) error {
	return fmt.Errorf("%s, %w: %w", filename, errProcessCsv, baseErr)
}

// Source implements repository.TransactionSource over one CSV file. The
// file has no user column; every record is attributed to the configured
// user. The file is read once, on first Find.
type Source struct {
	Path   string
	UserID primitive.ObjectID

	once    sync.Once
	records []model.TransactionRecord
	loadErr error
}

// NewSource creates a Source for the given file and user.
func NewSource(path string, userID primitive.ObjectID) *Source {
	return &Source{Path: path, UserID: userID}
}

// feedLayouts mirror the layouts the detection pipeline accepts.
var feedLayouts = []string{"2006-01-02", time.RFC3339, "01/02/2006"}

// Find implements repository.TransactionSource. Records whose dates do not
// parse pass the Since filter so the pipeline can drop them itself.
func (s *Source) Find(ctx context.Context, filter repository.TransactionFilter) ([]model.TransactionRecord, error) {
	s.once.Do(func() { s.records, s.loadErr = s.load(ctx) })
	if s.loadErr != nil {
		return nil, s.loadErr
	}

	var out []model.TransactionRecord
	for _, rec := range s.records {
		if rec.UserID != filter.UserID {
			continue
		}
		if filter.Type != "" && rec.Type != filter.Type {
			continue
		}
		if filter.AccountID != "" && rec.AccountID != filter.AccountID {
			continue
		}
		if !filter.Since.IsZero() {
			if date, ok := parseFeedDate(rec.Date); ok && date.Before(filter.Since) {
				continue
			}
		}
		out = append(out, rec)
	}

	return out, nil
}

// parseFeedDate tries the known feed layouts in order.
func parseFeedDate(raw string) (time.Time, bool) {
	for _, layout := range feedLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, true
		}
	}

	return time.Time{}, false
}

// load parses the whole file. Rows with a bad amount are skipped and
// logged, never fatal; dates stay strings for the pipeline to judge.
func (s *Source) load(ctx context.Context) ([]model.TransactionRecord, error) {
	logger := appcontext.LoggerFromContext(ctx)
	logger.InfoContext(ctx, "Parsing transaction feed from csv", "filePath", s.Path)

	file, err := os.Open(s.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file %s: %w", s.Path, err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1
	reader.Comma = ','

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil // Handle empty file gracefully
		}
		return nil, ProcessCsvError(s.Path, err)
	}
	colIndex := make(map[string]int)
	for i, col := range header {
		colIndex[strings.ToLower(strings.TrimSpace(col))] = i
	}

	var records []model.TransactionRecord
	for {
		row, readErr := reader.Read()
		if readErr != nil {
			if errors.Is(readErr, io.EOF) {
				break
			}
			return nil, ProcessCsvError(s.Path, readErr)
		}

		amountStr := safeGet(row, colIndex, "amount")
		amount, convErr := strconv.ParseFloat(amountStr, 64)
		if convErr != nil {
			logger.WarnContext(ctx, "Skipping record with invalid amount format", "value", amountStr, "error", convErr)
			continue
		}

		records = append(records, model.TransactionRecord{
			UserID:      s.UserID,
			Type:        parseType(safeGet(row, colIndex, "type")),
			Amount:      amount,
			Date:        safeGet(row, colIndex, "date"),
			Merchant:    safeGet(row, colIndex, "merchant"),
			Category:    safeGet(row, colIndex, "category"),
			Description: safeGet(row, colIndex, "description"),
			AccountID:   safeGet(row, colIndex, "account id"),
			Source:      "csv",
		})
	}

	return records, nil
}

// parseType maps statement direction labels onto the feed's two types.
func parseType(raw string) model.TxType {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "income", "credit", "deposit":
		return model.TxIncome
	default:
		return model.TxExpense
	}
}

// safeGet retrieves row[colIndex[name]] safely.
func safeGet(row []string, colIndex map[string]int, name string) string {
	index, ok := colIndex[name]
	if !ok || index >= len(row) {
		return ""
	}

	return row[index]
}
