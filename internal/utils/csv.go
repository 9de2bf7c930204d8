package utils

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"riskBacktester/internal/domain"
	"riskBacktester/internal/ports"
)

// Columns ignored when reading bars; everything else unknown becomes an indicator.
var ignoredBarColumns = map[string]bool{
	"close_time": true,
	"symbol":     true,
	"interval":   true,
}

// ReadBarsFromCSV reads bars from a CSV file with a header row.
// Required columns: timestamp (or open_time) and close. open, high, low and volume
// are optional; any other numeric column is attached as a per-bar indicator, with
// empty cells meaning the indicator is absent on that bar.
func ReadBarsFromCSV(filename string) ([]domain.Bar, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	return ReadBars(file)
}

// ReadBars reads bars in the ReadBarsFromCSV format from r.
func ReadBars(r io.Reader) ([]domain.Bar, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: empty bar file", ports.ErrInsufficientData)
		}
		return nil, fmt.Errorf("%w: reading header: %v", ports.ErrDataError, err)
	}

	cols := map[string]int{}
	var indicatorCols []int
	for i, name := range header {
		name = strings.ToLower(strings.TrimSpace(name))
		header[i] = name
		switch name {
		case "timestamp", "open_time", "time":
			if _, ok := cols["timestamp"]; !ok {
				cols["timestamp"] = i
			}
		case "open", "high", "low", "close", "volume":
			cols[name] = i
		default:
			if !ignoredBarColumns[name] && name != "" {
				indicatorCols = append(indicatorCols, i)
			}
		}
	}
	if _, ok := cols["timestamp"]; !ok {
		return nil, fmt.Errorf("%w: missing timestamp column", ports.ErrDataError)
	}
	if _, ok := cols["close"]; !ok {
		return nil, fmt.Errorf("%w: missing close column", ports.ErrDataError)
	}

	var bars []domain.Bar
	for line := 2; ; line++ {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %v", ports.ErrDataError, line, err)
		}

		var bar domain.Bar
		bar.Timestamp, err = ParseTimestamp(record[cols["timestamp"]])
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %v", ports.ErrDataError, line, err)
		}
		for name, dst := range map[string]*float64{
			"open":   &bar.Open,
			"high":   &bar.High,
			"low":    &bar.Low,
			"close":  &bar.Close,
			"volume": &bar.Volume,
		} {
			idx, ok := cols[name]
			if !ok || strings.TrimSpace(record[idx]) == "" {
				continue
			}
			v, err := strconv.ParseFloat(strings.TrimSpace(record[idx]), 64)
			if err != nil {
				return nil, fmt.Errorf("%w: line %d: %s: %v", ports.ErrDataError, line, name, err)
			}
			*dst = v
		}
		for _, idx := range indicatorCols {
			cell := strings.TrimSpace(record[idx])
			if cell == "" {
				continue
			}
			v, err := strconv.ParseFloat(cell, 64)
			if err != nil {
				return nil, fmt.Errorf("%w: line %d: %s: %v", ports.ErrDataError, line, header[idx], err)
			}
			if bar.Indicators == nil {
				bar.Indicators = make(map[string]float64, len(indicatorCols))
			}
			bar.Indicators[header[idx]] = v
		}
		bars = append(bars, bar)
	}

	if len(bars) == 0 {
		return nil, fmt.Errorf("%w: no bars in file", ports.ErrInsufficientData)
	}
	return bars, nil
}

// ParseTimestamp accepts RFC3339, "2006-01-02 15:04:05", "2006-01-02", or unix
// epoch seconds or milliseconds.
func ParseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		// Anything past year 2286 in seconds is treated as milliseconds
		if n > 1e10 {
			return time.UnixMilli(n).UTC(), nil
		}
		return time.Unix(n, 0).UTC(), nil
	}
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02 15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}

// WriteBarsToCSV writes bars, including every indicator seen on any bar.
func WriteBarsToCSV(bars []domain.Bar, filename string) error {
	return writeCSV(filename, func(writer *csv.Writer) error {
		keySet := map[string]bool{}
		for _, b := range bars {
			for k := range b.Indicators {
				keySet[k] = true
			}
		}
		keys := make([]string, 0, len(keySet))
		for k := range keySet {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		if err := writer.Write(append([]string{"timestamp", "open", "high", "low", "close", "volume"}, keys...)); err != nil {
			return err
		}
		for _, b := range bars {
			row := []string{
				b.Timestamp.Format(time.RFC3339),
				formatFloat(b.Open),
				formatFloat(b.High),
				formatFloat(b.Low),
				formatFloat(b.Close),
				formatFloat(b.Volume),
			}
			for _, k := range keys {
				if v, ok := b.Indicators[k]; ok {
					row = append(row, formatFloat(v))
				} else {
					row = append(row, "")
				}
			}
			if err := writer.Write(row); err != nil {
				return err
			}
		}
		return nil
	})
}

// WriteTradesToCSV writes a trade ledger.
func WriteTradesToCSV(trades []domain.Trade, filename string) error {
	return writeCSV(filename, func(writer *csv.Writer) error {
		if err := writer.Write([]string{"entry_time", "exit_time", "entry_price", "exit_price", "size", "profit", "return", "exit_reason"}); err != nil {
			return err
		}
		for _, t := range trades {
			if err := writer.Write([]string{
				t.EntryTime.Format(time.RFC3339),
				t.ExitTime.Format(time.RFC3339),
				formatFloat(t.EntryPrice),
				formatFloat(t.ExitPrice),
				formatFloat(t.Size),
				formatFloat(t.Profit),
				formatFloat(t.Return),
				string(t.ExitReason),
			}); err != nil {
				return err
			}
		}
		return nil
	})
}

// ReadTradesFromCSV reads a ledger written by WriteTradesToCSV.
func ReadTradesFromCSV(filename string) ([]domain.Trade, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	records, err := csv.NewReader(file).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ports.ErrDataError, err)
	}
	if len(records) == 0 {
		return nil, nil
	}

	trades := make([]domain.Trade, 0, len(records)-1)
	for i, rec := range records[1:] {
		if len(rec) < 8 {
			return nil, fmt.Errorf("%w: line %d: expected 8 fields, got %d", ports.ErrDataError, i+2, len(rec))
		}
		var t domain.Trade
		var errs []error
		t.EntryTime, err = time.Parse(time.RFC3339, rec[0])
		errs = append(errs, err)
		t.ExitTime, err = time.Parse(time.RFC3339, rec[1])
		errs = append(errs, err)
		for j, dst := range []*float64{&t.EntryPrice, &t.ExitPrice, &t.Size, &t.Profit, &t.Return} {
			*dst, err = strconv.ParseFloat(rec[2+j], 64)
			errs = append(errs, err)
		}
		if err := errors.Join(errs...); err != nil {
			return nil, fmt.Errorf("%w: line %d: %v", ports.ErrDataError, i+2, err)
		}
		t.ExitReason = domain.ExitReason(rec[7])
		trades = append(trades, t)
	}
	return trades, nil
}

// WriteEquityToCSV writes an equity curve.
func WriteEquityToCSV(curve []domain.EquityPoint, filename string) error {
	return writeCSV(filename, func(writer *csv.Writer) error {
		if err := writer.Write([]string{"time", "capital", "equity"}); err != nil {
			return err
		}
		for _, p := range curve {
			if err := writer.Write([]string{p.Time.Format(time.RFC3339), formatFloat(p.Capital), formatFloat(p.Equity)}); err != nil {
				return err
			}
		}
		return nil
	})
}

func writeCSV(filename string, write func(*csv.Writer) error) error {
	if dir := filepath.Dir(filename); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	if err := write(writer); err != nil {
		return err
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return err
	}
	return file.Close()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
