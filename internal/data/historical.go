package data

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"

	"okx-trader/internal/market"
)

// BarSource is anything that can return recent candles, typically an OKX
// client used only for public market data.
type BarSource interface {
	GetOHLCV(ctx context.Context, limit int) ([]market.Bar, error)
}

// HistoricalDataService fetches and stores candle history used to seed the
// paper venue.
type HistoricalDataService struct {
	source BarSource
}

func NewHistoricalDataService(source BarSource) *HistoricalDataService {
	return &HistoricalDataService{source: source}
}

// GetBars fetches up to limit bars and returns them oldest first.
func (s *HistoricalDataService) GetBars(ctx context.Context, limit int) (market.Series, error) {
	if s.source == nil {
		return nil, errors.New("historical data: no source configured")
	}
	raw, err := s.source.GetOHLCV(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("fetch candles: %w", err)
	}
	return market.Normalize(raw)
}

var csvHeader = []string{"ts", "open", "high", "low", "close", "volume"}

// WriteCSV writes bars with a millisecond epoch timestamp column.
func WriteCSV(w io.Writer, bars []market.Bar) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return err
	}
	f := func(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }
	for _, b := range bars {
		rec := []string{strconv.FormatInt(b.Time.UnixMilli(), 10), f(b.Open), f(b.High), f(b.Low), f(b.Close), f(b.Volume)}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// ReadCSV parses the WriteCSV layout. A header row is optional and rows may
// be in any order; the result is normalized.
func ReadCSV(r io.Reader) (market.Series, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = len(csvHeader)
	cr.TrimLeadingSpace = true

	var bars []market.Bar
	for line := 1; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv: %w", err)
		}
		if line == 1 && rec[0] == csvHeader[0] {
			continue
		}
		b, err := parseRecord(rec)
		if err != nil {
			return nil, fmt.Errorf("csv line %d: %w", line, err)
		}
		bars = append(bars, b)
	}
	return market.Normalize(bars)
}

func parseRecord(rec []string) (market.Bar, error) {
	ms, err := strconv.ParseInt(rec[0], 10, 64)
	if err != nil {
		return market.Bar{}, fmt.Errorf("timestamp %q: %w", rec[0], err)
	}
	var vals [5]float64
	for i := range vals {
		v, err := strconv.ParseFloat(rec[i+1], 64)
		if err != nil {
			return market.Bar{}, fmt.Errorf("%s %q: %w", csvHeader[i+1], rec[i+1], err)
		}
		vals[i] = v
	}
	return market.Bar{
		Time:   time.UnixMilli(ms).UTC(),
		Open:   vals[0],
		High:   vals[1],
		Low:    vals[2],
		Close:  vals[3],
		Volume: vals[4],
	}, nil
}
