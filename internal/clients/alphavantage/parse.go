package alphavantage

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/AhmedIkram05/StockLens-sub001/internal/marketdata"
)

// Decode parses a raw payload into a Series (monthly/daily) or Quote.
// In-band error fields are detected before the happy-path shape is
// attempted, so a stored error envelope decodes to an error rather than an
// empty series. Implements marketdata.Provider together with Fetch.
func (c *Client) Decode(class marketdata.DataClass, payload []byte) (interface{}, error) {
	if err := c.checkAPIError(payload); err != nil {
		return nil, err
	}

	switch class {
	case marketdata.ClassMonthly:
		series, err := parseMonthlySeries(payload)
		if err != nil {
			return nil, err
		}
		return series, nil
	case marketdata.ClassDaily:
		series, err := parseDailySeries(payload)
		if err != nil {
			return nil, err
		}
		return series, nil
	case marketdata.ClassQuote:
		quote, err := parseGlobalQuote(payload)
		if err != nil {
			return nil, err
		}
		return quote, nil
	default:
		return nil, fmt.Errorf("unknown data class: %q", class)
	}
}

// monthlyBar matches one entry of "Monthly Adjusted Time Series".
type monthlyBar struct {
	Open          string `json:"1. open"`
	High          string `json:"2. high"`
	Low           string `json:"3. low"`
	Close         string `json:"4. close"`
	AdjustedClose string `json:"5. adjusted close"`
	Volume        string `json:"6. volume"`
}

// parseMonthlySeries parses a TIME_SERIES_MONTHLY_ADJUSTED payload.
// The result is sorted newest first.
func parseMonthlySeries(payload []byte) (marketdata.Series, error) {
	var response struct {
		TimeSeries map[string]monthlyBar `json:"Monthly Adjusted Time Series"`
	}
	if err := json.Unmarshal(payload, &response); err != nil {
		return nil, fmt.Errorf("failed to parse monthly time series: %w", err)
	}
	if response.TimeSeries == nil {
		return nil, fmt.Errorf("monthly time series missing from response")
	}

	series := make(marketdata.Series, 0, len(response.TimeSeries))
	for dateStr, bar := range response.TimeSeries {
		series = append(series, marketdata.PricePoint{
			Date:          parseDate(dateStr),
			Open:          parseFloat64(bar.Open),
			High:          parseFloat64(bar.High),
			Low:           parseFloat64(bar.Low),
			Close:         parseFloat64(bar.Close),
			AdjustedClose: parseFloat64(bar.AdjustedClose),
			Volume:        parseInt64(bar.Volume),
		})
	}

	sortNewestFirst(series)
	return series, nil
}

// dailyBar matches one entry of "Time Series (Daily)".
type dailyBar struct {
	Open   string `json:"1. open"`
	High   string `json:"2. high"`
	Low    string `json:"3. low"`
	Close  string `json:"4. close"`
	Volume string `json:"5. volume"`
}

// parseDailySeries parses a TIME_SERIES_DAILY payload. The daily endpoint
// carries no adjusted close; it is mirrored from the close so callers can
// treat both series shapes uniformly. Sorted newest first.
func parseDailySeries(payload []byte) (marketdata.Series, error) {
	var response struct {
		TimeSeries map[string]dailyBar `json:"Time Series (Daily)"`
	}
	if err := json.Unmarshal(payload, &response); err != nil {
		return nil, fmt.Errorf("failed to parse daily time series: %w", err)
	}
	if response.TimeSeries == nil {
		return nil, fmt.Errorf("daily time series missing from response")
	}

	series := make(marketdata.Series, 0, len(response.TimeSeries))
	for dateStr, bar := range response.TimeSeries {
		closePrice := parseFloat64(bar.Close)
		series = append(series, marketdata.PricePoint{
			Date:          parseDate(dateStr),
			Open:          parseFloat64(bar.Open),
			High:          parseFloat64(bar.High),
			Low:           parseFloat64(bar.Low),
			Close:         closePrice,
			AdjustedClose: closePrice,
			Volume:        parseInt64(bar.Volume),
		})
	}

	sortNewestFirst(series)
	return series, nil
}

// parseGlobalQuote parses a GLOBAL_QUOTE payload.
func parseGlobalQuote(payload []byte) (marketdata.Quote, error) {
	var response struct {
		GlobalQuote struct {
			Symbol           string `json:"01. symbol"`
			Open             string `json:"02. open"`
			High             string `json:"03. high"`
			Low              string `json:"04. low"`
			Price            string `json:"05. price"`
			Volume           string `json:"06. volume"`
			LatestTradingDay string `json:"07. latest trading day"`
			PreviousClose    string `json:"08. previous close"`
			Change           string `json:"09. change"`
			ChangePercent    string `json:"10. change percent"`
		} `json:"Global Quote"`
	}
	if err := json.Unmarshal(payload, &response); err != nil {
		return marketdata.Quote{}, fmt.Errorf("failed to parse global quote: %w", err)
	}
	if response.GlobalQuote.Symbol == "" {
		return marketdata.Quote{}, fmt.Errorf("global quote missing from response")
	}

	q := response.GlobalQuote
	return marketdata.Quote{
		Symbol:           q.Symbol,
		Price:            parseFloat64(q.Price),
		Open:             parseFloat64(q.Open),
		High:             parseFloat64(q.High),
		Low:              parseFloat64(q.Low),
		Volume:           parseInt64(q.Volume),
		LatestTradingDay: parseDate(q.LatestTradingDay),
		PreviousClose:    parseFloat64(q.PreviousClose),
		Change:           parseFloat64Ptr(q.Change),
		ChangePercent:    parseFloat64Ptr(q.ChangePercent),
	}, nil
}

func sortNewestFirst(series marketdata.Series) {
	sort.Slice(series, func(i, j int) bool {
		return series[i].Date.After(series[j].Date)
	})
}

// parseFloat64 parses the API's string-encoded numbers. Placeholder values
// ("None", "null", "-", empty) and malformed input parse to 0; a trailing
// percent sign is stripped.
func parseFloat64(s string) float64 {
	s = strings.TrimSpace(strings.TrimSuffix(s, "%"))
	switch s {
	case "", "None", "null", "-", ".":
		return 0
	}

	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return f
}

// parseFloat64Ptr is the nullable variant: placeholder values map to nil.
func parseFloat64Ptr(s string) *float64 {
	s = strings.TrimSpace(strings.TrimSuffix(s, "%"))
	switch s {
	case "", "None", "null", "-", ".":
		return nil
	}

	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	return &f
}

// parseInt64 parses string-encoded integers, accepting scientific notation
// and decimal values (truncated).
func parseInt64(s string) int64 {
	s = strings.TrimSpace(s)
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return i
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return int64(f)
	}
	return 0
}

// parseDate parses a YYYY-MM-DD date; malformed input yields the zero time.
func parseDate(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}
	}
	return t
}
