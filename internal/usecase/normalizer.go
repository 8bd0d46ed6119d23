package usecase

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"SignalDesk/internal/domain/models"
	"SignalDesk/pkg/util"

	"github.com/shopspring/decimal"
)

// Normalize converts one upstream record into a Signal. Fields that cannot
// be coerced become zero (scalars) or nil (indicators); it never fails.
func Normalize(dataset models.Dataset, raw models.RawSignal) models.Signal {
	s := models.Signal{
		Dataset:   dataset,
		Timestamp: coerceTime(raw["timestamp"]),
		Decision:  coerceDecision(raw["signal"]),
		Message:   coerceString(raw["message"]),
	}

	s.ID = coerceString(raw["id"])
	if s.ID == "" && !s.Timestamp.IsZero() {
		s.ID = fmt.Sprintf("%s-%d", dataset, s.Timestamp.UnixMilli())
	}

	s.Price = valueOr(first(raw, "price"))
	s.Strength = valueOr(first(raw, "strength", "signal_strength"))
	s.MLConfidence = valueOr(first(raw, "ml_confidence", "mlConfidence"))

	s.Indicators = models.Indicators{
		RSI:              first(raw, "rsi"),
		MACD:             first(raw, "macd"),
		SMAShort:         first(raw, "sma_short"),
		SMALong:          first(raw, "sma_long"),
		BollingerUpper:   first(raw, "bollinger_upper"),
		BollingerLower:   first(raw, "bollinger_lower"),
		StochasticK:      first(raw, "stochastic_k"),
		StochasticD:      first(raw, "stochastic_d"),
		ADX:              first(raw, "adx"),
		ATR:              first(raw, "atr"),
		VolumeMultiplier: first(raw, "volume_multiplier"),
		BuySellRatio:     first(raw, "buy_sell_ratio"),
		CryptoVIX:        first(raw, "crypto_vix"),
		Trend1h:          first(raw, "trend_1h"),
	}

	decorate(&s)
	return s
}

// NormalizeAll normalizes raws preserving upstream order.
func NormalizeAll(dataset models.Dataset, raws []models.RawSignal) []models.Signal {
	out := make([]models.Signal, 0, len(raws))
	for _, r := range raws {
		out = append(out, Normalize(dataset, r))
	}
	return out
}

// decorate fills the derived label and trend fields.
func decorate(s *models.Signal) {
	s.Label = s.Decision.Label()
	s.Trend = trendOf(s.Indicators.Trend1h)
	s.TrendColor = s.Trend.Color()
}

func trendOf(v *float64) models.Trend {
	switch {
	case v == nil || *v == 0:
		return models.TrendNeutral
	case *v > 0:
		return models.TrendUp
	default:
		return models.TrendDown
	}
}

func coerceDecision(v any) models.Decision {
	f, ok := coerceFloat(v)
	if !ok || f != math.Trunc(f) {
		return models.DecisionWait
	}
	d := models.Decision(int(f))
	if !d.Valid() {
		return models.DecisionWait
	}
	return d
}

// first returns the first key of raw that coerces to a finite number.
func first(raw models.RawSignal, keys ...string) *float64 {
	for _, k := range keys {
		if f, ok := coerceFloat(raw[k]); ok {
			return &f
		}
	}
	return nil
}

func valueOr(p *float64) float64 {
	if p == nil {
		return 0
	}
	return *p
}

// coerceFloat accepts JSON numbers, numeric strings and Go numeric types. NaN and Inf are rejected.
func coerceFloat(v any) (float64, bool) {
	var f float64
	switch x := v.(type) {
	case nil:
		return 0, false
	case json.Number:
		d, err := decimal.NewFromString(x.String())
		if err != nil {
			return 0, false
		}
		f = d.InexactFloat64()
	case string:
		d, err := decimal.NewFromString(strings.TrimSpace(x))
		if err != nil {
			return 0, false
		}
		f = d.InexactFloat64()
	case float64:
		f = x
	case float32:
		f = float64(x)
	case int:
		f = float64(x)
	case int64:
		f = float64(x)
	case int32:
		f = float64(x)
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

func coerceString(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(x)
	case json.Number:
		return x.String()
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	default:
		return fmt.Sprint(x)
	}
}

func coerceTime(v any) time.Time {
	switch x := v.(type) {
	case string:
		if ts, ok := util.ParseTime(x); ok {
			return ts
		}
	case json.Number:
		if n, err := x.Int64(); err == nil && n > 0 {
			return util.UnixAuto(n)
		}
	case float64:
		if x > 0 && x == math.Trunc(x) {
			return util.UnixAuto(int64(x))
		}
	}
	return time.Time{}
}
