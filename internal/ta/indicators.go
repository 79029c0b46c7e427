// Package ta holds pure indicator math over float64 series. NaN marks
// positions that have no value yet.
package ta

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

const (
	MACDFast   = 12
	MACDSlow   = 26
	MACDSignal = 9
)

// MeanStd returns the mean and population standard deviation.
func MeanStd(values []float64) (float64, float64) {
	if len(values) == 0 {
		return 0, 0
	}
	return stat.PopMeanStdDev(values, nil)
}

// StdDev is the population standard deviation (divides by N).
func StdDev(values []float64) float64 {
	_, std := MeanStd(values)
	return std
}

func nanSeries(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}
	return out
}

// Last returns the final element and whether it holds a value.
func Last(series []float64) (float64, bool) {
	if len(series) == 0 {
		return 0, false
	}
	v := series[len(series)-1]
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

// SMA is the mean of the trailing period values.
func SMA(values []float64, period int) (float64, bool) {
	if period <= 0 || len(values) < period {
		return 0, false
	}
	mean, _ := MeanStd(values[len(values)-period:])
	return mean, true
}

func SMASeries(values []float64, period int) []float64 {
	out := nanSeries(len(values))
	if period <= 0 {
		return out
	}
	var sum float64
	for i, v := range values {
		sum += v
		if i >= period {
			sum -= values[i-period]
		}
		if i >= period-1 {
			out[i] = sum / float64(period)
		}
	}
	return out
}

// EMASeries seeds with the SMA of the first period values at index period-1
// and applies ema = v*k + ema*(1-k), k = 2/(period+1).
func EMASeries(values []float64, period int) []float64 {
	out := nanSeries(len(values))
	if period <= 0 || len(values) < period {
		return out
	}
	seed, _ := MeanStd(values[:period])
	out[period-1] = seed
	k := 2.0 / float64(period+1)
	for i := period; i < len(values); i++ {
		out[i] = values[i]*k + out[i-1]*(1-k)
	}
	return out
}

// RSISeries computes Wilder's RSI. The first value sits at index period.
func RSISeries(closes []float64, period int) []float64 {
	if period <= 0 || len(closes) <= period {
		return nil
	}
	series := nanSeries(len(closes))

	var gainSum, lossSum float64
	for i := 1; i <= period; i++ {
		delta := closes[i] - closes[i-1]
		if delta > 0 {
			gainSum += delta
		} else {
			lossSum -= delta
		}
	}
	avgGain := gainSum / float64(period)
	avgLoss := lossSum / float64(period)
	series[period] = rsiFromAvg(avgGain, avgLoss)

	for i := period + 1; i < len(closes); i++ {
		delta := closes[i] - closes[i-1]
		avgGain = (avgGain*float64(period-1) + math.Max(delta, 0)) / float64(period)
		avgLoss = (avgLoss*float64(period-1) + math.Max(-delta, 0)) / float64(period)
		series[i] = rsiFromAvg(avgGain, avgLoss)
	}
	return series
}

// RSI returns the latest RSI value.
func RSI(closes []float64, period int) (float64, bool) {
	return Last(RSISeries(closes, period))
}

func rsiFromAvg(avgGain, avgLoss float64) float64 {
	if avgLoss == 0 {
		return 100
	}
	rs := avgGain / avgLoss
	return 100 - (100 / (1 + rs))
}

// MACDSeries uses the standard 12/26/9 periods.
func MACDSeries(values []float64) ([]float64, []float64) {
	return MACDSeriesWith(values, MACDFast, MACDSlow, MACDSignal)
}

// MACDSeriesWith returns the MACD line (NaN until both EMAs exist) and its
// signal line. Warm-up gaps are read as 0 when seeding the signal EMA only.
func MACDSeriesWith(values []float64, fast, slow, signal int) ([]float64, []float64) {
	if len(values) == 0 {
		return nil, nil
	}
	fastEMA := EMASeries(values, fast)
	slowEMA := EMASeries(values, slow)
	macdLine := make([]float64, len(values))
	signalInput := make([]float64, len(values))
	for i := range values {
		macdLine[i] = fastEMA[i] - slowEMA[i]
		if !math.IsNaN(macdLine[i]) {
			signalInput[i] = macdLine[i]
		}
	}
	return macdLine, EMASeries(signalInput, signal)
}

func BollingerSeries(values []float64, period int, stdDevs float64) ([]float64, []float64, []float64) {
	if len(values) == 0 {
		return nil, nil, nil
	}
	middle := nanSeries(len(values))
	upper := nanSeries(len(values))
	lower := nanSeries(len(values))
	if period <= 0 {
		return middle, upper, lower
	}
	for i := period - 1; i < len(values); i++ {
		mean, std := MeanStd(values[i-period+1 : i+1])
		middle[i] = mean
		upper[i] = mean + stdDevs*std
		lower[i] = mean - stdDevs*std
	}
	return middle, upper, lower
}

// Band is one Bollinger observation.
type Band struct {
	Middle, Upper, Lower float64
}

// Bollinger returns the band over the trailing period values.
func Bollinger(values []float64, period int, stdDevs float64) (Band, bool) {
	if period <= 0 || len(values) < period {
		return Band{}, false
	}
	mean, std := MeanStd(values[len(values)-period:])
	return Band{Middle: mean, Upper: mean + stdDevs*std, Lower: mean - stdDevs*std}, true
}

// PearsonCorrelation correlates the first min(len(a), len(b)) points. It is
// undefined with fewer than three points or when either side is constant.
func PearsonCorrelation(a, b []float64) (float64, bool) {
	n := min(len(a), len(b))
	if n < 3 {
		return 0, false
	}
	x, y := a[:n], b[:n]
	if StdDev(x) == 0 || StdDev(y) == 0 {
		return 0, false
	}
	r := stat.Correlation(x, y, nil)
	if math.IsNaN(r) || math.IsInf(r, 0) {
		return 0, false
	}
	return math.Max(-1, math.Min(1, r)), true
}
