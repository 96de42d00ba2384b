package models

import "time"

// Candle is one closed OHLCV bar.
type Candle struct {
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume float64
	Start  time.Time
	End    time.Time
}

// Snapshot is the recent market state for one symbol+timeframe,
// bars ascending by time. It lives only for one evaluation cycle.
type Snapshot struct {
	Symbol    string
	Timeframe Timeframe
	Candles   []Candle
}

// Last returns the most recent bar, false when the snapshot is empty.
func (s *Snapshot) Last() (Candle, bool) {
	if len(s.Candles) == 0 {
		return Candle{}, false
	}
	return s.Candles[len(s.Candles)-1], true
}

// Closes extracts the close series in bar order.
func (s *Snapshot) Closes() []float64 {
	out := make([]float64, len(s.Candles))
	for i, c := range s.Candles {
		out[i] = c.Close
	}
	return out
}
