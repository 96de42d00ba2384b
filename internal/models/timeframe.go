package models

import (
	"time"

	"github.com/pkg/errors"
)

// Timeframe is a bar granularity. It drives both candle bucketing and
// the scheduling period of the bot that trades it.
type Timeframe string

const (
	TF1m  Timeframe = "1m"
	TF5m  Timeframe = "5m"
	TF15m Timeframe = "15m"
	TF1h  Timeframe = "1h"
	TF4h  Timeframe = "4h"
	TF1d  Timeframe = "1d"
)

var tfPeriods = map[Timeframe]time.Duration{
	TF1m:  time.Minute,
	TF5m:  5 * time.Minute,
	TF15m: 15 * time.Minute,
	TF1h:  time.Hour,
	TF4h:  4 * time.Hour,
	TF1d:  24 * time.Hour,
}

// Period returns the canonical tick period, zero for unknown timeframes.
func (tf Timeframe) Period() time.Duration {
	return tfPeriods[tf]
}

func (tf Timeframe) Valid() bool {
	_, ok := tfPeriods[tf]
	return ok
}

func ParseTimeframe(s string) (Timeframe, error) {
	tf := Timeframe(s)
	if !tf.Valid() {
		return "", errors.Errorf("unknown timeframe %q", s)
	}
	return tf, nil
}
