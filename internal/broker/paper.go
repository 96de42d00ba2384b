package broker

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"botfleet/internal/models"
)

// Paper simulates execution in memory: fills at the latest known
// price, never touches an exchange. Used for dry runs and tests.
type Paper struct {
	mu        sync.Mutex
	connected bool
	balance   float64
	prices    map[string]float64
	candles   map[string][]models.Candle
	positions map[string]models.Position // keyed by order id
}

func NewPaper(balance float64) *Paper {
	return &Paper{
		balance:   balance,
		prices:    make(map[string]float64),
		candles:   make(map[string][]models.Candle),
		positions: make(map[string]models.Position),
	}
}

func candleKey(symbol string, tf models.Timeframe) string {
	return symbol + "/" + string(tf)
}

// SeedCandles installs the bar series returned by Candles.
func (p *Paper) SeedCandles(symbol string, tf models.Timeframe, candles []models.Candle) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.candles[candleKey(symbol, tf)] = candles
	if len(candles) > 0 {
		p.prices[symbol] = candles[len(candles)-1].Close
	}
}

func (p *Paper) SetPrice(symbol string, price float64) {
	p.mu.Lock()
	p.prices[symbol] = price
	p.mu.Unlock()
}

func (p *Paper) Connect(context.Context) error {
	p.mu.Lock()
	p.connected = true
	p.mu.Unlock()
	return nil
}

func (p *Paper) Disconnect() {
	p.mu.Lock()
	p.connected = false
	p.mu.Unlock()
}

func (p *Paper) IsConnected() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.connected
}

func (p *Paper) Candles(_ context.Context, symbol string, tf models.Timeframe, count int) ([]models.Candle, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	bars, ok := p.candles[candleKey(symbol, tf)]
	if !ok {
		return nil, errors.Wrapf(models.ErrSymbolNotFound, "no candles for %s %s", symbol, tf)
	}
	if len(bars) > count {
		bars = bars[len(bars)-count:]
	}
	out := make([]models.Candle, len(bars))
	copy(out, bars)
	return out, nil
}

func (p *Paper) PlaceOrder(_ context.Context, symbol string, side models.Side, quantity, stopLoss, takeProfit float64) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if quantity <= 0 {
		return "", errors.New("quantity must be > 0")
	}
	px := p.prices[symbol]
	if px <= 0 {
		return "", errors.Wrapf(models.ErrSymbolNotFound, "no price for %s", symbol)
	}
	id := uuid.New().String()
	p.positions[id] = models.Position{
		Symbol:    symbol,
		Side:      side,
		Quantity:  quantity,
		Entry:     px,
		LastPrice: px,
		UpdatedAt: time.Now(),
	}
	return id, nil
}

func (p *Paper) ClosePosition(_ context.Context, symbol string, side models.Side, quantity float64) (float64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for id, pos := range p.positions {
		if pos.Symbol == symbol && pos.Side == side {
			px := p.prices[symbol]
			diff := px - pos.Entry
			if side == models.SideSell {
				diff = -diff
			}
			p.balance += diff * quantity
			delete(p.positions, id)
			return px, nil
		}
	}
	return 0, models.ErrNoOpenPosition
}

func (p *Paper) AccountBalance(context.Context) (float64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.balance, nil
}

func (p *Paper) CurrentPrice(_ context.Context, symbol string) (float64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	px, ok := p.prices[symbol]
	if !ok {
		return 0, errors.Wrapf(models.ErrSymbolNotFound, "no price for %s", symbol)
	}
	return px, nil
}

func (p *Paper) OpenPositions(context.Context) ([]models.Position, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]models.Position, 0, len(p.positions))
	for _, pos := range p.positions {
		out = append(out, pos)
	}
	return out, nil
}
