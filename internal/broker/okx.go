package broker

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gorilla/websocket"
	"github.com/opentracing/opentracing-go"
	"github.com/pkg/errors"

	"botfleet/internal/models"
)

// OKX trades USDT-margined swaps. One Session per process; the price
// cache is fed by the ticker websocket and falls back to REST.
type OKX struct {
	restHost string
	wsHost   string

	apiKey    string
	apiSecret string
	passph    string

	http      *http.Client
	wsDialer  *websocket.Dialer
	connected atomic.Bool

	mu     sync.RWMutex
	prices map[string]float64
}

func NewOKX(restHost, wsHost, apiKey, apiSecret, passphrase string) *OKX {
	return &OKX{
		restHost:  restHost,
		wsHost:    wsHost,
		apiKey:    apiKey,
		apiSecret: apiSecret,
		passph:    passphrase,
		http:      &http.Client{Timeout: 10 * time.Second},
		wsDialer:  &websocket.Dialer{},
		prices:    make(map[string]float64),
	}
}

func (c *OKX) Connect(ctx context.Context) error {
	// Balance request both validates the credentials and proves the
	// API is reachable.
	if _, err := c.AccountBalance(ctx); err != nil {
		c.connected.Store(false)
		return err
	}
	c.connected.Store(true)
	return nil
}

func (c *OKX) IsConnected() bool { return c.connected.Load() }

func (c *OKX) SetPrice(symbol string, price float64) {
	c.mu.Lock()
	c.prices[symbol] = price
	c.mu.Unlock()
}

func (c *OKX) cachedPrice(symbol string) float64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.prices[symbol]
}

type okxEnvelope struct {
	Code string          `json:"code"`
	Msg  string          `json:"msg"`
	Data json.RawMessage `json:"data"`
}

func (c *OKX) sign(ts, method, requestPath, body string) string {
	msg := ts + strings.ToUpper(method) + requestPath + body
	h := hmac.New(sha256.New, []byte(c.apiSecret))
	h.Write([]byte(msg))
	return base64.StdEncoding.EncodeToString(h.Sum(nil))
}

func (c *OKX) do(ctx context.Context, method, requestPath string, payload []byte, out interface{}) error {
	var body io.Reader
	if len(payload) > 0 {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.restHost+requestPath, body)
	if err != nil {
		return errors.Wrap(err, "new request")
	}
	ts := time.Now().UTC().Format("2006-01-02T15:04:05.000Z")
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("OK-ACCESS-KEY", c.apiKey)
	req.Header.Set("OK-ACCESS-SIGN", c.sign(ts, method, requestPath, string(payload)))
	req.Header.Set("OK-ACCESS-TIMESTAMP", ts)
	req.Header.Set("OK-ACCESS-PASSPHRASE", c.passph)

	resp, err := c.http.Do(req)
	if err != nil {
		c.connected.Store(false)
		return errors.Wrap(models.ErrBrokerUnavailable, err.Error())
	}
	defer resp.Body.Close()

	rb, _ := io.ReadAll(resp.Body)
	if resp.StatusCode/100 != 2 {
		return errors.Wrapf(models.ErrBrokerUnavailable, "http %d: %s", resp.StatusCode, string(rb))
	}

	var env okxEnvelope
	if err := sonic.Unmarshal(rb, &env); err != nil {
		return errors.Wrap(err, "decode envelope")
	}
	if env.Code != "0" {
		if env.Code == "51001" { // instrument does not exist
			return errors.Wrapf(models.ErrSymbolNotFound, "okx: %s", env.Msg)
		}
		return errors.Wrapf(models.ErrBrokerUnavailable, "okx error code=%s msg=%s", env.Code, env.Msg)
	}
	if out != nil {
		if err := sonic.Unmarshal(env.Data, out); err != nil {
			return errors.Wrap(err, "decode data")
		}
	}
	return nil
}

var tfToBar = map[models.Timeframe]string{
	models.TF1m:  "1m",
	models.TF5m:  "5m",
	models.TF15m: "15m",
	models.TF1h:  "1H",
	models.TF4h:  "4H",
	models.TF1d:  "1D",
}

func (c *OKX) Candles(ctx context.Context, symbol string, timeframe models.Timeframe, count int) ([]models.Candle, error) {
	bar, ok := tfToBar[timeframe]
	if !ok {
		return nil, errors.Errorf("unsupported timeframe %q", timeframe)
	}

	q := url.Values{}
	q.Set("instId", symbol)
	q.Set("bar", bar)
	q.Set("limit", strconv.Itoa(count))

	var rows [][]string
	if err := c.do(ctx, http.MethodGet, "/api/v5/market/candles?"+q.Encode(), nil, &rows); err != nil {
		return nil, err
	}

	// Rows come newest first: [ts,o,h,l,c,vol,volCcy,volCcyQuote,confirm].
	candles := make([]models.Candle, 0, len(rows))
	for i := len(rows) - 1; i >= 0; i-- {
		row := rows[i]
		if len(row) < 6 {
			continue
		}
		if len(row) >= 9 && row[8] != "1" {
			continue // unconfirmed bar
		}
		ms, err := strconv.ParseInt(row[0], 10, 64)
		if err != nil {
			continue
		}
		o, _ := strconv.ParseFloat(row[1], 64)
		h, _ := strconv.ParseFloat(row[2], 64)
		l, _ := strconv.ParseFloat(row[3], 64)
		cl, _ := strconv.ParseFloat(row[4], 64)
		v, _ := strconv.ParseFloat(row[5], 64)
		start := time.UnixMilli(ms)
		candles = append(candles, models.Candle{
			Open: o, High: h, Low: l, Close: cl, Volume: v,
			Start: start,
			End:   start.Add(timeframe.Period()),
		})
	}
	return candles, nil
}

func sideToOKX(side models.Side) (string, string) {
	if side == models.SideSell {
		return "sell", "short"
	}
	return "buy", "long"
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func (c *OKX) PlaceOrder(ctx context.Context, symbol string, side models.Side, quantity, stopLoss, takeProfit float64) (string, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "okx.place_order")
	defer span.Finish()
	span.SetTag("symbol", symbol)
	span.SetTag("side", string(side))

	ordSide, posSide := sideToOKX(side)
	body := map[string]interface{}{
		"instId":  symbol,
		"tdMode":  "cross",
		"side":    ordSide,
		"posSide": posSide,
		"ordType": "market",
		"sz":      formatFloat(quantity),
	}
	if stopLoss > 0 || takeProfit > 0 {
		attach := map[string]string{}
		if stopLoss > 0 {
			attach["slTriggerPx"] = formatFloat(stopLoss)
			attach["slOrdPx"] = "-1"
		}
		if takeProfit > 0 {
			attach["tpTriggerPx"] = formatFloat(takeProfit)
			attach["tpOrdPx"] = "-1"
		}
		body["attachAlgoOrds"] = []map[string]string{attach}
	}

	payload, err := sonic.Marshal(body)
	if err != nil {
		return "", errors.Wrap(err, "marshal order")
	}

	var data []struct {
		OrdID string `json:"ordId"`
		SCode string `json:"sCode"`
		SMsg  string `json:"sMsg"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/v5/trade/order", payload, &data); err != nil {
		return "", err
	}
	if len(data) == 0 {
		return "", errors.Wrap(models.ErrBrokerUnavailable, "empty order response")
	}
	if data[0].SCode != "0" && data[0].SCode != "" {
		return "", errors.Wrapf(models.ErrBrokerUnavailable, "order rejected code=%s msg=%s", data[0].SCode, data[0].SMsg)
	}
	return data[0].OrdID, nil
}

func (c *OKX) ClosePosition(ctx context.Context, symbol string, side models.Side, quantity float64) (float64, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "okx.close_position")
	defer span.Finish()
	span.SetTag("symbol", symbol)

	_, posSide := sideToOKX(side)
	body := map[string]string{
		"instId":  symbol,
		"mgnMode": "cross",
		"posSide": posSide,
	}
	payload, err := sonic.Marshal(body)
	if err != nil {
		return 0, errors.Wrap(err, "marshal close")
	}
	if err := c.do(ctx, http.MethodPost, "/api/v5/trade/close-position", payload, nil); err != nil {
		return 0, err
	}
	return c.CurrentPrice(ctx, symbol)
}

func (c *OKX) AccountBalance(ctx context.Context) (float64, error) {
	var data []struct {
		Details []struct {
			Ccy string `json:"ccy"`
			Eq  string `json:"eq"`
		} `json:"details"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/v5/account/balance?ccy=USDT", nil, &data); err != nil {
		return 0, err
	}
	for _, acc := range data {
		for _, d := range acc.Details {
			if d.Ccy == "USDT" {
				eq, err := strconv.ParseFloat(d.Eq, 64)
				if err != nil {
					return 0, errors.Wrap(err, "parse equity")
				}
				return eq, nil
			}
		}
	}
	return 0, nil
}

func (c *OKX) CurrentPrice(ctx context.Context, symbol string) (float64, error) {
	if px := c.cachedPrice(symbol); px > 0 {
		return px, nil
	}

	var data []struct {
		Last string `json:"last"`
	}
	q := url.Values{}
	q.Set("instId", symbol)
	if err := c.do(ctx, http.MethodGet, "/api/v5/market/ticker?"+q.Encode(), nil, &data); err != nil {
		return 0, err
	}
	if len(data) == 0 {
		return 0, errors.Wrapf(models.ErrSymbolNotFound, "no ticker for %s", symbol)
	}
	px, err := strconv.ParseFloat(data[0].Last, 64)
	if err != nil {
		return 0, errors.Wrap(err, "parse last price")
	}
	c.SetPrice(symbol, px)
	return px, nil
}

func (c *OKX) OpenPositions(ctx context.Context) ([]models.Position, error) {
	var data []struct {
		InstID  string `json:"instId"`
		PosSide string `json:"posSide"`
		Pos     string `json:"pos"`
		AvgPx   string `json:"avgPx"`
		Last    string `json:"last"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/v5/account/positions", nil, &data); err != nil {
		return nil, err
	}

	res := make([]models.Position, 0, len(data))
	for _, d := range data {
		qty, _ := strconv.ParseFloat(d.Pos, 64)
		if qty == 0 {
			continue
		}
		entry, _ := strconv.ParseFloat(d.AvgPx, 64)
		last, _ := strconv.ParseFloat(d.Last, 64)
		side := models.SideBuy
		if d.PosSide == "short" {
			side = models.SideSell
		}
		res = append(res, models.Position{
			Symbol:    d.InstID,
			Side:      side,
			Quantity:  qty,
			Entry:     entry,
			LastPrice: last,
			UpdatedAt: time.Now(),
		})
	}
	return res, nil
}
