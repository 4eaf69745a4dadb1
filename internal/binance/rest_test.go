package binance

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/fandresen/trAIding/internal/broker"
	"github.com/fandresen/trAIding/internal/domain"
)

func TestClient_Klines(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/fapi/v1/klines" {
			t.Errorf("path = %s", r.URL.Path)
		}
		q := r.URL.Query()
		if q.Get("symbol") != "BTCUSDT" || q.Get("interval") != "1m" || q.Get("limit") != "2" {
			t.Errorf("query = %s", r.URL.RawQuery)
		}
		io.WriteString(w, `[
			[1700000000000,"50000.1","50100.2","49900.3","50050.4","12.5",1700000059999,"0",100,"0","0","0"],
			[1700000060000,"50050.4","50200.0","50000.0","50150.0","8.25",1700000119999,"0",80,"0","0","0"]
		]`)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "", "")
	candles, err := client.Klines(context.Background(), "BTCUSDT", domain.Timeframe1m, 2)
	if err != nil {
		t.Fatalf("Klines failed: %v", err)
	}
	if len(candles) != 2 {
		t.Fatalf("got %d candles, want 2", len(candles))
	}
	first := candles[0]
	if first.OpenTime != 1700000000000 || first.Open != 50000.1 || first.High != 50100.2 ||
		first.Low != 49900.3 || first.Close != 50050.4 || first.Volume != 12.5 {
		t.Errorf("first candle = %+v", first)
	}
}

func TestClient_SubmitOrder_SignedRequest(t *testing.T) {
	const secret = "test-secret"

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-MBX-APIKEY") != "test-key" {
			t.Errorf("missing api key header")
		}
		body, _ := io.ReadAll(r.Body)
		payload, sig, found := strings.Cut(string(body), "&signature=")
		if !found {
			t.Fatalf("no signature in body: %s", body)
		}
		mac := hmac.New(sha256.New, []byte(secret))
		mac.Write([]byte(payload))
		if want := hex.EncodeToString(mac.Sum(nil)); sig != want {
			t.Errorf("signature = %s, want %s", sig, want)
		}

		params, _ := url.ParseQuery(payload)
		if params.Get("symbol") != "BTCUSDT" || params.Get("side") != "BUY" ||
			params.Get("type") != "MARKET" || params.Get("quantity") != "0.5" {
			t.Errorf("params = %s", payload)
		}
		if params.Get("timestamp") == "" || params.Get("recvWindow") == "" {
			t.Errorf("signed params missing: %s", payload)
		}

		io.WriteString(w, `{"orderId":12345,"avgPrice":"50000.5","origQty":"0.5","updateTime":1700000000123}`)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "test-key", secret)
	ack, err := client.SubmitOrder(context.Background(), broker.OrderRequest{
		Symbol: "BTCUSDT", Side: domain.SideBuy, Type: broker.OrderMarket, Quantity: 0.5,
	})
	if err != nil {
		t.Fatalf("SubmitOrder failed: %v", err)
	}
	if ack.OrderID != "12345" || ack.AvgPrice != 50000.5 || ack.OrigQty != 0.5 {
		t.Errorf("ack = %+v", ack)
	}
}

func TestClient_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		io.WriteString(w, `{"code":-2019,"msg":"Margin is insufficient."}`)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "k", "s")
	_, err := client.SubmitOrder(context.Background(), broker.OrderRequest{
		Symbol: "BTCUSDT", Side: domain.SideBuy, Type: broker.OrderMarket, Quantity: 1,
	})
	if err == nil {
		t.Fatal("expected error")
	}
	apiErr, ok := err.(*APIError)
	if !ok {
		t.Fatalf("error type = %T: %v", err, err)
	}
	if apiErr.Code != -2019 {
		t.Errorf("code = %d", apiErr.Code)
	}
}

func TestClient_CancelOrder(t *testing.T) {
	var gotMethod, gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotQuery = r.URL.RawQuery
		io.WriteString(w, `{"orderId":77}`)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "k", "s")
	if err := client.CancelOrder(context.Background(), "BTCUSDT", "77"); err != nil {
		t.Fatalf("CancelOrder failed: %v", err)
	}
	if gotMethod != http.MethodDelete {
		t.Errorf("method = %s", gotMethod)
	}
	params, _ := url.ParseQuery(gotQuery)
	if params.Get("orderId") != "77" || params.Get("symbol") != "BTCUSDT" {
		t.Errorf("query = %s", gotQuery)
	}
	if params.Get("signature") == "" {
		t.Errorf("cancel must be signed: %s", gotQuery)
	}
}

func TestClient_Positions_FiltersFlat(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `[
			{"symbol":"BTCUSDT","positionAmt":"0","entryPrice":"0","markPrice":"50000","unRealizedProfit":"0","liquidationPrice":"0"},
			{"symbol":"BTCUSDT","positionAmt":"0.01","entryPrice":"49000","markPrice":"50000","unRealizedProfit":"10","liquidationPrice":"30000"}
		]`)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "k", "s")
	positions, err := client.Positions(context.Background(), "BTCUSDT")
	if err != nil {
		t.Fatalf("Positions failed: %v", err)
	}
	if len(positions) != 1 {
		t.Fatalf("got %d positions, want 1 (flat filtered)", len(positions))
	}
	if positions[0].PositionAmt != 0.01 || positions[0].EntryPrice != 49000 {
		t.Errorf("position = %+v", positions[0])
	}
}
