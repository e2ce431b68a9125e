package payment

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func testClient(baseURL string) *Client {
	return NewClient(Config{
		BaseURL:       baseURL,
		ChannelID:     "channel-1",
		ChannelSecret: "secret-1",
		Currency:      "JPY",
		ConfirmURL:    "https://app.example.com/api/v1/payments/confirm",
		CancelURL:     "https://app.example.com/",
	})
}

func TestClient_Request(t *testing.T) {
	var gotPath, gotChannel, gotNonce, gotSignature string
	var gotBody requestBody

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotChannel = r.Header.Get(HeaderChannelID)
		gotNonce = r.Header.Get(HeaderNonce)
		gotSignature = r.Header.Get(HeaderSignature)

		raw, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(raw, &gotBody); err != nil {
			t.Errorf("unmarshal request body: %v", err)
		}

		// Verify the signature over the exact payload we received.
		want := NewSigner("secret-1").Sign(r.URL.Path, raw, gotNonce)
		if gotSignature != want {
			t.Errorf("signature mismatch: got %s, want %s", gotSignature, want)
		}

		_, _ = w.Write([]byte(`{
			"returnCode": "0000",
			"returnMessage": "Success.",
			"info": {
				"transactionId": "2025090112345",
				"paymentUrl": {"web": "https://gateway.example.com/pay/2025090112345"}
			}
		}`))
	}))
	defer srv.Close()

	client := testClient(srv.URL)

	result, err := client.Request(context.Background(), RequestInput{
		CheckinID:   "chk-1",
		Amount:      5500,
		ProductName: "Gymnasium 2h session",
	})
	if err != nil {
		t.Fatalf("Request: %v", err)
	}

	if result.TransactionID != "2025090112345" {
		t.Errorf("TransactionID = %s", result.TransactionID)
	}
	if result.PaymentURL != "https://gateway.example.com/pay/2025090112345" {
		t.Errorf("PaymentURL = %s", result.PaymentURL)
	}

	if gotPath != "/v3/payments/request" {
		t.Errorf("path = %s", gotPath)
	}
	if gotChannel != "channel-1" {
		t.Errorf("channel header = %s", gotChannel)
	}
	if gotNonce == "" {
		t.Error("nonce header missing")
	}

	if gotBody.Amount != 5500 || gotBody.Currency != "JPY" || gotBody.OrderID != "chk-1" {
		t.Errorf("unexpected body: %+v", gotBody)
	}
	if len(gotBody.Packages) != 1 || gotBody.Packages[0].Amount != 5500 {
		t.Errorf("unexpected packages: %+v", gotBody.Packages)
	}
	if gotBody.RedirectURLs.ConfirmURL != "https://app.example.com/api/v1/payments/confirm" {
		t.Errorf("confirm URL = %s", gotBody.RedirectURLs.ConfirmURL)
	}
}

func TestClient_Request_Declined(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"returnCode": "1104", "returnMessage": "Merchant not found."}`))
	}))
	defer srv.Close()

	client := testClient(srv.URL)

	_, err := client.Request(context.Background(), RequestInput{CheckinID: "chk-1", Amount: 5500})
	if !errors.Is(err, ErrGatewayDeclined) {
		t.Fatalf("expected ErrGatewayDeclined, got %v", err)
	}
	if !strings.Contains(err.Error(), "1104") {
		t.Errorf("error should carry the gateway code: %v", err)
	}
}

func TestClient_Request_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // refuse connections

	client := testClient(srv.URL)

	_, err := client.Request(context.Background(), RequestInput{CheckinID: "chk-1", Amount: 5500})
	if !errors.Is(err, ErrGatewayUnavailable) {
		t.Fatalf("expected ErrGatewayUnavailable, got %v", err)
	}
}

func TestClient_Request_MalformedResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`not json`))
	}))
	defer srv.Close()

	client := testClient(srv.URL)

	_, err := client.Request(context.Background(), RequestInput{CheckinID: "chk-1", Amount: 5500})
	if !errors.Is(err, ErrGatewayUnavailable) {
		t.Fatalf("expected ErrGatewayUnavailable, got %v", err)
	}
}

func TestClient_Confirm(t *testing.T) {
	var gotPath string
	var gotBody confirmBody

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		raw, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(raw, &gotBody)
		_, _ = w.Write([]byte(`{"returnCode": "0000", "returnMessage": "Success."}`))
	}))
	defer srv.Close()

	client := testClient(srv.URL)

	if err := client.Confirm(context.Background(), "2025090112345", 5500); err != nil {
		t.Fatalf("Confirm: %v", err)
	}

	if gotPath != "/v3/payments/requests/2025090112345/confirm" {
		t.Errorf("path = %s", gotPath)
	}
	if gotBody.Amount != 5500 || gotBody.Currency != "JPY" {
		t.Errorf("unexpected body: %+v", gotBody)
	}
}

func TestClient_Confirm_Declined(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"returnCode": "1155", "returnMessage": "Wrong transaction."}`))
	}))
	defer srv.Close()

	client := testClient(srv.URL)

	err := client.Confirm(context.Background(), "bad-tx", 5500)
	if !errors.Is(err, ErrGatewayDeclined) {
		t.Fatalf("expected ErrGatewayDeclined, got %v", err)
	}
}

func TestInstantGateway(t *testing.T) {
	gw := NewInstantGateway()

	first, err := gw.Request(context.Background(), RequestInput{CheckinID: "chk-1", Amount: 5500})
	if err != nil {
		t.Fatalf("Request: %v", err)
	}
	second, err := gw.Request(context.Background(), RequestInput{CheckinID: "chk-1", Amount: 5500})
	if err != nil {
		t.Fatalf("Request: %v", err)
	}

	if first.TransactionID == second.TransactionID {
		t.Error("instant gateway must mint unique transaction ids")
	}
	if !strings.Contains(first.PaymentURL, "orderId=chk-1") {
		t.Errorf("payment URL should target the confirm callback: %s", first.PaymentURL)
	}

	if err := gw.Confirm(context.Background(), first.TransactionID, 5500); err != nil {
		t.Errorf("Confirm: %v", err)
	}
}
