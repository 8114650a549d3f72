package test

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"sync"

	"github.com/gorilla/mux"
	"github.com/irsalhamdi/enrol-cart/api/web"
	"github.com/irsalhamdi/enrol-cart/validate"
	"github.com/plutov/paypal/v4"
	mock "github.com/stripe/stripe-mock/param"
)

type mockPaypal struct {
	mu            sync.Mutex
	expectedTotal string
	expectedItems int
	captured      []string
}

func (m *mockPaypal) captures() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.captured...)
}

func (m *mockPaypal) expect(total string, items int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.expectedTotal = total
	m.expectedItems = items
}

func (m *mockPaypal) handle() http.Handler {
	token := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tok := paypal.TokenResponse{Token: "token", Type: "Bearer", ExpiresIn: 3600}
		web.Respond(context.Background(), w, tok, 200)
	})

	checkout := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m.mu.Lock()
		defer m.mu.Unlock()

		var pu struct {
			Units []paypal.PurchaseUnitRequest `json:"purchase_units"`
		}
		if err := json.NewDecoder(r.Body).Decode(&pu); err != nil {
			web.Respond(context.Background(), w, nil, 400)
			return
		}

		if len(pu.Units) != 1 {
			web.Respond(context.Background(), w, nil, 400)
			return
		}

		if len(pu.Units[0].Items) != m.expectedItems {
			web.Respond(context.Background(), w, nil, 400)
			return
		}

		if pu.Units[0].Amount.Value != m.expectedTotal {
			web.Respond(context.Background(), w, nil, 400)
			return
		}

		ord := paypal.Order{ID: "paypal-" + validate.GenerateID()}
		web.Respond(context.Background(), w, ord, 200)
	})

	capture := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m.mu.Lock()
		m.captured = append(m.captured, mux.Vars(r)["id"])
		m.mu.Unlock()

		ord := paypal.Order{ID: mux.Vars(r)["id"], Status: "COMPLETED"}
		web.Respond(context.Background(), w, ord, 200)
	})

	r := mux.NewRouter()
	r.Handle("/v1/oauth2/token", token).Methods("POST")
	r.Handle("/v2/checkout/orders", checkout).Methods("POST")
	r.Handle("/v2/checkout/orders/{id}/capture", capture).Methods("POST")
	return r
}

type mockStripe struct {
	mu            sync.Mutex
	expectedTotal int64
	expectedItems int
	expired       []string
}

func (m *mockStripe) expiredSessions() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.expired...)
}

func (m *mockStripe) expect(total int64, items int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.expectedTotal = total
	m.expectedItems = items
}

func (m *mockStripe) handle() http.Handler {
	checkout := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m.mu.Lock()
		defer m.mu.Unlock()

		params, err := mock.ParseParams(r)
		if err != nil {
			web.Respond(context.Background(), w, nil, 400)
			return
		}
		lines, _ := params["line_items"].(map[string]any)

		n := 0
		var tot int64
		for _, li := range lines {
			it := li.(map[string]any)

			if it["quantity"] != "1" {
				web.Respond(context.Background(), w, nil, 400)
				return
			}

			pd := it["price_data"].(map[string]any)
			s := pd["unit_amount"].(string)
			amount, err := strconv.ParseInt(s, 10, 64)
			if err != nil {
				web.Respond(context.Background(), w, err, 400)
				return
			}

			tot += amount
			n += 1
		}

		if n != m.expectedItems || tot != m.expectedTotal {
			web.Respond(context.Background(), w, nil, 400)
			return
		}

		id := "cs_test_" + validate.GenerateID()
		sess := map[string]any{"id": id, "object": "checkout.session", "url": "https://checkout.example.com/" + id}
		web.Respond(context.Background(), w, sess, 200)
	})

	expire := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m.mu.Lock()
		defer m.mu.Unlock()

		id := mux.Vars(r)["id"]
		m.expired = append(m.expired, id)

		sess := map[string]any{"id": id, "object": "checkout.session", "status": "expired"}
		web.Respond(context.Background(), w, sess, 200)
	})

	r := mux.NewRouter()
	r.Handle("/v1/checkout/sessions", checkout).Methods("POST")
	r.Handle("/v1/checkout/sessions/{id}/expire", expire).Methods("POST")
	return r
}
