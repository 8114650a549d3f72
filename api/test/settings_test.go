package test

import (
	"net/http"
	"testing"
	"time"

	"github.com/irsalhamdi/enrol-cart/api"
	"github.com/irsalhamdi/enrol-cart/core/cart"
	"github.com/irsalhamdi/enrol-cart/core/catalog"
	"github.com/irsalhamdi/enrol-cart/rate"
	"github.com/irsalhamdi/enrol-cart/validate"
)

func TestCartDisabled(t *testing.T) {
	env, err := NewTestEnv(t, "disabled_test")
	if err != nil {
		t.Fatalf("initializing test env: %v", err)
	}

	ct := &cartTest{env}
	o := env.createOffer(t, "10")

	setEnabled := func(enabled bool) {
		t.Helper()

		if err := Login(ct.Server, ct.AdminEmail, ct.AdminPass); err != nil {
			t.Fatal(err)
		}
		var view cart.SettingsView
		if code := ct.do(t, http.MethodPut, "/settings", map[string]bool{"enabled": enabled}, &view); code != http.StatusOK {
			t.Fatalf("updating settings: status code %d", code)
		}
		if view.Enabled != enabled {
			t.Fatalf("expected enabled %v, got %+v", enabled, view)
		}
		if err := Logout(ct.Server); err != nil {
			t.Fatal(err)
		}
	}

	setEnabled(false)
	for _, r := range []struct{ method, path string }{
		{http.MethodGet, "/cart"},
		{http.MethodPut, "/cart/items"},
		{http.MethodDelete, "/cart/items/" + o.ID},
	} {
		var in any
		if r.method == http.MethodPut {
			in = cart.ItemNew{InstanceID: o.ID}
		}
		if code := ct.do(t, r.method, r.path, in, nil); code != http.StatusForbidden {
			t.Fatalf("%s %s with carts disabled: status code %d", r.method, r.path, code)
		}
	}

	if err := Login(ct.Server, ct.UserEmail, ct.UserPass); err != nil {
		t.Fatal(err)
	}
	if code := ct.do(t, http.MethodGet, "/carts", nil, nil); code != http.StatusForbidden {
		t.Fatalf("listing carts with carts disabled: status code %d", code)
	}
	if err := Logout(ct.Server); err != nil {
		t.Fatal(err)
	}

	setEnabled(true)
	ct.showCartOK(t, nil)
}

func TestShowCourse(t *testing.T) {
	env, err := NewTestEnv(t, "course_test")
	if err != nil {
		t.Fatalf("initializing test env: %v", err)
	}

	ct := &cartTest{env}
	o := env.createOffer(t, "10")

	var v catalog.CourseView
	if code := ct.do(t, http.MethodGet, "/courses/"+o.CourseID, nil, &v); code != http.StatusOK {
		t.Fatalf("showing course: status code %d", code)
	}
	if v.ID != o.CourseID || v.Offer == nil || v.Offer.ID != o.ID {
		t.Fatalf("unexpected course view %+v", v)
	}

	if err := Login(ct.Server, ct.AdminEmail, ct.AdminPass); err != nil {
		t.Fatal(err)
	}
	in := map[string]bool{"enabled": false}
	if code := ct.do(t, http.MethodPut, "/offers/"+o.ID+"/enabled", in, nil); code != http.StatusNoContent {
		t.Fatalf("disabling offer: status code %d", code)
	}
	if err := Logout(ct.Server); err != nil {
		t.Fatal(err)
	}

	v = catalog.CourseView{}
	if code := ct.do(t, http.MethodGet, "/courses/"+o.CourseID, nil, &v); code != http.StatusOK {
		t.Fatalf("showing course: status code %d", code)
	}
	if v.Offer != nil {
		t.Fatalf("expected no offer for a course with a disabled offer, got %+v", v.Offer)
	}

	if code := ct.do(t, http.MethodGet, "/courses/"+validate.GenerateID(), nil, nil); code != http.StatusNotFound {
		t.Fatalf("unknown course: status code %d", code)
	}
}

func TestRateLimitedRoutes(t *testing.T) {
	env, err := NewTestEnv(t, "rate_test", func(cfg *api.APIConfig) {
		cfg.Limiter = rate.NewLimiter(2, time.Hour, time.Hour)
	})
	if err != nil {
		t.Fatalf("initializing test env: %v", err)
	}

	ct := &cartTest{env}
	o := env.createOffer(t, "10")

	ct.addItem(t, cart.ItemNew{InstanceID: o.ID}, http.StatusOK)
	ct.addItem(t, cart.ItemNew{InstanceID: o.ID}, http.StatusUnprocessableEntity)
	ct.addItem(t, cart.ItemNew{InstanceID: o.ID}, http.StatusTooManyRequests)

	// reads and provider notifications are not throttled
	for i := 0; i < 3; i++ {
		ct.showCartOK(t, []string{o.ID})
		if code := ct.do(t, http.MethodPost, "/payments/stripe/capture", map[string]string{}, nil); code != http.StatusBadRequest {
			t.Fatalf("unsigned webhook: status code %d", code)
		}
	}
}
