package state

import (
	"errors"
	"sync"
	"testing"
)

func TestCredentials_SetAndLookup(t *testing.T) {
	c := NewCredentials()

	if err := c.Set([]DeviceCredential{
		{DeviceID: "drc3XdxNtzoucpw9xiRp", APIAccessSecret: "secret-1"},
		{DeviceID: "other0000000000000id", APIAccessSecret: "secret-2"},
	}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	secret, ok := c.Lookup("drc3XdxNtzoucpw9xiRp")
	if !ok || secret != "secret-1" {
		t.Fatalf("Lookup = (%q, %v), want (secret-1, true)", secret, ok)
	}

	if _, ok := c.Lookup("unknown"); ok {
		t.Error("expected Lookup for unknown device to fail")
	}

	if len(c.List()) != 2 {
		t.Errorf("List length = %d, want 2", len(c.List()))
	}
}

func TestCredentials_SetRejectsEmptyDeviceID(t *testing.T) {
	c := NewCredentials()
	c.Set([]DeviceCredential{{DeviceID: "a", APIAccessSecret: "x"}}) //nolint:errcheck

	err := c.Set([]DeviceCredential{{DeviceID: "", APIAccessSecret: "x"}})
	if !errors.Is(err, ErrEmptyDeviceID) {
		t.Fatalf("err = %v, want ErrEmptyDeviceID", err)
	}

	// A rejected Set must not clobber the previously installed registry.
	if _, ok := c.Lookup("a"); !ok {
		t.Error("expected prior registry to survive a failed Set")
	}
}

func TestCredentials_SetReplacesWholesale(t *testing.T) {
	c := NewCredentials()
	c.Set([]DeviceCredential{{DeviceID: "a", APIAccessSecret: "x"}}) //nolint:errcheck
	c.Set([]DeviceCredential{{DeviceID: "b", APIAccessSecret: "y"}}) //nolint:errcheck

	if _, ok := c.Lookup("a"); ok {
		t.Error("expected first entry to be gone after the second Set")
	}
	if _, ok := c.Lookup("b"); !ok {
		t.Error("expected second entry to be present")
	}
}

func strPtr(s string) *string { return &s }
func boolPtr(b bool) *bool    { return &b }

func TestHTTPContextCell_SetAndGet(t *testing.T) {
	cell := NewHTTPContextCell()

	if cell.Get() != nil {
		t.Fatal("expected nil before any Set")
	}

	ctx := &HttpContext{
		ExpectedRequest: ExpectedRequest{
			HTTPMethod:    "POST",
			APIMethodPath: "messages/log",
			Data:          strPtr(`{"message":"Test message #1"}`),
		},
		RequiredResponse: &RequiredResponse{
			Data: `{"messageId":"mdx8vuCGWdb2TFeWFZd6"}`,
		},
	}

	if err := cell.Set(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got := cell.Get()
	if got == nil || got.ExpectedRequest.APIMethodPath != "messages/log" {
		t.Fatalf("Get() = %+v", got)
	}
}

func TestHTTPContextCell_SetRejectsInvalid(t *testing.T) {
	cases := []struct {
		name string
		ctx  *HttpContext
		want error
	}{
		{
			name: "bad method",
			ctx:  &HttpContext{ExpectedRequest: ExpectedRequest{HTTPMethod: "DELETE", APIMethodPath: "x"}},
			want: ErrInvalidHTTPMethod,
		},
		{
			name: "empty path",
			ctx:  &HttpContext{ExpectedRequest: ExpectedRequest{HTTPMethod: "GET", APIMethodPath: ""}},
			want: ErrEmptyAPIMethodPath,
		},
		{
			name: "non-JSON data",
			ctx: &HttpContext{ExpectedRequest: ExpectedRequest{
				HTTPMethod: "POST", APIMethodPath: "x", Data: strPtr("not json"),
			}},
			want: ErrInvalidJSONData,
		},
		{
			name: "null data",
			ctx: &HttpContext{ExpectedRequest: ExpectedRequest{
				HTTPMethod: "POST", APIMethodPath: "x", Data: strPtr("null"),
			}},
			want: ErrInvalidJSONData,
		},
		{
			name: "error response missing message",
			ctx: &HttpContext{
				ExpectedRequest:  ExpectedRequest{HTTPMethod: "GET", APIMethodPath: "x"},
				RequiredResponse: &RequiredResponse{StatusCode: 400},
			},
			want: ErrEmptyErrorMessage,
		},
		{
			name: "response with neither shape",
			ctx: &HttpContext{
				ExpectedRequest:  ExpectedRequest{HTTPMethod: "GET", APIMethodPath: "x"},
				RequiredResponse: &RequiredResponse{},
			},
			want: ErrInvalidRequiredResponse,
		},
	}

	for _, tt := range cases {
		t.Run(tt.name, func(t *testing.T) {
			cell := NewHTTPContextCell()
			err := cell.Set(tt.ctx)
			if !errors.Is(err, tt.want) {
				t.Fatalf("err = %v, want %v", err, tt.want)
			}
			if cell.Get() != nil {
				t.Error("expected a rejected Set to leave the cell empty")
			}
		})
	}
}

func TestExpectedRequest_RequiresAuthentication(t *testing.T) {
	if !(ExpectedRequest{}).RequiresAuthentication() {
		t.Error("expected default (nil Authenticate) to require authentication")
	}
	if (ExpectedRequest{Authenticate: boolPtr(false)}).RequiresAuthentication() {
		t.Error("expected explicit false to not require authentication")
	}
	if !(ExpectedRequest{Authenticate: boolPtr(true)}).RequiresAuthentication() {
		t.Error("expected explicit true to require authentication")
	}
}

func TestNotifyContextCell_SetAndLookup(t *testing.T) {
	cell := NewNotifyContextCell()

	nc := NotifyContext{
		"drc3XdxNtzoucpw9xiRp": {
			EventNewMsgReceived: {Data: `{"messageId":"x"}`, TimeoutMs: 5},
		},
	}

	if err := cell.Set(nc); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	entry, ok := cell.Lookup("drc3XdxNtzoucpw9xiRp", EventNewMsgReceived)
	if !ok {
		t.Fatal("expected Lookup to find the installed entry")
	}
	if entry.TimeoutMs != 5 {
		t.Errorf("TimeoutMs = %d, want 5", entry.TimeoutMs)
	}

	if _, ok := cell.Lookup("drc3XdxNtzoucpw9xiRp", EventSentMsgRead); ok {
		t.Error("expected Lookup for an uninstalled event to fail")
	}
}

func TestNotifyContextCell_SetRejectsInvalidEventName(t *testing.T) {
	cell := NewNotifyContextCell()
	nc := NotifyContext{
		"d1": {EventName("not-a-real-event"): {Data: `{}`}},
	}
	if err := cell.Set(nc); !errors.Is(err, ErrInvalidEventName) {
		t.Fatalf("err = %v, want ErrInvalidEventName", err)
	}
}

func TestNotifyContextCell_SetRejectsNonJSONData(t *testing.T) {
	cell := NewNotifyContextCell()
	nc := NotifyContext{
		"d1": {EventNewMsgReceived: {Data: "not json"}},
	}
	if err := cell.Set(nc); !errors.Is(err, ErrInvalidJSONData) {
		t.Fatalf("err = %v, want ErrInvalidJSONData", err)
	}
}

func TestNotifyContextCell_SetRejectsNegativeTimeout(t *testing.T) {
	cell := NewNotifyContextCell()
	nc := NotifyContext{
		"d1": {EventNewMsgReceived: {Data: `{}`, TimeoutMs: -1}},
	}
	if err := cell.Set(nc); !errors.Is(err, ErrInvalidTimeout) {
		t.Fatalf("err = %v, want ErrInvalidTimeout", err)
	}
}

func TestIsValidEventName(t *testing.T) {
	for _, e := range AllEventNames() {
		if !IsValidEventName(e) {
			t.Errorf("expected %q to be valid", e)
		}
	}
	if IsValidEventName(EventName("bogus-event")) {
		t.Error("expected bogus-event to be invalid")
	}
}

func TestCredentials_ConcurrentAccess(t *testing.T) {
	c := NewCredentials()
	c.Set([]DeviceCredential{{DeviceID: "a", APIAccessSecret: "x"}}) //nolint:errcheck

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			c.Lookup("a")
		}()
		go func() {
			defer wg.Done()
			c.Set([]DeviceCredential{{DeviceID: "a", APIAccessSecret: "y"}}) //nolint:errcheck
		}()
	}
	wg.Wait()
}
