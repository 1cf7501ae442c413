package metrics

import (
	"testing"

	"github.com/anthillplatform/onlinelib/internal/fakepeer"
	"github.com/anthillplatform/onlinelib/jsonrpc2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestCollector(t *testing.T) {
	reg := prometheus.NewRegistry()
	c, err := New("test", reg)
	if err != nil {
		t.Fatal(err)
	}

	tr := fakepeer.New()
	r := jsonrpc2.NewRemote(tr, nil, jsonrpc2.WithObserver(c))
	r.OnConnected()

	r.Go("getGroup", nil)
	r.Go("getGroup", nil)
	r.Go("leave", nil)
	r.OnMessageReceived([]byte(`{"jsonrpc":"2.0","id":1,"result":{"name":"Alpha"}}`))
	r.OnMessageReceived([]byte(`{"jsonrpc":"2.0","id":3,"error":{"code":-32601,"message":"Method not found"}}`))
	r.OnMessageReceived([]byte(`{"jsonrpc":"2.0","id":4,"method":"ping"}`))
	r.OnMessageReceived([]byte(`nonsense`))

	if got, want := testutil.ToFloat64(c.callsStarted.WithLabelValues("getGroup")), 2.0; got != want {
		t.Errorf("calls started: got %v; want %v", got, want)
	}
	if got, want := testutil.ToFloat64(c.callsInflight), 1.0; got != want {
		t.Errorf("calls inflight: got %v; want %v", got, want)
	}
	if got, want := testutil.ToFloat64(c.callsCompleted.WithLabelValues("getGroup", "0")), 1.0; got != want {
		t.Errorf("calls completed: got %v; want %v", got, want)
	}
	if got, want := testutil.ToFloat64(c.callsCompleted.WithLabelValues("leave", "-32601")), 1.0; got != want {
		t.Errorf("calls failed: got %v; want %v", got, want)
	}
	if got, want := testutil.ToFloat64(c.requests.WithLabelValues("ping", "-32601")), 1.0; got != want {
		t.Errorf("requests handled: got %v; want %v", got, want)
	}
	if got, want := testutil.ToFloat64(c.protocolErrors.WithLabelValues("-32601")), 1.0; got != want {
		t.Errorf("method not found errors: got %v; want %v", got, want)
	}
	if got, want := testutil.ToFloat64(c.protocolErrors.WithLabelValues("-32700")), 1.0; got != want {
		t.Errorf("parse errors: got %v; want %v", got, want)
	}

	r.OnConnectionClosed()
	if got, want := testutil.ToFloat64(c.callsInflight), 0.0; got != want {
		t.Errorf("calls inflight after close: got %v; want %v", got, want)
	}
	if got, want := testutil.ToFloat64(c.callsCompleted.WithLabelValues("getGroup", "-32002")), 1.0; got != want {
		t.Errorf("calls closed: got %v; want %v", got, want)
	}
}

func TestDuplicateRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	if _, err := New("test", reg); err != nil {
		t.Fatal(err)
	}
	if _, err := New("test", reg); err == nil {
		t.Error("expected duplicate registration to fail")
	}
}
