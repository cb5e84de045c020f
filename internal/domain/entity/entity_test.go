package entity

import (
	"net/url"
	"testing"
	"time"

	"github.com/dreschagin/vrops-selfmon/internal/domain/valueobject"
)

func TestNewCredentials_TrimsValues(t *testing.T) {
	creds, err := NewCredentials(" 10.0.0.5 ", " admin", "secret ", url.Values{" rollUpType ": {" AVG "}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if creds.Host() != "10.0.0.5" || creds.Username() != "admin" || creds.Password() != "secret" {
		t.Fatalf("values not trimmed: %q %q %q", creds.Host(), creds.Username(), creds.Password())
	}
	if got := creds.QueryParams().Get("rollUpType"); got != "AVG" {
		t.Fatalf("expected trimmed query param, got %q", got)
	}

	params := creds.QueryParams()
	params.Set("rollUpType", "MAX")
	if creds.QueryParams().Get("rollUpType") != "AVG" {
		t.Fatal("QueryParams must return a copy")
	}
}

func TestNewCredentials_RejectsEmpty(t *testing.T) {
	if _, err := NewCredentials("", "u", "p", nil); err == nil {
		t.Fatal("expected error for empty host")
	}
	if _, err := NewCredentials("h", " ", "p", nil); err == nil {
		t.Fatal("expected error for blank username")
	}
}

func TestPayloadSpec_KeepsOrder(t *testing.T) {
	spec := NewPayloadSpec()
	for _, name := range []string{"ServiceB", "ServiceA", "ServiceC"} {
		if err := spec.AddService(name, []string{"cpu_usage"}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	services := spec.Services()
	if services[0].Name() != "ServiceB" || services[2].Name() != "ServiceC" {
		t.Fatalf("unexpected order: %v", services)
	}

	if err := spec.AddService("ServiceA", nil); err == nil {
		t.Fatal("expected duplicate service error")
	}

	svc, ok := spec.Service("ServiceA")
	if !ok || !svc.IsKPI("cpu_usage") || svc.IsKPI("mem_usage") {
		t.Fatalf("unexpected KPI membership for %v", svc)
	}
}

func TestSession_Lifecycle(t *testing.T) {
	creds, _ := NewCredentials("h", "u", "p", nil)
	session, err := NewSession(creds)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := session.Authenticate(""); err == nil {
		t.Fatal("expected error for empty token")
	}
	if err := session.Authenticate("tok"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := session.Authenticate("other"); err == nil {
		t.Fatal("expected error on second authenticate")
	}

	session.Clear()
	if session.IsAuthenticated() {
		t.Fatal("expected token to be cleared")
	}
}

func TestCollectionResult_AccumulatesPerNode(t *testing.T) {
	result := NewCollectionResult()
	node := valueobject.NewNodeName("node-1")

	first := MetricRecord{Key: "cpu_usage", ShortID: "m0", KPI: true, Service: "A",
		Series: valueobject.TimeSeries{{Timestamp: 0, Value: 1}}}
	second := MetricRecord{Key: "mem_usage", ShortID: "m1", Service: "B",
		Series: valueobject.TimeSeries{{Timestamp: 10, Value: 2}}}

	if err := result.Table(node).Append(first); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := result.Table(node).Append(second); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(result.Nodes()) != 1 {
		t.Fatalf("expected one node, got %d", len(result.Nodes()))
	}
	table := result.Nodes()[0]
	if table.Len() != 2 || len(table.Names()) != 2 {
		t.Fatalf("expected 2 series and 2 names, got %d/%d", table.Len(), len(table.Names()))
	}
	if result.SeriesCount() != 2 {
		t.Fatalf("unexpected series count %d", result.SeriesCount())
	}

	if err := table.Append(first); err == nil {
		t.Fatal("expected duplicate short id error")
	}
}

func TestNodeTable_FrameAlignsTimestamps(t *testing.T) {
	table := NewNodeTable("n")
	_ = table.Append(
		MetricRecord{ShortID: "m0", Series: valueobject.TimeSeries{{Timestamp: 20, Value: 2}, {Timestamp: 10, Value: 1}}},
		MetricRecord{ShortID: "m1", Series: valueobject.TimeSeries{{Timestamp: 20, Value: 5}}},
	)

	frame := table.Frame()
	if len(frame.Columns) != 2 || len(frame.Rows) != 2 {
		t.Fatalf("unexpected frame shape: %+v", frame)
	}
	if frame.Rows[0].Timestamp != 10 || frame.Rows[0].Present[1] {
		t.Fatalf("unexpected first row: %+v", frame.Rows[0])
	}
	if frame.Rows[1].Values[1] != 5 || !frame.Rows[1].Present[0] {
		t.Fatalf("unexpected second row: %+v", frame.Rows[1])
	}
}

func TestNodeTable_FrameDuplicateTimestampKeepsLast(t *testing.T) {
	table := NewNodeTable("n")
	_ = table.Append(
		MetricRecord{ShortID: "m0", Series: valueobject.TimeSeries{{Timestamp: 10, Value: 1}, {Timestamp: 10, Value: 3}}},
	)

	frame := table.Frame()
	if len(frame.Rows) != 1 || frame.Rows[0].Values[0] != 3 {
		t.Fatalf("expected single row with last value, got %+v", frame.Rows)
	}
}

func TestNameDescriptor_KPIMarker(t *testing.T) {
	if (NameDescriptor{KPI: true}).KPIMarker() != "kpi" {
		t.Fatal("expected kpi marker")
	}
	if (NameDescriptor{}).KPIMarker() != "" {
		t.Fatal("expected empty marker")
	}
}

func TestRunSummary_Finish(t *testing.T) {
	start := time.Now()
	summary := NewRunSummary("h", start)

	if summary.Advance(valueobject.StateCollecting) {
		t.Fatal("expected skip from init to collecting to be rejected")
	}
	summary.Advance(valueobject.StateAuthenticated)
	summary.Finish(valueobject.StatusFailure, start.Add(2*time.Second))

	if summary.State != valueobject.StateDone || summary.Succeeded() {
		t.Fatalf("unexpected summary: %+v", summary)
	}
	if summary.Duration() != 2*time.Second {
		t.Fatalf("unexpected duration %s", summary.Duration())
	}
	if summary.RunID == "" {
		t.Fatal("expected run id")
	}
}
