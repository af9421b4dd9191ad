package datadog

import (
	"net"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"csvdataset/internal/metrics"
)

func TestNewBackend_RequiresAddr(t *testing.T) {
	t.Parallel()

	if _, err := NewBackend(Config{}); err == nil {
		t.Fatalf("NewBackend with empty Addr: want error")
	}
}

func TestLabelsToTags(t *testing.T) {
	t.Parallel()

	if got := labelsToTags(nil); got != nil {
		t.Fatalf("labelsToTags(nil) = %v, want nil", got)
	}
	got := labelsToTags(metrics.Labels{"kind": "decoded", "job": "iris"})
	if diff := cmp.Diff([]string{"job:iris", "kind:decoded"}, got); diff != "" {
		t.Fatalf("tags (-want +got):\n%s", diff)
	}
}

func TestNilClientIsNoop(t *testing.T) {
	t.Parallel()

	b := &Backend{}
	b.IncCounter(metrics.RowsTotal, 1, nil)
	b.ObserveHistogram(metrics.StepDurationSeconds, 1, nil)
	if err := b.Flush(); err != nil {
		t.Fatalf("Flush on nil client: %v", err)
	}
}

// TestBackend_SendsDogStatsD runs the backend against a local UDP listener
// and checks the wire format of what Flush drains.
func TestBackend_SendsDogStatsD(t *testing.T) {
	t.Parallel()

	pc, err := net.ListenPacket("udp", "127.0.0.1:0")
	if err != nil {
		t.Skipf("udp not available: %v", err)
	}
	defer pc.Close()

	b, err := NewBackend(Config{Addr: pc.LocalAddr().String(), Namespace: "csvds.", GlobalTags: []string{"env:test"}})
	if err != nil {
		t.Fatalf("NewBackend: %v", err)
	}
	b.IncCounter(metrics.RowsTotal, 3, metrics.Labels{"job": "iris", "kind": metrics.KindDecoded})
	b.ObserveHistogram(metrics.StepDurationSeconds, 0.25, metrics.Labels{"step": "resolve_schema"})
	if err := b.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	var got strings.Builder
	buf := make([]byte, 64*1024)
	for {
		_ = pc.SetReadDeadline(time.Now().Add(500 * time.Millisecond))
		n, _, err := pc.ReadFrom(buf)
		if err != nil {
			break
		}
		got.Write(buf[:n])
		got.WriteByte('\n')
	}
	out := got.String()
	for _, want := range []string{
		"csvds.csv_rows_total:3|c",
		"kind:decoded",
		"env:test",
		"csvds.csv_step_duration_seconds:0.25|h",
		"step:resolve_schema",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("payload %q does not contain %q", out, want)
		}
	}
}
