// Duplex E2E Load Benchmark
//
// Answers two questions for a running server:
// - What is the p50/p95/p99 round trip of a text message under concurrent load?
// - How much allocation + GC work does that load generate?
//
// It starts the real duplex server in-process with one session and drives N
// concurrent WebSocket clients. In echo mode every client waits for its own
// message to come back; in broadcast mode every client waits for its message
// to arrive through the fan-out (and skips the others' traffic).
//
// It measures:
// client send → kernel → frame parse → session dispatch → frame encode → write → client read
//
// Run:
//
//	cd benchmark/e2e_load
//	go run . -clients=200 -duration=30s -rps=5 -mode=echo
package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"math"
	"net"
	"runtime"
	"runtime/debug"
	"runtime/metrics"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/vango-dev/duplex/pkg/conn"
	"github.com/vango-dev/duplex/pkg/server"
	duplexws "github.com/vango-dev/duplex/pkg/websocket"
)

func main() {
	var (
		clients      = flag.Int("clients", 100, "number of concurrent websocket clients")
		duration     = flag.Duration("duration", 15*time.Second, "how long to run the load test")
		rps          = flag.Float64("rps", 2, "target messages/sec per client (best-effort, response-gated)")
		mode         = flag.String("mode", "echo", "session mode: echo or broadcast")
		payloadBytes = flag.Int("payload-bytes", 24, "bytes per message")
		workers      = flag.Int("workers", runtime.NumCPU(), "server worker goroutines")
	)
	flag.Parse()

	if *clients <= 0 {
		log.Fatal("-clients must be > 0")
	}
	if *duration <= 0 {
		log.Fatal("-duration must be > 0")
	}
	if *rps <= 0 {
		log.Fatal("-rps must be > 0")
	}
	if *payloadBytes < 0 {
		log.Fatal("-payload-bytes must be >= 0")
	}
	if *mode != "echo" && *mode != "broadcast" {
		log.Fatal("-mode must be echo or broadcast")
	}

	// Reduce incidental variability a bit.
	debug.SetGCPercent(100)

	quiet := slog.New(slog.NewTextHandler(io.Discard, nil))
	up := duplexws.NewUpgrader(duplexws.WithUpgraderLogger(quiet))
	up.Register("load", newSession(*mode, quiet))

	srv := server.New(server.DefaultConfig().WithWorkers(*workers), up, server.WithLogger(quiet))
	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		log.Fatalf("listen: %v", err)
	}
	go func() {
		_ = srv.Serve(context.Background(), ln)
	}()
	defer func() {
		_ = srv.Shutdown(context.Background())
	}()

	wsURL := "ws://" + ln.Addr().String() + "/load"

	ctx, cancel := context.WithTimeout(context.Background(), *duration)
	defer cancel()

	samplesCh := make(chan time.Duration, 1024)
	var samples []time.Duration
	collectorDone := make(chan struct{})
	go func() {
		defer close(collectorDone)
		for rtt := range samplesCh {
			samples = append(samples, rtt)
		}
	}()

	var (
		totalMessages atomic.Uint64
		totalErrors   atomic.Uint64
	)

	var before runtime.MemStats
	runtime.GC()
	runtime.ReadMemStats(&before)
	beforeMetrics := readRuntimeMetrics()

	var wg sync.WaitGroup
	wg.Add(*clients)
	for i := 0; i < *clients; i++ {
		clientID := i
		go func() {
			defer wg.Done()
			if err := runClient(ctx, wsURL, clientID, *rps, *payloadBytes, samplesCh, &totalMessages); err != nil {
				totalErrors.Add(1)
			}
		}()
	}

	wg.Wait()
	close(samplesCh)
	<-collectorDone

	var after runtime.MemStats
	runtime.GC()
	runtime.ReadMemStats(&after)
	afterMetrics := readRuntimeMetrics()

	latencies := samples
	sort.Slice(latencies, func(i, j int) bool { return latencies[i] < latencies[j] })

	total := totalMessages.Load()
	runSeconds := math.Max(0.001, (*duration).Seconds())

	fmt.Println("=== Duplex E2E Load Benchmark ===")
	fmt.Printf("Mode: %s\n", *mode)
	fmt.Printf("Clients: %d\n", *clients)
	fmt.Printf("Workers: %d\n", *workers)
	fmt.Printf("Duration: %s\n", (*duration).String())
	fmt.Printf("Target per-client rate: %.2f messages/s\n", *rps)
	fmt.Printf("Payload bytes: %d\n", *payloadBytes)
	fmt.Printf("Total round trips: %d\n", total)
	fmt.Printf("Errors: %d\n", totalErrors.Load())
	fmt.Printf("Throughput: %.1f round trips/s\n", float64(total)/runSeconds)
	fmt.Println()

	if len(latencies) == 0 {
		fmt.Println("No latency samples recorded.")
	} else {
		fmt.Println("RTT (client send → server → client receive):")
		fmt.Printf("  min: %s\n", latencies[0])
		fmt.Printf("  p50: %s\n", percentile(latencies, 0.50))
		fmt.Printf("  p95: %s\n", percentile(latencies, 0.95))
		fmt.Printf("  p99: %s\n", percentile(latencies, 0.99))
		fmt.Printf("  max: %s\n", latencies[len(latencies)-1])
	}
	fmt.Println()

	fmt.Println("Go runtime / GC (process-wide, client and server):")
	fmt.Printf("  alloc:     %.2f MB\n", float64(after.TotalAlloc-before.TotalAlloc)/(1024*1024))
	fmt.Printf("  heap_live: %.2f MB\n", float64(after.HeapAlloc)/(1024*1024))
	fmt.Printf("  num_gc:    %d\n", after.NumGC-before.NumGC)
	fmt.Printf("  gc_pause:  %s (total)\n", time.Duration(after.PauseTotalNs-before.PauseTotalNs))
	fmt.Printf("  gc_pause:  %s (avg)\n", avgPause(after, before))
	fmt.Printf("  gc_cpu:    %.2f%%\n", 100*cpuFraction(afterMetrics, beforeMetrics))
	fmt.Printf("  allocs:    %.2f M objects\n", float64(afterMetrics.heapAllocsObjects-beforeMetrics.heapAllocsObjects)/1_000_000)
}

func newSession(mode string, logger *slog.Logger) *duplexws.Session {
	var s *duplexws.Session
	cb := duplexws.Callbacks{
		OnText: func(msg []byte, c *conn.Conn) {
			_ = s.SendTextTo(c, msg)
		},
	}
	if mode == "broadcast" {
		cb.OnText = func(msg []byte, c *conn.Conn) {
			s.SendText(msg)
		}
	}
	s = duplexws.NewSession("load", cb, duplexws.WithLogger(logger))
	return s
}

func avgPause(after, before runtime.MemStats) time.Duration {
	gcCount := after.NumGC - before.NumGC
	if gcCount == 0 {
		return 0
	}
	return time.Duration((after.PauseTotalNs - before.PauseTotalNs) / uint64(gcCount))
}

func percentile(sorted []time.Duration, p float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	if p <= 0 {
		return sorted[0]
	}
	if p >= 1 {
		return sorted[len(sorted)-1]
	}
	idx := int(math.Ceil(float64(len(sorted))*p)) - 1
	idx = max(0, min(idx, len(sorted)-1))
	return sorted[idx]
}

type runtimeMetricsSnapshot struct {
	cpuTotalSeconds float64
	cpuGCSeconds    float64

	heapAllocsObjects uint64
}

func readRuntimeMetrics() runtimeMetricsSnapshot {
	samples := []metrics.Sample{
		{Name: "/cpu/classes/total:cpu-seconds"},
		{Name: "/cpu/classes/gc/total:cpu-seconds"},
		{Name: "/gc/heap/allocs:objects"},
	}
	metrics.Read(samples)

	var out runtimeMetricsSnapshot
	for _, s := range samples {
		switch s.Name {
		case "/cpu/classes/total:cpu-seconds":
			out.cpuTotalSeconds = s.Value.Float64()
		case "/cpu/classes/gc/total:cpu-seconds":
			out.cpuGCSeconds = s.Value.Float64()
		case "/gc/heap/allocs:objects":
			out.heapAllocsObjects = s.Value.Uint64()
		}
	}
	return out
}

func cpuFraction(after, before runtimeMetricsSnapshot) float64 {
	total := after.cpuTotalSeconds - before.cpuTotalSeconds
	if total <= 0 {
		return 0
	}
	gc := after.cpuGCSeconds - before.cpuGCSeconds
	if gc < 0 {
		return 0
	}
	return gc / total
}

func runClient(
	ctx context.Context,
	wsURL string,
	clientID int,
	rps float64,
	payloadBytes int,
	samples chan<- time.Duration,
	totalMessages *atomic.Uint64,
) error {
	ws, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer ws.Close()

	period := time.Duration(float64(time.Second) / rps)
	var seq uint64

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		seq++
		token := makeToken(clientID, seq, payloadBytes)
		start := time.Now()

		if err := ws.WriteMessage(websocket.TextMessage, []byte(token)); err != nil {
			return fmt.Errorf("write: %w", err)
		}
		if err := waitForToken(ctx, ws, token); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("wait for token: %w", err)
		}

		samples <- time.Since(start)
		totalMessages.Add(1)

		// Best-effort pacing, gated on the response to expose queueing.
		if sleep := period - time.Since(start); sleep > 0 {
			timer := time.NewTimer(sleep)
			select {
			case <-ctx.Done():
				timer.Stop()
				return nil
			case <-timer.C:
			}
		}
	}
}

// waitForToken reads until token comes back. Other clients' broadcast
// messages are skipped.
func waitForToken(ctx context.Context, ws *websocket.Conn, token string) error {
	deadline, _ := ctx.Deadline()
	_ = ws.SetReadDeadline(deadline)
	for {
		_, msg, err := ws.ReadMessage()
		if err != nil {
			return err
		}
		if string(msg) == token {
			return nil
		}
	}
}

func makeToken(clientID int, seq uint64, payloadBytes int) string {
	// Always include client+seq so tokens are unique, then pad with random bytes.
	prefix := fmt.Sprintf("c%d:%d:", clientID, seq)
	if payloadBytes <= len(prefix) {
		return prefix
	}

	need := payloadBytes - len(prefix)
	raw := make([]byte, (need+1)/2)
	_, _ = rand.Read(raw)
	return prefix + hex.EncodeToString(raw)[:need]
}
