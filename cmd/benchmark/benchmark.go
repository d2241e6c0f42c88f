package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	cache "github.com/krisalay/memocache"
	"github.com/krisalay/memocache/internal/balance"
	"github.com/krisalay/memocache/internal/logging"
)

// ================= BENCHMARK =================

const (
	addresses  = 1000
	goroutines = 200
	opsPerG    = 5000
	cacheTime  = 10 * time.Second
	rpcLatency = 2 * time.Millisecond
)

type result struct {
	duration time.Duration
	rpcCalls int64
}

func run(ctx context.Context, singleFlight bool) result {
	var calls atomic.Int64
	src := balance.NewRPCSource(balance.RPCConfig{
		Latency:    rpcLatency,
		MinBalance: 100,
		MaxBalance: 10000,
	})

	opts := []cache.Option{cache.WithName("bench")}
	if singleFlight {
		opts = append(opts, cache.WithSingleFlight(func(address string) string { return address }))
	}
	c := cache.New[string, uint64](opts...)

	start := time.Now()

	wg := sync.WaitGroup{}
	wg.Add(goroutines)

	for i := 0; i < goroutines; i++ {
		go func(id int) {
			defer wg.Done()
			for j := 0; j < opsPerG; j++ {
				address := strconv.Itoa((id + j) % addresses)
				c.GetOrInsertWith(ctx, address, cacheTime, func(ctx context.Context) (uint64, error) {
					calls.Add(1)
					return src.Load(ctx, address)
				})
			}
		}(i)
	}

	wg.Wait()

	return result{duration: time.Since(start), rpcCalls: calls.Load()}
}

func report(name string, r result) {
	totalOps := goroutines * opsPerG

	fmt.Println("\n================", name, "=================")
	fmt.Printf("Total Operations : %d\n", totalOps)
	fmt.Printf("Total Time       : %v\n", r.duration)
	fmt.Printf("Throughput       : %.2f ops/sec\n", float64(totalOps)/r.duration.Seconds())
	fmt.Printf("RPC Calls        : %d (%d addresses)\n", r.rpcCalls, addresses)
	fmt.Printf("Hit Ratio        : %.4f\n", 1-float64(r.rpcCalls)/float64(totalOps))
}

func main() {
	// per-lookup source logs would drown the report
	ctx := logging.WithLogger(context.Background(), logging.New(os.Stderr, "warn", "text"))

	fmt.Println("\n================ MEMOIZATION LOAD BENCHMARK =================")

	fmt.Println("CONFIG")
	fmt.Println("---------------------------------")
	fmt.Println("Addresses    :", addresses)
	fmt.Println("Goroutines   :", goroutines)
	fmt.Println("Ops/Goroutine:", opsPerG)
	fmt.Println("Cache Time   :", cacheTime)
	fmt.Println("RPC Latency  :", rpcLatency)
	fmt.Println("---------------------------------")

	fmt.Println("Running without single-flight...")
	report("CONCURRENT MISSES ALLOWED", run(ctx, false))

	fmt.Println("\nRunning with single-flight...")
	report("SINGLE-FLIGHT", run(ctx, true))

	fmt.Println("=========================================")
}
