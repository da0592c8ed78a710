package benchmark

import (
	"fmt"
	"os"
	"runtime/pprof"
	"strings"
	"time"

	"github.com/samber/lo"

	"github.com/fogfactory/reactor"
)

// Profile generates a profile file. It will be outputted as reactor_{date}_in{childRatio}_c{concurrency}_p{poolSize}.prof.
//
// - childRatio Number of items emitted by the upstream, each one mapped to an inner sequence.
// - concurrency Number of inner sequences subscribed at once by FlatMap.
// - poolSize Size of the pool the inner sequences are subscribed on.
//
// use pprof to read the file (go install github.com/google/pprof@latest).
func Profile(childRatio, concurrency, poolSize int) {
	// Profile file
	f, err := os.Create(fmt.Sprintf("reactor_%s_in%d_%s.prof",
		strings.ReplaceAll(time.Now().Truncate(time.Second).Format(time.DateTime), " ", "-"),
		childRatio,
		strings.Join(lo.Map([]int{concurrency, poolSize}, func(item, i int) string {
			return lo.Ternary(i == 0, "c", "p") + fmt.Sprint(item)
		}), "_")))
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}

	// Init pipeline
	pool, err := reactor.NewPoolScheduler(poolSize)
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
	defer pool.Close()

	dumbProc := func(i int) (int, error) { time.Sleep(time.Millisecond); return i, nil }
	pipeline := reactor.FlatMapConcurrency(reactor.Range(0, childRatio), func(i int) *reactor.Flux[int] {
		return reactor.FromCallable(func() (int, error) { return dumbProc(i) }).SubscribeOn(pool)
	}, concurrency, reactor.DefaultPrefetch)

	fmt.Println("totalCalls: ", childRatio, ", minimal seq duration:", time.Duration(childRatio)*time.Millisecond)

	// Start profiling
	func() {
		_ = pprof.StartCPUProfile(f)
		defer pprof.StopCPUProfile()

		// Run pipeline
		start := time.Now()
		done := make(chan struct{})
		pipeline.Subscribe(nil, func(err error) { fmt.Println(err); close(done) }, func() { close(done) })
		<-done
		fmt.Printf("(par: %s)\n", time.Since(start))
	}()

	val := 0

	start := time.Now()
	for i := 0; i < childRatio; i++ {
		val, _ = dumbProc(val)
	}
	fmt.Printf("(seq: %s)\n", time.Since(start))
	fmt.Printf("profile:%s\n", f.Name())

	// Call pprof on a file
	// pprof -http=:8080 $file
	// On all files
	// source <(ls | grep .prof | nl | awk '{print "pprof -http=:"$1 + 8080, $2,$3,"&"}')
}
