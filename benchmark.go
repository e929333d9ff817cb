package main

import (
	"context"
	"flag"
	"runtime"
	"sync/atomic"
	"time"

	"math/rand"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

var (
	benchmarkCount = flag.Int("benchmark.count", 100, "the random origin count for benchmark")
	benchmarkSeed  = flag.Int64("benchmark.seed", 0, "the seed for benchmark")
	benchmarkCPU   = flag.Int("benchmark.cpu", 1, "the cpu count for benchmark")
)

func runBenchmark(server *AccessibilityServer) {
	log.Logger.SetLevel(logrus.WarnLevel)
	// 设置随机种子
	e := rand.New(rand.NewSource(*benchmarkSeed))
	// 随机选取benchmarkCount个起点
	area := server.Destinations().Area()
	origins := make([]int, *benchmarkCount)
	for i := range origins {
		origins[i] = e.Intn(area)
	}
	provider := newSyntheticTravelTimes(server.Destinations(), *benchmarkSeed)

	// 开始benchmark
	start := time.Now()
	var success atomic.Int32
	if *benchmarkCPU == 1 {
		for _, origin := range origins {
			if _, err := server.ComputeOrigin(context.Background(), origin, provider); err != nil {
				log.Error("benchmark failed, err:", err)
				continue
			}
			success.Add(1)
		}
	} else {
		// 设置cpu数量
		runtime.GOMAXPROCS(*benchmarkCPU)
		var g errgroup.Group
		g.SetLimit(*benchmarkCPU)
		for _, origin := range origins {
			origin := origin
			g.Go(func() error {
				if _, err := server.ComputeOrigin(context.Background(), origin, provider); err != nil {
					log.Error("benchmark failed, err:", err)
					return nil
				}
				success.Add(1)
				log.Info("benchmark finished one")
				return nil
			})
		}
		g.Wait()
	}
	timeCost := time.Since(start) * time.Duration(*benchmarkCPU)
	log.Error(
		"benchmark finished", "\n",
		"count:", *benchmarkCount, "\n",
		"destinations:", area, "\n",
		"time:", timeCost, "\n",
		"avg:", timeCost/time.Duration(max(*benchmarkCount, 1)), "\n",
		"success:", success.Load(), "\n",
	)
}
