package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"git.fiblab.net/sim/accessibility/config"
	"github.com/samber/lo"
	"github.com/sirupsen/logrus"
	easy "github.com/t-tomalak/logrus-easy-formatter"
	"golang.org/x/sync/errgroup"
)

var log = logrus.WithField("module", "main")

var (
	// 配置信息
	mongoURI   = flag.String("mongo_uri", "", "mongo db uri")
	configPath = flag.String("config", "analysis.yml", "analysis config file path")
	cacheDir   = flag.String("cache", "", "grid cache dir path (empty means disable cache)")
	output     = flag.String("output", "", "accessibility surface output [format: {fspath} or {db}.{col}/{key}] (empty means no output)")
	origins    = flag.Int("origins", 0, "origin count from the north-west corner of destinations (0 means all)")
	workers    = flag.Int("workers", runtime.NumCPU(), "parallel origin count")
	paths      = flag.Int("paths", 0, "representative paths kept per destination")
	seed       = flag.Int64("seed", 0, "the seed for synthetic travel times")
	logLevel   = flag.String("log-level", "info", "log level [debug, info, warn, error, fatal, panic]")

	// 性能测试
	benchmark = flag.Bool("benchmark", false, "benchmark mode")
	pprofAddr = flag.String("pprof", "localhost:52102", "pprof listening address")

	LOG_LEVELS = map[string]logrus.Level{
		"debug": logrus.DebugLevel,
		"info":  logrus.InfoLevel,
		"warn":  logrus.WarnLevel,
		"error": logrus.ErrorLevel,
		"fatal": logrus.FatalLevel,
		"panic": logrus.PanicLevel,
	}
)

func main() {
	logrus.SetFormatter(&easy.Formatter{
		TimestampFormat: "2006-01-02 15:04:05.0000",
		LogFormat:       "[%module%] [%time%] [%lvl%] %msg%\n",
	})
	flag.Parse()
	if level, ok := LOG_LEVELS[*logLevel]; ok {
		logrus.SetLevel(level)
	} else {
		logrus.Fatalf("invalid log level: %s", *logLevel)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		logrus.Fatalf("invalid analysis config: %s", err)
	}
	server := NewAccessibilityServer(*mongoURI, cfg, *cacheDir, *paths)
	defer server.Close()

	if *pprofAddr != "" {
		// 启动pprof
		startHTTPDebugger(*pprofAddr)
	}

	if *benchmark {
		// 性能测试
		runBenchmark(server)
		return
	}

	// 优雅退出
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	// SIGUSR1暂停，SIGUSR2恢复，ctrl+c kill退出
	signalCh := make(chan os.Signal, 1)
	signal.Notify(signalCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGUSR1, syscall.SIGUSR2)
	go func() {
		for sig := range signalCh {
			switch sig {
			case syscall.SIGUSR1:
				log.Info("suspending...")
				server.Suspend()
			case syscall.SIGUSR2:
				log.Info("resuming...")
				server.Resume()
			default:
				log.Info("stopping...")
				// 暂停中的计算需要先恢复才能看到取消
				server.Resume()
				cancel()
				go func() {
					<-signalCh
					os.Exit(1) // 强制结束
				}()
				return
			}
		}
	}()

	start := time.Now()
	results, err := runAnalysis(ctx, server, *origins, *workers, newSyntheticTravelTimes(server.Destinations(), *seed))
	if err != nil {
		log.Fatalf("analysis failed: %v", err)
	}
	log.Infof("%d origins finished in %v", len(results), time.Since(start))

	if *output != "" && len(cfg.Grids) > 0 {
		// 第一个机会网格、中位百分位、最大截止时间
		surface, err := server.AccessibilitySurface(results, 0, len(cfg.Percentiles)/2, len(cfg.CutoffsMinutes)-1)
		if err != nil {
			log.Fatalf("failed to build accessibility surface: %v", err)
		}
		if err := server.Save(ctx, *output, surface); err != nil {
			log.Fatalf("failed to save accessibility surface: %v", err)
		}
		log.Infof("accessibility surface %v saved to %s", surface, *output)
	}
	log.Info("accessibility closes")
}

// runAnalysis 并行计算前count个起点
func runAnalysis(
	ctx context.Context,
	server *AccessibilityServer,
	count, workers int,
	provider TravelTimeProvider,
) ([]*OriginResult, error) {
	area := server.Destinations().Area()
	if count <= 0 || count > area {
		count = area
	}
	results := make([]*OriginResult, count)
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(max(workers, 1))
	for origin := 0; origin < count; origin++ {
		origin := origin
		g.Go(func() error {
			r, err := server.ComputeOrigin(ctx, origin, provider)
			if err != nil {
				return err
			}
			results[origin] = r
			if r.TimeMatrix != nil {
				log.Debugf("origin %d reaches %d destinations", origin, r.TimeMatrix.Reached(0))
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	withPaths := lo.CountBy(results, func(r *OriginResult) bool { return len(r.Paths) > 0 })
	if withPaths > 0 {
		log.Infof("%d origins kept representative paths", withPaths)
	}
	return results, nil
}
