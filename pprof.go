package main

import (
	"errors"
	"net/http"
	"net/http/pprof"
)

// 访问/debug/pprof/进入pprof实时分析页面
// 可达性计算主要开销在排序与累加，profile之外同时开放heap与goroutine
func startHTTPDebugger(addr string) {
	pprofHandler := http.NewServeMux()
	pprofHandler.Handle("/debug/pprof/", http.HandlerFunc(pprof.Index))
	pprofHandler.Handle("/debug/pprof/profile", http.HandlerFunc(pprof.Profile))
	pprofHandler.Handle("/debug/pprof/heap", pprof.Handler("heap"))
	pprofHandler.Handle("/debug/pprof/goroutine", pprof.Handler("goroutine"))
	server := &http.Server{Addr: addr, Handler: pprofHandler}
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Warnf("pprof server at %s stopped: %v", addr, err)
		}
	}()
	log.Infof("pprof listening at %v", addr)
}
