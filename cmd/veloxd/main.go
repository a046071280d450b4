// Command veloxd runs the cache server: parses the CLI surface from
// SPEC_FULL.md 6, wires the store, deferred-delete queue, reactor
// workers, and listener together, and blocks serving traffic.
package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sys/unix"

	"veloxd/internal/bufpool"
	"veloxd/internal/clock"
	"veloxd/internal/conn"
	"veloxd/internal/config"
	"veloxd/internal/deferred"
	"veloxd/internal/listener"
	"veloxd/internal/logctx"
	"veloxd/internal/stats"
	"veloxd/internal/store"
)

const version = "1.0.0"

func main() {
	cfg, err := config.Parse(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if cfg.Help || cfg.License {
		os.Exit(0)
	}

	if cfg.Daemonize && !cfg.Child {
		daemonize()
		return
	}

	log, err := logctx.New(cfg.Verbosity)
	if err != nil {
		fmt.Fprintln(os.Stderr, "logger init:", err)
		os.Exit(1)
	}
	defer log.Sync()

	if cfg.RaiseCore {
		_ = unix.Setrlimit(unix.RLIMIT_CORE, &unix.Rlimit{Cur: unix.RLIM_INFINITY, Max: unix.RLIM_INFINITY})
	}
	if cfg.MemLock {
		if err := unix.Mlockall(unix.MCL_CURRENT | unix.MCL_FUTURE); err != nil {
			log.Warn("mlockall failed", zap.Error(err))
		}
	}
	if cfg.PidFile != "" {
		_ = os.WriteFile(cfg.PidFile, []byte(fmt.Sprintf("%d\n", os.Getpid())), 0644)
		defer os.Remove(cfg.PidFile)
	}

	started := time.Now()
	clk := clock.New(started)
	go clk.Run()
	defer clk.Stop()

	st := store.NewSharded(cfg.Workers, clk)
	var buckets *store.BucketTable
	if cfg.Managed {
		buckets = store.NewBucketTable()
	}

	dq := deferred.New(st, clk, 5*time.Second, 0)
	go dq.Run()
	defer dq.Stop()

	pools := make([]*bufpool.Pool, cfg.Workers)
	for i := range pools {
		pools[i] = bufpool.New()
	}

	ex := &conn.Executor{
		Store:    st,
		Deferred: dq,
		Stats:    stats.New(),
		Buckets:  buckets,
		Clock:    clk,
		Version:  version,
		Started:  started,
		BufPools: pools,
	}

	workers := make([]*listener.Worker, cfg.Workers)
	for i := range workers {
		w, err := listener.NewWorker(i, ex, pools[i], cfg.ReqsPerEvent)
		if err != nil {
			log.Fatal("worker init failed", zap.Error(err))
		}
		workers[i] = w
	}

	if cfg.UDPPort != 0 {
		if listener.HasReusePort {
			for _, w := range workers {
				fd, err := listener.NewWorkerUDPSocket(cfg.BindAddr, cfg.UDPPort)
				if err != nil {
					log.Fatal("udp bind failed", zap.Error(err))
				}
				w.BindUDP(fd)
			}
		} else {
			fd, err := listener.NewWorkerUDPSocket(cfg.BindAddr, cfg.UDPPort)
			if err != nil {
				log.Fatal("udp bind failed", zap.Error(err))
			}
			for _, w := range workers {
				w.BindUDP(fd)
			}
		}
	}

	disp, err := listener.New(cfg.BindAddr, cfg.TCPPort, cfg.UnixSocket, workers)
	if err != nil {
		log.Fatal("listener init failed", zap.Error(err))
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Info("shutting down")
		disp.Stop()
	}()

	log.Info("veloxd starting",
		zap.Int("tcp_port", cfg.TCPPort),
		zap.Int("udp_port", cfg.UDPPort),
		zap.Int("workers", cfg.Workers),
	)
	if err := disp.Run(); err != nil {
		log.Fatal("dispatcher exited with error", zap.Error(err))
	}
}

// daemonize re-execs the current binary with --child in a new session
// (Setsid), detaching it from the controlling terminal, then exits the
// parent — one fork-and-exec substituting for fork()+setsid() since
// cgo-free Go has no direct fork (SPEC_FULL.md 6).
func daemonize() {
	exe, err := os.Executable()
	if err != nil {
		fmt.Fprintln(os.Stderr, "daemonize:", err)
		os.Exit(1)
	}

	args := append(os.Args[1:], "--child")
	pid, err := syscall.ForkExec(exe, append([]string{exe}, args...), &syscall.ProcAttr{
		Env:   os.Environ(),
		Files: []uintptr{0, 1, 2},
		Sys:   &syscall.SysProcAttr{Setsid: true},
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, "daemonize: fork failed:", err)
		os.Exit(1)
	}
	fmt.Println("started daemon, pid", pid)
	os.Exit(0)
}
