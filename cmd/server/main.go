package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"log"
	"net"
	"net/http"
	"net/http/pprof"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	persistlog "totemcraft.ai/internal/persistence/log"
	"totemcraft.ai/internal/sim/messages"
	"totemcraft.ai/internal/sim/sandbox"
	"totemcraft.ai/internal/sim/sched"
	"totemcraft.ai/internal/sim/service"
	"totemcraft.ai/internal/sim/tuning"
	"totemcraft.ai/internal/transport/ws"
)

func main() {
	var (
		addr         = flag.String("addr", ":8080", "http listen address")
		configDir    = flag.String("configs", "./configs", "config directory")
		dataDir      = flag.String("data", "./data", "runtime data directory")
		tuningPath   = flag.String("tuning", "", "path to tuning.yaml (default: <configs>/tuning.yaml)")
		messagesPath = flag.String("messages", "", "path to messages.yml (default: <configs>/messages.yml)")
		compress     = flag.Bool("compress", false, "write zstd-compressed snapshots (totems.yml.zst, playerdata.yml.zst)")
		disableDB    = flag.Bool("disable_db", false, "disable the read-model index (teleports/audits/totems)")
		archiveEvery = flag.Duration("archive_every", time.Hour, "interval between snapshot archives (0 disables)")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lmicroseconds)

	senv, err := loadServerEnv()
	if err != nil {
		logger.Fatalf("%v", err)
	}
	if err := os.MkdirAll(*dataDir, 0o755); err != nil {
		logger.Fatalf("data dir: %v", err)
	}

	tp := strings.TrimSpace(*tuningPath)
	if tp == "" {
		tp = filepath.Join(*configDir, "tuning.yaml")
	}
	tune, err := tuning.Load(tp)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			logger.Fatalf("load tuning: %v", err)
		}
		logger.Printf("tuning not found (%s); using defaults", tp)
	}
	if err := tuning.ApplyEnv(&tune); err != nil {
		logger.Fatalf("tuning: %v", err)
	}
	tune.Validate()

	totemLog := log.New(os.Stdout, "[totems] ", log.LstdFlags|log.Lmicroseconds)

	mp := strings.TrimSpace(*messagesPath)
	if mp == "" {
		mp = filepath.Join(*configDir, "messages.yml")
	}
	cat, err := messages.Load(mp, totemLog)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			logger.Fatalf("load messages: %v", err)
		}
		logger.Printf("messages not found (%s); using built-in catalogue", mp)
	}

	// Optional read-model index backend. The snapshot files stay authoritative.
	idx, err := openRuntimeIndex(*dataDir, senv, *disableDB, logger)
	if err != nil {
		logger.Fatalf("open index backend: %v", err)
	}

	auditLog := persistlog.NewAuditLogger(*dataDir)
	audit := []service.AuditSink{auditLog}
	var index service.Index
	if idx != nil {
		audit = append(audit, idx)
		index = idx
	}

	world := sandbox.New()
	loop := sched.NewLoop(time.Second/time.Duration(tune.TickRateHz), nil)
	app := service.New(service.Options{
		Tuning:    tune,
		Host:      world,
		Effects:   world,
		Notifier:  messages.NewDispatcher(cat, world),
		Scheduler: loop,
		Logger:    totemLog,
		DataDir:   *dataDir,
		Compress:  *compress,
		Audit:     audit,
		Index:     index,
	})

	rep, err := app.Load()
	if err != nil {
		logger.Fatalf("load state: %v", err)
	}
	logger.Printf("loaded totems=%d skipped=%d players=%d restored_markers=%d",
		rep.Totems.Loaded, rep.Totems.Skipped, rep.Players.Loaded, rep.Restored)

	app.Schedule()
	arch := &archiver{app: app, dataDir: *dataDir, keep: tune.ArchiveKeep, log: logger}
	if *archiveEvery > 0 {
		loop.Every(*archiveEvery, func(time.Time) { arch.run("periodic") })
	}

	wsSrv, err := ws.NewServer(app, world, loop, logger)
	if err != nil {
		logger.Fatalf("ws server: %v", err)
	}
	if senv.AdminToken != "" {
		wsSrv.SetAuthenticator(ws.AdminTokenAuth(app, senv.AdminToken))
	} else if !senv.adminHTTP() {
		logger.Printf("WARNING: TOTEM_ADMIN_TOKEN unset; admin rights follow player names")
	}

	ctx, cancel := signalContext()
	defer cancel()

	loopDone := make(chan struct{})
	go func() {
		defer close(loopDone)
		if err := loop.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Printf("loop stopped: %v", err)
		}
	}()

	stats := &statsSource{app: app, loop: loop, ws: wsSrv, index: idx}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(200)
		_, _ = rw.Write([]byte("ok"))
	})
	mux.HandleFunc("/metrics", stats.metricsHandler(senv.ServerID))

	if senv.adminHTTP() {
		// Local-only admin endpoints.
		mux.HandleFunc("/admin/v1/state", func(rw http.ResponseWriter, r *http.Request) {
			if !isLoopbackRemote(r.RemoteAddr) {
				http.Error(rw, "forbidden", http.StatusForbidden)
				return
			}
			ctx2, cancel2 := context.WithTimeout(r.Context(), 5*time.Second)
			defer cancel2()
			m, err := stats.collect(ctx2)
			if err != nil {
				http.Error(rw, err.Error(), http.StatusServiceUnavailable)
				return
			}
			rw.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(rw).Encode(m)
		})
		mux.HandleFunc("/admin/v1/snapshot", func(rw http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost {
				rw.WriteHeader(http.StatusMethodNotAllowed)
				return
			}
			if !isLoopbackRemote(r.RemoteAddr) {
				http.Error(rw, "forbidden", http.StatusForbidden)
				return
			}
			ctx2, cancel2 := context.WithTimeout(r.Context(), 5*time.Second)
			defer cancel2()
			var dir string
			var runErr error
			err := loop.Call(ctx2, func() { dir, runErr = arch.run("admin") })
			if err == nil {
				err = runErr
			}
			rw.Header().Set("Content-Type", "application/json")
			if err != nil {
				rw.WriteHeader(http.StatusServiceUnavailable)
				_ = json.NewEncoder(rw).Encode(map[string]any{"ok": false, "error": err.Error()})
				return
			}
			_ = json.NewEncoder(rw).Encode(map[string]any{"ok": true, "archive": dir})
		})
	} else {
		logger.Printf("admin endpoints disabled (TOTEM_ENABLE_ADMIN_HTTP=false)")
	}
	if senv.EnablePprofHTTP {
		mux.HandleFunc("/debug/pprof/", pprof.Index)
		mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
		mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
		mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
		mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	}
	mux.HandleFunc("/v1/ws", wsSrv.Handler())

	srv := &http.Server{
		Addr:              *addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel2()
		_ = srv.Shutdown(ctx2)
	}()

	logger.Printf("listening on %s", *addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Printf("ListenAndServe: %v", err)
		cancel()
	}

	// The loop drains accepted commands before Run returns; after that the
	// App is ours.
	<-loopDone
	if err := app.Shutdown(); err != nil {
		logger.Printf("final save: %v", err)
	}
	if idx != nil {
		_ = idx.Close()
	}
	_ = auditLog.Close()
	logger.Printf("stopped")
}

func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan os.Signal, 2)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-ch
		cancel()
	}()
	return ctx, cancel
}

func isLoopbackRemote(remoteAddr string) bool {
	host := remoteAddr
	if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
		host = h
	}
	host = strings.TrimPrefix(host, "[")
	host = strings.TrimSuffix(host, "]")
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
