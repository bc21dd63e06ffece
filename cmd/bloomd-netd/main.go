// Command bloomd-netd is a minimal demonstration of the networking core:
// it frames requests on newline, echoes each line back to its sender,
// and shuts down cleanly on SIGINT/SIGTERM.
package main

import (
	"flag"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/shakefu/bloomd"
	"github.com/shakefu/bloomd/internal/obslog"
)

const (
	lineTerminator  = '\n'
	shutdownTimeout = 1 * time.Second
)

func loadConfig(path string) (bloomd.Config, error) {
	cfg := bloomd.DefaultConfig()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// echoHandler implements bloomd.RequestHandler: it drains every
// newline-terminated frame currently buffered and writes it straight
// back to the same connection. ExtractToTerminator hands back the frame
// with its delimiter overwritten by a null byte, so the handler restores
// the original terminator before echoing — the wire contract is that the
// client gets its own line back, not the core's internal framing marker.
type echoHandler struct{}

func (echoHandler) InitRequestHandler() error { return nil }

func (echoHandler) HandleClientRequest(h *bloomd.Handle) error {
	for {
		frame, ok := h.Conn.ExtractToTerminator(lineTerminator)
		if !ok {
			return nil
		}
		frame.Data[len(frame.Data)-1] = lineTerminator
		if err := h.Conn.SendResponse(frame.Data); err != nil {
			return err
		}
	}
}

func main() {
	configPath := flag.String("config", "", "path to a YAML config file")
	debug := flag.Bool("debug", false, "enable development-mode logging")
	flag.Parse()

	obslog.SetDefault(obslog.New(*debug))
	log := obslog.Default()
	defer log.Sync()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		log.Error("failed to load config", "path", *configPath, "error", err)
		os.Exit(1)
	}

	ctx, err := bloomd.InitNetworking(cfg, nil, echoHandler{})
	if err != nil {
		log.Error("failed to initialize networking core", "error", err)
		os.Exit(1)
	}

	var wg sync.WaitGroup
	for i := uint(0); i < cfg.WorkerThreads; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ctx.StartWorker()
		}()
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	log.Info("received signal, shutting down", "signal", sig.String())

	ctx.Shutdown()

	workersDone := make(chan struct{})
	go func() {
		wg.Wait()
		close(workersDone)
	}()

	select {
	case <-workersDone:
	case <-time.After(shutdownTimeout):
		// Workers are taking too long to join; close anyway and exit
		// immediately below. A StartWorker goroutine may still be running
		// when Close releases the poller and descriptors.
		log.Info("worker shutdown timeout, closing anyway")
	}

	ctx.Close()
	os.Exit(0)
}
