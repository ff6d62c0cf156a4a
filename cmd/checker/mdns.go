package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"strconv"
	"time"

	"github.com/grandcat/zeroconf"
)

// mdnsServiceType advertises this checker instance so plugfest tooling can
// discover it on the local network.
const mdnsServiceType = "_cia613-checker._tcp"

// startMDNS registers the service via mDNS and returns a cleanup function.
// It is a no-op if mDNS is disabled. The advertised port is parsed out of
// the metrics address, if any, since the checker itself has no listener.
func startMDNS(ctx context.Context, cfg *appConfig) (func(), error) {
	if !cfg.mdnsEnable {
		return func() {}, nil
	}
	instance := cfg.mdnsName
	if instance == "" {
		host, _ := os.Hostname()
		instance = fmt.Sprintf("cia613-checker-%s", host)
	}
	port := 0
	if cfg.metricsAddr != "" {
		if _, p, err := net.SplitHostPort(cfg.metricsAddr); err == nil {
			if n, err := strconv.Atoi(p); err == nil {
				port = n
			}
		}
	}
	meta := []string{
		"iface=" + cfg.canxlIf,
		"maxbuffs=" + strconv.Itoa(cfg.maxBuffs),
		"maxlpcnt=" + strconv.Itoa(cfg.maxLPCnt),
		"version=" + version,
		"commit=" + commit,
	}
	svc, err := zeroconf.Register(instance, mdnsServiceType, "local.", port, meta, nil)
	if err != nil {
		return nil, fmt.Errorf("mdns register: %w", err)
	}
	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
		case <-done:
		}
		svc.Shutdown()
	}()
	return func() { close(done); svc.Shutdown(); time.Sleep(50 * time.Millisecond) }, nil
}
