package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/exec"
	"os/signal"
	"syscall"
	"time"

	"github.com/clusterjoin/tokenbroker-go/internal/agentconfig"
	"github.com/clusterjoin/tokenbroker-go/internal/minter"
	"github.com/clusterjoin/tokenbroker-go/internal/peerbus"
	pkgpeerbus "github.com/clusterjoin/tokenbroker-go/pkg/peerbus"
)

const (
	// Application info
	appName    = "tokenbroker"
	appVersion = "0.1.0"
)

func main() {
	// Command-line flags
	var (
		configPath  = flag.String("config", "/etc/tokenbroker/config.yaml", "Path to agent configuration file")
		showVersion = flag.Bool("version", false, "Show version and exit")
	)
	flag.Parse()

	// Handle version flag
	if *showVersion {
		fmt.Printf("%s v%s\n", appName, appVersion)
		os.Exit(0)
	}

	// Configure logging
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Printf("🚀 Starting %s v%s", appName, appVersion)

	config, err := agentconfig.Load(*configPath)
	if err != nil {
		log.Fatalf("❌ Failed to load config: %v", err)
	}
	secret, err := config.ResolveSecret()
	if err != nil {
		log.Fatalf("❌ Failed to resolve mesh secret: %v", err)
	}

	log.Printf("📋 Node ID: %s", config.NodeID)
	log.Printf("🔌 Bus Listen: %s", config.ListenAddress)

	busConfig := &peerbus.Config{
		NodeID:         config.NodeID,
		ListenAddress:  config.ListenAddress,
		SecretKey:      secret,
		Grains:         config.Grains,
		RequestTimeout: time.Duration(config.RequestTimeout),
	}

	server, err := peerbus.NewServer(busConfig)
	if err != nil {
		log.Fatalf("❌ Failed to create bus server: %v", err)
	}
	defer func() {
		if err := server.Close(); err != nil {
			log.Printf("⚠️  Error closing bus server: %v", err)
		}
	}()

	registerBusFunctions(server, config)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := server.Start(ctx); err != nil {
		log.Fatalf("❌ Failed to start bus server: %v", err)
	}
	log.Printf("✅ %s node %s serving bus functions %v on %s", appName, config.NodeID, server.Functions(), server.Addr())

	// Wait for shutdown signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan
	log.Printf("🛑 Received %v, shutting down...", sig)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Stop(shutdownCtx); err != nil {
		log.Printf("⚠️  Error during shutdown: %v", err)
	}
	log.Printf("👋 %s node %s stopped", appName, config.NodeID)
}

// registerBusFunctions wires the minting functions into the bus registry.
// The teleport functions are only registered when the admin tool is actually
// installed on this node; other peers simply never match a mint request here.
func registerBusFunctions(server *peerbus.Server, config *agentconfig.Config) {
	if _, err := exec.LookPath(config.TctlPath); err != nil {
		log.Printf("⚠️  %s not found, teleport bus functions disabled on this node", config.TctlPath)
		return
	}

	minterConfig := &minter.Config{
		TctlPath:     config.TctlPath,
		DefaultRoles: config.Roles,
		DefaultTTL:   time.Duration(config.TTL),
	}
	m, err := minter.New(minterConfig, minter.ExecRunner{})
	if err != nil {
		log.Fatalf("❌ Failed to create minter: %v", err)
	}

	server.Handle("teleport.nodes_add", func(ctx context.Context, req pkgpeerbus.Request) ([]byte, error) {
		roles := req.Args["roles"]
		var ttl time.Duration
		if raw := req.Args["ttl"]; raw != "" {
			parsed, err := time.ParseDuration(raw)
			if err != nil {
				return nil, fmt.Errorf("invalid ttl %q: %w", raw, err)
			}
			ttl = parsed
		}
		log.Printf("minting join token for %s (roles=%s ttl=%s)", req.SourceNode, roles, ttl)
		token, err := m.NodesAdd(ctx, roles, ttl)
		if err != nil {
			return nil, err
		}
		return json.Marshal(token)
	})

	server.Handle("teleport.version", func(ctx context.Context, req pkgpeerbus.Request) ([]byte, error) {
		version, err := m.Version(ctx)
		if err != nil {
			return nil, err
		}
		return json.Marshal(map[string]string{"version": version})
	})
}
