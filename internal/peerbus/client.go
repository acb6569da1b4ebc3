package peerbus

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"

	"github.com/clusterjoin/tokenbroker-go/internal/discovery"
	"github.com/clusterjoin/tokenbroker-go/pkg/peerbus"
)

// HTTPPeerBus implements the peerbus.PeerBus interface by fanning a publish
// out over HTTP to the peers returned by a Discovery. Peers are called
// sequentially; a publish blocks until every matching peer has answered or
// timed out.
type HTTPPeerBus struct {
	config     *Config
	disc       discovery.Discovery
	auth       *BusAuth
	httpClient *http.Client
}

// NewHTTPPeerBus creates a new HTTP peer bus with the given configuration
// and discovery mechanism.
func NewHTTPPeerBus(config *Config, disc discovery.Discovery) (*HTTPPeerBus, error) {
	if config == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if disc == nil {
		return nil, fmt.Errorf("discovery cannot be nil")
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	// Make a copy and set defaults
	configCopy := *config
	configCopy.SetDefaults()

	return &HTTPPeerBus{
		config: &configCopy,
		disc:   disc,
		auth:   NewBusAuth(configCopy.SecretKey, configCopy.TokenValidity),
		httpClient: &http.Client{
			Timeout: configCopy.RequestTimeout,
		},
	}, nil
}

// Publish sends the request to every discovered peer matching the selector
// and returns the non-empty answers. Unreachable or erroring peers are
// logged and skipped; zero responses is a valid result.
func (b *HTTPPeerBus) Publish(ctx context.Context, sel peerbus.Selector, req peerbus.Request) ([]peerbus.Response, error) {
	if err := sel.Validate(); err != nil {
		return nil, fmt.Errorf("invalid selector: %w", err)
	}
	if req.Function == "" {
		return nil, fmt.Errorf("function cannot be empty")
	}
	if req.SourceNode == "" {
		req.SourceNode = b.config.NodeID
	}

	peers, err := b.disc.FindPeers(ctx)
	if err != nil {
		return nil, fmt.Errorf("peer discovery failed: %w", err)
	}

	var responses []peerbus.Response
	for _, peer := range peers {
		if peer.ID == b.config.NodeID {
			continue // never publish to ourselves
		}
		if !b.worthContacting(sel, peer) {
			continue
		}

		resp, err := b.publishToPeer(ctx, peer, sel, req)
		if err != nil {
			log.Printf("bus: peer %s (%s) failed: %v", peer.ID, peer.Address, err)
			continue
		}
		if resp == nil {
			continue // peer answered "selector does not address me"
		}
		responses = append(responses, *resp)
	}

	return responses, nil
}

// worthContacting pre-filters peers with the roster's view of their identity.
// A grain selector cannot be ruled out locally when the roster advertises no
// grains for the peer; in that case the peer is contacted and decides itself.
func (b *HTTPPeerBus) worthContacting(sel peerbus.Selector, peer discovery.Peer) bool {
	if sel.MatchType == peerbus.MatchGrain && len(peer.Grains) == 0 {
		return true
	}
	return sel.Matches(peer.ID, peer.Grains)
}

// publishToPeer performs a single peer call. A nil response with nil error
// means the peer reported the selector did not match it.
func (b *HTTPPeerBus) publishToPeer(ctx context.Context, peer discovery.Peer, sel peerbus.Selector, req peerbus.Request) (*peerbus.Response, error) {
	callCtx, cancel := context.WithTimeout(ctx, b.config.RequestTimeout)
	defer cancel()

	wireReq := publishRequest{
		Selector: selectorWire{
			Target:    sel.Target,
			MatchType: sel.MatchType.String(),
		},
		Function:   req.Function,
		Args:       req.Args,
		SourceNode: req.SourceNode,
	}

	body, err := json.Marshal(wireReq)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	url := strings.TrimSuffix(peer.Address, "/") + "/api/v1/publish"
	httpReq, err := http.NewRequestWithContext(callCtx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	token, _, err := b.auth.GenerateToken(b.config.NodeID)
	if err != nil {
		return nil, fmt.Errorf("failed to mint bus token: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+token)

	httpResp, err := b.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(httpResp.Body, b.config.MaxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if httpResp.StatusCode >= 400 {
		var errResp errorResponse
		if err := json.Unmarshal(respBody, &errResp); err != nil {
			return nil, fmt.Errorf("peer error (%d): %s", httpResp.StatusCode, string(respBody))
		}
		return nil, fmt.Errorf("peer error (%d): %s", httpResp.StatusCode, errResp.Error)
	}

	var wireResp publishResponse
	if err := json.Unmarshal(respBody, &wireResp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	if !wireResp.Matched {
		return nil, nil
	}

	nodeID := wireResp.NodeID
	if nodeID == "" {
		nodeID = peer.ID
	}
	return &peerbus.Response{
		NodeID:  nodeID,
		Payload: wireResp.Payload,
	}, nil
}
