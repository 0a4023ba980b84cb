// Package endpoint maps web wallet targets to chain node endpoints and link URLs.
package endpoint

import (
	"net/url"
	"strings"

	"moff.io/moff-connect/pkg/log"
)

const (
	MainnetNodeURL = "https://cloud.argent-api.com/v1/starknet/mainnet/rpc/v0.5"
	TestnetNodeURL = "https://cloud.argent-api.com/v1/starknet/goerli/rpc/v0.5"
)

// 这些主机名下的web wallet连接测试网
var testnetHostMarkers = []string{"localhost", "127.0.0.1", "hydrogen", "staging"}

// MapTargetURLToNodeURL returns the node RPC url matching the network the web
// wallet at target runs on. Unparsable or unknown targets map to mainnet.
func MapTargetURLToNodeURL(target string) string {
	u, err := url.Parse(target)
	if err != nil || u.Host == "" {
		log.Warnf("could not determine node url from target %q, defaulting to mainnet", target)
		return MainnetNodeURL
	}
	host := strings.ToLower(u.Hostname())
	for _, marker := range testnetHostMarkers {
		if strings.Contains(host, marker) {
			return TestnetNodeURL
		}
	}
	return MainnetNodeURL
}

// Origin returns scheme://host[:port] of rawURL, the form used for origin based authorization.
func Origin(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", err
	}
	if u.Scheme == "" || u.Host == "" {
		return "", &url.Error{Op: "origin", URL: rawURL, Err: errMissingSchemeOrHost}
	}
	return u.Scheme + "://" + u.Host, nil
}

// WebSocketURL rewrites an http(s) url into its ws(s) form and appends path.
func WebSocketURL(rawURL, path string) string {
	switch {
	case strings.HasPrefix(rawURL, "https://"):
		rawURL = "wss://" + strings.TrimPrefix(rawURL, "https://")
	case strings.HasPrefix(rawURL, "http://"):
		rawURL = "ws://" + strings.TrimPrefix(rawURL, "http://")
	}
	if path == "" {
		return rawURL
	}
	return strings.TrimSuffix(rawURL, "/") + "/" + strings.TrimPrefix(path, "/")
}
