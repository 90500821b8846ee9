// Package security validates outbound HTTP traffic originating from tool
// execution. Tool arguments come from the model, so every URL is treated as
// untrusted input: private networks, loopback, and cloud metadata endpoints
// are blocked before a request leaves the process.
package security

import (
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"time"
)

const (
	defaultMaxResponseSize = 5 * 1024 * 1024 // 5MB
	defaultTimeout         = 10 * time.Second
	maxRedirects           = 3
)

// HTTP validates outbound URLs and hands out a hardened client for tool
// transports.
type HTTP struct {
	maxResponseSize int64
	allowedSchemes  []string
	logger          *slog.Logger
}

// NewHTTP creates a validator with the default limits.
func NewHTTP(logger *slog.Logger) *HTTP {
	if logger == nil {
		logger = slog.Default()
	}
	return &HTTP{
		maxResponseSize: defaultMaxResponseSize,
		allowedSchemes:  []string{"http", "https"},
		logger:          logger,
	}
}

// ValidateURL reports whether a URL is safe to fetch. It rejects non-HTTP
// schemes, known metadata hostnames, and any hostname that resolves to a
// private or reserved address.
func (v *HTTP) ValidateURL(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}

	scheme := strings.ToLower(u.Scheme)
	if !slices.Contains(v.allowedSchemes, scheme) {
		return fmt.Errorf("disallowed scheme: %s (only http/https allowed)", u.Scheme)
	}

	hostname := u.Hostname()
	if hostname == "" {
		return fmt.Errorf("empty hostname")
	}

	if isDangerousHostname(hostname) {
		v.logger.Warn("blocked outbound request to dangerous host",
			"url", rawURL,
			"hostname", hostname,
			"security_event", "ssrf_dangerous_hostname")
		return fmt.Errorf("access to internal hosts and metadata services is not allowed")
	}

	if ip := net.ParseIP(hostname); ip != nil {
		if isPrivateIP(ip) {
			v.logger.Warn("blocked outbound request to private IP",
				"url", rawURL,
				"ip", ip.String(),
				"security_event", "ssrf_private_ip")
			return fmt.Errorf("access to internal network IPs is not allowed (%s)", ip)
		}
		return nil
	}

	ips, err := net.LookupIP(hostname)
	if err != nil {
		return fmt.Errorf("resolving hostname: %w", err)
	}
	for _, ip := range ips {
		if isPrivateIP(ip) {
			v.logger.Warn("blocked outbound request to private IP",
				"url", rawURL,
				"hostname", hostname,
				"resolved_ip", ip.String(),
				"security_event", "ssrf_private_ip")
			return fmt.Errorf("access to internal network IPs is not allowed (%s)", ip)
		}
	}

	return nil
}

// MaxResponseSize returns the response body cap in bytes.
func (v *HTTP) MaxResponseSize() int64 {
	return v.maxResponseSize
}

// Client returns an HTTP client that revalidates every redirect target.
func (v *HTTP) Client() *http.Client {
	return &http.Client{
		Timeout: defaultTimeout,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= maxRedirects {
				return fmt.Errorf("stopped after %d redirects", maxRedirects)
			}
			if err := v.ValidateURL(req.URL.String()); err != nil {
				v.logger.Warn("blocked redirect to unsafe URL",
					"redirect_url", req.URL.String(),
					"original_url", via[0].URL.String(),
					"security_event", "ssrf_unsafe_redirect")
				return fmt.Errorf("redirect to unsafe URL: %w", err)
			}
			return nil
		},
	}
}

func isDangerousHostname(hostname string) bool {
	hostname = strings.ToLower(hostname)

	localHostnames := []string{
		"localhost",
		"127.0.0.1",
		"::1",
		"0.0.0.0",
	}
	if slices.Contains(localHostnames, hostname) {
		return true
	}

	// Cloud metadata endpoints (AWS, Azure, GCP).
	metadataHosts := []string{
		"169.254.169.254",
		"metadata.google.internal",
		"metadata",
	}
	for _, h := range metadataHosts {
		if hostname == h || strings.Contains(hostname, h) {
			return true
		}
	}

	return false
}

func isPrivateIP(ip net.IP) bool {
	privateIPv4Ranges := []string{
		"10.0.0.0/8",
		"172.16.0.0/12",
		"192.168.0.0/16",
		"127.0.0.0/8",
		"169.254.0.0/16",
		"0.0.0.0/8",
		"224.0.0.0/4",
		"240.0.0.0/4",
	}
	for _, cidr := range privateIPv4Ranges {
		_, subnet, err := net.ParseCIDR(cidr)
		if err != nil {
			continue
		}
		if subnet.Contains(ip) {
			return true
		}
	}

	if ip.IsLoopback() || ip.IsLinkLocalUnicast() || ip.IsLinkLocalMulticast() {
		return true
	}

	// IPv6 unique local addresses (fc00::/7).
	if v6 := ip.To16(); v6 != nil && ip.To4() == nil && (v6[0] == 0xfc || v6[0] == 0xfd) {
		return true
	}

	return false
}
