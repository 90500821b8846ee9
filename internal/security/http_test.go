package security

import (
	"strings"
	"testing"
)

func TestValidateURL(t *testing.T) {
	v := NewHTTP(nil)

	tests := []struct {
		name      string
		url       string
		shouldErr bool
	}{
		{name: "public IP allowed", url: "https://93.184.216.34/forecast", shouldErr: false},
		{name: "localhost blocked", url: "http://localhost:8080/admin", shouldErr: true},
		{name: "loopback IP blocked", url: "http://127.0.0.1:5432", shouldErr: true},
		{name: "private class A blocked", url: "http://10.0.0.5/internal", shouldErr: true},
		{name: "private class B blocked", url: "http://172.16.0.1", shouldErr: true},
		{name: "private class C blocked", url: "http://192.168.1.1", shouldErr: true},
		{name: "cloud metadata blocked", url: "http://169.254.169.254/latest/meta-data/", shouldErr: true},
		{name: "metadata hostname blocked", url: "http://metadata.google.internal/computeMetadata/v1/", shouldErr: true},
		{name: "file scheme blocked", url: "file:///etc/passwd", shouldErr: true},
		{name: "ftp scheme blocked", url: "ftp://example.com/data", shouldErr: true},
		{name: "empty hostname", url: "http://", shouldErr: true},
		{name: "unspecified address blocked", url: "http://0.0.0.0:8080", shouldErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.ValidateURL(tt.url)
			if tt.shouldErr && err == nil {
				t.Errorf("ValidateURL(%q) = nil, want error", tt.url)
			}
			if !tt.shouldErr && err != nil {
				t.Errorf("ValidateURL(%q) = %v, want nil", tt.url, err)
			}
		})
	}
}

func TestValidateURLIPv6(t *testing.T) {
	v := NewHTTP(nil)

	blocked := []string{
		"http://[::1]:8080",
		"http://[fe80::1]",
		"http://[fc00::1]",
		"http://[fd12:3456::1]",
	}
	for _, u := range blocked {
		if err := v.ValidateURL(u); err == nil {
			t.Errorf("ValidateURL(%q) = nil, want error", u)
		}
	}
}

func TestClientLimitsRedirects(t *testing.T) {
	v := NewHTTP(nil)
	client := v.Client()

	if client.CheckRedirect == nil {
		t.Fatal("expected CheckRedirect to be set")
	}
	if client.Timeout != defaultTimeout {
		t.Errorf("Timeout = %v, want %v", client.Timeout, defaultTimeout)
	}
}

func TestMaxResponseSize(t *testing.T) {
	v := NewHTTP(nil)
	if got := v.MaxResponseSize(); got != defaultMaxResponseSize {
		t.Errorf("MaxResponseSize() = %d, want %d", got, defaultMaxResponseSize)
	}
}

func TestValidateURLErrorMentionsScheme(t *testing.T) {
	v := NewHTTP(nil)
	err := v.ValidateURL("gopher://example.com")
	if err == nil {
		t.Fatal("expected error for gopher scheme")
	}
	if !strings.Contains(err.Error(), "scheme") {
		t.Errorf("error %q should mention the scheme", err)
	}
}
