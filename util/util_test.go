package util

import (
	"crypto/x509"
	"encoding/pem"
	"regexp"
	"strings"
	"testing"
)

func TestGetVersion(t *testing.T) {
	version := GetVersion()
	if version == "" {
		t.Error("Expected embedded version to be non-empty")
	}
	if strings.ContainsAny(version, "\n ") {
		t.Errorf("Version should be trimmed, got %q", version)
	}
}

func TestGetNameAndVersion(t *testing.T) {
	result := GetNameAndVersion()
	expected := Name + " / " + GetVersion()
	if result != expected {
		t.Errorf("Expected '%s', got '%s'", expected, result)
	}
}

func TestUserAgent(t *testing.T) {
	ua := UserAgent("forum.example")
	if !strings.HasPrefix(ua, "burrow/") || !strings.HasSuffix(ua, "+https://forum.example") {
		t.Errorf("Unexpected user agent %s", ua)
	}
}

func TestGeneratePemKeypair(t *testing.T) {
	keypair, err := GeneratePemKeypair()
	if err != nil {
		t.Fatalf("GeneratePemKeypair failed: %v", err)
	}

	privBlock, _ := pem.Decode([]byte(keypair.Private))
	if privBlock == nil || privBlock.Type != "RSA PRIVATE KEY" {
		t.Fatal("Private key is not a PEM RSA PRIVATE KEY block")
	}
	priv, err := x509.ParsePKCS1PrivateKey(privBlock.Bytes)
	if err != nil {
		t.Fatalf("Failed to parse private key: %v", err)
	}
	if priv.N.BitLen() != 2048 {
		t.Errorf("Expected 2048 bit key, got %d", priv.N.BitLen())
	}

	pubBlock, _ := pem.Decode([]byte(keypair.Public))
	if pubBlock == nil || pubBlock.Type != "PUBLIC KEY" {
		t.Fatal("Public key is not a PEM PUBLIC KEY block")
	}
	if _, err := x509.ParsePKIXPublicKey(pubBlock.Bytes); err != nil {
		t.Errorf("Public key is not PKIX: %v", err)
	}
}

func TestGeneratePemKeypairUniqueness(t *testing.T) {
	k1, err := GeneratePemKeypair()
	if err != nil {
		t.Fatalf("GeneratePemKeypair failed: %v", err)
	}
	k2, err := GeneratePemKeypair()
	if err != nil {
		t.Fatalf("GeneratePemKeypair failed: %v", err)
	}
	if k1.Private == k2.Private {
		t.Error("Generated keys should be unique")
	}
}

func TestMarkdownLinksToHTML(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "plain text",
			input:    "hello world",
			expected: "hello world",
		},
		{
			name:     "single link",
			input:    "see [docs](https://docs.example)",
			expected: `see <a href="https://docs.example" target="_blank" rel="noopener noreferrer">docs</a>`,
		},
		{
			name:     "escapes html",
			input:    "<b>x</b>",
			expected: "&lt;b&gt;x&lt;/b&gt;",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := MarkdownLinksToHTML(tt.input); got != tt.expected {
				t.Errorf("Expected %q, got %q", tt.expected, got)
			}
		})
	}
}

func TestMarkdownToHTML(t *testing.T) {
	got := MarkdownToHTML("first line\nsecond\n\nnext paragraph")
	expected := "<p>first line<br>second</p><p>next paragraph</p>"
	if got != expected {
		t.Errorf("Expected %q, got %q", expected, got)
	}
}

func TestHTMLToText(t *testing.T) {
	got := HTMLToText("<p>one<br/>two</p><p>three &amp; four</p>")
	expected := "one\ntwo\n\nthree & four"
	if got != expected {
		t.Errorf("Expected %q, got %q", expected, got)
	}
}

func TestSlurFilter(t *testing.T) {
	filter := regexp.MustCompile(`(?i)badword`)

	if err := CheckSlurs("a fine title", filter); err != nil {
		t.Errorf("Unexpected error %v", err)
	}
	if err := CheckSlurs("a BadWord title", filter); err != ErrSlurs {
		t.Errorf("Expected ErrSlurs, got %v", err)
	}
	if err := CheckSlursAll(filter, "ok", "badword"); err != ErrSlurs {
		t.Errorf("Expected ErrSlurs from CheckSlursAll, got %v", err)
	}
	if err := CheckSlurs("badword", nil); err != nil {
		t.Error("Nil filter should accept everything")
	}

	if got := RemoveSlurs("this badword here", filter); got != "this *removed* here" {
		t.Errorf("Unexpected redaction %q", got)
	}
	if got := RemoveSlurs("badword", nil); got != "badword" {
		t.Errorf("Nil filter should not redact, got %q", got)
	}
}
