package csapi

import (
	"fmt"
	"net/http"
	"strings"
)

const (
	HeaderMajorAPIVersion        = "X-CS-MajorApiVersion"
	HeaderMinimumMinorAPIVersion = "X-CS-MinimumMinorApiVersion"
	HeaderProductKey             = "X-CS-ProductKey"
	HeaderClientID               = "X-CS-ClientId"
	HeaderVerificationToken      = "X-CS-VerificationToken"

	DefaultAPIVersion = "1.9"
	ProductKey        = "api.rest"
)

// Header keeps the per-client request headers.
type Header struct {
	major             string
	minor             string
	clientID          string
	verificationToken string
}

func NewHeader(apiVersion string) (*Header, error) {
	if apiVersion == "" {
		apiVersion = DefaultAPIVersion
	}

	major, minor, ok := strings.Cut(apiVersion, ".")
	if !ok || major == "" || minor == "" {
		return nil, fmt.Errorf("invalid api version %q", apiVersion)
	}

	return &Header{major: major, minor: minor}, nil
}

func (h *Header) ClientID() string {
	return h.clientID
}

func (h *Header) SetClientID(id string) {
	h.clientID = id
}

func (h *Header) VerificationToken() string {
	return h.verificationToken
}

func (h *Header) SetVerificationToken(token string) {
	h.verificationToken = token
}

func (h *Header) HTTPHeader() http.Header {
	hdr := http.Header{}
	hdr.Set(HeaderMajorAPIVersion, h.major)
	hdr.Set(HeaderMinimumMinorAPIVersion, h.minor)
	hdr.Set(HeaderProductKey, ProductKey)

	if h.clientID != "" {
		hdr.Set(HeaderClientID, h.clientID)
	}

	if h.verificationToken != "" {
		hdr.Set(HeaderVerificationToken, h.verificationToken)
	}

	return hdr
}
