package models

import (
	"net/url"
	"strings"
)

type DescriptorKind int

const (
	DescriptorNone DescriptorKind = iota
	DescriptorInline
	DescriptorRemote
)

func (k DescriptorKind) String() string {
	switch k {
	case DescriptorInline:
		return "inline"
	case DescriptorRemote:
		return "remote"
	default:
		return "none"
	}
}

// ImageData is one entry of the provider's "data" array.
type ImageData struct {
	URL     string `json:"url,omitempty"`
	B64JSON string `json:"b64_json,omitempty"`
	Seed    int64  `json:"seed,omitempty"`
}

// ImageDescriptor is the validated shape of an ImageData entry.
type ImageDescriptor struct {
	Kind   DescriptorKind
	Base64 string
	URL    string
}

// Descriptor classifies d. Inline data wins when both fields are set; a URL
// only counts when it is an absolute http(s) URL with a host.
func (d ImageData) Descriptor() ImageDescriptor {
	if b64 := strings.TrimSpace(d.B64JSON); b64 != "" {
		return ImageDescriptor{Kind: DescriptorInline, Base64: b64}
	}
	if isRemoteURL(d.URL) {
		return ImageDescriptor{Kind: DescriptorRemote, URL: d.URL}
	}
	return ImageDescriptor{Kind: DescriptorNone}
}

func isRemoteURL(raw string) bool {
	if raw == "" {
		return false
	}
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
