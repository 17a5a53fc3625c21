package activitypub

import (
	"bytes"
	"encoding/json"
	"slices"
)

const (
	ActivityStreamsContext = "https://www.w3.org/ns/activitystreams"
	SecurityContext        = "https://w3id.org/security/v1"
	PublicURL              = "https://www.w3.org/ns/activitystreams#Public"
	ContentType            = "application/activity+json"
	LDContentType          = `application/ld+json; profile="https://www.w3.org/ns/activitystreams"`
	MarkdownMediaType      = "text/markdown"
)

var defaultContext = []any{ActivityStreamsContext, SecurityContext}

// URLs is an addressing field. Peers send either a single URL or a list;
// we always emit a list.
type URLs []string

func (u *URLs) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*u = nil
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*u = URLs{s}
		return nil
	}
	var list []string
	if err := json.Unmarshal(data, &list); err != nil {
		return err
	}
	*u = list
	return nil
}

func (u URLs) Contains(id string) bool {
	return slices.Contains(u, id)
}

// First returns the first entry, or "".
func (u URLs) First() string {
	if len(u) == 0 {
		return ""
	}
	return u[0]
}

func isPublic(id string) bool {
	return id == PublicURL || id == "Public" || id == "as:Public"
}

func (u URLs) hasPublic() bool {
	return slices.ContainsFunc(u, isPublic)
}

// firstNonPublic returns the first entry that is not the public collection.
func (u URLs) firstNonPublic() string {
	for _, id := range u {
		if !isPublic(id) {
			return id
		}
	}
	return ""
}

type Source struct {
	Content   string `json:"content"`
	MediaType string `json:"mediaType"`
}

func markdownSource(content string) *Source {
	if content == "" {
		return nil
	}
	return &Source{Content: content, MediaType: MarkdownMediaType}
}

type ImageObject struct {
	Type string `json:"type"`
	URL  string `json:"url"`
}

func imageObject(url string) *ImageObject {
	if url == "" {
		return nil
	}
	return &ImageObject{Type: "Image", URL: url}
}

func (i *ImageObject) url() string {
	if i == nil {
		return ""
	}
	return i.URL
}

type PublicKey struct {
	ID           string `json:"id"`
	Owner        string `json:"owner"`
	PublicKeyPem string `json:"publicKeyPem"`
}

type Endpoints struct {
	SharedInbox string `json:"sharedInbox,omitempty"`
}

// Tombstone replaces a deleted object.
type Tombstone struct {
	Context    any    `json:"@context,omitempty"`
	ID         string `json:"id"`
	Type       string `json:"type"`
	FormerType string `json:"formerType,omitempty"`
	Deleted    string `json:"deleted,omitempty"`
}

// objectHeader is the part of every object we look at before decoding it fully.
type objectHeader struct {
	ID   string `json:"id"`
	Type string `json:"type"`
}

func readHeader(data []byte) (objectHeader, error) {
	var h objectHeader
	if err := json.Unmarshal(data, &h); err != nil {
		return h, err
	}
	return h, nil
}
