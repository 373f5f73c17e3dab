package whatsapp

import (
	"context"
	"fmt"
	"net/http"

	"go.mau.fi/whatsmeow"
	"go.mau.fi/whatsmeow/store"

	"walink/cmd/internal/linking"
)

// VersionSource asks WhatsApp Web for the current client version.
type VersionSource struct {
	HTTP *http.Client
}

// LatestVersion implements linking.VersionSource.
func (v VersionSource) LatestVersion(ctx context.Context) (linking.Version, error) {
	hc := v.HTTP
	if hc == nil {
		hc = http.DefaultClient
	}
	ver, err := whatsmeow.GetLatestVersion(ctx, hc)
	if err != nil {
		return linking.Version{}, fmt.Errorf("whatsapp: latest version: %w", err)
	}
	return linking.Version(*ver), nil
}

// BundledVersion is the version compiled into whatsmeow.
func BundledVersion() linking.Version {
	return linking.Version(store.GetWAVersion())
}
