package tls

import (
    "context"
    "crypto/tls"
    "fmt"
    "sync"
    "time"

    "github.com/spiffe/go-spiffe/v2/spiffeid"
    "github.com/spiffe/go-spiffe/v2/spiffetls/tlsconfig"
    "github.com/spiffe/go-spiffe/v2/workloadapi"
    "go.uber.org/zap"
)

type TLSConfig struct {
    Enabled    bool   `envconfig:"TLS_ENABLED" default:"false"`
    SocketPath string `envconfig:"SPIRE_SOCKET_PATH" default:"unix:///run/spire/sockets/agent.sock"`
    // 비어 있으면 어떤 SPIFFE ID의 백엔드든 허용
    BackendID string `envconfig:"BACKEND_SPIFFE_ID"`
}

var (
    mu         sync.Mutex
    x509Source *workloadapi.X509Source
)

// LoadClientTLSConfig returns the mTLS config used when calling the shop
// backend, or nil when TLS is disabled.
func LoadClientTLSConfig(ctx context.Context, cfg *TLSConfig, logger *zap.Logger) (*tls.Config, error) {
    if !cfg.Enabled {
        logger.Info("TLS is disabled")
        return nil, nil
    }

    authorizer, err := backendAuthorizer(cfg.BackendID)
    if err != nil {
        return nil, err
    }

    source, err := workloadapi.NewX509Source(
        ctx,
        workloadapi.WithClientOptions(
            workloadapi.WithAddr(cfg.SocketPath),
        ),
    )
    if err != nil {
        return nil, fmt.Errorf("unable to create X509Source: %w", err)
    }

    mu.Lock()
    x509Source = source
    mu.Unlock()

    tlsConfig := tlsconfig.MTLSClientConfig(source, source, authorizer)
    tlsConfig.MinVersion = tls.VersionTLS12

    logger.Info("SPIRE TLS configuration loaded",
        zap.String("socket_path", cfg.SocketPath),
        zap.String("backend_id", cfg.BackendID),
        zap.Bool("mtls_enabled", true))

    return tlsConfig, nil
}

func backendAuthorizer(id string) (tlsconfig.Authorizer, error) {
    if id == "" {
        return tlsconfig.AuthorizeAny(), nil
    }
    backendID, err := spiffeid.FromString(id)
    if err != nil {
        return nil, fmt.Errorf("invalid backend SPIFFE ID %q: %w", id, err)
    }
    return tlsconfig.AuthorizeID(backendID), nil
}

// WatchCertificates logs SVID status until ctx is done. SPIRE rotates the
// certificates itself; this only reports them.
func WatchCertificates(ctx context.Context, interval time.Duration, logger *zap.Logger) {
    mu.Lock()
    source := x509Source
    mu.Unlock()
    if source == nil {
        logger.Error("X509Source is not initialized")
        return
    }

    ticker := time.NewTicker(interval)
    defer ticker.Stop()

    for {
        select {
        case <-ctx.Done():
            return
        case <-ticker.C:
        }

        svid, err := source.GetX509SVID()
        if err != nil {
            logger.Error("Failed to get X509 SVID", zap.Error(err))
            continue
        }

        logger.Info("Certificate status",
            zap.String("spiffe_id", svid.ID.String()),
            zap.Time("expiry", svid.Certificates[0].NotAfter),
            zap.Duration("ttl", time.Until(svid.Certificates[0].NotAfter)))
    }
}

func Cleanup() {
    mu.Lock()
    defer mu.Unlock()
    if x509Source != nil {
        x509Source.Close()
        x509Source = nil
    }
}
