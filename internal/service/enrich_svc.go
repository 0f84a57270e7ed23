package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/netip"
	"os"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
	"gopkg.in/yaml.v3"

	"github.com/DovakiinZ/Sin-City-sub001/internal/model"
	"github.com/DovakiinZ/Sin-City-sub001/pkg/hash"
)

// Enricher supplies network metadata for the caller at ip. Implementations
// may fail; callers treat a failure as "no enrichment".
type Enricher interface {
	Enrich(ctx context.Context, ip string) (*model.Enrichment, error)
}

// EnricherFunc adapts a function to the Enricher interface.
type EnricherFunc func(ctx context.Context, ip string) (*model.Enrichment, error)

func (f EnricherFunc) Enrich(ctx context.Context, ip string) (*model.Enrichment, error) {
	return f(ctx, ip)
}

// GeoRecord is what a GeoProvider knows about an address.
type GeoRecord struct {
	Country string
	City    string
	ISP     string
	VPN     bool
	Tor     bool
}

// GeoProvider resolves an address. A nil record with a nil error means the
// address is unknown.
type GeoProvider interface {
	Lookup(ctx context.Context, addr netip.Addr) (*GeoRecord, error)
}

// EnrichmentService derives the ip hash and network metadata served by the
// enrichment endpoint.
type EnrichmentService struct {
	provider GeoProvider
	cache    *CacheService
	salt     string
	logger   zerolog.Logger
}

func NewEnrichmentService(provider GeoProvider, cache *CacheService, salt string, logger zerolog.Logger) *EnrichmentService {
	return &EnrichmentService{
		provider: provider,
		cache:    cache,
		salt:     salt,
		logger:   logger.With().Str("component", "enrichment").Logger(),
	}
}

// Enrich never fails; it satisfies Enricher for in-process resolution.
func (s *EnrichmentService) Enrich(ctx context.Context, ip string) (*model.Enrichment, error) {
	return s.Lookup(ctx, ip), nil
}

// Lookup returns the enrichment for ip. Unknown or failing lookups degrade
// to null fields and false flags.
func (s *EnrichmentService) Lookup(ctx context.Context, ip string) *model.Enrichment {
	e := &model.Enrichment{}
	if ip == "" {
		return e
	}

	ipHash := hash.HashIP(ip, s.salt)
	e.IPHash = &ipHash

	if s.cache != nil {
		cached, err := s.cache.GetEnrichment(ctx, ipHash)
		if err != nil {
			s.logger.Warn().Err(err).Msg("enrichment cache read failed")
		} else if cached != nil {
			cached.IPHash = &ipHash
			return cached
		}
	}

	addr, err := netip.ParseAddr(ip)
	if err != nil || s.provider == nil {
		return e
	}

	rec, err := s.provider.Lookup(ctx, addr.Unmap())
	if err != nil {
		s.logger.Warn().Err(err).Msg("geo provider lookup failed")
		return e
	}
	if rec != nil {
		e.Country = nonEmpty(rec.Country)
		e.City = nonEmpty(rec.City)
		e.ISP = nonEmpty(rec.ISP)
		e.VPNDetected = rec.VPN
		e.TorDetected = rec.Tor
	}

	if s.cache != nil {
		if err := s.cache.SetEnrichment(ctx, ipHash, e); err != nil {
			s.logger.Warn().Err(err).Msg("enrichment cache write failed")
		}
	}
	return e
}

func nonEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// NetworkEntry is one CIDR range of a NetworkTable.
type NetworkEntry struct {
	CIDR    string `yaml:"cidr"`
	Country string `yaml:"country"`
	City    string `yaml:"city"`
	ISP     string `yaml:"isp"`
	VPN     bool   `yaml:"vpn"`
	Tor     bool   `yaml:"tor"`

	prefix netip.Prefix
}

// NetworkTable is a static GeoProvider loaded from YAML. The most specific
// matching range wins.
type NetworkTable struct {
	entries []NetworkEntry
}

type networkTableFile struct {
	Networks []NetworkEntry `yaml:"networks"`
}

// LoadNetworkTable reads a YAML network table from path.
func LoadNetworkTable(path string) (*NetworkTable, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read network table: %w", err)
	}
	return ParseNetworkTable(data)
}

// ParseNetworkTable parses a YAML document of the form
//
//	networks:
//	  - cidr: 185.220.100.0/22
//	    isp: Tor exit
//	    tor: true
func ParseNetworkTable(data []byte) (*NetworkTable, error) {
	var f networkTableFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse network table: %w", err)
	}

	t := &NetworkTable{entries: make([]NetworkEntry, 0, len(f.Networks))}
	for i, e := range f.Networks {
		p, err := netip.ParsePrefix(e.CIDR)
		if err != nil {
			return nil, fmt.Errorf("network table entry %d: %w", i, err)
		}
		e.prefix = p.Masked()
		t.entries = append(t.entries, e)
	}
	return t, nil
}

// Len returns the number of ranges in the table.
func (t *NetworkTable) Len() int {
	return len(t.entries)
}

func (t *NetworkTable) Lookup(_ context.Context, addr netip.Addr) (*GeoRecord, error) {
	var best *NetworkEntry
	for i := range t.entries {
		e := &t.entries[i]
		if !e.prefix.Contains(addr) {
			continue
		}
		if best == nil || e.prefix.Bits() > best.prefix.Bits() {
			best = e
		}
	}
	if best == nil {
		return nil, nil
	}
	return &GeoRecord{
		Country: best.Country,
		City:    best.City,
		ISP:     best.ISP,
		VPN:     best.VPN,
		Tor:     best.Tor,
	}, nil
}

// RemoteEnricher fetches enrichment from a running server's enrichment
// endpoint. The server sees the caller's address, so ip is ignored.
type RemoteEnricher struct {
	url     string
	client  *http.Client
	limiter *rate.Limiter
}

func NewRemoteEnricher(url string, timeout time.Duration) *RemoteEnricher {
	return &RemoteEnricher{
		url:     url,
		client:  &http.Client{Timeout: timeout},
		limiter: rate.NewLimiter(rate.Every(time.Second), 5),
	}
}

func (r *RemoteEnricher) Enrich(ctx context.Context, _ string) (*model.Enrichment, error) {
	if r.url == "" {
		return nil, errors.New("enrichment url not configured")
	}
	if err := r.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("enrichment endpoint returned %d", resp.StatusCode)
	}

	var e model.Enrichment
	if err := json.NewDecoder(resp.Body).Decode(&e); err != nil {
		return nil, fmt.Errorf("decode enrichment: %w", err)
	}
	return &e, nil
}
