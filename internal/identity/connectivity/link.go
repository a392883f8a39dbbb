// Package connectivity answers two questions: is there a network link, and
// can the directory actually be reached over it.
package connectivity

import (
	"context"
	"slices"
	"strings"

	"github.com/aussiebroadwan/idsync/internal/identity/domain"
	gnet "github.com/shirou/gopsutil/v4/net"
)

// LinkDetector reports link-level connectivity. It never touches the network.
type LinkDetector interface {
	Link(ctx context.Context) (connected bool, quality domain.QualityTier, err error)
}

// InterfaceDetector inspects host network interfaces: any non-loopback
// interface flagged up counts as a link.
type InterfaceDetector struct {
	list func(ctx context.Context) (gnet.InterfaceStatList, error)
}

func NewInterfaceDetector() *InterfaceDetector {
	return &InterfaceDetector{list: gnet.InterfacesWithContext}
}

func (d *InterfaceDetector) Link(ctx context.Context) (bool, domain.QualityTier, error) {
	ifaces, err := d.list(ctx)
	if err != nil {
		return false, domain.QualityUnknown, err
	}

	var up []string
	for _, iface := range ifaces {
		if slices.Contains(iface.Flags, "up") && !slices.Contains(iface.Flags, "loopback") {
			up = append(up, iface.Name)
		}
	}
	if len(up) == 0 {
		return false, domain.QualityNone, nil
	}
	return true, QualityOf(up), nil
}

var qualityRank = map[domain.QualityTier]int{
	domain.QualityUnknown:  0,
	domain.QualityCellular: 1,
	domain.QualityWiFi:     2,
	domain.QualityEthernet: 3,
}

// QualityOf classifies the best link among the named interfaces.
func QualityOf(names []string) domain.QualityTier {
	if len(names) == 0 {
		return domain.QualityNone
	}
	best := domain.QualityUnknown
	for _, name := range names {
		if q := qualityOfName(name); qualityRank[q] > qualityRank[best] {
			best = q
		}
	}
	return best
}

func qualityOfName(name string) domain.QualityTier {
	n := strings.ToLower(name)
	switch {
	case strings.HasPrefix(n, "wl"):
		return domain.QualityWiFi
	case strings.HasPrefix(n, "en"), strings.HasPrefix(n, "eth"):
		return domain.QualityEthernet
	case strings.HasPrefix(n, "ww"), strings.HasPrefix(n, "rmnet"), strings.HasPrefix(n, "cell"):
		return domain.QualityCellular
	}
	return domain.QualityUnknown
}

// StaticLink is a fixed LinkDetector for environments without interface
// inspection, and for tests.
type StaticLink struct {
	Connected bool
	Quality   domain.QualityTier
}

func (s StaticLink) Link(context.Context) (bool, domain.QualityTier, error) {
	if !s.Connected {
		return false, domain.QualityNone, nil
	}
	return true, s.Quality, nil
}
