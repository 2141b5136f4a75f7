package discovery

import (
	"fmt"
	"net"
	"os"

	"github.com/hashicorp/mdns"
	"github.com/rs/zerolog/log"
)

// ServiceType is the mDNS service the game server advertises.
const ServiceType = "_sketchturn._tcp"

// Advertiser announces the server on the local network until shut down.
type Advertiser struct {
	server *mdns.Server
}

// Advertise publishes the HTTP port under ServiceType. An empty instance
// defaults to the hostname.
func Advertise(instance string, port int, info []string) (*Advertiser, error) {
	if instance == "" {
		host, err := os.Hostname()
		if err != nil {
			return nil, fmt.Errorf("could not get hostname: %w", err)
		}
		instance = host
	}

	service, err := mdns.NewMDNSService(instance, ServiceType, "", "", port, nil, info)
	if err != nil {
		return nil, fmt.Errorf("failed to create mDNS service: %w", err)
	}

	server, err := mdns.NewServer(&mdns.Config{Zone: service})
	if err != nil {
		return nil, fmt.Errorf("failed to start mDNS server: %w", err)
	}

	log.Info().
		Str("instance", instance).
		Str("service", ServiceType).
		Int("port", port).
		Msg("advertising on mDNS")

	return &Advertiser{server: server}, nil
}

func (a *Advertiser) Shutdown() error {
	return a.server.Shutdown()
}

// TXTRecords builds the TXT entries published with the service.
func TXTRecords(joinURL string) []string {
	records := []string{"app=sketchturn"}
	if joinURL != "" {
		records = append(records, "url="+joinURL)
	}
	return records
}

// LocalURL is the join URL on the first non-loopback IPv4 address.
func LocalURL(port int) string {
	return fmt.Sprintf("http://%s/", net.JoinHostPort(firstIPv4().String(), fmt.Sprint(port)))
}

func firstIPv4() net.IP {
	ifaces, _ := net.Interfaces()
	for _, iface := range ifaces {
		// Ignore loopback and down interfaces
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 {
			continue
		}
		addrs, _ := iface.Addrs()
		for _, a := range addrs {
			if ipnet, ok := a.(*net.IPNet); ok && ipnet.IP.To4() != nil {
				return ipnet.IP.To4()
			}
		}
	}
	return net.IPv4(127, 0, 0, 1)
}
