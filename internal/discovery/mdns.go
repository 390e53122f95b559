// Package discovery advertises the HTTP status server over mDNS.
package discovery

import (
	"fmt"
	"net"
	"strconv"
	"strings"
	"sync"

	"github.com/enbility/zeroconf/v3"
)

const (
	// ServiceType is the DNS-SD service advertised for the status server.
	ServiceType = "_switch-sensor._tcp"

	// Domain is the mDNS domain.
	Domain = "local."
)

// Info describes the advertised instance.
type Info struct {
	Instance string
	Port     int
	Switches []string
}

// TXT returns the DNS-SD TXT records for info.
func (i Info) TXT() []string {
	return []string{
		"txtvers=1",
		"path=/index.json",
		"switches=" + strings.Join(i.Switches, ","),
	}
}

type server interface {
	Shutdown()
}

type registerFunc func(instance, service, domain string, port int, txt []string, ifaces []net.Interface) (server, error)

func zeroconfRegister(instance, service, domain string, port int, txt []string, ifaces []net.Interface) (server, error) {
	srv, err := zeroconf.Register(instance, service, domain, port, txt, ifaces)
	if err != nil {
		return nil, err
	}
	return srv, nil
}

// Advertiser holds at most one registered service.
type Advertiser struct {
	iface    string
	register registerFunc

	mu     sync.Mutex
	server server
}

// NewAdvertiser creates an advertiser bound to the named interface, or to
// all interfaces when iface is empty.
func NewAdvertiser(iface string) *Advertiser {
	return &Advertiser{iface: iface, register: zeroconfRegister}
}

func (a *Advertiser) interfaces() []net.Interface {
	if a.iface == "" {
		return nil
	}
	iface, err := net.InterfaceByName(a.iface)
	if err != nil {
		return nil
	}
	return []net.Interface{*iface}
}

// Advertise registers info, replacing any earlier registration.
func (a *Advertiser) Advertise(info Info) error {
	if info.Instance == "" {
		return fmt.Errorf("advertise: instance name is required")
	}
	if info.Port <= 0 || info.Port > 65535 {
		return fmt.Errorf("advertise: invalid port %d", info.Port)
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.server != nil {
		a.server.Shutdown()
		a.server = nil
	}

	srv, err := a.register(info.Instance, ServiceType, Domain, info.Port, info.TXT(), a.interfaces())
	if err != nil {
		return fmt.Errorf("register %s: %w", ServiceType, err)
	}
	a.server = srv
	return nil
}

// Shutdown withdraws the advertisement. Safe to call more than once.
func (a *Advertiser) Shutdown() {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.server != nil {
		a.server.Shutdown()
		a.server = nil
	}
}

// PortFromAddr extracts the TCP port from a listen address such as ":80".
func PortFromAddr(addr string) (int, error) {
	_, p, err := net.SplitHostPort(addr)
	if err != nil {
		return 0, fmt.Errorf("parse listen address %q: %w", addr, err)
	}
	port, err := strconv.Atoi(p)
	if err != nil {
		return 0, fmt.Errorf("parse port %q: %w", p, err)
	}
	return port, nil
}
