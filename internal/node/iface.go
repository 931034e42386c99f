package node

import (
	"errors"
	"fmt"
	"net"
	"strings"
)

// Interface is a resolved network interface.
type Interface struct {
	Name      string
	IP        net.IP
	Broadcast net.IP
	MAC       net.HardwareAddr
}

// InterfaceError is returned when the interface selector cannot be resolved
// to an IPv4 address.
type InterfaceError struct {
	Selector string
	Err      error
}

func (e *InterfaceError) Error() string {
	return fmt.Sprintf("resolve interface %q: %v", e.Selector, e.Err)
}

func (e *InterfaceError) Unwrap() error { return e.Err }

var errNoIPv4 = errors.New("no matching IPv4 address")

// ResolveInterface finds the interface described by selector: an interface
// name, a CIDR the address has to be inside of, or empty for the first up,
// non-loopback interface with an IPv4 address.
func ResolveInterface(selector string) (Interface, error) {
	fail := func(err error) (Interface, error) {
		return Interface{}, &InterfaceError{Selector: selector, Err: err}
	}

	if selector != "" && !strings.Contains(selector, "/") {
		iface, err := net.InterfaceByName(selector)
		if err != nil {
			return fail(err)
		}
		res, ok, err := ipv4Of(iface, nil)
		if err != nil {
			return fail(err)
		}
		if !ok {
			return fail(errNoIPv4)
		}
		return res, nil
	}

	var cidr *net.IPNet
	if selector != "" {
		_, n, err := net.ParseCIDR(selector)
		if err != nil {
			return fail(err)
		}
		cidr = n
	}

	ifaces, err := net.Interfaces()
	if err != nil {
		return fail(fmt.Errorf("error getting interfaces: %w", err))
	}
	for i := range ifaces {
		iface := &ifaces[i]
		if iface.Flags&net.FlagUp == 0 {
			continue
		}
		if cidr == nil && iface.Flags&net.FlagLoopback != 0 {
			continue
		}
		res, ok, err := ipv4Of(iface, cidr)
		if err != nil {
			return fail(err)
		}
		if ok {
			return res, nil
		}
	}
	return fail(errNoIPv4)
}

// ipv4Of returns the first IPv4 address of iface, inside cidr when given.
func ipv4Of(iface *net.Interface, cidr *net.IPNet) (Interface, bool, error) {
	addrs, err := iface.Addrs()
	if err != nil {
		return Interface{}, false, fmt.Errorf("error getting ips of %s: %w", iface.Name, err)
	}
	for _, addr := range addrs {
		ipnet, ok := addr.(*net.IPNet)
		if !ok {
			continue
		}
		ip := ipnet.IP.To4()
		if ip == nil {
			continue
		}
		if cidr != nil && !cidr.Contains(ip) {
			continue
		}
		mac := iface.HardwareAddr
		if len(mac) != 6 {
			mac = make(net.HardwareAddr, 6)
		}
		return Interface{
			Name:      iface.Name,
			IP:        ip,
			Broadcast: broadcastAddr(ip, ipnet.Mask),
			MAC:       mac,
		}, true, nil
	}
	return Interface{}, false, nil
}

// broadcastAddr computes ip | ^mask.
func broadcastAddr(ip net.IP, mask net.IPMask) net.IP {
	ip4 := ip.To4()
	if ip4 == nil || mask == nil {
		return nil
	}
	if len(mask) == net.IPv6len {
		mask = mask[12:]
	}
	bcast := make(net.IP, net.IPv4len)
	for i := range ip4 {
		bcast[i] = ip4[i] | ^mask[i]
	}
	return bcast
}
